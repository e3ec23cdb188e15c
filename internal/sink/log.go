package sink

import "github.com/rs/zerolog"

// Log writes entries as structured log events: records and magnifications at
// debug level, summaries at info.
type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) WriteRecord(r Record) error {
	l.logger.Debug().
		Str("scan_id", r.ScanID).
		Str("target", r.Target).
		Str("name", r.Name).
		Str("data", r.Data).
		Uint16("port", r.Port).
		Str("type", r.Type).
		Msg("service record")
	return nil
}

func (l *Log) WriteMagnification(m Magnification) error {
	l.logger.Debug().
		Str("scan_id", m.ScanID).
		Str("target", m.Target).
		Str("stage", m.Stage).
		Int("request_bytes", m.RequestBytes).
		Int("response_bytes", m.ResponseBytes).
		Float64("magnification", m.Magnification).
		Msg("stage magnification")
	return nil
}

func (l *Log) WriteSummary(s Summary) error {
	l.logger.Info().
		Str("scan_id", s.ScanID).
		Str("target", s.Target).
		Str("mode", s.Mode).
		Str("status", s.Status).
		Float64("initial_mag", s.InitialMagnification).
		Float64("overall_mag", s.OverallMagnification).
		Uint64("total_resp_len", s.TotalResponseBytes).
		Uint64("total_req_len", s.TotalRequestBytes).
		Int("service_count", s.ServiceCount).
		Dur("elapsed", s.Elapsed).
		Msg("scan summary")
	return nil
}

func (l *Log) Close() error {
	return nil
}
