package mdns

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/R167/mdnsamp/checkers/common"
	"github.com/R167/mdnsamp/internal/sink"
	"github.com/R167/mdnsamp/internal/transport"
	"github.com/R167/mdnsamp/internal/wire"
)

// Stage labels used for magnification entries.
const (
	StageEnumeration        = "enumeration"
	StageFollowupAnswer     = "followup-answer"
	StageFollowupAdditional = "followup-additional"
	StageFollowupSeparate   = "followup-separate"
)

// Config holds per-exchange transport settings.
type Config struct {
	Timeout     time.Duration
	MaxDatagram int
}

// DefaultConfig uses a 2s receive timeout and 10240-byte datagrams.
func DefaultConfig() Config {
	return Config{
		Timeout:     common.ExchangeTimeout,
		MaxDatagram: common.MaxDatagramSize,
	}
}

// Scanner runs two-stage scans. A Scanner holds no per-scan state and may be
// shared by any number of goroutines; each Scan opens its own session.
type Scanner struct {
	cfg    Config
	codec  *wire.Codec
	sink   sink.Sink
	logger zerolog.Logger
}

// NewScanner returns a scanner writing to s. A nil sink discards everything.
func NewScanner(cfg Config, codec *wire.Codec, s sink.Sink, logger zerolog.Logger) *Scanner {
	if s == nil {
		s = sink.Discard{}
	}
	return &Scanner{cfg: cfg, codec: codec, sink: s, logger: logger}
}

// scan is the state of one Scan invocation.
type scan struct {
	id     string
	target common.Target
	mode   Mode
	sess   *transport.Session
	log    zerolog.Logger

	totalReq  uint64
	totalResp uint64
	initial   float64
}

// Scan probes target once in the given mode and always returns an Outcome.
func (s *Scanner) Scan(ctx context.Context, target common.Target, mode Mode) Outcome {
	run := &scan{
		id:     uuid.NewString(),
		target: target,
		mode:   mode,
	}
	run.log = s.logger.With().
		Str("scan_id", run.id).
		Str("target", target.String()).
		Str("mode", mode.String()).
		Logger()

	out := s.run(ctx, run)
	out.ScanID = run.id

	s.summarize(run, out)
	return out
}

func (s *Scanner) run(ctx context.Context, run *scan) Outcome {
	sess, err := transport.Open(run.target, transport.Options{
		Timeout:     s.cfg.Timeout,
		MaxDatagram: s.cfg.MaxDatagram,
	})
	if err != nil {
		run.log.Warn().Err(err).Msg("failed to open session")
		return Outcome{Status: StatusOffline, Err: err}
	}
	defer sess.Close()
	run.sess = sess

	// Stage 1
	query, err := s.codec.BuildEnumerationQuery()
	if err != nil {
		return Outcome{Status: StatusOffline, Err: err}
	}

	enum, status, err := s.exchange(ctx, run, query, StageEnumeration)
	if err != nil {
		return Outcome{Status: status, Err: err}
	}
	run.initial = Magnification(uint64(enum.Len()), uint64(query.Len()))

	if enum.Empty() {
		run.log.Debug().Float64("initial_mag", run.initial).Msg("no services advertised")
		return Outcome{Status: StatusNoServices}
	}

	// Stage 2
	result := &Result{
		Target:               run.target,
		Mode:                 run.mode,
		InitialMagnification: run.initial,
		ServiceCount:         int(enum.AnswerCount) + int(enum.AdditionalCount),
	}

	start := time.Now()
	switch run.mode {
	case ModeSeparate:
		s.separate(ctx, run, enum, result)
	default:
		if status, err := s.aggregated(ctx, run, enum, result); err != nil {
			return Outcome{Status: status, Err: err}
		}
	}
	result.Elapsed = time.Since(start)

	result.TotalRequestBytes = run.totalReq
	result.TotalResponseBytes = run.totalResp
	result.OverallMagnification = Magnification(run.totalResp, run.totalReq)

	return Outcome{Status: StatusSuccess, Result: result}
}

type section struct {
	stage   string
	records []wire.ServiceRecord
}

func sections(resp *wire.Response) []section {
	return []section{
		{stage: StageFollowupAnswer, records: resp.Answers},
		{stage: StageFollowupAdditional, records: resp.Additionals},
	}
}

// aggregated sends one follow-up per non-empty section. The first failed
// exchange ends the scan; earlier stage 2 bytes are discarded with it.
func (s *Scanner) aggregated(ctx context.Context, run *scan, enum *wire.Response, result *Result) (Status, error) {
	for _, sec := range sections(enum) {
		if len(sec.records) == 0 {
			continue
		}

		names := s.serviceNames(run, sec.records)
		if len(names) == 0 {
			run.log.Debug().Str("stage", sec.stage).Int("records", len(sec.records)).Msg("section has no queryable names")
			continue
		}
		result.Services = append(result.Services, names...)

		query, err := s.codec.BuildFollowupQuery(names, uint16(len(names)))
		if err != nil {
			return StatusOffline, err
		}

		if _, status, err := s.exchange(ctx, run, query, sec.stage); err != nil {
			return status, err
		}
	}
	return StatusSuccess, nil
}

// separate queries each name on its own. A failed name is logged and skipped.
func (s *Scanner) separate(ctx context.Context, run *scan, enum *wire.Response, result *Result) {
	for _, sec := range sections(enum) {
		for _, name := range s.serviceNames(run, sec.records) {
			result.Services = append(result.Services, name)

			query, err := s.codec.BuildFollowupQuery([]string{name}, 1)
			if err != nil {
				result.Skipped++
				continue
			}

			if _, _, err := s.exchange(ctx, run, query, StageFollowupSeparate); err != nil {
				run.log.Info().Err(err).Str("name", name).Msg("no reply for service name")
				result.Skipped++
			}
		}
	}
}

// serviceNames returns the encodable follow-up names carried by records.
func (s *Scanner) serviceNames(run *scan, records []wire.ServiceRecord) []string {
	names := make([]string, 0, len(records))
	for _, rec := range records {
		name, ok := rec.ServiceName()
		if !ok {
			continue
		}
		if _, err := s.codec.EncodeSubQuery(name); err != nil {
			run.log.Warn().Err(err).Str("name", name).Msg("skipping unencodable service name")
			continue
		}
		names = append(names, name)
	}
	return names
}

// exchange sends query, decodes the reply, and accounts for both. On failure
// it returns the status the scan would end with.
func (s *Scanner) exchange(ctx context.Context, run *scan, query *wire.Query, stage string) (*wire.Response, Status, error) {
	reply, err := run.sess.Exchange(ctx, query.Bytes())
	if err != nil {
		run.log.Debug().Err(err).
			Str("stage", stage).
			Str("failure", transport.Classify(err).String()).
			Msg("exchange failed")
		return nil, StatusOffline, err
	}

	resp, err := wire.DecodeResponse(reply)
	if err != nil {
		run.log.Warn().Err(err).Str("stage", stage).Int("length", len(reply)).Msg("undecodable reply")
		return nil, StatusDecodeError, err
	}

	run.totalReq += uint64(query.Len())
	run.totalResp += uint64(resp.Len())

	s.emitMagnification(run, stage, query.Len(), resp.Len())
	s.emitRecords(run, resp)

	return resp, StatusSuccess, nil
}

func (s *Scanner) emitMagnification(run *scan, stage string, req, resp int) {
	err := s.sink.WriteMagnification(sink.Magnification{
		ScanID:        run.id,
		Target:        run.target.String(),
		Stage:         stage,
		RequestBytes:  req,
		ResponseBytes: resp,
		Magnification: Magnification(uint64(resp), uint64(req)),
	})
	if err != nil {
		run.log.Warn().Err(err).Str("stage", stage).Msg("failed to write magnification")
	}
}

func (s *Scanner) emitRecords(run *scan, resp *wire.Response) {
	for _, records := range [][]wire.ServiceRecord{resp.Answers, resp.Additionals} {
		for _, rec := range records {
			var port uint16
			if rec.Port != nil {
				port = *rec.Port
			}
			err := s.sink.WriteRecord(sink.Record{
				ScanID: run.id,
				Target: run.target.String(),
				Name:   rec.Name,
				Data:   rec.DataString(),
				Port:   port,
				Type:   rec.TypeName(),
			})
			if err != nil {
				run.log.Warn().Err(err).Str("name", rec.Name).Msg("failed to write record")
			}
		}
	}
}

func (s *Scanner) summarize(run *scan, out Outcome) {
	summary := sink.Summary{
		ScanID:               run.id,
		Target:               run.target.String(),
		Mode:                 run.mode.String(),
		Status:               out.Status.String(),
		InitialMagnification: run.initial,
	}
	if r := out.Result; r != nil {
		summary.OverallMagnification = r.OverallMagnification
		summary.TotalRequestBytes = r.TotalRequestBytes
		summary.TotalResponseBytes = r.TotalResponseBytes
		summary.ServiceCount = r.ServiceCount
		summary.Elapsed = r.Elapsed
	}

	if err := s.sink.WriteSummary(summary); err != nil {
		run.log.Warn().Err(err).Msg("failed to write summary")
	}

	run.log.Debug().Str("status", out.Status.String()).Msg("scan finished")
}
