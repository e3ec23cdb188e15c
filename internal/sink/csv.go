package sink

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

const (
	ServiceFile     = "service.csv"
	MagnifyFile     = "service_magnify.csv"
	SummaryFile     = "scan_summary.csv"
	csvFilePerm     = 0o644
	csvDirPerm      = 0o755
	floatFormatting = 'f'
)

var (
	serviceHeader = []string{"scan_id", "target", "name", "data", "port", "type"}
	magnifyHeader = []string{"scan_id", "target", "stage", "request_bytes", "response_bytes", "magnification"}
	summaryHeader = []string{
		"scan_id", "target", "mode", "status", "initial_mag", "overall_mag",
		"total_resp_len", "total_req_len", "service_count", "elapsed_seconds",
	}
)

type csvFile struct {
	f *os.File
	w *csv.Writer
}

// CSV appends rows to three files in one directory. Headers are written
// only when a file is created.
type CSV struct {
	mu      sync.Mutex
	service *csvFile
	magnify *csvFile
	summary *csvFile
}

// NewCSV opens or creates the three CSV files in dir for appending.
func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, csvDirPerm); err != nil {
		return nil, errors.Wrapf(err, "failed to create sink directory %s", dir)
	}

	s := &CSV{}

	var err error
	if s.service, err = openCSV(filepath.Join(dir, ServiceFile), serviceHeader); err != nil {
		return nil, err
	}
	if s.magnify, err = openCSV(filepath.Join(dir, MagnifyFile), magnifyHeader); err != nil {
		s.service.f.Close()
		return nil, err
	}
	if s.summary, err = openCSV(filepath.Join(dir, SummaryFile), summaryHeader); err != nil {
		s.service.f.Close()
		s.magnify.f.Close()
		return nil, err
	}

	return s, nil
}

func openCSV(path string, header []string) (*csvFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, csvFilePerm)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}

	cf := &csvFile{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := cf.write(header); err != nil {
			f.Close()
			return nil, err
		}
	}

	return cf, nil
}

func (c *csvFile) write(row []string) error {
	if err := c.w.Write(row); err != nil {
		return errors.Wrap(err, "failed to write csv row")
	}
	c.w.Flush()
	return c.w.Error()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, floatFormatting, 4, 64)
}

func (s *CSV) WriteRecord(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.service.write([]string{
		r.ScanID, r.Target, r.Name, r.Data, strconv.Itoa(int(r.Port)), r.Type,
	})
}

func (s *CSV) WriteMagnification(m Magnification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.magnify.write([]string{
		m.ScanID, m.Target, m.Stage,
		strconv.Itoa(m.RequestBytes), strconv.Itoa(m.ResponseBytes), ftoa(m.Magnification),
	})
}

func (s *CSV) WriteSummary(sm Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary.write([]string{
		sm.ScanID, sm.Target, sm.Mode, sm.Status,
		ftoa(sm.InitialMagnification), ftoa(sm.OverallMagnification),
		strconv.FormatUint(sm.TotalResponseBytes, 10), strconv.FormatUint(sm.TotalRequestBytes, 10),
		strconv.Itoa(sm.ServiceCount), ftoa(sm.Elapsed.Seconds()),
	})
}

func (s *CSV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, cf := range []*csvFile{s.service, s.magnify, s.summary} {
		cf.w.Flush()
		if err := cf.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
