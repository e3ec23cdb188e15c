// Package sink persists scan telemetry. The scanner treats every Sink as a
// write-only append target; layout and storage belong to the implementation.
//
// Three kinds of entries are written:
//
//   - Record: one discovered service record (target, name, data, port, type)
//   - Magnification: one stage exchange (target, stage, request, response, factor)
//   - Summary: one finished scan (both magnifications, byte totals, service count)
//
// Implementations must be safe for concurrent use because the rate tester
// and the sweep driver run scans in parallel.
package sink

import (
	"errors"
	"time"
)

// Record is one decoded resource record of a scan.
type Record struct {
	ScanID string
	Target string
	Name   string
	Data   string
	Port   uint16
	Type   string
}

// Magnification is the byte accounting of one exchange.
type Magnification struct {
	ScanID        string
	Target        string
	Stage         string
	RequestBytes  int
	ResponseBytes int
	Magnification float64
}

// Summary is the final row of a scan, written for every outcome.
type Summary struct {
	ScanID               string
	Target               string
	Mode                 string
	Status               string
	InitialMagnification float64
	OverallMagnification float64
	TotalResponseBytes   uint64
	TotalRequestBytes    uint64
	ServiceCount         int
	Elapsed              time.Duration
}

// Sink receives scan output. Implementations must be safe for concurrent use.
type Sink interface {
	WriteRecord(Record) error
	WriteMagnification(Magnification) error
	WriteSummary(Summary) error
	Close() error
}

// Multi fans every entry out to all sinks and joins their errors.
type Multi []Sink

func (m Multi) WriteRecord(r Record) error {
	errs := make([]error, 0, len(m))
	for _, s := range m {
		errs = append(errs, s.WriteRecord(r))
	}
	return errors.Join(errs...)
}

func (m Multi) WriteMagnification(mg Magnification) error {
	errs := make([]error, 0, len(m))
	for _, s := range m {
		errs = append(errs, s.WriteMagnification(mg))
	}
	return errors.Join(errs...)
}

func (m Multi) WriteSummary(sm Summary) error {
	errs := make([]error, 0, len(m))
	for _, s := range m {
		errs = append(errs, s.WriteSummary(sm))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	errs := make([]error, 0, len(m))
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Discard drops everything.
type Discard struct{}

func (Discard) WriteRecord(Record) error               { return nil }
func (Discard) WriteMagnification(Magnification) error { return nil }
func (Discard) WriteSummary(Summary) error             { return nil }
func (Discard) Close() error                           { return nil }
