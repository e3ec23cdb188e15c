package mdns

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/R167/mdnsamp/checkers/common"
)

// Mode selects how stage 2 queries the discovered service names.
type Mode int

const (
	// ModeAggregated sends one batched query per response section.
	ModeAggregated Mode = iota
	// ModeSeparate sends one query per service name.
	ModeSeparate
)

func (m Mode) String() string {
	switch m {
	case ModeAggregated:
		return "aggregated"
	case ModeSeparate:
		return "separate"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Modes lists every scan mode in the order sweeps run them.
var Modes = []Mode{ModeAggregated, ModeSeparate}

// ParseMode accepts "aggregated" or "separate", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aggregated", "agg":
		return ModeAggregated, nil
	case "separate", "sep":
		return ModeSeparate, nil
	default:
		return 0, errors.Errorf("unknown scan mode %q (want aggregated or separate)", s)
	}
}

// Status is the terminal state of one scan.
type Status int

const (
	StatusSuccess Status = iota
	// StatusOffline means an exchange timed out, was reset, or failed locally.
	StatusOffline
	// StatusDecodeError means a reply arrived that does not parse as DNS.
	StatusDecodeError
	// StatusNoServices means stage 1 decoded with zero answers and zero additionals.
	StatusNoServices
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusOffline:
		return "offline"
	case StatusDecodeError:
		return "decode_error"
	case StatusNoServices:
		return "no_services"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result holds the measurements of a completed scan.
type Result struct {
	Target common.Target
	Mode   Mode

	InitialMagnification float64
	OverallMagnification float64

	TotalResponseBytes uint64
	TotalRequestBytes  uint64

	// ServiceCount is the declared answer plus additional count of the
	// enumeration reply.
	ServiceCount int
	// Services are the names stage 2 asked about.
	Services []string
	// Skipped counts stage 2 queries that got no usable reply (separate mode).
	Skipped int

	// Elapsed is the wall time of stage 2.
	Elapsed time.Duration
}

// Outcome is the single value every scan produces. Result is set only when
// Status is StatusSuccess; Err carries the cause for StatusOffline and
// StatusDecodeError.
type Outcome struct {
	ScanID string
	Status Status
	Result *Result
	Err    error
}

// OK reports whether the scan finished with StatusSuccess.
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

func (o Outcome) String() string {
	if o.Result != nil {
		return fmt.Sprintf("%s (initial %.2fx, overall %.2fx)", o.Status, o.Result.InitialMagnification, o.Result.OverallMagnification)
	}
	if o.Err != nil {
		return fmt.Sprintf("%s: %v", o.Status, o.Err)
	}
	return o.Status.String()
}

// Magnification is resp/req, or 0 when nothing was sent.
func Magnification(resp, req uint64) float64 {
	if req == 0 {
		return 0
	}
	return float64(resp) / float64(req)
}
