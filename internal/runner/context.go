package runner

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/R167/mdnsamp/checkers/common"
	"github.com/R167/mdnsamp/checkers/mdns"
	"github.com/R167/mdnsamp/checkers/ratetest"
	"github.com/R167/mdnsamp/internal/output"
	"github.com/R167/mdnsamp/internal/security"
	"github.com/R167/mdnsamp/internal/sink"
	"github.com/R167/mdnsamp/internal/wire"
)

// RunContext carries the resolved settings and shared resources for a run.
// Every scan started from one RunContext shares its codec and sink.
//
// The context uses a builder pattern for easy construction:
//
//	rc := NewRunContext(context.Background()).
//	    WithTarget(common.NewTarget("192.168.1.20", 0)).
//	    WithTimeout(2 * time.Second).
//	    WithSink(csvSink)
type RunContext struct {
	Ctx     context.Context
	Target  common.Target
	Timeout time.Duration
	Modes   []mdns.Mode
	Policy  security.Policy

	// Sweep settings
	Concurrency   int
	RatePerSecond int

	Rate ratetest.Config

	Sink   sink.Sink
	Logger zerolog.Logger
	Writer io.Writer

	codec *wire.Codec
}

// NewRunContext returns a context scanning both modes with default timeouts.
func NewRunContext(ctx context.Context) *RunContext {
	return &RunContext{
		Ctx:         ctx,
		Timeout:     common.ExchangeTimeout,
		Modes:       mdns.Modes,
		Concurrency: DefaultConcurrency,
		Rate:        ratetest.DefaultConfig(),
		Sink:        sink.Discard{},
		Logger:      zerolog.Nop(),
		Writer:      os.Stdout,
	}
}

func (rc *RunContext) WithTarget(target common.Target) *RunContext {
	rc.Target = target
	return rc
}

func (rc *RunContext) WithTimeout(timeout time.Duration) *RunContext {
	rc.Timeout = timeout
	return rc
}

func (rc *RunContext) WithModes(modes ...mdns.Mode) *RunContext {
	rc.Modes = modes
	return rc
}

func (rc *RunContext) WithPolicy(p security.Policy) *RunContext {
	rc.Policy = p
	return rc
}

func (rc *RunContext) WithConcurrency(n int) *RunContext {
	rc.Concurrency = n
	return rc
}

func (rc *RunContext) WithRatePerSecond(n int) *RunContext {
	rc.RatePerSecond = n
	return rc
}

func (rc *RunContext) WithRateTest(cfg ratetest.Config) *RunContext {
	rc.Rate = cfg
	return rc
}

func (rc *RunContext) WithSink(s sink.Sink) *RunContext {
	rc.Sink = s
	return rc
}

func (rc *RunContext) WithLogger(logger zerolog.Logger) *RunContext {
	rc.Logger = logger
	rc.codec = nil
	return rc
}

func (rc *RunContext) WithWriter(w io.Writer) *RunContext {
	rc.Writer = w
	return rc
}

// Output returns a streaming writer over rc.Writer.
func (rc *RunContext) Output() output.Output {
	return output.NewStreamingOutput(rc.Writer)
}

// ValidateTarget applies the run's target policy to t.
func (rc *RunContext) ValidateTarget(t common.Target) error {
	if err := security.ValidatePort(int(t.Port)); err != nil {
		return err
	}
	return security.ValidateTarget(t.Host, rc.Policy)
}

// Scanner builds a scanner bound to the run's timeout, sink and logger.
func (rc *RunContext) Scanner() *mdns.Scanner {
	if rc.codec == nil {
		rc.codec = wire.NewCodec(rc.Logger.With().Str("component", "wire").Logger())
	}
	cfg := mdns.DefaultConfig()
	if rc.Timeout > 0 {
		cfg.Timeout = rc.Timeout
	}
	return mdns.NewScanner(cfg, rc.codec, rc.Sink, rc.Logger.With().Str("component", "scanner").Logger())
}

// Tester builds a rate tester around a fresh scanner.
func (rc *RunContext) Tester() *ratetest.Tester {
	return ratetest.NewTester(rc.Scanner(), rc.Rate, rc.Logger.With().Str("component", "ratetest").Logger())
}
