package ratetest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/R167/mdnsamp/checkers/common"
	"github.com/R167/mdnsamp/checkers/mdns"
	"github.com/R167/mdnsamp/internal/parallel"
)

// unitsPerScan is the number of exchanges one aggregated scan is charged for.
const unitsPerScan = 2

// Scanner is satisfied by *mdns.Scanner.
type Scanner interface {
	Scan(ctx context.Context, target common.Target, mode mdns.Mode) mdns.Outcome
}

// Config controls the size and pacing of trials.
type Config struct {
	ScansPerWorker int
	// CoolDown is the pause between trials.
	CoolDown time.Duration
	// OnTrial, if set, is called after each trial completes.
	OnTrial func(Trial)
}

// DefaultConfig runs 5 scans per worker with a 30s cool-down.
func DefaultConfig() Config {
	return Config{
		ScansPerWorker: common.DefaultScansPerWorker,
		CoolDown:       common.DefaultCoolDown,
	}
}

// Trial is the measurement for one worker count.
type Trial struct {
	Workers    int
	Scans      int
	Penalty    int64
	LossRate   float64
	Throughput float64 // exchange units per second
	Duration   time.Duration
}

// Tester runs concurrency trials against one target.
type Tester struct {
	scanner Scanner
	cfg     Config
	logger  zerolog.Logger
}

// NewTester fills unset Config fields with defaults.
func NewTester(scanner Scanner, cfg Config, logger zerolog.Logger) *Tester {
	if cfg.ScansPerWorker <= 0 {
		cfg.ScansPerWorker = common.DefaultScansPerWorker
	}
	if cfg.CoolDown < 0 {
		cfg.CoolDown = 0
	}
	return &Tester{scanner: scanner, cfg: cfg, logger: logger}
}

// Penalty is the number of lost exchange units charged for an outcome.
func Penalty(o mdns.Outcome) int64 {
	switch o.Status {
	case mdns.StatusOffline, mdns.StatusDecodeError:
		return 2
	case mdns.StatusNoServices:
		return 1
	case mdns.StatusSuccess:
		if o.Result == nil || o.Result.OverallMagnification == 0 {
			return 1
		}
		return 0
	default:
		return 2
	}
}

// TestConcurrency runs trials for 1..maxWorkers workers, pausing CoolDown
// between them. On cancellation it returns the trials completed so far along
// with the context error.
func (t *Tester) TestConcurrency(ctx context.Context, target common.Target, maxWorkers int) ([]Trial, error) {
	if maxWorkers < 1 {
		return nil, errors.Errorf("max workers must be at least 1, got %d", maxWorkers)
	}

	trials := make([]Trial, 0, maxWorkers)
	for j := 1; j <= maxWorkers; j++ {
		if j > 1 {
			if err := t.coolDown(ctx); err != nil {
				return trials, err
			}
		}

		trial, err := t.RunTrial(ctx, target, j)
		if err != nil {
			return trials, err
		}
		trials = append(trials, trial)

		t.logger.Info().
			Int("workers", trial.Workers).
			Int64("penalty", trial.Penalty).
			Float64("loss_rate", trial.LossRate).
			Float64("throughput", trial.Throughput).
			Dur("duration", trial.Duration).
			Msg("trial complete")

		if t.cfg.OnTrial != nil {
			t.cfg.OnTrial(trial)
		}
	}

	return trials, nil
}

// RunTrial spawns exactly workers goroutines, each running ScansPerWorker
// sequential aggregated scans, and reduces their penalties.
func (t *Tester) RunTrial(ctx context.Context, target common.Target, workers int) (Trial, error) {
	var penalty atomic.Int64
	spw := t.cfg.ScansPerWorker

	start := time.Now()
	err := parallel.FanOut(ctx, workers, func(ctx context.Context, _ int) error {
		for i := 0; i < spw; i++ {
			penalty.Add(Penalty(t.scanner.Scan(ctx, target, mdns.ModeAggregated)))
		}
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		return Trial{}, err
	}
	if err := ctx.Err(); err != nil {
		return Trial{}, err
	}

	units := int64(unitsPerScan * workers * spw)
	trial := Trial{
		Workers:  workers,
		Scans:    workers * spw,
		Penalty:  penalty.Load(),
		Duration: duration,
	}
	trial.LossRate = float64(trial.Penalty) / float64(units)
	if duration > 0 {
		trial.Throughput = float64(units-trial.Penalty) / duration.Seconds()
	}

	return trial, nil
}

func (t *Tester) coolDown(ctx context.Context) error {
	if t.cfg.CoolDown == 0 {
		return ctx.Err()
	}

	t.logger.Debug().Dur("cool_down", t.cfg.CoolDown).Msg("waiting before next trial")

	timer := time.NewTimer(t.cfg.CoolDown)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SpeedReport summarises a Sustain run.
type SpeedReport struct {
	Scans    int
	Elapsed  time.Duration
	Rate     float64 // scans per second
	Outcomes map[mdns.Status]int
}

// Sustain repeats aggregated scans against target until duration elapses or
// ctx is done. A scan that is already running when time runs out completes.
func (t *Tester) Sustain(ctx context.Context, target common.Target, duration time.Duration) SpeedReport {
	report := SpeedReport{Outcomes: make(map[mdns.Status]int)}

	start := time.Now()
	deadline := start.Add(duration)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		out := t.scanner.Scan(ctx, target, mdns.ModeAggregated)
		report.Outcomes[out.Status]++
		report.Scans++
	}
	report.Elapsed = time.Since(start)

	if report.Elapsed > 0 {
		report.Rate = float64(report.Scans) / report.Elapsed.Seconds()
	}

	t.logger.Info().
		Int("scans", report.Scans).
		Dur("elapsed", report.Elapsed).
		Float64("rate", report.Rate).
		Msg("speed test complete")

	return report
}
