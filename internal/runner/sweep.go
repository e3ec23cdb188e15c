package runner

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/R167/mdnsamp/checkers/common"
	"github.com/R167/mdnsamp/checkers/mdns"
	"github.com/R167/mdnsamp/internal/output"
	"github.com/R167/mdnsamp/internal/security"
)

// DefaultConcurrency bounds the targets a sweep scans at once.
const DefaultConcurrency = 16

// SweepReport aggregates a sweep. Maxima are taken over successful scans.
type SweepReport struct {
	Targets  int
	Rejected int
	Scans    int
	Counts   map[mdns.Status]int

	MaxInitialMagnification float64
	MaxOverallMagnification float64
	MaxResponseBytes        uint64
	// Amplifiers lists targets whose overall magnification reached
	// mdns.MediumMagnification in any mode.
	Amplifiers []common.Target
}

func (r *SweepReport) add(o mdns.Outcome) {
	r.Scans++
	r.Counts[o.Status]++

	if o.Result == nil {
		return
	}
	res := o.Result
	if res.InitialMagnification > r.MaxInitialMagnification {
		r.MaxInitialMagnification = res.InitialMagnification
	}
	if res.OverallMagnification > r.MaxOverallMagnification {
		r.MaxOverallMagnification = res.OverallMagnification
	}
	if res.TotalResponseBytes > r.MaxResponseBytes {
		r.MaxResponseBytes = res.TotalResponseBytes
	}
}

// Sweep scans every target in each of rc.Modes with at most rc.Concurrency
// targets in flight, paced at rc.RatePerSecond. Targets rejected by the run's
// policy are counted and skipped. Each target's report is buffered and
// written to rc.Writer in one piece.
func Sweep(rc *RunContext, targets []common.Target) (SweepReport, error) {
	report := SweepReport{
		Targets: len(targets),
		Counts:  make(map[mdns.Status]int),
	}

	log := rc.Logger.With().Str("component", "sweep").Logger()
	// every write to rc.Writer goes through out's lock
	out := output.NewStreamingOutput(rc.Writer)
	scanner := rc.Scanner()
	limiter := security.SweepLimiter(rc.RatePerSecond)

	var mu sync.Mutex

	g, ctx := errgroup.WithContext(rc.Ctx)
	if rc.Concurrency > 0 {
		g.SetLimit(rc.Concurrency)
	}

	for _, target := range targets {
		if err := rc.ValidateTarget(target); err != nil {
			log.Warn().Err(err).Str("target", target.String()).Msg("target rejected")
			out.Warning("skipping %s: %v", target, err)
			report.Rejected++
			continue
		}

		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}

			buf := output.NewBufferedOutput()
			buf.Section("📡", target.String())

			amplifier := false
			outcomes := make([]mdns.Outcome, 0, len(rc.Modes))
			for _, mode := range rc.Modes {
				o := scanner.Scan(ctx, target, mode)
				output.ReportOutcome(buf, target, o)
				outcomes = append(outcomes, o)
				if o.Result != nil && o.Result.OverallMagnification >= mdns.MediumMagnification {
					amplifier = true
				}
				if o.Status == mdns.StatusOffline {
					// an offline target is not retried in the remaining modes
					break
				}
			}

			mu.Lock()
			defer mu.Unlock()
			for _, o := range outcomes {
				report.add(o)
			}
			if amplifier {
				report.Amplifiers = append(report.Amplifiers, target)
			}
			out.FlushFrom(buf)

			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = rc.Ctx.Err()
	}

	log.Info().
		Int("targets", report.Targets).
		Int("scans", report.Scans).
		Int("rejected", report.Rejected).
		Float64("max_overall_mag", report.MaxOverallMagnification).
		Msg("sweep finished")

	return report, err
}

// ReportSweep prints the totals of a sweep.
func ReportSweep(out output.Output, r SweepReport) {
	out.Header("Sweep summary")
	out.Info("Targets: %d (%d rejected)", r.Targets, r.Rejected)
	out.Info("Scans:   %d", r.Scans)
	for _, status := range []mdns.Status{mdns.StatusSuccess, mdns.StatusNoServices, mdns.StatusDecodeError, mdns.StatusOffline} {
		out.Detail("%-12s %d", status, r.Counts[status])
	}
	out.Info("Max DNS-SD magnification: %.2f", r.MaxInitialMagnification)
	out.Info("Max mDNS magnification:   %.2f", r.MaxOverallMagnification)
	out.Info("Max response length:      %d bytes", r.MaxResponseBytes)
	if len(r.Amplifiers) > 0 {
		out.Warning("%d targets amplify by %.0fx or more", len(r.Amplifiers), mdns.MediumMagnification)
		for _, t := range r.Amplifiers {
			out.Detail("%s", t)
		}
	}
}
