// Package runner resolves the settings of a run and drives multi-target work.
//
// Key Components:
//
//   - RunContext: Carries the target, timeouts, scan modes, target policy,
//     sink and logger, and builds scanners and rate testers from them
//   - DiscoverGateway: Default target when none is given
//   - ParseTargets/LoadTargets: Target lists (one ip[:port] per line, or the
//     first column of a CSV export)
//   - Sweep: Bounded, paced scanning of a target list with per-target
//     buffered reports and a SweepReport of maxima
//
// Usage Example:
//
//	rc := runner.NewRunContext(ctx).
//	    WithTimeout(2 * time.Second).
//	    WithConcurrency(32).
//	    WithRatePerSecond(50).
//	    WithSink(csvSink)
//
//	targets, _ := runner.LoadTargets("targets.csv", 5353)
//	report, err := runner.Sweep(rc, targets)
package runner
