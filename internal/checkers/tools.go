// Package checkers adapts scans and rate tests to MCP tool calls.
package checkers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/R167/mdnsamp/checkers/common"
	"github.com/R167/mdnsamp/checkers/mdns"
	"github.com/R167/mdnsamp/checkers/ratetest"
	"github.com/R167/mdnsamp/internal/mcp"
	"github.com/R167/mdnsamp/internal/output"
	"github.com/R167/mdnsamp/internal/runner"
	"github.com/R167/mdnsamp/internal/security"
)

// Limits applied to tool input so a single call stays bounded.
const (
	MaxToolWorkers        = 32
	MaxToolScansPerWorker = 100
	MaxToolCoolDown       = 5 * time.Minute
	MaxToolDuration       = 5 * time.Minute
)

// Tools serves MCP calls using the settings of a base run context.
type Tools struct {
	base *runner.RunContext
}

func NewTools(base *runner.RunContext) *Tools {
	return &Tools{base: base}
}

// Register adds every tool to reg.
func (t *Tools) Register(reg *mcp.CheckerRegistry) {
	reg.Register("scan_amplification", t.ScanAmplification)
	reg.Register("test_concurrency", t.TestConcurrency)
	reg.Register("sustain_speed", t.SustainSpeed)
}

// runContext derives a per-call context from the base and validates the target.
func (t *Tools) runContext(ctx context.Context, input *mcp.CheckToolInput) (*runner.RunContext, error) {
	rc := *t.base
	rc.Ctx = ctx

	if input.TimeoutMs > 0 {
		rc.Timeout = time.Duration(input.TimeoutMs) * time.Millisecond
	}

	port := rc.Target.Port
	if input.Port != 0 {
		if err := security.ValidatePort(input.Port); err != nil {
			return nil, err
		}
		port = uint16(input.Port)
	}

	if input.Target != "" {
		target, err := common.ParseTarget(input.Target, port)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid target %q", input.Target)
		}
		rc.Target = target
	} else if rc.Target.Host == "" {
		target, err := runner.DefaultTarget(port)
		if err != nil {
			return nil, err
		}
		rc.Target = target
	}

	if err := rc.ValidateTarget(rc.Target); err != nil {
		return nil, err
	}
	return &rc, nil
}

func modes(s string) ([]mdns.Mode, error) {
	if s == "" || strings.EqualFold(s, "both") {
		return mdns.Modes, nil
	}
	m, err := mdns.ParseMode(s)
	if err != nil {
		return nil, err
	}
	return []mdns.Mode{m}, nil
}

func render(buf *output.BufferedOutput) string {
	var sb strings.Builder
	buf.Flush(&sb)
	return sb.String()
}

func scanRow(o mdns.Outcome, mode mdns.Mode) mcp.ScanRow {
	row := mcp.ScanRow{
		ScanID: o.ScanID,
		Mode:   mode.String(),
		Status: o.Status.String(),
	}
	if o.Err != nil {
		row.Error = o.Err.Error()
	}
	if r := o.Result; r != nil {
		row.InitialMagnification = r.InitialMagnification
		row.OverallMagnification = r.OverallMagnification
		row.TotalResponseBytes = r.TotalResponseBytes
		row.TotalRequestBytes = r.TotalRequestBytes
		row.ServiceCount = r.ServiceCount
		row.ElapsedMs = r.Elapsed.Milliseconds()
	}
	return row
}

func toIssues(in []common.SecurityIssue) []mcp.Issue {
	issues := make([]mcp.Issue, len(in))
	for i, iss := range in {
		issues[i] = mcp.Issue{
			Severity:    iss.Severity,
			Description: iss.Description,
			Details:     iss.Details,
		}
	}
	return issues
}

// ScanAmplification scans the target in the requested modes and grades the result.
func (t *Tools) ScanAmplification(ctx context.Context, input *mcp.CheckToolInput) (*mcp.CheckToolOutput, error) {
	rc, err := t.runContext(ctx, input)
	if err != nil {
		return nil, err
	}
	scanModes, err := modes(input.Mode)
	if err != nil {
		return nil, err
	}

	scanner := rc.Scanner()
	buf := output.NewBufferedOutput()
	buf.Section("📡", "mDNS amplification scan of "+rc.Target.String())

	result := &mcp.CheckToolOutput{Issues: []mcp.Issue{}}
	var assessed []common.SecurityIssue
	best := 0.0
	for _, mode := range scanModes {
		o := scanner.Scan(ctx, rc.Target, mode)
		output.ReportOutcome(buf, rc.Target, o)
		result.Scans = append(result.Scans, scanRow(o, mode))

		if o.Result != nil && o.Result.OverallMagnification >= best {
			best = o.Result.OverallMagnification
			assessed = mdns.Assess(*o.Result)
		}
	}

	output.ReportIssues(buf, assessed)
	result.Issues = append(result.Issues, toIssues(assessed)...)
	result.Report = render(buf)
	result.Summary = fmt.Sprintf("%s: best overall magnification %.2f across %d scans, %d issues",
		rc.Target, best, len(result.Scans), len(result.Issues))

	return result, nil
}

// TestConcurrency runs trials with 1..max_workers concurrent workers.
func (t *Tools) TestConcurrency(ctx context.Context, input *mcp.CheckToolInput) (*mcp.CheckToolOutput, error) {
	rc, err := t.runContext(ctx, input)
	if err != nil {
		return nil, err
	}

	maxWorkers := input.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if maxWorkers > MaxToolWorkers {
		return nil, errors.Errorf("max_workers %d exceeds the limit of %d", maxWorkers, MaxToolWorkers)
	}

	cfg := rc.Rate
	if input.ScansPerWorker > MaxToolScansPerWorker {
		return nil, errors.Errorf("scans_per_worker %d exceeds the limit of %d", input.ScansPerWorker, MaxToolScansPerWorker)
	}
	if input.ScansPerWorker > 0 {
		cfg.ScansPerWorker = input.ScansPerWorker
	}
	if input.CoolDownSeconds != nil {
		coolDown := time.Duration(*input.CoolDownSeconds) * time.Second
		if coolDown < 0 || coolDown > MaxToolCoolDown {
			return nil, errors.Errorf("cool_down_seconds %d outside 0..%d", *input.CoolDownSeconds, int(MaxToolCoolDown/time.Second))
		}
		cfg.CoolDown = coolDown
	}

	buf := output.NewBufferedOutput()
	output.TrialHeader(buf)
	cfg.OnTrial = func(tr ratetest.Trial) { output.ReportTrial(buf, tr) }
	rc.Rate = cfg

	trials, err := rc.Tester().TestConcurrency(ctx, rc.Target, maxWorkers)
	if err != nil && len(trials) == 0 {
		return nil, err
	}

	result := &mcp.CheckToolOutput{Issues: []mcp.Issue{}}
	for _, tr := range trials {
		result.Trials = append(result.Trials, mcp.TrialRow{
			Workers:    tr.Workers,
			Penalty:    tr.Penalty,
			LossRate:   tr.LossRate,
			Throughput: tr.Throughput,
			DurationMs: tr.Duration.Milliseconds(),
		})
	}
	result.Report = render(buf)
	result.Summary = fmt.Sprintf("%s: %d of %d trials completed", rc.Target, len(trials), maxWorkers)
	if err != nil {
		result.Summary += fmt.Sprintf(" (stopped: %v)", err)
	}

	return result, nil
}

// SustainSpeed repeats aggregated scans for duration_seconds.
func (t *Tools) SustainSpeed(ctx context.Context, input *mcp.CheckToolInput) (*mcp.CheckToolOutput, error) {
	rc, err := t.runContext(ctx, input)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(input.DurationSeconds) * time.Second
	if duration <= 0 {
		duration = 10 * time.Second
	}
	if duration > MaxToolDuration {
		return nil, errors.Errorf("duration %s exceeds the limit of %s", duration, MaxToolDuration)
	}

	report := rc.Tester().Sustain(ctx, rc.Target, duration)

	buf := output.NewBufferedOutput()
	output.ReportSpeed(buf, rc.Target, report)

	return &mcp.CheckToolOutput{
		Issues:  []mcp.Issue{},
		Summary: fmt.Sprintf("%s: %d scans at %.2f scans/s", rc.Target, report.Scans, report.Rate),
		Report:  render(buf),
	}, nil
}
