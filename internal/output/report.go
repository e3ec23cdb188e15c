package output

import (
	"time"

	"github.com/R167/mdnsamp/checkers/common"
	"github.com/R167/mdnsamp/checkers/mdns"
	"github.com/R167/mdnsamp/checkers/ratetest"
)

var severityIcons = map[string]string{
	common.SeverityCritical: "🚨",
	common.SeverityHigh:     "🔴",
	common.SeverityMedium:   "🟠",
	common.SeverityLow:      "🟡",
}

// ReportOutcome prints one scan outcome. Magnifications are rounded to two
// decimals here and nowhere else.
func ReportOutcome(out Output, target common.Target, o mdns.Outcome) {
	switch o.Status {
	case mdns.StatusSuccess:
		r := o.Result
		out.Success("%s answered (%s mode)", target, r.Mode)
		out.Detail("Initial DNS-SD magnification: %.2f", r.InitialMagnification)
		out.Detail("Overall mDNS magnification:   %.2f", r.OverallMagnification)
		out.Detail("Total response length: %d bytes", r.TotalResponseBytes)
		out.Detail("Total request length:  %d bytes", r.TotalRequestBytes)
		out.Detail("Service count: %d", r.ServiceCount)
		out.Detail("Stage 2 time: %s", r.Elapsed)
		if r.Skipped > 0 {
			out.Warning("%d of %d service names got no reply", r.Skipped, len(r.Services))
		}
		for _, svc := range r.Services {
			out.Debug("queried %s", svc)
		}
	case mdns.StatusNoServices:
		out.Info("%s answered but advertises no services", target)
	case mdns.StatusDecodeError:
		out.Warning("%s sent an undecodable reply: %v", target, o.Err)
	case mdns.StatusOffline:
		out.Error("%s is offline: %v", target, o.Err)
	}
	out.Debug("scan id %s", o.ScanID)
}

func ReportIssues(out Output, issues []common.SecurityIssue) {
	if len(issues) == 0 {
		return
	}
	out.Section("🛡️", "Findings")
	for _, issue := range issues {
		out.Info("%s %s: %s", severityIcons[issue.Severity], issue.Severity, issue.Description)
		out.Detail("%s", issue.Details)
	}
}

// TrialHeader prints the column header used by ReportTrial.
func TrialHeader(out Output) {
	out.Printf("%-8s %-10s %-12s %-14s %s\n", "Workers", "Penalty", "Loss Rate", "Send Speed", "Duration")
}

func ReportTrial(out Output, t ratetest.Trial) {
	out.Printf("%-8d %-10d %-12s %-14s %s\n",
		t.Workers, t.Penalty,
		formatPercent(t.LossRate),
		formatRate(t.Throughput, "pkt/s"),
		t.Duration.Round(time.Millisecond))
}

func ReportSpeed(out Output, target common.Target, r ratetest.SpeedReport) {
	out.Success("Sent %d scans to %s in %.2f seconds (%s)", r.Scans, target, r.Elapsed.Seconds(), formatRate(r.Rate, "scans/s"))
	for _, status := range []mdns.Status{mdns.StatusSuccess, mdns.StatusNoServices, mdns.StatusDecodeError, mdns.StatusOffline} {
		if n := r.Outcomes[status]; n > 0 {
			out.Detail("%-12s %d", status, n)
		}
	}
}
