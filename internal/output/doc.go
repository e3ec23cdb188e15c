// Package output provides the console surface for scans, with both
// streaming and buffered writers.
//
//   - StreamingOutput: Writes directly to io.Writer for sequential execution
//   - BufferedOutput: Collects output in memory so a sweep can print each
//     target's report in one piece
//   - NoOpOutput: Discards everything
//
// Report helpers (ReportOutcome, ReportTrial, ReportSpeed, ReportIssues)
// format scan and rate-test results for any Output.
//
// Usage Example:
//
//	out := output.NewBufferedOutput()
//	output.ReportOutcome(out, target, scanner.Scan(ctx, target, mdns.ModeAggregated))
//	out.Flush(os.Stdout)
//
// All implementations are thread-safe with mutex protection.
package output
