// Package checkers groups the measurement packages of mdnsamp.
//
//   - mdns: the two-stage amplification scan of one responder
//   - ratetest: concurrency and sustained-rate tests built on mdns scans
//   - common: shared target, severity and default settings
//
// Each package is usable on its own; the cli, mcp and runner packages under
// internal/ wire them to the command line and MCP tools.
package checkers
