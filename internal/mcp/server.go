package mcp

import (
	"context"
	"sort"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

type CheckFunction func(ctx context.Context, input *CheckToolInput) (*CheckToolOutput, error)

type CheckerRegistry struct {
	checkers map[string]CheckFunction
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{
		checkers: make(map[string]CheckFunction),
	}
}

func (r *CheckerRegistry) Register(name string, fn CheckFunction) {
	r.checkers[name] = fn
}

// Names returns the registered tool names in sorted order.
func (r *CheckerRegistry) Names() []string {
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewServer builds an MCP server exposing every registered tool.
func NewServer(registry *CheckerRegistry, version string, logger zerolog.Logger) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "mdnsamp",
		Version: version,
	}, nil)

	for _, name := range registry.Names() {
		addChecker(server, name, registry.checkers[name], logger)
	}

	return server
}

// RunServer serves the registry over stdio until ctx is done or the client
// disconnects.
func RunServer(ctx context.Context, registry *CheckerRegistry, version string, logger zerolog.Logger) error {
	server := NewServer(registry, version, logger)

	if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		logger.Error().Err(err).Msg("MCP server failed")
		return err
	}

	return nil
}

func addChecker(server *mcpsdk.Server, name string, fn CheckFunction, logger zerolog.Logger) {
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        name,
		Description: getDescription(name),
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckToolInput) (*mcpsdk.CallToolResult, CheckToolOutput, error) {
		logger.Info().Str("tool", name).Str("target", input.Target).Msg("tool called")

		output, err := fn(ctx, &input)
		if err != nil {
			logger.Warn().Err(err).Str("tool", name).Msg("tool failed")
			return nil, CheckToolOutput{}, err
		}

		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{
				&mcpsdk.TextContent{Text: output.Report},
			},
		}, *output, nil
	})
}

func getDescription(name string) string {
	descriptions := map[string]string{
		"scan_amplification": "Measure how much an mDNS/DNS-SD responder amplifies unicast queries (aggregated and separate modes)",
		"test_concurrency":   "Measure loss rate and send speed against a responder for 1..max_workers concurrent workers",
		"sustain_speed":      "Repeat aggregated scans against a responder for duration_seconds and report the achieved rate",
	}

	if desc, ok := descriptions[name]; ok {
		return desc
	}
	return name
}
