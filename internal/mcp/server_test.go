package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/R167/mdnsamp/internal/logger"
)

func noop(context.Context, *CheckToolInput) (*CheckToolOutput, error) {
	return &CheckToolOutput{}, nil
}

func TestCheckerRegistry_Names(t *testing.T) {
	reg := NewCheckerRegistry()
	reg.Register("test_concurrency", noop)
	reg.Register("scan_amplification", noop)

	assert.Equal(t, []string{"scan_amplification", "test_concurrency"}, reg.Names())
	assert.NotNil(t, NewServer(reg, "test", logger.NewTestLogger()))
}

func TestGetDescription(t *testing.T) {
	assert.Contains(t, getDescription("scan_amplification"), "amplifies")
	assert.Equal(t, "unknown_tool", getDescription("unknown_tool"))
}
