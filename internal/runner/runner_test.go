package runner

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R167/mdnsamp/checkers/common"
	"github.com/R167/mdnsamp/checkers/mdns"
	"github.com/R167/mdnsamp/internal/logger"
	"github.com/R167/mdnsamp/internal/responder"
	"github.com/R167/mdnsamp/internal/security"
	"github.com/R167/mdnsamp/internal/sink"
)

func TestNewRunContext(t *testing.T) {
	ctx := context.Background()
	rc := NewRunContext(ctx)

	if rc.Ctx != ctx {
		t.Error("NewRunContext should preserve context")
	}
	if rc.Timeout != common.ExchangeTimeout {
		t.Errorf("Timeout = %v, want %v", rc.Timeout, common.ExchangeTimeout)
	}
	if len(rc.Modes) != 2 {
		t.Errorf("Modes = %v, want both modes", rc.Modes)
	}
	if rc.Sink == nil {
		t.Error("Sink should default to a discarding sink")
	}
}

func TestRunContext_BuilderPattern(t *testing.T) {
	mem := sink.NewMemory()
	target := common.NewTarget("192.168.1.1", 0)

	rc := NewRunContext(context.Background())
	result := rc.WithTarget(target).
		WithTimeout(500 * time.Millisecond).
		WithModes(mdns.ModeSeparate).
		WithPolicy(security.Policy{AllowLoopback: true}).
		WithConcurrency(4).
		WithRatePerSecond(10).
		WithSink(mem)

	if result != rc {
		t.Error("builder methods should return same instance for chaining")
	}
	if rc.Target != target {
		t.Errorf("Target = %v, want %v", rc.Target, target)
	}
	if rc.Timeout != 500*time.Millisecond {
		t.Error("Builder pattern should set Timeout")
	}
	if len(rc.Modes) != 1 || rc.Modes[0] != mdns.ModeSeparate {
		t.Errorf("Modes = %v", rc.Modes)
	}
	if !rc.Policy.AllowLoopback {
		t.Error("Builder pattern should set Policy")
	}
	if rc.Concurrency != 4 || rc.RatePerSecond != 10 {
		t.Error("Builder pattern should set sweep settings")
	}
	if rc.Sink != mem {
		t.Error("Builder pattern should set Sink")
	}
}

func TestRunContext_ValidateTarget(t *testing.T) {
	rc := NewRunContext(context.Background())

	assert.NoError(t, rc.ValidateTarget(common.NewTarget("10.1.2.3", 0)))
	assert.Error(t, rc.ValidateTarget(common.NewTarget("127.0.0.1", 0)))
	assert.Error(t, rc.ValidateTarget(common.Target{Host: "10.1.2.3"}), "port zero")

	rc.WithPolicy(security.Policy{AllowLoopback: true})
	assert.NoError(t, rc.ValidateTarget(common.NewTarget("127.0.0.1", 0)))
}

func TestParseTargets(t *testing.T) {
	input := `IP,Port_5353_Status
# lab hosts
192.168.1.20,Open
"10.0.0.7",Open

10.0.0.8:5354
fd00::1
[fd00::2]:6000
`
	targets, err := ParseTargets(strings.NewReader(input), 5353)
	require.NoError(t, err)

	want := []common.Target{
		{Host: "192.168.1.20", Port: 5353},
		{Host: "10.0.0.7", Port: 5353},
		{Host: "10.0.0.8", Port: 5354},
		{Host: "fd00::1", Port: 5353},
		{Host: "fd00::2", Port: 6000},
	}
	assert.Equal(t, want, targets)
}

func TestParseTargets_BadPort(t *testing.T) {
	_, err := ParseTargets(strings.NewReader("10.0.0.1:99999\n"), 5353)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestGatewayFor(t *testing.T) {
	assert.Equal(t, "192.168.7.1", gatewayFor(net.ParseIP("192.168.7.42")))
	assert.Equal(t, "", gatewayFor(net.ParseIP("fd00::42")))
}

func TestDiscoverGateway_Format(t *testing.T) {
	gateway := DiscoverGateway()

	if gateway == "" {
		t.Skip("Gateway discovery failed (acceptable in test environments)")
	}

	if !strings.HasSuffix(gateway, ".1") {
		t.Errorf("DiscoverGateway() = %q, should end with '.1'", gateway)
	}
	if net.ParseIP(gateway) == nil {
		t.Errorf("DiscoverGateway() = %q, should be an IP", gateway)
	}
}

func startLab(t *testing.T, opts responder.Options) *responder.Responder {
	t.Helper()
	r, err := responder.New(opts, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, r.Listen("127.0.0.1:0"))
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSweep(t *testing.T) {
	busy := startLab(t, responder.Options{Services: []responder.Service{
		{Instance: "printer", Service: "_ipp._tcp", Port: 631, TXT: []string{"rp=ipp/print", "note=lab printer on the second floor"}},
		{Instance: "nas", Service: "_smb._tcp", Port: 445},
	}})
	quiet := startLab(t, responder.Options{})

	var buf bytes.Buffer
	mem := sink.NewMemory()
	rc := NewRunContext(context.Background()).
		WithTimeout(300 * time.Millisecond).
		WithPolicy(security.Policy{AllowLoopback: true}).
		WithConcurrency(2).
		WithSink(mem).
		WithWriter(&buf)

	targets := []common.Target{
		busy.Target(),
		quiet.Target(),
		common.NewTarget("8.8.8.8", 0),
	}

	report, err := Sweep(rc, targets)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Targets)
	assert.Equal(t, 1, report.Rejected, "public address rejected by policy")
	assert.Equal(t, 4, report.Scans, "two modes for each accepted target")
	assert.Equal(t, 2, report.Counts[mdns.StatusSuccess])
	assert.Equal(t, 2, report.Counts[mdns.StatusNoServices])
	assert.Greater(t, report.MaxOverallMagnification, 1.0)
	assert.Greater(t, report.MaxResponseBytes, uint64(0))
	assert.Len(t, mem.Summaries(), 4)

	got := buf.String()
	assert.Contains(t, got, "skipping 8.8.8.8:5353")
	assert.Contains(t, got, busy.Target().String())
	assert.Contains(t, got, "advertises no services")

	var summary bytes.Buffer
	ReportSweep(NewRunContext(context.Background()).WithWriter(&summary).Output(), report)
	assert.Contains(t, summary.String(), "Targets: 3 (1 rejected)")
}

func TestSweep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := NewRunContext(ctx).
		WithPolicy(security.Policy{AllowLoopback: true}).
		WithWriter(&bytes.Buffer{})

	report, err := Sweep(rc, []common.Target{common.NewTarget("127.0.0.1", 0)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Scans)
}

// exclusiveWriter fails a write that starts while another is in progress.
type exclusiveWriter struct {
	busy    atomic.Bool
	overlap atomic.Bool
	buf     bytes.Buffer
}

func (w *exclusiveWriter) Write(p []byte) (int, error) {
	if !w.busy.CompareAndSwap(false, true) {
		w.overlap.Store(true)
		return len(p), nil
	}
	defer w.busy.Store(false)
	time.Sleep(time.Millisecond)
	return w.buf.Write(p)
}

func TestSweep_SerializesWrites(t *testing.T) {
	lab := startLab(t, responder.Options{Services: []responder.Service{
		{Instance: "printer", Service: "_ipp._tcp", Port: 631},
	}})

	w := &exclusiveWriter{}
	rc := NewRunContext(context.Background()).
		WithTimeout(300 * time.Millisecond).
		WithPolicy(security.Policy{AllowLoopback: true}).
		WithConcurrency(4).
		WithWriter(w)

	var targets []common.Target
	for i := 0; i < 4; i++ {
		targets = append(targets, lab.Target())
	}
	for i := 1; i <= 50; i++ {
		targets = append(targets, common.NewTarget("8.8.4."+strconv.Itoa(i), 0))
	}

	report, err := Sweep(rc, targets)
	require.NoError(t, err)
	assert.Equal(t, 50, report.Rejected)
	assert.Equal(t, 8, report.Scans)
	assert.False(t, w.overlap.Load(), "sweep wrote to the writer from two goroutines at once")
	assert.Equal(t, 50, strings.Count(w.buf.String(), "skipping 8.8.4."))
}
