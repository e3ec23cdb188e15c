package mdns

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R167/mdnsamp/checkers/common"
	"github.com/R167/mdnsamp/internal/logger"
	"github.com/R167/mdnsamp/internal/responder"
	"github.com/R167/mdnsamp/internal/sink"
	"github.com/R167/mdnsamp/internal/transport"
	"github.com/R167/mdnsamp/internal/wire"
)

const testTimeout = 300 * time.Millisecond

var labServices = []responder.Service{
	{Instance: "printer", Service: "_ipp._tcp", Port: 631, TXT: []string{"rp=ipp/print"}},
	{Instance: "nas", Service: "_smb._tcp", Port: 445, TXT: []string{"model=lab"}},
}

func startLab(t *testing.T, opts responder.Options) *responder.Responder {
	t.Helper()
	r, err := responder.New(opts, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, r.Listen("127.0.0.1:0"))
	t.Cleanup(func() { r.Close() })
	return r
}

func newTestScanner(mem *sink.Memory) *Scanner {
	log := logger.NewTestLogger()
	return NewScanner(Config{Timeout: testTimeout}, wire.NewCodec(log), mem, log)
}

func stages(mags []sink.Magnification) []string {
	out := make([]string, 0, len(mags))
	for _, m := range mags {
		out = append(out, m.Stage)
	}
	return out
}

func TestScan_Aggregated(t *testing.T) {
	lab := startLab(t, responder.Options{Services: labServices, AdditionalPTR: []string{"_http._tcp.local."}})
	mem := sink.NewMemory()

	out := newTestScanner(mem).Scan(context.Background(), lab.Target(), ModeAggregated)
	require.Equal(t, StatusSuccess, out.Status, "err: %v", out.Err)
	require.NotNil(t, out.Result)
	assert.NoError(t, out.Err)
	assert.NotEmpty(t, out.ScanID)

	r := out.Result
	assert.Equal(t, 3, r.ServiceCount)
	assert.ElementsMatch(t, []string{"_ipp._tcp.local.", "_smb._tcp.local.", "_http._tcp.local."}, r.Services)
	assert.Equal(t, 3, lab.Queries(), "one enumeration plus one query per section")

	mags := mem.Magnifications()
	assert.Equal(t, []string{StageEnumeration, StageFollowupAnswer, StageFollowupAdditional}, stages(mags))
	assert.Equal(t, 46, mags[0].RequestBytes)
	// _ipp._tcp.local. and _smb._tcp.local. are 17 bytes each, plus type and class
	assert.Equal(t, 12+2*21, mags[1].RequestBytes, "two uncompressed ANY questions")
	assert.Equal(t, 12+22, mags[2].RequestBytes)

	var req, resp uint64
	for _, m := range mags {
		req += uint64(m.RequestBytes)
		resp += uint64(m.ResponseBytes)
		assert.Equal(t, out.ScanID, m.ScanID)
	}
	assert.Equal(t, req, r.TotalRequestBytes)
	assert.Equal(t, resp, r.TotalResponseBytes)
	assert.InDelta(t, float64(resp)/float64(req), r.OverallMagnification, 1e-9)
	assert.InDelta(t, float64(mags[0].ResponseBytes)/46, r.InitialMagnification, 1e-9)
	assert.Greater(t, r.OverallMagnification, 1.0)

	summaries := mem.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, "success", summaries[0].Status)
	assert.Equal(t, "aggregated", summaries[0].Mode)
	assert.Equal(t, r.TotalResponseBytes, summaries[0].TotalResponseBytes)

	var srvPorts []uint16
	for _, rec := range mem.Records() {
		assert.Equal(t, out.ScanID, rec.ScanID)
		if rec.Type == "SRV" {
			srvPorts = append(srvPorts, rec.Port)
		}
	}
	assert.ElementsMatch(t, []uint16{631, 445}, srvPorts)
}

func TestScan_Separate(t *testing.T) {
	lab := startLab(t, responder.Options{Services: labServices, AdditionalPTR: []string{"_http._tcp.local."}})
	mem := sink.NewMemory()

	out := newTestScanner(mem).Scan(context.Background(), lab.Target(), ModeSeparate)
	require.Equal(t, StatusSuccess, out.Status)

	assert.Equal(t, 4, lab.Queries(), "one enumeration plus one query per name")
	assert.Equal(t, 0, out.Result.Skipped)

	mags := mem.Magnifications()
	require.Len(t, mags, 4)
	var followupReq int
	for _, m := range mags[1:] {
		assert.Equal(t, StageFollowupSeparate, m.Stage)
		followupReq += m.RequestBytes
	}
	assert.Equal(t, 3*12+21+21+22, followupReq, "every name carries its own header")
}

func TestScan_SeparateSkipsFailedNames(t *testing.T) {
	lab := startLab(t, responder.Options{
		Services: labServices,
		Drop:     func(name string) bool { return name == "_smb._tcp.local." },
	})
	mem := sink.NewMemory()

	out := newTestScanner(mem).Scan(context.Background(), lab.Target(), ModeSeparate)
	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, 1, out.Result.Skipped)

	// the dropped name adds nothing to either total
	mags := mem.Magnifications()
	require.Len(t, mags, 2)
	assert.Equal(t, uint64(mags[0].RequestBytes+mags[1].RequestBytes), out.Result.TotalRequestBytes)
}

func TestScan_SeparateDropsLateReplies(t *testing.T) {
	if testing.Short() {
		t.Skip("timing dependent")
	}

	// _ipp's reply arrives after its own timeout, while _smb is in flight
	lab := startLab(t, responder.Options{
		Services: labServices,
		Delay: func(name string) time.Duration {
			switch name {
			case "_ipp._tcp.local.":
				return testTimeout + 100*time.Millisecond
			case "_smb._tcp.local.":
				return 200 * time.Millisecond
			}
			return 0
		},
	})
	mem := sink.NewMemory()

	out := newTestScanner(mem).Scan(context.Background(), lab.Target(), ModeSeparate)
	require.Equal(t, StatusSuccess, out.Status, "err: %v", out.Err)
	assert.Equal(t, 1, out.Result.Skipped)

	var ports []uint16
	for _, r := range mem.Records() {
		if r.Type == "SRV" {
			ports = append(ports, r.Port)
		}
	}
	assert.Equal(t, []uint16{445}, ports, "the late _ipp reply is not counted for _smb")
}

func TestScan_AggregatedAbortsOnFollowupFailure(t *testing.T) {
	lab := startLab(t, responder.Options{
		Services: labServices,
		Drop:     func(name string) bool { return name == "_smb._tcp.local." },
	})
	mem := sink.NewMemory()

	out := newTestScanner(mem).Scan(context.Background(), lab.Target(), ModeAggregated)
	assert.Equal(t, StatusOffline, out.Status)
	assert.Nil(t, out.Result)
	assert.True(t, errors.Is(out.Err, transport.ErrTimeout))

	summaries := mem.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, "offline", summaries[0].Status)
	assert.Zero(t, summaries[0].OverallMagnification)
}

func TestScan_DecodeError(t *testing.T) {
	lab := startLab(t, responder.Options{
		Services: labServices,
		Corrupt:  func(name string) bool { return name == wire.EnumerationName },
	})

	out := newTestScanner(sink.NewMemory()).Scan(context.Background(), lab.Target(), ModeAggregated)
	assert.Equal(t, StatusDecodeError, out.Status)
	assert.Nil(t, out.Result)
	assert.True(t, errors.Is(out.Err, wire.ErrDecode))
}

func TestScan_NoServices(t *testing.T) {
	lab := startLab(t, responder.Options{})
	mem := sink.NewMemory()

	for _, mode := range Modes {
		out := newTestScanner(mem).Scan(context.Background(), lab.Target(), mode)
		assert.Equal(t, StatusNoServices, out.Status, mode.String())
		assert.Nil(t, out.Result)
		assert.NoError(t, out.Err)
	}

	summaries := mem.Summaries()
	require.Len(t, summaries, 2)
	assert.Greater(t, summaries[0].InitialMagnification, 0.0, "enumeration still measured")
	assert.Equal(t, 2, lab.Queries(), "no follow-up is sent")
}

func TestScan_Offline(t *testing.T) {
	// bound but never read, so the query is swallowed
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	udp := pc.LocalAddr().(*net.UDPAddr)
	target := common.NewTarget(udp.IP.String(), uint16(udp.Port))
	mem := sink.NewMemory()

	for _, mode := range Modes {
		out := newTestScanner(mem).Scan(context.Background(), target, mode)
		assert.Equal(t, StatusOffline, out.Status)
		assert.Nil(t, out.Result, "offline outcomes carry no magnification")
		assert.Error(t, out.Err)
	}
	assert.Empty(t, mem.Magnifications())
	assert.Empty(t, mem.Records())
}

func TestScan_CancelledContext(t *testing.T) {
	lab := startLab(t, responder.Options{Services: labServices})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := newTestScanner(sink.NewMemory()).Scan(ctx, lab.Target(), ModeAggregated)
	assert.Equal(t, StatusOffline, out.Status)
	assert.Equal(t, 0, lab.Queries())
}

func TestScan_NilSink(t *testing.T) {
	lab := startLab(t, responder.Options{Services: labServices})
	log := logger.NewTestLogger()

	s := NewScanner(Config{Timeout: testTimeout}, wire.NewCodec(log), nil, log)
	out := s.Scan(context.Background(), lab.Target(), ModeAggregated)
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"aggregated", ModeAggregated, false},
		{"AGG", ModeAggregated, false},
		{" separate ", ModeSeparate, false},
		{"sep", ModeSeparate, false},
		{"both", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMagnification(t *testing.T) {
	assert.Equal(t, 0.0, Magnification(500, 0))
	assert.Equal(t, 10.0, Magnification(460, 46))
	assert.InDelta(t, 1.0/3, Magnification(1, 3), 1e-12)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "no_services", Outcome{Status: StatusNoServices}.String())
	assert.Equal(t, "offline: boom", Outcome{Status: StatusOffline, Err: errors.New("boom")}.String())
	assert.Equal(t, "success (initial 2.00x, overall 3.50x)",
		Outcome{Status: StatusSuccess, Result: &Result{InitialMagnification: 2, OverallMagnification: 3.5}}.String())
}

func TestAssess(t *testing.T) {
	target := common.NewTarget("192.168.1.10", 0)

	tests := []struct {
		name       string
		result     Result
		severities []string
	}{
		{
			name:       "strong amplifier",
			result:     Result{Target: target, InitialMagnification: 4, OverallMagnification: 12.5},
			severities: []string{common.SeverityHigh},
		},
		{
			name:       "initial stage decides when larger",
			result:     Result{Target: target, InitialMagnification: 10, OverallMagnification: 2},
			severities: []string{common.SeverityHigh},
		},
		{
			name:       "moderate amplifier",
			result:     Result{Target: target, OverallMagnification: 3},
			severities: []string{common.SeverityMedium},
		},
		{
			name:       "answers but barely",
			result:     Result{Target: target, OverallMagnification: 1.5},
			severities: []string{common.SeverityLow},
		},
		{
			name:   "no amplification",
			result: Result{Target: target, OverallMagnification: 1},
		},
		{
			name: "risky services listed once",
			result: Result{
				Target:               target,
				OverallMagnification: 0.5,
				Services:             []string{"_ssh._tcp.local.", "_http._tcp.local.", "_SSH._tcp.local."},
			},
			severities: []string{common.SeverityMedium},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Assess(tt.result)
			got := make([]string, 0, len(issues))
			for _, issue := range issues {
				got = append(got, issue.Severity)
			}
			if len(tt.severities) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.severities, got)
		})
	}
}
