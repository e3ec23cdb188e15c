package responder

import (
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R167/mdnsamp/internal/logger"
)

func start(t *testing.T, opts Options) *Responder {
	t.Helper()
	r, err := New(opts, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, r.Listen("127.0.0.1:0"))
	t.Cleanup(func() { r.Close() })
	return r
}

func exchange(t *testing.T, r *Responder, qs ...dns.Question) (*dns.Msg, error) {
	t.Helper()
	m := new(dns.Msg)
	m.Id = dns.Id()
	m.Question = qs
	c := &dns.Client{Net: "udp", Timeout: 300 * time.Millisecond, UDPSize: 10240}
	in, _, err := c.Exchange(m, r.Target().Addr())
	return in, err
}

var labServices = []Service{
	{Instance: "printer", Service: "_ipp._tcp", Port: 631, TXT: []string{"rp=ipp/print"}},
	{Instance: "nas", Service: "_smb._tcp", Port: 445, TXT: []string{"model=lab"}},
}

func TestResponder_Enumeration(t *testing.T) {
	r := start(t, Options{Services: labServices, AdditionalPTR: []string{"_http._tcp.local."}})

	in, err := exchange(t, r, dns.Question{Name: enumName, Qtype: dns.TypePTR, Qclass: dns.ClassINET})
	require.NoError(t, err)

	require.Len(t, in.Answer, 2)
	ptrs := []string{in.Answer[0].(*dns.PTR).Ptr, in.Answer[1].(*dns.PTR).Ptr}
	assert.ElementsMatch(t, []string{"_ipp._tcp.local.", "_smb._tcp.local."}, ptrs)

	require.Len(t, in.Extra, 1)
	assert.Equal(t, "_http._tcp.local.", in.Extra[0].(*dns.PTR).Ptr)
	assert.Equal(t, 1, r.Queries())
}

func TestResponder_MultiQuestionAny(t *testing.T) {
	r := start(t, Options{Services: labServices})

	in, err := exchange(t, r,
		dns.Question{Name: "_ipp._tcp.local.", Qtype: dns.TypeANY, Qclass: dns.ClassINET},
		dns.Question{Name: "_smb._tcp.local.", Qtype: dns.TypeANY, Qclass: dns.ClassINET},
	)
	require.NoError(t, err)

	var srvPorts []uint16
	for _, rr := range in.Answer {
		if srv, ok := rr.(*dns.SRV); ok {
			srvPorts = append(srvPorts, srv.Port)
		}
	}
	assert.ElementsMatch(t, []uint16{631, 445}, srvPorts)
}

func TestResponder_EmptyZone(t *testing.T) {
	r := start(t, Options{})

	in, err := exchange(t, r, dns.Question{Name: enumName, Qtype: dns.TypePTR, Qclass: dns.ClassINET})
	require.NoError(t, err)
	assert.Empty(t, in.Answer)
	assert.Empty(t, in.Extra)
}

func TestResponder_Drop(t *testing.T) {
	r := start(t, Options{
		Services: labServices,
		Drop:     func(name string) bool { return name == "_smb._tcp.local." },
	})

	_, err := exchange(t, r, dns.Question{Name: "_smb._tcp.local.", Qtype: dns.TypeANY, Qclass: dns.ClassINET})
	assert.Error(t, err)

	_, err = exchange(t, r, dns.Question{Name: "_ipp._tcp.local.", Qtype: dns.TypeANY, Qclass: dns.ClassINET})
	assert.NoError(t, err)
}

func TestNew_InvalidService(t *testing.T) {
	_, err := New(Options{Services: []Service{{Instance: "x", Service: "_http._tcp"}}}, logger.NewTestLogger())
	assert.Error(t, err, "port zero is rejected by the zone")
}

func TestResponder_Corrupt(t *testing.T) {
	r := start(t, Options{
		Services: labServices,
		Corrupt:  func(name string) bool { return name == enumName },
	})

	m := new(dns.Msg)
	m.Id = 0xbeef
	m.Question = []dns.Question{{Name: enumName, Qtype: dns.TypePTR, Qclass: dns.ClassINET}}
	payload, err := m.Pack()
	require.NoError(t, err)

	conn, err := net.Dial("udp", r.Target().Addr())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(time.Second)))

	_, err = conn.Write(payload)
	require.NoError(t, err)
	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xbe, 0xef, 0x84}, buf[:n], "truncated reply keeps the query id")
}

func TestResponder_Delay(t *testing.T) {
	r := start(t, Options{
		Services: labServices,
		Delay: func(name string) time.Duration {
			if name == "_ipp._tcp.local." {
				return time.Second
			}
			return 0
		},
	})

	_, err := exchange(t, r, dns.Question{Name: "_ipp._tcp.local.", Qtype: dns.TypeANY, Qclass: dns.ClassINET})
	assert.Error(t, err, "reply held past the client timeout")

	_, err = exchange(t, r, dns.Question{Name: "_smb._tcp.local.", Qtype: dns.TypeANY, Qclass: dns.ClassINET})
	assert.NoError(t, err)
}
