// Package responder runs a unicast DNS-SD responder for calibration and
// tests. It answers from hashicorp/mdns zones over an ordinary UDP socket and
// never joins the mDNS multicast group.
package responder

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/miekg/dns"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/R167/mdnsamp/checkers/common"
)

// Service describes one advertised service instance.
type Service struct {
	Instance string
	Service  string
	Port     int
	TXT      []string
}

// Options configures the zones and the failure hooks.
type Options struct {
	// Host name advertised in SRV targets; defaults to "lab.local.".
	HostName string
	IPs      []net.IP
	Services []Service
	// AdditionalPTR adds one PTR record per service type to the additional
	// section of enumeration replies.
	AdditionalPTR []string
	// Drop and Corrupt are consulted per question name; a matching query gets
	// no reply, or a reply that does not decode.
	Drop    func(name string) bool
	Corrupt func(name string) bool
	// Delay holds back the reply to a query naming name.
	Delay func(name string) time.Duration
}

// Responder answers unicast queries from its zones.
type Responder struct {
	zones  []mdns.Zone
	opts   Options
	server *dns.Server
	conn   net.PacketConn
	logger zerolog.Logger

	mu      sync.Mutex
	queries int
}

// New builds the zones for opts without opening a socket.
func New(opts Options, logger zerolog.Logger) (*Responder, error) {
	if opts.HostName == "" {
		opts.HostName = "lab.local."
	}
	if len(opts.IPs) == 0 {
		opts.IPs = []net.IP{net.IPv4(127, 0, 0, 1)}
	}

	r := &Responder{opts: opts, logger: logger}

	for _, svc := range opts.Services {
		zone, err := mdns.NewMDNSService(svc.Instance, svc.Service, "local.", dns.Fqdn(opts.HostName), svc.Port, opts.IPs, svc.TXT)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to build zone for %s.%s", svc.Instance, svc.Service)
		}
		r.zones = append(r.zones, zone)
	}

	return r, nil
}

// Listen binds addr ("127.0.0.1:0" for an ephemeral port) and serves until
// Close. It returns once the server is accepting queries.
func (r *Responder) Listen(addr string) error {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}

	started := make(chan struct{})
	r.conn = pc
	r.server = &dns.Server{
		PacketConn:        pc,
		Handler:           dns.HandlerFunc(r.serveDNS),
		UDPSize:           common.MaxDatagramSize,
		MsgAcceptFunc:     acceptQueries,
		NotifyStartedFunc: func() { close(started) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.server.ActivateAndServe()
	}()

	select {
	case <-started:
		r.logger.Info().Str("addr", pc.LocalAddr().String()).Int("zones", len(r.zones)).Msg("responder listening")
		return nil
	case err := <-errCh:
		pc.Close()
		return errors.Wrap(err, "responder failed to start")
	}
}

// Target returns the address to scan.
func (r *Responder) Target() common.Target {
	udp := r.conn.LocalAddr().(*net.UDPAddr)
	return common.NewTarget(udp.IP.String(), uint16(udp.Port))
}

// Queries is the number of messages handled so far.
func (r *Responder) Queries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries
}

func (r *Responder) Close() error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown()
}

// acceptQueries lets multi-question messages through; the default accept
// function rejects anything with a question count other than one.
func acceptQueries(dh dns.Header) dns.MsgAcceptAction {
	const qrBit = 1 << 15
	if dh.Bits&qrBit != 0 {
		return dns.MsgIgnore
	}
	return dns.MsgAccept
}

func (r *Responder) serveDNS(w dns.ResponseWriter, req *dns.Msg) {
	r.mu.Lock()
	r.queries++
	r.mu.Unlock()

	for _, q := range req.Question {
		if r.opts.Drop != nil && r.opts.Drop(q.Name) {
			r.logger.Debug().Str("name", q.Name).Msg("dropping query")
			return
		}
		if r.opts.Corrupt != nil && r.opts.Corrupt(q.Name) {
			// the query's id followed by a truncated header
			_, _ = w.Write([]byte{byte(req.Id >> 8), byte(req.Id), 0x84})
			return
		}
		if r.opts.Delay != nil {
			if d := r.opts.Delay(q.Name); d > 0 {
				time.Sleep(d)
			}
		}
	}

	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Authoritative = true

	for _, q := range req.Question {
		resp.Answer = append(resp.Answer, r.Records(q)...)
		if strings.EqualFold(q.Name, enumName) {
			resp.Extra = append(resp.Extra, r.additionalPTR()...)
		}
	}

	if err := w.WriteMsg(resp); err != nil {
		r.logger.Warn().Err(err).Msg("failed to write reply")
	}
}

const enumName = "_services._dns-sd._udp.local."

// Records answers q from every zone.
func (r *Responder) Records(q dns.Question) []dns.RR {
	var out []dns.RR
	for _, z := range r.zones {
		out = append(out, z.Records(q)...)
	}
	return out
}

func (r *Responder) additionalPTR() []dns.RR {
	out := make([]dns.RR, 0, len(r.opts.AdditionalPTR))
	for _, svc := range r.opts.AdditionalPTR {
		out = append(out, &dns.PTR{
			Hdr: dns.RR_Header{Name: enumName, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 120},
			Ptr: dns.Fqdn(svc),
		})
	}
	return out
}
