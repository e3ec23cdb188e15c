package transport

import (
	"context"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/R167/mdnsamp/checkers/common"
)

// Exchange errors wrap one of these; test with errors.Is.
var (
	ErrTimeout   = errors.New("no reply before deadline")
	ErrReset     = errors.New("rejected by peer")
	ErrTransport = errors.New("transport failure")
	ErrClosed    = errors.New("session closed")
)

// Failure is the classified form of an exchange error.
type Failure int

// Failure kinds returned by Classify.
const (
	FailureNone Failure = iota
	FailureTimeout
	FailureReset
	FailureOther
)

// String is the lower-case label used in logs.
func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureTimeout:
		return "timeout"
	case FailureReset:
		return "reset"
	default:
		return "other"
	}
}

// Classify maps an Exchange error onto a Failure.
func Classify(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrTimeout):
		return FailureTimeout
	case errors.Is(err, ErrReset):
		return FailureReset
	default:
		return FailureOther
	}
}

// Options zero values select common.ExchangeTimeout and common.MaxDatagramSize.
type Options struct {
	Timeout     time.Duration
	MaxDatagram int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = common.ExchangeTimeout
	}
	if o.MaxDatagram <= 0 {
		o.MaxDatagram = common.MaxDatagramSize
	}
	return o
}

// Session owns one unconnected UDP socket aimed at a single target.
type Session struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
	opts   Options
	buf    []byte

	closeOnce sync.Once
	closeErr  error
}

// Open allocates a UDP endpoint on an ephemeral local port. The caller must
// Close the session on every path.
func Open(target common.Target, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	remote, err := net.ResolveUDPAddr("udp", target.Addr())
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "resolve %s: %v", target, err)
	}

	network := "udp4"
	if remote.IP.To4() == nil {
		network = "udp6"
	}

	conn, err := net.ListenUDP(network, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "listen: %v", err)
	}

	return &Session{
		conn:   conn,
		remote: remote,
		opts:   opts,
		buf:    make([]byte, opts.MaxDatagram),
	}, nil
}

// LocalAddr is the session's ephemeral local endpoint.
func (s *Session) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Exchange sends payload to the target and waits for one datagram from any
// source whose transaction id matches payload's. Datagrams carrying another
// id, such as a late reply to an earlier exchange, are dropped and the wait
// continues until the same deadline. The returned slice is a copy and stays
// valid after later calls. No retry is attempted.
func (s *Session) Exchange(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(ErrTimeout, err.Error())
	}

	deadline := time.Now().Add(s.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetDeadline(deadline); err != nil {
		return nil, classifyNetError(err)
	}

	if _, err := s.conn.WriteToUDP(payload, s.remote); err != nil {
		return nil, classifyNetError(err)
	}

	var n int
	for {
		var err error
		n, _, err = s.conn.ReadFromUDP(s.buf)
		if err != nil {
			return nil, classifyNetError(err)
		}
		if sameID(payload, s.buf[:n]) {
			break
		}
	}

	reply := make([]byte, n)
	copy(reply, s.buf[:n])
	return reply, nil
}

// sameID compares the leading transaction ids. A datagram too short to carry
// one is handed to the caller, which reports it as undecodable.
func sameID(query, reply []byte) bool {
	if len(query) < 2 || len(reply) < 2 {
		return true
	}
	return query[0] == reply[0] && query[1] == reply[1]
}

// Close releases the socket. Calling it more than once is harmless.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func classifyNetError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return errors.Wrap(ErrTimeout, err.Error())
	case errors.As(err, &netErr) && netErr.Timeout():
		return errors.Wrap(ErrTimeout, err.Error())
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return errors.Wrap(ErrReset, err.Error())
	case errors.Is(err, net.ErrClosed):
		return errors.Wrap(ErrClosed, err.Error())
	default:
		return errors.Wrap(ErrTransport, err.Error())
	}
}
