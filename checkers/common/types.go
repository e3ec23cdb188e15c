package common

import (
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

const (
	// MDNSPort is the well-known mDNS/DNS-SD port scanned by default.
	MDNSPort uint16 = 5353

	ExchangeTimeout = 2 * time.Second
	MaxDatagramSize = 10240

	DefaultScansPerWorker = 5
	DefaultCoolDown       = 30 * time.Second
)

var SeverityOrder = map[string]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

var debugMode atomic.Bool

// SetDebugMode toggles verbose console output process-wide.
func SetDebugMode(enabled bool) {
	debugMode.Store(enabled)
}

func IsDebugMode() bool {
	return debugMode.Load()
}

type SecurityIssue struct {
	Severity    string
	Description string
	Details     string
}

// Target identifies one responder. It is never mutated during a scan.
type Target struct {
	Host string
	Port uint16
}

func NewTarget(host string, port uint16) Target {
	if port == 0 {
		port = MDNSPort
	}
	return Target{Host: host, Port: port}
}

// ParseTarget accepts "host" or "host:port".
func ParseTarget(s string, defaultPort uint16) (Target, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// no port present
		return NewTarget(s, defaultPort), nil
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Target{}, err
	}
	return NewTarget(host, uint16(port)), nil
}

func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(int(t.Port)))
}

func (t Target) String() string {
	return t.Addr()
}
