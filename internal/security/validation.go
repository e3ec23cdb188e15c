package security

import (
	"net"

	"github.com/pkg/errors"
)

// Policy relaxes the default target policy. The zero value only admits
// private and link-local addresses.
type Policy struct {
	// AllowPublic admits globally routable addresses and host names.
	AllowPublic bool
	// AllowLoopback admits 127.0.0.0/8 and ::1, used for the lab responder.
	AllowLoopback bool
}

// ValidateTarget checks that host may be scanned under p. It ensures the host is:
// 1. A valid IP address (or, with AllowPublic, a clean host name)
// 2. Not multicast or unspecified
// 3. Not loopback unless AllowLoopback
// 4. Within private ranges unless AllowPublic
//
// Amplification probes are only sent to networks the operator is
// responsible for unless they opt out explicitly.
func ValidateTarget(host string, p Policy) error {
	if host == "" {
		return errors.Errorf("target address cannot be empty")
	}

	ip := net.ParseIP(host)
	if ip == nil {
		if !p.AllowPublic {
			return errors.Errorf("invalid IP address format: %s", host)
		}
		_, err := SanitizeHostname(host)
		return err
	}

	if ip.IsMulticast() {
		return errors.Errorf("multicast addresses not allowed: %s", host)
	}

	if ip.IsUnspecified() {
		return errors.Errorf("unspecified addresses not allowed: %s", host)
	}

	if ip.IsLoopback() {
		if p.AllowLoopback {
			return nil
		}
		return errors.Errorf("loopback addresses not allowed: %s (use --allow-loopback)", host)
	}

	if !p.AllowPublic && !isPrivateIP(ip) {
		return errors.Errorf("only private IP addresses allowed (RFC 1918/4193): %s (use --allow-public)", host)
	}

	return nil
}

var privateRanges = mustParseCIDRs(
	"10.0.0.0/8",     // RFC 1918
	"172.16.0.0/12",  // RFC 1918
	"192.168.0.0/16", // RFC 1918
	"169.254.0.0/16", // RFC 3927 link-local
	"fc00::/7",       // RFC 4193 ULA
	"fe80::/10",      // RFC 4291 link-local
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		out = append(out, network)
	}
	return out
}

func isPrivateIP(ip net.IP) bool {
	for _, network := range privateRanges {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// IsPrivateIP is exported for use in other packages
func IsPrivateIP(ip net.IP) bool {
	return isPrivateIP(ip)
}

// ValidatePort validates that a port number is within valid range
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got: %d", port)
	}
	return nil
}

// SanitizeHostname rejects host names with characters outside
// letters, digits, '.', '-' and '_'.
func SanitizeHostname(hostname string) (string, error) {
	if hostname == "" {
		return "", errors.Errorf("hostname cannot be empty")
	}

	for _, char := range hostname {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '-' || char == '_') {
			return "", errors.Errorf("invalid character in hostname: %c", char)
		}
	}

	if len(hostname) > 253 {
		return "", errors.Errorf("hostname too long: %d characters (max 253)", len(hostname))
	}

	return hostname, nil
}
