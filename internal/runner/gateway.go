package runner

import (
	"net"
	"strings"

	"github.com/pkg/errors"

	"github.com/R167/mdnsamp/checkers/common"
)

// DiscoverGateway attempts to discover the network gateway IP address.
// It uses a UDP connection to a public IP (8.8.8.8) to determine the local
// interface, then assumes the gateway is .1 on the same subnet.
//
// Returns an empty string if gateway cannot be determined.
//
// Note: This is a heuristic and may not work on all network configurations.
func DiscoverGateway() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return gatewayFor(localAddr.IP)
}

func gatewayFor(ip net.IP) string {
	parts := strings.Split(ip.String(), ".")
	if len(parts) != 4 {
		return ""
	}

	parts[3] = "1"
	return strings.Join(parts, ".")
}

// DefaultTarget is the gateway on the given port, used when no target is named.
func DefaultTarget(port uint16) (common.Target, error) {
	gw := DiscoverGateway()
	if gw == "" {
		return common.Target{}, errors.New("no target given and the gateway could not be discovered")
	}
	return common.NewTarget(gw, port), nil
}
