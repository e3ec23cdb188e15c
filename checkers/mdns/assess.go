package mdns

import (
	"fmt"
	"strings"

	"github.com/R167/mdnsamp/checkers/common"
)

// Magnification thresholds used by Assess.
const (
	HighMagnification   = 10.0
	MediumMagnification = 3.0
)

var riskyServices = map[string]string{
	"_ssh._tcp.local.":        "SSH service exposed",
	"_ftp._tcp.local.":        "FTP service exposed",
	"_telnet._tcp.local.":     "Telnet service exposed",
	"_smb._tcp.local.":        "SMB/CIFS file sharing exposed",
	"_afpovertcp._tcp.local.": "AFP file sharing exposed",
	"_nfs._tcp.local.":        "NFS file sharing exposed",
	"_vnc._tcp.local.":        "VNC remote desktop exposed",
	"_rdp._tcp.local.":        "RDP remote desktop exposed",
	"_printer._tcp.local.":    "Network printer exposed",
	"_ipp._tcp.local.":        "Network printer exposed",
}

// Assess grades a completed scan. The overall magnification decides the
// amplification finding; risky service types advertised to a unicast
// query add one MEDIUM issue each.
func Assess(r Result) []common.SecurityIssue {
	var issues []common.SecurityIssue

	mag := r.OverallMagnification
	if r.InitialMagnification > mag {
		mag = r.InitialMagnification
	}

	details := fmt.Sprintf("%s answers unicast mDNS with %.2fx (enumeration %.2fx, %d bytes for %d sent)",
		r.Target, r.OverallMagnification, r.InitialMagnification, r.TotalResponseBytes, r.TotalRequestBytes)

	switch {
	case mag >= HighMagnification:
		issues = append(issues, common.SecurityIssue{
			Severity:    common.SeverityHigh,
			Description: "mDNS responder is a strong traffic amplifier",
			Details:     details,
		})
	case mag >= MediumMagnification:
		issues = append(issues, common.SecurityIssue{
			Severity:    common.SeverityMedium,
			Description: "mDNS responder amplifies traffic",
			Details:     details,
		})
	case mag > 1:
		issues = append(issues, common.SecurityIssue{
			Severity:    common.SeverityLow,
			Description: "mDNS responder answers unicast queries",
			Details:     details,
		})
	}

	seen := make(map[string]bool)
	for _, svc := range r.Services {
		key := strings.ToLower(svc)
		desc, risky := riskyServices[key]
		if !risky || seen[key] {
			continue
		}
		seen[key] = true
		issues = append(issues, common.SecurityIssue{
			Severity:    common.SeverityMedium,
			Description: desc + " via mDNS",
			Details:     fmt.Sprintf("%s advertises %s to off-link queriers", r.Target, svc),
		})
	}

	return issues
}
