package wire

import (
	"encoding/hex"
	"strings"

	"github.com/miekg/dns"
)

// ServiceRecord is one decoded answer or additional record. Which optional
// fields are set depends on the record type, never on probing.
type ServiceRecord struct {
	Name string
	Type uint16

	// Data is nil when the record type carries no rdata of its own (SRV).
	Data   []byte
	Port   *uint16
	Target *string
}

// TypeName is the mnemonic of the record type, e.g. "PTR".
func (r ServiceRecord) TypeName() string {
	if s, ok := dns.TypeToString[r.Type]; ok {
		return s
	}
	return dns.Type(r.Type).String()
}

// ServiceName returns the name a follow-up query should ask for. Only
// name-valued records (PTR, CNAME, DNAME, NS) have one.
func (r ServiceRecord) ServiceName() (string, bool) {
	switch r.Type {
	case dns.TypePTR, dns.TypeCNAME, dns.TypeDNAME, dns.TypeNS:
		if len(r.Data) == 0 {
			return "", false
		}
		return string(r.Data), true
	}
	return "", false
}

// DataString is the rdata as printable text, or the SRV target prefixed
// with "target:" when the record has no rdata.
func (r ServiceRecord) DataString() string {
	if r.Data != nil {
		return string(r.Data)
	}
	if r.Target != nil {
		return "target:" + *r.Target
	}
	return ""
}

func recordFromRR(rr dns.RR) ServiceRecord {
	hdr := rr.Header()
	rec := ServiceRecord{Name: hdr.Name, Type: hdr.Rrtype}

	switch v := rr.(type) {
	case *dns.PTR:
		rec.Data = []byte(v.Ptr)
	case *dns.CNAME:
		rec.Data = []byte(v.Target)
	case *dns.DNAME:
		rec.Data = []byte(v.Target)
	case *dns.NS:
		rec.Data = []byte(v.Ns)
	case *dns.SRV:
		port, target := v.Port, v.Target
		rec.Port = &port
		rec.Target = &target
	case *dns.TXT:
		rec.Data = []byte(strings.Join(v.Txt, ","))
	case *dns.A:
		rec.Data = []byte(v.A.String())
	case *dns.AAAA:
		rec.Data = []byte(v.AAAA.String())
	case *dns.OPT:
		// pseudo-record, nothing to report
	case *dns.RFC3597:
		if raw, err := hex.DecodeString(v.Rdata); err == nil {
			rec.Data = raw
		}
	default:
		rec.Data = []byte(rdataString(rr))
	}

	return rec
}
