package wire

import (
	"encoding/binary"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/miekg/dns"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// EnumerationName is the DNS-SD meta-query name listing every service type.
	EnumerationName = "_services._dns-sd._udp.local."

	headerLen        = 12
	defaultCacheSize = 1024
)

var (
	// ErrDecode marks a reply that is empty, truncated or malformed.
	ErrDecode = errors.New("undecodable response")
	// ErrEncode marks a name that cannot be written as a question.
	ErrEncode = errors.New("unencodable service name")
)

// Query is an encoded outbound message.
type Query struct {
	ID uint16
	// SubQueries is the QDCOUNT written into the header.
	SubQueries uint16
	// Names lists the names concatenated into the payload, in order.
	Names []string
	// Skipped lists names dropped because they could not be encoded.
	Skipped []string

	data []byte
}

// Bytes is the wire form sent to the responder.
func (q *Query) Bytes() []byte {
	return q.data
}

// Len is the exact encoded length in bytes.
func (q *Query) Len() int {
	return len(q.data)
}

// Codec builds enumeration and follow-up queries. It is safe for concurrent
// use; encoded sub-queries are memoised by name.
type Codec struct {
	cache  *lru.Cache[string, []byte]
	logger zerolog.Logger
}

// NewCodec returns a codec with an empty sub-query cache.
func NewCodec(logger zerolog.Logger) *Codec {
	cache, err := lru.New[string, []byte](defaultCacheSize)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &Codec{cache: cache, logger: logger}
}

// BuildEnumerationQuery returns the PTR query for the service-type listing
// with recursion-desired set.
func (c *Codec) BuildEnumerationQuery() (*Query, error) {
	msg := new(dns.Msg)
	msg.Id = dns.Id()
	msg.RecursionDesired = true
	msg.Question = []dns.Question{{
		Name:   EnumerationName,
		Qtype:  dns.TypePTR,
		Qclass: dns.ClassINET,
	}}

	data, err := msg.Pack()
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack enumeration query")
	}

	return &Query{
		ID:         msg.Id,
		SubQueries: 1,
		Names:      []string{EnumerationName},
		data:       data,
	}, nil
}

// EncodeSubQuery returns the wire form of a single ANY/IN question for name.
func (c *Codec) EncodeSubQuery(name string) ([]byte, error) {
	if name == "" {
		return nil, errors.Wrap(ErrEncode, "empty name")
	}
	if sub, ok := c.cache.Get(name); ok {
		return sub, nil
	}

	msg := new(dns.Msg)
	msg.Question = []dns.Question{{
		Name:   dns.Fqdn(name),
		Qtype:  dns.TypeANY,
		Qclass: dns.ClassINET,
	}}

	data, err := msg.Pack()
	if err != nil {
		return nil, errors.Wrapf(ErrEncode, "%q: %v", name, err)
	}

	sub := data[headerLen:]
	c.cache.Add(name, sub)

	return sub, nil
}

// BuildFollowupQuery concatenates one ANY sub-query per name behind a header
// whose question count is exactly subQueryCount. Names that fail to encode
// are skipped and reported in Query.Skipped.
func (c *Codec) BuildFollowupQuery(names []string, subQueryCount uint16) (*Query, error) {
	hdr := new(dns.Msg)
	hdr.Id = dns.Id()
	hdr.RecursionDesired = true

	data, err := hdr.Pack()
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack follow-up header")
	}

	q := &Query{ID: hdr.Id, SubQueries: subQueryCount}

	for _, name := range names {
		sub, err := c.EncodeSubQuery(name)
		if err != nil {
			c.logger.Warn().Err(err).Str("name", name).Msg("skipping service name")
			q.Skipped = append(q.Skipped, name)
			continue
		}
		data = append(data, sub...)
		q.Names = append(q.Names, name)
	}

	binary.BigEndian.PutUint16(data[4:6], subQueryCount)
	q.data = data

	return q, nil
}

// Response is a decoded reply.
type Response struct {
	ID uint16
	// Declared header counts.
	AnswerCount     uint16
	AdditionalCount uint16

	Answers     []ServiceRecord
	Additionals []ServiceRecord

	size int
}

// Len is the length of the reply as received.
func (r *Response) Len() int {
	return r.size
}

// Empty reports whether the responder declared no answer or additional records.
func (r *Response) Empty() bool {
	return r.AnswerCount == 0 && r.AdditionalCount == 0
}

// DecodeResponse parses a reply. An empty or malformed payload yields an
// error wrapping ErrDecode; it is never reported as an empty response.
func DecodeResponse(b []byte) (*Response, error) {
	if len(b) < headerLen {
		return nil, errors.Wrapf(ErrDecode, "short message: %d bytes", len(b))
	}

	msg := new(dns.Msg)
	if err := msg.Unpack(b); err != nil {
		return nil, errors.Wrapf(ErrDecode, "%d bytes: %v", len(b), err)
	}

	resp := &Response{
		ID:              msg.Id,
		AnswerCount:     binary.BigEndian.Uint16(b[6:8]),
		AdditionalCount: binary.BigEndian.Uint16(b[10:12]),
		size:            len(b),
	}

	resp.Answers = make([]ServiceRecord, 0, len(msg.Answer))
	for _, rr := range msg.Answer {
		resp.Answers = append(resp.Answers, recordFromRR(rr))
	}

	resp.Additionals = make([]ServiceRecord, 0, len(msg.Extra))
	for _, rr := range msg.Extra {
		resp.Additionals = append(resp.Additionals, recordFromRR(rr))
	}

	return resp, nil
}

// rdataString renders the data portion of rr in presentation format.
func rdataString(rr dns.RR) string {
	return strings.TrimSpace(strings.TrimPrefix(rr.String(), rr.Header().String()))
}
