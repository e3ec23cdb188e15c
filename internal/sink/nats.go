package sink

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

const (
	DefaultSubjectPrefix = "mdnsamp"

	recordSubject  = "records"
	magnifySubject = "magnifications"
	summarySubject = "summaries"
)

// publisher is the subset of *nats.Conn used by NATS.
type publisher interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATS publishes every entry as a JSON message under
// <prefix>.records, <prefix>.magnifications and <prefix>.summaries.
type NATS struct {
	conn   publisher
	prefix string
}

// DialNATS connects to url. An empty prefix uses DefaultSubjectPrefix.
func DialNATS(url, prefix string) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("mdnsamp"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to nats at %s", url)
	}
	return newNATS(nc, prefix), nil
}

func newNATS(conn publisher, prefix string) *NATS {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATS{conn: conn, prefix: prefix}
}

func (n *NATS) subject(kind string) string {
	return n.prefix + "." + kind
}

func (n *NATS) publish(kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s message", kind)
	}
	return errors.Wrapf(n.conn.Publish(n.subject(kind), data), "failed to publish %s", kind)
}

func (n *NATS) WriteRecord(r Record) error {
	return n.publish(recordSubject, r)
}

func (n *NATS) WriteMagnification(m Magnification) error {
	return n.publish(magnifySubject, m)
}

func (n *NATS) WriteSummary(s Summary) error {
	return n.publish(summarySubject, s)
}

// Close flushes pending messages before closing the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}
