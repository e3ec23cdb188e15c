package sink

import "sync"

// Memory keeps every entry in memory. Used by tests and the MCP tools,
// which report records back to the caller instead of writing files.
type Memory struct {
	mu             sync.Mutex
	records        []Record
	magnifications []Magnification
	summaries      []Summary
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) WriteRecord(r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *Memory) WriteMagnification(mg Magnification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.magnifications = append(m.magnifications, mg)
	return nil
}

func (m *Memory) WriteSummary(s Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, s)
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record{}, m.records...)
}

func (m *Memory) Magnifications() []Magnification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Magnification{}, m.magnifications...)
}

func (m *Memory) Summaries() []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Summary{}, m.summaries...)
}
