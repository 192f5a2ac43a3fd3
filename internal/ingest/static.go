package ingest

import (
	"context"
	"sync"
)

// StaticSource is an in-memory FIFO source. It backs tests and manual
// feeding over IPC.
type StaticSource struct {
	mu      sync.Mutex
	records []Record
}

// NewStaticSource builds a source pre-loaded with the given records.
func NewStaticSource(records ...Record) *StaticSource {
	s := &StaticSource{}
	s.Push(records...)
	return s
}

// Push appends records to the pending queue.
func (s *StaticSource) Push(records ...Record) {
	if len(records) == 0 {
		return
	}
	s.mu.Lock()
	s.records = append(s.records, records...)
	s.mu.Unlock()
}

// Pending reports how many records await polling.
func (s *StaticSource) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Poll drains up to limit records in arrival order.
func (s *StaticSource) Poll(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return nil, nil
	}
	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, n)
	copy(out, s.records[:n])
	s.records = append(s.records[:0], s.records[n:]...)
	return out, nil
}
