package ingest

import (
	"context"
	"errors"
	"io"
)

// MultiSource drains several sources in order, filling one batch across all
// of them. A failing source does not block the others; its error is joined
// into the returned error alongside whatever records were collected.
type MultiSource struct {
	sources []Source
}

// NewMultiSource combines sources. Earlier sources are drained first when a
// batch limit applies.
func NewMultiSource(sources ...Source) *MultiSource {
	out := make([]Source, 0, len(sources))
	for _, src := range sources {
		if src != nil {
			out = append(out, src)
		}
	}
	return &MultiSource{sources: out}
}

// Poll gathers up to limit records across all sources. Records already
// polled are claimed, so they are returned even when a later source errors.
func (m *MultiSource) Poll(ctx context.Context, limit int) ([]Record, error) {
	var (
		records []Record
		errs    []error
	)
	for _, src := range m.sources {
		remaining := 0
		if limit > 0 {
			remaining = limit - len(records)
			if remaining <= 0 {
				break
			}
		}
		batch, err := src.Poll(ctx, remaining)
		records = append(records, batch...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return records, errors.Join(errs...)
}

// Pending sums pending counts across sources that report one.
func (m *MultiSource) Pending() int {
	total := 0
	for _, src := range m.sources {
		if counter, ok := src.(interface{ Pending() int }); ok {
			total += counter.Pending()
		}
	}
	return total
}

// Close closes every source that supports it.
func (m *MultiSource) Close() error {
	var errs []error
	for _, src := range m.sources {
		if closer, ok := src.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
