package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
)

// Multi appends every record to each sink in order. An append fails if any
// sink fails; the others still receive the record.
type Multi struct {
	sinks []ports.Sink
}

func NewMulti(sinks ...ports.Sink) *Multi {
	out := make([]ports.Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Multi{sinks: out}
}

func (m *Multi) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

func (m *Multi) Append(ctx context.Context, rec domain.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

var _ ports.Sink = (*Multi)(nil)
