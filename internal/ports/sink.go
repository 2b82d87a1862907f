package ports

import (
	"context"

	"github.com/ghalamif/AegisSense/internal/domain"
)

// Sink persists records one at a time. A nil error means the record is
// durable; records are kept in append order.
type Sink interface {
	Append(ctx context.Context, rec domain.Record) error
	Name() string
	Close() error
}

// BatchSink is a downstream store fed from the WAL-backed pipeline.
type BatchSink interface {
	WriteBatch(ctx context.Context, recs []domain.Record) error
	Name() string
}
