package sink

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ghalamif/AegisSense/internal/domain"
)

func TestSQLiteSinkAppend(t *testing.T) {
	s, err := NewSQLiteSink(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("new sqlite sink: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Append(ctx, domain.Record{}.With(domain.FieldHumRH, domain.Float(40))); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, domain.Record{}); err != nil {
		t.Fatalf("append empty record: %v", err)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Append(ctx, domain.Record{}); err == nil {
		t.Fatalf("expected append after close to fail")
	}
}
