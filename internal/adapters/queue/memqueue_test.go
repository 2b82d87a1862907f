package queue

import (
	"testing"

	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
)

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue(4)

	r1 := domain.Record{}.With(domain.FieldBattery, domain.Float(1))
	r2 := domain.Record{}.With(domain.FieldBattery, domain.Float(2))

	if !q.Enqueue(1, r1) || !q.Enqueue(2, r2) {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0].ID != 1 || batch[0].Record != r1 {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := q.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0].ID != 2 || remaining[0].Record != r2 {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
}

func TestMemQueueCapacity(t *testing.T) {
	q := NewMemQueue(2)

	if !q.Enqueue(1, domain.Record{}) || !q.Enqueue(2, domain.Record{}) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(3, domain.Record{}) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(4, domain.Record{}) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}

func TestMemQueueWrapsAround(t *testing.T) {
	q := NewMemQueue(3)
	next := 1
	for round := 0; round < 5; round++ {
		for q.Len() < q.Cap() {
			if !q.Enqueue(ports.WALEntryID(next), domain.Record{}) {
				t.Fatalf("enqueue %d rejected below capacity", next)
			}
			next++
		}
		batch := q.DequeueBatch(2)
		if len(batch) != 2 || batch[1].ID != batch[0].ID+1 {
			t.Fatalf("round %d: unexpected batch %+v", round, batch)
		}
	}

	rest := q.DequeueBatch(0)
	for i := 1; i < len(rest); i++ {
		if rest[i].ID != rest[i-1].ID+1 {
			t.Fatalf("ids out of order after wrap: %+v", rest)
		}
	}
	if q.Len() != 0 || q.DequeueBatch(1) != nil {
		t.Fatalf("expected empty queue")
	}
}
