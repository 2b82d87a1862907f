package queue

import (
	"sync"

	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
)

// MemQueue is a fixed-capacity FIFO ring of WAL-backed records. Enqueue
// never grows the buffer; a full ring rejects the record and the caller
// keeps it in the WAL.
type MemQueue struct {
	mu    sync.Mutex
	ring  []ports.QueuedRecord
	head  int
	count int
}

func NewMemQueue(capacity int) *MemQueue {
	return &MemQueue{ring: make([]ports.QueuedRecord, max(capacity, 1))}
}

func (q *MemQueue) Enqueue(id ports.WALEntryID, rec domain.Record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.ring) {
		return false
	}
	q.ring[(q.head+q.count)%len(q.ring)] = ports.QueuedRecord{ID: id, Record: rec}
	q.count++
	return true
}

// DequeueBatch removes up to n records from the front; n <= 0 drains all.
func (q *MemQueue) DequeueBatch(n int) []ports.QueuedRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	if n <= 0 || n > q.count {
		n = q.count
	}
	out := make([]ports.QueuedRecord, n)
	for i := range out {
		slot := (q.head + i) % len(q.ring)
		out[i] = q.ring[slot]
		q.ring[slot] = ports.QueuedRecord{}
	}
	q.head = (q.head + n) % len(q.ring)
	q.count -= n
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the fixed capacity.
func (q *MemQueue) Cap() int { return len(q.ring) }

var _ ports.RecordQueue = (*MemQueue)(nil)
