package ports

import "github.com/ghalamif/AegisSense/internal/domain"

type QueuedRecord struct {
	ID     WALEntryID
	Record domain.Record
}

type RecordQueue interface {
	Enqueue(id WALEntryID, rec domain.Record) bool
	DequeueBatch(max int) []QueuedRecord
	Len() int
}
