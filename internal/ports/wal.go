package ports

import "github.com/ghalamif/AegisSense/internal/domain"

type WALEntryID uint64

type WAL interface {
	Append(rec domain.Record) (WALEntryID, error)
	Iterate(from WALEntryID, fn func(id WALEntryID, rec domain.Record) error) error
	Commit(upto WALEntryID) error
	Stats() WALStats
	Close() error
}

type WALStats struct {
	OldestUncommitted WALEntryID
	LatestAppended    WALEntryID
	SizeBytes         int64
}
