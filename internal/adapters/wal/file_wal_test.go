package wal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
)

func TestFileWALAppendIterateAndReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}

	r1 := domain.Record{}.
		With(domain.FieldTime, domain.Text("10:00:00")).
		With(domain.FieldBattery, domain.Float(87))
	r2 := domain.Record{}.With(domain.FieldTempC, domain.Float(-5.2))

	id1, err := w.Append(r1)
	if err != nil || id1 == 0 {
		t.Fatalf("append record 1: %v id=%d", err, id1)
	}
	id2, err := w.Append(r2)
	if err != nil || id2 != id1+1 {
		t.Fatalf("append record 2: %v id=%d", err, id2)
	}

	var iterated []domain.Record
	if err := w.Iterate(1, func(id ports.WALEntryID, rec domain.Record) error {
		iterated = append(iterated, rec)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(iterated) != 2 {
		t.Fatalf("expected 2 records, got %d", len(iterated))
	}
	if iterated[0] != r1 || iterated[1] != r2 {
		t.Fatalf("records did not round trip: %+v", iterated)
	}

	if err := w.Commit(id1); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close wal: %v", err)
	}
	if _, err := w.Append(r1); err == nil {
		t.Fatalf("expected append after close to fail")
	}

	w2, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen wal: %v", err)
	}
	stats := w2.Stats()
	if stats.LatestAppended != id2 {
		t.Fatalf("expected latest appended %d, got %d", id2, stats.LatestAppended)
	}
	if stats.OldestUncommitted != id2 {
		t.Fatalf("expected oldest uncommitted %d, got %d", id2, stats.OldestUncommitted)
	}

	var replay []ports.WALEntryID
	if err := w2.Iterate(stats.OldestUncommitted, func(id ports.WALEntryID, _ domain.Record) error {
		replay = append(replay, id)
		return nil
	}); err != nil {
		t.Fatalf("iterate after reopen: %v", err)
	}
	if len(replay) != 1 || replay[0] != id2 {
		t.Fatalf("expected only uncommitted entry %d, got %v", id2, replay)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("close wal2: %v", err)
	}
}

func TestFileWALTruncatesTornTail(t *testing.T) {
	dir := t.TempDir()

	w, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	if _, err := w.Append(domain.Record{}.With(domain.FieldCO2, domain.Float(450))); err != nil {
		t.Fatalf("append: %v", err)
	}
	size := w.Stats().SizeBytes
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := appendGarbage(filepath.Join(dir, logName)); err != nil {
		t.Fatalf("append garbage: %v", err)
	}

	w2, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen after garbage: %v", err)
	}
	defer w2.Close()

	if got := w2.Stats().SizeBytes; got != size {
		t.Fatalf("expected torn tail to be truncated to %d bytes, got %d", size, got)
	}
	id, err := w2.Append(domain.Record{})
	if err != nil || id != 2 {
		t.Fatalf("expected append to continue at id 2, got %d err=%v", id, err)
	}
}

func appendGarbage(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte{0xFF, 0xAA})
	return err
}

func TestFileWALCompactsWhenFullyCommitted(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := w.Append(domain.Record{}.With(domain.FieldHumRH, domain.Float(float64(i)))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := w.Commit(2); err != nil {
		t.Fatalf("commit 2: %v", err)
	}
	if w.Stats().SizeBytes == 0 {
		t.Fatalf("log must not shrink while entry 3 is pending")
	}
	if err := w.Commit(3); err != nil {
		t.Fatalf("commit 3: %v", err)
	}
	if got := w.Stats().SizeBytes; got != 0 {
		t.Fatalf("expected empty log after full commit, got %d bytes", got)
	}

	id, err := w.Append(domain.Record{})
	if err != nil || id != 4 {
		t.Fatalf("expected id 4 after compaction, got %d err=%v", id, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	w2, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer w2.Close()
	stats := w2.Stats()
	if stats.LatestAppended != 4 || stats.OldestUncommitted != 4 {
		t.Fatalf("unexpected stats after reopen: %+v", stats)
	}
}

func TestFileWALDropsEntryWithBadChecksum(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	if _, err := w.Append(domain.Record{}.With(domain.FieldCO2, domain.Float(400))); err != nil {
		t.Fatalf("append: %v", err)
	}
	good := w.Stats().SizeBytes
	if _, err := w.Append(domain.Record{}.With(domain.FieldCO2, domain.Float(401))); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := filepath.Join(dir, logName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	w2, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer w2.Close()
	if got := w2.Stats(); got.SizeBytes != good || got.LatestAppended != 1 {
		t.Fatalf("expected corrupt entry to be cut, got %+v", got)
	}
}

func TestFileWALFailedAppendLeavesNoEntry(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	defer w.Close()

	syncErr := errors.New("io error")
	w.sync = func() error { return syncErr }
	if _, err := w.Append(domain.Record{}.With(domain.FieldTempC, domain.Float(1))); !errors.Is(err, syncErr) {
		t.Fatalf("expected sync error, got %v", err)
	}
	if got := w.Stats(); got.SizeBytes != 0 || got.LatestAppended != 0 {
		t.Fatalf("failed append must not advance the log: %+v", got)
	}

	w.sync = w.file.Sync
	id, err := w.Append(domain.Record{}.With(domain.FieldTempC, domain.Float(2)))
	if err != nil || id != 1 {
		t.Fatalf("expected id 1 after failed append, got %d err=%v", id, err)
	}

	var temps []float64
	if err := w.Iterate(1, func(_ ports.WALEntryID, rec domain.Record) error {
		temps = append(temps, rec.Get(domain.FieldTempC).Num)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(temps) != 1 || temps[0] != 2 {
		t.Fatalf("expected only the acknowledged entry, got %v", temps)
	}
	stat, err := os.Stat(filepath.Join(dir, logName))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if stat.Size() != w.Stats().SizeBytes {
		t.Fatalf("file size %d differs from tracked size %d", stat.Size(), w.Stats().SizeBytes)
	}
}
