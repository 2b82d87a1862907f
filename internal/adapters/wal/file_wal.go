package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
)

const (
	headerLen = 16
	logName   = "records.wal"
	metaName  = "records.meta"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrCorrupt reports an entry whose checksum does not match its payload.
var ErrCorrupt = errors.New("corrupt wal entry")

// FileWAL is an append-only log of records. Each entry is
// [8 bytes id][4 bytes len][4 bytes crc32c][len bytes CBOR record] and is
// fsynced before Append returns. Once every entry is committed the log is
// truncated, so its size tracks the undelivered backlog.
type FileWAL struct {
	mu       sync.Mutex
	path     string
	metaPath string
	file     *os.File
	writer   *bufio.Writer
	enc      cbor.EncMode
	sync     func() error

	lastID    ports.WALEntryID
	committed ports.WALEntryID
	size      int64
	closed    bool
}

func NewFileWAL(dir string) (*FileWAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, logName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	w := &FileWAL{
		path:     path,
		metaPath: filepath.Join(dir, metaName),
		file:     f,
		writer:   bufio.NewWriterSize(f, 64<<10),
		enc:      enc,
		sync:     f.Sync,
	}
	if err := w.recover(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("wal recover %s: %w", dir, err)
	}
	return w, nil
}

// recover restores the id counters and drops a torn or corrupt tail.
func (w *FileWAL) recover() error {
	committed, err := readMeta(w.metaPath)
	if err != nil {
		return err
	}
	w.committed = committed

	valid, lastID, err := scan(w.path, func(ports.WALEntryID, []byte) error { return nil })
	if err != nil && !errors.Is(err, ErrCorrupt) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	stat, statErr := w.file.Stat()
	if statErr != nil {
		return statErr
	}
	if stat.Size() != valid {
		if err := w.file.Truncate(valid); err != nil {
			return err
		}
	}
	w.size = valid
	w.lastID = max(lastID, committed)
	return nil
}

// scan walks the log from the start and calls fn for each intact entry. It
// returns the offset just past the last intact entry and that entry's id.
func scan(path string, fn func(id ports.WALEntryID, payload []byte) error) (int64, ports.WALEntryID, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	defer f.Close()

	var (
		r      = bufio.NewReader(f)
		hdr    [headerLen]byte
		offset int64
		lastID ports.WALEntryID
	)
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return offset, lastID, nil
			}
			return offset, lastID, err
		}
		id := ports.WALEntryID(binary.BigEndian.Uint64(hdr[0:8]))
		n := binary.BigEndian.Uint32(hdr[8:12])
		sum := binary.BigEndian.Uint32(hdr[12:16])

		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return offset, lastID, err
		}
		if crc32.Checksum(payload, castagnoli) != sum {
			return offset, lastID, fmt.Errorf("%w: id %d at offset %d", ErrCorrupt, id, offset)
		}
		if err := fn(id, payload); err != nil {
			return offset, lastID, err
		}
		offset += headerLen + int64(n)
		lastID = id
	}
}

func readMeta(path string) (ports.WALEntryID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	val := strings.TrimSpace(string(data))
	if val == "" {
		return 0, nil
	}
	u, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("wal meta parse: %w", err)
	}
	return ports.WALEntryID(u), nil
}

func (w *FileWAL) Append(rec domain.Record) (ports.WALEntryID, error) {
	payload, err := w.enc.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("wal encode: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, os.ErrClosed
	}

	id := w.lastID + 1
	var hdr [headerLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(payload)))
	binary.BigEndian.PutUint32(hdr[12:16], crc32.Checksum(payload, castagnoli))

	if err := w.write(hdr[:], payload); err != nil {
		return 0, errors.Join(err, w.rollback())
	}

	w.lastID = id
	w.size += headerLen + int64(len(payload))
	return id, nil
}

func (w *FileWAL) write(hdr, payload []byte) error {
	if _, err := w.writer.Write(hdr); err != nil {
		return err
	}
	if _, err := w.writer.Write(payload); err != nil {
		return err
	}
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.sync(); err != nil {
		return fmt.Errorf("wal sync: %w", err)
	}
	return nil
}

// rollback cuts the file back to the last acknowledged entry and discards
// buffered bytes, so a failed Append leaves no trace and the id is reused.
func (w *FileWAL) rollback() error {
	w.writer.Reset(w.file)
	if err := w.file.Truncate(w.size); err != nil {
		return fmt.Errorf("wal rollback: %w", err)
	}
	return nil
}

// Iterate calls fn for every entry with id >= from, in order. A corrupt
// entry stops the walk with ErrCorrupt.
func (w *FileWAL) Iterate(from ports.WALEntryID, fn func(id ports.WALEntryID, rec domain.Record) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}

	_, _, err := scan(w.path, func(id ports.WALEntryID, payload []byte) error {
		if id < from {
			return nil
		}
		var rec domain.Record
		if err := cbor.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("%w: id %d: %v", ErrCorrupt, id, err)
		}
		return fn(id, rec)
	})
	return err
}

// Commit marks every entry up to and including upto as delivered. When that
// covers the whole log, the log file is emptied.
func (w *FileWAL) Commit(upto ports.WALEntryID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	if upto <= w.committed {
		return nil
	}
	w.committed = min(upto, w.lastID)
	if err := w.writeMeta(); err != nil {
		return err
	}
	if w.committed == w.lastID && w.size > 0 {
		return w.compact()
	}
	return nil
}

// compact empties the log. The meta file already holds the last id, so ids
// keep increasing after a restart.
func (w *FileWAL) compact() error {
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("wal compact: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal compact sync: %w", err)
	}
	w.size = 0
	return nil
}

func (w *FileWAL) Stats() ports.WALStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ports.WALStats{
		OldestUncommitted: w.committed + 1,
		LatestAppended:    w.lastID,
		SizeBytes:         w.size,
	}
}

func (w *FileWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return errors.Join(w.writer.Flush(), w.file.Close())
}

// writeMeta replaces the commit mark via rename so a crash never leaves a
// half-written meta file.
func (w *FileWAL) writeMeta() error {
	tmp := w.metaPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatUint(uint64(w.committed), 10)+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, w.metaPath)
}

var _ ports.WAL = (*FileWAL)(nil)
