package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
)

// CSVSink appends one row per record to a file created fresh for this
// process. Every append is flushed and fsynced.
type CSVSink struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
	closed bool
}

// NewCSVSink picks "<n>_<fileName>" in dir, where n is the number of CSV files
// already present, and writes the schema header.
func NewCSVSink(dir, fileName string) (*CSVSink, error) {
	if fileName == "" {
		return nil, fmt.Errorf("csv sink: file name is required")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csv sink: %w", err)
	}
	path, err := nextCSVPath(dir, fileName)
	if err != nil {
		return nil, fmt.Errorf("csv sink: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csv sink: %w", err)
	}
	s := &CSVSink{path: path, file: f, writer: csv.NewWriter(f)}
	if err := s.writeRow(domain.Header()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv sink: write header: %w", err)
	}
	return s, nil
}

func nextCSVPath(dir, fileName string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv") {
			count++
		}
	}
	for {
		path := filepath.Join(dir, fmt.Sprintf("%d_%s", count, fileName))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
		count++
	}
}

// Path is the file this sink writes to.
func (s *CSVSink) Path() string { return s.path }

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Append(_ context.Context, rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return os.ErrClosed
	}
	return s.writeRow(rec.Row())
}

func (s *CSVSink) writeRow(row []string) error {
	if err := s.writer.Write(row); err != nil {
		return err
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

var _ ports.Sink = (*CSVSink)(nil)
