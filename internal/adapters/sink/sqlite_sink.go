package sink

import (
	"context"
	"fmt"
	"sync"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	inserted_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	time_of_day TEXT,
	battery     REAL,
	light_lux   REAL,
	uv_index    REAL,
	magnetic_x  REAL,
	magnetic_y  REAL,
	magnetic_z  REAL,
	co2_ppm     REAL,
	temp_c      REAL,
	hum_rh      REAL
);
`

const sqliteInsert = `INSERT INTO records (
	time_of_day, battery, light_lux, uv_index,
	magnetic_x, magnetic_y, magnetic_z,
	co2_ppm, temp_c, hum_rh
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteSink stores records in a local SQLite database. A single connection
// is shared behind a mutex.
type SQLiteSink struct {
	mu   sync.Mutex
	conn *sqlite.Conn
}

func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite sink: path is required")
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("sqlite sink: open %s: %w", path, err)
	}
	for _, pragma := range []string{"PRAGMA synchronous = FULL;", "PRAGMA busy_timeout = 5000;"} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("sqlite sink: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sqlite sink: create schema: %w", err)
	}
	return &SQLiteSink{conn: conn}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Append(_ context.Context, rec domain.Record) error {
	args := make([]any, 0, domain.NumFields)
	for _, v := range rec {
		args = append(args, columnValue(v))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("sqlite sink: closed")
	}
	if err := sqlitex.Execute(s.conn, sqliteInsert, &sqlitex.ExecOptions{Args: args}); err != nil {
		return fmt.Errorf("sqlite sink: insert record: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLiteSink) Count() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0, fmt.Errorf("sqlite sink: closed")
	}
	var n int64
	err := sqlitex.Execute(s.conn, "SELECT count(*) FROM records", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt64(0)
			return nil
		},
	})
	return n, err
}

func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

var _ ports.Sink = (*SQLiteSink)(nil)
