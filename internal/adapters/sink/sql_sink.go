package sink

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
)

// Supported database/sql drivers.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

var (
	tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

	sqlColumns = []string{
		"time_of_day", "battery", "light_lux", "uv_index",
		"magnetic_x", "magnetic_y", "magnetic_z",
		"co2_ppm", "temp_c", "hum_rh",
	}
)

// ValidDriver reports whether name is a registered SQL driver.
func ValidDriver(name string) bool {
	return name == DriverPostgres || name == DriverPgx
}

// OpenSQL opens a Postgres/Timescale handle with the lib/pq ("postgres") or
// pgx ("pgx") driver.
func OpenSQL(ctx context.Context, driver, connString string) (*sql.DB, error) {
	if !ValidDriver(driver) {
		return nil, fmt.Errorf("sql sink: unknown driver %q", driver)
	}
	db, err := sql.Open(driver, connString)
	if err != nil {
		return nil, fmt.Errorf("sql sink: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sql sink: ping: %w", err)
	}
	return db, nil
}

// SQLSink stores records in a table with one nullable column per field.
type SQLSink struct {
	db        *sql.DB
	tableName string
}

func NewSQLSink(db *sql.DB, table string) (*SQLSink, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("sql sink: invalid table name %q", table)
	}
	return &SQLSink{db: db, tableName: table}, nil
}

func (t *SQLSink) Name() string { return "sql" }

// EnsureSchema creates the table if it does not exist.
func (t *SQLSink) EnsureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS ` + t.tableName + ` (
  id          BIGSERIAL PRIMARY KEY,
  inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  time_of_day TEXT,
  battery     DOUBLE PRECISION,
  light_lux   DOUBLE PRECISION,
  uv_index    DOUBLE PRECISION,
  magnetic_x  DOUBLE PRECISION,
  magnetic_y  DOUBLE PRECISION,
  magnetic_z  DOUBLE PRECISION,
  co2_ppm     DOUBLE PRECISION,
  temp_c      DOUBLE PRECISION,
  hum_rh      DOUBLE PRECISION
)`
	if _, err := t.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sql sink: create table: %w", err)
	}
	return nil
}

func (t *SQLSink) Append(ctx context.Context, rec domain.Record) error {
	return t.WriteBatch(ctx, []domain.Record{rec})
}

// Postgres caps a statement at 65535 bind parameters.
const maxBindParams = 65535

// rowsPerStatement is the largest batch a single INSERT can carry.
var rowsPerStatement = maxBindParams / int(domain.NumFields)

// WriteBatch inserts the records in slice order. Batches larger than one
// statement can carry are split and written in a single transaction.
func (t *SQLSink) WriteBatch(ctx context.Context, recs []domain.Record) error {
	if len(recs) == 0 {
		return nil
	}
	if len(recs) <= rowsPerStatement {
		query, args := t.insert(recs)
		if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("sql sink: insert records: %w", err)
		}
		return nil
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sql sink: begin: %w", err)
	}
	for len(recs) > 0 {
		n := min(len(recs), rowsPerStatement)
		query, args := t.insert(recs[:n])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sql sink: insert records: %w", err)
		}
		recs = recs[n:]
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sql sink: commit: %w", err)
	}
	return nil
}

func (t *SQLSink) insert(recs []domain.Record) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (")
	b.WriteString(strings.Join(sqlColumns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(recs)*int(domain.NumFields))
	for i, rec := range recs {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for f := range rec {
			if f > 0 {
				b.WriteString(",")
			}
			args = append(args, columnValue(rec[f]))
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteString(")")
	}
	return b.String(), args
}

func (t *SQLSink) Close() error { return nil }

// columnValue maps a field to a driver value; missing fields become NULL.
func columnValue(v domain.Value) any {
	switch {
	case !v.Valid:
		return nil
	case v.Text != "":
		return v.Text
	default:
		return v.Num
	}
}

var (
	_ ports.Sink      = (*SQLSink)(nil)
	_ ports.BatchSink = (*SQLSink)(nil)
)
