package sink

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	// Register the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/jobrunner/geotrans/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	source       TEXT NOT NULL,
	target       TEXT NOT NULL,
	points       INTEGER NOT NULL,
	failed       INTEGER NOT NULL,
	processed_at TIMESTAMP NOT NULL,
	duration_ns  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS points (
	batch_id INTEGER NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
	idx      INTEGER NOT NULL,
	in_x     REAL NOT NULL,
	in_y     REAL NOT NULL,
	in_z     REAL,
	out_x    REAL NOT NULL,
	out_y    REAL NOT NULL,
	out_z    REAL,
	error    TEXT,
	PRIMARY KEY (batch_id, idx)
);
CREATE INDEX IF NOT EXISTS batches_name ON batches(name);
`

// SQLiteSink stores batch results in a SQLite database.
type SQLiteSink struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteSink opens or creates the database at path.
func NewSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating result schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Write implements output.ResultSink. Each batch is stored in one
// transaction.
func (s *SQLiteSink) Write(ctx context.Context, result *domain.BatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO batches (name, source, target, points, failed, processed_at, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.Name, result.Source, result.Target, len(result.Results), result.Failed,
		result.ProcessedAt, result.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting batch %s: %w", result.Name, err)
	}
	batchID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO points (batch_id, idx, in_x, in_y, in_z, out_x, out_y, out_z, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range result.Results {
		_, err := stmt.ExecContext(ctx, batchID, r.Index,
			finite(r.Input.X), finite(r.Input.Y), nullable(r.Input.Z),
			finite(r.Output.X), finite(r.Output.Y), nullable(r.Output.Z),
			sql.NullString{String: r.Error, Valid: r.Error != ""},
		)
		if err != nil {
			return fmt.Errorf("inserting point %d of %s: %w", r.Index, result.Name, err)
		}
	}
	return tx.Commit()
}

// Close implements output.ResultSink.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// DB returns the underlying database.
func (s *SQLiteSink) DB() *sql.DB {
	return s.db
}

func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
}

// finite maps NaN and Inf to 0, SQLite stores NaN as NULL.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
