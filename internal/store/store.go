// Package store persists classified campaign results in SQLite and
// rebuilds them for analysis. The database is the hand-off point between
// log parsing and reporting: parse once, analyze as often as needed.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/tollsimy/rapid/internal/classify"
	"github.com/tollsimy/rapid/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS tests (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	test_name          TEXT NOT NULL,
	benchmark          TEXT NOT NULL,
	test_number        INTEGER NOT NULL,
	campaign_id        TEXT,
	binary             TEXT,
	byte_offset        INTEGER,
	bit_offset         INTEGER,
	needs_manual_check INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS status (
	test_id    INTEGER PRIMARY KEY,
	class      TEXT NOT NULL,
	trap_cause TEXT,
	FOREIGN KEY (test_id) REFERENCES tests(id)
);

CREATE TABLE IF NOT EXISTS events (
	test_id INTEGER NOT NULL,
	tag     TEXT NOT NULL,
	PRIMARY KEY (test_id, tag),
	FOREIGN KEY (test_id) REFERENCES tests(id)
);

CREATE INDEX IF NOT EXISTS idx_tests_benchmark ON tests(benchmark);
CREATE INDEX IF NOT EXISTS idx_tests_number ON tests(benchmark, test_number);
`

// Store wraps the results database. A missing row in the status table is
// how the schema represents missing_status, so rebuilding records never
// loses the distinction between "classified failed" and "never
// classified".
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// Open creates or opens the results database at path and applies the
// schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Debug("results database open", zap.String("path", path))
	return &Store{db: db, path: path, logger: logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// WriteRows inserts a batch of classified rows in one transaction.
// Rows whose status is missing_status get a tests row but no status row.
func (s *Store) WriteRows(ctx context.Context, rows []classify.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertTest, err := tx.PrepareContext(ctx, `
		INSERT INTO tests (test_name, benchmark, test_number, campaign_id, binary, byte_offset, bit_offset, needs_manual_check)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare tests insert: %w", err)
	}
	defer insertTest.Close()

	insertStatus, err := tx.PrepareContext(ctx, `
		INSERT INTO status (test_id, class, trap_cause) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare status insert: %w", err)
	}
	defer insertStatus.Close()

	insertEvent, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO events (test_id, tag) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare events insert: %w", err)
	}
	defer insertEvent.Close()

	for _, row := range rows {
		manual := 0
		if row.Record.ManualCheck {
			manual = 1
		}
		res, err := insertTest.ExecContext(ctx,
			row.Record.TestName, row.Benchmark, row.Record.TestNumber,
			row.Fault.CampaignID, row.Fault.Binary, row.Fault.ByteOffset, row.Fault.BitOffset,
			manual)
		if err != nil {
			return fmt.Errorf("insert test %q: %w", row.Record.TestName, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("test id for %q: %w", row.Record.TestName, err)
		}

		if row.Record.TopStatus != types.StatusMissing {
			var trapCause any
			if row.Record.TrapCause != "" {
				trapCause = row.Record.TrapCause
			}
			if _, err := insertStatus.ExecContext(ctx, id, string(row.Record.TopStatus), trapCause); err != nil {
				return fmt.Errorf("insert status for %q: %w", row.Record.TestName, err)
			}
		}

		for _, tag := range row.Record.EventTags {
			if _, err := insertEvent.ExecContext(ctx, id, string(tag)); err != nil {
				return fmt.Errorf("insert event for %q: %w", row.Record.TestName, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rows: %w", err)
	}
	s.logger.Info("rows written", zap.Int("count", len(rows)))
	return nil
}

// Benchmarks lists the distinct benchmark types with stored results.
func (s *Store) Benchmarks(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT benchmark FROM tests WHERE benchmark != '' ORDER BY benchmark`)
	if err != nil {
		return nil, fmt.Errorf("query benchmarks: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan benchmark: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Records rebuilds the status records of one benchmark, ordered by test
// number. Tests without a status row come back as missing_status.
func (s *Store) Records(ctx context.Context, benchmark string) ([]types.StatusRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.test_name, t.test_number, t.needs_manual_check,
		       COALESCE(st.class, ?), COALESCE(st.trap_cause, '')
		FROM tests t
		LEFT JOIN status st ON st.test_id = t.id
		WHERE t.benchmark = ?
		ORDER BY t.test_number, t.test_name`,
		string(types.StatusMissing), benchmark)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []types.StatusRecord
	byID := make(map[int64]int)
	for rows.Next() {
		var (
			id     int64
			rec    types.StatusRecord
			manual int
			class  string
		)
		if err := rows.Scan(&id, &rec.TestName, &rec.TestNumber, &manual, &class, &rec.TrapCause); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.TopStatus = types.TopStatus(class)
		rec.ManualCheck = manual != 0
		byID[id] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachTags(ctx, benchmark, byID, records); err != nil {
		return nil, err
	}
	for i := range records {
		records[i].EventTags = types.NormalizeTags(records[i].EventTags)
	}
	return records, nil
}

// TestsWithStatus lists the names of a benchmark's tests that carry the
// given status, in test-number order. missing_status matches tests
// without a status row.
func (s *Store) TestsWithStatus(ctx context.Context, benchmark string, status types.TopStatus) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.test_name
		FROM tests t
		LEFT JOIN status st ON st.test_id = t.id
		WHERE t.benchmark = ? AND COALESCE(st.class, ?) = ?
		ORDER BY t.test_number, t.test_name`,
		benchmark, string(types.StatusMissing), string(status))
	if err != nil {
		return nil, fmt.Errorf("query tests by status: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan test name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) attachTags(ctx context.Context, benchmark string, byID map[int64]int, records []types.StatusRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.test_id, e.tag
		FROM events e
		JOIN tests t ON t.id = e.test_id
		WHERE t.benchmark = ?`, benchmark)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int64
			tag string
		)
		if err := rows.Scan(&id, &tag); err != nil {
			return fmt.Errorf("scan event: %w", err)
		}
		if i, ok := byID[id]; ok {
			records[i].EventTags = append(records[i].EventTags, types.EventTag(tag))
		}
	}
	return rows.Err()
}
