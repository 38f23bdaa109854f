package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/user/custodian/internal/evidence"
	"github.com/user/custodian/internal/types"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cases (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	seal       TEXT NOT NULL,
	record     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cases_seal ON cases(seal);
`

// SQLStore stores sealed cases in SQLite, one row per case. Each write runs
// in its own transaction.
type SQLStore struct {
	db *sql.DB
}

// OpenSQL opens or creates a SQLite database at path and applies the schema.
func OpenSQL(path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SQLStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&n); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if n == 0 {
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}
	var v int
	if err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != schemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Put inserts rec. An existing case is never replaced.
func (s *SQLStore) Put(ctx context.Context, rec *types.CaseRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("put case: missing case id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal case: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM cases WHERE id = ?", rec.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check case: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrCaseExists, rec.ID)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO cases(id, name, created_at, seal, record) VALUES(?, ?, ?, ?, ?)",
		rec.ID, rec.Name, rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.Seal, string(data),
	)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put tx: %w", err)
	}
	return nil
}

// GetAll returns every stored case ordered by creation time.
func (s *SQLStore) GetAll(ctx context.Context) ([]*types.CaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT record FROM cases")
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	cases := []*types.CaseRecord{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		var rec types.CaseRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal case: %w", err)
		}
		evidence.AttachPreviews(&rec)
		cases = append(cases, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}

	sortCases(cases)
	return cases, nil
}

// Delete removes a stored case.
func (s *SQLStore) Delete(ctx context.Context, id types.CaseID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cases WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrCaseNotFound, id)
	}
	return nil
}

// Clear removes every stored case.
func (s *SQLStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cases"); err != nil {
		return fmt.Errorf("clear cases: %w", err)
	}
	return nil
}
