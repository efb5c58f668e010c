package draft

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/faciam-dev/formportal/pkg/util"
)

// SQLStore keeps drafts in a single SQL table. Driver selects the dialect:
// util.BackendSQLite (the default when empty), util.BackendMySQL or
// util.BackendPostgres.
type SQLStore struct {
	DB          *sql.DB
	Driver      string
	TablePrefix string
}

func (s *SQLStore) table() string { return s.TablePrefix + "drafts" }

func (s *SQLStore) ph(n int) string { return util.Placeholder(s.Driver, n) }

// Migrate creates the drafts table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	key, payload, ts := "TEXT", "BLOB", "TIMESTAMP"
	switch s.Driver {
	case util.BackendMySQL:
		key, payload, ts = "VARCHAR(255)", "LONGBLOB", "DATETIME(6)"
	case util.BackendPostgres:
		payload, ts = "BYTEA", "TIMESTAMPTZ"
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	draft_key %s PRIMARY KEY,
	payload %s NOT NULL,
	updated_at %s NOT NULL
)`, s.table(), key, payload, ts)
	if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("migrate drafts: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var b []byte
	q := fmt.Sprintf("SELECT payload FROM %s WHERE draft_key = %s", s.table(), s.ph(1))
	err := s.DB.QueryRowContext(ctx, q, key).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get draft: %w", err)
	}
	return b, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	q := fmt.Sprintf("INSERT INTO %s (draft_key, payload, updated_at) VALUES (%s, %s, %s)\n", s.table(), s.ph(1), s.ph(2), s.ph(3))
	if s.Driver == util.BackendMySQL {
		q += "ON DUPLICATE KEY UPDATE payload = VALUES(payload), updated_at = VALUES(updated_at)"
	} else {
		q += "ON CONFLICT(draft_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at"
	}
	if _, err := s.DB.ExecContext(ctx, q, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set draft: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE draft_key = %s", s.table(), s.ph(1))
	if _, err := s.DB.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// Purge removes drafts last written before cutoff and reports how many were
// deleted.
func (s *SQLStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	q := fmt.Sprintf("DELETE FROM %s WHERE updated_at < %s", s.table(), s.ph(1))
	res, err := s.DB.ExecContext(ctx, q, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge drafts: %w", err)
	}
	return res.RowsAffected()
}
