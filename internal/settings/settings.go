package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Keys reserved for the migration coordinator. Nothing else may write them.
const (
	VersionKey = "db_major_version"
	LockKey    = "migration_lock"
)

// Record is one row of the system settings table.
type Record struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Store reads and writes the key/value settings table in the system
// database. The table is a ReplacingMergeTree keyed on `key`; writes are
// plain inserts and reads use FINAL so the newest write per key wins.
type Store struct {
	DB       *sql.DB
	Database string
	Table    string
}

// Get returns the record for key, reporting absence without error.
func (s *Store) Get(ctx context.Context, key string) (Record, bool, error) {
	row := s.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT value, updated_at FROM %s.%s FINAL WHERE key = ?`, s.Database, s.Table), key)
	rec := Record{Key: key}
	if err := row.Scan(&rec.Value, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return rec, true, nil
}

// Put upserts key to value. The insert timestamp decides which write wins.
func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s.%s (key, value, updated_at) VALUES (?, ?, ?)`, s.Database, s.Table),
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

// Delete removes every row for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s.%s WHERE key = ?`, s.Database, s.Table), key)
	if err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}
