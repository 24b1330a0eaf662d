package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// Open connects to ClickHouse through database/sql via the clickhouse-go
// driver registration. Schema-altering statements are slow on a columnar
// store, so the pool stays small.
func Open(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)
	return conn, nil
}

// Bootstrap creates the system database and its settings table if absent.
// It runs before any lock or version logic on every start and is safe to
// repeat. ReplacingMergeTree keyed on `key` keeps at most one visible row
// per key, newest updated_at winning.
func Bootstrap(ctx context.Context, conn *sql.DB, systemDB, settingsTable string) error {
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", systemDB)); err != nil {
		return fmt.Errorf("create system database %s: %w", systemDB, err)
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.%s (
  key String,
  value String,
  updated_at DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY key
`, systemDB, settingsTable)
	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create settings table %s.%s: %w", systemDB, settingsTable, err)
	}
	return nil
}
