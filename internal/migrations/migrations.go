// Package migrations holds the schema history: one unit per major version,
// registered with the runner at startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/staminads/staminads/internal/migrator"
)

// All returns every schema unit, one per major version.
func All() []migrator.Unit {
	return []migrator.Unit{v2(), v3(), v4()}
}

// unit is a migration expressed as DDL generators. A nil generator means
// the version has no work at that level.
type unit struct {
	version   int
	system    func(db string) []string
	workspace func(db string) []string
}

func (u unit) Version() int                { return u.version }
func (u unit) HasSystemMigration() bool    { return u.system != nil }
func (u unit) HasWorkspaceMigration() bool { return u.workspace != nil }

func (u unit) MigrateSystem(ctx context.Context, conn *sql.DB, systemDB string) error {
	if u.system == nil {
		return nil
	}
	return execAll(ctx, conn, u.system(systemDB))
}

func (u unit) MigrateWorkspace(ctx context.Context, conn *sql.DB, workspaceDB string) error {
	if u.workspace == nil {
		return nil
	}
	return execAll(ctx, conn, u.workspace(workspaceDB))
}

func execAll(ctx context.Context, conn *sql.DB, stmts []string) error {
	for i, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d of %d: %w", i+1, len(stmts), err)
		}
	}
	return nil
}
