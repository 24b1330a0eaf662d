package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Unit is one major schema version's worth of changes. Units are defined at
// build time, immutable, and keyed by major version. A unit may carry
// system-level work, workspace-level work, or both. Workspace work must be
// idempotent: a run killed mid-version is resumed by re-applying the last
// version that was never recorded.
type Unit interface {
	Version() int
	HasSystemMigration() bool
	HasWorkspaceMigration() bool
	// MigrateSystem alters the shared system database.
	MigrateSystem(ctx context.Context, conn *sql.DB, systemDB string) error
	// MigrateWorkspace alters one tenant database. The runner calls it once
	// per enumerated workspace, sequentially.
	MigrateWorkspace(ctx context.Context, conn *sql.DB, workspaceDB string) error
}

// Registry is the ordered, immutable collection of migration units,
// assembled once at process start and handed to the runner.
type Registry struct {
	units map[int]Unit
}

func NewRegistry(units ...Unit) (*Registry, error) {
	r := &Registry{units: make(map[int]Unit, len(units))}
	for _, u := range units {
		v := u.Version()
		if v < 1 {
			return nil, fmt.Errorf("migration unit has invalid version %d", v)
		}
		if _, dup := r.units[v]; dup {
			return nil, fmt.Errorf("duplicate migration unit for version %d", v)
		}
		r.units[v] = u
	}
	return r, nil
}

// Unit returns the unit registered for a major version.
func (r *Registry) Unit(version int) (Unit, bool) {
	u, ok := r.units[version]
	return u, ok
}

// Versions lists the registered majors in ascending order.
func (r *Registry) Versions() []int {
	out := make([]int, 0, len(r.units))
	for v := range r.units {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Latest returns the highest registered major, or 0 when empty.
func (r *Registry) Latest() int {
	latest := 0
	for v := range r.units {
		if v > latest {
			latest = v
		}
	}
	return latest
}
