package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/staminads/staminads/internal/db"
	"github.com/staminads/staminads/internal/lock"
	"github.com/staminads/staminads/internal/logger"
	"github.com/staminads/staminads/internal/settings"
	"github.com/staminads/staminads/internal/workspace"
)

var (
	// ErrDowngrade marks an installed schema newer than the running build.
	ErrDowngrade = errors.New("installed schema is newer than this build")
	// ErrNotRegistered marks a required version with no registered unit.
	ErrNotRegistered = errors.New("no migration registered")
)

// Config carries the identifiers and thresholds the runner coordinates with.
type Config struct {
	SystemDatabase  string
	SettingsTable   string
	WorkspacePrefix string
	Holder          string        // lease identity, e.g. hostname
	Target          int           // highest major version known to this build
	StaleAfter      time.Duration // lease age past which it may be reclaimed
}

// Runner drives the installed schema to the build's target version, one
// major version at a time, under the migration lease.
type Runner struct {
	conn       *sql.DB
	cfg        Config
	registry   *Registry
	log        *logger.Logger
	versions   *VersionStore
	lease      *lock.Lease
	workspaces *workspace.Enumerator
}

func NewRunner(conn *sql.DB, registry *Registry, cfg Config, log *logger.Logger) *Runner {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	st := &settings.Store{DB: conn, Database: cfg.SystemDatabase, Table: cfg.SettingsTable}
	return &Runner{
		conn:     conn,
		cfg:      cfg,
		registry: registry,
		log:      log.With(map[string]any{"holder": cfg.Holder}),
		versions: &VersionStore{Settings: st},
		lease:    lock.New(st, cfg.Holder, cfg.StaleAfter),
		workspaces: &workspace.Enumerator{
			DB:       conn,
			Database: cfg.SystemDatabase,
			Prefix:   cfg.WorkspacePrefix,
		},
	}
}

// Run returns true when another instance holds the migration lease, in
// which case the caller should defer to it and retry later. Any error is
// fatal to startup. Run owns the connection it was constructed with: the
// lease is released and the connection closed on every exit path.
func (r *Runner) Run(ctx context.Context) (deferred bool, err error) {
	defer func() {
		if cerr := r.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := db.Bootstrap(ctx, r.conn, r.cfg.SystemDatabase, r.cfg.SettingsTable); err != nil {
		return false, err
	}

	st, err := r.lease.TryAcquire(ctx)
	if err != nil {
		return false, err
	}
	if !st.Acquired {
		r.log.Info("migration lease held elsewhere, deferring", map[string]any{
			"held_by": st.Holder,
			"age_sec": int(st.Age.Seconds()),
		})
		return true, nil
	}
	if st.Previous != "" {
		r.log.Warn("reclaimed stale migration lease", map[string]any{
			"previous": st.Previous,
			"age_sec":  int(st.Age.Seconds()),
		})
	}
	defer func() {
		if rerr := r.lease.Release(ctx); rerr != nil {
			// The lease self-heals through staleness; don't mask the run error.
			r.log.Warn("lease release failed", map[string]any{"error": rerr.Error()})
		}
	}()

	return false, r.converge(ctx)
}

// converge applies versions until the installed one matches the target,
// re-reading the recorded version between steps so a multi-version gap is
// closed one durable step at a time.
func (r *Runner) converge(ctx context.Context) error {
	for {
		installed, ok, err := r.versions.Installed(ctx)
		if err != nil {
			return err
		}
		if !ok {
			// Fresh install: databases are created on the current schema,
			// so there is nothing to migrate.
			if err := r.versions.Record(ctx, r.cfg.Target); err != nil {
				return err
			}
			r.log.Info("fresh install, schema version pinned", map[string]any{"version": r.cfg.Target})
			return nil
		}
		switch {
		case installed == r.cfg.Target:
			r.log.Info("schema up to date", map[string]any{"version": installed})
			return nil
		case installed > r.cfg.Target:
			return fmt.Errorf("%w: installed v%d, code v%d", ErrDowngrade, installed, r.cfg.Target)
		}
		if err := r.applyNext(ctx, installed+1); err != nil {
			return err
		}
	}
}

func (r *Runner) applyNext(ctx context.Context, next int) error {
	unit, ok := r.registry.Unit(next)
	if !ok {
		return fmt.Errorf("%w for version %d", ErrNotRegistered, next)
	}
	started := time.Now()
	fields := map[string]any{"version": next}
	if unit.HasSystemMigration() {
		if err := unit.MigrateSystem(ctx, r.conn, r.cfg.SystemDatabase); err != nil {
			return fmt.Errorf("migrate system to v%d: %w", next, err)
		}
	}
	if unit.HasWorkspaceMigration() {
		ids, err := r.workspaces.List(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := unit.MigrateWorkspace(ctx, r.conn, r.workspaces.DatabaseName(id)); err != nil {
				return fmt.Errorf("migrate workspace %s to v%d: %w", id, next, err)
			}
		}
		fields["workspaces"] = len(ids)
	}
	if err := r.versions.Record(ctx, next); err != nil {
		return err
	}
	fields["duration_ms"] = time.Since(started).Milliseconds()
	r.log.Info("migrated", fields)
	return nil
}
