package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/staminads/staminads/internal/config"
	"github.com/staminads/staminads/internal/db"
	"github.com/staminads/staminads/internal/logger"
	"github.com/staminads/staminads/internal/migrations"
	"github.com/staminads/staminads/internal/migrator"
	"github.com/staminads/staminads/internal/settings"
	"github.com/staminads/staminads/internal/version"
	"github.com/staminads/staminads/internal/workspace"
)

const (
	exitOK       = 0
	exitDeferred = 3
	exitFail     = 4
	exitUsage    = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" || os.Args[1] == "help" {
		usage()
		return exitOK
	}
	cmd := os.Args[1]
	switch cmd {
	case "up", "status":
	default:
		usage()
		return exitUsage
	}

	global := flag.NewFlagSet("global", flag.ContinueOnError)
	dsn := global.String("dsn", "", "ClickHouse DSN (or STAMINADS_CLICKHOUSE_DSN)")
	conf := global.String("config", "", "Optional YAML config path")
	jsonOut := global.Bool("json", false, "JSON logs")
	holder := global.String("holder", "", "Lease holder identity (default <hostname>-<random>)")
	systemDB := global.String("system-db", "", "System database name")
	prefix := global.String("prefix", "", "Workspace database prefix")
	table := global.String("table", "", "Settings table name")
	staleSec := global.Int("stale-sec", 0, "Age in seconds after which a foreign lease is stale")

	if err := global.Parse(os.Args[2:]); err != nil {
		return exitUsage
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}
	if *jsonOut {
		cfg.JSON = true
	}
	if *holder != "" {
		cfg.Holder = *holder
	}
	if *systemDB != "" {
		cfg.SystemDatabase = *systemDB
	}
	if *prefix != "" {
		cfg.WorkspacePrefix = *prefix
	}
	if *table != "" {
		cfg.SettingsTable = *table
	}
	if *staleSec > 0 {
		cfg.LockStaleSec = *staleSec
	}
	if cfg.Holder == "" {
		cfg.Holder = defaultHolder()
	}

	log := logger.New(cfg.JSON)

	if cfg.DSN == "" {
		fmt.Fprintln(os.Stderr, "--dsn or STAMINADS_CLICKHOUSE_DSN is required")
		return exitUsage
	}
	conn, err := db.Open(cfg.DSN)
	if err != nil {
		log.Error("clickhouse open failed", map[string]any{"error": err.Error()})
		return exitFail
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "up":
		return up(ctx, conn, cfg, log)
	default:
		return status(ctx, conn, cfg, log)
	}
}

// up converges the schema. The runner owns conn and closes it on every
// exit path.
func up(ctx context.Context, conn *sql.DB, cfg *config.Config, log *logger.Logger) int {
	reg, err := migrator.NewRegistry(migrations.All()...)
	if err != nil {
		_ = conn.Close()
		log.Error("migration registry invalid", map[string]any{"error": err.Error()})
		return exitFail
	}
	runner := migrator.NewRunner(conn, reg, migrator.Config{
		SystemDatabase:  cfg.SystemDatabase,
		SettingsTable:   cfg.SettingsTable,
		WorkspacePrefix: cfg.WorkspacePrefix,
		Holder:          cfg.Holder,
		Target:          version.Major(),
		StaleAfter:      cfg.StaleThreshold(),
	}, log)

	deferred, err := runner.Run(ctx)
	if err != nil {
		log.Error("migration failed", map[string]any{"error": err.Error()})
		return exitFail
	}
	if deferred {
		return exitDeferred
	}
	log.Info("schema current", map[string]any{"version": version.Major()})
	return exitOK
}

// status reports the installed version, lease state and workspace
// databases without taking the lease or changing anything.
func status(ctx context.Context, conn *sql.DB, cfg *config.Config, log *logger.Logger) int {
	defer conn.Close()

	if err := db.Bootstrap(ctx, conn, cfg.SystemDatabase, cfg.SettingsTable); err != nil {
		log.Error("bootstrap failed", map[string]any{"error": err.Error()})
		return exitFail
	}
	store := &settings.Store{DB: conn, Database: cfg.SystemDatabase, Table: cfg.SettingsTable}
	versions := &migrator.VersionStore{Settings: store}

	installed, present, err := versions.Installed(ctx)
	if err != nil {
		log.Error("version read failed", map[string]any{"error": err.Error()})
		return exitFail
	}

	ws := &workspace.Enumerator{DB: conn, Database: cfg.SystemDatabase, Prefix: cfg.WorkspacePrefix}
	ids, err := ws.List(ctx)
	if err != nil {
		log.Error("workspace enumeration failed", map[string]any{"error": err.Error()})
		return exitFail
	}
	for _, id := range ids {
		log.Info("status.workspace", map[string]any{"id": id, "database": ws.DatabaseName(id)})
	}

	summary := map[string]any{
		"code_version": version.Major(),
		"workspaces":   len(ids),
		"up_to_date":   present && installed == version.Major(),
	}
	if present {
		summary["installed"] = installed
	} else {
		summary["installed"] = "none"
	}
	if rec, held, err := store.Get(ctx, settings.LockKey); err != nil {
		log.Error("lease read failed", map[string]any{"error": err.Error()})
		return exitFail
	} else if held {
		summary["lease_holder"] = rec.Value
		summary["lease_age_sec"] = int(time.Since(rec.UpdatedAt).Seconds())
	}
	log.Info("status.summary", summary)
	return exitOK
}

func defaultHolder() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "staminads"
	}
	id, err := uuid.NewV4()
	if err != nil {
		return host
	}
	return host + "-" + id.String()[:8]
}

func usage() {
	fmt.Println(`staminads-migrate - schema coordinator for the staminads analytics backend

USAGE:
  staminads-migrate <command> [--flags]

COMMANDS:
  up        Converge the system and every workspace database to the code schema version
  status    Report installed version, lease state and workspace databases

GLOBAL FLAGS:
  --dsn <dsn>         ClickHouse DSN (or STAMINADS_CLICKHOUSE_DSN)
  --config <path>     Optional YAML config path
  --json              JSON logs
  --holder <name>     Lease holder identity (default <hostname>-<random>)
  --system-db <name>  System database (default staminads_system)
  --prefix <name>     Workspace database prefix (default staminads)
  --table <name>      Settings table (default settings)
  --stale-sec <sec>   Age after which a foreign lease counts as stale (default 300)

EXIT CODES:
  0  schema current (or status reported)
  3  deferred: another replica holds the migration lease
  4  migration or connection failure
  5  usage or configuration error

EXAMPLES:
  staminads-migrate up --dsn "clickhouse://default:@localhost:9000"
  staminads-migrate status --dsn "$STAMINADS_CLICKHOUSE_DSN" --json
  staminads-migrate up --config ./staminads.yaml --holder web-1`)
}
