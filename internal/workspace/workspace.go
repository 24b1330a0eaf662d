package workspace

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Enumerator lists tenant workspace ids from the system database and maps
// each to its physical database name. Workspaces are created and owned
// elsewhere; migrations only read the registry.
type Enumerator struct {
	DB       *sql.DB
	Database string // system database holding the workspaces table
	Prefix   string // namespace token prefixed to workspace database names
}

// List returns every known workspace id in enumeration order, fetched fresh
// on each call. The set is never cached across runs.
func (e *Enumerator) List(ctx context.Context) ([]string, error) {
	rows, err := e.DB.QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s.workspaces ORDER BY id`, e.Database))
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan workspace id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DatabaseName derives the physical database for a workspace id: the fixed
// prefix, an underscore, then the id lowercased with every rune outside
// [a-z0-9_] mapped to '_'. Distinct ids that collide after mapping are an
// accepted operational risk, not handled specially.
func (e *Enumerator) DatabaseName(id string) string {
	return e.Prefix + "_" + sanitize(id)
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, id)
}
