package migrations

import "fmt"

// v4 adds the task queue drained by the background executor. System level
// only; workspace databases are untouched.
func v4() unit {
	return unit{
		version: 4,
		system: func(db string) []string {
			return []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.tasks (
    id UUID,
    workspace_id String,
    kind LowCardinality(String),
    status LowCardinality(String) DEFAULT 'pending',
    payload String DEFAULT '',
    created_at DateTime DEFAULT now(),
    updated_at DateTime DEFAULT now()
) ENGINE = MergeTree
ORDER BY (workspace_id, created_at)`, db),
			}
		},
	}
}
