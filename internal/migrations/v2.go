package migrations

import "fmt"

// v2 introduced per-workspace timezones and first-touch UTM capture.
func v2() unit {
	return unit{
		version: 2,
		system: func(db string) []string {
			return []string{
				fmt.Sprintf(`ALTER TABLE %s.workspaces ADD COLUMN IF NOT EXISTS timezone String DEFAULT 'UTC'`, db),
			}
		},
		workspace: func(db string) []string {
			return []string{
				fmt.Sprintf(`ALTER TABLE %s.events ADD COLUMN IF NOT EXISTS utm_source String DEFAULT ''`, db),
				fmt.Sprintf(`ALTER TABLE %s.events ADD COLUMN IF NOT EXISTS utm_medium String DEFAULT ''`, db),
				fmt.Sprintf(`ALTER TABLE %s.events ADD COLUMN IF NOT EXISTS utm_campaign String DEFAULT ''`, db),
			}
		},
	}
}
