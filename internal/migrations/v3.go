package migrations

import "fmt"

// v3 adds channel classification to events and rebuilds the derived
// sessions view on top of it. The view holds no data of its own, so the
// drop/create pair can run any number of times.
func v3() unit {
	return unit{
		version: 3,
		workspace: func(db string) []string {
			return []string{
				fmt.Sprintf(`ALTER TABLE %s.events ADD COLUMN IF NOT EXISTS channel LowCardinality(String) DEFAULT 'direct'`, db),
				fmt.Sprintf(`ALTER TABLE %s.events ADD COLUMN IF NOT EXISTS channel_group LowCardinality(String) DEFAULT 'direct'`, db),
				fmt.Sprintf(`DROP VIEW IF EXISTS %s.sessions`, db),
				fmt.Sprintf(`CREATE VIEW %s.sessions AS
SELECT
    session_id,
    min(timestamp) AS started_at,
    max(timestamp) AS ended_at,
    any(utm_source) AS utm_source,
    any(utm_medium) AS utm_medium,
    any(utm_campaign) AS utm_campaign,
    any(channel) AS channel,
    any(channel_group) AS channel_group,
    count() AS pageviews
FROM %s.events
GROUP BY session_id`, db, db),
			}
		},
	}
}
