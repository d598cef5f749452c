package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vogiaan1904/ticketbottle-lightning/config"
)

func migrations(driver string) []string {
	ts := "TIMESTAMP"
	if driver == config.DriverPostgres {
		ts = "TIMESTAMPTZ"
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			date %[1]s NOT NULL,
			ticket_price BIGINT NOT NULL CHECK (ticket_price > 0),
			ticket_count BIGINT NOT NULL CHECK (ticket_count > 0),
			tickets_sold BIGINT NOT NULL DEFAULT 0 CHECK (tickets_sold >= 0 AND tickets_sold <= ticket_count),
			created_at %[1]s NOT NULL
		)`, ts),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS tickets (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at %[1]s NOT NULL,
			invoice_id TEXT NOT NULL DEFAULT '',
			invoice_request TEXT NOT NULL DEFAULT '',
			invoice_status TEXT NOT NULL DEFAULT '',
			seat_number TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			checked_in_at %[1]s NULL,
			owner_email TEXT NOT NULL DEFAULT '',
			owner_address TEXT NOT NULL DEFAULT '',
			transferred_at %[1]s NULL,
			transfer_history TEXT NOT NULL DEFAULT '[]',
			version BIGINT NOT NULL DEFAULT 1
		)`, ts),

		// One claimed ticket per invoice across all events.
		`DROP INDEX IF EXISTS idx_tickets_claim_invoice`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_claim_once
			ON tickets(invoice_id) WHERE source = 'claim'`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_event_status ON tickets(event_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_invoice_id ON tickets(invoice_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_status_created_at ON tickets(status, created_at)`,
	}
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	for _, m := range migrations(driver) {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}
