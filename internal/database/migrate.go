package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Per-driver column fragments. Queries are otherwise written in portable SQL
// with `?` placeholders rebound through sqlx.
var dialects = map[string]struct {
	pk   string
	blob string
	bool string
}{
	"postgres": {pk: "BIGSERIAL PRIMARY KEY", blob: "BYTEA", bool: "BOOLEAN"},
	"mysql":    {pk: "BIGINT AUTO_INCREMENT PRIMARY KEY", blob: "LONGBLOB", bool: "BOOLEAN"},
	"sqlite3":  {pk: "INTEGER PRIMARY KEY AUTOINCREMENT", blob: "BLOB", bool: "BOOLEAN"},
}

// Migrate creates the gateway tables if they do not exist yet. Target model
// tables (partners, orders, ...) belong to the host application and are not
// managed here.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	d, ok := dialects[db.DriverName()]
	if !ok {
		return fmt.Errorf("no schema dialect for driver %q", db.DriverName())
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS mail_servers (
			id %s,
			name VARCHAR(255) NOT NULL,
			host VARCHAR(255) NOT NULL,
			port INTEGER NOT NULL DEFAULT 0,
			username VARCHAR(255) NOT NULL DEFAULT '',
			password VARCHAR(255) NOT NULL DEFAULT '',
			tls %s NOT NULL DEFAULT true,
			state VARCHAR(16) NOT NULL DEFAULT 'draft',
			folders_only %s NOT NULL DEFAULT false,
			attach_files %s NOT NULL DEFAULT true,
			active %s NOT NULL DEFAULT true
		)`, d.pk, d.bool, d.bool, d.bool, d.bool),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS mail_folders (
			id %s,
			server_id BIGINT NOT NULL,
			sequence_num INTEGER NOT NULL DEFAULT 10,
			path VARCHAR(255) NOT NULL,
			state VARCHAR(16) NOT NULL DEFAULT 'draft',
			active %s NOT NULL DEFAULT true,
			model VARCHAR(128) NOT NULL,
			model_field VARCHAR(128) NOT NULL DEFAULT '',
			model_order VARCHAR(128) NOT NULL DEFAULT '',
			match_algorithm VARCHAR(64) NOT NULL,
			mail_field VARCHAR(64) NOT NULL DEFAULT '',
			delete_matching %s NOT NULL DEFAULT false,
			flag_nonmatching %s NOT NULL DEFAULT true,
			match_first %s NOT NULL DEFAULT false,
			extra_filter VARCHAR(512) NOT NULL DEFAULT '',
			msg_state VARCHAR(16) NOT NULL DEFAULT 'received',
			action_id BIGINT,
			fetch_policy VARCHAR(16) NOT NULL DEFAULT 'unseen',
			last_internal_date TIMESTAMP
		)`, d.pk, d.bool, d.bool, d.bool, d.bool),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS mail_messages (
			id %s,
			model VARCHAR(128) NOT NULL,
			record_id BIGINT NOT NULL,
			message_id VARCHAR(255),
			subject VARCHAR(512) NOT NULL DEFAULT '',
			body TEXT,
			email_from VARCHAR(255) NOT NULL DEFAULT '',
			author_id BIGINT,
			message_date TIMESTAMP,
			message_type VARCHAR(16) NOT NULL DEFAULT 'email',
			state VARCHAR(16) NOT NULL DEFAULT 'received',
			folder_id BIGINT,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (model, message_id)
		)`, d.pk),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS mail_attachments (
			id %s,
			message_row_id BIGINT NOT NULL,
			model VARCHAR(128) NOT NULL,
			record_id BIGINT NOT NULL,
			name VARCHAR(255) NOT NULL,
			content_type VARCHAR(128) NOT NULL DEFAULT 'application/octet-stream',
			content %s,
			storage_key VARCHAR(64) NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`, d.pk, d.blob),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS mail_action_runs (
			id %s,
			action_id BIGINT NOT NULL,
			model VARCHAR(128) NOT NULL,
			record_id BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`, d.pk),
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
