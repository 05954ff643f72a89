package db

import "database/sql"

func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS messages (
    id               BIGSERIAL PRIMARY KEY,
    time_created     TIMESTAMPTZ NOT NULL DEFAULT now(),
    sender_id        BIGINT,
    cls              VARCHAR(250) NOT NULL,
    gmark            VARCHAR(128) NOT NULL DEFAULT '',
    context          JSONB NOT NULL DEFAULT '{}',
    priority         INTEGER NOT NULL DEFAULT 0,
    dispatches_ready BOOLEAN NOT NULL DEFAULT FALSE
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS dispatches (
    id              BIGSERIAL PRIMARY KEY,
    time_created    TIMESTAMPTZ NOT NULL DEFAULT now(),
    time_dispatched TIMESTAMPTZ,
    message_id      BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
    messenger       VARCHAR(250) NOT NULL,
    recipient_id    BIGINT,
    address         VARCHAR(250) NOT NULL,
    retry_count     INTEGER NOT NULL DEFAULT 0,
    message_cache   TEXT,
    dispatch_status INTEGER NOT NULL DEFAULT 1,
    read_status     INTEGER NOT NULL DEFAULT 0
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS dispatch_errors (
    id           BIGSERIAL PRIMARY KEY,
    time_created TIMESTAMPTZ NOT NULL DEFAULT now(),
    dispatch_id  BIGINT NOT NULL REFERENCES dispatches(id) ON DELETE CASCADE,
    error_log    TEXT NOT NULL
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS subscriptions (
    id            BIGSERIAL PRIMARY KEY,
    time_created  TIMESTAMPTZ NOT NULL DEFAULT now(),
    message_cls   VARCHAR(250) NOT NULL,
    messenger_cls VARCHAR(250) NOT NULL,
    recipient_id  BIGINT,
    address       VARCHAR(250)
)`); err != nil {
		return err
	}

	indexes := []string{
		// Claim query: unsent dispatches joined with messages ordered by recency.
		`CREATE INDEX IF NOT EXISTS idx_dispatches_status ON dispatches(dispatch_status) WHERE dispatch_status IN (1, 3)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_message_id ON dispatches(message_id)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_messenger ON dispatches(messenger)`,
		// Unread feed.
		`CREATE INDEX IF NOT EXISTS idx_dispatches_read_status ON dispatches(read_status) WHERE read_status = 0`,
		// Retention sweep filters on delivery time of sent dispatches.
		`CREATE INDEX IF NOT EXISTS idx_dispatches_time_dispatched ON dispatches(time_dispatched) WHERE dispatch_status = 2`,
		`CREATE INDEX IF NOT EXISTS idx_messages_cls ON messages(cls)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_gmark ON messages(gmark) WHERE gmark <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_messages_priority ON messages(priority)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_dispatches_ready ON messages(dispatches_ready) WHERE dispatches_ready = FALSE`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_message_cls ON subscriptions(message_cls)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_recipient_id ON subscriptions(recipient_id)`,
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	return nil
}

// MigrateDown rolls back the database schema.
// Use with caution: this will delete all data in the affected tables.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS dispatch_errors CASCADE`,
		`DROP TABLE IF EXISTS dispatches CASCADE`,
		`DROP TABLE IF EXISTS subscriptions CASCADE`,
		`DROP TABLE IF EXISTS messages CASCADE`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
