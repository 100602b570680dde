// Package db provides SQLite persistence for the pending action backlog.
package db

// Schema defines the SQL statements to create database tables.
const Schema = `
-- Pending actions table
-- The durable backlog of ledger annotations awaiting a transaction match.
CREATE TABLE IF NOT EXISTS pending_actions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date_created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    source TEXT NOT NULL,              -- producing vendor processor
    action TEXT NOT NULL,              -- serialized match + mutation payload
    old_entry_notified INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_pending_actions_created
    ON pending_actions(date_created);

CREATE INDEX IF NOT EXISTS idx_pending_actions_notified
    ON pending_actions(old_entry_notified, date_created);
`

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.Exec(Schema); err != nil {
		return err
	}
	return nil
}
