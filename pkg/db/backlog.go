package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mailfin/ledgermail/pkg/action"
)

// Backlog manages pending action persistence.
type Backlog struct {
	conn *Connection
}

// NewBacklog creates a new Backlog instance.
func NewBacklog(conn *Connection) *Backlog {
	return &Backlog{conn: conn}
}

// Insert appends a pending action for the given source and returns the
// store-assigned id. Ids are monotonic with insertion order.
func (b *Backlog) Insert(source string, a action.Action) (int64, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize action: %w", err)
	}

	result, err := b.conn.Exec(
		`INSERT INTO pending_actions (source, action) VALUES (?, ?)`,
		source, string(payload),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert pending action: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	return id, nil
}

// ListOrderedByAge returns all pending actions, oldest first.
func (b *Backlog) ListOrderedByAge() ([]action.Row, error) {
	rows, err := b.conn.Query(`
		SELECT id, date_created, source, action, old_entry_notified
		FROM pending_actions
		ORDER BY date_created ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending actions: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// ListStale returns pending actions created at or before cutoff that have not
// been included in a stale report yet, oldest first.
func (b *Backlog) ListStale(cutoff time.Time) ([]action.Row, error) {
	rows, err := b.conn.Query(`
		SELECT id, date_created, source, action, old_entry_notified
		FROM pending_actions
		WHERE date_created <= ? AND old_entry_notified = 0
		ORDER BY date_created ASC, id ASC
	`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list stale actions: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// DeleteByIDs removes the given pending actions in one bulk statement.
func (b *Backlog) DeleteByIDs(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`DELETE FROM pending_actions WHERE id IN (%s)`, placeholders(len(ids)))
	if _, err := b.conn.Exec(query, idArgs(ids)...); err != nil {
		return fmt.Errorf("failed to delete pending actions: %w", err)
	}
	return nil
}

// MarkStaleNotified flags the given actions as having appeared in a stale
// report. The flag is set once and never reset.
func (b *Backlog) MarkStaleNotified(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`UPDATE pending_actions SET old_entry_notified = 1 WHERE id IN (%s)`,
		placeholders(len(ids)))
	if _, err := b.conn.Exec(query, idArgs(ids)...); err != nil {
		return fmt.Errorf("failed to mark actions notified: %w", err)
	}
	return nil
}

// Stats summarizes the backlog contents.
type Stats struct {
	TotalPending  int
	TotalNotified int
	Oldest        sql.NullString
}

// GetStats returns backlog statistics.
func (b *Backlog) GetStats() (Stats, error) {
	var stats Stats
	err := b.conn.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(old_entry_notified), 0),
		       MIN(date_created)
		FROM pending_actions
	`).Scan(&stats.TotalPending, &stats.TotalNotified, &stats.Oldest)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get backlog stats: %w", err)
	}
	return stats, nil
}

func scanRows(rows *sql.Rows) ([]action.Row, error) {
	var out []action.Row
	for rows.Next() {
		var row action.Row
		var payload string
		if err := rows.Scan(&row.ID, &row.DateCreated, &row.Source, &payload, &row.StaleNotified); err != nil {
			return nil, fmt.Errorf("failed to scan pending action: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &row.Action); err != nil {
			return nil, fmt.Errorf("failed to decode action %d: %w", row.ID, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
