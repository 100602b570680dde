// Package stale flags backlog entries that have gone unmatched for too long
// and reports them for manual attention.
package stale

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mailfin/ledgermail/pkg/action"
	"github.com/mailfin/ledgermail/pkg/ledger"
	"github.com/mailfin/ledgermail/pkg/notify"
)

// DefaultThresholdDays is how old an unmatched entry must be before it is
// reported.
const DefaultThresholdDays = 14

// BacklogStore is the subset of the backlog used by the monitor.
type BacklogStore interface {
	ListStale(cutoff time.Time) ([]action.Row, error)
	MarkStaleNotified(ids []int64) error
}

// Notifier delivers the consolidated report.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Monitor runs the stale entry sweep. It is independent of the
// reconciliation path and touches only the backlog store.
type Monitor struct {
	store         BacklogStore
	notifier      Notifier
	logger        *slog.Logger
	thresholdDays int
	now           func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithThresholdDays overrides the staleness threshold.
func WithThresholdDays(days int) Option {
	return func(m *Monitor) { m.thresholdDays = days }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor creates a stale action monitor.
func NewMonitor(store BacklogStore, notifier Notifier, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		store:         store,
		notifier:      notifier,
		logger:        logger,
		thresholdDays: DefaultThresholdDays,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes one sweep: entries past the threshold that were never
// reported are consolidated into a single notification, then flagged so they
// are never reported again. With no stale entries, no external call is made.
func (m *Monitor) Run(ctx context.Context) error {
	cutoff := m.now().AddDate(0, 0, -m.thresholdDays)

	rows, err := m.store.ListStale(cutoff)
	if err != nil {
		return fmt.Errorf("failed to list stale actions: %w", err)
	}

	if len(rows) == 0 {
		return nil
	}

	m.logger.Info("found stale action entries", "count", len(rows))

	message := FormatReport(rows, m.thresholdDays)
	if err := m.notifier.Send(ctx, message); err != nil {
		// Best effort: a failed notification does not block the once-only
		// marking below.
		m.logger.Error("failed to send stale action report", "error", err)
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	if err := m.store.MarkStaleNotified(ids); err != nil {
		return fmt.Errorf("failed to mark actions notified: %w", err)
	}

	m.logger.Info("marked actions as notified", "count", len(ids))
	return nil
}

// FormatReport renders the consolidated stale entry report, grouped by
// source with entries ordered by ascending age within each group.
func FormatReport(rows []action.Row, thresholdDays int) string {
	groups := make(map[string][]action.Row)
	var sources []string
	for _, row := range rows {
		if _, seen := groups[row.Source]; !seen {
			sources = append(sources, row.Source)
		}
		groups[row.Source] = append(groups[row.Source], row)
	}
	sort.Strings(sources)

	e := notify.EscapeMarkdown

	var lines []string
	lines = append(lines,
		fmt.Sprintf("💸 *%s*", e("Unprocessed ledger actions")),
		"",
		fmt.Sprintf("Found %d action entries older than %d days:", len(rows), thresholdDays),
		"")

	for _, source := range sources {
		entries := groups[source]
		// ListStale returns entries oldest first; within a group, ascending
		// age means newest first.
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].DateCreated.After(entries[j].DateCreated)
		})

		lines = append(lines, fmt.Sprintf("*%s*", e(source)))
		for _, row := range entries {
			a := row.Action
			label := "Update"
			detail := ""
			switch mut := a.Mutation.(type) {
			case action.Split:
				label = "Split"
				detail = fmt.Sprintf("Splits: %d items", len(mut.Items))
			case action.Update:
				detail = fmt.Sprintf("Note: %s", e(mut.Note))
			}

			lines = append(lines,
				fmt.Sprintf("%s: %s \\- %s %s",
					label,
					e(a.Match.ExpectedPayee),
					e("$"+ledger.FormatAmount(a.Match.ExpectedTotal)),
					e("("+row.DateCreated.Format("2006-01-02")+")")),
				detail)
		}
		lines = append(lines, "")
	}

	lines = append(lines, e("These entries need manual attention as they haven't been processed."))

	return strings.Join(lines, "\n")
}
