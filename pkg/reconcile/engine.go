// Package reconcile implements the reconciliation pass that pairs pending
// backlog actions with ledger transactions and applies their annotations.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mailfin/ledgermail/pkg/action"
	"github.com/mailfin/ledgermail/pkg/ledger"
	"github.com/mailfin/ledgermail/pkg/metrics"
)

// DefaultLookbackDays is the trailing transaction window requested from the
// ledger on each pass.
const DefaultLookbackDays = 180

// BacklogStore is the subset of the backlog used by the engine.
type BacklogStore interface {
	ListOrderedByAge() ([]action.Row, error)
	DeleteByIDs(ids []int64) error
}

// LedgerClient is the subset of the ledger API used by the engine.
type LedgerClient interface {
	ListTransactions(ctx context.Context, start, end time.Time, status string, pending bool) ([]ledger.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, notes, status string) error
	SplitTransaction(ctx context.Context, id int64, lines []ledger.SplitLine) error
}

// Engine runs reconciliation passes. One pass works against a single backlog
// snapshot and a single transaction window; the scheduler guarantees at most
// one pass is in flight.
type Engine struct {
	store        BacklogStore
	client       LedgerClient
	logger       *slog.Logger
	lookbackDays int
	now          func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLookbackDays overrides the trailing window size.
func WithLookbackDays(days int) Option {
	return func(e *Engine) { e.lookbackDays = days }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a reconciliation engine.
func NewEngine(store BacklogStore, client LedgerClient, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		client:       client,
		logger:       logger,
		lookbackDays: DefaultLookbackDays,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Summary reports what one pass did.
type Summary struct {
	Loaded    int
	Applied   int
	Unmatched int
	Failed    int
}

// Run executes one reconciliation pass. Failures local to a single action
// are logged and leave that action in the backlog; a failure to fetch the
// transaction window aborts the pass before any mutation is attempted.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	rows, err := e.store.ListOrderedByAge()
	if err != nil {
		metrics.ReconcilePasses.WithLabelValues("error").Inc()
		return summary, fmt.Errorf("failed to load backlog: %w", err)
	}

	summary.Loaded = len(rows)
	metrics.BacklogDepth.Set(float64(len(rows)))

	// No pending actions, no ledger call.
	if len(rows) == 0 {
		e.logger.Info("no pending actions to process")
		metrics.ReconcilePasses.WithLabelValues("empty").Inc()
		return summary, nil
	}

	e.logger.Info("loaded pending actions", "count", len(rows))

	now := e.now()
	start := now.AddDate(0, 0, -e.lookbackDays)

	txns, err := e.client.ListTransactions(ctx, start, now, ledger.StatusUncleared, true)
	if err != nil {
		metrics.ReconcilePasses.WithLabelValues("error").Inc()
		return summary, fmt.Errorf("failed to fetch transaction window: %w", err)
	}

	e.logger.Info("fetched ledger transactions", "count", len(txns))

	// Candidates are scanned newest first: a recently posted transaction is
	// more likely the intended target than a stale unprocessed one.
	sort.SliceStable(txns, func(i, j int) bool {
		if !txns[i].OccurredAt.Equal(txns[j].OccurredAt) {
			return txns[i].OccurredAt.After(txns[j].OccurredAt)
		}
		return txns[i].ID > txns[j].ID
	})

	// Transactions assigned during this pass. The set is owned by the
	// sequential matching loop and consulted explicitly on every attempt, so
	// no transaction can ever satisfy two actions.
	assigned := make(map[int64]bool)

	var processedIDs []int64

	// Actions are processed oldest first: the oldest action gets first claim
	// on the matching transactions.
	for _, row := range rows {
		txn, ok := findMatch(txns, row.Action.Match, assigned)
		if !ok {
			e.logger.Info("no matching transaction found for action",
				"action_id", row.ID,
				"payee", row.Action.Match.ExpectedPayee,
				"amount", row.Action.Match.ExpectedTotal)
			metrics.ActionsUnmatched.Inc()
			summary.Unmatched++
			continue
		}

		e.logger.Info("found matching transaction for action",
			"action_id", row.ID,
			"transaction_id", txn.ID,
			"payee", txn.Payee)

		if err := e.apply(ctx, row.Action, txn); err != nil {
			e.logger.Error("failed to process action",
				"action_id", row.ID,
				"transaction_id", txn.ID,
				"error", err)
			metrics.MutationFailures.Inc()
			summary.Failed++
			continue
		}

		assigned[txn.ID] = true
		processedIDs = append(processedIDs, row.ID)
		summary.Applied++
		metrics.ActionsApplied.Inc()
		e.logger.Info("successfully processed action", "action_id", row.ID)
	}

	// Deletion is the single irreversible step, batched to the end so a crash
	// mid-pass can never lose an entry whose mutation did not happen.
	if len(processedIDs) > 0 {
		if err := e.store.DeleteByIDs(processedIDs); err != nil {
			metrics.ReconcilePasses.WithLabelValues("error").Inc()
			return summary, fmt.Errorf("failed to delete processed actions: %w", err)
		}
		e.logger.Info("removed processed actions from backlog", "count", len(processedIDs))
	}

	metrics.ReconcilePasses.WithLabelValues("ok").Inc()
	return summary, nil
}

// findMatch returns the first eligible transaction satisfying the match
// predicate, scanning the newest-first window. Eligible means unannotated
// and not already assigned within this pass.
func findMatch(txns []ledger.Transaction, match action.Match, assigned map[int64]bool) (ledger.Transaction, bool) {
	for _, txn := range txns {
		if assigned[txn.ID] || txn.Notes != "" {
			continue
		}
		if txn.Payee == match.ExpectedPayee && txn.Amount == match.ExpectedTotal {
			return txn, true
		}
	}
	return ledger.Transaction{}, false
}

// apply issues the ledger mutation for a matched action. The mutation is one
// call per transaction, so no partial-split state is possible.
func (e *Engine) apply(ctx context.Context, a action.Action, txn ledger.Transaction) error {
	switch m := a.Mutation.(type) {
	case action.Update:
		return e.client.UpdateTransaction(ctx, txn.ID, m.Note, reviewStatus(m.MarkReviewed))
	case action.Split:
		lines := make([]ledger.SplitLine, len(m.Items))
		for i, item := range m.Items {
			lines[i] = ledger.SplitLine{
				Amount:     item.Amount,
				Notes:      item.Note,
				CategoryID: txn.CategoryID,
				Status:     reviewStatus(item.MarkReviewed),
			}
		}
		return e.client.SplitTransaction(ctx, txn.ID, lines)
	default:
		return fmt.Errorf("unknown mutation type %T", a.Mutation)
	}
}

func reviewStatus(markReviewed bool) string {
	if markReviewed {
		return ledger.StatusCleared
	}
	return ledger.StatusUncleared
}
