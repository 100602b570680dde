package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mailfin/ledgermail/pkg/config"
	"github.com/mailfin/ledgermail/pkg/db"
	"github.com/mailfin/ledgermail/pkg/ledger"
	"github.com/mailfin/ledgermail/pkg/reconcile"
)

// reconcileCmd represents the reconcile command.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match pending actions against ledger transactions",
	Long: `Run one reconciliation pass over the pending action backlog.

This command:
1. Loads pending actions oldest-first
2. Fetches the uncleared transaction window from the ledger
3. Matches each action by payee and amount
4. Applies the note update or split to the matched transaction
5. Removes applied actions from the backlog

Example:
  ledgermail reconcile`,
	Run: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) {
	slog.Info("Starting reconciliation pass")

	// Load configuration
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate("LEDGER_API_URL", "LEDGER_API_TOKEN", "DATABASE_PATH"); err != nil {
		exitOnError(err, "invalid configuration")
	}

	// Open database
	slog.Debug("Opening database", "path", cfg.Database.Path)
	conn, err := db.Open(cfg.Database.Path)
	exitOnError(err, "failed to open database")
	defer conn.Close()

	backlog := db.NewBacklog(conn)
	client := ledger.NewClient(cfg.Ledger.APIURL, cfg.Ledger.APIToken)

	engine := reconcile.NewEngine(backlog, client, slog.Default(),
		reconcile.WithLookbackDays(cfg.Ledger.LookbackDays))

	summary, err := engine.Run(context.Background())
	exitOnError(err, "reconciliation pass failed")

	fmt.Println("\n=== Reconciliation Summary ===")
	fmt.Printf("Pending actions loaded: %d\n", summary.Loaded)
	fmt.Printf("Actions applied:        %d\n", summary.Applied)
	fmt.Printf("Actions unmatched:      %d\n", summary.Unmatched)
	fmt.Printf("Mutation failures:      %d\n", summary.Failed)
	fmt.Println()

	slog.Info("Reconciliation pass completed",
		"loaded", summary.Loaded,
		"applied", summary.Applied,
		"unmatched", summary.Unmatched,
		"failed", summary.Failed,
	)
}
