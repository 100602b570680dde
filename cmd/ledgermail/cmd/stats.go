package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mailfin/ledgermail/pkg/config"
	"github.com/mailfin/ledgermail/pkg/db"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display backlog statistics",
	Long: `Display statistics about the pending action backlog.

Shows:
- Total number of pending actions
- How many have been flagged as stale
- The oldest pending action's creation time

Example:
  ledgermail stats`,
	Run: runStats,
}

func runStats(cmd *cobra.Command, args []string) {
	slog.Info("Loading configuration")

	// Load configuration
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate("DATABASE_PATH"); err != nil {
		exitOnError(err, "invalid configuration")
	}

	// Open database connection
	slog.Debug("Opening database", "path", cfg.Database.Path)
	conn, err := db.Open(cfg.Database.Path)
	exitOnError(err, "failed to open database")
	defer conn.Close()

	backlog := db.NewBacklog(conn)

	stats, err := backlog.GetStats()
	exitOnError(err, "failed to get statistics")

	fmt.Println("\n=== Backlog Statistics ===")
	fmt.Printf("Pending actions: %d\n", stats.TotalPending)
	fmt.Printf("Flagged stale:   %d\n", stats.TotalNotified)

	if stats.Oldest.Valid {
		fmt.Printf("Oldest pending:  %s\n", stats.Oldest.String)
	} else {
		fmt.Printf("Oldest pending:  (none)\n")
	}

	fmt.Println()

	slog.Info("Statistics displayed successfully")
}
