package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mailfin/ledgermail/pkg/config"
	"github.com/mailfin/ledgermail/pkg/db"
	"github.com/mailfin/ledgermail/pkg/notify"
	"github.com/mailfin/ledgermail/pkg/stale"
)

// staleCmd represents the stale command.
var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "Report pending actions that never found a transaction",
	Long: `Check the backlog for actions older than the stale threshold and
send a Telegram notification listing them. Each action is reported once.

Example:
  ledgermail stale`,
	Run: runStale,
}

func runStale(cmd *cobra.Command, args []string) {
	slog.Info("Checking for stale pending actions")

	// Load configuration
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate("DATABASE_PATH"); err != nil {
		exitOnError(err, "invalid configuration")
	}

	// Open database
	slog.Debug("Opening database", "path", cfg.Database.Path)
	conn, err := db.Open(cfg.Database.Path)
	exitOnError(err, "failed to open database")
	defer conn.Close()

	backlog := db.NewBacklog(conn)
	notifier := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, slog.Default())

	monitor := stale.NewMonitor(backlog, notifier, slog.Default(),
		stale.WithThresholdDays(cfg.Ledger.StaleDays))

	err = monitor.Run(context.Background())
	exitOnError(err, "stale action check failed")

	slog.Info("Stale action check completed")
}
