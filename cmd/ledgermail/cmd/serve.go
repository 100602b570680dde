package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailfin/ledgermail/pkg/config"
	"github.com/mailfin/ledgermail/pkg/db"
	"github.com/mailfin/ledgermail/pkg/extract"
	"github.com/mailfin/ledgermail/pkg/ledger"
	"github.com/mailfin/ledgermail/pkg/notify"
	"github.com/mailfin/ledgermail/pkg/processor"
	"github.com/mailfin/ledgermail/pkg/processor/amazon"
	"github.com/mailfin/ledgermail/pkg/processor/apple"
	"github.com/mailfin/ledgermail/pkg/processor/cloudflare"
	"github.com/mailfin/ledgermail/pkg/processor/lyft"
	"github.com/mailfin/ledgermail/pkg/reconcile"
	"github.com/mailfin/ledgermail/pkg/server"
	"github.com/mailfin/ledgermail/pkg/stale"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the email ingest server",
	Long: `Run the HTTP server that receives forwarded receipt emails and
records pending actions.

With RECONCILE_INTERVAL set, the server also runs a reconciliation pass and
a stale action check on that interval.

Example:
  ledgermail serve`,
	Run: runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Load configuration
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate(
		"DATABASE_PATH", "INGEST_TOKEN", "ACCEPTED_EMAIL",
		"ANTHROPIC_API_KEY", "LISTEN_ADDR",
	); err != nil {
		exitOnError(err, "invalid configuration")
	}

	// Open database
	slog.Debug("Opening database", "path", cfg.Database.Path)
	conn, err := db.Open(cfg.Database.Path)
	exitOnError(err, "failed to open database")
	defer conn.Close()

	backlog := db.NewBacklog(conn)

	registry, err := buildRegistry(cfg)
	exitOnError(err, "failed to build processor registry")

	srv := server.New(backlog, registry, cfg.Ingest.Token, cfg.Ingest.AcceptedEmail, slog.Default())

	httpServer := &http.Server{
		Addr:    cfg.Ingest.ListenAddr,
		Handler: srv.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Ingest.ReconcileInterval > 0 {
		go runPeriodic(ctx, cfg, backlog)
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	slog.Info("Ingest server listening", "addr", cfg.Ingest.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		exitOnError(err, "server failed")
	}
}

// buildRegistry wires every vendor processor with its configured payee.
func buildRegistry(cfg *config.Config) (*processor.Registry, error) {
	mapping := processor.DefaultPayeeMapping()
	if cfg.Ingest.PayeeMappingPath != "" {
		var err error
		mapping, err = processor.LoadPayeeMapping(cfg.Ingest.PayeeMappingPath)
		if err != nil {
			return nil, err
		}
	}

	extractor, err := extract.NewClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
	if err != nil {
		return nil, err
	}

	logger := slog.Default()

	return processor.NewRegistry(
		amazon.New(mapping.Payee("amazon"), extractor, logger),
		lyft.NewRide(mapping.Payee("lyft-ride"), logger),
		lyft.NewBike(mapping.Payee("lyft-bike"), logger),
		apple.New(mapping.Payee("apple"), logger),
		cloudflare.New(mapping.Payee("cloudflare"), extractor, logger),
	), nil
}

// runPeriodic runs reconciliation and the stale check on the configured
// interval until the context is cancelled.
func runPeriodic(ctx context.Context, cfg *config.Config, backlog *db.Backlog) {
	client := ledger.NewClient(cfg.Ledger.APIURL, cfg.Ledger.APIToken)
	engine := reconcile.NewEngine(backlog, client, slog.Default(),
		reconcile.WithLookbackDays(cfg.Ledger.LookbackDays))

	notifier := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, slog.Default())
	monitor := stale.NewMonitor(backlog, notifier, slog.Default(),
		stale.WithThresholdDays(cfg.Ledger.StaleDays))

	ticker := time.NewTicker(cfg.Ingest.ReconcileInterval)
	defer ticker.Stop()

	slog.Info("Periodic reconciliation enabled", "interval", cfg.Ingest.ReconcileInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.Run(ctx); err != nil {
				slog.Error("Reconciliation pass failed", "error", err)
			}
			if err := monitor.Run(ctx); err != nil {
				slog.Error("Stale action check failed", "error", err)
			}
		}
	}
}
