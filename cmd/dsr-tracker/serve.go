package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/dsr-tracker/internal/metrics"
	"github.com/zombor/dsr-tracker/internal/report"
	"github.com/zombor/dsr-tracker/internal/scan"
)

func newServeCommand(cfg *rootConfig, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("serve").SetParent(parent)
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "dsr-tracker.db", "Database file path")
		storagePath = fs.StringLong("storage", "./scans", "Directory for uploaded receipt images")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
	)

	return &ff.Command{
		Name:      "serve",
		Usage:     "dsr-tracker serve [FLAGS]",
		ShortHelp: "Run the scan upload and report history API",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if err := cfg.setupLogging(); err != nil {
				return err
			}
			scanCfg, err := cfg.scanConfig()
			if err != nil {
				return err
			}

			slog.Info("Initializing database...")
			db, err := report.NewBoltDB(*dbPath)
			if err != nil {
				return fmt.Errorf("initializing database: %w", err)
			}
			defer db.Close()

			recognizer, err := cfg.newRecognizer(ctx)
			if err != nil {
				return err
			}
			defer recognizer.Close()

			slog.Info("Initializing storage...")
			store, err := report.NewLocalStorage(*storagePath)
			if err != nil {
				return fmt.Errorf("initializing storage: %w", err)
			}

			recorder := metrics.NewRecorder()
			session := scan.NewSession(recognizer, scanCfg,
				scan.WithObserver(recorder.ObserveScan),
				scan.WithObserver(logOutcome),
			)
			defer session.Close()

			service := report.NewService(db, session, store)
			basicAuth := report.BasicAuth{
				Username: *authUser,
				Password: *authPass,
			}
			server := report.NewServer(service, basicAuth, recorder.Handler())

			addr := fmt.Sprintf(":%d", *port)
			errc := make(chan error, 1)
			go func() {
				errc <- server.Start(addr)
			}()

			slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
			if *authUser != "" || *authPass != "" {
				slog.Info("Basic auth enabled", "user", *authUser)
			}

			select {
			case err := <-errc:
				return fmt.Errorf("server error: %w", err)
			case <-ctx.Done():
				slog.Info("Shutting down...")
				return nil
			}
		},
	}
}

// logOutcome logs every finished scan
func logOutcome(out scan.Outcome, elapsed time.Duration) {
	attrs := []any{
		"generation", out.Generation,
		"state", out.State,
		"elapsed", elapsed,
	}
	switch out.State {
	case scan.Ready:
		slog.Info("Scan finished", attrs...)
	case scan.Rejected:
		slog.Warn("Scan rejected", append(attrs, "reason", out.Reason, "error", out.Err)...)
	default:
		slog.Error("Failed to scan receipt", append(attrs, "error", out.Err)...)
	}
}
