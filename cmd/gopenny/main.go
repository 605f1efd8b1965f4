package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gopenny/gopenny/internal/alerting"
	"github.com/gopenny/gopenny/internal/api"
	"github.com/gopenny/gopenny/internal/auth"
	"github.com/gopenny/gopenny/internal/config"
	"github.com/gopenny/gopenny/internal/cron"
	"github.com/gopenny/gopenny/internal/history"
	"github.com/gopenny/gopenny/internal/manager"
	"github.com/gopenny/gopenny/internal/migrate"
	"github.com/gopenny/gopenny/internal/notification"
	"github.com/gopenny/gopenny/internal/ratecache"
)

func main() {
	root := &cobra.Command{
		Use:          "gopenny",
		Short:        "Currency-safe money with cached exchange-rate resolution",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd(), workerCmd(), migrateCmd(), convertCmd(), cacheCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if cfg.AutoMigrate && cfg.DBDriver != "memory" {
				if err := migrate.Up(ctx, cfg.DBDriver, cfg.DBDSN); err != nil {
					log.Printf("auto-migration failed: %v", err)
				}
			}

			store, err := history.Open(ctx, history.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer store.Close()

			mgr, err := manager.New(cfg.CurrencyConfig(), manager.WithRecorder(history.NewRecorder(store)))
			if err != nil {
				alertTamper(ctx, cfg, err)
				return err
			}
			defer mgr.Close()

			var authSvc *auth.Service
			if cfg.AuthRequired || cfg.AdminTokenHash != "" {
				authSvc, err = auth.NewService(store, auth.Options{
					Required:       cfg.AuthRequired,
					AdminTokenHash: cfg.AdminTokenHash,
				})
				if err != nil {
					return fmt.Errorf("init auth: %w", err)
				}
			}

			mux := api.NewMux(&api.Server{
				Manager:  mgr,
				Store:    store,
				Auth:     authSvc,
				Notifier: notification.NewService(store),
			})

			addr := ":" + cfg.Port
			log.Printf("gopenny listening on %s (db=%s auth=%t)", addr, cfg.DBDriver, authSvc != nil)
			return http.ListenAndServe(addr, mux)
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background rate-refresh worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := history.Open(ctx, history.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer store.Close()

			mgr, err := manager.New(cfg.CurrencyConfig(), manager.WithRecorder(history.NewRecorder(store)))
			if err != nil {
				alertTamper(ctx, cfg, err)
				return err
			}
			defer mgr.Close()

			alerter := alerting.New(alerting.NewConfig(cfg.AlertWebhookURL, cfg.AlertWebhookType, cfg.AlertMinFailures))

			err = cron.Run(ctx, cron.Config{
				Manager:         mgr,
				Store:           store,
				Alerter:         alerter,
				Notifier:        notification.NewService(store),
				NotifyEmailTo:   cfg.NotifyEmailTo,
				IntervalSetting: cfg.WorkerInterval,
			})
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate {up|down|status}",
		Short:     "Manage the history database schema",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			switch args[0] {
			case "up":
				return migrate.Up(ctx, cfg.DBDriver, cfg.DBDSN)
			case "down":
				return migrate.Down(ctx, cfg.DBDriver, cfg.DBDSN)
			case "status":
				return migrate.Status(ctx, cfg.DBDriver, cfg.DBDSN)
			default:
				return fmt.Errorf("unknown migrate action %q", args[0])
			}
		},
	}
	return cmd
}

func convertCmd() *cobra.Command {
	var strategy, localeInput string
	cmd := &cobra.Command{
		Use:   "convert AMOUNT FROM TO",
		Short: "Convert an amount between currencies",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManagerFromEnv()
			if err != nil {
				return err
			}
			defer mgr.Close()

			val, err := mgr.NewMoney(args[0], args[1])
			if err != nil {
				return err
			}
			converted, rec, err := mgr.Convert(cmd.Context(), val, args[2], strategy)
			if err != nil {
				return err
			}

			out := converted.String()
			if localeInput != "" {
				if out, err = mgr.Format(converted, localeInput); err != nil {
					return err
				}
			}
			fmt.Printf("%s (rate %s, %s, fetched %s)\n",
				out, rec.Rate, rec.Source, rec.FetchedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "resolution strategy: auto, live or cache")
	cmd.Flags().StringVar(&localeInput, "locale", "", "format the result for a locale, e.g. de_DE")
	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or sweep the encrypted rate cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManagerFromEnv()
			if err != nil {
				return err
			}
			defer mgr.Close()

			stats := mgr.CacheStats()
			fmt.Printf("records: %d\npairs:   %d\npath:    %s\n",
				stats.TotalRecords, stats.CurrencyPairs, stats.Path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Remove cached rates past the configured retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManagerFromEnv()
			if err != nil {
				return err
			}
			defer mgr.Close()

			removed, err := mgr.CleanupCache()
			if err != nil {
				return err
			}
			fmt.Printf("removed %d record(s)\n", removed)
			return nil
		},
	})

	return cmd
}

// alertTamper reports an undecryptable cache container to the configured
// webhook; anything else fails fast without noise.
func alertTamper(ctx context.Context, cfg config.Server, err error) {
	if !errors.Is(err, ratecache.ErrEncryption) || cfg.AlertWebhookURL == "" {
		return
	}
	alerter := alerting.New(alerting.NewConfig(cfg.AlertWebhookURL, cfg.AlertWebhookType, 1))
	path := cfg.CachePath
	if path == "" {
		path = config.DefaultCachePath(cfg.ApplicationName)
	}
	if sendErr := alerter.SendTamperAlert(ctx, path, err); sendErr != nil {
		log.Printf("tamper alert failed: %v", sendErr)
	}
}

func newManagerFromEnv() (*manager.Manager, error) {
	cfg, err := config.LoadServer()
	if err != nil {
		return nil, err
	}
	return manager.New(cfg.CurrencyConfig())
}
