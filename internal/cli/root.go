package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/HossEz/stromtracker/internal/config"
	"github.com/HossEz/stromtracker/pkg/alerts"
	"github.com/HossEz/stromtracker/pkg/engine"
	"github.com/HossEz/stromtracker/pkg/prices"
	"github.com/HossEz/stromtracker/pkg/report"
	"github.com/HossEz/stromtracker/pkg/storage"
	"github.com/HossEz/stromtracker/pkg/tracker"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	cfgFile string
	userID  int64
)

var rootCmd = &cobra.Command{
	Use:   "stromtracker",
	Short: "Track electricity costs of household appliances",
	Long: `stromtracker tracks appliance usage sessions and prices them hour by
hour against Norwegian spot prices (NO1-NO5), with billing-period
summaries, budgets and alerts.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.stromtracker/config.yaml)")
	rootCmd.PersistentFlags().Int64VarP(&userID, "user", "u", 1, "user ID to operate as")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage creates a storage backend from config.
func initStorage(cfg *config.Config) (storage.Storage, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

// initPrices creates the spot price client backed by the given store.
func initPrices(cfg *config.Config, store prices.CurveStore, logger *slog.Logger) (*prices.Client, error) {
	loc, err := time.LoadLocation(cfg.Pricing.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load pricing timezone %q: %w", cfg.Pricing.Timezone, err)
	}

	timeout, err := time.ParseDuration(cfg.Pricing.Timeout)
	if err != nil {
		timeout = prices.DefaultTimeout
	}

	return prices.NewClient(cfg.Pricing.BaseURL, timeout, store, loc, logger), nil
}

// initNotifiers creates alert notifiers from config.
func initNotifiers(cfg *config.Config) []alerts.Notifier {
	var notifiers []alerts.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(
			cfg.Alerts.Slack.WebhookURL,
			cfg.Alerts.Slack.Channel,
		))
	}

	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.Secret,
		))
	}

	return notifiers
}

// initTracker creates a fully wired session tracker.
func initTracker(cfg *config.Config) (*tracker.Tracker, storage.Storage, *prices.Client, error) {
	logger := newLogger(cfg)

	store, err := initStorage(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	priceClient, err := initPrices(cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	eng := engine.New(priceClient, logger)
	agg := report.New(store, priceClient.Location(), logger)
	notifiers := initNotifiers(cfg)
	t := tracker.New(store, eng, agg, notifiers, priceClient.Location(), logger)

	return t, store, priceClient, nil
}
