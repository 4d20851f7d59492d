package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"MoviePageViews/internal/app"
	"MoviePageViews/internal/config"
	"MoviePageViews/internal/logging"
)

type runFlags struct {
	catalogURL  string
	statsURL    string
	concurrency int
	timeout     time.Duration
	limit       int
	output      string
	format      string
	interval    time.Duration
	archiveDSN  string
	logLevel    string
	logFormat   string
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var flags runFlags

	rootCmd := &cobra.Command{
		Use:           "moviepageviews",
		Short:         "Rank catalog movies by Wikipedia page views",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configFlag, flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			application, err := app.New(ctx, cfg, logger, app.Options{Stdout: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Run(ctx)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (yaml or toml)")
	rootCmd.PersistentFlags().StringVar(&flags.archiveDSN, "archive-dsn", "", "Report archive DSN (sqlite path or postgres url)")
	rootCmd.PersistentFlags().StringVar(&flags.format, "format", "", "Report format: json, table or auto")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.Flags().StringVar(&flags.catalogURL, "catalog-url", "", "Catalog document URL")
	rootCmd.Flags().StringVar(&flags.statsURL, "stats-url", "", "Page view statistics base URL")
	rootCmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "Maximum simultaneous statistics fetches")
	rootCmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Per-movie statistics fetch timeout")
	rootCmd.Flags().IntVar(&flags.limit, "limit", 0, "Keep only the top N movies (0 keeps all)")
	rootCmd.Flags().StringVarP(&flags.output, "output", "o", "", "Report destination path, - for stdout")
	rootCmd.Flags().DurationVar(&flags.interval, "interval", 0, "Repeat the ranking at this interval until interrupted")

	rootCmd.AddCommand(newHistoryCommand(&configFlag, &flags))

	return rootCmd
}

// loadConfig layers explicitly set flags over the file and environment settings.
func loadConfig(cmd *cobra.Command, path string, flags runFlags) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	changed := cmd.Flags().Changed
	if changed("catalog-url") {
		cfg.Catalog.URL = flags.catalogURL
	}
	if changed("stats-url") {
		cfg.Stats.BaseURL = flags.statsURL
	}
	if changed("concurrency") {
		cfg.Pipeline.Concurrency = flags.concurrency
	}
	if changed("timeout") {
		cfg.Stats.Timeout = config.Duration{Duration: flags.timeout}
	}
	if changed("limit") {
		cfg.Pipeline.Limit = flags.limit
	}
	if changed("output") {
		cfg.Output.Path = flags.output
	}
	if changed("format") {
		cfg.Output.Format = flags.format
	}
	if changed("interval") {
		cfg.Scheduler.Interval = config.Duration{Duration: flags.interval}
	}
	if changed("archive-dsn") {
		cfg.Archive.DSN = flags.archiveDSN
	}
	if changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	}
	if changed("log-format") {
		cfg.Logging.Format = flags.logFormat
	}

	if err := cfg.Finalize(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
