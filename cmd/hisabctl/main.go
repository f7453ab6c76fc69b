package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"hisab/internal/backend"
	"hisab/internal/cli"
	"hisab/internal/config"
	"hisab/internal/core"
	applog "hisab/internal/log"
	"hisab/internal/services"
)

var (
	backendFlag string
	dbPathFlag  string
	monthFlag   string
	jsonOutput  bool
	verbose     bool
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Prefix:          "hisabctl",
})

var rootCmd = &cobra.Command{
	Use:   "hisabctl",
	Short: "Administer and inspect a hisab ledger",
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if verbose {
			logger.SetLevel(log.DebugLevel)
		}
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
	SilenceUsage: true,
}

// env holds the store and services opened for one command.
type env struct {
	cfg       *config.Config
	store     *backend.BackendResult
	ledger    *services.LedgerService
	dashboard *services.DashboardService
}

func (e *env) Close() {
	if err := e.store.Cleanup(); err != nil {
		logger.Warn("closing store", "error", err)
	}
}

// openEnv loads the server configuration, applies flag overrides and opens
// the configured store without change notifications.
func openEnv(ctx context.Context) (*env, error) {
	cfg := config.Load()
	if backendFlag != "" {
		cfg.DataBackend = backendFlag
	}
	if dbPathFlag != "" {
		cfg.SQLiteDBPath = dbPathFlag
	}
	cfg.AMQPURL = ""
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(applog.NewWithHandler(logger, applog.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("store opened", "backend", cfg.DataBackend, "db", cfg.SQLiteDBPath)

	return &env{
		cfg:   cfg,
		store: res,
		ledger: services.NewLedgerService(res.Store, nil, nil, services.LedgerConfig{
			ReadOnly:          cfg.ReadOnly,
			DefaultInitiation: cfg.InitiationDate(),
		}),
		dashboard: services.NewDashboardService(res.Store, nil, nil, services.DashboardConfig{}),
	}, nil
}

func selectedMonth() (core.Date, error) {
	if monthFlag == "" {
		return core.Today().StartOfMonth(), nil
	}
	m, err := core.ParseMonth(monthFlag)
	if err != nil {
		return core.Date{}, fmt.Errorf("--month: %w", err)
	}
	return m, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Data backend (memory|sqlite), overrides DATA_BACKEND")
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "SQLite database path, overrides SQLITE_DB_PATH")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	for _, cmd := range []*cobra.Command{summaryCmd, balancesCmd, allTimeCmd, rentStatusCmd} {
		cmd.Flags().StringVarP(&monthFlag, "month", "m", "", "Selected month (YYYY-MM), default current month")
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
		rootCmd.AddCommand(cmd)
	}

	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "Seed YAML file (default: bundled sample building)")
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "Replace a store that already holds data")

	rootCmd.AddCommand(seedCmd, setInitiationCmd, hashPINCmd, migrateCmd)
}

func main() {
	cli.LoadEnvFile()
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
