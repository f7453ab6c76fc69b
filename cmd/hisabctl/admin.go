package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hisab/internal/auth"
	"hisab/internal/config"
	"hisab/internal/core"
	"hisab/internal/seed"
	"hisab/internal/storage"
)

var (
	seedFile  string
	seedForce bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the store contents with seed data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if e.cfg.DataBackend == config.BackendMemory {
			logger.Warn("memory backend selected, seeded data will not outlive this command")
		}

		revision, err := e.store.Store.Revision(ctx)
		if err != nil {
			return err
		}
		if revision > 0 && !seedForce {
			return fmt.Errorf("store already holds revision %d, pass --force to replace it", revision)
		}

		ds, err := loadSeed(e.cfg)
		if err != nil {
			return err
		}
		if err := e.store.Store.Replace(ctx, ds); err != nil {
			return err
		}
		logger.Info("store seeded",
			"rooms", len(ds.Rooms),
			"renters", len(ds.Renters),
			"members", len(ds.FamilyMembers),
			"initiation", ds.InitiationDate)
		return nil
	},
}

func loadSeed(cfg *config.Config) (core.Dataset, error) {
	if seedFile == "" {
		return seed.Default()
	}
	return seed.FromFile(seedFile, cfg.InitiationDate())
}

var setInitiationCmd = &cobra.Command{
	Use:   "set-initiation <YYYY-MM-DD>",
	Short: "Set the first month of the computation window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := core.ParseDate(args[0])
		if err != nil {
			return err
		}
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		ds, err := e.ledger.UpdateInitiationDate(cmd.Context(), date)
		if err != nil {
			return err
		}
		logger.Info("initiation date updated", "initiation", ds.InitiationDate)
		return nil
	},
}

var hashPINCmd = &cobra.Command{
	Use:   "hash-pin [pin]",
	Short: "Print the bcrypt hash to use as PIN_HASH (reads stdin without an argument)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var pin string
		if len(args) == 1 {
			pin = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read pin: %w", err)
			}
			pin = line
		}
		pin = strings.TrimSpace(pin)
		if pin == "" {
			return errors.New("pin must not be empty")
		}

		hash, err := auth.HashPIN(pin)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQLite schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := dbPathFlag
		if path == "" {
			path = config.Load().SQLiteDBPath
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			logger.Info("creating database", "path", path)
		}

		repo, err := storage.NewSQLiteRepository(path)
		if err != nil {
			return err
		}
		repo.Close()

		version, dirty, err := storage.MigrationVersion(path)
		if err != nil {
			return err
		}
		logger.Info("schema up to date", "path", path, "version", version, "dirty", dirty)
		return nil
	},
}
