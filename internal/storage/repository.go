package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"hisab/internal/core"

	_ "modernc.org/sqlite"
)

const (
	settingInitiationDate = "initiation_date"
	settingRevision       = "revision"
	settingSyncedRevision = "synced_revision"
)

var tables = map[Collection]string{
	Rooms:         "rooms",
	Renters:       "renters",
	RentPayments:  "rent_payments",
	FamilyMembers: "family_members",
	Payouts:       "payouts",
	UtilityBills:  "utility_bills",
	Expenses:      "expenses",
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Load(ctx context.Context) (core.Dataset, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	var ds core.Dataset
	loaders := []func(context.Context, *sql.Tx, *core.Dataset) error{
		loadRooms, loadRenters, loadRentPayments, loadFamilyMembers,
		loadPayouts, loadUtilityBills, loadExpenses,
	}
	for _, load := range loaders {
		if err := load(ctx, tx, &ds); err != nil {
			return core.Dataset{}, err
		}
	}

	raw, err := getSetting(ctx, tx, settingInitiationDate)
	if err != nil {
		return core.Dataset{}, err
	}
	ds.InitiationDate = core.DefaultInitiationDate
	if raw != "" {
		if ds.InitiationDate, err = core.ParseDate(raw); err != nil {
			return core.Dataset{}, fmt.Errorf("parse initiation date: %w", err)
		}
	}
	return ds.Clone(), nil
}

func (r *SQLiteRepository) Revision(ctx context.Context) (int64, error) {
	return r.intSetting(ctx, settingRevision)
}

func (r *SQLiteRepository) SyncedRevision(ctx context.Context) (int64, error) {
	return r.intSetting(ctx, settingSyncedRevision)
}

// MarkSynced records revision as mirrored. Older revisions never overwrite a
// newer one.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, revision int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
		WHERE CAST(settings.value AS INTEGER) < CAST(excluded.value AS INTEGER)`,
		settingSyncedRevision, strconv.FormatInt(revision, 10))
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	slog.InfoContext(ctx, "Dataset marked as synced", "revision", revision)
	return nil
}

func (r *SQLiteRepository) SaveRoom(ctx context.Context, room core.Room) error {
	history, err := json.Marshal(room.RentHistory)
	if err != nil {
		return fmt.Errorf("encode rent history: %w", err)
	}
	return r.mutate(ctx, func(tx *sql.Tx) error {
		return saveRoom(ctx, tx, room, history)
	})
}

func (r *SQLiteRepository) SaveRenter(ctx context.Context, renter core.Renter) error {
	history, err := json.Marshal(renter.OccupancyHistory)
	if err != nil {
		return fmt.Errorf("encode occupancy history: %w", err)
	}
	return r.mutate(ctx, func(tx *sql.Tx) error {
		return saveRenter(ctx, tx, renter, history)
	})
}

func (r *SQLiteRepository) SaveRentPayment(ctx context.Context, p core.RentPayment) error {
	return r.mutate(ctx, func(tx *sql.Tx) error { return saveRentPayment(ctx, tx, p) })
}

func (r *SQLiteRepository) SaveFamilyMember(ctx context.Context, m core.FamilyMember) error {
	history, err := json.Marshal(m.ExpectedHistory)
	if err != nil {
		return fmt.Errorf("encode expected history: %w", err)
	}
	return r.mutate(ctx, func(tx *sql.Tx) error {
		return saveFamilyMember(ctx, tx, m, history)
	})
}

func (r *SQLiteRepository) SavePayout(ctx context.Context, p core.Payout) error {
	return r.mutate(ctx, func(tx *sql.Tx) error { return savePayout(ctx, tx, p) })
}

func (r *SQLiteRepository) SaveUtilityBill(ctx context.Context, b core.UtilityBill) error {
	return r.mutate(ctx, func(tx *sql.Tx) error { return saveUtilityBill(ctx, tx, b) })
}

func (r *SQLiteRepository) SaveExpense(ctx context.Context, e core.Expense) error {
	return r.mutate(ctx, func(tx *sql.Tx) error { return saveExpense(ctx, tx, e) })
}

func (r *SQLiteRepository) Delete(ctx context.Context, c Collection, id string) error {
	table, ok := tables[c]
	if !ok {
		return fmt.Errorf("unknown collection %q", c)
	}
	return r.mutate(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
		if n == 0 {
			return fmt.Errorf("%s %s: %w", c, id, ErrNotFound)
		}
		return nil
	})
}

func (r *SQLiteRepository) SetInitiationDate(ctx context.Context, d core.Date) error {
	return r.mutate(ctx, func(tx *sql.Tx) error {
		return setSetting(ctx, tx, settingInitiationDate, d.String())
	})
}

func (r *SQLiteRepository) Replace(ctx context.Context, ds core.Dataset) error {
	initiation := ds.InitiationDate
	if initiation.IsZero() {
		initiation = core.DefaultInitiationDate
	}
	return r.mutate(ctx, func(tx *sql.Tx) error {
		if err := clearTables(ctx, tx); err != nil {
			return err
		}
		if err := insertDataset(ctx, tx, ds); err != nil {
			return err
		}
		return setSetting(ctx, tx, settingInitiationDate, initiation.String())
	})
}

func (r *SQLiteRepository) Clear(ctx context.Context, initiation core.Date) error {
	return r.mutate(ctx, func(tx *sql.Tx) error {
		if err := clearTables(ctx, tx); err != nil {
			return err
		}
		return setSetting(ctx, tx, settingInitiationDate, initiation.String())
	})
}

// mutate runs fn and bumps the revision in one transaction.
func (r *SQLiteRepository) mutate(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, '1')
		ON CONFLICT(key) DO UPDATE SET value = CAST(CAST(settings.value AS INTEGER) + 1 AS TEXT)`,
		settingRevision); err != nil {
		return fmt.Errorf("bump revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) intSetting(ctx context.Context, key string) (int64, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getSetting(ctx context.Context, tx *sql.Tx, key string) (string, error) {
	var v string
	err := tx.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

func setSetting(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func clearTables(ctx context.Context, tx *sql.Tx) error {
	for _, c := range Collections {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+tables[c]); err != nil {
			return fmt.Errorf("clear %s: %w", tables[c], err)
		}
	}
	return nil
}

var _ Backend = (*SQLiteRepository)(nil)
