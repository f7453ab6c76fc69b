package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"hisab/internal/core"
)

func saveRoom(ctx context.Context, tx *sql.Tx, r core.Room, history []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO rooms (id, number, rent_history) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET number = excluded.number, rent_history = excluded.rent_history`,
		r.ID, r.Number, string(history))
	if err != nil {
		return fmt.Errorf("save room %s: %w", r.ID, err)
	}
	return nil
}

func saveRenter(ctx context.Context, tx *sql.Tx, r core.Renter, history []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO renters (id, name, status, occupancy_history) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, status = excluded.status,
			occupancy_history = excluded.occupancy_history`,
		r.ID, r.Name, string(r.Status), string(history))
	if err != nil {
		return fmt.Errorf("save renter %s: %w", r.ID, err)
	}
	return nil
}

func saveRentPayment(ctx context.Context, tx *sql.Tx, p core.RentPayment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO rent_payments (id, renter_id, renter_name, room_number, amount, date) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET renter_id = excluded.renter_id, renter_name = excluded.renter_name,
			room_number = excluded.room_number, amount = excluded.amount, date = excluded.date`,
		p.ID, p.RenterID, p.RenterName, p.RoomNumber, p.Amount, p.Date.String())
	if err != nil {
		return fmt.Errorf("save rent payment %s: %w", p.ID, err)
	}
	return nil
}

func saveFamilyMember(ctx context.Context, tx *sql.Tx, m core.FamilyMember, history []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO family_members (id, name, expected_history) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, expected_history = excluded.expected_history`,
		m.ID, m.Name, string(history))
	if err != nil {
		return fmt.Errorf("save family member %s: %w", m.ID, err)
	}
	return nil
}

func savePayout(ctx context.Context, tx *sql.Tx, p core.Payout) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payouts (id, family_member_id, family_member_name, amount, date, details) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET family_member_id = excluded.family_member_id,
			family_member_name = excluded.family_member_name, amount = excluded.amount,
			date = excluded.date, details = excluded.details`,
		p.ID, p.FamilyMemberID, p.FamilyMemberName, p.Amount, p.Date.String(), p.Details)
	if err != nil {
		return fmt.Errorf("save payout %s: %w", p.ID, err)
	}
	return nil
}

func saveUtilityBill(ctx context.Context, tx *sql.Tx, b core.UtilityBill) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO utility_bills (id, type, date, amount, notes) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET type = excluded.type, date = excluded.date,
			amount = excluded.amount, notes = excluded.notes`,
		b.ID, string(b.Type), b.Date.String(), b.Amount, b.Notes)
	if err != nil {
		return fmt.Errorf("save utility bill %s: %w", b.ID, err)
	}
	return nil
}

func saveExpense(ctx context.Context, tx *sql.Tx, e core.Expense) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO expenses (id, date, category, amount, details) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET date = excluded.date, category = excluded.category,
			amount = excluded.amount, details = excluded.details`,
		e.ID, e.Date.String(), string(e.Category), e.Amount, e.Details)
	if err != nil {
		return fmt.Errorf("save expense %s: %w", e.ID, err)
	}
	return nil
}

func insertDataset(ctx context.Context, tx *sql.Tx, ds core.Dataset) error {
	for _, r := range ds.Rooms {
		h, err := json.Marshal(r.RentHistory)
		if err != nil {
			return fmt.Errorf("encode rent history: %w", err)
		}
		if err := saveRoom(ctx, tx, r, h); err != nil {
			return err
		}
	}
	for _, r := range ds.Renters {
		h, err := json.Marshal(r.OccupancyHistory)
		if err != nil {
			return fmt.Errorf("encode occupancy history: %w", err)
		}
		if err := saveRenter(ctx, tx, r, h); err != nil {
			return err
		}
	}
	for _, p := range ds.RentPayments {
		if err := saveRentPayment(ctx, tx, p); err != nil {
			return err
		}
	}
	for _, m := range ds.FamilyMembers {
		h, err := json.Marshal(m.ExpectedHistory)
		if err != nil {
			return fmt.Errorf("encode expected history: %w", err)
		}
		if err := saveFamilyMember(ctx, tx, m, h); err != nil {
			return err
		}
	}
	for _, p := range ds.Payouts {
		if err := savePayout(ctx, tx, p); err != nil {
			return err
		}
	}
	for _, b := range ds.UtilityBills {
		if err := saveUtilityBill(ctx, tx, b); err != nil {
			return err
		}
	}
	for _, e := range ds.Expenses {
		if err := saveExpense(ctx, tx, e); err != nil {
			return err
		}
	}
	return nil
}

// queryRows runs query and calls scan once per row.
func queryRows(ctx context.Context, tx *sql.Tx, query string, scan func(*sql.Rows) error) error {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func parseDate(raw string) (core.Date, error) {
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return d, nil
}

func loadRooms(ctx context.Context, tx *sql.Tx, ds *core.Dataset) error {
	err := queryRows(ctx, tx, "SELECT id, number, rent_history FROM rooms ORDER BY rowid", func(rows *sql.Rows) error {
		var r core.Room
		var history string
		if err := rows.Scan(&r.ID, &r.Number, &history); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(history), &r.RentHistory); err != nil {
			return fmt.Errorf("decode rent history of %s: %w", r.ID, err)
		}
		ds.Rooms = append(ds.Rooms, r)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}
	return nil
}

func loadRenters(ctx context.Context, tx *sql.Tx, ds *core.Dataset) error {
	err := queryRows(ctx, tx, "SELECT id, name, status, occupancy_history FROM renters ORDER BY rowid", func(rows *sql.Rows) error {
		var r core.Renter
		var status, history string
		if err := rows.Scan(&r.ID, &r.Name, &status, &history); err != nil {
			return err
		}
		r.Status = core.RenterStatus(status)
		if err := json.Unmarshal([]byte(history), &r.OccupancyHistory); err != nil {
			return fmt.Errorf("decode occupancy history of %s: %w", r.ID, err)
		}
		ds.Renters = append(ds.Renters, r)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load renters: %w", err)
	}
	return nil
}

func loadRentPayments(ctx context.Context, tx *sql.Tx, ds *core.Dataset) error {
	err := queryRows(ctx, tx, `
		SELECT id, renter_id, renter_name, room_number, amount, date
		FROM rent_payments ORDER BY rowid`, func(rows *sql.Rows) error {
		var p core.RentPayment
		var date string
		if err := rows.Scan(&p.ID, &p.RenterID, &p.RenterName, &p.RoomNumber, &p.Amount, &date); err != nil {
			return err
		}
		var err error
		if p.Date, err = parseDate(date); err != nil {
			return err
		}
		ds.RentPayments = append(ds.RentPayments, p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load rent payments: %w", err)
	}
	return nil
}

func loadFamilyMembers(ctx context.Context, tx *sql.Tx, ds *core.Dataset) error {
	err := queryRows(ctx, tx, "SELECT id, name, expected_history FROM family_members ORDER BY rowid", func(rows *sql.Rows) error {
		var m core.FamilyMember
		var history string
		if err := rows.Scan(&m.ID, &m.Name, &history); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(history), &m.ExpectedHistory); err != nil {
			return fmt.Errorf("decode expected history of %s: %w", m.ID, err)
		}
		ds.FamilyMembers = append(ds.FamilyMembers, m)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load family members: %w", err)
	}
	return nil
}

func loadPayouts(ctx context.Context, tx *sql.Tx, ds *core.Dataset) error {
	err := queryRows(ctx, tx, `
		SELECT id, family_member_id, family_member_name, amount, date, details
		FROM payouts ORDER BY rowid`, func(rows *sql.Rows) error {
		var p core.Payout
		var date string
		if err := rows.Scan(&p.ID, &p.FamilyMemberID, &p.FamilyMemberName, &p.Amount, &date, &p.Details); err != nil {
			return err
		}
		var err error
		if p.Date, err = parseDate(date); err != nil {
			return err
		}
		ds.Payouts = append(ds.Payouts, p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load payouts: %w", err)
	}
	return nil
}

func loadUtilityBills(ctx context.Context, tx *sql.Tx, ds *core.Dataset) error {
	err := queryRows(ctx, tx, "SELECT id, type, date, amount, notes FROM utility_bills ORDER BY rowid", func(rows *sql.Rows) error {
		var b core.UtilityBill
		var typ, date string
		if err := rows.Scan(&b.ID, &typ, &date, &b.Amount, &b.Notes); err != nil {
			return err
		}
		b.Type = core.BillType(typ)
		var err error
		if b.Date, err = parseDate(date); err != nil {
			return err
		}
		ds.UtilityBills = append(ds.UtilityBills, b)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load utility bills: %w", err)
	}
	return nil
}

func loadExpenses(ctx context.Context, tx *sql.Tx, ds *core.Dataset) error {
	err := queryRows(ctx, tx, "SELECT id, date, category, amount, details FROM expenses ORDER BY rowid", func(rows *sql.Rows) error {
		var e core.Expense
		var date, category string
		if err := rows.Scan(&e.ID, &date, &category, &e.Amount, &e.Details); err != nil {
			return err
		}
		e.Category = core.ExpenseCategory(category)
		var err error
		if e.Date, err = parseDate(date); err != nil {
			return err
		}
		ds.Expenses = append(ds.Expenses, e)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	return nil
}
