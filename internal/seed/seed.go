// Package seed reads datasets from YAML seed files.
package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hisab/internal/core"
)

//go:embed default.yaml
var defaultSeed []byte

// File is the YAML layout of a seed file. Dates are YYYY-MM-DD strings.
type File struct {
	InitiationDate string       `yaml:"initiationDate"`
	Rooms          []roomDoc    `yaml:"rooms"`
	Renters        []renterDoc  `yaml:"renters"`
	RentPayments   []paymentDoc `yaml:"rentPayments"`
	FamilyMembers  []memberDoc  `yaml:"familyMembers"`
	Payouts        []payoutDoc  `yaml:"payouts"`
	UtilityBills   []billDoc    `yaml:"utilityBills"`
	Expenses       []expenseDoc `yaml:"otherExpenses"`
}

type valueDoc struct {
	Amount        float64 `yaml:"amount"`
	EffectiveDate string  `yaml:"effectiveDate"`
}

type occupancyDoc struct {
	RoomID        *string `yaml:"roomId"`
	EffectiveDate string  `yaml:"effectiveDate"`
}

type roomDoc struct {
	ID          string     `yaml:"id"`
	Number      string     `yaml:"number"`
	RentHistory []valueDoc `yaml:"rentHistory"`
}

// renterDoc accepts the legacy single roomId in place of an occupancy history.
type renterDoc struct {
	ID               string         `yaml:"id"`
	Name             string         `yaml:"name"`
	Status           string         `yaml:"status"`
	RoomID           *string        `yaml:"roomId"`
	OccupancyHistory []occupancyDoc `yaml:"occupancyHistory"`
}

type paymentDoc struct {
	ID         string  `yaml:"id"`
	RenterID   string  `yaml:"renterId"`
	RenterName string  `yaml:"renterName"`
	RoomNumber string  `yaml:"roomNumber"`
	Amount     float64 `yaml:"amount"`
	Date       string  `yaml:"date"`
}

type memberDoc struct {
	ID              string     `yaml:"id"`
	Name            string     `yaml:"name"`
	ExpectedHistory []valueDoc `yaml:"expectedHistory"`
}

type payoutDoc struct {
	ID               string  `yaml:"id"`
	FamilyMemberID   string  `yaml:"familyMemberId"`
	FamilyMemberName string  `yaml:"familyMemberName"`
	Amount           float64 `yaml:"amount"`
	Date             string  `yaml:"date"`
	Details          string  `yaml:"details"`
}

type billDoc struct {
	ID     string  `yaml:"id"`
	Type   string  `yaml:"type"`
	Date   string  `yaml:"date"`
	Amount float64 `yaml:"amount"`
	Notes  string  `yaml:"notes"`
}

type expenseDoc struct {
	ID       string  `yaml:"id"`
	Date     string  `yaml:"date"`
	Category string  `yaml:"category"`
	Amount   float64 `yaml:"amount"`
	Details  string  `yaml:"details"`
}

// Default returns the bundled sample building.
func Default() (core.Dataset, error) {
	return Parse(defaultSeed, core.DefaultInitiationDate)
}

// FromFile reads and converts the seed file at path.
func FromFile(path string, fallbackInitiation core.Date) (core.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("read seed file: %w", err)
	}
	ds, err := Parse(data, fallbackInitiation)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("seed file %s: %w", path, err)
	}
	return ds, nil
}

// Parse converts YAML seed data into a validated dataset. The initiation date
// falls back to fallbackInitiation when the file omits it. Legacy renters
// carrying only a roomId get a single occupancy entry at the initiation date.
func Parse(data []byte, fallbackInitiation core.Date) (core.Dataset, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return core.Dataset{}, fmt.Errorf("decode yaml: %w", err)
	}

	ds := core.Dataset{InitiationDate: fallbackInitiation}
	if f.InitiationDate != "" {
		d, err := core.ParseDate(f.InitiationDate)
		if err != nil {
			return core.Dataset{}, fmt.Errorf("initiationDate: %w", err)
		}
		ds.InitiationDate = d
	}

	var errs []error
	for _, doc := range f.Rooms {
		r := core.Room{ID: doc.ID, Number: doc.Number}
		var err error
		if r.RentHistory, err = convertHistory(doc.RentHistory); err == nil {
			err = r.Validate()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("room %q: %w", doc.ID, err))
			continue
		}
		ds.Rooms = append(ds.Rooms, r)
	}

	for _, doc := range f.Renters {
		r, err := convertRenter(doc, ds.InitiationDate)
		if err == nil {
			err = r.Validate()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("renter %q: %w", doc.ID, err))
			continue
		}
		ds.Renters = append(ds.Renters, r)
	}

	for _, doc := range f.RentPayments {
		p := core.RentPayment{ID: doc.ID, RenterID: doc.RenterID, RenterName: doc.RenterName, RoomNumber: doc.RoomNumber, Amount: doc.Amount}
		var err error
		if p.Date, err = parseDate(doc.Date); err == nil {
			err = p.Validate()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("rent payment %q: %w", doc.ID, err))
			continue
		}
		if p.RoomNumber == "" {
			p.RoomNumber = core.UnknownRoomNumber
		}
		ds.RentPayments = append(ds.RentPayments, p)
	}

	for _, doc := range f.FamilyMembers {
		m := core.FamilyMember{ID: doc.ID, Name: doc.Name}
		var err error
		if m.ExpectedHistory, err = convertHistory(doc.ExpectedHistory); err == nil {
			err = m.Validate()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("family member %q: %w", doc.ID, err))
			continue
		}
		ds.FamilyMembers = append(ds.FamilyMembers, m)
	}

	for _, doc := range f.Payouts {
		p := core.Payout{ID: doc.ID, FamilyMemberID: doc.FamilyMemberID, FamilyMemberName: doc.FamilyMemberName, Amount: doc.Amount, Details: doc.Details}
		var err error
		if p.Date, err = parseDate(doc.Date); err == nil {
			err = p.Validate()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("payout %q: %w", doc.ID, err))
			continue
		}
		ds.Payouts = append(ds.Payouts, p)
	}

	for _, doc := range f.UtilityBills {
		b := core.UtilityBill{ID: doc.ID, Type: core.BillType(doc.Type), Amount: doc.Amount, Notes: doc.Notes}
		var err error
		if b.Date, err = parseDate(doc.Date); err == nil {
			err = b.Validate()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("utility bill %q: %w", doc.ID, err))
			continue
		}
		ds.UtilityBills = append(ds.UtilityBills, b)
	}

	for _, doc := range f.Expenses {
		e := core.Expense{ID: doc.ID, Category: core.ExpenseCategory(doc.Category), Amount: doc.Amount, Details: doc.Details}
		var err error
		if e.Date, err = parseDate(doc.Date); err == nil {
			err = e.Validate()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("expense %q: %w", doc.ID, err))
			continue
		}
		ds.Expenses = append(ds.Expenses, e)
	}

	if len(errs) > 0 {
		return core.Dataset{}, errors.Join(errs...)
	}
	return ds.Clone(), nil
}

func convertRenter(doc renterDoc, initiation core.Date) (core.Renter, error) {
	r := core.Renter{ID: doc.ID, Name: doc.Name, Status: core.RenterStatus(doc.Status)}
	if r.Status == "" {
		r.Status = core.RenterActive
	}

	if len(doc.OccupancyHistory) == 0 {
		if doc.RoomID != nil {
			r.OccupancyHistory = []core.OccupancyEntry{{RoomID: doc.RoomID, EffectiveDate: initiation}}
		}
		return r, nil
	}

	for i, e := range doc.OccupancyHistory {
		d, err := parseDate(e.EffectiveDate)
		if err != nil {
			return core.Renter{}, fmt.Errorf("occupancy entry %d: %w", i, err)
		}
		r.OccupancyHistory = append(r.OccupancyHistory, core.OccupancyEntry{RoomID: e.RoomID, EffectiveDate: d})
	}
	return r, nil
}

func convertHistory(docs []valueDoc) ([]core.TimeValue, error) {
	out := make([]core.TimeValue, 0, len(docs))
	for i, doc := range docs {
		d, err := parseDate(doc.EffectiveDate)
		if err != nil {
			return nil, fmt.Errorf("history entry %d: %w", i, err)
		}
		out = append(out, core.TimeValue{Amount: doc.Amount, EffectiveDate: d})
	}
	return out, nil
}

func parseDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, core.ErrMissingDate
	}
	return core.ParseDate(s)
}
