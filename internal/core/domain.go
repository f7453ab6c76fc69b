package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	RenterActive   RenterStatus = "active"
	RenterArchived RenterStatus = "archived"

	BillElectricity BillType = "Electricity"
	BillWater       BillType = "Water"
	BillGas         BillType = "Gas"

	CategoryHousehold   ExpenseCategory = "Household"
	CategoryMaintenance ExpenseCategory = "Maintenance"
	CategoryOther       ExpenseCategory = "Other"
)

// UnknownRoomNumber is recorded on a rent payment when the renter had no room
// on the payment date.
const UnknownRoomNumber = "N/A"

type (
	RenterStatus    string
	BillType        string
	ExpenseCategory string

	// TimeValue is one step change of an amount, authoritative from
	// EffectiveDate until superseded by a later entry.
	TimeValue struct {
		Amount        float64 `json:"amount"`
		EffectiveDate Date    `json:"effectiveDate"`
	}

	// OccupancyEntry records the room a renter occupies from EffectiveDate on.
	// A nil RoomID means vacant.
	OccupancyEntry struct {
		RoomID        *string `json:"roomId"`
		EffectiveDate Date    `json:"effectiveDate"`
	}

	Room struct {
		ID          string      `json:"id"`
		Number      string      `json:"number"`
		RentHistory []TimeValue `json:"rentHistory"`
	}

	Renter struct {
		ID               string           `json:"id"`
		Name             string           `json:"name"`
		OccupancyHistory []OccupancyEntry `json:"occupancyHistory"`
		Status           RenterStatus     `json:"status"`
		// CumulativePayable is derived for a selected month and never stored.
		CumulativePayable float64 `json:"cumulativePayable"`
	}

	RentPayment struct {
		ID         string  `json:"id"`
		RenterID   string  `json:"renterId"`
		RenterName string  `json:"renterName"`
		RoomNumber string  `json:"roomNumber"`
		Amount     float64 `json:"amount"`
		Date       Date    `json:"date"`
	}

	FamilyMember struct {
		ID              string      `json:"id"`
		Name            string      `json:"name"`
		ExpectedHistory []TimeValue `json:"expectedHistory"`
		// CumulativePayable is derived for a selected month and never stored.
		CumulativePayable float64 `json:"cumulativePayable"`
	}

	Payout struct {
		ID               string  `json:"id"`
		FamilyMemberID   string  `json:"familyMemberId"`
		FamilyMemberName string  `json:"familyMemberName"`
		Amount           float64 `json:"amount"`
		Date             Date    `json:"date"`
		Details          string  `json:"details,omitempty"`
	}

	UtilityBill struct {
		ID     string   `json:"id"`
		Type   BillType `json:"type"`
		Date   Date     `json:"date"`
		Amount float64  `json:"amount"`
		Notes  string   `json:"notes"`
	}

	Expense struct {
		ID       string          `json:"id"`
		Date     Date            `json:"date"`
		Category ExpenseCategory `json:"category"`
		Amount   float64         `json:"amount"`
		Details  string          `json:"details"`
	}

	// Dataset is the full snapshot returned by every persistence operation.
	Dataset struct {
		Rooms          []Room         `json:"rooms"`
		Renters        []Renter       `json:"renters"`
		RentPayments   []RentPayment  `json:"rentPayments"`
		FamilyMembers  []FamilyMember `json:"familyMembers"`
		Payouts        []Payout       `json:"payouts"`
		UtilityBills   []UtilityBill  `json:"utilityBills"`
		Expenses       []Expense      `json:"otherExpenses"`
		InitiationDate Date           `json:"initiationDate"`
	}
)

const maxTextLength = 500

var (
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyID          = errors.New("empty id")
	ErrEmptyRoomNumber  = errors.New("empty room number")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrMissingDate      = errors.New("missing date")
	ErrMissingReference = errors.New("missing reference")
	ErrInvalidStatus    = errors.New("invalid renter status")
	ErrInvalidBillType  = errors.New("invalid bill type")
	ErrInvalidCategory  = errors.New("invalid expense category")
	ErrEmptyHistory     = errors.New("empty history")
	ErrTextTooLong      = errors.New("text too long (max 500 characters)")
)

// DefaultInitiationDate is the first computable month when none is configured.
var DefaultInitiationDate = NewDate(2024, 1, 1)

// StrPtr returns a pointer to s, used for occupancy room ids.
func StrPtr(s string) *string {
	return &s
}

func (s RenterStatus) IsValid() bool {
	return s == RenterActive || s == RenterArchived
}

func (t BillType) IsValid() bool {
	switch t {
	case BillElectricity, BillWater, BillGas:
		return true
	default:
		return false
	}
}

func (c ExpenseCategory) IsValid() bool {
	switch c {
	case CategoryHousehold, CategoryMaintenance, CategoryOther:
		return true
	default:
		return false
	}
}

func (tv TimeValue) Validate() error {
	if tv.Amount < 0 {
		return ErrInvalidAmount
	}
	if tv.EffectiveDate.IsZero() {
		return ErrMissingDate
	}
	return nil
}

func (r Room) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(r.Number) == "" {
		return ErrEmptyRoomNumber
	}
	return validateHistory(r.RentHistory)
}

func (r Renter) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, r.Status)
	}
	for i, e := range r.OccupancyHistory {
		if e.EffectiveDate.IsZero() {
			return fmt.Errorf("occupancy entry %d: %w", i, ErrMissingDate)
		}
	}
	return nil
}

// LastOccupancy returns the most recently appended occupancy entry.
func (r Renter) LastOccupancy() (OccupancyEntry, bool) {
	if len(r.OccupancyHistory) == 0 {
		return OccupancyEntry{}, false
	}
	return r.OccupancyHistory[len(r.OccupancyHistory)-1], true
}

func (p RentPayment) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(p.RenterID) == "" {
		return ErrMissingReference
	}
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if p.Date.IsZero() {
		return ErrMissingDate
	}
	return nil
}

func (m FamilyMember) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyName
	}
	return validateHistory(m.ExpectedHistory)
}

func (p Payout) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(p.FamilyMemberID) == "" {
		return ErrMissingReference
	}
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if p.Date.IsZero() {
		return ErrMissingDate
	}
	if len(p.Details) > maxTextLength {
		return ErrTextTooLong
	}
	return nil
}

func (b UtilityBill) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return ErrEmptyID
	}
	if !b.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidBillType, b.Type)
	}
	if b.Amount <= 0 {
		return ErrInvalidAmount
	}
	if b.Date.IsZero() {
		return ErrMissingDate
	}
	if len(b.Notes) > maxTextLength {
		return ErrTextTooLong
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEmptyID
	}
	if !e.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, e.Category)
	}
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	if e.Date.IsZero() {
		return ErrMissingDate
	}
	if len(e.Details) > maxTextLength {
		return ErrTextTooLong
	}
	return nil
}

func validateHistory(h []TimeValue) error {
	if len(h) == 0 {
		return ErrEmptyHistory
	}
	for i, tv := range h {
		if err := tv.Validate(); err != nil {
			return fmt.Errorf("history entry %d: %w", i, err)
		}
	}
	return nil
}

// FindRoom returns the room with the given id.
func (d Dataset) FindRoom(id string) (Room, bool) {
	for _, r := range d.Rooms {
		if r.ID == id {
			return r, true
		}
	}
	return Room{}, false
}

// FindRenter returns the renter with the given id.
func (d Dataset) FindRenter(id string) (Renter, bool) {
	for _, r := range d.Renters {
		if r.ID == id {
			return r, true
		}
	}
	return Renter{}, false
}

// FindFamilyMember returns the family member with the given id.
func (d Dataset) FindFamilyMember(id string) (FamilyMember, bool) {
	for _, m := range d.FamilyMembers {
		if m.ID == id {
			return m, true
		}
	}
	return FamilyMember{}, false
}

// FindRentPayment returns the rent payment with the given id.
func (d Dataset) FindRentPayment(id string) (RentPayment, bool) {
	i := slices.IndexFunc(d.RentPayments, func(p RentPayment) bool { return p.ID == id })
	if i < 0 {
		return RentPayment{}, false
	}
	return d.RentPayments[i], true
}

// FindPayout returns the payout with the given id.
func (d Dataset) FindPayout(id string) (Payout, bool) {
	i := slices.IndexFunc(d.Payouts, func(p Payout) bool { return p.ID == id })
	if i < 0 {
		return Payout{}, false
	}
	return d.Payouts[i], true
}

func (d Dataset) FindUtilityBill(id string) (UtilityBill, bool) {
	i := slices.IndexFunc(d.UtilityBills, func(b UtilityBill) bool { return b.ID == id })
	if i < 0 {
		return UtilityBill{}, false
	}
	return d.UtilityBills[i], true
}

func (d Dataset) FindExpense(id string) (Expense, bool) {
	i := slices.IndexFunc(d.Expenses, func(e Expense) bool { return e.ID == id })
	if i < 0 {
		return Expense{}, false
	}
	return d.Expenses[i], true
}

// Clone returns a copy of d that shares no slices with it. Collections are
// never nil in the copy.
func (d Dataset) Clone() Dataset {
	out := d
	out.Rooms = make([]Room, len(d.Rooms))
	for i, r := range d.Rooms {
		r.RentHistory = slices.Clone(r.RentHistory)
		out.Rooms[i] = r
	}
	out.Renters = make([]Renter, len(d.Renters))
	for i, r := range d.Renters {
		r.OccupancyHistory = slices.Clone(r.OccupancyHistory)
		out.Renters[i] = r
	}
	out.FamilyMembers = make([]FamilyMember, len(d.FamilyMembers))
	for i, m := range d.FamilyMembers {
		m.ExpectedHistory = slices.Clone(m.ExpectedHistory)
		out.FamilyMembers[i] = m
	}
	out.RentPayments = cloneNonNil(d.RentPayments)
	out.Payouts = cloneNonNil(d.Payouts)
	out.UtilityBills = cloneNonNil(d.UtilityBills)
	out.Expenses = cloneNonNil(d.Expenses)
	return out
}

// cloneNonNil copies s into a non-nil slice so empty collections encode as [].
func cloneNonNil[T any](s []T) []T {
	return append(make([]T, 0, len(s)), s...)
}
