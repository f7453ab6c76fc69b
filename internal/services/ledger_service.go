package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"hisab/internal/core"
	"hisab/internal/ledger"
	"hisab/internal/storage"
)

var (
	ErrReadOnly     = errors.New("ledger is read-only")
	ErrInvalidInput = errors.New("invalid input")
)

// Mutation actions, named as the API exposes them.
const (
	ActionAddRoom              = "addRoom"
	ActionUpdateRoom           = "updateRoom"
	ActionDeleteRoom           = "deleteRoom"
	ActionAddRenter            = "addRenter"
	ActionUpdateRenter         = "updateRenter"
	ActionArchiveRenter        = "archiveRenter"
	ActionDeleteRenter         = "deleteRenter"
	ActionAddRentPayment       = "addRentPayment"
	ActionUpdateRentPayment    = "updateRentPayment"
	ActionDeleteRentPayment    = "deleteRentPayment"
	ActionAddFamilyMember      = "addFamilyMember"
	ActionUpdateFamilyMember   = "updateFamilyMember"
	ActionDeleteFamilyMember   = "deleteFamilyMember"
	ActionAddPayout            = "addPayout"
	ActionUpdatePayout         = "updatePayout"
	ActionDeletePayout         = "deletePayout"
	ActionAddUtilityBill       = "addUtilityBill"
	ActionUpdateUtilityBill    = "updateUtilityBill"
	ActionDeleteUtilityBill    = "deleteUtilityBill"
	ActionAddExpense           = "addExpense"
	ActionUpdateExpense        = "updateExpense"
	ActionDeleteExpense        = "deleteExpense"
	ActionUpdateInitiationDate = "updateInitiationDate"
	ActionClearAllData         = "clearAllData"
	ActionSeed                 = "seed"
)

// ChangePublisher announces a new dataset revision, typically over AMQP.
type ChangePublisher interface {
	PublishDatasetChanged(ctx context.Context, revision int64, action string) error
}

// MutationRecorder observes the outcome of every mutation.
type MutationRecorder interface {
	RecordMutation(action string, revision int64, err error)
}

type LedgerConfig struct {
	ReadOnly bool
	// DefaultInitiation is restored by ClearAllData.
	DefaultInitiation core.Date
	// Now returns today; defaults to core.Today.
	Now func() core.Date
}

// LedgerService applies the household's bookkeeping rules on top of a
// storage.Store. Mutations are serialized and each returns the refreshed
// dataset.
type LedgerService struct {
	store     storage.Store
	publisher ChangePublisher
	recorder  MutationRecorder
	cfg       LedgerConfig

	mu sync.Mutex
}

// NewLedgerService wires the service. publisher and recorder may be nil.
func NewLedgerService(store storage.Store, publisher ChangePublisher, recorder MutationRecorder, cfg LedgerConfig) *LedgerService {
	if cfg.Now == nil {
		cfg.Now = core.Today
	}
	if cfg.DefaultInitiation.IsZero() {
		cfg.DefaultInitiation = core.DefaultInitiationDate
	}
	return &LedgerService{store: store, publisher: publisher, recorder: recorder, cfg: cfg}
}

// Inputs accepted by the mutation methods. ID is ignored by adds unless set,
// in which case it is used verbatim.
type (
	RoomInput struct {
		ID     string  `json:"id"`
		Number string  `json:"number"`
		Rent   float64 `json:"rent"`
	}

	RenterInput struct {
		ID     string  `json:"id"`
		Name   string  `json:"name"`
		RoomID *string `json:"roomId"`
	}

	// RentPaymentInput.Month is the month being viewed when the payment is
	// recorded. It is ignored by updates, which keep the original date.
	RentPaymentInput struct {
		ID       string    `json:"id"`
		RenterID string    `json:"renterId"`
		Amount   float64   `json:"amount"`
		Month    core.Date `json:"month"`
	}

	FamilyMemberInput struct {
		ID       string  `json:"id"`
		Name     string  `json:"name"`
		Expected float64 `json:"expected"`
	}

	PayoutInput struct {
		ID             string    `json:"id"`
		FamilyMemberID string    `json:"familyMemberId"`
		Amount         float64   `json:"amount"`
		Month          core.Date `json:"month"`
		Details        string    `json:"details"`
	}
)

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

// Sync returns the full dataset.
func (s *LedgerService) Sync(ctx context.Context) (core.Dataset, error) {
	return s.store.Load(ctx)
}

func (s *LedgerService) Revision(ctx context.Context) (int64, error) {
	return s.store.Revision(ctx)
}

func (s *LedgerService) ReadOnly() bool {
	return s.cfg.ReadOnly
}

// apply runs fn against the current dataset under the service lock, then
// records, publishes and returns the refreshed dataset.
func (s *LedgerService) apply(ctx context.Context, action string, fn func(ds core.Dataset, today core.Date) error) (core.Dataset, error) {
	if s.cfg.ReadOnly {
		return core.Dataset{}, ErrReadOnly
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := s.store.Load(ctx)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("load dataset: %w", err)
	}

	if err := fn(ds, s.cfg.Now().StartOfDay()); err != nil {
		s.record(action, 0, err)
		return core.Dataset{}, err
	}

	revision, err := s.store.Revision(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read revision after mutation", "component", "ledger", "action", action, "error", err)
	}
	s.record(action, revision, nil)
	s.publish(ctx, revision, action)

	return s.store.Load(ctx)
}

func (s *LedgerService) record(action string, revision int64, err error) {
	if s.recorder != nil {
		s.recorder.RecordMutation(action, revision, err)
	}
}

func (s *LedgerService) publish(ctx context.Context, revision int64, action string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No change publisher configured, skipping notification", "component", "ledger", "action", action)
		return
	}
	if err := s.publisher.PublishDatasetChanged(ctx, revision, action); err != nil {
		// The mutation is already persisted; the mirror catches up on its
		// periodic check.
		slog.ErrorContext(ctx, "Failed to publish dataset change",
			"component", "ledger", "action", action, "revision", revision, "error", err)
	}
}

func idOr(id, prefix string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return core.NewID(prefix)
}

// normalizeRate accepts zero, which stops a rate from a date on.
func normalizeRate(a float64) (float64, error) {
	if a == 0 {
		return 0, nil
	}
	return core.NormalizeAmount(a)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, storage.ErrNotFound)
}

// Rooms

func (s *LedgerService) AddRoom(ctx context.Context, in RoomInput) (core.Dataset, error) {
	return s.apply(ctx, ActionAddRoom, func(ds core.Dataset, today core.Date) error {
		rent, err := normalizeRate(in.Rent)
		if err != nil {
			return invalid(err)
		}
		room := core.Room{
			ID:          idOr(in.ID, core.PrefixRoom),
			Number:      strings.TrimSpace(in.Number),
			RentHistory: []core.TimeValue{{Amount: rent, EffectiveDate: today}},
		}
		if err := room.Validate(); err != nil {
			return invalid(err)
		}
		return s.store.SaveRoom(ctx, room)
	})
}

// UpdateRoom renames the room and records a rent change effective today when
// the rent differs from the one in effect.
func (s *LedgerService) UpdateRoom(ctx context.Context, in RoomInput) (core.Dataset, error) {
	return s.apply(ctx, ActionUpdateRoom, func(ds core.Dataset, today core.Date) error {
		room, ok := ds.FindRoom(in.ID)
		if !ok {
			return notFound("room", in.ID)
		}
		rent, err := normalizeRate(in.Rent)
		if err != nil {
			return invalid(err)
		}
		room.Number = strings.TrimSpace(in.Number)
		room.RentHistory = ledger.UpsertEffectiveEntry(room.RentHistory, rent, today)
		if err := room.Validate(); err != nil {
			return invalid(err)
		}
		return s.store.SaveRoom(ctx, room)
	})
}

func (s *LedgerService) DeleteRoom(ctx context.Context, id string) (core.Dataset, error) {
	return s.apply(ctx, ActionDeleteRoom, func(ds core.Dataset, today core.Date) error {
		if err := ledger.CheckRoomDeletion(id, today, ds.Renters); err != nil {
			return err
		}
		return s.store.Delete(ctx, storage.Rooms, id)
	})
}

// Renters

func (s *LedgerService) checkRoom(ds core.Dataset, roomID *string, renterID string, today core.Date) error {
	if roomID == nil {
		return nil
	}
	if _, ok := ds.FindRoom(*roomID); !ok {
		return invalid(fmt.Errorf("room %q: %w", *roomID, core.ErrMissingReference))
	}
	return ledger.CheckRoomAssignment(roomID, renterID, today, ds.Renters)
}

func normalizeRoomID(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	return core.StrPtr(strings.TrimSpace(*id))
}

func (s *LedgerService) AddRenter(ctx context.Context, in RenterInput) (core.Dataset, error) {
	return s.apply(ctx, ActionAddRenter, func(ds core.Dataset, today core.Date) error {
		roomID := normalizeRoomID(in.RoomID)
		id := idOr(in.ID, core.PrefixRenter)
		if err := s.checkRoom(ds, roomID, id, today); err != nil {
			return err
		}
		renter := ledger.NewRenter(id, strings.TrimSpace(in.Name), roomID, today)
		if err := renter.Validate(); err != nil {
			return invalid(err)
		}
		return s.store.SaveRenter(ctx, renter)
	})
}

// UpdateRenter renames the renter and moves them to in.RoomID effective
// today. Updating an archived renter reactivates them.
func (s *LedgerService) UpdateRenter(ctx context.Context, in RenterInput) (core.Dataset, error) {
	return s.apply(ctx, ActionUpdateRenter, func(ds core.Dataset, today core.Date) error {
		renter, ok := ds.FindRenter(in.ID)
		if !ok {
			return notFound("renter", in.ID)
		}
		roomID := normalizeRoomID(in.RoomID)
		if err := s.checkRoom(ds, roomID, renter.ID, today); err != nil {
			return err
		}
		renter = ledger.AssignRoom(renter, roomID, today)
		renter.Name = strings.TrimSpace(in.Name)
		if err := renter.Validate(); err != nil {
			return invalid(err)
		}
		return s.store.SaveRenter(ctx, renter)
	})
}

func (s *LedgerService) ArchiveRenter(ctx context.Context, id string) (core.Dataset, error) {
	return s.apply(ctx, ActionArchiveRenter, func(ds core.Dataset, today core.Date) error {
		renter, ok := ds.FindRenter(id)
		if !ok {
			return notFound("renter", id)
		}
		return s.store.SaveRenter(ctx, ledger.Archive(renter, today))
	})
}

func (s *LedgerService) DeleteRenter(ctx context.Context, id string) (core.Dataset, error) {
	return s.apply(ctx, ActionDeleteRenter, func(ds core.Dataset, today core.Date) error {
		if err := ledger.CheckRenterDeletion(id, ds.RentPayments); err != nil {
			return err
		}
		return s.store.Delete(ctx, storage.Renters, id)
	})
}

// Rent payments

// AddRentPayment records a payment dated by ledger.EntryDate for the viewed
// month, snapshotting the renter's name and the room held on that date.
func (s *LedgerService) AddRentPayment(ctx context.Context, in RentPaymentInput) (core.Dataset, error) {
	return s.apply(ctx, ActionAddRentPayment, func(ds core.Dataset, today core.Date) error {
		amount, err := core.NormalizeAmount(in.Amount)
		if err != nil {
			return invalid(err)
		}
		renter, ok := ds.FindRenter(in.RenterID)
		if !ok {
			return invalid(fmt.Errorf("renter %q: %w", in.RenterID, core.ErrMissingReference))
		}
		month := in.Month
		if month.IsZero() {
			month = today
		}
		if !ledger.EligibleForPayment(renter, month) {
			return fmt.Errorf("%w: %s in %s", ledger.ErrRenterNotEligible, renter.Name, month.MonthKey())
		}

		date := ledger.EntryDate(month, today)
		payment := core.RentPayment{
			ID:         idOr(in.ID, core.PrefixRentPayment),
			RenterID:   renter.ID,
			RenterName: renter.Name,
			RoomNumber: ledger.RoomNumberAt(renter, ds.Rooms, date),
			Amount:     amount,
			Date:       date,
		}
		if err := payment.Validate(); err != nil {
			return invalid(err)
		}
		return s.store.SaveRentPayment(ctx, payment)
	})
}

// UpdateRentPayment changes the amount or renter of a payment. The date is
// kept and the renter snapshot is refreshed at that date.
func (s *LedgerService) UpdateRentPayment(ctx context.Context, in RentPaymentInput) (core.Dataset, error) {
	return s.apply(ctx, ActionUpdateRentPayment, func(ds core.Dataset, today core.Date) error {
		payment, ok := ds.FindRentPayment(in.ID)
		if !ok {
			return notFound("rent payment", in.ID)
		}
		amount, err := core.NormalizeAmount(in.Amount)
		if err != nil {
			return invalid(err)
		}
		renter, ok := ds.FindRenter(in.RenterID)
		if !ok {
			return invalid(fmt.Errorf("renter %q: %w", in.RenterID, core.ErrMissingReference))
		}

		payment.RenterID = renter.ID
		payment.RenterName = renter.Name
		payment.RoomNumber = ledger.RoomNumberAt(renter, ds.Rooms, payment.Date)
		payment.Amount = amount
		if err := payment.Validate(); err != nil {
			return invalid(err)
		}
		return s.store.SaveRentPayment(ctx, payment)
	})
}

func (s *LedgerService) DeleteRentPayment(ctx context.Context, id string) (core.Dataset, error) {
	return s.apply(ctx, ActionDeleteRentPayment, func(core.Dataset, core.Date) error {
		return s.store.Delete(ctx, storage.RentPayments, id)
	})
}

// Family members

func (s *LedgerService) AddFamilyMember(ctx context.Context, in FamilyMemberInput) (core.Dataset, error) {
	return s.apply(ctx, ActionAddFamilyMember, func(ds core.Dataset, today core.Date) error {
		expected, err := normalizeRate(in.Expected)
		if err != nil {
			return invalid(err)
		}
		member := core.FamilyMember{
			ID:              idOr(in.ID, core.PrefixFamilyMember),
			Name:            strings.TrimSpace(in.Name),
			ExpectedHistory: []core.TimeValue{{Amount: expected, EffectiveDate: today}},
		}
		if err := member.Validate(); err != nil {
			return invalid(err)
		}
		return s.store.SaveFamilyMember(ctx, member)
	})
}

func (s *LedgerService) UpdateFamilyMember(ctx context.Context, in FamilyMemberInput) (core.Dataset, error) {
	return s.apply(ctx, ActionUpdateFamilyMember, func(ds core.Dataset, today core.Date) error {
		member, ok := ds.FindFamilyMember(in.ID)
		if !ok {
			return notFound("family member", in.ID)
		}
		expected, err := normalizeRate(in.Expected)
		if err != nil {
			return invalid(err)
		}
		member.Name = strings.TrimSpace(in.Name)
		member.ExpectedHistory = ledger.UpsertEffectiveEntry(member.ExpectedHistory, expected, today)
		if err := member.Validate(); err != nil {
			return invalid(err)
		}
		return s.store.SaveFamilyMember(ctx, member)
	})
}

func (s *LedgerService) DeleteFamilyMember(ctx context.Context, id string) (core.Dataset, error) {
	return s.apply(ctx, ActionDeleteFamilyMember, func(ds core.Dataset, _ core.Date) error {
		if err := ledger.CheckMemberDeletion(id, ds.Payouts); err != nil {
			return err
		}
		return s.store.Delete(ctx, storage.FamilyMembers, id)
	})
}

// Payouts

func (s *LedgerService) AddPayout(ctx context.Context, in PayoutInput) (core.Dataset, error) {
	return s.apply(ctx, ActionAddPayout, func(ds core.Dataset, today core.Date) error {
		amount, err := core.NormalizeAmount(in.Amount)
		if err != nil {
			return invalid(err)
		}
		member, ok := ds.FindFamilyMember(in.FamilyMemberID)
		if !ok {
			return invalid(fmt.Errorf("family member %q: %w", in.FamilyMemberID, core.ErrMissingReference))
		}
		month := in.Month
		if month.IsZero() {
			month = today
		}
		payout := core.Payout{
			ID:               idOr(in.ID, core.PrefixPayout),
			FamilyMemberID:   member.ID,
			FamilyMemberName: member.Name,
			Amount:           amount,
			Date:             ledger.EntryDate(month, today),
			Details:          strings.TrimSpace(in.Details),
		}
		if err := payout.Validate(); err != nil {
			return invalid(err)
		}
		return s.store.SavePayout(ctx, payout)
	})
}

func (s *LedgerService) UpdatePayout(ctx context.Context, in PayoutInput) (core.Dataset, error) {
	return s.apply(ctx, ActionUpdatePayout, func(ds core.Dataset, _ core.Date) error {
		payout, ok := ds.FindPayout(in.ID)
		if !ok {
			return notFound("payout", in.ID)
		}
		amount, err := core.NormalizeAmount(in.Amount)
		if err != nil {
			return invalid(err)
		}
		member, ok := ds.FindFamilyMember(in.FamilyMemberID)
		if !ok {
			return invalid(fmt.Errorf("family member %q: %w", in.FamilyMemberID, core.ErrMissingReference))
		}
		payout.FamilyMemberID = member.ID
		payout.FamilyMemberName = member.Name
		payout.Amount = amount
		payout.Details = strings.TrimSpace(in.Details)
		if err := payout.Validate(); err != nil {
			return invalid(err)
		}
		return s.store.SavePayout(ctx, payout)
	})
}

func (s *LedgerService) DeletePayout(ctx context.Context, id string) (core.Dataset, error) {
	return s.apply(ctx, ActionDeletePayout, func(core.Dataset, core.Date) error {
		return s.store.Delete(ctx, storage.Payouts, id)
	})
}

// Utility bills

func (s *LedgerService) AddUtilityBill(ctx context.Context, in core.UtilityBill) (core.Dataset, error) {
	return s.apply(ctx, ActionAddUtilityBill, func(core.Dataset, core.Date) error {
		in.ID = idOr(in.ID, core.PrefixBill)
		return s.saveUtilityBill(ctx, in)
	})
}

func (s *LedgerService) UpdateUtilityBill(ctx context.Context, in core.UtilityBill) (core.Dataset, error) {
	return s.apply(ctx, ActionUpdateUtilityBill, func(ds core.Dataset, _ core.Date) error {
		if _, ok := ds.FindUtilityBill(in.ID); !ok {
			return notFound("utility bill", in.ID)
		}
		return s.saveUtilityBill(ctx, in)
	})
}

func (s *LedgerService) saveUtilityBill(ctx context.Context, b core.UtilityBill) error {
	amount, err := core.NormalizeAmount(b.Amount)
	if err != nil {
		return invalid(err)
	}
	b.Amount = amount
	b.Date = b.Date.StartOfDay()
	b.Notes = strings.TrimSpace(b.Notes)
	if err := b.Validate(); err != nil {
		return invalid(err)
	}
	return s.store.SaveUtilityBill(ctx, b)
}

func (s *LedgerService) DeleteUtilityBill(ctx context.Context, id string) (core.Dataset, error) {
	return s.apply(ctx, ActionDeleteUtilityBill, func(core.Dataset, core.Date) error {
		return s.store.Delete(ctx, storage.UtilityBills, id)
	})
}

// Expenses

func (s *LedgerService) AddExpense(ctx context.Context, in core.Expense) (core.Dataset, error) {
	return s.apply(ctx, ActionAddExpense, func(core.Dataset, core.Date) error {
		in.ID = idOr(in.ID, core.PrefixExpense)
		return s.saveExpense(ctx, in)
	})
}

func (s *LedgerService) UpdateExpense(ctx context.Context, in core.Expense) (core.Dataset, error) {
	return s.apply(ctx, ActionUpdateExpense, func(ds core.Dataset, _ core.Date) error {
		if _, ok := ds.FindExpense(in.ID); !ok {
			return notFound("expense", in.ID)
		}
		return s.saveExpense(ctx, in)
	})
}

func (s *LedgerService) saveExpense(ctx context.Context, e core.Expense) error {
	amount, err := core.NormalizeAmount(e.Amount)
	if err != nil {
		return invalid(err)
	}
	e.Amount = amount
	e.Date = e.Date.StartOfDay()
	e.Details = strings.TrimSpace(e.Details)
	if err := e.Validate(); err != nil {
		return invalid(err)
	}
	return s.store.SaveExpense(ctx, e)
}

func (s *LedgerService) DeleteExpense(ctx context.Context, id string) (core.Dataset, error) {
	return s.apply(ctx, ActionDeleteExpense, func(core.Dataset, core.Date) error {
		return s.store.Delete(ctx, storage.Expenses, id)
	})
}

// Dataset-wide

func (s *LedgerService) UpdateInitiationDate(ctx context.Context, d core.Date) (core.Dataset, error) {
	return s.apply(ctx, ActionUpdateInitiationDate, func(core.Dataset, core.Date) error {
		if d.IsZero() {
			return invalid(core.ErrMissingDate)
		}
		return s.store.SetInitiationDate(ctx, d.StartOfDay())
	})
}

// ClearAllData empties every collection and restores the default initiation
// date.
func (s *LedgerService) ClearAllData(ctx context.Context) (core.Dataset, error) {
	return s.apply(ctx, ActionClearAllData, func(core.Dataset, core.Date) error {
		return s.store.Clear(ctx, s.cfg.DefaultInitiation)
	})
}

// Seed replaces the whole dataset, as used by the admin CLI.
func (s *LedgerService) Seed(ctx context.Context, ds core.Dataset) (core.Dataset, error) {
	return s.apply(ctx, ActionSeed, func(core.Dataset, core.Date) error {
		return s.store.Replace(ctx, ds)
	})
}
