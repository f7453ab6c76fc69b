package ledger

import (
	"math"
	"reflect"
	"testing"
	"time"

	"hisab/internal/core"
)

func d(y, m, day int) core.Date { return core.NewDate(y, m, day) }

func tv(amount float64, y, m, day int) core.TimeValue {
	return core.TimeValue{Amount: amount, EffectiveDate: d(y, m, day)}
}

func occ(roomID string, y, m, day int) core.OccupancyEntry {
	if roomID == "" {
		return core.OccupancyEntry{EffectiveDate: d(y, m, day)}
	}
	return core.OccupancyEntry{RoomID: core.StrPtr(roomID), EffectiveDate: d(y, m, day)}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

// fixture builds a small two-room building initiated in June 2024.
func fixture() core.Dataset {
	return core.Dataset{
		InitiationDate: d(2024, 6, 1),
		Rooms: []core.Room{
			{ID: "r101", Number: "101", RentHistory: []core.TimeValue{tv(8000, 2024, 1, 1)}},
			{ID: "r102", Number: "102", RentHistory: []core.TimeValue{tv(8500, 2024, 1, 1)}},
		},
		Renters: []core.Renter{
			{ID: "t1", Name: "Karim", Status: core.RenterActive, OccupancyHistory: []core.OccupancyEntry{occ("r101", 2024, 1, 1)}},
			{ID: "t2", Name: "Salma", Status: core.RenterActive, OccupancyHistory: []core.OccupancyEntry{occ("r102", 2024, 1, 1)}},
		},
		FamilyMembers: []core.FamilyMember{
			{ID: "fm1", Name: "Sabbir", ExpectedHistory: []core.TimeValue{tv(10000, 2024, 1, 1)}},
		},
		RentPayments: []core.RentPayment{
			{ID: "rp1", RenterID: "t1", RenterName: "Karim", RoomNumber: "101", Amount: 8000, Date: d(2024, 6, 5)},
			{ID: "rp2", RenterID: "t2", RenterName: "Salma", RoomNumber: "102", Amount: 8500, Date: d(2024, 6, 6)},
			{ID: "rp3", RenterID: "t1", RenterName: "Karim", RoomNumber: "101", Amount: 5000, Date: d(2024, 7, 4)},
		},
		Payouts: []core.Payout{
			{ID: "p1", FamilyMemberID: "fm1", FamilyMemberName: "Sabbir", Amount: 10000, Date: d(2024, 6, 10)},
		},
		UtilityBills: []core.UtilityBill{
			{ID: "b1", Type: core.BillElectricity, Amount: 1500, Date: d(2024, 6, 15)},
		},
		Expenses: []core.Expense{
			{ID: "e1", Category: core.CategoryMaintenance, Amount: 700, Date: d(2024, 7, 20), Details: "Plumbing"},
		},
	}
}

func TestEffectiveValue(t *testing.T) {
	history := []core.TimeValue{tv(8500, 2024, 7, 1), tv(8000, 2024, 1, 1)}

	tests := []struct {
		name    string
		history []core.TimeValue
		target  core.Date
		want    float64
	}{
		{"empty history", nil, d(2024, 7, 1), 0},
		{"before first entry", history, d(2023, 12, 31), 0},
		{"on first entry", history, d(2024, 1, 1), 8000},
		{"between entries", history, d(2024, 6, 30), 8000},
		{"on change day", history, d(2024, 7, 1), 8500},
		{"after last entry", history, d(2025, 3, 1), 8500},
		{"time of day ignored", []core.TimeValue{{Amount: 5, EffectiveDate: core.Date{Time: d(2024, 7, 1).Add(15 * time.Hour)}}}, d(2024, 7, 1), 5},
		{"same day keeps first listed", []core.TimeValue{tv(1, 2024, 7, 1), tv(2, 2024, 7, 1)}, d(2024, 7, 2), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			approx(t, "EffectiveValue", EffectiveValue(tt.history, tt.target), tt.want)
		})
	}
}

func TestEffectiveValueDoesNotReorderInput(t *testing.T) {
	history := []core.TimeValue{tv(8000, 2024, 1, 1), tv(8500, 2024, 7, 1)}
	EffectiveValue(history, d(2024, 8, 1))
	if history[0].Amount != 8000 || history[1].Amount != 8500 {
		t.Errorf("input reordered: %+v", history)
	}
}

func TestUpsertEffectiveEntry(t *testing.T) {
	today := d(2024, 7, 15)

	t.Run("same amount is a no-op", func(t *testing.T) {
		h := []core.TimeValue{tv(8000, 2024, 1, 1)}
		got := UpsertEffectiveEntry(h, 8000, today)
		if len(got) != 1 {
			t.Fatalf("len = %d, want 1", len(got))
		}
	})

	t.Run("zero on empty history is a no-op", func(t *testing.T) {
		if got := UpsertEffectiveEntry(nil, 0, today); len(got) != 0 {
			t.Fatalf("len = %d, want 0", len(got))
		}
	})

	t.Run("appends a new entry", func(t *testing.T) {
		h := []core.TimeValue{tv(8000, 2024, 1, 1)}
		got := UpsertEffectiveEntry(h, 9000, today)
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		approx(t, "after", EffectiveValue(got, today), 9000)
		approx(t, "before", EffectiveValue(got, d(2024, 7, 14)), 8000)
		if len(h) != 1 {
			t.Error("input history modified")
		}
	})

	t.Run("replaces same-day entry", func(t *testing.T) {
		h := []core.TimeValue{tv(8000, 2024, 1, 1), tv(9000, 2024, 7, 15)}
		got := UpsertEffectiveEntry(h, 9500, today)
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		approx(t, "today", EffectiveValue(got, today), 9500)
		if h[1].Amount != 9000 {
			t.Error("input history modified")
		}
	})
}

func TestRoomForRenter(t *testing.T) {
	r := core.Renter{ID: "t1", Status: core.RenterActive, OccupancyHistory: []core.OccupancyEntry{
		occ("r101", 2024, 1, 1),
		occ("r102", 2024, 5, 1),
		occ("", 2024, 8, 31),
	}}

	tests := []struct {
		target core.Date
		want   string
		ok     bool
	}{
		{d(2023, 12, 31), "", false},
		{d(2024, 3, 1), "r101", true},
		{d(2024, 5, 1), "r102", true},
		{d(2024, 8, 30), "r102", true},
		{d(2024, 8, 31), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.target.String(), func(t *testing.T) {
			got, ok := RoomForRenter(r, tt.target)
			if got != tt.want || ok != tt.ok {
				t.Errorf("RoomForRenter = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestOccupantOfRoom(t *testing.T) {
	renters := []core.Renter{
		{ID: "old", Status: core.RenterArchived, OccupancyHistory: []core.OccupancyEntry{occ("r101", 2024, 1, 1)}},
		{ID: "new", Status: core.RenterActive, OccupancyHistory: []core.OccupancyEntry{occ("r102", 2024, 1, 1)}},
	}

	if _, ok := OccupantOfRoom("r101", d(2024, 6, 1), renters, true); ok {
		t.Error("archived renter returned with restrictToActive")
	}
	got, ok := OccupantOfRoom("r101", d(2024, 6, 1), renters, false)
	if !ok || got.ID != "old" {
		t.Errorf("OccupantOfRoom = (%q, %v), want (old, true)", got.ID, ok)
	}
	got, ok = OccupantOfRoom("r102", d(2024, 6, 1), renters, true)
	if !ok || got.ID != "new" {
		t.Errorf("OccupantOfRoom = (%q, %v), want (new, true)", got.ID, ok)
	}
	if _, ok := OccupantOfRoom("r999", d(2024, 6, 1), renters, false); ok {
		t.Error("unknown room reported occupied")
	}
}

func TestTenancyActiveInMonth(t *testing.T) {
	r := core.Renter{OccupancyHistory: []core.OccupancyEntry{
		occ("r101", 2024, 3, 20),
		occ("", 2024, 6, 30),
	}}

	tests := []struct {
		month core.Date
		want  bool
	}{
		{d(2024, 2, 1), false},
		{d(2024, 3, 1), true},
		{d(2024, 6, 1), true},
		{d(2024, 7, 1), false},
	}
	for _, tt := range tests {
		if got := TenancyActiveInMonth(r, tt.month); got != tt.want {
			t.Errorf("TenancyActiveInMonth(%s) = %v, want %v", tt.month.MonthKey(), got, tt.want)
		}
	}
	if TenancyActiveInMonth(core.Renter{}, d(2024, 6, 1)) {
		t.Error("renter without history reported active")
	}
}

func TestReferenceDate(t *testing.T) {
	today := d(2024, 7, 15)
	if got := ReferenceDate(d(2024, 7, 1), today); !got.SameDay(today) {
		t.Errorf("current month reference = %s, want %s", got, today)
	}
	if got := ReferenceDate(d(2024, 2, 1), today); !got.SameDay(d(2024, 2, 29)) {
		t.Errorf("past month reference = %s, want 2024-02-29", got)
	}
}

func TestMonthlySummary(t *testing.T) {
	ds := fixture()
	s := MonthlySummary(d(2024, 6, 1), d(2024, 9, 1), ds)

	approx(t, "rent collected", s.Rent.Collected, 16500)
	approx(t, "rent expected", s.Rent.Expected, 16500)
	approx(t, "rent payable", s.Rent.Payable, 0)
	approx(t, "payouts paid", s.Payouts.Paid, 10000)
	approx(t, "payouts expected", s.Payouts.Expected, 10000)
	approx(t, "bills", s.Bills, 1500)
	approx(t, "expenses", s.Expenses, 0)
	approx(t, "total outgoing", s.TotalOutgoing, 11500)
	approx(t, "balance", s.Balance, 5000)

	july := MonthlySummary(d(2024, 7, 1), d(2024, 9, 1), ds)
	approx(t, "july rent payable", july.Rent.Payable, 11500)
	approx(t, "july payouts payable", july.Payouts.Payable, 10000)
	approx(t, "july balance", july.Balance, 5000-700)
}

func TestMonthlySummaryIsRepeatable(t *testing.T) {
	ds := fixture()
	today := d(2024, 7, 15)

	for _, month := range []core.Date{d(2024, 6, 1), d(2024, 7, 1)} {
		first := MonthlySummary(month, today, ds)
		second := MonthlySummary(month, today, ds)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("%s: summaries differ:\n%+v\n%+v", month.MonthKey(), first, second)
		}
	}
	if !reflect.DeepEqual(ds, fixture()) {
		t.Error("MonthlySummary modified the dataset")
	}
}

func TestMonthlySummaryIgnoresVacantAndArchived(t *testing.T) {
	ds := fixture()
	ds.Renters[1].Status = core.RenterArchived
	ds.Rooms = append(ds.Rooms, core.Room{ID: "r201", Number: "201", RentHistory: []core.TimeValue{tv(9000, 2024, 1, 1)}})

	s := MonthlySummary(d(2024, 6, 1), d(2024, 9, 1), ds)
	approx(t, "rent expected", s.Rent.Expected, 8000)
}

func TestMonthlySummaryUsesToday(t *testing.T) {
	ds := fixture()
	ds.Rooms[0].RentHistory = append(ds.Rooms[0].RentHistory, tv(9000, 2024, 7, 20))

	early := MonthlySummary(d(2024, 7, 1), d(2024, 7, 10), ds)
	approx(t, "before raise", early.Rent.Expected, 16500)
	late := MonthlySummary(d(2024, 7, 1), d(2024, 7, 25), ds)
	approx(t, "after raise", late.Rent.Expected, 17500)
}

func TestWalkMonths(t *testing.T) {
	var got []string
	WalkMonths(d(2024, 11, 15), d(2025, 2, 3), func(m core.Date) { got = append(got, m.MonthKey()) })
	want := []string{"2024-11", "2024-12", "2025-01", "2025-02"}
	if len(got) != len(want) {
		t.Fatalf("months = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("month %d = %s, want %s", i, got[i], want[i])
		}
	}
	if n := MonthCount(d(2024, 11, 15), d(2025, 2, 3)); n != 4 {
		t.Errorf("MonthCount = %d, want 4", n)
	}

	visited := 0
	WalkMonths(d(2025, 1, 1), d(2024, 12, 1), func(core.Date) { visited++ })
	if visited != 0 || MonthCount(d(2025, 1, 1), d(2024, 12, 1)) != 0 {
		t.Error("selected before initiation should visit nothing")
	}
}

func TestMemberCumulativePayable(t *testing.T) {
	member := core.FamilyMember{ID: "fm1", ExpectedHistory: []core.TimeValue{tv(10000, 2024, 1, 1)}}
	payouts := []core.Payout{
		{FamilyMemberID: "fm1", Amount: 8000, Date: d(2024, 1, 10)},
		{FamilyMemberID: "fm1", Amount: 6000, Date: d(2024, 2, 10)},
		{FamilyMemberID: "other", Amount: 1000, Date: d(2024, 2, 10)},
	}

	got := MemberCumulativePayable(member, payouts, d(2024, 1, 1), d(2024, 2, 1))
	approx(t, "payable", got, 6000)

	overpaid := append(payouts, core.Payout{FamilyMemberID: "fm1", Amount: 50000, Date: d(2024, 2, 20)})
	approx(t, "floored", MemberCumulativePayable(member, overpaid, d(2024, 1, 1), d(2024, 2, 1)), 0)
}

func TestRenterCumulativePayable(t *testing.T) {
	rooms := []core.Room{{ID: "r102", Number: "102", RentHistory: []core.TimeValue{tv(8000, 2024, 1, 1), tv(8500, 2024, 2, 1)}}}
	renter := core.Renter{ID: "t2", Status: core.RenterActive, OccupancyHistory: []core.OccupancyEntry{occ("r102", 2024, 1, 1)}}
	payments := []core.RentPayment{
		{RenterID: "t2", Amount: 8000, Date: d(2024, 1, 5)},
		{RenterID: "t2", Amount: 8500, Date: d(2024, 2, 5)},
	}

	approx(t, "fully paid", RenterCumulativePayable(renter, rooms, payments, d(2024, 1, 1), d(2024, 2, 1)), 0)
	approx(t, "unpaid march", RenterCumulativePayable(renter, rooms, payments, d(2024, 1, 1), d(2024, 3, 1)), 8500)

	// An early overpayment offsets later months because the floor is applied once.
	prepaid := []core.RentPayment{{RenterID: "t2", Amount: 25000, Date: d(2024, 1, 5)}}
	approx(t, "prepaid", RenterCumulativePayable(renter, rooms, prepaid, d(2024, 1, 1), d(2024, 3, 1)), 0)
	approx(t, "prepaid through april", RenterCumulativePayable(renter, rooms, prepaid, d(2024, 1, 1), d(2024, 4, 1)), 8500)
}

func TestRenterCumulativePayableRentChangePaidInFull(t *testing.T) {
	rooms := []core.Room{{ID: "r101", Number: "101", RentHistory: []core.TimeValue{tv(8000, 2024, 1, 1), tv(8500, 2024, 3, 1)}}}
	renter := core.Renter{ID: "t1", Status: core.RenterActive, OccupancyHistory: []core.OccupancyEntry{occ("r101", 2024, 1, 1)}}
	payments := []core.RentPayment{
		{RenterID: "t1", Amount: 8000, Date: d(2024, 1, 3)},
		{RenterID: "t1", Amount: 8000, Date: d(2024, 2, 3)},
		{RenterID: "t1", Amount: 8500, Date: d(2024, 3, 3)},
	}

	approx(t, "end of march", RenterCumulativePayable(renter, rooms, payments, d(2024, 1, 1), d(2024, 3, 31)), 0)
	approx(t, "end of april", RenterCumulativePayable(renter, rooms, payments, d(2024, 1, 1), d(2024, 4, 30)), 8500)
}

func TestCumulativePayableLaterInitiation(t *testing.T) {
	rooms := []core.Room{{ID: "r101", Number: "101", RentHistory: []core.TimeValue{tv(8000, 2024, 1, 1)}}}
	renter := core.Renter{ID: "t1", Status: core.RenterActive, OccupancyHistory: []core.OccupancyEntry{occ("r101", 2024, 1, 1)}}
	member := core.FamilyMember{ID: "fm1", ExpectedHistory: []core.TimeValue{tv(10000, 2024, 1, 1)}}
	selected := d(2024, 4, 1)

	// No month is paid beyond what it owes.
	payments := []core.RentPayment{
		{RenterID: "t1", Amount: 8000, Date: d(2024, 1, 5)},
		{RenterID: "t1", Amount: 3000, Date: d(2024, 2, 5)},
		{RenterID: "t1", Amount: 8000, Date: d(2024, 4, 5)},
	}
	payouts := []core.Payout{
		{FamilyMemberID: "fm1", Amount: 2000, Date: d(2024, 1, 10)},
		{FamilyMemberID: "fm1", Amount: 10000, Date: d(2024, 3, 10)},
	}

	prevRenter := RenterCumulativePayable(renter, rooms, payments, d(2024, 1, 1), selected)
	prevMember := MemberCumulativePayable(member, payouts, d(2024, 1, 1), selected)
	for _, start := range []core.Date{d(2024, 2, 1), d(2024, 3, 1), d(2024, 4, 1), d(2024, 5, 1)} {
		gotRenter := RenterCumulativePayable(renter, rooms, payments, start, selected)
		if gotRenter > prevRenter {
			t.Errorf("renter payable from %s = %v, above %v from the month before", start.MonthKey(), gotRenter, prevRenter)
		}
		gotMember := MemberCumulativePayable(member, payouts, start, selected)
		if gotMember > prevMember {
			t.Errorf("member payable from %s = %v, above %v from the month before", start.MonthKey(), gotMember, prevMember)
		}
		prevRenter, prevMember = gotRenter, gotMember
	}

	// A prepayment falls out of the walk once the initiation passes it.
	prepaid := []core.RentPayment{{RenterID: "t1", Amount: 24000, Date: d(2024, 1, 5)}}
	approx(t, "prepaid from january", RenterCumulativePayable(renter, rooms, prepaid, d(2024, 1, 1), selected), 8000)
	approx(t, "prepaid from february", RenterCumulativePayable(renter, rooms, prepaid, d(2024, 2, 1), selected), 24000)
}

func TestRenterCumulativePayableMoveOut(t *testing.T) {
	rooms := []core.Room{{ID: "r101", Number: "101", RentHistory: []core.TimeValue{tv(8000, 2024, 1, 1)}}}
	renter := core.Renter{ID: "t1", OccupancyHistory: []core.OccupancyEntry{
		occ("r101", 2024, 1, 1),
		occ("", 2024, 2, 29),
	}}

	// Vacant at the end of February, so only January accrues.
	approx(t, "payable", RenterCumulativePayable(renter, rooms, nil, d(2024, 1, 1), d(2024, 4, 1)), 8000)
}

func TestComputeBalancesAndApply(t *testing.T) {
	ds := fixture()
	b := ComputeBalances(ds, d(2024, 7, 1))

	approx(t, "t1", b.Renters["t1"], 3000)
	approx(t, "t2", b.Renters["t2"], 8500)
	approx(t, "fm1", b.FamilyMembers["fm1"], 10000)

	applied := b.Apply(ds)
	approx(t, "applied t1", applied.Renters[0].CumulativePayable, 3000)
	if ds.Renters[0].CumulativePayable != 0 {
		t.Error("Apply modified the input dataset")
	}

	for id, v := range b.Renters {
		if v < 0 {
			t.Errorf("renter %s payable %v is negative", id, v)
		}
	}
}

func TestAllTimeSummary(t *testing.T) {
	ds := fixture()
	at := AllTimeSummary(ds, d(2024, 7, 1))

	if at.Months != 2 {
		t.Errorf("months = %d, want 2", at.Months)
	}
	approx(t, "rent collected", at.Rent.Collected, 21500)
	approx(t, "rent expected", at.Rent.Expected, 33000)
	approx(t, "rent payable", at.Rent.Payable, 11500)
	approx(t, "payouts expected", at.Payouts.Expected, 20000)
	approx(t, "payouts payable", at.Payouts.Payable, 10000)
	approx(t, "bills", at.Bills, 1500)
	approx(t, "expenses", at.Expenses, 700)
	approx(t, "balance", at.Balance, 21500-10000-1500-700)

	empty := AllTimeSummary(ds, d(2024, 1, 1))
	if empty.Months != 0 || empty.Balance != 0 {
		t.Errorf("selected before initiation = %+v, want zero totals", empty)
	}
}

func TestRentStatus(t *testing.T) {
	ds := fixture()
	ds.Rooms = append([]core.Room{{ID: "r110", Number: "110", RentHistory: []core.TimeValue{tv(6000, 2024, 1, 1)}}}, ds.Rooms...)
	ds.Renters = append(ds.Renters, core.Renter{
		ID: "t9", Name: "Roomless", Status: core.RenterActive,
		OccupancyHistory: []core.OccupancyEntry{occ("", 2024, 7, 2)},
	})
	ds.RentPayments = append(ds.RentPayments, core.RentPayment{ID: "rp9", RenterID: "t9", Amount: 200, Date: d(2024, 7, 3)})

	rows := RentStatus(d(2024, 7, 1), d(2024, 9, 1), ds)
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}

	wantRooms := []string{"101", "102", "110"}
	for i, num := range wantRooms {
		if rows[i].Room == nil || rows[i].Room.Number != num {
			t.Fatalf("row %d room = %+v, want %s", i, rows[i].Room, num)
		}
	}

	approx(t, "101 paid", rows[0].PaidThisMonth, 5000)
	approx(t, "101 payable", rows[0].PayableThisMonth, 3000)
	approx(t, "102 payable", rows[1].PayableThisMonth, 8500)
	if rows[2].Occupant != nil || rows[2].RentDue != 0 {
		t.Errorf("vacant room row = %+v", rows[2])
	}
	if rows[3].Room != nil || rows[3].Occupant == nil || rows[3].Occupant.ID != "t9" {
		t.Fatalf("unassigned row = %+v", rows[3])
	}
	approx(t, "unassigned payable", rows[3].PayableThisMonth, -200)

	totals := RentStatusTotals(rows)
	approx(t, "total due", totals.RentDue, 16500)
	approx(t, "total paid", totals.PaidThisMonth, 5200)
}

func TestSortRooms(t *testing.T) {
	rooms := []core.Room{{Number: "B"}, {Number: "201"}, {Number: "A"}, {Number: "20"}, {Number: "101"}}
	got := SortRooms(rooms)
	want := []string{"20", "101", "201", "A", "B"}
	for i, n := range want {
		if got[i].Number != n {
			t.Errorf("position %d = %s, want %s", i, got[i].Number, n)
		}
	}
	if rooms[0].Number != "B" {
		t.Error("input reordered")
	}
}

func TestRecentActivity(t *testing.T) {
	ds := fixture()
	items := RecentActivity(d(2024, 6, 1), ds, DefaultActivityLimit)
	if len(items) != 4 {
		t.Fatalf("items = %d, want 4", len(items))
	}
	if items[0].ID != "b1" || items[len(items)-1].ID != "rp1" {
		t.Errorf("order = %s..%s, want b1..rp1", items[0].ID, items[len(items)-1].ID)
	}
	if !items[len(items)-1].Incoming {
		t.Error("rent payment should be incoming")
	}

	if got := RecentActivity(d(2024, 6, 1), ds, 2); len(got) != 2 {
		t.Errorf("limited items = %d, want 2", len(got))
	}
}

func TestBuildDashboard(t *testing.T) {
	ds := fixture()
	dash := BuildDashboard(d(2024, 7, 1), d(2024, 9, 1), ds)

	approx(t, "carry over", dash.CarryOver, 5000)
	approx(t, "month balance", dash.Summary.Balance, 4300)
	approx(t, "final balance", dash.FinalBalance, 9300)
	if len(dash.Activity) != 2 {
		t.Errorf("activity = %d, want 2", len(dash.Activity))
	}
}
