package services

import (
	"context"
	"fmt"
	"time"

	"hisab/internal/cache"
	"hisab/internal/core"
	"hisab/internal/ledger"
)

// DatasetReader is the read side of storage.Store.
type DatasetReader interface {
	Load(ctx context.Context) (core.Dataset, error)
	Revision(ctx context.Context) (int64, error)
}

// CacheRecorder observes cache hits and misses per view.
type CacheRecorder interface {
	RecordCacheLookup(view string, hit bool)
}

const (
	viewBalances = "balances"
	viewAllTime  = "all_time"
)

// RentStatusView is the rent status table with its totals row.
type RentStatusView struct {
	Month  core.Date           `json:"month"`
	Rows   []ledger.RoomStatus `json:"rows"`
	Totals ledger.RoomStatus   `json:"totals"`
}

// BalancesView carries the dataset with cumulative payables filled in.
type BalancesView struct {
	ledger.Balances
	RenterRows       []core.Renter       `json:"renterRows"`
	FamilyMemberRows []core.FamilyMember `json:"familyMemberRows"`
}

// DashboardService computes the derived monthly and cumulative views. The
// cumulative views walk every month since initiation, so they are memoized
// per dataset revision.
type DashboardService struct {
	reader   DatasetReader
	balances cache.Cache[ledger.Balances]
	allTime  cache.Cache[ledger.AllTime]
	recorder CacheRecorder
	now      func() core.Date
}

type DashboardConfig struct {
	CacheSize int
	CacheTTL  time.Duration
	Now       func() core.Date
}

// NewDashboardService builds the service and registers its caches with
// manager when one is given. recorder may be nil.
func NewDashboardService(reader DatasetReader, recorder CacheRecorder, manager *cache.Manager, cfg DashboardConfig) *DashboardService {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 64
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = core.Today
	}

	balances := cache.NewLRUCache[ledger.Balances](cfg.CacheSize, cfg.CacheTTL)
	allTime := cache.NewLRUCache[ledger.AllTime](cfg.CacheSize, cfg.CacheTTL)
	if manager != nil {
		manager.Register(balances)
		manager.Register(allTime)
	}

	return &DashboardService{
		reader:   reader,
		balances: balances,
		allTime:  allTime,
		recorder: recorder,
		now:      cfg.Now,
	}
}

func cacheKey(revision int64, month, initiation core.Date) string {
	return fmt.Sprintf("%d|%s|%s", revision, month.MonthKey(), initiation.String())
}

func (s *DashboardService) snapshot(ctx context.Context) (core.Dataset, int64, error) {
	// The revision is read before the dataset so a key is never newer than
	// the data cached under it.
	revision, err := s.reader.Revision(ctx)
	if err != nil {
		return core.Dataset{}, 0, fmt.Errorf("read revision: %w", err)
	}
	ds, err := s.reader.Load(ctx)
	if err != nil {
		return core.Dataset{}, 0, fmt.Errorf("load dataset: %w", err)
	}
	return ds, revision, nil
}

func (s *DashboardService) lookup(view string, hit bool) {
	if s.recorder != nil {
		s.recorder.RecordCacheLookup(view, hit)
	}
}

func (s *DashboardService) cachedBalances(ds core.Dataset, revision int64, month core.Date) ledger.Balances {
	key := cacheKey(revision, month, ds.InitiationDate)
	if b, ok := s.balances.Get(key); ok {
		s.lookup(viewBalances, true)
		return b
	}
	s.lookup(viewBalances, false)
	b := ledger.ComputeBalances(ds, month)
	s.balances.Set(key, b)
	return b
}

// Dashboard returns the month's summary, carry-over and latest activity.
func (s *DashboardService) Dashboard(ctx context.Context, month core.Date) (ledger.Dashboard, error) {
	ds, err := s.reader.Load(ctx)
	if err != nil {
		return ledger.Dashboard{}, fmt.Errorf("load dataset: %w", err)
	}
	return ledger.BuildDashboard(month.StartOfMonth(), s.now(), ds), nil
}

// Summary returns the snapshot of a single month.
func (s *DashboardService) Summary(ctx context.Context, month core.Date) (ledger.Summary, error) {
	ds, err := s.reader.Load(ctx)
	if err != nil {
		return ledger.Summary{}, fmt.Errorf("load dataset: %w", err)
	}
	return ledger.MonthlySummary(month.StartOfMonth(), s.now(), ds), nil
}

// Balances returns every cumulative payable through month.
func (s *DashboardService) Balances(ctx context.Context, month core.Date) (BalancesView, error) {
	ds, revision, err := s.snapshot(ctx)
	if err != nil {
		return BalancesView{}, err
	}
	b := s.cachedBalances(ds, revision, month.StartOfMonth())
	applied := b.Apply(ds)
	return BalancesView{Balances: b, RenterRows: applied.Renters, FamilyMemberRows: applied.FamilyMembers}, nil
}

// AllTime aggregates everything from initiation through month.
func (s *DashboardService) AllTime(ctx context.Context, month core.Date) (ledger.AllTime, error) {
	ds, revision, err := s.snapshot(ctx)
	if err != nil {
		return ledger.AllTime{}, err
	}

	key := cacheKey(revision, month, ds.InitiationDate)
	if a, ok := s.allTime.Get(key); ok {
		s.lookup(viewAllTime, true)
		return a, nil
	}
	s.lookup(viewAllTime, false)
	a := ledger.AllTimeSummary(ds, month.StartOfMonth())
	s.allTime.Set(key, a)
	return a, nil
}

// RentStatus lists every room's rent status for month.
func (s *DashboardService) RentStatus(ctx context.Context, month core.Date) (RentStatusView, error) {
	ds, err := s.reader.Load(ctx)
	if err != nil {
		return RentStatusView{}, fmt.Errorf("load dataset: %w", err)
	}
	rows := ledger.RentStatus(month.StartOfMonth(), s.now(), ds)
	return RentStatusView{Month: month.StartOfMonth(), Rows: rows, Totals: ledger.RentStatusTotals(rows)}, nil
}
