package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
	"paperTrader/internal/pricing"

	"github.com/shopspring/decimal"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

// memStore is an in-memory implementation of every repository port the engine uses.
// It stores copies so callers cannot mutate persisted state without a write.
type memStore struct {
	mu         sync.Mutex
	portfolios map[string]domain.Portfolio
	trades     map[string]domain.Trade
	snapshots  map[string]domain.PortfolioSnapshot // keyed by portfolioID|date
	ledgerErr  error
	updateErr  error
}

var (
	_ ports.PortfolioRepository = (*memStore)(nil)
	_ ports.TradeRepository     = (*memStore)(nil)
	_ ports.SnapshotRepository  = (*memStore)(nil)
	_ ports.Ledger              = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		portfolios: make(map[string]domain.Portfolio),
		trades:     make(map[string]domain.Trade),
		snapshots:  make(map[string]domain.PortfolioSnapshot),
	}
}

func (s *memStore) CreatePortfolio(ctx context.Context, p *domain.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.portfolios[p.ID]; ok {
		return ports.ErrDuplicateEntry
	}
	s.portfolios[p.ID] = *p
	return nil
}

func (s *memStore) UpdatePortfolio(ctx context.Context, p *domain.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putPortfolio(p)
}

func (s *memStore) putPortfolio(p *domain.Portfolio) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.portfolios[p.ID]; !ok {
		return ports.ErrNotFound
	}
	s.portfolios[p.ID] = *p
	return nil
}

func (s *memStore) FindPortfolioByID(ctx context.Context, id string) (*domain.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.portfolios[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *memStore) FindPortfolios(ctx context.Context, activeOnly bool) ([]*domain.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Portfolio
	for _, p := range s.portfolios {
		if activeOnly && !p.IsActive {
			continue
		}
		cp := p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) CreateTrade(ctx context.Context, t *domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTrade(t)
}

func (s *memStore) insertTrade(t *domain.Trade) error {
	if t.Status.IsActive() && s.activeTrade(t.PortfolioID, t.Ticker) != nil {
		return ports.ErrDuplicateEntry
	}
	s.trades[t.ID] = copyTrade(t)
	return nil
}

func (s *memStore) UpdateTrade(ctx context.Context, t *domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putTrade(t)
}

func (s *memStore) putTrade(t *domain.Trade) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.trades[t.ID]; !ok {
		return ports.ErrNotFound
	}
	s.trades[t.ID] = copyTrade(t)
	return nil
}

func (s *memStore) FindTradeByID(ctx context.Context, id string) (*domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return nil, nil
	}
	cp := copyTrade(&t)
	return &cp, nil
}

func (s *memStore) FindActiveByTicker(ctx context.Context, portfolioID, ticker string) (*domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeTrade(portfolioID, ticker), nil
}

func (s *memStore) activeTrade(portfolioID, ticker string) *domain.Trade {
	for _, t := range s.trades {
		if t.PortfolioID == portfolioID && t.Ticker == ticker && t.Status.IsActive() {
			cp := copyTrade(&t)
			return &cp
		}
	}
	return nil
}

func (s *memStore) FindByStatus(ctx context.Context, portfolioID string, status domain.TradeStatus) ([]*domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Trade
	for _, t := range s.trades {
		if t.PortfolioID == portfolioID && t.Status == status {
			cp := copyTrade(&t)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) FindRecentClosed(ctx context.Context, portfolioID string, limit int) ([]*domain.Trade, error) {
	closed, _ := s.FindByStatus(ctx, portfolioID, domain.StatusClosed)
	sort.Slice(closed, func(i, j int) bool { return closed[i].Exit.Date.After(closed[j].Exit.Date) })
	if len(closed) > limit {
		closed = closed[:limit]
	}
	return closed, nil
}

func (s *memStore) SumRealizedPnL(ctx context.Context, portfolioID string) (decimal.Decimal, error) {
	closed, _ := s.FindByStatus(ctx, portfolioID, domain.StatusClosed)
	sum := decimal.Zero
	for _, t := range closed {
		sum = sum.Add(t.Exit.RealizedPnL)
	}
	return sum, nil
}

func (s *memStore) RecordEntry(ctx context.Context, p *domain.Portfolio, t *domain.Trade, insert bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledgerErr != nil {
		return s.ledgerErr
	}
	var err error
	if insert {
		err = s.insertTrade(t)
	} else {
		err = s.putTrade(t)
	}
	if err != nil {
		return err
	}
	return s.putPortfolio(p)
}

func (s *memStore) RecordExit(ctx context.Context, p *domain.Portfolio, t *domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledgerErr != nil {
		return s.ledgerErr
	}
	if err := s.putTrade(t); err != nil {
		return err
	}
	return s.putPortfolio(p)
}

func (s *memStore) UpsertSnapshot(ctx context.Context, snap *domain.PortfolioSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.PortfolioID+"|"+snap.Date.Format(time.DateOnly)] = *snap
	return nil
}

func (s *memStore) FindSnapshots(ctx context.Context, portfolioID string, from, to time.Time) ([]*domain.PortfolioSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.PortfolioSnapshot
	for _, snap := range s.snapshots {
		if snap.PortfolioID != portfolioID {
			continue
		}
		if (!from.IsZero() && snap.Date.Before(from)) || (!to.IsZero() && snap.Date.After(to)) {
			continue
		}
		cp := snap
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *memStore) portfolio(id string) domain.Portfolio {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portfolios[id]
}

func (s *memStore) trade(id string) domain.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trades[id]
}

// fakePrices resolves every ticker to a fixed price regardless of date and mode.
// Tickers without a price are unavailable.
type fakePrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	calls  int
}

func newFakePrices() *fakePrices {
	return &fakePrices{prices: make(map[string]decimal.Decimal)}
}

func (f *fakePrices) set(ticker, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[ticker] = decimal.RequireFromString(price)
}

func (f *fakePrices) clear(ticker string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.prices, ticker)
}

func (f *fakePrices) Resolve(ctx context.Context, ticker string, target time.Time, mode domain.PriceMode) (pricing.Quote, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p, ok := f.prices[ticker]
	if !ok {
		return pricing.Quote{}, false
	}
	return pricing.Quote{Price: p, Tier: pricing.TierExactDate, AsOf: domain.Day(target)}, true
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
