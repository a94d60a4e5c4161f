package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"YieldSentinel/internal/model"
)

// MemoryStore is an in-memory Store used as a fallback when SQLite is not
// available, and by the engine tests. Same write semantics as the SQLite store.
type MemoryStore struct {
	mu          sync.Mutex
	pools       map[string]*model.Pool
	investments map[string]*model.Investment
	audit       []*model.AuditLogEntry
	nextAuditID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pools:       make(map[string]*model.Pool),
		investments: make(map[string]*model.Investment),
		nextAuditID: 1,
	}
}

func copyPool(p *model.Pool) *model.Pool {
	cp := *p
	return &cp
}

func copyInvestment(inv *model.Investment) *model.Investment {
	cp := *inv
	if inv.YieldAmount != nil {
		y := *inv.YieldAmount
		cp.YieldAmount = &y
	}
	if inv.RedeemedAt != nil {
		t := *inv.RedeemedAt
		cp.RedeemedAt = &t
	}
	return &cp
}

func (m *MemoryStore) CreatePool(p *model.Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[p.ID]; ok {
		return fmt.Errorf("pool %s already exists", p.ID)
	}
	m.pools[p.ID] = copyPool(p)
	return nil
}

func (m *MemoryStore) GetPool(id string) (*model.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[id]
	if !ok {
		return nil, model.ErrPoolNotFound
	}
	return copyPool(p), nil
}

func (m *MemoryStore) ListPoolsByStatus(statuses ...model.PoolStatus) ([]*model.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[model.PoolStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var pools []*model.Pool
	for _, p := range m.pools {
		if len(statuses) == 0 || want[p.Status] {
			pools = append(pools, copyPool(p))
		}
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].CreatedAt.Before(pools[j].CreatedAt) })
	return pools, nil
}

func (m *MemoryStore) UpdatePoolStatus(id string, status model.PoolStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[id]
	if !ok {
		return model.ErrPoolNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) MaturePoolsDue(now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, p := range m.pools {
		if p.Status == model.PoolMatured || p.Status == model.PoolSettled {
			continue
		}
		if !p.MaturityDate.After(now) {
			p.Status = model.PoolMatured
			p.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateInvestment(inv *model.Investment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[inv.PoolID]
	if !ok {
		return model.ErrPoolNotFound
	}
	if _, ok := m.investments[inv.ID]; ok {
		return fmt.Errorf("investment %s already exists", inv.ID)
	}
	m.investments[inv.ID] = copyInvestment(inv)
	p.CurrentAmount = p.CurrentAmount.Add(inv.Amount)
	p.UpdatedAt = inv.InvestedAt
	return nil
}

func (m *MemoryStore) GetInvestment(id string) (*model.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.investments[id]
	if !ok {
		return nil, model.ErrInvestmentNotFound
	}
	return copyInvestment(inv), nil
}

func (m *MemoryStore) ListActiveInvestments(poolID string) ([]*model.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var invs []*model.Investment
	for _, inv := range m.investments {
		if inv.PoolID == poolID && inv.Status == model.InvestmentActive {
			invs = append(invs, copyInvestment(inv))
		}
	}
	sortByInvestedAt(invs)
	return invs, nil
}

func (m *MemoryStore) ListActiveInvestmentsDue(now time.Time) ([]*model.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var invs []*model.Investment
	for _, inv := range m.investments {
		if inv.Status != model.InvestmentActive {
			continue
		}
		p, ok := m.pools[inv.PoolID]
		if !ok || p.MaturityDate.After(now) {
			continue
		}
		invs = append(invs, copyInvestment(inv))
	}
	sortByInvestedAt(invs)
	return invs, nil
}

func sortByInvestedAt(invs []*model.Investment) {
	sort.Slice(invs, func(i, j int) bool {
		if invs[i].InvestedAt.Equal(invs[j].InvestedAt) {
			return invs[i].ID < invs[j].ID
		}
		return invs[i].InvestedAt.Before(invs[j].InvestedAt)
	})
}

func (m *MemoryStore) UpdateInvestmentYield(id string, yield decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.investments[id]
	if !ok || inv.Status != model.InvestmentActive {
		return fmt.Errorf("%w: investment %s is not active", model.ErrInvalidState, id)
	}
	y := yield
	inv.YieldAmount = &y
	return nil
}

func (m *MemoryStore) RedeemInvestment(id string, finalYield decimal.Decimal, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.investments[id]
	if !ok || inv.Status != model.InvestmentActive {
		return fmt.Errorf("%w: investment %s is not active", model.ErrInvalidState, id)
	}
	y := finalYield
	t := at
	inv.Status = model.InvestmentRedeemed
	inv.YieldAmount = &y
	inv.RedeemedAt = &t
	return nil
}

func (m *MemoryStore) AppendAuditLog(e *model.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	cp.ID = m.nextAuditID
	m.nextAuditID++
	m.audit = append(m.audit, &cp)
	e.ID = cp.ID
	return nil
}

func (m *MemoryStore) ListAuditLog(limit, offset int) ([]*model.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	// Newest first, like the SQLite store.
	var out []*model.AuditLogEntry
	for i := len(m.audit) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *m.audit[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
