package lifecycle

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YieldSentinel/internal/model"
	"YieldSentinel/internal/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func pool(current, target string, maturity time.Time, status model.PoolStatus) *model.Pool {
	return &model.Pool{
		ID:            "p1",
		CurrentAmount: d(current),
		TargetAmount:  d(target),
		MaturityDate:  maturity,
		Status:        status,
		CreatedAt:     now.Add(-60 * 24 * time.Hour),
	}
}

func TestDerive(t *testing.T) {
	future := now.Add(30 * 24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name string
		pool *model.Pool
		want model.PoolStatus
	}{
		{"recruiting stays", pool("5000", "10000", future, model.PoolRecruiting), model.PoolRecruiting},
		{"target reached derives full", pool("10000", "10000", future, model.PoolRecruiting), model.PoolFull},
		{"over target derives full", pool("12000", "10000", future, model.PoolRecruiting), model.PoolFull},
		{"expired derives matured", pool("5000", "10000", past, model.PoolRecruiting), model.PoolMatured},
		{"matured outranks full", pool("10000", "10000", past, model.PoolRecruiting), model.PoolMatured},
		{"matured outranks full from full", pool("10000", "10000", past, model.PoolFull), model.PoolMatured},
		{"settled is terminal", pool("10000", "10000", past, model.PoolSettled), model.PoolSettled},
		{"exact maturity instant is not yet matured", pool("5000", "10000", now, model.PoolRecruiting), model.PoolRecruiting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.pool, now))
		})
	}
}

// countingStore counts status writes to assert refresh idempotence.
type countingStore struct {
	*store.MemoryStore
	statusWrites int
}

func (c *countingStore) UpdatePoolStatus(id string, status model.PoolStatus) error {
	c.statusWrites++
	return c.MemoryStore.UpdatePoolStatus(id, status)
}

func TestRefreshStatusWritesOnlyOnChange(t *testing.T) {
	cs := &countingStore{MemoryStore: store.NewMemoryStore()}
	p := pool("10000", "10000", now.Add(30*24*time.Hour), model.PoolRecruiting)
	require.NoError(t, cs.CreatePool(p))

	r := NewRefresher(cs, zerolog.Nop())
	r.now = func() time.Time { return now }

	changed, err := r.RefreshStatus(p.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, cs.statusWrites)

	got, _ := cs.GetPool(p.ID)
	assert.Equal(t, model.PoolFull, got.Status)

	// Second refresh with no intervening mutation: no second write.
	changed, err = r.RefreshStatus(p.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, cs.statusWrites)
}

func TestRefreshStatusNeverTouchesSettledPool(t *testing.T) {
	cs := &countingStore{MemoryStore: store.NewMemoryStore()}
	p := pool("10000", "10000", now.Add(-24*time.Hour), model.PoolSettled)
	require.NoError(t, cs.CreatePool(p))

	r := NewRefresher(cs, zerolog.Nop())
	r.now = func() time.Time { return now }

	changed, err := r.RefreshStatus(p.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 0, cs.statusWrites)
}

func TestRefreshStatusMissingPool(t *testing.T) {
	r := NewRefresher(store.NewMemoryStore(), zerolog.Nop())
	_, err := r.RefreshStatus("missing")
	assert.ErrorIs(t, err, model.ErrPoolNotFound)
}
