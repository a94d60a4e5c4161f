// Package lifecycle derives and persists pool status. The derivation is a
// single ordered rule list so the FULL/MATURED tie-break is explicit and
// testable rather than incidental if/else fallthrough.
package lifecycle

import (
	"time"

	"github.com/rs/zerolog"

	"YieldSentinel/internal/model"
	"YieldSentinel/internal/store"
)

// rules are evaluated in order; the first match wins. MATURED outranks FULL,
// so a full pool past its maturity date derives MATURED.
var rules = []struct {
	Applies func(p *model.Pool, now time.Time) bool
	Status  model.PoolStatus
}{
	{func(p *model.Pool, now time.Time) bool {
		return p.MaturityDate.Before(now)
	}, model.PoolMatured},
	{func(p *model.Pool, _ time.Time) bool {
		return p.CurrentAmount.GreaterThanOrEqual(p.TargetAmount)
	}, model.PoolFull},
}

// Derive returns the status the pool should hold at the given time. SETTLED is
// terminal and never re-derived. When no rule applies the stored status stands.
func Derive(p *model.Pool, now time.Time) model.PoolStatus {
	if p.Status == model.PoolSettled {
		return model.PoolSettled
	}
	for _, r := range rules {
		if r.Applies(p, now) {
			return r.Status
		}
	}
	return p.Status
}

// Refresher persists derived status changes.
type Refresher struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewRefresher(s store.Store, log zerolog.Logger) *Refresher {
	return &Refresher{store: s, log: log, now: time.Now}
}

// RefreshStatus re-derives the pool's status and persists it only if it
// changed, making the call safe on every read path. Returns whether a write
// happened.
func (r *Refresher) RefreshStatus(poolID string) (bool, error) {
	p, err := r.store.GetPool(poolID)
	if err != nil {
		return false, err
	}
	derived := Derive(p, r.now())
	if derived == p.Status {
		return false, nil
	}
	if err := r.store.UpdatePoolStatus(poolID, derived); err != nil {
		return false, err
	}
	r.log.Info().
		Str("pool_id", poolID).
		Str("from", string(p.Status)).
		Str("to", string(derived)).
		Msg("pool status transitioned")
	return true, nil
}
