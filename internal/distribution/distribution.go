// Package distribution batch-applies accrual across active investments.
// Per-item failures are logged and skipped; one investment must never abort
// the pool-run or its siblings' accounting.
package distribution

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"YieldSentinel/internal/accrual"
	"YieldSentinel/internal/model"
	"YieldSentinel/internal/store"
)

// eligibleStatuses selects pools for a full distribution pass. FULL pools sit
// out until they derive MATURED; SETTLED pools are done.
var eligibleStatuses = []model.PoolStatus{model.PoolRecruiting, model.PoolMatured}

// Engine recomputes and persists accrued yield.
type Engine struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewEngine(s store.Store, log zerolog.Logger) *Engine {
	return &Engine{store: s, log: log, now: time.Now}
}

// DistributePool recomputes accrual for every ACTIVE investment of one pool.
// A yield is persisted only when it differs from the stored value, and the
// pool-run audit entry is written only when at least one investment changed,
// so a re-run with no elapsed time is audit-silent.
func (e *Engine) DistributePool(poolID string) (*model.PoolDistributionResult, error) {
	pool, err := e.store.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	invs, err := e.store.ListActiveInvestments(poolID)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}

	now := e.now()
	result := &model.PoolDistributionResult{
		PoolID:           pool.ID,
		PoolName:         pool.Name,
		TotalDistributed: decimal.Zero,
		DistributedAt:    now,
	}

	for _, inv := range invs {
		yield := accrual.CurrentYield(inv, pool, now)
		if inv.YieldAmount == nil || !inv.YieldAmount.Equal(yield) {
			if err := e.store.UpdateInvestmentYield(inv.ID, yield); err != nil {
				e.log.Error().
					Err(err).
					Str("investment_id", inv.ID).
					Str("pool_id", poolID).
					Msg("persist accrued yield failed, skipping investment")
				continue
			}
			result.UpdatedCount++
		}
		result.InvestorCount++
		result.TotalDistributed = result.TotalDistributed.Add(yield)
	}

	if result.UpdatedCount > 0 {
		entry := &model.AuditLogEntry{
			Action:     model.ActionYieldDistribution,
			EntityType: "pool",
			EntityID:   pool.ID,
			Details: map[string]any{
				"totalDistributed": result.TotalDistributed.String(),
				"investorCount":    result.InvestorCount,
				"updatedCount":     result.UpdatedCount,
				"distributedAt":    now.UTC().Format(time.RFC3339),
			},
			CreatedAt: now,
		}
		if err := e.store.AppendAuditLog(entry); err != nil {
			return nil, fmt.Errorf("append audit log: %w", err)
		}
	}

	e.log.Info().
		Str("pool_id", poolID).
		Int("investors", result.InvestorCount).
		Int("updated", result.UpdatedCount).
		Str("total", result.TotalDistributed.String()).
		Msg("pool distribution run complete")
	return result, nil
}

// DistributeAll runs DistributePool over every eligible pool. One pool's
// failure is logged and skipped, never propagated.
func (e *Engine) DistributeAll() (*model.DistributionSummary, error) {
	pools, err := e.store.ListPoolsByStatus(eligibleStatuses...)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}

	summary := &model.DistributionSummary{
		TotalDistributed: decimal.Zero,
		DistributedAt:    e.now(),
	}
	for _, p := range pools {
		res, err := e.DistributePool(p.ID)
		if err != nil {
			e.log.Error().Err(err).Str("pool_id", p.ID).Msg("pool distribution failed, skipping pool")
			continue
		}
		summary.TotalPools++
		summary.TotalDistributed = summary.TotalDistributed.Add(res.TotalDistributed)
		summary.TotalInvestors += res.InvestorCount
		summary.Results = append(summary.Results, *res)
	}

	e.log.Info().
		Int("pools", summary.TotalPools).
		Int("investors", summary.TotalInvestors).
		Str("total", summary.TotalDistributed.String()).
		Msg("distribution pass complete")
	return summary, nil
}
