// Package settlement finalizes matured investments: principal plus final
// yield, exactly once.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"YieldSentinel/internal/accrual"
	"YieldSentinel/internal/model"
	"YieldSentinel/internal/notifier"
	"YieldSentinel/internal/store"
)

// Engine settles matured investments and transitions their pools.
type Engine struct {
	store    store.Store
	notifier notifier.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewEngine(s store.Store, n notifier.Notifier, log zerolog.Logger) *Engine {
	return &Engine{store: s, notifier: n, log: log, now: time.Now}
}

// SettleInvestment finalizes one investment. Preconditions raise typed errors:
// the investment must exist, be ACTIVE, and its pool must have reached
// maturity. The redeem itself is a conditional write, so a concurrent attempt
// on the same investment fails rather than double-paying.
func (e *Engine) SettleInvestment(ctx context.Context, investmentID string) (*model.SettlementResult, error) {
	inv, err := e.store.GetInvestment(investmentID)
	if err != nil {
		return nil, err
	}
	if inv.Status != model.InvestmentActive {
		return nil, fmt.Errorf("%w: investment %s is %s, expected ACTIVE", model.ErrInvalidState, investmentID, inv.Status)
	}
	pool, err := e.store.GetPool(inv.PoolID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if !pool.IsMatured(now) {
		return nil, fmt.Errorf("%w: pool %s has not yet matured", model.ErrInvalidState, pool.ID)
	}

	// Capped at the maturity date by construction.
	finalYield := accrual.CurrentYield(inv, pool, now)

	if err := e.store.RedeemInvestment(investmentID, finalYield, now); err != nil {
		return nil, err
	}

	entry := &model.AuditLogEntry{
		Action:     model.ActionInvestmentSettlement,
		EntityType: "investment",
		EntityID:   inv.ID,
		UserID:     inv.UserID,
		Details: map[string]any{
			"poolId":           inv.PoolID,
			"investmentAmount": inv.Amount.String(),
			"finalYield":       finalYield.String(),
			"settledAt":        now.UTC().Format(time.RFC3339),
		},
		CreatedAt: now,
	}
	if err := e.store.AppendAuditLog(entry); err != nil {
		e.log.Error().Err(err).Str("investment_id", inv.ID).Msg("append settlement audit entry")
	}

	total := inv.Amount.Add(finalYield)
	msg := fmt.Sprintf("Your investment has settled: principal %s plus yield %s, total %s",
		inv.Amount, finalYield, total)
	if err := e.notifier.Notify(ctx, inv.UserID, "Investment settled", msg, notifier.TypeSettlement); err != nil {
		e.log.Error().Err(err).Str("user_id", inv.UserID).Msg("send settlement notification")
	}

	e.log.Info().
		Str("investment_id", inv.ID).
		Str("pool_id", inv.PoolID).
		Str("principal", inv.Amount.String()).
		Str("final_yield", finalYield.String()).
		Msg("investment settled")

	return &model.SettlementResult{
		InvestmentID: inv.ID,
		PoolID:       inv.PoolID,
		UserID:       inv.UserID,
		Principal:    inv.Amount,
		FinalYield:   finalYield,
		SettledAt:    now,
	}, nil
}

// SettleAllMatured settles every ACTIVE investment whose pool has matured,
// isolating per-item failures, then bulk-transitions all due pools to MATURED,
// including pools with no remaining investments.
func (e *Engine) SettleAllMatured(ctx context.Context) (*model.SettlementSummary, error) {
	now := e.now()
	invs, err := e.store.ListActiveInvestmentsDue(now)
	if err != nil {
		return nil, fmt.Errorf("list matured investments: %w", err)
	}

	summary := &model.SettlementSummary{
		TotalInvestments: len(invs),
		TotalYield:       decimal.Zero,
		SettledAt:        now,
	}
	for _, inv := range invs {
		res, err := e.SettleInvestment(ctx, inv.ID)
		if err != nil {
			e.log.Error().Err(err).Str("investment_id", inv.ID).Msg("settlement failed, skipping investment")
			continue
		}
		summary.TotalSettled++
		summary.TotalYield = summary.TotalYield.Add(res.FinalYield)
		summary.Results = append(summary.Results, *res)
	}

	// Coarse pool transition: every due pool ends MATURED, even one with zero
	// investments. A structural failure here does propagate.
	matured, err := e.store.MaturePoolsDue(now)
	if err != nil {
		return nil, fmt.Errorf("mature due pools: %w", err)
	}

	e.log.Info().
		Int("investments", summary.TotalInvestments).
		Int("settled", summary.TotalSettled).
		Int64("pools_matured", matured).
		Str("total_yield", summary.TotalYield.String()).
		Msg("settlement pass complete")
	return summary, nil
}
