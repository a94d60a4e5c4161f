package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PoolStatus is the lifecycle state of a pool. Transitions only move forward:
// RECRUITING → FULL|MATURED → SETTLED.
type PoolStatus string

const (
	PoolRecruiting PoolStatus = "RECRUITING"
	PoolFull       PoolStatus = "FULL"
	PoolMatured    PoolStatus = "MATURED"
	PoolSettled    PoolStatus = "SETTLED"
)

// Pool is a recruiting vehicle for pooled tax-refund receivables.
type Pool struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	TargetAmount     decimal.Decimal `json:"target_amount"`
	CurrentAmount    decimal.Decimal `json:"current_amount"`
	YieldRate        decimal.Decimal `json:"yield_rate"` // annual, percent
	MaturityDate     time.Time       `json:"maturity_date"`
	TotalTokenSupply decimal.Decimal `json:"total_token_supply"`
	Status           PoolStatus      `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// RemainingCapacity returns targetAmount - currentAmount. The schema does not
// enforce the cap; admission control checks against this value before writing.
func (p *Pool) RemainingCapacity() decimal.Decimal {
	return p.TargetAmount.Sub(p.CurrentAmount)
}

// IsMatured reports whether the pool's maturity date has passed at the given time.
func (p *Pool) IsMatured(now time.Time) bool {
	return p.MaturityDate.Before(now) || p.MaturityDate.Equal(now)
}
