package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvestmentStatus is the lifecycle state of a single position.
type InvestmentStatus string

const (
	InvestmentActive   InvestmentStatus = "ACTIVE"
	InvestmentRedeemed InvestmentStatus = "REDEEMED"
)

// Investment is one investor's position in a pool. YieldAmount is nil until the
// first distribution run computes it; once the position is REDEEMED, YieldAmount
// and RedeemedAt are immutable.
type Investment struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	PoolID      string           `json:"pool_id"`
	Amount      decimal.Decimal  `json:"amount"`
	TokenAmount decimal.Decimal  `json:"token_amount"`
	YieldRate   decimal.Decimal  `json:"yield_rate"` // snapshotted from the pool at investment time
	YieldAmount *decimal.Decimal `json:"yield_amount,omitempty"`
	Status      InvestmentStatus `json:"status"`
	InvestedAt  time.Time        `json:"invested_at"`
	RedeemedAt  *time.Time       `json:"redeemed_at,omitempty"`
}
