package store

import (
	"time"

	"github.com/shopspring/decimal"

	"YieldSentinel/internal/model"
)

// Store is the persistence contract for pools, investments and the audit log.
//
// Write semantics the engines rely on:
//   - CreateInvestment inserts the investment and increments the pool's
//     current_amount in one transaction (all-or-nothing).
//   - RedeemInvestment is a conditional write: it only applies if the
//     investment is still ACTIVE, and reports model.ErrInvalidState otherwise,
//     so two concurrent settlements cannot both succeed.
//   - AppendAuditLog is append-only; no update or delete exists.
type Store interface {
	CreatePool(p *model.Pool) error
	GetPool(id string) (*model.Pool, error)
	ListPoolsByStatus(statuses ...model.PoolStatus) ([]*model.Pool, error)
	UpdatePoolStatus(id string, status model.PoolStatus) error
	// MaturePoolsDue transitions every pool whose maturity date has passed and
	// whose status is neither MATURED nor SETTLED into MATURED. Returns the
	// number of pools transitioned.
	MaturePoolsDue(now time.Time) (int64, error)

	CreateInvestment(inv *model.Investment) error
	GetInvestment(id string) (*model.Investment, error)
	ListActiveInvestments(poolID string) ([]*model.Investment, error)
	// ListActiveInvestmentsDue returns ACTIVE investments whose pool has
	// reached maturity.
	ListActiveInvestmentsDue(now time.Time) ([]*model.Investment, error)
	// UpdateInvestmentYield persists a recomputed accrual for an investment
	// that is still ACTIVE.
	UpdateInvestmentYield(id string, yield decimal.Decimal) error
	// RedeemInvestment finalizes an investment: status → REDEEMED, final yield
	// and redemption time set, only if it is currently ACTIVE.
	RedeemInvestment(id string, finalYield decimal.Decimal, at time.Time) error

	AppendAuditLog(e *model.AuditLogEntry) error
	ListAuditLog(limit, offset int) ([]*model.AuditLogEntry, error)

	Close() error
}
