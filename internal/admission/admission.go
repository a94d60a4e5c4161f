// Package admission gates the synchronous investment-creation path: it decides
// whether a pool can accept a new investment, how many tokens the amount buys,
// and applies the investment and the pool increment as one atomic unit. The
// investor notification is deliberately outside that unit: a webhook cannot
// join the storage transaction, so it goes out after commit and a failed send
// is logged, never rolled back.
package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"YieldSentinel/internal/accrual"
	"YieldSentinel/internal/lifecycle"
	"YieldSentinel/internal/model"
	"YieldSentinel/internal/notifier"
	"YieldSentinel/internal/store"
)

// MinInvestmentAmount is the smallest accepted investment, in currency units.
var MinInvestmentAmount = decimal.NewFromInt(1000)

// TokenPrecision is the fixed-point scale of token allocations.
const TokenPrecision = 8

// Availability is the result of a pool availability check.
type Availability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Validation is the result of an amount check against a pool.
type Validation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Quote is what an accepted amount would buy, computed at admission time.
type Quote struct {
	TokenAmount    decimal.Decimal `json:"token_amount"`
	ExpectedYield  decimal.Decimal `json:"expected_yield"`
	DaysToMaturity int64           `json:"days_to_maturity"`
}

// Service implements admission control.
type Service struct {
	store     store.Store
	refresher *lifecycle.Refresher
	notifier  notifier.Notifier
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(s store.Store, r *lifecycle.Refresher, n notifier.Notifier, log zerolog.Logger) *Service {
	return &Service{store: s, refresher: r, notifier: n, log: log, now: time.Now}
}

// CheckAvailability reports whether the pool can accept any new investment.
func (s *Service) CheckAvailability(poolID string) (Availability, error) {
	p, err := s.store.GetPool(poolID)
	if errors.Is(err, model.ErrPoolNotFound) {
		return Availability{Reason: "pool not found"}, nil
	}
	if err != nil {
		return Availability{}, err
	}
	if reason := availabilityReason(p, s.now()); reason != "" {
		return Availability{Reason: reason}, nil
	}
	return Availability{Available: true}, nil
}

func availabilityReason(p *model.Pool, now time.Time) string {
	switch {
	case p.Status != model.PoolRecruiting:
		return "pool is not recruiting"
	case p.CurrentAmount.GreaterThanOrEqual(p.TargetAmount):
		return "pool is full"
	case p.MaturityDate.Before(now):
		return "pool has expired"
	}
	return ""
}

// ValidateAmount checks an investment amount against the pool's remaining
// capacity. This is the authoritative overflow guard: the schema does not
// constrain current_amount.
func (s *Service) ValidateAmount(poolID string, amount decimal.Decimal) (Validation, error) {
	p, err := s.store.GetPool(poolID)
	if errors.Is(err, model.ErrPoolNotFound) {
		return Validation{Reason: "pool not found"}, nil
	}
	if err != nil {
		return Validation{}, err
	}
	if reason := amountReason(p, amount); reason != "" {
		return Validation{Reason: reason}, nil
	}
	return Validation{Valid: true}, nil
}

func amountReason(p *model.Pool, amount decimal.Decimal) string {
	if amount.LessThan(MinInvestmentAmount) {
		return fmt.Sprintf("amount below minimum of %s", MinInvestmentAmount)
	}
	if amount.GreaterThan(p.RemainingCapacity()) {
		return "amount exceeds remaining capacity"
	}
	return ""
}

// QuoteAmount computes the token allocation and projected yield for an amount,
// without admitting it.
func (s *Service) QuoteAmount(poolID string, amount decimal.Decimal) (*Quote, error) {
	p, err := s.store.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	return quote(p, amount, s.now()), nil
}

func quote(p *model.Pool, amount decimal.Decimal, now time.Time) *Quote {
	// Proportional allocation with 8-decimal truncation, not bonded to a live
	// unit price.
	tokens := p.TotalTokenSupply.Mul(amount).Div(p.TargetAmount).Truncate(TokenPrecision)
	days := accrual.DaysToMaturity(now, p.MaturityDate)
	return &Quote{
		TokenAmount:    tokens,
		ExpectedYield:  accrual.ProjectYield(amount, p.YieldRate, days),
		DaysToMaturity: days,
	}
}

// Invest admits a user's investment: availability and amount checks, token
// allocation, then the investment row and the pool increment in one
// transaction. The investor notification goes out after commit; its failure is
// logged, not rolled back.
func (s *Service) Invest(ctx context.Context, userID, poolID string, amount decimal.Decimal) (*model.Investment, error) {
	now := s.now()
	p, err := s.store.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	if reason := availabilityReason(p, now); reason != "" {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidState, reason)
	}
	if reason := amountReason(p, amount); reason != "" {
		return nil, fmt.Errorf("%w: %s", model.ErrValidation, reason)
	}

	q := quote(p, amount, now)
	inv := &model.Investment{
		ID:          uuid.NewString(),
		UserID:      userID,
		PoolID:      poolID,
		Amount:      amount,
		TokenAmount: q.TokenAmount,
		YieldRate:   p.YieldRate,
		Status:      model.InvestmentActive,
		InvestedAt:  now,
	}
	if err := s.store.CreateInvestment(inv); err != nil {
		return nil, fmt.Errorf("create investment: %w", err)
	}

	s.log.Info().
		Str("investment_id", inv.ID).
		Str("pool_id", poolID).
		Str("user_id", userID).
		Str("amount", amount.String()).
		Str("tokens", q.TokenAmount.String()).
		Msg("investment admitted")

	// The pool may have just reached its target.
	if _, err := s.refresher.RefreshStatus(poolID); err != nil {
		s.log.Error().Err(err).Str("pool_id", poolID).Msg("refresh pool status after invest")
	}

	msg := fmt.Sprintf("Invested %s in %s; %s tokens allocated, expected yield %s at maturity",
		amount, p.Name, q.TokenAmount, q.ExpectedYield)
	if err := s.notifier.Notify(ctx, userID, "Investment confirmed", msg, notifier.TypeInvestment); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("send investment notification")
	}

	return inv, nil
}
