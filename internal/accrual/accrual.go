// Package accrual holds the pure yield math. Nothing here touches the store;
// callers persist what they compute.
package accrual

import (
	"time"

	"github.com/shopspring/decimal"

	"YieldSentinel/internal/model"
)

// DaysPerYear is the accrual day-count basis.
const DaysPerYear = 365

var (
	hundred  = decimal.NewFromInt(100)
	daysYear = decimal.NewFromInt(DaysPerYear)
)

// ElapsedDays returns the whole days between investedAt and min(asOf, maturity),
// truncated (floor of the millisecond difference over day length). Accrual never
// runs past maturity. Zero or negative spans return 0.
func ElapsedDays(investedAt, asOf, maturity time.Time) int64 {
	end := asOf
	if maturity.Before(end) {
		end = maturity
	}
	ms := end.Sub(investedAt).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return ms / (24 * time.Hour).Milliseconds()
}

// DaysToMaturity returns ceil((maturity - now) / day), floored at 0. Used to
// project yield at admission time.
func DaysToMaturity(now, maturity time.Time) int64 {
	ms := maturity.Sub(now).Milliseconds()
	if ms <= 0 {
		return 0
	}
	day := (24 * time.Hour).Milliseconds()
	return (ms + day - 1) / day
}

// ProjectYield computes floor(principal * rate/100 * days / 365). Truncation is
// intentional: the engine must never over-credit.
func ProjectYield(principal, annualRatePercent decimal.Decimal, days int64) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	return principal.
		Mul(annualRatePercent).Div(hundred).
		Mul(decimal.NewFromInt(days)).Div(daysYear).
		Floor()
}

// CurrentYield returns the yield an investment has earned as of now. A redeemed
// investment returns its stored final yield verbatim; it is never recomputed.
func CurrentYield(inv *model.Investment, pool *model.Pool, now time.Time) decimal.Decimal {
	if inv.RedeemedAt != nil {
		if inv.YieldAmount != nil {
			return *inv.YieldAmount
		}
		return decimal.Zero
	}
	days := ElapsedDays(inv.InvestedAt, now, pool.MaturityDate)
	return ProjectYield(inv.Amount, inv.YieldRate, days)
}
