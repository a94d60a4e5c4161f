package accrual

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"YieldSentinel/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestProjectYield(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		days      int64
		want      string
	}{
		{"thirty days at eight percent", "10000", "8", 30, "65"},
		{"zero days", "10000", "8", 0, "0"},
		{"negative days", "10000", "8", -5, "0"},
		{"full year", "10000", "8", 365, "800"},
		{"truncates, never rounds up", "1000", "8", 30, "6"}, // 6.575... → 6
		{"small principal truncates to zero", "100", "8", 30, "0"},
		{"fractional rate", "50000", "6.5", 90, "801"}, // 50000*0.065*90/365 = 801.36...
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProjectYield(d(tt.principal), d(tt.rate), tt.days)
			assert.True(t, got.Equal(d(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestElapsedDays(t *testing.T) {
	invested := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	maturity := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("whole days truncated", func(t *testing.T) {
		asOf := invested.Add(30*24*time.Hour + 23*time.Hour)
		assert.Equal(t, int64(30), ElapsedDays(invested, asOf, maturity))
	})
	t.Run("capped at maturity", func(t *testing.T) {
		asOf := maturity.Add(90 * 24 * time.Hour)
		assert.Equal(t, int64(60), ElapsedDays(invested, asOf, maturity))
	})
	t.Run("before invested is zero", func(t *testing.T) {
		assert.Equal(t, int64(0), ElapsedDays(invested, invested.Add(-time.Hour), maturity))
	})
	t.Run("same instant is zero", func(t *testing.T) {
		assert.Equal(t, int64(0), ElapsedDays(invested, invested, maturity))
	})
}

func TestDaysToMaturity(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(30), DaysToMaturity(now, now.Add(30*24*time.Hour)))
	// Partial days round up.
	assert.Equal(t, int64(31), DaysToMaturity(now, now.Add(30*24*time.Hour+time.Minute)))
	// Past maturity floors at zero.
	assert.Equal(t, int64(0), DaysToMaturity(now, now.Add(-time.Hour)))
}

func TestCurrentYield(t *testing.T) {
	invested := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pool := &model.Pool{MaturityDate: invested.Add(90 * 24 * time.Hour), YieldRate: d("8")}

	t.Run("active accrues by elapsed days", func(t *testing.T) {
		inv := &model.Investment{
			Amount:     d("10000"),
			YieldRate:  d("8"),
			Status:     model.InvestmentActive,
			InvestedAt: invested,
		}
		now := invested.Add(30 * 24 * time.Hour)
		assert.True(t, CurrentYield(inv, pool, now).Equal(d("65")))
	})

	t.Run("redeemed returns stored yield verbatim", func(t *testing.T) {
		final := d("123")
		redeemed := invested.Add(90 * 24 * time.Hour)
		inv := &model.Investment{
			Amount:      d("10000"),
			YieldRate:   d("8"),
			Status:      model.InvestmentRedeemed,
			InvestedAt:  invested,
			YieldAmount: &final,
			RedeemedAt:  &redeemed,
		}
		now := redeemed.Add(300 * 24 * time.Hour)
		assert.True(t, CurrentYield(inv, pool, now).Equal(final))
	})

	t.Run("never accrues past maturity", func(t *testing.T) {
		inv := &model.Investment{
			Amount:     d("10000"),
			YieldRate:  d("8"),
			Status:     model.InvestmentActive,
			InvestedAt: invested,
		}
		atMaturity := CurrentYield(inv, pool, pool.MaturityDate)
		wayPast := CurrentYield(inv, pool, pool.MaturityDate.Add(365*24*time.Hour))
		assert.True(t, atMaturity.Equal(wayPast))
		assert.True(t, wayPast.Equal(d("197"))) // 10000*0.08*90/365 = 197.26 → 197
	})
}
