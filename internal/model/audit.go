package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuditAction identifies the kind of event an audit entry records.
type AuditAction string

const (
	ActionYieldDistribution    AuditAction = "YIELD_DISTRIBUTION"
	ActionInvestmentSettlement AuditAction = "INVESTMENT_SETTLEMENT"
)

// AuditLogEntry is an append-only record of a distribution or settlement event.
// Entries are never updated or deleted.
type AuditLogEntry struct {
	ID         int64          `json:"id"`
	Action     AuditAction    `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	UserID     string         `json:"user_id,omitempty"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}

// PoolDistributionResult summarizes one pool-run of the distribution engine.
type PoolDistributionResult struct {
	PoolID           string          `json:"pool_id"`
	PoolName         string          `json:"pool_name"`
	TotalDistributed decimal.Decimal `json:"total_distributed"`
	InvestorCount    int             `json:"investor_count"`
	UpdatedCount     int             `json:"updated_count"`
	DistributedAt    time.Time       `json:"distributed_at"`
}

// DistributionSummary aggregates a full distribution pass across eligible pools.
type DistributionSummary struct {
	TotalPools       int                      `json:"total_pools"`
	TotalDistributed decimal.Decimal          `json:"total_distributed"`
	TotalInvestors   int                      `json:"total_investors"`
	Results          []PoolDistributionResult `json:"results"`
	DistributedAt    time.Time                `json:"distributed_at"`
}

// SettlementResult records one finalized investment.
type SettlementResult struct {
	InvestmentID string          `json:"investment_id"`
	PoolID       string          `json:"pool_id"`
	UserID       string          `json:"user_id"`
	Principal    decimal.Decimal `json:"principal"`
	FinalYield   decimal.Decimal `json:"final_yield"`
	SettledAt    time.Time       `json:"settled_at"`
}

// SettlementSummary aggregates a full settlement pass over matured investments.
type SettlementSummary struct {
	TotalInvestments int                `json:"total_investments"`
	TotalSettled     int                `json:"total_settled"`
	TotalYield       decimal.Decimal    `json:"total_yield"`
	Results          []SettlementResult `json:"results"`
	SettledAt        time.Time          `json:"settled_at"`
}
