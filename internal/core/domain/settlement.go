package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementTolerance is the largest absolute difference between a merchant's
// durable balance and its summed paid orders that still counts as matched.
var SettlementTolerance = decimal.RequireFromString("0.01")

// SettlementResult is derived per merchant per day and never persisted.
type SettlementResult struct {
	MerchantID       int64
	SettlementDate   time.Time
	TotalOrderAmount decimal.Decimal
	AccountBalance   decimal.Decimal
	Difference       decimal.Decimal
	Matched          bool
}
