package services

import (
	"stakehouse/domain/entities"

	"github.com/shopspring/decimal"
)

// ComputeSettlement returns the amount that changes hands once a staked
// session resolves.
//
//	profit      = cashout - buyIn
//	entitlement = profit * percentage * markup
//	settlement  = -entitlement
//
// A negative settlement means the staked player owes the staker; a positive
// one means the staker owes the player. Markup applies to losses as well as
// wins.
func ComputeSettlement(buyIn, cashout, percentage, markup decimal.Decimal) (decimal.Decimal, error) {
	if buyIn.IsNegative() {
		return decimal.Zero, entities.NewValidationError("buy_in", "must not be negative")
	}
	if cashout.IsNegative() {
		return decimal.Zero, entities.NewValidationError("cashout", "must not be negative")
	}
	terms := entities.StakeTerms{Percentage: percentage, Markup: markup}
	if err := terms.Validate(); err != nil {
		return decimal.Zero, err
	}

	return computeSettlementUnchecked(buyIn, cashout, percentage, markup), nil
}

// computeSettlementUnchecked skips validation; callers must pass checked inputs
func computeSettlementUnchecked(buyIn, cashout, percentage, markup decimal.Decimal) decimal.Decimal {
	profit := cashout.Sub(buyIn)
	entitlement := profit.Mul(percentage).Mul(markup)
	return entitlement.Neg()
}
