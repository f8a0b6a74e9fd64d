package calc

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var maxAmount = decimal.New(1, 30)

// ValidateAmount checks if an amount is positive and within reasonable bounds
func ValidateAmount(amount decimal.Decimal, operation string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("invalid %s amount: must be positive", operation)
	}
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("invalid %s amount: too large", operation)
	}
	return nil
}

// ValidateBalance checks that amount can be paid from balance.
func ValidateBalance(amount, balance decimal.Decimal) error {
	if amount.GreaterThan(balance) {
		return fmt.Errorf("amount %s exceeds available balance %s", amount, balance)
	}
	return nil
}

// ValidateLeverage checks min <= leverage <= max.
func ValidateLeverage(leverage, min, max decimal.Decimal) error {
	if leverage.LessThan(min) || leverage.GreaterThan(max) {
		return fmt.Errorf("leverage %s outside allowed range %s..%s", leverage, min, max)
	}
	return nil
}

// ValidateTradeSize checks min <= amount <= max.
func ValidateTradeSize(amount, min, max decimal.Decimal) error {
	if amount.LessThan(min) {
		return fmt.Errorf("trade size %s below minimum %s", amount, min)
	}
	if amount.GreaterThan(max) {
		return fmt.Errorf("trade size %s above maximum %s", amount, max)
	}
	return nil
}
