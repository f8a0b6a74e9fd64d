package calc

import "github.com/shopspring/decimal"

// RoundToStep snaps amount to the nearest multiple of step, rounding half away
// from zero. A non-positive step leaves amount unchanged.
func RoundToStep(amount, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return amount
	}
	return amount.Div(step).Round(0).Mul(step)
}

// ToWei scales a token amount to its integer base unit.
func ToWei(amount decimal.Decimal, decimals int32) decimal.Decimal {
	return amount.Shift(decimals).Truncate(0)
}

// FromWei scales an integer base unit amount back to token units.
func FromWei(wei decimal.Decimal, decimals int32) decimal.Decimal {
	return wei.Shift(-decimals)
}

// FormatAmount renders amount with exactly precision decimals.
func FormatAmount(amount decimal.Decimal, precision int32) string {
	return amount.StringFixed(precision)
}
