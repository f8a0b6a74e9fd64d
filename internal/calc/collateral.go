package calc

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/tradepairs/pairs-backend/internal/assets"
)

// ResolveCollateral returns requested when the pair accepts it, otherwise the
// pair's first collateral. It returns false when the pair lists no collateral.
func ResolveCollateral(collaterals []assets.Asset, requested assets.Asset) (assets.Asset, bool) {
	if len(collaterals) == 0 {
		return "", false
	}
	if requested != "" && slices.Contains(collaterals, requested) {
		return requested, true
	}
	return collaterals[0], true
}

// PositionSize is the exposure opened by depositing amount at leverage.
func PositionSize(amount, leverage decimal.Decimal) decimal.Decimal {
	return amount.Mul(leverage)
}

// Notional converts an order amount into quote units at price.
func Notional(amount, price decimal.Decimal) decimal.Decimal {
	return amount.Mul(price)
}
