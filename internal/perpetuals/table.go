package perpetuals

import (
	"github.com/shopspring/decimal"

	"github.com/tradepairs/pairs-backend/internal/assets"
)

func leverageSteps(steps ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(steps))
	for i, s := range steps {
		out[i] = decimal.NewFromInt(s)
	}
	return out
}

// Order amounts move in 0.002 increments and are displayed with 3 decimals.
func defaultPairs() []Pair {
	return []Pair{
		{
			ID:         BTCUSD,
			Name:       "BTC/USD",
			LongAsset:  assets.BTC,
			ShortAsset: assets.USD,
			Config: Config{
				Leverage: LeverageConfig{
					Min:   decimal.NewFromInt(1),
					Max:   decimal.NewFromInt(15),
					Steps: leverageSteps(1, 2, 3, 5, 10, 15),
				},
				TradeSize: TradeSizeConfig{
					Min:  decimal.RequireFromString("0.002"),
					Max:  decimal.NewFromInt(10),
					Step: decimal.RequireFromString("0.002"),
				},
				AmountPrecision: 3,
			},
		},
		{
			ID:         BNBUSD,
			Name:       "BNB/USD",
			LongAsset:  assets.BNB,
			ShortAsset: assets.USD,
			Config: Config{
				Leverage: LeverageConfig{
					Min:   decimal.NewFromInt(1),
					Max:   decimal.NewFromInt(10),
					Steps: leverageSteps(1, 2, 3, 5, 10),
				},
				TradeSize: TradeSizeConfig{
					Min:  decimal.RequireFromString("0.002"),
					Max:  decimal.NewFromInt(500),
					Step: decimal.RequireFromString("0.002"),
				},
				AmountPrecision: 3,
			},
		},
	}
}

var defaultDictionary = MustNew(defaultPairs()...)

// Default returns the process-wide perpetual dictionary.
func Default() *Dictionary {
	return defaultDictionary
}
