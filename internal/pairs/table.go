package pairs

import "github.com/tradepairs/pairs-backend/internal/assets"

// Do not remove pairs from this table; set Deprecated instead. Removing a pair
// breaks histories and open positions that reference it.
func defaultPairs() []Pair {
	return []Pair{
		margin(RBTCXUSD, assets.RBTC, assets.XUSD, assets.XUSD, assets.RBTC, false),
		margin(RBTCUSDT, assets.RBTC, assets.USDT, assets.USDT, assets.RBTC, true),
		spot(RBTCSOV, assets.RBTC, assets.SOV, assets.RBTC, assets.SOV),
		margin(RBTCDOC, assets.RBTC, assets.DOC, assets.DOC, assets.RBTC, false),
		margin(BPROXUSD, assets.BPRO, assets.XUSD, assets.XUSD, assets.BPRO, false),
		spot(BPROSOV, assets.BPRO, assets.SOV, assets.BPRO, assets.SOV),
		margin(BPROUSDT, assets.BPRO, assets.USDT, assets.USDT, assets.BPRO, true),
		margin(BPRODOC, assets.BPRO, assets.DOC, assets.DOC, assets.BPRO, false),
		spot(SOVXUSD, assets.SOV, assets.XUSD, assets.XUSD, assets.SOV),
		spot(SOVDOC, assets.SOV, assets.DOC, assets.DOC, assets.SOV),
	}
}

// base and quote give the display order; long and short the trading sides.
func margin(id Identifier, base, quote, long, short assets.Asset, deprecated bool) Pair {
	return Pair{
		ID:             id,
		Name:           RenderName(base, quote),
		ChartSymbol:    string(base) + "/" + string(quote),
		LongAsset:      long,
		ShortAsset:     short,
		Collaterals:    []assets.Asset{base, quote},
		Deprecated:     deprecated,
		MarginTradable: true,
	}
}

func spot(id Identifier, base, quote, long, short assets.Asset) Pair {
	p := margin(id, base, quote, long, short, false)
	p.SpotOnly = true
	p.MarginTradable = false
	return p
}

var defaultDictionary = MustNew(defaultPairs()...)

// Default returns the process-wide dictionary built from the shipped table.
func Default() *Dictionary {
	return defaultDictionary
}
