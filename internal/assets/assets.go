package assets

import (
	"fmt"
	"strings"
)

// Asset identifies a token or quote unit that can appear on either side of a pair.
type Asset string

const (
	RBTC Asset = "RBTC"
	XUSD Asset = "XUSD"
	DOC  Asset = "DOC"
	USDT Asset = "USDT"
	SOV  Asset = "SOV"
	BPRO Asset = "BPRO"
	BTC  Asset = "BTC"
	BNB  Asset = "BNB"
	USD  Asset = "USD"
)

// WeiDecimals is the precision of every RSK token handled here.
const WeiDecimals = 18

// Info holds the display and precision metadata of an asset.
type Info struct {
	Asset    Asset  `json:"asset"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
	Stable   bool   `json:"stable"`
}

var catalog = []Info{
	{Asset: RBTC, Symbol: "RBTC", Decimals: WeiDecimals},
	{Asset: XUSD, Symbol: "XUSD", Decimals: WeiDecimals, Stable: true},
	{Asset: DOC, Symbol: "DOC", Decimals: WeiDecimals, Stable: true},
	{Asset: USDT, Symbol: "USDT", Decimals: WeiDecimals, Stable: true},
	{Asset: SOV, Symbol: "SOV", Decimals: WeiDecimals},
	{Asset: BPRO, Symbol: "BPro", Decimals: WeiDecimals},
	{Asset: BTC, Symbol: "BTC", Decimals: WeiDecimals},
	{Asset: BNB, Symbol: "BNB", Decimals: WeiDecimals},
	{Asset: USD, Symbol: "USD", Decimals: WeiDecimals, Stable: true},
}

var byAsset = func() map[Asset]Info {
	m := make(map[Asset]Info, len(catalog))
	for _, info := range catalog {
		m[info.Asset] = info
	}
	return m
}()

// Lookup returns the metadata for a known asset.
func Lookup(a Asset) (Info, bool) {
	info, ok := byAsset[a]
	return info, ok
}

// All returns every known asset in catalog order.
func All() []Info {
	out := make([]Info, len(catalog))
	copy(out, catalog)
	return out
}

// Parse resolves a case-insensitive asset name.
func Parse(s string) (Asset, error) {
	a := Asset(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := byAsset[a]; !ok {
		return "", fmt.Errorf("unknown asset: %q", s)
	}
	return a, nil
}

// IsStable reports whether the asset is a USD-pegged stablecoin or quote unit.
func IsStable(a Asset) bool {
	return byAsset[a].Stable
}

// Symbol returns the display symbol, falling back to the raw identifier.
func (a Asset) Symbol() string {
	if info, ok := byAsset[a]; ok {
		return info.Symbol
	}
	return string(a)
}

func (a Asset) String() string {
	return string(a)
}
