package pairs

import (
	"errors"
	"fmt"
	"slices"

	"github.com/tradepairs/pairs-backend/internal/assets"
)

// Identifier names a tradable pair. Values are persisted by clients and must
// never be renamed or reused for a different pair.
type Identifier string

const (
	RBTCXUSD Identifier = "RBTC_XUSD"
	RBTCDOC  Identifier = "RBTC_DOC"
	RBTCUSDT Identifier = "RBTC_USDT"
	RBTCSOV  Identifier = "RBTC_SOV"
	BPROXUSD Identifier = "BPRO_XUSD"
	BPROUSDT Identifier = "BPRO_USDT"
	BPRODOC  Identifier = "BPRO_DOC"
	SOVXUSD  Identifier = "SOV_XUSD"
	SOVDOC   Identifier = "SOV_DOC"
	BPROSOV  Identifier = "BPRO_SOV"
)

func (id Identifier) String() string {
	return string(id)
}

// Pair describes a tradable pair and the collateral it accepts.
type Pair struct {
	ID          Identifier     `json:"id"`
	Name        string         `json:"name"`
	ChartSymbol string         `json:"chartSymbol"`
	LongAsset   assets.Asset   `json:"longAsset"`
	ShortAsset  assets.Asset   `json:"shortAsset"`
	Collaterals []assets.Asset `json:"collaterals"`
	// Deprecated pairs accept no new trades but stay resolvable.
	Deprecated     bool `json:"deprecated"`
	SpotOnly       bool `json:"spotOnly"`
	MarginTradable bool `json:"marginTradable"`
}

// Entry is an (identifier, pair) tuple as returned by Dictionary.Entries.
type Entry struct {
	ID   Identifier
	Pair Pair
}

// HasCollateral reports whether a is accepted as collateral for the pair.
func (p Pair) HasCollateral(a assets.Asset) bool {
	return slices.Contains(p.Collaterals, a)
}

// Matches reports whether the pair trades a against b in either orientation.
func (p Pair) Matches(a, b assets.Asset) bool {
	return (p.LongAsset == a && p.ShortAsset == b) || (p.LongAsset == b && p.ShortAsset == a)
}

func (p Pair) clone() Pair {
	p.Collaterals = slices.Clone(p.Collaterals)
	return p
}

// RenderName builds the human readable name of a pair from its two assets.
func RenderName(a, b assets.Asset) string {
	return a.Symbol() + " - " + b.Symbol()
}

// ErrUnknownPair is matched by every UnknownPairError.
var ErrUnknownPair = errors.New("unknown trading pair")

// UnknownPairError is returned when an identifier or asset combination is not
// registered in the dictionary.
type UnknownPairError struct {
	ID     Identifier
	AssetA assets.Asset
	AssetB assets.Asset
}

func (e *UnknownPairError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("unknown trading pair %q", string(e.ID))
	}
	return fmt.Sprintf("no trading pair for assets %s/%s", e.AssetA, e.AssetB)
}

func (e *UnknownPairError) Is(target error) bool {
	return target == ErrUnknownPair
}
