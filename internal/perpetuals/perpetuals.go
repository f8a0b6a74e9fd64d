// Package perpetuals holds the perpetual futures pair dictionary and the
// per-pair trading limits used to size orders.
package perpetuals

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/tradepairs/pairs-backend/internal/assets"
)

type Identifier string

const (
	BTCUSD Identifier = "BTCUSD"
	BNBUSD Identifier = "BNBUSD"
)

type LeverageConfig struct {
	Min   decimal.Decimal   `json:"min"`
	Max   decimal.Decimal   `json:"max"`
	Steps []decimal.Decimal `json:"steps"`
}

type TradeSizeConfig struct {
	Min  decimal.Decimal `json:"min"`
	Max  decimal.Decimal `json:"max"`
	Step decimal.Decimal `json:"step"`
}

type Config struct {
	Leverage  LeverageConfig  `json:"leverage"`
	TradeSize TradeSizeConfig `json:"tradeSize"`
	// AmountPrecision is the number of decimals order amounts are shown with.
	AmountPrecision int32 `json:"amountPrecision"`
}

type Pair struct {
	ID         Identifier   `json:"id"`
	Name       string       `json:"name"`
	LongAsset  assets.Asset `json:"longAsset"`
	ShortAsset assets.Asset `json:"shortAsset"`
	Deprecated bool         `json:"deprecated"`
	Config     Config       `json:"config"`
}

type Entry struct {
	ID   Identifier
	Pair Pair
}

var ErrUnknownPair = errors.New("unknown perpetual pair")

type UnknownPairError struct {
	ID Identifier
}

func (e *UnknownPairError) Error() string {
	return fmt.Sprintf("unknown perpetual pair %q", string(e.ID))
}

func (e *UnknownPairError) Is(target error) bool {
	return target == ErrUnknownPair
}

func (p Pair) clone() Pair {
	p.Config.Leverage.Steps = slices.Clone(p.Config.Leverage.Steps)
	return p
}

// Dictionary is the read-only registry of perpetual pairs.
type Dictionary struct {
	order []Identifier
	byID  map[Identifier]Pair
}

func New(pairs ...Pair) (*Dictionary, error) {
	d := &Dictionary{
		order: make([]Identifier, 0, len(pairs)),
		byID:  make(map[Identifier]Pair, len(pairs)),
	}
	for _, p := range pairs {
		if err := validate(p); err != nil {
			return nil, err
		}
		if _, dup := d.byID[p.ID]; dup {
			return nil, fmt.Errorf("perpetual %s: duplicate identifier", p.ID)
		}
		d.order = append(d.order, p.ID)
		d.byID[p.ID] = p.clone()
	}
	return d, nil
}

func MustNew(pairs ...Pair) *Dictionary {
	d, err := New(pairs...)
	if err != nil {
		panic(err)
	}
	return d
}

func validate(p Pair) error {
	if p.ID == "" {
		return fmt.Errorf("perpetual with empty identifier")
	}
	lev := p.Config.Leverage
	if !lev.Min.IsPositive() || lev.Max.LessThan(lev.Min) {
		return fmt.Errorf("perpetual %s: invalid leverage bounds %s..%s", p.ID, lev.Min, lev.Max)
	}
	for i, step := range lev.Steps {
		if step.LessThan(lev.Min) || step.GreaterThan(lev.Max) {
			return fmt.Errorf("perpetual %s: leverage step %s outside %s..%s", p.ID, step, lev.Min, lev.Max)
		}
		if i > 0 && !step.GreaterThan(lev.Steps[i-1]) {
			return fmt.Errorf("perpetual %s: leverage steps must be ascending", p.ID)
		}
	}
	size := p.Config.TradeSize
	if !size.Min.IsPositive() || size.Max.LessThan(size.Min) {
		return fmt.Errorf("perpetual %s: invalid trade size bounds %s..%s", p.ID, size.Min, size.Max)
	}
	if !size.Step.IsPositive() {
		return fmt.Errorf("perpetual %s: trade size step must be positive", p.ID)
	}
	return nil
}

func (d *Dictionary) Get(id Identifier) (Pair, error) {
	p, ok := d.byID[id]
	if !ok {
		return Pair{}, &UnknownPairError{ID: id}
	}
	return p.clone(), nil
}

func (d *Dictionary) Len() int {
	return len(d.order)
}

func (d *Dictionary) List() []Pair {
	out := make([]Pair, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id].clone())
	}
	return out
}

func (d *Dictionary) Entries() []Entry {
	out := make([]Entry, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, Entry{ID: id, Pair: d.byID[id].clone()})
	}
	return out
}

func (d *Dictionary) Active() []Pair {
	out := make([]Pair, 0, len(d.order))
	for _, id := range d.order {
		if p := d.byID[id]; !p.Deprecated {
			out = append(out, p.clone())
		}
	}
	return out
}

func (d *Dictionary) Find(ids []Identifier) ([]Pair, error) {
	out := make([]Pair, 0, len(ids))
	for _, id := range ids {
		p, err := d.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
