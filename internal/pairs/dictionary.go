package pairs

import (
	"fmt"
	"slices"

	"github.com/tradepairs/pairs-backend/internal/assets"
)

type assetKey struct {
	a, b assets.Asset
}

func keyOf(a, b assets.Asset) assetKey {
	if b < a {
		a, b = b, a
	}
	return assetKey{a: a, b: b}
}

// Dictionary is an immutable, ordered registry of trading pairs. It is safe for
// concurrent use.
type Dictionary struct {
	order    []Identifier
	byID     map[Identifier]Pair
	byAssets map[assetKey]Identifier
}

// New builds a dictionary preserving the registration order of pairs.
func New(pairs ...Pair) (*Dictionary, error) {
	d := &Dictionary{
		order:    make([]Identifier, 0, len(pairs)),
		byID:     make(map[Identifier]Pair, len(pairs)),
		byAssets: make(map[assetKey]Identifier, len(pairs)),
	}

	for _, p := range pairs {
		if err := validatePair(p); err != nil {
			return nil, err
		}
		if _, dup := d.byID[p.ID]; dup {
			return nil, fmt.Errorf("pair %s: duplicate identifier", p.ID)
		}
		key := keyOf(p.LongAsset, p.ShortAsset)
		if other, dup := d.byAssets[key]; dup {
			return nil, fmt.Errorf("pair %s: assets %s/%s already registered by %s",
				p.ID, p.LongAsset, p.ShortAsset, other)
		}

		d.order = append(d.order, p.ID)
		d.byID[p.ID] = p.clone()
		d.byAssets[key] = p.ID
	}

	return d, nil
}

// MustNew is like New but panics on an invalid table.
func MustNew(pairs ...Pair) *Dictionary {
	d, err := New(pairs...)
	if err != nil {
		panic(err)
	}
	return d
}

func validatePair(p Pair) error {
	if p.ID == "" {
		return fmt.Errorf("pair with empty identifier")
	}
	if p.LongAsset == "" || p.ShortAsset == "" {
		return fmt.Errorf("pair %s: long and short assets are required", p.ID)
	}
	if p.LongAsset == p.ShortAsset {
		return fmt.Errorf("pair %s: long and short asset are both %s", p.ID, p.LongAsset)
	}
	if len(p.Collaterals) == 0 {
		return fmt.Errorf("pair %s: at least one collateral is required", p.ID)
	}
	if !p.HasCollateral(p.LongAsset) || !p.HasCollateral(p.ShortAsset) {
		return fmt.Errorf("pair %s: collaterals %v must include %s and %s",
			p.ID, p.Collaterals, p.LongAsset, p.ShortAsset)
	}
	return nil
}

// Get returns the pair registered under id.
func (d *Dictionary) Get(id Identifier) (Pair, error) {
	p, ok := d.byID[id]
	if !ok {
		return Pair{}, &UnknownPairError{ID: id}
	}
	return p.clone(), nil
}

// Contains reports whether id is registered.
func (d *Dictionary) Contains(id Identifier) bool {
	_, ok := d.byID[id]
	return ok
}

// Len returns the number of registered pairs, deprecated ones included.
func (d *Dictionary) Len() int {
	return len(d.order)
}

// Identifiers returns every registered identifier in registration order.
func (d *Dictionary) Identifiers() []Identifier {
	return slices.Clone(d.order)
}

// List returns every pair in registration order.
func (d *Dictionary) List() []Pair {
	out := make([]Pair, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id].clone())
	}
	return out
}

// Entries returns (identifier, pair) tuples in registration order.
func (d *Dictionary) Entries() []Entry {
	out := make([]Entry, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, Entry{ID: id, Pair: d.byID[id].clone()})
	}
	return out
}

// Active returns the pairs that still accept new trades.
func (d *Dictionary) Active() []Pair {
	out := make([]Pair, 0, len(d.order))
	for _, id := range d.order {
		if p := d.byID[id]; !p.Deprecated {
			out = append(out, p.clone())
		}
	}
	return out
}

// Find resolves every identifier through Get, preserving order and length.
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

// FindByAssets returns the pair trading a against b in either orientation.
func (d *Dictionary) FindByAssets(a, b assets.Asset) (Pair, error) {
	id, ok := d.byAssets[keyOf(a, b)]
	if !ok {
		return Pair{}, &UnknownPairError{AssetA: a, AssetB: b}
	}
	return d.byID[id].clone(), nil
}
