// Package pairs holds the margin/spot trading pair dictionary.
//
// The dictionary is an append-only table: pairs are never removed once shipped,
// because open positions and trade history reference them by Identifier. Pairs
// that should no longer be traded are marked Deprecated instead and keep
// resolving through Get, List and FindByAssets.
package pairs
