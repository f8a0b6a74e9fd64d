// Package positions records margin positions and lists them back joined with
// their pair descriptors.
package positions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradepairs/pairs-backend/internal/assets"
	"github.com/tradepairs/pairs-backend/internal/pairs"
	"github.com/tradepairs/pairs-backend/internal/trade"
)

var ErrNotFound = errors.New("position not found")

type Position struct {
	ID         uuid.UUID        `json:"id"`
	Owner      string           `json:"owner"`
	Pair       pairs.Identifier `json:"pair"`
	Side       trade.Side       `json:"side"`
	Collateral assets.Asset     `json:"collateral"`
	Amount     decimal.Decimal  `json:"amount"`
	Leverage   decimal.Decimal  `json:"leverage"`
	EntryPrice decimal.Decimal  `json:"entryPrice"`
	OpenedAt   time.Time        `json:"openedAt"`
}

// Repository persists positions. ListByOwner returns oldest first.
type Repository interface {
	Create(ctx context.Context, p Position) error
	Get(ctx context.Context, id uuid.UUID) (Position, error)
	ListByOwner(ctx context.Context, owner string) ([]Position, error)
}
