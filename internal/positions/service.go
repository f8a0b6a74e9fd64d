package positions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradepairs/pairs-backend/internal/pairs"
	"github.com/tradepairs/pairs-backend/internal/trade"
	"github.com/tradepairs/pairs-backend/internal/ws"
)

// Previewer validates and sizes a margin order.
type Previewer interface {
	PreviewMargin(ctx context.Context, req trade.MarginRequest) (trade.MarginPreview, error)
}

// PairResolver resolves stored pair identifiers.
type PairResolver interface {
	Get(id pairs.Identifier) (pairs.Pair, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, data any) error
}

type OpenRequest struct {
	trade.MarginRequest
	EntryPrice decimal.Decimal `json:"entryPrice"`
}

// Row is a stored position joined with its pair descriptor.
type Row struct {
	Position Position   `json:"position"`
	Pair     pairs.Pair `json:"pair"`
}

type Service struct {
	repo      Repository
	trades    Previewer
	pairs     PairResolver
	publisher Publisher
	logger    *zap.SugaredLogger
	now       func() time.Time
	newID     func() uuid.UUID
}

// NewService creates a positions service. publisher may be nil.
func NewService(repo Repository, trades Previewer, resolver PairResolver, publisher Publisher, logger *zap.SugaredLogger) *Service {
	return &Service{
		repo:      repo,
		trades:    trades,
		pairs:     resolver,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.New,
	}
}

// NormalizeOwner lowercases a 0x-prefixed 20 byte hex address.
func NormalizeOwner(owner string) (string, error) {
	owner = strings.ToLower(strings.TrimSpace(owner))
	if len(owner) != 42 || !strings.HasPrefix(owner, "0x") {
		return "", fmt.Errorf("%w: owner must be a 0x-prefixed 20 byte address", trade.ErrInvalid)
	}
	for _, c := range owner[2:] {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return "", fmt.Errorf("%w: owner must be hex encoded", trade.ErrInvalid)
		}
	}
	return owner, nil
}

// Open validates the order as a margin trade and records the position.
func (s *Service) Open(ctx context.Context, owner string, req OpenRequest) (Position, error) {
	owner, err := NormalizeOwner(owner)
	if err != nil {
		return Position{}, err
	}
	if !req.EntryPrice.IsPositive() {
		return Position{}, fmt.Errorf("%w: entry price must be positive", trade.ErrInvalid)
	}

	preview, err := s.trades.PreviewMargin(ctx, req.MarginRequest)
	if err != nil {
		return Position{}, err
	}

	p := Position{
		ID:         s.newID(),
		Owner:      owner,
		Pair:       preview.Pair.ID,
		Side:       preview.Side,
		Collateral: preview.Collateral,
		Amount:     preview.Amount,
		Leverage:   preview.Leverage,
		EntryPrice: req.EntryPrice,
		OpenedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Position{}, err
	}

	s.logger.Infow("Position opened", "id", p.ID, "owner", owner, "pair", p.Pair, "side", p.Side)

	if s.publisher != nil {
		row := Row{Position: p, Pair: preview.Pair}
		if err := s.publisher.Publish(ctx, ws.PositionsTopic(owner), row); err != nil {
			s.logger.Warnw("Failed to publish position", "id", p.ID, "error", err)
		}
	}
	return p, nil
}

// ListOpen returns the owner's positions with their pair descriptors. Rows
// whose pair no longer resolves are skipped; deprecated pairs still resolve.
func (s *Service) ListOpen(ctx context.Context, owner string) ([]Row, error) {
	owner, err := NormalizeOwner(owner)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(stored))
	for _, p := range stored {
		pair, err := s.pairs.Get(p.Pair)
		if errors.Is(err, pairs.ErrUnknownPair) {
			s.logger.Warnw("Skipping position with unknown pair", "id", p.ID, "pair", p.Pair)
			continue
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Position: p, Pair: pair})
	}
	return rows, nil
}
