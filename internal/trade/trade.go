// Package trade validates and sizes margin and perpetual orders before they
// are submitted.
package trade

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradepairs/pairs-backend/internal/assets"
	"github.com/tradepairs/pairs-backend/internal/calc"
	"github.com/tradepairs/pairs-backend/internal/maintenance"
	"github.com/tradepairs/pairs-backend/internal/pairs"
	"github.com/tradepairs/pairs-backend/internal/perpetuals"
)

var (
	ErrInvalid           = errors.New("invalid trade request")
	ErrTradingHalted     = errors.New("trading halted for pair")
	ErrNotMarginTradable = errors.New("pair does not support margin trading")
	ErrMaintenance       = errors.New("trading paused for maintenance")
)

type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

func (s Side) Valid() bool {
	return s == Long || s == Short
}

// MaintenanceChecker reports whether a maintenance state is locked.
type MaintenanceChecker interface {
	Check(ctx context.Context, state maintenance.State) (bool, error)
}

type Config struct {
	MinMarginLeverage decimal.Decimal
	MaxMarginLeverage decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		MinMarginLeverage: decimal.NewFromInt(1),
		MaxMarginLeverage: decimal.NewFromInt(5),
	}
}

type Service struct {
	pairs       *pairs.Dictionary
	perpetuals  *perpetuals.Dictionary
	maintenance MaintenanceChecker
	cfg         Config
	logger      *zap.SugaredLogger
}

func NewService(pd *pairs.Dictionary, pp *perpetuals.Dictionary, mc MaintenanceChecker, cfg Config, logger *zap.SugaredLogger) *Service {
	return &Service{
		pairs:       pd,
		perpetuals:  pp,
		maintenance: mc,
		cfg:         cfg,
		logger:      logger,
	}
}

// Config returns the margin limits the service enforces.
func (s *Service) Config() Config {
	return s.cfg
}

// ActivePairs lists the pairs a margin form may offer, in registration order.
func (s *Service) ActivePairs() []pairs.Pair {
	active := s.pairs.Active()
	out := active[:0]
	for _, p := range active {
		if p.MarginTradable {
			out = append(out, p)
		}
	}
	return out
}

type MarginRequest struct {
	Pair       pairs.Identifier `json:"pair"`
	Side       Side             `json:"side"`
	Collateral assets.Asset     `json:"collateral,omitempty"`
	Amount     decimal.Decimal  `json:"amount"`
	Leverage   decimal.Decimal  `json:"leverage"`
	// Balance is the caller's collateral balance. The balance rule is skipped
	// when it is null.
	Balance decimal.NullDecimal `json:"balance"`
}

type MarginPreview struct {
	Pair         pairs.Pair      `json:"pair"`
	Side         Side            `json:"side"`
	Collateral   assets.Asset    `json:"collateral"`
	Substituted  bool            `json:"collateralSubstituted"`
	Amount       decimal.Decimal `json:"amount"`
	AmountWei    string          `json:"amountWei"`
	Leverage     decimal.Decimal `json:"leverage"`
	PositionSize decimal.Decimal `json:"positionSize"`
}

// PreviewMargin checks a margin order against the pair, maintenance switches
// and limits, and returns its sizing.
func (s *Service) PreviewMargin(ctx context.Context, req MarginRequest) (MarginPreview, error) {
	pair, err := s.pairs.Get(req.Pair)
	if err != nil {
		return MarginPreview{}, err
	}
	if pair.Deprecated {
		return MarginPreview{}, fmt.Errorf("%w: %s", ErrTradingHalted, pair.ID)
	}
	if !pair.MarginTradable {
		return MarginPreview{}, fmt.Errorf("%w: %s", ErrNotMarginTradable, pair.ID)
	}
	if err := s.checkMaintenance(ctx, maintenance.OpenMarginTrades); err != nil {
		return MarginPreview{}, err
	}

	side := req.Side
	if side == "" {
		side = Long
	}
	if !side.Valid() {
		return MarginPreview{}, fmt.Errorf("%w: side must be %s or %s", ErrInvalid, Long, Short)
	}

	collateral, ok := calc.ResolveCollateral(pair.Collaterals, req.Collateral)
	if !ok {
		return MarginPreview{}, fmt.Errorf("%w: pair %s lists no collateral", ErrInvalid, pair.ID)
	}

	if err := calc.ValidateAmount(req.Amount, "margin"); err != nil {
		return MarginPreview{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if req.Balance.Valid {
		if err := calc.ValidateBalance(req.Amount, req.Balance.Decimal); err != nil {
			return MarginPreview{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	if err := calc.ValidateLeverage(req.Leverage, s.cfg.MinMarginLeverage, s.cfg.MaxMarginLeverage); err != nil {
		return MarginPreview{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	decimals := int32(assets.WeiDecimals)
	if info, ok := assets.Lookup(collateral); ok {
		decimals = info.Decimals
	}

	return MarginPreview{
		Pair:         pair,
		Side:         side,
		Collateral:   collateral,
		Substituted:  collateral != req.Collateral,
		Amount:       req.Amount,
		AmountWei:    calc.ToWei(req.Amount, decimals).String(),
		Leverage:     req.Leverage,
		PositionSize: calc.PositionSize(req.Amount, req.Leverage),
	}, nil
}

type PerpetualRequest struct {
	Pair     perpetuals.Identifier `json:"pair"`
	Side     Side                  `json:"side"`
	Amount   decimal.Decimal       `json:"amount"`
	Leverage decimal.Decimal       `json:"leverage"`
	// Price is an optional mark price used to report notional and margin.
	Price decimal.NullDecimal `json:"price"`
}

type PerpetualPreview struct {
	Pair      perpetuals.Pair     `json:"pair"`
	Side      Side                `json:"side"`
	Amount    string              `json:"amount"`
	AmountWei string              `json:"amountWei"`
	Leverage  decimal.Decimal     `json:"leverage"`
	Notional  decimal.NullDecimal `json:"notional"`
	Margin    decimal.NullDecimal `json:"margin"`
}

// PreviewPerpetual rounds the order amount to the pair's step and checks it
// against the pair's trade size and leverage limits.
func (s *Service) PreviewPerpetual(ctx context.Context, req PerpetualRequest) (PerpetualPreview, error) {
	pair, err := s.perpetuals.Get(req.Pair)
	if err != nil {
		return PerpetualPreview{}, err
	}
	if pair.Deprecated {
		return PerpetualPreview{}, fmt.Errorf("%w: %s", ErrTradingHalted, pair.ID)
	}
	if err := s.checkMaintenance(ctx, maintenance.PerpetualTrades); err != nil {
		return PerpetualPreview{}, err
	}
	if !req.Side.Valid() {
		return PerpetualPreview{}, fmt.Errorf("%w: side must be %s or %s", ErrInvalid, Long, Short)
	}

	cfg := pair.Config
	amount := calc.RoundToStep(req.Amount, cfg.TradeSize.Step)
	if err := calc.ValidateTradeSize(amount, cfg.TradeSize.Min, cfg.TradeSize.Max); err != nil {
		return PerpetualPreview{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := calc.ValidateLeverage(req.Leverage, cfg.Leverage.Min, cfg.Leverage.Max); err != nil {
		return PerpetualPreview{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	preview := PerpetualPreview{
		Pair:      pair,
		Side:      req.Side,
		Amount:    calc.FormatAmount(amount, cfg.AmountPrecision),
		AmountWei: calc.ToWei(amount, assets.WeiDecimals).String(),
		Leverage:  req.Leverage,
	}
	if req.Price.Valid {
		if !req.Price.Decimal.IsPositive() {
			return PerpetualPreview{}, fmt.Errorf("%w: price must be positive", ErrInvalid)
		}
		notional := calc.Notional(amount, req.Price.Decimal)
		preview.Notional = decimal.NewNullDecimal(notional)
		preview.Margin = decimal.NewNullDecimal(notional.Div(req.Leverage))
	}
	return preview, nil
}

func (s *Service) checkMaintenance(ctx context.Context, state maintenance.State) error {
	if s.maintenance == nil {
		return nil
	}
	locked, err := s.maintenance.Check(ctx, state)
	if err != nil {
		return fmt.Errorf("check maintenance: %w", err)
	}
	if locked {
		s.logger.Infow("Trade rejected by maintenance switch", "state", state)
		return fmt.Errorf("%w: %s", ErrMaintenance, state)
	}
	return nil
}
