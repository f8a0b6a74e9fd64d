package api

import (
	"github.com/shopspring/decimal"

	"github.com/tradepairs/pairs-backend/internal/assets"
	"github.com/tradepairs/pairs-backend/internal/maintenance"
	"github.com/tradepairs/pairs-backend/internal/pairs"
	"github.com/tradepairs/pairs-backend/internal/perpetuals"
	"github.com/tradepairs/pairs-backend/internal/positions"
	"github.com/tradepairs/pairs-backend/internal/trade"
)

type PairDTO struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	ChartSymbol    string   `json:"chartSymbol"`
	LongAsset      string   `json:"longAsset"`
	ShortAsset     string   `json:"shortAsset"`
	Collaterals    []string `json:"collaterals"`
	Deprecated     bool     `json:"deprecated"`
	SpotOnly       bool     `json:"spotOnly"`
	MarginTradable bool     `json:"marginTradable"`
}

type PairsResponse struct {
	Pairs []PairDTO `json:"pairs"`
	Count int       `json:"count"`
}

type LeverageDTO struct {
	Min   string   `json:"min"`
	Max   string   `json:"max"`
	Steps []string `json:"steps"`
}

type TradeSizeDTO struct {
	Min  string `json:"min"`
	Max  string `json:"max"`
	Step string `json:"step"`
}

type PerpetualDTO struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	LongAsset       string       `json:"longAsset"`
	ShortAsset      string       `json:"shortAsset"`
	Deprecated      bool         `json:"deprecated"`
	Leverage        LeverageDTO  `json:"leverage"`
	TradeSize       TradeSizeDTO `json:"tradeSize"`
	AmountPrecision int32        `json:"amountPrecision"`
}

type PerpetualsResponse struct {
	Pairs []PerpetualDTO `json:"pairs"`
	Count int            `json:"count"`
}

type MarginConfigDTO struct {
	Pairs       []PairDTO `json:"pairs"`
	MinLeverage string    `json:"minLeverage"`
	MaxLeverage string    `json:"maxLeverage"`
}

type MarginPreviewDTO struct {
	Pair                  PairDTO `json:"pair"`
	Side                  string  `json:"side"`
	Collateral            string  `json:"collateral"`
	CollateralSubstituted bool    `json:"collateralSubstituted"`
	Amount                string  `json:"amount"`
	AmountWei             string  `json:"amountWei"`
	Leverage              string  `json:"leverage"`
	PositionSize          string  `json:"positionSize"`
}

type PerpetualPreviewDTO struct {
	Pair      PerpetualDTO `json:"pair"`
	Side      string       `json:"side"`
	Amount    string       `json:"amount"`
	AmountWei string       `json:"amountWei"`
	Leverage  string       `json:"leverage"`
	Notional  *string      `json:"notional,omitempty"`
	Margin    *string      `json:"margin,omitempty"`
}

type MaintenanceSwitchDTO struct {
	State     string `json:"state"`
	Locked    bool   `json:"locked"`
	Effective bool   `json:"effective"`
	UpdatedBy string `json:"updatedBy,omitempty"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

type MaintenanceResponse struct {
	Switches []MaintenanceSwitchDTO `json:"switches"`
}

type SetMaintenanceRequest struct {
	Locked *bool `json:"locked"`
}

type PositionDTO struct {
	ID         string  `json:"id"`
	Owner      string  `json:"owner"`
	Pair       PairDTO `json:"pair"`
	Side       string  `json:"side"`
	Collateral string  `json:"collateral"`
	Amount     string  `json:"amount"`
	Leverage   string  `json:"leverage"`
	EntryPrice string  `json:"entryPrice"`
	OpenedAt   int64   `json:"openedAt"`
}

type UserPositionsDTO struct {
	Address   string        `json:"address"`
	Positions []PositionDTO `json:"positions"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func assetStrings(in []assets.Asset) []string {
	out := make([]string, len(in))
	for i, a := range in {
		out[i] = string(a)
	}
	return out
}

func decimalStrings(in []decimal.Decimal) []string {
	out := make([]string, len(in))
	for i, d := range in {
		out[i] = d.String()
	}
	return out
}

func toPairDTO(p pairs.Pair) PairDTO {
	return PairDTO{
		ID:             string(p.ID),
		Name:           p.Name,
		ChartSymbol:    p.ChartSymbol,
		LongAsset:      string(p.LongAsset),
		ShortAsset:     string(p.ShortAsset),
		Collaterals:    assetStrings(p.Collaterals),
		Deprecated:     p.Deprecated,
		SpotOnly:       p.SpotOnly,
		MarginTradable: p.MarginTradable,
	}
}

func toPairDTOs(in []pairs.Pair) []PairDTO {
	out := make([]PairDTO, len(in))
	for i, p := range in {
		out[i] = toPairDTO(p)
	}
	return out
}

func toPerpetualDTO(p perpetuals.Pair) PerpetualDTO {
	cfg := p.Config
	return PerpetualDTO{
		ID:         string(p.ID),
		Name:       p.Name,
		LongAsset:  string(p.LongAsset),
		ShortAsset: string(p.ShortAsset),
		Deprecated: p.Deprecated,
		Leverage: LeverageDTO{
			Min:   cfg.Leverage.Min.String(),
			Max:   cfg.Leverage.Max.String(),
			Steps: decimalStrings(cfg.Leverage.Steps),
		},
		TradeSize: TradeSizeDTO{
			Min:  cfg.TradeSize.Min.String(),
			Max:  cfg.TradeSize.Max.String(),
			Step: cfg.TradeSize.Step.String(),
		},
		AmountPrecision: cfg.AmountPrecision,
	}
}

func toPerpetualDTOs(in []perpetuals.Pair) []PerpetualDTO {
	out := make([]PerpetualDTO, len(in))
	for i, p := range in {
		out[i] = toPerpetualDTO(p)
	}
	return out
}

func toMarginPreviewDTO(p trade.MarginPreview) MarginPreviewDTO {
	return MarginPreviewDTO{
		Pair:                  toPairDTO(p.Pair),
		Side:                  string(p.Side),
		Collateral:            string(p.Collateral),
		CollateralSubstituted: p.Substituted,
		Amount:                p.Amount.String(),
		AmountWei:             p.AmountWei,
		Leverage:              p.Leverage.String(),
		PositionSize:          p.PositionSize.String(),
	}
}

func nullString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func toPerpetualPreviewDTO(p trade.PerpetualPreview) PerpetualPreviewDTO {
	return PerpetualPreviewDTO{
		Pair:      toPerpetualDTO(p.Pair),
		Side:      string(p.Side),
		Amount:    p.Amount,
		AmountWei: p.AmountWei,
		Leverage:  p.Leverage.String(),
		Notional:  nullString(p.Notional),
		Margin:    nullString(p.Margin),
	}
}

func toMaintenanceDTOs(switches []maintenance.Switch, effective map[maintenance.State]bool) []MaintenanceSwitchDTO {
	out := make([]MaintenanceSwitchDTO, len(switches))
	for i, sw := range switches {
		dto := MaintenanceSwitchDTO{
			State:     string(sw.State),
			Locked:    sw.Locked,
			Effective: effective[sw.State],
			UpdatedBy: sw.UpdatedBy,
		}
		if !sw.UpdatedAt.IsZero() {
			dto.UpdatedAt = sw.UpdatedAt.Unix()
		}
		out[i] = dto
	}
	return out
}

func toPositionDTO(row positions.Row) PositionDTO {
	p := row.Position
	return PositionDTO{
		ID:         p.ID.String(),
		Owner:      p.Owner,
		Pair:       toPairDTO(row.Pair),
		Side:       string(p.Side),
		Collateral: string(p.Collateral),
		Amount:     p.Amount.String(),
		Leverage:   p.Leverage.String(),
		EntryPrice: p.EntryPrice.String(),
		OpenedAt:   p.OpenedAt.Unix(),
	}
}
