package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tradepairs/pairs-backend/internal/assets"
	"github.com/tradepairs/pairs-backend/internal/maintenance"
	"github.com/tradepairs/pairs-backend/internal/metrics"
	"github.com/tradepairs/pairs-backend/internal/pairs"
	"github.com/tradepairs/pairs-backend/internal/perpetuals"
	"github.com/tradepairs/pairs-backend/internal/positions"
	"github.com/tradepairs/pairs-backend/internal/trade"
	"github.com/tradepairs/pairs-backend/pkg/kv"
)

// MetricsInterface defines the interface for metrics recording
type MetricsInterface interface {
	RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration)
	RecordPairLookup(ctx context.Context, kind, result string)
}

type MaintenanceService interface {
	Status(ctx context.Context) ([]maintenance.Switch, error)
	CheckAll(ctx context.Context) (map[maintenance.State]bool, error)
	Set(ctx context.Context, state maintenance.State, locked bool, actor string) (maintenance.Switch, error)
}

type TradeService interface {
	ActivePairs() []pairs.Pair
	Config() trade.Config
	PreviewMargin(ctx context.Context, req trade.MarginRequest) (trade.MarginPreview, error)
	PreviewPerpetual(ctx context.Context, req trade.PerpetualRequest) (trade.PerpetualPreview, error)
}

type PositionService interface {
	Open(ctx context.Context, owner string, req positions.OpenRequest) (positions.Position, error)
	ListOpen(ctx context.Context, owner string) ([]positions.Row, error)
}

// Streamer serves live updates.
type Streamer interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
	HandleSSE(w http.ResponseWriter, r *http.Request)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Handler struct {
	pairs       *pairs.Dictionary
	perpetuals  *perpetuals.Dictionary
	maintenance MaintenanceService
	trades      TradeService
	positions   PositionService
	streamer    Streamer
	ready       ReadinessCheck
	logger      *zap.SugaredLogger
	metrics     MetricsInterface
}

func NewHandler(
	pairDict *pairs.Dictionary,
	perpDict *perpetuals.Dictionary,
	maintenanceSvc MaintenanceService,
	tradeSvc TradeService,
	positionSvc PositionService,
	streamer Streamer,
	ready ReadinessCheck,
	logger *zap.SugaredLogger,
	metrics MetricsInterface,
) *Handler {
	return &Handler{
		pairs:       pairDict,
		perpetuals:  perpDict,
		maintenance: maintenanceSvc,
		trades:      tradeSvc,
		positions:   positionSvc,
		streamer:    streamer,
		ready:       ready,
		logger:      logger,
		metrics:     metrics,
	}
}

// Pair endpoints
func (h *Handler) ListPairs(w http.ResponseWriter, r *http.Request) {
	list := h.pairs.List()
	if r.URL.Query().Get("active") == "true" {
		list = h.pairs.Active()
	}

	h.writeJSON(w, http.StatusOK, PairsResponse{Pairs: toPairDTOs(list), Count: len(list)})
}

func (h *Handler) GetPair(w http.ResponseWriter, r *http.Request) {
	id := pairs.Identifier(chi.URLParam(r, "id"))

	pair, err := h.pairs.Get(id)
	h.recordLookup(r.Context(), "get", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toPairDTO(pair))
}

func (h *Handler) FindPairs(w http.ResponseWriter, r *http.Request) {
	var ids []pairs.Identifier
	for _, raw := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			ids = append(ids, pairs.Identifier(raw))
		}
	}

	found, err := h.pairs.Find(ids)
	h.recordLookup(r.Context(), "find", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, PairsResponse{Pairs: toPairDTOs(found), Count: len(found)})
}

func (h *Handler) LookupPair(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("a") == "" || query.Get("b") == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_PARAMETER", "query parameters a and b are required")
		return
	}

	a, err := assets.Parse(query.Get("a"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ASSET", err.Error())
		return
	}
	b, err := assets.Parse(query.Get("b"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ASSET", err.Error())
		return
	}

	pair, err := h.pairs.FindByAssets(a, b)
	h.recordLookup(r.Context(), "assets", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toPairDTO(pair))
}

// Perpetual endpoints
func (h *Handler) ListPerpetuals(w http.ResponseWriter, r *http.Request) {
	list := h.perpetuals.List()
	if r.URL.Query().Get("active") == "true" {
		list = h.perpetuals.Active()
	}

	h.writeJSON(w, http.StatusOK, PerpetualsResponse{Pairs: toPerpetualDTOs(list), Count: len(list)})
}

func (h *Handler) GetPerpetual(w http.ResponseWriter, r *http.Request) {
	pair, err := h.perpetuals.Get(perpetuals.Identifier(chi.URLParam(r, "id")))
	h.recordLookup(r.Context(), "perpetual", err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toPerpetualDTO(pair))
}

// Trade form endpoints
func (h *Handler) GetMarginConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.trades.Config()
	h.writeJSON(w, http.StatusOK, MarginConfigDTO{
		Pairs:       toPairDTOs(h.trades.ActivePairs()),
		MinLeverage: cfg.MinMarginLeverage.String(),
		MaxLeverage: cfg.MaxMarginLeverage.String(),
	})
}

func (h *Handler) PreviewMargin(w http.ResponseWriter, r *http.Request) {
	var req trade.MarginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	preview, err := h.trades.PreviewMargin(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toMarginPreviewDTO(preview))
}

func (h *Handler) PreviewPerpetual(w http.ResponseWriter, r *http.Request) {
	var req trade.PerpetualRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	preview, err := h.trades.PreviewPerpetual(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toPerpetualPreviewDTO(preview))
}

// Maintenance endpoints
func (h *Handler) GetMaintenance(w http.ResponseWriter, r *http.Request) {
	switches, err := h.maintenance.Status(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	effective, err := h.maintenance.CheckAll(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, MaintenanceResponse{Switches: toMaintenanceDTOs(switches, effective)})
}

func (h *Handler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
	state, err := maintenance.ParseState(chi.URLParam(r, "state"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	var req SetMaintenanceRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Locked == nil {
		h.writeError(w, http.StatusBadRequest, "MISSING_PARAMETER", "locked is required")
		return
	}

	actor := "unknown"
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		actor = claims.Subject
	}

	sw, err := h.maintenance.Set(r.Context(), state, *req.Locked, actor)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	effective, err := h.maintenance.CheckAll(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toMaintenanceDTOs([]maintenance.Switch{sw}, effective)[0])
}

// User endpoints
func (h *Handler) GetUserPositions(w http.ResponseWriter, r *http.Request) {
	owner, err := positions.NormalizeOwner(chi.URLParam(r, "address"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	rows, err := h.positions.ListOpen(r.Context(), owner)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	dto := UserPositionsDTO{Address: owner, Positions: make([]PositionDTO, len(rows))}
	for i, row := range rows {
		dto.Positions[i] = toPositionDTO(row)
	}

	h.writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) OpenUserPosition(w http.ResponseWriter, r *http.Request) {
	var req positions.OpenRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	p, err := h.positions.Open(r.Context(), chi.URLParam(r, "address"), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	pair, err := h.pairs.Get(p.Pair)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toPositionDTO(positions.Row{Position: p, Pair: pair}))
}

// Health and ops endpoints
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.Warnw("Readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("NOT READY"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

// WebSocket endpoint
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.streamer.HandleWebSocket(w, r)
}

// SSE endpoint
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.streamer.HandleSSE(w, r)
}

func (h *Handler) recordLookup(ctx context.Context, kind string, err error) {
	result := metrics.LookupHit
	if err != nil {
		result = metrics.LookupUnknown
	}
	h.metrics.RecordPairLookup(ctx, kind, result)
}

// Utility methods
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "request body must be valid JSON: "+err.Error())
		return false
	}
	return true
}

// writeServiceError maps domain errors to HTTP responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pairs.ErrUnknownPair), errors.Is(err, perpetuals.ErrUnknownPair):
		h.writeError(w, http.StatusNotFound, "UNKNOWN_PAIR", err.Error())
	case errors.Is(err, maintenance.ErrUnknownState):
		h.writeError(w, http.StatusNotFound, "UNKNOWN_STATE", err.Error())
	case errors.Is(err, trade.ErrInvalid):
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, trade.ErrTradingHalted):
		h.writeError(w, http.StatusConflict, "TRADING_HALTED", err.Error())
	case errors.Is(err, trade.ErrNotMarginTradable):
		h.writeError(w, http.StatusConflict, "NOT_MARGIN_TRADABLE", err.Error())
	case errors.Is(err, trade.ErrMaintenance):
		h.writeError(w, http.StatusLocked, "MAINTENANCE", err.Error())
	case errors.Is(err, kv.ErrBackendUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "state store unavailable")
	default:
		h.logger.Errorw("Unhandled service error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("API error", "code", code, "message", message, "status", status)
	} else {
		h.logger.Debugw("API error", "code", code, "message", message, "status", status)
	}
	writeErrorResponse(w, status, code, message)
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}
