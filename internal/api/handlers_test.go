package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradepairs/pairs-backend/internal/auth"
	"github.com/tradepairs/pairs-backend/internal/maintenance"
	"github.com/tradepairs/pairs-backend/internal/pairs"
	"github.com/tradepairs/pairs-backend/internal/perpetuals"
	"github.com/tradepairs/pairs-backend/internal/positions"
	"github.com/tradepairs/pairs-backend/internal/trade"
	"github.com/tradepairs/pairs-backend/internal/ws"
	"github.com/tradepairs/pairs-backend/pkg/kv/memory"
)

// Mock metrics for testing
type MockMetrics struct {
	mu      sync.Mutex
	lookups map[string]int
}

func (m *MockMetrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
}

func (m *MockMetrics) RecordPairLookup(ctx context.Context, kind, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups[kind+":"+result]++
}

func (m *MockMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups[key]
}

const testOwner = "0x00000000000000000000000000000000000000ab"

type testEnv struct {
	server  *httptest.Server
	auth    *auth.Service
	metrics *MockMetrics
	down    atomic.Bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop().Sugar()

	store := memory.New()
	t.Cleanup(func() { store.Close() })

	hub := ws.NewHub(logger, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	maintenanceSvc := maintenance.NewService(store, hub, logger, nil)
	tradeSvc := trade.NewService(pairs.Default(), perpetuals.Default(), maintenanceSvc, trade.DefaultConfig(), logger)
	positionSvc := positions.NewService(positions.NewMemoryRepository(), tradeSvc, pairs.Default(), hub, logger)

	env := &testEnv{
		auth:    auth.NewService("pairs-test", []byte("test-secret")),
		metrics: &MockMetrics{lookups: make(map[string]int)},
	}
	ready := func(ctx context.Context) error {
		if env.down.Load() {
			return errors.New("redis down")
		}
		return nil
	}

	handler := NewHandler(pairs.Default(), perpetuals.Default(), maintenanceSvc, tradeSvc, positionSvc, hub, ready, logger, env.metrics)
	mw := NewMiddleware(logger, env.metrics, env.auth)
	env.server = httptest.NewServer(handler.Routes(mw, []string{"http://localhost:3000"}, 6000, nil))
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) adminToken(t *testing.T, role string) string {
	t.Helper()
	token, err := e.auth.Issue("ops@example.com", role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestListPairs(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/v1/pairs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decode[PairsResponse](t, resp)
	assert.Equal(t, 10, all.Count)
	assert.Equal(t, "RBTC_XUSD", all.Pairs[0].ID)
	assert.Equal(t, "SOV_DOC", all.Pairs[9].ID)

	resp = env.do(t, http.MethodGet, "/v1/pairs?active=true", nil)
	active := decode[PairsResponse](t, resp)
	assert.Equal(t, 8, active.Count)
	for _, p := range active.Pairs {
		assert.False(t, p.Deprecated, p.ID)
	}
}

func TestGetPair(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/v1/pairs/RBTC_XUSD", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pair := decode[PairDTO](t, resp)
	assert.Equal(t, "RBTC - XUSD", pair.Name)
	assert.Equal(t, "RBTC/XUSD", pair.ChartSymbol)
	assert.Equal(t, []string{"RBTC", "XUSD"}, pair.Collaterals)

	resp = env.do(t, http.MethodGet, "/v1/pairs/DOGE_XUSD", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "UNKNOWN_PAIR", decode[ErrorResponse](t, resp).Code)

	assert.Equal(t, 1, env.metrics.count("get:hit"))
	assert.Equal(t, 1, env.metrics.count("get:unknown"))
}

func TestDeprecatedPairStillResolves(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/v1/pairs/RBTC_USDT", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[PairDTO](t, resp).Deprecated)
}

func TestFindPairs(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/v1/pairs/find?ids=RBTC_SOV,RBTC_XUSD", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	found := decode[PairsResponse](t, resp)
	require.Equal(t, 2, found.Count)
	assert.Equal(t, "RBTC_SOV", found.Pairs[0].ID)
	assert.Equal(t, "RBTC_XUSD", found.Pairs[1].ID)

	resp = env.do(t, http.MethodGet, "/v1/pairs/find?ids=", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, decode[PairsResponse](t, resp).Count)

	resp = env.do(t, http.MethodGet, "/v1/pairs/find?ids=RBTC_XUSD,NOPE", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLookupPair(t *testing.T) {
	env := newTestEnv(t)

	for _, q := range []string{"a=XUSD&b=RBTC", "a=rbtc&b=xusd"} {
		resp := env.do(t, http.MethodGet, "/v1/pairs/lookup?"+q, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, q)
		assert.Equal(t, "RBTC_XUSD", decode[PairDTO](t, resp).ID)
	}

	resp := env.do(t, http.MethodGet, "/v1/pairs/lookup?a=SOV&b=RBTC", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "RBTC_SOV", decode[PairDTO](t, resp).ID)

	resp = env.do(t, http.MethodGet, "/v1/pairs/lookup?a=USDT&b=SOV", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/v1/pairs/lookup?a=DOGE&b=SOV", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/v1/pairs/lookup?a=SOV", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPerpetuals(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/v1/perpetuals", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decode[PerpetualsResponse](t, resp).Count)

	resp = env.do(t, http.MethodGet, "/v1/perpetuals/BTCUSD", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	perp := decode[PerpetualDTO](t, resp)
	assert.Equal(t, "0.002", perp.TradeSize.Step)
	assert.Equal(t, int32(3), perp.AmountPrecision)

	resp = env.do(t, http.MethodGet, "/v1/perpetuals/ETHUSD", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPreviewEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/v1/trade/margin/preview", map[string]any{
		"pair": "RBTC_DOC", "amount": "0.25", "leverage": "4", "balance": "1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	margin := decode[MarginPreviewDTO](t, resp)
	assert.Equal(t, "RBTC", margin.Collateral)
	assert.True(t, margin.CollateralSubstituted)
	assert.Equal(t, "1", margin.PositionSize)

	resp = env.do(t, http.MethodPost, "/v1/trade/perpetual/preview", map[string]any{
		"pair": "BTCUSD", "side": "LONG", "amount": "1.0011", "leverage": "10",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	perp := decode[PerpetualPreviewDTO](t, resp)
	assert.Equal(t, "1.002", perp.Amount)
	assert.Nil(t, perp.Notional)

	resp = env.do(t, http.MethodGet, "/v1/trade/margin/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cfg := decode[MarginConfigDTO](t, resp)
	assert.Len(t, cfg.Pairs, 4)
	assert.Equal(t, "5", cfg.MaxLeverage)
}

func TestPreviewErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"halted pair", "/v1/trade/margin/preview", map[string]any{"pair": "BPRO_USDT", "amount": "1", "leverage": "2"}, http.StatusConflict, "TRADING_HALTED"},
		{"spot pair", "/v1/trade/margin/preview", map[string]any{"pair": "SOV_XUSD", "amount": "1", "leverage": "2"}, http.StatusConflict, "NOT_MARGIN_TRADABLE"},
		{"unknown pair", "/v1/trade/margin/preview", map[string]any{"pair": "X_Y", "amount": "1", "leverage": "2"}, http.StatusNotFound, "UNKNOWN_PAIR"},
		{"over balance", "/v1/trade/margin/preview", map[string]any{"pair": "RBTC_XUSD", "amount": "2", "leverage": "2", "balance": "1"}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad json", "/v1/trade/perpetual/preview", "not-an-object", http.StatusBadRequest, "INVALID_JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, resp).Code)
		})
	}
}

func TestMaintenanceFlow(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/v1/maintenance/OPEN_MARGIN_TRADES", map[string]any{"locked": true})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/v1/maintenance/OPEN_MARGIN_TRADES", map[string]any{"locked": true},
		"Authorization", env.adminToken(t, "viewer"))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/v1/maintenance/open_margin_trades", map[string]any{"locked": true},
		"Authorization", env.adminToken(t, auth.RoleAdmin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sw := decode[MaintenanceSwitchDTO](t, resp)
	assert.Equal(t, "OPEN_MARGIN_TRADES", sw.State)
	assert.True(t, sw.Locked)
	assert.Equal(t, "ops@example.com", sw.UpdatedBy)

	resp = env.do(t, http.MethodPost, "/v1/trade/margin/preview", map[string]any{
		"pair": "RBTC_XUSD", "amount": "1", "leverage": "2",
	})
	require.Equal(t, http.StatusLocked, resp.StatusCode)
	assert.Equal(t, "MAINTENANCE", decode[ErrorResponse](t, resp).Code)

	resp = env.do(t, http.MethodGet, "/v1/maintenance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[MaintenanceResponse](t, resp)
	require.Len(t, status.Switches, len(maintenance.States()))
	assert.True(t, status.Switches[1].Effective)
	assert.False(t, status.Switches[0].Effective)

	resp = env.do(t, http.MethodPut, "/v1/maintenance/SPOT", map[string]any{"locked": true},
		"Authorization", env.adminToken(t, auth.RoleOwner))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/v1/maintenance/FULL", map[string]any{},
		"Authorization", env.adminToken(t, auth.RoleOwner))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUserPositions(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/v1/users/"+testOwner+"/positions", map[string]any{
		"pair": "BPRO_XUSD", "side": "SHORT", "collateral": "XUSD", "amount": "10", "leverage": "2", "entryPrice": "1.05",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[PositionDTO](t, resp)
	assert.Equal(t, "BPRO_XUSD", created.Pair.ID)
	assert.Equal(t, "SHORT", created.Side)

	resp = env.do(t, http.MethodGet, "/v1/users/"+testOwner+"/positions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[UserPositionsDTO](t, resp)
	assert.Equal(t, testOwner, list.Address)
	require.Len(t, list.Positions, 1)
	assert.Equal(t, created.ID, list.Positions[0].ID)

	resp = env.do(t, http.MethodGet, "/v1/users/"+strings.ToUpper(testOwner[2:])+"/positions", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/v1/users/0x"+strings.ToUpper(testOwner[2:])+"/positions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list = decode[UserPositionsDTO](t, resp)
	assert.Equal(t, testOwner, list.Address)
	assert.Len(t, list.Positions, 1)

	resp = env.do(t, http.MethodGet, "/v1/users/not-an-address/positions", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", decode[ErrorResponse](t, resp).Code)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	env.down.Store(true)
	resp = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/v1/pairs", nil, "X-Request-Id", "abc-123")
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-Id"))

	resp = env.do(t, http.MethodGet, "/v1/pairs", nil)
	assert.Len(t, resp.Header.Get("X-Request-Id"), 36)
}

func TestAdminDisabledWithoutVerifier(t *testing.T) {
	mw := NewMiddleware(zap.NewNop().Sugar(), &MockMetrics{lookups: map[string]int{}}, nil)
	rec := httptest.NewRecorder()
	mw.AdminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/maintenance/FULL", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimit(t *testing.T) {
	mw := NewMiddleware(zap.NewNop().Sugar(), &MockMetrics{lookups: map[string]int{}}, nil)
	h := mw.RateLimit(6)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
