package ws

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(zap.NewNop().Sugar(), nil, []string{"https://app.example.com"})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubDeliversToSubscribers(t *testing.T) {
	hub, _ := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(WSSubscriptionRequest{Type: "subscribe", Topics: []string{TopicMaintenance}}))
	assert.Equal(t, "subscribed", readMessage(t, conn).Type)

	require.NoError(t, hub.Publish(context.Background(), "other", map[string]string{"x": "y"}))
	require.NoError(t, hub.Publish(context.Background(), TopicMaintenance, map[string]bool{"FULL": true}))

	msg := readMessage(t, conn)
	assert.Equal(t, "update", msg.Type)
	assert.Equal(t, TopicMaintenance, msg.Topic)
	assert.JSONEq(t, `{"FULL":true}`, string(msg.Data))
}

func TestHubAddressSubscription(t *testing.T) {
	hub, _ := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(WSSubscriptionRequest{Type: "subscribe", Address: "0xABC"}))
	readMessage(t, conn)

	require.NoError(t, hub.Publish(context.Background(), PositionsTopic("0xabc"), map[string]string{"pair": "RBTC_XUSD"}))
	msg := readMessage(t, conn)
	assert.Equal(t, "positions:0xabc", msg.Topic)
}

func TestHubWildcardTopic(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar(), nil, nil)
	c := hub.newClient(nil, []string{"maint*"}, "")

	assert.True(t, c.isSubscribed(TopicMaintenance))
	assert.False(t, c.isSubscribed("positions:0x1"))
}

func TestHubKeepsOwnerTopicsPrivate(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar(), nil, nil)
	c := hub.newClient(nil, nil, "")

	rejected := c.subscribe([]string{"*", "positions:*", "pos*", "positions:0xother", TopicMaintenance}, "")
	assert.ElementsMatch(t, []string{"*", "positions:*", "pos*", "positions:0xother"}, rejected)
	assert.False(t, c.isSubscribed("positions:0xother"))
	assert.True(t, c.isSubscribed(TopicMaintenance))

	c.subscribe(nil, "0xAAA")
	c.subscribe(nil, "0xbbb")
	assert.Equal(t, "0xbbb", c.Address())
	assert.True(t, c.isSubscribed(PositionsTopic("0xbbb")))
	assert.False(t, c.isSubscribed(PositionsTopic("0xaaa")))
}

func TestSubscribable(t *testing.T) {
	tests := []struct {
		topic string
		want  bool
	}{
		{TopicMaintenance, true},
		{"maint*", true},
		{"", false},
		{"*", false},
		{"p*", false},
		{"positions:*", false},
		{PositionsTopic("0xabc"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Subscribable(tt.topic), tt.topic)
	}
}

func TestHandleSSERejectsOwnerWildcard(t *testing.T) {
	hub, _ := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleSSE))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?topics=positions:*")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddressReadsDuringSubscribe(t *testing.T) {
	hub, _ := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// Subscribing while the hub logs and sweeps clients must not race on the address.
	for i := 0; i < 5; i++ {
		require.NoError(t, conn.WriteJSON(WSSubscriptionRequest{Type: "subscribe", Address: "0xABC"}))
		readMessage(t, conn)
		hub.cleanupInactiveClients(context.Background(), time.Now().Add(-time.Hour))
	}
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	hub, _ := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, originAllowed("", nil))
	assert.True(t, originAllowed("http://x", []string{"*"}))
	assert.True(t, originAllowed("https://APP.example.com", []string{"https://app.example.com"}))
	assert.False(t, originAllowed("http://x", []string{"https://app.example.com"}))
}

func TestPublishAfterStop(t *testing.T) {
	hub, cancel := startHub(t)
	cancel()

	require.Eventually(t, func() bool { return isDone(hub) }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, hub.Publish(context.Background(), TopicMaintenance, nil), ErrHubStopped)
}

func isDone(h *Hub) bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar(), nil, nil)
	c := hub.newClient(nil, []string{TopicMaintenance}, "")
	hub.clients[c] = true

	for i := 0; i < cap(c.send); i++ {
		require.True(t, c.trySend([]byte("x")))
	}
	hub.broadcastToClients(context.Background(), outbound{topic: TopicMaintenance, payload: []byte("y")})

	assert.Zero(t, hub.ClientCount())
	assert.True(t, c.closed)
}

func TestCleanupSkipsStreams(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar(), nil, nil)
	stream := hub.newClient(nil, nil, "")
	hub.clients[stream] = true

	hub.cleanupInactiveClients(context.Background(), time.Now().Add(time.Hour))
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHandleSSE(t *testing.T) {
	hub, _ := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleSSE))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?topics=maintenance", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "":
				return event, data
			}
		}
	}

	event, _ := readEvent()
	assert.Equal(t, "connected", event)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), TopicMaintenance, map[string]bool{"PERPETUAL_TRADES": true}))

	event, data := readEvent()
	assert.Equal(t, "maintenance_update", event)

	var payload map[string]bool
	require.NoError(t, json.Unmarshal([]byte(data), &payload))
	assert.True(t, payload["PERPETUAL_TRADES"])
}
