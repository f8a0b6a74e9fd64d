package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HandleSSE streams hub updates as server-sent events. Topics come from the
// comma-separated "topics" query parameter; "address" adds the owner's
// positions topic. Without either, the stream follows maintenance changes.
func (h *Hub) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	topics := parseTopics(r.URL.Query().Get("topics"))
	address := r.URL.Query().Get("address")
	if len(topics) == 0 && address == "" {
		topics = []string{TopicMaintenance}
	}
	for _, t := range topics {
		if !Subscribable(t) {
			http.Error(w, fmt.Sprintf("topic %q cannot be subscribed; use address", t), http.StatusBadRequest)
			return
		}
	}

	client := h.newClient(nil, topics, address)
	if !h.attach(client) {
		http.Error(w, "hub stopped", http.StatusServiceUnavailable)
		return
	}
	defer h.detach(client)

	h.logger.Debugw("SSE connection established", "topics", topics, "address", address)
	sendEvent(w, flusher, "connected", "0", nil)

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debugw("SSE client disconnected")
			return

		case <-heartbeat.C:
			sendEvent(w, flusher, "heartbeat", "ping", map[string]int64{
				"timestamp": time.Now().Unix(),
			})

		case payload, ok := <-client.send:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal(payload, &msg); err != nil {
				h.logger.Warnw("Failed to parse hub message", "error", err)
				continue
			}
			sendEvent(w, flusher, eventType(msg.Topic), msg.Topic, msg.Data)
		}
	}
}

func parseTopics(param string) []string {
	if param == "" {
		return nil
	}
	var topics []string
	for _, t := range strings.Split(param, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

func eventType(topic string) string {
	switch {
	case topic == TopicMaintenance:
		return "maintenance_update"
	case strings.HasPrefix(topic, TopicPositionsPrefix):
		return "position_update"
	default:
		return "update"
	}
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, event, id string, data any) {
	body := []byte("{}")
	switch v := data.(type) {
	case nil:
	case json.RawMessage:
		if len(v) > 0 {
			body = v
		}
	default:
		if b, err := json.Marshal(v); err == nil {
			body = b
		}
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "id: %s\n", id)
	fmt.Fprintf(w, "data: %s\n\n", body)
	flusher.Flush()
}
