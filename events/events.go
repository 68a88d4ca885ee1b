package events

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/r3labs/sse/v2"
)

// Hub gives every session its own event stream. A session counts as
// unmounted once its last subscriber goes away.
type Hub struct {
	Server *sse.Server

	m           sync.Mutex
	subscribers map[string]int
	onUnmount   func(sessionID string)
}

func New() *Hub {
	h := &Hub{
		subscribers: map[string]int{},
	}
	server := sse.New()
	server.AutoReplay = false
	server.OnSubscribe = h.subscribed
	server.OnUnsubscribe = h.unsubscribed
	h.Server = server
	return h
}

func (h *Hub) OnUnmount(fn func(sessionID string)) {
	h.m.Lock()
	defer h.m.Unlock()
	h.onUnmount = fn
}

// Open makes sure the session has a stream to publish to.
func (h *Hub) Open(sessionID string) {
	if !h.Server.StreamExists(sessionID) {
		h.Server.CreateStream(sessionID)
	}
}

func (h *Hub) Close(sessionID string) {
	if h.Server.StreamExists(sessionID) {
		h.Server.RemoveStream(sessionID)
	}
}

// Publish JSON encodes payload so it always fits on a single data line.
func (h *Hub) Publish(sessionID, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if !h.Server.StreamExists(sessionID) {
		slog.Debug("Dropping event for session without a stream",
			slog.String("session", sessionID),
			slog.String("event", event),
		)
		return nil
	}
	h.Server.Publish(sessionID, &sse.Event{
		Event: []byte(event),
		Data:  data,
	})
	return nil
}

func (h *Hub) Subscribers(sessionID string) int {
	h.m.Lock()
	defer h.m.Unlock()
	return h.subscribers[sessionID]
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Server.ServeHTTP(w, r)
}

func (h *Hub) subscribed(streamID string, _ *sse.Subscriber) {
	h.m.Lock()
	defer h.m.Unlock()
	h.subscribers[streamID]++
	slog.Debug("Session subscribed", slog.String("session", streamID))
}

func (h *Hub) unsubscribed(streamID string, _ *sse.Subscriber) {
	h.m.Lock()
	h.subscribers[streamID]--
	remaining := h.subscribers[streamID]
	if remaining <= 0 {
		delete(h.subscribers, streamID)
	}
	onUnmount := h.onUnmount
	h.m.Unlock()

	slog.Debug("Session unsubscribed",
		slog.String("session", streamID),
		slog.Int("remaining", remaining),
	)
	if remaining <= 0 && onUnmount != nil {
		onUnmount(streamID)
	}
}
