// Package live fans accepted chat turns out to connected viewers over
// websockets. Delivery is best effort: the hub never blocks the reply
// pipeline on a slow viewer connection.
package live

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// subscriberBuffer is the per-connection event queue. A viewer that falls
// further behind than this starts losing events.
const subscriberBuffer = 16

// writeTimeout bounds a single websocket write.
const writeTimeout = 5 * time.Second

// Event is one chat turn broadcast to a live's viewers.
type Event struct {
	Type       string    `json:"type"`
	LiveID     string    `json:"liveId"`
	UserID     string    `json:"userId,omitempty"`
	AgentID    string    `json:"agentId,omitempty"`
	AgentName  string    `json:"agentName,omitempty"`
	Message    string    `json:"message,omitempty"`
	Reply      string    `json:"reply,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Event types published by the reply pipeline.
const (
	EventReply     = "reply"
	EventEscalated = "escalated"
)

// Subscription is one viewer's event feed. Close it when the connection
// goes away.
type Subscription struct {
	hub    *Hub
	liveID string
	ch     chan Event
	once   sync.Once
}

// C returns the event channel. It is closed when the subscription is
// closed.
func (s *Subscription) C() <-chan Event { return s.ch }

// Close detaches the subscription from the hub.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s.liveID, s)
		close(s.ch)
	})
}

// Hub routes events to per-live subscriber sets. All methods are safe for
// concurrent use.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe attaches a new subscriber to a live's event feed.
func (h *Hub) Subscribe(liveID string) *Subscription {
	sub := &Subscription{
		hub:    h,
		liveID: liveID,
		ch:     make(chan Event, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[liveID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[liveID] = set
	}
	set[sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(liveID string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[liveID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, liveID)
	}
}

// Publish delivers event to every subscriber of the live. Subscribers with
// a full queue miss the event rather than stalling the publisher.
func (h *Hub) Publish(liveID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[liveID] {
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// Subscribers reports how many connections follow the live.
func (h *Hub) Subscribers(liveID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[liveID])
}

// Serve upgrades the request to a websocket and streams the live's events
// until the client disconnects or ctx ends. It blocks for the lifetime of
// the connection.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, liveID string) error {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	sub := h.Subscribe(liveID)
	defer sub.Close()

	// CloseRead discards inbound frames and cancels the context when the
	// client goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-sub.C():
			if !ok {
				return nil
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
