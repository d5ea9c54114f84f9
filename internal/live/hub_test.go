package live_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/famousai/pitchlive/internal/live"
)

// ── Subscription routing ────────────────────────────────────────────

// TestPublishReachesSubscribers verifies that every subscriber of a live
// receives a published event.
func TestPublishReachesSubscribers(t *testing.T) {
	t.Parallel()

	hub := live.NewHub()
	first := hub.Subscribe("live-1")
	defer first.Close()
	second := hub.Subscribe("live-1")
	defer second.Close()

	hub.Publish("live-1", live.Event{Type: live.EventReply, LiveID: "live-1", Reply: "Bonjour !"})

	for _, sub := range []*live.Subscription{first, second} {
		select {
		case event := <-sub.C():
			if event.Reply != "Bonjour !" {
				t.Errorf("Reply = %q, want %q", event.Reply, "Bonjour !")
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

// TestPublishIsScopedToLive verifies that events for one live never reach
// another live's subscribers.
func TestPublishIsScopedToLive(t *testing.T) {
	t.Parallel()

	hub := live.NewHub()
	other := hub.Subscribe("live-2")
	defer other.Close()

	hub.Publish("live-1", live.Event{Type: live.EventReply, LiveID: "live-1"})

	select {
	case event := <-other.C():
		t.Fatalf("unexpected event for live-2: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestSlowSubscriberMissesEvents verifies that a subscriber with a full
// queue loses events instead of blocking the publisher.
func TestSlowSubscriberMissesEvents(t *testing.T) {
	t.Parallel()

	hub := live.NewHub()
	sub := hub.Subscribe("live-1")
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Publish("live-1", live.Event{Type: live.EventReply, LiveID: "live-1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	received := 0
	for {
		select {
		case <-sub.C():
			received++
			continue
		default:
		}
		break
	}
	if received == 0 || received > 16 {
		t.Errorf("received %d events, want between 1 and 16", received)
	}
}

// TestCloseDetachesSubscriber verifies that a closed subscription no
// longer counts toward the live and that Close is idempotent.
func TestCloseDetachesSubscriber(t *testing.T) {
	t.Parallel()

	hub := live.NewHub()
	sub := hub.Subscribe("live-1")
	if got := hub.Subscribers("live-1"); got != 1 {
		t.Fatalf("Subscribers = %d, want 1", got)
	}

	sub.Close()
	sub.Close()

	if got := hub.Subscribers("live-1"); got != 0 {
		t.Errorf("Subscribers after close = %d, want 0", got)
	}
	if _, ok := <-sub.C(); ok {
		t.Error("channel still open after Close")
	}
}

// ── Websocket transport ─────────────────────────────────────────────

// TestServeStreamsEvents verifies the full path from Publish to a
// connected websocket client.
func TestServeStreamsEvents(t *testing.T) {
	t.Parallel()

	hub := live.NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, "live-1")
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, srv.URL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	// Wait for the server side to register the subscription.
	deadline := time.Now().Add(time.Second)
	for hub.Subscribers("live-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	want := live.Event{
		Type:       live.EventReply,
		LiveID:     "live-1",
		AgentID:    "agent-m-01",
		AgentName:  "Alex",
		Reply:      "Bienvenue sur le live !",
		Confidence: 0.82,
		CreatedAt:  time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC),
	}
	hub.Publish("live-1", want)

	var got live.Event
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != want {
		t.Errorf("event = %+v, want %+v", got, want)
	}
}
