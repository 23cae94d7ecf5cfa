package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: EventOrderFlagged, Timestamp: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventOrderFlagged, EventOrderVerified},
	}}

	flagged := &Event{Type: EventOrderFlagged}
	verified := &Event{Type: EventOrderVerified}
	failed := &Event{Type: EventVerificationFailed}

	if !h.shouldSend(client, flagged) {
		t.Error("Should receive order_flagged events")
	}
	if !h.shouldSend(client, verified) {
		t.Error("Should receive order_verified events")
	}
	if h.shouldSend(client, failed) {
		t.Error("Should NOT receive verification_failed events")
	}
}

func TestShouldSend_CityFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		Cities: []string{"Oran"},
	}}

	matching := &Event{
		Type: EventOrderFlagged,
		Data: OrderEvent{OrderID: "ord-1", City: "Oran", Value: 5000},
	}
	notMatching := &Event{
		Type: EventOrderFlagged,
		Data: OrderEvent{OrderID: "ord-2", City: "Alger", Value: 5000},
	}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on city")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match other cities")
	}
}

func TestShouldSend_MinValueFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		MinValue: 10000,
	}}

	large := &Event{
		Type: EventOrderFlagged,
		Data: OrderEvent{OrderID: "ord-1", Value: 55000},
	}
	small := &Event{
		Type: EventOrderFlagged,
		Data: OrderEvent{OrderID: "ord-2", Value: 2500},
	}

	if !h.shouldSend(client, large) {
		t.Error("Should receive high-value order")
	}
	if h.shouldSend(client, small) {
		t.Error("Should NOT receive low-value order")
	}
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()

	// No filters, not AllEvents
	client := &Client{sub: Subscription{}}

	event := &Event{Type: EventOrderFlagged}
	if !h.shouldSend(client, event) {
		t.Error("Empty subscription (no filters) should receive events")
	}
}

func TestShouldSend_NonOrderData(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		Cities: []string{"Oran"},
	}}

	// Event with non-order data should not crash
	event := &Event{
		Type: EventOrderFlagged,
		Data: "string data not an order",
	}

	// City filter skips non-order data (can't extract the city), so event passes through
	if !h.shouldSend(client, event) {
		t.Error("Non-order data should pass through when city filter can't extract the city")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_BroadcastAndStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Broadcast an event
	h.Broadcast(&Event{Type: EventOrderFlagged, Timestamp: time.Now()})
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 1 {
		t.Errorf("Expected 1 total event, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("Expected 1 connected client, got %v", stats["connectedClients"])
	}
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak 1, got %v", stats["peakClients"])
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	stats = h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients after unregister, got %v", stats["connectedClients"])
	}
	// Peak should still be 1
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak still 1, got %v", stats["peakClients"])
	}
}

func TestHub_BroadcastToClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.OrderFlagged(OrderEvent{
		OrderID: "ord-1", City: "Oran", Value: 62000,
		RiskScore: 75, RiskLevel: "very_high",
	})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for broadcast")
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Hub stopped
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}

func TestHub_FilteredBroadcast(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Client only wants verification failures
	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{EventTypes: []EventType{EventVerificationFailed}},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	// Send a flagged event (should be filtered out)
	h.Broadcast(&Event{Type: EventOrderFlagged, Timestamp: time.Now()})
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client.send:
		t.Error("Client should NOT receive order_flagged event")
	default:
		// Good - filtered out
	}

	// Send a failure event (should be received)
	h.VerificationFailed(OrderEvent{OrderID: "ord-9", Reason: "attempts exceeded"})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Client should receive verification_failed event")
	}
}
