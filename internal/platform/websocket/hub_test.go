package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestHub() *Hub {
	return NewHub(zerolog.Nop())
}

// ---------------------------------------------------------------------------
// Hub tests
// ---------------------------------------------------------------------------

func TestHub_RegisterClient(t *testing.T) {
	hub := newTestHub()
	client := &Client{
		ID:     "client-1",
		Topics: []string{TopicSummary},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}

	hub.Register(client)

	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.TopicCount(TopicSummary) != 1 {
		t.Fatalf("expected 1 client on summary, got %d", hub.TopicCount(TopicSummary))
	}
}

func TestHub_UnregisterClient(t *testing.T) {
	hub := newTestHub()
	client := &Client{
		ID:     "client-2",
		Topics: []string{TopicSummary},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}

	hub.Register(client)
	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.TopicCount(TopicSummary) != 0 {
		t.Fatalf("expected 0 clients on summary, got %d", hub.TopicCount(TopicSummary))
	}

	// Reading from a closed channel returns zero value immediately.
	_, ok := <-client.Send
	if ok {
		t.Fatal("expected Send channel to be closed after unregister")
	}
}

func TestHub_BroadcastToTopic(t *testing.T) {
	hub := newTestHub()

	subscriber := &Client{
		ID:     "sub-1",
		Topics: []string{TopicSummary},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	nonSubscriber := &Client{
		ID:     "non-sub-1",
		Topics: []string{"profiler"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}

	hub.Register(subscriber)
	hub.Register(nonSubscriber)

	event := Event{
		Type:      "summary-updated",
		Topic:     TopicSummary,
		Timestamp: time.Now(),
		Data:      json.RawMessage(`{"totalClaims":42}`),
	}

	hub.Broadcast(TopicSummary, event)

	select {
	case msg := <-subscriber.Send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		if received.Type != "summary-updated" {
			t.Fatalf("expected event type summary-updated, got %s", received.Type)
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(received.Data, &payload); err != nil {
			t.Fatalf("failed to unmarshal data payload: %v", err)
		}
		if payload["totalClaims"] != float64(42) {
			t.Fatalf("expected totalClaims 42, got %v", payload["totalClaims"])
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	select {
	case <-nonSubscriber.Send:
		t.Fatal("non-subscriber should not have received event")
	default:
		// expected
	}
}

func TestHub_BroadcastSkipsFullClient(t *testing.T) {
	hub := newTestHub()

	// A client whose buffer is already full must never block a broadcast.
	slow := &Client{
		ID:     "slow-1",
		Topics: []string{TopicSummary},
		Send:   make(chan []byte, 1),
		hub:    hub,
	}
	slow.Send <- []byte("stuck")
	hub.Register(slow)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(TopicSummary, Event{Type: "summary-updated", Topic: TopicSummary, Timestamp: time.Now()})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client buffer")
	}
}

func TestHub_BroadcastToEmptyTopic(t *testing.T) {
	hub := newTestHub()

	// Should not panic.
	hub.Broadcast("no-one-here", Event{Type: "summary-updated", Topic: "no-one-here", Timestamp: time.Now()})
}

func TestHub_SubscribeAndUnsubscribe(t *testing.T) {
	hub := newTestHub()
	client := &Client{
		ID:     "dynamic-1",
		Topics: []string{TopicSummary},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	hub.Register(client)

	hub.Subscribe(client, []string{"profiler"})

	if hub.TopicCount("profiler") != 1 {
		t.Fatalf("expected 1 on profiler, got %d", hub.TopicCount("profiler"))
	}
	if len(client.Topics) != 2 {
		t.Fatalf("expected 2 topics on client, got %d", len(client.Topics))
	}

	hub.Unsubscribe(client, []string{TopicSummary})

	if hub.TopicCount(TopicSummary) != 0 {
		t.Fatalf("expected 0 on summary, got %d", hub.TopicCount(TopicSummary))
	}
	if hub.TopicCount("profiler") != 1 {
		t.Fatalf("expected profiler subscription to survive, got %d", hub.TopicCount("profiler"))
	}
	if len(client.Topics) != 1 || client.Topics[0] != "profiler" {
		t.Fatalf("expected [profiler] remaining, got %v", client.Topics)
	}
}

func TestHub_ProcessMessage(t *testing.T) {
	hub := newTestHub()
	client := &Client{
		ID:     "process-1",
		Topics: []string{},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	hub.Register(client)

	raw := `{"action":"subscribe","topics":["summary"]}`
	var msg ClientMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	hub.ProcessMessage(client, msg)

	if hub.TopicCount(TopicSummary) != 1 {
		t.Fatalf("expected 1 subscriber on summary, got %d", hub.TopicCount(TopicSummary))
	}

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{TopicSummary}})

	if hub.TopicCount(TopicSummary) != 0 {
		t.Fatalf("expected 0 on summary after unsubscribe, got %d", hub.TopicCount(TopicSummary))
	}
}

func TestHub_PublishEvent(t *testing.T) {
	hub := newTestHub()

	client := &Client{
		ID:     "pub-1",
		Topics: []string{TopicSummary},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	hub.Register(client)

	var publisher EventPublisher = hub

	event := Event{
		Type:      "summary-updated",
		Topic:     TopicSummary,
		Timestamp: time.Now(),
	}

	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-client.Send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if received.Topic != TopicSummary {
			t.Fatalf("expected topic summary, got %s", received.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("did not receive published event")
	}
}

func TestHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := newTestHub()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n * 2)

	clients := make([]*Client, n)
	for i := 0; i < n; i++ {
		clients[i] = &Client{
			ID:     "concurrent-" + string(rune(i)),
			Topics: []string{TopicSummary},
			Send:   make(chan []byte, 256),
			hub:    hub,
		}
	}

	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			hub.Register(clients[idx])
		}(i)
	}
	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			hub.Unregister(clients[idx])
		}(i)
	}

	wg.Wait()

	if count := hub.ClientCount(); count < 0 {
		t.Fatalf("client count should not be negative, got %d", count)
	}
}

// ---------------------------------------------------------------------------
// Handler tests
// ---------------------------------------------------------------------------

func TestHandler_RegisterRoutes(t *testing.T) {
	hub := newTestHub()
	handler := NewHandler(hub)

	e := echo.New()
	g := e.Group("")
	handler.RegisterRoutes(g)

	routes := e.Routes()
	found := false
	for _, r := range routes {
		if r.Path == "/ws" && r.Method == http.MethodGet {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected GET /ws route to be registered")
	}
}

func TestHandler_HandleConnectRequiresWebSocket(t *testing.T) {
	hub := newTestHub()
	handler := NewHandler(hub)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.HandleConnect(c)

	// gorilla/websocket upgrader will reject non-WS requests
	if err == nil && rec.Code == http.StatusSwitchingProtocols {
		t.Fatal("expected upgrade to fail for non-websocket request")
	}
}

func TestHandler_FullUpgradeWithDialer(t *testing.T) {
	hub := newTestHub()
	handler := NewHandler(hub)

	e := echo.New()
	g := e.Group("")
	handler.RegisterRoutes(g)

	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	dialer := gorillawebsocket.Dialer{}
	conn, resp, err := dialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	// Give the goroutine a moment to register; new connections are
	// subscribed to the summary topic by default.
	time.Sleep(50 * time.Millisecond)
	if hub.TopicCount(TopicSummary) != 1 {
		t.Fatalf("expected 1 default subscriber on summary, got %d", hub.TopicCount(TopicSummary))
	}

	event := Event{
		Type:      "summary-updated",
		Topic:     TopicSummary,
		Timestamp: time.Now(),
		Data:      json.RawMessage(`{"totalClaims":7,"totalAmount":1234.5}`),
	}
	hub.Broadcast(TopicSummary, event)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received Event
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if received.Type != "summary-updated" {
		t.Fatalf("expected summary-updated, got %s", received.Type)
	}
}
