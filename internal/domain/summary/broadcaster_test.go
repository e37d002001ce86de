package summary

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/claimsight/claimsight/internal/platform/websocket"
)

type capturePublisher struct {
	events []websocket.Event
}

func (p *capturePublisher) Publish(_ context.Context, event websocket.Event) error {
	p.events = append(p.events, event)
	return nil
}

func newTestBroadcaster(store Store, pub websocket.EventPublisher) *Broadcaster {
	return &Broadcaster{store: store, publisher: pub, logger: zerolog.Nop()}
}

func TestPush_PublishesCurrentShape(t *testing.T) {
	store := newMemStore()
	store.stored = &StoredSummary{
		Totals:       Totals{TotalClaims: 42, TotalAmount: 1234.5},
		StatusCounts: map[string]int64{"approved": 40, "denied": 2},
		Source:       SourceChangeStream,
	}
	store.facets["99213"] = 9
	pub := &capturePublisher{}
	b := newTestBroadcaster(store, pub)

	b.Push(context.Background())

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Type != "summary-updated" || ev.Topic != websocket.TopicSummary {
		t.Errorf("unexpected event envelope: type=%s topic=%s", ev.Type, ev.Topic)
	}

	var payload Payload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatalf("invalid payload JSON: %v", err)
	}
	if payload.Data.Totals.TotalClaims != 42 {
		t.Errorf("expected totalClaims 42, got %d", payload.Data.Totals.TotalClaims)
	}
	if payload.Meta.Source != SourceChangeStream {
		t.Errorf("expected change-stream source, got %s", payload.Meta.Source)
	}
	if len(payload.Data.TopProcedures) != 1 || payload.Data.TopProcedures[0].Code != "99213" {
		t.Errorf("unexpected top procedures: %v", payload.Data.TopProcedures)
	}
}

func TestPush_NormalizesLegacyShape(t *testing.T) {
	store := newMemStore()
	store.stored = &StoredSummary{
		Legacy: []byte(`{"totalClaims":7,"totalAmount":70,"statusCounts":{"pending":7}}`),
	}
	pub := &capturePublisher{}
	b := newTestBroadcaster(store, pub)

	b.Push(context.Background())

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	var payload Payload
	if err := json.Unmarshal(pub.events[0].Data, &payload); err != nil {
		t.Fatalf("invalid payload JSON: %v", err)
	}
	if payload.Data.Totals.TotalClaims != 7 || payload.Meta.Source != SourceLegacyMigration {
		t.Errorf("legacy shape not normalized: %+v", payload)
	}
}

func TestPush_AbsentSummaryDropped(t *testing.T) {
	pub := &capturePublisher{}
	b := newTestBroadcaster(newMemStore(), pub)

	b.Push(context.Background())

	if len(pub.events) != 0 {
		t.Errorf("expected no push for absent summary, got %d", len(pub.events))
	}
}

func TestPush_StoreErrorDropped(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("down")
	pub := &capturePublisher{}
	b := newTestBroadcaster(store, pub)

	b.Push(context.Background())

	if len(pub.events) != 0 {
		t.Errorf("expected no push on store error, got %d", len(pub.events))
	}
}
