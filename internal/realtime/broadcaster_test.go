package realtime

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tablewise/floorstaff-backend/pkg/db/models"
	"github.com/tablewise/floorstaff-backend/pkg/enums"
	"github.com/tablewise/floorstaff-backend/pkg/logger"
)

type fakeBus struct {
	channel  string
	payloads [][]byte
	err      error
}

func (f *fakeBus) Publish(ctx context.Context, channel string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.channel = channel
	raw, ok := payload.([]byte)
	if !ok {
		return nil
	}
	f.payloads = append(f.payloads, raw)
	return nil
}

func newTestBroadcaster(t *testing.T, bus *fakeBus, hub *Hub) *Broadcaster {
	t.Helper()
	b, err := NewBroadcaster(BroadcasterParams{
		Bus:     bus,
		Hub:     hub,
		Channel: "floorstaff:events:staff",
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Now:     func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("unexpected broadcaster error: %v", err)
	}
	return b
}

func TestBroadcaster_PublishesEnvelope(t *testing.T) {
	bus := &fakeBus{}
	b := newTestBroadcaster(t, bus, NewHub())

	assignment := &models.Assignment{
		ID:        uuid.New(),
		OrderRef:  uuid.New(),
		OrderKind: enums.OrderKindReservation,
		Status:    enums.AssignmentStatusWaiting,
	}
	if err := b.Broadcast(context.Background(), "new_order_assignment", assignment); err != nil {
		t.Fatalf("unexpected broadcast error: %v", err)
	}

	if bus.channel != "floorstaff:events:staff" {
		t.Fatalf("unexpected channel %s", bus.channel)
	}
	if len(bus.payloads) != 1 {
		t.Fatalf("expected one publish, got %d", len(bus.payloads))
	}

	var envelope Event
	if err := json.Unmarshal(bus.payloads[0], &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Event != "new_order_assignment" {
		t.Fatalf("unexpected event %s", envelope.Event)
	}
	if envelope.Data == nil || envelope.Data.ID != assignment.ID {
		t.Fatal("expected assignment payload in envelope")
	}
	if envelope.EmittedAt.IsZero() {
		t.Fatal("expected emitted_at to be stamped")
	}
}

func TestBroadcaster_PublishFailureSurfaces(t *testing.T) {
	bus := &fakeBus{err: context.DeadlineExceeded}
	b := newTestBroadcaster(t, bus, NewHub())

	err := b.Broadcast(context.Background(), "order_claimed", &models.Assignment{ID: uuid.New()})
	if err == nil {
		t.Fatal("expected publish failure to surface")
	}
}
