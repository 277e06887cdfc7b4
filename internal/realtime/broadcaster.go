package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tablewise/floorstaff-backend/pkg/db/models"
	pkgerrors "github.com/tablewise/floorstaff-backend/pkg/errors"
	"github.com/tablewise/floorstaff-backend/pkg/logger"
)

// Event is the wire envelope pushed to staff clients.
type Event struct {
	Event     string             `json:"event"`
	Data      *models.Assignment `json:"data"`
	EmittedAt time.Time          `json:"emitted_at"`
}

// publisher is the outbound pub/sub surface the broadcaster needs.
type publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// subscriber opens pub/sub subscriptions.
type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error)
}

// Broadcaster publishes assignment events to the shared staff channel and
// relays inbound channel messages to the local hub. Publishing through Redis
// rather than straight to the hub keeps every API instance's clients in sync
// when the service runs with more than one replica.
type Broadcaster struct {
	bus     publisher
	sub     subscriber
	hub     *Hub
	channel string
	logg    *logger.Logger
	now     func() time.Time
}

// BroadcasterParams configure the broadcaster.
type BroadcasterParams struct {
	Bus     publisher
	Sub     subscriber
	Hub     *Hub
	Channel string
	Logger  *logger.Logger
	Now     func() time.Time
}

// NewBroadcaster wires the broadcaster dependencies.
func NewBroadcaster(params BroadcasterParams) (*Broadcaster, error) {
	if params.Bus == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "pub/sub publisher required")
	}
	if params.Hub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "hub required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.Channel == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "channel name required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Broadcaster{
		bus:     params.Bus,
		sub:     params.Sub,
		hub:     params.Hub,
		channel: params.Channel,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Broadcast publishes the event envelope to the staff channel.
func (b *Broadcaster) Broadcast(ctx context.Context, event string, assignment *models.Assignment) error {
	payload, err := json.Marshal(Event{
		Event:     event,
		Data:      assignment,
		EmittedAt: b.now(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal broadcast event")
	}
	if err := b.bus.Publish(ctx, b.channel, payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish broadcast event")
	}
	return nil
}

// Run subscribes to the staff channel and fans every message out to the
// local hub until the context is canceled. The pub/sub connection is retried
// by the redis client internally; a closed message channel ends the loop.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.sub == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "subscriber required to run relay")
	}
	pubsub, err := b.sub.Subscribe(ctx, b.channel)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe staff channel")
	}
	defer pubsub.Close()

	b.logg.Info(b.logg.WithField(ctx, "channel", b.channel), "staff event relay started")
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return pkgerrors.New(pkgerrors.CodeDependency, "staff channel subscription closed")
			}
			b.hub.Fanout([]byte(msg.Payload))
		}
	}
}
