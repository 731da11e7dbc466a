package events

import (
	"log/slog"

	"groundlink/internal/fault"
	"groundlink/internal/logging"
)

// Publisher is the narrow broadcast surface the entity state machines depend
// on.
type Publisher interface {
	Broadcast(eventType Type, payload any)
	SendTo(connID string, eventType Type, payload any)
}

// Broadcaster fans envelopes out to every registered connection. It holds no
// entity state.
type Broadcaster struct {
	registry *Registry
	logger   *slog.Logger
}

// NewBroadcaster constructs a broadcaster over the given registry.
func NewBroadcaster(registry *Registry, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "broadcast"),
	}
}

// Broadcast builds the envelope and attempts delivery to every currently
// registered connection. Delivery failures are isolated: the failing
// connection is closed and removed, the rest still receive the event, and no
// error reaches the caller.
func (b *Broadcaster) Broadcast(eventType Type, payload any) {
	envelope := NewEnvelope(eventType, payload)
	for _, conn := range b.registry.Snapshot() {
		if err := conn.Send(envelope); err != nil {
			b.drop(conn, eventType, err)
		}
	}
}

// SendTo delivers an envelope to a single connection, applying the same
// failure isolation as Broadcast. Unknown connection IDs are ignored.
func (b *Broadcaster) SendTo(connID string, eventType Type, payload any) {
	conn := b.registry.Get(connID)
	if conn == nil {
		return
	}
	if err := conn.Send(NewEnvelope(eventType, payload)); err != nil {
		b.drop(conn, eventType, err)
	}
}

func (b *Broadcaster) drop(conn Connection, eventType Type, err error) {
	b.registry.Unregister(conn.ID())
	_ = conn.Close()
	b.logger.Warn("observer dropped after delivery failure",
		logging.String(logging.FieldConnID, conn.ID()),
		logging.String(logging.FieldEventType, string(eventType)),
		logging.Error(fault.Wrap(fault.ErrDelivery, "broadcast", "send", conn.ID(), err)),
	)
}
