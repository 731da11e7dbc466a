package testsupport

import (
	"errors"
	"sync"

	"groundlink/internal/events"
)

// RecordingPublisher captures broadcasts for assertions in tests.
type RecordingPublisher struct {
	mu       sync.Mutex
	captured []events.Envelope
}

// Broadcast records the envelope that would have been fanned out.
func (p *RecordingPublisher) Broadcast(eventType events.Type, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captured = append(p.captured, events.NewEnvelope(eventType, payload))
}

// SendTo records the envelope that would have gone to a single connection.
func (p *RecordingPublisher) SendTo(connID string, eventType events.Type, payload any) {
	p.Broadcast(eventType, payload)
}

// Events returns a copy of everything published so far.
func (p *RecordingPublisher) Events() []events.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Envelope, len(p.captured))
	copy(out, p.captured)
	return out
}

// EventsOfType returns published envelopes matching the given type, in order.
func (p *RecordingPublisher) EventsOfType(eventType events.Type) []events.Envelope {
	var out []events.Envelope
	for _, envelope := range p.Events() {
		if envelope.Type == eventType {
			out = append(out, envelope)
		}
	}
	return out
}

// FakeConnection implements events.Connection with scripted behavior.
type FakeConnection struct {
	ConnID   string
	FailSend bool

	mu       sync.Mutex
	received []events.Envelope
	closed   bool
}

// ID returns the scripted connection id.
func (c *FakeConnection) ID() string { return c.ConnID }

// Send records the envelope, or fails when scripted to.
func (c *FakeConnection) Send(envelope events.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailSend || c.closed {
		return errors.New("send failed")
	}
	c.received = append(c.received, envelope)
	return nil
}

// Close marks the connection closed.
func (c *FakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (c *FakeConnection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Received returns a copy of the envelopes delivered to this connection.
func (c *FakeConnection) Received() []events.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.Envelope, len(c.received))
	copy(out, c.received)
	return out
}
