package events_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"groundlink/internal/events"
	"groundlink/internal/fault"
	"groundlink/internal/logging"
	"groundlink/internal/testsupport"
)

func TestBroadcastReachesAllObservers(t *testing.T) {
	registry := events.NewRegistry()
	broadcaster := events.NewBroadcaster(registry, logging.NewNop())

	first := &testsupport.FakeConnection{ConnID: "a"}
	second := &testsupport.FakeConnection{ConnID: "b"}
	registry.Register(first)
	registry.Register(second)

	broadcaster.Broadcast(events.TypeMissionStarted, events.MissionStartedPayload{MissionID: "m-1"})

	for _, conn := range []*testsupport.FakeConnection{first, second} {
		received := conn.Received()
		if len(received) != 1 {
			t.Fatalf("conn %s received %d events", conn.ConnID, len(received))
		}
		if received[0].Type != events.TypeMissionStarted {
			t.Fatalf("conn %s type = %s", conn.ConnID, received[0].Type)
		}
		if received[0].Source != events.EnvelopeSource {
			t.Fatalf("source = %q", received[0].Source)
		}
		if received[0].Timestamp == 0 {
			t.Fatal("expected epoch-ms timestamp")
		}
	}
}

func TestBroadcastDropsFailingObserver(t *testing.T) {
	registry := events.NewRegistry()
	broadcaster := events.NewBroadcaster(registry, logging.NewNop())

	healthy := &testsupport.FakeConnection{ConnID: "healthy"}
	failing := &testsupport.FakeConnection{ConnID: "failing", FailSend: true}
	registry.Register(healthy)
	registry.Register(failing)

	broadcaster.Broadcast(events.TypeTelemetryUpdate, events.TelemetryPayload{MissionID: "m-1"})

	if registry.Len() != 1 {
		t.Fatalf("len = %d, want failing observer removed", registry.Len())
	}
	if !failing.Closed() {
		t.Fatal("failing observer should be closed")
	}
	if len(healthy.Received()) != 1 {
		t.Fatal("healthy observer should still receive the event")
	}

	// Subsequent broadcasts proceed without the dropped observer.
	broadcaster.Broadcast(events.TypeTelemetryUpdate, events.TelemetryPayload{MissionID: "m-1"})
	if len(healthy.Received()) != 2 {
		t.Fatal("expected continued delivery")
	}
}

func TestDropClassifiesDeliveryFailure(t *testing.T) {
	handler := &recordingHandler{}
	registry := events.NewRegistry()
	broadcaster := events.NewBroadcaster(registry, slog.New(handler))

	failing := &testsupport.FakeConnection{ConnID: "failing", FailSend: true}
	registry.Register(failing)

	broadcaster.Broadcast(events.TypeTelemetryUpdate, events.TelemetryPayload{MissionID: "m-1"})

	var logged error
	for _, record := range handler.Records() {
		record.Attrs(func(attr slog.Attr) bool {
			if attr.Key == "error" {
				if err, ok := attr.Value.Any().(error); ok {
					logged = err
				}
			}
			return true
		})
	}
	if logged == nil {
		t.Fatal("expected the dropped observer's error to be logged")
	}
	if !errors.Is(logged, fault.ErrDelivery) {
		t.Fatalf("logged error = %v, want delivery marker", logged)
	}
}

type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record.Clone())
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *recordingHandler) WithGroup(string) slog.Handler { return h }

func (h *recordingHandler) Records() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]slog.Record(nil), h.records...)
}

func TestSendToSingleObserver(t *testing.T) {
	registry := events.NewRegistry()
	broadcaster := events.NewBroadcaster(registry, logging.NewNop())

	target := &testsupport.FakeConnection{ConnID: "target"}
	other := &testsupport.FakeConnection{ConnID: "other"}
	registry.Register(target)
	registry.Register(other)

	broadcaster.SendTo("target", events.TypeTelemetryUpdate, events.TelemetryPayload{MissionID: "m-1"})
	broadcaster.SendTo("unknown", events.TypeTelemetryUpdate, nil)

	if len(target.Received()) != 1 {
		t.Fatalf("target received %d", len(target.Received()))
	}
	if len(other.Received()) != 0 {
		t.Fatal("other observer should not receive targeted sends")
	}
}
