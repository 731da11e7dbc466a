package capture_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"groundlink/internal/capture"
	"groundlink/internal/events"
	"groundlink/internal/fault"
	"groundlink/internal/logging"
	"groundlink/internal/store"
	"groundlink/internal/testsupport"
)

func newManager(t *testing.T) (*capture.Manager, *store.Store, *testsupport.RecordingPublisher) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	publisher := &testsupport.RecordingPublisher{}
	return capture.NewManager(cfg, st, publisher, logging.NewNop()), st, publisher
}

func newOpenFlightLog(t *testing.T, st *store.Store) *store.FlightLog {
	t.Helper()
	mission := testsupport.NewMission(t, st, "capture mission", 2, 10)
	return testsupport.NewFlightLog(t, st, mission.ID)
}

func TestCreateSessionBroadcastsStarted(t *testing.T) {
	manager, st, publisher := newManager(t)
	flightLog := newOpenFlightLog(t, st)

	session, err := manager.CreateSession(context.Background(), flightLog.ID, store.SessionSynchronized,
		store.CaptureSettings{ThermalEnabled: true, RGBEnabled: true, AutoSync: true})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.Status != store.SessionActive {
		t.Fatalf("status = %s, want active", session.Status)
	}
	if session.Settings.MaxTimingOffsetMs <= 0 {
		t.Fatal("expected configured default timing offset")
	}
	if n := len(publisher.EventsOfType(events.TypeSessionStarted)); n != 1 {
		t.Fatalf("capture-session-started events = %d", n)
	}
}

func TestCreateSessionRejectsDisabledSensors(t *testing.T) {
	manager, st, publisher := newManager(t)
	flightLog := newOpenFlightLog(t, st)

	_, err := manager.CreateSession(context.Background(), flightLog.ID, store.SessionSynchronized,
		store.CaptureSettings{ThermalEnabled: true, RGBEnabled: false})
	if !errors.Is(err, fault.ErrPrecondition) {
		t.Fatalf("error = %v, want precondition", err)
	}
	if len(publisher.Events()) != 0 {
		t.Fatal("rejected session must not broadcast")
	}
	sessions, err := st.ListCaptureSessions(context.Background(), "")
	if err != nil {
		t.Fatalf("ListCaptureSessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatal("rejected session must not persist")
	}
}

func TestCreateSessionUnknownFlightLog(t *testing.T) {
	manager, _, _ := newManager(t)

	_, err := manager.CreateSession(context.Background(), "missing", store.SessionManual, store.CaptureSettings{})
	if !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestTriggerComputesQuality(t *testing.T) {
	manager, st, publisher := newManager(t)
	flightLog := newOpenFlightLog(t, st)

	session, err := manager.CreateSession(context.Background(), flightLog.ID, store.SessionSynchronized,
		store.CaptureSettings{ThermalEnabled: true, RGBEnabled: true, MaxTimingOffsetMs: 40})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	quality, err := manager.Trigger(context.Background(), session.ID, "dual", nil)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if quality.CaptureType != "dual" {
		t.Fatalf("capture type = %q", quality.CaptureType)
	}
	if quality.TimingOffsetMs < 0 || quality.TimingOffsetMs > 1.5*40 {
		t.Fatalf("timing offset out of range: %v", quality.TimingOffsetMs)
	}
	if quality.TimingMet != (quality.TimingOffsetMs <= 40) {
		t.Fatal("timing_met inconsistent with offset")
	}
	if quality.SpatialAligned {
		t.Fatal("spatial alignment requires calibration")
	}

	if n := len(publisher.EventsOfType(events.TypeCaptureTrigger)); n != 1 {
		t.Fatalf("capture-trigger events = %d", n)
	}
	if n := len(publisher.EventsOfType(events.TypeSessionUpdated)); n != 1 {
		t.Fatalf("capture-session-updated events = %d", n)
	}
}

func TestTriggerSettingsOverrideNarrowsSession(t *testing.T) {
	manager, st, _ := newManager(t)
	flightLog := newOpenFlightLog(t, st)
	ctx := context.Background()

	session, err := manager.CreateSession(ctx, flightLog.ID, store.SessionSynchronized,
		store.CaptureSettings{ThermalEnabled: true, RGBEnabled: true, MaxTimingOffsetMs: 40})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// An override with the rgb sensor off rejects rgb captures for that call.
	_, err = manager.Trigger(ctx, session.ID, "rgb",
		&store.CaptureSettings{ThermalEnabled: true, RGBEnabled: false})
	if !errors.Is(err, fault.ErrPrecondition) {
		t.Fatalf("error = %v, want precondition", err)
	}

	// A tighter per-call bound replaces the stored one.
	quality, err := manager.Trigger(ctx, session.ID, "dual",
		&store.CaptureSettings{ThermalEnabled: true, RGBEnabled: true, MaxTimingOffsetMs: 10})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if quality.MaxTimingOffsetMs != 10 {
		t.Fatalf("max timing offset = %d, want override 10", quality.MaxTimingOffsetMs)
	}

	// The stored settings are untouched and later triggers use them again.
	quality, err = manager.Trigger(ctx, session.ID, "rgb", nil)
	if err != nil {
		t.Fatalf("Trigger without override: %v", err)
	}
	if quality.MaxTimingOffsetMs != 40 {
		t.Fatalf("max timing offset = %d, want stored 40", quality.MaxTimingOffsetMs)
	}

	// An override cannot enable a sensor the session disabled.
	thermalOnly, err := manager.CreateSession(ctx, flightLog.ID, store.SessionThermalOnly,
		store.CaptureSettings{ThermalEnabled: true})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	_, err = manager.Trigger(ctx, thermalOnly.ID, "rgb",
		&store.CaptureSettings{ThermalEnabled: true, RGBEnabled: true})
	if !errors.Is(err, fault.ErrPrecondition) {
		t.Fatalf("error = %v, want precondition", err)
	}
}

func TestTriggerSpatialAlignmentGatedOnCalibration(t *testing.T) {
	manager, st, _ := newManager(t)
	flightLog := newOpenFlightLog(t, st)
	ctx := context.Background()

	settings := store.CaptureSettings{
		ThermalEnabled:   true,
		RGBEnabled:       true,
		SpatialAlignment: true,
		DeviceModel:      "flir-duo-r",
	}
	session, err := manager.CreateSession(ctx, flightLog.ID, store.SessionSynchronized, settings)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	quality, err := manager.Trigger(ctx, session.ID, "dual", nil)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if quality.SpatialAligned {
		t.Fatal("no calibration saved yet, alignment must be false")
	}

	if _, err := st.SaveCalibration(ctx, &store.CameraCalibration{
		DeviceModel: "flir-duo-r", ReprojectionError: 0.4, CoveragePercent: 90, ImageCount: 25,
	}); err != nil {
		t.Fatalf("SaveCalibration: %v", err)
	}

	quality, err = manager.Trigger(ctx, session.ID, "dual", nil)
	if err != nil {
		t.Fatalf("Trigger with calibration: %v", err)
	}
	if !quality.SpatialAligned {
		t.Fatal("active calibration present, alignment should hold")
	}
}

func TestTriggerRejectsDisabledCaptureType(t *testing.T) {
	manager, st, publisher := newManager(t)
	flightLog := newOpenFlightLog(t, st)
	ctx := context.Background()

	session, err := manager.CreateSession(ctx, flightLog.ID, store.SessionThermalOnly,
		store.CaptureSettings{ThermalEnabled: true})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	before := len(publisher.Events())

	if _, err := manager.Trigger(ctx, session.ID, "rgb", nil); !errors.Is(err, fault.ErrPrecondition) {
		t.Fatalf("error = %v, want precondition", err)
	}
	if _, err := manager.Trigger(ctx, session.ID, "laser", nil); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
	if len(publisher.Events()) != before {
		t.Fatal("rejected triggers must not broadcast")
	}
}

func TestTriggersSerializePerSession(t *testing.T) {
	manager, st, publisher := newManager(t)
	flightLog := newOpenFlightLog(t, st)
	ctx := context.Background()

	session, err := manager.CreateSession(ctx, flightLog.ID, store.SessionSynchronized,
		store.CaptureSettings{ThermalEnabled: true, RGBEnabled: true})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = manager.Trigger(ctx, session.ID, "dual", nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("trigger %d: %v", i, err)
		}
	}
	if n := len(publisher.EventsOfType(events.TypeCaptureTrigger)); n != 8 {
		t.Fatalf("capture-trigger events = %d, want 8", n)
	}
}

func TestEndSessionOnce(t *testing.T) {
	manager, st, publisher := newManager(t)
	flightLog := newOpenFlightLog(t, st)
	ctx := context.Background()

	session, err := manager.CreateSession(ctx, flightLog.ID, store.SessionManual, store.CaptureSettings{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	ended, err := manager.EndSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if ended.Status != store.SessionEnded || ended.EndedAt == nil {
		t.Fatalf("session not closed: %+v", ended)
	}

	if _, err := manager.EndSession(ctx, session.ID); !errors.Is(err, fault.ErrPrecondition) {
		t.Fatalf("double end error = %v, want precondition", err)
	}
	if n := len(publisher.EventsOfType(events.TypeSessionEnded)); n != 1 {
		t.Fatalf("capture-session-ended events = %d, want exactly 1", n)
	}

	if _, err := manager.Trigger(ctx, session.ID, "thermal", nil); !errors.Is(err, fault.ErrPrecondition) {
		t.Fatalf("trigger after end error = %v, want precondition", err)
	}
}
