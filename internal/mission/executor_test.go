package mission_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"groundlink/internal/events"
	"groundlink/internal/fault"
	"groundlink/internal/logging"
	"groundlink/internal/mission"
	"groundlink/internal/store"
	"groundlink/internal/testsupport"
)

func TestStartRunsToCompletion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	publisher := &testsupport.RecordingPublisher{}
	executor := mission.NewExecutor(cfg, st, publisher, logging.NewNop())
	ctx := context.Background()

	planned := testsupport.NewMission(t, st, "survey", 4, 0.01)

	flightLog, err := executor.Start(ctx, planned.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if flightLog.MissionID != planned.ID {
		t.Fatalf("flight log mission = %s", flightLog.MissionID)
	}
	executor.Wait()

	final, err := st.GetMission(ctx, planned.ID)
	if err != nil {
		t.Fatalf("GetMission: %v", err)
	}
	if final.Status != store.MissionCompleted {
		t.Fatalf("mission status = %s, want completed", final.Status)
	}

	closed, err := st.GetFlightLog(ctx, flightLog.ID)
	if err != nil {
		t.Fatalf("GetFlightLog: %v", err)
	}
	if closed.EndTime == nil {
		t.Fatal("flight log should be closed")
	}
	if closed.Status != store.MissionCompleted {
		t.Fatalf("flight log status = %s", closed.Status)
	}
	if len(closed.Telemetry) != 4 {
		t.Fatalf("telemetry samples = %d, want 4", len(closed.Telemetry))
	}

	if n := len(publisher.EventsOfType(events.TypeMissionStarted)); n != 1 {
		t.Fatalf("mission-started events = %d", n)
	}
	progress := publisher.EventsOfType(events.TypeMissionProgress)
	if len(progress) != 4 {
		t.Fatalf("mission-progress events = %d, want 4", len(progress))
	}
	for i, envelope := range progress {
		payload := envelope.Data.(events.MissionProgressPayload)
		if payload.CurrentWaypoint != i {
			t.Fatalf("progress %d out of order: waypoint %d", i, payload.CurrentWaypoint)
		}
	}
	if n := len(publisher.EventsOfType(events.TypeMissionCompleted)); n != 1 {
		t.Fatalf("mission-completed events = %d", n)
	}
	if n := len(publisher.EventsOfType(events.TypeMissionFailed)); n != 0 {
		t.Fatalf("unexpected mission-failed events: %d", n)
	}
}

func TestStartRejectsConcurrentDuplicate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Simulation.MinStepSeconds = 0.05
	st := testsupport.MustOpenStore(t, cfg)
	publisher := &testsupport.RecordingPublisher{}
	executor := mission.NewExecutor(cfg, st, publisher, logging.NewNop())
	ctx := context.Background()

	planned := testsupport.NewMission(t, st, "long survey", 50, 60)

	if _, err := executor.Start(ctx, planned.ID); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	_, err := executor.Start(ctx, planned.ID)
	if !errors.Is(err, fault.ErrPrecondition) {
		t.Fatalf("duplicate start error = %v, want precondition", err)
	}

	if err := executor.Abort(planned.ID); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	executor.Wait()

	// The losing start must leave no trace: one flight log, one started event.
	flightLogs, err := st.ListFlightLogsByMission(ctx, planned.ID)
	if err != nil {
		t.Fatalf("ListFlightLogsByMission: %v", err)
	}
	if len(flightLogs) != 1 {
		t.Fatalf("flight logs = %d, want 1", len(flightLogs))
	}
	if n := len(publisher.EventsOfType(events.TypeMissionStarted)); n != 1 {
		t.Fatalf("mission-started events = %d", n)
	}
}

func TestActiveFlightLogVisibleDuringStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Simulation.MinStepSeconds = 0.05
	st := testsupport.MustOpenStore(t, cfg)
	publisher := &testsupport.RecordingPublisher{}
	executor := mission.NewExecutor(cfg, st, publisher, logging.NewNop())
	ctx := context.Background()

	planned := testsupport.NewMission(t, st, "patrol", 50, 60)

	// Poll the claim from another goroutine while Start publishes it.
	done := make(chan struct{})
	var observed string
	go func() {
		defer close(done)
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if id, ok := executor.ActiveFlightLog(planned.ID); ok && id != "" {
				observed = id
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	flightLog, err := executor.Start(ctx, planned.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-done
	if observed != flightLog.ID {
		t.Fatalf("observed flight log = %q, want %q", observed, flightLog.ID)
	}

	if err := executor.Abort(planned.ID); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	executor.Wait()
}

func TestStartRequiresReadyMission(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	publisher := &testsupport.RecordingPublisher{}
	executor := mission.NewExecutor(cfg, st, publisher, logging.NewNop())
	ctx := context.Background()

	planned := testsupport.NewMission(t, st, "done", 2, 0.01)
	planned.Status = store.MissionCompleted
	if err := st.UpdateMission(ctx, planned); err != nil {
		t.Fatalf("UpdateMission: %v", err)
	}

	_, err := executor.Start(ctx, planned.ID)
	if !errors.Is(err, fault.ErrPrecondition) {
		t.Fatalf("error = %v, want precondition", err)
	}
	if len(publisher.Events()) != 0 {
		t.Fatal("failed precondition must not broadcast")
	}
	flightLogs, err := st.ListFlightLogsByMission(ctx, planned.ID)
	if err != nil {
		t.Fatalf("ListFlightLogsByMission: %v", err)
	}
	if len(flightLogs) != 0 {
		t.Fatal("failed precondition must not create a flight log")
	}
}

func TestStartUnknownMission(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	executor := mission.NewExecutor(cfg, st, &testsupport.RecordingPublisher{}, logging.NewNop())

	_, err := executor.Start(context.Background(), "missing")
	if !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestAbortEmitsOneTerminalFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Simulation.MinStepSeconds = 0.05
	st := testsupport.MustOpenStore(t, cfg)
	publisher := &testsupport.RecordingPublisher{}
	executor := mission.NewExecutor(cfg, st, publisher, logging.NewNop())
	ctx := context.Background()

	planned := testsupport.NewMission(t, st, "abort me", 100, 120)
	flightLog, err := executor.Start(ctx, planned.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if err := executor.Abort(planned.ID); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	executor.Wait()

	final, err := st.GetMission(ctx, planned.ID)
	if err != nil {
		t.Fatalf("GetMission: %v", err)
	}
	if final.Status != store.MissionFailed {
		t.Fatalf("mission status = %s, want failed", final.Status)
	}

	closed, err := st.GetFlightLog(ctx, flightLog.ID)
	if err != nil {
		t.Fatalf("GetFlightLog: %v", err)
	}
	if closed.EndTime == nil {
		t.Fatal("flight log should be closed on abort")
	}
	if closed.FailureNote == "" {
		t.Fatal("expected a failure note")
	}

	if n := len(publisher.EventsOfType(events.TypeMissionFailed)); n != 1 {
		t.Fatalf("mission-failed events = %d, want exactly 1", n)
	}
	if n := len(publisher.EventsOfType(events.TypeMissionCompleted)); n != 0 {
		t.Fatalf("unexpected mission-completed events: %d", n)
	}
}

func TestAbortNotExecuting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	executor := mission.NewExecutor(cfg, st, &testsupport.RecordingPublisher{}, logging.NewNop())

	err := executor.Abort("idle")
	if !errors.Is(err, fault.ErrPrecondition) {
		t.Fatalf("error = %v, want precondition", err)
	}
}

func TestTelemetryBatteryAndBounds(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	publisher := &testsupport.RecordingPublisher{}
	executor := mission.NewExecutor(cfg, st, publisher, logging.NewNop())
	ctx := context.Background()

	planned := testsupport.NewMission(t, st, "telemetry", 5, 0.01)
	flightLog, err := executor.Start(ctx, planned.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	executor.Wait()

	closed, err := st.GetFlightLog(ctx, flightLog.ID)
	if err != nil {
		t.Fatalf("GetFlightLog: %v", err)
	}
	var prevBattery = 101.0
	for i, sample := range closed.Telemetry {
		if sample.BatteryPercent > prevBattery {
			t.Fatalf("battery increased at sample %d", i)
		}
		prevBattery = sample.BatteryPercent
		if sample.BatteryPercent < 20 || sample.BatteryPercent > 100 {
			t.Fatalf("battery out of range: %v", sample.BatteryPercent)
		}
		if sample.TemperatureC < 22 || sample.TemperatureC > 30 {
			t.Fatalf("temperature out of range: %v", sample.TemperatureC)
		}
		if sample.WaypointIndex != i {
			t.Fatalf("waypoint index = %d, want %d", sample.WaypointIndex, i)
		}
	}
}
