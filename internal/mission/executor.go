package mission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"groundlink/internal/config"
	"groundlink/internal/events"
	"groundlink/internal/fault"
	"groundlink/internal/logging"
	"groundlink/internal/store"
)

// Executor owns mission and flight log status transitions while an execution
// is in flight. Different mission ids execute fully independently; a second
// concurrent start for the same id is rejected, not queued.
type Executor struct {
	cfg       *config.Config
	store     *store.Store
	publisher events.Publisher
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]*execution
	wg       sync.WaitGroup
}

type execution struct {
	missionID   string
	flightLogID string
	cancel      context.CancelFunc
}

// NewExecutor constructs a mission executor.
func NewExecutor(cfg *config.Config, st *store.Store, publisher events.Publisher, logger *slog.Logger) *Executor {
	return &Executor{
		cfg:       cfg,
		store:     st,
		publisher: publisher,
		logger:    logging.NewComponentLogger(logger, "mission"),
		inflight:  make(map[string]*execution),
	}
}

// Start validates preconditions, transitions the mission to executing,
// creates a flight log, broadcasts mission-started, and launches the
// asynchronous run. It returns the new flight log.
func (e *Executor) Start(ctx context.Context, missionID string) (*store.FlightLog, error) {
	if missionID == "" {
		return nil, fault.Wrap(fault.ErrValidation, "mission", "start", "mission id is required", nil)
	}

	// Claim the id before touching state so a racing duplicate start loses
	// here rather than after mutation.
	e.mu.Lock()
	if _, exists := e.inflight[missionID]; exists {
		e.mu.Unlock()
		return nil, fault.Wrap(fault.ErrPrecondition, "mission", "start", fmt.Sprintf("mission %s is already executing", missionID), nil)
	}
	claim := &execution{missionID: missionID}
	e.inflight[missionID] = claim
	e.mu.Unlock()

	flightLog, err := e.begin(ctx, missionID, claim)
	if err != nil {
		e.release(missionID)
		return nil, err
	}
	return flightLog, nil
}

func (e *Executor) begin(ctx context.Context, missionID string, claim *execution) (*store.FlightLog, error) {
	mission, err := e.store.GetMission(ctx, missionID)
	if err != nil {
		return nil, fault.Wrap(fault.ErrExecution, "mission", "start", "load mission", err)
	}
	if mission == nil {
		return nil, fault.Wrap(fault.ErrNotFound, "mission", "start", fmt.Sprintf("mission %s", missionID), nil)
	}
	if mission.Status != store.MissionReady {
		return nil, fault.Wrap(fault.ErrPrecondition, "mission", "start", fmt.Sprintf("mission %s is %s, want ready", missionID, mission.Status), nil)
	}
	if len(mission.Waypoints) == 0 {
		return nil, fault.Wrap(fault.ErrValidation, "mission", "start", "mission has no waypoints", nil)
	}

	mission.Status = store.MissionExecuting
	if err := e.store.UpdateMission(ctx, mission); err != nil {
		return nil, fault.Wrap(fault.ErrExecution, "mission", "start", "persist executing status", err)
	}

	flightLog, err := e.store.CreateFlightLog(ctx, &store.FlightLog{MissionID: missionID})
	if err != nil {
		// Roll the status back so the mission stays startable.
		mission.Status = store.MissionReady
		if rbErr := e.store.UpdateMission(ctx, mission); rbErr != nil {
			e.logger.Error("rollback to ready failed",
				logging.String(logging.FieldMissionID, missionID), logging.Error(rbErr))
		}
		return nil, fault.Wrap(fault.ErrExecution, "mission", "start", "create flight log", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	// Abort and ActiveFlightLog read these fields from other goroutines.
	e.mu.Lock()
	claim.flightLogID = flightLog.ID
	claim.cancel = cancel
	e.mu.Unlock()

	e.publisher.Broadcast(events.TypeMissionStarted, events.MissionStartedPayload{
		MissionID:   missionID,
		FlightLogID: flightLog.ID,
		Waypoints:   len(mission.Waypoints),
	})
	e.logger.Info("mission started",
		logging.String(logging.FieldMissionID, missionID),
		logging.String("flight_log_id", flightLog.ID),
		logging.Int("waypoints", len(mission.Waypoints)),
	)

	e.wg.Add(1)
	go e.run(runCtx, mission, flightLog)

	return flightLog, nil
}

// Abort requests cancellation of an in-flight execution. The run observes the
// signal at its next suspension boundary and emits one terminal broadcast.
func (e *Executor) Abort(missionID string) error {
	e.mu.Lock()
	exec, ok := e.inflight[missionID]
	e.mu.Unlock()
	if !ok || exec.cancel == nil {
		return fault.Wrap(fault.ErrPrecondition, "mission", "abort", fmt.Sprintf("mission %s is not executing", missionID), nil)
	}
	exec.cancel()
	return nil
}

// AbortAll cancels every in-flight execution. Used on daemon shutdown so
// each run closes its flight log and emits its terminal broadcast.
func (e *Executor) AbortAll() {
	e.mu.Lock()
	for _, exec := range e.inflight {
		if exec.cancel != nil {
			exec.cancel()
		}
	}
	e.mu.Unlock()
}

// InFlight returns the ids of missions currently executing.
func (e *Executor) InFlight() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.inflight))
	for id := range e.inflight {
		ids = append(ids, id)
	}
	return ids
}

// Executing reports whether the given mission currently has a run in flight.
func (e *Executor) Executing(missionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inflight[missionID]
	return ok
}

// ActiveFlightLog returns the flight log id of an in-flight execution, if any.
func (e *Executor) ActiveFlightLog(missionID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	exec, ok := e.inflight[missionID]
	if !ok {
		return "", false
	}
	return exec.flightLogID, true
}

// Wait blocks until every in-flight execution has finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) release(missionID string) {
	e.mu.Lock()
	delete(e.inflight, missionID)
	e.mu.Unlock()
}

func (e *Executor) run(ctx context.Context, mission *store.Mission, flightLog *store.FlightLog) {
	defer e.wg.Done()
	defer e.release(mission.ID)

	start := time.Now()
	err := e.traverse(ctx, mission, flightLog, start)
	if err != nil {
		e.finishFailed(mission.ID, flightLog.ID, start, err)
		return
	}
	e.finishCompleted(mission.ID, flightLog.ID, start)
}

// traverse walks the waypoint route, emitting one progress event per
// waypoint and suspending for the per-waypoint transit time in between.
func (e *Executor) traverse(ctx context.Context, mission *store.Mission, flightLog *store.FlightLog, start time.Time) error {
	total := len(mission.Waypoints)
	stepDelay := e.stepDelay(mission.EstimatedDurationSecs, total)
	limiter := rate.NewLimiter(rate.Limit(e.cfg.Simulation.TelemetryRatePerSec), e.cfg.Simulation.TelemetryBurst)

	for i := 0; i < total; i++ {
		progress := float64(i) / float64(total)
		sample := synthesizeSample(mission.Waypoints[i], i, progress)

		// Re-read so concurrent writers never see their updates clobbered.
		current, err := e.store.GetFlightLog(ctx, flightLog.ID)
		if err != nil || current == nil {
			return fmt.Errorf("reload flight log: %w", err)
		}
		current.AppendTelemetry(sample)
		if err := e.store.UpdateFlightLog(ctx, current); err != nil {
			return fmt.Errorf("persist telemetry: %w", err)
		}

		elapsed := time.Since(start).Seconds()
		remaining := mission.EstimatedDurationSecs - elapsed
		if remaining < 0 {
			remaining = 0
		}

		e.publisher.Broadcast(events.TypeMissionProgress, events.MissionProgressPayload{
			MissionID:         mission.ID,
			FlightLogID:       flightLog.ID,
			Progress:          progress * 100,
			CurrentWaypoint:   i,
			TotalWaypoints:    total,
			Telemetry:         sample,
			RemainingTimeSecs: remaining,
		})

		// High-frequency telemetry is throttled; dropped samples are simply
		// missed, matching at-most-once delivery.
		if limiter.Allow() {
			e.publisher.Broadcast(events.TypeTelemetryUpdate, events.TelemetryPayload{
				MissionID: mission.ID,
				Sample:    &sample,
			})
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("execution aborted: %w", ctx.Err())
		case <-time.After(stepDelay):
		}
	}
	return nil
}

func (e *Executor) stepDelay(estimatedDurationSecs float64, waypoints int) time.Duration {
	if waypoints <= 0 {
		waypoints = 1
	}
	stepSecs := estimatedDurationSecs / float64(waypoints)
	if stepSecs < e.cfg.Simulation.MinStepSeconds {
		stepSecs = e.cfg.Simulation.MinStepSeconds
	}
	return time.Duration(stepSecs * float64(time.Second))
}

func (e *Executor) finishCompleted(missionID, flightLogID string, start time.Time) {
	ctx := context.Background()
	elapsed := time.Since(start).Seconds()

	mission, err := e.store.GetMission(ctx, missionID)
	if err != nil || mission == nil {
		e.logger.Error("completion: reload mission failed",
			logging.String(logging.FieldMissionID, missionID), logging.Error(err))
		return
	}
	mission.Status = store.MissionCompleted
	if err := e.store.UpdateMission(ctx, mission); err != nil {
		e.logger.Error("completion: persist mission failed",
			logging.String(logging.FieldMissionID, missionID), logging.Error(err))
	}

	if err := e.closeFlightLog(ctx, flightLogID, store.MissionCompleted, elapsed, mission.TotalDistanceM, ""); err != nil {
		e.logger.Error("completion: close flight log failed",
			logging.String(logging.FieldMissionID, missionID), logging.Error(err))
	}

	e.publisher.Broadcast(events.TypeMissionCompleted, events.MissionCompletedPayload{
		MissionID:          missionID,
		FlightLogID:        flightLogID,
		ActualDurationSecs: elapsed,
		ActualDistanceM:    mission.TotalDistanceM,
	})
	e.logger.Info("mission completed",
		logging.String(logging.FieldMissionID, missionID),
		logging.Float64("duration_secs", elapsed),
	)
}

func (e *Executor) finishFailed(missionID, flightLogID string, start time.Time, runErr error) {
	ctx := context.Background()
	elapsed := time.Since(start).Seconds()

	mission, err := e.store.GetMission(ctx, missionID)
	if err == nil && mission != nil {
		mission.Status = store.MissionFailed
		if err := e.store.UpdateMission(ctx, mission); err != nil {
			e.logger.Error("failure: persist mission failed",
				logging.String(logging.FieldMissionID, missionID), logging.Error(err))
		}
	} else {
		e.logger.Error("failure: reload mission failed",
			logging.String(logging.FieldMissionID, missionID), logging.Error(err))
	}

	if err := e.closeFlightLog(ctx, flightLogID, store.MissionFailed, elapsed, 0, runErr.Error()); err != nil {
		e.logger.Error("failure: close flight log failed",
			logging.String(logging.FieldMissionID, missionID), logging.Error(err))
	}

	// Exactly one terminal broadcast per execution, success or failure.
	e.publisher.Broadcast(events.TypeMissionFailed, events.MissionFailedPayload{
		MissionID:   missionID,
		FlightLogID: flightLogID,
		Error:       runErr.Error(),
	})
	e.logger.Warn("mission failed",
		logging.String(logging.FieldMissionID, missionID),
		logging.Error(runErr),
	)
}

func (e *Executor) closeFlightLog(ctx context.Context, flightLogID string, status store.MissionStatus, elapsedSecs, distanceM float64, note string) error {
	flightLog, err := e.store.GetFlightLog(ctx, flightLogID)
	if err != nil {
		return err
	}
	if flightLog == nil {
		return fmt.Errorf("flight log %s not found", flightLogID)
	}
	if flightLog.EndTime != nil {
		// Already closed; closing is a once-only transition.
		return nil
	}
	now := time.Now().UTC()
	flightLog.Status = status
	flightLog.EndTime = &now
	flightLog.ActualDurationSecs = elapsedSecs
	flightLog.ActualDistanceM = distanceM
	flightLog.FailureNote = note
	return e.store.UpdateFlightLog(ctx, flightLog)
}
