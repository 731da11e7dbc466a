package capture

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"groundlink/internal/config"
	"groundlink/internal/events"
	"groundlink/internal/fault"
	"groundlink/internal/logging"
	"groundlink/internal/store"
)

// Manager owns capture session status transitions. Triggers racing on one
// session are serialized by a per-session mutex; each call observes a
// consistent session state and both succeed in some order. Multiple active
// sessions on one flight log are permitted.
type Manager struct {
	cfg       *config.Config
	store     *store.Store
	publisher events.Publisher
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager constructs a capture session manager.
func NewManager(cfg *config.Config, st *store.Store, publisher events.Publisher, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		store:     st,
		publisher: publisher,
		logger:    logging.NewComponentLogger(logger, "capture"),
		locks:     make(map[string]*sync.Mutex),
	}
}

// CreateSession opens a new active session against a flight log and
// broadcasts capture-session-started. The caller is responsible for the
// device-connected precondition.
func (m *Manager) CreateSession(ctx context.Context, flightLogID string, sessionType store.SessionType, settings store.CaptureSettings) (*store.CaptureSession, error) {
	if flightLogID == "" {
		return nil, fault.Wrap(fault.ErrValidation, "capture", "create", "flight log id is required", nil)
	}
	if _, ok := store.ParseSessionType(string(sessionType)); !ok {
		return nil, fault.Wrap(fault.ErrValidation, "capture", "create", fmt.Sprintf("unknown session type %q", sessionType), nil)
	}
	if err := validateSensors(sessionType, settings); err != nil {
		return nil, err
	}
	if settings.MaxTimingOffsetMs <= 0 {
		settings.MaxTimingOffsetMs = m.cfg.Capture.MaxTimingOffsetMs
	}

	flightLog, err := m.store.GetFlightLog(ctx, flightLogID)
	if err != nil {
		return nil, fault.Wrap(fault.ErrExecution, "capture", "create", "load flight log", err)
	}
	if flightLog == nil {
		return nil, fault.Wrap(fault.ErrNotFound, "capture", "create", fmt.Sprintf("flight log %s", flightLogID), nil)
	}

	session, err := m.store.CreateCaptureSession(ctx, &store.CaptureSession{
		FlightLogID: flightLogID,
		Type:        sessionType,
		Settings:    settings,
	})
	if err != nil {
		return nil, fault.Wrap(fault.ErrExecution, "capture", "create", "persist session", err)
	}

	m.publisher.Broadcast(events.TypeSessionStarted, sessionPayload(session))
	m.logger.Info("capture session started",
		logging.String(logging.FieldSessionID, session.ID),
		logging.String("flight_log_id", flightLogID),
		logging.String("session_type", string(sessionType)),
	)
	return session, nil
}

// Trigger fires a capture on an active session and computes its
// synchronization-quality record. The record is broadcast via capture-trigger
// and capture-session-updated; it is also returned to the caller. A non-nil
// override narrows the session settings for this call only: a sensor must be
// enabled in both the session and the override, while the timing bound and
// device model replace the stored values when set.
func (m *Manager) Trigger(ctx context.Context, sessionID, captureType string, override *store.CaptureSettings) (*events.SyncQuality, error) {
	if sessionID == "" {
		return nil, fault.Wrap(fault.ErrValidation, "capture", "trigger", "session id is required", nil)
	}

	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.store.GetCaptureSession(ctx, sessionID)
	if err != nil {
		return nil, fault.Wrap(fault.ErrExecution, "capture", "trigger", "load session", err)
	}
	if session == nil {
		return nil, fault.Wrap(fault.ErrNotFound, "capture", "trigger", fmt.Sprintf("session %s", sessionID), nil)
	}
	if session.Status != store.SessionActive {
		return nil, fault.Wrap(fault.ErrPrecondition, "capture", "trigger", fmt.Sprintf("session %s is %s, want active", sessionID, session.Status), nil)
	}
	settings := session.Settings
	if override != nil {
		settings = mergeSettings(settings, *override)
	}
	if err := validateCaptureType(captureType, settings); err != nil {
		return nil, err
	}

	quality, err := m.syncQuality(ctx, captureType, settings)
	if err != nil {
		return nil, err
	}

	m.publisher.Broadcast(events.TypeCaptureTrigger, events.CaptureTriggerPayload{
		SessionID: session.ID,
		Quality:   quality,
	})
	m.publisher.Broadcast(events.TypeSessionUpdated, struct {
		events.SessionPayload
		Quality events.SyncQuality `json:"quality"`
	}{sessionPayload(session), quality})

	m.logger.Info("capture triggered",
		logging.String(logging.FieldSessionID, session.ID),
		logging.String("capture_type", captureType),
		logging.Bool("timing_met", quality.TimingMet),
		logging.Bool("spatial_aligned", quality.SpatialAligned),
	)
	return &quality, nil
}

// EndSession transitions a session to ended and broadcasts
// capture-session-ended exactly once. Ending an already-ended session is a
// precondition failure and never re-broadcasts.
func (m *Manager) EndSession(ctx context.Context, sessionID string) (*store.CaptureSession, error) {
	if sessionID == "" {
		return nil, fault.Wrap(fault.ErrValidation, "capture", "end", "session id is required", nil)
	}

	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.store.GetCaptureSession(ctx, sessionID)
	if err != nil {
		return nil, fault.Wrap(fault.ErrExecution, "capture", "end", "load session", err)
	}
	if session == nil {
		return nil, fault.Wrap(fault.ErrNotFound, "capture", "end", fmt.Sprintf("session %s", sessionID), nil)
	}
	if session.Status != store.SessionActive {
		return nil, fault.Wrap(fault.ErrPrecondition, "capture", "end", fmt.Sprintf("session %s already ended", sessionID), nil)
	}

	now := time.Now().UTC()
	session.Status = store.SessionEnded
	session.EndedAt = &now
	if err := m.store.UpdateCaptureSession(ctx, session); err != nil {
		return nil, fault.Wrap(fault.ErrExecution, "capture", "end", "persist session", err)
	}

	m.publisher.Broadcast(events.TypeSessionEnded, sessionPayload(session))
	m.logger.Info("capture session ended", logging.String(logging.FieldSessionID, session.ID))

	m.releaseLock(sessionID)
	return session, nil
}

// syncQuality simulates the inter-sensor delay and gates spatial alignment on
// calibration. Absence of an active calibration forces spatial alignment to
// false regardless of the request.
func (m *Manager) syncQuality(ctx context.Context, captureType string, settings store.CaptureSettings) (events.SyncQuality, error) {
	offset := rand.Float64() * 1.5 * float64(settings.MaxTimingOffsetMs)

	spatialAligned := false
	if settings.SpatialAlignment && settings.DeviceModel != "" {
		calibration, err := m.store.GetActiveCalibration(ctx, settings.DeviceModel)
		if err != nil {
			return events.SyncQuality{}, fault.Wrap(fault.ErrExecution, "capture", "trigger", "load calibration", err)
		}
		spatialAligned = calibration != nil
	}

	return events.SyncQuality{
		CaptureType:       captureType,
		TimingOffsetMs:    offset,
		MaxTimingOffsetMs: settings.MaxTimingOffsetMs,
		TimingMet:         offset <= float64(settings.MaxTimingOffsetMs),
		SpatialAligned:    spatialAligned,
		DeviceModel:       settings.DeviceModel,
	}, nil
}

// mergeSettings applies a per-trigger override on top of the stored session
// settings. The override can only narrow sensor availability, never enable a
// sensor the session disabled.
func mergeSettings(stored, override store.CaptureSettings) store.CaptureSettings {
	merged := stored
	merged.ThermalEnabled = stored.ThermalEnabled && override.ThermalEnabled
	merged.RGBEnabled = stored.RGBEnabled && override.RGBEnabled
	if override.MaxTimingOffsetMs > 0 {
		merged.MaxTimingOffsetMs = override.MaxTimingOffsetMs
	}
	if override.SpatialAlignment {
		merged.SpatialAlignment = true
	}
	if override.DeviceModel != "" {
		merged.DeviceModel = override.DeviceModel
	}
	return merged
}

func (m *Manager) sessionLock(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sessionID] = lock
	}
	return lock
}

func (m *Manager) releaseLock(sessionID string) {
	m.mu.Lock()
	delete(m.locks, sessionID)
	m.mu.Unlock()
}

func validateSensors(sessionType store.SessionType, settings store.CaptureSettings) error {
	switch sessionType {
	case store.SessionSynchronized:
		if !settings.ThermalEnabled || !settings.RGBEnabled {
			return fault.Wrap(fault.ErrPrecondition, "capture", "create", "synchronized sessions require both sensors enabled", nil)
		}
	case store.SessionThermalOnly:
		if !settings.ThermalEnabled {
			return fault.Wrap(fault.ErrPrecondition, "capture", "create", "thermal_only sessions require the thermal sensor", nil)
		}
	case store.SessionRGBOnly:
		if !settings.RGBEnabled {
			return fault.Wrap(fault.ErrPrecondition, "capture", "create", "rgb_only sessions require the rgb sensor", nil)
		}
	}
	return nil
}

func validateCaptureType(captureType string, settings store.CaptureSettings) error {
	switch captureType {
	case "thermal":
		if !settings.ThermalEnabled {
			return fault.Wrap(fault.ErrPrecondition, "capture", "trigger", "thermal capture requested but the thermal sensor is disabled", nil)
		}
	case "rgb":
		if !settings.RGBEnabled {
			return fault.Wrap(fault.ErrPrecondition, "capture", "trigger", "rgb capture requested but the rgb sensor is disabled", nil)
		}
	case "dual":
		if !settings.ThermalEnabled || !settings.RGBEnabled {
			return fault.Wrap(fault.ErrPrecondition, "capture", "trigger", "dual capture requires both sensors enabled", nil)
		}
	case "":
		return fault.Wrap(fault.ErrValidation, "capture", "trigger", "capture type is required", nil)
	default:
		return fault.Wrap(fault.ErrValidation, "capture", "trigger", fmt.Sprintf("unknown capture type %q", captureType), nil)
	}
	return nil
}

func sessionPayload(session *store.CaptureSession) events.SessionPayload {
	return events.SessionPayload{
		SessionID:   session.ID,
		FlightLogID: session.FlightLogID,
		SessionType: session.Type,
		Status:      string(session.Status),
	}
}
