package events

import (
	"time"

	"groundlink/internal/store"
)

// Type identifies an outbound event. The set is closed; transports and
// observers switch on these values.
type Type string

const (
	TypeMissionStarted   Type = "mission-started"
	TypeMissionProgress  Type = "mission-progress"
	TypeMissionCompleted Type = "mission-completed"
	TypeMissionFailed    Type = "mission-failed"

	TypeSessionStarted Type = "capture-session-started"
	TypeSessionUpdated Type = "capture-session-updated"
	TypeSessionEnded   Type = "capture-session-ended"
	TypeCaptureTrigger Type = "capture-trigger"

	TypeTelemetryUpdate Type = "telemetry-update"

	TypeJobProgress  Type = "job-progress"
	TypeJobCompleted Type = "job-completed"
	TypeJobFailed    Type = "job-failed"
)

// EnvelopeSource tags every envelope emitted by the coordination core.
const EnvelopeSource = "system"

// Envelope is the wire form of one outbound event.
type Envelope struct {
	Type      Type   `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
	Source    string `json:"source"`
}

// NewEnvelope stamps a payload with the current epoch-millisecond timestamp.
func NewEnvelope(eventType Type, payload any) Envelope {
	return Envelope{
		Type:      eventType,
		Data:      payload,
		Timestamp: time.Now().UnixMilli(),
		Source:    EnvelopeSource,
	}
}

// MissionStartedPayload announces a new mission execution.
type MissionStartedPayload struct {
	MissionID   string `json:"mission_id"`
	FlightLogID string `json:"flight_log_id"`
	Waypoints   int    `json:"waypoints"`
}

// MissionProgressPayload reports one waypoint step of an executing mission.
type MissionProgressPayload struct {
	MissionID         string                `json:"mission_id"`
	FlightLogID       string                `json:"flight_log_id"`
	Progress          float64               `json:"progress"`
	CurrentWaypoint   int                   `json:"current_waypoint"`
	TotalWaypoints    int                   `json:"total_waypoints"`
	Telemetry         store.TelemetrySample `json:"telemetry"`
	RemainingTimeSecs float64               `json:"remaining_time_secs"`
}

// MissionCompletedPayload closes out a successful execution.
type MissionCompletedPayload struct {
	MissionID          string  `json:"mission_id"`
	FlightLogID        string  `json:"flight_log_id"`
	ActualDurationSecs float64 `json:"actual_duration_secs"`
	ActualDistanceM    float64 `json:"actual_distance_m"`
}

// MissionFailedPayload carries the terminal error description of a failed run.
type MissionFailedPayload struct {
	MissionID   string `json:"mission_id"`
	FlightLogID string `json:"flight_log_id"`
	Error       string `json:"error"`
}

// SessionPayload describes a capture session lifecycle event.
type SessionPayload struct {
	SessionID   string            `json:"session_id"`
	FlightLogID string            `json:"flight_log_id"`
	SessionType store.SessionType `json:"session_type"`
	Status      string            `json:"status"`
}

// SyncQuality is the synchronization-quality record computed for a trigger.
type SyncQuality struct {
	CaptureType       string  `json:"capture_type"`
	TimingOffsetMs    float64 `json:"timing_offset_ms"`
	MaxTimingOffsetMs int     `json:"max_timing_offset_ms"`
	TimingMet         bool    `json:"timing_met"`
	SpatialAligned    bool    `json:"spatial_aligned"`
	DeviceModel       string  `json:"device_model,omitempty"`
}

// CaptureTriggerPayload announces a capture trigger and its quality record.
type CaptureTriggerPayload struct {
	SessionID string      `json:"session_id"`
	Quality   SyncQuality `json:"quality"`
}

// TelemetryPayload carries an on-demand or streamed telemetry snapshot.
type TelemetryPayload struct {
	MissionID string                  `json:"mission_id,omitempty"`
	Sample    *store.TelemetrySample  `json:"sample,omitempty"`
	Recent    []store.TelemetrySample `json:"recent,omitempty"`
}

// JobProgressPayload reports one advance of a processing job.
type JobProgressPayload struct {
	JobID          string  `json:"job_id"`
	OwnerID        string  `json:"owner_id"`
	Kind           string  `json:"kind"`
	ProcessedUnits int     `json:"processed_units"`
	TotalUnits     int     `json:"total_units"`
	Coverage       float64 `json:"coverage"`
	ElapsedSecs    float64 `json:"elapsed_secs"`
}

// JobCompletedPayload closes out a successful job.
type JobCompletedPayload struct {
	JobID        string   `json:"job_id"`
	OwnerID      string   `json:"owner_id"`
	Kind         string   `json:"kind"`
	QualityScore float64  `json:"quality_score"`
	Artifacts    []string `json:"artifacts,omitempty"`
}

// JobFailedPayload carries the terminal error of a failed job.
type JobFailedPayload struct {
	JobID   string `json:"job_id"`
	OwnerID string `json:"owner_id"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}
