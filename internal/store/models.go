package store

import (
	"strings"
	"time"
)

// MissionStatus represents the lifecycle of a mission.
type MissionStatus string

const (
	MissionReady     MissionStatus = "ready"
	MissionExecuting MissionStatus = "executing"
	MissionCompleted MissionStatus = "completed"
	MissionFailed    MissionStatus = "failed"
)

// IsTerminal reports whether a mission status permits no further transitions.
func (s MissionStatus) IsTerminal() bool {
	return s == MissionCompleted || s == MissionFailed
}

// ParseMissionStatus converts a string into a known MissionStatus.
func ParseMissionStatus(value string) (MissionStatus, bool) {
	normalized := MissionStatus(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case MissionReady, MissionExecuting, MissionCompleted, MissionFailed:
		return normalized, true
	}
	return "", false
}

// SessionStatus represents the lifecycle of a capture session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// SessionType identifies what a capture session records.
type SessionType string

const (
	SessionSynchronized SessionType = "synchronized"
	SessionThermalOnly  SessionType = "thermal_only"
	SessionRGBOnly      SessionType = "rgb_only"
	SessionManual       SessionType = "manual"
)

// ParseSessionType converts a string into a known SessionType.
func ParseSessionType(value string) (SessionType, bool) {
	normalized := SessionType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case SessionSynchronized, SessionThermalOnly, SessionRGBOnly, SessionManual:
		return normalized, true
	}
	return "", false
}

// JobStatus represents the lifecycle of a processing job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether a job status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Waypoint is one planned position in a mission route.
type Waypoint struct {
	Latitude  float64  `json:"lat"`
	Longitude float64  `json:"lon"`
	AltitudeM float64  `json:"altitude_m"`
	SpeedMS   float64  `json:"speed_ms"`
	Actions   []string `json:"actions,omitempty"`
}

// Mission is a planned flight: an ordered waypoint route plus estimates.
// Status is mutated only by the mission executor.
type Mission struct {
	ID                    string        `json:"id"`
	Name                  string        `json:"name"`
	Waypoints             []Waypoint    `json:"waypoints"`
	Status                MissionStatus `json:"status"`
	EstimatedDurationSecs float64       `json:"estimated_duration_secs"`
	TotalDistanceM        float64       `json:"total_distance_m"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// TelemetrySample is one timestamped reading captured during execution.
type TelemetrySample struct {
	Timestamp      time.Time `json:"ts"`
	Latitude       float64   `json:"lat"`
	Longitude      float64   `json:"lon"`
	AltitudeM      float64   `json:"altitude_m"`
	SpeedMS        float64   `json:"speed_ms"`
	BatteryPercent float64   `json:"battery_percent"`
	TemperatureC   float64   `json:"temperature_c"`
	WaypointIndex  int       `json:"waypoint_index"`
}

// TelemetryWindow bounds the telemetry kept on a flight log. Older samples are
// discarded; the log is a sliding window, not a growing record.
const TelemetryWindow = 50

// FlightLog records one execution attempt of a mission. It is closed (EndTime
// set) exactly once.
type FlightLog struct {
	ID                 string            `json:"id"`
	MissionID          string            `json:"mission_id"`
	Status             MissionStatus     `json:"status"`
	StartTime          time.Time         `json:"start_time"`
	EndTime            *time.Time        `json:"end_time,omitempty"`
	Telemetry          []TelemetrySample `json:"telemetry"`
	ActualDurationSecs float64           `json:"actual_duration_secs"`
	ActualDistanceM    float64           `json:"actual_distance_m"`
	FailureNote        string            `json:"failure_note,omitempty"`
}

// AppendTelemetry adds a sample, keeping only the most recent TelemetryWindow.
func (f *FlightLog) AppendTelemetry(sample TelemetrySample) {
	f.Telemetry = append(f.Telemetry, sample)
	if excess := len(f.Telemetry) - TelemetryWindow; excess > 0 {
		f.Telemetry = append(f.Telemetry[:0], f.Telemetry[excess:]...)
	}
}

// CaptureSettings configures the sensors and synchronization bounds of a
// capture session.
type CaptureSettings struct {
	ThermalEnabled    bool   `json:"thermal_enabled"`
	RGBEnabled        bool   `json:"rgb_enabled"`
	AutoSync          bool   `json:"auto_sync"`
	MaxTimingOffsetMs int    `json:"max_timing_offset_ms"`
	SpatialAlignment  bool   `json:"spatial_alignment"`
	DeviceModel       string `json:"device_model"`
}

// CaptureSession is a bounded window during which synchronized captures may
// be triggered. Triggers are only valid while the session is active.
type CaptureSession struct {
	ID          string          `json:"id"`
	FlightLogID string          `json:"flight_log_id"`
	Type        SessionType     `json:"session_type"`
	Settings    CaptureSettings `json:"settings"`
	Status      SessionStatus   `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
}

// CameraCalibration holds geometric correction parameters for one device
// model. At most one calibration per device model is active.
type CameraCalibration struct {
	ID                int64     `json:"id"`
	DeviceModel       string    `json:"device_model"`
	ReprojectionError float64   `json:"reprojection_error"`
	CoveragePercent   float64   `json:"coverage_percent"`
	ImageCount        int       `json:"image_count"`
	CalibratedAt      time.Time `json:"calibrated_at"`
	IsActive          bool      `json:"is_active"`
}

// ProcessingJob is a generic progress-tracked background pipeline, for
// example composite-image generation for a completed flight.
type ProcessingJob struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Kind           string    `json:"kind"`
	Status         JobStatus `json:"status"`
	ProcessedUnits int       `json:"processed_units"`
	TotalUnits     int       `json:"total_units"`
	Coverage       float64   `json:"coverage"`
	QualityScore   float64   `json:"quality_score"`
	ElapsedSecs    float64   `json:"elapsed_secs"`
	Artifacts      []string  `json:"artifacts,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Device is a registered observer device record (tablet, field companion).
// Identity does not persist across reconnects unless re-registered.
type Device struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Kind            string            `json:"kind"`
	Address         string            `json:"address"`
	DisplaySettings map[string]string `json:"display_settings,omitempty"`
	LastSeen        time.Time         `json:"last_seen"`
}
