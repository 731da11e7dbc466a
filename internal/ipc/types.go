package ipc

import "groundlink/internal/store"

// Mission mirrors the persisted mission record for API callers.
type Mission = store.Mission

// FlightLog mirrors the persisted flight log record for API callers.
type FlightLog = store.FlightLog

// CaptureSession mirrors the persisted capture session record for API callers.
type CaptureSession = store.CaptureSession

// ProcessingJob mirrors the persisted processing job record for API callers.
type ProcessingJob = store.ProcessingJob

// CameraCalibration mirrors the persisted calibration record for API callers.
type CameraCalibration = store.CameraCalibration

// Device mirrors the persisted device record for API callers.
type Device = store.Device

// StatusResponse represents combined daemon and fleet status information.
type StatusResponse struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	Observers     int            `json:"observers"`
	Executing     []string       `json:"executing_missions"`
	EntityCounts  map[string]int `json:"entity_counts"`
	DatabasePath  string         `json:"database_path"`
	LockFilePath  string         `json:"lock_file_path"`
	ListenAddress string         `json:"listen_address"`
}

// MissionListResponse contains mission records.
type MissionListResponse struct {
	Missions []Mission `json:"missions"`
}

// MissionResponse contains a single mission record.
type MissionResponse struct {
	Mission Mission `json:"mission"`
}

// CreateMissionRequest registers a planned mission with the daemon.
type CreateMissionRequest struct {
	Name                  string           `json:"name"`
	Waypoints             []store.Waypoint `json:"waypoints"`
	EstimatedDurationSecs float64          `json:"estimated_duration_secs"`
	TotalDistanceM        float64          `json:"total_distance_m"`
}

// StartMissionResponse reports the flight log opened for an execution.
type StartMissionResponse struct {
	FlightLog FlightLog `json:"flight_log"`
}

// FlightLogListResponse contains flight log records for one mission.
type FlightLogListResponse struct {
	FlightLogs []FlightLog `json:"flight_logs"`
}

// SessionListResponse contains capture session records.
type SessionListResponse struct {
	Sessions []CaptureSession `json:"sessions"`
}

// SessionResponse contains a single capture session record.
type SessionResponse struct {
	Session CaptureSession `json:"session"`
}

// CreateSessionRequest opens a capture session against a flight log.
type CreateSessionRequest struct {
	FlightLogID string                `json:"flight_log_id"`
	SessionType string                `json:"session_type"`
	Settings    store.CaptureSettings `json:"settings"`
}

// TriggerRequest fires a capture of the given type within a session. Settings,
// when present, narrow the session's stored settings for this trigger only.
type TriggerRequest struct {
	CaptureType string                 `json:"capture_type"`
	Settings    *store.CaptureSettings `json:"settings,omitempty"`
}

// TriggerResponse reports the synchronization quality of one capture.
type TriggerResponse struct {
	SessionID         string  `json:"session_id"`
	CaptureType       string  `json:"capture_type"`
	TimingOffsetMs    float64 `json:"timing_offset_ms"`
	MaxTimingOffsetMs int     `json:"max_timing_offset_ms"`
	TimingMet         bool    `json:"timing_met"`
	SpatialAligned    bool    `json:"spatial_aligned"`
}

// JobListResponse contains processing job records.
type JobListResponse struct {
	Jobs []ProcessingJob `json:"jobs"`
}

// JobResponse contains a single processing job record.
type JobResponse struct {
	Job ProcessingJob `json:"job"`
}

// CreateJobRequest registers a processing job over captured imagery.
type CreateJobRequest struct {
	SessionID  string `json:"session_id"`
	Kind       string `json:"kind"`
	TotalUnits int    `json:"total_units"`
}

// AdvanceJobRequest moves a job's progress to the given fraction in [0, 1].
type AdvanceJobRequest struct {
	Fraction float64 `json:"fraction"`
}

// CompleteJobRequest finishes a job and records its output artifacts.
type CompleteJobRequest struct {
	Artifacts []string `json:"artifacts"`
}

// FailJobRequest marks a job failed with an operator-visible reason.
type FailJobRequest struct {
	Reason string `json:"reason"`
}

// RunJobRequest drives a job through a simulated staged pipeline.
type RunJobRequest struct {
	Stages         int     `json:"stages"`
	StageDelaySecs float64 `json:"stage_delay_secs"`
}

// SaveCalibrationRequest records a calibration and activates it for its model.
type SaveCalibrationRequest struct {
	DeviceModel       string  `json:"device_model"`
	ReprojectionError float64 `json:"reprojection_error"`
	CoveragePercent   float64 `json:"coverage_percent"`
	ImageCount        int     `json:"image_count"`
}

// CalibrationResponse contains a single calibration record.
type CalibrationResponse struct {
	Calibration CameraCalibration `json:"calibration"`
}

// DeviceListResponse contains known tablet and controller devices.
type DeviceListResponse struct {
	Devices []Device `json:"devices"`
}
