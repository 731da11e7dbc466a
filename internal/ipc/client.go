package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"groundlink/internal/store"
)

// Client provides HTTP access to a running daemon.
type Client struct {
	base string
	http *http.Client
}

// NewClient constructs a client for the daemon listening at bind,
// e.g. "127.0.0.1:7430" or a full "http://..." base URL.
func NewClient(bind string) *Client {
	base := strings.TrimRight(strings.TrimSpace(bind), "/")
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Status retrieves daemon and fleet status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.get(ctx, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MissionList returns missions, optionally filtered by status.
func (c *Client) MissionList(ctx context.Context, statuses ...string) (*MissionListResponse, error) {
	query := url.Values{}
	for _, status := range statuses {
		if trimmed := strings.TrimSpace(status); trimmed != "" {
			query.Add("status", trimmed)
		}
	}
	var resp MissionListResponse
	if err := c.get(ctx, "/api/missions", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MissionDescribe returns a single mission by id.
func (c *Client) MissionDescribe(ctx context.Context, id string) (*MissionResponse, error) {
	var resp MissionResponse
	if err := c.get(ctx, "/api/missions/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MissionCreate registers a planned mission.
func (c *Client) MissionCreate(ctx context.Context, req CreateMissionRequest) (*MissionResponse, error) {
	var resp MissionResponse
	if err := c.post(ctx, "/api/missions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MissionStart begins executing a ready mission.
func (c *Client) MissionStart(ctx context.Context, id string) (*StartMissionResponse, error) {
	var resp StartMissionResponse
	if err := c.post(ctx, "/api/missions/"+url.PathEscape(id)+"/start", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MissionAbort cancels an executing mission.
func (c *Client) MissionAbort(ctx context.Context, id string) error {
	return c.post(ctx, "/api/missions/"+url.PathEscape(id)+"/abort", nil, nil)
}

// FlightLogList returns flight logs recorded for a mission.
func (c *Client) FlightLogList(ctx context.Context, missionID string) (*FlightLogListResponse, error) {
	var resp FlightLogListResponse
	if err := c.get(ctx, "/api/missions/"+url.PathEscape(missionID)+"/flight-logs", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionList returns capture sessions, optionally filtered by status.
func (c *Client) SessionList(ctx context.Context, statuses ...string) (*SessionListResponse, error) {
	query := url.Values{}
	for _, status := range statuses {
		if trimmed := strings.TrimSpace(status); trimmed != "" {
			query.Add("status", trimmed)
		}
	}
	var resp SessionListResponse
	if err := c.get(ctx, "/api/capture-sessions", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionCreate opens a capture session against a flight log.
func (c *Client) SessionCreate(ctx context.Context, req CreateSessionRequest) (*SessionResponse, error) {
	var resp SessionResponse
	if err := c.post(ctx, "/api/capture-sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionTrigger fires a capture within an active session. A nil settings
// uses the session's stored settings unchanged.
func (c *Client) SessionTrigger(ctx context.Context, id, captureType string, settings *store.CaptureSettings) (*TriggerResponse, error) {
	var resp TriggerResponse
	req := TriggerRequest{CaptureType: captureType, Settings: settings}
	if err := c.post(ctx, "/api/capture-sessions/"+url.PathEscape(id)+"/trigger", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionEnd closes an active capture session.
func (c *Client) SessionEnd(ctx context.Context, id string) (*SessionResponse, error) {
	var resp SessionResponse
	if err := c.post(ctx, "/api/capture-sessions/"+url.PathEscape(id)+"/end", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobList returns processing jobs, optionally filtered by status.
func (c *Client) JobList(ctx context.Context, statuses ...string) (*JobListResponse, error) {
	query := url.Values{}
	for _, status := range statuses {
		if trimmed := strings.TrimSpace(status); trimmed != "" {
			query.Add("status", trimmed)
		}
	}
	var resp JobListResponse
	if err := c.get(ctx, "/api/jobs", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobCreate registers a processing job over captured imagery.
func (c *Client) JobCreate(ctx context.Context, req CreateJobRequest) (*JobResponse, error) {
	var resp JobResponse
	if err := c.post(ctx, "/api/jobs", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobAdvance moves a job's progress to the given fraction.
func (c *Client) JobAdvance(ctx context.Context, id string, fraction float64) (*JobResponse, error) {
	var resp JobResponse
	req := AdvanceJobRequest{Fraction: fraction}
	if err := c.post(ctx, "/api/jobs/"+url.PathEscape(id)+"/advance", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobComplete finishes a job with the given artifacts.
func (c *Client) JobComplete(ctx context.Context, id string, artifacts []string) (*JobResponse, error) {
	var resp JobResponse
	req := CompleteJobRequest{Artifacts: artifacts}
	if err := c.post(ctx, "/api/jobs/"+url.PathEscape(id)+"/complete", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobFail marks a job failed with a reason.
func (c *Client) JobFail(ctx context.Context, id, reason string) (*JobResponse, error) {
	var resp JobResponse
	req := FailJobRequest{Reason: reason}
	if err := c.post(ctx, "/api/jobs/"+url.PathEscape(id)+"/fail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobRun drives a job through the daemon's simulated staged pipeline.
func (c *Client) JobRun(ctx context.Context, id string, stages int, stageDelaySecs float64) error {
	req := RunJobRequest{Stages: stages, StageDelaySecs: stageDelaySecs}
	return c.post(ctx, "/api/jobs/"+url.PathEscape(id)+"/run", req, nil)
}

// CalibrationSave records a calibration and activates it for its device model.
func (c *Client) CalibrationSave(ctx context.Context, req SaveCalibrationRequest) (*CalibrationResponse, error) {
	var resp CalibrationResponse
	if err := c.post(ctx, "/api/calibrations", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeviceList returns devices that have registered over the observer channel.
func (c *Client) DeviceList(ctx context.Context) (*DeviceListResponse, error) {
	var resp DeviceListResponse
	if err := c.get(ctx, "/api/devices", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon responded %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon responded %d", resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
