package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"groundlink/internal/config"
	"groundlink/internal/fault"
	"groundlink/internal/ipc"
	"groundlink/internal/logging"
	"groundlink/internal/store"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/missions", srv.handleMissionList)
	mux.HandleFunc("POST /api/missions", srv.handleMissionCreate)
	mux.HandleFunc("GET /api/missions/{id}", srv.handleMissionDescribe)
	mux.HandleFunc("GET /api/missions/{id}/flight-logs", srv.handleFlightLogList)
	mux.HandleFunc("POST /api/missions/{id}/start", srv.handleMissionStart)
	mux.HandleFunc("POST /api/missions/{id}/abort", srv.handleMissionAbort)
	mux.HandleFunc("GET /api/capture-sessions", srv.handleSessionList)
	mux.HandleFunc("POST /api/capture-sessions", srv.handleSessionCreate)
	mux.HandleFunc("GET /api/capture-sessions/{id}", srv.handleSessionDescribe)
	mux.HandleFunc("POST /api/capture-sessions/{id}/trigger", srv.handleSessionTrigger)
	mux.HandleFunc("POST /api/capture-sessions/{id}/end", srv.handleSessionEnd)
	mux.HandleFunc("GET /api/jobs", srv.handleJobList)
	mux.HandleFunc("POST /api/jobs", srv.handleJobCreate)
	mux.HandleFunc("GET /api/jobs/{id}", srv.handleJobDescribe)
	mux.HandleFunc("POST /api/jobs/{id}/advance", srv.handleJobAdvance)
	mux.HandleFunc("POST /api/jobs/{id}/complete", srv.handleJobComplete)
	mux.HandleFunc("POST /api/jobs/{id}/fail", srv.handleJobFail)
	mux.HandleFunc("POST /api/jobs/{id}/run", srv.handleJobRun)
	mux.HandleFunc("POST /api/calibrations", srv.handleCalibrationSave)
	mux.HandleFunc("GET /api/devices", srv.handleDeviceList)
	mux.Handle("GET /ws", d.wsServer)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, ipc.StatusResponse{
		Running:   status.Running,
		PID:       status.PID,
		Observers: status.Observers,
		Executing: status.Executing,
		EntityCounts: map[string]int{
			"missions":           status.EntityCounts.Missions,
			"executing_missions": status.EntityCounts.ExecutingMissions,
			"active_sessions":    status.EntityCounts.ActiveSessions,
			"processing_jobs":    status.EntityCounts.ProcessingJobs,
			"devices":            status.EntityCounts.Devices,
		},
		DatabasePath:  status.DatabasePath,
		LockFilePath:  status.LockFilePath,
		ListenAddress: status.ListenAddress,
	})
}

func (s *apiServer) handleMissionList(w http.ResponseWriter, r *http.Request) {
	missions, err := s.daemon.store.ListMissions(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	filter := make(map[store.MissionStatus]struct{})
	for _, value := range r.URL.Query()["status"] {
		if status, ok := store.ParseMissionStatus(value); ok {
			filter[status] = struct{}{}
		}
	}

	out := make([]ipc.Mission, 0, len(missions))
	for _, mission := range missions {
		if len(filter) > 0 {
			if _, ok := filter[mission.Status]; !ok {
				continue
			}
		}
		out = append(out, *mission)
	}
	s.writeJSON(w, http.StatusOK, ipc.MissionListResponse{Missions: out})
}

func (s *apiServer) handleMissionCreate(w http.ResponseWriter, r *http.Request) {
	var req ipc.CreateMissionRequest
	if !s.decode(w, r, &req) {
		return
	}
	mission, err := s.daemon.store.CreateMission(r.Context(), &store.Mission{
		Name:                  req.Name,
		Waypoints:             req.Waypoints,
		EstimatedDurationSecs: req.EstimatedDurationSecs,
		TotalDistanceM:        req.TotalDistanceM,
	})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, ipc.MissionResponse{Mission: *mission})
}

func (s *apiServer) handleMissionDescribe(w http.ResponseWriter, r *http.Request) {
	mission, err := s.daemon.store.GetMission(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if mission == nil {
		s.writeError(w, http.StatusNotFound, "mission not found")
		return
	}
	s.writeJSON(w, http.StatusOK, ipc.MissionResponse{Mission: *mission})
}

func (s *apiServer) handleFlightLogList(w http.ResponseWriter, r *http.Request) {
	flightLogs, err := s.daemon.store.ListFlightLogsByMission(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]ipc.FlightLog, 0, len(flightLogs))
	for _, flightLog := range flightLogs {
		out = append(out, *flightLog)
	}
	s.writeJSON(w, http.StatusOK, ipc.FlightLogListResponse{FlightLogs: out})
}

func (s *apiServer) handleMissionStart(w http.ResponseWriter, r *http.Request) {
	flightLog, err := s.daemon.executor.Start(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFault(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, ipc.StartMissionResponse{FlightLog: *flightLog})
}

func (s *apiServer) handleMissionAbort(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.executor.Abort(r.PathValue("id")); err != nil {
		s.writeFault(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]bool{"aborting": true})
}

func (s *apiServer) handleSessionList(w http.ResponseWriter, r *http.Request) {
	var status store.SessionStatus
	if value := strings.TrimSpace(r.URL.Query().Get("status")); value != "" {
		status = store.SessionStatus(value)
	}
	sessions, err := s.daemon.store.ListCaptureSessions(r.Context(), status)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]ipc.CaptureSession, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, *session)
	}
	s.writeJSON(w, http.StatusOK, ipc.SessionListResponse{Sessions: out})
}

func (s *apiServer) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req ipc.CreateSessionRequest
	if !s.decode(w, r, &req) {
		return
	}
	sessionType, ok := store.ParseSessionType(req.SessionType)
	if !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown session type %q", req.SessionType))
		return
	}
	session, err := s.daemon.captures.CreateSession(r.Context(), req.FlightLogID, sessionType, req.Settings)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ipc.SessionResponse{Session: *session})
}

func (s *apiServer) handleSessionDescribe(w http.ResponseWriter, r *http.Request) {
	session, err := s.daemon.store.GetCaptureSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if session == nil {
		s.writeError(w, http.StatusNotFound, "capture session not found")
		return
	}
	s.writeJSON(w, http.StatusOK, ipc.SessionResponse{Session: *session})
}

func (s *apiServer) handleSessionTrigger(w http.ResponseWriter, r *http.Request) {
	var req ipc.TriggerRequest
	if !s.decode(w, r, &req) {
		return
	}
	sessionID := r.PathValue("id")
	quality, err := s.daemon.captures.Trigger(r.Context(), sessionID, req.CaptureType, req.Settings)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ipc.TriggerResponse{
		SessionID:         sessionID,
		CaptureType:       quality.CaptureType,
		TimingOffsetMs:    quality.TimingOffsetMs,
		MaxTimingOffsetMs: quality.MaxTimingOffsetMs,
		TimingMet:         quality.TimingMet,
		SpatialAligned:    quality.SpatialAligned,
	})
}

func (s *apiServer) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	session, err := s.daemon.captures.EndSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFault(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ipc.SessionResponse{Session: *session})
}

func (s *apiServer) handleJobList(w http.ResponseWriter, r *http.Request) {
	var status store.JobStatus
	if value := strings.TrimSpace(r.URL.Query().Get("status")); value != "" {
		status = store.JobStatus(value)
	}
	jobList, err := s.daemon.store.ListJobs(r.Context(), status)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]ipc.ProcessingJob, 0, len(jobList))
	for _, job := range jobList {
		out = append(out, *job)
	}
	s.writeJSON(w, http.StatusOK, ipc.JobListResponse{Jobs: out})
}

func (s *apiServer) handleJobCreate(w http.ResponseWriter, r *http.Request) {
	var req ipc.CreateJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.daemon.jobs.Start(r.Context(), req.SessionID, req.Kind, req.TotalUnits)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ipc.JobResponse{Job: *job})
}

func (s *apiServer) handleJobDescribe(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, ipc.JobResponse{Job: *job})
}

func (s *apiServer) handleJobAdvance(w http.ResponseWriter, r *http.Request) {
	var req ipc.AdvanceJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.daemon.jobs.Advance(r.Context(), r.PathValue("id"), req.Fraction)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ipc.JobResponse{Job: *job})
}

func (s *apiServer) handleJobComplete(w http.ResponseWriter, r *http.Request) {
	var req ipc.CompleteJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.daemon.jobs.Complete(r.Context(), r.PathValue("id"), req.Artifacts)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ipc.JobResponse{Job: *job})
}

func (s *apiServer) handleJobFail(w http.ResponseWriter, r *http.Request) {
	var req ipc.FailJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.daemon.jobs.Fail(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ipc.JobResponse{Job: *job})
}

func (s *apiServer) handleJobRun(w http.ResponseWriter, r *http.Request) {
	var req ipc.RunJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Stages <= 0 {
		req.Stages = 5
	}
	if req.StageDelaySecs <= 0 {
		req.StageDelaySecs = 1
	}
	jobID := r.PathValue("id")
	job, err := s.daemon.store.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Status.IsTerminal() {
		s.writeError(w, http.StatusConflict, fmt.Sprintf("job %s is already %s", jobID, job.Status))
		return
	}

	// The pipeline outlives this request; it stops with the daemon.
	runCtx := s.daemon.ctx
	if runCtx == nil {
		runCtx = context.Background()
	}
	s.daemon.jobs.RunSimulated(runCtx, jobID, req.Stages,
		time.Duration(req.StageDelaySecs*float64(time.Second)))
	s.writeJSON(w, http.StatusAccepted, map[string]bool{"running": true})
}

func (s *apiServer) handleCalibrationSave(w http.ResponseWriter, r *http.Request) {
	var req ipc.SaveCalibrationRequest
	if !s.decode(w, r, &req) {
		return
	}
	calibration, err := s.daemon.store.SaveCalibration(r.Context(), &store.CameraCalibration{
		DeviceModel:       req.DeviceModel,
		ReprojectionError: req.ReprojectionError,
		CoveragePercent:   req.CoveragePercent,
		ImageCount:        req.ImageCount,
	})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, ipc.CalibrationResponse{Calibration: *calibration})
}

func (s *apiServer) handleDeviceList(w http.ResponseWriter, r *http.Request) {
	devices, err := s.daemon.store.ListDevices(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]ipc.Device, 0, len(devices))
	for _, device := range devices {
		out = append(out, *device)
	}
	s.writeJSON(w, http.StatusOK, ipc.DeviceListResponse{Devices: out})
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *apiServer) writeFault(w http.ResponseWriter, err error) {
	s.writeError(w, fault.HTTPStatus(err), err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
