package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const sessionColumns = "id, flight_log_id, session_type, settings_json, status, started_at, ended_at"

// CreateCaptureSession inserts a new session in the active state.
func (s *Store) CreateCaptureSession(ctx context.Context, session *CaptureSession) (*CaptureSession, error) {
	if session == nil {
		return nil, errors.New("capture session is nil")
	}
	if session.FlightLogID == "" {
		return nil, errors.New("capture session requires a flight log id")
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = SessionActive
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}

	settingsJSON, err := marshalJSON(session.Settings)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO capture_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.FlightLogID,
		session.Type,
		settingsJSON,
		session.Status,
		formatTime(session.StartedAt),
		nullableTime(session.EndedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert capture session: %w", err)
	}

	return s.GetCaptureSession(ctx, session.ID)
}

// GetCaptureSession fetches a session by id. A missing session returns (nil, nil).
func (s *Store) GetCaptureSession(ctx context.Context, id string) (*CaptureSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM capture_sessions WHERE id = ?`, id)
	session, err := scanCaptureSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get capture session: %w", err)
	}
	return session, nil
}

// ListCaptureSessions returns sessions, optionally filtered by status.
func (s *Store) ListCaptureSessions(ctx context.Context, status SessionStatus) ([]*CaptureSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM capture_sessions`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY started_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list capture sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*CaptureSession
	for rows.Next() {
		session, err := scanCaptureSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan capture session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// UpdateCaptureSession persists changes to an existing session.
func (s *Store) UpdateCaptureSession(ctx context.Context, session *CaptureSession) error {
	if session == nil {
		return errors.New("capture session is nil")
	}

	settingsJSON, err := marshalJSON(session.Settings)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE capture_sessions
         SET session_type = ?, settings_json = ?, status = ?, ended_at = ?
         WHERE id = ?`,
		session.Type,
		settingsJSON,
		session.Status,
		nullableTime(session.EndedAt),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("update capture session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update capture session rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("capture session %s not found", session.ID)
	}
	return nil
}

// SaveCalibration inserts a calibration record. When the record is active,
// any previously active calibration for the same device model is deactivated
// first so the one-active-per-model invariant holds.
func (s *Store) SaveCalibration(ctx context.Context, calibration *CameraCalibration) (*CameraCalibration, error) {
	if calibration == nil {
		return nil, errors.New("calibration is nil")
	}
	model := strings.TrimSpace(calibration.DeviceModel)
	if model == "" {
		return nil, errors.New("calibration requires a device model")
	}
	if calibration.CalibratedAt.IsZero() {
		calibration.CalibratedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin calibration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if calibration.IsActive {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE camera_calibrations SET is_active = 0 WHERE device_model = ? AND is_active = 1`,
			model,
		); err != nil {
			return nil, fmt.Errorf("deactivate calibration: %w", err)
		}
	}

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO camera_calibrations
            (device_model, reprojection_error, coverage_percent, image_count, calibrated_at, is_active)
         VALUES (?, ?, ?, ?, ?, ?)`,
		model,
		calibration.ReprojectionError,
		calibration.CoveragePercent,
		calibration.ImageCount,
		formatTime(calibration.CalibratedAt),
		boolToInt(calibration.IsActive),
	)
	if err != nil {
		return nil, fmt.Errorf("insert calibration: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("calibration insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit calibration: %w", err)
	}

	calibration.ID = id
	calibration.DeviceModel = model
	return calibration, nil
}

// GetActiveCalibration returns the active calibration for a device model, or
// (nil, nil) when none exists.
func (s *Store) GetActiveCalibration(ctx context.Context, deviceModel string) (*CameraCalibration, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, device_model, reprojection_error, coverage_percent, image_count, calibrated_at, is_active
         FROM camera_calibrations WHERE device_model = ? AND is_active = 1`,
		strings.TrimSpace(deviceModel),
	)

	var (
		calibration   CameraCalibration
		calibratedRaw sql.NullString
		active        int
	)
	err := row.Scan(
		&calibration.ID,
		&calibration.DeviceModel,
		&calibration.ReprojectionError,
		&calibration.CoveragePercent,
		&calibration.ImageCount,
		&calibratedRaw,
		&active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active calibration: %w", err)
	}
	calibration.IsActive = active != 0
	if calibration.CalibratedAt, err = parseTime(calibratedRaw); err != nil {
		return nil, err
	}
	return &calibration, nil
}

func scanCaptureSession(scanner interface{ Scan(dest ...any) error }) (*CaptureSession, error) {
	var (
		id          string
		flightLogID string
		sessionType string
		settingsRaw sql.NullString
		statusStr   string
		startedRaw  sql.NullString
		endedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&flightLogID,
		&sessionType,
		&settingsRaw,
		&statusStr,
		&startedRaw,
		&endedRaw,
	); err != nil {
		return nil, err
	}

	session := &CaptureSession{
		ID:          id,
		FlightLogID: flightLogID,
		Type:        SessionType(sessionType),
		Status:      SessionStatus(statusStr),
	}
	if err := unmarshalJSON(settingsRaw, &session.Settings); err != nil {
		return nil, err
	}
	var err error
	if session.StartedAt, err = parseTime(startedRaw); err != nil {
		return nil, err
	}
	if session.EndedAt, err = parseTimePtr(endedRaw); err != nil {
		return nil, err
	}
	return session, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
