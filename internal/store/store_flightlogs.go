package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const flightLogColumns = "id, mission_id, status, start_time, end_time, telemetry_json, actual_duration_secs, actual_distance_m, failure_note"

// CreateFlightLog inserts a new flight log for one execution attempt.
func (s *Store) CreateFlightLog(ctx context.Context, log *FlightLog) (*FlightLog, error) {
	if log == nil {
		return nil, errors.New("flight log is nil")
	}
	if log.MissionID == "" {
		return nil, errors.New("flight log requires a mission id")
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.StartTime.IsZero() {
		log.StartTime = time.Now().UTC()
	}
	if log.Status == "" {
		log.Status = MissionExecuting
	}

	telemetryJSON, err := marshalJSON(log.Telemetry)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO flight_logs (`+flightLogColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.MissionID,
		log.Status,
		formatTime(log.StartTime),
		nullableTime(log.EndTime),
		telemetryJSON,
		log.ActualDurationSecs,
		log.ActualDistanceM,
		nullableString(log.FailureNote),
	)
	if err != nil {
		return nil, fmt.Errorf("insert flight log: %w", err)
	}

	return s.GetFlightLog(ctx, log.ID)
}

// GetFlightLog fetches a flight log by id. A missing log returns (nil, nil).
func (s *Store) GetFlightLog(ctx context.Context, id string) (*FlightLog, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+flightLogColumns+` FROM flight_logs WHERE id = ?`, id)
	log, err := scanFlightLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get flight log: %w", err)
	}
	return log, nil
}

// ListFlightLogsByMission returns a mission's flight logs, oldest first.
func (s *Store) ListFlightLogsByMission(ctx context.Context, missionID string) ([]*FlightLog, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+flightLogColumns+` FROM flight_logs WHERE mission_id = ? ORDER BY start_time, id`,
		missionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list flight logs: %w", err)
	}
	defer rows.Close()

	var logs []*FlightLog
	for rows.Next() {
		log, err := scanFlightLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flight log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// UpdateFlightLog persists changes to an existing flight log. Telemetry is
// truncated to the sliding window before writing.
func (s *Store) UpdateFlightLog(ctx context.Context, log *FlightLog) error {
	if log == nil {
		return errors.New("flight log is nil")
	}
	if excess := len(log.Telemetry) - TelemetryWindow; excess > 0 {
		log.Telemetry = append(log.Telemetry[:0], log.Telemetry[excess:]...)
	}

	telemetryJSON, err := marshalJSON(log.Telemetry)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE flight_logs
         SET status = ?, end_time = ?, telemetry_json = ?, actual_duration_secs = ?,
             actual_distance_m = ?, failure_note = ?
         WHERE id = ?`,
		log.Status,
		nullableTime(log.EndTime),
		telemetryJSON,
		log.ActualDurationSecs,
		log.ActualDistanceM,
		nullableString(log.FailureNote),
		log.ID,
	)
	if err != nil {
		return fmt.Errorf("update flight log: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update flight log rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("flight log %s not found", log.ID)
	}
	return nil
}

func scanFlightLog(scanner interface{ Scan(dest ...any) error }) (*FlightLog, error) {
	var (
		id           string
		missionID    string
		statusStr    string
		startRaw     sql.NullString
		endRaw       sql.NullString
		telemetryRaw sql.NullString
		actualSecs   float64
		actualDist   float64
		failureNote  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&missionID,
		&statusStr,
		&startRaw,
		&endRaw,
		&telemetryRaw,
		&actualSecs,
		&actualDist,
		&failureNote,
	); err != nil {
		return nil, err
	}

	log := &FlightLog{
		ID:                 id,
		MissionID:          missionID,
		Status:             MissionStatus(statusStr),
		ActualDurationSecs: actualSecs,
		ActualDistanceM:    actualDist,
		FailureNote:        failureNote.String,
	}
	if err := unmarshalJSON(telemetryRaw, &log.Telemetry); err != nil {
		return nil, err
	}
	var err error
	if log.StartTime, err = parseTime(startRaw); err != nil {
		return nil, err
	}
	if log.EndTime, err = parseTimePtr(endRaw); err != nil {
		return nil, err
	}
	return log, nil
}
