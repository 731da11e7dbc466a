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

const missionColumns = "id, name, waypoints_json, status, estimated_duration_secs, total_distance_m, created_at, updated_at"

// CreateMission inserts a new mission in the ready state. An empty ID is
// assigned a fresh UUID.
func (s *Store) CreateMission(ctx context.Context, mission *Mission) (*Mission, error) {
	if mission == nil {
		return nil, errors.New("mission is nil")
	}
	if strings.TrimSpace(mission.Name) == "" {
		return nil, errors.New("mission name is required")
	}
	if len(mission.Waypoints) == 0 {
		return nil, errors.New("mission requires at least one waypoint")
	}
	if mission.ID == "" {
		mission.ID = uuid.NewString()
	}
	if mission.Status == "" {
		mission.Status = MissionReady
	}

	now := time.Now().UTC()
	mission.CreatedAt = now
	mission.UpdatedAt = now

	waypointsJSON, err := marshalJSON(mission.Waypoints)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO missions (`+missionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		mission.ID,
		mission.Name,
		waypointsJSON,
		mission.Status,
		mission.EstimatedDurationSecs,
		mission.TotalDistanceM,
		formatTime(mission.CreatedAt),
		formatTime(mission.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert mission: %w", err)
	}

	return s.GetMission(ctx, mission.ID)
}

// GetMission fetches a mission by id. A missing mission returns (nil, nil).
func (s *Store) GetMission(ctx context.Context, id string) (*Mission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+missionColumns+` FROM missions WHERE id = ?`, id)
	mission, err := scanMission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mission: %w", err)
	}
	return mission, nil
}

// ListMissions returns all missions ordered by creation time.
func (s *Store) ListMissions(ctx context.Context) ([]*Mission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+missionColumns+` FROM missions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()

	var missions []*Mission
	for rows.Next() {
		mission, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mission: %w", err)
		}
		missions = append(missions, mission)
	}
	return missions, rows.Err()
}

// UpdateMission persists changes to an existing mission.
func (s *Store) UpdateMission(ctx context.Context, mission *Mission) error {
	if mission == nil {
		return errors.New("mission is nil")
	}
	mission.UpdatedAt = time.Now().UTC()

	waypointsJSON, err := marshalJSON(mission.Waypoints)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE missions
         SET name = ?, waypoints_json = ?, status = ?, estimated_duration_secs = ?,
             total_distance_m = ?, updated_at = ?
         WHERE id = ?`,
		mission.Name,
		waypointsJSON,
		mission.Status,
		mission.EstimatedDurationSecs,
		mission.TotalDistanceM,
		formatTime(mission.UpdatedAt),
		mission.ID,
	)
	if err != nil {
		return fmt.Errorf("update mission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update mission rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mission %s not found", mission.ID)
	}
	return nil
}

func scanMission(scanner interface{ Scan(dest ...any) error }) (*Mission, error) {
	var (
		id            string
		name          string
		waypointsRaw  sql.NullString
		statusStr     string
		estimatedSecs float64
		totalDistance float64
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&name,
		&waypointsRaw,
		&statusStr,
		&estimatedSecs,
		&totalDistance,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	mission := &Mission{
		ID:                    id,
		Name:                  name,
		Status:                MissionStatus(statusStr),
		EstimatedDurationSecs: estimatedSecs,
		TotalDistanceM:        totalDistance,
	}
	if err := unmarshalJSON(waypointsRaw, &mission.Waypoints); err != nil {
		return nil, err
	}
	var err error
	if mission.CreatedAt, err = parseTime(createdRaw); err != nil {
		return nil, err
	}
	if mission.UpdatedAt, err = parseTime(updatedRaw); err != nil {
		return nil, err
	}
	return mission, nil
}
