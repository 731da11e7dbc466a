package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const jobColumns = "id, owner_id, kind, status, processed_units, total_units, coverage, quality_score, elapsed_secs, artifacts_json, created_at, updated_at"

// CreateJob inserts a new processing job in the processing state.
func (s *Store) CreateJob(ctx context.Context, job *ProcessingJob) (*ProcessingJob, error) {
	if job == nil {
		return nil, errors.New("job is nil")
	}
	if job.OwnerID == "" {
		return nil, errors.New("job requires an owner id")
	}
	if job.TotalUnits <= 0 {
		return nil, errors.New("job requires positive total units")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = JobProcessing
	}

	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	artifactsJSON, err := marshalJSON(job.Artifacts)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO processing_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.OwnerID,
		job.Kind,
		job.Status,
		job.ProcessedUnits,
		job.TotalUnits,
		job.Coverage,
		job.QualityScore,
		job.ElapsedSecs,
		artifactsJSON,
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetJob(ctx, job.ID)
}

// GetJob fetches a job by id. A missing job returns (nil, nil).
func (s *Store) GetJob(ctx context.Context, id string) (*ProcessingJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM processing_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs, optionally filtered by status, newest first.
func (s *Store) ListJobs(ctx context.Context, status JobStatus) ([]*ProcessingJob, error) {
	query := `SELECT ` + jobColumns + ` FROM processing_jobs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*ProcessingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJob persists changes to an existing job.
func (s *Store) UpdateJob(ctx context.Context, job *ProcessingJob) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()

	artifactsJSON, err := marshalJSON(job.Artifacts)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE processing_jobs
         SET status = ?, processed_units = ?, coverage = ?, quality_score = ?,
             elapsed_secs = ?, artifacts_json = ?, updated_at = ?
         WHERE id = ?`,
		job.Status,
		job.ProcessedUnits,
		job.Coverage,
		job.QualityScore,
		job.ElapsedSecs,
		artifactsJSON,
		formatTime(job.UpdatedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s not found", job.ID)
	}
	return nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*ProcessingJob, error) {
	var (
		id           string
		ownerID      string
		kind         string
		statusStr    string
		processed    int
		total        int
		coverage     float64
		quality      float64
		elapsed      float64
		artifactsRaw sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&ownerID,
		&kind,
		&statusStr,
		&processed,
		&total,
		&coverage,
		&quality,
		&elapsed,
		&artifactsRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &ProcessingJob{
		ID:             id,
		OwnerID:        ownerID,
		Kind:           kind,
		Status:         JobStatus(statusStr),
		ProcessedUnits: processed,
		TotalUnits:     total,
		Coverage:       coverage,
		QualityScore:   quality,
		ElapsedSecs:    elapsed,
	}
	if err := unmarshalJSON(artifactsRaw, &job.Artifacts); err != nil {
		return nil, err
	}
	var err error
	if job.CreatedAt, err = parseTime(createdRaw); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTime(updatedRaw); err != nil {
		return nil, err
	}
	return job, nil
}
