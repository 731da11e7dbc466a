package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"groundlink/internal/events"
	"groundlink/internal/fault"
	"groundlink/internal/logging"
	"groundlink/internal/store"
)

// qualityCap bounds the computed quality score of a finished job.
const qualityCap = 95.0

// Processor owns processing job status transitions. Jobs with different ids
// advance fully independently; transitions on one id are serialized by a
// per-job mutex.
type Processor struct {
	store     *store.Store
	publisher events.Publisher
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	wg    sync.WaitGroup
}

// NewProcessor constructs a job processor.
func NewProcessor(st *store.Store, publisher events.Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		store:     st,
		publisher: publisher,
		logger:    logging.NewComponentLogger(logger, "jobs"),
		locks:     make(map[string]*sync.Mutex),
	}
}

// Start creates a job in the processing state. No broadcast is emitted beyond
// the initiating command's own response.
func (p *Processor) Start(ctx context.Context, ownerID, kind string, totalUnits int) (*store.ProcessingJob, error) {
	if ownerID == "" {
		return nil, fault.Wrap(fault.ErrValidation, "jobs", "start", "owner id is required", nil)
	}
	if totalUnits <= 0 {
		return nil, fault.Wrap(fault.ErrValidation, "jobs", "start", "total units must be positive", nil)
	}
	if kind == "" {
		kind = "processing"
	}

	job, err := p.store.CreateJob(ctx, &store.ProcessingJob{
		OwnerID:    ownerID,
		Kind:       kind,
		TotalUnits: totalUnits,
	})
	if err != nil {
		return nil, fault.Wrap(fault.ErrExecution, "jobs", "start", "persist job", err)
	}

	p.logger.Info("job started",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("kind", job.Kind),
		logging.Int("total_units", totalUnits),
	)
	return job, nil
}

// Advance moves a job's progress to the given fraction of its total units and
// broadcasts job-progress. Progress never regresses: a fraction below the
// job's current coverage is clamped up, keeping coverage monotone.
func (p *Processor) Advance(ctx context.Context, jobID string, fraction float64) (*store.ProcessingJob, error) {
	lock := p.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := p.loadProcessing(ctx, jobID, "advance")
	if err != nil {
		return nil, err
	}

	fraction = clampFraction(fraction)
	if floor := job.Coverage / 100; fraction < floor {
		fraction = floor
	}

	job.ProcessedUnits = int(math.Floor(fraction * float64(job.TotalUnits)))
	job.Coverage = fraction * 100
	job.QualityScore = math.Min(job.Coverage, qualityCap)
	job.ElapsedSecs = time.Since(job.CreatedAt).Seconds()

	if err := p.store.UpdateJob(ctx, job); err != nil {
		return nil, fault.Wrap(fault.ErrExecution, "jobs", "advance", "persist job", err)
	}

	p.publisher.Broadcast(events.TypeJobProgress, events.JobProgressPayload{
		JobID:          job.ID,
		OwnerID:        job.OwnerID,
		Kind:           job.Kind,
		ProcessedUnits: job.ProcessedUnits,
		TotalUnits:     job.TotalUnits,
		Coverage:       job.Coverage,
		ElapsedSecs:    job.ElapsedSecs,
	})
	return job, nil
}

// Complete transitions a job to completed with full coverage and broadcasts
// job-completed. Terminal: no further advances are accepted.
func (p *Processor) Complete(ctx context.Context, jobID string, artifacts []string) (*store.ProcessingJob, error) {
	lock := p.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := p.loadProcessing(ctx, jobID, "complete")
	if err != nil {
		return nil, err
	}

	job.Status = store.JobCompleted
	job.ProcessedUnits = job.TotalUnits
	job.Coverage = 100
	job.QualityScore = qualityCap
	job.ElapsedSecs = time.Since(job.CreatedAt).Seconds()
	job.Artifacts = artifacts

	if err := p.store.UpdateJob(ctx, job); err != nil {
		return nil, fault.Wrap(fault.ErrExecution, "jobs", "complete", "persist job", err)
	}

	p.publisher.Broadcast(events.TypeJobCompleted, events.JobCompletedPayload{
		JobID:        job.ID,
		OwnerID:      job.OwnerID,
		Kind:         job.Kind,
		QualityScore: job.QualityScore,
		Artifacts:    job.Artifacts,
	})
	p.logger.Info("job completed",
		logging.String(logging.FieldJobID, job.ID),
		logging.Float64("quality_score", job.QualityScore),
	)
	p.releaseLock(jobID)
	return job, nil
}

// Fail transitions a job to failed and broadcasts job-failed. Terminal.
func (p *Processor) Fail(ctx context.Context, jobID, reason string) (*store.ProcessingJob, error) {
	lock := p.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := p.loadProcessing(ctx, jobID, "fail")
	if err != nil {
		return nil, err
	}

	job.Status = store.JobFailed
	job.ElapsedSecs = time.Since(job.CreatedAt).Seconds()

	if err := p.store.UpdateJob(ctx, job); err != nil {
		return nil, fault.Wrap(fault.ErrExecution, "jobs", "fail", "persist job", err)
	}

	p.publisher.Broadcast(events.TypeJobFailed, events.JobFailedPayload{
		JobID:   job.ID,
		OwnerID: job.OwnerID,
		Kind:    job.Kind,
		Error:   reason,
	})
	p.logger.Warn("job failed",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("reason", reason),
	)
	p.releaseLock(jobID)
	return job, nil
}

// RunSimulated drives a job through evenly spaced stages as an independent
// goroutine, suspending stageDelay between stages. Cancellation is observed
// at the next suspension boundary and fails the job with exactly one terminal
// broadcast.
func (p *Processor) RunSimulated(ctx context.Context, jobID string, stages int, stageDelay time.Duration) {
	if stages <= 0 {
		stages = 1
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for i := 1; i <= stages; i++ {
			select {
			case <-ctx.Done():
				if _, err := p.Fail(context.Background(), jobID, "pipeline aborted"); err != nil {
					p.logger.Warn("abort fail transition", logging.String(logging.FieldJobID, jobID), logging.Error(err))
				}
				return
			case <-time.After(stageDelay):
			}
			if _, err := p.Advance(context.Background(), jobID, float64(i)/float64(stages)); err != nil {
				p.logger.Warn("pipeline advance", logging.String(logging.FieldJobID, jobID), logging.Error(err))
				return
			}
		}
		artifacts := []string{
			fmt.Sprintf("artifacts/%s/composite.tif", jobID),
			fmt.Sprintf("artifacts/%s/preview.jpg", jobID),
		}
		if _, err := p.Complete(context.Background(), jobID, artifacts); err != nil {
			p.logger.Warn("pipeline complete", logging.String(logging.FieldJobID, jobID), logging.Error(err))
		}
	}()
}

// Wait blocks until every simulated pipeline has finished.
func (p *Processor) Wait() {
	p.wg.Wait()
}

func (p *Processor) loadProcessing(ctx context.Context, jobID, op string) (*store.ProcessingJob, error) {
	if jobID == "" {
		return nil, fault.Wrap(fault.ErrValidation, "jobs", op, "job id is required", nil)
	}
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fault.Wrap(fault.ErrExecution, "jobs", op, "load job", err)
	}
	if job == nil {
		return nil, fault.Wrap(fault.ErrNotFound, "jobs", op, fmt.Sprintf("job %s", jobID), nil)
	}
	if job.Status.IsTerminal() {
		return nil, fault.Wrap(fault.ErrPrecondition, "jobs", op, fmt.Sprintf("job %s is %s", jobID, job.Status), nil)
	}
	return job, nil
}

func (p *Processor) jobLock(jobID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[jobID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[jobID] = lock
	}
	return lock
}

func (p *Processor) releaseLock(jobID string) {
	p.mu.Lock()
	delete(p.locks, jobID)
	p.mu.Unlock()
}

func clampFraction(fraction float64) float64 {
	if fraction < 0 || math.IsNaN(fraction) {
		return 0
	}
	if fraction > 1 {
		return 1
	}
	return fraction
}
