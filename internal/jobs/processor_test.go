package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"groundlink/internal/events"
	"groundlink/internal/fault"
	"groundlink/internal/jobs"
	"groundlink/internal/logging"
	"groundlink/internal/store"
	"groundlink/internal/testsupport"
)

func newProcessor(t *testing.T) (*jobs.Processor, *store.Store, *testsupport.RecordingPublisher) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	publisher := &testsupport.RecordingPublisher{}
	return jobs.NewProcessor(st, publisher, logging.NewNop()), st, publisher
}

func TestStartCreatesProcessingJob(t *testing.T) {
	processor, _, publisher := newProcessor(t)

	job, err := processor.Start(context.Background(), "session-1", "orthomosaic", 200)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.Status != store.JobProcessing {
		t.Fatalf("status = %s, want processing", job.Status)
	}
	if job.ProcessedUnits != 0 || job.Coverage != 0 {
		t.Fatalf("new job should start at zero, got %+v", job)
	}
	if len(publisher.Events()) != 0 {
		t.Fatal("job creation does not broadcast")
	}
}

func TestAdvanceComputesCoverageAndQuality(t *testing.T) {
	processor, _, publisher := newProcessor(t)
	ctx := context.Background()

	job, err := processor.Start(ctx, "session-1", "orthomosaic", 200)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	advanced, err := processor.Advance(ctx, job.ID, 0.5)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if advanced.ProcessedUnits != 100 {
		t.Fatalf("processed units = %d, want 100", advanced.ProcessedUnits)
	}
	if advanced.Coverage != 50 {
		t.Fatalf("coverage = %v, want 50", advanced.Coverage)
	}
	if advanced.QualityScore != 50 {
		t.Fatalf("quality = %v, want 50", advanced.QualityScore)
	}

	// Quality is capped below full coverage.
	advanced, err = processor.Advance(ctx, job.ID, 1.0)
	if err != nil {
		t.Fatalf("Advance full: %v", err)
	}
	if advanced.Coverage != 100 {
		t.Fatalf("coverage = %v", advanced.Coverage)
	}
	if advanced.QualityScore != 95 {
		t.Fatalf("quality = %v, want capped at 95", advanced.QualityScore)
	}

	if n := len(publisher.EventsOfType(events.TypeJobProgress)); n != 2 {
		t.Fatalf("job-progress events = %d", n)
	}
}

func TestAdvanceNeverRegresses(t *testing.T) {
	processor, _, _ := newProcessor(t)
	ctx := context.Background()

	job, err := processor.Start(ctx, "session-1", "thermal-map", 100)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := processor.Advance(ctx, job.ID, 0.8); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	clamped, err := processor.Advance(ctx, job.ID, 0.3)
	if err != nil {
		t.Fatalf("Advance regress: %v", err)
	}
	if clamped.Coverage < 80 {
		t.Fatalf("coverage regressed to %v", clamped.Coverage)
	}

	// Out-of-range fractions clamp instead of erroring.
	over, err := processor.Advance(ctx, job.ID, 1.7)
	if err != nil {
		t.Fatalf("Advance >1: %v", err)
	}
	if over.Coverage != 100 {
		t.Fatalf("coverage = %v, want 100", over.Coverage)
	}
}

func TestTerminalJobsAreImmutable(t *testing.T) {
	processor, _, publisher := newProcessor(t)
	ctx := context.Background()

	job, err := processor.Start(ctx, "session-1", "alignment", 10)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	completed, err := processor.Complete(ctx, job.ID, []string{"out/map.tif"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.Status != store.JobCompleted || completed.Coverage != 100 {
		t.Fatalf("completed job = %+v", completed)
	}

	if _, err := processor.Advance(ctx, job.ID, 0.5); !errors.Is(err, fault.ErrPrecondition) {
		t.Fatalf("advance after complete = %v, want precondition", err)
	}
	if _, err := processor.Complete(ctx, job.ID, nil); !errors.Is(err, fault.ErrPrecondition) {
		t.Fatalf("double complete = %v, want precondition", err)
	}
	if _, err := processor.Fail(ctx, job.ID, "late"); !errors.Is(err, fault.ErrPrecondition) {
		t.Fatalf("fail after complete = %v, want precondition", err)
	}

	if n := len(publisher.EventsOfType(events.TypeJobCompleted)); n != 1 {
		t.Fatalf("job-completed events = %d, want exactly 1", n)
	}
	if n := len(publisher.EventsOfType(events.TypeJobFailed)); n != 0 {
		t.Fatalf("unexpected job-failed events: %d", n)
	}
}

func TestFailBroadcastsReason(t *testing.T) {
	processor, _, publisher := newProcessor(t)
	ctx := context.Background()

	job, err := processor.Start(ctx, "session-1", "orthomosaic", 10)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	failed, err := processor.Fail(ctx, job.ID, "sensor dropout")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if failed.Status != store.JobFailed {
		t.Fatalf("status = %s", failed.Status)
	}

	failures := publisher.EventsOfType(events.TypeJobFailed)
	if len(failures) != 1 {
		t.Fatalf("job-failed events = %d", len(failures))
	}
	payload := failures[0].Data.(events.JobFailedPayload)
	if payload.Error != "sensor dropout" {
		t.Fatalf("reason = %q", payload.Error)
	}
}

func TestRunSimulatedCompletesWithArtifacts(t *testing.T) {
	processor, st, publisher := newProcessor(t)
	ctx := context.Background()

	job, err := processor.Start(ctx, "session-1", "orthomosaic", 50)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	processor.RunSimulated(ctx, job.ID, 4, time.Millisecond)
	processor.Wait()

	final, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if final.Status != store.JobCompleted {
		t.Fatalf("status = %s, want completed", final.Status)
	}
	if len(final.Artifacts) != 2 {
		t.Fatalf("artifacts = %v", final.Artifacts)
	}
	if n := len(publisher.EventsOfType(events.TypeJobProgress)); n != 4 {
		t.Fatalf("job-progress events = %d, want 4", n)
	}
	if n := len(publisher.EventsOfType(events.TypeJobCompleted)); n != 1 {
		t.Fatalf("job-completed events = %d", n)
	}
}

func TestRunSimulatedAbortFailsJob(t *testing.T) {
	processor, st, publisher := newProcessor(t)

	job, err := processor.Start(context.Background(), "session-1", "orthomosaic", 50)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cancel()
	processor.RunSimulated(runCtx, job.ID, 4, time.Hour)
	processor.Wait()

	final, err := st.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if final.Status != store.JobFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	if n := len(publisher.EventsOfType(events.TypeJobFailed)); n != 1 {
		t.Fatalf("job-failed events = %d, want exactly 1", n)
	}
}
