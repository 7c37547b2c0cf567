package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ametsa/bachat-core/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus, timeout time.Duration) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s never reached %s, last seen: %+v", jobID, want, job)
	return nil
}

func TestQueueProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 2, store)
	defer q.Close()

	var handled atomic.Int32
	err := q.Start(context.Background(), func(_ context.Context, job *jobs.Job) error {
		if job.Type != jobs.JobTypeParseStatement || job.StatementID != "st-1" {
			t.Errorf("handler got unexpected job: %+v", job)
		}
		handled.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	job := jobs.NewParseStatementJob("st-1", "gs://docs/st-1.pdf")
	if err := q.Publish(context.Background(), job); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if job.JobID == "" || job.MaxRetries == 0 {
		t.Errorf("publish did not apply defaults: %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted, 2*time.Second)
	if handled.Load() != 1 {
		t.Errorf("handler ran %d times", handled.Load())
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Errorf("timestamps not stamped: %+v", done)
	}
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 1, store)
	defer q.Close()

	var attempts atomic.Int32
	if err := q.Start(context.Background(), func(context.Context, *jobs.Job) error {
		if attempts.Add(1) < 2 {
			return errors.New("transient")
		}
		return nil
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	job := jobs.NewSyncAccountJob("acc-1", "MANUAL")
	if err := q.Publish(context.Background(), job); err != nil {
		t.Fatalf("publish: %v", err)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted, 5*time.Second)
	if attempts.Load() != 2 {
		t.Errorf("handler ran %d times, want 2", attempts.Load())
	}
	if done.Error != "" {
		t.Errorf("completed job kept error %q", done.Error)
	}
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 1, store)
	defer q.Close()

	if err := q.Start(context.Background(), func(context.Context, *jobs.Job) error {
		return errors.New("permanent")
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	job := jobs.NewSyncAccountJob("acc-1", "MANUAL")
	job.MaxRetries = 1
	if err := q.Publish(context.Background(), job); err != nil {
		t.Fatalf("publish: %v", err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed, 5*time.Second)
	if failed.Error != "permanent" {
		t.Errorf("error = %q", failed.Error)
	}
	if failed.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", failed.RetryCount)
	}
}

func TestPublishAfterStopFails(t *testing.T) {
	q := NewQueue(1, 1, nil)
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := q.Publish(context.Background(), jobs.NewSyncAccountJob("acc-1", "MANUAL")); err == nil {
		t.Fatal("publish on a closed queue should fail")
	}
}

func TestStoreListFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	seed := []*jobs.Job{
		{JobID: "j1", Type: jobs.JobTypeParseStatement, StatementID: "st-1", Status: jobs.JobStatusCompleted, CreatedAt: base},
		{JobID: "j2", Type: jobs.JobTypeSyncAccount, AccountID: "acc-1", Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Minute)},
		{JobID: "j3", Type: jobs.JobTypeSyncAccount, AccountID: "acc-1", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, j := range seed {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("save %s: %v", j.JobID, err)
		}
	}

	got, err := store.ListJobs(ctx, jobs.JobFilter{AccountID: "acc-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].JobID != "j3" || got[1].JobID != "j2" {
		t.Errorf("account filter returned wrong jobs: %+v", got)
	}

	got, err = store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted, Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].JobID != "j3" {
		t.Errorf("status filter with limit returned %+v", got)
	}
}
