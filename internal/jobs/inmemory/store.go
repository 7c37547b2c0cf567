package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ametsa/bachat-core/internal/jobs"
)

// Store keeps job state in memory. Data is lost on restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.Job)}
}

func (s *Store) SaveJob(_ context.Context, job *jobs.Job) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *job
	s.jobs[job.JobID] = &cp
	return nil
}

func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob: job not found: %s", jobID)
	}
	cp := *job
	return &cp, nil
}

// ListJobs returns matching jobs, newest first.
func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.Job
	for _, job := range s.jobs {
		if filter.Type != "" && job.Type != filter.Type {
			continue
		}
		if filter.StatementID != "" && job.StatementID != filter.StatementID {
			continue
		}
		if filter.AccountID != "" && job.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		cp := *job
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.Job{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) UpdateJobStatus(_ context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("UpdateJobStatus: job not found: %s", jobID)
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
