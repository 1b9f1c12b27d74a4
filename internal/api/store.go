package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus tracks a tuning run through its lifecycle.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether the run has finished in any way.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

type runRecord struct {
	run      Run
	cancel   context.CancelFunc
	progress func() float64
}

// RunStore holds tuning runs keyed by id. All methods are safe for
// concurrent use; Get returns a snapshot with live progress filled in.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*runRecord
}

func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]*runRecord)}
}

// Create registers a queued run and returns its snapshot.
func (s *RunStore) Create(kernelName, strategy string, now time.Time) Run {
	run := Run{
		ID:        uuid.NewString(),
		Status:    RunQueued,
		Kernel:    kernelName,
		Strategy:  strategy,
		CreatedAt: now,
	}
	s.mu.Lock()
	s.runs[run.ID] = &runRecord{run: run}
	s.mu.Unlock()
	return run
}

// Get returns a snapshot of the run.
func (s *RunStore) Get(id string) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return s.snapshot(rec), true
}

// List returns snapshots of every run, newest first.
func (s *RunStore) List() []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Run, 0, len(s.runs))
	for _, rec := range s.runs {
		out = append(out, s.snapshot(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete removes a terminal run. Active runs must be cancelled first.
func (s *RunStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[id]
	if !ok {
		return false, nil
	}
	if !rec.run.Status.Terminal() {
		return false, ErrRunActive
	}
	delete(s.runs, id)
	return true, nil
}

// Cancel requests cancellation of a queued or running run.
func (s *RunStore) Cancel(id string) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	if !rec.run.Status.Terminal() && rec.cancel != nil {
		rec.cancel()
	}
	return s.snapshot(rec), true
}

func (s *RunStore) setRunning(id string, cancel context.CancelFunc, progress func() float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.runs[id]; ok {
		rec.run.Status = RunRunning
		rec.cancel = cancel
		rec.progress = progress
	}
}

func (s *RunStore) finish(id string, status RunStatus, errMsg string, best map[string]int, bestMS float64, trials []Trial, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[id]
	if !ok {
		return
	}
	rec.run.Status = status
	rec.run.Error = errMsg
	rec.run.Best = best
	rec.run.BestTimeMS = bestMS
	rec.run.Trials = trials
	done := now
	rec.run.CompletedAt = &done
	rec.cancel = nil
	rec.progress = nil
}

// snapshot copies the run with live progress. Callers hold s.mu.
func (s *RunStore) snapshot(rec *runRecord) Run {
	run := rec.run
	switch {
	case run.Status == RunCompleted:
		run.Progress = 1
	case rec.progress != nil:
		run.Progress = rec.progress()
	}
	run.Trials = append([]Trial(nil), rec.run.Trials...)
	return run
}
