/*
Copyright (C) 2026 FleetCast Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetcastlabs/fleetcast/internal/observability"
)

// JobState is the lifecycle state of one job.
type JobState string

const (
	StateIdle    JobState = "IDLE"
	StateRunning JobState = "RUNNING"
)

// JobFunc is the body of a periodic job. Errors are terminal at the job
// boundary: they are logged and counted, never propagated.
type JobFunc func(ctx context.Context) error

// JobStatus is an observable snapshot of one job's health, so monitoring can
// assert on job behavior without scraping logs.
type JobStatus struct {
	Name         string    `json:"name"`
	State        JobState  `json:"state"`
	Interval     string    `json:"interval"`
	Runs         uint64    `json:"runs"`
	SkippedTicks uint64    `json:"skipped_ticks"`
	Failures     uint64    `json:"failures"`
	LastRun      time.Time `json:"last_run"`
	LastDuration string    `json:"last_duration,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

type job struct {
	name     string
	interval time.Duration
	fn       JobFunc

	// running is the IDLE/RUNNING gate. A tick that fails the CAS is a
	// skipped tick: the firing is dropped, never queued.
	running atomic.Bool

	mu           sync.Mutex
	runs         uint64
	skips        uint64
	failures     uint64
	lastRun      time.Time
	lastDuration time.Duration
	lastError    string
}

// Scheduler drives independent named periodic jobs. Executions of the same
// job never overlap; jobs with different names run concurrently.
type Scheduler struct {
	logger zerolog.Logger

	mu      sync.Mutex
	jobs    []*job
	byName  map[string]*job
	cancel  context.CancelFunc
	loopWG  sync.WaitGroup
	started bool
}

// New constructs an empty scheduler.
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger,
		byName: make(map[string]*job),
	}
}

// Add registers a named job. Jobs must be added before Start.
func (s *Scheduler) Add(name string, interval time.Duration, fn JobFunc) error {
	if name == "" {
		return fmt.Errorf("job name must not be empty")
	}
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	if fn == nil {
		return fmt.Errorf("job %s: func must not be nil", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("job %s: scheduler already started", name)
	}
	if _, exists := s.byName[name]; exists {
		return fmt.Errorf("job %s: already registered", name)
	}
	j := &job{name: name, interval: interval, fn: fn}
	s.jobs = append(s.jobs, j)
	s.byName[name] = j
	return nil
}

// Start launches one tick loop per job. It must be called at most once.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, j := range s.jobs {
		s.loopWG.Add(1)
		go s.runLoop(ctx, j)
	}

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
	return nil
}

// Stop cancels all tick loops. It does not wait for in-flight job bodies;
// their contexts are cancelled and they wind down on their own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.loopWG.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// Status reports a snapshot of every job, in registration order.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	jobs := make([]*job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.status())
	}
	return out
}

func (s *Scheduler) runLoop(ctx context.Context, j *job) {
	defer s.loopWG.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, j)
		}
	}
}

// fire starts one execution of j unless the previous one is still running,
// in which case the tick is dropped.
func (s *Scheduler) fire(ctx context.Context, j *job) {
	if !j.running.CompareAndSwap(false, true) {
		j.mu.Lock()
		j.skips++
		j.mu.Unlock()
		observability.SchedulerSkipsTotal.WithLabelValues(j.name).Inc()
		s.logger.Debug().Str("job", j.name).Msg("tick skipped, previous run still in flight")
		return
	}

	// The body runs off the tick loop so a slow job cannot stall the ticker
	// and so Stop never blocks on it.
	go s.execute(ctx, j)
}

func (s *Scheduler) execute(ctx context.Context, j *job) {
	defer j.running.Store(false)

	start := time.Now()
	observability.SchedulerTicksTotal.WithLabelValues(j.name).Inc()

	err := s.runBody(ctx, j)
	elapsed := time.Since(start)
	observability.JobDuration.WithLabelValues(j.name).Observe(elapsed.Seconds())

	j.mu.Lock()
	j.runs++
	j.lastRun = start.UTC()
	j.lastDuration = elapsed
	if err != nil {
		j.failures++
		j.lastError = err.Error()
	} else {
		j.lastError = ""
	}
	j.mu.Unlock()

	if err != nil {
		observability.SchedulerErrorsTotal.WithLabelValues(j.name).Inc()
		s.logger.Error().Err(err).Str("job", j.name).Dur("elapsed", elapsed).Msg("job failed")
		return
	}
	s.logger.Debug().Str("job", j.name).Dur("elapsed", elapsed).Msg("job completed")
}

// runBody invokes the job body, converting panics into errors so a broken job
// cannot take down the scheduler or its siblings.
func (s *Scheduler) runBody(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return j.fn(ctx)
}

func (j *job) status() JobStatus {
	state := StateIdle
	if j.running.Load() {
		state = StateRunning
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	st := JobStatus{
		Name:         j.name,
		State:        state,
		Interval:     j.interval.String(),
		Runs:         j.runs,
		SkippedTicks: j.skips,
		Failures:     j.failures,
		LastRun:      j.lastRun,
		LastError:    j.lastError,
	}
	if j.lastDuration > 0 {
		st.LastDuration = j.lastDuration.String()
	}
	return st
}
