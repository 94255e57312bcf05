/*
Copyright (C) 2026 FleetCast Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestAddValidation(t *testing.T) {
	noop := func(ctx context.Context) error { return nil }

	tests := []struct {
		name     string
		jobName  string
		interval time.Duration
		fn       JobFunc
	}{
		{name: "empty name", jobName: "", interval: time.Second, fn: noop},
		{name: "zero interval", jobName: "a", interval: 0, fn: noop},
		{name: "negative interval", jobName: "a", interval: -time.Second, fn: noop},
		{name: "nil func", jobName: "a", interval: time.Second, fn: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(zerolog.Nop())
			if err := s.Add(tt.jobName, tt.interval, tt.fn); err == nil {
				t.Fatal("expected Add to fail")
			}
		})
	}
}

func TestAddRejectsDuplicateNames(t *testing.T) {
	s := New(zerolog.Nop())
	noop := func(ctx context.Context) error { return nil }

	if err := s.Add("job", time.Second, noop); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := s.Add("job", time.Second, noop); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
}

func TestStartTwiceFails(t *testing.T) {
	s := New(zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer s.Stop()
	if err := s.Start(); err == nil {
		t.Fatal("expected second start to fail")
	}
}

func TestAddAfterStartFails(t *testing.T) {
	s := New(zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	if err := s.Add("late", time.Second, func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("expected Add after Start to fail")
	}
}

// A job whose body outlives its interval must have ticks dropped, not queued:
// the total invocation count stays well below elapsed/interval.
func TestSlowJobCoalescesTicks(t *testing.T) {
	const (
		interval = 20 * time.Millisecond
		bodyTime = 70 * time.Millisecond
		elapsed  = 300 * time.Millisecond
	)

	var invocations atomic.Int64
	s := New(zerolog.Nop())
	if err := s.Add("slow", interval, func(ctx context.Context) error {
		invocations.Add(1)
		time.Sleep(bodyTime)
		return nil
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(elapsed)
	s.Stop()

	got := invocations.Load()
	naive := int64(elapsed / interval) // what an overlapping scheduler would reach
	if got == 0 {
		t.Fatal("job never ran")
	}
	if got >= naive {
		t.Fatalf("got %d invocations, expected fewer than %d (ticks must be dropped, not queued)", got, naive)
	}

	status := s.Status()
	if len(status) != 1 {
		t.Fatalf("expected 1 job status, got %d", len(status))
	}
	if status[0].SkippedTicks == 0 {
		t.Fatal("expected skipped ticks to be recorded for a slow job")
	}
}

// A panicking job must not stop its own future firings or other jobs.
func TestPanickingJobIsIsolated(t *testing.T) {
	var healthyRuns, brokenRuns atomic.Int64

	s := New(zerolog.Nop())
	if err := s.Add("broken", 20*time.Millisecond, func(ctx context.Context) error {
		brokenRuns.Add(1)
		panic("boom")
	}); err != nil {
		t.Fatalf("add broken: %v", err)
	}
	if err := s.Add("healthy", 20*time.Millisecond, func(ctx context.Context) error {
		healthyRuns.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("add healthy: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	s.Stop()

	if healthyRuns.Load() < 2 {
		t.Fatalf("healthy job ran %d times, expected at least 2", healthyRuns.Load())
	}
	if brokenRuns.Load() < 2 {
		t.Fatalf("broken job ran %d times, expected it to keep firing after panics", brokenRuns.Load())
	}

	for _, st := range s.Status() {
		if st.Name == "broken" {
			if st.Failures == 0 {
				t.Fatal("expected failures recorded for broken job")
			}
			if st.LastError == "" {
				t.Fatal("expected last error recorded for broken job")
			}
		}
	}
}

// An erroring job is retried at its next tick with no backoff.
func TestFailingJobKeepsFiring(t *testing.T) {
	var runs atomic.Int64
	s := New(zerolog.Nop())
	if err := s.Add("failing", 20*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("store went away")
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(110 * time.Millisecond)
	s.Stop()

	if runs.Load() < 3 {
		t.Fatalf("failing job ran %d times, expected at least 3", runs.Load())
	}
}

func TestStatusReportsRunsAndState(t *testing.T) {
	var runs atomic.Int64
	s := New(zerolog.Nop())
	if err := s.Add("counter", 15*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	s.Stop()

	status := s.Status()
	if len(status) != 1 {
		t.Fatalf("expected 1 status entry, got %d", len(status))
	}
	st := status[0]
	if st.Name != "counter" {
		t.Fatalf("unexpected name %q", st.Name)
	}
	if st.Runs == 0 {
		t.Fatal("expected runs to be recorded")
	}
	if st.LastRun.IsZero() {
		t.Fatal("expected last run timestamp")
	}
	if st.LastError != "" {
		t.Fatalf("unexpected last error %q", st.LastError)
	}
	if st.Interval != "15ms" {
		t.Fatalf("unexpected interval %q", st.Interval)
	}
}

// Stop must not wait for an in-flight job body.
func TestStopDoesNotBlockOnInflightJob(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	defer close(release)

	s := New(zerolog.Nop())
	if err := s.Add("stuck", 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("job never started")
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Stop blocked on an in-flight job body")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
	s.Stop() // second stop is a no-op
}
