// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/log"
)

type fakeJob struct {
	started chan struct{}
	finish  chan error

	mu          sync.Mutex
	progress    func(int32)
	correlation string
	pauses      int
	resumes     int
	cancelled   bool
}

func newFakeJob() *fakeJob {
	return &fakeJob{started: make(chan struct{}), finish: make(chan error, 1)}
}

func (j *fakeJob) Run(ctx context.Context, progress func(int32)) error {
	j.mu.Lock()
	j.progress = progress
	j.correlation = log.CorrelationIDFromContext(ctx)
	j.mu.Unlock()
	close(j.started)

	select {
	case err := <-j.finish:
		return err
	case <-ctx.Done():
		j.mu.Lock()
		j.cancelled = true
		j.mu.Unlock()
		return ctx.Err()
	}
}

func (j *fakeJob) Pause() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pauses++
	return nil
}

func (j *fakeJob) Resume() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.resumes++
	return nil
}

func (j *fakeJob) report(p int32) {
	j.mu.Lock()
	fn := j.progress
	j.mu.Unlock()
	fn(p)
}

func (j *fakeJob) correlationID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.correlation
}

func (j *fakeJob) counts() (pauses, resumes int, cancelled bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pauses, j.resumes, j.cancelled
}

// jobSet hands out fakeJobs and remembers them by key.
type jobSet struct {
	mu    sync.Mutex
	jobs  map[model.SessionKey]*fakeJob
	calls int
	err   error
}

func newJobSet() *jobSet {
	return &jobSet{jobs: make(map[model.SessionKey]*fakeJob)}
}

func (s *jobSet) NewJob(key model.SessionKey, _ model.Request) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	j := newFakeJob()
	s.jobs[key] = j
	return j, nil
}

func (s *jobSet) get(t *testing.T, key model.SessionKey) *fakeJob {
	t.Helper()
	s.mu.Lock()
	j, ok := s.jobs[key]
	s.mu.Unlock()
	require.True(t, ok, "no job for %s", key)
	select {
	case <-j.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("job %s did not start", key)
	}
	return j
}

func (s *jobSet) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// recordingCallback records delivered events as strings.
type recordingCallback struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingCallback) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recordingCallback) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recordingCallback) OnStarted(c model.ClientID, s model.SessionID) { r.add("started(%d,%d)", c, s) }
func (r *recordingCallback) OnPaused(c model.ClientID, s model.SessionID)  { r.add("paused(%d,%d)", c, s) }
func (r *recordingCallback) OnResumed(c model.ClientID, s model.SessionID) { r.add("resumed(%d,%d)", c, s) }
func (r *recordingCallback) OnProgressUpdate(c model.ClientID, s model.SessionID, p int32) {
	r.add("progress(%d,%d,%d)", c, s, p)
}
func (r *recordingCallback) OnFinish(c model.ClientID, s model.SessionID) { r.add("finish(%d,%d)", c, s) }
func (r *recordingCallback) OnError(c model.ClientID, s model.SessionID, code model.ErrorCode) {
	r.add("error(%d,%d,%s)", c, s, code)
}
func (r *recordingCallback) OnResourceLost()      { r.add("resource_lost") }
func (r *recordingCallback) OnResourceAvailable() { r.add("resource_available") }

func waitEvents(t *testing.T, cb *recordingCallback, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		got := cb.snapshot()
		return len(got) >= len(want)
	}, 2*time.Second, 5*time.Millisecond, "expected events %v, got %v", want, cb.snapshot())
	require.Equal(t, want, cb.snapshot())
}

func newTestDriver(t *testing.T, jobs JobFactory, opts ...Option) (*Driver, *recordingCallback) {
	t.Helper()
	d := New(jobs, append([]Option{WithProgressInterval(0)}, opts...)...)
	cb := &recordingCallback{}
	d.SetCallback(cb)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, d.Close(ctx))
	})
	return d, cb
}
