// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build linux

package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/engine"
)

// fakeFFmpeg writes an executable shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func newTestJob(t *testing.T, cfg Config) *Job {
	t.Helper()
	job, err := NewFactory(cfg).NewJob(model.Key(1, 1), model.Request{
		SourcePath:      "/in.mp4",
		DestinationPath: "/out.mp4",
	})
	require.NoError(t, err)
	return job.(*Job)
}

type progressLog struct {
	mu     sync.Mutex
	values []int32
}

func (p *progressLog) add(v int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, v)
}

func (p *progressLog) snapshot() []int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int32(nil), p.values...)
}

func procState(t *testing.T, pid int) string {
	t.Helper()
	raw, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	require.NoError(t, err)
	s := string(raw)
	return s[strings.LastIndexByte(s, ')')+2:][:1]
}

func runAsync(job *Job, ctx context.Context, progress func(int32)) <-chan error {
	done := make(chan error, 1)
	go func() { done <- job.Run(ctx, progress) }()
	return done
}

func waitResult(t *testing.T, done <-chan error, within time.Duration) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(within):
		t.Fatal("job did not return")
		return nil
	}
}

func TestJob_RunsToCompletion(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	bin := fakeFFmpeg(t, `
echo "  Duration: 00:00:10.00, start: 0.000000, bitrate: 1 kb/s" >&2
sleep 0.2
echo "out_time_us=5000000"
echo "progress=continue"
echo "out_time_us=10000000"
echo "progress=end"`)
	job := newTestJob(t, Config{Bin: bin})

	var progress progressLog
	require.NoError(t, job.Run(context.Background(), progress.add))
	assert.Equal(t, []int32{50, 99, 100}, progress.snapshot())
}

func TestJob_FailureIsClassified(t *testing.T) {
	bin := fakeFFmpeg(t, `
echo "/in.mp4: Invalid data found when processing input" >&2
exit 1`)
	job := newTestJob(t, Config{Bin: bin})

	err := job.Run(context.Background(), func(int32) {})
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.ExitCode)
	assert.Contains(t, err.Error(), "Invalid data found")
	assert.Equal(t, model.ErrorMalformed, engine.CodeOf(err))
}

func TestJob_MissingBinary(t *testing.T) {
	job := newTestJob(t, Config{Bin: filepath.Join(t.TempDir(), "missing")})
	err := job.Run(context.Background(), func(int32) {})
	require.Error(t, err)
	assert.NotEqual(t, model.ErrorNone, engine.CodeOf(err))
}

func TestJob_CancelTerminates(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	job := newTestJob(t, Config{Bin: fakeFFmpeg(t, "exec sleep 30")})
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(job, ctx, func(int32) {})

	time.Sleep(100 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, waitResult(t, done, 5*time.Second), context.Canceled)
}

func TestJob_PauseResumeSignalsGroup(t *testing.T) {
	job := newTestJob(t, Config{Bin: fakeFFmpeg(t, "exec sleep 30")})
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(job, ctx, func(int32) {})
	defer func() {
		cancel()
		waitResult(t, done, 5*time.Second)
	}()

	var pid int
	require.Eventually(t, func() bool {
		job.mu.Lock()
		defer job.mu.Unlock()
		if job.cmd == nil || job.cmd.Process == nil {
			return false
		}
		pid = job.cmd.Process.Pid
		return true
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, job.Pause())
	require.NoError(t, job.Pause())
	require.Eventually(t, func() bool { return procState(t, pid) == "T" }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, job.Resume())
	require.Eventually(t, func() bool { return procState(t, pid) != "T" }, 2*time.Second, 5*time.Millisecond)
}

func TestJob_StallTerminates(t *testing.T) {
	job := newTestJob(t, Config{
		Bin:          fakeFFmpeg(t, "exec sleep 30"),
		StartTimeout: 200 * time.Millisecond,
		StallTimeout: 200 * time.Millisecond,
		KillTimeout:  time.Second,
	})
	err := waitResult(t, runAsync(job, context.Background(), func(int32) {}), 5*time.Second)
	assert.ErrorIs(t, err, ErrStalled)
}

func TestJob_PausedJobDoesNotStall(t *testing.T) {
	job := newTestJob(t, Config{
		Bin:          fakeFFmpeg(t, "exec sleep 30"),
		StartTimeout: 300 * time.Millisecond,
		StallTimeout: 300 * time.Millisecond,
		KillTimeout:  time.Second,
	})
	require.NoError(t, job.Pause())
	done := runAsync(job, context.Background(), func(int32) {})

	select {
	case err := <-done:
		t.Fatalf("paused job returned early: %v", err)
	case <-time.After(time.Second):
	}

	require.NoError(t, job.Resume())
	assert.ErrorIs(t, waitResult(t, done, 5*time.Second), ErrStalled)
}

func TestExitError_ErrorCode(t *testing.T) {
	tests := []struct {
		line string
		want model.ErrorCode
	}{
		{"/x: No such file or directory", model.ErrorIO},
		{"[NULL @ 0x1] Unknown encoder 'libfoo'", model.ErrorUnsupported},
		{"moov atom not found", model.ErrorMalformed},
		{"Conversion failed!", model.ErrorUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			e := &ExitError{ExitCode: 1, Stderr: []string{"ffmpeg version 7", tt.line}}
			assert.Equal(t, tt.want, e.ErrorCode())
		})
	}
}
