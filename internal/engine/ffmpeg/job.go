// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ffmpeg runs transcoding jobs as ffmpeg child processes. Each job
// gets its own process group so pause, resume and stop reach every helper
// process ffmpeg spawns.
package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/engine"
	"github.com/ManuGH/mediatranscoding/internal/log"
	"github.com/ManuGH/mediatranscoding/internal/procgroup"
)

// Config configures ffmpeg jobs. Zero values select the defaults.
type Config struct {
	Bin          string
	KillTimeout  time.Duration
	StartTimeout time.Duration
	StallTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Bin == "" {
		c.Bin = "ffmpeg"
	}
	if c.KillTimeout <= 0 {
		c.KillTimeout = 5 * time.Second
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = 30 * time.Second
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = time.Minute
	}
	return c
}

// Factory builds ffmpeg jobs.
type Factory struct {
	cfg    Config
	logger zerolog.Logger
}

var _ engine.JobFactory = (*Factory)(nil)

// NewFactory returns a job factory using cfg.
func NewFactory(cfg Config) *Factory {
	return &Factory{cfg: cfg.withDefaults(), logger: log.WithComponent("ffmpeg")}
}

// NewJob validates the request and prepares its command line.
func (f *Factory) NewJob(key model.SessionKey, req model.Request) (engine.Job, error) {
	args, err := BuildArgs(req)
	if err != nil {
		return nil, err
	}
	logger := f.logger.With().
		Int64(log.FieldClientID, int64(key.Client)).
		Int32(log.FieldSessionID, int32(key.Session)).
		Logger()
	return &Job{
		cfg:      f.cfg,
		args:     args,
		logger:   logger,
		stderr:   NewLineRing(256),
		watchdog: NewWatchdog(f.cfg.StartTimeout, f.cfg.StallTimeout, logger),
	}, nil
}

// Job is one ffmpeg invocation.
type Job struct {
	cfg      Config
	args     []string
	logger   zerolog.Logger
	stderr   *LineRing
	watchdog *Watchdog

	mu     sync.Mutex
	cmd    *exec.Cmd
	paused bool
}

var durationRe = regexp.MustCompile(`Duration: (\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

func parseDuration(line string) (time.Duration, bool) {
	m := durationRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	secs, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute + time.Duration(secs*float64(time.Second)), true
}

// Run starts ffmpeg and blocks until it exits, stalls or ctx is cancelled.
func (j *Job) Run(ctx context.Context, progress func(percent int32)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.logger = log.WithContext(ctx, j.logger)
	j.watchdog.OnProgress(progress)

	cmd := exec.Command(j.cfg.Bin, j.args...) // #nosec G204 -- arguments are built by BuildArgs, no shell
	procgroup.Set(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr: %w", err)
	}

	j.logger.Info().Str("command", cmd.String()).Msg("starting ffmpeg process")
	if err := cmd.Start(); err != nil {
		startTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("start %s: %w", j.cfg.Bin, err)
	}
	startTotal.WithLabelValues("ok").Inc()

	j.mu.Lock()
	j.cmd = cmd
	if j.paused {
		j.watchdog.Suspend()
		if err := procgroup.Pause(cmd); err != nil {
			j.logger.Warn().Err(err).Msg("unable to pause ffmpeg after start")
		}
	}
	j.mu.Unlock()

	var ioWg sync.WaitGroup
	ioWg.Add(2)
	go func() {
		defer ioWg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			j.watchdog.ParseLine(scanner.Text())
		}
	}()
	go func() {
		defer ioWg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			j.stderr.Add(line)
			if d, ok := parseDuration(line); ok {
				j.watchdog.SetDuration(d)
			}
		}
	}()

	waitCh := make(chan error, 1)
	go func() {
		ioWg.Wait()
		waitCh <- cmd.Wait()
	}()

	wdCtx, cancelWatchdog := context.WithCancel(context.Background())
	wdDone := make(chan error, 1)
	go func() { wdDone <- j.watchdog.Run(wdCtx) }()
	stopWatchdog := func() {
		cancelWatchdog()
		if wdDone != nil {
			<-wdDone
		}
	}

	for {
		select {
		case err := <-waitCh:
			stopWatchdog()
			return j.exitError(err, progress)

		case <-ctx.Done():
			stopWatchdog()
			err := procgroup.Terminate(cmd, waitCh, j.cfg.KillTimeout)
			j.logger.Debug().Err(err).Msg("ffmpeg terminated")
			exitTotal.WithLabelValues("stopped").Inc()
			return ctx.Err()

		case err := <-wdDone:
			wdDone = nil
			if err != nil {
				j.logger.Warn().Err(err).Strs("stderr", j.stderr.LastN(10)).Msg("ffmpeg stalled, terminating")
				_ = procgroup.Terminate(cmd, waitCh, j.cfg.KillTimeout)
				cancelWatchdog()
				exitTotal.WithLabelValues("stalled").Inc()
				return fmt.Errorf("%s: %w", j.cfg.Bin, err)
			}
		}
	}
}

func (j *Job) exitError(err error, progress func(int32)) error {
	if err == nil {
		exitTotal.WithLabelValues("clean").Inc()
		progress(100)
		return nil
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	tail := j.stderr.LastN(20)
	j.logger.Error().Int("exit_code", code).Strs("stderr", tail).Msg("ffmpeg failed")
	exitTotal.WithLabelValues("error").Inc()
	return &ExitError{ExitCode: code, Stderr: tail, Err: err}
}

// Pause stops the ffmpeg process group. A job paused before Run starts its
// process stopped.
func (j *Job) Pause() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.paused {
		return nil
	}
	j.paused = true
	j.watchdog.Suspend()
	if j.cmd == nil {
		return nil
	}
	return procgroup.Pause(j.cmd)
}

// Resume continues a paused process group.
func (j *Job) Resume() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.paused {
		return nil
	}
	j.paused = false
	if j.cmd != nil {
		if err := procgroup.Resume(j.cmd); err != nil {
			return err
		}
	}
	j.watchdog.Resume()
	return nil
}

// ExitError reports a non-zero ffmpeg exit with the tail of its stderr.
type ExitError struct {
	ExitCode int
	Stderr   []string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("ffmpeg exited with code %d", e.ExitCode)
	if n := len(e.Stderr); n > 0 {
		msg += ": " + e.Stderr[n-1]
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

var stderrCodes = []struct {
	pattern string
	code    model.ErrorCode
}{
	{"Invalid data found when processing input", model.ErrorMalformed},
	{"moov atom not found", model.ErrorMalformed},
	{"Unknown encoder", model.ErrorUnsupported},
	{"Encoder not found", model.ErrorUnsupported},
	{"No such file or directory", model.ErrorIO},
	{"Permission denied", model.ErrorIO},
	{"Cannot allocate memory", model.ErrorInsufficientResources},
}

// ErrorCode classifies the failure from the last matching stderr line.
func (e *ExitError) ErrorCode() model.ErrorCode {
	for i := len(e.Stderr) - 1; i >= 0; i-- {
		for _, c := range stderrCodes {
			if strings.Contains(e.Stderr[i], c.pattern) {
				return c.code
			}
		}
	}
	return model.ErrorUnknown
}
