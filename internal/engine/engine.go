// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package engine drives transcoding jobs on behalf of the session controller.
// Commands never block on a job and events are delivered from a dedicated
// dispatcher goroutine, so the controller may call in while holding its lock.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/domain/session/ports"
	"github.com/ManuGH/mediatranscoding/internal/log"
	"github.com/ManuGH/mediatranscoding/internal/media/queue"
	"github.com/ManuGH/mediatranscoding/internal/telemetry"
)

// DefaultProgressInterval is the minimum spacing of progress events per job.
const DefaultProgressInterval = 500 * time.Millisecond

// Job is one transcoding run. Run blocks until the work completes, fails or
// ctx is cancelled. Pause and Resume are called from other goroutines while
// Run executes and must return promptly.
type Job interface {
	Run(ctx context.Context, progress func(percent int32)) error
	Pause() error
	Resume() error
}

// JobFactory builds the job for a session.
type JobFactory interface {
	NewJob(key model.SessionKey, req model.Request) (Job, error)
}

// JobFactoryFunc adapts a function to JobFactory.
type JobFactoryFunc func(key model.SessionKey, req model.Request) (Job, error)

func (f JobFactoryFunc) NewJob(key model.SessionKey, req model.Request) (Job, error) {
	return f(key, req)
}

// Callback receives engine events and resource transitions. The session
// controller implements it.
type Callback interface {
	ports.EngineCallback
	ports.ResourcePolicyCallback
}

type task struct {
	key    model.SessionKey
	job    Job
	cancel context.CancelFunc

	// guarded by Driver.mu
	stopped bool
	paused  bool

	progressMu   sync.Mutex
	limiter      *rate.Limiter
	lastProgress int32
}

// Driver implements ports.TranscoderEngine over jobs from a JobFactory.
type Driver struct {
	factory          JobFactory
	logger           zerolog.Logger
	tracer           trace.Tracer
	kind             string
	progressInterval time.Duration

	mu           sync.Mutex
	cb           Callback
	tasks        map[model.SessionKey]*task
	closed       bool
	resourceLost bool

	events         *queue.BlockingQueue[event]
	workers        workerRegistry
	dispatcherDone chan struct{}
}

var (
	_ ports.TranscoderEngine       = (*Driver)(nil)
	_ ports.ResourcePolicyCallback = (*Driver)(nil)
)

// Option configures a Driver.
type Option func(*Driver)

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Driver) { d.tracer = tp.Tracer(tracerName) }
}

// WithProgressInterval sets the minimum spacing of progress events. Zero
// disables throttling.
func WithProgressInterval(every time.Duration) Option {
	return func(d *Driver) { d.progressInterval = every }
}

// WithKind labels job spans with the engine implementation name.
func WithKind(kind string) Option {
	return func(d *Driver) { d.kind = kind }
}

const tracerName = "github.com/ManuGH/mediatranscoding/internal/engine"

// New starts a driver and its dispatcher goroutine. Events produced before
// SetCallback are dropped. Call Close to stop the dispatcher.
func New(factory JobFactory, opts ...Option) *Driver {
	d := &Driver{
		factory:          factory,
		logger:           log.WithComponent("engine"),
		tracer:           telemetry.Tracer(tracerName),
		progressInterval: DefaultProgressInterval,
		tasks:            make(map[model.SessionKey]*task),
		events:           queue.New[event](),
		dispatcherDone:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.dispatch()
	return d
}

// SetCallback sets the event receiver.
func (d *Driver) SetCallback(cb Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cb = cb
}

func (d *Driver) sessionLogger(key model.SessionKey) zerolog.Logger {
	return d.logger.With().
		Int64(log.FieldClientID, int64(key.Client)).
		Int32(log.FieldSessionID, int32(key.Session)).
		Logger()
}

// Start creates and runs the job for key.
func (d *Driver) Start(key model.SessionKey, req model.Request, _ ports.CallbackRef) {
	commandsTotal.WithLabelValues("start").Inc()
	d.launch(key, req)
}

func (d *Driver) launch(key model.SessionKey, req model.Request) {
	logger := d.sessionLogger(key)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		logger.Warn().Msg("engine closed, dropping session")
		d.emit(event{kind: eventError, key: key, code: model.ErrorDroppedByService})
		return
	}
	if _, exists := d.tasks[key]; exists {
		logger.Warn().Msg("session already has a running job")
		return
	}

	job, err := d.factory.NewJob(key, req)
	if err != nil {
		code := CodeOf(err)
		logger.Error().Err(err).Str("code", string(code)).Msg("unable to create job")
		jobsTotal.WithLabelValues("create_failed").Inc()
		d.emit(event{kind: eventError, key: key, code: code})
		return
	}

	ctx, cancel := context.WithCancel(log.ContextWithCorrelationID(context.Background(), key.String()))
	t := &task{key: key, job: job, cancel: cancel}
	if d.progressInterval > 0 {
		t.limiter = rate.NewLimiter(rate.Every(d.progressInterval), 1)
	}
	d.tasks[key] = t
	activeJobs.Set(float64(len(d.tasks)))

	// The controller may not have seen the loss yet. The job starts paused
	// and the controller's Resume after recovery releases it.
	if d.resourceLost {
		t.paused = true
		if err := job.Pause(); err != nil {
			logger.Warn().Err(err).Msg("unable to hold job while resources are lost")
		}
	}

	d.emit(event{kind: eventStarted, key: key})
	d.workers.Go(func() { d.run(ctx, t, req) })
	logger.Info().Str(log.FieldPath, req.SourcePath).Bool("held", t.paused).Msg("job started")
}

func (d *Driver) run(ctx context.Context, t *task, req model.Request) {
	ctx, span := d.tracer.Start(ctx, "engine.job",
		trace.WithAttributes(telemetry.TranscodeAttributes(req.SourcePath, req.DestinationPath, req.VideoMIME, int(req.BitrateBps))...),
		trace.WithAttributes(
			attribute.Int64(telemetry.SessionClientIDKey, int64(t.key.Client)),
			attribute.Int(telemetry.SessionIDKey, int(t.key.Session)),
			attribute.String(telemetry.TranscodeEngineKey, d.kind),
		),
	)
	defer span.End()

	err := t.job.Run(ctx, func(p int32) { d.progress(t, p) })
	t.cancel()

	d.mu.Lock()
	if d.tasks[t.key] == t {
		delete(d.tasks, t.key)
	}
	activeJobs.Set(float64(len(d.tasks)))
	stopped := t.stopped
	d.mu.Unlock()

	logger := log.WithContext(ctx, d.sessionLogger(t.key))
	switch {
	case stopped:
		jobsTotal.WithLabelValues("stopped").Inc()
		logger.Debug().Err(err).Msg("job stopped")
	case err == nil:
		jobsTotal.WithLabelValues("finished").Inc()
		logger.Info().Msg("job finished")
		d.emit(event{kind: eventFinish, key: t.key})
	default:
		code := CodeOf(err)
		jobsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(telemetry.ErrorAttributes(err, string(code))...)
		logger.Error().Err(err).Str("code", string(code)).Msg("job failed")
		d.emit(event{kind: eventError, key: t.key, code: code})
	}
}

func (d *Driver) progress(t *task, p int32) {
	p = max(0, min(p, 100))

	t.progressMu.Lock()
	if p == t.lastProgress || (p < 100 && t.limiter != nil && !t.limiter.Allow()) {
		t.progressMu.Unlock()
		return
	}
	t.lastProgress = p
	t.progressMu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tasks[t.key] != t {
		return
	}
	d.emit(event{kind: eventProgress, key: t.key, progress: p})
}

func (d *Driver) lookup(key model.SessionKey) (*task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tasks[key]
	return t, ok
}

// Pause suspends the job of key.
func (d *Driver) Pause(key model.SessionKey) {
	commandsTotal.WithLabelValues("pause").Inc()
	logger := d.sessionLogger(key)

	t, ok := d.lookup(key)
	if !ok {
		logger.Debug().Msg("pause for session without a job")
		return
	}
	if err := t.job.Pause(); err != nil {
		logger.Warn().Err(err).Msg("pause failed")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	t.paused = true
	d.emit(event{kind: eventPaused, key: key})
}

// Resume continues the job of key. A session whose job already ended is
// reported as failed; the controller ignores the error if the job's own
// completion event got there first. While resources are lost the job stays
// paused and no resume event is sent.
func (d *Driver) Resume(key model.SessionKey, _ model.Request, _ ports.CallbackRef) {
	commandsTotal.WithLabelValues("resume").Inc()
	logger := d.sessionLogger(key)

	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.tasks[key]
	if !ok {
		logger.Warn().Err(ErrUnknownSession).Msg("resume for session without a job")
		d.emit(event{kind: eventError, key: key, code: CodeOf(ErrUnknownSession)})
		return
	}
	if d.resourceLost {
		t.paused = true
		if err := t.job.Pause(); err != nil {
			logger.Warn().Err(err).Msg("unable to hold job while resources are lost")
		}
		logger.Debug().Msg("resume deferred until resources return")
		return
	}
	if err := t.job.Resume(); err != nil {
		logger.Warn().Err(err).Msg("resume failed")
	}
	t.paused = false
	d.emit(event{kind: eventResumed, key: key})
}

// Stop cancels the job of key. No completion event follows.
func (d *Driver) Stop(key model.SessionKey) {
	commandsTotal.WithLabelValues("stop").Inc()

	d.mu.Lock()
	t, ok := d.tasks[key]
	if ok {
		t.stopped = true
		delete(d.tasks, key)
		activeJobs.Set(float64(len(d.tasks)))
	}
	d.mu.Unlock()

	if !ok {
		logger := d.sessionLogger(key)
		logger.Debug().Msg("stop for session without a job")
		return
	}
	t.cancel()
}

// OnResourceLost pauses every running job without notifying the controller
// per session, then forwards the loss.
func (d *Driver) OnResourceLost() {
	d.mu.Lock()
	if d.resourceLost {
		d.mu.Unlock()
		return
	}
	d.resourceLost = true
	var running []*task
	for _, t := range d.tasks {
		if !t.paused {
			t.paused = true
			running = append(running, t)
		}
	}
	d.mu.Unlock()

	for _, t := range running {
		if err := t.job.Pause(); err != nil {
			logger := d.sessionLogger(t.key)
			logger.Warn().Err(err).Msg("pause on resource loss failed")
		}
	}
	d.logger.Info().Int("paused", len(running)).Msg("resources lost")

	d.mu.Lock()
	defer d.mu.Unlock()
	d.emit(event{kind: eventResourceLost})
}

// OnResourceAvailable forwards the recovery. Jobs stay paused until the
// controller resumes them.
func (d *Driver) OnResourceAvailable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.resourceLost {
		return
	}
	d.resourceLost = false
	d.logger.Info().Msg("resources available")
	d.emit(event{kind: eventResourceAvailable})
}

// Close stops all jobs, waits for their workers and the dispatcher, and
// drops later commands.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	tasks := make([]*task, 0, len(d.tasks))
	for key, t := range d.tasks {
		t.stopped = true
		tasks = append(tasks, t)
		delete(d.tasks, key)
	}
	activeJobs.Set(0)
	d.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	err := d.workers.CloseAndWait(ctx)

	d.events.Push(event{kind: eventShutdown})
	select {
	case <-d.dispatcherDone:
		d.events.Abort()
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}
