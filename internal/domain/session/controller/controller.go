// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package controller implements the priority session scheduler. Sessions are
// queued per owning application; applications are ordered by foreground
// rank with the offline queue always last, and at most one session runs on
// the transcoder engine at a time.
package controller

import (
	"container/list"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/domain/session/ports"
	"github.com/ManuGH/mediatranscoding/internal/log"
	"github.com/ManuGH/mediatranscoding/internal/telemetry"
)

type session struct {
	key          model.SessionKey
	uid          model.UID
	state        model.State
	lastProgress int32
	request      model.Request
	callback     ports.CallbackRef
	submittedAt  time.Time
	started      bool
}

// SessionController schedules transcoding sessions. All methods are safe for
// concurrent use; each one holds the controller lock for its duration and
// never waits on the engine.
type SessionController struct {
	mu sync.Mutex

	engine    ports.TranscoderEngine
	uidPolicy ports.UidPolicy
	names     ports.PackageNameResolver
	recorder  ports.OutcomeRecorder
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time

	sessions map[model.SessionKey]*session
	queues   map[model.UID][]model.SessionKey

	// order holds model.UID values. The head is the scheduling target and
	// offline is pinned to the tail.
	order    *list.List
	uidElems map[model.UID]*list.Element
	offline  *list.Element

	current      *session
	resourceLost bool
}

// Option configures a SessionController.
type Option func(*SessionController)

// WithPackageNames sets the resolver used by DumpAllSessions.
func WithPackageNames(r ports.PackageNameResolver) Option {
	return func(c *SessionController) { c.names = r }
}

// WithOutcomeRecorder reports terminal outcomes to r.
func WithOutcomeRecorder(r ports.OutcomeRecorder) Option {
	return func(c *SessionController) { c.recorder = r }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *SessionController) { c.logger = l }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *SessionController) { c.tracer = tp.Tracer(tracerName) }
}

// WithClock overrides time.Now for outcome timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *SessionController) { c.now = now }
}

const tracerName = "github.com/ManuGH/mediatranscoding/internal/domain/session/controller"

// New returns a controller with only the empty offline queue. The caller
// wires the controller as the uid policy callback; New does not.
func New(engine ports.TranscoderEngine, uidPolicy ports.UidPolicy, opts ...Option) *SessionController {
	c := &SessionController{
		engine:    engine,
		uidPolicy: uidPolicy,
		logger:    log.WithComponent("controller"),
		tracer:    telemetry.Tracer(tracerName),
		now:       time.Now,
		sessions:  make(map[model.SessionKey]*session),
		queues:    make(map[model.UID][]model.SessionKey),
		order:     list.New(),
		uidElems:  make(map[model.UID]*list.Element),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.offline = c.order.PushBack(model.OfflineUID)
	c.uidElems[model.OfflineUID] = c.offline
	c.queues[model.OfflineUID] = nil
	sessionsGauge.Set(0)
	resourceLostGauge.Set(0)
	return c
}

// Submit queues a new session. It returns false if the key already exists.
func (c *SessionController) Submit(client model.ClientID, sessionID model.SessionID, uid model.UID, req model.Request, cb ports.CallbackRef) bool {
	return c.SubmitContext(context.Background(), client, sessionID, uid, req, cb)
}

// SubmitContext is Submit with a parent context for tracing.
func (c *SessionController) SubmitContext(ctx context.Context, client model.ClientID, sessionID model.SessionID, uid model.UID, req model.Request, cb ports.CallbackRef) bool {
	key := model.Key(client, sessionID)
	ctx, span := c.tracer.Start(ctx, "controller.submit",
		trace.WithAttributes(telemetry.SessionAttributes(int64(client), int32(sessionID), int32(uid))...),
		trace.WithAttributes(attribute.String(telemetry.SessionPriorityKey, string(req.Priority))),
		trace.WithAttributes(telemetry.TranscodeAttributes(req.SourcePath, req.DestinationPath, req.VideoMIME, int(req.BitrateBps))...),
	)
	defer span.End()

	logger := log.WithContext(log.ContextWithCorrelationID(ctx, key.String()), c.logger)
	logger.Info().
		Int32(log.FieldUID, int32(uid)).
		Str(log.FieldPriority, string(req.Priority)).
		Str(log.FieldPath, req.SourcePath).
		Msg("submit")

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.sessions[key]; exists {
		c.logger.Error().Str("session", key.String()).Msg("session already exists")
		submissionsTotal.WithLabelValues("duplicate").Inc()
		span.SetAttributes(attribute.Bool(telemetry.SessionAcceptedKey, false))
		span.SetStatus(codes.Error, "duplicate session")
		return false
	}

	// Only offline and realtime are distinguished; everything unspecified
	// goes to the offline queue.
	if req.Priority != model.PriorityRealtime {
		uid = model.OfflineUID
	}

	c.sessions[key] = &session{
		key:         key,
		uid:         uid,
		state:       model.StateNotStarted,
		request:     req,
		callback:    cb,
		submittedAt: c.now(),
	}

	if uid != model.OfflineUID {
		if _, ok := c.queues[uid]; !ok {
			c.uidPolicy.RegisterMonitorUid(uid)
			if c.uidPolicy.IsUidOnTop(uid) {
				c.uidElems[uid] = c.order.PushFront(uid)
			} else {
				// Realtime work from a background app still runs before offline work.
				c.uidElems[uid] = c.order.InsertBefore(uid, c.offline)
			}
			c.queues[uid] = nil
		} else if c.order.Front().Value.(model.UID) != uid && c.uidPolicy.IsUidOnTop(uid) {
			c.order.MoveToFront(c.uidElems[uid])
		}
	}
	c.queues[uid] = append(c.queues[uid], key)

	submissionsTotal.WithLabelValues("accepted").Inc()
	span.SetAttributes(attribute.Bool(telemetry.SessionAcceptedKey, true))

	c.updateCurrentSession()
	c.validateState()
	c.observe()
	return true
}

// Cancel removes a session. A negative sessionID cancels every realtime
// session of the client; offline sessions survive client disconnects.
// Sessions that ever started are stopped on the engine, including paused ones.
func (c *SessionController) Cancel(client model.ClientID, sessionID model.SessionID) bool {
	return c.CancelContext(context.Background(), client, sessionID)
}

// CancelContext is Cancel with a parent context for tracing.
func (c *SessionController) CancelContext(ctx context.Context, client model.ClientID, sessionID model.SessionID) bool {
	key := model.Key(client, sessionID)
	_, span := c.tracer.Start(ctx, "controller.cancel",
		trace.WithAttributes(
			attribute.Int64(telemetry.SessionClientIDKey, int64(client)),
			attribute.Int(telemetry.SessionIDKey, int(sessionID)),
		),
	)
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	var targets []model.SessionKey
	if sessionID < 0 {
		for k, s := range c.sessions {
			if k.Client == client && s.uid != model.OfflineUID {
				targets = append(targets, k)
			}
		}
		slices.SortFunc(targets, func(a, b model.SessionKey) int { return int(a.Session) - int(b.Session) })
	} else {
		if _, ok := c.sessions[key]; !ok {
			c.logger.Error().Str("session", key.String()).Msg("session doesn't exist")
			span.SetStatus(codes.Error, "unknown session")
			return false
		}
		targets = append(targets, key)
	}

	for _, k := range targets {
		s := c.sessions[k]
		if s.state != model.StateNotStarted {
			c.engineStop(k)
		}
		c.removeSession(k, model.OutcomeCancelled, model.ErrorNone)
	}
	span.SetAttributes(attribute.Int(telemetry.SessionRemovedKey, len(targets)))

	c.updateCurrentSession()
	c.validateState()
	c.observe()
	return true
}

// GetSession returns a copy of the stored request.
func (c *SessionController) GetSession(client model.ClientID, sessionID model.SessionID) (model.Request, bool) {
	key := model.Key(client, sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[key]
	if !ok {
		c.logger.Debug().Str("session", key.String()).Msg("session doesn't exist")
		return model.Request{}, false
	}
	return s.request, true
}

func (c *SessionController) observe() {
	sessionsGauge.Set(float64(len(c.sessions)))
	if c.resourceLost {
		resourceLostGauge.Set(1)
	} else {
		resourceLostGauge.Set(0)
	}
}
