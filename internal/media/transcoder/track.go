// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package transcoder

import (
	"errors"
	"sync"

	"github.com/ManuGH/mediatranscoding/internal/media/format"
	"github.com/ManuGH/mediatranscoding/internal/media/sample"
)

// ErrAlreadyStarted is returned by Start on a transcoder that was started before.
var ErrAlreadyStarted = errors.New("track transcoder already started")

// Callback receives track transcoder output. Methods are called from the
// transcoder's worker goroutine.
type Callback interface {
	// OnTrackFormatAvailable is called once, when the output format is known.
	OnTrackFormatAvailable(track int, f *format.MediaFormat)
	// OnSampleAvailable hands over an output sample. The receiver must call
	// Release on it when done.
	OnSampleAvailable(track int, s *sample.MediaSample)
	OnTrackFinished(track int)
	OnTrackError(track int, err error)
}

type loop interface {
	RunTranscodeLoop() error
	AbortTranscodeLoop()
}

// base runs a transcode loop on its own goroutine and reports the result.
type base struct {
	impl  loop
	cb    Callback
	track int

	mu      sync.Mutex
	started bool
	done    chan struct{}
	err     error

	releaseOnce sync.Once
}

func newBase(impl loop, cb Callback) *base {
	return &base{impl: impl, cb: cb, done: make(chan struct{})}
}

// Track returns the reader track index this transcoder was configured for.
func (b *base) Track() int { return b.track }

// Start runs the transcode loop in a new goroutine.
func (b *base) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}
	b.started = true

	go func() {
		defer close(b.done)
		err := b.impl.RunTranscodeLoop()
		b.mu.Lock()
		b.err = err
		b.mu.Unlock()
		if b.cb == nil {
			return
		}
		if err != nil {
			b.cb.OnTrackError(b.track, err)
			return
		}
		b.cb.OnTrackFinished(b.track)
	}()
	return nil
}

// Stop aborts a running loop and waits for it to exit. It returns the loop
// status. Stop on a transcoder that never started is a no-op.
func (b *base) Stop() error {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if !started {
		return nil
	}
	b.impl.AbortTranscodeLoop()
	<-b.done
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Done is closed when the loop goroutine has exited.
func (b *base) Done() <-chan struct{} { return b.done }

func (b *base) onTrackFormatAvailable(f *format.MediaFormat) {
	if b.cb != nil {
		b.cb.OnTrackFormatAvailable(b.track, f)
	}
}

func (b *base) onSampleAvailable(s *sample.MediaSample) {
	if b.cb == nil {
		s.Release()
		return
	}
	b.cb.OnSampleAvailable(b.track, s)
}
