// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package track runs transcoding jobs in process, driving a
// VideoTrackTranscoder over a native codec factory. Pausing aborts the
// transcode loop and releases the codecs; resuming builds a new transcoder
// that continues from the reader's current position.
package track

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/engine"
	"github.com/ManuGH/mediatranscoding/internal/log"
	"github.com/ManuGH/mediatranscoding/internal/media/codec"
	"github.com/ManuGH/mediatranscoding/internal/media/format"
	"github.com/ManuGH/mediatranscoding/internal/media/sample"
	"github.com/ManuGH/mediatranscoding/internal/media/transcoder"
)

// DefaultVideoMIME is used when a request leaves the output codec open.
const DefaultVideoMIME = "video/avc"

// Sink receives the encoded track.
type Sink interface {
	SetFormat(f *format.MediaFormat) error
	WriteSample(s *sample.MediaSample) error
	Close() error
}

// Media opens request sources and destinations.
type Media interface {
	// OpenSource returns a reader and the index of the video track to transcode.
	OpenSource(path string) (sample.Reader, int, error)
	CreateSink(path string) (Sink, error)
}

// Factory builds in-process track jobs.
type Factory struct {
	codecs codec.Factory
	media  Media
	logger zerolog.Logger
}

var _ engine.JobFactory = (*Factory)(nil)

// NewFactory returns a factory creating codecs from codecs and media I/O from media.
func NewFactory(codecs codec.Factory, media Media) *Factory {
	return &Factory{codecs: codecs, media: media, logger: log.WithComponent("track")}
}

// DestinationFormat derives the encoder format from the request hints.
func DestinationFormat(req model.Request) (*format.MediaFormat, error) {
	if req.BitrateBps < 0 || req.Width < 0 || req.Height < 0 {
		return nil, fmt.Errorf("negative format hint: %w", codec.ErrInvalidParameter)
	}
	mime := req.VideoMIME
	if mime == "" {
		mime = DefaultVideoMIME
	}
	f := format.New()
	f.SetString(format.KeyMIME, mime)
	if req.BitrateBps > 0 {
		f.SetInt32(format.KeyBitRate, req.BitrateBps)
	}
	if req.Width > 0 {
		f.SetInt32(format.KeyWidth, req.Width)
	}
	if req.Height > 0 {
		f.SetInt32(format.KeyHeight, req.Height)
	}
	return f, nil
}

// NewJob opens the request's media and prepares the destination format.
func (f *Factory) NewJob(key model.SessionKey, req model.Request) (engine.Job, error) {
	dst, err := DestinationFormat(req)
	if err != nil {
		return nil, err
	}
	reader, track, err := f.media.OpenSource(req.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", req.SourcePath, err)
	}
	sink, err := f.media.CreateSink(req.DestinationPath)
	if err != nil {
		return nil, fmt.Errorf("create sink %s: %w", req.DestinationPath, err)
	}

	var durationUs int64
	if src, err := reader.TrackFormat(track); err == nil {
		durationUs, _ = src.Int64(format.KeyDuration)
	}

	return &Job{
		codecs:     f.codecs,
		reader:     reader,
		track:      track,
		dst:        dst,
		sink:       sink,
		durationUs: durationUs,
		resumeCh:   make(chan struct{}, 1),
		logger: f.logger.With().
			Int64(log.FieldClientID, int64(key.Client)).
			Int32(log.FieldSessionID, int32(key.Session)).
			Int(log.FieldTrack, track).
			Logger(),
	}, nil
}

// Job transcodes the video track of one request.
type Job struct {
	codecs     codec.Factory
	reader     sample.Reader
	track      int
	dst        *format.MediaFormat
	sink       Sink
	durationUs int64
	logger     zerolog.Logger
	resumeCh   chan struct{}

	mu         sync.Mutex
	cur        *transcoder.VideoTrackTranscoder
	paused     bool
	formatSent bool
	sinkErr    error
	progress   func(int32)
	lastPct    int32
}

var _ transcoder.Callback = (*Job)(nil)

// Run transcodes until end of stream, failure or cancellation of ctx.
func (j *Job) Run(ctx context.Context, progress func(percent int32)) (err error) {
	j.mu.Lock()
	j.progress = progress
	j.mu.Unlock()
	j.logger = log.WithContext(ctx, j.logger)

	defer func() {
		if cerr := j.sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close sink: %w", cerr)
		}
	}()

	for {
		if err := j.waitWhilePaused(ctx); err != nil {
			return err
		}

		t := transcoder.NewVideo(j.codecs, j)
		j.mu.Lock()
		if j.paused {
			j.mu.Unlock()
			continue
		}
		j.cur = t
		j.mu.Unlock()

		status, err := j.runOnce(ctx, t)

		j.mu.Lock()
		j.cur = nil
		sinkErr := j.sinkErr
		j.mu.Unlock()

		switch {
		case err != nil:
			return err
		case sinkErr != nil:
			return sinkErr
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(status, transcoder.ErrStoppedEarly):
			j.logger.Debug().Msg("transcode loop paused")
			continue
		case status != nil:
			return status
		default:
			progress(100)
			return nil
		}
	}
}

// runOnce returns the loop status, or an error if the transcoder could not
// be set up.
func (j *Job) runOnce(ctx context.Context, t *transcoder.VideoTrackTranscoder) (error, error) {
	if err := t.Configure(j.reader, j.track, j.dst); err != nil {
		return nil, err
	}
	if err := t.Start(); err != nil {
		return nil, err
	}
	select {
	case <-t.Done():
	case <-ctx.Done():
	}
	return t.Stop(), nil
}

func (j *Job) waitWhilePaused(ctx context.Context) error {
	for {
		j.mu.Lock()
		paused := j.paused
		j.mu.Unlock()
		if !paused {
			return nil
		}
		select {
		case <-j.resumeCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pause aborts the running transcode loop.
func (j *Job) Pause() error {
	j.mu.Lock()
	if j.paused {
		j.mu.Unlock()
		return nil
	}
	j.paused = true
	cur := j.cur
	j.mu.Unlock()

	if cur != nil {
		cur.AbortTranscodeLoop()
	}
	return nil
}

// Resume lets Run build a new transcoder.
func (j *Job) Resume() error {
	j.mu.Lock()
	if !j.paused {
		j.mu.Unlock()
		return nil
	}
	j.paused = false
	j.mu.Unlock()

	select {
	case j.resumeCh <- struct{}{}:
	default:
	}
	return nil
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	if j.sinkErr == nil {
		j.sinkErr = err
	}
	cur := j.cur
	j.mu.Unlock()
	if cur != nil {
		cur.AbortTranscodeLoop()
	}
}

// OnTrackFormatAvailable hands the first output format to the sink.
func (j *Job) OnTrackFormatAvailable(_ int, f *format.MediaFormat) {
	j.mu.Lock()
	sent := j.formatSent
	j.formatSent = true
	j.mu.Unlock()
	if sent {
		return
	}
	if err := j.sink.SetFormat(f); err != nil {
		j.fail(fmt.Errorf("sink format: %w", err))
	}
}

// OnSampleAvailable writes s to the sink and reports progress. The empty
// end-of-stream buffer is released without reaching the sink.
func (j *Job) OnSampleAvailable(_ int, s *sample.MediaSample) {
	defer s.Release()

	if s.Info.Size == 0 && s.Info.Flags.Has(sample.FlagEndOfStream) {
		return
	}

	j.mu.Lock()
	failed := j.sinkErr != nil
	j.mu.Unlock()
	if failed {
		return
	}
	if err := j.sink.WriteSample(s); err != nil {
		j.fail(fmt.Errorf("sink write: %w", err))
		return
	}
	j.reportProgress(s.Info.PresentationTimeUs)
}

func (j *Job) reportProgress(ptsUs int64) {
	if j.durationUs <= 0 {
		return
	}
	pct := int32(max(0, min(ptsUs*100/j.durationUs, 99)))

	j.mu.Lock()
	fn := j.progress
	changed := pct > j.lastPct
	if changed {
		j.lastPct = pct
	}
	j.mu.Unlock()
	if changed && fn != nil {
		fn(pct)
	}
}

// OnTrackFinished is observed through the transcoder's status.
func (j *Job) OnTrackFinished(int) {}

// OnTrackError is observed through the transcoder's status.
func (j *Job) OnTrackError(_ int, err error) {
	j.logger.Debug().Err(err).Msg("track transcoder stopped with error")
}
