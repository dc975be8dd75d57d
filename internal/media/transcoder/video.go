// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package transcoder implements track transcoders. VideoTrackTranscoder drives
// a decoder and an encoder connected through a surface, entirely from
// asynchronous codec callbacks serialized onto one message queue.
package transcoder

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediatranscoding/internal/log"
	"github.com/ManuGH/mediatranscoding/internal/media/codec"
	"github.com/ManuGH/mediatranscoding/internal/media/format"
	"github.com/ManuGH/mediatranscoding/internal/media/queue"
	"github.com/ManuGH/mediatranscoding/internal/media/sample"
)

const (
	// DefaultBitrate is used when neither the request nor the reader provides one.
	DefaultBitrate int32 = 10 * 1000 * 1000
	// DefaultKeyFrameIntervalSeconds is used when the destination omits it.
	DefaultKeyFrameIntervalSeconds float32 = 1.0
)

// ErrStoppedEarly is the loop status when a stop was requested before the
// encoder reached end of stream and nothing else failed.
var ErrStoppedEarly = errors.New("transcoding stopped before end of stream")

// decoderEntriesToCopy are destination fields that apply to the decoder too.
var decoderEntriesToCopy = []format.EntryCopier{
	format.CopyFloatOrInt32(format.KeyOperatingRate),
	format.CopyInt32(format.KeyPriority),
}

// VideoTrackTranscoder transcodes one video track.
//
// All fields below the worker marker are only touched by the goroutine
// running RunTranscodeLoop.
type VideoTrackTranscoder struct {
	*base

	factory codec.Factory
	logger  zerolog.Logger

	reader            sample.Reader
	sourceFormat      *format.MediaFormat
	destinationFormat *format.MediaFormat

	decoder  codec.Codec
	encoder  *codec.Handle[VideoTrackTranscoder]
	surface  codec.Surface
	messages *queue.BlockingQueue[message]

	outputMu           sync.RWMutex
	actualOutputFormat *format.MediaFormat

	configured bool

	// worker state
	status         error
	stopRequested  bool
	eosFromSource  bool
	eosFromEncoder bool
	sampleInfo     sample.Info
}

// NewVideo returns an unconfigured video track transcoder that creates its
// codecs from factory and reports to cb.
func NewVideo(factory codec.Factory, cb Callback) *VideoTrackTranscoder {
	t := &VideoTrackTranscoder{
		factory:  factory,
		messages: queue.New[message](),
		logger:   log.WithComponent("transcoder"),
	}
	t.base = newBase(t, cb)
	return t
}

// Configure binds the transcoder to a reader track and configures the codecs
// for the destination format.
func (t *VideoTrackTranscoder) Configure(reader sample.Reader, track int, destination *format.MediaFormat) error {
	if reader == nil {
		return fmt.Errorf("configure track %d: %w", track, codec.ErrInvalidParameter)
	}
	src, err := reader.TrackFormat(track)
	if err != nil {
		return fmt.Errorf("track %d format: %w", track, err)
	}
	t.reader = reader
	t.track = track
	t.sourceFormat = src
	t.logger = t.logger.With().Int(log.FieldTrack, track).Logger()
	if err := t.configureDestinationFormat(destination); err != nil {
		t.release()
		return err
	}
	t.configured = true
	return nil
}

func (t *VideoTrackTranscoder) configureDestinationFormat(destination *format.MediaFormat) error {
	if destination == nil {
		t.logger.Error().Msg("destination format is nil, use passthrough transcoder")
		return codec.ErrInvalidParameter
	}

	encoderFormat := destination.Copy()

	if _, ok := encoderFormat.Int32(format.KeyBitRate); !ok {
		bitrate, err := t.reader.EstimatedBitrateForTrack(t.track)
		if err != nil {
			t.logger.Error().Err(err).Int32("default", DefaultBitrate).Msg("unable to estimate bitrate, using default")
			bitrate = DefaultBitrate
		}
		t.logger.Info().Int32("bitrate", bitrate).Msg("configuring bitrate")
		encoderFormat.SetInt32(format.KeyBitRate, bitrate)
	}

	if _, ok := encoderFormat.Float(format.KeyIFrameInterval); !ok {
		encoderFormat.SetFloat(format.KeyIFrameInterval, DefaultKeyFrameIntervalSeconds)
	}
	encoderFormat.SetInt32(format.KeyColorFormat, format.ColorFormatSurface)

	// Rotation travels to the writer through the actual output format.
	encoderFormat.SetInt32(format.KeyRotation, 0)

	t.destinationFormat = encoderFormat

	destinationMime, ok := encoderFormat.String(format.KeyMIME)
	if !ok {
		t.logger.Error().Msg("destination MIME type is required for transcoding")
		return codec.ErrInvalidParameter
	}
	sourceMime, ok := t.sourceFormat.String(format.KeyMIME)
	if !ok {
		t.logger.Error().Msg("source MIME type is required for transcoding")
		return codec.ErrInvalidParameter
	}

	encoder, err := t.factory.CreateEncoderByType(destinationMime)
	if err != nil {
		t.logger.Error().Err(err).Str(log.FieldCodec, destinationMime).Msg("unable to create encoder")
		return fmt.Errorf("create encoder %s: %w", destinationMime, codec.ErrUnsupported)
	}
	t.encoder = codec.NewHandle(encoder, t)

	if err := encoder.Configure(t.destinationFormat, nil, codec.ConfigureEncode); err != nil {
		t.logger.Error().Err(err).Msg("unable to configure video encoder")
		return codec.Wrap(encoder, "configure", err)
	}

	t.surface, err = encoder.CreateInputSurface()
	if err != nil {
		t.logger.Error().Err(err).Msg("unable to create an encoder input surface")
		return codec.Wrap(encoder, "create input surface", err)
	}

	decoder, err := t.factory.CreateDecoderByType(sourceMime)
	if err != nil {
		t.logger.Error().Err(err).Str(log.FieldCodec, sourceMime).Msg("unable to create decoder")
		return fmt.Errorf("create decoder %s: %w", sourceMime, codec.ErrUnsupported)
	}
	t.decoder = decoder

	decoderFormat := t.sourceFormat.Copy()
	// The decoder must not overwrite frames the encoder has not consumed yet.
	decoderFormat.SetInt32(format.KeyAllowFrameDrop, 0)
	format.CopyEntries(t.destinationFormat, decoderFormat, decoderEntriesToCopy...)

	if err := decoder.Configure(decoderFormat, t.surface, 0); err != nil {
		t.logger.Error().Err(err).Msg("unable to configure video decoder")
		return codec.Wrap(decoder, "configure", err)
	}

	callbacks := asyncCallbacks(t.encoder)
	if err := decoder.SetAsyncCallbacks(callbacks); err != nil {
		return codec.Wrap(decoder, "set async callbacks", err)
	}
	if err := encoder.SetAsyncCallbacks(callbacks); err != nil {
		return codec.Wrap(encoder, "set async callbacks", err)
	}
	return nil
}

// asyncCallbacks returns the callback set shared by both codecs. Callbacks
// resolve the transcoder through the encoder handle's weak back-reference and
// only enqueue messages.
func asyncCallbacks(h *codec.Handle[VideoTrackTranscoder]) codec.AsyncCallbacks {
	return codec.AsyncCallbacks{
		OnInputAvailable: func(c codec.Codec, index int) {
			if t := h.Owner(); t != nil && c == t.decoder {
				t.messages.Push(inputReady{index: index})
			}
		},
		OnOutputAvailable: func(c codec.Codec, index int, info codec.BufferInfo) {
			if t := h.Owner(); t != nil {
				t.messages.Push(outputReady{index: index, info: info, fromEncoder: c != t.decoder})
			}
		},
		OnFormatChanged: func(c codec.Codec, f *format.MediaFormat) {
			t := h.Owner()
			if t == nil {
				return
			}
			role := "encoder"
			if c == t.decoder {
				role = "decoder"
			}
			t.logger.Debug().Str("role", role).Str("format", f.Describe()).Msg("codec format changed")
			if c != t.decoder {
				t.messages.Push(formatChanged{format: f})
			}
		},
		OnError: func(c codec.Codec, err error, actionCode int, detail string) {
			t := h.Owner()
			if t == nil {
				return
			}
			role := "encoder"
			if c == t.decoder {
				role = "decoder"
			}
			codecErrorsTotal.WithLabelValues(role).Inc()
			t.logger.Error().Err(err).Str("role", role).Int("action", actionCode).Str("detail", detail).Msg("error from codec")
			t.messages.PushFront(codecError{err: codec.Wrap(c, "async", err)})
		},
	}
}

// RunTranscodeLoop processes codec events until the encoder reaches end of
// stream, a stop is requested or an error occurs. It returns nil on success.
func (t *VideoTrackTranscoder) RunTranscodeLoop() error {
	if !t.configured {
		return fmt.Errorf("run transcode loop: %w", codec.ErrInvalidOperation)
	}
	// Starting the codecs goes through the queue so an early stop skips it.
	t.messages.Push(startCodec{encoder: false})
	t.messages.Push(startCodec{encoder: true})

	for !t.stopRequested && !t.eosFromEncoder && t.status == nil {
		t.handle(t.messages.Pop())
	}

	t.messages.Abort()
	if err := t.decoder.Stop(); err != nil {
		t.logger.Warn().Err(err).Msg("decoder stop failed")
	}
	t.release()

	if t.stopRequested && !t.eosFromEncoder && t.status == nil {
		t.status = ErrStoppedEarly
	}
	loopExitsTotal.WithLabelValues(loopResult(t.status, t.eosFromEncoder)).Inc()
	return t.status
}

// AbortTranscodeLoop asks the loop to exit after the message in flight.
func (t *VideoTrackTranscoder) AbortTranscodeLoop() {
	t.messages.PushFront(stopLoop{})
}

// OutputFormat returns the muxer-bound format, or nil before the encoder
// reported one.
func (t *VideoTrackTranscoder) OutputFormat() *format.MediaFormat {
	t.outputMu.RLock()
	defer t.outputMu.RUnlock()
	return t.actualOutputFormat.Copy()
}

func (t *VideoTrackTranscoder) handle(m message) {
	switch m := m.(type) {
	case startCodec:
		t.startCodec(m.encoder)
	case inputReady:
		t.enqueueInputSample(m.index)
	case outputReady:
		if m.fromEncoder {
			t.dequeueOutputSample(m.index, m.info)
		} else {
			t.transferBuffer(m.index, m.info)
		}
	case formatChanged:
		t.updateTrackFormat(m.format)
	case codecError:
		t.status = m.err
		t.stopRequested = true
	case stopLoop:
		t.stopRequested = true
	default:
		t.logger.Warn().Str("message", m.kind()).Msg("unhandled message")
	}
}

func (t *VideoTrackTranscoder) startCodec(encoder bool) {
	if !encoder {
		if err := t.decoder.Start(); err != nil {
			t.logger.Error().Err(err).Msg("unable to start video decoder")
			t.status = codec.Wrap(t.decoder, "start", err)
		}
		return
	}
	enc := t.encoder.Codec()
	if err := enc.Start(); err != nil {
		t.logger.Error().Err(err).Msg("unable to start video encoder")
		t.status = codec.Wrap(enc, "start", err)
		return
	}
	t.encoder.SetStarted()
}

func (t *VideoTrackTranscoder) enqueueInputSample(index int) {
	if t.eosFromSource {
		return
	}

	info, err := t.reader.SampleInfoForTrack(t.track)
	endOfStream := errors.Is(err, sample.ErrEndOfStream)
	if err != nil && !endOfStream {
		t.logger.Error().Err(err).Msg("error getting next sample info")
		t.status = fmt.Errorf("sample info: %w", err)
		return
	}

	if !endOfStream {
		buf := t.decoder.InputBuffer(index)
		if buf == nil {
			t.logger.Error().Int("index", index).Msg("decoder returned a nil input buffer")
			t.status = codec.Wrap(t.decoder, "input buffer", codec.ErrUnknown)
			return
		}
		if len(buf) < info.Size {
			t.logger.Error().Int("buffer", len(buf)).Int("sample", info.Size).Msg("decoder input buffer is smaller than the sample")
			t.status = codec.Wrap(t.decoder, "input buffer", codec.ErrUnknown)
			return
		}
		if err := t.reader.ReadSampleDataForTrack(t.track, buf[:info.Size]); err != nil {
			t.logger.Error().Err(err).Msg("unable to read next sample data, aborting transcode")
			t.status = fmt.Errorf("read sample: %w", err)
			return
		}
		samplesTotal.WithLabelValues("in").Inc()
	} else {
		t.logger.Debug().Msg("EOS from source")
		t.eosFromSource = true
		info.Size = 0
		info.Flags |= sample.FlagEndOfStream
	}
	t.sampleInfo = info

	if err := t.decoder.QueueInputBuffer(index, 0, info.Size, info.PresentationTimeUs, info.Flags); err != nil {
		t.logger.Error().Err(err).Msg("unable to queue input buffer for decode")
		t.status = codec.Wrap(t.decoder, "queue input buffer", err)
	}
}

func (t *VideoTrackTranscoder) transferBuffer(index int, info codec.BufferInfo) {
	if index >= 0 {
		render := info.Size > 0
		if err := t.decoder.ReleaseOutputBuffer(index, render); err != nil {
			t.logger.Warn().Err(err).Int("index", index).Msg("decoder output release failed")
		}
	}

	if info.Flags.Has(sample.FlagEndOfStream) {
		t.logger.Debug().Msg("EOS from decoder")
		enc := t.encoder.Codec()
		if err := enc.SignalEndOfInputStream(); err != nil {
			t.logger.Error().Err(err).Msg("signal EOS on encoder failed")
			t.status = codec.Wrap(enc, "signal end of input stream", err)
		}
	}
}

func (t *VideoTrackTranscoder) dequeueOutputSample(index int, info codec.BufferInfo) {
	switch {
	case index >= 0:
		enc := t.encoder
		if !enc.Acquire() {
			t.status = codec.Wrap(enc.Codec(), "output buffer", codec.ErrInvalidOperation)
			return
		}
		buf := enc.Codec().OutputBuffer(index)
		logger := t.logger
		s := sample.NewWithRelease(buf, info.Offset, index, func(s *sample.MediaSample) {
			if err := enc.Codec().ReleaseOutputBuffer(s.BufferID, false); err != nil {
				logger.Warn().Err(err).Int("index", s.BufferID).Msg("encoder output release failed")
			}
			enc.Release()
		})
		s.Info = sample.Info{
			Size:               info.Size,
			PresentationTimeUs: info.PresentationTimeUs,
			Flags:              info.Flags,
		}
		samplesTotal.WithLabelValues("out").Inc()
		t.onSampleAvailable(s)
	case index == codec.InfoOutputFormatChanged:
		t.logger.Debug().Str("format", t.encoder.Codec().OutputFormat().Describe()).Msg("encoder output format changed")
	}

	if info.Flags.Has(sample.FlagEndOfStream) {
		t.logger.Debug().Msg("EOS from encoder")
		t.eosFromEncoder = true
	}
}

func (t *VideoTrackTranscoder) updateTrackFormat(outputFormat *format.MediaFormat) {
	t.outputMu.RLock()
	seen := t.actualOutputFormat != nil
	t.outputMu.RUnlock()
	if seen {
		t.logger.Warn().Msg("ignoring duplicate format change")
		return
	}
	if outputFormat == nil {
		t.status = codec.ErrInvalidParameter
		return
	}

	// The encoder format carries codec-specific data; container-level fields
	// come from the source.
	actual := outputFormat.Copy()
	src := t.sourceFormat

	if w, ok := src.Int32(format.KeySARWidth); ok && w > 0 {
		if h, ok := src.Int32(format.KeySARHeight); ok && h > 0 {
			actual.SetInt32(format.KeySARWidth, w)
			actual.SetInt32(format.KeySARHeight, h)
		}
	}
	if w, ok := src.Int32(format.KeyDisplayWidth); ok && w > 0 {
		if h, ok := src.Int32(format.KeyDisplayHeight); ok && h > 0 {
			actual.SetInt32(format.KeyDisplayWidth, w)
			actual.SetInt32(format.KeyDisplayHeight, h)
		}
	}
	if r, ok := src.Int32(format.KeyRotation); ok && r != 0 {
		actual.SetInt32(format.KeyRotation, r)
	}
	if d, ok := src.Int64(format.KeyDuration); ok && d > 0 {
		actual.SetInt64(format.KeyDuration, d)
	}

	t.outputMu.Lock()
	t.actualOutputFormat = actual
	t.outputMu.Unlock()

	t.onTrackFormatAvailable(actual.Copy())
}

// release drops the transcoder's codecs. The encoder survives while output
// samples still hold its handle.
func (t *VideoTrackTranscoder) release() {
	t.releaseOnce.Do(func() {
		if t.decoder != nil {
			t.decoder.Delete()
		}
		if t.surface != nil {
			t.surface.Release()
		}
		if t.encoder != nil {
			t.encoder.Release()
		}
	})
}
