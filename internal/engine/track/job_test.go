// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package track

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/engine"
	"github.com/ManuGH/mediatranscoding/internal/media/codec"
	"github.com/ManuGH/mediatranscoding/internal/media/codec/codectest"
	"github.com/ManuGH/mediatranscoding/internal/media/format"
	"github.com/ManuGH/mediatranscoding/internal/media/sample"
)

type memSink struct {
	mu       sync.Mutex
	formats  int
	samples  []int64
	closed   bool
	writeErr error
}

func (s *memSink) SetFormat(*format.MediaFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formats++
	return nil
}

func (s *memSink) WriteSample(smp *sample.MediaSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.samples = append(s.samples, smp.Info.PresentationTimeUs)
	return nil
}

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memSink) snapshot() (formats, samples int, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formats, len(s.samples), s.closed
}

type fakeMedia struct {
	reader  sample.Reader
	sink    *memSink
	openErr error
}

func (m *fakeMedia) OpenSource(string) (sample.Reader, int, error) {
	if m.openErr != nil {
		return nil, 0, m.openErr
	}
	return m.reader, 0, nil
}

func (m *fakeMedia) CreateSink(string) (Sink, error) { return m.sink, nil }

// gatedReader blocks before serving sample number blockAt until the gate opens.
type gatedReader struct {
	*codectest.Reader
	blockAt int

	mu      sync.Mutex
	reads   int
	blocked chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (r *gatedReader) SampleInfoForTrack(track int) (sample.Info, error) {
	r.mu.Lock()
	wait := r.reads == r.blockAt
	r.mu.Unlock()
	if wait {
		r.once.Do(func() { close(r.blocked) })
		<-r.gate
	}
	return r.Reader.SampleInfoForTrack(track)
}

func (r *gatedReader) ReadSampleDataForTrack(track int, buf []byte) error {
	err := r.Reader.ReadSampleDataForTrack(track, buf)
	if err == nil {
		r.mu.Lock()
		r.reads++
		r.mu.Unlock()
	}
	return err
}

func newReader(frames int) *codectest.Reader {
	src := format.New()
	src.SetString(format.KeyMIME, "video/avc")
	src.SetInt32(format.KeyWidth, 1280)
	src.SetInt32(format.KeyHeight, 720)
	src.SetInt64(format.KeyDuration, int64(frames)*33_333)
	return &codectest.Reader{
		Samples: codectest.Frames(frames, 100),
		Bitrate: 2_000_000,
		Format:  src,
	}
}

type progressLog struct {
	mu     sync.Mutex
	values []int32
}

func (p *progressLog) record(v int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, v)
}

func (p *progressLog) snapshot() []int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int32(nil), p.values...)
}

func newJob(t *testing.T, codecs codec.Factory, media Media) *Job {
	t.Helper()
	j, err := NewFactory(codecs, media).NewJob(model.Key(1, 1), model.Request{
		SourcePath:      "in.mp4",
		DestinationPath: "out.mp4",
		VideoMIME:       "video/hevc",
	})
	require.NoError(t, err)
	return j.(*Job)
}

func runAsync(ctx context.Context, j *Job, progress func(int32)) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- j.Run(ctx, progress) }()
	return errCh
}

func waitRun(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("job did not return")
		return nil
	}
}

func TestJob_TranscodesToCompletion(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &memSink{}
	j := newJob(t, &codectest.AutoFactory{}, &fakeMedia{reader: newReader(5), sink: sink})

	var progress progressLog
	require.NoError(t, waitRun(t, runAsync(context.Background(), j, progress.record)))

	formats, samples, closed := sink.snapshot()
	assert.Equal(t, 1, formats)
	assert.Equal(t, 5, samples)
	assert.True(t, closed)

	values := progress.snapshot()
	require.NotEmpty(t, values)
	assert.Equal(t, int32(100), values[len(values)-1])
	assert.IsNonDecreasing(t, values)
}

func TestJob_EmptyEndOfStreamSampleIsReleasedNotWritten(t *testing.T) {
	sink := &memSink{}
	j := newJob(t, &codectest.AutoFactory{}, &fakeMedia{reader: newReader(1), sink: sink})

	released := 0
	eos := sample.NewWithRelease(nil, 0, 7, func(*sample.MediaSample) { released++ })
	eos.Info = sample.Info{Flags: sample.FlagEndOfStream}
	j.OnSampleAvailable(0, eos)

	last := sample.NewWithRelease(make([]byte, 16), 0, 8, func(*sample.MediaSample) { released++ })
	last.Info = sample.Info{Size: 16, PresentationTimeUs: 33_333, Flags: sample.FlagEndOfStream}
	j.OnSampleAvailable(0, last)

	_, samples, _ := sink.snapshot()
	assert.Equal(t, 1, samples, "only the sample carrying data reaches the sink")
	assert.Equal(t, 2, released)
}

func TestJob_PauseResumeRebuildsPipeline(t *testing.T) {
	defer goleak.VerifyNone(t)

	reader := &gatedReader{
		Reader:  newReader(8),
		blockAt: 3,
		blocked: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	codecs := &codectest.AutoFactory{}
	sink := &memSink{}
	j := newJob(t, codecs, &fakeMedia{reader: reader, sink: sink})

	errCh := runAsync(context.Background(), j, func(int32) {})

	select {
	case <-reader.blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("reader never reached the gate")
	}
	require.NoError(t, j.Pause())
	require.NoError(t, j.Pause())
	close(reader.gate)

	select {
	case err := <-errCh:
		t.Fatalf("paused job returned: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, j.Resume())
	require.NoError(t, waitRun(t, errCh))

	decoders, encoders := codecs.Created()
	assert.Len(t, decoders, 2)
	assert.Len(t, encoders, 2)
	for _, c := range append(decoders, encoders...) {
		_, _, deleted := c.State()
		assert.True(t, deleted, c.Name())
	}
	_, _, closed := sink.snapshot()
	assert.True(t, closed)
}

func TestJob_SinkWriteFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	writeErr := &fs.PathError{Op: "write", Path: "out.mp4", Err: fs.ErrPermission}
	sink := &memSink{writeErr: writeErr}
	j := newJob(t, &codectest.AutoFactory{}, &fakeMedia{reader: newReader(5), sink: sink})

	err := waitRun(t, runAsync(context.Background(), j, func(int32) {}))
	require.ErrorIs(t, err, fs.ErrPermission)
	assert.Equal(t, model.ErrorIO, engine.CodeOf(err))
}

func TestJob_CancelStopsLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	reader := &gatedReader{
		Reader:  newReader(8),
		blockAt: 2,
		blocked: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	j := newJob(t, &codectest.AutoFactory{}, &fakeMedia{reader: reader, sink: &memSink{}})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runAsync(ctx, j, func(int32) {})
	<-reader.blocked
	cancel()
	close(reader.gate)

	err := waitRun(t, errCh)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.ErrorDroppedByService, engine.CodeOf(err))
}

func TestJob_CancelWhilePaused(t *testing.T) {
	defer goleak.VerifyNone(t)

	j := newJob(t, &codectest.AutoFactory{}, &fakeMedia{reader: newReader(5), sink: &memSink{}})
	require.NoError(t, j.Pause())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runAsync(ctx, j, func(int32) {})
	cancel()
	require.ErrorIs(t, waitRun(t, errCh), context.Canceled)
}

func TestFactory_Errors(t *testing.T) {
	cases := []struct {
		name  string
		req   model.Request
		media *fakeMedia
		want  model.ErrorCode
	}{
		{
			name:  "negative bitrate",
			req:   model.Request{BitrateBps: -1},
			media: &fakeMedia{reader: newReader(1), sink: &memSink{}},
			want:  model.ErrorInvalidParameter,
		},
		{
			name:  "missing source",
			media: &fakeMedia{openErr: &fs.PathError{Op: "open", Path: "in.mp4", Err: fs.ErrNotExist}},
			want:  model.ErrorIO,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFactory(&codectest.AutoFactory{}, tc.media).NewJob(model.Key(1, 1), tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.want, engine.CodeOf(err))
		})
	}
}

func TestJob_UnsupportedCodec(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &memSink{}
	j := newJob(t, &codectest.Factory{}, &fakeMedia{reader: newReader(3), sink: sink})

	err := waitRun(t, runAsync(context.Background(), j, func(int32) {}))
	require.True(t, errors.Is(err, codec.ErrUnsupported), "got %v", err)
	assert.Equal(t, model.ErrorUnsupported, engine.CodeOf(err))
	_, _, closed := sink.snapshot()
	assert.True(t, closed)
}

func TestDestinationFormat(t *testing.T) {
	f, err := DestinationFormat(model.Request{BitrateBps: 4_000_000, Width: 640})
	require.NoError(t, err)
	mime, _ := f.String(format.KeyMIME)
	assert.Equal(t, DefaultVideoMIME, mime)
	br, ok := f.Int32(format.KeyBitRate)
	assert.True(t, ok)
	assert.Equal(t, int32(4_000_000), br)
	assert.False(t, f.Has(format.KeyHeight))
}
