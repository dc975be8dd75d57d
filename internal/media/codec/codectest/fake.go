// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package codectest provides an in-memory codec pair for tests. In Auto mode a
// decoder/encoder pair connected through a surface behaves like a real
// pipeline: queued input comes back as decoder output, rendered decoder output
// becomes encoder output, and end of stream propagates.
package codectest

import (
	"fmt"
	"sync"

	"github.com/ManuGH/mediatranscoding/internal/media/codec"
	"github.com/ManuGH/mediatranscoding/internal/media/format"
	"github.com/ManuGH/mediatranscoding/internal/media/queue"
	"github.com/ManuGH/mediatranscoding/internal/media/sample"
)

// QueuedInput records a QueueInputBuffer call.
type QueuedInput struct {
	Index              int
	Size               int
	PresentationTimeUs int64
	Flags              sample.Flags
}

// ReleasedOutput records a ReleaseOutputBuffer call.
type ReleasedOutput struct {
	Index  int
	Render bool
}

// Codec is a scriptable codec.Codec.
type Codec struct {
	name    string
	encoder bool

	// Auto drives the pipeline without test intervention.
	Auto bool
	// InputSlots is the number of decoder input buffers announced on Start in Auto mode.
	InputSlots int
	// InputBufferSize is the capacity of each input buffer.
	InputBufferSize int
	// FrameSize is the payload size of encoder output buffers in Auto mode.
	FrameSize int

	ConfigureErr     error
	StartErr         error
	QueueInputErr    error
	SignalEOSErr     error
	ReleaseOutputErr error
	NilInputBuffers  bool

	mu           sync.Mutex
	cb           codec.AsyncCallbacks
	configured   *format.MediaFormat
	outputFormat *format.MediaFormat
	surface      *Surface
	inputBuffers map[int][]byte
	outputs      map[int][]byte
	pendingInfo  map[int]codec.BufferInfo
	nextOut      int
	formatSent   bool

	queued     []QueuedInput
	released   []ReleasedOutput
	eosSignals int
	started    bool
	stopped    bool
	deleted    bool

	events     *queue.BlockingQueue[func()]
	dispatchWG sync.WaitGroup
}

// NewDecoder returns a decoder named name.
func NewDecoder(name string) *Codec { return newCodec(name, false) }

// NewEncoder returns an encoder named name.
func NewEncoder(name string) *Codec { return newCodec(name, true) }

func newCodec(name string, encoder bool) *Codec {
	c := &Codec{
		name:            name,
		encoder:         encoder,
		InputSlots:      2,
		InputBufferSize: 1024,
		FrameSize:       64,
		inputBuffers:    make(map[int][]byte),
		outputs:         make(map[int][]byte),
		pendingInfo:     make(map[int]codec.BufferInfo),
		outputFormat:    format.New(),
		events:          queue.New[func()](),
	}
	c.dispatchWG.Add(1)
	go c.dispatch()
	return c
}

func (c *Codec) dispatch() {
	defer c.dispatchWG.Done()
	for {
		fn := c.events.Pop()
		if fn == nil {
			return
		}
		fn()
	}
}

func (c *Codec) post(fn func()) {
	c.mu.Lock()
	deleted := c.deleted
	c.mu.Unlock()
	if !deleted {
		c.events.Push(fn)
	}
}

func (c *Codec) callbacks() codec.AsyncCallbacks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cb
}

func (c *Codec) Name() string { return c.name }

func (c *Codec) Configure(f *format.MediaFormat, surface codec.Surface, _ codec.ConfigureFlags) error {
	if c.ConfigureErr != nil {
		return c.ConfigureErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configured = f.Copy()
	if s, ok := surface.(*Surface); ok {
		c.surface = s
	}
	if mime, ok := f.String(format.KeyMIME); ok {
		c.outputFormat.SetString(format.KeyMIME, mime)
	}
	return nil
}

func (c *Codec) CreateInputSurface() (codec.Surface, error) {
	if !c.encoder {
		return nil, codec.ErrInvalidOperation
	}
	return &Surface{consumer: c}, nil
}

func (c *Codec) SetAsyncCallbacks(cb codec.AsyncCallbacks) error {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
	return nil
}

func (c *Codec) Start() error {
	if c.StartErr != nil {
		return c.StartErr
	}
	c.mu.Lock()
	c.started = true
	auto, slots := c.Auto, c.InputSlots
	c.mu.Unlock()
	if auto && !c.encoder {
		for i := 0; i < slots; i++ {
			c.EmitInputAvailable(i)
		}
	}
	return nil
}

func (c *Codec) Stop() error {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	return nil
}

func (c *Codec) Delete() {
	c.mu.Lock()
	if c.deleted {
		c.mu.Unlock()
		return
	}
	c.deleted = true
	c.mu.Unlock()
	c.events.Push(nil)
	c.dispatchWG.Wait()
}

func (c *Codec) InputBuffer(index int) []byte {
	if c.NilInputBuffers {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.inputBuffers[index]
	if !ok {
		buf = make([]byte, c.InputBufferSize)
		c.inputBuffers[index] = buf
	}
	return buf
}

func (c *Codec) QueueInputBuffer(index, offset, size int, pts int64, flags sample.Flags) error {
	if c.QueueInputErr != nil {
		return c.QueueInputErr
	}
	c.mu.Lock()
	c.queued = append(c.queued, QueuedInput{Index: index, Size: size, PresentationTimeUs: pts, Flags: flags})
	auto := c.Auto
	c.mu.Unlock()

	if auto {
		eos := flags.Has(sample.FlagEndOfStream)
		c.produce(codec.BufferInfo{Size: size, PresentationTimeUs: pts, Flags: flags & sample.FlagEndOfStream})
		if !eos {
			c.EmitInputAvailable(index)
		}
	}
	return nil
}

func (c *Codec) OutputBuffer(index int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputs[index]
}

func (c *Codec) ReleaseOutputBuffer(index int, render bool) error {
	c.mu.Lock()
	c.released = append(c.released, ReleasedOutput{Index: index, Render: render})
	info := c.pendingInfo[index]
	delete(c.pendingInfo, index)
	delete(c.outputs, index)
	surface := c.surface
	auto := c.Auto
	err := c.ReleaseOutputErr
	c.mu.Unlock()

	if auto && render && surface != nil {
		surface.render(info.PresentationTimeUs)
	}
	return err
}

func (c *Codec) SignalEndOfInputStream() error {
	if c.SignalEOSErr != nil {
		return c.SignalEOSErr
	}
	c.mu.Lock()
	c.eosSignals++
	auto := c.Auto
	c.mu.Unlock()
	if auto {
		c.produce(codec.BufferInfo{Flags: sample.FlagEndOfStream})
	}
	return nil
}

func (c *Codec) OutputFormat() *format.MediaFormat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputFormat.Copy()
}

// SetOutputFormat replaces the format reported on format change.
func (c *Codec) SetOutputFormat(f *format.MediaFormat) {
	c.mu.Lock()
	c.outputFormat = f.Copy()
	c.mu.Unlock()
}

// produce allocates an output buffer and announces it.
func (c *Codec) produce(info codec.BufferInfo) {
	c.mu.Lock()
	idx := c.nextOut
	c.nextOut++
	if c.encoder && info.Size > 0 {
		c.outputs[idx] = make([]byte, info.Size)
	}
	c.pendingInfo[idx] = info
	sendFormat := c.encoder && !c.formatSent
	c.formatSent = true
	c.mu.Unlock()

	if sendFormat {
		c.EmitFormatChanged(c.OutputFormat())
	}
	c.EmitOutputAvailable(idx, info)
}

// EmitInputAvailable posts an input-available callback.
func (c *Codec) EmitInputAvailable(index int) {
	c.post(func() {
		if cb := c.callbacks().OnInputAvailable; cb != nil {
			cb(c, index)
		}
	})
}

// EmitOutputAvailable posts an output-available callback. Outside Auto mode the
// encoder output buffer is allocated with info.Size bytes.
func (c *Codec) EmitOutputAvailable(index int, info codec.BufferInfo) {
	c.mu.Lock()
	if _, ok := c.outputs[index]; !ok && c.encoder && info.Size > 0 {
		c.outputs[index] = make([]byte, info.Offset+info.Size)
	}
	c.mu.Unlock()
	c.post(func() {
		if cb := c.callbacks().OnOutputAvailable; cb != nil {
			cb(c, index, info)
		}
	})
}

// EmitFormatChanged posts a format-changed callback.
func (c *Codec) EmitFormatChanged(f *format.MediaFormat) {
	c.post(func() {
		if cb := c.callbacks().OnFormatChanged; cb != nil {
			cb(c, f)
		}
	})
}

// EmitError posts an error callback.
func (c *Codec) EmitError(err error) {
	c.post(func() {
		if cb := c.callbacks().OnError; cb != nil {
			cb(c, err, 0, fmt.Sprintf("injected: %v", err))
		}
	})
}

// Queued returns the recorded QueueInputBuffer calls.
func (c *Codec) Queued() []QueuedInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]QueuedInput(nil), c.queued...)
}

// Released returns the recorded ReleaseOutputBuffer calls.
func (c *Codec) Released() []ReleasedOutput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ReleasedOutput(nil), c.released...)
}

// EOSSignals counts SignalEndOfInputStream calls.
func (c *Codec) EOSSignals() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eosSignals
}

// Configured returns a copy of the format passed to Configure.
func (c *Codec) Configured() *format.MediaFormat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configured.Copy()
}

// State reports lifecycle flags.
func (c *Codec) State() (started, stopped, deleted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started, c.stopped, c.deleted
}

// Surface links a decoder's rendered output to an encoder's input.
type Surface struct {
	consumer *Codec
	mu       sync.Mutex
	released bool
}

func (s *Surface) render(pts int64) {
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released || s.consumer == nil || !s.consumer.Auto {
		return
	}
	s.consumer.produce(codec.BufferInfo{Size: s.consumer.FrameSize, PresentationTimeUs: pts})
}

func (s *Surface) Release() {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
}

// Factory hands out preconfigured codecs.
type Factory struct {
	Decoder *Codec
	Encoder *Codec
	// Unsupported MIME types make creation fail with codec.ErrUnsupported.
	Unsupported map[string]bool
}

func (f *Factory) CreateEncoderByType(mime string) (codec.Codec, error) {
	if f.Unsupported[mime] || f.Encoder == nil {
		return nil, codec.ErrUnsupported
	}
	return f.Encoder, nil
}

func (f *Factory) CreateDecoderByType(mime string) (codec.Codec, error) {
	if f.Unsupported[mime] || f.Decoder == nil {
		return nil, codec.ErrUnsupported
	}
	return f.Decoder, nil
}

// Reader is an in-memory sample.Reader serving a fixed list of samples.
type Reader struct {
	mu       sync.Mutex
	Samples  []sample.Info
	Bitrate  int32
	Format   *format.MediaFormat
	ReadErr  error
	InfoErr  error
	next     int
	BitrateE error
}

func (r *Reader) EstimatedBitrateForTrack(int) (int32, error) {
	if r.BitrateE != nil {
		return 0, r.BitrateE
	}
	return r.Bitrate, nil
}

func (r *Reader) SampleInfoForTrack(int) (sample.Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InfoErr != nil {
		return sample.Info{}, r.InfoErr
	}
	if r.next >= len(r.Samples) {
		return sample.Info{Flags: sample.FlagEndOfStream}, sample.ErrEndOfStream
	}
	return r.Samples[r.next], nil
}

func (r *Reader) ReadSampleDataForTrack(_ int, buf []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ReadErr != nil {
		return r.ReadErr
	}
	if r.next >= len(r.Samples) {
		return sample.ErrEndOfStream
	}
	for i := range buf {
		buf[i] = byte(r.next)
	}
	r.next++
	return nil
}

func (r *Reader) TrackFormat(int) (*format.MediaFormat, error) {
	if r.Format == nil {
		return nil, codec.ErrInvalidParameter
	}
	return r.Format.Copy(), nil
}

// Frames builds n sample infos of size bytes spaced 33ms apart.
func Frames(n, size int) []sample.Info {
	out := make([]sample.Info, n)
	for i := range out {
		out[i] = sample.Info{Size: size, PresentationTimeUs: int64(i) * 33_333}
	}
	return out
}

// AutoFactory creates a fresh Auto-mode codec for every request, for callers
// that build more than one pipeline.
type AutoFactory struct {
	mu       sync.Mutex
	decoders []*Codec
	encoders []*Codec
}

func (f *AutoFactory) CreateEncoderByType(string) (codec.Codec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := NewEncoder(fmt.Sprintf("enc-%d", len(f.encoders)))
	c.Auto = true
	f.encoders = append(f.encoders, c)
	return c, nil
}

func (f *AutoFactory) CreateDecoderByType(string) (codec.Codec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := NewDecoder(fmt.Sprintf("dec-%d", len(f.decoders)))
	c.Auto = true
	f.decoders = append(f.decoders, c)
	return c, nil
}

// Created returns the codecs handed out so far.
func (f *AutoFactory) Created() (decoders, encoders []*Codec) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Codec(nil), f.decoders...), append([]*Codec(nil), f.encoders...)
}
