// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package codec is the contract between the track transcoders and a native
// codec implementation (hardware codec service, software library, or a test
// double). Codecs run in asynchronous mode: buffer availability and errors are
// reported through AsyncCallbacks invoked on codec-owned goroutines.
package codec

import (
	"github.com/ManuGH/mediatranscoding/internal/media/format"
	"github.com/ManuGH/mediatranscoding/internal/media/sample"
)

// InfoOutputFormatChanged is reported as an output buffer index when the
// codec output format changed instead of a buffer becoming available.
const InfoOutputFormatChanged = -2

// ConfigureFlags modify Codec.Configure.
type ConfigureFlags uint32

const ConfigureEncode ConfigureFlags = 1

// BufferInfo describes a codec output buffer.
type BufferInfo struct {
	Offset             int
	Size               int
	PresentationTimeUs int64
	Flags              sample.Flags
}

// Surface is a frame buffer queue shared between a producer codec and a
// consumer codec.
type Surface interface {
	Release()
}

// AsyncCallbacks are registered on a codec before it is started. They run on
// codec goroutines and must not block.
type AsyncCallbacks struct {
	OnInputAvailable  func(c Codec, index int)
	OnOutputAvailable func(c Codec, index int, info BufferInfo)
	OnFormatChanged   func(c Codec, f *format.MediaFormat)
	OnError           func(c Codec, err error, actionCode int, detail string)
}

// Codec is one native codec instance.
type Codec interface {
	Name() string
	Configure(f *format.MediaFormat, surface Surface, flags ConfigureFlags) error
	// CreateInputSurface must be called after Configure and before Start on encoders.
	CreateInputSurface() (Surface, error)
	SetAsyncCallbacks(cb AsyncCallbacks) error
	Start() error
	Stop() error
	// Delete frees the codec. The codec must not be used afterwards.
	Delete()

	// InputBuffer returns the writable input buffer at index, or nil.
	InputBuffer(index int) []byte
	QueueInputBuffer(index, offset, size int, presentationTimeUs int64, flags sample.Flags) error
	// OutputBuffer returns the readable output buffer at index, or nil.
	OutputBuffer(index int) []byte
	ReleaseOutputBuffer(index int, render bool) error
	SignalEndOfInputStream() error
	OutputFormat() *format.MediaFormat
}

// Factory creates codecs by MIME type.
type Factory interface {
	CreateEncoderByType(mime string) (Codec, error)
	CreateDecoderByType(mime string) (Codec, error)
}
