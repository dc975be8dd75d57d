// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package sample defines media samples exchanged between the sample reader,
// the track transcoders and the sample writer.
package sample

import (
	"errors"
	"sync"

	"github.com/ManuGH/mediatranscoding/internal/media/format"
)

// Flags carried by samples and codec buffers.
type Flags uint32

const (
	FlagCodecConfig  Flags = 2
	FlagEndOfStream  Flags = 4
	FlagPartialFrame Flags = 8
)

// Has reports whether all bits of want are set.
func (f Flags) Has(want Flags) bool { return f&want == want }

// ErrEndOfStream is returned by Reader.SampleInfoForTrack once the track has
// no more samples.
var ErrEndOfStream = errors.New("end of stream")

// Info describes one sample.
type Info struct {
	Size               int
	PresentationTimeUs int64
	Flags              Flags
}

// Reader is the track reader collaborator. It is owned by the demuxing layer;
// implementations serialize access internally.
type Reader interface {
	// EstimatedBitrateForTrack returns the average bitrate of the track in bits per second.
	EstimatedBitrateForTrack(track int) (int32, error)
	// SampleInfoForTrack describes the next sample, or returns ErrEndOfStream.
	SampleInfoForTrack(track int) (Info, error)
	// ReadSampleDataForTrack copies the next sample into buf and advances the track.
	ReadSampleDataForTrack(track int, buf []byte) error
	// TrackFormat returns the source format of the track.
	TrackFormat(track int) (*format.MediaFormat, error)
}

// ReleaseFunc is invoked exactly once when a sample is released.
type ReleaseFunc func(s *MediaSample)

// MediaSample is a view over a buffer owned by someone else (typically an
// encoder output buffer). The owner is notified through the release callback.
type MediaSample struct {
	Buffer     []byte
	DataOffset int
	BufferID   int
	Info       Info

	once    sync.Once
	release ReleaseFunc
}

// NewWithRelease wraps buf. release may be nil.
func NewWithRelease(buf []byte, offset, bufferID int, release ReleaseFunc) *MediaSample {
	return &MediaSample{
		Buffer:     buf,
		DataOffset: offset,
		BufferID:   bufferID,
		release:    release,
	}
}

// Data returns the sample payload.
func (s *MediaSample) Data() []byte {
	if s.Buffer == nil {
		return nil
	}
	end := s.DataOffset + s.Info.Size
	if end > len(s.Buffer) {
		end = len(s.Buffer)
	}
	if s.DataOffset >= end {
		return nil
	}
	return s.Buffer[s.DataOffset:end]
}

// Release hands the underlying buffer back to its owner. Subsequent calls are no-ops.
func (s *MediaSample) Release() {
	s.once.Do(func() {
		if s.release != nil {
			s.release(s)
		}
	})
}
