// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package transcoder

import (
	"github.com/ManuGH/mediatranscoding/internal/media/codec"
	"github.com/ManuGH/mediatranscoding/internal/media/format"
)

// message is one unit of work for the transcode loop. Codec callbacks only
// construct messages; the loop goroutine is the sole consumer.
type message interface {
	kind() string
}

type startCodec struct{ encoder bool }

type inputReady struct{ index int }

type outputReady struct {
	index       int
	info        codec.BufferInfo
	fromEncoder bool
}

type formatChanged struct{ format *format.MediaFormat }

type codecError struct{ err error }

type stopLoop struct{}

func (startCodec) kind() string    { return "start_codec" }
func (inputReady) kind() string    { return "input_ready" }
func (outputReady) kind() string   { return "output_ready" }
func (formatChanged) kind() string { return "format_changed" }
func (codecError) kind() string    { return "codec_error" }
func (stopLoop) kind() string      { return "stop" }
