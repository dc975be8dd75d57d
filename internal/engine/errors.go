// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"errors"
	"io/fs"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/media/codec"
	"github.com/ManuGH/mediatranscoding/internal/media/transcoder"
)

var (
	// ErrUnknownSession is reported when a command names a session without a job.
	ErrUnknownSession = errors.New("engine: no job for session")
	// ErrDropped marks work the service gave up on.
	ErrDropped = errors.New("engine: dropped by service")
)

// Coder is implemented by errors that carry their own client error code.
type Coder interface {
	ErrorCode() model.ErrorCode
}

// CodeOf classifies a job error for the client.
func CodeOf(err error) model.ErrorCode {
	if err == nil {
		return model.ErrorNone
	}
	var c Coder
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, codec.ErrMalformed):
		return model.ErrorMalformed
	case errors.Is(err, codec.ErrUnsupported):
		return model.ErrorUnsupported
	case errors.Is(err, codec.ErrInvalidParameter):
		return model.ErrorInvalidParameter
	case errors.Is(err, codec.ErrInvalidOperation),
		errors.Is(err, transcoder.ErrAlreadyStarted),
		errors.Is(err, ErrUnknownSession):
		return model.ErrorInvalidOperation
	case errors.Is(err, codec.ErrInsufficientResource):
		return model.ErrorInsufficientResources
	case errors.Is(err, ErrDropped), errors.Is(err, context.Canceled):
		return model.ErrorDroppedByService
	case errors.As(err, &pathErr), errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return model.ErrorIO
	default:
		return model.ErrorUnknown
	}
}
