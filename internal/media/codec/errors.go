// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package codec

import (
	"errors"
	"fmt"
)

var (
	ErrUnknown              = errors.New("media: unknown error")
	ErrInvalidParameter     = errors.New("media: invalid parameter")
	ErrUnsupported          = errors.New("media: unsupported")
	ErrMalformed            = errors.New("media: malformed")
	ErrInvalidOperation     = errors.New("media: invalid operation")
	ErrInsufficientResource = errors.New("media: insufficient resource")
)

// Error attributes a failure to a codec operation.
type Error struct {
	Codec string
	Op    string
	Err   error
}

func (e *Error) Error() string {
	if e.Codec == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Codec, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns nil when err is nil, otherwise an *Error for op on c.
func Wrap(c Codec, op string, err error) error {
	if err == nil {
		return nil
	}
	name := ""
	if c != nil {
		name = c.Name()
	}
	return &Error{Codec: name, Op: op, Err: err}
}
