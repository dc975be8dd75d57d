// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package format implements MediaFormat, the typed key/value description of a
// media track shared between the sample reader, the codecs and the writer.
package format

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Well-known format keys.
const (
	KeyMIME             = "mime"
	KeyBitRate          = "bitrate"
	KeyIFrameInterval   = "i-frame-interval"
	KeyColorFormat      = "color-format"
	KeyRotation         = "rotation-degrees"
	KeyOperatingRate    = "operating-rate"
	KeyPriority         = "priority"
	KeyAllowFrameDrop   = "allow-frame-drop"
	KeySARWidth         = "sar-width"
	KeySARHeight        = "sar-height"
	KeyDisplayWidth     = "display-width"
	KeyDisplayHeight    = "display-height"
	KeyDuration         = "durationUs"
	KeyWidth            = "width"
	KeyHeight           = "height"
	KeyFrameRate        = "frame-rate"
	KeyCodecSpecificCSD = "csd-0"
)

// ColorFormatSurface marks a codec whose input arrives through a surface
// rather than byte buffers.
const ColorFormatSurface int32 = 0x7f000789

type kind uint8

const (
	kindInt32 kind = iota + 1
	kindInt64
	kindFloat
	kindString
	kindBytes
)

type entry struct {
	kind kind
	i32  int32
	i64  int64
	f32  float32
	str  string
	raw  []byte
}

// MediaFormat is a concurrency-safe typed map. The zero value is not usable;
// use New.
type MediaFormat struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New returns an empty format.
func New() *MediaFormat {
	return &MediaFormat{entries: make(map[string]entry)}
}

// Copy returns a deep copy of f. Copy of a nil format is nil.
func (f *MediaFormat) Copy() *MediaFormat {
	if f == nil {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := &MediaFormat{entries: make(map[string]entry, len(f.entries))}
	for k, e := range f.entries {
		if e.raw != nil {
			e.raw = append([]byte(nil), e.raw...)
		}
		out.entries[k] = e
	}
	return out
}

func (f *MediaFormat) get(key string, want kind) (entry, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.entries[key]
	if !ok || e.kind != want {
		return entry{}, false
	}
	return e, true
}

func (f *MediaFormat) set(key string, e entry) {
	f.mu.Lock()
	f.entries[key] = e
	f.mu.Unlock()
}

// Int32 returns the int32 stored under key.
func (f *MediaFormat) Int32(key string) (int32, bool) {
	e, ok := f.get(key, kindInt32)
	return e.i32, ok
}

// Int64 returns the int64 stored under key.
func (f *MediaFormat) Int64(key string) (int64, bool) {
	e, ok := f.get(key, kindInt64)
	return e.i64, ok
}

// Float returns the float stored under key.
func (f *MediaFormat) Float(key string) (float32, bool) {
	e, ok := f.get(key, kindFloat)
	return e.f32, ok
}

// String returns the string stored under key.
func (f *MediaFormat) String(key string) (string, bool) {
	e, ok := f.get(key, kindString)
	return e.str, ok
}

// Bytes returns the buffer stored under key.
func (f *MediaFormat) Bytes(key string) ([]byte, bool) {
	e, ok := f.get(key, kindBytes)
	return e.raw, ok
}

func (f *MediaFormat) SetInt32(key string, v int32)   { f.set(key, entry{kind: kindInt32, i32: v}) }
func (f *MediaFormat) SetInt64(key string, v int64)   { f.set(key, entry{kind: kindInt64, i64: v}) }
func (f *MediaFormat) SetFloat(key string, v float32) { f.set(key, entry{kind: kindFloat, f32: v}) }
func (f *MediaFormat) SetString(key string, v string) { f.set(key, entry{kind: kindString, str: v}) }
func (f *MediaFormat) SetBytes(key string, v []byte) {
	f.set(key, entry{kind: kindBytes, raw: append([]byte(nil), v...)})
}

// Has reports whether key is present with any type.
func (f *MediaFormat) Has(key string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.entries[key]
	return ok
}

// Keys returns the sorted key set.
func (f *MediaFormat) Keys() []string {
	f.mu.RLock()
	keys := make([]string, 0, len(f.entries))
	for k := range f.entries {
		keys = append(keys, k)
	}
	f.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Describe renders the format as "{key: value, ...}" in key order, for logs.
func (f *MediaFormat) Describe() string {
	if f == nil {
		return "{}"
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range f.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		f.mu.RLock()
		e := f.entries[k]
		f.mu.RUnlock()
		switch e.kind {
		case kindInt32:
			fmt.Fprintf(&b, "%s: int32(%d)", k, e.i32)
		case kindInt64:
			fmt.Fprintf(&b, "%s: int64(%d)", k, e.i64)
		case kindFloat:
			fmt.Fprintf(&b, "%s: float(%g)", k, e.f32)
		case kindString:
			fmt.Fprintf(&b, "%s: string(%s)", k, e.str)
		case kindBytes:
			fmt.Fprintf(&b, "%s: data[%d]", k, len(e.raw))
		}
	}
	b.WriteByte('}')
	return b.String()
}
