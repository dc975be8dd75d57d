// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package format

// EntryCopier copies one key from a source format to a destination format.
// It reports whether anything was copied.
type EntryCopier func(src, dst *MediaFormat) bool

// CopyInt32 copies an int32 entry.
func CopyInt32(key string) EntryCopier {
	return func(src, dst *MediaFormat) bool {
		if v, ok := src.Int32(key); ok {
			dst.SetInt32(key, v)
			return true
		}
		return false
	}
}

// CopyInt64 copies an int64 entry.
func CopyInt64(key string) EntryCopier {
	return func(src, dst *MediaFormat) bool {
		if v, ok := src.Int64(key); ok {
			dst.SetInt64(key, v)
			return true
		}
		return false
	}
}

// CopyFloatOrInt32 copies a float entry, falling back to an int32 entry
// stored under the same key.
func CopyFloatOrInt32(key string) EntryCopier {
	return func(src, dst *MediaFormat) bool {
		if v, ok := src.Float(key); ok {
			dst.SetFloat(key, v)
			return true
		}
		if v, ok := src.Int32(key); ok {
			dst.SetInt32(key, v)
			return true
		}
		return false
	}
}

// CopyEntries applies each copier from src onto dst.
func CopyEntries(src, dst *MediaFormat, copiers ...EntryCopier) {
	if src == nil || dst == nil {
		return
	}
	for _, c := range copiers {
		c(src, dst)
	}
}
