// SPDX-License-Identifier: MIT

package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Accumulates(t *testing.T) {
	v := New()
	assert.True(t, v.IsValid())
	require.NoError(t, v.Err())

	v.Range("Workers", 0, 1, 8)
	v.NotEmpty("Bin", "  ")
	v.OneOf("Kind", "gstreamer", []string{"ffmpeg"})
	require.False(t, v.IsValid())

	err := v.Err()
	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Errors(), 3)
	assert.Equal(t, "Workers", verr.Errors()[0].Field)
	assert.Contains(t, err.Error(), "validation failed for Bin")
	assert.Contains(t, err.Error(), "; ")
}

func TestValidator_ListenAddr(t *testing.T) {
	cases := map[string]bool{
		":8080":          true,
		"127.0.0.1:9000": true,
		"[::1]:0":        true,
		"":               false,
		"localhost":      false,
		":http-alt":      false,
		":70000":         false,
	}
	for addr, ok := range cases {
		v := New()
		v.ListenAddr("Addr", addr)
		assert.Equal(t, ok, v.IsValid(), addr)
	}
}

func TestValidator_Numbers(t *testing.T) {
	v := New()
	v.FloatRange("CPU", 50, 0, 100)
	v.MinDuration("Poll", time.Second, 100*time.Millisecond)
	v.NonNegative("Mem", 0)
	assert.True(t, v.IsValid())

	v.FloatRange("CPU", 120, 0, 100)
	v.MinDuration("Poll", time.Millisecond, 100*time.Millisecond)
	v.NonNegative("Mem", -1)
	assert.Len(t, v.Errors(), 3)
}

func TestValidator_FilePath(t *testing.T) {
	for path, ok := range map[string]bool{
		"":                    true,
		"history.db":          true,
		"/var/lib/x/h.db":     true,
		"../escape.db":        false,
		"data/../../etc/x.db": false,
		"data/":               false,
	} {
		v := New()
		v.FilePath("History", path)
		assert.Equal(t, ok, v.IsValid(), path)
	}
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := ParseLogLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, lvl)

	lvl, err = ParseLogLevel(" TRACE ")
	require.NoError(t, err)
	assert.Equal(t, LogLevelTrace, lvl)

	_, err = ParseLogLevel("verbose")
	assert.ErrorIs(t, err, ErrInvalidLogLevel)

	v := New()
	v.LogLevel("LogLevel", "info")
	v.LogLevel("LogLevel", "chatty")
	require.Len(t, v.Errors(), 1)
	assert.Equal(t, "chatty", v.Errors()[0].Value)
}
