// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"strings"
	"sync"
)

// LineRing keeps the last N lines written to it. It is safe for concurrent use.
type LineRing struct {
	mu      sync.Mutex
	lines   []string
	head    int
	count   int
	partial strings.Builder
}

// NewLineRing creates a LineRing with the specified capacity.
func NewLineRing(capacity int) *LineRing {
	if capacity < 1 {
		capacity = 50
	}
	return &LineRing{lines: make([]string, capacity)}
}

// Write implements io.Writer. Text after the last newline is held until the
// line completes.
func (r *LineRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := string(p)
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			r.partial.WriteString(s)
			break
		}
		r.partial.WriteString(s[:i])
		r.add(strings.TrimRight(r.partial.String(), "\r"))
		r.partial.Reset()
		s = s[i+1:]
	}
	return len(p), nil
}

// Add appends one complete line.
func (r *LineRing) Add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(line)
}

func (r *LineRing) add(line string) {
	if line == "" {
		return
	}
	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// LastN returns the last n lines in chronological order.
func (r *LineRing) LastN(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	n = min(n, r.count)
	out := make([]string, 0, n)
	start := (r.head - r.count + len(r.lines)) % len(r.lines)
	for i := r.count - n; i < r.count; i++ {
		out = append(out, r.lines[(start+i)%len(r.lines)])
	}
	return out
}
