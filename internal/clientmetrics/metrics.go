// Package clientmetrics counts what a long-lived client connection did:
// dials, frames and bytes written, and write or dial failures.
package clientmetrics

import (
	"sync"
	"time"
)

// Link tracks one client's connection to a remote peer. The zero value is
// ready to use and safe for concurrent callers.
type Link struct {
	mu          sync.Mutex
	connectedAt time.Time
	dials       int64
	frames      int64
	bytes       int64
	failures    int64
}

func New() *Link {
	return &Link{}
}

// Connected records a successful dial.
func (l *Link) Connected() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dials++
	l.connectedAt = time.Now()
}

// Disconnected clears the connection start.
func (l *Link) Disconnected() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connectedAt = time.Time{}
}

// Sent records one frame of n bytes.
func (l *Link) Sent(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames++
	l.bytes += int64(n)
}

// Failed records a failed dial or write.
func (l *Link) Failed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures++
}

// Snapshot is a point-in-time copy of a Link's counters.
type Snapshot struct {
	Connected  bool
	Uptime     time.Duration
	Dials      int64
	FramesSent int64
	BytesSent  int64
	Failures   int64
}

func (l *Link) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Snapshot{
		Dials:      l.dials,
		FramesSent: l.frames,
		BytesSent:  l.bytes,
		Failures:   l.failures,
	}
	if !l.connectedAt.IsZero() {
		s.Connected = true
		s.Uptime = time.Since(l.connectedAt)
	}
	return s
}
