package clientmetrics

import (
	"sync"
	"testing"
)

func TestLinkCounters(t *testing.T) {
	l := New()
	if s := l.Snapshot(); s.Connected || s.Dials != 0 {
		t.Fatalf("fresh link snapshot = %+v", s)
	}

	l.Connected()
	l.Sent(100)
	l.Sent(50)
	l.Failed()

	s := l.Snapshot()
	if !s.Connected {
		t.Error("Connected = false after dial")
	}
	if s.Dials != 1 || s.FramesSent != 2 || s.BytesSent != 150 || s.Failures != 1 {
		t.Errorf("snapshot = %+v", s)
	}

	l.Disconnected()
	if s := l.Snapshot(); s.Connected || s.Uptime != 0 {
		t.Errorf("after disconnect snapshot = %+v", s)
	}
}

func TestLinkConcurrentSends(t *testing.T) {
	var l Link
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Sent(10)
		}()
	}
	wg.Wait()
	if s := l.Snapshot(); s.FramesSent != 50 || s.BytesSent != 500 {
		t.Errorf("snapshot = %+v, want 50 frames / 500 bytes", s)
	}
}
