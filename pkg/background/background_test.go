package background

import (
	"context"
	"testing"
	"time"
)

func TestLatestEmpty(t *testing.T) {
	s := NewStore()
	img, version := s.Latest()
	if img != nil || version != 0 {
		t.Fatalf("empty store: img=%v version=%d", img, version)
	}
}

func TestSetBumpsVersion(t *testing.T) {
	s := NewStore()
	v1 := s.Set(Image{Data: []byte{1}, MIME: "image/png"})
	v2 := s.Set(Image{Data: []byte{2}, MIME: "image/png"})
	if v1 != 1 || v2 != 2 {
		t.Fatalf("versions = %d, %d", v1, v2)
	}
	img, version := s.Latest()
	if version != 2 || img.Data[0] != 2 {
		t.Fatalf("latest = %v at %d", img, version)
	}
}

func TestWaitReturnsImmediatelyWhenBehind(t *testing.T) {
	s := NewStore()
	s.Set(Image{Data: []byte{1}, MIME: "image/png"})

	start := time.Now()
	img, version := s.Wait(context.Background(), 0, 5*time.Second)
	if version != 1 || img == nil {
		t.Fatalf("wait = %v at %d", img, version)
	}
	if time.Since(start) > time.Second {
		t.Fatal("wait should not block when the client is behind")
	}
}

func TestWaitWakesOnSet(t *testing.T) {
	s := NewStore()
	s.Set(Image{Data: []byte{1}, MIME: "image/png"})

	done := make(chan uint64, 1)
	go func() {
		_, version := s.Wait(context.Background(), 1, 5*time.Second)
		done <- version
	}()

	time.Sleep(50 * time.Millisecond)
	s.Set(Image{Data: []byte{2}, MIME: "image/jpeg"})

	select {
	case version := <-done:
		if version != 2 {
			t.Fatalf("woke at version %d, want 2", version)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never woke up")
	}
}

func TestWaitTimesOutUnchanged(t *testing.T) {
	s := NewStore()
	s.Set(Image{Data: []byte{1}, MIME: "image/png"})

	img, version := s.Wait(context.Background(), 1, 50*time.Millisecond)
	if version != 1 || img == nil {
		t.Fatalf("timed-out wait = %v at %d", img, version)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Wait(ctx, 0, time.Minute)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("wait ignored context cancellation")
	}
}
