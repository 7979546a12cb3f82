package gesture

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type chanSource struct {
	ch  chan Frame
	err error
}

func (s *chanSource) Frames(context.Context) (<-chan Frame, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ch, nil
}

func runLoop(t *testing.T, src *chanSource, locked func() bool) (*Loop, <-chan Command, <-chan Status, func()) {
	t.Helper()
	cmds := make(chan Command, 16)
	statuses := make(chan Status, 16)
	loop := NewLoop(LoopOptions{
		Recognizer: NewRecognizer(DefaultConfig()),
		Source:     src,
		OnCommand:  func(c Command) { cmds <- c },
		OnStatus:   func(s Status) { statuses <- s },
		Locked:     locked,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	return loop, cmds, statuses, func() {
		cancel()
		<-done
	}
}

func TestLoopEmitsCommands(t *testing.T) {
	src := &chanSource{ch: make(chan Frame, 16)}
	_, cmds, _, stop := runLoop(t, src, nil)
	defer stop()

	src.ch <- frame(t0, openHand(Right, 0.5, 0.6))
	src.ch <- frame(t0.Add(100*time.Millisecond), openHand(Right, 0.5, 0.45))

	select {
	case cmd := <-cmds:
		if cmd != SpinUp {
			t.Fatalf("cmd = %v, want SpinUp", cmd)
		}
	case <-time.After(time.Second):
		t.Fatal("no command emitted")
	}
}

func TestLoopDropsFramesWhileLocked(t *testing.T) {
	var locked atomic.Bool
	src := &chanSource{ch: make(chan Frame, 16)}
	_, cmds, _, stop := runLoop(t, src, locked.Load)
	defer stop()

	// Prime a sample, then lock before the swipe completes.
	src.ch <- frame(t0, openHand(Right, 0.5, 0.6))
	for len(src.ch) > 0 {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	locked.Store(true)
	src.ch <- frame(t0.Add(100*time.Millisecond), openHand(Right, 0.5, 0.45))
	for len(src.ch) > 0 {
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case cmd := <-cmds:
		t.Fatalf("command %v classified after lock", cmd)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestLoopIgnoresDuplicateTimestamps(t *testing.T) {
	src := &chanSource{ch: make(chan Frame, 16)}
	_, cmds, _, stop := runLoop(t, src, nil)
	defer stop()

	src.ch <- frame(t0, openHand(Left, 0.3, 0.5), openHand(Right, 0.7, 0.5))
	clapFrame := frame(t0.Add(100*time.Millisecond), openHand(Left, 0.45, 0.5), openHand(Right, 0.55, 0.5))
	src.ch <- clapFrame
	src.ch <- clapFrame // same timestamp, must not be re-classified

	select {
	case cmd := <-cmds:
		if cmd != Clap {
			t.Fatalf("cmd = %v, want Clap", cmd)
		}
	case <-time.After(time.Second):
		t.Fatal("no clap emitted")
	}
	select {
	case cmd := <-cmds:
		t.Fatalf("duplicate frame produced a second command: %v", cmd)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestLoopReportsSourceInitFailure(t *testing.T) {
	src := &chanSource{err: errors.New("camera gone")}
	loop := NewLoop(LoopOptions{
		Recognizer: NewRecognizer(DefaultConfig()),
		Source:     src,
		OnCommand:  func(Command) {},
		OnStatus:   nil,
	})

	var got Status
	seen := false
	loop.onStatus = func(s Status) { got, seen = s, true }
	if err := loop.Run(context.Background()); err == nil {
		t.Fatal("Run should fail when the source cannot initialize")
	}
	if !seen || got != StatusFailed {
		t.Fatalf("status = (%v, %v), want StatusFailed", got, seen)
	}
}

func TestLoopStatusTransitions(t *testing.T) {
	src := &chanSource{ch: make(chan Frame, 16)}
	_, _, statuses, stop := runLoop(t, src, nil)
	defer stop()

	src.ch <- frame(t0, openHand(Right, 0.5, 0.5))
	select {
	case s := <-statuses:
		if s != StatusTracking {
			t.Fatalf("status = %v, want StatusTracking", s)
		}
	case <-time.After(time.Second):
		t.Fatal("no status emitted")
	}

	// Hands gone, but inside the idle debounce: no transition yet.
	src.ch <- frame(t0.Add(100 * time.Millisecond))
	select {
	case s := <-statuses:
		t.Fatalf("status %v emitted inside the idle debounce", s)
	case <-time.After(100 * time.Millisecond):
	}

	// Past the debounce delay the loop settles to idle.
	src.ch <- frame(t0.Add(500 * time.Millisecond))
	select {
	case s := <-statuses:
		if s != StatusIdle {
			t.Fatalf("status = %v, want StatusIdle", s)
		}
	case <-time.After(time.Second):
		t.Fatal("no idle status emitted")
	}
}
