package gesture

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Source produces detection frames at sensor cadence. Frames returns the
// frame channel or an error when the detection capability cannot be
// initialized.
type Source interface {
	Frames(ctx context.Context) (<-chan Frame, error)
}

// Loop pulls frames from a Source and feeds them through a Recognizer, one
// classification at a time. It honors a lock check before every frame so a
// session lock takes effect immediately: no frame is classified after the
// lock flips.
type Loop struct {
	rec       *Recognizer
	src       Source
	onCommand func(Command)
	onStatus  func(Status)
	locked    func() bool
	log       *slog.Logger

	busy       atomic.Bool
	lastTS     time.Time
	lastStatus Status
	hasStatus  bool
}

// LoopOptions wires a Loop.
type LoopOptions struct {
	Recognizer *Recognizer
	Source     Source

	// OnCommand receives each emitted command. Required.
	OnCommand func(Command)

	// OnStatus receives status transitions (tracking/idle/failed). Optional.
	OnStatus func(Status)

	// Locked is consulted before every frame; while it reports true the
	// frame is dropped unclassified. Optional.
	Locked func() bool

	Logger *slog.Logger
}

// NewLoop creates a Loop.
func NewLoop(opts LoopOptions) *Loop {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		rec:       opts.Recognizer,
		src:       opts.Source,
		onCommand: opts.OnCommand,
		onStatus:  opts.OnStatus,
		locked:    opts.Locked,
		log:       log,
	}
}

// Run consumes frames until ctx is canceled or the source channel closes.
// A source that fails to initialize is a terminal failure: StatusFailed is
// reported and no commands are produced until Run is called again.
func (l *Loop) Run(ctx context.Context) error {
	frames, err := l.src.Frames(ctx)
	if err != nil {
		l.setStatus(StatusFailed)
		l.log.Error("gesture: detection source failed to initialize", "err", err)
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			l.handle(f)
		}
	}
}

// handle classifies one frame. Exactly one pass per distinct timestamp, and
// never re-entrant with itself.
func (l *Loop) handle(f Frame) {
	if l.locked != nil && l.locked() {
		return
	}
	if !f.Timestamp.After(l.lastTS) {
		return
	}
	if !l.busy.CompareAndSwap(false, true) {
		return
	}
	defer l.busy.Store(false)
	l.lastTS = f.Timestamp

	cmd, ok := l.rec.Process(f)
	if ok {
		l.log.Debug("gesture: command", "cmd", cmd.String())
		l.onCommand(cmd)
	}

	if l.rec.HasOpenHands(f.Timestamp) {
		l.setStatus(StatusTracking)
	} else {
		// Idle only after the debounce delay, to avoid flicker between
		// frames where detection briefly loses the hand.
		l.setStatus(StatusIdle)
	}
}

func (l *Loop) setStatus(s Status) {
	if l.onStatus == nil {
		return
	}
	if l.hasStatus && l.lastStatus == s {
		return
	}
	l.lastStatus = s
	l.hasStatus = true
	l.onStatus(s)
}
