package web

import (
	"context"

	"github.com/shelajev/slowly-unhinged/pkg/gesture"
)

// FrameFeed bridges websocket frame pushes into a gesture frame source.
// When the recognizer falls behind, older frames are dropped so the feed
// never blocks the socket reader.
type FrameFeed struct {
	ch chan gesture.Frame
}

// NewFrameFeed creates a feed with a small buffer.
func NewFrameFeed() *FrameFeed {
	return &FrameFeed{ch: make(chan gesture.Frame, 16)}
}

// Frames returns the frame channel for the recognizer loop.
func (f *FrameFeed) Frames(ctx context.Context) (<-chan gesture.Frame, error) {
	return f.ch, nil
}

// push enqueues a frame, evicting the oldest queued frame when full.
func (f *FrameFeed) push(frame gesture.Frame) {
	for {
		select {
		case f.ch <- frame:
			return
		default:
			select {
			case <-f.ch:
			default:
			}
		}
	}
}
