// Package background holds the latest rendered background image and lets
// long-poll clients wait for the next change.
package background

import (
	"context"
	"sync"
	"time"
)

// Image is a rendered background with its content type.
type Image struct {
	Data []byte
	MIME string
}

// Store keeps the current background. Every Set bumps the version so
// clients can detect changes across reconnects.
type Store struct {
	mu      sync.Mutex
	current *Image
	version uint64
	changed chan struct{}
}

// NewStore creates an empty Store at version zero.
func NewStore() *Store {
	return &Store{changed: make(chan struct{})}
}

// Set replaces the current background and wakes all waiters.
func (s *Store) Set(img Image) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &img
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
	return s.version
}

// Latest returns the current background and its version. The image is nil
// before the first Set.
func (s *Store) Latest() (*Image, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.version
}

// Wait blocks until the version moves past since, the timeout elapses, or
// the context ends. It returns the latest image and version either way; the
// caller compares versions to tell a change from a timeout.
func (s *Store) Wait(ctx context.Context, since uint64, timeout time.Duration) (*Image, uint64) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		s.mu.Lock()
		img, version, changed := s.current, s.version, s.changed
		s.mu.Unlock()

		if version > since {
			return img, version
		}

		select {
		case <-changed:
		case <-deadline.C:
			return img, version
		case <-ctx.Done():
			return img, version
		}
	}
}
