// Package dials implements the rotary name input: twenty independent wheels
// over a fixed symbol set, driven by gesture commands. Wheel state persists
// across runs through a debounced save into the settings store.
package dials

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/shelajev/slowly-unhinged/pkg/settings"
)

const (
	// WheelCount is the number of rotary positions forming the name.
	WheelCount = 20

	// Charset is the symbol set each wheel rotates through.
	Charset = " @.-abcdefghijklmnopqrstuvwxyz0123456789"

	// saveDelay is how long a burst of mutations must quiet down before the
	// wheel state is written to the store.
	saveDelay = 400 * time.Millisecond
)

// Saver persists wheel state. Implemented by *settings.Settings.
type Saver interface {
	SaveWheels(ctx context.Context, ws settings.WheelState)
}

// Controller owns the wheel positions and the active wheel index.
// All methods are safe for concurrent use.
type Controller struct {
	saver Saver

	mu        sync.Mutex
	positions [WheelCount]int
	active    int
	locked    bool
	debounced func(func())
}

// New creates a Controller. If stored is non-nil and carries exactly
// WheelCount positions it is applied, with each position clamped into range;
// anything else falls back to the all-zero default.
func New(saver Saver, stored *settings.WheelState) *Controller {
	c := &Controller{
		saver:     saver,
		debounced: debounce.New(saveDelay),
	}
	if stored != nil && len(stored.Positions) == WheelCount {
		for i, p := range stored.Positions {
			c.positions[i] = clamp(p, len(Charset))
		}
		c.active = clamp(stored.ActiveIndex, WheelCount)
	}
	return c
}

// SetActive selects the wheel under control, wrapping modulo WheelCount.
// No-op while locked.
func (c *Controller) SetActive(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked {
		return
	}
	c.active = mod(index, WheelCount)
	c.scheduleSave()
}

// Adjust rotates the wheel at index by delta, wrapping modulo the symbol set
// size. No-op while locked.
func (c *Controller) Adjust(index, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked {
		return
	}
	i := mod(index, WheelCount)
	c.positions[i] = mod(c.positions[i]+delta, len(Charset))
	c.scheduleSave()
}

// Spin rotates the active wheel by delta.
func (c *Controller) Spin(delta int) {
	c.mu.Lock()
	i := c.active
	c.mu.Unlock()
	c.Adjust(i, delta)
}

// Advance moves the active wheel selection by delta.
func (c *Controller) Advance(delta int) {
	c.mu.Lock()
	i := c.active
	c.mu.Unlock()
	c.SetActive(i + delta)
}

// ActiveIndex returns the index of the wheel under control.
func (c *Controller) ActiveIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Positions returns a snapshot of all wheel positions.
func (c *Controller) Positions() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, WheelCount)
	copy(out, c.positions[:])
	return out
}

// SetLocked toggles the session lock. While locked, Adjust and SetActive
// are no-ops; persisted state is untouched.
func (c *Controller) SetLocked(locked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = locked
}

// ComputeName concatenates the symbol at each wheel, trims leading and
// trailing space, and collapses internal whitespace runs to single spaces.
func (c *Controller) ComputeName() string {
	c.mu.Lock()
	var b strings.Builder
	for _, p := range c.positions {
		b.WriteByte(Charset[p])
	}
	c.mu.Unlock()
	return strings.Join(strings.Fields(b.String()), " ")
}

// scheduleSave queues a debounced save of the current state. Only the last
// state within the debounce window is written. Caller holds c.mu.
func (c *Controller) scheduleSave() {
	if c.saver == nil {
		return
	}
	ws := settings.WheelState{
		Positions:   make([]int, WheelCount),
		ActiveIndex: c.active,
	}
	copy(ws.Positions, c.positions[:])
	c.debounced(func() {
		c.saver.SaveWheels(context.Background(), ws)
	})
}

// clamp forces v into [0, n), pinning out-of-range stored values.
func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// mod wraps v into [0, n) with floored semantics so negative deltas wrap.
func mod(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
