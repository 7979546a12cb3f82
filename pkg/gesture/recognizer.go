package gesture

import (
	"time"
)

// Config tunes the recognizer thresholds. All distances are in normalized
// frame units.
type Config struct {
	// HistoryWindow is how far back palm-center samples are kept per hand.
	HistoryWindow time.Duration

	// OpenFingerDelta is the minimum vertical gap between a fingertip and
	// its middle joint for the finger to count as extended.
	OpenFingerDelta float64

	// OpenMinSpread is the minimum average fingertip-to-wrist distance for
	// a hand to count as open.
	OpenMinSpread float64

	// SwipeMinVertical is the minimum vertical displacement for a spin.
	SwipeMinVertical float64

	// SwipeMinHorizontal is the minimum horizontal displacement for a dial
	// switch.
	SwipeMinHorizontal float64

	// SpinCooldown is the minimum time between two spin commands.
	SpinCooldown time.Duration

	// SwitchCooldown is the minimum time between two dial-switch commands.
	SwitchCooldown time.Duration

	// ClapMaxInterval is the maximum time between the two frames compared
	// for a clap.
	ClapMaxInterval time.Duration

	// ClapMinApproach is how much the inter-hand distance must shrink
	// between those frames.
	ClapMinApproach float64

	// ClapProximity is the maximum inter-hand distance at the moment of a
	// clap.
	ClapProximity float64

	// ClapCooldown is the minimum time between two claps.
	ClapCooldown time.Duration

	// IdleDelay is how long the scene must stay without open hands before
	// the loop reports idle.
	IdleDelay time.Duration
}

// DefaultConfig returns the thresholds tuned for webcam-distance hands.
func DefaultConfig() Config {
	return Config{
		HistoryWindow:      350 * time.Millisecond,
		OpenFingerDelta:    0.02,
		OpenMinSpread:      0.18,
		SwipeMinVertical:   0.06,
		SwipeMinHorizontal: 0.08,
		SpinCooldown:       450 * time.Millisecond,
		SwitchCooldown:     600 * time.Millisecond,
		ClapMaxInterval:    250 * time.Millisecond,
		ClapMinApproach:    0.04,
		ClapProximity:      0.25,
		ClapCooldown:       2 * time.Second,
		IdleDelay:          300 * time.Millisecond,
	}
}

// sample is one palm-center observation in a hand's sliding history.
type sample struct {
	at     time.Time
	center Point
}

// clapTracker compares inter-hand distance across consecutive frames.
type clapTracker struct {
	valid bool
	at    time.Time
	dist  float64
}

// Recognizer turns frames into commands. It keeps one sliding history per
// hand label and per-command-class cooldowns. Not safe for concurrent use;
// the loop guarantees one classification at a time.
type Recognizer struct {
	cfg Config

	history map[Label][]sample

	lastSpin   time.Time
	lastSwitch time.Time
	lastClap   time.Time

	clap clapTracker

	lastOpenSeen time.Time
}

// NewRecognizer creates a Recognizer with the given thresholds.
func NewRecognizer(cfg Config) *Recognizer {
	return &Recognizer{
		cfg:     cfg,
		history: make(map[Label][]sample),
	}
}

// Process classifies one frame. It returns at most one command per frame;
// vertical swipes win over horizontal ones, and both win over claps.
func (r *Recognizer) Process(f Frame) (Command, bool) {
	open := r.observe(f)

	if cmd, ok := r.checkSwipes(f.Timestamp, open); ok {
		return cmd, true
	}
	if ok := r.checkClap(f.Timestamp, open); ok {
		return Clap, true
	}
	return 0, false
}

// HasOpenHands reports whether the last processed frame contained at least
// one open hand.
func (r *Recognizer) HasOpenHands(now time.Time) bool {
	return !r.lastOpenSeen.IsZero() && now.Sub(r.lastOpenSeen) < r.cfg.IdleDelay
}

// observe updates per-hand histories and returns the open hands of the
// frame, preserving detection order.
func (r *Recognizer) observe(f Frame) []Hand {
	seen := make(map[Label]bool, len(f.Hands))
	var open []Hand
	for _, h := range f.Hands {
		if len(h.Landmarks) != LandmarkCount {
			continue
		}
		seen[h.Label] = true
		if !r.palmOpen(h) {
			// A gripping hand drifts; dropping its history keeps that
			// motion from reading as a swipe.
			delete(r.history, h.Label)
			continue
		}
		open = append(open, h)
		r.push(h.Label, sample{at: f.Timestamp, center: h.Center()})
	}
	for label := range r.history {
		if !seen[label] {
			delete(r.history, label)
		}
	}
	if len(open) > 0 {
		r.lastOpenSeen = f.Timestamp
	} else {
		r.clap = clapTracker{}
	}
	return open
}

// palmOpen requires at least three of four fingers extended (fingertip above
// its middle joint by OpenFingerDelta) and an average fingertip-to-wrist
// distance above OpenMinSpread.
func (r *Recognizer) palmOpen(h Hand) bool {
	fingers := [4][2]int{
		{lmIndexTip, lmIndexPIP},
		{lmMiddleTip, lmMiddlePIP},
		{lmRingTip, lmRingPIP},
		{lmPinkyTip, lmPinkyPIP},
	}
	extended := 0
	spread := 0.0
	wrist := h.Landmarks[lmWrist]
	for _, fp := range fingers {
		tip, pip := h.Landmarks[fp[0]], h.Landmarks[fp[1]]
		if pip.Y-tip.Y > r.cfg.OpenFingerDelta {
			extended++
		}
		spread += dist(tip, wrist)
	}
	spread /= float64(len(fingers))
	return extended >= 3 && spread > r.cfg.OpenMinSpread
}

func (r *Recognizer) push(label Label, s sample) {
	hist := append(r.history[label], s)
	cutoff := s.at.Add(-r.cfg.HistoryWindow)
	i := 0
	for i < len(hist) && hist[i].at.Before(cutoff) {
		i++
	}
	r.history[label] = hist[i:]
}

// checkSwipes looks for a qualifying displacement between the oldest and
// newest sample of each open hand. Vertical runs first; horizontal is only
// consulted when no vertical swipe qualifies.
func (r *Recognizer) checkSwipes(now time.Time, open []Hand) (Command, bool) {
	for _, h := range open {
		hist := r.history[h.Label]
		if len(hist) < 2 {
			continue
		}
		dx := hist[len(hist)-1].center.X - hist[0].center.X
		dy := hist[len(hist)-1].center.Y - hist[0].center.Y
		if abs(dy) >= r.cfg.SwipeMinVertical && abs(dy) > abs(dx) {
			if now.Sub(r.lastSpin) < r.cfg.SpinCooldown && !r.lastSpin.IsZero() {
				continue
			}
			r.lastSpin = now
			r.history[h.Label] = nil
			if dy < 0 {
				return SpinUp, true
			}
			return SpinDown, true
		}
	}
	for _, h := range open {
		hist := r.history[h.Label]
		if len(hist) < 2 {
			continue
		}
		dx := hist[len(hist)-1].center.X - hist[0].center.X
		dy := hist[len(hist)-1].center.Y - hist[0].center.Y
		if abs(dx) >= r.cfg.SwipeMinHorizontal && abs(dx) > abs(dy) {
			if now.Sub(r.lastSwitch) < r.cfg.SwitchCooldown && !r.lastSwitch.IsZero() {
				continue
			}
			r.lastSwitch = now
			r.history[h.Label] = nil
			if dx > 0 {
				return NextDial, true
			}
			return PrevDial, true
		}
	}
	return 0, false
}

// checkClap fires when exactly one open left and one open right hand close
// on each other fast enough, near enough, with the clap cooldown elapsed.
func (r *Recognizer) checkClap(now time.Time, open []Hand) bool {
	var left, right *Hand
	lefts, rights := 0, 0
	for i := range open {
		switch open[i].Label {
		case Left:
			lefts++
			left = &open[i]
		case Right:
			rights++
			right = &open[i]
		}
	}
	if lefts != 1 || rights != 1 {
		r.clap = clapTracker{}
		return false
	}

	d := dist(left.Center(), right.Center())
	prev := r.clap
	r.clap = clapTracker{valid: true, at: now, dist: d}

	if !prev.valid {
		return false
	}
	if now.Sub(prev.at) > r.cfg.ClapMaxInterval {
		return false
	}
	if prev.dist-d <= r.cfg.ClapMinApproach {
		return false
	}
	if d >= r.cfg.ClapProximity {
		return false
	}
	if !r.lastClap.IsZero() && now.Sub(r.lastClap) < r.cfg.ClapCooldown {
		return false
	}
	r.lastClap = now
	r.clap = clapTracker{}
	return true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
