// Package gesture classifies hand-landmark video frames into the discrete
// commands that drive the dial input: spin the active dial, switch dials,
// and clap to submit. Landmark detection itself is an external capability;
// this package consumes its per-frame output.
package gesture

import (
	"math"
	"time"
)

// Command is a discrete input derived from hand motion.
type Command int

const (
	// SpinUp rotates the active dial forward (upward swipe).
	SpinUp Command = iota
	// SpinDown rotates the active dial backward (downward swipe).
	SpinDown
	// NextDial moves control to the next dial (rightward swipe).
	NextDial
	// PrevDial moves control to the previous dial (leftward swipe).
	PrevDial
	// Clap submits the current name and starts a session.
	Clap
)

func (c Command) String() string {
	switch c {
	case SpinUp:
		return "spin-up"
	case SpinDown:
		return "spin-down"
	case NextDial:
		return "next-dial"
	case PrevDial:
		return "prev-dial"
	case Clap:
		return "clap"
	}
	return "unknown"
}

// Status describes the recognizer's view of the scene.
type Status int

const (
	// StatusIdle means no open hands have been seen for the idle debounce
	// delay.
	StatusIdle Status = iota
	// StatusTracking means at least one open hand is being followed.
	StatusTracking
	// StatusFailed means the detection capability could not be initialized.
	// Terminal until the loop is restarted.
	StatusFailed
)

// Label identifies which hand a detection belongs to.
type Label string

const (
	Left  Label = "Left"
	Right Label = "Right"
)

// Point is a normalized landmark coordinate. Origin is the top-left of the
// frame, so smaller Y is higher.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LandmarkCount is the number of landmarks per detected hand.
const LandmarkCount = 21

// Landmark indices within a hand detection. Same numbering as the common
// 21-point hand model: wrist, then four joints per finger.
const (
	lmWrist = 0

	lmIndexMCP = 5
	lmIndexPIP = 6
	lmIndexTip = 8

	lmMiddleMCP = 9
	lmMiddlePIP = 10
	lmMiddleTip = 12

	lmRingMCP = 13
	lmRingPIP = 14
	lmRingTip = 16

	lmPinkyMCP = 17
	lmPinkyPIP = 18
	lmPinkyTip = 20
)

// Hand is one detected hand in a frame.
type Hand struct {
	Label     Label   `json:"label"`
	Landmarks []Point `json:"landmarks"`
}

// Frame is one detection pass over a video frame: zero or more hands plus
// the frame timestamp.
type Frame struct {
	Timestamp time.Time `json:"-"`
	Hands     []Hand    `json:"hands"`
}

// Center returns the palm center: the mean of the wrist and the four finger
// base knuckles.
func (h Hand) Center() Point {
	idx := [...]int{lmWrist, lmIndexMCP, lmMiddleMCP, lmRingMCP, lmPinkyMCP}
	var c Point
	for _, i := range idx {
		c.X += h.Landmarks[i].X
		c.Y += h.Landmarks[i].Y
	}
	c.X /= float64(len(idx))
	c.Y /= float64(len(idx))
	return c
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
