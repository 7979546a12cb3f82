// Package session coordinates the hands-free companion session: it checks
// preconditions, exposes the companion through a tunnel, registers with the
// hub, and locks the input controls while the capture loop runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/shelajev/slowly-unhinged/pkg/dials"
	"github.com/shelajev/slowly-unhinged/pkg/gesture"
	"github.com/shelajev/slowly-unhinged/pkg/hub"
)

// MinNameChars is the minimum number of non-blank symbols a screen name
// needs before a session can start.
const MinNameChars = 3

// ErrNameTooShort rejects a session start with a near-empty screen name.
var ErrNameTooShort = fmt.Errorf("session: screen name needs at least %d characters", MinNameChars)

// ErrActive rejects starting a session that is already running.
var ErrActive = errors.New("session: already active")

// Locks gates the input surfaces while a session is active. The dial
// controller and the gesture loop each consult their own flag.
type Locks struct {
	dials    atomic.Bool
	gestures atomic.Bool
}

// DialsLocked reports whether dial mutations are locked out.
func (l *Locks) DialsLocked() bool { return l.dials.Load() }

// GesturesLocked reports whether gesture frames are dropped.
func (l *Locks) GesturesLocked() bool { return l.gestures.Load() }

func (l *Locks) set(v bool) {
	l.dials.Store(v)
	l.gestures.Store(v)
}

// Registrar announces and withdraws the agent at the hub.
type Registrar interface {
	Register(ctx context.Context, reg hub.Registration) error
	Unregister(ctx context.Context, screenName string) error
}

// TunnelHandle is a running public tunnel.
type TunnelHandle interface {
	URL() string
	Stop()
}

// TunnelStarter brings up a tunnel to the given local port.
type TunnelStarter func(ctx context.Context, port int) (TunnelHandle, error)

// ModelEnsurer waits until the local models are pulled and ready.
type ModelEnsurer interface {
	EnsureModels(ctx context.Context, log *slog.Logger, wanted ...string) error
}

// DeviceProber verifies the capture device before a session starts.
type DeviceProber interface {
	Probe(ctx context.Context) error
}

// CaptureLoop is the background pipeline the session turns on and off.
type CaptureLoop interface {
	StartLoop(ctx context.Context)
	Stop()
}

// ModelSettings resolves the configured model ids and key state.
type ModelSettings interface {
	TranscriptionModel(ctx context.Context) string
	PromptModel(ctx context.Context) string
	HasAPIKey(ctx context.Context) bool
}

// Options wires a Coordinator.
type Options struct {
	Dials       *dials.Controller
	Pipeline    CaptureLoop
	Registrar   Registrar
	StartTunnel TunnelStarter
	Models      ModelEnsurer
	Settings    ModelSettings
	Prober      DeviceProber
	Port        int
	Logger      *slog.Logger
}

// Coordinator owns the session lifecycle and the input locks.
type Coordinator struct {
	locks *Locks

	dials       *dials.Controller
	pipeline    CaptureLoop
	registrar   Registrar
	startTunnel TunnelStarter
	models      ModelEnsurer
	settings    ModelSettings
	prober      DeviceProber
	port        int
	log         *slog.Logger

	mu         sync.Mutex
	active     bool
	starting   bool
	screenName string
	tunnel     TunnelHandle
}

// New creates a Coordinator.
func New(opts Options) *Coordinator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		locks:       &Locks{},
		dials:       opts.Dials,
		pipeline:    opts.Pipeline,
		registrar:   opts.Registrar,
		startTunnel: opts.StartTunnel,
		models:      opts.Models,
		settings:    opts.Settings,
		prober:      opts.Prober,
		port:        opts.Port,
		log:         log,
	}
}

// Locks returns the lock flags consumed by the input surfaces.
func (c *Coordinator) Locks() *Locks { return c.locks }

// Active reports whether a session is running.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// ScreenName returns the name of the running session, or empty.
func (c *Coordinator) ScreenName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screenName
}

// Start brings a session up: device check, name check, model readiness,
// tunnel, hub registration, and only then the lock and the capture loop.
// Any failure along the way leaves the controls unlocked.
func (c *Coordinator) Start(ctx context.Context) error {
	// Startup blocks on model pulls and network calls while the gesture
	// lock is still open, so a second clap can arrive mid-start. The
	// starting flag makes the whole sequence single-flight.
	c.mu.Lock()
	if c.active || c.starting {
		c.mu.Unlock()
		return ErrActive
	}
	c.starting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
	}()

	name := c.dials.ComputeName()
	if len(strings.ReplaceAll(name, " ", "")) < MinNameChars {
		return ErrNameTooShort
	}

	if err := c.prober.Probe(ctx); err != nil {
		return fmt.Errorf("session: capture device check: %w", err)
	}

	if err := c.models.EnsureModels(ctx, c.log,
		c.settings.TranscriptionModel(ctx),
		c.settings.PromptModel(ctx),
	); err != nil {
		return fmt.Errorf("session: model readiness: %w", err)
	}

	tunnel, err := c.startTunnel(ctx, c.port)
	if err != nil {
		return fmt.Errorf("session: start tunnel: %w", err)
	}

	reg := hub.Registration{
		ScreenName:            name,
		TunnelURL:             tunnel.URL(),
		RequiresNanobananaKey: true,
		HasLocalNanobananaKey: c.settings.HasAPIKey(ctx),
	}
	if err := c.registrar.Register(ctx, reg); err != nil {
		tunnel.Stop()
		return fmt.Errorf("session: hub registration: %w", err)
	}

	c.mu.Lock()
	c.active = true
	c.screenName = name
	c.tunnel = tunnel
	c.mu.Unlock()

	c.locks.set(true)
	c.dials.SetLocked(true)
	c.pipeline.StartLoop(ctx)

	c.log.Info("session started", "screen_name", name, "tunnel", tunnel.URL())
	return nil
}

// Stop tears the session down. The hub unregistration is best effort; the
// lock, the loop, and the tunnel always come down.
func (c *Coordinator) Stop(ctx context.Context) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	name := c.screenName
	tunnel := c.tunnel
	c.active = false
	c.screenName = ""
	c.tunnel = nil
	c.mu.Unlock()

	if err := c.registrar.Unregister(ctx, name); err != nil {
		c.log.Warn("hub unregister failed", "screen_name", name, "err", err)
	}

	c.pipeline.Stop()
	if tunnel != nil {
		tunnel.Stop()
	}
	c.dials.SetLocked(false)
	c.locks.set(false)

	c.log.Info("session stopped", "screen_name", name)
}

// HandleCommand routes a recognized gesture into the dials or the session
// lifecycle. Swipes move the dials; a clap starts the session.
func (c *Coordinator) HandleCommand(ctx context.Context, cmd gesture.Command) {
	switch cmd {
	case gesture.SpinUp:
		c.dials.Spin(1)
	case gesture.SpinDown:
		c.dials.Spin(-1)
	case gesture.NextDial:
		c.dials.Advance(1)
	case gesture.PrevDial:
		c.dials.Advance(-1)
	case gesture.Clap:
		// Session startup pulls models and waits on network services, so
		// it must not block the frame loop.
		go func() {
			if err := c.Start(ctx); err != nil && !errors.Is(err, ErrActive) {
				c.log.Warn("session start failed", "err", err)
			}
		}()
	}
}
