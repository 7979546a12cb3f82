// Package pipeline runs the self-rescheduling capture cycle: record a short
// clip of room audio, transcribe it locally, ask the prompt model whether the
// conversation calls for a new background, and render one when it does.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/shelajev/slowly-unhinged/pkg/audio"
	"github.com/shelajev/slowly-unhinged/pkg/background"
)

// Stage names one step of a capture cycle.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageRecording    Stage = "recording"
	StageEncoding     Stage = "encoding"
	StageTranscribing Stage = "transcribing"
	StageDeciding     Stage = "deciding"
	StageSkipped      Stage = "skipped"
	StageRendering    Stage = "rendering"
)

// transcribeInstruction is the text part sent with the audio clip.
const transcribeInstruction = "Transcribe this audio recording verbatim. Reply with only the transcript text, nothing else."

// decideSystemPrompt instructs the prompt model on the reply grammar. The
// previous accepted prompt is appended when one exists so the model can make
// incremental edits instead of resetting the scene.
const decideSystemPrompt = `You listen to fragments of an ongoing conversation and control a background image behind the speakers.
Decide whether the latest fragment calls for a new background.
Reply with a single line of JSON and nothing else:
{"status":"generate","prompt":"<scene description>"} to change the background, or
{"status":"skip","reason":"<short reason>"} to leave it alone.
Skip small talk, silence, and fragments that do not change the scene.`

// Recorder captures a fixed duration of microphone PCM.
type Recorder interface {
	Record(ctx context.Context, duration time.Duration) ([]byte, audio.Format, error)
}

// Speech is the local model surface: transcription and decisions.
type Speech interface {
	Transcribe(ctx context.Context, model, instruction, wavBase64 string) (string, error)
	Decide(ctx context.Context, model, system, transcript string) (string, error)
}

// Renderer turns an accepted prompt into a background image.
type Renderer interface {
	Render(ctx context.Context, prompt string, previous *background.Image) (*background.Image, error)
}

// Models resolves which model each call should use.
type Models interface {
	TranscriptionModel(ctx context.Context) string
	PromptModel(ctx context.Context) string
}

// Event is one notable moment in a cycle, delivered to the Reporter.
type Event struct {
	Cycle  string
	Stage  Stage
	Err    error
	Detail string
}

// Reporter receives cycle events. May be nil.
type Reporter func(Event)

// Config holds cycle timing.
type Config struct {
	// RecordDuration is the length of each audio clip.
	RecordDuration time.Duration

	// InitialDelay runs the first cycle shortly after the loop starts.
	InitialDelay time.Duration

	// IdleDelay spaces cycles that did not change the background.
	IdleDelay time.Duration

	// RenderDelay follows a successful render, so the next clip catches
	// reactions to the new scene.
	RenderDelay time.Duration

	// RetryDelay follows a failed or skipped-for-busy cycle.
	RetryDelay time.Duration
}

// DefaultConfig returns the standard cycle timing.
func DefaultConfig() Config {
	return Config{
		RecordDuration: 12 * time.Second,
		InitialDelay:   time.Second,
		IdleDelay:      8 * time.Second,
		RenderDelay:    4 * time.Second,
		RetryDelay:     5 * time.Second,
	}
}

// Options wires a Pipeline.
type Options struct {
	Config   Config
	Recorder Recorder
	Speech   Speech
	Renderer Renderer
	Models   Models
	Store    *background.Store
	Reporter Reporter
	Logger   *slog.Logger
}

// Pipeline drives capture cycles. Capture and render hold independent
// single-flight guards: a long render may overlap the next cycle's capture,
// but there is never more than one of either in flight.
type Pipeline struct {
	cfg      Config
	recorder Recorder
	speech   Speech
	renderer Renderer
	models   Models
	store    *background.Store
	report   Reporter
	log      *slog.Logger

	captureBusy atomic.Bool
	renderBusy  atomic.Bool

	mu                 sync.Mutex
	looping            bool
	pending            *time.Timer
	lastAcceptedPrompt string
	loopCtx            context.Context
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	cfg := opts.Config
	if cfg.RecordDuration == 0 {
		cfg = DefaultConfig()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		recorder: opts.Recorder,
		speech:   opts.Speech,
		renderer: opts.Renderer,
		models:   opts.Models,
		store:    opts.Store,
		report:   opts.Reporter,
		log:      log,
	}
}

// StartLoop begins the self-rescheduling cycle. The first cycle runs after
// the initial delay. Calling StartLoop while the loop runs is a no-op.
func (p *Pipeline) StartLoop(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.looping {
		return
	}
	p.looping = true
	p.loopCtx = ctx
	p.scheduleLocked(p.cfg.InitialDelay)
}

// Stop cancels the pending tick and stops rescheduling. Work already in
// flight runs to completion; a render that finishes after Stop still updates
// the background and the accepted prompt.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.looping = false
	if p.pending != nil {
		p.pending.Stop()
		p.pending = nil
	}
}

// Running reports whether the loop is active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.looping
}

// LastAcceptedPrompt returns the prompt behind the current background.
func (p *Pipeline) LastAcceptedPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAcceptedPrompt
}

// reschedule replaces the pending tick. At most one tick is pending; a
// reschedule from a finishing render supersedes the one set by its cycle.
func (p *Pipeline) reschedule(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scheduleLocked(d)
}

func (p *Pipeline) scheduleLocked(d time.Duration) {
	if !p.looping {
		return
	}
	if p.pending != nil {
		p.pending.Stop()
	}
	p.pending = time.AfterFunc(d, p.tick)
}

func (p *Pipeline) tick() {
	p.mu.Lock()
	p.pending = nil
	ctx := p.loopCtx
	looping := p.looping
	p.mu.Unlock()
	if !looping {
		return
	}
	p.runCycle(ctx)
}

// runCycle executes one capture segment and, on a generate decision, hands
// off to the renderer. Every exit path schedules the next tick.
func (p *Pipeline) runCycle(ctx context.Context) {
	if !p.captureBusy.CompareAndSwap(false, true) {
		p.reschedule(p.cfg.RetryDelay)
		return
	}

	cycle := uuid.NewString()
	dec, err := p.captureSegment(ctx, cycle)
	p.captureBusy.Store(false)
	if err != nil {
		p.reschedule(p.cfg.RetryDelay)
		return
	}

	if dec.Action == ActionSkip {
		p.log.Debug("cycle skipped", "cycle", cycle, "reason", dec.Reason)
		p.emit(Event{Cycle: cycle, Stage: StageSkipped, Detail: dec.Reason})
		p.reschedule(p.cfg.IdleDelay)
		return
	}

	// The capture guard is already released, so the next cycle's capture
	// may run while this render is still in flight.
	p.reschedule(p.cfg.IdleDelay)
	go p.render(ctx, cycle, dec.Prompt)
}

// captureSegment runs record, encode, transcribe, decide. A failure at any
// stage is reported with its stage and cycle id.
func (p *Pipeline) captureSegment(ctx context.Context, cycle string) (Decision, error) {
	pcm, format, err := p.recorder.Record(ctx, p.cfg.RecordDuration)
	if err != nil {
		return Decision{}, p.fail(cycle, StageRecording, err)
	}

	payload, err := audio.EncodePayload(pcm, format)
	if err != nil {
		return Decision{}, p.fail(cycle, StageEncoding, err)
	}

	transcript, err := p.speech.Transcribe(ctx, p.models.TranscriptionModel(ctx), transcribeInstruction, payload)
	if err != nil {
		return Decision{}, p.fail(cycle, StageTranscribing, err)
	}
	if strings.TrimSpace(transcript) == "" {
		// Nothing was said; the prompt model never sees the clip.
		p.log.Debug("no text in clip", "cycle", cycle)
		return Skip("no text"), nil
	}
	p.log.Debug("transcribed", "cycle", cycle, "chars", len(transcript))

	raw, err := p.speech.Decide(ctx, p.models.PromptModel(ctx), p.systemPrompt(), transcript)
	if err != nil {
		return Decision{}, p.fail(cycle, StageDeciding, err)
	}
	return ParseDecision(raw), nil
}

// render generates and publishes a new background. The render guard keeps a
// second render from starting while one is in flight; a prompt arriving then
// is dropped and the cycle retried sooner.
func (p *Pipeline) render(ctx context.Context, cycle, prompt string) {
	if !p.renderBusy.CompareAndSwap(false, true) {
		p.log.Info("render already in flight, dropping prompt", "cycle", cycle)
		p.emit(Event{Cycle: cycle, Stage: StageRendering, Detail: "render in flight, prompt dropped"})
		p.reschedule(p.cfg.RetryDelay)
		return
	}
	defer p.renderBusy.Store(false)

	previous, _ := p.store.Latest()
	var prev *background.Image
	if previous != nil {
		prev = &background.Image{Data: previous.Data, MIME: previous.MIME}
	}

	img, err := p.renderer.Render(ctx, prompt, prev)
	if err != nil {
		p.fail(cycle, StageRendering, err)
		p.reschedule(p.cfg.RetryDelay)
		return
	}

	version := p.store.Set(*img)
	p.mu.Lock()
	p.lastAcceptedPrompt = prompt
	p.mu.Unlock()

	p.log.Info("background updated", "cycle", cycle, "version", version, "mime", img.MIME)
	p.emit(Event{Cycle: cycle, Stage: StageRendering, Detail: prompt})
	p.reschedule(p.cfg.RenderDelay)
}

// systemPrompt builds the decision prompt, biased toward editing the
// current scene when one exists.
func (p *Pipeline) systemPrompt() string {
	p.mu.Lock()
	last := p.lastAcceptedPrompt
	p.mu.Unlock()
	if last == "" {
		return decideSystemPrompt
	}
	return decideSystemPrompt + "\nThe current background was generated from: \"" + last + "\". Prefer incremental edits to that scene over entirely new ones."
}

func (p *Pipeline) fail(cycle string, stage Stage, err error) error {
	wrapped := fmt.Errorf("%s: %w", stage, err)
	p.log.Warn("cycle stage failed", "cycle", cycle, "stage", string(stage), "err", err)
	p.emit(Event{Cycle: cycle, Stage: stage, Err: err})
	return wrapped
}

func (p *Pipeline) emit(ev Event) {
	if p.report != nil {
		p.report(ev)
	}
}
