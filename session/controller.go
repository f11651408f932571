// Package session owns the capture-to-delivery pipeline. At most one
// recording session is active at a time; a second toggle while recording
// means "stop", never "start another". Cancellation is cooperative: a flag
// checked at fixed checkpoints, never hard preemption of an in-flight call.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"murmur/audio"
	"murmur/config"
	"murmur/deliver"
	"murmur/engine"
	"murmur/enhance"
	"murmur/history"
	"murmur/log"
	"murmur/snapshot"
	"murmur/wav"
)

var (
	ErrNoModel = errors.New("no transcription model configured")
	// ErrBusy means a previous session is still being processed.
	ErrBusy = errors.New("session still processing")
)

// Enhancer is the text-enhancement collaborator. Attempts reports the
// provider-call count of the most recent Enhance, for session metrics.
type Enhancer interface {
	Enhance(ctx context.Context, text string, snap snapshot.Snapshot, cfg enhance.Config) (string, error)
	Attempts() int
}

// Sink delivers finished text.
type Sink interface {
	Deliver(text string) deliver.Outcome
}

// Options are the knobs that don't come from the settings store.
type Options struct {
	// RecordingsDir keeps the captured WAV per session when non-empty.
	RecordingsDir string
	// Preconfigure applies context-specific setup for the foreground
	// application while capture is already running. Failures are logged,
	// never fatal.
	Preconfigure func(ctx context.Context) error
	// OnStateChange fires on every state transition.
	OnStateChange func(State)
}

// Controller drives one session at a time through
// recording, transcription, optional enhancement, and delivery.
type Controller struct {
	engine   engine.Engine
	gate     *engine.Gate
	capture  audio.CaptureDevice
	settings *config.Store
	enhancer Enhancer
	sink     Sink
	snaps    *snapshot.Source
	records  history.Store
	opts     Options

	mu           sync.Mutex
	state        State
	active       *activeSession
	lastError    error
	lastMessage  string
	lastDelivery deliver.Outcome
}

type activeSession struct {
	recorder *audio.Recorder
	modelID  string

	cancelRequested atomic.Bool
	startDone       chan struct{}
	done            chan struct{}
	finished        sync.Once
}

func NewController(
	eng engine.Engine,
	capture audio.CaptureDevice,
	settings *config.Store,
	enhancer Enhancer,
	sink Sink,
	snaps *snapshot.Source,
	records history.Store,
	opts Options,
) *Controller {
	return &Controller{
		engine:   eng,
		gate:     engine.NewGate(eng),
		capture:  capture,
		settings: settings,
		enhancer: enhancer,
		sink:     sink,
		snaps:    snaps,
		records:  records,
		opts:     opts,
	}
}

// Toggle starts a session when Idle and begins the stop sequence when
// Recording. While a previous session is still processing it returns ErrBusy.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateIdle:
		return c.startLocked(ctx)
	case StateRecording:
		active := c.active
		c.mu.Unlock()
		// Start activities are joined before the stop sequence may run.
		<-active.startDone
		return c.stop(ctx, active)
	default:
		c.mu.Unlock()
		return ErrBusy
	}
}

// Cancel marks the session discarded. An in-flight engine or provider call
// completes but its result is thrown away at the next checkpoint. During
// recording the capture is torn down immediately.
func (c *Controller) Cancel() {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if active == nil {
		return
	}
	active.cancelRequested.Store(true)

	<-active.startDone
	if !c.transition(active, StateRecording, StateStopping) {
		return
	}
	c.capture.Stop()
	active.recorder.Stop()
	c.teardown(active, StateCancelled, "recording cancelled", nil)
}

// startLocked runs with c.mu held and releases it.
func (c *Controller) startLocked(ctx context.Context) error {
	modelID := c.settings.ModelID()
	if modelID == "" {
		c.lastError = ErrNoModel
		c.mu.Unlock()
		return ErrNoModel
	}

	recorder := audio.NewRecorder(c.capture)

	var detector *audio.SpeechDetector
	if c.settings.SilenceAutoStop() {
		det, err := audio.NewSpeechDetector()
		if err != nil {
			log.Warnf("speech detection unavailable: %v", err)
		} else {
			detector = det
			recorder.SetTap(detector.Process)
		}
	}

	if err := c.capture.Start(); err != nil {
		recorder.Stop()
		err = fmt.Errorf("start capture: %w", err)
		c.lastError = err
		c.mu.Unlock()
		return err
	}

	active := &activeSession{
		recorder:  recorder,
		modelID:   modelID,
		startDone: make(chan struct{}),
		done:      make(chan struct{}),
	}
	c.active = active
	c.lastError = nil
	prev := c.state
	c.state = StateRecording
	cb := c.opts.OnStateChange
	c.mu.Unlock()

	log.StateChange(prev.String(), StateRecording.String())
	if cb != nil {
		cb(StateRecording)
	}

	// Capture is acknowledged; the remaining start activities run behind it
	// and are joined before the next toggle proceeds.
	go c.runStartActivities(ctx, active)
	if detector != nil {
		go c.watchSilence(ctx, active, detector)
	}
	return nil
}

func (c *Controller) runStartActivities(ctx context.Context, active *activeSession) {
	defer close(active.startDone)

	c.snaps.BeginScreenCapture(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if c.opts.Preconfigure == nil {
			return
		}
		if err := c.opts.Preconfigure(ctx); err != nil {
			log.Warnf("foreground pre-configuration failed: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if c.engine.LoadedModel() == active.modelID {
			return
		}
		// Preload failure must not abort the session; the transcription
		// phase retries through the gate.
		if err := c.gate.EnsureLoaded(ctx, active.modelID); err != nil {
			log.Warnf("model preload failed, retrying at transcription: %v", err)
		}
	}()
	wg.Wait()
}

// watchSilence stops the recording after prolonged silence, as if the user
// had toggled. Exits as soon as the session leaves the Recording state.
func (c *Controller) watchSilence(ctx context.Context, active *activeSession, detector *audio.SpeechDetector) {
	ticker := time.NewTicker(silenceTick)
	defer ticker.Stop()
	watch := newSilenceWatch()

	for range ticker.C {
		c.mu.Lock()
		live := c.active == active && c.state == StateRecording
		c.mu.Unlock()
		if !live {
			return
		}

		switch watch.Tick(detector.SpeechSinceLastPoll()) {
		case silenceWarn:
			log.Warn("no speech detected")
		case silenceResumed:
			log.Info("speech resumed")
		case silenceAutoStop:
			log.Info("silence auto-stop")
			if err := c.Toggle(ctx); err != nil {
				log.Warnf("silence auto-stop toggle: %v", err)
			}
			return
		}
	}
}

func (c *Controller) stop(ctx context.Context, active *activeSession) error {
	if !c.transition(active, StateRecording, StateStopping) {
		return nil
	}

	// Capture finalizes synchronously; everything after runs behind the
	// toggle so the hotkey handler stays responsive.
	c.capture.Stop()
	active.recorder.Stop()

	if active.cancelRequested.Load() {
		c.teardown(active, StateCancelled, "recording cancelled", nil)
		return nil
	}

	go c.process(ctx, active)
	return nil
}

// process runs transcription, optional enhancement, and delivery.
func (c *Controller) process(ctx context.Context, active *activeSession) {
	duration := active.recorder.DurationSeconds()
	c.setState(StateTranscribing)

	transcribeStart := time.Now()
	if err := c.gate.EnsureLoaded(ctx, active.modelID); err != nil {
		c.fail(active, fmt.Errorf("model load: %w", err))
		return
	}

	if active.cancelRequested.Load() {
		c.teardown(active, StateCancelled, "session cancelled", nil)
		return
	}
	samples, err := wav.Decode(active.recorder.Bytes())
	if err != nil {
		c.fail(active, fmt.Errorf("decode capture: %w", err))
		return
	}

	if active.cancelRequested.Load() {
		c.teardown(active, StateCancelled, "session cancelled", nil)
		return
	}
	c.engine.SetPrompt(c.settings.Prompt())

	if active.cancelRequested.Load() {
		c.teardown(active, StateCancelled, "session cancelled", nil)
		return
	}
	if err := c.engine.FullTranscribe(ctx, samples); err != nil {
		c.fail(active, fmt.Errorf("transcribe: %w", err))
		return
	}
	raw := c.engine.GetTranscription()
	transcribeMs := float64(time.Since(transcribeStart).Milliseconds())

	// The engine call was already in flight when cancel arrived; the result
	// is discarded.
	if active.cancelRequested.Load() {
		c.teardown(active, StateCancelled, "session cancelled", nil)
		return
	}

	raw = strings.TrimSpace(applyReplacements(raw, c.settings.Replacements()))
	if raw == "" {
		c.teardown(active, StateIdle, "nothing transcribed", nil)
		return
	}
	log.TranscriptionText(raw)

	enhanced := ""
	enhanceMs := float64(0)
	attempts := 0
	encfg := c.settings.Enhancement()
	if encfg.Enabled && encfg.Configured() {
		c.setState(StateEnhancing)
		snap := c.snaps.Take(ctx)
		enhanceStart := time.Now()
		out, err := c.enhancer.Enhance(ctx, raw, snap, encfg)
		enhanceMs = float64(time.Since(enhanceStart).Milliseconds())
		attempts = c.enhancer.Attempts()
		if err != nil {
			// Raw text is always preferred over producing nothing.
			log.Warnf("enhancement failed, delivering raw transcription: %v", err)
		} else {
			enhanced = out
		}
	}

	c.setState(StateDelivering)
	rec := history.NewRecord(raw, duration)
	rec.EnhancedText = enhanced
	if c.opts.RecordingsDir != "" {
		if path, err := active.recorder.Save(c.opts.RecordingsDir); err != nil {
			log.Warnf("keeping recording failed: %v", err)
		} else {
			rec.AudioFilePath = path
		}
	}
	if err := c.records.Save(rec); err != nil {
		log.Errorf("persist record: %v", err)
	}

	out := c.sink.Deliver(rec.FinalText())
	if out.PasteErr != nil {
		log.Warnf("paste failed: %v", out.PasteErr)
	}
	if out.CopyErr != nil {
		log.Warnf("clipboard copy failed: %v", out.CopyErr)
	}

	c.mu.Lock()
	c.lastDelivery = out
	c.mu.Unlock()

	log.SessionMetrics(log.PipelineMetrics{
		AudioLengthS: duration,
		TranscribeMs: transcribeMs,
		EnhanceMs:    enhanceMs,
		Enhanced:     enhanced != "",
		Attempts:     attempts,
		Provider:     encfg.Provider,
		Model:        active.modelID,
	})

	c.teardown(active, StateIdle, deliveryMessage(out), nil)
}

func deliveryMessage(out deliver.Outcome) string {
	switch {
	case out.Pasted && out.Copied:
		return "pasted and copied to clipboard"
	case out.Pasted:
		return "pasted at cursor"
	case out.Copied:
		return "copied to clipboard"
	}
	return "transcription ready"
}

func applyReplacements(text string, replacements map[string]string) string {
	for from, to := range replacements {
		if from == "" {
			continue
		}
		text = strings.ReplaceAll(text, from, to)
	}
	return text
}

func (c *Controller) fail(active *activeSession, err error) {
	log.Errorf("session failed: %v", err)
	c.teardown(active, StateFailed, err.Error(), err)
}

// teardown releases session resources and returns the controller to Idle,
// passing through the transient outcome state when there is one. The engine
// handle is released too; the gate reloads the model lazily on next use.
func (c *Controller) teardown(active *activeSession, outcome State, msg string, err error) {
	c.engine.SetPrompt("")
	c.engine.UnloadModel()

	if outcome != StateIdle {
		c.setState(outcome)
	}

	c.mu.Lock()
	if c.active == active {
		c.active = nil
	}
	c.lastError = err
	if msg != "" {
		c.lastMessage = msg
	}
	c.mu.Unlock()

	c.setState(StateIdle)
	active.finished.Do(func() { close(active.done) })
}

// transition moves from one state to another only if the session is still
// current and in the expected state. Serializes the toggle-stop and cancel
// paths.
func (c *Controller) transition(active *activeSession, from, to State) bool {
	c.mu.Lock()
	if c.active != active || c.state != from {
		c.mu.Unlock()
		return false
	}
	prev := c.state
	c.state = to
	cb := c.opts.OnStateChange
	c.mu.Unlock()

	log.StateChange(prev.String(), to.String())
	if cb != nil {
		cb(to)
	}
	return true
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = s
	cb := c.opts.OnStateChange
	c.mu.Unlock()

	log.StateChange(prev.String(), s.String())
	if cb != nil {
		cb(s)
	}
}

// Status reports the observable session state for UI binding.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	return Status{
		State:          s,
		IsRecording:    s == StateRecording,
		IsProcessing:   s == StateStopping || s == StateTranscribing || s == StateEnhancing || s == StateDelivering,
		IsTranscribing: s == StateTranscribing,
	}
}

// LastError returns the most recent session-fatal error, nil after success.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// LastMessage is the most recent user-facing status line.
func (c *Controller) LastMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMessage
}

// LastDelivery reports what the delivery legs did for the last session.
func (c *Controller) LastDelivery() deliver.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastDelivery
}

// Wait blocks until the in-flight session, if any, finishes processing.
// Used at shutdown and by tests.
func (c *Controller) Wait() {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if active != nil {
		<-active.done
	}
}
