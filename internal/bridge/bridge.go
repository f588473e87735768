package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"lahja/internal/domain"
	"lahja/internal/ports"
	"lahja/internal/speech"
	"lahja/internal/usecase"
)

const (
	msgNoCapture = "capability unavailable"
	msgGuidance  = "press and hold to start"
)

// Deps lists the collaborators of the poll bridge.
type Deps struct {
	Capture *usecase.Controller
	Speech  *speech.Controller
	TTS     ports.SpeechFetcher
	Player  ports.AudioPlayer
	Store   ports.FeedbackStore
	Events  ports.EventSink
	Log     *zap.Logger
}

// Bridge translates the host's pull-based polling into results produced by
// push-driven capture, upload, and synthesis events. It owns the single
// PendingRequest slot and the per-trigger tick bookkeeping.
type Bridge struct {
	capture *usecase.Controller
	speech  *speech.Controller
	tts     ports.SpeechFetcher
	player  ports.AudioPlayer
	store   ports.FeedbackStore
	events  ports.EventSink
	log     *zap.Logger

	// playMu serializes player.Play calls so a superseded playback can
	// never start after its replacement.
	playMu sync.Mutex

	mu           sync.Mutex
	pending      *pendingRequest
	cancelPlay   context.CancelFunc
	lastCapture  uint64
	lastSpeak    uint64
	lastPlay     uint64
	lastDownload uint64
	lastToken    int64
}

func New(deps Deps) *Bridge {
	return &Bridge{
		capture: deps.Capture,
		speech:  deps.Speech,
		tts:     deps.TTS,
		player:  deps.Player,
		store:   deps.Store,
		events:  deps.Events,
		log:     deps.Log,
	}
}

// PressStart reacts to the press-and-hold gesture: it opens the single
// pending slot and starts a capture session. A press while a session is in
// flight is a no-op; a settled result nobody polled for is discarded in
// favor of the new recording.
func (b *Bridge) PressStart(phrase domain.PhraseContext) {
	b.speech.NoteUserGesture()
	b.speech.Cancel()
	b.stopPlayback()

	if !b.capture.Supported() {
		b.events.SessionError(domain.ErrorCodeCapability, msgNoCapture)
		b.events.StatusText("Microphone capture is not available on this device.")
		return
	}

	pending := newPendingRequest()
	b.mu.Lock()
	if b.pending != nil && !b.pending.settled() {
		b.mu.Unlock()
		return
	}
	b.pending = pending
	b.mu.Unlock()

	resultCh, err := b.capture.Begin(context.Background(), phrase)
	if err != nil {
		b.clearPending(pending)
		if errors.Is(err, usecase.ErrSessionActive) {
			return
		}
		b.events.SessionError(domain.ErrorCodeDevice, err.Error())
		return
	}

	b.events.StatusText("Recording... release to analyze.")
	go func() {
		pending.settle(<-resultCh)
	}()
}

// PressEnd reacts to releasing the control. Idempotent.
func (b *Bridge) PressEnd() {
	b.capture.End()
}

// CapturePoll is the host's capture-result entry point. The same settled
// result is delivered to exactly one poll; everyone else sees NoUpdate.
func (b *Bridge) CapturePoll(seq uint64, _ domain.PhraseContext) domain.PollResult {
	b.mu.Lock()
	changed := seq != 0 && seq != b.lastCapture
	if changed {
		b.lastCapture = seq
	}
	pending := b.pending
	b.mu.Unlock()

	if !changed {
		return domain.NoUpdate()
	}
	if !b.capture.Supported() {
		return domain.FailurePoll(msgNoCapture)
	}
	if pending == nil {
		return domain.FailurePoll(msgGuidance)
	}

	// Await the session's settle inside this very poll invocation.
	result, ok := pending.claim()
	if !ok {
		return domain.NoUpdate()
	}
	b.clearPending(pending)

	if result.Ok() {
		b.events.StatusText("Analysis complete.")
	} else {
		b.events.StatusText("Analysis failed.")
	}
	return domain.ResultOf(result)
}

// FeedbackPoll speaks feedback text through the speech controller.
func (b *Bridge) FeedbackPoll(seq uint64, feedback string) domain.TriggerResult {
	if !b.tick(&b.lastSpeak, seq) {
		return domain.TriggerResult{NoUpdate: true}
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return domain.TriggerResult{NoUpdate: true}
	}

	b.speech.Speak(feedback)
	return domain.TriggerResult{Token: b.nextToken()}
}

// PlayPoll fetches synthesized feedback audio from the backend and plays it.
func (b *Bridge) PlayPoll(seq uint64, feedback string) domain.TriggerResult {
	if !b.tick(&b.lastPlay, seq) {
		return domain.TriggerResult{NoUpdate: true}
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return domain.TriggerResult{NoUpdate: true}
	}

	audio, err := b.tts.FetchSpeech(context.Background(), feedback)
	if err != nil {
		b.events.SessionError(domain.ErrorCodeTransport, err.Error())
		b.events.StatusText("Could not fetch feedback audio.")
		return domain.TriggerResult{Err: "could not fetch feedback audio"}
	}

	// Revoke the previous playback before the new one is handed to the
	// player, so a playback whose goroutine has not started yet is dead on
	// arrival rather than racing its replacement.
	b.mu.Lock()
	if b.cancelPlay != nil {
		b.cancelPlay()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancelPlay = cancel
	b.mu.Unlock()
	b.player.Stop()

	go func() {
		b.playMu.Lock()
		defer b.playMu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if err := b.player.Play(ctx, audio); err != nil {
			b.events.SessionError(domain.ErrorCodeSpeech, err.Error())
		}
	}()

	b.events.StatusText("Playing feedback...")
	return domain.TriggerResult{Token: b.nextToken()}
}

// DownloadPoll fetches synthesized feedback audio and saves it locally.
func (b *Bridge) DownloadPoll(seq uint64, feedback string) domain.TriggerResult {
	if !b.tick(&b.lastDownload, seq) {
		return domain.TriggerResult{NoUpdate: true}
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return domain.TriggerResult{NoUpdate: true}
	}

	audio, err := b.tts.FetchSpeech(context.Background(), feedback)
	if err != nil {
		b.events.SessionError(domain.ErrorCodeTransport, err.Error())
		b.events.StatusText("Could not fetch feedback audio.")
		return domain.TriggerResult{Err: "could not fetch feedback audio"}
	}

	path, err := b.store.Save(audio)
	if err != nil {
		b.events.SessionError(domain.ErrorCodeStorage, err.Error())
		b.events.StatusText("Could not save feedback audio.")
		return domain.TriggerResult{Err: "could not save feedback audio"}
	}

	b.events.StatusText("Feedback audio saved.")
	b.log.Info("feedback audio downloaded", zap.String("path", path))
	return domain.TriggerResult{Token: b.nextToken(), Path: path}
}

// Status reports the capture controller's current state.
func (b *Bridge) Status() domain.Status {
	return b.capture.Status()
}

// stopPlayback revokes any queued playback and stops the player.
func (b *Bridge) stopPlayback() {
	b.mu.Lock()
	if b.cancelPlay != nil {
		b.cancelPlay()
		b.cancelPlay = nil
	}
	b.mu.Unlock()
	b.player.Stop()
}

func (b *Bridge) clearPending(p *pendingRequest) {
	b.mu.Lock()
	if b.pending == p {
		b.pending = nil
	}
	b.mu.Unlock()
}

// tick reports whether seq is a fresh trigger for the given slot.
func (b *Bridge) tick(last *uint64, seq uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq == 0 || seq == *last {
		return false
	}
	*last = seq
	return true
}

// nextToken returns a strictly increasing opaque token.
func (b *Bridge) nextToken() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	token := time.Now().UnixMilli()
	if token <= b.lastToken {
		token = b.lastToken + 1
	}
	b.lastToken = token
	return token
}
