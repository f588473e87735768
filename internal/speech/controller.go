package speech

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"lahja/internal/domain"
	"lahja/internal/ports"
)

// Options fixes the utterance parameters used for every feedback playback.
type Options struct {
	Lang  string
	Rate  float64
	Pitch float64
}

// Controller plays back one utterance at a time. A new Speak always
// supersedes whatever is pending or in progress; playback is held back
// until the catalog is ready and the user has interacted at least once.
type Controller struct {
	engine  ports.SpeechEngine
	catalog *Catalog
	events  ports.EventSink
	log     *zap.Logger
	opts    Options

	// speakMu serializes engine.Speak calls so superseded utterances can
	// never reach the engine after their replacement.
	speakMu sync.Mutex

	mu          sync.Mutex
	pendingText string
	hasPending  bool
	gestureSeen bool
	cancelUtter context.CancelFunc
}

func NewController(
	engine ports.SpeechEngine,
	catalog *Catalog,
	events ports.EventSink,
	log *zap.Logger,
	opts Options,
) *Controller {
	if opts.Rate <= 0 {
		opts.Rate = 0.95
	}
	if opts.Pitch <= 0 {
		opts.Pitch = 1.0
	}
	c := &Controller{
		engine:  engine,
		catalog: catalog,
		events:  events,
		log:     log,
		opts:    opts,
	}
	catalog.SetOnReady(c.flushPending)
	return c
}

// NoteUserGesture records the first qualifying user interaction. The flag
// is never reset; a queued utterance fires once both gates are open.
func (c *Controller) NoteUserGesture() {
	c.mu.Lock()
	c.gestureSeen = true
	c.mu.Unlock()
	c.flushPending()
}

// Speak supersedes any prior utterance with text. When the catalog is not
// yet ready or no user gesture has occurred, the text is stored as the
// single pending utterance; the latest request wins.
func (c *Controller) Speak(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.engine.Cancel()

	c.mu.Lock()
	if !c.gestureSeen || !c.catalog.Ready() {
		c.pendingText = text
		c.hasPending = true
		c.mu.Unlock()
		return
	}
	c.hasPending = false
	c.pendingText = ""
	c.mu.Unlock()

	c.utter(text)
}

// Cancel stops any in-progress utterance without replacing it.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.cancelUtter != nil {
		c.cancelUtter()
		c.cancelUtter = nil
	}
	c.mu.Unlock()
	c.engine.Cancel()
}

func (c *Controller) flushPending() {
	c.mu.Lock()
	if !c.hasPending || !c.gestureSeen || !c.catalog.Ready() {
		c.mu.Unlock()
		return
	}
	text := c.pendingText
	c.hasPending = false
	c.pendingText = ""
	c.mu.Unlock()

	c.utter(text)
}

// utter supersedes the previous utterance by revoking its context before
// the new one is handed to the engine. The context is revoked under the
// same lock that installs the replacement, so an utterance whose goroutine
// has not started yet is dead on arrival rather than racing the newer one.
func (c *Controller) utter(text string) {
	req := ports.SpeechRequest{
		Text:  text,
		Voice: c.catalog.SelectVoice(),
		Lang:  c.opts.Lang,
		Rate:  c.opts.Rate,
		Pitch: c.opts.Pitch,
	}
	if req.Voice != nil {
		c.log.Debug("utterance voice selected",
			zap.String("voice", req.Voice.Name),
			zap.String("lang", req.Voice.Lang),
		)
	}

	c.mu.Lock()
	if c.cancelUtter != nil {
		c.cancelUtter()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelUtter = cancel
	c.mu.Unlock()

	c.engine.Cancel()

	go func() {
		c.speakMu.Lock()
		defer c.speakMu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if err := c.engine.Speak(ctx, req); err != nil {
			c.events.SessionError(domain.ErrorCodeSpeech, err.Error())
			c.log.Warn("utterance failed", zap.Error(err))
		}
	}()
}
