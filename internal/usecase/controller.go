package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"lahja/internal/domain"
	"lahja/internal/ports"
)

var (
	ErrCaptureUnsupported = errors.New("audio capture is not available in this runtime")
	ErrSessionActive      = errors.New("a capture session is already in progress")
)

// Config controls capture session behavior.
type Config struct {
	AcquireTimeout time.Duration
}

// Controller runs press-to-result capture sessions: device acquisition,
// chunk buffering, stop, and upload. At most one session is live at a time.
type Controller struct {
	capture  ports.DeviceCapture
	analyzer ports.Analyzer
	events   ports.EventSink
	log      *zap.Logger
	cfg      Config

	mu      sync.Mutex
	current *captureSession
}

func NewController(
	capture ports.DeviceCapture,
	analyzer ports.Analyzer,
	events ports.EventSink,
	log *zap.Logger,
	cfg Config,
) *Controller {
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 10 * time.Second
	}
	return &Controller{
		capture:  capture,
		analyzer: analyzer,
		events:   events,
		log:      log,
		cfg:      cfg,
	}
}

// Supported reports whether capture capability exists in this runtime.
func (c *Controller) Supported() bool {
	return c.capture.Supported()
}

// Begin starts a new capture session and returns the channel its eventual
// result is published on. Fails without creating a session when capture is
// unsupported; a press while a session is live is rejected with
// ErrSessionActive.
func (c *Controller) Begin(ctx context.Context, phrase domain.PhraseContext) (<-chan domain.AnalysisResult, error) {
	if !c.capture.Supported() {
		return nil, ErrCaptureUnsupported
	}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return nil, ErrSessionActive
	}
	session := newCaptureSession(phrase)
	c.current = session
	c.mu.Unlock()

	c.log.Info("capture session started", zap.String("session_id", session.id))
	c.events.SessionStateChanged(domain.SessionStateAcquiring, domain.SessionReasonAcquiringDevice)

	go c.run(ctx, session)
	return session.result, nil
}

// End requests a stop of the live session. Idempotent; a no-op when no
// session is live. A release before acquisition completes is remembered so
// cleanup still happens once acquisition resolves.
func (c *Controller) End() {
	c.mu.Lock()
	session := c.current
	c.mu.Unlock()
	if session == nil {
		return
	}
	session.requestStop()
}

// Status returns the current backend status.
func (c *Controller) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	state := c.current.getState()
	return domain.Status{State: state, Active: !state.Terminal()}
}

func (c *Controller) run(ctx context.Context, session *captureSession) {
	result := c.record(ctx, session)
	c.settle(session, result)
}

// record drives the session through acquisition, recording, stop, and
// upload. The acquired device is released on every exit path before the
// result is returned for publication.
func (c *Controller) record(ctx context.Context, session *captureSession) domain.AnalysisResult {
	acquireCtx, cancel := context.WithTimeout(ctx, c.cfg.AcquireTimeout)
	defer cancel()

	device, err := c.capture.Acquire(acquireCtx)
	if err != nil {
		message := "could not access the microphone: " + err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			message = "microphone acquisition timed out"
		}
		c.events.SessionError(domain.ErrorCodeDevice, message)
		c.log.Warn("device acquisition failed", zap.String("session_id", session.id), zap.Error(err))
		return domain.Failure(message)
	}
	defer func() {
		_ = device.Close()
	}()

	if stoppedEarly := session.attachDevice(device); stoppedEarly {
		// Press was released while acquisition was still resolving; stop
		// immediately and continue with whatever was captured.
		_ = device.Stop()
	} else {
		session.setState(domain.SessionStateRecording)
		c.events.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)
	}

	var chunks [][]byte
	for chunk := range device.Chunks() {
		chunks = append(chunks, chunk)
	}

	session.setState(domain.SessionStateStopping)

	if err := device.Err(); err != nil {
		c.events.SessionError(domain.ErrorCodeDevice, err.Error())
		c.log.Warn("recording halted", zap.String("session_id", session.id), zap.Error(err))
		return domain.Failure("recording failed: " + err.Error())
	}

	// Zero-byte captures are uploaded as-is; the backend arbitrates validity.
	payload := concatChunks(chunks)

	session.setState(domain.SessionStateUploading)
	c.events.SessionStateChanged(domain.SessionStateUploading, domain.SessionReasonAnalyzing)
	c.log.Info("uploading capture",
		zap.String("session_id", session.id),
		zap.Int("chunks", len(chunks)),
		zap.Int("bytes", len(payload)),
	)

	return c.analyzer.Submit(ctx, payload, session.phrase)
}

func (c *Controller) settle(session *captureSession, result domain.AnalysisResult) {
	session.setState(domain.SessionStateSettled)

	c.mu.Lock()
	if c.current == session {
		c.current = nil
	}
	c.mu.Unlock()

	session.result <- result

	reason := domain.SessionReasonAnalysisComplete
	if !result.Ok() {
		reason = domain.SessionReasonAnalysisFailed
	}
	c.events.SessionStateChanged(domain.SessionStateSettled, reason)
	c.log.Info("capture session settled",
		zap.String("session_id", session.id),
		zap.Bool("ok", result.Ok()),
	)
}

// concatChunks joins chunks in arrival order into one audio payload.
func concatChunks(chunks [][]byte) []byte {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	payload := make([]byte, 0, total)
	for _, chunk := range chunks {
		payload = append(payload, chunk...)
	}
	return payload
}
