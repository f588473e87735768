package ports

import (
	"context"

	"lahja/internal/domain"
)

// DeviceSession is one acquired microphone handle, exclusively owned by a
// single capture session for its lifetime.
type DeviceSession interface {
	// Chunks streams raw audio chunks in arrival order. The channel is
	// closed once capture ends, whether by Stop or by a device halt.
	Chunks() <-chan []byte

	// Stop ends the chunk stream. Idempotent.
	Stop() error

	// Err reports a terminal capture error. Valid once Chunks is closed.
	Err() error

	// Close releases the device. Safe to call more than once.
	Close() error
}

// DeviceCapture acquires microphone capture sessions.
type DeviceCapture interface {
	// Supported reports whether capture capability exists in this runtime.
	Supported() bool

	Acquire(ctx context.Context) (DeviceSession, error)
}

// Analyzer submits a finished audio payload for pronunciation analysis.
// Implementations never return an error; every failure path is folded into
// the tagged result.
type Analyzer interface {
	Submit(ctx context.Context, audio []byte, phrase domain.PhraseContext) domain.AnalysisResult
}

// SpeechFetcher turns feedback text into synthesized audio bytes via the
// coach backend.
type SpeechFetcher interface {
	FetchSpeech(ctx context.Context, text string) ([]byte, error)
}

// SpeechRequest describes one utterance.
type SpeechRequest struct {
	Text  string
	Voice *domain.Voice
	Lang  string
	Rate  float64
	Pitch float64
}

// SpeechEngine synthesizes utterances. The voice list is enumerated
// asynchronously; WarmUp invokes onReady exactly once when voices become
// available.
type SpeechEngine interface {
	WarmUp(ctx context.Context, onReady func([]domain.Voice))
	Speak(ctx context.Context, req SpeechRequest) error
	Cancel()
}

// AudioPlayer plays an encoded audio payload.
type AudioPlayer interface {
	Play(ctx context.Context, audio []byte) error
	Stop()
}

// FeedbackStore persists downloaded feedback audio and returns its path.
type FeedbackStore interface {
	Save(audio []byte) (string, error)
}

// EventSink emits backend state/events to the host UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	StatusText(text string)
	SessionError(code domain.ErrorCode, detail string)
}
