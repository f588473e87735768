package usecase

import (
	"sync"

	"github.com/google/uuid"

	"lahja/internal/domain"
	"lahja/internal/ports"
)

// captureSession is one press-to-result attempt. It exclusively owns the
// acquired device handle for its lifetime and snapshots the phrase context
// at creation.
type captureSession struct {
	id     string
	phrase domain.PhraseContext
	result chan domain.AnalysisResult

	mu      sync.Mutex
	state   domain.SessionState
	device  ports.DeviceSession
	stopped bool
}

func newCaptureSession(phrase domain.PhraseContext) *captureSession {
	return &captureSession{
		id:     uuid.NewString(),
		phrase: phrase,
		result: make(chan domain.AnalysisResult, 1),
		state:  domain.SessionStateAcquiring,
	}
}

func (s *captureSession) setState(state domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *captureSession) getState() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// attachDevice records the acquired handle and reports whether a stop was
// requested while acquisition was still resolving.
func (s *captureSession) attachDevice(device ports.DeviceSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = device
	return s.stopped
}

// requestStop ends recording once. Safe to call at any point of the
// lifecycle, including before the device is attached.
func (s *captureSession) requestStop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	device := s.device
	s.mu.Unlock()

	if device != nil {
		_ = device.Stop()
	}
}
