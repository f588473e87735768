package speech

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"lahja/internal/domain"
	"lahja/internal/ports"
)

func TestControllerDefersUntilCatalogReady(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	catalog := NewCatalog("he", "he-il", "en")
	controller := NewController(engine, catalog, &nopEventSink{}, zap.NewNop(), Options{Lang: "he-IL"})

	controller.NoteUserGesture()
	controller.Speak("hello")

	select {
	case req := <-engine.spoken:
		t.Fatalf("utterance fired before catalog readiness: %+v", req)
	case <-time.After(50 * time.Millisecond):
	}

	catalog.MarkReady([]domain.Voice{{Name: "heb", Lang: "he"}})

	req := engine.awaitSpoken(t)
	if req.Text != "hello" {
		t.Fatalf("unexpected utterance text: %q", req.Text)
	}
	if req.Voice == nil || req.Voice.Name != "heb" {
		t.Fatalf("unexpected voice: %+v", req.Voice)
	}
}

func TestControllerLatestPendingWins(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	catalog := NewCatalog("he", "he-il", "en")
	controller := NewController(engine, catalog, &nopEventSink{}, zap.NewNop(), Options{})

	controller.NoteUserGesture()
	controller.Speak("A")
	controller.Speak("B")

	catalog.MarkReady([]domain.Voice{{Name: "heb", Lang: "he"}})

	req := engine.awaitSpoken(t)
	if req.Text != "B" {
		t.Fatalf("expected latest request to win, got %q", req.Text)
	}

	select {
	case req := <-engine.spoken:
		t.Fatalf("expected a single utterance, got extra %+v", req)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestControllerGestureGatesPlayback(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	catalog := NewCatalog("he", "he-il", "en")
	controller := NewController(engine, catalog, &nopEventSink{}, zap.NewNop(), Options{})

	catalog.MarkReady([]domain.Voice{{Name: "heb", Lang: "he"}})
	controller.Speak("hold on")

	select {
	case req := <-engine.spoken:
		t.Fatalf("utterance fired without a user gesture: %+v", req)
	case <-time.After(50 * time.Millisecond):
	}

	controller.NoteUserGesture()
	if req := engine.awaitSpoken(t); req.Text != "hold on" {
		t.Fatalf("unexpected utterance: %q", req.Text)
	}
}

func TestControllerSpeakCancelsPriorUtterance(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	catalog := NewCatalog("he", "he-il", "en")
	controller := NewController(engine, catalog, &nopEventSink{}, zap.NewNop(), Options{Rate: 0.95, Pitch: 1.0})

	catalog.MarkReady([]domain.Voice{{Name: "heb", Lang: "he"}})
	controller.NoteUserGesture()

	controller.Speak("first")
	engine.awaitSpoken(t)
	controller.Speak("second")

	if req := engine.awaitSpoken(t); req.Text != "second" {
		t.Fatalf("unexpected utterance: %q", req.Text)
	}
	if engine.cancelCount() < 2 {
		t.Fatalf("expected a cancel before each speak, got %d", engine.cancelCount())
	}
	if req := engine.lastRequest(); req.Rate != 0.95 || req.Pitch != 1.0 {
		t.Fatalf("unexpected rate/pitch: %+v", req)
	}
}

func TestControllerBackToBackSpeaksProduceOnlyLatest(t *testing.T) {
	t.Parallel()

	engine := &holdingEngine{}
	catalog := NewCatalog("he", "he-il", "en")
	controller := NewController(engine, catalog, &nopEventSink{}, zap.NewNop(), Options{})

	catalog.MarkReady([]domain.Voice{{Name: "heb", Lang: "he"}})
	controller.NoteUserGesture()

	const rounds = 200
	for r := 0; r < rounds; r++ {
		first := fmt.Sprintf("first-%d", r)
		latest := fmt.Sprintf("latest-%d", r)
		controller.Speak(first)
		controller.Speak(latest)
		engine.awaitLast(t, latest)
	}
	controller.Cancel()

	// A superseded utterance may reach the engine before its replacement
	// or not at all, but never after it.
	order := engine.snapshot()
	position := make(map[string]int, len(order))
	for i, text := range order {
		position[text] = i
	}
	for r := 0; r < rounds; r++ {
		latestAt, ok := position[fmt.Sprintf("latest-%d", r)]
		if !ok {
			t.Fatalf("latest utterance of round %d never reached the engine", r)
		}
		if firstAt, ok := position[fmt.Sprintf("first-%d", r)]; ok && firstAt > latestAt {
			t.Fatalf("superseded utterance reached the engine after its replacement in round %d", r)
		}
	}
}

// holdingEngine records the texts that actually reach Speak and holds each
// utterance until its context is revoked.
type holdingEngine struct {
	mu    sync.Mutex
	order []string
}

func (e *holdingEngine) WarmUp(_ context.Context, _ func([]domain.Voice)) {}

func (e *holdingEngine) Speak(ctx context.Context, req ports.SpeechRequest) error {
	e.mu.Lock()
	e.order = append(e.order, req.Text)
	e.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (e *holdingEngine) Cancel() {}

func (e *holdingEngine) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

func (e *holdingEngine) awaitLast(t *testing.T, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e.mu.Lock()
		n := len(e.order)
		var last string
		if n > 0 {
			last = e.order[n-1]
		}
		e.mu.Unlock()
		if last == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q to reach the engine", want)
}

type fakeEngine struct {
	mu      sync.Mutex
	cancels int
	last    ports.SpeechRequest
	spoken  chan ports.SpeechRequest
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{spoken: make(chan ports.SpeechRequest, 8)}
}

func (f *fakeEngine) WarmUp(_ context.Context, _ func([]domain.Voice)) {}

func (f *fakeEngine) Speak(_ context.Context, req ports.SpeechRequest) error {
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	f.spoken <- req
	return nil
}

func (f *fakeEngine) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeEngine) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

func (f *fakeEngine) lastRequest() ports.SpeechRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeEngine) awaitSpoken(t *testing.T) ports.SpeechRequest {
	t.Helper()
	select {
	case req := <-f.spoken:
		return req
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for utterance")
		return ports.SpeechRequest{}
	}
}

type nopEventSink struct{}

func (nopEventSink) SessionStateChanged(_ domain.SessionState, _ domain.SessionStateReason) {}
func (nopEventSink) StatusText(_ string)                                                    {}
func (nopEventSink) SessionError(_ domain.ErrorCode, _ string)                              {}
