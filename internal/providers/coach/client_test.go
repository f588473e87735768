package coach

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"lahja/internal/domain"
)

func TestSubmitSuccessAndFieldOmission(t *testing.T) {
	t.Parallel()

	var gotAudio []byte
	var gotForm map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analyze" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart failed: %v", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file field: %v", err)
		} else {
			buf := &bytes.Buffer{}
			_, _ = buf.ReadFrom(file)
			gotAudio = buf.Bytes()
			_ = file.Close()
		}
		gotForm = r.MultipartForm.Value
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"score":0.9}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	phrase := domain.PhraseContext{Native: "בדי קהוה", Transliteration: "Bidi Kahwa"}

	result := client.Submit(context.Background(), []byte("RIFFdata"), phrase)
	if !result.Ok() {
		t.Fatalf("expected success, got %q", result.Err)
	}
	if string(result.Payload) != `{"score":0.9}` {
		t.Fatalf("unexpected payload: %s", result.Payload)
	}
	if !bytes.Equal(gotAudio, []byte("RIFFdata")) {
		t.Fatalf("unexpected audio payload: %q", gotAudio)
	}
	if got := gotForm["phrase"]; len(got) != 1 || got[0] != "בדי קהוה" {
		t.Fatalf("unexpected phrase field: %v", gotForm["phrase"])
	}
	if got := gotForm["arabic_transliteration"]; len(got) != 1 || got[0] != "Bidi Kahwa" {
		t.Fatalf("unexpected transliteration field: %v", gotForm["arabic_transliteration"])
	}
	if _, present := gotForm["hint"]; present {
		t.Fatalf("empty hint must be omitted, got %v", gotForm["hint"])
	}
}

func TestSubmitNon2xxUsesBodyText(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("File must be a WAV audio."))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	result := client.Submit(context.Background(), nil, domain.PhraseContext{})
	if result.Ok() {
		t.Fatalf("expected failure")
	}
	if result.Err != "File must be a WAV audio." {
		t.Fatalf("unexpected message: %q", result.Err)
	}
}

func TestSubmitNon2xxEmptyBodyFallsBack(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	result := client.Submit(context.Background(), nil, domain.PhraseContext{})
	if result.Err != "analysis failed" {
		t.Fatalf("expected fallback message, got %q", result.Err)
	}
}

func TestSubmitInvalidJSONIsFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	result := client.Submit(context.Background(), nil, domain.PhraseContext{})
	if result.Ok() || !strings.Contains(result.Err, "not valid JSON") {
		t.Fatalf("expected parse failure, got %+v", result)
	}
}

func TestSubmitTransportFailureIsFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	result := client.Submit(context.Background(), nil, domain.PhraseContext{})
	if result.Ok() || !strings.Contains(result.Err, "analysis request failed") {
		t.Fatalf("expected transport failure, got %+v", result)
	}
}

func TestFetchSpeechReturnsAudioBytes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tts" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		body := &bytes.Buffer{}
		_, _ = body.ReadFrom(r.Body)
		if body.String() != `{"text":"כל הכבוד"}` {
			t.Errorf("unexpected body: %s", body.String())
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3mp3bytes"))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	audio, err := client.FetchSpeech(context.Background(), "כל הכבוד")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !bytes.Equal(audio, []byte("ID3mp3bytes")) {
		t.Fatalf("unexpected audio: %q", audio)
	}
}

func TestFetchSpeechNon2xxIsError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Missing text for TTS."))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	if _, err := client.FetchSpeech(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "Missing text for TTS.") {
		t.Fatalf("expected rejection error, got %v", err)
	}
}
