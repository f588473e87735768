package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"lahja/internal/domain"
)

const (
	audioFieldName    = "file"
	audioFileName     = "recording.wav"
	audioContentType  = "audio/wav"
	fallbackUploadErr = "analysis failed"
)

// Config controls coach backend access.
type Config struct {
	BaseURL       string
	UploadTimeout time.Duration
	TTSTimeout    time.Duration
}

// Client talks to the pronunciation-coach backend: multipart uploads to
// /api/analyze and speech synthesis via /api/tts.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:10000"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 90 * time.Second
	}
	if cfg.TTSTimeout <= 0 {
		cfg.TTSTimeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		log:        log,
	}
}

// Submit uploads a finished capture with its phrase context and folds every
// failure path into the tagged result; it never returns an error to the
// caller.
func (c *Client) Submit(ctx context.Context, audio []byte, phrase domain.PhraseContext) domain.AnalysisResult {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(audioFieldName, audioFileName)
	if err != nil {
		return domain.Failure("could not build upload request: " + err.Error())
	}
	if _, err := part.Write(audio); err != nil {
		return domain.Failure("could not build upload request: " + err.Error())
	}

	// Context fields are omitted entirely when empty, not sent as "".
	fields := map[string]string{
		"phrase":                 phrase.Native,
		"hint":                   phrase.Hint,
		"arabic_transliteration": phrase.Transliteration,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return domain.Failure("could not build upload request: " + err.Error())
		}
	}
	if err := writer.Close(); err != nil {
		return domain.Failure("could not build upload request: " + err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.UploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/analyze", body)
	if err != nil {
		return domain.Failure("could not build upload request: " + err.Error())
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("analysis upload failed", zap.Error(err))
		return domain.Failure("analysis request failed: " + err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Failure("could not read analysis response: " + err.Error())
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := strings.TrimSpace(string(data))
		if message == "" {
			message = fallbackUploadErr
		}
		c.log.Warn("analysis rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("message", message),
		)
		return domain.Failure(message)
	}

	if !json.Valid(data) {
		return domain.Failure("analysis response was not valid JSON")
	}

	c.log.Info("analysis completed", zap.Int("bytes", len(data)))
	return domain.Success(json.RawMessage(data))
}

// FetchSpeech synthesizes feedback text through the backend and returns the
// audio bytes.
func (c *Client) FetchSpeech(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("could not encode tts request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TTSTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/tts", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("could not build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read tts response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := strings.TrimSpace(string(data))
		if message == "" {
			message = resp.Status
		}
		return nil, fmt.Errorf("tts request rejected: %s", message)
	}

	c.log.Info("feedback audio fetched", zap.Int("bytes", len(data)))
	return data, nil
}
