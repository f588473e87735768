package synth

import (
	"context"
	"fmt"
	"io"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"lahja/internal/domain"
	"lahja/internal/ports"
)

// OpenAIEngine synthesizes feedback speech through the OpenAI audio API and
// plays the returned bytes locally.
type OpenAIEngine struct {
	client *openai.Client
	player ports.AudioPlayer
	model  openai.SpeechModel
	voice  openai.SpeechVoice
	log    *zap.Logger

	warmOnce sync.Once

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewOpenAIEngine(apiKey, model, voice string, player ports.AudioPlayer, log *zap.Logger) *OpenAIEngine {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAIEngine{
		client: openai.NewClient(apiKey),
		player: player,
		model:  openai.SpeechModel(model),
		voice:  openai.SpeechVoice(voice),
		log:    log,
	}
}

// WarmUp reports the API's fixed voice set. There is nothing to probe.
func (e *OpenAIEngine) WarmUp(_ context.Context, onReady func([]domain.Voice)) {
	e.warmOnce.Do(func() {
		onReady([]domain.Voice{
			{Name: string(openai.VoiceAlloy)},
			{Name: string(openai.VoiceEcho)},
			{Name: string(openai.VoiceFable)},
			{Name: string(openai.VoiceOnyx)},
			{Name: string(openai.VoiceNova)},
			{Name: string(openai.VoiceShimmer)},
		})
	})
}

func (e *OpenAIEngine) Speak(ctx context.Context, req ports.SpeechRequest) error {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.cancel = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.cancel = nil
		e.mu.Unlock()
		cancel()
	}()

	speed := req.Rate
	if speed <= 0 {
		speed = 1.0
	}

	voice := e.voice
	if req.Voice != nil && req.Voice.Name != "" {
		voice = openai.SpeechVoice(req.Voice.Name)
	}

	resp, err := e.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: e.model,
		Input: req.Text,
		Voice: voice,
		Speed: speed,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("speech synthesis request failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("could not read synthesized audio: %w", err)
	}

	e.log.Info("feedback speech synthesized", zap.Int("bytes", len(audio)))
	if err := e.player.Play(ctx, audio); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

// Cancel aborts the in-flight synthesis and stops playback.
func (e *OpenAIEngine) Cancel() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()
	e.player.Stop()
}
