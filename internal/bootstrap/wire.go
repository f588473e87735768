package bootstrap

import (
	"context"

	"go.uber.org/zap"

	"lahja/internal/bridge"
	"lahja/internal/capture"
	"lahja/internal/config"
	"lahja/internal/ports"
	"lahja/internal/providers/coach"
	"lahja/internal/speech"
	"lahja/internal/store"
	"lahja/internal/synth"
	"lahja/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Bridge *bridge.Bridge
	Config config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink, log *zap.Logger) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	coachClient := coach.NewClient(coach.Config{
		BaseURL:       cfg.Coach.BaseURL,
		UploadTimeout: cfg.Coach.UploadTimeout,
		TTSTimeout:    cfg.Coach.TTSTimeout,
	}, log)

	deviceCapture := capture.NewFFMPEGCapture(capture.Config{
		Command:     cfg.Audio.RecorderCommand,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		ChunkSize:   cfg.Audio.ChunkSize,
	})

	player := synth.NewFFPlayPlayer(cfg.Speech.PlayerCommand, log)
	engine := buildSpeechEngine(cfg.Speech, player, log)

	catalog := speech.NewCatalog(cfg.Speech.TargetLang, cfg.Speech.RegionVariant, cfg.Speech.FallbackLang)
	speechController := speech.NewController(engine, catalog, eventSink, log, speech.Options{
		Lang:  cfg.Speech.UtteranceLang,
		Rate:  cfg.Speech.Rate,
		Pitch: cfg.Speech.Pitch,
	})
	engine.WarmUp(context.Background(), catalog.MarkReady)

	captureController := usecase.NewController(
		deviceCapture,
		coachClient,
		eventSink,
		log,
		usecase.Config{AcquireTimeout: cfg.Session.AcquireTimeout},
	)

	pollBridge := bridge.New(bridge.Deps{
		Capture: captureController,
		Speech:  speechController,
		TTS:     coachClient,
		Player:  player,
		Store:   store.NewFileStore(cfg.Store.Dir, log),
		Events:  eventSink,
		Log:     log,
	})

	return Services{Bridge: pollBridge, Config: cfg}, nil
}

func buildSpeechEngine(cfg config.SpeechConfig, player ports.AudioPlayer, log *zap.Logger) ports.SpeechEngine {
	if cfg.Engine == "openai" && cfg.OpenAIKey != "" {
		return synth.NewOpenAIEngine(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIVoice, player, log)
	}
	return synth.NewEspeakEngine(cfg.EspeakCommand, log)
}
