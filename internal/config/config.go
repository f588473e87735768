package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the capture bridge.
type Config struct {
	Coach   CoachConfig
	Audio   AudioConfig
	Session SessionConfig
	Speech  SpeechConfig
	Store   StoreConfig
}

type CoachConfig struct {
	BaseURL       string
	UploadTimeout time.Duration
	TTSTimeout    time.Duration
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	ChunkSize       int
}

type SessionConfig struct {
	AcquireTimeout time.Duration
}

type SpeechConfig struct {
	Engine        string
	EspeakCommand string
	PlayerCommand string
	TargetLang    string
	RegionVariant string
	FallbackLang  string
	UtteranceLang string
	Rate          float64
	Pitch         float64
	OpenAIKey     string
	OpenAIModel   string
	OpenAIVoice   string
}

type StoreConfig struct {
	Dir string
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	downloads := "feedback"
	if home, err := os.UserHomeDir(); err == nil {
		downloads = filepath.Join(home, "Downloads", "lahja")
	}

	cfg := Config{
		Coach: CoachConfig{
			BaseURL:       envOrDefault("LAHJA_COACH_BASE_URL", "http://localhost:10000"),
			UploadTimeout: envDurationMS("LAHJA_UPLOAD_TIMEOUT_MS", 90_000),
			TTSTimeout:    envDurationMS("LAHJA_TTS_TIMEOUT_MS", 30_000),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("LAHJA_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("LAHJA_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("LAHJA_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("LAHJA_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("LAHJA_CHANNELS", 1),
			ChunkSize:       envOrDefaultInt("LAHJA_AUDIO_CHUNK_SIZE", 4096),
		},
		Session: SessionConfig{
			AcquireTimeout: envDurationMS("LAHJA_ACQUIRE_TIMEOUT_MS", 10_000),
		},
		Speech: SpeechConfig{
			Engine:        envOrDefault("LAHJA_SPEECH_ENGINE", "espeak"),
			EspeakCommand: envOrDefault("LAHJA_ESPEAK_COMMAND", "espeak-ng"),
			PlayerCommand: envOrDefault("LAHJA_PLAYER_COMMAND", "ffplay"),
			TargetLang:    envOrDefault("LAHJA_TARGET_LANG", "he"),
			RegionVariant: envOrDefault("LAHJA_REGION_VARIANT", "he-il"),
			FallbackLang:  envOrDefault("LAHJA_FALLBACK_LANG", "en"),
			UtteranceLang: envOrDefault("LAHJA_UTTERANCE_LANG", "he-IL"),
			Rate:          envOrDefaultFloat("LAHJA_SPEECH_RATE", 0.95),
			Pitch:         envOrDefaultFloat("LAHJA_SPEECH_PITCH", 1.0),
			OpenAIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			OpenAIModel:   envOrDefault("OPENAI_MODEL_TTS", "tts-1"),
			OpenAIVoice:   envOrDefault("OPENAI_TTS_VOICE", "alloy"),
		},
		Store: StoreConfig{
			Dir: envOrDefault("LAHJA_DOWNLOAD_DIR", downloads),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}
	if cfg.Speech.Rate <= 0 {
		cfg.Speech.Rate = 0.95
	}
	if cfg.Speech.Pitch <= 0 {
		cfg.Speech.Pitch = 1.0
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDurationMS(key string, fallbackMS int) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return time.Duration(fallbackMS) * time.Millisecond
}
