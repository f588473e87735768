package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Coach.BaseURL != "http://localhost:10000" {
		t.Fatalf("unexpected base url: %q", cfg.Coach.BaseURL)
	}
	if cfg.Coach.UploadTimeout != 90*time.Second {
		t.Fatalf("unexpected upload timeout: %v", cfg.Coach.UploadTimeout)
	}
	if cfg.Session.AcquireTimeout != 10*time.Second {
		t.Fatalf("unexpected acquire timeout: %v", cfg.Session.AcquireTimeout)
	}
	if cfg.Speech.TargetLang != "he" || cfg.Speech.RegionVariant != "he-il" || cfg.Speech.FallbackLang != "en" {
		t.Fatalf("unexpected voice preferences: %+v", cfg.Speech)
	}
	if cfg.Speech.Rate != 0.95 || cfg.Speech.Pitch != 1.0 {
		t.Fatalf("unexpected speech rate/pitch: %+v", cfg.Speech)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LAHJA_COACH_BASE_URL", "http://coach.example:9000/")
	t.Setenv("LAHJA_UPLOAD_TIMEOUT_MS", "1500")
	t.Setenv("LAHJA_SAMPLE_RATE", "48000")
	t.Setenv("LAHJA_AUDIO_CHUNK_SIZE", "100")
	t.Setenv("LAHJA_SPEECH_RATE", "bogus")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Coach.BaseURL != "http://coach.example:9000/" {
		t.Fatalf("unexpected base url: %q", cfg.Coach.BaseURL)
	}
	if cfg.Coach.UploadTimeout != 1500*time.Millisecond {
		t.Fatalf("unexpected upload timeout: %v", cfg.Coach.UploadTimeout)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Fatalf("unexpected sample rate: %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.ChunkSize != 4096 {
		t.Fatalf("expected undersized chunk size to fall back, got %d", cfg.Audio.ChunkSize)
	}
	if cfg.Speech.Rate != 0.95 {
		t.Fatalf("expected unparseable rate to fall back, got %v", cfg.Speech.Rate)
	}
}
