package app

import (
	"testing"
	"time"

	"github.com/bobarin/topicreel/internal/config"
	"github.com/bobarin/topicreel/internal/media"
	"github.com/bobarin/topicreel/internal/services"
)

func TestProviderSelection(t *testing.T) {
	cfg := &config.Config{ScriptProvider: "openai", OpenAIKey: "o", TTSProvider: "cartesia", CartesiaKey: "c"}

	scripts, err := NewScriptWriter(cfg)
	if err != nil {
		t.Fatalf("NewScriptWriter failed: %v", err)
	}
	if _, ok := scripts.(*services.OpenAIScriptWriter); !ok {
		t.Errorf("expected OpenAI writer, got %T", scripts)
	}

	tts, err := NewTTS(cfg)
	if err != nil {
		t.Fatalf("NewTTS failed: %v", err)
	}
	if _, ok := tts.(*services.CartesiaService); !ok {
		t.Errorf("expected Cartesia, got %T", tts)
	}

	cfg.ScriptProvider, cfg.TTSProvider = "gemini", "elevenlabs"
	if s, _ := NewScriptWriter(cfg); s == nil {
		t.Error("expected Gemini writer")
	}
	if tts, _ := NewTTS(cfg); tts == nil {
		t.Error("expected ElevenLabs")
	}

	cfg.ScriptProvider = "llama"
	if _, err := NewScriptWriter(cfg); err == nil {
		t.Error("expected error for unknown script provider")
	}
	cfg.TTSProvider = "espeak"
	if _, err := NewTTS(cfg); err == nil {
		t.Error("expected error for unknown TTS provider")
	}
}

func TestSettingsSnapshot(t *testing.T) {
	s := media.DefaultSettings()
	s.ImageDuration = 4 * time.Second

	snap := SettingsSnapshot(s)
	if snap["width"] != 1280 || snap["height"] != 720 || snap["image_duration_ms"] != int64(4000) {
		t.Errorf("unexpected snapshot %v", snap)
	}
	if snap["preset"] != "ultrafast" || snap["video_codec"] != "libx264" {
		t.Errorf("unexpected encoder settings %v", snap)
	}
}
