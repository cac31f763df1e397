// Package app assembles the pipeline and its collaborators from configuration.
package app

import (
	"fmt"
	"log"

	"github.com/bobarin/topicreel/internal/config"
	"github.com/bobarin/topicreel/internal/media"
	"github.com/bobarin/topicreel/internal/models"
	"github.com/bobarin/topicreel/internal/pipeline"
	"github.com/bobarin/topicreel/internal/services"
)

// NewScriptWriter returns the script provider named by SCRIPT_PROVIDER.
func NewScriptWriter(cfg *config.Config) (services.ScriptWriter, error) {
	switch cfg.ScriptProvider {
	case "gemini":
		log.Printf("Script provider: Gemini (model: %s)", cfg.GeminiModel)
		return services.NewGeminiScriptWriter(cfg.GeminiKey, cfg.GeminiModel), nil
	case "openai":
		log.Println("Script provider: OpenAI")
		return services.NewOpenAIScriptWriter(cfg.OpenAIKey), nil
	default:
		return nil, fmt.Errorf("unknown script provider %q", cfg.ScriptProvider)
	}
}

// NewTTS returns the speech provider named by TTS_PROVIDER.
func NewTTS(cfg *config.Config) (services.TTSService, error) {
	switch cfg.TTSProvider {
	case "elevenlabs":
		log.Printf("TTS provider: ElevenLabs (voice: %s)", cfg.ElevenLabsVoiceID)
		return services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID), nil
	case "cartesia":
		log.Printf("TTS provider: Cartesia (voice: %s)", cfg.CartesiaVoiceID)
		return services.NewCartesiaService(cfg.CartesiaKey, cfg.CartesiaURL, cfg.CartesiaVoiceID), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", cfg.TTSProvider)
	}
}

// NewPipeline wires every stage of a run.
func NewPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	scripts, err := NewScriptWriter(cfg)
	if err != nil {
		return nil, err
	}
	tts, err := NewTTS(cfg)
	if err != nil {
		return nil, err
	}

	ffmpeg := services.NewFFmpegService()
	pexels := services.NewPexelsClient(cfg.PexelsKey)
	assembler := media.NewAssembler(media.NewFileOpener(ffmpeg), ffmpeg, cfg.RenderSettings())

	return pipeline.New(
		scripts,
		services.NewNarrator(tts),
		pexels,
		services.NewThumbnailRenderer(pexels, cfg.ThumbnailFontPath),
		assembler,
		cfg.CacheDir,
		cfg.OutputPath,
	), nil
}

// SettingsSnapshot is the render configuration stored with each run.
func SettingsSnapshot(s media.Settings) models.JSONB {
	return models.JSONB{
		"width":             s.Width,
		"height":            s.Height,
		"image_duration_ms": s.ImageDuration.Milliseconds(),
		"transition_ms":     s.TransitionDuration.Milliseconds(),
		"fps":               s.FPS,
		"video_codec":       s.VideoCodec,
		"audio_codec":       s.AudioCodec,
		"preset":            s.Preset,
		"threads":           s.Threads,
	}
}
