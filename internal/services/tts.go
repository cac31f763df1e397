package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Text-to-speech providers
// ElevenLabs and Cartesia both implement it so the pipeline can use whichever
// is configured without knowing the underlying provider.
// ---------------------------------------------------------------------------

// TTSResponse is the common response type from any TTS provider.
type TTSResponse struct {
	AudioData []byte
	Estimated time.Duration // word-count estimate; the probed length is authoritative
	Format    string        // "mp3", "wav", etc.
}

// TTSService is the interface that any TTS provider must implement.
type TTSService interface {
	GenerateSpeech(ctx context.Context, text string) (*TTSResponse, error)
}

// Narrator writes the spoken script to an audio file in working storage.
type Narrator struct {
	tts TTSService
}

func NewNarrator(tts TTSService) *Narrator {
	return &Narrator{tts: tts}
}

// Narrate synthesizes text and writes it to path.
func (n *Narrator) Narrate(ctx context.Context, text, path string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("nothing to narrate")
	}

	resp, err := n.tts.GenerateSpeech(ctx, text)
	if err != nil {
		return err
	}
	if len(resp.AudioData) == 0 {
		return fmt.Errorf("tts returned empty audio")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create voice dir: %w", err)
	}
	if err := os.WriteFile(path, resp.AudioData, 0644); err != nil {
		return fmt.Errorf("failed to write voice track: %w", err)
	}

	log.Printf("[TTS] Voice track saved to %s (%d bytes, ~%.0fs)", path, len(resp.AudioData), resp.Estimated.Seconds())
	return nil
}

// estimateAudioDuration approximates narration length from word count.
func estimateAudioDuration(text string, speed float64) time.Duration {
	if speed <= 0 {
		speed = 1.0
	}
	words := WordCount(text)
	baseWPM := 140.0 * speed
	return time.Duration(float64(words) / baseWPM * float64(time.Minute))
}
