package services

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Gemini Script Writer
// Uses the Google Gen AI SDK to draft the narration script.
// ---------------------------------------------------------------------------

const defaultGeminiModel = "gemini-2.5-flash"

type GeminiScriptWriter struct {
	apiKey string
	model  string
}

var _ ScriptWriter = (*GeminiScriptWriter)(nil)

// NewGeminiScriptWriter creates a Gemini-backed script writer.
// model defaults to gemini-2.5-flash when empty.
func NewGeminiScriptWriter(apiKey, model string) *GeminiScriptWriter {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiScriptWriter{
		apiKey: apiKey,
		model:  model,
	}
}

func (s *GeminiScriptWriter) WriteScript(ctx context.Context, topic string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create genai client: %w", err)
	}

	log.Printf("[Gemini] Generating script (model=%s, topic=%q)", s.model, topic)

	resp, err := client.Models.GenerateContent(ctx, s.model, genai.Text(buildScriptPrompt(topic)), nil)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	script := CleanScript(resp.Text())
	if script == "" {
		return "", fmt.Errorf("gemini returned an empty script")
	}

	log.Printf("[Gemini] Script ready (%d words)", WordCount(script))
	return script, nil
}
