package services

import (
	"context"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-5-mini"

// OpenAIScriptWriter drafts the narration script with a chat completion.
type OpenAIScriptWriter struct {
	client *openai.Client
	model  string
}

var _ ScriptWriter = (*OpenAIScriptWriter)(nil)

func NewOpenAIScriptWriter(apiKey string) *OpenAIScriptWriter {
	return &OpenAIScriptWriter{
		client: openai.NewClient(apiKey),
		model:  defaultOpenAIModel,
	}
}

func (s *OpenAIScriptWriter) WriteScript(ctx context.Context, topic string) (string, error) {
	log.Printf("[OpenAI] Generating script (model=%s, topic=%q)", s.model, topic)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildScriptPrompt(topic),
			},
		},
		Temperature: 1.0,
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}

	script := CleanScript(resp.Choices[0].Message.Content)
	if script == "" {
		return "", fmt.Errorf("openai returned an empty script")
	}

	log.Printf("[OpenAI] Script ready (%d words)", WordCount(script))
	return script, nil
}
