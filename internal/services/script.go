package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Script generation providers
// Gemini and OpenAI both implement it; the pipeline only sees plain text.
// ---------------------------------------------------------------------------

const (
	ScriptMinWords = 150
	ScriptMaxWords = 160
)

// ScriptWriter turns a topic into the narration text read by the voice stage.
type ScriptWriter interface {
	WriteScript(ctx context.Context, topic string) (string, error)
}

// buildScriptPrompt asks for roughly one minute of spoken, unformatted text.
func buildScriptPrompt(topic string) string {
	return fmt.Sprintf(`You are a friendly male speaker talking directly to the viewer.
Write a 1-minute spoken script about: %s.
The script MUST be between %d and %d words so it lasts exactly 1 minute
when read at a natural pace.

Rules:
- Output ONLY the words the speaker will say out loud.
- Do NOT include any headings, titles, section labels, timestamps,
  stage directions, music cues, or formatting of any kind.
- Do NOT use markdown, bullet points, numbered lists, or asterisks.
- Write in a natural, conversational, first-person tone as if a real
  person is talking to a friend.
- Start speaking immediately, no intro like "Welcome to..." unless
  it feels natural.`, topic, ScriptMinWords, ScriptMaxWords)
}

var (
	stageDirection = regexp.MustCompile(`^[\[(].*[\])]$`)
	emphasisMarks  = regexp.MustCompile(`[*_]{1,3}`)
)

// CleanScript strips anything that is not meant to be read aloud: markdown
// headings, whole-line stage directions like [MUSIC] or (pause), and
// bold/italic markers. Blank lines are dropped.
func CleanScript(text string) string {
	var cleaned []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		if stageDirection.MatchString(line) {
			continue
		}
		line = strings.TrimSpace(emphasisMarks.ReplaceAllString(line, ""))
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
