package intent

import (
	"strings"

	"github.com/haivivi/cookguide/pkg/dialogue"
)

func buildPrompt(candidates []dialogue.Event, info func(dialogue.Event) dialogue.EventInfo) string {
	var sb strings.Builder
	sb.WriteString(promptBase)
	sb.WriteString("\n\n## Events\n")
	for _, e := range candidates {
		ei := info(e)
		sb.WriteString("- ")
		sb.WriteString(e.String())
		sb.WriteString(": ")
		sb.WriteString(ei.Description)
		sb.WriteString("\n")
		for _, ex := range ei.Examples {
			sb.WriteString("  - e.g. \"")
			sb.WriteString(ex)
			sb.WriteString("\"\n")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(promptOutput)
	return sb.String()
}

const promptBase = `You classify what a person who is cooking says to their cooking assistant.
The person has low vision and is following a recipe video.

Rules:
- You MUST choose exactly one event from the list below, or "none".
- Choose by the intent of the sentence, not by matching words.
- If the sentence fits none of the events, choose "none".`

const promptOutput = `## Output

Call the provided function with JSON arguments:

{"event": "ask_question", "reason": "asks how much salt to add"}`
