package translator

import (
	"fmt"
	"strings"

	"agentgate/internal/agent"
	"agentgate/internal/models"
)

// imageTokenEstimate is the flat prompt-token cost charged per image part.
const imageTokenEstimate = 85

// Normalize flattens message content into the single prompt string the agent
// receives. Plain text is carried verbatim. Parts are joined by newlines in
// their original order, with each image replaced by an agent image marker so
// its position relative to the surrounding text is kept. Unknown part types
// are skipped. Text is escaped so marker tags typed by the caller stay text.
func Normalize(content models.Content) (string, error) {
	switch content.Kind {
	case models.ContentText:
		if content.Text == "" {
			return "", fmt.Errorf("%w: message content must not be empty", ErrInvalidRequest)
		}
		return agent.EscapeText(content.Text), nil

	case models.ContentParts:
		pieces := make([]string, 0, len(content.Parts))
		images := 0
		for _, part := range content.Parts {
			switch part.Type {
			case models.PartText:
				if part.Text != "" {
					pieces = append(pieces, agent.EscapeText(part.Text))
				}
			case models.PartImageURL:
				images++
				pieces = append(pieces, agent.ImageMarker(part.ImageURL.URL))
			case models.PartUnknown:
			}
		}

		prompt := strings.Join(pieces, "\n")
		if prompt == "" && images == 0 {
			return "", fmt.Errorf("%w: message content has no text or image parts", ErrInvalidRequest)
		}
		return prompt, nil

	default:
		return "", fmt.Errorf("%w: unsupported content kind %d", ErrInvalidRequest, content.Kind)
	}
}

// PlainText returns only the textual portion of content, joining text parts
// with spaces. Images contribute nothing.
func PlainText(content models.Content) string {
	if content.Kind == models.ContentText {
		return content.Text
	}
	texts := make([]string, 0, len(content.Parts))
	for _, part := range content.Parts {
		if part.Type == models.PartText {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, " ")
}

// EstimateUsage approximates token counts by whitespace-separated words, plus
// a flat charge per image in the prompt.
func EstimateUsage(messages []ChatMessage, answer string) models.Usage {
	prompt := 0
	for _, msg := range messages {
		prompt += len(strings.Fields(PlainText(msg.Content)))
		prompt += msg.Content.ImageCount() * imageTokenEstimate
	}
	completion := len(strings.Fields(answer))

	return models.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}
