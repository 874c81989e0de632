package translator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"agentgate/internal/models"
)

// ErrInvalidRequest marks malformed or empty client input.
var ErrInvalidRequest = errors.New("invalid request")

var (
	errEmptyMessages = fmt.Errorf("%w: at least one message is required", ErrInvalidRequest)
	errNoUserMessage = fmt.Errorf("%w: no user message found", ErrInvalidRequest)
	errInvalidRole   = fmt.Errorf("%w: invalid role", ErrInvalidRequest)
)

// ChatCompletionRequest models the chat/completions request payload.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	User        string        `json:"user,omitempty"`
}

// Validate enforces the request-level rules checked before any backend
// call: a non-empty message list containing at least one user message.
func (r ChatCompletionRequest) Validate() error {
	if len(r.Messages) == 0 {
		return errEmptyMessages
	}
	if _, ok := r.LastUserMessage(); !ok {
		return errNoUserMessage
	}
	return nil
}

// LastUserMessage returns the most recent user-role message.
func (r ChatCompletionRequest) LastUserMessage() (ChatMessage, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == models.RoleUser {
			return r.Messages[i], true
		}
	}
	return ChatMessage{}, false
}

// ChatMessage captures a single message within the chat request.
type ChatMessage struct {
	Role    models.Role
	Content models.Content
}

// UnmarshalJSON supports string and array-of-parts content formats.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	type alias struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: decode message: %v", ErrInvalidRequest, err)
	}

	role := models.Role(raw.Role)
	if !role.Valid() {
		return fmt.Errorf("%w: %q", errInvalidRole, raw.Role)
	}

	content, err := decodeContent(raw.Content)
	if err != nil {
		return err
	}

	m.Role = role
	m.Content = content
	return nil
}

const (
	partTypeText     = "text"
	partTypeImageURL = "image_url"
)

type imageURLObject struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

func decodeContent(raw json.RawMessage) (models.Content, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return models.TextContent(""), nil
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return models.Content{}, fmt.Errorf("%w: decode content: %v", ErrInvalidRequest, err)
		}
		return models.TextContent(text), nil
	case '[':
		var rawParts []json.RawMessage
		if err := json.Unmarshal(trimmed, &rawParts); err != nil {
			return models.Content{}, fmt.Errorf("%w: decode content parts: %v", ErrInvalidRequest, err)
		}
		parts := make([]models.Part, 0, len(rawParts))
		for i, rp := range rawParts {
			part, err := decodePart(rp)
			if err != nil {
				return models.Content{}, fmt.Errorf("content[%d]: %w", i, err)
			}
			parts = append(parts, part)
		}
		return models.PartsContent(parts...), nil
	default:
		return models.Content{}, fmt.Errorf("%w: content must be a string or an array of parts", ErrInvalidRequest)
	}
}

func decodePart(raw json.RawMessage) (models.Part, error) {
	var part struct {
		Type     string          `json:"type"`
		Text     string          `json:"text"`
		ImageURL json.RawMessage `json:"image_url"`
	}
	if err := json.Unmarshal(raw, &part); err != nil {
		return models.Part{}, fmt.Errorf("%w: decode part: %v", ErrInvalidRequest, err)
	}

	switch part.Type {
	case partTypeText:
		return models.TextPart(part.Text), nil
	case partTypeImageURL:
		image, err := decodeImageURL(part.ImageURL)
		if err != nil {
			return models.Part{}, err
		}
		return models.Part{Type: models.PartImageURL, ImageURL: image}, nil
	default:
		return models.Part{Type: models.PartUnknown, RawType: part.Type}, nil
	}
}

// decodeImageURL accepts both the object form {"url": ...} and a bare string.
func decodeImageURL(raw json.RawMessage) (models.ImageURL, error) {
	var image models.ImageURL

	var obj imageURLObject
	if err := json.Unmarshal(raw, &obj); err == nil {
		image = models.ImageURL{URL: obj.URL, Detail: obj.Detail}
	} else {
		var url string
		if err := json.Unmarshal(raw, &url); err != nil {
			return models.ImageURL{}, fmt.Errorf("%w: image_url must be an object with a url", ErrInvalidRequest)
		}
		image = models.ImageURL{URL: url}
	}

	if image.URL == "" {
		return models.ImageURL{}, fmt.Errorf("%w: image_url.url must not be empty", ErrInvalidRequest)
	}
	return image, nil
}
