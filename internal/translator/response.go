package translator

import (
	"encoding/hex"

	"github.com/google/uuid"

	"agentgate/internal/models"
)

const (
	objectCompletion = "chat.completion"
	objectChunk      = "chat.completion.chunk"
	objectModel      = "model"
	objectList       = "list"

	roleAssistant    = "assistant"
	finishReasonStop = "stop"

	completionIDPrefix = "chatcmpl-"
)

// NewCompletionID returns a fresh response identifier.
func NewCompletionID() string {
	id := uuid.New()
	return completionIDPrefix + hex.EncodeToString(id[:])
}

// ChatCompletionResponse models the non-streaming chat response.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

// ChatChoice represents a single choice in the response payload.
type ChatChoice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant message in a completion.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage mirrors the token usage block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk is one frame of a streamed response.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice carries the delta of a streamed frame. FinishReason encodes as
// null on content frames.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta is either {"content": ...} or {} on the terminal frame.
type ChunkDelta struct {
	Content *string `json:"content,omitempty"`
}

// NewCompletion wraps a complete answer in the response envelope.
func NewCompletion(id, model string, created int64, text string, usage *models.Usage) ChatCompletionResponse {
	var u *Usage
	if usage != nil {
		u = &Usage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		}
	}

	return ChatCompletionResponse{
		ID:      id,
		Object:  objectCompletion,
		Created: created,
		Model:   model,
		Choices: []ChatChoice{{
			Index:        0,
			Message:      ResponseMessage{Role: roleAssistant, Content: text},
			FinishReason: finishReasonStop,
		}},
		Usage: u,
	}
}

// NewChunk builds a content frame for one fragment.
func NewChunk(id, model string, created int64, fragment string) ChatCompletionChunk {
	content := fragment
	return ChatCompletionChunk{
		ID:      id,
		Object:  objectChunk,
		Created: created,
		Model:   model,
		Choices: []ChunkChoice{{Index: 0, Delta: ChunkDelta{Content: &content}}},
	}
}

// NewStopChunk builds the terminal frame with an empty delta.
func NewStopChunk(id, model string, created int64) ChatCompletionChunk {
	reason := finishReasonStop
	return ChatCompletionChunk{
		ID:      id,
		Object:  objectChunk,
		Created: created,
		Model:   model,
		Choices: []ChunkChoice{{Index: 0, Delta: ChunkDelta{}, FinishReason: &reason}},
	}
}

// Model is the wire form of a catalog entry.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the response of the model listing endpoint.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// FromModelInfo converts a catalog entry to wire form.
func FromModelInfo(info models.ModelInfo) Model {
	return Model{
		ID:      info.ID,
		Object:  objectModel,
		Created: info.Created,
		OwnedBy: info.OwnedBy,
	}
}

// FromModelInfos converts the catalog listing to wire form.
func FromModelInfos(infos []models.ModelInfo) ModelList {
	data := make([]Model, 0, len(infos))
	for _, info := range infos {
		data = append(data, FromModelInfo(info))
	}
	return ModelList{Object: objectList, Data: data}
}
