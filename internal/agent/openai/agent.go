// Package openai reaches the agent through any OpenAI-compatible chat
// completions endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"agentgate/internal/agent"
	"agentgate/internal/config"
)

const userAgent = "agentgate/1.0"

// Agent invokes a persona-prompted model behind an OpenAI-compatible chat
// completions endpoint.
type Agent struct {
	name        string
	model       string
	persona     string
	temperature *float64
	maxTokens   int
	timeout     time.Duration
	client      *openai.Client
}

var _ agent.Agent = (*Agent)(nil)

// New creates a new OpenAI-compatible agent.
func New(cfg config.AgentConfig, client *http.Client) (*Agent, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}
	if cfg.APIStyle != config.APIStyleOpenAI {
		return nil, fmt.Errorf("openai agent %q configured with unsupported api_style %q", cfg.Name, cfg.APIStyle)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = baseURL
	clientCfg.HTTPClient = &http.Client{
		Transport: &headerTransport{base: client.Transport, headers: cfg.Headers},
		Timeout:   client.Timeout,
	}

	return &Agent{
		name:        cfg.Name,
		model:       cfg.Model,
		persona:     cfg.Persona,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		client:      openai.NewClientWithConfig(clientCfg),
	}, nil
}

func (a *Agent) Name() string {
	return a.name
}

func (a *Agent) Invoke(ctx context.Context, prompt string) (*agent.Answer, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	resp, err := a.client.CreateChatCompletion(ctx, a.buildRequest(prompt, false))
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: response did not include choices", agent.ErrBackendUnavailable)
	}

	answer := &agent.Answer{Text: resp.Choices[0].Message.Content}
	answer.Usage.PromptTokens = resp.Usage.PromptTokens
	answer.Usage.CompletionTokens = resp.Usage.CompletionTokens
	answer.Usage.TotalTokens = resp.Usage.TotalTokens
	return answer, nil
}

func (a *Agent) InvokeStream(ctx context.Context, prompt string) (<-chan agent.Fragment, error) {
	stream, err := a.client.CreateChatCompletionStream(ctx, a.buildRequest(prompt, true))
	if err != nil {
		return nil, classify(err)
	}

	ch := make(chan agent.Fragment)
	go func() {
		defer close(ch)
		defer stream.Close()

		// [DONE] and a dropped connection both surface as io.EOF, so a
		// completed stream is recognised by its finish_reason.
		finished := false
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				if !finished && ctx.Err() == nil {
					agent.Send(ctx, ch, agent.Fragment{Err: fmt.Errorf("%w: stream ended before completion", agent.ErrBackendUnavailable)})
				}
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					agent.Send(ctx, ch, agent.Fragment{Err: classify(err)})
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if resp.Choices[0].FinishReason != "" {
				finished = true
			}
			if text := resp.Choices[0].Delta.Content; text != "" {
				if !agent.Send(ctx, ch, agent.Fragment{Text: text}) {
					return
				}
			}
		}
	}()

	return ch, nil
}

func (a *Agent) buildRequest(prompt string, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if a.persona != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: a.persona,
		})
	}
	messages = append(messages, userMessage(prompt))

	req := openai.ChatCompletionRequest{
		Model:     a.model,
		Messages:  messages,
		Stream:    stream,
		MaxTokens: a.maxTokens,
	}
	if a.temperature != nil {
		req.Temperature = float32(*a.temperature)
	}
	return req
}

// userMessage keeps text-only prompts as a plain string and rebuilds ordered
// parts when the prompt carries image markers. Image references are passed
// through unchanged.
func userMessage(prompt string) openai.ChatCompletionMessage {
	if !agent.HasImages(prompt) {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: agent.UnescapeText(prompt)}
	}

	segments := agent.SplitPrompt(prompt)
	parts := make([]openai.ChatMessagePart, 0, len(segments))
	for _, seg := range segments {
		switch seg.Type {
		case agent.SegmentText:
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: seg.Text})
		case agent.SegmentImage:
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: seg.Image},
			})
		}
	}
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}
}

// classify turns client errors into backend failure kinds. In-band stream
// errors carry no status code and count as unavailability.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 0 {
			return fmt.Errorf("%w: %s", agent.ErrBackendUnavailable, apiErr.Message)
		}
		return agent.ClassifyStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		message := reqErr.HTTPStatus
		if reqErr.Err != nil {
			message = reqErr.Err.Error()
		}
		return agent.ClassifyStatus(reqErr.HTTPStatusCode, message)
	}

	return agent.ClassifyTransport(err)
}

// headerTransport adds the configured static headers to every backend call.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", userAgent)
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
