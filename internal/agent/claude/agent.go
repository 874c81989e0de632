// Package claude reaches the agent through the Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"agentgate/internal/agent"
	"agentgate/internal/config"
	"agentgate/internal/models"
)

const userAgent = "agentgate/1.0"

var dataURIPattern = regexp.MustCompile(`^data:(image/[a-zA-Z0-9.+-]+);base64,\s*(.+)$`)

// Agent invokes a persona-prompted model through the Anthropic Messages API.
type Agent struct {
	name        string
	model       string
	persona     string
	temperature *float64
	maxTokens   int
	timeout     time.Duration
	client      anthropic.Client
}

var _ agent.Agent = (*Agent)(nil)

// New constructs a Claude agent instance. The SDK's own retries are disabled;
// backend failures are reported to the caller as they happen.
func New(cfg config.AgentConfig, client *http.Client) (*Agent, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}
	if cfg.APIStyle != config.APIStyleClaude {
		return nil, fmt.Errorf("claude agent %q configured with unsupported api_style %q", cfg.Name, cfg.APIStyle)
	}
	if cfg.MaxTokens <= 0 {
		return nil, errors.New("claude agent requires a positive max_tokens value")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL + "/"),
		option.WithHTTPClient(client),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", userAgent),
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	return &Agent{
		name:        cfg.Name,
		model:       cfg.Model,
		persona:     cfg.Persona,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		client:      anthropic.NewClient(opts...),
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

	params, err := a.buildParams(prompt)
	if err != nil {
		return nil, err
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	return toAnswer(msg)
}

func (a *Agent) InvokeStream(ctx context.Context, prompt string) (<-chan agent.Fragment, error) {
	params, err := a.buildParams(prompt)
	if err != nil {
		return nil, err
	}

	stream := a.client.Messages.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		stream.Close()
		return nil, classify(err)
	}

	ch := make(chan agent.Fragment)
	go func() {
		defer close(ch)
		defer stream.Close()

		stopped := false
		for stream.Next() {
			switch event := stream.Current().AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				delta, ok := event.Delta.AsAny().(anthropic.TextDelta)
				if !ok || delta.Text == "" {
					continue
				}
				if !agent.Send(ctx, ch, agent.Fragment{Text: delta.Text}) {
					return
				}
			case anthropic.MessageStopEvent:
				stopped = true
			}
		}

		if ctx.Err() != nil {
			return
		}
		if err := stream.Err(); err != nil {
			agent.Send(ctx, ch, agent.Fragment{Err: classify(err)})
			return
		}
		if !stopped {
			agent.Send(ctx, ch, agent.Fragment{Err: fmt.Errorf("%w: stream ended before completion", agent.ErrBackendUnavailable)})
		}
	}()

	return ch, nil
}

func (a *Agent) buildParams(prompt string) (anthropic.MessageNewParams, error) {
	blocks, err := promptBlocks(prompt)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.maxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if a.persona != "" {
		params.System = []anthropic.TextBlockParam{{Text: a.persona}}
	}
	if a.temperature != nil {
		params.Temperature = anthropic.Float(*a.temperature)
	}
	return params, nil
}

// promptBlocks turns the normalized prompt into ordered content blocks. Image
// references must be http(s) URLs or base64 data URIs; anything else is
// rejected before the backend is called.
func promptBlocks(prompt string) ([]anthropic.ContentBlockParamUnion, error) {
	if !agent.HasImages(prompt) {
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(agent.UnescapeText(prompt))}, nil
	}

	segments := agent.SplitPrompt(prompt)
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(segments))
	for _, seg := range segments {
		switch seg.Type {
		case agent.SegmentText:
			blocks = append(blocks, anthropic.NewTextBlock(seg.Text))
		case agent.SegmentImage:
			block, err := imageBlockFor(seg.Image)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
		}
	}
	return blocks, nil
}

func imageBlockFor(ref string) (anthropic.ContentBlockParamUnion, error) {
	if m := dataURIPattern.FindStringSubmatch(ref); m != nil {
		return anthropic.NewImageBlockBase64(m[1], m[2]), nil
	}
	if strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://") {
		return anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: ref}), nil
	}
	return anthropic.ContentBlockParamUnion{}, fmt.Errorf("%w: unsupported image reference %q", agent.ErrBackendRejected, truncate(ref, 64))
}

func toAnswer(msg *anthropic.Message) (*agent.Answer, error) {
	if len(msg.Content) == 0 {
		return nil, fmt.Errorf("%w: response missing content blocks", agent.ErrBackendUnavailable)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	prompt := int(msg.Usage.InputTokens)
	completion := int(msg.Usage.OutputTokens)
	return &agent.Answer{
		Text: text.String(),
		Usage: models.Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}, nil
}

// classify maps SDK errors to backend failure kinds. In-band stream error
// events carry no status code and count as unavailability.
func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return agent.ClassifyStatus(apiErr.StatusCode, apiErr.Error())
	}
	return agent.ClassifyTransport(err)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
