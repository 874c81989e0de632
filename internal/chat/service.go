// Package chat runs a validated chat completion request against the backend
// agent.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentgate/internal/agent"
	"agentgate/internal/models"
	"agentgate/internal/observability"
	"agentgate/internal/translator"
)

const (
	modeBlocking  = "blocking"
	modeStreaming = "streaming"
)

// Prepared is a request that passed validation and is ready for the agent.
type Prepared struct {
	// Model is echoed back in responses, never dispatched on.
	Model    string
	Prompt   string
	Stream   bool
	Messages []translator.ChatMessage
}

// Completion is the outcome of a blocking invocation.
type Completion struct {
	Text  string
	Usage models.Usage
}

// Service invokes the configured agent for chat completion requests.
type Service struct {
	agent agent.Agent
}

// NewService constructs a service backed by the provided agent.
func NewService(a agent.Agent) *Service {
	return &Service{agent: a}
}

// AgentName returns the name of the backing agent.
func (s *Service) AgentName() string {
	return s.agent.Name()
}

// Prepare validates the request and normalizes the most recent user message
// into the agent prompt. Errors wrap translator.ErrInvalidRequest.
func (s *Service) Prepare(req translator.ChatCompletionRequest) (Prepared, error) {
	if err := req.Validate(); err != nil {
		return Prepared{}, err
	}

	last, _ := req.LastUserMessage()
	prompt, err := translator.Normalize(last.Content)
	if err != nil {
		return Prepared{}, err
	}

	return Prepared{
		Model:    req.Model,
		Prompt:   prompt,
		Stream:   req.Stream,
		Messages: req.Messages,
	}, nil
}

// Complete invokes the agent once and waits for the full answer.
func (s *Service) Complete(ctx context.Context, p Prepared) (*Completion, error) {
	start := time.Now()
	answer, err := s.agent.Invoke(ctx, p.Prompt)
	s.observe(modeBlocking, start, err)
	if err != nil {
		return nil, fmt.Errorf("agent %s invoke: %w", s.agent.Name(), err)
	}

	usage := translator.EstimateUsage(p.Messages, answer.Text)
	recordTokens(usage)
	return &Completion{Text: answer.Text, Usage: usage}, nil
}

// Stream invokes the agent in streaming mode. Fragments are forwarded in
// generation order; a fragment carrying Err is the last one delivered.
// Cancelling ctx stops the forwarding and the upstream generation.
func (s *Service) Stream(ctx context.Context, p Prepared) (<-chan agent.Fragment, error) {
	start := time.Now()
	upstream, err := s.agent.InvokeStream(ctx, p.Prompt)
	if err != nil {
		s.observe(modeStreaming, start, err)
		return nil, fmt.Errorf("agent %s stream: %w", s.agent.Name(), err)
	}

	out := make(chan agent.Fragment)
	go func() {
		defer close(out)

		var (
			answer strings.Builder
			failed error
		)
		for frag := range upstream {
			if frag.Err != nil {
				failed = frag.Err
			} else {
				answer.WriteString(frag.Text)
			}
			if !agent.Send(ctx, out, frag) {
				failed = ctx.Err()
				break
			}
		}
		if failed == nil && ctx.Err() != nil {
			failed = ctx.Err()
		}

		s.observe(modeStreaming, start, failed)
		if failed == nil {
			recordTokens(translator.EstimateUsage(p.Messages, answer.String()))
		}
	}()
	return out, nil
}

func (s *Service) observe(mode string, start time.Time, err error) {
	name := s.agent.Name()
	observability.BackendLatency.WithLabelValues(name, mode).Observe(time.Since(start).Seconds())
	observability.BackendRequestsTotal.WithLabelValues(name, mode, Outcome(err)).Inc()
}

func recordTokens(usage models.Usage) {
	observability.TokensTotal.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	observability.TokensTotal.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
}

// Outcome returns the metric label describing how an invocation ended.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, agent.ErrBackendTimeout):
		return "backend_timeout"
	case errors.Is(err, agent.ErrBackendRejected):
		return "backend_rejected"
	case errors.Is(err, agent.ErrBackendUnavailable):
		return "backend_unavailable"
	default:
		return "error"
	}
}
