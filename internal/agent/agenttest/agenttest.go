// Package agenttest provides a scripted agent.Agent for tests.
package agenttest

import (
	"context"
	"sync"

	"agentgate/internal/agent"
)

// Agent replays a fixed answer. Fragments, when set, drive InvokeStream;
// otherwise the stream yields Answer as a single fragment.
type Agent struct {
	AgentName string
	Answer    string
	Fragments []string

	// InvokeErr fails Invoke and InvokeStream before any output.
	InvokeErr error
	// StreamErr is delivered after all Fragments.
	StreamErr error
	// Block makes InvokeStream wait for ctx after sending Fragments.
	Block bool

	mu      sync.Mutex
	prompts []string
	done    chan struct{}
}

var _ agent.Agent = (*Agent)(nil)

// Name implements agent.Agent.
func (a *Agent) Name() string {
	if a.AgentName == "" {
		return "stub"
	}
	return a.AgentName
}

// Invoke implements agent.Agent.
func (a *Agent) Invoke(ctx context.Context, prompt string) (*agent.Answer, error) {
	a.record(prompt)
	if a.InvokeErr != nil {
		return nil, a.InvokeErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &agent.Answer{Text: a.Answer}, nil
}

// InvokeStream implements agent.Agent.
func (a *Agent) InvokeStream(ctx context.Context, prompt string) (<-chan agent.Fragment, error) {
	a.record(prompt)
	if a.InvokeErr != nil {
		return nil, a.InvokeErr
	}

	fragments := a.Fragments
	if fragments == nil {
		fragments = []string{a.Answer}
	}

	done := a.doneChan()
	ch := make(chan agent.Fragment)
	go func() {
		defer close(done)
		defer close(ch)
		for _, text := range fragments {
			if !agent.Send(ctx, ch, agent.Fragment{Text: text}) {
				return
			}
		}
		if a.StreamErr != nil {
			agent.Send(ctx, ch, agent.Fragment{Err: a.StreamErr})
			return
		}
		if a.Block {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

// Prompts returns every prompt received, in call order.
func (a *Agent) Prompts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.prompts...)
}

// Calls returns how many times the agent was invoked.
func (a *Agent) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.prompts)
}

// StreamDone is closed once the most recent stream producer has exited.
func (a *Agent) StreamDone() <-chan struct{} {
	return a.doneChan()
}

func (a *Agent) record(prompt string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = append(a.prompts, prompt)
	a.done = nil
}

func (a *Agent) doneChan() chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done == nil {
		a.done = make(chan struct{})
	}
	return a.done
}
