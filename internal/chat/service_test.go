package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentgate/internal/agent"
	"agentgate/internal/agent/agenttest"
	"agentgate/internal/translator"
)

func decodeRequest(t *testing.T, body string) translator.ChatCompletionRequest {
	t.Helper()
	var req translator.ChatCompletionRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req
}

func drain(ch <-chan agent.Fragment) ([]string, error) {
	var texts []string
	for frag := range ch {
		if frag.Err != nil {
			return texts, frag.Err
		}
		texts = append(texts, frag.Text)
	}
	return texts, nil
}

func TestPrepareRejectsBeforeInvoking(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty messages", body: `{"model":"x","messages":[]}`},
		{name: "missing messages", body: `{"model":"x"}`},
		{name: "no user message", body: `{"model":"x","messages":[{"role":"system","content":"be nice"}]}`},
		{name: "empty user content", body: `{"model":"x","messages":[{"role":"user","content":""}]}`},
		{name: "only unknown parts", body: `{"model":"x","messages":[{"role":"user","content":[{"type":"audio"}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &agenttest.Agent{Answer: "unused"}
			svc := NewService(stub)

			_, err := svc.Prepare(decodeRequest(t, tt.body))
			require.ErrorIs(t, err, translator.ErrInvalidRequest)
			assert.Zero(t, stub.Calls())
		})
	}
}

func TestPrepareUsesLastUserMessage(t *testing.T) {
	svc := NewService(&agenttest.Agent{})

	p, err := svc.Prepare(decodeRequest(t, `{"model":"alfred","stream":true,"messages":[
		{"role":"system","content":"persona"},
		{"role":"user","content":"first"},
		{"role":"assistant","content":"reply"},
		{"role":"user","content":[{"type":"text","text":"look"},{"type":"image_url","image_url":{"url":"https://x/cat.png"}}]}
	]}`))
	require.NoError(t, err)

	assert.Equal(t, "alfred", p.Model)
	assert.True(t, p.Stream)
	assert.Equal(t, "look\n<image_url>https://x/cat.png</image_url>", p.Prompt)
	assert.Len(t, p.Messages, 4)
}

func TestComplete(t *testing.T) {
	stub := &agenttest.Agent{Answer: "Hi there"}
	svc := NewService(stub)

	p, err := svc.Prepare(decodeRequest(t, `{"model":"x","messages":[{"role":"user","content":"Hello"}]}`))
	require.NoError(t, err)

	got, err := svc.Complete(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, "Hi there", got.Text)
	assert.Equal(t, 1, got.Usage.PromptTokens)
	assert.Equal(t, 2, got.Usage.CompletionTokens)
	assert.Equal(t, 3, got.Usage.TotalTokens)
	assert.Equal(t, []string{"Hello"}, stub.Prompts())
}

func TestCompleteSurfacesBackendErrorOnce(t *testing.T) {
	stub := &agenttest.Agent{InvokeErr: agent.ErrBackendTimeout}
	svc := NewService(stub)

	p, err := svc.Prepare(decodeRequest(t, `{"messages":[{"role":"user","content":"Hello"}]}`))
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), p)
	require.ErrorIs(t, err, agent.ErrBackendTimeout)
	assert.Equal(t, 1, stub.Calls(), "no retries")
}

func TestStreamForwardsFragmentsInOrder(t *testing.T) {
	stub := &agenttest.Agent{Fragments: []string{"Hi", " there"}}
	svc := NewService(stub)

	p, err := svc.Prepare(decodeRequest(t, `{"messages":[{"role":"user","content":"Hello"}],"stream":true}`))
	require.NoError(t, err)

	ch, err := svc.Stream(context.Background(), p)
	require.NoError(t, err)

	texts, err := drain(ch)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi", " there"}, texts)
}

func TestStreamDeliversMidStreamError(t *testing.T) {
	stub := &agenttest.Agent{Fragments: []string{"Hi"}, StreamErr: agent.ErrBackendUnavailable}
	svc := NewService(stub)

	p, err := svc.Prepare(decodeRequest(t, `{"messages":[{"role":"user","content":"Hello"}]}`))
	require.NoError(t, err)

	ch, err := svc.Stream(context.Background(), p)
	require.NoError(t, err)

	texts, err := drain(ch)
	require.ErrorIs(t, err, agent.ErrBackendUnavailable)
	assert.Equal(t, []string{"Hi"}, texts)
}

func TestStreamStartError(t *testing.T) {
	svc := NewService(&agenttest.Agent{InvokeErr: agent.ErrBackendRejected})

	p, err := svc.Prepare(decodeRequest(t, `{"messages":[{"role":"user","content":"Hello"}]}`))
	require.NoError(t, err)

	_, err = svc.Stream(context.Background(), p)
	require.ErrorIs(t, err, agent.ErrBackendRejected)
}

func TestStreamCancelStopsProducer(t *testing.T) {
	stub := &agenttest.Agent{Fragments: []string{"a", "b", "c"}, Block: true}
	svc := NewService(stub)

	p, err := svc.Prepare(decodeRequest(t, `{"messages":[{"role":"user","content":"Hello"}]}`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := svc.Stream(ctx, p)
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, "a", first.Text)
	cancel()

	select {
	case <-stub.StreamDone():
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not stop after cancellation")
	}
	for range ch {
	}
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "canceled", Outcome(context.Canceled))
	assert.Equal(t, "backend_timeout", Outcome(agent.ErrBackendTimeout))
	assert.Equal(t, "backend_rejected", Outcome(agent.ErrBackendRejected))
	assert.Equal(t, "backend_unavailable", Outcome(agent.ErrBackendUnavailable))
	assert.Equal(t, "error", Outcome(assert.AnError))
}
