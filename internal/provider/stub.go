package provider

import (
	"context"
	"time"
)

// StubProvider is a deterministic provider for tests and offline use.
// Responses are popped in order; when exhausted, Chat falls back to a fixed
// single-sentence answer. Err and Delay simulate collaborator failure modes.
type StubProvider struct {
	Responses []Response
	Err       error
	Delay     time.Duration

	Calls []Message
}

func NewStubProvider(contents ...string) *StubProvider {
	var responses []Response
	for _, c := range contents {
		responses = append(responses, Response{
			Content: c,
			Usage:   Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
		})
	}
	return &StubProvider{Responses: responses}
}

func (m *StubProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	if len(messages) > 0 {
		m.Calls = append(m.Calls, messages[len(messages)-1])
	}

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}

	if len(m.Responses) == 0 {
		return &Response{Content: "Conversation covered routine topics.", Usage: Usage{}}, nil
	}

	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return &resp, nil
}

// Embed maps text onto a small deterministic vector so similarity scoring
// is stable in tests: identical text embeds identically.
func (m *StubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r%31) / 31.0
	}
	return vec, nil
}

func (m *StubProvider) Name() string {
	return "stub"
}
