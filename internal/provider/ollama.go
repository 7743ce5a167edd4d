package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/ollama/ollama/api"
)

type OllamaProvider struct {
	client *api.Client
	model  string
}

func NewOllamaProvider(model string) (*OllamaProvider, error) {
	if model == "" {
		model = "llama3.2"
	}

	baseURL := "http://localhost:11434"
	if envURL := os.Getenv("OLLAMA_HOST"); envURL != "" {
		baseURL = envURL
	}
	uri, _ := url.Parse(baseURL)
	client := api.NewClient(uri, http.DefaultClient)

	return &OllamaProvider{
		client: client,
		model:  model,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	var apiMsgs []api.Message
	for _, m := range messages {
		apiMsgs = append(apiMsgs, api.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	req := &api.ChatRequest{
		Model:    p.model,
		Messages: apiMsgs,
		Stream:   new(bool), // false
	}

	var respContent string
	var totalTokens int

	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		respContent += resp.Message.Content
		if resp.Done {
			totalTokens = resp.EvalCount + resp.PromptEvalCount
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("ollama chat failed: %w", err)
	}

	return &Response{
		Content: respContent,
		Usage: Usage{
			TotalTokens:      totalTokens,
			CompletionTokens: totalTokens,
		},
	}, nil
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	req := &api.EmbeddingRequest{
		Model:  p.model,
		Prompt: text,
	}
	resp, err := p.client.Embeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
