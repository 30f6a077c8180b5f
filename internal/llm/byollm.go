package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// BYOLLMProvider implements ports.LanguageModel generation against any
// OpenAI-compatible chat completions API (OpenRouter, OpenAI, a
// self-hosted vLLM endpoint, ...). It carries no embedding model of its
// own; EmbedTexts always errors, since tenants bringing their own LLM still
// rely on VertexProvider for embeddings (spec §4.2 stage B).
type BYOLLMProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewBYOLLMProvider creates a BYOLLMProvider. apiKey is held only for the
// lifetime of the provider and never logged.
func NewBYOLLMProvider(apiKey, baseURL, model string) *BYOLLMProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &BYOLLMProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

var _ ports.LanguageModel = (*BYOLLMProvider)(nil)

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *BYOLLMProvider) GenerateContent(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	return withRetry(ctx, "BYOLLMProvider.GenerateContent", func() (string, error) {
		return c.generate(ctx, systemPrompt, userPrompt, temperature, maxTokens)
	})
}

func (c *BYOLLMProvider) generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	reqBody := openAIRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llm.BYOLLMProvider: marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("llm.BYOLLMProvider: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm.BYOLLMProvider: call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm.BYOLLMProvider: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm.BYOLLMProvider: status %d: %s", resp.StatusCode, respBody)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("llm.BYOLLMProvider: decode: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llm.BYOLLMProvider: API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm.BYOLLMProvider: empty response")
	}
	return parsed.Choices[0].Message.Content, nil
}

// EmbedTexts is unsupported: BYOLLM providers are wired only for
// tenant-configurable generation. A Composite always routes embedding
// calls to its primary (VertexProvider) regardless of this error.
func (c *BYOLLMProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("llm.BYOLLMProvider: embedding not supported")
}
