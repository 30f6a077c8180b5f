// Package llm wires the tenant-facing LanguageModel contract (ports.LanguageModel)
// to real vendor clients: Vertex AI Gemini for generation and embedding, with
// an OpenAI-compatible bring-your-own-LLM provider available as a secondary
// for tenants that supply their own API key (spec §1, §4.2, §4.3).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/oauth2/google"

	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// VertexProvider implements ports.LanguageModel against Vertex AI Gemini
// (generation) and the Vertex AI text-embedding REST API (embedding).
// Regional endpoints use the Go SDK; the "global" endpoint falls back to
// the raw REST API since the deprecated vertexai/genai SDK does not
// support it.
type VertexProvider struct {
	client        *genai.Client // nil when using the global endpoint
	httpClient    *http.Client
	project       string
	location      string
	model         string
	embeddingModel string
	useREST       bool
}

// NewVertexProvider creates a VertexProvider for the given project/location/model.
func NewVertexProvider(ctx context.Context, project, location, model, embeddingModel string) (*VertexProvider, error) {
	httpClient, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("llm.NewVertexProvider: default credentials: %w", err)
	}

	p := &VertexProvider{
		httpClient:     httpClient,
		project:        project,
		location:       location,
		model:          model,
		embeddingModel: embeddingModel,
	}

	if location == "global" {
		p.useREST = true
		return p, nil
	}

	client, err := genai.NewClient(ctx, project, location)
	if err != nil {
		return nil, fmt.Errorf("llm.NewVertexProvider: %w", err)
	}
	p.client = client
	return p, nil
}

var _ ports.LanguageModel = (*VertexProvider)(nil)

func (p *VertexProvider) GenerateContent(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	return withRetry(ctx, "VertexProvider.GenerateContent", func() (string, error) {
		if p.useREST {
			return p.generateREST(ctx, systemPrompt, userPrompt, temperature, maxTokens)
		}
		return p.generateSDK(ctx, systemPrompt, userPrompt, temperature, maxTokens)
	})
}

func (p *VertexProvider) generateSDK(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	model := p.client.GenerativeModel(p.model)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	temp := float32(temperature)
	model.Temperature = &temp
	tokens := int32(maxTokens)
	model.MaxOutputTokens = &tokens

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("llm.VertexProvider.GenerateContent: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("llm.VertexProvider.GenerateContent: empty response from model")
	}

	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			parts = append(parts, string(t))
		}
	}
	return strings.Join(parts, ""), nil
}

type restContent struct {
	Role  string     `json:"role"`
	Parts []restPart `json:"parts"`
}

type restPart struct {
	Text string `json:"text"`
}

type restGenerateRequest struct {
	Contents          []restContent         `json:"contents"`
	SystemInstruction *restContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *restGenerationConfig `json:"generationConfig,omitempty"`
}

type restGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type restGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *VertexProvider) generateREST(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	url := fmt.Sprintf(
		"https://aiplatform.googleapis.com/v1/projects/%s/locations/global/publishers/google/models/%s:generateContent",
		p.project, p.model,
	)

	reqBody := restGenerateRequest{
		Contents:         []restContent{{Role: "user", Parts: []restPart{{Text: userPrompt}}}},
		GenerationConfig: &restGenerationConfig{Temperature: &temperature, MaxOutputTokens: &maxTokens},
	}
	if systemPrompt != "" {
		reqBody.SystemInstruction = &restContent{Role: "user", Parts: []restPart{{Text: systemPrompt}}}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llm.VertexProvider.generateREST: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("llm.VertexProvider.generateREST: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm.VertexProvider.generateREST: call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm.VertexProvider.generateREST: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm.VertexProvider.generateREST: status %d: %s", resp.StatusCode, respBody)
	}

	var genResp restGenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("llm.VertexProvider.generateREST: decode: %w", err)
	}
	if genResp.Error != nil {
		return "", fmt.Errorf("llm.VertexProvider.generateREST: API error %d: %s", genResp.Error.Code, genResp.Error.Message)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("llm.VertexProvider.generateREST: empty response from model")
	}

	var parts []string
	for _, part := range genResp.Candidates[0].Content.Parts {
		if part.Text != "" {
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, ""), nil
}

type embeddingRequest struct {
	Instances []embeddingInstance `json:"instances"`
}

type embeddingInstance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type"`
}

type embeddingResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

// EmbedTexts embeds chunk text at ingestion time using the RETRIEVAL_DOCUMENT
// task type, which text-embedding-004 optimizes differently from query
// embedding for asymmetric retrieval.
func (p *VertexProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return withRetry(ctx, "VertexProvider.EmbedTexts", func() ([][]float32, error) {
		return p.embed(ctx, texts, "RETRIEVAL_DOCUMENT")
	})
}

// EmbedQuery embeds a retrieval-time query with the RETRIEVAL_QUERY task
// type. Not part of ports.LanguageModel (which only needs EmbedTexts for
// ingestion); internal/retrieval calls it directly through a narrower
// QueryEmbedder assertion where query-time asymmetry matters.
func (p *VertexProvider) EmbedQuery(ctx context.Context, texts []string) ([][]float32, error) {
	return withRetry(ctx, "VertexProvider.EmbedQuery", func() ([][]float32, error) {
		return p.embed(ctx, texts, "RETRIEVAL_QUERY")
	})
}

func (p *VertexProvider) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	instances := make([]embeddingInstance, len(texts))
	for i, t := range texts {
		instances[i] = embeddingInstance{Content: t, TaskType: taskType}
	}

	reqBody, err := json.Marshal(embeddingRequest{Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("llm.VertexProvider.embed: marshal: %w", err)
	}

	url := p.embeddingEndpointURL()
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("llm.VertexProvider.embed: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm.VertexProvider.embed: call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llm.VertexProvider.embed: status %d: %s", resp.StatusCode, body)
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("llm.VertexProvider.embed: decode: %w", err)
	}

	results := make([][]float32, len(embResp.Predictions))
	for i, pr := range embResp.Predictions {
		results[i] = pr.Embeddings.Values
	}
	return results, nil
}

func (p *VertexProvider) embeddingEndpointURL() string {
	if p.location == "global" {
		return fmt.Sprintf(
			"https://aiplatform.googleapis.com/v1/projects/%s/locations/global/publishers/google/models/%s:predict",
			p.project, p.embeddingModel,
		)
	}
	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		p.location, p.project, p.location, p.embeddingModel,
	)
}

// Close releases the underlying SDK client, if one was created.
func (p *VertexProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
