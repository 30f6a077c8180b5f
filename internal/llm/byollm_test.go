package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"context"
)

func TestBYOLLMProviderGenerateContentParsesChoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing/incorrect auth header: %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openAIResponse{
			Choices: []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			}{{Message: struct {
				Content string `json:"content"`
			}{Content: "hello from byollm"}}},
		})
	}))
	defer server.Close()

	p := NewBYOLLMProvider("test-key", server.URL, "gpt-4o-mini")
	out, err := p.GenerateContent(context.Background(), "sys", "hi", 0.3, 100)
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if out != "hello from byollm" {
		t.Fatalf("out = %q, want hello from byollm", out)
	}
}

func TestBYOLLMProviderGenerateContentSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "invalid api key"},
		})
	}))
	defer server.Close()

	p := NewBYOLLMProvider("bad-key", server.URL, "gpt-4o-mini")
	_, err := p.GenerateContent(context.Background(), "sys", "hi", 0.3, 100)
	if err == nil {
		t.Fatal("expected error for API error response")
	}
}

func TestBYOLLMProviderEmbedTextsUnsupported(t *testing.T) {
	p := NewBYOLLMProvider("key", "https://example.com", "gpt-4o-mini")
	_, err := p.EmbedTexts(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatal("expected error: embedding not supported")
	}
}

func TestNewBYOLLMProviderDefaultsBaseURL(t *testing.T) {
	p := NewBYOLLMProvider("key", "", "gpt-4o-mini")
	if p.baseURL != "https://openrouter.ai/api/v1" {
		t.Fatalf("baseURL = %q, want default openrouter URL", p.baseURL)
	}
}
