package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) (*OpenAIClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewOpenAIClient(&ClientConfig{APIKey: "sk-test", Provider: ProviderOpenAI})
	client.base = server.URL
	return client, server
}

func TestOpenAIClient_EmbedMany(t *testing.T) {
	ctx := context.Background()

	t.Run("no api key", func(t *testing.T) {
		client := NewOpenAIClient(&ClientConfig{})
		if _, err := client.EmbedMany(ctx, []string{"x"}); !errors.Is(err, ErrUnavailable) {
			t.Errorf("Expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		client := NewOpenAIClient(&ClientConfig{APIKey: "sk-test"})
		vecs, err := client.EmbedMany(ctx, nil)
		if err != nil || vecs != nil {
			t.Errorf("Expected nil/nil, got %v/%v", vecs, err)
		}
	})

	t.Run("results realign by index", func(t *testing.T) {
		client, _ := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Input []string `json:"input"`
				Model string   `json:"model"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			if len(req.Input) != 2 {
				t.Errorf("Expected 2 inputs, got %d", len(req.Input))
			}
			if r.Header.Get("Authorization") != "Bearer sk-test" {
				t.Error("Missing auth header")
			}
			// Return out of order; client must realign.
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{"index": 1, "embedding": []float32{0.2}},
					{"index": 0, "embedding": []float32{0.1}},
				},
			})
		})

		vecs, err := client.EmbedMany(ctx, []string{"a", "b"})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		expected := [][]float32{{0.1}, {0.2}}
		if !reflect.DeepEqual(vecs, expected) {
			t.Errorf("Expected %v, got %v", expected, vecs)
		}
	})

	t.Run("token limit error maps to sentinel", func(t *testing.T) {
		client, _ := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{
					"message": "Requested 300000 tokens, max_tokens_per_request is 250000",
					"code":    "max_tokens_per_request",
				},
			})
		})

		_, err := client.EmbedMany(ctx, []string{"a", "b"})
		if !errors.Is(err, ErrTokenLimit) {
			t.Errorf("Expected ErrTokenLimit, got %v", err)
		}
	})

	t.Run("other api errors pass through", func(t *testing.T) {
		client, _ := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "invalid api key"},
			})
		})

		_, err := client.EmbedMany(ctx, []string{"a"})
		if err == nil || errors.Is(err, ErrTokenLimit) {
			t.Errorf("Expected a plain error, got %v", err)
		}
	})

	t.Run("count mismatch is an error", func(t *testing.T) {
		client, _ := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"index": 0, "embedding": []float32{0.1}}},
			})
		})

		if _, err := client.EmbedMany(ctx, []string{"a", "b"}); err == nil {
			t.Error("Expected mismatch error")
		}
	})
}

func TestOpenAIClient_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("returns trimmed content", func(t *testing.T) {
		client, _ := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Model    string `json:"model"`
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
				t.Errorf("Unexpected messages: %+v", req.Messages)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]string{"content": "  {\"summary\": \"ok\"}  "}},
				},
			})
		})

		out, err := client.Generate(ctx, "review")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if out != `{"summary": "ok"}` {
			t.Errorf("Expected trimmed content, got %q", out)
		}
	})

	t.Run("no choices", func(t *testing.T) {
		client, _ := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
		})
		if _, err := client.Generate(ctx, "review"); err == nil {
			t.Error("Expected error for empty choices")
		}
	})

	t.Run("no api key", func(t *testing.T) {
		client := NewOpenAIClient(&ClientConfig{})
		if _, err := client.Generate(ctx, "x"); !errors.Is(err, ErrUnavailable) {
			t.Errorf("Expected ErrUnavailable, got %v", err)
		}
	})
}

func TestNewOpenAIClient_Defaults(t *testing.T) {
	client := NewOpenAIClient(&ClientConfig{})
	if client.config.EmbedModel != "text-embedding-3-small" {
		t.Errorf("Unexpected default embed model: %s", client.config.EmbedModel)
	}
	if client.config.ChatModel != "gpt-4o-mini" {
		t.Errorf("Unexpected default chat model: %s", client.config.ChatModel)
	}
	if client.Dim() != 1536 {
		t.Errorf("Unexpected default dim: %d", client.Dim())
	}

	large := NewOpenAIClient(&ClientConfig{EmbedModel: "text-embedding-3-large"})
	if large.Dim() != 3072 {
		t.Errorf("Expected 3072 for the large model, got %d", large.Dim())
	}
}
