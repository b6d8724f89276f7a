package ai

import (
	"context"
	"math"
	"reflect"
	"testing"
)

func TestNewClient(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		if _, err := NewClient(nil); err == nil {
			t.Error("Expected error for nil config")
		}
	})

	t.Run("stub provider", func(t *testing.T) {
		client, err := NewClient(&ClientConfig{Provider: ProviderStub, Dim: 16})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if client.Dim() != 16 {
			t.Errorf("Expected dim 16, got %d", client.Dim())
		}
	})

	t.Run("openai provider", func(t *testing.T) {
		client, err := NewClient(&ClientConfig{Provider: ProviderOpenAI, APIKey: "sk-test"})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if client.Dim() != 1536 {
			t.Errorf("Expected default dim 1536, got %d", client.Dim())
		}
	})

	t.Run("unsupported provider", func(t *testing.T) {
		if _, err := NewClient(&ClientConfig{Provider: "carrier-pigeon"}); err == nil {
			t.Error("Expected error for unsupported provider")
		}
	})
}

func TestStubClient(t *testing.T) {
	ctx := context.Background()

	t.Run("default dimension", func(t *testing.T) {
		s := NewStubClient(0)
		if s.Dim() != 8 {
			t.Errorf("Expected default dim 8, got %d", s.Dim())
		}
	})

	t.Run("deterministic embeddings", func(t *testing.T) {
		s := NewStubClient(8)
		a, err := s.EmbedOne(ctx, "hello world")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		b, _ := s.EmbedOne(ctx, "hello world")
		if !reflect.DeepEqual(a, b) {
			t.Error("Same text should embed identically")
		}
		c, _ := s.EmbedOne(ctx, "different text")
		if reflect.DeepEqual(a, c) {
			t.Error("Different texts should embed differently")
		}
	})

	t.Run("vectors are normalized", func(t *testing.T) {
		s := NewStubClient(32)
		v, _ := s.EmbedOne(ctx, "normalize me")
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		if math.Abs(math.Sqrt(norm)-1.0) > 1e-3 {
			t.Errorf("Expected unit norm, got %v", math.Sqrt(norm))
		}
	})

	t.Run("batch embedding aligns with input", func(t *testing.T) {
		s := NewStubClient(8)
		texts := []string{"one", "two", "three"}
		vecs, err := s.EmbedMany(ctx, texts)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(vecs) != 3 {
			t.Fatalf("Expected 3 vectors, got %d", len(vecs))
		}
		single, _ := s.EmbedOne(ctx, "two")
		if !reflect.DeepEqual(vecs[1], single) {
			t.Error("Batch and single embeddings should agree")
		}
	})

	t.Run("generate returns valid JSON", func(t *testing.T) {
		s := NewStubClient(8)
		out, err := s.Generate(ctx, "review this")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if out == "" {
			t.Error("Expected non-empty response")
		}
	})
}
