package ai

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
)

// ErrTokenLimit marks a provider rejection caused by a request exceeding the
// per-request token ceiling. Callers bisect the batch and retry on it.
var ErrTokenLimit = errors.New("embedding request over provider token limit")

// ErrUnavailable marks a capability that was never configured (no API key, no
// provider). Callers degrade to keyword-only behavior on it.
var ErrUnavailable = errors.New("ai capability unavailable")

// Client provides embedding and generation capabilities.
type Client interface {
	// EmbedMany embeds a batch of texts, returning one vector per input in order.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedOne embeds a single query text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	// Generate produces a completion for a prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// Dim returns the embedding dimensionality.
	Dim() int
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderStub   Provider = "stub"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey     string
	EmbedModel string
	ChatModel  string
	Dim        int
	ProjectID  string
	Location   string
	Provider   Provider
}

// NewClient creates a new AI client based on configuration
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderGemini:
		return NewGeminiClient(context.Background(), config)
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubClient is a deterministic offline implementation of Client for testing.
// Vectors are seeded from the input text so equal texts embed identically.
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	if dim == 0 {
		dim = 8
	}
	return &StubClient{dim: dim}
}

func (s *StubClient) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vector(t)
	}
	return out, nil
}

func (s *StubClient) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return s.vector(text), nil
}

func (s *StubClient) Generate(ctx context.Context, prompt string) (string, error) {
	return `{"summary": "Stub review: no model configured.", "findings": []}`, nil
}

func (s *StubClient) Dim() int {
	return s.dim
}

func (s *StubClient) vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	v := make([]float32, s.dim)
	var norm float64
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(int64(seed>>33))/float32(math.MaxInt32) - 0.5
		norm += float64(v[i]) * float64(v[i])
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range v {
			v[i] *= inv
		}
	}
	return v
}
