package main

import (
	"context"
	"log"
	"strings"

	"github.com/seanblong/reporover/internal/ai"
	"github.com/seanblong/reporover/internal/chunk"
	"github.com/seanblong/reporover/internal/config"
	"github.com/seanblong/reporover/internal/githubx"
	"github.com/seanblong/reporover/internal/ingest"
	"github.com/seanblong/reporover/internal/store"
	"github.com/seanblong/reporover/internal/tokens"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("reporover-indexer", pflag.ExitOnError)
	fs.String("repository", "", "Repository to ingest (owner/repo)")
	fs.String("local-root", "", "Ingest from a local directory instead of GitHub")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	repoArg, _ := fs.GetString("repository")
	localRoot, _ := fs.GetString("local-root")
	if repoArg == "" {
		log.Fatal("--repository owner/repo is required")
	}
	parts := strings.SplitN(strings.Trim(repoArg, "/"), "/", 2)
	if len(parts) != 2 {
		log.Fatalf("invalid repository %q, expected owner/repo", repoArg)
	}
	owner, repo := parts[0], parts[1]

	ctx := context.Background()

	var client ai.Client
	provider := strings.ToLower(cfg.Provider)
	if provider != "" && provider != "none" {
		clientConfig := &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Location:   cfg.Location,
		}
		switch provider {
		case "openai":
			clientConfig.Provider = ai.ProviderOpenAI
		case "gemini", "vertexai", "google":
			clientConfig.Provider = ai.ProviderGemini
		case "stub":
			clientConfig.Provider = ai.ProviderStub
		default:
			log.Fatalf("unsupported provider: %s", provider)
		}
		client, err = ai.NewClient(clientConfig)
		if err != nil {
			log.Fatal(err)
		}
	}

	dim := cfg.Dim
	if client != nil {
		dim = client.Dim()
	}
	if dim == 0 {
		log.Fatal("embedding dimension must be set")
	}

	st, err := store.New(ctx, cfg.Database, dim)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	var source githubx.Source
	if localRoot != "" {
		source = githubx.NewLocalSource(localRoot)
	} else {
		source = githubx.NewClient(ctx, cfg.GithubToken)
	}

	pipeline := ingest.New(st, source, client, chunk.New(cfg.ChunkSize, cfg.ChunkOverlap), tokens.NewEstimator(cfg.EmbedModel))
	pipeline.MaxBatchTokens = cfg.MaxBatchToken
	pipeline.Workers = cfg.IngestWorkers

	if err := pipeline.Ingest(ctx, owner, repo); err != nil {
		log.Fatal(err)
	}
}
