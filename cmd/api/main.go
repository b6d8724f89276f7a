package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/reporover/internal/ai"
	"github.com/seanblong/reporover/internal/chunk"
	"github.com/seanblong/reporover/internal/config"
	"github.com/seanblong/reporover/internal/githubx"
	"github.com/seanblong/reporover/internal/ingest"
	"github.com/seanblong/reporover/internal/retrieve"
	"github.com/seanblong/reporover/internal/review"
	"github.com/seanblong/reporover/internal/store"
	"github.com/seanblong/reporover/internal/tokens"
	"github.com/seanblong/reporover/pkg/models"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("reporover-api", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Msg("starting reporover api")

	client := buildClient(cfg)
	dim := cfg.Dim
	if client != nil {
		dim = client.Dim()
	}
	if dim == 0 {
		dim = 1536
	}

	ctx := context.Background()
	st, err := store.New(ctx, cfg.Database, dim)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	source := githubx.NewClient(ctx, cfg.GithubToken)
	chunker := chunk.New(cfg.ChunkSize, cfg.ChunkOverlap)
	estimator := tokens.NewEstimator(cfg.EmbedModel)

	pipeline := ingest.New(st, source, client, chunker, estimator)
	pipeline.MaxBatchTokens = cfg.MaxBatchToken
	pipeline.Workers = cfg.IngestWorkers
	ranker := retrieve.NewRanker(st, client)
	reviewer := review.NewReviewer(ranker, source, client)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	mux.HandleFunc("POST /api/ingest", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			GithubURL string `json:"github_url"`
			Owner     string `json:"owner"`
			Repo      string `json:"repo"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		owner, repo, err := resolveRepo(body.GithubURL, body.Owner, body.Repo)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Minute)
		defer cancel()
		if err := pipeline.Ingest(ctx, owner, repo); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, map[string]string{"status": "completed", "repository": owner + "/" + repo})
	})

	mux.HandleFunc("GET /api/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			writeError(w, http.StatusBadRequest, "missing query parameter q")
			return
		}
		k := 5
		if v := r.URL.Query().Get("k"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				k = n
			}
		}
		var repoFilter *models.Repository
		if rf := r.URL.Query().Get("repository"); rf != "" {
			owner, repo, err := resolveRepo("", "", rf)
			if err != nil {
				writeError(w, http.StatusBadRequest, "repository must be owner/repo")
				return
			}
			repoFilter = &models.Repository{Owner: owner, Name: repo}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()
		res := ranker.Search(ctx, q, repoFilter, k)
		for i := range res {
			if math.IsNaN(res[i].Score) || math.IsInf(res[i].Score, 0) {
				res[i].Score = 0
			}
		}
		if res == nil {
			res = []models.SearchResult{}
		}
		writeJSON(w, res)
	})

	mux.HandleFunc("GET /api/repositories", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		repos, err := st.ListRepositories(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if repos == nil {
			repos = []models.Repository{}
		}
		writeJSON(w, repos)
	})

	mux.HandleFunc("DELETE /api/repositories/{owner}/{repo}", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()
		n, err := st.DeleteRepo(ctx, r.PathValue("owner"), r.PathValue("repo"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, map[string]int64{"deleted": n})
	})

	mux.HandleFunc("DELETE /api/chunks", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel()
		n, err := st.DeleteAll(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, map[string]int64{"deleted": n})
	})

	mux.HandleFunc("POST /api/security-review", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			GithubURL string `json:"github_url"`
			Owner     string `json:"owner"`
			Repo      string `json:"repo"`
			Scope     string `json:"scope"`
			FilePath  string `json:"file_path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		owner, repo, err := resolveRepo(body.GithubURL, body.Owner, body.Repo)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		scope := body.Scope
		if scope == "" {
			scope = review.ScopeRepo
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
		defer cancel()
		result, err := reviewer.Run(ctx, owner, repo, scope, body.FilePath)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, result)
	})

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}

// buildClient returns nil when no embedding capability is configured so the
// pipelines run in degraded, keyword-only mode.
func buildClient(cfg config.Specification) ai.Client {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" || provider == "none" {
		return nil
	}

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

	client, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}
	return client
}

// resolveRepo accepts either a github_url or owner/repo parts.
func resolveRepo(githubURL, owner, repo string) (string, string, error) {
	if githubURL != "" {
		trimmed := strings.Trim(strings.TrimSpace(githubURL), "/")
		parts := strings.Split(trimmed, "/")
		if len(parts) < 2 {
			return "", "", fmt.Errorf("could not determine owner/repo from github_url")
		}
		return parts[len(parts)-2], parts[len(parts)-1], nil
	}
	if owner == "" && strings.Contains(repo, "/") {
		parts := strings.SplitN(repo, "/", 2)
		return parts[0], parts[1], nil
	}
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("both owner and repo are required")
	}
	return owner, repo, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": msg})
}
