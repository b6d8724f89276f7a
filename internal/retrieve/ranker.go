// Package retrieve ranks indexed chunks for a question or review. The ranked
// path blends vector similarity, keyword matching, heuristic risk scoring,
// file-type prioritization, per-file diversity capping and forced inclusion
// of known-critical files, and degrades to keyword-only search when no
// embedding capability is available.
package retrieve

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/reporover/internal/ai"
	"github.com/seanblong/reporover/internal/store"
	"github.com/seanblong/reporover/pkg/models"
)

// securityQueries are the canonical risk topics expanded into independent
// vector searches during a repository-wide security review.
var securityQueries = []string{
	"authentication authorization login session management password handling",
	"sql injection command injection unsanitized input query construction",
	"cryptography encryption hashing weak cipher random number generation",
	"hardcoded secrets api keys credentials tokens environment variables",
	"insecure transport tls verification certificate validation http",
}

// criticalSuffixes mark files whose presence in results is guaranteed:
// dependency manifests and environment configuration.
var criticalSuffixes = []string{
	"package.json",
	"requirements.txt",
	"pipfile",
	"pyproject.toml",
	"yarn.lock",
	"pnpm-lock.yaml",
	"cargo.toml",
	"gemfile",
	"go.mod",
	"dockerfile",
	".env",
	".env.example",
}

// highRiskFragments grant a smaller path boost than critical suffixes.
var highRiskFragments = []string{
	"auth", "login", "session", "token", "secret", "crypt", "passw",
	"sql", "valid", "config", "env", "api", "admin", "payment",
}

// contentCategories each contribute one additive increment per chunk when any
// of their needles appears in the content.
var contentCategories = map[string][]string{
	"dangerous_call": {"eval(", "exec(", "system(", "subprocess.", "child_process", "popen(", "pickle.loads"},
	"credential":     {"api_key", "apikey", "password", "secret", "aws_access", "private_key", "bearer "},
	"crypto":         {"md5", "sha1", "des", "rc4", "createcipher", "math.random", "rand("},
	"input_handling": {"request.", "req.body", "req.query", "req.params", "input(", "getparameter", "form["},
	"database":       {"select ", "insert into", "update ", "delete from", "execute(", "cursor.", "query("},
	"network":        {"http://", "fetch(", "requests.", "urllib", "axios.", "socket("},
}

const (
	criticalPathMultiplier = 2.0
	highRiskPathMultiplier = 1.5
	categoryIncrement      = 0.1
	perQueryLimit          = 20
	diversityCap           = 5
	fileScopedLimit        = 10
)

// Ranker executes the retrieval pipelines against the store.
type Ranker struct {
	Store  store.ChunkStore
	Client ai.Client // nil when no embedding capability is configured
}

// NewRanker creates a Ranker. client may be nil for keyword-only operation.
func NewRanker(st store.ChunkStore, client ai.Client) *Ranker {
	return &Ranker{Store: st, Client: client}
}

// FileScoped returns up to a small fixed number of chunks for one file, in
// store order. Used when a specific file is the retrieval scope.
func (r *Ranker) FileScoped(ctx context.Context, owner, repo, path string) []models.Chunk {
	chunks, err := r.Store.FileChunks(ctx, owner, repo, path, fileScopedLimit)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("file-scoped retrieval failed")
		return nil
	}
	return chunks
}

// SecurityContext runs the repository-wide ranked pipeline over the canonical
// risk topics.
func (r *Ranker) SecurityContext(ctx context.Context, owner, repo string) []models.Chunk {
	return r.RankedContext(ctx, owner, repo, securityQueries)
}

// RankedContext is the repository-wide ranked mode: multi-query expansion,
// merge and dedupe, boosting, diversity capping, critical-file forcing and
// adaptive truncation. With no embedding capability it substitutes a single
// keyword query boosted toward high-risk paths; the output contract is the
// same either way.
func (r *Ranker) RankedContext(ctx context.Context, owner, repo string, queries []string) []models.Chunk {
	candidates := r.gather(ctx, owner, repo, queries)
	candidates = dedupeByContent(candidates)
	for i := range candidates {
		candidates[i].Score = boostScore(candidates[i])
	}
	sortByScore(candidates)
	candidates = applyDiversityCap(candidates, diversityCap)
	candidates = r.forceCriticalFiles(ctx, owner, repo, candidates)

	k := adaptiveLimit(len(candidates))
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	// Strip internal scoring before returning.
	chunks := make([]models.Chunk, 0, len(candidates))
	for _, c := range candidates {
		chunks = append(chunks, c.Chunk)
	}
	return chunks
}

// gather issues one vector search per query, or a single boosted keyword
// query when embeddings are unavailable.
func (r *Ranker) gather(ctx context.Context, owner, repo string, queries []string) []models.SearchResult {
	if r.Client == nil {
		return r.gatherKeyword(ctx, owner, repo, queries)
	}

	var all []models.SearchResult
	embedFailed := false
	for _, q := range queries {
		vec, err := r.Client.EmbedOne(ctx, q)
		if err != nil {
			log.Warn().Err(err).Msg("query embedding failed")
			embedFailed = true
			break
		}
		res, err := r.Store.VectorSearch(ctx, vec, owner, repo, perQueryLimit)
		if err != nil {
			log.Warn().Err(err).Msg("vector search failed")
			continue
		}
		all = append(all, res...)
	}
	if embedFailed && len(all) == 0 {
		return r.gatherKeyword(ctx, owner, repo, queries)
	}
	return all
}

func (r *Ranker) gatherKeyword(ctx context.Context, owner, repo string, queries []string) []models.SearchResult {
	res, err := r.Store.KeywordSearch(ctx, strings.Join(queries, " "), owner, repo,
		perQueryLimit*len(queries), true)
	if err != nil {
		log.Warn().Err(err).Msg("keyword search failed")
		return nil
	}
	return res
}

// Search is the hybrid general Q&A path: vector and keyword signals combine
// as alternatives in one store query, with no boosting or diversity stages.
// Failures yield an empty result set, never an error, so callers can always
// render a "no results" answer.
func (r *Ranker) Search(ctx context.Context, query string, repo *models.Repository, topK int) []models.SearchResult {
	var vec []float32
	if r.Client != nil {
		v, err := r.Client.EmbedOne(ctx, query)
		if err != nil {
			log.Warn().Err(err).Msg("query embedding failed, falling back to keyword search")
		} else {
			vec = v
		}
	}

	res, err := r.Store.HybridSearch(ctx, vec, query, repo, topK)
	if err != nil {
		log.Warn().Err(err).Msg("hybrid search failed")
		return nil
	}
	return res
}
