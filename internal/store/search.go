package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/seanblong/reporover/pkg/models"
)

// tsqueryCTE turns raw query text into an OR tsquery, dropping stopwords and
// punctuation. Shared prelude for the lexical queries below; expects the raw
// query text as $%d.
const tsqueryCTE = `
parsed AS (
  SELECT lower(x) AS lx
  FROM ts_debug('english', %s) d, unnest(d.lexemes) AS x
  WHERE d.alias NOT IN ('StopWord','Space','Blank','Punct','Num')
),
terms AS (
  SELECT COALESCE(ARRAY_AGG(DISTINCT lx), ARRAY[]::text[]) AS all_terms
  FROM parsed
),
q AS (
  SELECT to_tsquery('english',
    (SELECT CASE WHEN cardinality(all_terms) > 0
                 THEN array_to_string(all_terms, ' | ')
                 ELSE NULL END
     FROM terms)
  ) AS tq
)`

// riskPathBoost bumps paths that commonly carry security-relevant code when
// keyword search runs without vector signals.
const riskPathBoost = `
    CASE WHEN lower(file_path) ~ '(auth|login|session|token|secret|crypt|passw|sql|valid|config|env|api)'
         THEN 0.5 ELSE 0 END`

// VectorSearch returns the k most similar embedded chunks in one repository.
// Chunks without an embedding are excluded by filter.
func (s *Store) VectorSearch(ctx context.Context, vec []float32, owner, repo string, k int) ([]models.SearchResult, error) {
	if len(vec) == 0 {
		return []models.SearchResult{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT chunk_id, repo_owner, repo_name, file_path, content, metadata, created_at,
		       1.0 + (1.0 - (embedding <=> $1)) AS score
		FROM repo_chunks
		WHERE repo_owner = $2 AND repo_name = $3 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $4`,
		pgvector.NewVector(vec), owner, repo, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResults(rows)
}

// KeywordSearch runs a full-text query over content, file path and repo name
// within one repository. With boostRiskPaths it additionally rewards paths
// matching high-risk patterns, the degraded-mode substitute for vector
// similarity.
func (s *Store) KeywordSearch(ctx context.Context, query, owner, repo string, k int, boostRiskPaths bool) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []models.SearchResult{}, nil
	}

	boost := "0"
	if boostRiskPaths {
		boost = riskPathBoost
	}

	q := fmt.Sprintf(`
WITH %s
SELECT chunk_id, repo_owner, repo_name, file_path, content, metadata, created_at,
       COALESCE(ts_rank_cd(ts_fielded, (SELECT tq FROM q)), 0) + %s AS score
FROM repo_chunks
WHERE repo_owner = $2 AND repo_name = $3
  AND ts_fielded @@ (SELECT tq FROM q)
ORDER BY score DESC
LIMIT $4`, fmt.Sprintf(tsqueryCTE, "$1"), boost)

	rows, err := s.pool.Query(ctx, q, query, owner, repo, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResults(rows)
}

// HybridSearch combines a vector query and a keyword query as alternatives in
// a single request: a chunk matches if either signal matches, and its score
// is the sum of both. vec may be nil (keyword only) and repo may be nil (no
// repository filter). Used by the general Q&A path, which needs no boosting
// or diversity stages.
func (s *Store) HybridSearch(ctx context.Context, vec []float32, query string, repo *models.Repository, k int) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" && len(vec) == 0 {
		return []models.SearchResult{}, nil
	}

	args := []any{query}
	ai := 2

	sim := "0"
	match := "ts_fielded @@ (SELECT tq FROM q)"
	if len(vec) > 0 {
		sim = fmt.Sprintf(
			`CASE WHEN embedding IS NOT NULL THEN 1.0 + (1.0 - (embedding <=> $%d)) ELSE 0 END`, ai)
		match += fmt.Sprintf(" OR embedding IS NOT NULL AND (embedding <=> $%d) < 1.0", ai)
		args = append(args, pgvector.NewVector(vec))
		ai++
	}

	where := "TRUE"
	if repo != nil {
		where = fmt.Sprintf("repo_owner = $%d AND repo_name = $%d", ai, ai+1)
		args = append(args, repo.Owner, repo.Name)
		ai += 2
	}

	q := fmt.Sprintf(`
WITH %s
SELECT chunk_id, repo_owner, repo_name, file_path, content, metadata, created_at,
       %s + COALESCE(ts_rank_cd(ts_fielded, (SELECT tq FROM q)), 0) AS score
FROM repo_chunks
WHERE %s AND (%s)
ORDER BY score DESC
LIMIT $%d`, fmt.Sprintf(tsqueryCTE, "$1"), sim, where, match, ai)
	args = append(args, k)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResults(rows)
}

func scanResults(rows pgx.Rows) ([]models.SearchResult, error) {
	var out []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		var meta []byte
		if err := rows.Scan(
			&r.Chunk.ChunkID, &r.Chunk.RepoOwner, &r.Chunk.RepoName, &r.Chunk.FilePath,
			&r.Chunk.Content, &meta, &r.Chunk.Timestamp, &r.Score,
		); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &r.Chunk.Metadata)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
