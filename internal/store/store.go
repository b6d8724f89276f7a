// Package store persists chunks in Postgres with pgvector and serves the
// exact-filter, full-text, and vector-similarity queries retrieval needs.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/reporover/pkg/models"
)

// Store provides methods to interact with the database.
type Store struct {
	pool *pgxpool.Pool
	dim  int
}

// ChunkStore defines the methods that the Store must implement.
type ChunkStore interface {
	EnsureSchema(ctx context.Context, recreateIfInvalid bool) (bool, error)
	BulkUpsert(ctx context.Context, chunks []models.Chunk) (failed int, err error)
	DeleteRepo(ctx context.Context, owner, repo string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	ListRepositories(ctx context.Context) ([]models.Repository, error)
	Refresh(ctx context.Context) error
	VectorSearch(ctx context.Context, vec []float32, owner, repo string, k int) ([]models.SearchResult, error)
	KeywordSearch(ctx context.Context, query, owner, repo string, k int, boostRiskPaths bool) ([]models.SearchResult, error)
	HybridSearch(ctx context.Context, vec []float32, query string, repo *models.Repository, k int) ([]models.SearchResult, error)
	FileChunks(ctx context.Context, owner, repo, path string, limit int) ([]models.Chunk, error)
	FirstChunkWithSuffix(ctx context.Context, owner, repo, suffix string) (models.Chunk, bool, error)
}

// New creates a new Store instance connected to the given database URL.
// dim is the expected embedding dimensionality for the schema.
func New(ctx context.Context, url string, dim int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p, dim: dim}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// BulkUpsert writes chunks keyed by chunk_id in one batched round trip.
// Per-row failures are counted and logged, not re-raised; the count is
// returned for observability.
func (s *Store) BulkUpsert(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	const q = `
		INSERT INTO repo_chunks (
			chunk_id, repo_owner, repo_name, file_path, content, metadata, embedding, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (chunk_id) DO UPDATE SET
			content    = EXCLUDED.content,
			metadata   = EXCLUDED.metadata,
			embedding  = EXCLUDED.embedding,
			created_at = EXCLUDED.created_at;`

	b := &pgx.Batch{}
	for _, c := range chunks {
		var emb any
		if c.Embedding != nil {
			emb = pgvector.NewVector(c.Embedding)
		} else {
			emb = (*pgvector.Vector)(nil)
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			meta = []byte("{}")
		}
		ts := c.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		b.Queue(q, c.ChunkID, c.RepoOwner, c.RepoName, c.FilePath, c.Content, meta, emb, ts)
	}

	res := s.pool.SendBatch(ctx, b)
	defer res.Close()

	failed := 0
	for _, c := range chunks {
		if _, err := res.Exec(); err != nil {
			failed++
			log.Warn().Err(err).Str("chunk_id", c.ChunkID).Str("path", c.FilePath).Msg("chunk upsert failed")
		}
	}
	return failed, nil
}

// DeleteRepo removes every chunk belonging to (owner, repo) and returns how
// many were removed.
func (s *Store) DeleteRepo(ctx context.Context, owner, repo string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM repo_chunks WHERE repo_owner = $1 AND repo_name = $2`, owner, repo)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteAll removes every chunk in the index.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM repo_chunks`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListRepositories returns the distinct (owner, repo) pairs present.
func (s *Store) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT repo_owner, repo_name FROM repo_chunks ORDER BY repo_owner, repo_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []models.Repository
	for rows.Next() {
		var r models.Repository
		if err := rows.Scan(&r.Owner, &r.Name); err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// Refresh keeps planner statistics current after a large rewrite so
// subsequent reads plan well against the new chunk population. Writes are
// already visible on commit.
func (s *Store) Refresh(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `ANALYZE repo_chunks`)
	return err
}

// FileChunks returns up to limit chunks for one file, newest first.
func (s *Store) FileChunks(ctx context.Context, owner, repo, path string, limit int) ([]models.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chunk_id, repo_owner, repo_name, file_path, content, metadata, created_at
		FROM repo_chunks
		WHERE repo_owner = $1 AND repo_name = $2 AND file_path = $3
		ORDER BY created_at DESC
		LIMIT $4`, owner, repo, path, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// FirstChunkWithSuffix fetches one chunk whose file path ends with suffix,
// bypassing any scoring. Used to force known-critical files into results.
func (s *Store) FirstChunkWithSuffix(ctx context.Context, owner, repo, suffix string) (models.Chunk, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT chunk_id, repo_owner, repo_name, file_path, content, metadata, created_at
		FROM repo_chunks
		WHERE repo_owner = $1 AND repo_name = $2 AND lower(file_path) LIKE '%' || lower($3)
		ORDER BY file_path
		LIMIT 1`, owner, repo, suffix)

	c, err := scanChunk(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.Chunk{}, false, nil
		}
		return models.Chunk{}, false, err
	}
	return c, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (models.Chunk, error) {
	var c models.Chunk
	var meta []byte
	if err := row.Scan(&c.ChunkID, &c.RepoOwner, &c.RepoName, &c.FilePath, &c.Content, &meta, &c.Timestamp); err != nil {
		return models.Chunk{}, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &c.Metadata)
	}
	return c, nil
}

func scanChunks(rows pgx.Rows) ([]models.Chunk, error) {
	var out []models.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
