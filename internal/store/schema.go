package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// schemaDDL creates the chunk table plus the text-search and vector indexes.
// %d is the embedding dimensionality.
const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS repo_chunks (
  chunk_id   TEXT PRIMARY KEY,
  repo_owner TEXT NOT NULL,
  repo_name  TEXT NOT NULL,
  file_path  TEXT NOT NULL,
  content    TEXT NOT NULL,
  metadata   JSONB NOT NULL DEFAULT '{}',
  embedding  vector(%d),
  created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
  ts_fielded tsvector GENERATED ALWAYS AS (
	setweight(
	  to_tsvector('english',
		regexp_replace(coalesce(file_path,''), '[^A-Za-z0-9]+', ' ', 'g')
	  ),
	  'A'
	) ||
	setweight(to_tsvector('english', coalesce(repo_name,'')), 'B') ||
	setweight(to_tsvector('english', coalesce(content,'')), 'C')
  ) STORED
);

CREATE INDEX IF NOT EXISTS repo_chunks_repo_idx
  ON repo_chunks (repo_owner, repo_name);

CREATE INDEX IF NOT EXISTS repo_chunks_path_idx
  ON repo_chunks (repo_owner, repo_name, file_path);

CREATE INDEX IF NOT EXISTS repo_chunks_ts_fielded_gin
  ON repo_chunks USING GIN (ts_fielded);

CREATE INDEX IF NOT EXISTS repo_chunks_embedding_idx
  ON repo_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`

// EnsureSchema verifies the chunk table matches the expected shape. A missing
// table or embedding column is created or patched, and an incompatible
// embedding column is destroyed and recreated, but only when
// recreateIfInvalid is set. Read-only callers pass false: they must never be
// able to destroy data and only learn whether vector search is ready.
func (s *Store) EnsureSchema(ctx context.Context, recreateIfInvalid bool) (bool, error) {
	exists, err := s.tableExists(ctx)
	if err != nil {
		if !recreateIfInvalid {
			log.Warn().Err(err).Msg("unable to verify chunk schema")
			return false, nil
		}
		return false, fmt.Errorf("verify schema: %w", err)
	}

	if !exists {
		if !recreateIfInvalid {
			return false, nil
		}
		if err := s.create(ctx); err != nil {
			return false, fmt.Errorf("create schema: %w", err)
		}
		return true, nil
	}

	typ, dims, found, err := s.embeddingColumn(ctx)
	if err != nil {
		if !recreateIfInvalid {
			log.Warn().Err(err).Msg("unable to inspect embedding column")
			return false, nil
		}
		return false, fmt.Errorf("inspect embedding column: %w", err)
	}

	if !found {
		if !recreateIfInvalid {
			return false, nil
		}
		_, err := s.pool.Exec(ctx, fmt.Sprintf(
			`ALTER TABLE repo_chunks ADD COLUMN embedding vector(%d)`, s.dim))
		if err != nil {
			return false, fmt.Errorf("add embedding column: %w", err)
		}
		return true, nil
	}

	if typ != "vector" || dims != s.dim {
		if !recreateIfInvalid {
			return false, nil
		}
		log.Warn().Str("type", typ).Int("dims", dims).Int("want", s.dim).
			Msg("incompatible embedding column, recreating chunk table")
		if _, err := s.pool.Exec(ctx, `DROP TABLE repo_chunks`); err != nil {
			return false, fmt.Errorf("drop chunk table: %w", err)
		}
		if err := s.create(ctx); err != nil {
			return false, fmt.Errorf("recreate schema: %w", err)
		}
		return true, nil
	}

	return true, nil
}

func (s *Store) create(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(schemaDDL, s.dim))
	return err
}

func (s *Store) tableExists(ctx context.Context) (bool, error) {
	var reg *string
	err := s.pool.QueryRow(ctx, `SELECT to_regclass('repo_chunks')::text`).Scan(&reg)
	if err != nil {
		return false, err
	}
	return reg != nil, nil
}

// embeddingColumn probes the column type and declared dimensionality. For
// pgvector columns atttypmod carries the dimension directly.
func (s *Store) embeddingColumn(ctx context.Context) (typ string, dims int, found bool, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT t.typname, a.atttypmod
		FROM pg_attribute a
		JOIN pg_type t ON a.atttypid = t.oid
		WHERE a.attrelid = 'repo_chunks'::regclass
		  AND a.attname = 'embedding'
		  AND NOT a.attisdropped`).Scan(&typ, &dims)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", 0, false, nil
		}
		return "", 0, false, err
	}
	return typ, dims, true, nil
}
