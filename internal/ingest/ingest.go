// Package ingest drives the one-way pipeline from a repository's files to
// indexed, searchable chunks.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/reporover/internal/ai"
	"github.com/seanblong/reporover/internal/chunk"
	"github.com/seanblong/reporover/internal/githubx"
	"github.com/seanblong/reporover/internal/store"
	"github.com/seanblong/reporover/internal/tokens"
	"github.com/seanblong/reporover/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Pipeline turns a repository's file list into indexed chunks, replacing any
// prior chunks for that repository.
type Pipeline struct {
	Store     store.ChunkStore
	Source    githubx.Source
	Client    ai.Client // nil when no embedding capability is configured
	Chunker   *chunk.Chunker
	Estimator *tokens.Estimator

	MaxBatchTokens int
	Workers        int
}

// New wires a Pipeline with defaults matching the ingestion contract.
func New(st store.ChunkStore, src githubx.Source, client ai.Client, chunker *chunk.Chunker, est *tokens.Estimator) *Pipeline {
	return &Pipeline{
		Store:          st,
		Source:         src,
		Client:         client,
		Chunker:        chunker,
		Estimator:      est,
		MaxBatchTokens: 250000,
		Workers:        7,
	}
}

type fileChunks struct {
	path   string
	pieces []chunk.Piece
}

// Ingest runs the full pipeline for one repository. Schema failures abort;
// purge failures are logged and skipped; per-file failures skip that file
// only. Without an embedding client the repository is purged and left
// chunk-less until a later successful run.
func (p *Pipeline) Ingest(ctx context.Context, owner, repo string) error {
	ready, err := p.Store.EnsureSchema(ctx, true)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if !ready {
		return fmt.Errorf("chunk index schema is not ready")
	}

	// Best effort: stale data may linger if this fails, but re-ingestion is
	// idempotent by chunk_id so we press on.
	if n, err := p.Store.DeleteRepo(ctx, owner, repo); err != nil {
		log.Warn().Err(err).Str("owner", owner).Str("repo", repo).Msg("failed to clear existing chunks")
	} else {
		log.Info().Int64("deleted", n).Str("owner", owner).Str("repo", repo).Msg("cleared existing chunks")
	}

	if p.Client == nil {
		log.Warn().Str("owner", owner).Str("repo", repo).
			Msg("no embedding provider configured, skipping indexing")
		return nil
	}

	files, err := p.Source.ListFiles(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("list repository files: %w", err)
	}
	log.Info().Int("files", len(files)).Str("owner", owner).Str("repo", repo).Msg("listed repository files")

	perFile := p.chunkFiles(ctx, owner, repo, files)

	// Flatten in file order so embeddings line up with chunks.
	var chunks []models.Chunk
	var texts []string
	now := time.Now().UTC()
	for _, fc := range perFile {
		for _, piece := range fc.pieces {
			chunks = append(chunks, models.Chunk{
				ChunkID:   models.ChunkID(owner, repo, fc.path, piece.Content),
				RepoOwner: owner,
				RepoName:  repo,
				FilePath:  fc.path,
				Content:   piece.Content,
				Metadata:  piece.Metadata,
				Timestamp: now,
			})
			texts = append(texts, piece.Content)
		}
	}
	log.Info().Int("chunks", len(chunks)).Msg("collected chunks from all files")

	if len(chunks) == 0 {
		return nil
	}

	// Batch across the whole repository, not per file, to maximize batch
	// fullness. Batches run sequentially; providers rate-limit connections
	// harder than batch size.
	embedFailed := 0
	var vectors [][]float32
	batches := p.Estimator.Pack(texts, p.MaxBatchTokens)
	for i, batch := range batches {
		log.Info().Int("batch", i+1).Int("of", len(batches)).Int("texts", len(batch)).Msg("embedding batch")
		vecs, failed, err := tokens.EmbedBatch(ctx, p.Client, batch)
		if err != nil {
			return fmt.Errorf("embed batch %d/%d: %w", i+1, len(batches), err)
		}
		vectors = append(vectors, vecs...)
		embedFailed += failed
	}

	toIndex := chunks[:0]
	for i := range chunks {
		if vectors[i] == nil {
			continue
		}
		chunks[i].Embedding = vectors[i]
		toIndex = append(toIndex, chunks[i])
	}

	upsertFailed, err := p.Store.BulkUpsert(ctx, toIndex)
	if err != nil {
		return fmt.Errorf("bulk upsert: %w", err)
	}
	if upsertFailed > 0 || embedFailed > 0 {
		log.Warn().Int("embed_failed", embedFailed).Int("upsert_failed", upsertFailed).
			Int("indexed", len(toIndex)-upsertFailed).Msg("ingestion completed with partial failures")
	} else {
		log.Info().Int("indexed", len(toIndex)).Msg("ingestion complete")
	}

	if err := p.Store.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to refresh chunk index")
	}
	return nil
}

// chunkFiles fetches and chunks files concurrently with a bounded worker
// count; the content fetch is the bottleneck, not CPU. Failures are isolated
// per file and do not cancel siblings.
func (p *Pipeline) chunkFiles(ctx context.Context, owner, repo string, files []string) []fileChunks {
	workers := p.Workers
	if workers <= 0 {
		workers = 7
	}
	if workers > len(files) {
		workers = len(files)
	}
	if workers == 0 {
		return nil
	}
	log.Info().Int("workers", workers).Msg("chunking files")

	results := make([]fileChunks, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			content, err := p.Source.GetContent(ctx, owner, repo, path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to fetch file, skipping")
				return nil
			}
			pieces := p.Chunker.Split(path, content)
			if len(pieces) > 0 {
				log.Debug().Str("path", path).Int("chunks", len(pieces)).Msg("chunked file")
			}
			results[i] = fileChunks{path: path, pieces: pieces}
			return nil
		})
	}
	_ = g.Wait()

	out := results[:0]
	for _, fc := range results {
		if len(fc.pieces) > 0 {
			out = append(out, fc)
		}
	}
	return out
}
