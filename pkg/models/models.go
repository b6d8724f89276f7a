package models

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Chunk is the atomic unit of retrieval: a bounded span of one file's text.
type Chunk struct {
	ChunkID   string            `json:"chunk_id"`
	RepoOwner string            `json:"repo_owner"`
	RepoName  string            `json:"repo_name"`
	FilePath  string            `json:"file_path"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"-"`
	Timestamp time.Time         `json:"timestamp"`
}

// SearchResult pairs a chunk with its relevance score.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Repository identifies a source repository.
type Repository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// Finding is a single security review observation.
type Finding struct {
	Severity    string `json:"severity"`
	Title       string `json:"title"`
	Description string `json:"description"`
	FilePath    string `json:"file_path"`
	LineHints   string `json:"line_hints"`
	Evidence    string `json:"evidence"`
	Remediation string `json:"remediation"`
	Category    string `json:"category"`
}

// Review is the normalized result of a security assessment run.
type Review struct {
	Scope         string    `json:"scope"`
	Owner         string    `json:"owner"`
	Repo          string    `json:"repo"`
	FilePath      string    `json:"file_path,omitempty"`
	Summary       string    `json:"summary"`
	Findings      []Finding `json:"findings"`
	SampledFiles  []string  `json:"sampled_files"`
	RanAt         time.Time `json:"ran_at"`
	ContextSource string    `json:"context_source"`
}

// ChunkID derives the deterministic upsert key for a chunk. Re-ingesting
// unchanged content yields the same id, so bulk writes are idempotent.
func ChunkID(owner, repo, filePath, content string) string {
	prefix := content
	if len(prefix) > 100 {
		prefix = prefix[:100]
	}
	h := md5.Sum([]byte(owner + "/" + repo + "/" + filePath + "/" + prefix))
	return hex.EncodeToString(h[:])
}
