// Package review runs repository- and file-level security assessments: it
// assembles indexed context, derives heuristic risk hints, prompts the model
// and normalizes its response into a predictable shape.
package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seanblong/reporover/internal/ai"
	"github.com/seanblong/reporover/internal/githubx"
	"github.com/seanblong/reporover/internal/retrieve"
	"github.com/seanblong/reporover/pkg/models"
)

const (
	maxContextChars = 16000
	maxSnippetChars = 1200
	maxFileChars    = 6000
	maxFindings     = 6
)

// ScopeRepo reviews a whole repository; ScopeFile reviews one file.
const (
	ScopeRepo = "repo"
	ScopeFile = "file"
)

// Reviewer runs security assessments.
type Reviewer struct {
	Ranker *retrieve.Ranker
	Source githubx.Source
	Client ai.Client
}

// NewReviewer wires a Reviewer.
func NewReviewer(ranker *retrieve.Ranker, src githubx.Source, client ai.Client) *Reviewer {
	return &Reviewer{Ranker: ranker, Source: src, Client: client}
}

// Run executes a security review. filePath is required for ScopeFile and
// ignored for ScopeRepo.
func (r *Reviewer) Run(ctx context.Context, owner, repo, scope, filePath string) (models.Review, error) {
	if r.Client == nil {
		return models.Review{}, errors.New("no generative model configured for security review")
	}

	switch scope {
	case ScopeRepo:
		return r.runRepo(ctx, owner, repo)
	case ScopeFile:
		if filePath == "" {
			return models.Review{}, errors.New("file_path is required for file-level security review")
		}
		return r.runFile(ctx, owner, repo, filePath)
	default:
		return models.Review{}, fmt.Errorf("unknown review scope %q", scope)
	}
}

func (r *Reviewer) runRepo(ctx context.Context, owner, repo string) (models.Review, error) {
	chunks := r.Ranker.SecurityContext(ctx, owner, repo)
	contextText, sampled := formatContext(chunks)
	hints := deriveHints(contextText)

	prompt := buildPrompt(ScopeRepo, owner, repo, contextText, "", "", hints)
	parsed, err := r.invoke(ctx, prompt)
	if err != nil {
		return models.Review{}, err
	}

	source := "index"
	if len(chunks) == 0 {
		source = "empty"
		log.Warn().Str("owner", owner).Str("repo", repo).
			Msg("no indexed context for repository review")
	}
	return models.Review{
		Scope:         ScopeRepo,
		Owner:         owner,
		Repo:          repo,
		Summary:       parsed.summaryOrDefault(),
		Findings:      parsed.Findings,
		SampledFiles:  sampled,
		RanAt:         time.Now().UTC(),
		ContextSource: source,
	}, nil
}

func (r *Reviewer) runFile(ctx context.Context, owner, repo, filePath string) (models.Review, error) {
	content, err := r.Source.GetContent(ctx, owner, repo, filePath)
	if err != nil {
		return models.Review{}, fmt.Errorf("fetch %s: %w", filePath, err)
	}
	if content == "" {
		return models.Review{}, fmt.Errorf("file %s is empty or could not be decoded", filePath)
	}

	chunks := r.Ranker.FileScoped(ctx, owner, repo, filePath)
	contextText, sampled := formatContext(chunks)
	hints := deriveHints(content, contextText)

	prompt := buildPrompt(ScopeFile, owner, repo, contextText, filePath, content, hints)
	parsed, err := r.invoke(ctx, prompt)
	if err != nil {
		return models.Review{}, err
	}

	source := "file_only"
	if len(chunks) > 0 {
		source = "index"
	}
	return models.Review{
		Scope:         ScopeFile,
		Owner:         owner,
		Repo:          repo,
		FilePath:      filePath,
		Summary:       parsed.summaryOrDefault(),
		Findings:      parsed.Findings,
		SampledFiles:  sampled,
		RanAt:         time.Now().UTC(),
		ContextSource: source,
	}, nil
}

func (r *Reviewer) invoke(ctx context.Context, prompt string) (parsedReview, error) {
	raw, err := r.Client.Generate(ctx, prompt)
	if err != nil {
		return parsedReview{}, fmt.Errorf("security review model call: %w", err)
	}
	return parseResponse(raw), nil
}

// formatContext renders chunks into the prompt context block, appending
// dependency-file snapshots, and returns the sorted set of sampled paths.
func formatContext(chunks []models.Chunk) (string, []string) {
	if len(chunks) == 0 {
		return "No indexed chunks were found for this repository.", nil
	}

	var lines []string
	pathSet := map[string]struct{}{}
	total := 0
	for _, c := range chunks {
		pathSet[c.FilePath] = struct{}{}
		snippet := strings.TrimSpace(c.Content)
		if snippet == "" {
			continue
		}
		entry := "File: " + c.FilePath + "\nSnippet:\n" + limitText(snippet, maxSnippetChars)
		lines = append(lines, entry)
		total += len(entry)
		if total > maxContextChars {
			break
		}
	}

	if deps := dependencySnippets(chunks); len(deps) > 0 {
		lines = append(lines, "Dependency snapshots:\n"+strings.Join(deps, "\n\n"))
	}

	sampled := make([]string, 0, len(pathSet))
	for p := range pathSet {
		sampled = append(sampled, p)
	}
	sort.Strings(sampled)

	combined := strings.Join(lines, "\n\n---\n\n")
	return limitText(combined, maxContextChars), sampled
}

// dependencySuffixes identify manifest and environment files whose content is
// always quoted to the model.
var dependencySuffixes = []string{
	"package.json", "requirements.txt", "pipfile", "pyproject.toml",
	"yarn.lock", "pnpm-lock.yaml", "cargo.toml", "gemfile", "go.mod", "dockerfile",
}

func dependencySnippets(chunks []models.Chunk) []string {
	var snippets []string
	for _, c := range chunks {
		lower := strings.ToLower(c.FilePath)
		for _, suffix := range dependencySuffixes {
			if strings.HasSuffix(lower, suffix) && strings.TrimSpace(c.Content) != "" {
				snippets = append(snippets,
					"Dependency file: "+c.FilePath+"\n"+limitText(strings.TrimSpace(c.Content), maxSnippetChars))
				break
			}
		}
	}
	return snippets
}

func limitText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... [truncated]"
}
