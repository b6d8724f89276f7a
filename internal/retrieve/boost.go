package retrieve

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/reporover/pkg/models"
)

// dedupeByContent drops candidates whose content exactly matches an earlier
// one. A chunk surfacing under multiple queries keeps only its first
// occurrence; scores are not combined across queries.
func dedupeByContent(in []models.SearchResult) []models.SearchResult {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, c := range in {
		if _, ok := seen[c.Chunk.Content]; ok {
			continue
		}
		seen[c.Chunk.Content] = struct{}{}
		out = append(out, c)
	}
	return out
}

// boostScore combines two independent signals on top of the base similarity:
// a multiplicative file-path signal and additive content-category increments,
// capped at one contribution per category.
func boostScore(c models.SearchResult) float64 {
	score := c.Score * pathMultiplier(c.Chunk.FilePath)

	content := strings.ToLower(c.Chunk.Content)
	for _, needles := range contentCategories {
		for _, needle := range needles {
			if strings.Contains(content, needle) {
				score += categoryIncrement
				break
			}
		}
	}
	return score
}

func pathMultiplier(path string) float64 {
	if isCriticalPath(path) {
		return criticalPathMultiplier
	}
	lower := strings.ToLower(path)
	for _, frag := range highRiskFragments {
		if strings.Contains(lower, frag) {
			return highRiskPathMultiplier
		}
	}
	return 1.0
}

func isCriticalPath(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range criticalSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func sortByScore(in []models.SearchResult) {
	sort.SliceStable(in, func(i, j int) bool { return in[i].Score > in[j].Score })
}

// applyDiversityCap keeps at most cap chunks per file path so one large file
// cannot crowd out the rest of the repository. Files matching the critical
// suffix table are exempt.
func applyDiversityCap(in []models.SearchResult, limit int) []models.SearchResult {
	counts := make(map[string]int, len(in))
	out := in[:0]
	for _, c := range in {
		if !isCriticalPath(c.Chunk.FilePath) {
			if counts[c.Chunk.FilePath] >= limit {
				continue
			}
			counts[c.Chunk.FilePath]++
		}
		out = append(out, c)
	}
	return out
}

// forceCriticalFiles guarantees that every critical suffix with an indexed
// file contributes at least one chunk, fetching one directly when ranking
// never surfaced it. Forced chunks are prepended with a score above the
// current maximum so final truncation cannot drop them.
func (r *Ranker) forceCriticalFiles(ctx context.Context, owner, repo string, in []models.SearchResult) []models.SearchResult {
	present := make(map[string]bool, len(criticalSuffixes))
	maxScore := 0.0
	for _, c := range in {
		if c.Score > maxScore {
			maxScore = c.Score
		}
		lower := strings.ToLower(c.Chunk.FilePath)
		for _, suffix := range criticalSuffixes {
			if strings.HasSuffix(lower, suffix) {
				present[suffix] = true
			}
		}
	}

	var forced []models.SearchResult
	for _, suffix := range criticalSuffixes {
		if present[suffix] {
			continue
		}
		chunk, found, err := r.Store.FirstChunkWithSuffix(ctx, owner, repo, suffix)
		if err != nil {
			log.Warn().Err(err).Str("suffix", suffix).Msg("critical file lookup failed")
			continue
		}
		if !found {
			continue
		}
		forced = append(forced, models.SearchResult{Chunk: chunk, Score: maxScore + 1})
	}
	return append(forced, in...)
}

// adaptiveLimit bounds the final chunk count: small repositories get a higher
// cap than large ones, limiting prompt size without starving small repos.
func adaptiveLimit(candidates int) int {
	if candidates <= 50 {
		return 25
	}
	return 15
}
