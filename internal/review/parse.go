package review

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/seanblong/reporover/pkg/models"
)

type parsedReview struct {
	Summary  string
	Findings []models.Finding
}

func (p parsedReview) summaryOrDefault() string {
	if strings.TrimSpace(p.Summary) != "" {
		return p.Summary
	}
	return "Security review completed. No explicit summary returned."
}

var (
	fencePattern  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	objectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

var validSeverities = map[string]bool{
	"critical": true, "high": true, "medium": true, "low": true, "info": true,
}

// parseResponse normalizes a model response into a summary plus findings.
// Markdown fences are stripped, the first JSON object is extracted from
// chatty responses, and unparseable text becomes the summary with zero
// findings rather than an error.
func parseResponse(raw string) parsedReview {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		if m := fencePattern.FindStringSubmatch(text); m != nil {
			text = strings.TrimSpace(m[1])
		}
	}

	var payload struct {
		Summary  string            `json:"summary"`
		Findings []json.RawMessage `json:"findings"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		candidate := objectPattern.FindString(text)
		if candidate == "" {
			return parsedReview{Summary: text}
		}
		if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
			return parsedReview{Summary: text}
		}
	}

	out := parsedReview{Summary: strings.TrimSpace(payload.Summary)}
	for _, raw := range payload.Findings {
		if len(out.Findings) >= maxFindings {
			break
		}
		f, ok := parseFinding(raw)
		if !ok {
			continue
		}
		out.Findings = append(out.Findings, f)
	}
	return out
}

// parseFinding tolerates the field aliases models commonly substitute.
func parseFinding(raw json.RawMessage) (models.Finding, bool) {
	var item map[string]any
	if err := json.Unmarshal(raw, &item); err != nil {
		return models.Finding{}, false
	}

	f := models.Finding{
		Severity:    strings.ToLower(str(item, "severity")),
		Title:       firstOf(item, "title", "name"),
		Description: str(item, "description"),
		FilePath:    firstOf(item, "file_path", "file"),
		LineHints:   firstOf(item, "line_hints", "lines"),
		Evidence:    str(item, "evidence"),
		Remediation: firstOf(item, "remediation", "recommendation"),
		Category:    firstOf(item, "category", "cwe"),
	}
	if !validSeverities[f.Severity] {
		f.Severity = "info"
	}
	if f.Title == "" {
		f.Title = "Finding"
	}
	return f, true
}

func str(item map[string]any, key string) string {
	if v, ok := item[key].(string); ok {
		return v
	}
	return ""
}

func firstOf(item map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := str(item, k); v != "" {
			return v
		}
	}
	return ""
}
