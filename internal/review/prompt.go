package review

import "strings"

const instructions = `You are an experienced application security engineer reviewing code.
Analyze the provided context and return JSON with this shape:
{
  "summary": "<overall risk synopsis>",
  "findings": [
    {
      "severity": "critical|high|medium|low|info",
      "title": "<short name>",
      "description": "<what is wrong and why it matters>",
      "file_path": "<relative path if known>",
      "line_hints": "<line numbers or patterns if available>",
      "evidence": "<quote the relevant code or configuration>",
      "remediation": "<specific fix recommendation>",
      "category": "<CWE/OWASP label if possible>"
    }
  ]
}

Guidelines:
- Severity must reflect exploitability and impact.
- Keep findings list short (max 6) and prioritize unique issues.
- If no issues are evident, return an empty list with a summary that explains the coverage limits.
- NEVER include prose outside of the JSON object.`

// hintKeywords map a heuristic label to the lowercase needles that trigger it.
var hintKeywords = map[string][]string{
	"Possible credential":       {"secret", "apikey", "token", "password", "aws_access"},
	"Disabled TLS verification": {"verify=false", "node_tls_reject_unauthorized", "insecureskipverify"},
	"Command execution":         {"exec(", "subprocess.popen", "system(", "child_process.exec"},
	"Weak crypto":               {"md5", "sha1", "des", "rc4"},
	"Dangerous eval":            {"eval(", "function(", "pickle.loads", "yaml.load("},
}

// deriveHints scans the given texts for heuristic risk signals worth calling
// out to the model.
func deriveHints(texts ...string) []string {
	lowered := strings.ToLower(strings.Join(texts, " "))
	var hints []string
	for _, label := range []string{
		"Possible credential",
		"Disabled TLS verification",
		"Command execution",
		"Weak crypto",
		"Dangerous eval",
	} {
		for _, needle := range hintKeywords[label] {
			if strings.Contains(lowered, needle) {
				hints = append(hints, label)
				break
			}
		}
	}
	return hints
}

// buildPrompt assembles the full review prompt for the model.
func buildPrompt(scope, owner, repo, contextText, filePath, fileContent string, hints []string) string {
	var b strings.Builder

	b.WriteString("Scope: " + strings.ToUpper(scope) + " security review for " + owner + "/" + repo + "\n")
	if filePath != "" {
		b.WriteString("Target file: " + filePath + "\n")
	}
	b.WriteString("\n")
	b.WriteString(instructions)

	if len(hints) > 0 {
		b.WriteString("\n\nHeuristic signals detected:\n- " + strings.Join(hints, "\n- "))
	}

	if scope == ScopeFile && filePath != "" && fileContent != "" {
		b.WriteString("\n\nFull file excerpt (truncated):\n")
		b.WriteString(limitText(fileContent, maxFileChars))
	}

	b.WriteString("\n\nRepository snippets and metadata:\n")
	b.WriteString(contextText)
	return strings.TrimSpace(b.String())
}
