// Package githubx lists and fetches repository files, from the GitHub API or
// from a local checkout. Binary and vendored content is filtered out before
// it reaches the chunker.
package githubx

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"
)

// Source lists a repository's text files and fetches their content.
type Source interface {
	// ListFiles returns the paths of text files worth indexing.
	ListFiles(ctx context.Context, owner, repo string) ([]string, error)
	// GetContent returns a file's text, or "" (not an error) when the bytes
	// do not decode as text.
	GetContent(ctx context.Context, owner, repo, path string) (string, error)
}

// binaryExtensions are skipped during listing; images, media, archives and
// other content useless for code search.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".webp": true, ".ico": true, ".svg": true, ".tiff": true, ".tif": true,
	".psd": true, ".ai": true, ".eps": true, ".indd": true,
	".mp4": true, ".avi": true, ".mov": true, ".wmv": true, ".flv": true,
	".webm": true, ".mkv": true, ".3gp": true,
	".mp3": true, ".wav": true, ".flac": true, ".aac": true, ".ogg": true,
	".wma": true, ".m4a": true,
	".zip": true, ".rar": true, ".7z": true, ".tar": true, ".gz": true,
	".bz2": true, ".xz": true,
	".pdf": true, ".doc": true, ".docx": true, ".ppt": true, ".pptx": true,
	".xls": true, ".xlsx": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".app": true,
	".deb": true, ".rpm": true, ".iso": true, ".dmg": true, ".pkg": true,
	".appimage": true,
}

// skipDirs are conventional non-source directories excluded from listing.
var skipDirs = map[string]bool{
	"node_modules": true, ".git": true, "__pycache__": true, ".next": true,
	"build": true, "dist": true, ".venv": true, "venv": true, "env": true,
	"vendor": true, "target": true, ".idea": true, ".cache": true,
}

// Client talks to the GitHub API.
type Client struct {
	gh *github.Client
}

// NewClient creates a GitHub source. token may be empty; unauthenticated
// requests work but are rate limited aggressively.
func NewClient(ctx context.Context, token string) *Client {
	var gh *github.Client
	if strings.TrimSpace(token) != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(token)})
		gh = github.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		gh = github.NewClient(nil)
	}
	return &Client{gh: gh}
}

// ListFiles walks the repository's default-branch tree recursively and keeps
// text file paths.
func (c *Client) ListFiles(ctx context.Context, owner, repo string) ([]string, error) {
	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("get repository %s/%s: %w", owner, repo, err)
	}
	branch := r.GetDefaultBranch()

	tree, _, err := c.gh.Git.GetTree(ctx, owner, repo, branch, true)
	if err != nil {
		return nil, fmt.Errorf("get tree %s/%s@%s: %w", owner, repo, branch, err)
	}

	var files []string
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		path := entry.GetPath()
		if KeepPath(path) {
			files = append(files, path)
		}
	}
	return files, nil
}

// GetContent fetches and decodes one file. Undecodable binary content yields
// an empty string so the caller skips the file instead of failing.
func (c *Client) GetContent(ctx context.Context, owner, repo, path string) (string, error) {
	fc, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s/%s/%s: %w", owner, repo, path, err)
	}
	if fc == nil {
		return "", fmt.Errorf("fetch %s/%s/%s: not a file", owner, repo, path)
	}

	raw, err := fc.GetContent()
	if err != nil {
		return "", nil
	}
	if !utf8.ValidString(raw) {
		return "", nil
	}
	return raw, nil
}

// KeepPath reports whether a repository path is indexable text content.
func KeepPath(path string) bool {
	lower := strings.ToLower(path)
	for _, part := range strings.Split(lower, "/") {
		if skipDirs[part] {
			return false
		}
	}
	if idx := strings.LastIndex(lower, "."); idx >= 0 {
		if binaryExtensions[lower[idx:]] {
			return false
		}
	}
	return true
}
