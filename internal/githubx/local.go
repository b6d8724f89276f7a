package githubx

import (
	"context"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/karrick/godirwalk"
)

// LocalSource serves a repository from a directory on disk. The repo name is
// interpreted as a path relative to Root, so local checkouts ingest through
// the same pipeline as remote repositories.
type LocalSource struct {
	Root string
}

// NewLocalSource creates a local source rooted at dir.
func NewLocalSource(dir string) *LocalSource {
	if dir == "" {
		dir = "."
	}
	return &LocalSource{Root: dir}
}

func (l *LocalSource) repoDir(repo string) string {
	return filepath.Join(l.Root, filepath.Clean("/"+repo))
}

// ListFiles walks the directory, applying the same binary and vendored-path
// filters as the GitHub source.
func (l *LocalSource) ListFiles(ctx context.Context, owner, repo string) ([]string, error) {
	root := l.repoDir(repo)

	var files []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if de.IsDir() {
				if skipDirs[de.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}
			if KeepPath(rel) {
				files = append(files, filepath.ToSlash(rel))
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// GetContent reads one file, returning "" for content that is not text.
func (l *LocalSource) GetContent(ctx context.Context, owner, repo, path string) (string, error) {
	b, err := os.ReadFile(filepath.Join(l.repoDir(repo), filepath.Clean("/"+path)))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", nil
	}
	return string(b), nil
}
