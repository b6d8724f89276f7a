// Package chunk splits file content into bounded, semantically coherent pieces.
// The strategy is chosen by file extension: markdown files split on header
// hierarchy, JSON files split on object/array boundaries, known source
// languages split on declaration boundaries, and everything else falls back to
// a recursive character splitter with fixed size and overlap.
package chunk

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Piece is one chunk of a file plus strategy-specific metadata.
type Piece struct {
	Content  string
	Metadata map[string]string
}

// Chunker splits file content using extension-selected strategies.
type Chunker struct {
	Size    int
	Overlap int
}

// New returns a Chunker with the given target size and overlap.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Split chunks one file's content. Empty or non-text content yields zero
// pieces; that is a skip, not an error.
func (c *Chunker) Split(path, content string) []Piece {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if !utf8.ValidString(content) {
		return nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".md" || ext == ".markdown":
		return c.splitMarkdown(content)
	case ext == ".json":
		return c.splitJSON(content)
	default:
		if seps, lang, ok := languageSeparators(ext); ok {
			pieces := make([]Piece, 0, 4)
			for _, s := range newSplitter(c.Size, c.Overlap, seps).split(content) {
				pieces = append(pieces, Piece{
					Content:  s,
					Metadata: map[string]string{"language": lang},
				})
			}
			return pieces
		}
		return c.splitGeneral(content, nil)
	}
}

// splitGeneral applies the default recursive character strategy, copying meta
// onto every produced piece.
func (c *Chunker) splitGeneral(content string, meta map[string]string) []Piece {
	parts := newSplitter(c.Size, c.Overlap, defaultSeparators).split(content)
	pieces := make([]Piece, 0, len(parts))
	for _, s := range parts {
		pieces = append(pieces, Piece{Content: s, Metadata: copyMeta(meta)})
	}
	return pieces
}

func copyMeta(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
