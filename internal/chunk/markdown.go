package chunk

import "strings"

// headerLevels are the markers recorded as section lineage, in order.
var headerLevels = []struct {
	prefix string
	key    string
}{
	{"# ", "Header 1"},
	{"## ", "Header 2"},
	{"### ", "Header 3"},
}

// splitMarkdown splits on header hierarchy first so sections stay intact,
// recording the header lineage in metadata. Sections still larger than the
// target size are re-split by the general strategy, keeping their metadata.
func (c *Chunker) splitMarkdown(content string) []Piece {
	sections := parseSections(content)

	var pieces []Piece
	for _, sec := range sections {
		if strings.TrimSpace(sec.content) == "" {
			continue
		}
		if len(sec.content) <= c.Size {
			pieces = append(pieces, Piece{Content: sec.content, Metadata: copyMeta(sec.headers)})
			continue
		}
		pieces = append(pieces, c.splitGeneral(sec.content, sec.headers)...)
	}
	return pieces
}

type mdSection struct {
	headers map[string]string
	content string
}

// parseSections walks the document line by line, starting a new section at
// every level 1-3 header. Headers inside fenced code blocks are ignored.
func parseSections(content string) []mdSection {
	lines := strings.SplitAfter(content, "\n")

	var sections []mdSection
	current := mdSection{}
	lineage := map[string]string{}
	inFence := false

	flush := func() {
		if current.content != "" {
			sections = append(sections, current)
		}
		current = mdSection{}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		}

		level := headerLevel(trimmed)
		if level > 0 && !inFence {
			flush()
			// A new header invalidates deeper lineage entries.
			title := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			next := map[string]string{}
			for i := 0; i < level-1; i++ {
				if v, ok := lineage[headerLevels[i].key]; ok {
					next[headerLevels[i].key] = v
				}
			}
			next[headerLevels[level-1].key] = title
			lineage = next
			current.headers = copyMeta(lineage)
		}
		if current.headers == nil {
			current.headers = copyMeta(lineage)
		}
		current.content += line
	}
	flush()
	return sections
}

func headerLevel(line string) int {
	for i := len(headerLevels) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, headerLevels[i].prefix) {
			return i + 1
		}
	}
	return 0
}
