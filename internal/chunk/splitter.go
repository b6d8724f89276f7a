package chunk

import "strings"

// defaultSeparators split on the largest natural boundary that fits:
// paragraph, then line, then word, then character.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// splitter is a recursive character splitter. It splits on the first
// separator present in the text and recursively re-splits any fragment that
// still exceeds the target size using the remaining, finer separators.
// Separators are retained at the end of the fragment they terminate, so
// chunks are verbatim substrings of the input.
type splitter struct {
	size       int
	overlap    int
	separators []string
}

func newSplitter(size, overlap int, separators []string) *splitter {
	return &splitter{size: size, overlap: overlap, separators: separators}
}

func (s *splitter) split(text string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= s.size {
		return []string{text}
	}
	return s.splitWith(text, s.separators)
}

func (s *splitter) splitWith(text string, seps []string) []string {
	sep, rest := pickSeparator(text, seps)
	if sep == "" {
		return s.hardCut(text)
	}

	fragments := strings.SplitAfter(text, sep)
	var out []string
	var pending []string
	for _, frag := range fragments {
		if frag == "" {
			continue
		}
		if len(frag) <= s.size {
			pending = append(pending, frag)
			continue
		}
		// Oversized fragment: flush what we have, then recurse finer.
		out = append(out, s.merge(pending)...)
		pending = nil
		out = append(out, s.splitWith(frag, rest)...)
	}
	out = append(out, s.merge(pending)...)
	return out
}

// merge greedily packs fragments into chunks of at most size bytes, carrying
// a tail of at most overlap bytes into the next chunk.
func (s *splitter) merge(fragments []string) []string {
	if len(fragments) == 0 {
		return nil
	}

	var out []string
	var window []string
	total := 0
	for _, f := range fragments {
		if total > 0 && total+len(f) > s.size {
			out = append(out, strings.Join(window, ""))
			// Keep an overlap-sized tail, and make room for the next fragment.
			for len(window) > 0 && (total > s.overlap || total+len(f) > s.size) {
				total -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, f)
		total += len(f)
	}
	if len(window) > 0 {
		out = append(out, strings.Join(window, ""))
	}
	return out
}

// hardCut slices text into fixed windows on rune boundaries. Last resort when
// no separator matched.
func (s *splitter) hardCut(text string) []string {
	runes := []rune(text)
	step := s.size - s.overlap
	if step <= 0 {
		step = s.size
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// pickSeparator returns the coarsest separator present in text and the finer
// ones left for recursion. The empty separator always matches.
func pickSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}
