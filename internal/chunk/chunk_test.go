package chunk

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestChunker_Split_Dispatch(t *testing.T) {
	c := New(1000, 100)

	t.Run("empty content yields no pieces", func(t *testing.T) {
		if got := c.Split("main.go", ""); got != nil {
			t.Errorf("Expected nil pieces, got %v", got)
		}
		if got := c.Split("main.go", "   \n\t "); got != nil {
			t.Errorf("Expected nil pieces for whitespace, got %v", got)
		}
	})

	t.Run("non-utf8 content yields no pieces", func(t *testing.T) {
		if got := c.Split("blob.bin", "hello\xff\xfeworld"); got != nil {
			t.Errorf("Expected nil pieces for invalid UTF-8, got %v", got)
		}
	})

	t.Run("small file is a single piece", func(t *testing.T) {
		content := "print('hello world')"
		pieces := c.Split("app.py", content)
		if len(pieces) != 1 {
			t.Fatalf("Expected 1 piece, got %d", len(pieces))
		}
		if pieces[0].Content != content {
			t.Errorf("Expected content to be preserved, got %q", pieces[0].Content)
		}
		if pieces[0].Metadata["language"] != "python" {
			t.Errorf("Expected python language metadata, got %v", pieces[0].Metadata)
		}
	})

	t.Run("known language extensions carry language metadata", func(t *testing.T) {
		tests := []struct {
			path     string
			expected string
		}{
			{"main.go", "go"},
			{"app.js", "javascript"},
			{"app.ts", "typescript"},
			{"Main.java", "java"},
			{"lib.rs", "rust"},
			{"script.rb", "ruby"},
		}
		for _, tt := range tests {
			pieces := c.Split(tt.path, "some content")
			if len(pieces) != 1 {
				t.Fatalf("Split(%s): expected 1 piece, got %d", tt.path, len(pieces))
			}
			if pieces[0].Metadata["language"] != tt.expected {
				t.Errorf("Split(%s): expected language %q, got %v", tt.path, tt.expected, pieces[0].Metadata)
			}
		}
	})

	t.Run("unknown extension has no metadata", func(t *testing.T) {
		pieces := c.Split("notes.txt", "plain text content")
		if len(pieces) != 1 {
			t.Fatalf("Expected 1 piece, got %d", len(pieces))
		}
		if pieces[0].Metadata != nil {
			t.Errorf("Expected nil metadata, got %v", pieces[0].Metadata)
		}
	})
}

func TestChunker_SplitGeneral_Bounds(t *testing.T) {
	c := New(100, 20)

	// Paragraphs of words, none individually over the size limit.
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("the quick brown fox jumps over the lazy dog\n\n")
	}
	content := b.String()

	pieces := c.Split("notes.txt", content)
	if len(pieces) < 2 {
		t.Fatalf("Expected multiple pieces, got %d", len(pieces))
	}

	for i, p := range pieces {
		if len(p.Content) > c.Size {
			t.Errorf("Piece %d exceeds size limit: %d > %d", i, len(p.Content), c.Size)
		}
	}
}

// TestChunker_SplitGeneral_Coverage verifies that pieces are verbatim,
// in-order substrings with no gaps, so the original document is recoverable.
func TestChunker_SplitGeneral_Coverage(t *testing.T) {
	c := New(80, 16)
	content := "alpha beta gamma delta\n\nepsilon zeta eta theta iota kappa\n\n" +
		"lambda mu nu xi omicron pi rho sigma tau\n\nupsilon phi chi psi omega " +
		"one two three four five six seven eight nine ten eleven twelve"

	pieces := c.Split("doc.txt", content)
	if len(pieces) < 2 {
		t.Fatalf("Expected multiple pieces, got %d", len(pieces))
	}

	prevStart, prevEnd := 0, 0
	for i, p := range pieces {
		idx := strings.Index(content[prevStart:], p.Content)
		if idx < 0 {
			t.Fatalf("Piece %d is not a substring of the input: %q", i, p.Content)
		}
		start := prevStart + idx
		if i > 0 && start > prevEnd {
			t.Errorf("Gap before piece %d: starts at %d, previous ended at %d", i, start, prevEnd)
		}
		prevStart, prevEnd = start, start+len(p.Content)
	}
	if prevEnd != len(content) {
		t.Errorf("Last piece ends at %d, want %d", prevEnd, len(content))
	}
	if first := pieces[0].Content; !strings.HasPrefix(content, first) {
		t.Errorf("First piece is not a prefix of the input")
	}
}

func TestChunker_SplitGeneral_Overlap(t *testing.T) {
	c := New(50, 20)
	content := strings.Repeat("word ", 60) // 300 chars of uniform words

	pieces := c.Split("doc.txt", content)
	if len(pieces) < 3 {
		t.Fatalf("Expected several pieces, got %d", len(pieces))
	}

	// Consecutive pieces share a tail/head overlap.
	for i := 1; i < len(pieces); i++ {
		prev, cur := pieces[i-1].Content, pieces[i].Content
		overlapped := false
		for n := len(prev); n > 0; n-- {
			if strings.HasPrefix(cur, prev[len(prev)-n:]) {
				overlapped = n > 0
				break
			}
		}
		if !overlapped {
			t.Errorf("Pieces %d and %d share no overlap:\n%q\n%q", i-1, i, prev, cur)
		}
	}
}

func TestSplitter_HardCut(t *testing.T) {
	s := newSplitter(10, 2, defaultSeparators)

	// No separators at all forces fixed windows.
	// Windows start at steps of size-overlap: [0:10], [8:18], [16:25].
	text := strings.Repeat("x", 25)
	got := s.split(text)
	if len(got) != 3 {
		t.Fatalf("Expected 3 windows, got %d: %v", len(got), got)
	}
	for i, w := range got[:len(got)-1] {
		if len(w) != 10 {
			t.Errorf("Window %d has length %d, want 10", i, len(w))
		}
	}

	// Multi-byte runes must not be cut mid-sequence.
	unicodeText := strings.Repeat("héllo", 10)
	for _, w := range s.split(unicodeText) {
		if !strings.Contains(unicodeText, w) {
			t.Errorf("Window %q is not a valid substring", w)
		}
	}
}

func TestPickSeparator(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{"a\n\nb", "\n\n"},
		{"a\nb", "\n"},
		{"a b", " "},
		{"ab", ""},
	}
	for _, tt := range tests {
		sep, _ := pickSeparator(tt.text, defaultSeparators)
		if sep != tt.expected {
			t.Errorf("pickSeparator(%q) = %q, want %q", tt.text, sep, tt.expected)
		}
	}
}

func TestChunker_SplitMarkdown(t *testing.T) {
	c := New(1000, 100)

	t.Run("sections carry header lineage", func(t *testing.T) {
		content := "# Title\nintro text\n## Setup\ninstall steps\n### Details\nfine print\n"
		pieces := c.Split("README.md", content)
		if len(pieces) != 3 {
			t.Fatalf("Expected 3 sections, got %d", len(pieces))
		}

		if pieces[0].Metadata["Header 1"] != "Title" {
			t.Errorf("Section 0: expected Header 1 'Title', got %v", pieces[0].Metadata)
		}
		if pieces[1].Metadata["Header 1"] != "Title" || pieces[1].Metadata["Header 2"] != "Setup" {
			t.Errorf("Section 1: expected Title/Setup lineage, got %v", pieces[1].Metadata)
		}
		if pieces[2].Metadata["Header 3"] != "Details" || pieces[2].Metadata["Header 2"] != "Setup" {
			t.Errorf("Section 2: expected full lineage, got %v", pieces[2].Metadata)
		}
	})

	t.Run("sibling header invalidates deeper lineage", func(t *testing.T) {
		content := "# Top\n## First\nbody\n### Deep\nbody\n## Second\nbody\n"
		pieces := c.Split("doc.md", content)
		last := pieces[len(pieces)-1]
		if last.Metadata["Header 2"] != "Second" {
			t.Errorf("Expected Header 2 'Second', got %v", last.Metadata)
		}
		if _, ok := last.Metadata["Header 3"]; ok {
			t.Errorf("Header 3 should be invalidated by sibling Header 2, got %v", last.Metadata)
		}
	})

	t.Run("headers inside code fences are ignored", func(t *testing.T) {
		content := "# Real\nbefore\n```\n# not a header\ncode\n```\nafter\n"
		pieces := c.Split("doc.md", content)
		if len(pieces) != 1 {
			t.Fatalf("Expected 1 section, got %d: %v", len(pieces), pieces)
		}
		if !strings.Contains(pieces[0].Content, "# not a header") {
			t.Errorf("Fenced pseudo-header should stay inside the section")
		}
	})

	t.Run("oversized section is re-split keeping metadata", func(t *testing.T) {
		small := New(100, 10)
		content := "# Big\n" + strings.Repeat("lorem ipsum dolor sit amet ", 20)
		pieces := small.Split("doc.md", content)
		if len(pieces) < 2 {
			t.Fatalf("Expected multiple pieces, got %d", len(pieces))
		}
		for i, p := range pieces {
			if p.Metadata["Header 1"] != "Big" {
				t.Errorf("Piece %d lost header lineage: %v", i, p.Metadata)
			}
		}
	})
}

func TestChunker_SplitJSON(t *testing.T) {
	t.Run("small document is one piece", func(t *testing.T) {
		c := New(1000, 100)
		pieces := c.Split("config.json", `{"name":"app","version":"1.0"}`)
		if len(pieces) != 1 {
			t.Fatalf("Expected 1 piece, got %d", len(pieces))
		}
		if pieces[0].Metadata["format"] != "json" || pieces[0].Metadata["json_path"] != "$" {
			t.Errorf("Expected json metadata at root path, got %v", pieces[0].Metadata)
		}
	})

	t.Run("oversized object splits into valid JSON groups", func(t *testing.T) {
		c := New(30, 0)
		content := `{"a":"xxxxxxxxxx","b":"yyyyyyyyyy","c":"zzzzzzzzzz"}`
		pieces := c.Split("data.json", content)
		if len(pieces) < 2 {
			t.Fatalf("Expected multiple pieces, got %d", len(pieces))
		}

		merged := map[string]string{}
		for i, p := range pieces {
			var part map[string]string
			if err := json.Unmarshal([]byte(p.Content), &part); err != nil {
				t.Fatalf("Piece %d is not valid JSON: %v", i, err)
			}
			for k, v := range part {
				merged[k] = v
			}
			if p.Metadata["json_path"] != "$" {
				t.Errorf("Piece %d: expected path $, got %v", i, p.Metadata)
			}
		}
		if len(merged) != 3 || merged["a"] != "xxxxxxxxxx" || merged["c"] != "zzzzzzzzzz" {
			t.Errorf("Pieces do not reassemble the object: %v", merged)
		}
	})

	t.Run("oversized array groups elements", func(t *testing.T) {
		c := New(40, 0)
		content := `["aaaaaaaaaa","bbbbbbbbbb","cccccccccc","dddddddddd"]`
		pieces := c.Split("list.json", content)
		if len(pieces) < 2 {
			t.Fatalf("Expected multiple pieces, got %d", len(pieces))
		}
		var total int
		for i, p := range pieces {
			var part []string
			if err := json.Unmarshal([]byte(p.Content), &part); err != nil {
				t.Fatalf("Piece %d is not valid JSON: %v", i, err)
			}
			total += len(part)
		}
		if total != 4 {
			t.Errorf("Expected 4 elements across pieces, got %d", total)
		}
	})

	t.Run("invalid JSON falls back to general splitting", func(t *testing.T) {
		c := New(1000, 100)
		pieces := c.Split("broken.json", `{not json at all`)
		if len(pieces) != 1 {
			t.Fatalf("Expected 1 piece, got %d", len(pieces))
		}
		if pieces[0].Metadata != nil {
			t.Errorf("Fallback pieces should have no metadata, got %v", pieces[0].Metadata)
		}
	})
}

func TestNew_Defaults(t *testing.T) {
	c := New(0, 0)
	if c.Size != 1000 {
		t.Errorf("Expected default size 1000, got %d", c.Size)
	}
	c = New(100, 100)
	if c.Overlap >= c.Size {
		t.Errorf("Overlap must stay below size, got %d/%d", c.Overlap, c.Size)
	}
}
