package chunk

import (
	"encoding/json"
	"sort"
	"strconv"
)

// splitJSON attempts a parse-aware split that keeps object and array
// boundaries intact up to the target size. If the content is not valid JSON
// it falls back to the general strategy.
func (c *Chunker) splitJSON(content string) []Piece {
	var value any
	if err := json.Unmarshal([]byte(content), &value); err != nil {
		return c.splitGeneral(content, nil)
	}

	var pieces []Piece
	c.walkJSON(value, "$", &pieces)
	return pieces
}

func (c *Chunker) walkJSON(value any, path string, pieces *[]Piece) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if len(raw) <= c.Size {
		*pieces = append(*pieces, Piece{
			Content:  string(raw),
			Metadata: map[string]string{"format": "json", "json_path": path},
		})
		return
	}

	switch v := value.(type) {
	case map[string]any:
		// Emit size-bounded groups of keys; recurse into any single
		// oversized member.
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		group := map[string]any{}
		for _, k := range keys {
			member, _ := json.Marshal(v[k])
			if len(member) > c.Size {
				c.flushJSONGroup(group, path, pieces)
				group = map[string]any{}
				c.walkJSON(v[k], path+"."+k, pieces)
				continue
			}
			group[k] = v[k]
			if grouped, _ := json.Marshal(group); len(grouped) > c.Size {
				delete(group, k)
				c.flushJSONGroup(group, path, pieces)
				group = map[string]any{k: v[k]}
			}
		}
		c.flushJSONGroup(group, path, pieces)
	case []any:
		var group []any
		for i, item := range v {
			member, _ := json.Marshal(item)
			if len(member) > c.Size {
				c.flushJSONArray(group, path, pieces)
				group = nil
				c.walkJSON(item, jsonIndex(path, i), pieces)
				continue
			}
			group = append(group, item)
			if grouped, _ := json.Marshal(group); len(grouped) > c.Size {
				group = group[:len(group)-1]
				c.flushJSONArray(group, path, pieces)
				group = []any{item}
			}
		}
		c.flushJSONArray(group, path, pieces)
	default:
		// A scalar too large for one chunk (a very long string): general split.
		for _, p := range c.splitGeneral(string(raw), map[string]string{"format": "json", "json_path": path}) {
			*pieces = append(*pieces, p)
		}
	}
}

func (c *Chunker) flushJSONGroup(group map[string]any, path string, pieces *[]Piece) {
	if len(group) == 0 {
		return
	}
	raw, err := json.Marshal(group)
	if err != nil {
		return
	}
	*pieces = append(*pieces, Piece{
		Content:  string(raw),
		Metadata: map[string]string{"format": "json", "json_path": path},
	})
}

func (c *Chunker) flushJSONArray(group []any, path string, pieces *[]Piece) {
	if len(group) == 0 {
		return
	}
	raw, err := json.Marshal(group)
	if err != nil {
		return
	}
	*pieces = append(*pieces, Piece{
		Content:  string(raw),
		Metadata: map[string]string{"format": "json", "json_path": path},
	})
}

func jsonIndex(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
