package feed

import (
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed/extensions"
)

// Extension element lookups address nodes with "ns:child.sub" paths;
// a leading "@" on the final segment reads an attribute instead of text.
// Lists expand: the first non-empty match across repeated elements wins.
// Element text is always preferred over attributes unless an attribute is
// addressed explicitly.

func extText(exts ext.Extensions, paths ...string) string {
	for _, path := range paths {
		if v := resolveExtPath(exts, path); v != "" {
			return v
		}
	}
	return ""
}

func resolveExtPath(exts ext.Extensions, path string) string {
	ns, rest, ok := strings.Cut(path, ":")
	if !ok {
		return ""
	}

	parts := strings.Split(rest, ".")
	nodes := exts[ns][parts[0]]

	for _, part := range parts[1:] {
		if attr, isAttr := strings.CutPrefix(part, "@"); isAttr {
			for _, node := range nodes {
				if v := strings.TrimSpace(node.Attrs[attr]); v != "" {
					return v
				}
			}
			return ""
		}

		var next []ext.Extension
		for _, node := range nodes {
			next = append(next, node.Children[part]...)
		}
		nodes = next
	}

	for _, node := range nodes {
		if v := strings.TrimSpace(node.Value); v != "" {
			return v
		}
	}
	return ""
}

func extHasAny(exts ext.Extensions, ns string, keys ...string) bool {
	elems, ok := exts[ns]
	if !ok {
		return false
	}
	for _, key := range keys {
		if len(elems[key]) > 0 {
			return true
		}
	}
	return false
}

// parseIntValue parses the first parseable candidate. Zero is a valid value,
// so absence is a nil pointer rather than 0.
func parseIntValue(candidates ...string) *int {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if n, err := strconv.Atoi(c); err == nil {
			return &n
		}
	}
	return nil
}

// ParseDuration converts H:MM:SS, MM:SS or bare-seconds notation into whole
// seconds. Absent or unparseable values normalize to 0.
func ParseDuration(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return 0
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}

// SplitKeywords splits a comma-separated keyword list, trimming whitespace
// and dropping empty entries.
func SplitKeywords(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var keywords []string
	for _, part := range strings.Split(raw, ",") {
		if k := strings.TrimSpace(part); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}
