// internal/docpath/resolve.go
package docpath

import (
	"strconv"
	"strings"

	"github.com/pact-foundation/pactengine/internal/jsondoc"
)

/*
 * JSON resolution walks a document following the path tokens. Star fans out
 * over object entries in sorted key order and StarIndex over array
 * elements, so one expression can match many locations. Each match is
 * reported as an RFC 6901 pointer; the root itself is never reported.
 */

// ResolveJSON returns the JSON pointers of every location in doc matched by
// the path, in evaluation order.
func (p DocPath) ResolveJSON(doc any) []string {
	var out []string
	walkJSON(p.tokens, doc, nil, func(segments []string, _ any) {
		if len(segments) > 0 {
			out = append(out, "/"+strings.Join(segments, "/"))
		}
	})
	return out
}

// Match is one location matched by Visit.
type Match struct {
	Segments []string
	Value    any
}

// Visit calls fn for every location in doc matched by the path. Segments
// are the pointer-escaped keys and indexes leading to the value.
func (p DocPath) Visit(doc any, fn func(Match)) {
	walkJSON(p.tokens, doc, nil, func(segments []string, v any) {
		fn(Match{Segments: segments, Value: v})
	})
}

// Fetch returns the first value matched by the path.
func (p DocPath) Fetch(doc any) (any, bool) {
	var (
		value any
		found bool
	)
	p.Visit(doc, func(m Match) {
		if !found {
			value, found = m.Value, true
		}
	})
	return value, found
}

func walkJSON(tokens []Token, current any, segments []string, fn func([]string, any)) {
	for i, t := range tokens {
		switch t.Kind {
		case Field:
			obj, ok := current.(map[string]any)
			if !ok {
				return
			}
			v, ok := obj[t.Name]
			if !ok {
				return
			}
			current = v
			segments = appendSegment(segments, jsondoc.EscapePointerToken(t.Name))
		case Index:
			arr, ok := current.([]any)
			if !ok || t.Index >= len(arr) {
				return
			}
			current = arr[t.Index]
			segments = appendSegment(segments, strconv.Itoa(t.Index))
		case Star:
			obj, ok := current.(map[string]any)
			if !ok {
				return
			}
			for _, k := range jsondoc.SortedKeys(obj) {
				walkJSON(tokens[i+1:], obj[k], appendSegment(segments, jsondoc.EscapePointerToken(k)), fn)
			}
			return
		case StarIndex:
			arr, ok := current.([]any)
			if !ok {
				return
			}
			for idx, item := range arr {
				walkJSON(tokens[i+1:], item, appendSegment(segments, strconv.Itoa(idx)), fn)
			}
			return
		}
	}
	fn(segments, current)
}

// appendSegment never aliases the caller's backing array, since sibling
// branches of a fan-out share the prefix.
func appendSegment(segments []string, s string) []string {
	out := make([]string, len(segments), len(segments)+1)
	copy(out, segments)
	return append(out, s)
}
