// internal/matchers/context.go
package matchers

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pact-foundation/pactengine/internal/docpath"
	"github.com/pact-foundation/pactengine/internal/matchingrules"
)

/*
 * Rule selection.
 *
 * Body and content rules are keyed by path expressions; a rule applies to a
 * concrete path when its expression matches a prefix of the path. When
 * several apply, the one with the highest path weight wins and ties go to
 * the longer expression. A rule selected for a descendant of the path it
 * was declared on is cascaded.
 *
 * Header, query and metadata rules are keyed by name and apply when every
 * path segment is that name (header names compare case-insensitively).
 * Other categories (path, method, status) hold a single group.
 */

// Context carries the rules of one category and the comparison options.
type Context struct {
	Rules               *matchingrules.Category
	AllowUnexpectedKeys bool
	CoerceNumbers       bool
}

// NewContext returns a context over rules.
func NewContext(rules *matchingrules.Category, allowUnexpectedKeys bool) *Context {
	if rules == nil {
		rules = matchingrules.NewCategory("body")
	}
	return &Context{Rules: rules, AllowUnexpectedKeys: allowUnexpectedKeys}
}

type candidate struct {
	key    string
	expr   docpath.DocPath
	tokens int
	group  *matchingrules.MatchingRuleGroup
}

func (c *Context) resolve(path []string) []candidate {
	if c == nil || c.Rules == nil {
		return nil
	}
	var out []candidate
	for _, key := range c.Rules.Keys() {
		group, _ := c.Rules.Group(key)
		switch c.Rules.Name {
		case "body", "content":
			expr, err := docpath.Parse(key)
			if err != nil {
				slog.Warn(fmt.Sprintf("Ignoring matching rule with invalid path '%s': %v", key, err))
				continue
			}
			if expr.MatchesPath(path) {
				out = append(out, candidate{key: key, expr: expr, tokens: expr.Len(), group: group})
			}
		case "header", "query", "metadata":
			if keyMatches(c.Rules.Name, key, path) {
				out = append(out, candidate{key: key, tokens: len(path), group: group})
			}
		default:
			out = append(out, candidate{key: key, tokens: len(path), group: group})
		}
	}
	return out
}

func keyMatches(category, key string, path []string) bool {
	for _, p := range path {
		if category == "header" {
			if !strings.EqualFold(key, p) {
				return false
			}
		} else if key != p {
			return false
		}
	}
	return true
}

// MatcherDefined reports whether any rule applies to path. A values rule
// only applies to the exact path it was declared on.
func (c *Context) MatcherDefined(path []string) bool {
	for _, cand := range c.resolve(path) {
		if !cand.group.HasRule("values") || cand.tokens == len(path) {
			return true
		}
	}
	return false
}

// DirectMatcherDefined reports whether a rule is declared exactly at path,
// ignoring rules inherited from parents. With names, only groups holding one
// of the named rules count.
func (c *Context) DirectMatcherDefined(path []string, names ...string) bool {
	for _, cand := range c.resolve(path) {
		if cand.tokens != len(path) {
			continue
		}
		if len(names) == 0 || cand.group.HasRule(names...) {
			return true
		}
	}
	return false
}

// TypeMatcherDefined reports whether a type-based rule applies to path.
func (c *Context) TypeMatcherDefined(path []string) bool {
	for _, cand := range c.resolve(path) {
		if cand.group.HasRule("type", "min-type", "max-type", "min-max-type") {
			return true
		}
	}
	return false
}

// SelectBestMatcher returns the group that applies to path, or an empty
// group when none does.
func (c *Context) SelectBestMatcher(path []string) *matchingrules.MatchingRuleGroup {
	candidates := c.resolve(path)
	if c == nil || c.Rules == nil || (c.Rules.Name != "body" && c.Rules.Name != "content") {
		if len(candidates) > 0 {
			return candidates[0].group
		}
		return matchingrules.NewGroup()
	}

	var (
		best       *candidate
		bestWeight int
	)
	for i := range candidates {
		cand := &candidates[i]
		if cand.group.HasRule("values") && cand.tokens != len(path) {
			continue
		}
		weight := cand.expr.Weight(path)
		if weight == 0 {
			continue
		}
		if best == nil || weight > bestWeight || (weight == bestWeight && len(cand.key) > len(best.key)) {
			best, bestWeight = cand, weight
		}
	}
	if best == nil {
		return matchingrules.NewGroup()
	}
	return best.group.WithCascaded(best.tokens < len(path))
}

// MatchKeys compares the keys of two maps. Missing keys always fail;
// unexpected keys fail unless AllowUnexpectedKeys is set. Key checks are
// skipped when a values, eachKey or eachValue rule is declared at path, and
// eachKey rules are applied to every actual key.
func MatchKeys[T any](c *Context, path []string, expected, actual map[string]T, diff func() string) []Mismatch {
	expectedKeys := sortedKeys(expected)
	actualKeys := sortedKeys(actual)
	var missing []string
	for _, k := range expectedKeys {
		if _, ok := actual[k]; !ok {
			missing = append(missing, k)
		}
	}

	var out []Mismatch
	if !c.DirectMatcherDefined(path, "each-key", "each-value", "values") {
		if c.AllowUnexpectedKeys && len(missing) > 0 {
			out = append(out, Mismatch{
				Path:     docpath.ConstructPath(path),
				Expected: expected,
				Actual:   actual,
				Message:  "Actual map is missing the following keys: " + strings.Join(missing, ", "),
				Diff:     diff(),
			})
		} else if !c.AllowUnexpectedKeys && !equalKeys(expectedKeys, actualKeys) {
			out = append(out, Mismatch{
				Path:     docpath.ConstructPath(path),
				Expected: expected,
				Actual:   actual,
				Message: fmt.Sprintf("Expected a Map with keys [%s] but received one with keys [%s]",
					strings.Join(expectedKeys, ", "), strings.Join(actualKeys, ", ")),
				Diff: diff(),
			})
		}
	}

	if c.DirectMatcherDefined(path) {
		for _, rule := range c.SelectBestMatcher(path).Rules {
			eachKey, ok := rule.(matchingrules.EachKeyMatcher)
			if !ok {
				continue
			}
			for _, sub := range eachKey.Definition.Rules {
				for _, key := range actualKeys {
					out = append(out, Match(sub, appendPath(path, key), "", key, false, c)...)
				}
			}
		}
	}
	return out
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func appendPath(path []string, segment string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, segment)
}
