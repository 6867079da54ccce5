// internal/matchers/compare.go
package matchers

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/pact-foundation/pactengine/internal/docpath"
	"github.com/pact-foundation/pactengine/internal/generators"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/matchingrules"
)

/*
 * Structural comparison of JSON documents.
 *
 * Objects: keys are checked by MatchKeys, then every expected key present in
 * the actual object is compared recursively. With a values or eachValue
 * rule, every actual entry is compared against the expected entry of the
 * same key, or the first expected entry when the key is not expected.
 *
 * Arrays: with no rule, elements compare pairwise and the sizes must agree.
 * With a rule, the rule is applied to the whole array and then:
 *   ignore-order   a permutation of actual elements matching the expected
 *                  elements is searched for (memoised backtracking)
 *   arrayContains  every variant must match at least one actual element
 *   otherwise      the expected list is padded with its first element to
 *                  the actual size and compared pairwise
 *
 * Scalars: the best rule for the path, or equality when none applies.
 *
 * Every mismatch carries the path it was found at; mismatches on containers
 * also carry a line diff of the two documents.
 */

// ItemCompare compares one pair of elements at path.
type ItemCompare func(path []string, expected, actual any, ctx *Context) []Mismatch

// CompareJSON compares two documents below path (normally ["$"]).
func CompareJSON(ctx *Context, path []string, expected, actual any) []Mismatch {
	e, expectedObj := expected.(map[string]any)
	a, actualObj := actual.(map[string]any)
	if expectedObj && actualObj {
		return compareMaps(ctx, path, e, a)
	}
	el, expectedArr := expected.([]any)
	al, actualArr := actual.([]any)
	if expectedArr && actualArr {
		return compareArrays(ctx, path, el, al)
	}
	if expectedObj || expectedArr {
		return []Mismatch{{
			Path:     strings.Join(path, "."),
			Expected: expected,
			Actual:   actual,
			Message: fmt.Sprintf("Type mismatch: Expected %s %s but received %s %s",
				bodyTypeOf(expected), valueOf(expected), bodyTypeOf(actual), valueOf(actual)),
			Diff: JSONDiff(expected, actual),
		}}
	}
	return compareValues(ctx, path, expected, actual)
}

func compareItem(path []string, expected, actual any, ctx *Context) []Mismatch {
	return CompareJSON(ctx, path, expected, actual)
}

func bodyTypeOf(v any) string {
	switch v.(type) {
	case map[string]any:
		return "Map"
	case []any:
		return "List"
	}
	return typeOf(v)
}

// JSONDiff renders a line diff between two documents.
func JSONDiff(expected, actual any) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(jsondoc.Pretty(expected), jsondoc.Pretty(actual))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	var out strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix + line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteString("\n")
			}
		}
	}
	return out.String()
}

func compareValues(ctx *Context, path []string, expected, actual any) []Mismatch {
	if ctx.MatcherDefined(path) {
		slog.Debug("compareValues: matcher defined", "path", path)
		return MatchGroup(ctx.SelectBestMatcher(path), path, expected, actual, ctx)
	}
	if jsondoc.Equal(expected, actual) {
		return nil
	}
	return []Mismatch{{
		Path:     strings.Join(path, "."),
		Expected: expected,
		Actual:   actual,
		Message: fmt.Sprintf("Expected %s (%s) but received %s (%s)",
			valueOf(expected), typeOf(expected), valueOf(actual), typeOf(actual)),
	}}
}

func compareMaps(ctx *Context, path []string, expected, actual map[string]any) []Mismatch {
	diff := func() string { return JSONDiff(expected, actual) }
	if len(expected) == 0 && len(actual) > 0 && !ctx.AllowUnexpectedKeys {
		return []Mismatch{{
			Path:     strings.Join(path, "."),
			Expected: expected,
			Actual:   actual,
			Message:  "Expected an empty Map but received " + valueOf(actual),
			Diff:     diff(),
		}}
	}
	if !ctx.MatcherDefined(path) {
		out := MatchKeys(ctx, path, expected, actual, diff)
		for _, key := range sortedKeys(expected) {
			if av, ok := actual[key]; ok {
				out = append(out, CompareJSON(ctx, appendPath(path, key), expected[key], av)...)
			}
		}
		return out
	}
	var out []Mismatch
	for _, rule := range ctx.SelectBestMatcher(path).Rules {
		out = append(out, CompareMaps(ctx, path, rule, expected, actual, diff, compareItem)...)
	}
	return out
}

// CompareMaps compares two maps governed by rule.
func CompareMaps[T any](ctx *Context, path []string, rule matchingrules.MatchingRule, expected, actual map[string]T,
	diff func() string, compare func(path []string, expected, actual any, ctx *Context) []Mismatch) []Mismatch {
	var out []Mismatch
	switch rule.(type) {
	case matchingrules.ValuesMatcher, matchingrules.EachValueMatcher:
		var first any
		if keys := sortedKeys(expected); len(keys) > 0 {
			first = expected[keys[0]]
		}
		for _, key := range sortedKeys(actual) {
			if ev, ok := expected[key]; ok {
				out = append(out, compare(appendPath(path, key), ev, actual[key], ctx)...)
			} else {
				out = append(out, compare(appendPath(path, key), first, actual[key], ctx)...)
			}
		}
	default:
		out = append(out, MatchKeys(ctx, path, expected, actual, diff)...)
		if _, eachKey := rule.(matchingrules.EachKeyMatcher); !eachKey {
			for _, key := range sortedKeys(expected) {
				if av, ok := actual[key]; ok {
					out = append(out, compare(appendPath(path, key), expected[key], av, ctx)...)
				}
			}
		}
	}
	return out
}

func compareArrays(ctx *Context, path []string, expected, actual []any) []Mismatch {
	diff := func() string { return JSONDiff(expected, actual) }
	if ctx.MatcherDefined(path) {
		slog.Debug("compareLists: matcher defined", "path", path)
		group := ctx.SelectBestMatcher(path)
		var out []Mismatch
		for _, rule := range group.Rules {
			out = append(out, CompareLists(ctx, path, rule, expected, actual, diff, group.Cascaded, compareItem)...)
		}
		return out
	}
	if len(expected) == 0 && len(actual) > 0 {
		return []Mismatch{{
			Path:     strings.Join(path, "."),
			Expected: expected,
			Actual:   actual,
			Message:  "Expected an empty List but received " + valueOf(actual),
			Diff:     diff(),
		}}
	}
	out := compareListContent(ctx, path, expected, actual, diff, compareItem)
	if len(expected) != len(actual) {
		out = append(out, Mismatch{
			Path:     strings.Join(path, "."),
			Expected: expected,
			Actual:   actual,
			Message:  fmt.Sprintf("Expected a List with %d elements but received %d elements", len(expected), len(actual)),
			Diff:     diff(),
		})
	}
	return out
}

// CompareLists compares two lists governed by rule.
func CompareLists(ctx *Context, path []string, rule matchingrules.MatchingRule, expected, actual []any,
	diff func() string, cascaded bool, compare ItemCompare) []Mismatch {
	out := Match(rule, path, expected, actual, cascaded, ctx)
	if len(expected) == 0 {
		return out
	}
	switch r := rule.(type) {
	case matchingrules.IgnoreOrderMatcher:
		slog.Debug("compareLists: ignore-order matcher defined", "path", path)
		out = append(out, compareListContentUnordered(ctx, path, expected, actual, diff, compare)...)
	case matchingrules.ArrayContainsMatcher:
		out = append(out, compareArrayContains(ctx, path, r, expected, actual, diff, compare)...)
	default:
		padded := make([]any, len(expected), max(len(expected), len(actual)))
		copy(padded, expected)
		for len(padded) < len(actual) {
			padded = append(padded, expected[0])
		}
		out = append(out, compareListContent(ctx, path, padded, actual, diff, compare)...)
	}
	return out
}

func compareArrayContains(ctx *Context, path []string, rule matchingrules.ArrayContainsMatcher, expected, actual []any,
	diff func() string, compare ItemCompare) []Mismatch {
	variants := rule.Variants
	if len(variants) == 0 {
		for i := range expected {
			variants = append(variants, matchingrules.Variant{
				Index: i,
				Rules: matchingrules.NewCategory("body").AddRule("", matchingrules.EqualityMatcher{}, matchingrules.LogicAnd),
			})
		}
	}
	var out []Mismatch
	for i, variant := range variants {
		if i >= len(expected) {
			out = append(out, Mismatch{
				Path:     docpath.ConstructPath(path),
				Expected: expected,
				Actual:   actual,
				Message: fmt.Sprintf("ArrayContains: variant %d is missing from the expected list, which has %d items",
					i, len(expected)),
				Diff: diff(),
			})
			continue
		}
		variantCtx := &Context{Rules: variant.Rules, AllowUnexpectedKeys: ctx.AllowUnexpectedKeys, CoerceNumbers: ctx.CoerceNumbers}
		if variantCtx.Rules == nil {
			variantCtx.Rules = matchingrules.NewCategory("body")
		}
		found := false
		for j, element := range actual {
			mismatches := compare([]string{"$"}, expected[i], element, variantCtx)
			slog.Debug("comparing list item to variant", "index", j, "variant", i, "mismatches", len(mismatches))
			if len(mismatches) == 0 {
				found = true
				break
			}
		}
		if !found {
			out = append(out, Mismatch{
				Path:     docpath.ConstructPath(path),
				Expected: expected[i],
				Actual:   actual,
				Message:  fmt.Sprintf("Variant at index %d (%s) was not found in the actual list", i, valueOf(expected[i])),
				Diff:     diff(),
			})
		}
	}
	return out
}

func compareListContent(ctx *Context, path []string, expected, actual []any, diff func() string, compare ItemCompare) []Mismatch {
	var out []Mismatch
	for i, value := range expected {
		if i < len(actual) {
			out = append(out, compare(appendPath(path, strconv.Itoa(i)), value, actual[i], ctx)...)
		} else if !ctx.MatcherDefined(path) {
			out = append(out, Mismatch{
				Path:     docpath.ConstructPath(path),
				Expected: expected,
				Actual:   actual,
				Message:  fmt.Sprintf("Expected %s but was missing", valueOf(value)),
				Diff:     diff(),
			})
		}
	}
	return out
}

// compareListContentUnordered searches for an assignment of actual elements
// to expected elements in which every pair matches. Surplus actual elements
// must satisfy any rule declared directly on their index. Pair comparisons
// are memoised and each set of remaining actual indices is examined once.
func compareListContentUnordered(ctx *Context, path []string, expected, actual []any, diff func() string, compare ItemCompare) []Mismatch {
	pairs := make(map[[2]int][]Mismatch)
	comparePair := func(e, a int) []Mismatch {
		key := [2]int{e, a}
		if m, ok := pairs[key]; ok {
			return m
		}
		m := compare(appendPath(path, strconv.Itoa(e)), expected[e], actual[a], ctx)
		pairs[key] = m
		return m
	}
	surplus := make(map[int][]Mismatch)
	compareSurplus := func(a int) []Mismatch {
		if m, ok := surplus[a]; ok {
			return m
		}
		var m []Mismatch
		indexPath := appendPath(path, strconv.Itoa(a))
		if ctx.DirectMatcherDefined(indexPath) {
			m = compare(indexPath, expected[0], actual[a], ctx)
		}
		surplus[a] = m
		return m
	}

	examined := make(map[string]bool)
	longest := 0
	var longestRemaining []bool

	var search func(e int, remaining []bool) bool
	search = func(e int, remaining []bool) bool {
		key := comboKey(remaining)
		if examined[key] {
			return false
		}
		examined[key] = true
		if longestRemaining == nil || e > longest {
			longest, longestRemaining = e, remaining
		}
		if e < len(expected) {
			for a, free := range remaining {
				if !free || len(comparePair(e, a)) > 0 {
					continue
				}
				next := append([]bool(nil), remaining...)
				next[a] = false
				if search(e+1, next) {
					return true
				}
			}
			return false
		}
		if len(actual) > len(expected) {
			for a, free := range remaining {
				if free && len(compareSurplus(a)) > 0 {
					return false
				}
			}
		}
		return true
	}

	all := make([]bool, len(actual))
	for i := range all {
		all[i] = true
	}
	if search(0, all) {
		return nil
	}

	out := []Mismatch{{
		Path:     docpath.ConstructPath(path),
		Expected: expected,
		Actual:   actual,
		Message: fmt.Sprintf("Expected %s to match %s ignoring order of elements",
			jsondoc.Serialise(expected), jsondoc.Serialise(actual)),
		Diff: diff(),
	}}
	var remaining []Mismatch
	for a, free := range longestRemaining {
		if !free {
			continue
		}
		for e := longest; e < len(expected); e++ {
			remaining = append(remaining, comparePair(e, a)...)
		}
		if len(actual) > len(expected) {
			remaining = append(remaining, compareSurplus(a)...)
		}
	}
	return append(out, groupByPath(remaining)...)
}

func comboKey(remaining []bool) string {
	b := make([]byte, len(remaining))
	for i, free := range remaining {
		if free {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b)
}

// groupByPath orders mismatches by the first appearance of their path.
func groupByPath(mismatches []Mismatch) []Mismatch {
	var order []string
	byPath := make(map[string][]Mismatch)
	for _, m := range mismatches {
		if _, seen := byPath[m.Path]; !seen {
			order = append(order, m.Path)
		}
		byPath[m.Path] = append(byPath[m.Path], m)
	}
	out := make([]Mismatch, 0, len(mismatches))
	for _, p := range order {
		out = append(out, byPath[p]...)
	}
	return out
}

// VariantMatcher judges array elements against array-contains variants for
// the generators. An element matches a variant when comparing the variant's
// example (the element itself) under the variant rules yields no mismatch.
func VariantMatcher(allowUnexpectedKeys bool) generators.VariantMatcher {
	return func(variant generators.ArrayContainsVariant, element any) bool {
		rules, ok := variant.Rules.(*matchingrules.Category)
		if !ok || rules == nil {
			rules = matchingrules.NewCategory("body")
		}
		ctx := &Context{Rules: rules, AllowUnexpectedKeys: allowUnexpectedKeys}
		return len(CompareJSON(ctx, []string{"$"}, element, element)) == 0
	}
}
