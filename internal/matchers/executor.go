// internal/matchers/executor.go

// Package matchers judges actual values against matching rules, one value at
// a time (Match) or recursively over JSON documents (CompareJSON).
package matchers

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/goccy/go-json"
	"golang.org/x/mod/semver"

	"github.com/pact-foundation/pactengine/internal/docpath"
	"github.com/pact-foundation/pactengine/internal/javatime"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/matchingrules"
)

/*
 * Single value matching.
 *
 * Values are the JSON document model (nil, bool, json.Number, string, []any,
 * map[string]any) plus the plain Go values the engine unwraps from its node
 * values: []string, map[string][]string, []byte and unsigned integers.
 *
 * Every check returns the mismatches it found; an empty slice is a match.
 * Container-level rules (values, eachKey, eachValue, arrayContains) never
 * fail a value directly. The structural comparator applies them while
 * descending into the container.
 *
 * Regular expressions are compiled with regexp2 so contract patterns written
 * for Java (lookarounds, possessive classes) behave as authored. A pattern
 * must match the whole value.
 */

var (
	integerPattern = regexp.MustCompile(`^-?\d+$`)
	decimalPattern = regexp.MustCompile(`^0$|^-?\d+\.\d*$`)
	booleanPattern = regexp.MustCompile(`^(true|false)$`)
)

// Mismatch is one failed expectation.
type Mismatch struct {
	Path     string
	Expected any
	Actual   any
	Message  string
	Diff     string
}

func (m Mismatch) String() string {
	return m.Path + ": " + m.Message
}

func mismatch(path []string, expected, actual any, format string, args ...any) []Mismatch {
	return []Mismatch{{
		Path:     docpath.ConstructPath(path),
		Expected: expected,
		Actual:   actual,
		Message:  fmt.Sprintf(format, args...),
	}}
}

// Messages joins the mismatch messages with ", ".
func Messages(mismatches []Mismatch) string {
	msgs := make([]string, len(mismatches))
	for i, m := range mismatches {
		msgs[i] = m.Message
	}
	return strings.Join(msgs, ", ")
}

// MatchGroup applies every rule of the group. With OR logic one passing
// rule is enough.
func MatchGroup(group *matchingrules.MatchingRuleGroup, path []string, expected, actual any, ctx *Context) []Mismatch {
	if group == nil {
		return nil
	}
	var all []Mismatch
	anyPassed := false
	for _, rule := range group.Rules {
		result := Match(rule, path, expected, actual, group.Cascaded, ctx)
		if len(result) == 0 {
			anyPassed = true
		}
		all = append(all, result...)
	}
	if group.Logic == matchingrules.LogicOr && anyPassed {
		return nil
	}
	return all
}

// Match applies one rule to a value. cascaded is set when the rule was
// inherited from a parent path, which disables the size checks of the
// min/max rules.
func Match(rule matchingrules.MatchingRule, path []string, expected, actual any, cascaded bool, ctx *Context) []Mismatch {
	slog.Debug("matching value", "path", path, "rule", rule.Name(), "actual", valueOf(actual))
	switch r := rule.(type) {
	case matchingrules.EqualityMatcher:
		return matchEquality(path, expected, actual)
	case matchingrules.RegexMatcher:
		return matchRegex(r.Regex, path, expected, actual)
	case matchingrules.TypeMatcher:
		return matchType(path, expected, actual, true)
	case matchingrules.NotEmptyMatcher:
		return matchType(path, expected, actual, false)
	case matchingrules.MinTypeMatcher:
		return matchMinType(r.Min, path, expected, actual, cascaded)
	case matchingrules.MaxTypeMatcher:
		return matchMaxType(r.Max, path, expected, actual, cascaded)
	case matchingrules.MinMaxTypeMatcher:
		return append(matchMinType(r.Min, path, expected, actual, cascaded),
			matchMaxType(r.Max, path, expected, actual, cascaded)...)
	case matchingrules.NumberTypeMatcher:
		return matchNumber(r.Kind, path, expected, actual, ctx)
	case matchingrules.BooleanMatcher:
		return matchBoolean(path, expected, actual)
	case matchingrules.DateMatcher:
		return matchDate("date", r.Format, path, expected, actual)
	case matchingrules.TimeMatcher:
		return matchDate("time", r.Format, path, expected, actual)
	case matchingrules.TimestampMatcher:
		return matchTimestamp(r.Format, path, expected, actual)
	case matchingrules.IncludeMatcher:
		return matchInclude(r.Value, path, expected, actual)
	case matchingrules.NullMatcher:
		return matchNull(path, actual)
	case matchingrules.SemverMatcher:
		return matchSemver(path, expected, actual)
	case matchingrules.IgnoreOrderMatcher:
		return matchIgnoreOrder(r, path, expected, actual)
	case matchingrules.ContentTypeMatcher:
		return matchContentType(r.ContentType, path, actual)
	case matchingrules.StatusCodeMatcher:
		return matchStatusCode(r, path, expected, actual)
	case matchingrules.ArrayContainsMatcher, matchingrules.EachKeyMatcher,
		matchingrules.EachValueMatcher, matchingrules.ValuesMatcher:
		return nil
	default:
		return matchEquality(path, expected, actual)
	}
}

// valueOf renders a value for mismatch messages.
func valueOf(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return "'" + t + "'"
	case []byte:
		return fmt.Sprintf("%v", t)
	case []string:
		return "[" + strings.Join(t, ", ") + "]"
	case bool, json.Number, []any, map[string]any:
		return jsondoc.Serialise(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// typeOf names the kind of a value for mismatch messages.
func typeOf(v any) string {
	switch t := v.(type) {
	case nil:
		return "Null"
	case bool:
		return "Boolean"
	case json.Number:
		if jsondoc.IsInteger(t) {
			return "Integer"
		}
		return "Decimal"
	case int, int64, uint64:
		return "Integer"
	case float64:
		return "Decimal"
	case string:
		return "String"
	case []any, []string:
		return "Array"
	case map[string]any, map[string][]string:
		return "Object"
	case []byte:
		return fmt.Sprintf("%d bytes", len(t))
	default:
		return fmt.Sprintf("%T", v)
	}
}

// safeToString returns the text of a value: strings unquoted, documents
// serialised and nil as empty.
func safeToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool, json.Number, []any, map[string]any:
		return jsondoc.Serialise(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case json.Number, int, int64, uint64, float64:
		return true
	}
	return false
}

func isCollection(v any) bool {
	switch v.(type) {
	case []any, []string, map[string]any, map[string][]string:
		return true
	}
	return false
}

func isList(v any) bool {
	switch v.(type) {
	case []any, []string:
		return true
	}
	return false
}

func isMap(v any) bool {
	switch v.(type) {
	case map[string]any, map[string][]string:
		return true
	}
	return false
}

func sizeOf(v any) (int, bool) {
	switch t := v.(type) {
	case []any:
		return len(t), true
	case []string:
		return len(t), true
	}
	return 0, false
}

func valuesEqual(expected, actual any) bool {
	if e, ok := expected.([]byte); ok {
		a, ok := actual.([]byte)
		return ok && bytes.Equal(e, a)
	}
	if isNumber(expected) && isNumber(actual) {
		return jsondoc.NumbersEqual(jsondoc.Normalise(expected).(json.Number), jsondoc.Normalise(actual).(json.Number))
	}
	return jsondoc.Equal(jsondoc.Normalise(expected), jsondoc.Normalise(actual))
}

func matchEquality(path []string, expected, actual any) []Mismatch {
	matches := valuesEqual(expected, actual)
	slog.Debug("comparing values for equality", "path", path, "actual", valueOf(actual), "expected", valueOf(expected), "matches", matches)
	if matches {
		return nil
	}
	return mismatch(path, expected, actual, "Expected %s (%s) to be equal to %s (%s)",
		valueOf(actual), typeOf(actual), valueOf(expected), typeOf(expected))
}

const (
	// RegexTimeout bounds a single regex match so rules from requests cannot
	// backtrack without limit.
	RegexTimeout = time.Second

	maxCachedPatterns = 512
)

// patternCache holds compiled patterns. It is emptied when full.
type patternCache struct {
	mu       sync.Mutex
	patterns map[string]*regexp2.Regexp
}

var regexCache = &patternCache{patterns: make(map[string]*regexp2.Regexp)}

func (c *patternCache) get(pattern string) (*regexp2.Regexp, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	re, ok := c.patterns[pattern]
	return re, ok
}

func (c *patternCache) put(pattern string, re *regexp2.Regexp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.patterns) >= maxCachedPatterns {
		clear(c.patterns)
	}
	c.patterns[pattern] = re
}

func (c *patternCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.patterns)
}

func compileRegex(pattern string) (*regexp2.Regexp, error) {
	if re, ok := regexCache.get(pattern); ok {
		return re, nil
	}
	re, err := regexp2.Compile(`\A(?:`+pattern+`)\z`, regexp2.None)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = RegexTimeout
	regexCache.put(pattern, re)
	return re, nil
}

// RegexMatches reports whether value matches pattern in full.
func RegexMatches(pattern, value string) (bool, error) {
	re, err := compileRegex(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(value)
}

func matchRegex(pattern string, path []string, expected, actual any) []Mismatch {
	if (isList(expected) && isList(actual)) || (isMap(expected) && isMap(actual)) {
		return nil
	}
	matches := false
	if actual != nil {
		ok, err := RegexMatches(pattern, safeToString(actual))
		if err != nil {
			return mismatch(path, expected, actual, "Invalid regular expression '%s': %v", pattern, err)
		}
		matches = ok
	}
	slog.Debug("comparing value with regex", "path", path, "actual", valueOf(actual), "regex", pattern, "matches", matches)
	if matches {
		return nil
	}
	return mismatch(path, expected, actual, "Expected %s to match '%s'", valueOf(actual), pattern)
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case []byte:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case map[string][]string:
		return len(t) == 0
	}
	return false
}

func sameShape(expected, actual any) bool {
	switch expected.(type) {
	case string:
		_, ok := actual.(string)
		return ok
	case []byte:
		_, ok := actual.([]byte)
		return ok
	}
	return (isList(expected) && isList(actual)) || (isMap(expected) && isMap(actual))
}

func matchType(path []string, expected, actual any, allowEmpty bool) []Mismatch {
	slog.Debug("comparing value types", "path", path, "actual", typeOf(actual), "expected", typeOf(expected))
	_, expectedBool := expected.(bool)
	_, actualBool := actual.(bool)
	switch {
	case isNumber(expected) && isNumber(actual), expectedBool && actualBool:
		return nil
	case sameShape(expected, actual):
		if !allowEmpty && isEmptyValue(actual) {
			return mismatch(path, expected, actual, "Expected %s (%s) to not be empty", valueOf(actual), typeOf(actual))
		}
		return nil
	case expected == nil:
		if actual == nil {
			return nil
		}
		return mismatch(path, expected, actual, "Expected %s (%s) to be a null value", valueOf(actual), typeOf(actual))
	}
	return mismatch(path, expected, actual, "Expected %s (%s) to be the same type as %s (%s)",
		valueOf(actual), typeOf(actual), valueOf(expected), typeOf(expected))
}

func matchMinType(min int, path []string, expected, actual any, cascaded bool) []Mismatch {
	if size, ok := sizeOf(actual); ok && !cascaded {
		if size < min {
			return mismatch(path, expected, actual, "Expected %s (size %d) to have minimum size of %d", valueOf(actual), size, min)
		}
		return nil
	}
	return matchType(path, expected, actual, true)
}

func matchMaxType(max int, path []string, expected, actual any, cascaded bool) []Mismatch {
	if size, ok := sizeOf(actual); ok && !cascaded {
		if size > max {
			return mismatch(path, expected, actual, "Expected %s (size %d) to have maximum size of %d", valueOf(actual), size, max)
		}
		return nil
	}
	return matchType(path, expected, actual, true)
}

func matchIgnoreOrder(rule matchingrules.IgnoreOrderMatcher, path []string, expected, actual any) []Mismatch {
	actualSize, actualList := sizeOf(actual)
	if !actualList {
		return matchEquality(path, expected, actual)
	}
	if rule.Min == 0 && rule.Max == 0 {
		expectedSize, expectedList := sizeOf(expected)
		if !expectedList {
			return matchEquality(path, expected, actual)
		}
		if expectedSize != actualSize {
			return mismatch(path, expected, actual, "Expected %s to have %d elements", valueOf(actual), expectedSize)
		}
		return nil
	}
	var out []Mismatch
	if rule.Min > 0 && actualSize < rule.Min {
		out = append(out, mismatch(path, expected, actual, "Expected %s (size %d) to have minimum size of %d", valueOf(actual), actualSize, rule.Min)...)
	}
	if rule.Max > 0 && actualSize > rule.Max {
		out = append(out, mismatch(path, expected, actual, "Expected %s (size %d) to have maximum size of %d", valueOf(actual), actualSize, rule.Max)...)
	}
	return out
}

func matchNumber(kind matchingrules.NumberKind, path []string, expected, actual any, ctx *Context) []Mismatch {
	coerce := ctx != nil && ctx.CoerceNumbers
	switch kind {
	case matchingrules.NumberInteger:
		if !isIntegerValue(actual, coerce) {
			return mismatch(path, expected, actual, "Expected %s (%s) to be an integer", valueOf(actual), typeOf(actual))
		}
	case matchingrules.NumberDecimal:
		if !isDecimalValue(actual, coerce) {
			return mismatch(path, expected, actual, "Expected %s (%s) to be a decimal number", valueOf(actual), typeOf(actual))
		}
	default:
		if !isIntegerValue(actual, coerce) && !isDecimalValue(actual, coerce) {
			return mismatch(path, expected, actual, "Expected %s (%s) to be a number", valueOf(actual), typeOf(actual))
		}
	}
	return nil
}

func isIntegerValue(v any, coerce bool) bool {
	switch t := v.(type) {
	case int, int64, uint64:
		return true
	case json.Number:
		return jsondoc.IsInteger(t)
	case string:
		return coerce && integerPattern.MatchString(t)
	}
	return false
}

func isDecimalValue(v any, coerce bool) bool {
	switch t := v.(type) {
	case int:
		return t == 0
	case float64:
		return true
	case json.Number:
		if jsondoc.IsInteger(t) {
			return decimalPattern.MatchString(string(t))
		}
		return true
	case string:
		return coerce && decimalPattern.MatchString(t)
	}
	return false
}

func matchBoolean(path []string, expected, actual any) []Mismatch {
	switch t := actual.(type) {
	case nil:
		if expected == nil {
			return nil
		}
	case bool:
		return nil
	case string:
		if booleanPattern.MatchString(t) {
			return nil
		}
	case []any, []string, map[string]any, map[string][]string:
		return nil
	}
	return mismatch(path, expected, actual, "Expected %s (%s) to match a boolean", valueOf(actual), typeOf(actual))
}

func matchDate(kind, pattern string, path []string, expected, actual any) []Mismatch {
	if isCollection(actual) {
		return nil
	}
	if _, err := javatime.Parse(pattern, safeToString(actual)); err != nil {
		return mismatch(path, expected, actual, "Expected %s to match a %s pattern of '%s': %v", valueOf(actual), kind, pattern, err)
	}
	return nil
}

func matchTimestamp(pattern string, path []string, expected, actual any) []Mismatch {
	if isCollection(actual) {
		return nil
	}
	if strings.HasSuffix(pattern, "Z") {
		slog.Warn(fmt.Sprintf("Found unsupported UTC designator in pattern '%s'. Replacing non quote 'Z's with 'X's", pattern))
		converted := replaceUnquoted(pattern, 'Z', 'X')
		if _, err := javatime.Parse(converted, safeToString(actual)); err == nil {
			return nil
		}
	}
	if _, err := javatime.Parse(pattern, safeToString(actual)); err != nil {
		return mismatch(path, expected, actual, "Expected %s to match a datetime pattern of '%s': %v", valueOf(actual), pattern, err)
	}
	return nil
}

// replaceUnquoted replaces pattern letters outside quoted literals.
func replaceUnquoted(pattern string, from, to rune) string {
	var b strings.Builder
	quoted := false
	for _, c := range pattern {
		if c == '\'' {
			quoted = !quoted
		}
		if c == from && !quoted {
			c = to
		}
		b.WriteRune(c)
	}
	return b.String()
}

func matchInclude(value string, path []string, expected, actual any) []Mismatch {
	if strings.Contains(safeToString(actual), value) {
		return nil
	}
	return mismatch(path, expected, actual, "Expected %s to include %s", valueOf(actual), valueOf(value))
}

func matchNull(path []string, actual any) []Mismatch {
	if actual == nil {
		return nil
	}
	return mismatch(path, nil, actual, "Expected %s (%s) to be a null value", valueOf(actual), typeOf(actual))
}

// IsSemver reports whether s is a full semantic version (major.minor.patch
// with optional pre-release and build metadata).
func IsSemver(s string) bool {
	if !semver.IsValid("v" + s) {
		return false
	}
	core := s
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	return strings.Count(core, ".") == 2
}

func matchSemver(path []string, expected, actual any) []Mismatch {
	if IsSemver(safeToString(actual)) {
		return nil
	}
	return mismatch(path, expected, actual, "%s is not a valid semantic version", valueOf(actual))
}

func statusOf(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case uint64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(t)
		return i, err == nil
	}
	return 0, false
}

func matchStatusCode(rule matchingrules.StatusCodeMatcher, path []string, expected, actual any) []Mismatch {
	code, ok := statusOf(actual)
	if ok && rule.Status.Matches(code, rule.Codes) {
		return nil
	}
	if rule.Status == matchingrules.StatusCodes {
		return mismatch(path, expected, actual, "Expected status code %s to be one of %v", valueOf(actual), rule.Codes)
	}
	return mismatch(path, expected, actual, "Expected status code %s to be a '%s' status", valueOf(actual), rule.Status)
}
