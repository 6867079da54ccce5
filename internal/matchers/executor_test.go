// internal/matchers/executor_test.go
package matchers

import (
	"fmt"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pact-foundation/pactengine/internal/matchingrules"
)

var root = []string{"$"}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		rule     matchingrules.MatchingRule
		expected any
		actual   any
		wantMsg  string
	}{
		{"equality match", matchingrules.EqualityMatcher{}, "a", "a", ""},
		{"equality numbers by value", matchingrules.EqualityMatcher{}, json.Number("1.0"), json.Number("1"), ""},
		{"equality mismatch", matchingrules.EqualityMatcher{}, "a", "b", "Expected 'b' (String) to be equal to 'a' (String)"},
		{"equality null", matchingrules.EqualityMatcher{}, nil, nil, ""},
		{"regex full match", matchingrules.RegexMatcher{Regex: `\d+`}, "1", "123", ""},
		{"regex partial is mismatch", matchingrules.RegexMatcher{Regex: `\d+`}, "1", "123abc", "Expected '123abc' to match '\\d+'"},
		{"regex lookahead", matchingrules.RegexMatcher{Regex: `(?=.*\d)[a-z0-9]+`}, "a1", "abc1", ""},
		{"regex null", matchingrules.RegexMatcher{Regex: `.*`}, "", nil, "Expected null to match '.*'"},
		{"regex skips lists", matchingrules.RegexMatcher{Regex: `\d+`}, []any{}, []any{"x"}, ""},
		{"type string", matchingrules.TypeMatcher{}, "a", "zzz", ""},
		{"type number", matchingrules.TypeMatcher{}, json.Number("1"), json.Number("2.5"), ""},
		{"type mismatch", matchingrules.TypeMatcher{}, "a", json.Number("1"), "Expected 1 (Integer) to be the same type as 'a' (String)"},
		{"type null", matchingrules.TypeMatcher{}, nil, "a", "Expected 'a' (String) to be a null value"},
		{"type allows empty", matchingrules.TypeMatcher{}, "a", "", ""},
		{"not empty", matchingrules.NotEmptyMatcher{}, "a", "", "Expected '' (String) to not be empty"},
		{"not empty list", matchingrules.NotEmptyMatcher{}, []any{"a"}, []any{}, "Expected [] (Array) to not be empty"},
		{"min type", matchingrules.MinTypeMatcher{Min: 2}, []any{"a"}, []any{"a"}, "Expected [\"a\"] (size 1) to have minimum size of 2"},
		{"max type", matchingrules.MaxTypeMatcher{Max: 1}, []any{"a"}, []any{"a", "b"}, "Expected [\"a\",\"b\"] (size 2) to have maximum size of 1"},
		{"min type scalar falls back to type", matchingrules.MinTypeMatcher{Min: 2}, "a", "b", ""},
		{"integer", matchingrules.NumberTypeMatcher{Kind: matchingrules.NumberInteger}, json.Number("1"), json.Number("42"), ""},
		{"integer rejects decimal", matchingrules.NumberTypeMatcher{Kind: matchingrules.NumberInteger}, json.Number("1"), json.Number("4.2"), "Expected 4.2 (Decimal) to be an integer"},
		{"decimal", matchingrules.NumberTypeMatcher{Kind: matchingrules.NumberDecimal}, json.Number("1.5"), json.Number("4.2"), ""},
		{"decimal accepts zero", matchingrules.NumberTypeMatcher{Kind: matchingrules.NumberDecimal}, json.Number("1.5"), json.Number("0"), ""},
		{"decimal rejects integer", matchingrules.NumberTypeMatcher{Kind: matchingrules.NumberDecimal}, json.Number("1.5"), json.Number("4"), "Expected 4 (Integer) to be a decimal number"},
		{"number rejects string", matchingrules.NumberTypeMatcher{Kind: matchingrules.NumberAny}, json.Number("1"), "1", "Expected '1' (String) to be a number"},
		{"boolean", matchingrules.BooleanMatcher{}, true, false, ""},
		{"boolean string", matchingrules.BooleanMatcher{}, true, "true", ""},
		{"boolean mismatch", matchingrules.BooleanMatcher{}, true, "yes", "Expected 'yes' (String) to match a boolean"},
		{"date", matchingrules.DateMatcher{Format: "yyyy-MM-dd"}, "", "2024-03-13", ""},
		{"date mismatch", matchingrules.DateMatcher{Format: "yyyy-MM-dd"}, "", "13/03/2024", "Expected '13/03/2024' to match a date pattern of 'yyyy-MM-dd': Unable to parse the date: 13/03/2024"},
		{"time", matchingrules.TimeMatcher{Format: "HH:mm:ss"}, "", "10:30:00", ""},
		{"timestamp", matchingrules.TimestampMatcher{Format: "yyyy-MM-dd'T'HH:mm:ss"}, "", "2024-03-13T10:30:00", ""},
		{"include", matchingrules.IncludeMatcher{Value: "ell"}, "", "hello", ""},
		{"include mismatch", matchingrules.IncludeMatcher{Value: "xyz"}, "", "hello", "Expected 'hello' to include 'xyz'"},
		{"null", matchingrules.NullMatcher{}, nil, nil, ""},
		{"null mismatch", matchingrules.NullMatcher{}, nil, "x", "Expected 'x' (String) to be a null value"},
		{"semver", matchingrules.SemverMatcher{}, "", "1.2.3-beta.1+build.5", ""},
		{"semver mismatch", matchingrules.SemverMatcher{}, "", "1.2", "'1.2' is not a valid semantic version"},
		{"ignore order sizes", matchingrules.IgnoreOrderMatcher{}, []any{"a", "b"}, []any{"b"}, "Expected [\"b\"] to have 2 elements"},
		{"ignore order min", matchingrules.IgnoreOrderMatcher{Min: 2}, []any{"a"}, []any{"b", "c"}, ""},
		{"content type json", matchingrules.ContentTypeMatcher{ContentType: "application/json"}, "", `{"a": 1}`, ""},
		{"content type mismatch", matchingrules.ContentTypeMatcher{ContentType: "application/json"}, "", "plain words",
			"Expected binary contents to have content type 'application/json' but detected contents was 'text/plain'"},
		{"status code class", matchingrules.StatusCodeMatcher{Status: matchingrules.StatusSuccess}, 200, 204, ""},
		{"status code list", matchingrules.StatusCodeMatcher{Status: matchingrules.StatusCodes, Codes: []int{200, 201}}, 200, 404,
			"Expected status code 404 to be one of [200 201]"},
		{"values has no direct check", matchingrules.ValuesMatcher{}, "a", json.Number("1"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.rule, root, tt.expected, tt.actual, false, nil)
			if tt.wantMsg == "" {
				if len(got) != 0 {
					t.Errorf("Match() = %v, want no mismatches", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("Match() returned %d mismatches (%v), want 1", len(got), got)
			}
			if got[0].Message != tt.wantMsg {
				t.Errorf("Match() message = %q, want %q", got[0].Message, tt.wantMsg)
			}
			if got[0].Path != "$" {
				t.Errorf("Match() path = %q, want $", got[0].Path)
			}
		})
	}
}

func TestMatch_CascadedMinTypeSkipsSize(t *testing.T) {
	rule := matchingrules.MinTypeMatcher{Min: 3}
	if got := Match(rule, root, []any{"a"}, []any{"a"}, true, nil); len(got) != 0 {
		t.Errorf("Match(cascaded) = %v, want no mismatches", got)
	}
}

func TestMatch_CoerceNumbers(t *testing.T) {
	rule := matchingrules.NumberTypeMatcher{Kind: matchingrules.NumberInteger}
	ctx := NewContext(nil, false)
	if got := Match(rule, root, "1", "42", false, ctx); len(got) == 0 {
		t.Error("Match() without coercion accepted a string")
	}
	ctx.CoerceNumbers = true
	if got := Match(rule, root, "1", "42", false, ctx); len(got) != 0 {
		t.Errorf("Match() with coercion = %v, want no mismatches", got)
	}
}

func TestMatchGroup(t *testing.T) {
	regex := matchingrules.RegexMatcher{Regex: "[a-z]+"}
	integer := matchingrules.NumberTypeMatcher{Kind: matchingrules.NumberInteger}

	and := &matchingrules.MatchingRuleGroup{Rules: []matchingrules.MatchingRule{regex, integer}, Logic: matchingrules.LogicAnd}
	if got := MatchGroup(and, root, "", "abc", nil); len(got) != 1 {
		t.Errorf("MatchGroup(AND) = %v, want one mismatch", got)
	}

	or := &matchingrules.MatchingRuleGroup{Rules: []matchingrules.MatchingRule{regex, integer}, Logic: matchingrules.LogicOr}
	if got := MatchGroup(or, root, "", "abc", nil); len(got) != 0 {
		t.Errorf("MatchGroup(OR) = %v, want no mismatches", got)
	}
	if got := MatchGroup(or, root, "", "ABC", nil); len(got) != 2 {
		t.Errorf("MatchGroup(OR) all failing = %v, want two mismatches", got)
	}
}

func TestMessages(t *testing.T) {
	got := Messages([]Mismatch{{Message: "a"}, {Message: "b"}})
	if got != "a, b" {
		t.Errorf("Messages() = %q, want %q", got, "a, b")
	}
}

func TestCompileRegexHasTimeout(t *testing.T) {
	re, err := compileRegex(`(a+)+b`)
	if err != nil {
		t.Fatalf("compileRegex() error = %v", err)
	}
	if re.MatchTimeout != RegexTimeout {
		t.Errorf("MatchTimeout = %v, want %v", re.MatchTimeout, RegexTimeout)
	}
}

func TestRegexCacheIsBounded(t *testing.T) {
	for i := 0; i < maxCachedPatterns+10; i++ {
		if _, err := RegexMatches(fmt.Sprintf("x%d", i), "x"); err != nil {
			t.Fatalf("RegexMatches() error = %v", err)
		}
	}
	if got := regexCache.size(); got > maxCachedPatterns {
		t.Errorf("cached patterns = %d, want at most %d", got, maxCachedPatterns)
	}
	if ok, _ := RegexMatches(`x\d+`, "x12"); !ok {
		t.Errorf("RegexMatches(x\\d+, x12) = false, want true")
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{`{"a":1}`, "application/json"},
		{`[1, 2]`, "application/json"},
		{`<?xml version="1.0"?><a/>`, "application/xml"},
		{`<html><body></body></html>`, "text/html"},
		{"hello", "text/plain"},
		{"\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR", "image/png"},
		{"{not json", "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := DetectContentType([]byte(tt.data)); got != tt.want {
				t.Errorf("DetectContentType(%q) = %q, want %q", tt.data, got, tt.want)
			}
		})
	}
}

// Property: a type rule accepts any string for a string example, and equality
// accepts exactly the identical string.
func TestMatch_PropertyStrings(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("type accepts every string", prop.ForAll(
		func(expected, actual string) bool {
			return len(Match(matchingrules.TypeMatcher{}, root, expected, actual, false, nil)) == 0
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("equality accepts only identical strings", prop.ForAll(
		func(expected, actual string) bool {
			got := Match(matchingrules.EqualityMatcher{}, root, expected, actual, false, nil)
			return (len(got) == 0) == (expected == actual)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("include accepts every substring", prop.ForAll(
		func(s string, from, to int) bool {
			if from > len(s) {
				from = len(s)
			}
			if to < from {
				to = from
			}
			if to > len(s) {
				to = len(s)
			}
			rule := matchingrules.IncludeMatcher{Value: s[from:to]}
			return len(Match(rule, root, "", s, false, nil)) == 0 && strings.Contains(s, rule.Value)
		},
		gen.AlphaString(),
		gen.IntRange(0, 20),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}
