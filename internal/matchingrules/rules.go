// internal/matchingrules/rules.go

// Package matchingrules models structural expectations: the rules applied at
// a path instead of exact value comparison, how several rules at one path
// combine, and their V2 and V3+ wire shapes.
package matchingrules

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/pact-foundation/pactengine/internal/generators"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/types"
)

/*
 * Rule definitions arrive in two dialects. V3+ tags every rule with
 * "match": {"match": "type", "min": 1}. V2 has no tag and the kind is
 * inferred from the fields present: {"regex": ...}, {"min": 1},
 * {"timestamp": ...}.
 *
 * Loading is lenient. An unrecognised kind degrades to equality with a
 * warning, so contracts written by newer tools still load. A known kind
 * with malformed fields is an error, which group loading logs and skips.
 */

// MatchingRule is one structural expectation.
type MatchingRule interface {
	// Name is the display name of the rule kind.
	Name() string
	ToMap(v types.SpecVersion) map[string]any
	// ValidateForVersion lists reasons the rule cannot be written for v.
	ValidateForVersion(v types.SpecVersion) []string
}

// RuleLogic decides how several rules at one path combine.
type RuleLogic int

const (
	LogicAnd RuleLogic = iota
	LogicOr
)

func (l RuleLogic) String() string {
	if l == LogicOr {
		return "OR"
	}
	return "AND"
}

// NumberKind narrows the number matcher.
type NumberKind int

const (
	NumberAny NumberKind = iota
	NumberInteger
	NumberDecimal
)

func (k NumberKind) String() string {
	switch k {
	case NumberInteger:
		return "integer"
	case NumberDecimal:
		return "decimal"
	default:
		return "number"
	}
}

// Default formats for the date and time matchers.
const (
	DefaultDateFormat      = "yyyy-MM-dd"
	DefaultTimeFormat      = "HH:mm:ss"
	DefaultTimestampFormat = "yyyy-MM-dd HH:mm:ssZZZZZ"
)

func requiresVersion(min types.SpecVersion, v types.SpecVersion, what string) []string {
	if v.AtLeast(min) {
		return nil
	}
	return []string{fmt.Sprintf("%s can only be used with Pact specification versions >= %s", what, min)}
}

type EqualityMatcher struct{}

func (EqualityMatcher) Name() string                                  { return "equality" }
func (EqualityMatcher) ToMap(types.SpecVersion) map[string]any        { return map[string]any{"match": "equality"} }
func (EqualityMatcher) ValidateForVersion(types.SpecVersion) []string { return nil }

type TypeMatcher struct{}

func (TypeMatcher) Name() string                                  { return "type" }
func (TypeMatcher) ToMap(types.SpecVersion) map[string]any        { return map[string]any{"match": "type"} }
func (TypeMatcher) ValidateForVersion(types.SpecVersion) []string { return nil }

// RegexMatcher matches strings against Regex. Example is only used when
// building contracts and is not serialised.
type RegexMatcher struct {
	Regex   string
	Example string
}

func (RegexMatcher) Name() string { return "regex" }
func (m RegexMatcher) ToMap(types.SpecVersion) map[string]any {
	return map[string]any{"match": "regex", "regex": m.Regex}
}
func (RegexMatcher) ValidateForVersion(types.SpecVersion) []string { return nil }

type MinTypeMatcher struct{ Min int }

func (MinTypeMatcher) Name() string { return "min-type" }
func (m MinTypeMatcher) ToMap(types.SpecVersion) map[string]any {
	return map[string]any{"match": "type", "min": m.Min}
}
func (MinTypeMatcher) ValidateForVersion(types.SpecVersion) []string { return nil }

type MaxTypeMatcher struct{ Max int }

func (MaxTypeMatcher) Name() string { return "max-type" }
func (m MaxTypeMatcher) ToMap(types.SpecVersion) map[string]any {
	return map[string]any{"match": "type", "max": m.Max}
}
func (MaxTypeMatcher) ValidateForVersion(types.SpecVersion) []string { return nil }

type MinMaxTypeMatcher struct{ Min, Max int }

func (MinMaxTypeMatcher) Name() string { return "min-max-type" }
func (m MinMaxTypeMatcher) ToMap(types.SpecVersion) map[string]any {
	return map[string]any{"match": "type", "min": m.Min, "max": m.Max}
}
func (MinMaxTypeMatcher) ValidateForVersion(types.SpecVersion) []string { return nil }

// NumberTypeMatcher serialises as a plain type matcher before V3.
type NumberTypeMatcher struct{ Kind NumberKind }

func (NumberTypeMatcher) Name() string { return "number" }
func (m NumberTypeMatcher) ToMap(v types.SpecVersion) map[string]any {
	if v.AtLeast(types.SpecV3) {
		return map[string]any{"match": m.Kind.String()}
	}
	return TypeMatcher{}.ToMap(v)
}
func (NumberTypeMatcher) ValidateForVersion(v types.SpecVersion) []string {
	return requiresVersion(types.SpecV3, v, "Number matchers")
}

// BooleanMatcher serialises as a plain type matcher before V4.
type BooleanMatcher struct{}

func (BooleanMatcher) Name() string { return "boolean" }
func (BooleanMatcher) ToMap(v types.SpecVersion) map[string]any {
	if v.AtLeast(types.SpecV4) {
		return map[string]any{"match": "boolean"}
	}
	return TypeMatcher{}.ToMap(v)
}
func (BooleanMatcher) ValidateForVersion(types.SpecVersion) []string { return nil }

type DateMatcher struct{ Format string }

func (DateMatcher) Name() string { return "date" }
func (m DateMatcher) ToMap(types.SpecVersion) map[string]any {
	return map[string]any{"match": "date", "date": m.Format}
}
func (DateMatcher) ValidateForVersion(v types.SpecVersion) []string {
	return requiresVersion(types.SpecV3, v, "Date matchers")
}

type TimeMatcher struct{ Format string }

func (TimeMatcher) Name() string { return "time" }
func (m TimeMatcher) ToMap(types.SpecVersion) map[string]any {
	return map[string]any{"match": "time", "time": m.Format}
}
func (TimeMatcher) ValidateForVersion(v types.SpecVersion) []string {
	return requiresVersion(types.SpecV3, v, "Time matchers")
}

type TimestampMatcher struct{ Format string }

func (TimestampMatcher) Name() string { return "datetime" }
func (m TimestampMatcher) ToMap(types.SpecVersion) map[string]any {
	return map[string]any{"match": "timestamp", "timestamp": m.Format}
}
func (TimestampMatcher) ValidateForVersion(v types.SpecVersion) []string {
	return requiresVersion(types.SpecV3, v, "DateTime matchers")
}

// IncludeMatcher expects the string form of the value to contain Value.
type IncludeMatcher struct{ Value string }

func (IncludeMatcher) Name() string { return "include" }
func (m IncludeMatcher) ToMap(types.SpecVersion) map[string]any {
	return map[string]any{"match": "include", "value": m.Value}
}
func (IncludeMatcher) ValidateForVersion(v types.SpecVersion) []string {
	return requiresVersion(types.SpecV3, v, "Include matchers")
}

type NullMatcher struct{}

func (NullMatcher) Name() string                           { return "null" }
func (NullMatcher) ToMap(types.SpecVersion) map[string]any { return map[string]any{"match": "null"} }
func (NullMatcher) ValidateForVersion(v types.SpecVersion) []string {
	return requiresVersion(types.SpecV3, v, "Null matchers")
}

// ValuesMatcher matches map values while ignoring the keys.
type ValuesMatcher struct{}

func (ValuesMatcher) Name() string                           { return "values" }
func (ValuesMatcher) ToMap(types.SpecVersion) map[string]any { return map[string]any{"match": "values"} }
func (ValuesMatcher) ValidateForVersion(v types.SpecVersion) []string {
	return requiresVersion(types.SpecV3, v, "Values matchers")
}

// ContentTypeMatcher compares the detected content type of binary data.
type ContentTypeMatcher struct{ ContentType string }

func (ContentTypeMatcher) Name() string { return "content-type" }
func (m ContentTypeMatcher) ToMap(types.SpecVersion) map[string]any {
	return map[string]any{"match": "contentType", "value": m.ContentType}
}
func (ContentTypeMatcher) ValidateForVersion(v types.SpecVersion) []string {
	return requiresVersion(types.SpecV3, v, "Content Type matchers")
}

// IgnoreOrderMatcher compares arrays as multisets. Zero Min or Max means
// no bound.
type IgnoreOrderMatcher struct{ Min, Max int }

func (m IgnoreOrderMatcher) Name() string {
	switch {
	case m.Min > 0 && m.Max > 0:
		return "min-max-ignore-order"
	case m.Min > 0:
		return "min-ignore-order"
	case m.Max > 0:
		return "max-ignore-order"
	}
	return "ignore-order"
}
func (m IgnoreOrderMatcher) ToMap(types.SpecVersion) map[string]any {
	out := map[string]any{"match": "ignore-order"}
	if m.Min > 0 {
		out["min"] = m.Min
	}
	if m.Max > 0 {
		out["max"] = m.Max
	}
	return out
}
func (IgnoreOrderMatcher) ValidateForVersion(v types.SpecVersion) []string {
	return requiresVersion(types.SpecV4, v, "Ignore Order matchers")
}

// Variant is one element shape of an array-contains expectation.
type Variant struct {
	Index      int
	Rules      *Category
	Generators map[string]generators.Generator
}

// ArrayContainsMatcher expects every variant to match some array element.
type ArrayContainsMatcher struct{ Variants []Variant }

func (ArrayContainsMatcher) Name() string { return "array-contains" }
func (m ArrayContainsMatcher) ToMap(v types.SpecVersion) map[string]any {
	variants := make([]any, 0, len(m.Variants))
	for _, variant := range m.Variants {
		gens := make(map[string]any, len(variant.Generators))
		for k, g := range variant.Generators {
			gens[k] = g.ToMap(v)
		}
		rules := map[string]any{}
		if variant.Rules != nil {
			rules = variant.Rules.ToMap(v)
		}
		variants = append(variants, map[string]any{"index": variant.Index, "rules": rules, "generators": gens})
	}
	return map[string]any{"match": "arrayContains", "variants": variants}
}
func (ArrayContainsMatcher) ValidateForVersion(v types.SpecVersion) []string {
	return requiresVersion(types.SpecV3, v, "Array contains matchers")
}

// BuildGenerator returns the generator applying each variant's generators
// to the array elements matching that variant.
func (m ArrayContainsMatcher) BuildGenerator() generators.Generator {
	variants := make([]generators.ArrayContainsVariant, 0, len(m.Variants))
	for _, v := range m.Variants {
		rules := v.Rules
		if rules == nil {
			rules = NewCategory("body")
		}
		variants = append(variants, generators.ArrayContainsVariant{Index: v.Index, Rules: rules, Generators: v.Generators})
	}
	return generators.ArrayContains{Variants: variants}
}

// HTTPStatus classifies status codes for the status code matcher.
type HTTPStatus string

const (
	StatusInformation HTTPStatus = "info"
	StatusSuccess     HTTPStatus = "success"
	StatusRedirect    HTTPStatus = "redirect"
	StatusClientError HTTPStatus = "clientError"
	StatusServerError HTTPStatus = "serverError"
	StatusNonError    HTTPStatus = "nonError"
	StatusError       HTTPStatus = "error"
	StatusCodes       HTTPStatus = "statusCodes"
)

func parseHTTPStatus(s string) (HTTPStatus, bool) {
	for _, st := range []HTTPStatus{StatusInformation, StatusSuccess, StatusRedirect, StatusClientError,
		StatusServerError, StatusNonError, StatusError} {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Matches reports whether code belongs to the class. For StatusCodes the
// code must be one of codes.
func (s HTTPStatus) Matches(code int, codes []int) bool {
	switch s {
	case StatusInformation:
		return code >= 100 && code <= 199
	case StatusSuccess:
		return code >= 200 && code <= 299
	case StatusRedirect:
		return code >= 300 && code <= 399
	case StatusClientError:
		return code >= 400 && code <= 499
	case StatusServerError:
		return code >= 500 && code <= 599
	case StatusNonError:
		return code < 400
	case StatusError:
		return code >= 400
	case StatusCodes:
		for _, c := range codes {
			if c == code {
				return true
			}
		}
	}
	return false
}

type StatusCodeMatcher struct {
	Status HTTPStatus
	Codes  []int
}

func (StatusCodeMatcher) Name() string { return "status-code" }
func (m StatusCodeMatcher) ToMap(types.SpecVersion) map[string]any {
	if m.Status == StatusCodes {
		codes := make([]any, len(m.Codes))
		for i, c := range m.Codes {
			codes[i] = c
		}
		return map[string]any{"match": "statusCode", "status": codes}
	}
	return map[string]any{"match": "statusCode", "status": string(m.Status)}
}
func (StatusCodeMatcher) ValidateForVersion(v types.SpecVersion) []string {
	return requiresVersion(types.SpecV4, v, "Status code matchers")
}

type NotEmptyMatcher struct{}

func (NotEmptyMatcher) Name() string                           { return "not-empty" }
func (NotEmptyMatcher) ToMap(types.SpecVersion) map[string]any { return map[string]any{"match": "notEmpty"} }
func (NotEmptyMatcher) ValidateForVersion(v types.SpecVersion) []string {
	return requiresVersion(types.SpecV4, v, "Not empty matchers")
}

type SemverMatcher struct{}

func (SemverMatcher) Name() string                           { return "semver" }
func (SemverMatcher) ToMap(types.SpecVersion) map[string]any { return map[string]any{"match": "semver"} }
func (SemverMatcher) ValidateForVersion(v types.SpecVersion) []string {
	return requiresVersion(types.SpecV4, v, "Semver matchers")
}

// Definition is the nested rule set of the each-key and each-value
// matchers.
type Definition struct {
	Value     string
	Rules     []MatchingRule
	Generator generators.Generator
}

func (d Definition) toMap(match string, v types.SpecVersion) map[string]any {
	rules := make([]any, len(d.Rules))
	for i, r := range d.Rules {
		rules[i] = r.ToMap(v)
	}
	out := map[string]any{"match": match, "rules": rules}
	if d.Value != "" {
		out["value"] = d.Value
	}
	if d.Generator != nil {
		out["generator"] = d.Generator.ToMap(v)
	}
	return out
}

// EachKeyMatcher applies its rules to every key of a map.
type EachKeyMatcher struct{ Definition Definition }

func (EachKeyMatcher) Name() string                               { return "each-key" }
func (m EachKeyMatcher) ToMap(v types.SpecVersion) map[string]any { return m.Definition.toMap("eachKey", v) }
func (EachKeyMatcher) ValidateForVersion(v types.SpecVersion) []string {
	return requiresVersion(types.SpecV4, v, "Each Key matchers")
}

// EachValueMatcher applies its rules to every value of a map or array.
type EachValueMatcher struct{ Definition Definition }

func (EachValueMatcher) Name() string { return "each-value" }
func (m EachValueMatcher) ToMap(v types.SpecVersion) map[string]any {
	return m.Definition.toMap("eachValue", v)
}
func (EachValueMatcher) ValidateForVersion(v types.SpecVersion) []string {
	return requiresVersion(types.SpecV4, v, "Each Value matchers")
}

// RuleFromJSON reads one rule definition in either dialect.
func RuleFromJSON(def any) (MatchingRule, error) {
	obj, ok := def.(map[string]any)
	if !ok {
		slog.Warn(fmt.Sprintf("Unrecognised matcher definition %s, defaulting to equality matching", jsondoc.Serialise(def)))
		return EqualityMatcher{}, nil
	}
	switch {
	case has(obj, "match"):
		return Create(jsondoc.String(obj["match"]), obj)
	case has(obj, "regex"):
		return RegexMatcher{Regex: jsondoc.String(obj["regex"])}, nil
	case has(obj, "min"):
		n, err := intAttr(obj, "min")
		return MinTypeMatcher{Min: n}, err
	case has(obj, "max"):
		n, err := intAttr(obj, "max")
		return MaxTypeMatcher{Max: n}, err
	case has(obj, "timestamp"):
		return TimestampMatcher{Format: jsondoc.String(obj["timestamp"])}, nil
	case has(obj, "time"):
		return TimeMatcher{Format: jsondoc.String(obj["time"])}, nil
	case has(obj, "date"):
		return DateMatcher{Format: jsondoc.String(obj["date"])}, nil
	}
	slog.Warn(fmt.Sprintf("Unrecognised matcher definition %s, defaulting to equality matching", jsondoc.Serialise(obj)))
	return EqualityMatcher{}, nil
}

// Create builds the rule of the given kind from its attributes.
func Create(kind string, values map[string]any) (MatchingRule, error) {
	switch kind {
	case "regex":
		if !has(values, "regex") {
			return nil, invalidMatcher("Regex matcher definition is missing the regex attribute")
		}
		return RegexMatcher{Regex: jsondoc.String(values["regex"])}, nil
	case "equality":
		return EqualityMatcher{}, nil
	case "null":
		return NullMatcher{}, nil
	case "include":
		return IncludeMatcher{Value: jsondoc.String(values["value"])}, nil
	case "type":
		return typeRule(values)
	case "number":
		return NumberTypeMatcher{Kind: NumberAny}, nil
	case "integer":
		return NumberTypeMatcher{Kind: NumberInteger}, nil
	case "decimal":
		return NumberTypeMatcher{Kind: NumberDecimal}, nil
	case "real":
		slog.Warn("The 'real' type matcher is deprecated, use 'decimal' instead")
		return NumberTypeMatcher{Kind: NumberDecimal}, nil
	case "min":
		n, err := intAttr(values, "min")
		return MinTypeMatcher{Min: n}, err
	case "max":
		n, err := intAttr(values, "max")
		return MaxTypeMatcher{Max: n}, err
	case "timestamp", "datetime":
		return TimestampMatcher{Format: formatAttr(values, "timestamp", DefaultTimestampFormat)}, nil
	case "time":
		return TimeMatcher{Format: formatAttr(values, "time", DefaultTimeFormat)}, nil
	case "date":
		return DateMatcher{Format: formatAttr(values, "date", DefaultDateFormat)}, nil
	case "values":
		return ValuesMatcher{}, nil
	case "ignore-order":
		return ignoreOrderRule(values)
	case "contentType", "content-type":
		return ContentTypeMatcher{ContentType: jsondoc.String(values["value"])}, nil
	case "arrayContains", "array-contains":
		return arrayContainsRule(values)
	case "boolean":
		return BooleanMatcher{}, nil
	case "statusCode", "status-code":
		return statusCodeRule(values)
	case "notEmpty", "not-empty":
		return NotEmptyMatcher{}, nil
	case "semver":
		return SemverMatcher{}, nil
	case "eachKey", "each-key":
		def, err := definition(values)
		return EachKeyMatcher{Definition: def}, err
	case "eachValue", "each-value":
		def, err := definition(values)
		return EachValueMatcher{Definition: def}, err
	}
	slog.Warn(fmt.Sprintf("Unrecognised matcher %s, defaulting to equality matching", kind))
	return EqualityMatcher{}, nil
}

func typeRule(values map[string]any) (MatchingRule, error) {
	switch {
	case has(values, "min") && has(values, "max"):
		lo, err := intAttr(values, "min")
		if err != nil {
			return nil, err
		}
		hi, err := intAttr(values, "max")
		return MinMaxTypeMatcher{Min: lo, Max: hi}, err
	case has(values, "min"):
		n, err := intAttr(values, "min")
		return MinTypeMatcher{Min: n}, err
	case has(values, "max"):
		n, err := intAttr(values, "max")
		return MaxTypeMatcher{Max: n}, err
	}
	return TypeMatcher{}, nil
}

func ignoreOrderRule(values map[string]any) (MatchingRule, error) {
	var m IgnoreOrderMatcher
	var err error
	if has(values, "min") {
		if m.Min, err = intAttr(values, "min"); err != nil {
			return nil, err
		}
	}
	if has(values, "max") {
		if m.Max, err = intAttr(values, "max"); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func arrayContainsRule(values map[string]any) (MatchingRule, error) {
	list, ok := values["variants"].([]any)
	if !ok {
		return nil, invalidMatcher("Array contains matchers should have a list of variants")
	}
	variants := make([]Variant, 0, len(list))
	for i, raw := range list {
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, invalidMatcher(fmt.Sprintf("Array contains matchers: variant %d is incorrectly formed", i))
		}
		index, err := intAttr(obj, "index")
		if err != nil {
			return nil, err
		}
		v := Variant{Index: index, Rules: NewCategory("body"), Generators: map[string]generators.Generator{}}
		v.Rules.FromJSON(obj["rules"])
		if gens, ok := obj["generators"].(map[string]any); ok {
			for key, def := range gens {
				if d, ok := def.(map[string]any); ok {
					if g, ok := generators.Lookup(d); ok {
						v.Generators[key] = g
					}
				}
			}
		}
		variants = append(variants, v)
	}
	return ArrayContainsMatcher{Variants: variants}, nil
}

func statusCodeRule(values map[string]any) (MatchingRule, error) {
	switch status := values["status"].(type) {
	case []any:
		codes := make([]int, 0, len(status))
		for _, c := range status {
			n, ok := toInt(c)
			if !ok {
				return nil, invalidMatcher(fmt.Sprintf("Status code matcher of type StatusCodes must have an array of integers, got %s", jsondoc.Serialise(c)))
			}
			codes = append(codes, n)
		}
		return StatusCodeMatcher{Status: StatusCodes, Codes: codes}, nil
	case string:
		if st, ok := parseHTTPStatus(status); ok {
			return StatusCodeMatcher{Status: st}, nil
		}
	}
	return nil, invalidMatcher(fmt.Sprintf("'%s' is not a valid HTTP status", jsondoc.Serialise(values["status"])))
}

func definition(values map[string]any) (Definition, error) {
	def := Definition{}
	if has(values, "value") {
		def.Value = jsondoc.String(values["value"])
	}
	rules, ok := values["rules"].([]any)
	if !ok {
		return def, invalidMatcher("Each key and each value matchers require a list of rules")
	}
	for _, r := range rules {
		rule, err := RuleFromJSON(r)
		if err != nil {
			return def, err
		}
		def.Rules = append(def.Rules, rule)
	}
	if g, ok := values["generator"].(map[string]any); ok {
		if gen, ok := generators.Lookup(g); ok {
			def.Generator = gen
		}
	}
	return def, nil
}

func has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func formatAttr(values map[string]any, legacy, fallback string) string {
	if has(values, "format") {
		return jsondoc.String(values["format"])
	}
	if has(values, legacy) {
		return jsondoc.String(values[legacy])
	}
	return fallback
}

func intAttr(values map[string]any, key string) (int, error) {
	n, ok := toInt(values[key])
	if !ok {
		return 0, invalidMatcher(fmt.Sprintf("'%s' is not a valid value for %s", jsondoc.Serialise(values[key]), key))
	}
	return n, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func invalidMatcher(msg string) error {
	return types.NewEvalError(types.ErrInvalidMatcher, msg)
}
