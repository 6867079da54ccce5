// internal/matchingrules/matchingrules_test.go
package matchingrules

import (
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pact-foundation/pactengine/internal/generators"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/types"
)

// roundTrip serialises the rule to JSON text and reads it back, the way a
// contract file would.
func roundTrip(t *testing.T, rule MatchingRule, v types.SpecVersion) MatchingRule {
	t.Helper()
	doc, err := jsondoc.ParseString(jsondoc.Serialise(rule.ToMap(v)))
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	got, err := RuleFromJSON(doc)
	if err != nil {
		t.Fatalf("RuleFromJSON() error = %v", err)
	}
	return got
}

func TestMatchingRule_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rule MatchingRule
	}{
		{"equality", EqualityMatcher{}},
		{"type", TypeMatcher{}},
		{"regex", RegexMatcher{Regex: `\d+`}},
		{"min", MinTypeMatcher{Min: 1}},
		{"max", MaxTypeMatcher{Max: 5}},
		{"minmax", MinMaxTypeMatcher{Min: 1, Max: 5}},
		{"number", NumberTypeMatcher{Kind: NumberAny}},
		{"integer", NumberTypeMatcher{Kind: NumberInteger}},
		{"decimal", NumberTypeMatcher{Kind: NumberDecimal}},
		{"date", DateMatcher{Format: "yyyy-MM-dd"}},
		{"time", TimeMatcher{Format: "HH:mm"}},
		{"timestamp", TimestampMatcher{Format: "yyyy-MM-dd'T'HH:mm:ss"}},
		{"include", IncludeMatcher{Value: "needle"}},
		{"null", NullMatcher{}},
		{"values", ValuesMatcher{}},
		{"boolean", BooleanMatcher{}},
		{"content type", ContentTypeMatcher{ContentType: "image/png"}},
		{"ignore order", IgnoreOrderMatcher{Min: 2}},
		{"status class", StatusCodeMatcher{Status: StatusSuccess}},
		{"status codes", StatusCodeMatcher{Status: StatusCodes, Codes: []int{200, 204}}},
		{"not empty", NotEmptyMatcher{}},
		{"semver", SemverMatcher{}},
		{"each key", EachKeyMatcher{Definition: Definition{Value: "a", Rules: []MatchingRule{RegexMatcher{Regex: "[a-z]+"}}}}},
		{"each value", EachValueMatcher{Definition: Definition{
			Rules:     []MatchingRule{TypeMatcher{}},
			Generator: generators.RandomString{Size: 4},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, tt.rule, types.SpecV4)
			if !reflect.DeepEqual(got, tt.rule) {
				t.Errorf("RuleFromJSON(ToMap()) = %#v, want %#v", got, tt.rule)
			}
		})
	}
}

func TestMatchingRule_ArrayContainsRoundTrip(t *testing.T) {
	rules := NewCategory("body").AddRule("$.id", TypeMatcher{}, LogicAnd)
	rule := ArrayContainsMatcher{Variants: []Variant{{
		Index:      0,
		Rules:      rules,
		Generators: map[string]generators.Generator{"$.id": generators.RandomInt{Min: 1, Max: 9}},
	}}}

	got, ok := roundTrip(t, rule, types.SpecV4).(ArrayContainsMatcher)
	if !ok || len(got.Variants) != 1 {
		t.Fatalf("RuleFromJSON(ToMap()) = %#v", got)
	}
	if jsondoc.Serialise(got.ToMap(types.SpecV4)) != jsondoc.Serialise(rule.ToMap(types.SpecV4)) {
		t.Errorf("ToMap() after round trip = %s, want %s",
			jsondoc.Serialise(got.ToMap(types.SpecV4)), jsondoc.Serialise(rule.ToMap(types.SpecV4)))
	}
	if _, ok := got.BuildGenerator().(generators.ArrayContains); !ok {
		t.Errorf("BuildGenerator() = %T, want generators.ArrayContains", got.BuildGenerator())
	}
}

func TestRuleFromJSON_UnknownKindIsEquality(t *testing.T) {
	for _, def := range []string{
		`{"match": "telepathy"}`,
		`{"something": "else"}`,
		`"not an object"`,
	} {
		t.Run(def, func(t *testing.T) {
			doc, _ := jsondoc.ParseString(def)
			got, err := RuleFromJSON(doc)
			if err != nil {
				t.Fatalf("RuleFromJSON() error = %v, want nil", err)
			}
			if got != (EqualityMatcher{}) {
				t.Errorf("RuleFromJSON() = %#v, want EqualityMatcher", got)
			}
		})
	}
}

func TestRuleFromJSON_Variants(t *testing.T) {
	tests := []struct {
		def  string
		want MatchingRule
	}{
		{`{"regex": "\\w+"}`, RegexMatcher{Regex: `\w+`}},
		{`{"min": 2}`, MinTypeMatcher{Min: 2}},
		{`{"max": "3"}`, MaxTypeMatcher{Max: 3}},
		{`{"timestamp": "yyyy"}`, TimestampMatcher{Format: "yyyy"}},
		{`{"match": "datetime", "format": "HH"}`, TimestampMatcher{Format: "HH"}},
		{`{"match": "date"}`, DateMatcher{Format: DefaultDateFormat}},
		{`{"match": "time"}`, TimeMatcher{Format: DefaultTimeFormat}},
		{`{"match": "real"}`, NumberTypeMatcher{Kind: NumberDecimal}},
		{`{"match": "min", "min": 0}`, MinTypeMatcher{Min: 0}},
		{`{"match": "ignore-order"}`, IgnoreOrderMatcher{}},
		{`{"match": "content-type", "value": "text/plain"}`, ContentTypeMatcher{ContentType: "text/plain"}},
	}

	for _, tt := range tests {
		t.Run(tt.def, func(t *testing.T) {
			doc, err := jsondoc.ParseString(tt.def)
			if err != nil {
				t.Fatal(err)
			}
			got, err := RuleFromJSON(doc)
			if err != nil {
				t.Fatalf("RuleFromJSON() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RuleFromJSON() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRuleFromJSON_Malformed(t *testing.T) {
	for _, def := range []string{
		`{"match": "regex"}`,
		`{"match": "type", "min": "lots"}`,
		`{"match": "statusCode", "status": [200, "ok"]}`,
		`{"match": "statusCode", "status": "fine"}`,
		`{"match": "arrayContains"}`,
		`{"match": "arrayContains", "variants": [1]}`,
		`{"match": "eachKey"}`,
	} {
		t.Run(def, func(t *testing.T) {
			doc, _ := jsondoc.ParseString(def)
			_, err := RuleFromJSON(doc)
			if !errors.Is(err, types.ErrInvalidMatcher) {
				t.Errorf("RuleFromJSON() error = %v, want ErrInvalidMatcher", err)
			}
		})
	}
}

func TestGroupFromJSON(t *testing.T) {
	doc, _ := jsondoc.ParseString(`{"combine": "OR", "matchers": [{"match": "type"}, 7, {"match": "regex"}, {"match": "null"}]}`)
	g := GroupFromJSON(doc)
	if g.Logic != LogicOr {
		t.Errorf("Logic = %v, want OR", g.Logic)
	}
	want := []MatchingRule{TypeMatcher{}, NullMatcher{}}
	if !reflect.DeepEqual(g.Rules, want) {
		t.Errorf("Rules = %#v, want %#v", g.Rules, want)
	}

	doc, _ = jsondoc.ParseString(`{"combine": "XOR", "matchers": [{"match": "type"}]}`)
	if g := GroupFromJSON(doc); g.Logic != LogicAnd {
		t.Errorf("invalid combine: Logic = %v, want AND", g.Logic)
	}
}

func TestCategory_ToMap(t *testing.T) {
	body := NewCategory("body").
		AddRule("$.id", TypeMatcher{}, LogicAnd).
		AddRule("$.id", integerRule(), LogicAnd).
		AddRule("$.name", RegexMatcher{Regex: "[a-z]+"}, LogicOr)
	header := NewCategory("header").
		AddRule("Accept", RegexMatcher{Regex: "json"}, LogicAnd).
		AddRule("X Trace", TypeMatcher{}, LogicAnd)
	path := NewCategory("path").AddRule("", RegexMatcher{Regex: "/\\d+"}, LogicAnd)

	tests := []struct {
		name string
		cat  *Category
		v    types.SpecVersion
		want string
	}{
		{"body v3", body, types.SpecV3,
			`{"$.id":{"combine":"AND","matchers":[{"match":"type"},{"match":"integer"}]},"$.name":{"combine":"OR","matchers":[{"match":"regex","regex":"[a-z]+"}]}}`},
		{"body v2", body, types.SpecV2,
			`{"$.body.id":{"match":"type"},"$.body.name":{"match":"regex","regex":"[a-z]+"}}`},
		{"header v2", header, types.SpecV2,
			`{"$.headers.Accept":{"match":"regex","regex":"json"},"$.headers['X Trace']":{"match":"type"}}`},
		{"path v3", path, types.SpecV3,
			`{"combine":"AND","matchers":[{"match":"regex","regex":"/\\d+"}]}`},
		{"path v2", path, types.SpecV2,
			`{"$.path":{"match":"regex","regex":"/\\d+"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jsondoc.Serialise(tt.cat.ToMap(tt.v)); got != tt.want {
				t.Errorf("ToMap() = %s, want %s", got, tt.want)
			}
		})
	}
}

func integerRule() MatchingRule { return NumberTypeMatcher{Kind: NumberInteger} }

func TestMatchingRules_FromJSON(t *testing.T) {
	v3, _ := jsondoc.ParseString(`{
		"body": {"$.id": {"matchers": [{"match": "integer"}]}, "$.bad": 12},
		"header": {"Accept": {"matchers": [{"match": "regex", "regex": "json"}], "combine": "AND"}},
		"path": {"matchers": [{"match": "regex", "regex": "/\\d+"}]},
		"status": {"": {"matchers": [{"match": "statusCode", "status": "success"}]}}
	}`)
	rules := FromJSON(v3)

	if g, ok := rules.RulesForCategory("body").Group("$.id"); !ok || !reflect.DeepEqual(g.Rules, []MatchingRule{integerRule()}) {
		t.Errorf("body $.id = %#v", g)
	}
	if _, ok := rules.RulesForCategory("body").Group("$.bad"); ok {
		t.Error("invalid body definition was loaded")
	}
	if g, ok := rules.RulesForCategory("path").Group(""); !ok || len(g.Rules) != 1 {
		t.Errorf("path group = %#v", g)
	}
	if g, ok := rules.RulesForCategory("status").Group(""); !ok || !reflect.DeepEqual(g.Rules, []MatchingRule{StatusCodeMatcher{Status: StatusSuccess}}) {
		t.Errorf("status group = %#v", g)
	}

	v2, _ := jsondoc.ParseString(`{
		"$.body": {"match": "type"},
		"$.body.items[*].id": {"regex": "\\d+"},
		"$.headers.Accept": {"match": "regex", "regex": "json"},
		"$.query.page": {"match": "type"},
		"$.path": {"regex": "/x"}
	}`)
	rules = FromJSON(v2)
	checks := []struct {
		category, key string
		want          MatchingRule
	}{
		{"body", "$", TypeMatcher{}},
		{"body", "$.items[*].id", RegexMatcher{Regex: `\d+`}},
		{"header", "Accept", RegexMatcher{Regex: "json"}},
		{"query", "page", TypeMatcher{}},
		{"path", "", RegexMatcher{Regex: "/x"}},
	}
	for _, c := range checks {
		g, ok := rules.RulesForCategory(c.category).Group(c.key)
		if !ok || !reflect.DeepEqual(g.Rules, []MatchingRule{c.want}) {
			t.Errorf("%s[%q] = %#v, want %#v", c.category, c.key, g, c.want)
		}
	}

	wantV2 := `{"$.body":{"match":"type"},"$.body.items[*].id":{"match":"regex","regex":"\\d+"},"$.headers.Accept":{"match":"regex","regex":"json"},"$.path":{"match":"regex","regex":"/x"},"$.query.page":{"match":"type"}}`
	if got := jsondoc.Serialise(rules.ToMap(types.SpecV2)); got != wantV2 {
		t.Errorf("ToMap(V2) = %s, want %s", got, wantV2)
	}

	if empty := FromJSON(map[string]any{}); !empty.IsEmpty() {
		t.Error("FromJSON({}) is not empty")
	}
}

func TestMatchingRules_Copy(t *testing.T) {
	rules := NewMatchingRules()
	rules.RulesForCategory("body").AddRule("$.a", TypeMatcher{}, LogicAnd)
	cp := rules.Copy()
	cp.RulesForCategory("body").AddRule("$.a", NullMatcher{}, LogicAnd)

	g, _ := rules.RulesForCategory("body").Group("$.a")
	if len(g.Rules) != 1 {
		t.Errorf("Copy() shares groups with the original: %d rules", len(g.Rules))
	}

	renamed := rules.Rename("body", "content")
	if renamed.HasCategory("body") || !renamed.HasCategory("content") {
		t.Errorf("Rename() categories = %v", renamed.Categories())
	}
}

func TestValidateForVersion(t *testing.T) {
	c := NewCategory("body").AddRule("$.a", NullMatcher{}, LogicAnd).AddRule("$.b", SemverMatcher{}, LogicAnd)
	if got := c.ValidateForVersion(types.SpecV4); len(got) != 0 {
		t.Errorf("ValidateForVersion(V4) = %v, want none", got)
	}
	got := c.ValidateForVersion(types.SpecV2)
	want := []string{
		"Null matchers can only be used with Pact specification versions >= V3",
		"Semver matchers can only be used with Pact specification versions >= V4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ValidateForVersion(V2) = %v, want %v", got, want)
	}
}

// Property: type-family rules with arbitrary bounds survive the wire.
func TestMatchingRule_PropertyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("toMap then fromMap reproduces the rule", prop.ForAll(
		func(kind int, lo, hi int, text string) bool {
			var rule MatchingRule
			switch kind {
			case 0:
				rule = MinTypeMatcher{Min: lo}
			case 1:
				rule = MaxTypeMatcher{Max: hi}
			case 2:
				rule = MinMaxTypeMatcher{Min: lo, Max: hi}
			case 3:
				rule = RegexMatcher{Regex: text}
			case 4:
				rule = IncludeMatcher{Value: text}
			default:
				rule = DateMatcher{Format: text}
			}
			doc, err := jsondoc.ParseString(jsondoc.Serialise(rule.ToMap(types.SpecV3)))
			if err != nil {
				return false
			}
			got, err := RuleFromJSON(doc)
			return err == nil && reflect.DeepEqual(got, rule)
		},
		gen.IntRange(0, 5),
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
