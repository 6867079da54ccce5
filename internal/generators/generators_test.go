// internal/generators/generators_test.go
package generators

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/types"
)

func TestRandomGenerators(t *testing.T) {
	ctx := NewContext(42)

	for i := 0; i < 50; i++ {
		v, err := RandomInt{Min: 5, Max: 10}.Generate(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		n, err := v.(json.Number).Int64()
		if err != nil || n < 5 || n > 10 {
			t.Fatalf("RandomInt{5, 10}.Generate() = %v, want a value in [5, 10]", v)
		}
	}

	s, _ := RandomString{Size: 20}.Generate(ctx, nil)
	if len(s.(string)) != 20 {
		t.Errorf("RandomString{20}.Generate() = %q, want 20 characters", s)
	}

	h, _ := RandomHexadecimal{Digits: 8}.Generate(ctx, nil)
	if !regexp.MustCompile(`^[0-9a-f]{8}$`).MatchString(h.(string)) {
		t.Errorf("RandomHexadecimal{8}.Generate() = %q", h)
	}

	d, _ := RandomDecimal{Digits: 6}.Generate(ctx, nil)
	ds := string(d.(json.Number))
	if len(strings.ReplaceAll(ds, ".", "")) != 6 || !strings.Contains(ds, ".") {
		t.Errorf("RandomDecimal{6}.Generate() = %q, want 6 digits with a decimal point", ds)
	}
	if _, err := strconv.ParseFloat(ds, 64); err != nil {
		t.Errorf("RandomDecimal{6}.Generate() = %q is not a number", ds)
	}

	b, _ := RandomBoolean{}.Generate(ctx, nil)
	if _, ok := b.(bool); !ok {
		t.Errorf("RandomBoolean{}.Generate() = %T, want bool", b)
	}
}

func TestGenerators_SameSeedSameValues(t *testing.T) {
	a, _ := RandomString{Size: 16}.Generate(NewContext(7), nil)
	b, _ := RandomString{Size: 16}.Generate(NewContext(7), nil)
	if a != b {
		t.Errorf("same seed produced %q and %q", a, b)
	}
}

func TestUuid_Formats(t *testing.T) {
	tests := []struct {
		format string
		re     string
	}{
		{"", `^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[0-9a-f]{4}-[0-9a-f]{12}$`},
		{UUIDLowerHyphenated, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`},
		{UUIDUpperHyphenated, `^[0-9A-F]{8}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{12}$`},
		{UUIDSimple, `^[0-9a-f]{32}$`},
		{UUIDURN, `^urn:uuid:[0-9a-f-]{36}$`},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			v, err := Uuid{Format: tt.format}.Generate(NewContext(1), nil)
			if err != nil {
				t.Fatal(err)
			}
			if !regexp.MustCompile(tt.re).MatchString(v.(string)) {
				t.Errorf("Uuid{%q}.Generate() = %q", tt.format, v)
			}
		})
	}
}

func TestGenerateFromRegex(t *testing.T) {
	patterns := []string{
		`\d{3}-\d{4}`,
		`^(foo|bar)\w*$`,
		`[^abc]{2,5}`,
		`[A-Z][a-z]+ [A-Z][a-z]+`,
		`(?i)hello`,
		`\d+(\.\d{1,2})?`,
		`[0-9a-f]{8}-[0-9a-f]{4}`,
	}
	ctx := NewContext(99)

	for _, pattern := range patterns {
		t.Run(pattern, func(t *testing.T) {
			re := regexp.MustCompile("^(?:" + pattern + ")$")
			for i := 0; i < 20; i++ {
				v, err := Regex{Regex: pattern}.Generate(ctx, nil)
				if err != nil {
					t.Fatal(err)
				}
				if !re.MatchString(v.(string)) {
					t.Fatalf("Regex{%q}.Generate() = %q, does not match", pattern, v)
				}
			}
		})
	}

	if _, err := GenerateFromRegex(ctx.Rand, "(unclosed"); !errors.Is(err, types.ErrInvalidGenerator) {
		t.Errorf("GenerateFromRegex(invalid) error = %v, want ErrInvalidGenerator", err)
	}
}

func TestDateTimeGenerators(t *testing.T) {
	base := time.Date(2024, time.March, 13, 10, 30, 0, 0, time.UTC)
	ctx := &Context{BaseDate: base, BaseTime: base, BaseDateTime: base}

	tests := []struct {
		name string
		gen  Generator
		want string
	}{
		{"date default format", Date{}, "2024-03-13"},
		{"date with expression", Date{Format: "yyyy-MM-dd", Expression: "+1 day"}, "2024-03-14"},
		{"date java pattern", Date{Format: "dd/MM/yyyy"}, "13/03/2024"},
		{"time with expression", Time{Format: "HH:mm", Expression: "noon + 1 hour"}, "13:00"},
		{"datetime", DateTime{Format: "yyyy-MM-dd'T'HH:mm:ss", Expression: "tomorrow @ midnight"}, "2024-03-14T00:00:00"},
		{"bad expression falls back to base", Date{Format: "yyyy-MM-dd", Expression: "whenever"}, "2024-03-13"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.gen.Generate(ctx, nil)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Generate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDate_WithoutContextUsesToday(t *testing.T) {
	got, err := Date{}.Generate(nil, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	s, ok := got.(string)
	if !ok {
		t.Fatalf("Generate() = %T, want string", got)
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		t.Errorf("Generate() = %s, want a yyyy-MM-dd date", s)
	}
}

func TestProviderState(t *testing.T) {
	ctx := &Context{ProviderState: map[string]any{"id": 1234, "name": "Fred"}}

	tests := []struct {
		name string
		gen  ProviderState
		want any
	}{
		{"plain key", ProviderState{Expression: "name"}, "Fred"},
		{"placeholder", ProviderState{Expression: "${id}"}, json.Number("1234")},
		{"interpolated", ProviderState{Expression: "/users/${id}/${name}"}, "/users/1234/Fred"},
		{"as string", ProviderState{Expression: "id", DataType: DataTypeString}, "1234"},
		{"as integer", ProviderState{Expression: "id", DataType: DataTypeInteger}, json.Number("1234")},
		{"missing", ProviderState{Expression: "nope"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.gen.Generate(ctx, nil)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if !jsondoc.Equal(got, tt.want) {
				t.Errorf("Generate() = %#v, want %#v", got, tt.want)
			}
		})
	}

	if (ProviderState{}).CorrespondsToMode(ModeConsumer) {
		t.Error("ProviderState.CorrespondsToMode(ModeConsumer) = true, want false")
	}
	if !(ProviderState{}).CorrespondsToMode(ModeProvider) {
		t.Error("ProviderState.CorrespondsToMode(ModeProvider) = false, want true")
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name string
		def  string
		want Generator
		ok   bool
	}{
		{"random int", `{"type":"RandomInt","min":1,"max":9}`, RandomInt{Min: 1, Max: 9}, true},
		{"random int defaults", `{"type":"RandomInt"}`, RandomInt{Min: 0, Max: 2147483647}, true},
		{"invalid min", `{"type":"RandomInt","min":"x","max":3}`, RandomInt{Min: 0, Max: 3}, true},
		{"random string", `{"type":"RandomString","size":4}`, RandomString{Size: 4}, true},
		{"date", `{"type":"Date","format":"yyyy","expression":"today"}`, Date{Format: "yyyy", Expression: "today"}, true},
		{"provider state", `{"type":"ProviderState","expression":"id"}`, ProviderState{Expression: "id", DataType: DataTypeRaw}, true},
		{"unknown", `{"type":"Telepathy"}`, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := jsondoc.ParseString(tt.def)
			if err != nil {
				t.Fatal(err)
			}
			got, ok := Lookup(doc.(map[string]any))
			if ok != tt.ok {
				t.Fatalf("Lookup() ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("Lookup() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestGenerators_WireForm(t *testing.T) {
	doc, err := jsondoc.ParseString(`{
		"body": {"$.id": {"type": "RandomInt", "min": 1, "max": 10}, "$.bad": {"min": 1}},
		"status": {"type": "RandomInt", "min": 200, "max": 299},
		"headers": {"X": {"type": "Uuid"}},
		"header": {"X-Request-Id": {"type": "Uuid"}}
	}`)
	if err != nil {
		t.Fatal(err)
	}
	g := FromJSON(doc.(map[string]any))

	if _, ok := g.Get(CategoryBody, "$.id"); !ok {
		t.Error("body generator $.id not loaded")
	}
	if _, ok := g.Get(CategoryBody, "$.bad"); ok {
		t.Error("generator without a type was loaded")
	}
	if _, ok := g.Get(CategoryStatus, ""); !ok {
		t.Error("status generator not loaded under the empty key")
	}
	if _, ok := g.Get(CategoryHeader, "X-Request-Id"); !ok {
		t.Error("header generator not loaded")
	}

	if _, err := g.ToMap(types.SpecV2); !errors.Is(err, types.ErrInvalidGenerator) {
		t.Errorf("ToMap(V2) error = %v, want ErrInvalidGenerator", err)
	}
	m, err := g.ToMap(types.SpecV3)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"body":{"$.id":{"max":10,"min":1,"type":"RandomInt"}},"header":{"X-Request-Id":{"type":"Uuid"}},"status":{"max":299,"min":200,"type":"RandomInt"}}`
	if got := jsondoc.Serialise(m); got != want {
		t.Errorf("ToMap(V3) = %s, want %s", got, want)
	}

	again := FromJSON(jsondoc.Normalise(m).(map[string]any))
	m2, _ := again.ToMap(types.SpecV3)
	if jsondoc.Serialise(m2) != want {
		t.Errorf("round trip = %s, want %s", jsondoc.Serialise(m2), want)
	}
}

func TestGenerators_ApplyBody(t *testing.T) {
	doc, _ := jsondoc.ParseString(`{"id": 0, "items": [{"code": "a"}, {"code": "b"}], "state": "x"}`)
	g := New().
		Add(CategoryBody, "$.id", RandomInt{Min: 7, Max: 7}).
		Add(CategoryBody, "$.items[*].code", Regex{Regex: "[A-Z]{3}"}).
		Add(CategoryBody, "$.state", ProviderState{Expression: "state"}).
		Add(CategoryBody, "$.missing", RandomString{Size: 3})

	ctx := NewContext(3)
	ctx.ProviderState = map[string]any{"state": "ready"}
	out := g.ApplyBody(ctx, doc).(map[string]any)

	if !jsondoc.Equal(out["id"], json.Number("7")) {
		t.Errorf("id = %v, want 7", out["id"])
	}
	for i, item := range out["items"].([]any) {
		code := item.(map[string]any)["code"].(string)
		if !regexp.MustCompile(`^[A-Z]{3}$`).MatchString(code) {
			t.Errorf("items[%d].code = %q", i, code)
		}
	}
	if out["state"] != "x" {
		t.Errorf("state = %v, consumer mode must skip provider state generators", out["state"])
	}
	if _, ok := out["missing"]; ok {
		t.Error("generator created a missing key")
	}
	if doc.(map[string]any)["id"] != json.Number("0") {
		t.Error("ApplyBody modified its input")
	}

	ctx.Mode = ModeProvider
	out = g.ApplyBody(ctx, doc).(map[string]any)
	if out["state"] != "ready" {
		t.Errorf("state = %v, want ready in provider mode", out["state"])
	}
}

type fakeRules map[string]any

func (r fakeRules) ToMap(types.SpecVersion) map[string]any { return r }

func TestArrayContains(t *testing.T) {
	doc, _ := jsondoc.ParseString(`[{"kind": "a", "v": 0}, {"kind": "b", "v": 0}, {"kind": "c", "v": 0}]`)
	g := ArrayContains{Variants: []ArrayContainsVariant{
		{Index: 0, Rules: fakeRules{"kind": "a"}, Generators: map[string]Generator{"$.v": RandomInt{Min: 1, Max: 1}}},
		{Index: 1, Rules: fakeRules{"kind": "b"}, Generators: map[string]Generator{"$.v": RandomInt{Min: 2, Max: 2}}},
	}}

	// Without a matcher the array is returned as is.
	same, _ := g.Generate(NewContext(1), doc)
	if !jsondoc.Equal(same, doc) {
		t.Errorf("Generate() without matcher = %v", same)
	}

	ctx := NewContext(1)
	ctx.VariantMatcher = func(variant ArrayContainsVariant, element any) bool {
		return element.(map[string]any)["kind"] == variant.Rules.(fakeRules)["kind"]
	}
	out, err := g.Generate(ctx, doc)
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"kind":"a","v":1},{"kind":"b","v":2},{"kind":"c","v":0}]`
	if got := jsondoc.Serialise(out); got != want {
		t.Errorf("Generate() = %s, want %s", got, want)
	}

	m := g.ToMap(types.SpecV4)
	if got := jsondoc.Serialise(m); !strings.HasPrefix(got, `{"type":"ArrayContains","variants":[{"generators":{"$.v":{"max":1,"min":1,"type":"RandomInt"}},"index":0,"rules":{"kind":"a"}}`) {
		t.Errorf("ToMap() = %s", got)
	}
}

// Property: RandomInt always stays within its bounds.
func TestRandomInt_PropertyBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("value lies in [min, max]", prop.ForAll(
		func(lo, span int, seed int64) bool {
			v, err := RandomInt{Min: lo, Max: lo + span}.Generate(NewContext(seed), nil)
			if err != nil {
				return false
			}
			n, err := v.(json.Number).Int64()
			return err == nil && int(n) >= lo && int(n) <= lo+span
		},
		gen.IntRange(-1000, 1000),
		gen.IntRange(0, 1000),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
