// internal/engine/value_test.go
package engine

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestNodeValueStrForm(t *testing.T) {
	tests := []struct {
		name  string
		value NodeValue
		want  string
	}{
		{"null", Null, "NULL"},
		{"string", StringValue("abc"), "'abc'"},
		{"empty string", StringValue(""), "''"},
		{"string with space", StringValue("a b"), "'a b'"},
		{"string with quote", StringValue("it's"), `'it\'s'`},
		{"string with newline", StringValue("a\nb"), `'a\nb'`},
		{"bool", BoolValue(true), "BOOL(true)"},
		{"uint", UintValue(42), "UINT(42)"},
		{"json", JSONValue{Doc: map[string]any{"b": json.Number("1"), "a": "x"}}, `json:{"a":"x","b":1}`},
		{"bytes", BytesValue("hi"), "BYTES(2, aGk=)"},
		{"string list", StringList{"a", "b c"}, "['a', 'b c']"},
		{"multi map", MultiMap{"b": {"1", "2"}, "a": {"x"}, "c": nil}, "{'a': 'x', 'b': ['1', '2'], 'c': []}"},
		{"entry", EntryValue{Key: "k", Value: StringList{"v"}}, "'k' -> ['v']"},
		{"namespaced", NamespacedValue{Namespace: "json", Value: `{"a":1}`}, `json:{"a":1}`},
		{"list", ListValue{StringValue("a"), UintValue(1)}, "['a', UINT(1)]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.StrForm(); got != tt.want {
				t.Errorf("StrForm() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNodeValueTruthy(t *testing.T) {
	tests := []struct {
		name  string
		value NodeValue
		want  bool
	}{
		{"null", Null, false},
		{"empty string", StringValue(""), false},
		{"string", StringValue("a"), true},
		{"false", BoolValue(false), false},
		{"true", BoolValue(true), true},
		{"zero", UintValue(0), false},
		{"non zero", UintValue(3), true},
		{"empty bytes", BytesValue{}, false},
		{"bytes", BytesValue{1}, true},
		{"empty list", StringList{}, false},
		{"list", StringList{"a"}, true},
		{"empty map", MultiMap{}, false},
		{"map", MultiMap{"a": {"b"}}, true},
		{"json", JSONValue{Doc: true}, false},
		{"entry", EntryValue{Key: "a", Value: BoolValue(true)}, false},
		{"namespaced", NamespacedValue{Namespace: "json", Value: "1"}, false},
		{"value list", ListValue{Null}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.Truthy(); got != tt.want {
				t.Errorf("Truthy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToList(t *testing.T) {
	tests := []struct {
		name  string
		value NodeValue
		want  string
	}{
		{"json array", JSONValue{Doc: []any{"a", json.Number("1")}}, `[json:"a", json:1]`},
		{"json scalar", JSONValue{Doc: "a"}, `[json:"a"]`},
		{"string list", StringList{"a", "b"}, "['a', 'b']"},
		{"multi map", MultiMap{"b": {"2"}, "a": {"1"}}, "['a' -> ['1'], 'b' -> ['2']]"},
		{"string", StringValue("a"), "['a']"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ListValue(ToList(tt.value)).StrForm(); got != tt.want {
				t.Errorf("ToList() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	if got := Unwrap(Null); got != nil {
		t.Errorf("Unwrap(Null) = %v, want nil", got)
	}
	if got := Unwrap(UintValue(7)); got != json.Number("7") {
		t.Errorf("Unwrap(UINT(7)) = %v, want 7", got)
	}
	got, ok := Unwrap(MultiMap{"a": {"1", "2"}}).(map[string]any)
	if !ok || len(got["a"].([]any)) != 2 {
		t.Errorf("Unwrap(MultiMap) = %v, want map with two values", got)
	}
}

func TestAndOrValues(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("And of booleans is logical and", prop.ForAll(
		func(a, b bool) bool {
			return And(BoolValue(a), BoolValue(b)) == BoolValue(a && b)
		},
		gen.Bool(), gen.Bool(),
	))

	properties.Property("Or of booleans is logical or", prop.ForAll(
		func(a, b bool) bool {
			return Or(BoolValue(a), BoolValue(b)) == BoolValue(a || b)
		},
		gen.Bool(), gen.Bool(),
	))

	properties.Property("NULL is the identity of And", prop.ForAll(
		func(s string) bool {
			return And(Null, StringValue(s)) == StringValue(s)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
