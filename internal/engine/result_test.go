// internal/engine/result_test.go
package engine

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pact-foundation/pactengine/internal/types"
)

func TestNodeResultAnd(t *testing.T) {
	boom := ErrorResult(types.ErrMismatch, "boom")
	other := ErrorResult(types.ErrMismatch, "other")
	tests := []struct {
		name string
		a, b *NodeResult
		want string
	}{
		{"ok and ok", OK(), OK(), "OK"},
		{"ok and value", OK(), ValueResult(BoolValue(false)), "BOOL(false)"},
		{"value and ok", ValueResult(StringValue("a")), OK(), "'a'"},
		{"values", ValueResult(BoolValue(true)), ValueResult(StringValue("")), "BOOL(false)"},
		{"error first", boom, other, "ERROR(boom)"},
		{"error second", ValueResult(BoolValue(true)), boom, "ERROR(boom)"},
		{"nil other", OK(), nil, "OK"},
		{"nil receiver", nil, boom, "ERROR(boom)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.And(tt.b).String(); got != tt.want {
				t.Errorf("And() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNodeResultOr(t *testing.T) {
	boom := ErrorResult(types.ErrMismatch, "boom")
	tests := []struct {
		name string
		a, b *NodeResult
		want string
	}{
		{"error yields to value", boom, ValueResult(BoolValue(true)), "BOOL(true)"},
		{"value over error", ValueResult(BoolValue(false)), boom, "BOOL(false)"},
		{"two errors keep first", boom, ErrorResult(types.ErrMismatch, "later"), "ERROR(boom)"},
		{"ok absorbs", OK(), ValueResult(BoolValue(false)), "OK"},
		{"values", ValueResult(BoolValue(false)), ValueResult(StringValue("a")), "BOOL(true)"},
		{"nil receiver", nil, boom, "ERROR(boom)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Or(tt.b).String(); got != tt.want {
				t.Errorf("Or() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNodeResultConversions(t *testing.T) {
	tests := []struct {
		name     string
		result   *NodeResult
		wantStr  string
		wantUint uint64
		uintOK   bool
	}{
		{"string", ValueResult(StringValue("12")), "12", 12, true},
		{"uint", ValueResult(UintValue(3)), "3", 3, true},
		{"json string", ValueResult(JSONValue{Doc: "x"}), "x", 0, false},
		{"json integer", ValueResult(JSONValue{Doc: 5}), "5", 5, true},
		{"json negative", ValueResult(JSONValue{Doc: -5}), "-5", 0, false},
		{"null", ValueResult(Null), "", 0, false},
		{"string list", ValueResult(StringList{"a", "b"}), "a, b", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := tt.result.AsString(); got != tt.wantStr {
				t.Errorf("AsString() = %q, want %q", got, tt.wantStr)
			}
			got, ok := tt.result.AsUint()
			if ok != tt.uintOK || got != tt.wantUint {
				t.Errorf("AsUint() = %d, %v, want %d, %v", got, ok, tt.wantUint, tt.uintOK)
			}
		})
	}
}

func TestNodeResultValueOrError(t *testing.T) {
	v, err := OK().ValueOrError()
	if err != nil || v != BoolValue(true) {
		t.Errorf("OK().ValueOrError() = %v, %v, want BOOL(true)", v, err)
	}
	_, err = ErrorResult(types.ErrTypeMismatch, "bad").ValueOrError()
	if !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("ValueOrError() error = %v, want ErrTypeMismatch", err)
	}
}

func TestNodeResultAndIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("OK is the identity of And", prop.ForAll(
		func(b bool) bool {
			r := ValueResult(BoolValue(b))
			return OK().And(r).String() == r.String() && r.And(OK()).String() == r.String()
		},
		gen.Bool(),
	))

	properties.Property("an error anywhere makes And an error", prop.ForAll(
		func(values []bool, at int) bool {
			result := OK()
			for idx, b := range values {
				if idx == at%len(values) {
					result = result.And(ErrorResult(types.ErrMismatch, "x"))
					continue
				}
				result = result.And(ValueResult(BoolValue(b)))
			}
			return result.IsError() && !result.IsTruthy()
		},
		gen.SliceOfN(5, gen.Bool()), gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
