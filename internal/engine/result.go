// internal/engine/result.go
package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/types"
)

// ResultKind is the outcome of executing a node.
type ResultKind int

// Result kinds.
const (
	ResultOK ResultKind = iota
	ResultValue
	ResultError
)

// NodeResult is the outcome attached to an executed node: OK, a value, or
// an error carrying the message reported for that node.
type NodeResult struct {
	Kind  ResultKind
	Value NodeValue
	Err   *types.EvalError
}

// OK returns a successful result with no value.
func OK() *NodeResult { return &NodeResult{Kind: ResultOK} }

// ValueResult returns a successful result holding v.
func ValueResult(v NodeValue) *NodeResult {
	if v == nil {
		v = Null
	}
	return &NodeResult{Kind: ResultValue, Value: v}
}

// ErrorResult returns a failed result of the given kind.
func ErrorResult(kind error, msg string) *NodeResult {
	return &NodeResult{Kind: ResultError, Err: types.NewEvalError(kind, msg)}
}

// Errorf is ErrorResult with a formatted message.
func Errorf(kind error, format string, args ...any) *NodeResult {
	return ErrorResult(kind, fmt.Sprintf(format, args...))
}

// IsError reports whether r is an error result.
func (r *NodeResult) IsError() bool { return r != nil && r.Kind == ResultError }

// IsOK reports whether r is the plain OK result.
func (r *NodeResult) IsOK() bool { return r != nil && r.Kind == ResultOK }

// Message returns the error message, or "" for non-error results.
func (r *NodeResult) Message() string {
	if r.IsError() {
		return r.Err.Msg
	}
	return ""
}

// IsTruthy reports whether the result counts as success: OK, or a value
// that is itself truthy.
func (r *NodeResult) IsTruthy() bool {
	if r == nil {
		return false
	}
	switch r.Kind {
	case ResultOK:
		return true
	case ResultValue:
		return r.Value.Truthy()
	default:
		return false
	}
}

// Truthy converts the result into a boolean value result.
func (r *NodeResult) Truthy() *NodeResult {
	return ValueResult(BoolValue(r.IsTruthy()))
}

// And combines two results. The first error wins, OK is the identity and
// two values are combined with And.
func (r *NodeResult) And(other *NodeResult) *NodeResult {
	if other == nil {
		return r
	}
	if r == nil {
		return other
	}
	switch r.Kind {
	case ResultError:
		return r
	case ResultOK:
		return other
	default:
		switch other.Kind {
		case ResultError:
			return other
		case ResultOK:
			return r
		default:
			return ValueResult(And(r.Value, other.Value))
		}
	}
}

// Or combines two results. An error yields to any non-error result, OK
// absorbs everything else and two values are combined with Or.
func (r *NodeResult) Or(other *NodeResult) *NodeResult {
	if other == nil {
		return r
	}
	if r == nil {
		return other
	}
	switch r.Kind {
	case ResultError:
		if other.Kind == ResultError {
			return r
		}
		return other
	case ResultOK:
		return r
	default:
		switch other.Kind {
		case ResultError:
			return r
		case ResultOK:
			return other
		default:
			return ValueResult(Or(r.Value, other.Value))
		}
	}
}

// AsValue returns the value of a value result.
func (r *NodeResult) AsValue() (NodeValue, bool) {
	if r == nil || r.Kind != ResultValue {
		return nil, false
	}
	return r.Value, true
}

// ValueOrNull returns the value of a value result, or Null.
func (r *NodeResult) ValueOrNull() NodeValue {
	if v, ok := r.AsValue(); ok {
		return v
	}
	return Null
}

// ValueOrError returns the value of the result. OK counts as true and an
// error result returns its error.
func (r *NodeResult) ValueOrError() (NodeValue, error) {
	if r == nil {
		return Null, nil
	}
	switch r.Kind {
	case ResultOK:
		return BoolValue(true), nil
	case ResultValue:
		return r.Value, nil
	default:
		return nil, r.Err
	}
}

// AsString renders a value result as plain text.
func (r *NodeResult) AsString() (string, bool) {
	v, ok := r.AsValue()
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case NullValue:
		return "", true
	case StringValue:
		return string(t), true
	case BoolValue:
		return strconv.FormatBool(bool(t)), true
	case UintValue:
		return strconv.FormatUint(uint64(t), 10), true
	case JSONValue:
		return jsondoc.String(t.Doc), true
	case StringList:
		return strings.Join(t, ", "), true
	default:
		return v.StrForm(), true
	}
}

// AsStringList returns the items of a string list result. A single string
// counts as a one item list.
func (r *NodeResult) AsStringList() ([]string, bool) {
	v, ok := r.AsValue()
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case StringList:
		return t, true
	case StringValue:
		return []string{string(t)}, true
	case ListValue:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := ValueResult(item).AsString()
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// AsUint returns the integer of an unsigned integer result. JSON integers
// are accepted too.
func (r *NodeResult) AsUint() (uint64, bool) {
	v, ok := r.AsValue()
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case UintValue:
		return uint64(t), true
	case JSONValue:
		if n, ok := jsondoc.Normalise(t.Doc).(interface{ Int64() (int64, error) }); ok {
			if i, err := n.Int64(); err == nil && i >= 0 {
				return uint64(i), true
			}
		}
	case StringValue:
		if i, err := strconv.ParseUint(string(t), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

// String renders the result as it appears in plan output.
func (r *NodeResult) String() string {
	if r == nil {
		return ""
	}
	switch r.Kind {
	case ResultOK:
		return "OK"
	case ResultValue:
		return r.Value.StrForm()
	default:
		return "ERROR(" + r.Err.Msg + ")"
	}
}
