// internal/engine/value.go

// Package engine evaluates matching plans: trees of execution nodes that
// describe how one actual interaction is checked against a contract. The
// interpreter walks a plan against a ValueResolver and returns an annotated
// copy with a result on every node.
package engine

import (
	"encoding/base64"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/goccy/go-json"

	"github.com/pact-foundation/pactengine/internal/jsondoc"
)

/*
 * NodeValue is a closed set of value kinds. Every kind renders a compact
 * string form used in plan output, reports a display type name, and has a
 * truthiness used by the logical actions and the container verdicts.
 *
 * Values are immutable once constructed. Collections handed to a
 * constructor must not be modified afterwards.
 */

// NodeValue is a value produced or consumed by plan nodes.
type NodeValue interface {
	// StrForm renders the value as it appears in plan output.
	StrForm() string
	// ValueType returns the display name of the value kind.
	ValueType() string
	// Truthy reports whether the value counts as true: non-empty
	// collections and strings, true booleans and non-zero integers.
	Truthy() bool

	nodeValue()
}

// NullValue is the absence of a value.
type NullValue struct{}

// Null is the NullValue.
var Null NodeValue = NullValue{}

// StringValue is a string.
type StringValue string

// BoolValue is a boolean.
type BoolValue bool

// BytesValue is a byte buffer, such as an undecoded body.
type BytesValue []byte

// JSONValue holds a parsed JSON document (see jsondoc).
type JSONValue struct {
	Doc any
}

// MultiMap maps keys to one or more string values, used for headers and
// query parameters.
type MultiMap map[string][]string

// StringList is an ordered list of strings.
type StringList []string

// EntryValue is one key and its value, produced when a map is splatted.
type EntryValue struct {
	Key   string
	Value NodeValue
}

// NamespacedValue is raw text tagged with the namespace that decodes it,
// such as json. It is decoded when the value node is evaluated.
type NamespacedValue struct {
	Namespace string
	Value     string
}

// UintValue is an unsigned integer, such as a length.
type UintValue uint64

// ListValue is an ordered list of values.
type ListValue []NodeValue

func (NullValue) nodeValue()       {}
func (StringValue) nodeValue()     {}
func (BoolValue) nodeValue()       {}
func (BytesValue) nodeValue()      {}
func (JSONValue) nodeValue()       {}
func (MultiMap) nodeValue()        {}
func (StringList) nodeValue()      {}
func (EntryValue) nodeValue()      {}
func (NamespacedValue) nodeValue() {}
func (UintValue) nodeValue()       {}
func (ListValue) nodeValue()       {}

func (NullValue) StrForm() string         { return "NULL" }
func (v StringValue) StrForm() string     { return escapeString(string(v)) }
func (v BoolValue) StrForm() string       { return "BOOL(" + strconv.FormatBool(bool(v)) + ")" }
func (v UintValue) StrForm() string       { return "UINT(" + strconv.FormatUint(uint64(v), 10) + ")" }
func (v JSONValue) StrForm() string       { return "json:" + jsondoc.Serialise(v.Doc) }
func (v EntryValue) StrForm() string      { return escapeString(v.Key) + " -> " + v.Value.StrForm() }
func (v NamespacedValue) StrForm() string { return v.Namespace + ":" + v.Value }

func (v BytesValue) StrForm() string {
	return "BYTES(" + strconv.Itoa(len(v)) + ", " + base64.StdEncoding.EncodeToString(v) + ")"
}

func (v MultiMap) StrForm() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, key := range v.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(escapeString(key))
		values := v[key]
		switch len(values) {
		case 0:
			b.WriteString(": []")
		case 1:
			b.WriteString(": ")
			b.WriteString(escapeString(values[0]))
		default:
			b.WriteString(": ")
			b.WriteString(StringList(values).StrForm())
		}
	}
	b.WriteByte('}')
	return b.String()
}

func (v StringList) StrForm() string {
	parts := make([]string, len(v))
	for i, s := range v {
		parts[i] = escapeString(s)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (v ListValue) StrForm() string {
	parts := make([]string, len(v))
	for i, item := range v {
		parts[i] = item.StrForm()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (NullValue) ValueType() string       { return "NULL" }
func (StringValue) ValueType() string     { return "String" }
func (BoolValue) ValueType() string       { return "Boolean" }
func (BytesValue) ValueType() string      { return "Byte Array" }
func (JSONValue) ValueType() string       { return "JSON" }
func (MultiMap) ValueType() string        { return "Multi-Value String Map" }
func (StringList) ValueType() string      { return "String List" }
func (EntryValue) ValueType() string      { return "Entry" }
func (NamespacedValue) ValueType() string { return "Namespaced Value" }
func (UintValue) ValueType() string       { return "Unsigned Integer" }
func (ListValue) ValueType() string       { return "List" }

func (NullValue) Truthy() bool         { return false }
func (v StringValue) Truthy() bool     { return v != "" }
func (v BoolValue) Truthy() bool       { return bool(v) }
func (v BytesValue) Truthy() bool      { return len(v) > 0 }
func (JSONValue) Truthy() bool         { return false }
func (v MultiMap) Truthy() bool        { return len(v) > 0 }
func (v StringList) Truthy() bool      { return len(v) > 0 }
func (EntryValue) Truthy() bool        { return false }
func (NamespacedValue) Truthy() bool   { return false }
func (v UintValue) Truthy() bool       { return v != 0 }
func (v ListValue) Truthy() bool       { return len(v) > 0 }

// Keys returns the map keys in sorted order.
func (v MultiMap) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// And combines two values: a boolean is and-ed with the other's
// truthiness, NULL yields the other value and anything else compares
// truthiness.
func And(a, b NodeValue) NodeValue {
	switch t := a.(type) {
	case BoolValue:
		return BoolValue(bool(t) && b.Truthy())
	case NullValue:
		return b
	default:
		return BoolValue(a.Truthy() && b.Truthy())
	}
}

// Or is the disjunction counterpart of And.
func Or(a, b NodeValue) NodeValue {
	switch t := a.(type) {
	case BoolValue:
		return BoolValue(bool(t) || b.Truthy())
	case NullValue:
		return b
	default:
		return BoolValue(a.Truthy() || b.Truthy())
	}
}

// ToList spreads a value into its items: JSON arrays into their elements,
// maps into entries in key order and string lists into strings. Any other
// value becomes a one element list.
func ToList(v NodeValue) []NodeValue {
	switch t := v.(type) {
	case JSONValue:
		if arr, ok := t.Doc.([]any); ok {
			out := make([]NodeValue, len(arr))
			for i, item := range arr {
				out[i] = JSONValue{Doc: item}
			}
			return out
		}
	case ListValue:
		return t
	case MultiMap:
		out := make([]NodeValue, 0, len(t))
		for _, k := range t.Keys() {
			out = append(out, EntryValue{Key: k, Value: StringList(t[k])})
		}
		return out
	case StringList:
		out := make([]NodeValue, len(t))
		for i, s := range t {
			out[i] = StringValue(s)
		}
		return out
	}
	return []NodeValue{v}
}

// Unwrap returns the value in the document model used by the matchers.
func Unwrap(v NodeValue) any {
	switch t := v.(type) {
	case nil, NullValue:
		return nil
	case StringValue:
		return string(t)
	case BoolValue:
		return bool(t)
	case BytesValue:
		return []byte(t)
	case JSONValue:
		return t.Doc
	case UintValue:
		return json.Number(strconv.FormatUint(uint64(t), 10))
	case NamespacedValue:
		return t.StrForm()
	case StringList:
		return stringsToAny(t)
	case MultiMap:
		out := make(map[string]any, len(t))
		for k, values := range t {
			out[k] = stringsToAny(values)
		}
		return out
	case EntryValue:
		return map[string]any{t.Key: Unwrap(t.Value)}
	case ListValue:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Unwrap(item)
		}
		return out
	}
	return nil
}

// FromDoc wraps a JSON document value.
func FromDoc(doc any) NodeValue {
	return JSONValue{Doc: doc}
}

func stringsToAny(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

// escapeString quotes s for plan output. Strings holding quotes or
// whitespace are JSON-escaped with single quotes backslash-escaped.
func escapeString(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r == '\'' || unicode.IsSpace(r) }) {
		quoted := jsondoc.Serialise(s)
		inner := quoted[1 : len(quoted)-1]
		return "'" + strings.ReplaceAll(inner, "'", `\'`) + "'"
	}
	return "'" + s + "'"
}
