// Package jsondoc holds the JSON document model used throughout the engine.
//
// Documents are the generic decoding of goccy/go-json with numbers kept as
// json.Number, so integers and decimals retain their textual form:
//
//	nil, bool, json.Number, string, []any, map[string]any
//
// Object keys are serialised in sorted order.
package jsondoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Parse decodes exactly one JSON document from data.
func Parse(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("unexpected end of input, expected a JSON value")
		}
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected characters after the JSON document at offset %d", dec.InputOffset())
	}
	return v, nil
}

// ParseString decodes exactly one JSON document from s.
func ParseString(s string) (any, error) {
	return Parse([]byte(s))
}

// Serialise renders v as compact JSON with sorted object keys.
func Serialise(v any) string {
	b, err := Marshal(Normalise(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// Pretty renders v as indented JSON with sorted object keys.
func Pretty(v any) string {
	b, err := MarshalIndent(Normalise(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// Marshal encodes v as compact JSON. Unlike json.Marshal, the characters
// <, > and & are written as is.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// MarshalIndent encodes v as JSON indented by two spaces. The compact form
// is indented afterwards; the indenting encoder misbehaves on deeply
// nested recursive types.
func MarshalIndent(v any) ([]byte, error) {
	compact, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Normalise converts Go values produced outside the decoder (ints, floats,
// typed slices and maps) into the document model.
func Normalise(v any) any {
	switch t := v.(type) {
	case nil, bool, string, json.Number:
		return t
	case int:
		return json.Number(strconv.Itoa(t))
	case int64:
		return json.Number(strconv.FormatInt(t, 10))
	case uint64:
		return json.Number(strconv.FormatUint(t, 10))
	case float64:
		return json.Number(strconv.FormatFloat(t, 'f', -1, 64))
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalise(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Normalise(e)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = e
		}
		return out
	default:
		return t
	}
}

// TypeName returns the display name of the JSON value's kind.
func TypeName(v any) string {
	switch t := v.(type) {
	case nil:
		return "Null"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case json.Number:
		if IsInteger(t) {
			return "Integer"
		}
		return "Decimal"
	case string:
		return "String"
	case []any:
		return "Array"
	case map[string]any:
		return "Object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// IsInteger reports whether n has no fractional or exponent part.
func IsInteger(n json.Number) bool {
	return !strings.ContainsAny(string(n), ".eE")
}

// String returns the unquoted text of a string value, or its serialised form.
func String(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return Serialise(v)
}

// Size returns the number of elements in an array or object, the rune length
// of a string, and 1 for any other value.
func Size(v any) int {
	switch t := v.(type) {
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	case string:
		return len([]rune(t))
	default:
		return 1
	}
}

// SortedKeys returns the keys of an object in sorted order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal compares two documents structurally. Numbers compare by value.
func Equal(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case json.Number:
		y, ok := b.(json.Number)
		return ok && NumbersEqual(x, y)
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// NumbersEqual compares two JSON numbers by value.
func NumbersEqual(a, b json.Number) bool {
	if a == b {
		return true
	}
	x, ok1 := new(big.Float).SetString(string(a))
	y, ok2 := new(big.Float).SetString(string(b))
	if !ok1 || !ok2 {
		return false
	}
	return x.Cmp(y) == 0
}

// Pointer resolves an RFC 6901 JSON pointer against doc.
func Pointer(doc any, ptr string) (any, bool) {
	if ptr == "" {
		return doc, true
	}
	if !strings.HasPrefix(ptr, "/") {
		return nil, false
	}
	current := doc
	for _, raw := range strings.Split(ptr[1:], "/") {
		part := strings.ReplaceAll(strings.ReplaceAll(raw, "~1", "/"), "~0", "~")
		switch t := current.(type) {
		case map[string]any:
			v, ok := t[part]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(t) {
				return nil, false
			}
			current = t[i]
		default:
			return nil, false
		}
	}
	return current, true
}

// EscapePointerToken escapes a key for use inside a JSON pointer.
func EscapePointerToken(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}

// Clone returns a deep copy of a document.
func Clone(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	default:
		return t
	}
}

// SetPointer replaces the value at an RFC 6901 pointer and returns the
// (possibly new) root. An empty pointer replaces the root itself. Missing
// locations are left alone and reported as not ok.
func SetPointer(doc any, ptr string, value any) (any, bool) {
	if ptr == "" {
		return value, true
	}
	if !strings.HasPrefix(ptr, "/") {
		return doc, false
	}
	parts := strings.Split(ptr[1:], "/")
	parent := doc
	if len(parts) > 1 {
		var ok bool
		parent, ok = Pointer(doc, "/"+strings.Join(parts[:len(parts)-1], "/"))
		if !ok {
			return doc, false
		}
	}
	last := strings.ReplaceAll(strings.ReplaceAll(parts[len(parts)-1], "~1", "/"), "~0", "~")
	switch t := parent.(type) {
	case map[string]any:
		if _, ok := t[last]; !ok {
			return doc, false
		}
		t[last] = value
	case []any:
		i, err := strconv.Atoi(last)
		if err != nil || i < 0 || i >= len(t) {
			return doc, false
		}
		t[i] = value
	default:
		return doc, false
	}
	return doc, true
}
