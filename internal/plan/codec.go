// internal/plan/codec.go

// Package plan reads and writes execution plans as JSON or YAML documents.
package plan

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/pact-foundation/pactengine/internal/docpath"
	"github.com/pact-foundation/pactengine/internal/engine"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/types"
)

/*
 * Plan documents.
 *
 * Every node is an object with a kind and, depending on the kind, a label,
 * a path, a value and children:
 *
 *   kind: container
 *   label: headers
 *   children:
 *     - kind: action
 *       label: match:equality
 *       children:
 *         - {kind: value, value: {type: string, value: application/json}}
 *         - {kind: resolve, path: $.headers.accept}
 *         - {kind: value}
 *
 * Values are tagged with their type: null, string, string-list, multi-map,
 * uint, bool, bytes (base64), json (the document as JSON text), namespaced
 * (namespace:text), list and entry. A value without a type is NULL. JSON
 * documents are carried as text so that YAML round trips keep the number
 * forms.
 *
 * Executed plans may carry a result on each node:
 *
 *   result: {kind: ok}
 *   result: {kind: value, value: {type: bool, value: true}}
 *   result: {kind: error, error: mismatch, message: Expected ...}
 *
 * Documents larger than types.MaxPlanNodes nodes or deeper than
 * types.MaxPlanDepth are rejected.
 */

// Format is the encoding of a plan document.
type Format int

// Formats.
const (
	FormatJSON Format = iota
	FormatYAML
)

// String returns the format name.
func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// FormatFor picks the format from a file name extension. Anything that is
// not .yaml or .yml is JSON.
func FormatFor(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// ParseFormat accepts "json", "yaml" and "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return FormatJSON, fmt.Errorf("unknown plan format %q (expected json or yaml)", s)
}

// Document is the serialised form of a plan node.
type Document struct {
	Kind     string      `json:"kind" yaml:"kind"`
	Label    string      `json:"label,omitempty" yaml:"label,omitempty"`
	Path     string      `json:"path,omitempty" yaml:"path,omitempty"`
	Value    *ValueDoc   `json:"value,omitempty" yaml:"value,omitempty"`
	Result   *ResultDoc  `json:"result,omitempty" yaml:"result,omitempty"`
	Children []*Document `json:"children,omitempty" yaml:"children,omitempty"`
}

// ValueDoc is a tagged NodeValue.
type ValueDoc struct {
	Type  string `json:"type" yaml:"type"`
	Value any    `json:"value" yaml:"value"`
}

// EntryDoc is the value of an entry ValueDoc.
type EntryDoc struct {
	Key   string    `json:"key" yaml:"key"`
	Value *ValueDoc `json:"value" yaml:"value"`
}

// ResultDoc is the serialised result of an executed node.
type ResultDoc struct {
	Kind    string    `json:"kind" yaml:"kind"`
	Value   *ValueDoc `json:"value,omitempty" yaml:"value,omitempty"`
	Error   string    `json:"error,omitempty" yaml:"error,omitempty"`
	Message string    `json:"message,omitempty" yaml:"message,omitempty"`
}

// Decode reads a plan document.
func Decode(data []byte, format Format) (*engine.ExecutionPlanNode, error) {
	if len(data) > types.MaxPayloadSize {
		return nil, invalidPlan("document is %d bytes, the limit is %d", len(data), types.MaxPayloadSize)
	}

	var doc any
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
			return nil, invalidPlan("failed to parse YAML: %v", err)
		}
		doc = jsondoc.Normalise(yamlToDoc(doc))
	default:
		var err error
		if doc, err = jsondoc.Parse(data); err != nil {
			return nil, invalidPlan("failed to parse JSON: %v", err)
		}
	}

	d := &decoder{}
	return d.node(doc, 1)
}

// Encode writes a plan, with the results of executed nodes, as a document.
func Encode(node *engine.ExecutionPlanNode, format Format) ([]byte, error) {
	doc := ToDocument(node)
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode plan: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode plan: %w", err)
		}
		return buf.Bytes(), nil
	default:
		b, err := jsondoc.MarshalIndent(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode plan: %w", err)
		}
		return b, nil
	}
}

// ToDocument converts a plan node and its subtree.
func ToDocument(node *engine.ExecutionPlanNode) *Document {
	t := node.NodeType
	doc := &Document{Kind: t.Kind.String()}
	switch t.Kind {
	case engine.KindContainer, engine.KindAction, engine.KindAnnotation:
		doc.Label = t.Label
	case engine.KindResolve, engine.KindResolveCurrent:
		doc.Path = t.Path.String()
	case engine.KindValue:
		doc.Value = valueDoc(t.Value)
	}
	if node.Result != nil {
		doc.Result = resultDoc(node.Result)
	}
	for _, child := range node.Children {
		doc.Children = append(doc.Children, ToDocument(child))
	}
	return doc
}

func valueDoc(v engine.NodeValue) *ValueDoc {
	switch t := v.(type) {
	case nil, engine.NullValue:
		return &ValueDoc{Type: "null"}
	case engine.StringValue:
		return &ValueDoc{Type: "string", Value: string(t)}
	case engine.BoolValue:
		return &ValueDoc{Type: "bool", Value: bool(t)}
	case engine.UintValue:
		return &ValueDoc{Type: "uint", Value: uint64(t)}
	case engine.BytesValue:
		return &ValueDoc{Type: "bytes", Value: base64.StdEncoding.EncodeToString(t)}
	case engine.StringList:
		return &ValueDoc{Type: "string-list", Value: []string(t)}
	case engine.MultiMap:
		return &ValueDoc{Type: "multi-map", Value: map[string][]string(t)}
	case engine.JSONValue:
		return &ValueDoc{Type: "json", Value: jsondoc.Serialise(t.Doc)}
	case engine.NamespacedValue:
		return &ValueDoc{Type: "namespaced", Value: t.StrForm()}
	case engine.ListValue:
		items := make([]*ValueDoc, len(t))
		for i, item := range t {
			items[i] = valueDoc(item)
		}
		return &ValueDoc{Type: "list", Value: items}
	case engine.EntryValue:
		return &ValueDoc{Type: "entry", Value: &EntryDoc{Key: t.Key, Value: valueDoc(t.Value)}}
	}
	return &ValueDoc{Type: "string", Value: v.StrForm()}
}

func resultDoc(r *engine.NodeResult) *ResultDoc {
	switch r.Kind {
	case engine.ResultValue:
		return &ResultDoc{Kind: "value", Value: valueDoc(r.Value)}
	case engine.ResultError:
		doc := &ResultDoc{Kind: "error", Message: r.Message()}
		if r.Err != nil && r.Err.Kind != nil {
			doc.Error = r.Err.Kind.Error()
		}
		return doc
	}
	return &ResultDoc{Kind: "ok"}
}

type decoder struct {
	nodes int
}

func (d *decoder) node(doc any, depth int) (*engine.ExecutionPlanNode, error) {
	d.nodes++
	if d.nodes > types.MaxPlanNodes {
		return nil, invalidPlan("plan has more than %d nodes", types.MaxPlanNodes)
	}
	if depth > types.MaxPlanDepth {
		return nil, invalidPlan("plan is nested deeper than %d nodes", types.MaxPlanDepth)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, invalidPlan("%s is not a plan node", jsondoc.Serialise(doc))
	}
	kindName, _ := obj["kind"].(string)
	kind, ok := engine.ParseNodeKind(kindName)
	if !ok {
		return nil, invalidPlan("'%s' is not a known node kind", kindName)
	}
	label, _ := obj["label"].(string)

	var node *engine.ExecutionPlanNode
	switch kind {
	case engine.KindContainer:
		node = engine.ContainerNode(label)
	case engine.KindAction:
		if label == "" {
			return nil, invalidPlan("action node has no label")
		}
		node = engine.ActionNode(label)
	case engine.KindAnnotation:
		node = engine.AnnotationNode(label)
	case engine.KindPipeline:
		node = engine.PipelineNode()
	case engine.KindSplat:
		node = engine.SplatNode()
	case engine.KindEmpty:
		node = engine.EmptyNode()
	case engine.KindResolve, engine.KindResolveCurrent:
		expr, _ := obj["path"].(string)
		path, err := docpath.Parse(expr)
		if err != nil {
			return nil, invalidPlan("%s node has an invalid path: %v", kind, err)
		}
		if kind == engine.KindResolve {
			node = engine.ResolveNode(path)
		} else {
			node = engine.ResolveCurrentNode(path)
		}
	case engine.KindValue:
		v, err := decodeValue(obj["value"])
		if err != nil {
			return nil, err
		}
		node = engine.ValueNode(v)
	}

	if raw, ok := obj["result"]; ok && raw != nil {
		r, err := decodeResult(raw)
		if err != nil {
			return nil, err
		}
		node.Result = r
	}

	if raw, ok := obj["children"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, invalidPlan("children of a %s node must be a list", kind)
		}
		for _, item := range list {
			child, err := d.node(item, depth+1)
			if err != nil {
				return nil, err
			}
			node.Add(child)
		}
	}
	return node, nil
}

func decodeValue(raw any) (engine.NodeValue, error) {
	if raw == nil {
		return engine.Null, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, invalidPlan("%s is not a tagged value", jsondoc.Serialise(raw))
	}
	typeName, _ := obj["type"].(string)
	if obj["type"] == nil {
		typeName = "null"
	}
	v := obj["value"]

	switch typeName {
	case "null":
		return engine.Null, nil
	case "string":
		switch s := v.(type) {
		case nil:
			return engine.StringValue(""), nil
		case string:
			return engine.StringValue(s), nil
		case json.Number, bool:
			return engine.StringValue(fmt.Sprint(s)), nil
		}
		return nil, badValue(typeName, v)
	case "bool":
		b, ok := v.(bool)
		if !ok {
			return nil, badValue(typeName, v)
		}
		return engine.BoolValue(b), nil
	case "uint":
		n, ok := v.(json.Number)
		if !ok {
			return nil, badValue(typeName, v)
		}
		var u uint64
		if _, err := fmt.Sscan(string(n), &u); err != nil {
			return nil, badValue(typeName, v)
		}
		return engine.UintValue(u), nil
	case "bytes":
		s, _ := v.(string)
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, badValue(typeName, v)
		}
		return engine.BytesValue(b), nil
	case "string-list":
		list, err := stringList(v)
		if err != nil {
			return nil, badValue(typeName, v)
		}
		return engine.StringList(list), nil
	case "multi-map":
		obj, ok := v.(map[string]any)
		if !ok && v != nil {
			return nil, badValue(typeName, v)
		}
		m := make(engine.MultiMap, len(obj))
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			list, err := stringList(obj[k])
			if err != nil {
				return nil, badValue(typeName, v)
			}
			m[k] = list
		}
		return m, nil
	case "json":
		s, ok := v.(string)
		if !ok {
			return nil, badValue(typeName, v)
		}
		doc, err := jsondoc.ParseString(s)
		if err != nil {
			return nil, invalidPlan("json value is not valid JSON: %v", err)
		}
		return engine.JSONValue{Doc: doc}, nil
	case "namespaced":
		s, _ := v.(string)
		ns, text, found := strings.Cut(s, ":")
		if !found || ns == "" {
			return nil, badValue(typeName, v)
		}
		return engine.NamespacedValue{Namespace: ns, Value: text}, nil
	case "list":
		items, ok := v.([]any)
		if !ok && v != nil {
			return nil, badValue(typeName, v)
		}
		list := make(engine.ListValue, 0, len(items))
		for _, item := range items {
			iv, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			list = append(list, iv)
		}
		return list, nil
	case "entry":
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, badValue(typeName, v)
		}
		key, _ := obj["key"].(string)
		ev, err := decodeValue(obj["value"])
		if err != nil {
			return nil, err
		}
		return engine.EntryValue{Key: key, Value: ev}, nil
	}
	return nil, invalidPlan("'%s' is not a known value type", typeName)
}

func decodeResult(raw any) (*engine.NodeResult, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, invalidPlan("%s is not a node result", jsondoc.Serialise(raw))
	}
	kind, _ := obj["kind"].(string)
	switch kind {
	case "ok":
		return engine.OK(), nil
	case "value":
		v, err := decodeValue(obj["value"])
		if err != nil {
			return nil, err
		}
		return engine.ValueResult(v), nil
	case "error":
		name, _ := obj["error"].(string)
		msg, _ := obj["message"].(string)
		return engine.ErrorResult(errorKind(name), msg), nil
	}
	return nil, invalidPlan("'%s' is not a known result kind", kind)
}

var errorKinds = []error{
	types.ErrUnknownAction,
	types.ErrUnknownNamespace,
	types.ErrUnresolvablePath,
	types.ErrEmptyStack,
	types.ErrTypeMismatch,
	types.ErrUnsupportedPathShape,
	types.ErrPlanTooDeep,
	types.ErrInvalidPath,
	types.ErrInvalidMatcher,
	types.ErrInvalidGenerator,
	types.ErrInvalidExpression,
	types.ErrInvalidArguments,
	types.ErrMismatch,
}

// errorKind maps a sentinel's text back to the sentinel. Unknown names are
// treated as mismatches.
func errorKind(name string) error {
	for _, kind := range errorKinds {
		if kind.Error() == name {
			return kind
		}
	}
	return types.ErrMismatch
}

func stringList(v any) ([]string, error) {
	if v == nil {
		return []string{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("not a list")
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("not a string")
		}
		out[i] = s
	}
	return out, nil
}

// yamlToDoc converts the generic yaml.v3 decoding into the document model.
// Maps with non-string keys have their keys rendered as text.
func yamlToDoc(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = yamlToDoc(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = yamlToDoc(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = yamlToDoc(e)
		}
		return out
	case uint64:
		return json.Number(fmt.Sprint(t))
	}
	return v
}

func invalidPlan(format string, args ...any) error {
	return types.NewEvalError(types.ErrInvalidPlan, fmt.Sprintf(format, args...))
}

func badValue(typeName string, v any) error {
	return invalidPlan("%s is not a valid %s value", jsondoc.Serialise(v), typeName)
}
