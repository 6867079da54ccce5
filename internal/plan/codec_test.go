// internal/plan/codec_test.go
package plan

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pact-foundation/pactengine/internal/docpath"
	"github.com/pact-foundation/pactengine/internal/engine"
	"github.com/pact-foundation/pactengine/internal/types"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func samplePlan() *engine.ExecutionPlanNode {
	return engine.ContainerNode("request").Add(
		engine.AnnotationNode("method == GET"),
		engine.ActionNode("match:equality").Add(
			engine.StringNode("GET"),
			engine.ActionNode("upper-case").Add(engine.ResolveExpr("$.method")),
			engine.ValueNode(engine.Null),
		),
		engine.ActionNode("tee").Add(
			engine.ActionNode("json:parse").Add(engine.ResolveExpr("$.body")),
			engine.ActionNode("match:equality").Add(
				engine.NamespacedNode("json", `{"id":1}`),
				engine.ResolveCurrentNode(docpath.MustParse("$")),
				engine.ValueNode(engine.Null),
			),
		),
		engine.PipelineNode().Add(engine.SplatNode().Add(engine.ActionNode("apply"))),
		engine.EmptyNode(),
		engine.ValueNode(engine.ListValue{
			engine.UintValue(7),
			engine.BoolValue(false),
			engine.BytesValue("abc"),
			engine.StringList{"a", "b"},
			engine.MultiMap{"k": {"1", "2"}, "x": {"y"}},
			engine.JSONValue{Doc: []any{"a", nil}},
			engine.EntryValue{Key: "k", Value: engine.StringValue("")},
		}),
	)
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(format.String(), func(t *testing.T) {
			plan := samplePlan()
			data, err := Encode(plan, format)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := Decode(data, format)
			if err != nil {
				t.Fatalf("Decode() error = %v\n%s", err, data)
			}
			if got.StrForm() != plan.StrForm() {
				t.Errorf("Decode(Encode()) = %s, want %s", got.StrForm(), plan.StrForm())
			}
		})
	}
}

func TestRoundTripExecutedPlan(t *testing.T) {
	plan := engine.ContainerNode("headers").Add(
		engine.ActionNode("match:equality").Add(
			engine.StringNode("application/json"),
			engine.ResolveExpr("$.headers.accept"),
			engine.ValueNode(engine.Null),
		),
	)
	resolver := engine.ResolverFunc(func(path docpath.DocPath, _ *engine.PlanMatchingContext) (engine.NodeValue, error) {
		return engine.StringValue("text/html"), nil
	})
	ctx := engine.NewPlanMatchingContext(engine.MatchingConfiguration{}, nil)
	executed := engine.NewInterpreter(ctx).WithLogger(discard).Execute(plan, resolver)

	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(format.String(), func(t *testing.T) {
			data, err := Encode(executed, format)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := Decode(data, format)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got.PrettyForm() != executed.PrettyForm() {
				t.Errorf("Decode(Encode()) = %s, want %s", got.PrettyForm(), executed.PrettyForm())
			}
			if !reflect.DeepEqual(got.Errors(), executed.Errors()) {
				t.Errorf("Errors() = %v, want %v", got.Errors(), executed.Errors())
			}
			if err := got.Children[0].Result.Err; err == nil || !errors.Is(err, types.ErrMismatch) {
				t.Errorf("Result.Err = %v, want a mismatch", err)
			}
		})
	}
}

func TestEncodeNestedPlanSize(t *testing.T) {
	node := engine.ResolveExpr("$.method")
	for i := 0; i < 5; i++ {
		node = engine.ActionNode("upper-case").Add(node)
	}
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(format.String(), func(t *testing.T) {
			data, err := Encode(node, format)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if len(data) > 2048 {
				t.Errorf("Encode() = %d bytes, want at most 2048", len(data))
			}
			got, err := Decode(data, format)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got.StrForm() != node.StrForm() {
				t.Errorf("Decode(Encode()) = %s, want %s", got.StrForm(), node.StrForm())
			}
		})
	}
}

func TestDecodeHandWrittenYAML(t *testing.T) {
	doc := `
kind: container
label: headers
children:
  - kind: action
    label: match:equality
    children:
      - {kind: value, value: {type: string, value: application/json}}
      - {kind: resolve, path: $.headers.accept}
      - {kind: value}
  - kind: value
    value: {type: uint, value: 200}
  - kind: value
    value: {type: string, value: 42}
`
	got, err := Decode([]byte(doc), FormatYAML)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := engine.ContainerNode("headers").Add(
		engine.ActionNode("match:equality").Add(
			engine.StringNode("application/json"),
			engine.ResolveExpr("$.headers.accept"),
			engine.ValueNode(engine.Null),
		),
		engine.UintNode(200),
		engine.StringNode("42"),
	)
	if got.StrForm() != want.StrForm() {
		t.Errorf("Decode() = %s, want %s", got.StrForm(), want.StrForm())
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		format Format
		want   string
	}{
		{"not json", `{`, FormatJSON, "failed to parse JSON"},
		{"not yaml", "kind: [", FormatYAML, "failed to parse YAML"},
		{"not an object", `[]`, FormatJSON, "is not a plan node"},
		{"unknown kind", `{"kind": "loop"}`, FormatJSON, "'loop' is not a known node kind"},
		{"action without label", `{"kind": "action"}`, FormatJSON, "action node has no label"},
		{"bad path", `{"kind": "resolve", "path": "a.b"}`, FormatJSON, "resolve node has an invalid path"},
		{"unknown value type", `{"kind": "value", "value": {"type": "float"}}`, FormatJSON, "'float' is not a known value type"},
		{"bad uint", `{"kind": "value", "value": {"type": "uint", "value": "x"}}`, FormatJSON, "is not a valid uint value"},
		{"bad json", `{"kind": "value", "value": {"type": "json", "value": "{"}}`, FormatJSON, "json value is not valid JSON"},
		{"bad namespaced", `{"kind": "value", "value": {"type": "namespaced", "value": "abc"}}`, FormatJSON, "is not a valid namespaced value"},
		{"children not a list", `{"kind": "container", "children": {}}`, FormatJSON, "children of a container node must be a list"},
		{"unknown result", `{"kind": "empty", "result": {"kind": "maybe"}}`, FormatJSON, "'maybe' is not a known result kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc), tt.format)
			if err == nil {
				t.Fatalf("Decode(%s) error = nil, want %s", tt.doc, tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Decode(%s) error = %v, want %s", tt.doc, err, tt.want)
			}
			if !errors.Is(err, types.ErrInvalidPlan) {
				t.Errorf("Decode(%s) error kind = %v, want %v", tt.doc, err, types.ErrInvalidPlan)
			}
		})
	}
}

func TestDecodeDepthLimit(t *testing.T) {
	doc := strings.Repeat(`{"kind": "container", "children": [`, types.MaxPlanDepth+1) +
		strings.Repeat(`]}`, types.MaxPlanDepth+1)
	_, err := Decode([]byte(doc), FormatJSON)
	if !errors.Is(err, types.ErrInvalidPlan) {
		t.Errorf("Decode() error = %v, want %v", err, types.ErrInvalidPlan)
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"plan.yaml", FormatYAML},
		{"plan.YML", FormatYAML},
		{"plan.json", FormatJSON},
		{"plan", FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatFor(tt.name); got != tt.want {
				t.Errorf("FormatFor(%s) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}

	if _, err := ParseFormat("xml"); err == nil {
		t.Errorf("ParseFormat(xml) error = nil, want error")
	}
}

func TestValueRoundTripProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	roundTrips := func(v engine.NodeValue) bool {
		node := engine.ValueNode(v)
		for _, format := range []Format{FormatJSON, FormatYAML} {
			data, err := Encode(node, format)
			if err != nil {
				return false
			}
			got, err := Decode(data, format)
			if err != nil || got.StrForm() != node.StrForm() {
				return false
			}
		}
		return true
	}

	properties.Property("strings survive encoding", prop.ForAll(
		func(s string) bool { return roundTrips(engine.StringValue(s)) },
		gen.AlphaString(),
	))
	properties.Property("unsigned integers survive encoding", prop.ForAll(
		func(n uint64) bool { return roundTrips(engine.UintValue(n)) },
		gen.UInt64(),
	))
	properties.Property("string lists survive encoding", prop.ForAll(
		func(items []string) bool { return roundTrips(engine.StringList(items)) },
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestCatalog(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	write("get-items.yaml", "kind: container\nlabel: request\n")
	write("post-items.json", `{"kind": "container", "label": "request"}`)
	write("broken.json", `{"kind": "loop"}`)
	write("notes.txt", "not a plan")

	c := NewCatalog(dir, discard)
	err := c.Load()
	if err == nil || !strings.Contains(err.Error(), "broken.json") {
		t.Errorf("Load() error = %v, want the broken.json failure", err)
	}
	if got, want := c.Names(), []string{"get-items", "post-items"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}

	path := write("get-items.yaml", "kind: container\nlabel: changed\n")
	if err := c.Reload(path); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if node, ok := c.Get("get-items"); !ok || node.NodeType.Label != "changed" {
		t.Errorf("Get(get-items) = %v, want the reloaded plan", node)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := c.Reload(path); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if _, ok := c.Get("get-items"); ok {
		t.Errorf("Get(get-items) found a removed plan")
	}
}
