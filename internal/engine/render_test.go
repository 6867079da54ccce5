// internal/engine/render_test.go
package engine

import (
	"strings"
	"testing"

	"github.com/pact-foundation/pactengine/internal/types"
)

func TestStrForm(t *testing.T) {
	tests := []struct {
		name string
		plan *ExecutionPlanNode
		want string
	}{
		{
			"match action",
			ContainerNode("headers").Add(ActionNode("match:equality").Add(
				StringNode("a"), ResolveExpr("$.a"), NamespacedNode("json", "{}"))),
			"(:headers((%match:equality(('a'),($.a),(json:{})))))",
		},
		{"pipeline", PipelineNode().Add(ResolveExpr("$.body"), ResolveCurrentNode(mustPath("$.id"))), "(->(($.body),(~>$.id)))"},
		{"splat", SplatNode().Add(ResolveExpr("$.query")), "(**(($.query)))"},
		{"annotation", AnnotationNode("query parameters"), "(#{'query parameters'})"},
		{"annotation with quote", AnnotationNode("it's"), `(#{"it's"})`},
		{"empty", EmptyNode(), "()"},
		{"label with space", ContainerNode("a b"), `(:"a b"())`},
		{
			"executed",
			ValueNode(UintValue(1)).withResult(ValueResult(UintValue(1)), nil),
			"(UINT(1)=>UINT(1))",
		},
		{
			"error result",
			ActionNode("x").withResult(ErrorResult(types.ErrUnknownAction, "'x' is not a valid action"), nil),
			"(%x()=>ERROR('x' is not a valid action))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.plan.StrForm(); got != tt.want {
				t.Errorf("StrForm() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPrettyForm(t *testing.T) {
	plan := ContainerNode("a").Add(ActionNode("x").Add(StringNode("v")), ContainerNode("b"))
	want := strings.Join([]string{
		":a (",
		"  %x (",
		"    'v'",
		"  ),",
		"  :b ()",
		")",
	}, "\n")
	if got := plan.PrettyForm(); got != want {
		t.Errorf("PrettyForm() = \n%s\nwant\n%s", got, want)
	}

	executed := ValueNode(StringValue("v")).withResult(ValueResult(StringValue("v")), nil)
	if got := executed.PrettyForm(); got != "'v' => 'v'" {
		t.Errorf("PrettyForm() = %s, want 'v' => 'v'", got)
	}
}

func TestSummary(t *testing.T) {
	failing := ActionNode("match:equality").withResult(ErrorResult(types.ErrMismatch, "bad value"), nil)
	passing := ActionNode("match:equality").withResult(ValueResult(BoolValue(true)), nil)

	tests := []struct {
		name string
		plan *ExecutionPlanNode
		ansi bool
		want string
	}{
		{
			"passing leaf container",
			ContainerNode("method").withResult(ValueResult(BoolValue(true)), []*ExecutionPlanNode{passing}),
			false,
			"method: - OK\n",
		},
		{
			"failing leaf container",
			ContainerNode("method").withResult(ValueResult(BoolValue(false)), []*ExecutionPlanNode{failing}),
			false,
			"method: - ERROR bad value\n",
		},
		{
			"coloured",
			ContainerNode("method").withResult(ValueResult(BoolValue(true)), []*ExecutionPlanNode{passing}),
			true,
			"method: - \x1b[32mOK\x1b[0m\n",
		},
		{
			"false without error",
			ContainerNode("method").withResult(ValueResult(BoolValue(false)), []*ExecutionPlanNode{
				ActionNode("and").withResult(ValueResult(BoolValue(false)), nil)}),
			false,
			"method: - FAILED\n",
		},
		{
			"nested with annotation",
			ContainerNode("request").withResult(ValueResult(BoolValue(false)), []*ExecutionPlanNode{
				ContainerNode("headers").withResult(ValueResult(BoolValue(false)), []*ExecutionPlanNode{
					AnnotationNode("headers"), failing}),
			}),
			false,
			"request:\n  headers: headers - ERROR bad value\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.plan.Summary(tt.ansi); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}
