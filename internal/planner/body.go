// internal/planner/body.go
package planner

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pact-foundation/pactengine/internal/docpath"
	"github.com/pact-foundation/pactengine/internal/engine"
	"github.com/pact-foundation/pactengine/internal/interaction"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
)

/*
 * Body plans run with the body rules selected. JSON bodies are parsed once
 * and become the current value (tee) for the structural checks below:
 *
 *   objects  json:expect:entries on the expected keys, then
 *            expect:only-entries (or json:expect:not-empty when unexpected
 *            keys are allowed), then one container per key
 *   arrays   json:match:length and one container per item, or, when a rule
 *            covers the array, the rule and a for-each over the items using
 *            the first expected item as the template
 *   values   match:equality on the JSON literal, or the rules at the path
 *
 * Objects under values, eachKey or eachValue rules are checked by the rule
 * alone.
 */

// BodyBuilder compiles an expected body into a plan.
type BodyBuilder interface {
	// SupportsType reports whether the builder handles the base content type.
	SupportsType(contentType string) bool
	BuildPlan(body []byte, ctx *engine.PlanMatchingContext) *engine.ExecutionPlanNode
}

// PlainTextBuilder compares bodies as text.
type PlainTextBuilder struct{}

// SupportsType implements BodyBuilder.
func (PlainTextBuilder) SupportsType(contentType string) bool {
	return strings.HasPrefix(contentType, "text/")
}

// BuildPlan implements BodyBuilder.
func (PlainTextBuilder) BuildPlan(body []byte, _ *engine.PlanMatchingContext) *engine.ExecutionPlanNode {
	return engine.ActionNode("match:equality").Add(
		engine.StringNode(strings.ToValidUTF8(string(body), "\uFFFD")),
		engine.ActionNode("convert:UTF8").Add(engine.ResolveExpr("$.body")),
		engine.ValueNode(engine.Null),
	)
}

// JSONBodyBuilder compares JSON bodies structurally.
type JSONBodyBuilder struct{}

// SupportsType implements BodyBuilder.
func (JSONBodyBuilder) SupportsType(contentType string) bool {
	return interaction.IsJSONContentType(contentType)
}

// BuildPlan implements BodyBuilder. A body that is not valid JSON is
// compared as text.
func (JSONBodyBuilder) BuildPlan(body []byte, ctx *engine.PlanMatchingContext) *engine.ExecutionPlanNode {
	expected, err := jsondoc.Parse(body)
	if err != nil {
		slog.Warn(fmt.Sprintf("Expected body is not valid JSON, comparing it as text: %v", err))
		return PlainTextBuilder{}.BuildPlan(body, ctx)
	}

	root := docpath.RootPath()
	rootNode := engine.ContainerNode(root.String())
	processBodyNode(ctx, expected, root, rootNode)
	return engine.ActionNode("tee").Add(
		engine.ActionNode("json:parse").Add(engine.ResolveExpr("$.body")),
		rootNode,
	)
}

func processBodyNode(ctx *engine.PlanMatchingContext, expected any, path docpath.DocPath, node *engine.ExecutionPlanNode) {
	switch t := expected.(type) {
	case []any:
		processArray(ctx, t, path, node)
	case map[string]any:
		processObject(ctx, t, path, node)
	default:
		if ctx.MatcherIsDefined(path) {
			group := ctx.SelectBestMatcher(path)
			field, _ := path.LastField()
			node.Add(
				engine.AnnotationNode(strings.TrimSpace(field+" "+describeGroup(group, false))),
				matchingRuleNode(engine.JSONNode(t), engine.ResolveCurrentNode(path), group, false),
			)
			return
		}
		node.Add(equalityNode(jsonLiteral(t), engine.ResolveCurrentNode(path)))
	}
}

func processObject(ctx *engine.PlanMatchingContext, expected map[string]any, path docpath.DocPath, node *engine.ExecutionPlanNode) {
	group := ctx.SelectBestMatcher(path)
	switch {
	case len(group.Rules) > 0 && group.HasRule("values", "each-key", "each-value"):
		node.Add(
			engine.AnnotationNode(describeGroup(group, true)),
			matchingRuleNode(engine.JSONNode(expected), engine.ResolveCurrentNode(path), group, true),
		)
		return
	case len(expected) == 0:
		node.Add(engine.ActionNode("json:expect:empty").Add(
			engine.StringNode("OBJECT"),
			engine.ResolveCurrentNode(path),
		))
		return
	}

	keys := jsondoc.SortedKeys(expected)
	node.Add(engine.ActionNode("json:expect:entries").Add(
		engine.StringNode("OBJECT"),
		engine.ValueNode(engine.StringList(keys)),
		engine.ResolveCurrentNode(path),
	))
	if ctx.Config.AllowUnexpectedEntries {
		node.Add(engine.ActionNode("json:expect:not-empty").Add(
			engine.StringNode("OBJECT"),
			engine.ResolveCurrentNode(path),
		))
	} else {
		node.Add(engine.ActionNode("expect:only-entries").Add(
			engine.ValueNode(engine.StringList(keys)),
			engine.ResolveCurrentNode(path),
		))
	}

	for _, key := range keys {
		itemPath := path.JoinField(key)
		item := engine.ContainerNode(itemPath.String())
		processBodyNode(ctx, expected[key], itemPath, item)
		node.Add(item)
	}
}

func processArray(ctx *engine.PlanMatchingContext, expected []any, path docpath.DocPath, node *engine.ExecutionPlanNode) {
	if ctx.MatcherIsDefined(path) {
		group := ctx.SelectBestMatcher(path)
		field, _ := path.LastField()
		node.Add(
			engine.AnnotationNode(strings.TrimSpace(field+" "+describeGroup(group, true))),
			matchingRuleNode(engine.JSONNode(expected), engine.ResolveCurrentNode(path), group, true),
		)
		if len(expected) == 0 {
			return
		}

		itemPath := path.Join("[*]")
		item := engine.ContainerNode(itemPath.String())
		template := expected[0]
		switch template.(type) {
		case []any, map[string]any:
			processBodyNode(ctx, template, itemPath, item)
		default:
			item.Add(itemCheck(ctx, template, itemPath, "[*]", "")...)
		}
		node.Add(engine.ActionNode("for-each").Add(
			engine.StringNode(itemPath.String()),
			engine.ResolveCurrentNode(path),
			item,
		))
		return
	}

	if len(expected) == 0 {
		node.Add(engine.ActionNode("json:expect:empty").Add(
			engine.StringNode("ARRAY"),
			engine.ResolveCurrentNode(path),
		))
		return
	}

	node.Add(engine.ActionNode("json:match:length").Add(
		engine.StringNode("ARRAY"),
		engine.UintNode(uint64(len(expected))),
		engine.ResolveCurrentNode(path),
	))
	for idx, value := range expected {
		itemPath := path.JoinIndex(idx)
		item := engine.ContainerNode(itemPath.String())
		switch value.(type) {
		case []any, map[string]any:
			processBodyNode(ctx, value, itemPath, item)
		default:
			missing := fmt.Sprintf("Expected a value for '%s' but it was missing", jsonPointer(itemPath))
			item.Add(itemCheck(ctx, value, itemPath, fmt.Sprintf("[%d]", idx), missing)...)
		}
		node.Add(item)
	}
}

// itemCheck compares one array item when it is present. With a missing
// message, an absent item is an error.
func itemCheck(ctx *engine.PlanMatchingContext, expected any, path docpath.DocPath, label, missing string) []*engine.ExecutionPlanNode {
	var nodes []*engine.ExecutionPlanNode
	check := engine.ActionNode("if").Add(
		engine.ActionNode("check:exists").Add(engine.ResolveCurrentNode(path)),
	)
	if ctx.MatcherIsDefined(path) {
		group := ctx.SelectBestMatcher(path)
		nodes = append(nodes, engine.AnnotationNode(label+" "+describeGroup(group, false)))
		check.Add(matchingRuleNode(engine.JSONNode(expected), engine.ResolveCurrentNode(path), group, false))
	} else {
		check.Add(equalityNode(jsonLiteral(expected), engine.ResolveCurrentNode(path)))
	}
	if missing != "" {
		check.Add(engine.ActionNode("error").Add(engine.StringNode(missing)))
	}
	return append(nodes, check)
}

// jsonLiteral renders a value as a json: namespaced literal so that plans
// written to files keep the exact JSON text.
func jsonLiteral(v any) *engine.ExecutionPlanNode {
	return engine.NamespacedNode("json", jsondoc.Serialise(v))
}

// jsonPointer renders the JSON pointer of a body path.
func jsonPointer(path docpath.DocPath) string {
	var b strings.Builder
	for _, t := range path.Tokens() {
		switch t.Kind {
		case docpath.Root:
			continue
		case docpath.Field:
			b.WriteString("/" + jsondoc.EscapePointerToken(t.Name))
		case docpath.Index:
			b.WriteString(fmt.Sprintf("/%d", t.Index))
		default:
			b.WriteString("/*")
		}
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}
