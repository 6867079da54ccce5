// internal/planner/planner.go

// Package planner compiles expected HTTP interactions into execution plans.
package planner

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pact-foundation/pactengine/internal/docpath"
	"github.com/pact-foundation/pactengine/internal/engine"
	"github.com/pact-foundation/pactengine/internal/interaction"
	"github.com/pact-foundation/pactengine/internal/resolvers"
)

/*
 * Plan layout.
 *
 *   :request
 *     :method            match:equality on the upper-cased method
 *     :path              match:equality or the path rules
 *     :"query parameters" per parameter: if(check:exists, match), then
 *                        expect:entries and expect:only-entries
 *     :headers           per header: if(check:exists, match), parameterised
 *                        headers compared by value and parameters, then
 *                        expect:entries on the lower-cased names
 *     :body              content type check, then the body builder plan
 *
 *   :response            status, headers and body as above
 *
 * Each section narrows the matching context to its rule category before
 * looking up rules. Plans are built once and may be executed any number of
 * times, concurrently, each execution with its own interpreter.
 */

// parameterisedHeaders are compared by value and parameters instead of as
// whole strings.
var parameterisedHeaders = map[string]bool{
	"accept":       true,
	"content-type": true,
}

// Planner builds request and response plans.
type Planner struct {
	bodies []BodyBuilder
	logger *slog.Logger
}

// New returns a planner with the JSON and plain text body builders.
func New() *Planner {
	return &Planner{
		bodies: []BodyBuilder{JSONBodyBuilder{}, PlainTextBuilder{}},
		logger: slog.Default(),
	}
}

// WithLogger sets the logger used for trace output.
func (p *Planner) WithLogger(logger *slog.Logger) *Planner {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// RegisterBody adds a body builder. Builders registered later take
// precedence.
func (p *Planner) RegisterBody(b BodyBuilder) *Planner {
	p.bodies = append([]BodyBuilder{b}, p.bodies...)
	return p
}

func (p *Planner) bodyBuilder(contentType string) BodyBuilder {
	for _, b := range p.bodies {
		if b.SupportsType(contentType) {
			return b
		}
	}
	return PlainTextBuilder{}
}

// BuildRequestPlan compiles the plan that checks an actual request against
// expected.
func (p *Planner) BuildRequestPlan(expected *interaction.HTTPRequest, ctx *engine.PlanMatchingContext) *engine.ExecutionPlanNode {
	p.logger.Debug("building request plan", "method", expected.Method, "path", expected.Path)
	return engine.ContainerNode("request").Add(
		methodPlan(expected),
		pathPlan(expected, ctx.ForPath()),
		queryPlan(expected, ctx.ForQuery()),
		headersPlan(expected.Headers, ctx.ForHeaders()),
		p.bodyPlan(expected.Body, expected.ContentType(), ctx.ForBody()),
	)
}

// BuildResponsePlan compiles the plan that checks an actual response
// against expected.
func (p *Planner) BuildResponsePlan(expected *interaction.HTTPResponse, ctx *engine.PlanMatchingContext) *engine.ExecutionPlanNode {
	p.logger.Debug("building response plan", "status", expected.Status)
	return engine.ContainerNode("response").Add(
		statusPlan(expected, ctx.ForStatus()),
		headersPlan(expected.Headers, ctx.ForHeaders()),
		p.bodyPlan(expected.Body, expected.ContentType(), ctx.ForBody()),
	)
}

// ExecuteRequestPlan walks a request plan against actual.
func ExecuteRequestPlan(i *engine.Interpreter, plan *engine.ExecutionPlanNode, actual *interaction.HTTPRequest) *engine.ExecutionPlanNode {
	return i.Execute(plan, resolvers.NewHTTPRequestResolver(actual))
}

// ExecuteResponsePlan walks a response plan against actual.
func ExecuteResponsePlan(i *engine.Interpreter, plan *engine.ExecutionPlanNode, actual *interaction.HTTPResponse) *engine.ExecutionPlanNode {
	return i.Execute(plan, resolvers.NewHTTPResponseResolver(actual))
}

func methodPlan(expected *interaction.HTTPRequest) *engine.ExecutionPlanNode {
	method := strings.ToUpper(expected.Method)
	return engine.ContainerNode("method").Add(
		engine.AnnotationNode("method == "+method),
		engine.ActionNode("match:equality").Add(
			engine.StringNode(method),
			engine.ActionNode("upper-case").Add(engine.ResolveExpr("$.method")),
			engine.ValueNode(engine.Null),
		),
	)
}

func pathPlan(expected *interaction.HTTPRequest, ctx *engine.PlanMatchingContext) *engine.ExecutionPlanNode {
	node := engine.ContainerNode("path")
	path := docpath.MustParse("$.path")
	if ctx.MatcherIsDefined(path) {
		group := ctx.SelectBestMatcher(path)
		return node.Add(
			engine.AnnotationNode("path "+describeGroup(group, false)),
			matchingRuleNode(engine.StringNode(expected.Path), engine.ResolveNode(path), group, false),
		)
	}
	return node.Add(
		engine.AnnotationNode(fmt.Sprintf("path == '%s'", expected.Path)),
		equalityNode(engine.StringNode(expected.Path), engine.ResolveNode(path)),
	)
}

func statusPlan(expected *interaction.HTTPResponse, ctx *engine.PlanMatchingContext) *engine.ExecutionPlanNode {
	node := engine.ContainerNode("status")
	path := docpath.MustParse("$.status")
	status := engine.UintNode(uint64(expected.Status))
	if ctx.MatcherIsDefined(path) {
		group := ctx.SelectBestMatcher(path)
		return node.Add(
			engine.AnnotationNode("status "+describeGroup(group, false)),
			matchingRuleNode(status, engine.ResolveNode(path), group, false),
		)
	}
	return node.Add(
		engine.AnnotationNode(fmt.Sprintf("status == %d", expected.Status)),
		equalityNode(status, engine.ResolveNode(path)),
	)
}

func queryPlan(expected *interaction.HTTPRequest, ctx *engine.PlanMatchingContext) *engine.ExecutionPlanNode {
	node := engine.ContainerNode("query parameters")
	root := docpath.MustParse("$.query")
	if len(expected.Query) == 0 {
		return node.Add(
			engine.ActionNode("expect:empty").Add(
				engine.ResolveNode(root),
				engine.ActionNode("join").Add(
					engine.StringNode("Expected no query parameters but got "),
					engine.ResolveNode(root),
				),
			),
		)
	}

	keys := sortedKeys(expected.Query)
	for _, key := range keys {
		path := root.JoinField(key)
		value := multiValue(expected.Query[key])
		item := engine.ContainerNode(key)
		check := engine.ActionNode("if").Add(engine.ActionNode("check:exists").Add(engine.ResolveNode(path)))
		if ctx.MatcherIsDefined(path) {
			group := ctx.SelectBestMatcher(path)
			item.Add(engine.AnnotationNode(key + " " + describeGroup(group, true)))
			check.Add(matchingRuleNode(engine.ValueNode(value), engine.ResolveNode(path), group, true))
		} else {
			item.Add(engine.AnnotationNode(key + "=" + value.StrForm()))
			check.Add(equalityNode(engine.ValueNode(value), engine.ResolveNode(path)))
		}
		node.Add(item.Add(check))
	}

	node.Add(entriesNode("expect:entries", engine.ValueNode(engine.StringList(keys)), root,
		"The following expected query parameters were missing: "))
	if !ctx.Config.AllowUnexpectedEntries {
		node.Add(entriesNode("expect:only-entries", engine.ValueNode(engine.StringList(keys)), root,
			"The following query parameters were not expected: "))
	}
	return node
}

func headersPlan(headers map[string][]string, ctx *engine.PlanMatchingContext) *engine.ExecutionPlanNode {
	node := engine.ContainerNode("headers")
	if len(headers) == 0 {
		return node
	}
	root := docpath.MustParse("$.headers")

	keys := sortedKeys(headers)
	for _, key := range keys {
		values := headers[key]
		path := root.JoinField(key)
		value := multiValue(values)
		item := engine.ContainerNode(key)
		check := engine.ActionNode("if").Add(engine.ActionNode("check:exists").Add(engine.ResolveNode(path)))

		switch {
		case ctx.MatcherIsDefined(path):
			group := ctx.SelectBestMatcher(path)
			item.Add(engine.AnnotationNode(key + " " + describeGroup(group, true)))
			check.Add(matchingRuleNode(engine.ValueNode(value), engine.ResolveNode(path), group, true))
		case parameterisedHeaders[strings.ToLower(key)]:
			item.Add(engine.AnnotationNode(key + "=" + value.StrForm()))
			if len(values) == 1 {
				check.Add(parameterisedHeaderNode(path, values[0]))
			} else {
				for idx, v := range values {
					check.Add(engine.ContainerNode(fmt.Sprint(idx)).Add(parameterisedHeaderNode(path.JoinIndex(idx), v)))
				}
			}
		default:
			item.Add(engine.AnnotationNode(key + "=" + value.StrForm()))
			check.Add(equalityNode(engine.ValueNode(value), engine.ResolveNode(path)))
		}
		node.Add(item.Add(check))
	}

	names := engine.ActionNode("lower-case").Add(engine.ValueNode(engine.StringList(keys)))
	node.Add(entriesNode("expect:entries", names, root, "The following expected headers were missing: "))
	if !ctx.Config.AllowUnexpectedEntries {
		names := engine.ActionNode("lower-case").Add(engine.ValueNode(engine.StringList(keys)))
		node.Add(entriesNode("expect:only-entries", names, root, "The following headers were unexpected: "))
	}
	return node
}

// parameterisedHeaderNode compares the value of a header and each expected
// parameter. Parameter values compare without regard to case.
func parameterisedHeaderNode(path docpath.DocPath, value string) *engine.ExecutionPlanNode {
	headerValue, params := engine.ParseHeaderValue(value)
	node := engine.ActionNode("tee").Add(
		engine.ActionNode("header:parse").Add(engine.ResolveNode(path)),
		equalityNode(
			engine.StringNode(headerValue),
			engine.ActionNode("to-string").Add(engine.ResolveCurrentNode(docpath.MustParse("$.value"))),
		),
	)

	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	parameters := docpath.MustParse("$.parameters")
	for _, k := range names {
		v := params[k]
		current := parameters.JoinField(k)
		node.Add(engine.ContainerNode(k).Add(
			engine.ActionNode("if").Add(
				engine.ActionNode("check:exists").Add(engine.ResolveCurrentNode(current)),
				equalityNode(
					engine.StringNode(strings.ToLower(v)),
					engine.ActionNode("lower-case").Add(engine.ResolveCurrentNode(current)),
				),
				engine.ActionNode("error").Add(
					engine.StringNode(fmt.Sprintf("Expected a %s value of '%s' but it was missing", k, v)),
				),
			),
		))
	}
	return node
}

func (p *Planner) bodyPlan(body []byte, contentType string, ctx *engine.PlanMatchingContext) *engine.ExecutionPlanNode {
	node := engine.ContainerNode("body")
	bodyPath := docpath.MustParse("$.body")
	switch {
	case body == nil:
		return node
	case len(body) == 0:
		return node.Add(engine.ActionNode("expect:empty").Add(engine.ResolveNode(bodyPath)))
	}

	base := interaction.BaseContentType(contentType)
	builder := p.bodyBuilder(base)
	p.logger.Debug("building body plan", "content_type", base, "builder", fmt.Sprintf("%T", builder))
	if base == "" {
		return node.Add(builder.BuildPlan(body, ctx))
	}

	typeCheck := engine.ActionNode("tee").Add(
		engine.ActionNode("header:parse").Add(engine.ResolveExpr("$.content-type")),
		engine.ActionNode("match:equality").Add(
			engine.StringNode(base),
			engine.ActionNode("lower-case").Add(
				engine.ActionNode("to-string").Add(engine.ResolveCurrentNode(docpath.MustParse("$.value"))),
			),
			engine.ValueNode(engine.Null),
			engine.ActionNode("join").Add(
				engine.StringNode("Body type error - expected '"+base+"' but got '"),
				engine.ResolveExpr("$.content-type"),
				engine.StringNode("'"),
			),
		),
	)
	return node.Add(engine.ActionNode("if").Add(typeCheck, builder.BuildPlan(body, ctx)))
}

func equalityNode(expected, actual *engine.ExecutionPlanNode) *engine.ExecutionPlanNode {
	return engine.ActionNode("match:equality").Add(expected, actual, engine.ValueNode(engine.Null))
}

// entriesNode checks the keys of the map at path, with a message listing
// the offending keys.
func entriesNode(action string, keys *engine.ExecutionPlanNode, path docpath.DocPath, prefix string) *engine.ExecutionPlanNode {
	return engine.ActionNode(action).Add(
		keys,
		engine.ResolveNode(path),
		engine.ActionNode("join").Add(
			engine.StringNode(prefix),
			engine.ActionNode("join-with").Add(
				engine.StringNode(", "),
				engine.SplatNode().Add(engine.ActionNode("apply")),
			),
		),
	)
}

func multiValue(values []string) engine.NodeValue {
	if len(values) == 1 {
		return engine.StringValue(values[0])
	}
	return engine.StringList(append([]string(nil), values...))
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
