// internal/engine/match.go
package engine

import (
	"fmt"

	"github.com/pact-foundation/pactengine/internal/matchers"
	"github.com/pact-foundation/pactengine/internal/matchingrules"
	"github.com/pact-foundation/pactengine/internal/types"
)

/*
 * match:<rule> compares an expected value with an actual value using the
 * named matching rule. Arguments are the expected value, the actual value
 * and the rule parameters as a JSON object (or NULL). A fourth, optional,
 * node renders the error message; it is evaluated with the mismatch on the
 * value stack.
 *
 *   %match:regex('\d+', $.query.id, json:{"regex": "\\d+"})
 */

func (i *Interpreter) executeMatch(action, matcher string, resolver ValueResolver, node *ExecutionPlanNode, path []string) *ExecutionPlanNode {
	args, optional, errResult := i.walkArgs(3, 1, node, action, resolver, path)
	if errResult != nil {
		return node.withResult(errResult, node.Children)
	}
	children := concat(args, optional)

	values := make([]NodeValue, 3)
	for idx, arg := range args {
		v, err := orOK(arg.Result).ValueOrError()
		if err != nil {
			return node.withResult(orOK(arg.Result), children)
		}
		values[idx] = v
	}

	var params map[string]any
	if j, ok := values[2].(JSONValue); ok {
		params, _ = j.Doc.(map[string]any)
	}
	rule, err := matchingrules.Create(matcher, params)
	if err != nil {
		return node.withResult(ErrorResult(types.ErrInvalidMatcher, err.Error()), children)
	}

	msg := i.doMatch(values[0], values[1], rule, false, path)
	if msg == "" {
		return node.withResult(ValueResult(BoolValue(true)), children)
	}
	i.logger.Debug(fmt.Sprintf("%s failed: %s", action, msg))
	mismatch := ErrorResult(types.ErrMismatch, msg)
	return i.failWith(node, args, optional, mismatch, mismatch, path, resolver)
}

// doMatch applies rule to the values and returns the joined mismatch
// messages, or "" when they match.
func (i *Interpreter) doMatch(expected, actual NodeValue, rule matchingrules.MatchingRule, cascaded bool, path []string) string {
	ctx := i.ctx.Matching
	compareItem := func(p []string, e, a any, c *matchers.Context) []matchers.Mismatch {
		return matchers.Match(rule, p, e, a, cascaded, c)
	}
	noDiff := func() string { return "" }

	switch e := expected.(type) {
	case JSONValue:
		var doc any
		switch a := actual.(type) {
		case JSONValue:
			doc = a.Doc
		case NullValue:
		default:
			return typeMismatch(expected, actual)
		}
		category := matchingrules.NewCategory("body").SetRules("$", matchingrules.NewGroup(rule))
		body := matchers.NewContext(category, ctx.AllowUnexpectedKeys)
		body.CoerceNumbers = ctx.CoerceNumbers
		return matchers.Messages(matchers.CompareJSON(body, []string{"$"}, e.Doc, doc))

	case ListValue, StringList:
		items := listItems(expected)
		return matchers.Messages(matchers.CompareLists(ctx, path, rule, items, listItems(actual), noDiff, cascaded, compareItem))

	case StringValue:
		switch a := actual.(type) {
		case StringValue:
			return matchers.Messages(matchers.Match(rule, path, string(e), string(a), cascaded, ctx))
		case StringList:
			return matchers.Messages(matchers.CompareLists(ctx, path, rule, []any{string(e)}, listItems(a), noDiff, cascaded, compareItem))
		}
		return typeMismatch(expected, actual)

	case MultiMap:
		a, ok := actual.(MultiMap)
		if !ok {
			return typeMismatch(expected, actual)
		}
		compareValues := func(p []string, ev, av any, c *matchers.Context) []matchers.Mismatch {
			el, _ := ev.([]string)
			al, _ := av.([]string)
			return matchers.CompareLists(c, p, rule, stringsToAny(el), stringsToAny(al), noDiff, cascaded, compareItem)
		}
		return matchers.Messages(matchers.CompareMaps(ctx, path, rule, map[string][]string(e), map[string][]string(a), noDiff, compareValues))
	}

	return matchers.Messages(matchers.Match(rule, path, Unwrap(expected), Unwrap(actual), cascaded, ctx))
}

func listItems(v NodeValue) []any {
	switch l := v.(type) {
	case ListValue:
		items := make([]any, len(l))
		for idx, item := range l {
			items[idx] = Unwrap(item)
		}
		return items
	case StringList:
		return stringsToAny(l)
	}
	return []any{Unwrap(v)}
}

func typeMismatch(expected, actual NodeValue) string {
	return fmt.Sprintf("Expected a value of type '%s' but got '%s'", expected.ValueType(), actual.ValueType())
}
