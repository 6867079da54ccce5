// internal/engine/actions.go
package engine

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pact-foundation/pactengine/internal/docpath"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/types"
)

/*
 * Action registry.
 *
 * Actions are looked up by name. Names starting with "match:" are routed to
 * the matcher action with the rest of the name selecting the rule. Any
 * other name must be registered; unknown names fail with
 * "'<name>' is not a valid action".
 *
 * Handlers receive the unevaluated action node and decide which children to
 * evaluate and in which order. Most evaluate their arguments first and fail
 * with the first argument error. Actions taking an optional error node only
 * evaluate it when the check fails, and use its text as the error message.
 */

// ActionFunc executes one action node. path already ends with the action
// name.
type ActionFunc func(i *Interpreter, action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode

// Registry maps action names to handlers.
type Registry struct {
	handlers map[string]ActionFunc
}

var builtinActions = map[string]ActionFunc{
	"upper-case":            (*Interpreter).executeChangeCase,
	"lower-case":            (*Interpreter).executeChangeCase,
	"to-string":             (*Interpreter).executeToString,
	"length":                (*Interpreter).executeLength,
	"expect:empty":          (*Interpreter).executeExpectEmpty,
	"convert:UTF8":          (*Interpreter).executeConvertUTF8,
	"if":                    (*Interpreter).executeIf,
	"and":                   (*Interpreter).executeAnd,
	"or":                    (*Interpreter).executeOr,
	"tee":                   (*Interpreter).executeTee,
	"apply":                 (*Interpreter).executeApply,
	"json:parse":            (*Interpreter).executeJSONParse,
	"json:expect:empty":     (*Interpreter).executeJSONExpectEmpty,
	"json:expect:not-empty": (*Interpreter).executeJSONExpectNotEmpty,
	"json:match:length":     (*Interpreter).executeJSONMatchLength,
	"json:expect:entries":   (*Interpreter).executeJSONExpectEntries,
	"check:exists":          (*Interpreter).executeCheckExists,
	"expect:entries":        (*Interpreter).executeCheckEntries,
	"expect:only-entries":   (*Interpreter).executeCheckEntries,
	"expect:count":          (*Interpreter).executeExpectCount,
	"join":                  (*Interpreter).executeJoin,
	"join-with":             (*Interpreter).executeJoin,
	"error":                 (*Interpreter).executeError,
	"header:parse":          (*Interpreter).executeHeaderParse,
	"for-each":              (*Interpreter).executeForEach,
}

var defaultRegistry = &Registry{handlers: builtinActions}

// DefaultRegistry returns the shared registry of built in actions. It must
// not be modified; use NewRegistry to add actions.
func DefaultRegistry() *Registry { return defaultRegistry }

// NewRegistry returns a registry holding the built in actions.
func NewRegistry() *Registry {
	handlers := make(map[string]ActionFunc, len(builtinActions))
	for name, fn := range builtinActions {
		handlers[name] = fn
	}
	return &Registry{handlers: handlers}
}

// Register adds or replaces an action.
func (r *Registry) Register(name string, fn ActionFunc) *Registry {
	r.handlers[name] = fn
	return r
}

// Lookup returns the handler for name.
func (r *Registry) Lookup(name string) (ActionFunc, bool) {
	fn, ok := r.handlers[name]
	return fn, ok
}

// Names returns the registered action names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (i *Interpreter) executeAction(action string, resolver ValueResolver, node *ExecutionPlanNode, path []string) *ExecutionPlanNode {
	actionPath := append(append([]string(nil), path...), action)

	var result *ExecutionPlanNode
	if matcher, ok := strings.CutPrefix(action, "match:"); ok {
		if matcher == "" {
			result = node.withResult(Errorf(types.ErrUnknownAction, "'%s' is not a valid action", action), node.Children)
		} else {
			result = i.executeMatch(action, matcher, resolver, node, actionPath)
		}
	} else if fn, ok := i.actions.Lookup(action); ok {
		result = fn(i, action, node, actionPath, resolver)
	} else {
		result = node.withResult(Errorf(types.ErrUnknownAction, "'%s' is not a valid action", action), node.Children)
	}

	i.logger.Debug(fmt.Sprintf("Executing %s -> %s", action, result.Result))
	if i.observer != nil {
		i.observer.ActionExecuted(action, result.Result)
	}
	return result
}

func concat(lists ...[]*ExecutionPlanNode) []*ExecutionPlanNode {
	var out []*ExecutionPlanNode
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// failWith reports a failed check. Without an error node the node fails
// with err. With one, the error node is evaluated (with pushed on the
// value stack when given) and its text replaces the message.
func (i *Interpreter) failWith(node *ExecutionPlanNode, args, optional []*ExecutionPlanNode, err *NodeResult,
	pushed *NodeResult, path []string, resolver ValueResolver) *ExecutionPlanNode {
	if len(optional) == 0 {
		return node.withResult(err, concat(args, optional))
	}
	if pushed != nil {
		i.pushResult(pushed)
	}
	errorNode := i.WalkTree(path, optional[0], resolver)
	if pushed != nil {
		i.popResult()
	}
	if msg, ok := errorNode.Result.AsString(); ok && msg != "" {
		return node.withResult(ErrorResult(err.Err.Kind, msg), concat(args, []*ExecutionPlanNode{errorNode}))
	}
	return node.withResult(err, concat(args, []*ExecutionPlanNode{errorNode}))
}

func (i *Interpreter) executeChangeCase(action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	children, values, failed := i.evaluateChildren(resolver, node, path, true)
	if failed != nil {
		return failed
	}
	caser := cases.Lower(language.Und)
	if action == "upper-case" {
		caser = cases.Upper(language.Und)
	}
	results := make([]NodeValue, 0, len(values))
	for _, r := range values {
		switch v := r.ValueOrNull().(type) {
		case JSONValue:
			if s, ok := v.Doc.(string); ok {
				results = append(results, StringValue(caser.String(s)))
			} else {
				results = append(results, StringValue(jsondoc.Serialise(v.Doc)))
			}
		case StringList:
			items := make([]string, len(v))
			for idx, s := range v {
				items[idx] = caser.String(s)
			}
			results = append(results, StringList(items))
		case StringValue:
			results = append(results, StringValue(caser.String(string(v))))
		default:
			results = append(results, v)
		}
	}
	return node.withResult(ValueResult(single(results)), children)
}

func single(values []NodeValue) NodeValue {
	if len(values) == 1 {
		return values[0]
	}
	return ListValue(values)
}

func (i *Interpreter) executeToString(_ string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	children, values, failed := i.evaluateChildren(resolver, node, path, true)
	if failed != nil {
		return failed
	}
	results := make([]NodeValue, 0, len(values))
	for _, r := range values {
		switch v := r.ValueOrNull().(type) {
		case JSONValue:
			results = append(results, StringValue(jsondoc.String(v.Doc)))
		case NullValue:
			results = append(results, StringValue(""))
		case StringList, StringValue:
			results = append(results, v)
		default:
			results = append(results, StringValue(v.StrForm()))
		}
	}
	return node.withResult(ValueResult(single(results)), children)
}

func (i *Interpreter) executeLength(action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	arg, errResult := i.walkOneArg(node, action, resolver, path)
	if errResult != nil {
		return node.withResult(errResult, node.Children)
	}
	var result *NodeResult
	switch v := arg.Result.ValueOrNull().(type) {
	case BytesValue:
		result = ValueResult(UintValue(len(v)))
	case JSONValue:
		switch v.Doc.(type) {
		case []any, map[string]any, string:
			result = ValueResult(UintValue(jsondoc.Size(v.Doc)))
		default:
			result = Errorf(types.ErrTypeMismatch, "'length' can't be used with a %s node", v.StrForm())
		}
	case ListValue:
		result = ValueResult(UintValue(len(v)))
	case MultiMap:
		result = ValueResult(UintValue(len(v)))
	case NullValue:
		result = ValueResult(UintValue(0))
	case StringList:
		result = ValueResult(UintValue(len(v)))
	case StringValue:
		result = ValueResult(UintValue(utf8.RuneCountInString(string(v))))
	default:
		result = Errorf(types.ErrTypeMismatch, "'length' can't be used with a %s node", v.ValueType())
	}
	return node.withResult(result, []*ExecutionPlanNode{arg})
}

func (i *Interpreter) executeExpectEmpty(action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	args, optional, errResult := i.walkArgs(1, 1, node, action, resolver, path)
	if errResult != nil {
		return node.withResult(errResult, node.Children)
	}
	first := args[0].Result
	if first.IsError() {
		return node.withResult(first, concat(args, optional))
	}

	empty := ValueResult(BoolValue(true))
	var msg string
	switch v := first.ValueOrNull().(type) {
	case BytesValue:
		if len(v) > 0 {
			msg = fmt.Sprintf("Expected byte array (%d bytes) to be empty", len(v))
		}
	case BoolValue:
		empty = ValueResult(v)
	case EntryValue:
		empty = ValueResult(BoolValue(false))
	case JSONValue:
		msg = jsonEmptyError(v.Doc)
	case ListValue:
		if len(v) > 0 {
			msg = fmt.Sprintf("Expected %s to be empty", v.StrForm())
		}
	case MultiMap:
		if len(v) > 0 {
			msg = fmt.Sprintf("Expected %s to be empty", v.StrForm())
		}
	case StringList:
		if len(v) > 0 {
			msg = fmt.Sprintf("Expected %s to be empty", v.StrForm())
		}
	case StringValue:
		if v != "" {
			msg = fmt.Sprintf("Expected '%s' to be empty", string(v))
		}
	case UintValue:
		if v != 0 {
			msg = fmt.Sprintf("Expected %d to be empty", uint64(v))
		}
	case NamespacedValue:
		msg = fmt.Sprintf("%s can not be used with %s", action, v.ValueType())
	}

	if msg == "" {
		return node.withResult(empty, concat(args, optional))
	}
	i.logger.Debug("expect:empty failed with an error: " + msg)
	return i.failWith(node, args, optional, ErrorResult(types.ErrMismatch, msg), nil, path, resolver)
}

func jsonEmptyError(doc any) string {
	switch t := doc.(type) {
	case nil:
		return ""
	case []any:
		if len(t) > 0 {
			return fmt.Sprintf("Expected JSON Array (%s) to be empty", jsondoc.Serialise(t))
		}
	case map[string]any:
		if len(t) > 0 {
			return fmt.Sprintf("Expected JSON Object (%s) to be empty", jsondoc.Serialise(t))
		}
	case string:
		if t != "" {
			return fmt.Sprintf("Expected JSON String (%s) to be empty", jsondoc.Serialise(t))
		}
	default:
		return fmt.Sprintf("Expected json (%s) to be empty", jsondoc.Serialise(t))
	}
	return ""
}

func (i *Interpreter) executeConvertUTF8(action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	arg, errResult := i.walkOneArg(node, action, resolver, path)
	if errResult != nil {
		return node.withResult(errResult, node.Children)
	}
	var result *NodeResult
	switch v := arg.Result.ValueOrNull().(type) {
	case BytesValue:
		result = ValueResult(StringValue(strings.ToValidUTF8(string(v), "\uFFFD")))
	case NullValue:
		result = ValueResult(StringValue(""))
	case StringValue:
		result = ValueResult(v)
	default:
		result = Errorf(types.ErrTypeMismatch, "convert:UTF8 can not be used with %s", v.ValueType())
	}
	return node.withResult(result, []*ExecutionPlanNode{arg})
}

// executeIf evaluates the condition and then either the second child (when
// truthy) or the third (when falsy). A falsy condition without an else
// branch gives false.
func (i *Interpreter) executeIf(_ string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	if len(node.Children) == 0 {
		return node.withResult(ErrorResult(types.ErrInvalidArguments, "'if' action requires at least one argument"), nil)
	}
	cond := i.WalkTree(path, node.Children[0], resolver)
	rest := node.Children[1:]
	if cond.Result.IsError() {
		return node.withResult(cond.Result, concat([]*ExecutionPlanNode{cond}, rest))
	}

	if !cond.Result.IsTruthy() {
		if len(node.Children) > 2 {
			elseResult := i.WalkTree(path, node.Children[2], resolver)
			children := []*ExecutionPlanNode{cond, node.Children[1], elseResult}
			return node.withResult(elseResult.Result, concat(children, node.Children[3:]))
		}
		return node.withResult(ValueResult(BoolValue(false)), concat([]*ExecutionPlanNode{cond}, rest))
	}

	if len(node.Children) > 1 {
		thenResult := i.WalkTree(path, node.Children[1], resolver)
		children := concat([]*ExecutionPlanNode{cond, thenResult}, node.Children[2:])
		return node.withResult(orOK(thenResult.Result).Truthy(), children)
	}
	return node.withResult(cond.Result, []*ExecutionPlanNode{cond})
}

func (i *Interpreter) executeAnd(_ string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	children, values, failed := i.evaluateChildren(resolver, node, path, true)
	if failed != nil {
		return failed
	}
	result := OK()
	for _, v := range values {
		result = result.And(v)
	}
	return node.withResult(result, children)
}

// executeOr evaluates every child, errors included, and combines them with
// Or.
func (i *Interpreter) executeOr(_ string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	children, values, _ := i.evaluateChildren(resolver, node, path, false)
	var result *NodeResult
	for _, v := range values {
		result = result.Or(v)
	}
	if result == nil {
		result = OK()
	}
	return node.withResult(result, children)
}

// executeTee makes the first child's result the current value while the
// remaining children are evaluated.
func (i *Interpreter) executeTee(_ string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	if len(node.Children) == 0 {
		return node.withResult(OK(), nil)
	}
	first := i.WalkTree(path, node.Children[0], resolver)
	if first.Result.IsError() {
		return node.withResult(first.Result, concat([]*ExecutionPlanNode{first}, node.Children[1:]))
	}

	i.pushResult(first.Result)
	result := OK()
	children := []*ExecutionPlanNode{first}
	for _, child := range node.Children[1:] {
		r := i.WalkTree(path, child, resolver)
		result = result.And(r.Result)
		children = append(children, r)
	}
	i.popResult()
	return node.withResult(result.Truthy(), children)
}

func (i *Interpreter) executeApply(_ string, node *ExecutionPlanNode, _ []string, _ ValueResolver) *ExecutionPlanNode {
	top := i.stackValue()
	if top == nil {
		return node.withResult(ErrorResult(types.ErrEmptyStack, "No value to apply (stack is empty)"), node.Children)
	}
	return node.withResult(top, node.Children)
}

func (i *Interpreter) executeCheckExists(action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	arg, errResult := i.walkOneArg(node, action, resolver, path)
	if errResult != nil {
		return node.withResult(errResult, node.Children)
	}
	v, ok := arg.Result.AsValue()
	return node.withResult(ValueResult(BoolValue(ok && !isNull(v))), []*ExecutionPlanNode{arg})
}

func isNull(v NodeValue) bool {
	_, null := v.(NullValue)
	return null
}

// executeCheckEntries compares the keys of a value with the expected keys.
// expect:entries fails on missing keys, expect:only-entries on unexpected
// ones. The differing keys are the current value while the error node is
// evaluated.
func (i *Interpreter) executeCheckEntries(action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	args, optional, errResult := i.walkArgs(2, 1, node, action, resolver, path)
	if errResult != nil {
		return node.withResult(errResult, node.Children)
	}
	expected, _ := args[0].Result.AsStringList()

	var actual []string
	switch v := args[1].Result.ValueOrNull().(type) {
	case JSONValue:
		switch doc := v.Doc.(type) {
		case []any:
			for _, item := range doc {
				actual = append(actual, jsondoc.String(item))
			}
		case map[string]any:
			actual = jsondoc.SortedKeys(doc)
		default:
			return node.withResult(Errorf(types.ErrTypeMismatch, "'%s' can't be used with a %s node", action, v.StrForm()),
				concat(args, optional))
		}
	case MultiMap:
		actual = v.Keys()
	case StringList:
		actual = v
	case StringValue:
		actual = []string{string(v)}
	default:
		return node.withResult(Errorf(types.ErrTypeMismatch, "'%s' can't be used with a %s node", action, v.ValueType()),
			concat(args, optional))
	}

	var diff []string
	var msg string
	if action == "expect:only-entries" {
		diff = difference(actual, expected)
		msg = "The following unexpected entries were received: "
	} else {
		diff = difference(expected, actual)
		msg = "The following expected entries were missing: "
	}
	if len(diff) == 0 {
		return node.withResult(OK(), concat(args, optional))
	}
	msg += strings.Join(diff, ", ")
	i.logger.Debug(action + " failed with an error: " + msg)
	return i.failWith(node, args, optional, ErrorResult(types.ErrMismatch, msg), ValueResult(StringList(diff)), path, resolver)
}

// difference returns the items of a missing from b, sorted and without
// duplicates.
func difference(a, b []string) []string {
	present := make(map[string]bool, len(b))
	for _, s := range b {
		present[s] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, s := range a {
		if !present[s] && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func (i *Interpreter) executeExpectCount(action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	args, optional, errResult := i.walkArgs(2, 1, node, action, resolver, path)
	if errResult != nil {
		return node.withResult(errResult, node.Children)
	}
	expected, _ := args[0].Result.AsUint()

	var msg string
	switch v := args[1].Result.ValueOrNull().(type) {
	case JSONValue:
		switch doc := v.Doc.(type) {
		case []any:
			if uint64(len(doc)) != expected {
				msg = fmt.Sprintf("Expected %d array items but there were %d", expected, len(doc))
			}
		case map[string]any:
			if uint64(len(doc)) != expected {
				msg = fmt.Sprintf("Expected %d object entries but there were %d", expected, len(doc))
			}
		case string:
			if n := utf8.RuneCountInString(doc); uint64(n) != expected {
				msg = fmt.Sprintf("Expected a JSON string with length of %d but was %d", expected, n)
			}
		default:
			msg = fmt.Sprintf("'%s' can't be used with a %s node", action, v.StrForm())
		}
	case ListValue:
		if uint64(len(v)) != expected {
			msg = fmt.Sprintf("Expected %d items but there were %d", expected, len(v))
		}
	case StringList:
		if uint64(len(v)) != expected {
			msg = fmt.Sprintf("Expected %d items but there were %d", expected, len(v))
		}
	case MultiMap:
		if uint64(len(v)) != expected {
			msg = fmt.Sprintf("Expected %d map entries but there were %d", expected, len(v))
		}
	case StringValue:
		if n := utf8.RuneCountInString(string(v)); uint64(n) != expected {
			msg = fmt.Sprintf("Expected a string with a length of %d but it was %d", expected, n)
		}
	default:
		msg = fmt.Sprintf("'%s' can't be used with a %s node", action, v.ValueType())
	}

	if msg == "" {
		return node.withResult(OK(), concat(args, optional))
	}
	return i.failWith(node, args, optional, ErrorResult(types.ErrMismatch, msg), nil, path, resolver)
}

// textValues flattens results into strings for join and error.
func textValues(values []*NodeResult) []string {
	var out []string
	for _, r := range values {
		switch v := r.ValueOrNull().(type) {
		case BytesValue, MultiMap, NamespacedValue:
			out = append(out, v.StrForm())
		case BoolValue:
			out = append(out, fmt.Sprint(bool(v)))
		case JSONValue:
			out = append(out, jsondoc.String(v.Doc))
		case ListValue:
			for _, item := range v {
				s, _ := ValueResult(item).AsString()
				out = append(out, s)
			}
		case StringList:
			out = append(out, v...)
		case StringValue:
			out = append(out, string(v))
		case UintValue:
			out = append(out, fmt.Sprint(uint64(v)))
		}
	}
	return out
}

// executeJoin concatenates its values. join-with uses the first value as
// the separator.
func (i *Interpreter) executeJoin(action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	children, values, failed := i.evaluateChildren(resolver, node, path, true)
	if failed != nil {
		return failed
	}
	parts := textValues(values)
	var joined string
	if action == "join-with" && len(parts) > 0 {
		joined = strings.Join(parts[1:], parts[0])
	} else {
		joined = strings.Join(parts, "")
	}
	return node.withResult(ValueResult(StringValue(joined)), children)
}

func (i *Interpreter) executeError(_ string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	children, values, failed := i.evaluateChildren(resolver, node, path, true)
	if failed != nil {
		return failed
	}
	return node.withResult(ErrorResult(types.ErrMismatch, strings.Join(textValues(values), ", ")), children)
}

// executeHeaderParse splits a header value such as
// "text/html; charset=UTF-8" into {"value": ..., "parameters": {...}}.
func (i *Interpreter) executeHeaderParse(action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	arg, errResult := i.walkOneArg(node, action, resolver, path)
	if errResult != nil {
		return node.withResult(errResult, node.Children)
	}
	text, _ := arg.Result.AsString()
	value, params := ParseHeaderValue(text)
	parameters := make(map[string]any, len(params))
	for k, v := range params {
		parameters[k] = v
	}
	doc := map[string]any{"value": value, "parameters": parameters}
	return node.withResult(ValueResult(JSONValue{Doc: doc}), []*ExecutionPlanNode{arg})
}

// ParseHeaderValue splits a parameterised header value into the main value
// and its parameters. Parameter names are lower-cased and quoted values
// unquoted.
func ParseHeaderValue(s string) (string, map[string]string) {
	parts := strings.Split(s, ";")
	params := make(map[string]string)
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, _ := strings.Cut(part, "=")
		val = strings.TrimSpace(val)
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			val = val[1 : len(val)-1]
		}
		params[strings.ToLower(strings.TrimSpace(key))] = val
	}
	return strings.TrimSpace(parts[0]), params
}

// executeForEach evaluates a template once per item of a value. The first
// child is the item marker, a path ending in "[*]"; in each copy of the
// template the marker's wildcard is replaced by the item index.
func (i *Interpreter) executeForEach(action string, node *ExecutionPlanNode, path []string, resolver ValueResolver) *ExecutionPlanNode {
	args, optional, errResult := i.walkArgs(2, 1, node, action, resolver, path)
	if errResult != nil {
		return node.withResult(errResult, node.Children)
	}
	markerNode, itemsNode := args[0], args[1]
	if itemsNode.Result.IsError() {
		return node.withResult(itemsNode.Result, concat(args, optional))
	}
	if len(optional) == 0 {
		return node.withResult(OK(), args)
	}
	markerText, _ := markerNode.Result.AsString()
	marker, err := docpath.Parse(markerText)
	if err != nil {
		return node.withResult(ErrorResult(types.ErrInvalidPath, err.Error()), concat(args, optional))
	}

	var items []NodeValue
	if v := itemsNode.Result.ValueOrNull(); !isNull(v) {
		items = ToList(v)
	}
	result := OK()
	children := args
	for idx := range items {
		child := i.WalkTree(path, injectIndex(optional[0], marker, idx), resolver)
		result = result.And(child.Result)
		children = append(children, child)
	}
	return node.withResult(result.Truthy(), children)
}

// injectIndex copies a template, replacing the last wildcard of marker with
// index in every path that starts with marker.
func injectIndex(node *ExecutionPlanNode, marker docpath.DocPath, index int) *ExecutionPlanNode {
	out := &ExecutionPlanNode{NodeType: node.NodeType, Result: node.Result}
	switch node.NodeType.Kind {
	case KindResolveCurrent:
		out.NodeType.Path = injectIndexInPath(node.NodeType.Path, marker, index)
	case KindContainer:
		if p, err := docpath.Parse(node.NodeType.Label); err == nil && !p.IsEmpty() {
			out.NodeType.Label = injectIndexInPath(p, marker, index).String()
		}
	}
	if len(node.Children) > 0 {
		out.Children = make([]*ExecutionPlanNode, len(node.Children))
		for idx, child := range node.Children {
			out.Children[idx] = injectIndex(child, marker, index)
		}
	}
	return out
}

func injectIndexInPath(path, marker docpath.DocPath, index int) docpath.DocPath {
	markerTokens := marker.Tokens()
	tokens := path.Tokens()
	if len(markerTokens) == 0 || len(tokens) < len(markerTokens) {
		return path
	}
	for idx, t := range markerTokens {
		if tokens[idx] != t {
			return path
		}
	}
	last := len(markerTokens) - 1
	if k := tokens[last].Kind; k != docpath.StarIndex && k != docpath.Star {
		return path
	}
	tokens[last] = docpath.IndexToken(index)
	return docpath.FromTokens(tokens)
}
