// internal/engine/interpreter.go
package engine

import (
	"fmt"
	"log/slog"

	"github.com/pact-foundation/pactengine/internal/docpath"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/types"
)

/*
 * Plan interpretation.
 *
 * WalkTree evaluates a node and returns a new node carrying the result.
 * Evaluation never fails as a whole: every problem becomes an ERROR result
 * on the node that produced it, and containers keep evaluating their other
 * children so that every mismatch is reported.
 *
 * Node semantics:
 *   CONTAINER        all children in order, verdict is the AND of their
 *                    results converted to a boolean
 *   PIPELINE         children in order, each replacing the top of the value
 *                    stack; the result is the last value
 *   RESOLVE          value from the ValueResolver
 *   RESOLVE_CURRENT  value at a path inside the top of the value stack
 *   SPLAT            children whose values are maps or string lists fan out
 *                    into one child result per entry or item
 *   VALUE            the literal, decoding namespaced text
 *   ACTION           dispatched by name through the action registry
 *
 * The value stack is owned by the interpreter. One Interpreter must not be
 * used by two goroutines at once; a plan may be walked by any number of
 * interpreters concurrently.
 *
 * Recursion is bounded by the configured maximum depth. A node nested
 * deeper fails with "plan exceeds maximum depth" without evaluating its
 * children.
 */

// Observer receives a callback for every executed action.
type Observer interface {
	ActionExecuted(action string, result *NodeResult)
}

// Interpreter walks plans against one interaction.
type Interpreter struct {
	ctx      *PlanMatchingContext
	actions  *Registry
	stack    []*NodeResult
	depth    int
	maxDepth int
	logger   *slog.Logger
	observer Observer
}

// NewInterpreter returns an interpreter using the default action registry.
func NewInterpreter(ctx *PlanMatchingContext) *Interpreter {
	if ctx == nil {
		ctx = NewPlanMatchingContext(DefaultConfiguration(), nil)
	}
	maxDepth := ctx.Config.MaxPlanDepth
	if maxDepth <= 0 {
		maxDepth = types.MaxPlanDepth
	}
	return &Interpreter{
		ctx:      ctx,
		actions:  DefaultRegistry(),
		maxDepth: maxDepth,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger used for trace output.
func (i *Interpreter) WithLogger(logger *slog.Logger) *Interpreter {
	if logger != nil {
		i.logger = logger
	}
	return i
}

// WithRegistry replaces the action registry.
func (i *Interpreter) WithRegistry(r *Registry) *Interpreter {
	if r != nil {
		i.actions = r
	}
	return i
}

// WithObserver sets a callback for executed actions.
func (i *Interpreter) WithObserver(o Observer) *Interpreter {
	i.observer = o
	return i
}

// Context returns the matching context the interpreter was created with.
func (i *Interpreter) Context() *PlanMatchingContext { return i.ctx }

// Execute walks a whole plan from the root, logging the raw plan, the
// executed plan and its summary as configured.
func (i *Interpreter) Execute(plan *ExecutionPlanNode, resolver ValueResolver) *ExecutionPlanNode {
	cfg := i.ctx.Config
	if cfg.LogRawPlan {
		i.logger.Info("Raw plan\n" + plan.PrettyForm())
	}
	i.stack = i.stack[:0]
	i.depth = 0
	executed := i.WalkTree(nil, plan, resolver)
	if cfg.LogExecutedPlan {
		i.logger.Info("Executed plan\n" + executed.PrettyForm())
	}
	if cfg.LogPlanSummary {
		i.logger.Info("Plan summary\n" + executed.Summary(cfg.ColouredOutput))
	}
	return executed
}

// WalkTree evaluates node below path and returns the annotated copy.
func (i *Interpreter) WalkTree(path []string, node *ExecutionPlanNode, resolver ValueResolver) *ExecutionPlanNode {
	i.depth++
	defer func() { i.depth-- }()
	if i.depth > i.maxDepth {
		i.logger.Debug("walk_tree ==> plan too deep", "path", path, "depth", i.depth)
		return node.withResult(ErrorResult(types.ErrPlanTooDeep, "plan exceeds maximum depth"), node.Children)
	}

	switch node.NodeType.Kind {
	case KindAction:
		i.logger.Debug("walk_tree ==> Action node", "path", path, "action", node.NodeType.Label)
		return i.executeAction(node.NodeType.Label, resolver, node, path)

	case KindAnnotation, KindEmpty:
		return node.clone()

	case KindContainer:
		i.logger.Debug("walk_tree ==> Container node", "path", path, "label", node.NodeType.Label)
		return i.walkContainer(path, node, resolver)

	case KindPipeline:
		i.logger.Debug("walk_tree ==> Pipeline node", "path", path)
		return i.walkPipeline(path, node, resolver)

	case KindResolve:
		value, err := resolver.Resolve(node.NodeType.Path, i.ctx)
		if err != nil {
			i.logger.Debug("Resolve node failed", "path", path, "resolve_path", node.NodeType.Path.String(), "error", err)
			return node.withResult(ErrorResult(types.ErrUnresolvablePath, err.Error()), nil)
		}
		i.logger.Debug(fmt.Sprintf("Resolved %s -> %s", node.NodeType.Path, value.StrForm()))
		return node.withResult(ValueResult(value), nil)

	case KindResolveCurrent:
		value, err := i.resolveStackValue(node.NodeType.Path)
		if err != nil {
			i.logger.Debug("Resolve current node failed", "path", path, "expression", node.NodeType.Path.String(), "error", err)
			return node.withResult(&NodeResult{Kind: ResultError, Err: err}, nil)
		}
		return node.withResult(ValueResult(value), nil)

	case KindSplat:
		i.logger.Debug("walk_tree ==> Splat node", "path", path)
		return i.walkSplat(path, node, resolver)

	case KindValue:
		return node.withResult(i.evaluateValue(node.NodeType.Value), nil)
	}

	return node.withResult(Errorf(types.ErrUnknownAction, "unknown node type %d", node.NodeType.Kind), nil)
}

func (i *Interpreter) walkContainer(path []string, node *ExecutionPlanNode, resolver ValueResolver) *ExecutionPlanNode {
	childPath := append(append([]string(nil), path...), node.NodeType.Label)
	status := OK()
	children := make([]*ExecutionPlanNode, 0, len(node.Children))
	for _, child := range node.Children {
		result := i.WalkTree(childPath, child, resolver)
		children = append(children, result)
		// Splat items are folded into the verdict in place of splicing them
		// into the child list; the executed tree keeps the splat node.
		if result.IsSplat() {
			for _, item := range result.Children {
				status = status.And(item.Result)
			}
			continue
		}
		status = status.And(result.Result)
	}
	return node.withResult(status.Truthy(), children)
}

func (i *Interpreter) walkPipeline(path []string, node *ExecutionPlanNode, resolver ValueResolver) *ExecutionPlanNode {
	i.pushResult(nil)
	children := make([]*ExecutionPlanNode, 0, len(node.Children))
	for _, child := range node.Children {
		result := i.WalkTree(path, child, resolver)
		children = append(children, result)
		if result.IsSplat() && len(result.Children) > 0 {
			i.updateResult(result.Children[len(result.Children)-1].Result)
			continue
		}
		i.updateResult(result.Result)
	}
	top := i.popResult()
	if top == nil {
		i.logger.Debug("Value from stack is empty", "path", path)
		return node.withResult(ErrorResult(types.ErrEmptyStack, "Value from stack is empty"), children)
	}
	return node.withResult(top, children)
}

func (i *Interpreter) walkSplat(path []string, node *ExecutionPlanNode, resolver ValueResolver) *ExecutionPlanNode {
	var children []*ExecutionPlanNode
	for _, child := range node.Children {
		result := i.WalkTree(path, child, resolver)
		switch v := result.Result.ValueOrNull().(type) {
		case MultiMap:
			for _, key := range v.Keys() {
				entry := EntryValue{Key: key, Value: StringList(v[key])}
				children = append(children, result.withResult(ValueResult(entry), result.Children))
			}
			continue
		case StringList:
			for _, item := range v {
				children = append(children, result.withResult(ValueResult(StringValue(item)), result.Children))
			}
			continue
		}
		children = append(children, result)
	}
	return node.withResult(OK(), children)
}

func (i *Interpreter) evaluateValue(v NodeValue) *NodeResult {
	ns, ok := v.(NamespacedValue)
	if !ok {
		return ValueResult(v)
	}
	switch ns.Namespace {
	case "json":
		doc, err := jsondoc.ParseString(ns.Value)
		if err != nil {
			return ErrorResult(types.ErrTypeMismatch, err.Error())
		}
		return ValueResult(JSONValue{Doc: doc})
	default:
		return Errorf(types.ErrUnknownNamespace, "'%s' is not a known namespace", ns.Namespace)
	}
}

func (i *Interpreter) pushResult(r *NodeResult) { i.stack = append(i.stack, r) }

func (i *Interpreter) updateResult(r *NodeResult) {
	if len(i.stack) == 0 {
		i.stack = append(i.stack, r)
		return
	}
	i.stack[len(i.stack)-1] = r
}

func (i *Interpreter) popResult() *NodeResult {
	if len(i.stack) == 0 {
		return nil
	}
	top := i.stack[len(i.stack)-1]
	i.stack = i.stack[:len(i.stack)-1]
	return top
}

func (i *Interpreter) stackValue() *NodeResult {
	if len(i.stack) == 0 {
		return nil
	}
	return i.stack[len(i.stack)-1]
}

// resolveStackValue resolves path inside the value on top of the stack.
// JSON is the only resolvable kind. No match gives NULL, one match the
// matched node and several matches an array of them.
func (i *Interpreter) resolveStackValue(path docpath.DocPath) (NodeValue, *types.EvalError) {
	top := i.stackValue()
	if top == nil {
		return nil, types.NewEvalError(types.ErrEmptyStack, fmt.Sprintf(
			"Can not resolve '%s', current value stack is either empty or contains an empty value", path))
	}
	if top.Kind != ResultValue {
		return nil, types.NewEvalError(types.ErrEmptyStack, fmt.Sprintf(
			"Can not resolve '%s', current stack value does not contain a value", path))
	}
	switch v := top.Value.(type) {
	case NullValue:
		return nil, types.NewEvalError(types.ErrEmptyStack, fmt.Sprintf(
			"Can not resolve '%s', current stack value does not contain a value (is NULL)", path))
	case JSONValue:
		if path.IsRoot() {
			return v, nil
		}
		pointers := path.ResolveJSON(v.Doc)
		i.logger.Debug(fmt.Sprintf("resolved path %s -> %v", path, pointers))
		switch len(pointers) {
		case 0:
			return Null, nil
		case 1:
			found, _ := jsondoc.Pointer(v.Doc, pointers[0])
			if found == nil {
				return Null, nil
			}
			return JSONValue{Doc: found}, nil
		default:
			items := make([]any, 0, len(pointers))
			for _, ptr := range pointers {
				found, _ := jsondoc.Pointer(v.Doc, ptr)
				items = append(items, found)
			}
			return JSONValue{Doc: items}, nil
		}
	default:
		return nil, types.NewEvalError(types.ErrTypeMismatch, fmt.Sprintf(
			"Can not resolve '%s', current stack value does not contain a value that is resolvable (%s)", path, v.StrForm()))
	}
}

// evaluateChildren walks the children of an action node and collects their
// results. Splat children contribute one result per fanned out item. With
// shortCircuit set the first error stops the walk and is returned as the
// failed action node, with the remaining children left unevaluated.
func (i *Interpreter) evaluateChildren(resolver ValueResolver, node *ExecutionPlanNode, path []string, shortCircuit bool) ([]*ExecutionPlanNode, []*NodeResult, *ExecutionPlanNode) {
	children := make([]*ExecutionPlanNode, 0, len(node.Children))
	var values []*NodeResult
	for idx, child := range node.Children {
		result := i.WalkTree(path, child, resolver)
		children = append(children, result)
		if result.Result.IsError() && shortCircuit {
			children = append(children, node.Children[idx+1:]...)
			return nil, nil, node.withResult(result.Result, children)
		}
		// Splat items become separate arguments; the executed tree keeps
		// the splat node.
		if result.IsSplat() {
			for _, item := range result.Children {
				values = append(values, orOK(item.Result))
			}
			continue
		}
		values = append(values, orOK(result.Result))
	}
	return children, values, nil
}

func orOK(r *NodeResult) *NodeResult {
	if r == nil {
		return OK()
	}
	return r
}

// walkArgs evaluates the first required children and returns them with the
// unevaluated optional ones.
func (i *Interpreter) walkArgs(required, optional int, node *ExecutionPlanNode, action string, resolver ValueResolver, path []string) ([]*ExecutionPlanNode, []*ExecutionPlanNode, *NodeResult) {
	n := len(node.Children)
	if n < required {
		return nil, nil, Errorf(types.ErrInvalidArguments, "%s requires %d arguments, got %d", action, required, n)
	}
	if n > required+optional {
		return nil, nil, Errorf(types.ErrInvalidArguments, "%s supports at most %d arguments, got %d", action, required+optional, n)
	}
	args := make([]*ExecutionPlanNode, 0, required)
	for _, child := range node.Children[:required] {
		args = append(args, i.WalkTree(path, child, resolver))
	}
	return args, node.Children[required:], nil
}

func (i *Interpreter) walkOneArg(node *ExecutionPlanNode, action string, resolver ValueResolver, path []string) (*ExecutionPlanNode, *NodeResult) {
	switch n := len(node.Children); {
	case n > 1:
		return nil, Errorf(types.ErrInvalidArguments, "%s takes only one argument, got %d", action, n)
	case n == 0:
		return nil, Errorf(types.ErrInvalidArguments, "%s requires one argument, got none", action)
	}
	return i.WalkTree(path, node.Children[0], resolver), nil
}

func (i *Interpreter) walkExactArgs(count int, node *ExecutionPlanNode, action string, resolver ValueResolver, path []string) ([]*ExecutionPlanNode, *NodeResult) {
	if len(node.Children) != count {
		word := map[int]string{2: "two", 3: "three"}[count]
		return nil, Errorf(types.ErrInvalidArguments, "Action '%s' requires %s arguments, got %d", action, word, len(node.Children))
	}
	args := make([]*ExecutionPlanNode, count)
	for idx, child := range node.Children {
		args[idx] = i.WalkTree(path, child, resolver)
	}
	return args, nil
}
