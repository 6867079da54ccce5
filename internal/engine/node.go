// internal/engine/node.go
package engine

import (
	"github.com/pact-foundation/pactengine/internal/docpath"
)

/*
 * A plan is a tree of ExecutionPlanNode. Builders return fresh nodes with
 * no result; the interpreter never modifies a node it is given and returns
 * a new tree instead, so one plan can be walked by many interpreters at the
 * same time.
 */

// NodeKind identifies the type of a plan node.
type NodeKind int

// Node kinds.
const (
	KindEmpty NodeKind = iota
	KindContainer
	KindAction
	KindValue
	KindResolve
	KindPipeline
	KindResolveCurrent
	KindSplat
	KindAnnotation
)

var kindNames = map[NodeKind]string{
	KindEmpty:          "empty",
	KindContainer:      "container",
	KindAction:         "action",
	KindValue:          "value",
	KindResolve:        "resolve",
	KindPipeline:       "pipeline",
	KindResolveCurrent: "resolve-current",
	KindSplat:          "splat",
	KindAnnotation:     "annotation",
}

// String returns the lower-case kind name used in plan documents.
func (k NodeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseNodeKind is the inverse of NodeKind.String.
func ParseNodeKind(s string) (NodeKind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return KindEmpty, false
}

// PlanNodeType describes what a node does. Label holds the container label,
// action name or annotation text, Path the path of resolve nodes and Value
// the literal of value nodes.
type PlanNodeType struct {
	Kind  NodeKind
	Label string
	Path  docpath.DocPath
	Value NodeValue
}

// ExecutionPlanNode is one node of a matching plan.
type ExecutionPlanNode struct {
	NodeType PlanNodeType
	Result   *NodeResult
	Children []*ExecutionPlanNode
}

func newNode(t PlanNodeType) *ExecutionPlanNode {
	return &ExecutionPlanNode{NodeType: t}
}

// ContainerNode returns a container labelled label.
func ContainerNode(label string) *ExecutionPlanNode {
	return newNode(PlanNodeType{Kind: KindContainer, Label: label})
}

// ActionNode returns an action node invoking the named action.
func ActionNode(action string) *ExecutionPlanNode {
	return newNode(PlanNodeType{Kind: KindAction, Label: action})
}

// ValueNode returns a literal value node.
func ValueNode(v NodeValue) *ExecutionPlanNode {
	if v == nil {
		v = Null
	}
	return newNode(PlanNodeType{Kind: KindValue, Value: v})
}

// StringNode returns a literal string node.
func StringNode(s string) *ExecutionPlanNode { return ValueNode(StringValue(s)) }

// UintNode returns a literal unsigned integer node.
func UintNode(n uint64) *ExecutionPlanNode { return ValueNode(UintValue(n)) }

// JSONNode returns a literal JSON node.
func JSONNode(doc any) *ExecutionPlanNode { return ValueNode(JSONValue{Doc: doc}) }

// NamespacedNode returns a literal that is decoded at evaluation time, such
// as NamespacedNode("json", `{"a": 1}`).
func NamespacedNode(namespace, text string) *ExecutionPlanNode {
	return ValueNode(NamespacedValue{Namespace: namespace, Value: text})
}

// ResolveNode returns a node resolving path against the interaction.
func ResolveNode(path docpath.DocPath) *ExecutionPlanNode {
	return newNode(PlanNodeType{Kind: KindResolve, Path: path})
}

// ResolveExpr is ResolveNode for a path expression. It panics on an invalid
// expression and is meant for plans built in code.
func ResolveExpr(expr string) *ExecutionPlanNode {
	return ResolveNode(docpath.MustParse(expr))
}

// ResolveCurrentNode returns a node resolving path against the current
// stack value.
func ResolveCurrentNode(path docpath.DocPath) *ExecutionPlanNode {
	return newNode(PlanNodeType{Kind: KindResolveCurrent, Path: path})
}

// PipelineNode returns an empty pipeline.
func PipelineNode() *ExecutionPlanNode {
	return newNode(PlanNodeType{Kind: KindPipeline})
}

// SplatNode returns an empty splat.
func SplatNode() *ExecutionPlanNode {
	return newNode(PlanNodeType{Kind: KindSplat})
}

// AnnotationNode returns an annotation carrying a description.
func AnnotationNode(description string) *ExecutionPlanNode {
	return newNode(PlanNodeType{Kind: KindAnnotation, Label: description})
}

// EmptyNode returns a node that does nothing.
func EmptyNode() *ExecutionPlanNode {
	return newNode(PlanNodeType{Kind: KindEmpty})
}

// Add appends children and returns n.
func (n *ExecutionPlanNode) Add(children ...*ExecutionPlanNode) *ExecutionPlanNode {
	n.Children = append(n.Children, children...)
	return n
}

// withResult returns a shallow copy of n carrying result and children.
func (n *ExecutionPlanNode) withResult(result *NodeResult, children []*ExecutionPlanNode) *ExecutionPlanNode {
	return &ExecutionPlanNode{NodeType: n.NodeType, Result: result, Children: children}
}

// clone returns a deep copy of n.
func (n *ExecutionPlanNode) clone() *ExecutionPlanNode {
	out := &ExecutionPlanNode{NodeType: n.NodeType, Result: n.Result}
	if len(n.Children) > 0 {
		out.Children = make([]*ExecutionPlanNode, len(n.Children))
		for i, child := range n.Children {
			out.Children[i] = child.clone()
		}
	}
	return out
}

// IsEmpty reports whether the node has nothing to evaluate.
func (n *ExecutionPlanNode) IsEmpty() bool {
	if n.NodeType.Kind == KindEmpty {
		return true
	}
	return len(n.Children) == 0
}

// IsSplat reports whether n is a splat node.
func (n *ExecutionPlanNode) IsSplat() bool { return n.NodeType.Kind == KindSplat }

// IsContainer reports whether n is a container.
func (n *ExecutionPlanNode) IsContainer() bool { return n.NodeType.Kind == KindContainer }

// IsLeaf reports whether n has no children.
func (n *ExecutionPlanNode) IsLeaf() bool { return len(n.Children) == 0 }

// IsTerminalContainer reports whether n is a container with no containers
// below it.
func (n *ExecutionPlanNode) IsTerminalContainer() bool {
	return n.IsContainer() && !n.hasChildContainers()
}

func (n *ExecutionPlanNode) hasChildContainers() bool {
	for _, child := range n.Children {
		if child.IsContainer() || child.hasChildContainers() {
			return true
		}
	}
	return false
}

// Annotation returns the text of the first annotation child.
func (n *ExecutionPlanNode) Annotation() (string, bool) {
	for _, child := range n.Children {
		if child.NodeType.Kind == KindAnnotation {
			return child.NodeType.Label, true
		}
	}
	return "", false
}

// Value returns the node's literal when it is a value node holding a
// decoded value.
func (n *ExecutionPlanNode) Value() (NodeValue, bool) {
	if n.NodeType.Kind != KindValue {
		return nil, false
	}
	return n.NodeType.Value, true
}

// identifier is the token used by FetchNode to address the node.
func (n *ExecutionPlanNode) identifier() string {
	switch n.NodeType.Kind {
	case KindContainer:
		return ":" + n.NodeType.Label
	case KindAction:
		return "%" + n.NodeType.Label
	case KindResolve:
		return n.NodeType.Path.String()
	case KindPipeline:
		return "->"
	case KindResolveCurrent:
		return "~>" + n.NodeType.Path.String()
	case KindSplat:
		return "**"
	}
	return ""
}

// FetchNode follows path through the tree, one identifier per level (":label"
// for containers, "%name" for actions, "->" for pipelines and so on), and
// returns the node it ends at.
func (n *ExecutionPlanNode) FetchNode(path []string) (*ExecutionPlanNode, bool) {
	if len(path) == 0 {
		return nil, false
	}
	id := n.identifier()
	if id == "" || id != path[0] {
		return nil, false
	}
	if len(path) == 1 {
		return n, true
	}
	for _, child := range n.Children {
		if found, ok := child.FetchNode(path[1:]); ok {
			return found, true
		}
	}
	return nil, false
}

// Terminator controls where error collection stops.
type Terminator int

// Terminators.
const (
	// TerminateNone collects errors from the whole subtree.
	TerminateNone Terminator = iota
	// TerminateContainers stops at child containers.
	TerminateContainers
)

// ChildErrors returns the error messages of the nodes below n in walk order.
func (n *ExecutionPlanNode) ChildErrors(terminator Terminator) []string {
	var errs []string
	for _, child := range n.Children {
		if child.IsContainer() && terminator == TerminateContainers {
			continue
		}
		if child.Result.IsError() {
			errs = append(errs, child.Result.Message())
		}
		errs = append(errs, child.ChildErrors(terminator)...)
	}
	return errs
}

// Error returns the node's own error, or the first error below it before
// any child container.
func (n *ExecutionPlanNode) Error() (string, bool) {
	if n.Result.IsError() {
		return n.Result.Message(), true
	}
	if errs := n.ChildErrors(TerminateContainers); len(errs) > 0 {
		return errs[0], true
	}
	return "", false
}

// Errors returns every error message in the subtree, starting with n's.
func (n *ExecutionPlanNode) Errors() []string {
	var errs []string
	if n.Result.IsError() {
		errs = append(errs, n.Result.Message())
	}
	return append(errs, n.ChildErrors(TerminateNone)...)
}

// TraverseContainers calls fn for every container below n, depth first.
func (n *ExecutionPlanNode) TraverseContainers(fn func(label string, node *ExecutionPlanNode)) {
	for _, child := range n.Children {
		if child.IsContainer() {
			fn(child.NodeType.Label, child)
		}
		child.TraverseContainers(fn)
	}
}

// CountNodes returns the number of nodes in the tree rooted at n.
func (n *ExecutionPlanNode) CountNodes() int {
	count := 1
	for _, child := range n.Children {
		count += child.CountNodes()
	}
	return count
}

// Depth returns the height of the tree rooted at n.
func (n *ExecutionPlanNode) Depth() int {
	deepest := 0
	for _, child := range n.Children {
		if d := child.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}
