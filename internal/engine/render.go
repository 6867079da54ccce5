// internal/engine/render.go
package engine

import (
	"strings"
	"unicode"

	"github.com/pact-foundation/pactengine/internal/jsondoc"
)

/*
 * Plan rendering.
 *
 * StrForm is the compact single line form used in logs and tests:
 *
 *   (:headers((%match:equality('a',~>$.a,json:{})=>BOOL(true))=>BOOL(true))
 *
 * PrettyForm is the indented form with " => result" after every executed
 * node. Summary lists only the containers with their outcome and is the
 * form shown to people running a verification.
 */

const (
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiReset = "\x1b[0m"
)

// StrForm renders the tree on one line.
func (n *ExecutionPlanNode) StrForm() string {
	var b strings.Builder
	n.strForm(&b)
	return b.String()
}

func (n *ExecutionPlanNode) strForm(b *strings.Builder) {
	b.WriteByte('(')
	switch n.NodeType.Kind {
	case KindEmpty:
	case KindContainer:
		b.WriteByte(':')
		b.WriteString(containerLabel(n.NodeType.Label))
		n.strFormChildren(b)
		n.strFormResult(b)
	case KindAction:
		b.WriteByte('%')
		b.WriteString(n.NodeType.Label)
		n.strFormChildren(b)
		n.strFormResult(b)
	case KindValue:
		b.WriteString(n.NodeType.Value.StrForm())
		n.strFormResult(b)
	case KindResolve:
		b.WriteString(n.NodeType.Path.String())
		n.strFormResult(b)
	case KindPipeline:
		b.WriteString("->")
		n.strFormChildren(b)
		n.strFormResult(b)
	case KindResolveCurrent:
		b.WriteString("~>")
		b.WriteString(n.NodeType.Path.String())
		n.strFormResult(b)
	case KindSplat:
		b.WriteString("**")
		n.strFormChildren(b)
		n.strFormResult(b)
	case KindAnnotation:
		b.WriteString("#{")
		b.WriteString(escapeLabel(n.NodeType.Label))
		b.WriteByte('}')
	}
	b.WriteByte(')')
}

func (n *ExecutionPlanNode) strFormChildren(b *strings.Builder) {
	b.WriteByte('(')
	for i, child := range n.Children {
		if i > 0 {
			b.WriteByte(',')
		}
		child.strForm(b)
	}
	b.WriteByte(')')
}

func (n *ExecutionPlanNode) strFormResult(b *strings.Builder) {
	if n.Result != nil {
		b.WriteString("=>")
		b.WriteString(n.Result.String())
	}
}

// PrettyForm renders the tree over several lines, indenting each level by
// two spaces.
func (n *ExecutionPlanNode) PrettyForm() string {
	var b strings.Builder
	n.prettyForm(&b, 0)
	return b.String()
}

func (n *ExecutionPlanNode) prettyForm(b *strings.Builder, indent int) {
	pad := strings.Repeat(" ", indent)
	switch n.NodeType.Kind {
	case KindEmpty:
		return
	case KindContainer:
		b.WriteString(pad)
		b.WriteByte(':')
		b.WriteString(containerLabel(n.NodeType.Label))
		n.prettyFormChildren(b, indent)
	case KindAction:
		b.WriteString(pad)
		b.WriteByte('%')
		b.WriteString(n.NodeType.Label)
		n.prettyFormChildren(b, indent)
	case KindValue:
		b.WriteString(pad)
		b.WriteString(n.NodeType.Value.StrForm())
	case KindResolve:
		b.WriteString(pad)
		b.WriteString(n.NodeType.Path.String())
	case KindPipeline:
		b.WriteString(pad)
		b.WriteString("->")
		n.prettyFormChildren(b, indent)
	case KindResolveCurrent:
		b.WriteString(pad)
		b.WriteString("~>")
		b.WriteString(n.NodeType.Path.String())
	case KindSplat:
		b.WriteString(pad)
		b.WriteString("**")
		n.prettyFormChildren(b, indent)
	case KindAnnotation:
		b.WriteString(pad)
		b.WriteString("#{")
		b.WriteString(escapeLabel(n.NodeType.Label))
		b.WriteByte('}')
		return
	}
	if n.Result != nil {
		b.WriteString(" => ")
		b.WriteString(n.Result.String())
	}
}

func (n *ExecutionPlanNode) prettyFormChildren(b *strings.Builder, indent int) {
	if n.IsEmpty() {
		b.WriteString(" ()")
		return
	}
	b.WriteString(" (\n")
	for i, child := range n.Children {
		if i > 0 {
			b.WriteString(",\n")
		}
		child.prettyForm(b, indent+2)
	}
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(" ", indent))
	b.WriteByte(')')
}

// Summary renders the containers of an executed tree with their outcome:
// OK, the errors found below them, or FAILED when the verdict is false
// without an error message. With ansi set the outcome is coloured.
func (n *ExecutionPlanNode) Summary(ansi bool) string {
	var b strings.Builder
	n.summary(&b, ansi, 0)
	return b.String()
}

func (n *ExecutionPlanNode) summary(b *strings.Builder, ansi bool, indent int) {
	if !n.IsContainer() {
		for _, child := range n.Children {
			child.summary(b, ansi, indent)
		}
		return
	}

	pad := strings.Repeat(" ", indent)
	label := n.NodeType.Label
	b.WriteString(pad)
	b.WriteString(label)
	b.WriteByte(':')
	if annotation, ok := n.Annotation(); ok {
		b.WriteByte(' ')
		b.WriteString(annotation)
	}

	if n.Result != nil {
		errorPad := strings.Repeat(" ", indent+len(label)+2)
		writeErrors := func(errs []string) {
			for _, msg := range errs {
				b.WriteByte('\n')
				b.WriteString(errorPad)
				b.WriteString(outcome("ERROR", msg, ansi))
			}
		}

		terminal := n.IsLeaf() || n.IsTerminalContainer()
		terminator := TerminateContainers
		if terminal {
			terminator = TerminateNone
		}
		errs := n.ChildErrors(terminator)

		switch {
		case terminal && n.Result.IsTruthy():
			b.WriteString(outcome("OK", "", ansi))
		case n.Result.IsError():
			b.WriteString(outcome("ERROR", n.Result.Message(), ansi))
			writeErrors(errs)
		case len(errs) == 1:
			b.WriteString(outcome("ERROR", errs[0], ansi))
		case len(errs) == 0:
			if terminal {
				b.WriteString(outcome("FAILED", "", ansi))
			}
		default:
			writeErrors(errs)
		}
	}

	b.WriteByte('\n')
	for _, child := range n.Children {
		child.summary(b, ansi, indent+2)
	}
}

func outcome(status, msg string, ansi bool) string {
	colour := ansiRed
	if status == "OK" {
		colour = ansiGreen
	}
	var b strings.Builder
	b.WriteString(" - ")
	if ansi {
		b.WriteString(colour + status + ansiReset)
	} else {
		b.WriteString(status)
	}
	if msg != "" {
		b.WriteByte(' ')
		if ansi {
			b.WriteString(colour + msg + ansiReset)
		} else {
			b.WriteString(msg)
		}
	}
	return b.String()
}

func containerLabel(label string) string {
	if strings.ContainsFunc(label, unicode.IsSpace) {
		return `"` + label + `"`
	}
	return label
}

// escapeLabel quotes annotation text: JSON escaped in double quotes when it
// holds a single quote, single quoted when it holds whitespace.
func escapeLabel(s string) string {
	switch {
	case s == "":
		return s
	case strings.ContainsRune(s, '\''):
		return jsondoc.Serialise(s)
	case strings.ContainsFunc(s, unicode.IsSpace):
		return "'" + s + "'"
	default:
		quoted := jsondoc.Serialise(s)
		return quoted[1 : len(quoted)-1]
	}
}
