package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain/operators"
)

// Print renders n canonically. Equal trees print equally.
func Print(n Visitable) string {
	var b strings.Builder
	printNode(&b, n)
	return b.String()
}

func printNode(b *strings.Builder, n Visitable) {
	switch t := n.(type) {
	case nil:
		b.WriteString("<nil>")
	case GlobalScopeNode:
		b.WriteString("$")
	case ItemNode:
		b.WriteString("@")
	case ObjectNode:
		printNode(b, t.Parent())
		b.WriteString(".")
		b.WriteString(t.Name())
	case FieldNode:
		printNode(b, t.Object())
		b.WriteString(".")
		b.WriteString(t.Name())
	case CollectionNode:
		b.WriteString("Any(")
		printNode(b, t.Parent())
		b.WriteString(".")
		b.WriteString(t.Name())
		b.WriteString(", ")
		printNode(b, t.Predicate())
		b.WriteString(")")
	case ValueNode:
		b.WriteString(FormatValue(t.Value()))
	case ParameterNode:
		b.WriteString(":")
		b.WriteString(t.Name())
	case PrefixNode:
		b.WriteString("(")
		switch t.Operator() {
		case operators.OperatorNeg:
			b.WriteString("-")
		case operators.OperatorPos:
			b.WriteString("+")
		default:
			b.WriteString(string(t.Operator()))
			b.WriteString(" ")
		}
		printNode(b, t.Operand())
		b.WriteString(")")
	case InfixNode:
		b.WriteString("(")
		printNode(b, t.Left())
		b.WriteString(" ")
		b.WriteString(string(t.Operator()))
		b.WriteString(" ")
		printNode(b, t.Right())
		b.WriteString(")")
	case PostfixNode:
		b.WriteString("(")
		printNode(b, t.Operand())
		b.WriteString(" ")
		b.WriteString(string(t.Operator()))
		b.WriteString(")")
	case CallNode:
		b.WriteString(t.Method().String())
		b.WriteString("(")
		args := t.Arguments()
		if t.Instance() != nil {
			args = append([]Visitable{t.Instance()}, args...)
		}
		printList(b, args)
		b.WriteString(")")
	case FunctionNode:
		b.WriteString(t.Name())
		b.WriteString("(")
		printList(b, t.Arguments())
		b.WriteString(")")
	case ColumnNode:
		if t.IsEmbedded() {
			b.WriteString("~")
		}
		b.WriteString(t.Table())
		for _, p := range t.Path() {
			b.WriteString(".")
			b.WriteString(p)
		}
	case ExistsNode:
		b.WriteString("EXISTS(")
		if t.IsEmbedded() {
			printNode(b, t.Source())
		} else {
			b.WriteString(t.Table())
		}
		b.WriteString(" AS ")
		b.WriteString(t.Alias())
		if t.Temporal() != nil {
			b.WriteString(" ")
			b.WriteString(t.Temporal().String())
		}
		if t.Predicate() != nil {
			b.WriteString(" WHERE ")
			printNode(b, t.Predicate())
		}
		b.WriteString(")")
	case LiftableConstantNode:
		b.WriteString("Lifted(")
		b.WriteString(t.Key())
		b.WriteString(")")
	default:
		fmt.Fprintf(b, "<%T>", n)
	}
}

func printList(b *strings.Builder, nodes []Visitable) {
	for i, a := range nodes {
		if i > 0 {
			b.WriteString(", ")
		}
		printNode(b, a)
	}
}

// FormatValue renders a literal value for printing.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", x)
	case time.Time:
		return formatTime(x)
	case []byte:
		return fmt.Sprintf("0x%X", x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}
