package query

import (
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain/operators"
)

// NullabilityProcessor rewrites equality so that NULL compares the way it
// does on the client: NULL equals NULL and differs from every value.
type NullabilityProcessor struct {
	useRelationalNulls bool
	parameters         map[string]any
}

func NewNullabilityProcessor(useRelationalNulls bool, parameters map[string]any) *NullabilityProcessor {
	return &NullabilityProcessor{useRelationalNulls: useRelationalNulls, parameters: parameters}
}

func (p *NullabilityProcessor) Process(n q.Visitable) (q.Visitable, error) {
	if p.useRelationalNulls || n == nil {
		return n, nil
	}
	return q.Rewrite(n, p.rewrite)
}

func (p *NullabilityProcessor) rewrite(n q.Visitable) (q.Visitable, error) {
	infix, ok := n.(q.InfixNode)
	if !ok {
		return n, nil
	}
	op := infix.Operator()
	if op != operators.OperatorEq && op != operators.OperatorNe {
		return n, nil
	}
	left, right := infix.Left(), infix.Right()
	leftNull, rightNull := p.isNull(left), p.isNull(right)
	switch {
	case leftNull && rightNull:
		return q.Value(op == operators.OperatorEq), nil
	case rightNull:
		return nullCheck(left, op), nil
	case leftNull:
		return nullCheck(right, op), nil
	}
	leftNullable, rightNullable := p.IsNullable(left), p.IsNullable(right)
	if !leftNullable && !rightNullable {
		return n, nil
	}
	if op == operators.OperatorEq {
		if leftNullable && rightNullable {
			return q.Or(infix, q.And(q.IsNull(left), q.IsNull(right))), nil
		}
		return n, nil
	}
	if leftNullable && rightNullable {
		return q.And(
			q.Or(infix, q.IsNull(left), q.IsNull(right)),
			q.Or(q.IsNotNull(left), q.IsNotNull(right)),
		), nil
	}
	if leftNullable {
		return q.Or(infix, q.IsNull(left)), nil
	}
	return q.Or(infix, q.IsNull(right)), nil
}

func nullCheck(operand q.Visitable, op operators.Operator) q.Visitable {
	if op == operators.OperatorEq {
		return q.IsNull(operand)
	}
	return q.IsNotNull(operand)
}

// isNull reports whether n is the NULL constant or a parameter bound to nil.
func (p *NullabilityProcessor) isNull(n q.Visitable) bool {
	switch t := n.(type) {
	case q.ValueNode:
		return t.Value() == nil
	case q.ParameterNode:
		value, ok := p.parameters[t.Name()]
		return ok && value == nil
	}
	return false
}

// IsNullable reports whether n can evaluate to NULL in the store.
func (p *NullabilityProcessor) IsNullable(n q.Visitable) bool {
	switch t := n.(type) {
	case q.ColumnNode:
		return t.IsNullable()
	case q.ValueNode, q.ParameterNode:
		return p.isNull(t)
	case q.LiftableConstantNode:
		return t.Original() == nil
	case q.FunctionNode:
		if !t.IsNullable() {
			return false
		}
		propagate := t.ArgumentsPropagateNullability()
		if len(propagate) == 0 {
			return true
		}
		for i, a := range t.Arguments() {
			if i < len(propagate) && propagate[i] && p.IsNullable(a) {
				return true
			}
		}
		return !anyTrue(propagate)
	case q.InfixNode:
		if t.Operator().IsComparison() || t.Operator().IsLogical() {
			return false
		}
		return p.IsNullable(t.Left()) || p.IsNullable(t.Right())
	case q.PrefixNode:
		if t.Operator().IsLogical() {
			return false
		}
		return p.IsNullable(t.Operand())
	case q.PostfixNode, q.ExistsNode:
		return false
	}
	return true
}

func anyTrue(values []bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}
