package query

import (
	"strconv"

	"github.com/pkg/errors"

	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain/operators"
)

const parameterPrefix = "__p_"

// funcletizer evaluates the closed parts of a query on the client and
// turns the values into parameters, so that queries which differ only in
// their values share one plan.
type funcletizer struct {
	registry        *operators.OperatorRegistry
	parameters      map[string]any
	relationalNulls bool
	counter         int
}

// newFuncletizer copies parameters. Unless relationalNulls is set, folded
// equality treats null as a value: null = null is true.
func newFuncletizer(registry *operators.OperatorRegistry, parameters map[string]any, relationalNulls bool) *funcletizer {
	values := make(map[string]any, len(parameters))
	for k, v := range parameters {
		values[k] = v
	}
	return &funcletizer{registry: registry, parameters: values, relationalNulls: relationalNulls}
}

// Parameters returns the supplied and the extracted parameter values.
func (f *funcletizer) Parameters() map[string]any {
	return f.parameters
}

// Funcletize rewrites the query. The extracted parameters are numbered in
// the order predicate, orderings, skip and take.
func (f *funcletizer) Funcletize(query *q.Query) (*q.Query, error) {
	predicate, err := f.expression(query.Predicate())
	if err != nil {
		return nil, err
	}
	orderings := make([]q.Ordering, len(query.Orderings()))
	for i, o := range query.Orderings() {
		expr, err := f.expression(o.Expression)
		if err != nil {
			return nil, err
		}
		orderings[i] = q.Ordering{Expression: expr, Descending: o.Descending}
	}
	skip, err := f.expression(query.Skip())
	if err != nil {
		return nil, err
	}
	take, err := f.expression(query.Take())
	if err != nil {
		return nil, err
	}
	return query.With(predicate, orderings, skip, take), nil
}

func (f *funcletizer) expression(n q.Visitable) (q.Visitable, error) {
	if n == nil {
		return nil, nil
	}
	folded, err := q.Rewrite(n, f.fold)
	if err != nil {
		return nil, err
	}
	return f.parameterize(folded)
}

// fold evaluates operators and client calls whose operands are all values
// or parameters. Nodes that fail to evaluate are left to the translators.
func (f *funcletizer) fold(n q.Visitable) (q.Visitable, error) {
	var operands []q.Visitable
	switch t := n.(type) {
	case q.PrefixNode:
		operands = []q.Visitable{t.Operand()}
	case q.InfixNode:
		operands = []q.Visitable{t.Left(), t.Right()}
	case q.PostfixNode:
		operands = []q.Visitable{t.Operand()}
	case q.CallNode:
		if t.Method().IsDbFunction() {
			return n, nil
		}
		if t.Instance() != nil {
			operands = append(operands, t.Instance())
		}
		operands = append(operands, t.Arguments()...)
	default:
		return n, nil
	}
	parameterized := false
	for _, o := range operands {
		switch t := o.(type) {
		case q.ValueNode:
		case q.ParameterNode:
			if _, ok := f.parameters[t.Name()]; !ok {
				return nil, errors.Wrap(q.ErrUnboundParameter, t.Name())
			}
			parameterized = true
		default:
			return n, nil
		}
	}
	value, ok := f.nullEquality(n)
	if !ok {
		var err error
		if value, err = q.Evaluate(n, f.registry, f.parameters); err != nil {
			return n, nil
		}
	}
	if parameterized {
		return f.newParameter(value), nil
	}
	return q.Value(value), nil
}

// nullEquality folds = and != with a null operand to a boolean.
func (f *funcletizer) nullEquality(n q.Visitable) (any, bool) {
	infix, ok := n.(q.InfixNode)
	if f.relationalNulls || !ok {
		return nil, false
	}
	op := infix.Operator()
	if op != operators.OperatorEq && op != operators.OperatorNe {
		return nil, false
	}
	left, right := f.operandValue(infix.Left()), f.operandValue(infix.Right())
	if left != nil && right != nil {
		return nil, false
	}
	equal := left == nil && right == nil
	if op == operators.OperatorNe {
		return !equal, true
	}
	return equal, true
}

func (f *funcletizer) operandValue(n q.Visitable) any {
	switch t := n.(type) {
	case q.ValueNode:
		return t.Value()
	case q.ParameterNode:
		return f.parameters[t.Name()]
	}
	return nil
}

// parameterize turns the non-null values into parameters. The literal
// arguments of store functions, such as JSON paths, are kept.
func (f *funcletizer) parameterize(n q.Visitable) (q.Visitable, error) {
	switch t := n.(type) {
	case q.ValueNode:
		if t.Value() == nil {
			return t, nil
		}
		return f.newParameter(t.Value()), nil
	case q.ParameterNode:
		value, ok := f.parameters[t.Name()]
		if !ok {
			return nil, errors.Wrap(q.ErrUnboundParameter, t.Name())
		}
		if t.TypeName() == "" {
			return t.WithTypeName(q.TypeNameOf(value)), nil
		}
		return t, nil
	case q.CollectionNode:
		predicate, err := f.parameterize(t.Predicate())
		if err != nil {
			return nil, err
		}
		return q.Wildcard(t.Parent(), t.Name(), predicate), nil
	case q.PrefixNode:
		operand, err := f.parameterize(t.Operand())
		if err != nil {
			return nil, err
		}
		return q.NewPrefixNode(t.Operator(), operand, t.Associativity()), nil
	case q.InfixNode:
		left, err := f.parameterize(t.Left())
		if err != nil {
			return nil, err
		}
		right, err := f.parameterize(t.Right())
		if err != nil {
			return nil, err
		}
		return q.NewInfixNode(left, t.Operator(), right, t.Associativity()), nil
	case q.PostfixNode:
		operand, err := f.parameterize(t.Operand())
		if err != nil {
			return nil, err
		}
		return q.NewPostfixNode(operand, t.Operator(), t.Associativity()), nil
	case q.CallNode:
		var instance q.Visitable
		if t.Instance() != nil {
			var err error
			if instance, err = f.parameterize(t.Instance()); err != nil {
				return nil, err
			}
		}
		args := make([]q.Visitable, len(t.Arguments()))
		for i, a := range t.Arguments() {
			if _, literal := a.(q.ValueNode); literal && t.Method().IsDbFunction() {
				args[i] = a
				continue
			}
			r, err := f.parameterize(a)
			if err != nil {
				return nil, err
			}
			args[i] = r
		}
		return q.Call(t.Method(), instance, args...), nil
	case q.FunctionNode:
		args := make([]q.Visitable, len(t.Arguments()))
		for i, a := range t.Arguments() {
			r, err := f.parameterize(a)
			if err != nil {
				return nil, err
			}
			args[i] = r
		}
		return t.WithArguments(args), nil
	}
	return n, nil
}

func (f *funcletizer) newParameter(value any) q.ParameterNode {
	name := parameterPrefix + strconv.Itoa(f.counter)
	for _, taken := f.parameters[name]; taken; _, taken = f.parameters[name] {
		f.counter++
		name = parameterPrefix + strconv.Itoa(f.counter)
	}
	f.counter++
	f.parameters[name] = value
	return q.Parameter(name).WithTypeName(q.TypeNameOf(value))
}
