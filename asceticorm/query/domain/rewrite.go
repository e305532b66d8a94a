package query

import (
	"fmt"
)

// RewriteFunc replaces a node whose children have already been rewritten.
type RewriteFunc func(Visitable) (Visitable, error)

// Rewrite rewrites the tree bottom-up. Nodes that fn returns unchanged are
// kept as they are.
func Rewrite(n Visitable, fn RewriteFunc) (Visitable, error) {
	if n == nil {
		return nil, nil
	}
	var err error
	switch t := n.(type) {
	case GlobalScopeNode, ItemNode, ValueNode, ParameterNode, ColumnNode, LiftableConstantNode:
	case ObjectNode:
		var parent Scope
		if parent, err = rewriteScope(t.parent, fn); err != nil {
			return nil, err
		}
		t.parent = parent
		n = t
	case CollectionNode:
		var parent Scope
		if parent, err = rewriteScope(t.parent, fn); err != nil {
			return nil, err
		}
		t.parent = parent
		if t.predicate, err = Rewrite(t.predicate, fn); err != nil {
			return nil, err
		}
		n = t
	case FieldNode:
		var object Scope
		if object, err = rewriteScope(t.object, fn); err != nil {
			return nil, err
		}
		t.object = object
		n = t
	case PrefixNode:
		if t.operand, err = Rewrite(t.operand, fn); err != nil {
			return nil, err
		}
		n = t
	case InfixNode:
		if t.left, err = Rewrite(t.left, fn); err != nil {
			return nil, err
		}
		if t.right, err = Rewrite(t.right, fn); err != nil {
			return nil, err
		}
		n = t
	case PostfixNode:
		if t.operand, err = Rewrite(t.operand, fn); err != nil {
			return nil, err
		}
		n = t
	case CallNode:
		if t.instance, err = Rewrite(t.instance, fn); err != nil {
			return nil, err
		}
		if t.args, err = rewriteAll(t.args, fn); err != nil {
			return nil, err
		}
		n = t
	case FunctionNode:
		if t.args, err = rewriteAll(t.args, fn); err != nil {
			return nil, err
		}
		n = t
	case ExistsNode:
		if t.source, err = Rewrite(t.source, fn); err != nil {
			return nil, err
		}
		if t.predicate, err = Rewrite(t.predicate, fn); err != nil {
			return nil, err
		}
		n = t
	default:
		return nil, fmt.Errorf("rewrite: unexpected node %T", n)
	}
	return fn(n)
}

func rewriteScope(s Scope, fn RewriteFunc) (Scope, error) {
	r, err := Rewrite(s, fn)
	if err != nil {
		return nil, err
	}
	scope, ok := r.(Scope)
	if !ok {
		return nil, fmt.Errorf("rewrite: %T can't be used as a scope", r)
	}
	return scope, nil
}

func rewriteAll(nodes []Visitable, fn RewriteFunc) ([]Visitable, error) {
	if nodes == nil {
		return nil, nil
	}
	result := make([]Visitable, len(nodes))
	for i, a := range nodes {
		r, err := Rewrite(a, fn)
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// Inspect walks the tree in pre-order. Children are skipped when fn
// returns false.
func Inspect(n Visitable, fn func(Visitable) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch t := n.(type) {
	case ObjectNode:
		Inspect(t.parent, fn)
	case CollectionNode:
		Inspect(t.parent, fn)
		Inspect(t.predicate, fn)
	case FieldNode:
		Inspect(t.object, fn)
	case PrefixNode:
		Inspect(t.operand, fn)
	case InfixNode:
		Inspect(t.left, fn)
		Inspect(t.right, fn)
	case PostfixNode:
		Inspect(t.operand, fn)
	case CallNode:
		Inspect(t.instance, fn)
		for _, a := range t.args {
			Inspect(a, fn)
		}
	case FunctionNode:
		for _, a := range t.args {
			Inspect(a, fn)
		}
	case ExistsNode:
		Inspect(t.source, fn)
		Inspect(t.predicate, fn)
	}
}
