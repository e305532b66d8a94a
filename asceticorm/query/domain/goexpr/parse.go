// Package goexpr converts Go-syntax predicates into query expressions.
//
//	goexpr.Parse(`o.Total > min && Any(o.Lines, func(l Line) bool { return l.Qty > 1 })`, map[string]any{"min": 100})
//
// The identifier heading member selections is the queried entity. Bound
// identifiers become parameters of the same name. Selections off a bound
// value are evaluated immediately. Calls of unknown functions become
// provider function markers.
package goexpr

import (
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"

	"github.com/pkg/errors"

	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain/operators"
)

var (
	ErrSyntax      = errors.New("syntax error")
	ErrUnsupported = errors.New("unsupported expression")
	ErrUndefined   = errors.New("undefined identifier")
)

var binaryOperators = map[token.Token]operators.Operator{
	token.EQL:  operators.OperatorEq,
	token.NEQ:  operators.OperatorNe,
	token.GTR:  operators.OperatorGt,
	token.GEQ:  operators.OperatorGte,
	token.LSS:  operators.OperatorLt,
	token.LEQ:  operators.OperatorLte,
	token.LAND: operators.OperatorAnd,
	token.LOR:  operators.OperatorOr,
	token.ADD:  operators.OperatorAdd,
	token.SUB:  operators.OperatorSub,
	token.MUL:  operators.OperatorMul,
	token.QUO:  operators.OperatorDiv,
	token.REM:  operators.OperatorMod,
	token.SHL:  operators.OperatorLshift,
	token.SHR:  operators.OperatorRshift,
}

var packageFunctions = map[string]map[string]bool{
	"strings": {
		"ToUpper":   true,
		"ToLower":   true,
		"TrimSpace": true,
		"Contains":  true,
		"HasPrefix": true,
		"HasSuffix": true,
	},
}

// Parse parses expr. bindings holds values of the captured identifiers.
func Parse(expr string, bindings map[string]any) (q.Visitable, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return nil, errors.Wrap(ErrSyntax, err.Error())
	}
	c := &converter{bindings: bindings, scopes: map[string]q.Scope{}}
	return c.convert(node)
}

// MustParse is like Parse but panics on error.
func MustParse(expr string, bindings map[string]any) q.Visitable {
	n, err := Parse(expr, bindings)
	if err != nil {
		panic(err)
	}
	return n
}

type converter struct {
	bindings map[string]any
	scopes   map[string]q.Scope
	root     string
}

func (c *converter) convert(e ast.Expr) (q.Visitable, error) {
	switch n := e.(type) {
	case *ast.ParenExpr:
		return c.convert(n.X)
	case *ast.BasicLit:
		return convertLiteral(n)
	case *ast.Ident:
		return c.convertIdent(n)
	case *ast.SelectorExpr:
		return c.convertSelector(n)
	case *ast.UnaryExpr:
		return c.convertUnary(n)
	case *ast.BinaryExpr:
		return c.convertBinary(n)
	case *ast.CallExpr:
		return c.convertCall(n)
	}
	return nil, errors.Wrapf(ErrUnsupported, "%T", e)
}

func convertLiteral(n *ast.BasicLit) (q.Visitable, error) {
	switch n.Kind {
	case token.INT:
		v, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, errors.Wrap(ErrSyntax, err.Error())
		}
		return q.Value(int(v)), nil
	case token.FLOAT:
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, errors.Wrap(ErrSyntax, err.Error())
		}
		return q.Value(v), nil
	case token.STRING:
		v, err := strconv.Unquote(n.Value)
		if err != nil {
			return nil, errors.Wrap(ErrSyntax, err.Error())
		}
		return q.Value(v), nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "literal %s", n.Value)
}

func (c *converter) convertIdent(n *ast.Ident) (q.Visitable, error) {
	switch n.Name {
	case "true":
		return q.Value(true), nil
	case "false":
		return q.Value(false), nil
	case "nil":
		return q.Value(nil), nil
	}
	if _, ok := c.bindings[n.Name]; ok {
		return q.Parameter(n.Name).WithTypeName(q.TypeNameOf(c.bindings[n.Name])), nil
	}
	if _, ok := c.scopes[n.Name]; ok {
		return nil, errors.Wrapf(ErrUnsupported, "%s can only be used through its members", n.Name)
	}
	return nil, errors.Wrap(ErrUndefined, n.Name)
}

// scopeOf resolves the head identifier of a selection to a scope.
func (c *converter) scopeOf(name string) (q.Scope, bool) {
	if s, ok := c.scopes[name]; ok {
		return s, true
	}
	if _, ok := c.bindings[name]; ok {
		return nil, false
	}
	if _, ok := packageFunctions[name]; ok {
		return nil, false
	}
	if c.root == "" {
		c.root = name
		c.scopes[name] = q.GlobalScope()
		return c.scopes[name], true
	}
	return nil, false
}

// path splits a selection into its head identifier and member names.
func path(e ast.Expr) (string, []string, bool) {
	switch n := e.(type) {
	case *ast.Ident:
		return n.Name, nil, true
	case *ast.SelectorExpr:
		head, members, ok := path(n.X)
		if !ok {
			return "", nil, false
		}
		return head, append(members, n.Sel.Name), true
	case *ast.ParenExpr:
		return path(n.X)
	}
	return "", nil, false
}

func (c *converter) convertSelector(n *ast.SelectorExpr) (q.Visitable, error) {
	head, members, ok := path(n)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupported, "selection of %T", n.X)
	}
	if value, bound := c.bindings[head]; bound {
		v, err := selectValue(value, members)
		if err != nil {
			return nil, err
		}
		return q.Value(v), nil
	}
	scope, ok := c.scopeOf(head)
	if !ok {
		return nil, errors.Wrap(ErrUndefined, head)
	}
	for _, m := range members[:len(members)-1] {
		scope = q.Object(scope, m)
	}
	return q.Field(scope, members[len(members)-1]), nil
}

// selectValue reads exported fields of a captured struct.
func selectValue(value any, members []string) (any, error) {
	v := reflect.ValueOf(value)
	for _, m := range members {
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return nil, nil
			}
			v = v.Elem()
		}
		if v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String {
			v = v.MapIndex(reflect.ValueOf(m))
			if !v.IsValid() {
				return nil, errors.Wrapf(ErrUndefined, "key %s", m)
			}
			continue
		}
		if v.Kind() != reflect.Struct {
			return nil, errors.Wrapf(ErrUnsupported, "selection of %s on %s", m, v.Type())
		}
		f := v.FieldByName(m)
		if !f.IsValid() || !f.CanInterface() {
			return nil, errors.Wrapf(ErrUndefined, "field %s of %s", m, v.Type())
		}
		v = f
	}
	return v.Interface(), nil
}

func (c *converter) convertUnary(n *ast.UnaryExpr) (q.Visitable, error) {
	operand, err := c.convert(n.X)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case token.NOT:
		return q.Not(operand), nil
	case token.SUB:
		if v, ok := operand.(q.ValueNode); ok {
			switch x := v.Value().(type) {
			case int:
				return q.Value(-x), nil
			case float64:
				return q.Value(-x), nil
			}
		}
		return q.Neg(operand), nil
	case token.ADD:
		return operand, nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "operator %s", n.Op)
}

func (c *converter) convertBinary(n *ast.BinaryExpr) (q.Visitable, error) {
	left, err := c.convert(n.X)
	if err != nil {
		return nil, err
	}
	right, err := c.convert(n.Y)
	if err != nil {
		return nil, err
	}
	if n.Op == token.EQL || n.Op == token.NEQ {
		if isNilLiteral(n.Y) {
			return nullCheck(n.Op, left), nil
		}
		if isNilLiteral(n.X) {
			return nullCheck(n.Op, right), nil
		}
	}
	op, ok := binaryOperators[n.Op]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupported, "operator %s", n.Op)
	}
	if op == operators.OperatorAdd && (isString(left) || isString(right)) {
		op = operators.OperatorConcat
	}
	associativity := q.LeftAssociative
	if op.IsComparison() {
		associativity = q.NonAssociative
	}
	return q.NewInfixNode(left, op, right, associativity), nil
}

func isNilLiteral(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && id.Name == "nil"
}

func nullCheck(op token.Token, operand q.Visitable) q.Visitable {
	if op == token.EQL {
		return q.IsNull(operand)
	}
	return q.IsNotNull(operand)
}

func isString(n q.Visitable) bool {
	return q.TypeNameOfNode(n) == "string"
}

func (c *converter) convertCall(n *ast.CallExpr) (q.Visitable, error) {
	var method q.Method
	switch fn := n.Fun.(type) {
	case *ast.Ident:
		switch fn.Name {
		case "Any", "All":
			return c.convertAnyAll(fn.Name, n.Args)
		case "len":
			method = q.Method{Name: "len"}
		default:
			method = q.DbFunction(fn.Name)
		}
	case *ast.SelectorExpr:
		pkg, ok := fn.X.(*ast.Ident)
		if !ok {
			return nil, errors.Wrapf(ErrUnsupported, "call of %T", fn.X)
		}
		switch {
		case pkg.Name == q.DbFunctionsType:
			method = q.DbFunction(fn.Sel.Name)
		case packageFunctions[pkg.Name][fn.Sel.Name]:
			method = q.Method{DeclaringType: pkg.Name, Name: fn.Sel.Name}
		default:
			return nil, errors.Wrapf(ErrUnsupported, "call of %s.%s", pkg.Name, fn.Sel.Name)
		}
	default:
		return nil, errors.Wrapf(ErrUnsupported, "call of %T", n.Fun)
	}
	args := make([]q.Visitable, len(n.Args))
	for i, a := range n.Args {
		arg, err := c.convert(a)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	return q.Call(method, nil, args...), nil
}

// convertAnyAll converts Any(collection, func(x T) bool { return ... }).
// All is expressed as NOT Any(NOT predicate).
func (c *converter) convertAnyAll(name string, args []ast.Expr) (q.Visitable, error) {
	if len(args) != 2 {
		return nil, errors.Wrapf(ErrSyntax, "%s expects a collection and a predicate", name)
	}
	head, members, ok := path(args[0])
	if !ok || len(members) == 0 {
		return nil, errors.Wrapf(ErrUnsupported, "%s over %T", name, args[0])
	}
	scope, ok := c.scopeOf(head)
	if !ok {
		return nil, errors.Wrap(ErrUndefined, head)
	}
	for _, m := range members[:len(members)-1] {
		scope = q.Object(scope, m)
	}

	lambda, ok := args[1].(*ast.FuncLit)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupported, "%s predicate must be a function literal", name)
	}
	params := lambda.Type.Params.List
	if len(params) != 1 || len(params[0].Names) != 1 {
		return nil, errors.Wrapf(ErrSyntax, "%s predicate must take one parameter", name)
	}
	if len(lambda.Body.List) != 1 {
		return nil, errors.Wrapf(ErrUnsupported, "%s predicate must be a single return statement", name)
	}
	ret, ok := lambda.Body.List[0].(*ast.ReturnStmt)
	if !ok || len(ret.Results) != 1 {
		return nil, errors.Wrapf(ErrUnsupported, "%s predicate must be a single return statement", name)
	}

	item := params[0].Names[0].Name
	shadowed, wasSet := c.scopes[item]
	c.scopes[item] = q.Item()
	predicate, err := c.convert(ret.Results[0])
	if wasSet {
		c.scopes[item] = shadowed
	} else {
		delete(c.scopes, item)
	}
	if err != nil {
		return nil, err
	}

	collection := members[len(members)-1]
	if name == "All" {
		return q.Not(q.Wildcard(scope, collection, q.Not(predicate))), nil
	}
	return q.Wildcard(scope, collection, predicate), nil
}
