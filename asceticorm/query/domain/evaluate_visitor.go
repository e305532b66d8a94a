package query

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain/jsonpath"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain/operators"
)

var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrNotEvaluable     = errors.New("node can't be evaluated on the client")
	ErrUnboundParameter = errors.New("parameter has no value")
)

// ClientEvaluationError is returned when a store-only function marker is
// evaluated in memory.
type ClientEvaluationError struct {
	Method Method
}

func (e *ClientEvaluationError) Error() string {
	return fmt.Sprintf("The '%s' method is not supported because the query has switched to client-evaluation.", e.Method.Name)
}

type Context interface {
	Get(string) (any, error)
}

// MapContext is a Context over a map. Nested maps and slices of maps are
// exposed as contexts too.
type MapContext map[string]any

func (c MapContext) Get(key string) (any, error) {
	v, ok := c[key]
	if !ok {
		return nil, errors.Wrap(ErrKeyNotFound, key)
	}
	switch x := v.(type) {
	case map[string]any:
		return MapContext(x), nil
	case []map[string]any:
		items := make([]Context, len(x))
		for i := range x {
			items[i] = MapContext(x[i])
		}
		return items, nil
	}
	return v, nil
}

func NewEvaluateVisitor(context Context, registry *operators.OperatorRegistry) *EvaluateVisitor {
	return &EvaluateVisitor{
		Context:  context,
		registry: registry,
	}
}

// EvaluateVisitor evaluates an expression in memory.
type EvaluateVisitor struct {
	currentValue any
	currentItem  Context
	stack        []Context
	registry     *operators.OperatorRegistry
	parameters   map[string]any
	Context
}

// WithParameters sets the values of parameter nodes.
func (v *EvaluateVisitor) WithParameters(parameters map[string]any) *EvaluateVisitor {
	v.parameters = parameters
	return v
}

func (v *EvaluateVisitor) push(ctx Context) {
	v.stack = append(v.stack, v.Context)
	v.Context = ctx
}

func (v *EvaluateVisitor) pop() {
	v.Context = v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
}

func (v EvaluateVisitor) CurrentValue() any {
	return v.currentValue
}

func (v *EvaluateVisitor) SetCurrentValue(val any) {
	v.currentValue = val
}

func (v *EvaluateVisitor) VisitGlobalScope(n GlobalScopeNode) error {
	v.push(v.Context)
	return nil
}

func (v *EvaluateVisitor) VisitObject(n ObjectNode) error {
	err := n.Parent().Accept(v)
	if err != nil {
		return err
	}
	obj, err := v.Context.Get(n.Name())
	v.pop()
	if err != nil {
		return err
	}
	ctx, ok := obj.(Context)
	if !ok {
		return errors.Errorf("%s is not an object", n.Name())
	}
	v.push(ctx)
	return nil
}

func (v *EvaluateVisitor) VisitCollection(n CollectionNode) error {
	err := n.Parent().Accept(v)
	if err != nil {
		return err
	}
	items, err := v.Context.Get(n.Name())
	v.pop()
	if err != nil {
		return err
	}
	itemsTyped, ok := items.([]Context)
	if !ok {
		return errors.Errorf("%s is not a collection of contexts", n.Name())
	}
	outer := v.currentItem
	defer func() { v.currentItem = outer }()
	result := false
	for i := range itemsTyped {
		v.currentItem = itemsTyped[i]
		err := n.Predicate().Accept(v)
		if err != nil {
			return err
		}
		if matched, _ := v.CurrentValue().(bool); matched {
			result = true
			break
		}
	}
	v.SetCurrentValue(result)
	return nil
}

func (v *EvaluateVisitor) VisitItem(n ItemNode) error {
	v.push(v.currentItem)
	return nil
}

func (v *EvaluateVisitor) VisitField(n FieldNode) error {
	err := n.Object().Accept(v)
	if err != nil {
		return err
	}
	value, err := v.Context.Get(n.Name())
	v.pop()
	if err != nil {
		return err
	}
	v.SetCurrentValue(value)
	return nil
}

func (v *EvaluateVisitor) VisitValue(n ValueNode) error {
	v.SetCurrentValue(n.Value())
	return nil
}

func (v *EvaluateVisitor) VisitParameter(n ParameterNode) error {
	value, ok := v.parameters[n.Name()]
	if !ok {
		return errors.Wrap(ErrUnboundParameter, n.Name())
	}
	v.SetCurrentValue(value)
	return nil
}

func (v *EvaluateVisitor) VisitLiftableConstant(n LiftableConstantNode) error {
	v.SetCurrentValue(n.Original())
	return nil
}

func (v *EvaluateVisitor) VisitPrefix(n PrefixNode) error {
	err := n.Operand().Accept(v)
	if err != nil {
		return err
	}
	result, err := v.registry.ExecUnary(n.Operator(), v.CurrentValue())
	if err != nil {
		return err
	}
	v.SetCurrentValue(result)
	return nil
}

func (v *EvaluateVisitor) VisitPostfix(n PostfixNode) error {
	err := n.Operand().Accept(v)
	if err != nil {
		return err
	}
	result, err := v.registry.ExecUnary(n.Operator(), v.CurrentValue())
	if err != nil {
		return err
	}
	v.SetCurrentValue(result)
	return nil
}

func (v *EvaluateVisitor) VisitInfix(n InfixNode) error {
	err := n.Left().Accept(v)
	if err != nil {
		return err
	}
	left := v.CurrentValue()
	err = n.Right().Accept(v)
	if err != nil {
		return err
	}
	right := v.CurrentValue()
	result, err := v.registry.ExecBinary(left, n.Operator(), right)
	if err != nil {
		return err
	}
	v.SetCurrentValue(result)
	return nil
}

func (v *EvaluateVisitor) evaluateAll(nodes []Visitable) ([]any, error) {
	values := make([]any, len(nodes))
	for i, a := range nodes {
		if err := a.Accept(v); err != nil {
			return nil, err
		}
		values[i] = v.CurrentValue()
	}
	return values, nil
}

// VisitCall evaluates the calls which have a client counterpart.
func (v *EvaluateVisitor) VisitCall(n CallNode) error {
	if n.Method().IsDbFunction() {
		return &ClientEvaluationError{Method: n.Method()}
	}
	nodes := n.Arguments()
	if n.Instance() != nil {
		nodes = append([]Visitable{n.Instance()}, nodes...)
	}
	args, err := v.evaluateAll(nodes)
	if err != nil {
		return err
	}
	result, err := callClient(n.Method(), args)
	if err != nil {
		return err
	}
	v.SetCurrentValue(result)
	return nil
}

func (v *EvaluateVisitor) VisitFunction(n FunctionNode) error {
	args, err := v.evaluateAll(n.Arguments())
	if err != nil {
		return err
	}
	for i, a := range args {
		if a == nil && i < len(n.ArgumentsPropagateNullability()) && n.ArgumentsPropagateNullability()[i] {
			v.SetCurrentValue(nil)
			return nil
		}
	}
	result, err := callFunction(n.Name(), args)
	if err != nil {
		return err
	}
	v.SetCurrentValue(result)
	return nil
}

func (v *EvaluateVisitor) VisitColumn(n ColumnNode) error {
	return errors.Wrapf(ErrNotEvaluable, "column %s", Print(n))
}

func (v *EvaluateVisitor) VisitExists(n ExistsNode) error {
	return errors.Wrapf(ErrNotEvaluable, "sub-query %s", Print(n))
}

func (v EvaluateVisitor) Result() (bool, error) {
	result := v.CurrentValue()
	resultTyped, ok := result.(bool)
	if !ok {
		return false, errors.New("the result is not a bool")
	}
	return resultTyped, nil
}

// Evaluate evaluates a closed expression, one with no fields.
func Evaluate(n Visitable, registry *operators.OperatorRegistry, parameters map[string]any) (any, error) {
	v := NewEvaluateVisitor(MapContext{}, registry).WithParameters(parameters)
	if err := n.Accept(v); err != nil {
		return nil, err
	}
	return v.CurrentValue(), nil
}

func callClient(m Method, args []any) (any, error) {
	switch m.String() {
	case "strings.ToUpper":
		return applyString(args, strings.ToUpper)
	case "strings.ToLower":
		return applyString(args, strings.ToLower)
	case "strings.TrimSpace":
		return applyString(args, strings.TrimSpace)
	case "strings.Contains":
		return applyStrings(args, strings.Contains)
	case "strings.HasPrefix":
		return applyStrings(args, strings.HasPrefix)
	case "strings.HasSuffix":
		return applyStrings(args, strings.HasSuffix)
	case "len":
		if len(args) != 1 {
			return nil, errors.New("len expects one argument")
		}
		return length(args[0])
	}
	return nil, errors.Errorf("the method '%s' has no client implementation", m)
}

func callFunction(name string, args []any) (any, error) {
	switch strings.ToUpper(name) {
	case "JSON_VALUE", "JSON_QUERY", "JSON_EXTRACT":
		return jsonExtract(strings.ToUpper(name), args)
	case "UPPER":
		return applyString(args, strings.ToUpper)
	case "LOWER":
		return applyString(args, strings.ToLower)
	case "LEN", "LENGTH":
		if len(args) != 1 {
			return nil, errors.Errorf("%s expects one argument", name)
		}
		return length(args[0])
	}
	return nil, errors.Errorf("the function '%s' has no client implementation", name)
}

// jsonExtract evaluates JSON_VALUE, JSON_QUERY and json_extract. JSON_VALUE
// yields only scalars and JSON_QUERY only objects and arrays.
func jsonExtract(name string, args []any) (any, error) {
	if len(args) < 2 {
		return nil, errors.Errorf("%s expects a document and a path", name)
	}
	doc, ok := jsonText(args[0])
	if !ok {
		return nil, nil
	}
	results := make([]any, 0, len(args)-1)
	for _, a := range args[1:] {
		text, ok := a.(string)
		if !ok {
			return nil, errors.Errorf("%s path must be a string, got %T", name, a)
		}
		path, err := jsonpath.Parse(text)
		if err != nil {
			return nil, err
		}
		r := gjson.Get(doc, path.GJSON())
		switch {
		case !r.Exists():
			results = append(results, nil)
		case name == "JSON_VALUE":
			if r.IsObject() || r.IsArray() {
				results = append(results, nil)
			} else {
				results = append(results, scalarString(r))
			}
		case name == "JSON_QUERY":
			if r.IsObject() || r.IsArray() {
				results = append(results, r.Raw)
			} else {
				results = append(results, nil)
			}
		default:
			results = append(results, sqliteValue(r))
		}
	}
	if len(results) == 1 {
		return results[0], nil
	}
	// json_extract with several paths returns a JSON array.
	raw := make([]string, len(results))
	for i, r := range results {
		raw[i] = toJSON(r)
	}
	return "[" + strings.Join(raw, ",") + "]", nil
}

func jsonText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, gjson.Valid(x)
	case []byte:
		return string(x), gjson.ValidBytes(x)
	}
	return "", false
}

func scalarString(r gjson.Result) any {
	if r.Type == gjson.Null {
		return nil
	}
	return r.String()
}

// sqliteValue returns SQL values for scalars and JSON text for objects and
// arrays, as json_extract does.
func sqliteValue(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return int64(1)
	case gjson.False:
		return int64(0)
	case gjson.Number:
		if f := r.Float(); f == float64(int64(f)) {
			return int64(f)
		}
		return r.Float()
	case gjson.String:
		return r.String()
	}
	return r.Raw
}

func toJSON(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		if gjson.Valid(x) && (strings.HasPrefix(x, "{") || strings.HasPrefix(x, "[")) {
			return x
		}
		return fmt.Sprintf("%q", x)
	}
	return fmt.Sprintf("%v", v)
}

func applyString(args []any, fn func(string) string) (any, error) {
	if len(args) != 1 {
		return nil, errors.New("one string argument expected")
	}
	if args[0] == nil {
		return nil, nil
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, errors.Errorf("string expected, got %T", args[0])
	}
	return fn(s), nil
}

func applyStrings(args []any, fn func(string, string) bool) (any, error) {
	if len(args) != 2 {
		return nil, errors.New("two string arguments expected")
	}
	if args[0] == nil || args[1] == nil {
		return nil, nil
	}
	s, ok1 := args[0].(string)
	sub, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return nil, errors.Errorf("strings expected, got %T and %T", args[0], args[1])
	}
	return fn(s, sub), nil
}

func length(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return utf8.RuneCountInString(x), nil
	case []byte:
		return len(x), nil
	case []any:
		return len(x), nil
	case []string:
		return len(x), nil
	case []Context:
		return len(x), nil
	}
	return nil, errors.Errorf("length of %T is undefined", v)
}
