package operators

import (
	"fmt"
	"reflect"
)

type BinaryOp func(left, right any) (any, error)
type UnaryOp func(operand any) (any, error)

type binaryKey struct {
	left  reflect.Type
	op    Operator
	right reflect.Type
}

type unaryKey struct {
	op      Operator
	operand reflect.Type
}

// OperatorRegistry dispatches operators on the dynamic types of their
// operands. It is read-only after construction.
type OperatorRegistry struct {
	binary map[binaryKey]BinaryOp
	unary  map[unaryKey]UnaryOp
}

func NewOperatorRegistry() *OperatorRegistry {
	return &OperatorRegistry{
		binary: make(map[binaryKey]BinaryOp),
		unary:  make(map[unaryKey]UnaryOp),
	}
}

func RegisterBinary[L, R any](reg *OperatorRegistry, op Operator, fn func(L, R) (any, error)) {
	key := binaryKey{
		left:  reflect.TypeOf((*L)(nil)).Elem(),
		op:    op,
		right: reflect.TypeOf((*R)(nil)).Elem(),
	}
	reg.binary[key] = func(left, right any) (any, error) {
		return fn(left.(L), right.(R))
	}
}

func RegisterUnary[T any](reg *OperatorRegistry, op Operator, fn func(T) (any, error)) {
	key := unaryKey{
		op:      op,
		operand: reflect.TypeOf((*T)(nil)).Elem(),
	}
	reg.unary[key] = func(operand any) (any, error) {
		return fn(operand.(T))
	}
}

// ExecBinary executes a binary operator with SQL NULL semantics.
func (r *OperatorRegistry) ExecBinary(left any, op Operator, right any) (any, error) {
	switch op {
	case OperatorAnd:
		return execAnd(left, right)
	case OperatorOr:
		return execOr(left, right)
	case OperatorIs:
		if left == nil || right == nil {
			return left == nil && right == nil, nil
		}
	}

	if left == nil || right == nil {
		return nil, nil
	}

	fn, l, rr, err := r.lookupBinary(left, op, right)
	if err != nil {
		return nil, err
	}
	return fn(l, rr)
}

// ExecUnary executes a unary operator with SQL NULL semantics.
func (r *OperatorRegistry) ExecUnary(op Operator, operand any) (any, error) {
	// IS NULL / IS NOT NULL have a definite result for NULL too.
	if op == OperatorIsNull {
		return operand == nil, nil
	}
	if op == OperatorIsNotNull {
		return operand != nil, nil
	}

	if operand == nil {
		return nil, nil
	}

	fn, err := r.lookupUnary(op, operand)
	if err != nil {
		return nil, err
	}
	return fn(operand)
}

// lookupBinary returns the operator and the operands it must be called with.
// Mixed numeric operands are widened to int64 or float64.
func (r *OperatorRegistry) lookupBinary(left any, op Operator, right any) (BinaryOp, any, any, error) {
	key := binaryKey{
		left:  reflect.TypeOf(left),
		op:    op,
		right: reflect.TypeOf(right),
	}
	if fn, ok := r.binary[key]; ok {
		return fn, left, right, nil
	}

	if l, rr, ok := widen(left, right); ok {
		key = binaryKey{left: reflect.TypeOf(l), op: op, right: reflect.TypeOf(rr)}
		if fn, ok := r.binary[key]; ok {
			return fn, l, rr, nil
		}
	}

	if fallback := interfaceFallback(left, op); fallback != nil {
		return fallback, left, right, nil
	}

	return nil, nil, nil, fmt.Errorf("operator \"%s\" is not supported for %T and %T", op, left, right)
}

func widen(left, right any) (any, any, bool) {
	lk, lok := numericKind(left)
	rk, rok := numericKind(right)
	if !lok || !rok {
		return nil, nil, false
	}
	if lk == reflect.Float64 || rk == reflect.Float64 {
		return toFloat(left), toFloat(right), true
	}
	return toInt(left), toInt(right), true
}

func numericKind(v any) (reflect.Kind, bool) {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return reflect.Int64, true
	case reflect.Float32, reflect.Float64:
		return reflect.Float64, true
	}
	return reflect.Invalid, false
}

func toInt(v any) int64 {
	rv := reflect.ValueOf(v)
	if rv.CanInt() {
		return rv.Int()
	}
	return int64(rv.Uint())
}

func toFloat(v any) float64 {
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanFloat():
		return rv.Float()
	case rv.CanInt():
		return float64(rv.Int())
	default:
		return float64(rv.Uint())
	}
}

func interfaceFallback(left any, op Operator) BinaryOp {
	switch op {
	case OperatorEq, OperatorNe:
		if _, ok := left.(EqualOperand); !ok {
			return nil
		}
		return func(left, right any) (any, error) {
			r, ok := right.(EqualOperand)
			if !ok {
				return nil, fmt.Errorf("right operand %T does not implement EqualOperand", right)
			}
			eq := left.(EqualOperand).Equal(r)
			if op == OperatorNe {
				return !eq, nil
			}
			return eq, nil
		}
	case OperatorGt:
		if _, ok := left.(GreaterThanOperand); !ok {
			return nil
		}
		return func(left, right any) (any, error) {
			r, ok := right.(GreaterThanOperand)
			if !ok {
				return nil, fmt.Errorf("right operand %T does not implement GreaterThanOperand", right)
			}
			return left.(GreaterThanOperand).GreaterThan(r), nil
		}
	case OperatorGte:
		if _, ok := left.(GreaterThanEqualOperand); !ok {
			return nil
		}
		return func(left, right any) (any, error) {
			r, ok := right.(GreaterThanEqualOperand)
			if !ok {
				return nil, fmt.Errorf("right operand %T does not implement GreaterThanEqualOperand", right)
			}
			return left.(GreaterThanEqualOperand).GreaterThanEqual(r), nil
		}
	case OperatorLt:
		if _, ok := left.(LessThanOperand); !ok {
			return nil
		}
		return func(left, right any) (any, error) {
			r, ok := right.(LessThanOperand)
			if !ok {
				return nil, fmt.Errorf("right operand %T does not implement LessThanOperand", right)
			}
			return left.(LessThanOperand).LessThan(r), nil
		}
	case OperatorLte:
		if _, ok := left.(LessThanEqualOperand); !ok {
			return nil
		}
		return func(left, right any) (any, error) {
			r, ok := right.(LessThanEqualOperand)
			if !ok {
				return nil, fmt.Errorf("right operand %T does not implement LessThanEqualOperand", right)
			}
			return left.(LessThanEqualOperand).LessThanEqual(r), nil
		}
	}
	return nil
}

func (r *OperatorRegistry) lookupUnary(op Operator, operand any) (UnaryOp, error) {
	key := unaryKey{
		op:      op,
		operand: reflect.TypeOf(operand),
	}
	fn, ok := r.unary[key]
	if !ok {
		return nil, fmt.Errorf("operator \"%s\" is not supported for %T", op, operand)
	}
	return fn, nil
}

// Three-valued logic: NULL AND FALSE = FALSE, NULL AND TRUE = NULL
func execAnd(left, right any) (any, error) {
	if left == nil {
		if val, ok := right.(bool); ok && !val {
			return false, nil
		}
		return nil, nil
	}
	if right == nil {
		if val, ok := left.(bool); ok && !val {
			return false, nil
		}
		return nil, nil
	}
	l, ok := left.(bool)
	if !ok {
		return nil, fmt.Errorf("operator \"AND\" requires bool, got %T", left)
	}
	r, ok := right.(bool)
	if !ok {
		return nil, fmt.Errorf("operator \"AND\" requires bool, got %T", right)
	}
	return l && r, nil
}

// Three-valued logic: NULL OR TRUE = TRUE, NULL OR FALSE = NULL
func execOr(left, right any) (any, error) {
	if left == nil {
		if val, ok := right.(bool); ok && val {
			return true, nil
		}
		return nil, nil
	}
	if right == nil {
		if val, ok := left.(bool); ok && val {
			return true, nil
		}
		return nil, nil
	}
	l, ok := left.(bool)
	if !ok {
		return nil, fmt.Errorf("operator \"OR\" requires bool, got %T", left)
	}
	r, ok := right.(bool)
	if !ok {
		return nil, fmt.Errorf("operator \"OR\" requires bool, got %T", right)
	}
	return l || r, nil
}
