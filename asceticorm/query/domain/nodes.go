package query

import (
	"strings"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain/operators"
)

type Associativity string

const (
	LeftAssociative  Associativity = "LEFT"
	RightAssociative Associativity = "RIGHT"
	NonAssociative   Associativity = "NON"
)

type Operable interface {
	Associativity() Associativity
	Operator() operators.Operator
}

// Visitable is implemented only by the nodes of this package.
type Visitable interface {
	Accept(Visitor) error
	node()
}

type Visitor interface {
	VisitGlobalScope(GlobalScopeNode) error
	VisitObject(ObjectNode) error
	VisitCollection(CollectionNode) error
	VisitItem(ItemNode) error
	VisitField(FieldNode) error
	VisitValue(ValueNode) error
	VisitParameter(ParameterNode) error
	VisitPrefix(PrefixNode) error
	VisitInfix(InfixNode) error
	VisitPostfix(PostfixNode) error
	VisitCall(CallNode) error
	VisitFunction(FunctionNode) error
	VisitColumn(ColumnNode) error
	VisitExists(ExistsNode) error
	VisitLiftableConstant(LiftableConstantNode) error
}

// Typed is implemented by nodes which carry a store type mapping.
type Typed interface {
	Visitable
	TypeMapping() *metadata.TypeMapping
}

func Value(value any) ValueNode {
	return ValueNode{
		value: value,
	}
}

type ValueNode struct {
	value   any
	mapping *metadata.TypeMapping
}

func (n ValueNode) Value() any {
	return n.value
}

func (n ValueNode) TypeMapping() *metadata.TypeMapping {
	return n.mapping
}

func (n ValueNode) WithTypeMapping(m *metadata.TypeMapping) ValueNode {
	n.mapping = m
	return n
}

func (n ValueNode) Accept(v Visitor) error {
	return v.VisitValue(n)
}

func (ValueNode) node() {}

// Parameter references a value supplied at execution time.
func Parameter(name string) ParameterNode {
	return ParameterNode{
		name: name,
	}
}

type ParameterNode struct {
	name     string
	typeName string
	mapping  *metadata.TypeMapping
}

func (n ParameterNode) Name() string {
	return n.name
}

func (n ParameterNode) TypeName() string {
	return n.typeName
}

func (n ParameterNode) TypeMapping() *metadata.TypeMapping {
	return n.mapping
}

func (n ParameterNode) WithTypeName(typeName string) ParameterNode {
	n.typeName = typeName
	return n
}

func (n ParameterNode) WithTypeMapping(m *metadata.TypeMapping) ParameterNode {
	n.mapping = m
	return n
}

func (n ParameterNode) Accept(v Visitor) error {
	return v.VisitParameter(n)
}

func (ParameterNode) node() {}

func Not(operand Visitable) PrefixNode {
	return PrefixNode{
		operator:      operators.OperatorNot,
		operand:       operand,
		associativity: RightAssociative,
	}
}

func Neg(operand Visitable) PrefixNode {
	return PrefixNode{
		operator:      operators.OperatorNeg,
		operand:       operand,
		associativity: RightAssociative,
	}
}

func NewPrefixNode(operator operators.Operator, operand Visitable, associativity Associativity) PrefixNode {
	return PrefixNode{
		operator:      operator,
		operand:       operand,
		associativity: associativity,
	}
}

type PrefixNode struct {
	operator      operators.Operator
	operand       Visitable
	associativity Associativity
}

func (n PrefixNode) Operand() Visitable {
	return n.operand
}
func (n PrefixNode) Operator() operators.Operator {
	return n.operator
}
func (n PrefixNode) Associativity() Associativity {
	return n.associativity
}
func (n PrefixNode) Accept(v Visitor) error {
	return v.VisitPrefix(n)
}

func (PrefixNode) node() {}

func Equal(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorEq, right, NonAssociative)
}

func NotEqual(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorNe, right, NonAssociative)
}

func GreaterThan(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorGt, right, NonAssociative)
}

func GreaterThanEqual(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorGte, right, NonAssociative)
}

func LessThan(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorLt, right, NonAssociative)
}

func LessThanEqual(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorLte, right, NonAssociative)
}

func Is(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorIs, right, NonAssociative)
}

func Like(left, pattern Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorLike, pattern, NonAssociative)
}

// Escape qualifies a LIKE pattern with its escape character.
func Escape(pattern, escape Visitable) InfixNode {
	return NewInfixNode(pattern, operators.OperatorEscape, escape, NonAssociative)
}

func And(left Visitable, rights ...Visitable) InfixNode {
	left, right := foldRights(And, left, rights...)
	return NewInfixNode(left, operators.OperatorAnd, right, LeftAssociative)
}

func Or(left Visitable, rights ...Visitable) InfixNode {
	left, right := foldRights(Or, left, rights...)
	return NewInfixNode(left, operators.OperatorOr, right, LeftAssociative)
}

func LeftShift(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorLshift, right, LeftAssociative)
}

func RightShift(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorRshift, right, LeftAssociative)
}

func Add(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorAdd, right, LeftAssociative)
}

func Sub(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorSub, right, LeftAssociative)
}

func Mul(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorMul, right, LeftAssociative)
}

func Div(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorDiv, right, LeftAssociative)
}

func Mod(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorMod, right, LeftAssociative)
}

func Concat(left, right Visitable) InfixNode {
	return NewInfixNode(left, operators.OperatorConcat, right, LeftAssociative)
}

func foldRights(
	aCallable func(Visitable, ...Visitable) InfixNode,
	aLeft Visitable,
	aRights ...Visitable,
) (left, right Visitable) {
	for len(aRights) > 1 {
		aLeft = aCallable(aLeft, aRights[0])
		aRights = aRights[1:]
	}
	return aLeft, aRights[0]
}

func NewInfixNode(left Visitable, operator operators.Operator, right Visitable, associativity Associativity) InfixNode {
	return InfixNode{
		left:          left,
		operator:      operator,
		right:         right,
		associativity: associativity,
	}
}

type InfixNode struct {
	left          Visitable
	operator      operators.Operator
	right         Visitable
	associativity Associativity
}

func (n InfixNode) Left() Visitable {
	return n.left
}

func (n InfixNode) Operator() operators.Operator {
	return n.operator
}

func (n InfixNode) Right() Visitable {
	return n.right
}

func (n InfixNode) Associativity() Associativity {
	return n.associativity
}

func (n InfixNode) Accept(v Visitor) error {
	return v.VisitInfix(n)
}

func (InfixNode) node() {}

func IsNull(operand Visitable) PostfixNode {
	return NewPostfixNode(operand, operators.OperatorIsNull, NonAssociative)
}

func IsNotNull(operand Visitable) PostfixNode {
	return NewPostfixNode(operand, operators.OperatorIsNotNull, NonAssociative)
}

func NewPostfixNode(operand Visitable, operator operators.Operator, associativity Associativity) PostfixNode {
	return PostfixNode{
		operand:       operand,
		operator:      operator,
		associativity: associativity,
	}
}

type PostfixNode struct {
	operand       Visitable
	operator      operators.Operator
	associativity Associativity
}

func (n PostfixNode) Operand() Visitable {
	return n.operand
}

func (n PostfixNode) Operator() operators.Operator {
	return n.operator
}

func (n PostfixNode) Associativity() Associativity {
	return n.associativity
}

func (n PostfixNode) Accept(v Visitor) error {
	return v.VisitPostfix(n)
}

func (PostfixNode) node() {}

// Scope is a node that fields and objects can be resolved against.
type Scope interface {
	Visitable
	Parent() Scope
	Name() string
	IsRoot() bool
}

func GlobalScope() GlobalScopeNode {
	return GlobalScopeNode{}
}

type GlobalScopeNode struct{}

func (n GlobalScopeNode) Parent() Scope {
	return n
}

func (n GlobalScopeNode) Name() string {
	return "Empty"
}

func (n GlobalScopeNode) IsRoot() bool {
	return true
}
func (n GlobalScopeNode) Accept(v Visitor) error {
	return v.VisitGlobalScope(n)
}

func (GlobalScopeNode) node() {}

// Object is a reference navigation or an owned path off parent.
func Object(parent Scope, name string) ObjectNode {
	return ObjectNode{
		parent: parent,
		name:   name,
	}
}

type ObjectNode struct {
	parent Scope
	name   string
}

func (n ObjectNode) Parent() Scope {
	return n.parent
}

func (n ObjectNode) Name() string {
	return n.name
}

func (n ObjectNode) IsRoot() bool {
	return false
}

func (n ObjectNode) Accept(v Visitor) error {
	return v.VisitObject(n)
}

func (ObjectNode) node() {}

// Wildcard is true when any item of the collection satisfies predicate.
// The predicate refers to the item through Item().
func Wildcard(parent Scope, name string, predicate Visitable) CollectionNode {
	return CollectionNode{
		parent:    parent,
		name:      name,
		predicate: predicate,
	}
}

type CollectionNode struct {
	parent    Scope
	name      string
	predicate Visitable
}

func (n CollectionNode) Parent() Scope {
	return n.parent
}

func (n CollectionNode) Name() string {
	return n.name
}

func (n CollectionNode) IsRoot() bool {
	return false
}

func (n CollectionNode) Predicate() Visitable {
	return n.predicate
}

func (n CollectionNode) Accept(v Visitor) error {
	return v.VisitCollection(n)
}

func (CollectionNode) node() {}

func Item() ItemNode {
	return ItemNode{}
}

type ItemNode struct{}

func (n ItemNode) Parent() Scope {
	return GlobalScope()
}

func (n ItemNode) Name() string {
	return "@"
}

func (n ItemNode) IsRoot() bool {
	return true
}

func (n ItemNode) Accept(v Visitor) error {
	return v.VisitItem(n)
}

func (ItemNode) node() {}

func Field(object Scope, name string) FieldNode {
	return FieldNode{
		object: object,
		name:   name,
	}
}

type FieldNode struct {
	object Scope
	name   string
}

func (n FieldNode) Name() string {
	return n.name
}

func (n FieldNode) Object() Scope {
	return n.object
}

func (n FieldNode) Accept(v Visitor) error {
	return v.VisitField(n)
}

func (FieldNode) node() {}

// FieldPath returns the member path of n starting from its root scope.
func FieldPath(n FieldNode) []string {
	path := []string{n.Name()}
	obj := n.Object()
	for !obj.IsRoot() {
		path = append([]string{obj.Name()}, path...)
		obj = obj.Parent()
	}
	return path
}

// RootOf returns the root scope a scope chain starts from.
func RootOf(s Scope) Scope {
	for !s.IsRoot() {
		s = s.Parent()
	}
	return s
}

// DbFunctionsType is the declaring type of provider function markers.
const DbFunctionsType = "DbFunctions"

type Method struct {
	DeclaringType string
	Name          string
}

func DbFunction(name string) Method {
	return Method{DeclaringType: DbFunctionsType, Name: name}
}

func (m Method) IsDbFunction() bool {
	return strings.HasSuffix(m.DeclaringType, DbFunctionsType)
}

func (m Method) String() string {
	if m.DeclaringType == "" {
		return m.Name
	}
	return m.DeclaringType + "." + m.Name
}

// Call is a method call which has not been translated to the store yet.
// DbFunctions markers have no instance.
func Call(method Method, instance Visitable, args ...Visitable) CallNode {
	return CallNode{
		method:   method,
		instance: instance,
		args:     args,
	}
}

type CallNode struct {
	method   Method
	instance Visitable
	args     []Visitable
}

func (n CallNode) Method() Method {
	return n.method
}

func (n CallNode) Instance() Visitable {
	return n.instance
}

func (n CallNode) Arguments() []Visitable {
	return n.args
}

func (n CallNode) Accept(v Visitor) error {
	return v.VisitCall(n)
}

func (CallNode) node() {}

// Function is a store function call.
//
// A nullable function yields NULL when any argument flagged in
// argumentsPropagateNullability is NULL. A non-nullable function never
// yields NULL.
func Function(
	name string,
	args []Visitable,
	nullable bool,
	argumentsPropagateNullability []bool,
	typeName string,
	mapping *metadata.TypeMapping,
) FunctionNode {
	return FunctionNode{
		name:          name,
		args:          args,
		nullable:      nullable,
		argsPropagate: argumentsPropagateNullability,
		typeName:      typeName,
		mapping:       mapping,
	}
}

type FunctionNode struct {
	name          string
	args          []Visitable
	nullable      bool
	argsPropagate []bool
	typeName      string
	mapping       *metadata.TypeMapping
}

func (n FunctionNode) Name() string {
	return n.name
}

func (n FunctionNode) Arguments() []Visitable {
	return n.args
}

func (n FunctionNode) IsNullable() bool {
	return n.nullable
}

func (n FunctionNode) ArgumentsPropagateNullability() []bool {
	return n.argsPropagate
}

func (n FunctionNode) TypeName() string {
	return n.typeName
}

func (n FunctionNode) TypeMapping() *metadata.TypeMapping {
	return n.mapping
}

func (n FunctionNode) WithArguments(args []Visitable) FunctionNode {
	n.args = args
	return n
}

func (n FunctionNode) Accept(v Visitor) error {
	return v.VisitFunction(n)
}

func (FunctionNode) node() {}

// Column is a store column of the table aliased as table. Document stores
// address nested properties through a path longer than one.
func Column(table string, path []string, typeName string, mapping *metadata.TypeMapping, nullable bool) ColumnNode {
	return ColumnNode{
		table:    table,
		path:     path,
		typeName: typeName,
		mapping:  mapping,
		nullable: nullable,
	}
}

type ColumnNode struct {
	table    string
	path     []string
	typeName string
	mapping  *metadata.TypeMapping
	nullable bool
	embedded bool
}

func (n ColumnNode) Table() string {
	return n.table
}

func (n ColumnNode) Path() []string {
	return n.path
}

func (n ColumnNode) Name() string {
	return n.path[len(n.path)-1]
}

func (n ColumnNode) TypeName() string {
	return n.typeName
}

func (n ColumnNode) TypeMapping() *metadata.TypeMapping {
	return n.mapping
}

func (n ColumnNode) IsNullable() bool {
	return n.nullable
}

// IsEmbedded reports whether the column is a value inside an embedded
// collection source rather than a table column.
func (n ColumnNode) IsEmbedded() bool {
	return n.embedded
}

func (n ColumnNode) AsEmbedded() ColumnNode {
	n.embedded = true
	return n
}

func (n ColumnNode) Accept(v Visitor) error {
	return v.VisitColumn(n)
}

func (ColumnNode) node() {}

// Exists is a correlated sub-query. It ranges either over a table or,
// when source is set, over an embedded collection stored in source.
func Exists(table, alias string, temporal TemporalOperation, source Visitable, predicate Visitable) ExistsNode {
	return ExistsNode{
		table:     table,
		alias:     alias,
		temporal:  temporal,
		source:    source,
		predicate: predicate,
	}
}

type ExistsNode struct {
	table     string
	alias     string
	temporal  TemporalOperation
	source    Visitable
	predicate Visitable
}

func (n ExistsNode) Table() string {
	return n.table
}

func (n ExistsNode) Alias() string {
	return n.alias
}

func (n ExistsNode) Temporal() TemporalOperation {
	return n.temporal
}

func (n ExistsNode) Source() Visitable {
	return n.source
}

func (n ExistsNode) IsEmbedded() bool {
	return n.source != nil
}

func (n ExistsNode) Predicate() Visitable {
	return n.predicate
}

func (n ExistsNode) Accept(v Visitor) error {
	return v.VisitExists(n)
}

func (ExistsNode) node() {}

// LiftContext is what the resolver of a lifted constant sees when a
// compiled query is executed.
type LiftContext struct {
	Root       QueryRoot
	Parameters map[string]any
	Values     map[string]any
}

type Resolver func(*LiftContext) (any, error)

// LiftableConstant is a value computed per execution. Constants with equal
// keys are the same value.
func LiftableConstant(original any, key, hint string, resolver Resolver) LiftableConstantNode {
	return LiftableConstantNode{
		original: original,
		key:      key,
		hint:     hint,
		resolver: resolver,
	}
}

type LiftableConstantNode struct {
	original any
	key      string
	hint     string
	typeName string
	resolver Resolver
}

func (n LiftableConstantNode) Original() any {
	return n.original
}

func (n LiftableConstantNode) Key() string {
	return n.key
}

func (n LiftableConstantNode) Hint() string {
	return n.hint
}

func (n LiftableConstantNode) TypeName() string {
	if n.typeName == "" {
		return TypeNameOf(n.original)
	}
	return n.typeName
}

func (n LiftableConstantNode) WithTypeName(typeName string) LiftableConstantNode {
	n.typeName = typeName
	return n
}

func (n LiftableConstantNode) Resolver() Resolver {
	return n.resolver
}

func (n LiftableConstantNode) Accept(v Visitor) error {
	return v.VisitLiftableConstant(n)
}

func (LiftableConstantNode) node() {}
