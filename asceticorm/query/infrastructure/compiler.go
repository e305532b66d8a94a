package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain/operators"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/utils/lru"
)

const (
	DefaultPlanCacheSize = 256
	liftContextParameter = "__ctx"
)

var (
	ErrOwnedRoot   = errors.New("owned entity types can't be queried directly")
	ErrNotTemporal = errors.New("entity type is not mapped to a temporal table")
	ErrForeignType = errors.New("entity type belongs to another model")
)

// ParameterDescriptor describes a parameter of a compiled query.
type ParameterDescriptor struct {
	Name      string
	TypeName  string
	StoreType string
	Nullable  bool
}

type plan struct {
	sql         string
	parameters  []ParameterDescriptor
	occurrences []string
	lifted      []LiftedConstant
	shaper      *Shaper
}

type CompilerOption func(*Compiler)

func WithLogger(logger logrus.FieldLogger) CompilerOption {
	return func(c *Compiler) {
		c.logger = logger
	}
}

func WithPlanCacheSize(size int) CompilerOption {
	return func(c *Compiler) {
		c.cacheSize = size
	}
}

// UseRelationalNulls keeps the store's three-valued comparison of NULL.
func UseRelationalNulls(use bool) CompilerOption {
	return func(c *Compiler) {
		c.useRelationalNulls = use
	}
}

// PrecompiledQueries controls whether liftable constants become
// parameters. When disabled they are inlined as literals.
func PrecompiledQueries(enabled bool) CompilerOption {
	return func(c *Compiler) {
		c.precompiled = enabled
	}
}

func WithOperatorRegistry(registry *operators.OperatorRegistry) CompilerOption {
	return func(c *Compiler) {
		c.registry = registry
	}
}

// Compiler translates queries into SQL for one provider and caches the
// plans by the shape of the query.
type Compiler struct {
	model              *metadata.Model
	provider           Provider
	factory            *SqlExpressionFactory
	translators        *MethodCallTranslatorProvider
	registry           *operators.OperatorRegistry
	cache              *lru.Cache[string, *plan]
	cacheSize          int
	logger             logrus.FieldLogger
	useRelationalNulls bool
	precompiled        bool
}

func NewCompiler(model *metadata.Model, provider Provider, opts ...CompilerOption) *Compiler {
	c := &Compiler{
		model:       model,
		provider:    provider,
		cacheSize:   DefaultPlanCacheSize,
		precompiled: true,
	}
	for i := range opts {
		opts[i](c)
	}
	if c.logger == nil {
		logger := logrus.New()
		logger.SetLevel(logrus.WarnLevel)
		c.logger = logger
	}
	if c.registry == nil {
		c.registry = operators.NewDefaultRegistry()
	}
	c.logger = c.logger.WithField("provider", provider.Name())
	c.factory = NewSqlExpressionFactory(provider.TypeMappingSource())
	c.translators = NewMethodCallTranslatorProvider(provider.MethodCallTranslators(c.factory)...)
	c.cache = lru.New[string, *plan](c.cacheSize)
	return c
}

func (c *Compiler) Provider() Provider {
	return c.provider
}

// PlanCacheLen is the number of cached plans.
func (c *Compiler) PlanCacheLen() int {
	return c.cache.Len()
}

// Compile translates query. parameters are the values of the parameters
// the query references.
func (c *Compiler) Compile(ctx context.Context, query *q.Query, parameters map[string]any) (*CompiledQuery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.validate(query); err != nil {
		return nil, err
	}
	f := newFuncletizer(c.registry, parameters, c.useRelationalNulls)
	funcletized, err := f.Funcletize(query)
	if err != nil {
		return nil, err
	}
	values := f.Parameters()
	fingerprint := queryFingerprint(funcletized, values, fingerprintOptions{
		dialect:            c.provider.Dialect().Name(),
		modelVersion:       c.model.Version(),
		useRelationalNulls: c.useRelationalNulls,
		precompiled:        c.precompiled,
	})
	logger := c.logger.WithField("fingerprint", fingerprint[:12])

	p, hit := c.cache.Get(fingerprint)
	if hit {
		logger.WithField("plan_cache", "hit").Debug("query compiled")
	} else {
		p, err = c.plan(funcletized, values, logger)
		if err != nil {
			return nil, err
		}
		c.cache.Add(fingerprint, p)
		logger.WithField("plan_cache", "miss").Debug("query compiled")
	}
	return &CompiledQuery{
		ID:              ulid.Make(),
		Fingerprint:     fingerprint,
		SQL:             p.sql,
		Parameters:      p.parameters,
		LiftedConstants: p.lifted,
		Shaper:          p.shaper,
		Tracking:        query.Tracking(),
		Root:            query.Root(),
		CacheHit:        hit,
		dialect:         c.provider.Dialect(),
		occurrences:     p.occurrences,
		values:          values,
	}, nil
}

func (c *Compiler) validate(query *q.Query) error {
	if query == nil || query.Root().IsZero() {
		return q.ErrNoRoot
	}
	root := query.Root()
	et := root.EntityType()
	if et.Model() != c.model {
		return errors.Wrap(ErrForeignType, et.Name())
	}
	if et.IsOwned() {
		return errors.Wrap(ErrOwnedRoot, et.Name())
	}
	if root.IsTemporal() {
		if !c.provider.Dialect().SupportsTemporal() {
			return errors.Wrapf(ErrTemporalNotSupported, "%s on %s", root, c.provider.Name())
		}
		if !et.IsTemporal() {
			return errors.Wrapf(ErrNotTemporal, "The entity type '%s'", et.Name())
		}
	}
	return nil
}

func (c *Compiler) plan(query *q.Query, values map[string]any, logger logrus.FieldLogger) (*plan, error) {
	dialect := c.provider.Dialect()
	sel, err := newBinder(dialect, c.provider.QueryRootCreator()).Bind(query)
	if err != nil {
		return nil, err
	}
	if err := sel.Rewrite(func(n q.Visitable) (q.Visitable, error) {
		call, ok := n.(q.CallNode)
		if !ok {
			return n, nil
		}
		return c.translators.Translate(call.Instance(), call.Method(), call.Arguments(), logger)
	}); err != nil {
		return nil, err
	}
	if err := sel.Rewrite(c.inferTypeMapping); err != nil {
		return nil, err
	}
	nullability := NewNullabilityProcessor(c.useRelationalNulls, values)
	if sel.Predicate, err = nullability.Process(sel.Predicate); err != nil {
		return nil, err
	}

	lifter := NewLiftableConstantProcessor()
	variableNames := make(map[string]bool, len(values))
	for name := range values {
		variableNames[name] = true
	}
	if err := sel.Rewrite(func(n q.Visitable) (q.Visitable, error) {
		if _, ok := n.(q.LiftableConstantNode); !ok {
			return n, nil
		}
		return lifter.InlineConstants(n, c.precompiled)
	}); err != nil {
		return nil, err
	}
	if err := sel.Rewrite(func(n q.Visitable) (q.Visitable, error) {
		if _, ok := n.(q.LiftableConstantNode); !ok {
			return n, nil
		}
		return lifter.LiftConstants(n, liftContextParameter, variableNames)
	}); err != nil {
		return nil, err
	}
	if err := sel.Rewrite(func(n q.Visitable) (q.Visitable, error) {
		return c.factory.ApplyDefaultTypeMapping(n), nil
	}); err != nil {
		return nil, err
	}

	text, names, occurrences, err := Generate(dialect, sel)
	if err != nil {
		return nil, err
	}
	lifted := lifter.LiftedConstants()
	return &plan{
		sql:         text,
		parameters:  describeParameters(sel, names, values, lifted),
		occurrences: occurrences,
		lifted:      lifted,
		shaper:      NewShaper(query.Root().EntityType(), sel.Projection, sel.Document),
	}, nil
}

// inferTypeMapping maps the values and parameters compared with or
// combined with a mapped operand like that operand.
func (c *Compiler) inferTypeMapping(n q.Visitable) (q.Visitable, error) {
	infix, ok := n.(q.InfixNode)
	if !ok || infix.Operator().IsLogical() {
		return n, nil
	}
	left, right := infix.Left(), infix.Right()
	if q.MappingOf(left) != nil && q.MappingOf(right) == nil {
		right = c.factory.ApplyMappingOf(left, right)
	} else if q.MappingOf(right) != nil && q.MappingOf(left) == nil {
		left = c.factory.ApplyMappingOf(right, left)
	}
	return q.NewInfixNode(left, infix.Operator(), right, infix.Associativity()), nil
}

func describeParameters(sel *SelectExpression, names []string, values map[string]any, lifted []LiftedConstant) []ParameterDescriptor {
	nodes := make(map[string]q.ParameterNode)
	for _, e := range sel.Expressions() {
		q.Inspect(e, func(n q.Visitable) bool {
			if p, ok := n.(q.ParameterNode); ok {
				if _, seen := nodes[p.Name()]; !seen {
					nodes[p.Name()] = p
				}
			}
			return true
		})
	}
	liftedNil := make(map[string]bool, len(lifted))
	for _, l := range lifted {
		liftedNil[l.Parameter.Name()] = l.Original == nil
	}
	result := make([]ParameterDescriptor, 0, len(names))
	for _, name := range names {
		node := nodes[name]
		d := ParameterDescriptor{Name: name, TypeName: node.TypeName()}
		if m := node.TypeMapping(); m != nil {
			d.StoreType = m.String()
		}
		if v, ok := values[name]; ok {
			d.Nullable = v == nil
		} else {
			d.Nullable = liftedNil[name]
		}
		result = append(result, d)
	}
	return result
}

// CompiledQuery is a translated query ready to be executed.
type CompiledQuery struct {
	ID              ulid.ULID
	Fingerprint     string
	SQL             string
	Parameters      []ParameterDescriptor
	LiftedConstants []LiftedConstant
	Shaper          *Shaper
	Tracking        q.TrackingBehavior
	Root            q.QueryRoot
	CacheHit        bool
	dialect         Dialect
	occurrences     []string
	values          map[string]any
}

// Values returns the values of the non-lifted parameters.
func (c *CompiledQuery) Values() map[string]any {
	result := make(map[string]any, len(c.values))
	for k, v := range c.values {
		result[k] = v
	}
	return result
}

// Bind resolves the lifted constants and returns the driver arguments in
// the order the placeholders expect. release returns the slots to table.
func (c *CompiledQuery) Bind(table *SlotTable) (args []any, release func(), err error) {
	if table == nil {
		table = NewSlotTable()
	}
	slots, err := table.Bind(c.Fingerprint, c.LiftedConstants, &q.LiftContext{
		Root:       c.Root,
		Parameters: c.values,
	})
	if err != nil {
		return nil, nil, err
	}
	lookup := func(name string) (any, error) {
		if v, ok := c.values[name]; ok {
			return v, nil
		}
		if v, ok := slots.Lookup(name); ok {
			return v, nil
		}
		return nil, errors.Wrap(q.ErrUnboundParameter, name)
	}
	switch c.dialect.PlaceholderStyle() {
	case PlaceholderOrdinal:
		for _, name := range c.occurrences {
			v, err := lookup(name)
			if err != nil {
				slots.Release()
				return nil, nil, err
			}
			args = append(args, v)
		}
	case PlaceholderNumbered:
		for _, p := range c.Parameters {
			v, err := lookup(p.Name)
			if err != nil {
				slots.Release()
				return nil, nil, err
			}
			args = append(args, v)
		}
	default:
		for _, p := range c.Parameters {
			v, err := lookup(p.Name)
			if err != nil {
				slots.Release()
				return nil, nil, err
			}
			args = append(args, sql.Named(p.Name, v))
		}
	}
	return args, slots.Release, nil
}

// ParameterDeclarer is implemented by dialects which can declare a
// parameter in a script.
type ParameterDeclarer interface {
	DeclareParameter(name, storeType, literal string) string
}

// ToQueryString renders the parameter values followed by the SQL.
func (c *CompiledQuery) ToQueryString() string {
	resolved := make(map[string]any, len(c.LiftedConstants))
	ctx := &q.LiftContext{Root: c.Root, Parameters: c.values}
	for _, l := range c.LiftedConstants {
		v, err := l.Resolve(ctx)
		if err != nil {
			v = fmt.Sprintf("<%s>", err)
		}
		resolved[l.Parameter.Name()] = v
	}
	var b strings.Builder
	for i, p := range c.Parameters {
		v, ok := c.values[p.Name]
		if !ok {
			v = resolved[p.Name]
		}
		literal, err := c.dialect.Literal(v)
		if err != nil {
			literal = q.FormatValue(v)
		}
		if d, ok := c.dialect.(ParameterDeclarer); ok {
			b.WriteString(d.DeclareParameter(p.Name, p.StoreType, literal))
		} else {
			b.WriteString(fmt.Sprintf("-- %s=%s", c.dialect.Placeholder(p.Name, i+1), literal))
			if p.StoreType != "" {
				b.WriteString(" (" + p.StoreType + ")")
			}
		}
		b.WriteString("\n")
	}
	if len(c.Parameters) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(c.SQL)
	return b.String()
}
