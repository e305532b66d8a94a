package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
)

var (
	ErrUnboundMember      = errors.New("member can't be bound")
	ErrNavigationNotFound = errors.New("navigation not found")
	ErrUnsupportedInclude = errors.New("include is not supported")
)

const (
	documentAlias         = "c"
	discriminatorProperty = "Discriminator"
	pointInTimeHint       = "__pointInTime"
	fromHint              = "__from"
	toHint                = "__to"
	discriminatorHint     = "__discriminator"
)

// aliasGenerator hands out table aliases: the lowercase first letter of the
// singular table name, then the same letter with numeric suffixes.
type aliasGenerator struct {
	used map[string]bool
}

func newAliasGenerator(reserved ...string) *aliasGenerator {
	g := &aliasGenerator{used: make(map[string]bool)}
	for _, r := range reserved {
		g.used[r] = true
	}
	return g
}

func (g *aliasGenerator) Table(table string) string {
	singular := inflection.Singular(table)
	base := "t"
	if singular != "" {
		base = strings.ToLower(singular[:1])
	}
	return g.unique(base)
}

func (g *aliasGenerator) Item(navigation string) string {
	base := strings.ToLower(inflection.Singular(navigation))
	if base == "" {
		base = "i"
	}
	return g.unique(base)
}

func (g *aliasGenerator) unique(base string) string {
	if !g.used[base] {
		g.used[base] = true
		return base
	}
	for i := 0; ; i++ {
		candidate := base + strconv.Itoa(i)
		if !g.used[candidate] {
			g.used[candidate] = true
			return candidate
		}
	}
}

// entityScope is an entity instance visible to a predicate: the root, a
// joined navigation or the item of a collection.
type entityScope struct {
	entityType *metadata.EntityType
	alias      string
	// path is the property path inside a document or an embedded item.
	path     []string
	embedded bool
	nullable bool
	root     q.QueryRoot
}

// binder resolves member access against the model and builds the select.
type binder struct {
	dialect     Dialect
	rootCreator QueryRootCreator
	aliases     *aliasGenerator
	root        entityScope
	items       []entityScope
	joins       map[string]entityScope
	sel         *SelectExpression
}

func newBinder(dialect Dialect, rootCreator QueryRootCreator) *binder {
	return &binder{
		dialect:     dialect,
		rootCreator: rootCreator,
		joins:       make(map[string]entityScope),
	}
}

// Bind builds the select of query. The projection is the root entity with
// its owned types and the included navigations.
func (b *binder) Bind(query *q.Query) (*SelectExpression, error) {
	root := query.Root()
	et := root.EntityType()
	b.sel = &SelectExpression{}
	if b.dialect.IsDocument() {
		b.aliases = newAliasGenerator(documentAlias)
		b.root = entityScope{entityType: et, alias: documentAlias, root: root}
		b.sel.Document = true
		b.sel.Table = TableExpression{EntityType: et, Table: "root", Alias: documentAlias}
	} else {
		b.aliases = newAliasGenerator()
		alias := b.aliases.Table(et.Table())
		b.root = entityScope{entityType: et, alias: alias, root: root}
		b.sel.Table = TableExpression{
			EntityType:        et,
			Table:             et.Table(),
			Alias:             alias,
			Temporal:          root.Temporal(),
			TemporalArguments: temporalArguments(root.Temporal()),
		}
	}

	var conditions []q.Visitable
	if b.dialect.IsDocument() {
		conditions = append(conditions, b.discriminatorCondition(et))
	}
	if query.Predicate() != nil {
		predicate, err := b.bind(query.Predicate())
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, predicate)
	}
	b.sel.Predicate = conjunction(conditions...)

	for _, o := range query.Orderings() {
		expr, err := b.bind(o.Expression)
		if err != nil {
			return nil, err
		}
		b.sel.Orderings = append(b.sel.Orderings, q.Ordering{Expression: expr, Descending: o.Descending})
	}
	b.sel.Skip = query.Skip()
	b.sel.Take = query.Take()

	if b.dialect.IsDocument() {
		b.sel.Projection = []ProjectionColumn{{Expression: q.Column(documentAlias, nil, "", nil, false)}}
		if len(query.Includes()) > 0 {
			return nil, errors.Wrap(ErrUnsupportedInclude, "owned types are always loaded with the document")
		}
		return b.sel, nil
	}
	b.project(b.root, nil)
	if err := b.include(query); err != nil {
		return nil, err
	}
	return b.sel, nil
}

func (b *binder) discriminatorCondition(et *metadata.EntityType) q.Visitable {
	column := q.Column(documentAlias, []string{discriminatorProperty}, metadata.TypeString, nil, false)
	value := q.LiftableConstant(et.Discriminator(), discriminatorHint, discriminatorHint, func(ctx *q.LiftContext) (any, error) {
		return ctx.Root.EntityType().Discriminator(), nil
	}).WithTypeName(metadata.TypeString)
	return q.Equal(column, value)
}

func (b *binder) bind(n q.Visitable) (q.Visitable, error) {
	switch t := n.(type) {
	case nil:
		return nil, nil
	case q.FieldNode:
		return b.bindField(t)
	case q.CollectionNode:
		return b.bindCollection(t)
	case q.GlobalScopeNode, q.ObjectNode, q.ItemNode:
		return nil, errors.Wrapf(ErrUnboundMember, "%s is an entity, not a value", q.Print(n))
	case q.PrefixNode:
		operand, err := b.bind(t.Operand())
		if err != nil {
			return nil, err
		}
		return q.NewPrefixNode(t.Operator(), operand, t.Associativity()), nil
	case q.InfixNode:
		left, err := b.bind(t.Left())
		if err != nil {
			return nil, err
		}
		right, err := b.bind(t.Right())
		if err != nil {
			return nil, err
		}
		return q.NewInfixNode(left, t.Operator(), right, t.Associativity()), nil
	case q.PostfixNode:
		operand, err := b.bind(t.Operand())
		if err != nil {
			return nil, err
		}
		return q.NewPostfixNode(operand, t.Operator(), t.Associativity()), nil
	case q.CallNode:
		instance, err := b.bind(t.Instance())
		if err != nil {
			return nil, err
		}
		args, err := b.bindAll(t.Arguments())
		if err != nil {
			return nil, err
		}
		return q.Call(t.Method(), instance, args...), nil
	case q.FunctionNode:
		args, err := b.bindAll(t.Arguments())
		if err != nil {
			return nil, err
		}
		return t.WithArguments(args), nil
	}
	return n, nil
}

func (b *binder) bindAll(nodes []q.Visitable) ([]q.Visitable, error) {
	result := make([]q.Visitable, len(nodes))
	for i, n := range nodes {
		r, err := b.bind(n)
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (b *binder) resolveScope(s q.Scope) (entityScope, error) {
	switch t := s.(type) {
	case q.GlobalScopeNode:
		return b.root, nil
	case q.ItemNode:
		if len(b.items) == 0 {
			return entityScope{}, errors.Wrap(ErrUnboundMember, "item used outside of Any")
		}
		return b.items[len(b.items)-1], nil
	case q.ObjectNode:
		parent, err := b.resolveScope(t.Parent())
		if err != nil {
			return entityScope{}, err
		}
		nav := parent.entityType.FindNavigation(t.Name())
		if nav == nil {
			return entityScope{}, errors.Wrapf(ErrNavigationNotFound, "'%s' is not a navigation of '%s'", t.Name(), parent.entityType.Name())
		}
		if nav.IsCollection() {
			return entityScope{}, errors.Wrapf(ErrUnboundMember, "collection navigation '%s.%s' can only be used with Any or All", parent.entityType.Name(), nav.Name())
		}
		return b.navigate(parent, nav)
	}
	return entityScope{}, errors.Wrapf(ErrUnboundMember, "%T is not an entity", s)
}

// navigate resolves a reference navigation. Owned references stay in the
// owner's row or document, other references are joined.
func (b *binder) navigate(parent entityScope, nav *metadata.Navigation) (entityScope, error) {
	target := nav.TargetType()
	if nav.IsOwned() {
		s := parent
		s.entityType = target
		if b.dialect.IsDocument() || parent.embedded {
			s.path = appendPath(parent.path, nav.Name())
		}
		return s, nil
	}
	if b.dialect.IsDocument() || parent.embedded {
		return entityScope{}, errors.Wrapf(ErrUnboundMember,
			"navigation '%s.%s' can't be translated: only owned navigations are supported by %s",
			parent.entityType.Name(), nav.Name(), b.dialect.Name())
	}
	key := parent.alias + "." + nav.Name()
	if s, ok := b.joins[key]; ok {
		return s, nil
	}
	var source *q.QueryRoot
	if !parent.root.IsZero() {
		source = &parent.root
	}
	root, err := b.rootCreator.CreateQueryRoot(target, source)
	if err != nil {
		return entityScope{}, err
	}
	alias := b.aliases.Table(target.Table())
	s := entityScope{entityType: target, alias: alias, nullable: true, root: root}
	condition, err := b.joinCondition(parent, s, nav)
	if err != nil {
		return entityScope{}, err
	}
	b.sel.Joins = append(b.sel.Joins, JoinExpression{
		Table: TableExpression{
			EntityType: target,
			Table:      target.Table(),
			Alias:      alias,
			Temporal:   root.Temporal(),
		},
		Condition: condition,
	})
	b.joins[key] = s
	return s, nil
}

// joinCondition correlates the rows of target with the rows of parent over
// the foreign key of nav.
func (b *binder) joinCondition(parent, target entityScope, nav *metadata.Navigation) (q.Visitable, error) {
	fk := nav.ForeignKey()
	if fk == nil || fk.PrincipalKey() == nil {
		return nil, errors.Wrapf(ErrUnboundMember, "navigation '%s.%s' has no foreign key", parent.entityType.Name(), nav.Name())
	}
	dependent, principal := target, parent
	if nav.IsOnDependent() {
		dependent, principal = parent, target
	}
	principalKey := fk.PrincipalKey().Properties()
	conditions := make([]q.Visitable, 0, len(fk.Properties()))
	for i, p := range fk.Properties() {
		if i >= len(principalKey) {
			break
		}
		conditions = append(conditions, q.Equal(
			b.column(dependent, dependent.propertyOf(p)),
			b.column(principal, principal.propertyOf(principalKey[i])),
		))
	}
	return conjunction(conditions...), nil
}

// propertyOf maps a property declared on the scope's type or on its owner
// chain to the property of the scope's type.
func (s entityScope) propertyOf(p *metadata.Property) *metadata.Property {
	if p.DeclaringType() == s.entityType {
		return p
	}
	if own := s.entityType.FindProperty(p.Name()); own != nil {
		return own
	}
	return p
}

func (b *binder) column(s entityScope, p *metadata.Property) q.ColumnNode {
	nullable := p.IsNullable() || s.nullable
	if b.dialect.IsDocument() || s.embedded {
		col := q.Column(s.alias, appendPath(s.path, p.Name()), p.TypeName(), p.TypeMapping(), nullable)
		if s.embedded {
			return col.AsEmbedded()
		}
		return col
	}
	return q.Column(s.alias, []string{p.ColumnName()}, p.TypeName(), p.TypeMapping(), nullable)
}

func (b *binder) bindField(n q.FieldNode) (q.Visitable, error) {
	s, err := b.resolveScope(n.Object())
	if err != nil {
		return nil, err
	}
	if p := s.entityType.FindProperty(n.Name()); p != nil {
		return b.column(s, p), nil
	}
	nav := s.entityType.FindNavigation(n.Name())
	if nav == nil {
		return nil, errors.Wrapf(ErrUnboundMember, "'%s' is not a member of '%s'", n.Name(), s.entityType.Name())
	}
	if nav.IsCollection() {
		return nil, errors.Wrapf(ErrUnboundMember, "collection navigation '%s.%s' can only be used with Any or All", s.entityType.Name(), nav.Name())
	}
	// A reference compares by its key: the foreign key when this side holds
	// it, the key of the joined row otherwise.
	if nav.IsOnDependent() && !nav.IsOwned() && !b.dialect.IsDocument() && !s.embedded {
		fkProps := nav.ForeignKey().Properties()
		if len(fkProps) != 1 {
			return nil, errors.Wrapf(ErrUnboundMember, "navigation '%s.%s' has a composite foreign key", s.entityType.Name(), nav.Name())
		}
		return b.column(s, s.propertyOf(fkProps[0])), nil
	}
	target, err := b.navigate(s, nav)
	if err != nil {
		return nil, err
	}
	key := target.entityType.FindPrimaryKey()
	if key == nil || len(key.Properties()) != 1 {
		return nil, errors.Wrapf(ErrUnboundMember, "navigation '%s.%s' has no single-column key", s.entityType.Name(), nav.Name())
	}
	return b.column(target, key.Properties()[0]), nil
}

func (b *binder) bindCollection(n q.CollectionNode) (q.Visitable, error) {
	parent, err := b.resolveScope(n.Parent())
	if err != nil {
		return nil, err
	}
	nav := parent.entityType.FindNavigation(n.Name())
	if nav == nil {
		return nil, errors.Wrapf(ErrNavigationNotFound, "'%s' is not a navigation of '%s'", n.Name(), parent.entityType.Name())
	}
	if !nav.IsCollection() {
		return nil, errors.Wrapf(ErrUnboundMember, "'%s.%s' is not a collection", parent.entityType.Name(), nav.Name())
	}
	if nav.IsOwned() {
		return b.bindEmbeddedCollection(parent, nav, n.Predicate())
	}
	if b.dialect.IsDocument() || parent.embedded {
		return nil, errors.Wrapf(ErrUnboundMember,
			"navigation '%s.%s' can't be translated: only owned navigations are supported by %s",
			parent.entityType.Name(), nav.Name(), b.dialect.Name())
	}
	target := nav.TargetType()
	var source *q.QueryRoot
	if !parent.root.IsZero() {
		source = &parent.root
	}
	root, err := b.rootCreator.CreateQueryRoot(target, source)
	if err != nil {
		return nil, err
	}
	item := entityScope{entityType: target, alias: b.aliases.Table(target.Table()), root: root}
	correlation, err := b.joinCondition(parent, item, nav)
	if err != nil {
		return nil, err
	}
	predicate, err := b.bindItem(item, n.Predicate())
	if err != nil {
		return nil, err
	}
	return q.Exists(target.Table(), item.alias, root.Temporal(), nil, conjunction(correlation, predicate)), nil
}

func (b *binder) bindEmbeddedCollection(parent entityScope, nav *metadata.Navigation, predicate q.Visitable) (q.Visitable, error) {
	var source q.ColumnNode
	switch {
	case b.dialect.IsDocument() || parent.embedded:
		source = q.Column(parent.alias, appendPath(parent.path, nav.Name()), metadata.TypeString, nil, true)
		if parent.embedded {
			source = source.AsEmbedded()
		}
	default:
		source = q.Column(parent.alias, []string{parent.entityType.ColumnPrefix() + nav.Name()}, metadata.TypeString, nil, true)
	}
	item := entityScope{entityType: nav.TargetType(), alias: b.aliases.Item(nav.Name()), embedded: true}
	if b.dialect.IsDocument() {
		item.embedded = false
	}
	bound, err := b.bindItem(item, predicate)
	if err != nil {
		return nil, err
	}
	return q.Exists("", item.alias, nil, source, bound), nil
}

func (b *binder) bindItem(item entityScope, predicate q.Visitable) (q.Visitable, error) {
	b.items = append(b.items, item)
	defer func() { b.items = b.items[:len(b.items)-1] }()
	return b.bind(predicate)
}

// project selects the columns of the entity in s and of its table-split
// owned references. Owned collections are selected as their JSON column.
func (b *binder) project(s entityScope, path []string) {
	for _, p := range s.entityType.Properties() {
		if s.entityType.IsOwned() && p.ColumnName() != s.entityType.ColumnPrefix()+p.Name() {
			// mirrors the owner's key column
			continue
		}
		b.sel.Projection = append(b.sel.Projection, ProjectionColumn{
			Expression: b.column(s, p),
			Path:       path,
			Property:   p,
		})
	}
	for _, nav := range s.entityType.Navigations() {
		if !nav.IsOwned() {
			continue
		}
		if nav.IsCollection() {
			b.sel.Projection = append(b.sel.Projection, ProjectionColumn{
				Expression: q.Column(s.alias, []string{s.entityType.ColumnPrefix() + nav.Name()}, metadata.TypeString, nil, true),
				Path:       appendPath(path, nav.Name()),
				Collection: nav,
			})
			continue
		}
		owned := s
		owned.entityType = nav.TargetType()
		b.project(owned, appendPath(path, nav.Name()))
	}
}

// include joins the included navigations and projects their columns.
// Collection includes order the rows by the keys of the parents.
func (b *binder) include(query *q.Query) error {
	var keyOrderings []q.Ordering
	for _, path := range query.Includes() {
		current := b.root
		for i, name := range path {
			nav := current.entityType.FindNavigation(name)
			if nav == nil {
				return errors.Wrapf(ErrNavigationNotFound, "'%s' is not a navigation of '%s'", name, current.entityType.Name())
			}
			if nav.IsOwned() {
				return errors.Wrapf(ErrUnsupportedInclude, "owned navigation '%s.%s' is always loaded", current.entityType.Name(), name)
			}
			key := current.alias + "." + nav.Name()
			_, joined := b.joins[key]
			if nav.IsCollection() {
				if query.Skip() != nil || query.Take() != nil {
					return errors.Wrapf(ErrUnsupportedInclude, "collection '%s.%s' can't be included in a paged query", current.entityType.Name(), name)
				}
				if !joined {
					keyOrderings = append(keyOrderings, b.keyOrderings(current)...)
				}
			}
			next, err := b.navigateInclude(current, nav)
			if err != nil {
				return err
			}
			if !joined {
				b.project(next, path[:i+1])
				if nav.IsCollection() {
					keyOrderings = append(keyOrderings, b.keyOrderings(next)...)
				}
			}
			current = next
		}
	}
	if len(keyOrderings) > 0 {
		b.sel.Orderings = append(b.sel.Orderings, dedupeOrderings(keyOrderings)...)
	}
	return nil
}

func (b *binder) navigateInclude(parent entityScope, nav *metadata.Navigation) (entityScope, error) {
	if !nav.IsCollection() {
		return b.navigate(parent, nav)
	}
	key := parent.alias + "." + nav.Name()
	if s, ok := b.joins[key]; ok {
		return s, nil
	}
	target := nav.TargetType()
	var source *q.QueryRoot
	if !parent.root.IsZero() {
		source = &parent.root
	}
	root, err := b.rootCreator.CreateQueryRoot(target, source)
	if err != nil {
		return entityScope{}, err
	}
	s := entityScope{entityType: target, alias: b.aliases.Table(target.Table()), nullable: true, root: root}
	condition, err := b.joinCondition(parent, s, nav)
	if err != nil {
		return entityScope{}, err
	}
	b.sel.Joins = append(b.sel.Joins, JoinExpression{
		Table: TableExpression{
			EntityType: target,
			Table:      target.Table(),
			Alias:      s.alias,
			Temporal:   root.Temporal(),
		},
		Condition: condition,
	})
	b.joins[key] = s
	return s, nil
}

func (b *binder) keyOrderings(s entityScope) []q.Ordering {
	key := s.entityType.FindPrimaryKey()
	if key == nil {
		return nil
	}
	result := make([]q.Ordering, 0, len(key.Properties()))
	for _, p := range key.Properties() {
		result = append(result, q.Ordering{Expression: b.column(s, p)})
	}
	return result
}

func dedupeOrderings(orderings []q.Ordering) []q.Ordering {
	seen := make(map[string]bool, len(orderings))
	result := orderings[:0]
	for _, o := range orderings {
		key := q.Print(o.Expression)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, o)
	}
	return result
}

// temporalArguments returns the bounds of op as liftable constants which
// read the bounds of the executed root.
func temporalArguments(op q.TemporalOperation) []q.Visitable {
	switch t := op.(type) {
	case q.AsOf:
		return []q.Visitable{
			q.LiftableConstant(t.PointInTime, pointInTimeHint, pointInTimeHint, func(ctx *q.LiftContext) (any, error) {
				asOf, ok := ctx.Root.Temporal().(q.AsOf)
				if !ok {
					return nil, fmt.Errorf("root %s is not an AsOf query", ctx.Root)
				}
				return asOf.PointInTime, nil
			}).WithTypeName(metadata.TypeTime),
		}
	case q.Range:
		bound := func(from bool) q.Resolver {
			return func(ctx *q.LiftContext) (any, error) {
				r, ok := ctx.Root.Temporal().(q.Range)
				if !ok {
					return nil, fmt.Errorf("root %s is not a range query", ctx.Root)
				}
				if from {
					return r.From, nil
				}
				return r.To, nil
			}
		}
		return []q.Visitable{
			q.LiftableConstant(t.From, fromHint, fromHint, bound(true)).WithTypeName(metadata.TypeTime),
			q.LiftableConstant(t.To, toHint, toHint, bound(false)).WithTypeName(metadata.TypeTime),
		}
	}
	return nil
}

// conjunction joins the non-nil conditions with AND.
func conjunction(conditions ...q.Visitable) q.Visitable {
	var result q.Visitable
	for _, c := range conditions {
		if c == nil {
			continue
		}
		if result == nil {
			result = c
			continue
		}
		result = q.And(result, c)
	}
	return result
}

func appendPath(path []string, name string) []string {
	result := make([]string, len(path), len(path)+1)
	copy(result, path)
	return append(result, name)
}
