package query

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain/operators"
)

var ErrUntranslatable = errors.New("expression can't be translated to SQL")

const (
	parameterMarker      = "\x00param:"
	markerEnd       byte = 0
)

// Generate renders a bound select for dialect. parameters lists the names
// in the order of first use, occurrences the name of every placeholder.
func Generate(dialect Dialect, sel *SelectExpression) (sql string, parameters []string, occurrences []string, err error) {
	g := NewSqlGenerator(dialect)
	sql, err = g.Generate(sel)
	if err != nil {
		return "", nil, nil, err
	}
	return sql, g.Parameters(), g.Occurrences(), nil
}

func NewSqlGenerator(dialect Dialect) *SqlGenerator {
	g := &SqlGenerator{
		dialect:           dialect,
		precedenceMapping: make(map[string]int),
	}
	g.setPrecedence(140, "+pos RIGHT", "-neg RIGHT")
	g.setPrecedence(120, "* LEFT", "/ LEFT", "% LEFT")
	g.setPrecedence(110, "+ LEFT", "- LEFT", "|| LEFT")
	// all other operators 👇️
	g.setPrecedence(100, "(any other operator) LEFT")
	g.setPrecedence(95, "ESCAPE NON")
	g.setPrecedence(90, "LIKE NON")
	g.setPrecedence(80, "< NON", "> NON", "= NON", "<= NON", ">= NON", "!= NON")
	g.setPrecedence(70, "IS NON", "IS NULL NON", "IS NOT NULL NON")
	g.setPrecedence(60, "NOT RIGHT")
	g.setPrecedence(50, "AND LEFT")
	g.setPrecedence(40, "OR LEFT")
	return g
}

// SqlGenerator renders bound expressions with the minimal parentheses the
// operator precedence requires.
type SqlGenerator struct {
	dialect           Dialect
	sql               strings.Builder
	precedence        int
	precedenceMapping map[string]int
	parameters        []string
	occurrences       []string
	temporalArgs      []string
}

// Parameters returns the parameter names in the order of first use.
func (g *SqlGenerator) Parameters() []string {
	return g.parameters
}

// Occurrences returns the parameter name of every placeholder in textual
// order.
func (g *SqlGenerator) Occurrences() []string {
	return g.occurrences
}

func (g *SqlGenerator) setPrecedence(precedence int, operators ...string) {
	for _, op := range operators {
		g.precedenceMapping[op] = precedence
	}
}

func (g *SqlGenerator) precedenceKey(n q.Operable) string {
	return fmt.Sprintf("%s %s", n.Operator(), n.Associativity())
}

func (g *SqlGenerator) visit(precedenceKey string, callable func() error) error {
	outerPrecedence := g.precedence
	innerPrecedence, ok := g.precedenceMapping[precedenceKey]
	if !ok {
		innerPrecedence, ok = g.precedenceMapping["(any other operator) LEFT"]
		if !ok {
			innerPrecedence = outerPrecedence
		}
	}
	g.precedence = innerPrecedence
	if innerPrecedence < outerPrecedence {
		g.sql.WriteString("(")
	}
	err := callable()
	if err != nil {
		return err
	}
	if innerPrecedence < outerPrecedence {
		g.sql.WriteString(")")
	}
	g.precedence = outerPrecedence
	return nil
}

// Generate renders the statement. It can be called once per generator.
func (g *SqlGenerator) Generate(sel *SelectExpression) (string, error) {
	var b strings.Builder

	for _, arg := range sel.Table.TemporalArguments {
		text, err := g.expression(arg, false)
		if err != nil {
			return "", err
		}
		g.temporalArgs = append(g.temporalArgs, text)
	}
	skip, err := g.optional(sel.Skip)
	if err != nil {
		return "", err
	}
	take, err := g.optional(sel.Take)
	if err != nil {
		return "", err
	}
	afterSelect, suffix := g.dialect.Paging(skip, take, len(sel.Orderings) > 0)

	b.WriteString("SELECT ")
	if afterSelect != "" {
		b.WriteString(afterSelect)
		b.WriteString(" ")
	}
	columns := make([]string, 0, len(sel.Projection))
	for _, c := range sel.Projection {
		text, err := g.expression(c.Expression, false)
		if err != nil {
			return "", err
		}
		columns = append(columns, text)
	}
	if len(columns) == 0 {
		columns = append(columns, "1")
	}
	b.WriteString(strings.Join(columns, ", "))

	from, err := g.tableSource(sel.Table)
	if err != nil {
		return "", err
	}
	b.WriteString(" FROM ")
	b.WriteString(from)

	for _, j := range sel.Joins {
		source, err := g.tableSource(j.Table)
		if err != nil {
			return "", err
		}
		condition, err := g.expression(j.Condition, true)
		if err != nil {
			return "", err
		}
		b.WriteString(" LEFT JOIN ")
		b.WriteString(source)
		b.WriteString(" ON ")
		b.WriteString(condition)
	}

	if sel.Predicate != nil {
		predicate, err := g.expression(sel.Predicate, true)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(predicate)
	}

	if len(sel.Orderings) > 0 {
		items := make([]string, 0, len(sel.Orderings))
		for _, o := range sel.Orderings {
			text, err := g.expression(o.Expression, false)
			if err != nil {
				return "", err
			}
			if o.Descending {
				text += " DESC"
			}
			items = append(items, text)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(items, ", "))
	}
	b.WriteString(suffix)

	return g.layout(b.String()), nil
}

// layout replaces the parameter markers with placeholders, numbering the
// parameters by their first occurrence in the final text.
func (g *SqlGenerator) layout(text string) string {
	numbers := make(map[string]int)
	g.parameters, g.occurrences = nil, nil
	var b strings.Builder
	for {
		i := strings.Index(text, parameterMarker)
		if i < 0 {
			b.WriteString(text)
			break
		}
		b.WriteString(text[:i])
		text = text[i+len(parameterMarker):]
		j := strings.IndexByte(text, markerEnd)
		name := text[:j]
		text = text[j+1:]
		number, ok := numbers[name]
		if !ok {
			g.parameters = append(g.parameters, name)
			number = len(g.parameters)
			numbers[name] = number
		}
		g.occurrences = append(g.occurrences, name)
		b.WriteString(g.dialect.Placeholder(name, number))
	}
	return b.String()
}

func (g *SqlGenerator) optional(n q.Visitable) (string, error) {
	if n == nil {
		return "", nil
	}
	return g.expression(n, false)
}

func (g *SqlGenerator) tableSource(t TableExpression) (string, error) {
	clause, err := g.temporalClause(t.Temporal)
	if err != nil {
		return "", err
	}
	return g.dialect.TableSource(t.Table, clause, t.Alias), nil
}

// temporalClause renders op over the bounds of the root table. Joined
// tables share the operation of the root.
func (g *SqlGenerator) temporalClause(op q.TemporalOperation) (string, error) {
	if op == nil {
		return "", nil
	}
	if !g.dialect.SupportsTemporal() {
		return "", errors.Wrap(ErrTemporalNotSupported, g.dialect.Name())
	}
	return g.dialect.TemporalClause(op, g.temporalArgs)
}

// expression renders n on its own. Parameters are left as markers until
// layout. condition marks search-condition positions.
func (g *SqlGenerator) expression(n q.Visitable, condition bool) (string, error) {
	outerSQL := g.sql.String()
	outerPrecedence := g.precedence
	g.sql.Reset()
	g.precedence = 0

	var err error
	if condition {
		err = g.condition(n)
	} else {
		err = n.Accept(g)
	}
	text := g.sql.String()

	g.sql.Reset()
	g.sql.WriteString(outerSQL)
	g.precedence = outerPrecedence
	if err != nil {
		return "", err
	}
	return text, nil
}

// condition renders n as a search condition. Stores without a boolean
// type compare bare boolean values with TRUE.
func (g *SqlGenerator) condition(n q.Visitable) error {
	if !g.dialect.RequiresPredicateComparison() || !isBooleanValue(n) {
		return n.Accept(g)
	}
	return g.visit("= NON", func() error {
		if err := n.Accept(g); err != nil {
			return err
		}
		g.sql.WriteString(" = ")
		g.sql.WriteString(g.dialect.BooleanLiteral(true))
		return nil
	})
}

func isBooleanValue(n q.Visitable) bool {
	switch n.(type) {
	case q.ColumnNode, q.ParameterNode, q.ValueNode, q.FunctionNode:
		return q.TypeNameOfNode(n) == metadata.TypeBool
	}
	return false
}

func (g *SqlGenerator) VisitGlobalScope(n q.GlobalScopeNode) error {
	return errors.Wrap(ErrUntranslatable, "unbound root")
}

func (g *SqlGenerator) VisitObject(n q.ObjectNode) error {
	return errors.Wrapf(ErrUntranslatable, "unbound navigation %s", q.Print(n))
}

func (g *SqlGenerator) VisitCollection(n q.CollectionNode) error {
	return errors.Wrapf(ErrUntranslatable, "unbound collection %s", q.Print(n))
}

func (g *SqlGenerator) VisitItem(n q.ItemNode) error {
	return errors.Wrap(ErrUntranslatable, "unbound item")
}

func (g *SqlGenerator) VisitField(n q.FieldNode) error {
	return errors.Wrapf(ErrUntranslatable, "unbound member %s", q.Print(n))
}

func (g *SqlGenerator) VisitValue(n q.ValueNode) error {
	literal, err := g.dialect.Literal(n.Value())
	if err != nil {
		return errors.Wrap(ErrUntranslatable, err.Error())
	}
	g.sql.WriteString(literal)
	return nil
}

func (g *SqlGenerator) VisitParameter(n q.ParameterNode) error {
	g.sql.WriteString(parameterMarker)
	g.sql.WriteString(n.Name())
	g.sql.WriteByte(markerEnd)
	return nil
}

func (g *SqlGenerator) VisitLiftableConstant(n q.LiftableConstantNode) error {
	return errors.Wrapf(ErrUntranslatable, "liftable constant %s was not lifted", n.Key())
}

func (g *SqlGenerator) VisitPrefix(node q.PrefixNode) error {
	precedenceKey := g.precedenceKey(node)
	return g.visit(precedenceKey, func() error {
		operator, err := g.dialect.Operator(node.Operator())
		if err != nil {
			return err
		}
		if node.Operator() == operators.OperatorPos || node.Operator() == operators.OperatorNeg {
			g.sql.WriteString(operator)
			return node.Operand().Accept(g)
		}
		g.sql.WriteString(operator + " ")
		if node.Operator() == operators.OperatorNot {
			return g.condition(node.Operand())
		}
		return node.Operand().Accept(g)
	})
}

func (g *SqlGenerator) VisitInfix(n q.InfixNode) error {
	precedenceKey := g.precedenceKey(n)
	logical := n.Operator().IsLogical()
	return g.visit(precedenceKey, func() error {
		operand := func(o q.Visitable) error {
			if logical {
				return g.condition(o)
			}
			return o.Accept(g)
		}
		err := operand(n.Left())
		if err != nil {
			return err
		}
		operator, err := g.dialect.Operator(n.Operator())
		if err != nil {
			return err
		}
		g.sql.WriteString(" " + operator + " ")
		if n.Associativity() == q.LeftAssociative && !logical {
			// a - (b - c) keeps its parentheses
			g.precedence++
		}
		return operand(n.Right())
	})
}

func (g *SqlGenerator) VisitPostfix(node q.PostfixNode) error {
	precedenceKey := g.precedenceKey(node)
	return g.visit(precedenceKey, func() error {
		err := node.Operand().Accept(g)
		if err != nil {
			return err
		}
		operator, err := g.dialect.Operator(node.Operator())
		if err != nil {
			return err
		}
		g.sql.WriteString(" " + operator)
		return nil
	})
}

func (g *SqlGenerator) VisitCall(n q.CallNode) error {
	return &TranslationError{Method: n.Method()}
}

func (g *SqlGenerator) VisitFunction(n q.FunctionNode) error {
	outerPrecedence := g.precedence
	g.precedence = 0
	defer func() { g.precedence = outerPrecedence }()
	g.sql.WriteString(n.Name())
	g.sql.WriteString("(")
	for i, a := range n.Arguments() {
		if i > 0 {
			g.sql.WriteString(", ")
		}
		if err := a.Accept(g); err != nil {
			return err
		}
	}
	g.sql.WriteString(")")
	return nil
}

func (g *SqlGenerator) VisitColumn(n q.ColumnNode) error {
	if n.IsEmbedded() {
		g.sql.WriteString(g.dialect.EmbeddedField(n.Table(), n.Path(), n.TypeMapping()))
		return nil
	}
	g.sql.WriteString(g.dialect.Column(n.Table(), n.Path()))
	return nil
}

func (g *SqlGenerator) VisitExists(n q.ExistsNode) error {
	outerPrecedence := g.precedence
	g.precedence = 0
	defer func() { g.precedence = outerPrecedence }()

	var from string
	if n.IsEmbedded() {
		source, err := g.expression(n.Source(), false)
		if err != nil {
			return err
		}
		from = g.dialect.EmbeddedSource(source, n.Alias())
	} else {
		clause, err := g.temporalClause(n.Temporal())
		if err != nil {
			return err
		}
		from = g.dialect.TableSource(n.Table(), clause, n.Alias())
	}
	var predicate string
	if n.Predicate() != nil {
		text, err := g.expression(n.Predicate(), true)
		if err != nil {
			return err
		}
		predicate = text
	}
	g.sql.WriteString(g.dialect.Exists(n.Alias(), from, predicate))
	return nil
}
