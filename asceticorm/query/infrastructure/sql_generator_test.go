package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
)

func TestGeneratePrecedence(t *testing.T) {
	a := q.Column("t", []string{"a"}, metadata.TypeInt, nil, false)
	b := q.Column("t", []string{"b"}, metadata.TypeInt, nil, false)
	c := q.Column("t", []string{"c"}, metadata.TypeInt, nil, false)

	cases := []struct {
		name     string
		input    q.Visitable
		expected string
	}{
		{"right nested subtraction", q.GreaterThan(q.Sub(a, q.Sub(b, c)), q.Mul(q.Add(a, b), c)),
			`"t"."a" - ("t"."b" - "t"."c") > ("t"."a" + "t"."b") * "t"."c"`},
		{"left nested subtraction", q.Equal(q.Sub(q.Sub(a, b), c), q.Value(0)),
			`"t"."a" - "t"."b" - "t"."c" = 0`},
		{"negated disjunction", q.Not(q.Or(q.Equal(a, q.Value(1)), q.IsNull(b))),
			`NOT ("t"."a" = 1 OR "t"."b" IS NULL)`},
		{"conjunction of disjunctions", q.And(q.Or(q.Equal(a, b), q.Equal(b, c)), q.Equal(a, c)),
			`("t"."a" = "t"."b" OR "t"."b" = "t"."c") AND "t"."a" = "t"."c"`},
		{"negation", q.LessThan(q.Neg(a), q.Value(-1)), `-"t"."a" < -1`},
		{"string literal", q.Equal(a, q.Value("it's")), `"t"."a" = 'it''s'`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, render(t, tc.input))
		})
	}
}

func TestGenerateSelect(t *testing.T) {
	id := q.Column("t", []string{"Id"}, metadata.TypeInt, nil, false)
	sel := &SelectExpression{
		Projection: []ProjectionColumn{{Expression: id}},
		Table:      TableExpression{Table: "Things", Alias: "t"},
		Predicate:  q.Equal(id, q.Parameter("a")),
		Orderings:  []q.Ordering{{Expression: id, Descending: true}},
		Skip:       q.Parameter("s"),
		Take:       q.Parameter("a"),
	}

	text, params, occurrences, err := Generate(BaseDialect{}, sel)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "t"."Id" FROM "Things" AS "t" WHERE "t"."Id" = @a ORDER BY "t"."Id" DESC LIMIT @a OFFSET @s`, text)
	assert.Equal(t, []string{"a", "s"}, params)
	assert.Equal(t, []string{"a", "a", "s"}, occurrences)
}

func TestGenerateEmptyProjection(t *testing.T) {
	sel := &SelectExpression{Table: TableExpression{Table: "Things", Alias: "t"}}

	text, _, _, err := Generate(BaseDialect{}, sel)
	require.NoError(t, err)
	assert.Equal(t, `SELECT 1 FROM "Things" AS "t"`, text)
}

func TestGenerateRejectsUnboundNodes(t *testing.T) {
	sel := &SelectExpression{
		Table:     TableExpression{Table: "Things", Alias: "t"},
		Predicate: q.Equal(q.Field(q.GlobalScope(), "Id"), q.Value(1)),
	}
	_, _, _, err := Generate(BaseDialect{}, sel)
	assert.ErrorIs(t, err, ErrUntranslatable)

	sel.Predicate = q.Equal(q.Column("t", []string{"Id"}, metadata.TypeInt, nil, false), q.LiftableConstant(1, "k", "h", nil))
	_, _, _, err = Generate(BaseDialect{}, sel)
	assert.ErrorIs(t, err, ErrUntranslatable)
}

func TestGenerateTemporalNotSupported(t *testing.T) {
	sel := &SelectExpression{
		Table: TableExpression{Table: "Things", Alias: "t", Temporal: q.All{}},
	}
	_, _, _, err := Generate(BaseDialect{}, sel)
	assert.ErrorIs(t, err, ErrTemporalNotSupported)
}
