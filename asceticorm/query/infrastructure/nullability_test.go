package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
)

func render(t *testing.T, n q.Visitable) string {
	t.Helper()
	g := NewSqlGenerator(BaseDialect{})
	text, err := g.expression(n, true)
	require.NoError(t, err)
	return g.layout(text)
}

func TestNullabilityProcessor(t *testing.T) {
	note := q.Column("o", []string{"Note"}, metadata.TypeString, nil, true)
	email := q.Column("c", []string{"Email"}, metadata.TypeString, nil, true)
	id := q.Column("o", []string{"Id"}, metadata.TypeInt, nil, false)
	params := map[string]any{"none": nil, "some": "x"}

	cases := []struct {
		name     string
		input    q.Visitable
		expected string
	}{
		{"null parameter", q.Equal(note, q.Parameter("none")), `"o"."Note" IS NULL`},
		{"null on the left", q.NotEqual(q.Value(nil), note), `"o"."Note" IS NOT NULL`},
		{"both null", q.Equal(q.Value(nil), q.Parameter("none")), `TRUE`},
		{"non-nullable operands", q.Equal(id, q.Parameter("some")), `"o"."Id" = @some`},
		{"one nullable equality", q.Equal(note, q.Parameter("some")), `"o"."Note" = @some`},
		{"one nullable inequality", q.NotEqual(note, q.Parameter("some")), `"o"."Note" <> @some OR "o"."Note" IS NULL`},
		{"both nullable equality", q.Equal(note, email),
			`"o"."Note" = "c"."Email" OR "o"."Note" IS NULL AND "c"."Email" IS NULL`},
		{"both nullable inequality", q.NotEqual(note, email),
			`("o"."Note" <> "c"."Email" OR "o"."Note" IS NULL OR "c"."Email" IS NULL) AND ("o"."Note" IS NOT NULL OR "c"."Email" IS NOT NULL)`},
		{"other comparisons", q.GreaterThan(note, q.Parameter("some")), `"o"."Note" > @some`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			processed, err := NewNullabilityProcessor(false, params).Process(c.input)
			require.NoError(t, err)
			assert.Equal(t, c.expected, render(t, processed))
		})
	}
}

func TestNullabilityProcessorRelationalNulls(t *testing.T) {
	note := q.Column("o", []string{"Note"}, metadata.TypeString, nil, true)
	input := q.NotEqual(note, q.Parameter("none"))

	processed, err := NewNullabilityProcessor(true, map[string]any{"none": nil}).Process(input)
	require.NoError(t, err)
	assert.Equal(t, `"o"."Note" <> @none`, render(t, processed))
}

func TestIsNullable(t *testing.T) {
	p := NewNullabilityProcessor(false, map[string]any{"none": nil, "some": 1})
	nullable := q.Column("o", []string{"Note"}, metadata.TypeString, nil, true)
	required := q.Column("o", []string{"Id"}, metadata.TypeInt, nil, false)

	assert.True(t, p.IsNullable(nullable))
	assert.False(t, p.IsNullable(required))
	assert.True(t, p.IsNullable(q.Parameter("none")))
	assert.False(t, p.IsNullable(q.Parameter("some")))
	assert.True(t, p.IsNullable(q.Add(required, nullable)))
	assert.False(t, p.IsNullable(q.Equal(nullable, required)))
	assert.True(t, p.IsNullable(q.LiftableConstant(nil, "k", "h", nil)))

	propagating := q.Function("UPPER", []q.Visitable{nullable}, true, []bool{true}, metadata.TypeString, nil)
	assert.True(t, p.IsNullable(propagating))
	propagating = q.Function("UPPER", []q.Visitable{required}, true, []bool{true}, metadata.TypeString, nil)
	assert.False(t, p.IsNullable(propagating))
	opaque := q.Function("JSON_VALUE", []q.Visitable{required, q.Value("$.a")}, true, []bool{false, false}, metadata.TypeString, nil)
	assert.True(t, p.IsNullable(opaque))
	assert.False(t, p.IsNullable(q.Function("LENGTH", []q.Visitable{required}, false, nil, metadata.TypeInt, nil)))
}
