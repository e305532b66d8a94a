package postgresql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	query "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/infrastructure"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/utils/testutils"
)

func TestDialect(t *testing.T) {
	d := NewDialect()
	assert.Equal(t, "$3", d.Placeholder("x", 3))
	literal, err := d.Literal([]byte{0xde, 0xad})
	require.NoError(t, err)
	assert.Equal(t, `'\xdead'::bytea`, literal)

	mapping := &metadata.TypeMapping{TypeName: metadata.TypeInt, StoreType: "integer", Kind: metadata.KindInt}
	assert.Equal(t, `CAST("l".value ->> 'Quantity' AS integer)`, d.EmbeddedField("l", []string{"Quantity"}, mapping))
	assert.Equal(t, `("l".value #>> '{Size,Name}')`, d.EmbeddedField("l", []string{"Size", "Name"}, nil))
}

func TestCompile(t *testing.T) {
	model, err := testutils.NewShopModel(NewTypeMappingSource(), false)
	require.NoError(t, err)
	c := query.NewCompiler(model, NewProvider())

	built, err := q.From(model.FindEntityType("Customer")).
		Where(q.And(
			q.Equal(q.Call(q.Method{DeclaringType: "strings", Name: "ToUpper"}, nil, q.Field(q.GlobalScope(), "Name")), q.Value("ANN")),
			q.NotEqual(q.Field(q.GlobalScope(), "Email"), q.Value(nil)),
		)).
		Build()
	require.NoError(t, err)
	compiled, err := c.Compile(context.Background(), built, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "c"."Id", "c"."Name", "c"."Email", "c"."Address_Street", "c"."Address_City" `+
		`FROM "Customers" AS "c" WHERE UPPER("c"."Name") = $1 AND "c"."Email" IS NOT NULL`, compiled.SQL)

	args, release, err := compiled.Bind(nil)
	require.NoError(t, err)
	defer release()
	assert.Equal(t, []any{"ANN"}, args)
}

func TestCompileEmbeddedCollectionWithRepeatedParameter(t *testing.T) {
	model, err := testutils.NewShopModel(NewTypeMappingSource(), false)
	require.NoError(t, err)
	c := query.NewCompiler(model, NewProvider())
	sku := q.Field(q.Item(), "Sku")

	built, err := q.From(model.FindEntityType("Order")).
		Where(q.Or(
			q.Wildcard(q.GlobalScope(), "Lines", q.Equal(sku, q.Parameter("sku"))),
			q.Equal(q.Field(q.GlobalScope(), "Note"), q.Parameter("sku")),
		)).
		Build()
	require.NoError(t, err)
	compiled, err := c.Compile(context.Background(), built, map[string]any{"sku": "A-1"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "o"."Id", "o"."CustomerId", "o"."Total", "o"."Note", "o"."PlacedAt", "o"."Lines" `+
		`FROM "Orders" AS "o" `+
		`WHERE EXISTS (SELECT 1 FROM jsonb_array_elements("o"."Lines") AS "line" WHERE ("line".value ->> 'Sku') = $1) `+
		`OR "o"."Note" = $1`, compiled.SQL)

	args, release, err := compiled.Bind(nil)
	require.NoError(t, err)
	defer release()
	assert.Equal(t, []any{"A-1"}, args)
}

func TestCompileNumbersPagingAfterPredicate(t *testing.T) {
	model, err := testutils.NewShopModel(NewTypeMappingSource(), false)
	require.NoError(t, err)
	c := query.NewCompiler(model, NewProvider())

	built, err := q.From(model.FindEntityType("Review")).
		Where(q.GreaterThanEqual(q.Field(q.GlobalScope(), "Rating"), q.Value(4))).
		Skip(2).
		Take(3).
		Build()
	require.NoError(t, err)
	compiled, err := c.Compile(context.Background(), built, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "r"."Id", "r"."CustomerId", "r"."Rating" FROM "Reviews" AS "r" `+
		`WHERE "r"."Rating" >= $1 LIMIT $2 OFFSET $3`, compiled.SQL)

	args, release, err := compiled.Bind(nil)
	require.NoError(t, err)
	defer release()
	assert.Equal(t, []any{4, 3, 2}, args)
}
