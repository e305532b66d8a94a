package sqlite

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

func newShopModel(t *testing.T) *metadata.Model {
	t.Helper()
	model, err := testutils.NewShopModel(NewTypeMappingSource(), false)
	require.NoError(t, err)
	return model
}

func compile(t *testing.T, c *query.Compiler, b *q.QueryBuilder) *query.CompiledQuery {
	t.Helper()
	built, err := b.Build()
	require.NoError(t, err)
	compiled, err := c.Compile(context.Background(), built, nil)
	require.NoError(t, err)
	return compiled
}

func TestDialectPaging(t *testing.T) {
	d := NewDialect()
	_, suffix := d.Paging("", "?", false)
	assert.Equal(t, " LIMIT ?", suffix)
	_, suffix = d.Paging("?", "", false)
	assert.Equal(t, " LIMIT -1 OFFSET ?", suffix)
	_, suffix = d.Paging("?", "?", true)
	assert.Equal(t, " LIMIT ? OFFSET ?", suffix)
	assert.Equal(t, "1", d.BooleanLiteral(true))
	assert.Equal(t, query.PlaceholderOrdinal, d.PlaceholderStyle())
}

func TestCompileEmbeddedCollection(t *testing.T) {
	model := newShopModel(t)
	c := query.NewCompiler(model, NewProvider())

	compiled := compile(t, c, q.From(model.FindEntityType("Order")).
		Where(q.Wildcard(q.GlobalScope(), "Lines", q.GreaterThan(q.Field(q.Item(), "Quantity"), q.Value(2)))))

	assert.Equal(t, `SELECT "o"."Id", "o"."CustomerId", "o"."Total", "o"."Note", "o"."PlacedAt", "o"."Lines" `+
		`FROM "Orders" AS "o" `+
		`WHERE EXISTS (SELECT 1 FROM json_each("o"."Lines") AS "line" `+
		`WHERE json_extract("line".value, '$.Quantity') > ?)`, compiled.SQL)
}

func TestCompileOrdinalArgumentsFollowPlaceholders(t *testing.T) {
	model := newShopModel(t)
	c := query.NewCompiler(model, NewProvider())
	rating := q.Field(q.GlobalScope(), "Rating")

	built, err := q.From(model.FindEntityType("Review")).
		Where(q.Or(q.Equal(rating, q.Parameter("best")), q.Equal(q.Field(q.GlobalScope(), "Id"), q.Parameter("best")))).
		OrderBy(rating).
		Skip(10).
		Take(5).
		Build()
	require.NoError(t, err)
	compiled, err := c.Compile(context.Background(), built, map[string]any{"best": 5})
	require.NoError(t, err)

	assert.Equal(t, `SELECT "r"."Id", "r"."CustomerId", "r"."Rating" FROM "Reviews" AS "r" `+
		`WHERE "r"."Rating" = ? OR "r"."Id" = ? ORDER BY "r"."Rating" LIMIT ? OFFSET ?`, compiled.SQL)

	args, release, err := compiled.Bind(nil)
	require.NoError(t, err)
	defer release()
	assert.Equal(t, []any{5, 5, 5, 10}, args)
}

func TestCompileParametersInPlaceholderOrder(t *testing.T) {
	model := newShopModel(t)
	c := query.NewCompiler(model, NewProvider())

	compiled := compile(t, c, q.From(model.FindEntityType("Review")).
		Where(q.GreaterThanEqual(q.Field(q.GlobalScope(), "Rating"), q.Value(4))).
		Take(3))

	assert.Equal(t, `SELECT "r"."Id", "r"."CustomerId", "r"."Rating" FROM "Reviews" AS "r" `+
		`WHERE "r"."Rating" >= ? LIMIT ?`, compiled.SQL)
	require.Len(t, compiled.Parameters, 2)
	assert.Equal(t, "__p_0", compiled.Parameters[0].Name)
	assert.Equal(t, "__p_1", compiled.Parameters[1].Name)
	assert.Equal(t, "-- ?=4 (INTEGER)\n-- ?=3 (INTEGER)\n\n"+compiled.SQL, compiled.ToQueryString())

	args, release, err := compiled.Bind(nil)
	require.NoError(t, err)
	defer release()
	assert.Equal(t, []any{4, 3}, args)
}

func TestCompileGlob(t *testing.T) {
	model := newShopModel(t)
	c := query.NewCompiler(model, NewProvider())

	compiled := compile(t, c, q.From(model.FindEntityType("Customer")).
		Where(q.Call(q.DbFunction("Glob"), nil, q.Field(q.GlobalScope(), "Name"), q.Value("A*"))))

	assert.Equal(t, `SELECT "c"."Id", "c"."Name", "c"."Email", "c"."Address_Street", "c"."Address_City" `+
		`FROM "Customers" AS "c" WHERE glob('A*', "c"."Name")`, compiled.SQL)
}

func TestCompileUntranslatableCall(t *testing.T) {
	model := newShopModel(t)
	c := query.NewCompiler(model, NewProvider())

	built, err := q.From(model.FindEntityType("Customer")).
		Where(q.Call(q.DbFunction("JsonValue"), nil, q.Field(q.GlobalScope(), "Name"), q.Value("$.a"))).
		Build()
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), built, nil)
	var translationErr *query.TranslationError
	require.ErrorAs(t, err, &translationErr)
	assert.EqualError(t, err, "The function 'JsonValue' could not be translated")
}

func TestCompileTemporalIsNotSupported(t *testing.T) {
	model, err := testutils.NewShopModel(NewTypeMappingSource(), true)
	require.NoError(t, err)
	c := query.NewCompiler(model, NewProvider())

	built, err := q.From(model.FindEntityType("Order")).TemporalAll().Build()
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), built, nil)
	assert.ErrorIs(t, err, query.ErrTemporalNotSupported)
}
