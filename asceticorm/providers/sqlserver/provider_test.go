package sqlserver

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	query "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/infrastructure"
)

var pointInTime = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func compile(t *testing.T, c *query.Compiler, b *q.QueryBuilder) *query.CompiledQuery {
	t.Helper()
	built, err := b.Build()
	require.NoError(t, err)
	compiled, err := c.Compile(context.Background(), built, nil)
	require.NoError(t, err)
	return compiled
}

func TestCompileTemporalAsOfWithCollectionNavigation(t *testing.T) {
	model := newShopModel(t)
	c := query.NewCompiler(model, NewProvider())

	compiled := compile(t, c, q.From(model.FindEntityType("Customer")).
		TemporalAsOf(pointInTime).
		Where(q.Wildcard(q.GlobalScope(), "Orders", q.GreaterThan(q.Field(q.Item(), "Total"), q.Value(100.0)))))

	assert.Equal(t, "SELECT [c].[Id], [c].[Name], [c].[Email], [c].[PeriodStart], [c].[PeriodEnd], "+
		"[c].[Address_Street], [c].[Address_City] "+
		"FROM [Customers] FOR SYSTEM_TIME AS OF @__pointInTime AS [c] "+
		"WHERE EXISTS (SELECT 1 FROM [Orders] FOR SYSTEM_TIME AS OF @__pointInTime AS [o] "+
		"WHERE [o].[CustomerId] = [c].[Id] AND [o].[Total] > @__p_0)", compiled.SQL)
	assert.Equal(t, q.NoTracking, compiled.Tracking)

	g := goldie.New(t)
	g.Assert(t, "temporal_as_of", []byte(compiled.ToQueryString()))

	args, release, err := compiled.Bind(nil)
	require.NoError(t, err)
	defer release()
	assert.Equal(t, []any{sql.Named("__pointInTime", pointInTime), sql.Named("__p_0", 100.0)}, args)
}

func TestCompileTemporalReusesPlanForOtherPointInTime(t *testing.T) {
	model := newShopModel(t)
	c := query.NewCompiler(model, NewProvider())
	customer := model.FindEntityType("Customer")

	first := compile(t, c, q.From(customer).TemporalAsOf(pointInTime))
	later := pointInTime.AddDate(0, 1, 0)
	second := compile(t, c, q.From(customer).TemporalAsOf(later))

	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.SQL, second.SQL)
	assert.Equal(t, 1, c.PlanCacheLen())

	args, release, err := second.Bind(nil)
	require.NoError(t, err)
	defer release()
	assert.Equal(t, []any{sql.Named("__pointInTime", later)}, args)
}

func TestCompileTemporalNavigationErrors(t *testing.T) {
	model := newShopModel(t)
	c := query.NewCompiler(model, NewProvider())
	customer := model.FindEntityType("Customer")

	built, err := q.From(customer).
		TemporalAsOf(pointInTime).
		Where(q.Wildcard(q.GlobalScope(), "Reviews", q.GreaterThan(q.Field(q.Item(), "Rating"), q.Value(3)))).
		Build()
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), built, nil)
	assert.ErrorIs(t, err, ErrNonTemporalNavigation)

	built, err = q.From(customer).
		TemporalAll().
		Where(q.Wildcard(q.GlobalScope(), "Orders", q.GreaterThan(q.Field(q.Item(), "Total"), q.Value(1.0)))).
		Build()
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), built, nil)
	assert.ErrorIs(t, err, ErrNavigationExpansion)
}

func TestCompileReferenceNavigationJoinsTemporalTable(t *testing.T) {
	model := newShopModel(t)
	c := query.NewCompiler(model, NewProvider())

	compiled := compile(t, c, q.From(model.FindEntityType("Order")).
		TemporalAsOf(pointInTime).
		Where(q.Equal(q.Field(q.Object(q.GlobalScope(), "Customer"), "Name"), q.Value("Ann"))))

	assert.Equal(t, "SELECT [o].[Id], [o].[CustomerId], [o].[Total], [o].[Note], [o].[PlacedAt], "+
		"[o].[PeriodStart], [o].[PeriodEnd], [o].[Lines] "+
		"FROM [Orders] FOR SYSTEM_TIME AS OF @__pointInTime AS [o] "+
		"LEFT JOIN [Customers] FOR SYSTEM_TIME AS OF @__pointInTime AS [c] ON [o].[CustomerId] = [c].[Id] "+
		"WHERE [c].[Name] = @__p_0", compiled.SQL)
}

func TestCompilePaging(t *testing.T) {
	model := newShopModel(t)
	c := query.NewCompiler(model, NewProvider())
	review := model.FindEntityType("Review")

	compiled := compile(t, c, q.From(review).Take(5))
	assert.Equal(t, "SELECT TOP(@__p_0) [r].[Id], [r].[CustomerId], [r].[Rating] FROM [Reviews] AS [r]", compiled.SQL)

	compiled = compile(t, c, q.From(review).OrderBy(q.Field(q.GlobalScope(), "Rating")).Skip(10).Take(5))
	assert.Equal(t, "SELECT [r].[Id], [r].[CustomerId], [r].[Rating] FROM [Reviews] AS [r] "+
		"ORDER BY [r].[Rating] OFFSET @__p_0 ROWS FETCH NEXT @__p_1 ROWS ONLY", compiled.SQL)
}

func TestCompileJsonValue(t *testing.T) {
	model := newShopModel(t)
	c := query.NewCompiler(model, NewProvider())

	compiled := compile(t, c, q.From(model.FindEntityType("Review")).
		Where(q.Equal(
			q.Call(q.DbFunction("JsonValue"), nil, q.Field(q.GlobalScope(), "Rating"), q.Value("$.score")),
			q.Value("5"),
		)))
	assert.Equal(t, "SELECT [r].[Id], [r].[CustomerId], [r].[Rating] FROM [Reviews] AS [r] "+
		"WHERE JSON_VALUE([r].[Rating], N'$.score') = @__p_0", compiled.SQL)
}
