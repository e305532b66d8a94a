package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/utils/testutils"
)

func TestFingerprintIsLengthPrefixed(t *testing.T) {
	assert.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
	assert.Equal(t, Fingerprint("a", "b"), Fingerprint("a", "b"))
	assert.Len(t, Fingerprint(), 64)
}

func TestQueryFingerprint(t *testing.T) {
	model, err := testutils.NewShopModel(testMappings, true)
	require.NoError(t, err)
	order := model.FindEntityType("Order")
	opts := fingerprintOptions{dialect: "ansi", modelVersion: model.Version(), precompiled: true}
	of := func(b *q.QueryBuilder, params map[string]any, opts fingerprintOptions) string {
		return queryFingerprint(build(t, b), params, opts)
	}
	may, june := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	base := of(q.From(order), nil, opts)
	assert.Equal(t, base, of(q.From(order), nil, opts))
	assert.NotEqual(t, base, of(q.From(order).AsNoTracking(), nil, opts))
	assert.NotEqual(t, base, of(q.From(order).OrderByDescending(q.Field(q.GlobalScope(), "Id")), nil, opts))

	assert.Equal(t, of(q.From(order).TemporalAsOf(may), nil, opts), of(q.From(order).TemporalAsOf(june), nil, opts))
	assert.NotEqual(t, of(q.From(order).TemporalAsOf(may), nil, opts), of(q.From(order).TemporalAll(), nil, opts))

	inlined := opts
	inlined.precompiled = false
	assert.NotEqual(t, of(q.From(order).TemporalAsOf(may), nil, inlined), of(q.From(order).TemporalAsOf(june), nil, inlined))

	byParam := q.From(order).Where(q.Equal(q.Field(q.GlobalScope(), "Note"), q.Parameter("p")))
	assert.Equal(t, of(byParam, map[string]any{"p": "a"}, opts), of(byParam, map[string]any{"p": "b"}, opts))
	assert.NotEqual(t, of(byParam, map[string]any{"p": "a"}, opts), of(byParam, map[string]any{"p": nil}, opts))

	other := opts
	other.dialect = "sqlite"
	assert.NotEqual(t, base, of(q.From(order), nil, other))
	other = opts
	other.useRelationalNulls = true
	assert.NotEqual(t, base, of(q.From(order), nil, other))
}
