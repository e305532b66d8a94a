package cosmos

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

func newFamilyModel(t *testing.T) *metadata.Model {
	t.Helper()
	model, err := testutils.NewFamilyModel(NewTypeMappingSource())
	require.NoError(t, err)
	return model
}

func TestCompileOwnedNavigations(t *testing.T) {
	model := newFamilyModel(t)
	c := query.NewCompiler(model, NewProvider())

	built, err := q.From(model.FindEntityType("Family")).
		Where(q.And(
			q.Equal(q.Field(q.Object(q.GlobalScope(), "Address"), "City"), q.Value("Seattle")),
			q.Wildcard(q.GlobalScope(), "Children", q.GreaterThan(q.Field(q.Item(), "Grade"), q.Value(5))),
		)).
		Build()
	require.NoError(t, err)
	compiled, err := c.Compile(context.Background(), built, nil)
	require.NoError(t, err)

	assert.Equal(t, `SELECT c FROM root c WHERE c["Discriminator"] = @__discriminator `+
		`AND c["Address"]["City"] = @__p_0 `+
		`AND EXISTS (SELECT VALUE child FROM child IN c["Children"] WHERE child["Grade"] > @__p_1)`, compiled.SQL)

	names := make([]string, 0, len(compiled.Parameters))
	for _, p := range compiled.Parameters {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"__discriminator", "__p_0", "__p_1"}, names)
	require.Len(t, compiled.LiftedConstants, 1)
	v, err := compiled.LiftedConstants[0].Resolve(&q.LiftContext{Root: compiled.Root})
	require.NoError(t, err)
	assert.Equal(t, "Family", v)
}

func TestCompileNullComparisonAndPaging(t *testing.T) {
	model := newFamilyModel(t)
	c := query.NewCompiler(model, NewProvider())

	built, err := q.From(model.FindEntityType("Family")).
		Where(q.Equal(q.Field(q.Object(q.GlobalScope(), "Address"), "State"), q.Value(nil))).
		Take(10).
		Build()
	require.NoError(t, err)
	compiled, err := c.Compile(context.Background(), built, nil)
	require.NoError(t, err)

	assert.Equal(t, `SELECT TOP @__p_0 c FROM root c WHERE c["Discriminator"] = @__discriminator `+
		`AND c["Address"]["State"] = null`, compiled.SQL)
}

func TestCompileRejectsIncludes(t *testing.T) {
	model := newFamilyModel(t)
	c := query.NewCompiler(model, NewProvider())

	built, err := q.From(model.FindEntityType("Family")).Include("Children").Build()
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), built, nil)
	assert.ErrorIs(t, err, query.ErrUnsupportedInclude)
}

func TestDialect(t *testing.T) {
	d := NewDialect()
	assert.Equal(t, `c["Address"]["City"]`, d.Column("c", []string{"Address", "City"}))
	assert.Equal(t, "c", d.Column("c", nil))
	_, suffix := d.Paging("@s", "", false)
	assert.Equal(t, " OFFSET @s LIMIT 2147483647", suffix)
	literal, err := d.Literal(`say "hi"`)
	require.NoError(t, err)
	assert.Equal(t, `"say \"hi\""`, literal)
	assert.True(t, d.IsDocument())
}
