package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/utils/testutils"
)

var testMappings = metadata.NewMappingTable(map[string]string{
	metadata.TypeString:  "text",
	metadata.TypeInt:     "integer",
	metadata.TypeInt32:   "integer",
	metadata.TypeInt64:   "bigint",
	metadata.TypeFloat32: "real",
	metadata.TypeFloat64: "double",
	metadata.TypeBool:    "boolean",
	metadata.TypeTime:    "timestamp",
	metadata.TypeBytes:   "blob",
	metadata.TypeUUID:    "uuid",
	metadata.TypeDecimal: "decimal",
})

type testProvider struct{}

func (testProvider) Name() string {
	return "ansi"
}

func (testProvider) Dialect() Dialect {
	return BaseDialect{}
}

func (testProvider) TypeMappingSource() metadata.TypeMappingSource {
	return testMappings
}

func (testProvider) QueryRootCreator() QueryRootCreator {
	return RelationalQueryRootCreator{}
}

func (testProvider) MethodCallTranslators(factory *SqlExpressionFactory) []MethodCallTranslator {
	return []MethodCallTranslator{
		NewStringMethodTranslator(factory, StringFunctionNames{
			Upper:  "UPPER",
			Lower:  "LOWER",
			Length: "LENGTH",
			Trim:   "TRIM",
		}),
	}
}

func newShopModel(t *testing.T) *metadata.Model {
	t.Helper()
	model, err := testutils.NewShopModel(testMappings, false)
	require.NoError(t, err)
	return model
}

func build(t *testing.T, b *q.QueryBuilder) *q.Query {
	t.Helper()
	built, err := b.Build()
	require.NoError(t, err)
	return built
}

func compile(t *testing.T, c *Compiler, b *q.QueryBuilder, parameters map[string]any) *CompiledQuery {
	t.Helper()
	compiled, err := c.Compile(context.Background(), build(t, b), parameters)
	require.NoError(t, err)
	return compiled
}

const (
	customerColumns = `"c"."Id", "c"."Name", "c"."Email", "c"."Address_Street", "c"."Address_City"`
	orderColumns    = `"o"."Id", "o"."CustomerId", "o"."Total", "o"."Note", "o"."PlacedAt", "o"."Lines"`
)
