// Package sqlite is the SQLite provider.
package sqlite

import (
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	query "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/infrastructure"
)

type Provider struct {
	dialect  *Dialect
	mappings metadata.MappingTable
}

func NewProvider() *Provider {
	return &Provider{dialect: NewDialect(), mappings: NewTypeMappingSource()}
}

func (p *Provider) Name() string {
	return p.dialect.Name()
}

func (p *Provider) Dialect() query.Dialect {
	return p.dialect
}

func (p *Provider) TypeMappingSource() metadata.TypeMappingSource {
	return p.mappings
}

func (p *Provider) QueryRootCreator() query.QueryRootCreator {
	return query.RelationalQueryRootCreator{}
}

func (p *Provider) MethodCallTranslators(factory *query.SqlExpressionFactory) []query.MethodCallTranslator {
	return []query.MethodCallTranslator{
		NewJsonFunctionsTranslator(factory),
		NewFunctionsTranslator(factory),
		query.NewStringMethodTranslator(factory, query.StringFunctionNames{
			Upper:  "upper",
			Lower:  "lower",
			Length: "length",
			Trim:   "trim",
		}),
	}
}
