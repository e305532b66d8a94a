// Package cosmos is the document provider. A query reads the documents of
// one container, owned types are nested objects and arrays of the
// document.
package cosmos

import (
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata/conventions"
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
		query.NewStringMethodTranslator(factory, query.StringFunctionNames{
			Upper:  "UPPER",
			Lower:  "LOWER",
			Length: "LENGTH",
			Trim:   "TRIM",
		}),
	}
}

// Conventions are the conventions models of this provider are built with.
func (p *Provider) Conventions() []conventions.Convention {
	return conventions.CosmosConventions()
}
