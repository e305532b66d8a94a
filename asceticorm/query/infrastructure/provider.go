package query

import (
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

// Provider bundles the store specific strategies of the pipeline.
type Provider interface {
	Name() string
	Dialect() Dialect
	TypeMappingSource() metadata.TypeMappingSource
	QueryRootCreator() QueryRootCreator
	MethodCallTranslators(factory *SqlExpressionFactory) []MethodCallTranslator
}
