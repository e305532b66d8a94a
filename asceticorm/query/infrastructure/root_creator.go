package query

import (
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
)

// QueryRootCreator creates the root of a query or of a navigation
// expanded from source.
type QueryRootCreator interface {
	// CreateQueryRoot creates the root for entityType. source is nil for
	// the roots of top-level queries.
	CreateQueryRoot(entityType *metadata.EntityType, source *q.QueryRoot) (q.QueryRoot, error)
}

// RelationalQueryRootCreator creates plain roots. It is used by the
// providers without temporal tables.
type RelationalQueryRootCreator struct{}

func (RelationalQueryRootCreator) CreateQueryRoot(entityType *metadata.EntityType, _ *q.QueryRoot) (q.QueryRoot, error) {
	return q.Root(entityType), nil
}
