package sqlserver

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
)

var (
	ErrNonTemporalNavigation = errors.New("navigation to a non-temporal entity")
	ErrNavigationExpansion   = errors.New("navigation expansion of a non AsOf operation")
	ErrTemporalRootCreation  = errors.New("temporal query root can't be created")
)

// RootCreationError carries the entity type a root could not be created
// for.
type RootCreationError struct {
	Reason     error
	EntityType string
}

func (e *RootCreationError) Error() string {
	switch e.Reason {
	case ErrNonTemporalNavigation:
		return fmt.Sprintf("Temporal query is trying to use navigation to an entity '%s' which itself doesn't map to temporal table. "+
			"Either map the entity to temporal table or use join manually to access it.", e.EntityType)
	case ErrNavigationExpansion:
		return "Navigation expansion is only supported for 'AsOf' temporal operation. For other operations use join manually."
	}
	return fmt.Sprintf("Couldn't create a temporal query root for the entity type: '%s'.", e.EntityType)
}

func (e *RootCreationError) Unwrap() error {
	return e.Reason
}

// QueryRootCreator propagates the temporal operation of a root to the
// roots of its navigations.
type QueryRootCreator struct{}

func (QueryRootCreator) CreateQueryRoot(entityType *metadata.EntityType, source *q.QueryRoot) (q.QueryRoot, error) {
	if source != nil && source.IsTemporal() {
		if !entityType.IsTemporal() {
			return q.QueryRoot{}, &RootCreationError{Reason: ErrNonTemporalNavigation, EntityType: entityType.Name()}
		}
		if _, ok := source.Temporal().(q.AsOf); !ok {
			return q.QueryRoot{}, &RootCreationError{Reason: ErrNavigationExpansion, EntityType: entityType.Name()}
		}
		return q.TemporalQueryRoot(entityType, source.Temporal()), nil
	}
	if entityType.IsTemporal() && source == nil {
		return q.QueryRoot{}, &RootCreationError{Reason: ErrTemporalRootCreation, EntityType: entityType.Name()}
	}
	return q.Root(entityType), nil
}
