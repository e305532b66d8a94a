package query

import (
	"fmt"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

// QueryRoot is the starting node of a query, bound to one entity type and
// optionally qualified temporally. It is a value: qualifying a root
// returns a new one.
type QueryRoot struct {
	entityType *metadata.EntityType
	temporal   TemporalOperation
}

func Root(entityType *metadata.EntityType) QueryRoot {
	return QueryRoot{entityType: entityType}
}

// TemporalQueryRoot returns a root qualified with op.
func TemporalQueryRoot(entityType *metadata.EntityType, op TemporalOperation) QueryRoot {
	return QueryRoot{entityType: entityType, temporal: op}
}

func (r QueryRoot) EntityType() *metadata.EntityType {
	return r.entityType
}

func (r QueryRoot) Temporal() TemporalOperation {
	return r.temporal
}

func (r QueryRoot) IsTemporal() bool {
	return r.temporal != nil
}

func (r QueryRoot) IsZero() bool {
	return r.entityType == nil
}

func (r QueryRoot) WithTemporal(op TemporalOperation) QueryRoot {
	r.temporal = op
	return r
}

// Equal compares the entity type and the whole temporal operation.
func (r QueryRoot) Equal(other QueryRoot) bool {
	return r.entityType == other.entityType && TemporalEqual(r.temporal, other.temporal)
}

func (r QueryRoot) String() string {
	name := "<nil>"
	if r.entityType != nil {
		name = r.entityType.Name()
	}
	s := fmt.Sprintf("DbSet<%s>()", name)
	if r.temporal != nil {
		s += "." + r.temporal.String()
	}
	return s
}
