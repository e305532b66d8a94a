package identitymap

import (
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/entity"
)

// IdentityKey is a marker interface that associates a key with its value type.
// Embed IdentityKeyBase[V] into your key structs to implement this interface.
type IdentityKey[V any] interface {
	IsIdentityKey(*V)
}

// IdentityKeyBase is an embeddable struct that implements IdentityKey[V].
type IdentityKeyBase[V any] struct{}

func (IdentityKeyBase[V]) IsIdentityKey(*V) {}

// EntityKey identifies a materialized entity by its type and primary key.
type EntityKey struct {
	IdentityKeyBase[*entity.Entity]
	Type string
	Key  string
}

// KeyOf returns the key of e. It is false for keyless entities and
// entities with a NULL key value.
func KeyOf(e *entity.Entity) (EntityKey, bool) {
	key, ok := e.Key()
	if !ok {
		return EntityKey{}, false
	}
	return EntityKey{Type: e.Type.Name(), Key: key}, true
}
