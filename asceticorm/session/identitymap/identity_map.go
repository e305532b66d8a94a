// Package identitymap ensures each entity is materialized once per scope.
package identitymap

import (
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/entity"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/utils/lru"
)

// IsolationLevel controls how the identity map caches objects.
type IsolationLevel int

const (
	ReadUncommitted IsolationLevel = iota // Identity map is disabled
	ReadCommitted                         // Identity map is disabled
	RepeatableReads                       // Resolves existent objects only
	Serializable                          // Resolves both existent and nonexistent objects
)

// IdentityMap tracks entity instances so that each one is resolved to a
// single instance.
type IdentityMap struct {
	cache    *lru.Cache[any, any]
	strategy isolationStrategy
}

// New returns a map holding at most cacheSize objects, zero means
// unbounded.
func New(cacheSize int, level IsolationLevel) *IdentityMap {
	m := &IdentityMap{cache: lru.New[any, any](cacheSize)}
	m.SetIsolationLevel(level)
	return m
}

func (m *IdentityMap) SetIsolationLevel(level IsolationLevel) {
	switch level {
	case ReadUncommitted, ReadCommitted:
		m.strategy = disabledStrategy{}
	case RepeatableReads:
		m.strategy = &repeatableReadsStrategy{cache: m.cache}
	default:
		m.strategy = &serializableStrategy{cache: m.cache}
	}
}

func (m *IdentityMap) SetSize(size int) {
	m.cache.SetSize(size)
}

func (m *IdentityMap) Len() int {
	return m.cache.Len()
}

func (m *IdentityMap) Clear() {
	m.cache.Clear()
}

// Add stores a found object in the identity map.
func Add[V any](m *IdentityMap, key IdentityKey[V], value V) {
	m.strategy.add(key, value)
}

// AddAbsent records that the key was queried but does not exist.
// Only effective with Serializable isolation level.
func AddAbsent[V any](m *IdentityMap, key IdentityKey[V]) {
	m.strategy.addAbsent(key)
}

// Get retrieves a previously stored object by its key.
func Get[V any](m *IdentityMap, key IdentityKey[V]) (V, error) {
	result, err := m.strategy.get(key)
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Has checks whether the key exists in the identity map.
func Has[V any](m *IdentityMap, key IdentityKey[V]) bool {
	return m.strategy.has(key)
}

// Remove removes an object from the identity map.
func Remove[V any](m *IdentityMap, key IdentityKey[V]) {
	m.cache.Remove(key)
}

// Resolve returns the instance already stored under the key of e, or stores
// e and returns it. Keyless entities are returned as is.
func Resolve(m *IdentityMap, e *entity.Entity) (*entity.Entity, bool) {
	key, ok := KeyOf(e)
	if !ok {
		return e, false
	}
	if existing, err := Get[*entity.Entity](m, key); err == nil {
		return existing, true
	}
	Add[*entity.Entity](m, key, e)
	return e, false
}
