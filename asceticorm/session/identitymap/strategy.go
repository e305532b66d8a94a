package identitymap

import "github.com/krew-solutions/ascetic-orm-go/asceticorm/utils/lru"

type nonexistentObject struct{}

var nonexistent = &nonexistentObject{}

type isolationStrategy interface {
	add(key any, value any)
	addAbsent(key any)
	get(key any) (any, error)
	has(key any) bool
}

// disabledStrategy backs ReadUncommitted and ReadCommitted.
type disabledStrategy struct{}

func (disabledStrategy) add(any, any)  {}
func (disabledStrategy) addAbsent(any) {}
func (disabledStrategy) has(any) bool  { return false }
func (disabledStrategy) get(any) (any, error) {
	return nil, ErrKeyNotFound
}

// repeatableReadsStrategy caches existent objects only.
type repeatableReadsStrategy struct {
	cache *lru.Cache[any, any]
}

func (s *repeatableReadsStrategy) add(key any, value any) {
	s.cache.Add(key, value)
}

func (s *repeatableReadsStrategy) addAbsent(any) {}

func (s *repeatableReadsStrategy) get(key any) (any, error) {
	value, ok := s.cache.Get(key)
	if !ok || value == nonexistent {
		return nil, ErrKeyNotFound
	}
	return value, nil
}

func (s *repeatableReadsStrategy) has(key any) bool {
	value, ok := s.cache.Get(key)
	return ok && value != nonexistent
}

// serializableStrategy caches both existent and nonexistent objects.
type serializableStrategy struct {
	cache *lru.Cache[any, any]
}

func (s *serializableStrategy) add(key any, value any) {
	s.cache.Add(key, value)
}

func (s *serializableStrategy) addAbsent(key any) {
	s.cache.Add(key, nonexistent)
}

func (s *serializableStrategy) get(key any) (any, error) {
	value, ok := s.cache.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	if value == nonexistent {
		return nil, ErrObjectNotFound
	}
	return value, nil
}

func (s *serializableStrategy) has(key any) bool {
	return s.cache.Has(key)
}
