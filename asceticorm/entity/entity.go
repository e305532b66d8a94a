// Package entity holds materialized entity instances.
package entity

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
)

// Entity is an instance of an entity type: property values by name,
// loaded references and collections.
type Entity struct {
	Type        *metadata.EntityType
	Values      map[string]any
	References  map[string]*Entity
	Collections map[string][]*Entity
}

func New(t *metadata.EntityType) *Entity {
	return &Entity{
		Type:        t,
		Values:      make(map[string]any),
		References:  make(map[string]*Entity),
		Collections: make(map[string][]*Entity),
	}
}

// Get implements query.Context, so that predicates can be evaluated
// against loaded entities.
func (e *Entity) Get(key string) (any, error) {
	if v, ok := e.Values[key]; ok {
		return v, nil
	}
	if r, ok := e.References[key]; ok {
		if r == nil {
			return nil, nil
		}
		return r, nil
	}
	if c, ok := e.Collections[key]; ok {
		items := make([]q.Context, len(c))
		for i, item := range c {
			items[i] = item
		}
		return items, nil
	}
	if e.Type != nil {
		if e.Type.FindProperty(key) != nil {
			return nil, nil
		}
		if nav := e.Type.FindNavigation(key); nav != nil {
			if nav.IsCollection() {
				return []q.Context{}, nil
			}
			return nil, nil
		}
	}
	return nil, errors.Wrap(q.ErrKeyNotFound, key)
}

func (e *Entity) Set(name string, value any) {
	e.Values[name] = value
}

// Key returns the primary key values joined into a string. It is false
// when the type has no key or a key value is NULL.
func (e *Entity) Key() (string, bool) {
	if e.Type == nil {
		return "", false
	}
	pk := e.Type.FindPrimaryKey()
	if pk == nil {
		return "", false
	}
	parts := make([]string, 0, len(pk.Properties()))
	for _, p := range pk.Properties() {
		v, ok := e.Values[p.Name()]
		if !ok || v == nil {
			return "", false
		}
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	return strings.Join(parts, "|"), true
}

// Snapshot copies the property values.
func (e *Entity) Snapshot() map[string]any {
	snapshot := make(map[string]any, len(e.Values))
	for k, v := range e.Values {
		snapshot[k] = v
	}
	return snapshot
}

// Changed returns the names of the properties which differ from snapshot,
// sorted.
func (e *Entity) Changed(snapshot map[string]any) []string {
	var names []string
	for k, v := range e.Values {
		if old, ok := snapshot[k]; !ok || !reflect.DeepEqual(old, v) {
			names = append(names, k)
		}
	}
	for k := range snapshot {
		if _, ok := e.Values[k]; !ok {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

func (e *Entity) String() string {
	name := "<nil>"
	if e.Type != nil {
		name = e.Type.Name()
	}
	key, _ := e.Key()
	return fmt.Sprintf("%s(%s)", name, key)
}

// Map converts the graph rooted at e into nested maps. A reference loaded
// as absent becomes nil.
func (e *Entity) Map() map[string]any {
	result := make(map[string]any, len(e.Values)+len(e.References)+len(e.Collections))
	for k, v := range e.Values {
		result[k] = v
	}
	for k, r := range e.References {
		if r == nil {
			result[k] = nil
			continue
		}
		result[k] = r.Map()
	}
	for k, c := range e.Collections {
		items := make([]map[string]any, len(c))
		for i, item := range c {
			items[i] = item.Map()
		}
		result[k] = items
	}
	return result
}
