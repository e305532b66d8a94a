package query

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/entity"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

var ErrMaterialization = errors.New("row can't be materialized")

type shaperColumn struct {
	index    int
	property *metadata.Property
}

// shaperGroup is the set of columns of one entity of the row.
type shaperGroup struct {
	path       []string
	columns    []shaperColumn
	collection *metadata.Navigation
	jsonIndex  int
}

// Shaper builds entities from the rows of a compiled query.
type Shaper struct {
	root     *metadata.EntityType
	document bool
	width    int
	groups   []shaperGroup
}

func NewShaper(root *metadata.EntityType, projection []ProjectionColumn, document bool) *Shaper {
	s := &Shaper{root: root, document: document, width: len(projection)}
	if document {
		s.width = 1
		return s
	}
	byPath := make(map[string]int)
	for i, c := range projection {
		key := strings.Join(c.Path, ".")
		if c.Collection != nil {
			s.groups = append(s.groups, shaperGroup{path: c.Path, collection: c.Collection, jsonIndex: i})
			continue
		}
		gi, ok := byPath[key]
		if !ok {
			gi = len(s.groups)
			byPath[key] = gi
			s.groups = append(s.groups, shaperGroup{path: c.Path})
		}
		s.groups[gi].columns = append(s.groups[gi].columns, shaperColumn{index: i, property: c.Property})
	}
	return s
}

// Width is the number of columns of a row.
func (s *Shaper) Width() int {
	return s.width
}

// Root is the entity type of the shaped entities.
func (s *Shaper) Root() *metadata.EntityType {
	return s.root
}

// Shape materializes rows in order. Rows repeated by collection joins are
// merged into the entities of the first row with the same key.
func (s *Shaper) Shape(rows [][]any) ([]*entity.Entity, error) {
	var result []*entity.Entity
	seen := make(map[string]*entity.Entity)
	for _, row := range rows {
		if s.document {
			e, err := s.shapeDocument(row)
			if err != nil {
				return nil, err
			}
			result = append(result, e)
			continue
		}
		e, isNew, err := s.shapeRow(row, seen)
		if err != nil {
			return nil, err
		}
		if isNew {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *Shaper) shapeDocument(row []any) (*entity.Entity, error) {
	if len(row) != 1 {
		return nil, errors.Wrapf(ErrMaterialization, "document row has %d columns", len(row))
	}
	text, ok := jsonText(row[0])
	if !ok {
		return nil, errors.Wrapf(ErrMaterialization, "document of type %T", row[0])
	}
	return FromJSON(s.root, gjson.Parse(text))
}

func (s *Shaper) shapeRow(row []any, seen map[string]*entity.Entity) (*entity.Entity, bool, error) {
	nodes := make(map[string]*entity.Entity, len(s.groups))
	isNew := false
	for _, g := range s.groups {
		key := strings.Join(g.path, ".")
		if len(g.path) == 0 && g.collection == nil {
			root := entity.New(s.root)
			if err := fill(root, g.columns, row); err != nil {
				return nil, false, err
			}
			if k, ok := root.Key(); ok {
				if existing, found := seen[k]; found {
					root = existing
				} else {
					seen[k] = root
					isNew = true
				}
			} else {
				isNew = true
			}
			nodes[""] = root
			continue
		}
		parent := nodes[strings.Join(g.path[:len(g.path)-1], ".")]
		if parent == nil {
			continue
		}
		name := g.path[len(g.path)-1]
		if g.collection != nil {
			if _, loaded := parent.Collections[name]; loaded {
				continue
			}
			items, err := embeddedCollection(g.collection.TargetType(), row[g.jsonIndex])
			if err != nil {
				return nil, false, err
			}
			parent.Collections[name] = items
			continue
		}
		nav := parent.Type.FindNavigation(name)
		if nav == nil {
			return nil, false, errors.Wrapf(ErrMaterialization, "'%s' is not a navigation of '%s'", name, parent.Type.Name())
		}
		child := entity.New(nav.TargetType())
		if err := fill(child, g.columns, row); err != nil {
			return nil, false, err
		}
		childKey, hasKey := child.Key()
		if (!hasKey && !nav.IsOwned()) || (nav.IsOwned() && allNil(child.Values)) {
			if !nav.IsCollection() {
				if _, loaded := parent.References[name]; !loaded {
					parent.References[name] = nil
				}
			} else if _, loaded := parent.Collections[name]; !loaded {
				parent.Collections[name] = []*entity.Entity{}
			}
			continue
		}
		if nav.IsCollection() {
			found := false
			for _, item := range parent.Collections[name] {
				if k, _ := item.Key(); k == childKey {
					child, found = item, true
					break
				}
			}
			if !found {
				parent.Collections[name] = append(parent.Collections[name], child)
			}
		} else if existing := parent.References[name]; existing != nil {
			child = existing
		} else {
			parent.References[name] = child
		}
		nodes[key] = child
	}
	return nodes[""], isNew, nil
}

func fill(e *entity.Entity, columns []shaperColumn, row []any) error {
	for _, c := range columns {
		if c.index >= len(row) {
			return errors.Wrapf(ErrMaterialization, "row has %d columns", len(row))
		}
		v, err := ConvertValue(c.property.TypeName(), row[c.index])
		if err != nil {
			return errors.Wrapf(err, "%s.%s", e.Type.Name(), c.property.Name())
		}
		e.Set(c.property.Name(), v)
	}
	return nil
}

func allNil(values map[string]any) bool {
	for _, v := range values {
		if v != nil {
			return false
		}
	}
	return true
}

func embeddedCollection(et *metadata.EntityType, v any) ([]*entity.Entity, error) {
	if v == nil {
		return []*entity.Entity{}, nil
	}
	text, ok := jsonText(v)
	if !ok {
		return nil, errors.Wrapf(ErrMaterialization, "embedded collection of type %T", v)
	}
	parsed := gjson.Parse(text)
	if !parsed.IsArray() {
		return nil, errors.Wrapf(ErrMaterialization, "embedded collection is not an array: %s", text)
	}
	var items []*entity.Entity
	for _, r := range parsed.Array() {
		item, err := FromJSON(et, r)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if items == nil {
		items = []*entity.Entity{}
	}
	return items, nil
}

// FromJSON builds an entity and its owned types from a JSON object.
func FromJSON(et *metadata.EntityType, r gjson.Result) (*entity.Entity, error) {
	if !r.IsObject() {
		return nil, errors.Wrapf(ErrMaterialization, "%s is not an object", et.Name())
	}
	fields := r.Map()
	e := entity.New(et)
	for _, p := range et.Properties() {
		field, ok := fields[p.Name()]
		if !ok {
			continue
		}
		v, err := ConvertJSON(p.TypeName(), field)
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s", et.Name(), p.Name())
		}
		e.Set(p.Name(), v)
	}
	for _, nav := range et.Navigations() {
		if !nav.IsOwned() {
			continue
		}
		field, ok := fields[nav.Name()]
		if !ok || field.Type == gjson.Null {
			if nav.IsCollection() {
				e.Collections[nav.Name()] = []*entity.Entity{}
			} else {
				e.References[nav.Name()] = nil
			}
			continue
		}
		if nav.IsCollection() {
			items, err := embeddedCollection(nav.TargetType(), field.Raw)
			if err != nil {
				return nil, err
			}
			e.Collections[nav.Name()] = items
			continue
		}
		owned, err := FromJSON(nav.TargetType(), field)
		if err != nil {
			return nil, err
		}
		e.References[nav.Name()] = owned
	}
	return e, nil
}

func jsonText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	}
	return "", false
}
