package metadata

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

type ScalarKind string

const (
	KindNone    ScalarKind = ""
	KindString  ScalarKind = "string"
	KindInt     ScalarKind = "int"
	KindInt64   ScalarKind = "int64"
	KindFloat   ScalarKind = "float"
	KindBool    ScalarKind = "bool"
	KindTime    ScalarKind = "time"
	KindBytes   ScalarKind = "bytes"
	KindUUID    ScalarKind = "uuid"
	KindDecimal ScalarKind = "decimal"
)

// Well known scalar type names.
const (
	TypeString  = "string"
	TypeInt     = "int"
	TypeInt32   = "int32"
	TypeInt64   = "int64"
	TypeFloat32 = "float32"
	TypeFloat64 = "float64"
	TypeBool    = "bool"
	TypeTime    = "time.Time"
	TypeBytes   = "[]byte"
	TypeUUID    = "uuid.UUID"
	TypeDecimal = "decimal"
)

var ErrUnknownType = errors.New("metadata: unknown type")

// TypeDescriptor describes a CLR-like type of the object graph.
type TypeDescriptor struct {
	Name    string             `yaml:"name"`
	Scalar  bool               `yaml:"scalar"`
	Kind    ScalarKind         `yaml:"kind"`
	Members []MemberDescriptor `yaml:"members"`
}

func (t TypeDescriptor) FindMember(name string) (MemberDescriptor, bool) {
	for _, m := range t.Members {
		if m.Name == name {
			return m, true
		}
	}
	return MemberDescriptor{}, false
}

// IsValidEntityType reports whether the type can back an entity type.
// Builtin scalars cannot.
func (t TypeDescriptor) IsValidEntityType() bool {
	return !t.Scalar
}

// MemberIndex is the declaration position of the member, or -1.
func (t TypeDescriptor) MemberIndex(name string) int {
	for i, m := range t.Members {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// MemberDescriptor describes a property of a type. Type is the element type
// name when Sequence is set.
type MemberDescriptor struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Sequence bool   `yaml:"sequence"`
	Nullable bool   `yaml:"nullable"`
	Readable bool   `yaml:"readable"`
	Writable bool   `yaml:"writable"`
	Public   bool   `yaml:"public"`
}

// Member returns a public read-write member.
func Member(name, typeName string) MemberDescriptor {
	return MemberDescriptor{Name: name, Type: typeName, Readable: true, Writable: true, Public: true}
}

// SequenceMember returns a public read-write sequence member.
func SequenceMember(name, elementType string) MemberDescriptor {
	m := Member(name, elementType)
	m.Sequence = true
	return m
}

type TypeCatalog struct {
	mu    sync.RWMutex
	types map[string]*TypeDescriptor
}

func NewTypeCatalog() *TypeCatalog {
	c := &TypeCatalog{types: make(map[string]*TypeDescriptor)}
	for name, kind := range builtinScalars {
		c.types[name] = &TypeDescriptor{Name: name, Scalar: true, Kind: kind}
	}
	return c
}

var builtinScalars = map[string]ScalarKind{
	TypeString:  KindString,
	TypeInt:     KindInt,
	TypeInt32:   KindInt,
	TypeInt64:   KindInt64,
	TypeFloat32: KindFloat,
	TypeFloat64: KindFloat,
	TypeBool:    KindBool,
	TypeTime:    KindTime,
	TypeBytes:   KindBytes,
	TypeUUID:    KindUUID,
	TypeDecimal: KindDecimal,
}

func (c *TypeCatalog) Register(t TypeDescriptor) error {
	if t.Name == "" {
		return errors.New("metadata: type name is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.types[t.Name]; ok && existing.Scalar {
		return errors.Errorf("metadata: type %q is a builtin scalar", t.Name)
	}
	c.types[t.Name] = &t
	return nil
}

func (c *TypeCatalog) Lookup(name string) (*TypeDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.types[name]
	return t, ok
}

func (c *TypeCatalog) MustLookup(name string) (*TypeDescriptor, error) {
	t, ok := c.Lookup(name)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "%q", name)
	}
	return t, nil
}

// Types returns the non-scalar types ordered by name.
func (c *TypeCatalog) Types() []*TypeDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]*TypeDescriptor, 0, len(c.types))
	for _, t := range c.types {
		if !t.Scalar {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
