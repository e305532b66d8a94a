package metadata

import "fmt"

// TypeMapping binds a type to a store type.
type TypeMapping struct {
	TypeName  string
	StoreType string
	Kind      ScalarKind
	Size      int
}

func (m *TypeMapping) String() string {
	if m == nil {
		return "<none>"
	}
	if m.Size > 0 {
		return fmt.Sprintf("%s(%d)", m.StoreType, m.Size)
	}
	return m.StoreType
}

type TypeMappingSource interface {
	// FindMapping returns nil when the type has no store mapping.
	FindMapping(typeName string) *TypeMapping
}

// MappingTable is a TypeMappingSource over a fixed table.
type MappingTable map[string]*TypeMapping

func (t MappingTable) FindMapping(typeName string) *TypeMapping {
	return t[typeName]
}

// NewMappingTable builds a table from type name to store type pairs.
func NewMappingTable(storeTypes map[string]string) MappingTable {
	t := make(MappingTable, len(storeTypes))
	for typeName, storeType := range storeTypes {
		t[typeName] = &TypeMapping{
			TypeName:  typeName,
			StoreType: storeType,
			Kind:      builtinScalars[typeName],
		}
	}
	return t
}

// ParameterBindingFactory produces service values injected into entities
// instead of being read from the store.
type ParameterBindingFactory interface {
	CanBind(typeName string) bool
	ServiceType() string
}

type ServiceBindingFactory struct {
	TypeName string
}

func (f ServiceBindingFactory) CanBind(typeName string) bool {
	return f.TypeName == typeName
}

func (f ServiceBindingFactory) ServiceType() string {
	return f.TypeName
}

type ParameterBindingFactories struct {
	factories []ParameterBindingFactory
}

func NewParameterBindingFactories(factories ...ParameterBindingFactory) *ParameterBindingFactories {
	return &ParameterBindingFactories{factories: factories}
}

// FindFactory returns nil when no factory binds the type.
func (p *ParameterBindingFactories) FindFactory(typeName string) ParameterBindingFactory {
	if p == nil {
		return nil
	}
	for _, f := range p.factories {
		if f.CanBind(typeName) {
			return f
		}
	}
	return nil
}
