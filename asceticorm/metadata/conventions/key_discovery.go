package conventions

import (
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

// KeyDiscoveryConvention picks "Id" or "<Type>Id" as the primary key. Owned
// reference types without one are keyed by their ownership foreign key.
type KeyDiscoveryConvention struct{}

func (KeyDiscoveryConvention) Name() string {
	return "KeyDiscoveryConvention"
}

func (KeyDiscoveryConvention) ProcessEntityTypeAdded(ctx *BuildContext, et *metadata.EntityType) error {
	if et.FindPrimaryKey() != nil {
		return nil
	}
	for _, name := range keyNames(et.ShortName()) {
		if p := et.FindProperty(name); p != nil {
			et.SetPrimaryKey(p)
			return nil
		}
	}
	if fk := et.Ownership(); fk != nil && !et.IsCollectionOwned() {
		et.SetPrimaryKey(fk.Properties()...)
	}
	return nil
}

func keyNames(typeName string) []string {
	return []string{"Id", typeName + "Id"}
}

// keyTypeName guesses the key type of a type that has not been processed yet.
func keyTypeName(desc *metadata.TypeDescriptor) string {
	for _, name := range keyNames(desc.Name) {
		if m, ok := desc.FindMember(name); ok {
			return m.Type
		}
	}
	return metadata.TypeInt
}
