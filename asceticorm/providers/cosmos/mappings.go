package cosmos

import (
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

// NewTypeMappingSource maps types to the JSON type of their values.
func NewTypeMappingSource() metadata.MappingTable {
	return metadata.NewMappingTable(map[string]string{
		metadata.TypeString:  "string",
		metadata.TypeInt:     "number",
		metadata.TypeInt32:   "number",
		metadata.TypeInt64:   "number",
		metadata.TypeFloat32: "number",
		metadata.TypeFloat64: "number",
		metadata.TypeDecimal: "number",
		metadata.TypeBool:    "boolean",
		metadata.TypeTime:    "string",
		metadata.TypeUUID:    "string",
		metadata.TypeBytes:   "string",
	})
}
