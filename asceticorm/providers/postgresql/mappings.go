package postgresql

import (
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

func NewTypeMappingSource() metadata.MappingTable {
	return metadata.NewMappingTable(map[string]string{
		metadata.TypeString:  "text",
		metadata.TypeInt:     "integer",
		metadata.TypeInt32:   "integer",
		metadata.TypeInt64:   "bigint",
		metadata.TypeFloat32: "real",
		metadata.TypeFloat64: "double precision",
		metadata.TypeBool:    "boolean",
		metadata.TypeTime:    "timestamp with time zone",
		metadata.TypeBytes:   "bytea",
		metadata.TypeUUID:    "uuid",
		metadata.TypeDecimal: "numeric",
	})
}
