package sqlite

import (
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

func NewTypeMappingSource() metadata.MappingTable {
	return metadata.NewMappingTable(map[string]string{
		metadata.TypeString:  "TEXT",
		metadata.TypeInt:     "INTEGER",
		metadata.TypeInt32:   "INTEGER",
		metadata.TypeInt64:   "INTEGER",
		metadata.TypeFloat32: "REAL",
		metadata.TypeFloat64: "REAL",
		metadata.TypeBool:    "INTEGER",
		metadata.TypeTime:    "TEXT",
		metadata.TypeBytes:   "BLOB",
		metadata.TypeUUID:    "TEXT",
		metadata.TypeDecimal: "TEXT",
	})
}
