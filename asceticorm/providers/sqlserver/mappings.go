package sqlserver

import (
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

func NewTypeMappingSource() metadata.MappingTable {
	return metadata.NewMappingTable(map[string]string{
		metadata.TypeString:  "nvarchar(max)",
		metadata.TypeInt:     "int",
		metadata.TypeInt32:   "int",
		metadata.TypeInt64:   "bigint",
		metadata.TypeFloat32: "real",
		metadata.TypeFloat64: "float",
		metadata.TypeBool:    "bit",
		metadata.TypeTime:    "datetime2",
		metadata.TypeBytes:   "varbinary(max)",
		metadata.TypeUUID:    "uniqueidentifier",
		metadata.TypeDecimal: "decimal(18,2)",
	})
}
