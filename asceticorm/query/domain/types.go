package query

import (
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

var (
	timeType = reflect.TypeOf((*time.Time)(nil)).Elem()
	uuidType = reflect.TypeOf((*uuid.UUID)(nil)).Elem()
)

// TypeNameOf returns the metadata type name of a value, or "" for nil.
func TypeNameOf(value any) string {
	if value == nil {
		return ""
	}
	return typeName(reflect.TypeOf(value))
}

func typeName(t reflect.Type) string {
	switch t {
	case timeType:
		return metadata.TypeTime
	case uuidType:
		return metadata.TypeUUID
	}
	switch t.Kind() {
	case reflect.Pointer:
		return typeName(t.Elem())
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return metadata.TypeBytes
		}
		return "[]" + typeName(t.Elem())
	case reflect.String:
		return metadata.TypeString
	case reflect.Bool:
		return metadata.TypeBool
	case reflect.Int, reflect.Int8, reflect.Int16:
		return metadata.TypeInt
	case reflect.Int32:
		return metadata.TypeInt32
	case reflect.Int64:
		return metadata.TypeInt64
	case reflect.Float32:
		return metadata.TypeFloat32
	case reflect.Float64:
		return metadata.TypeFloat64
	}
	return t.String()
}

// TypeNameOfNode infers the metadata type name of an expression. It returns
// "" when the type is unknown before binding.
func TypeNameOfNode(n Visitable) string {
	switch t := n.(type) {
	case ValueNode:
		return TypeNameOf(t.Value())
	case ParameterNode:
		return t.TypeName()
	case ColumnNode:
		return t.TypeName()
	case FunctionNode:
		return t.TypeName()
	case LiftableConstantNode:
		return t.TypeName()
	case InfixNode:
		if t.Operator().IsComparison() || t.Operator().IsLogical() {
			return metadata.TypeBool
		}
		if name := TypeNameOfNode(t.Left()); name != "" {
			return name
		}
		return TypeNameOfNode(t.Right())
	case PrefixNode:
		if t.Operator().IsLogical() {
			return metadata.TypeBool
		}
		return TypeNameOfNode(t.Operand())
	case PostfixNode, ExistsNode, CollectionNode:
		return metadata.TypeBool
	}
	return ""
}

// MappingOf returns the store type mapping carried by n, or nil.
func MappingOf(n Visitable) *metadata.TypeMapping {
	if t, ok := n.(Typed); ok {
		return t.TypeMapping()
	}
	return nil
}
