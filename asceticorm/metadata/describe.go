package metadata

import (
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	timeType  = reflect.TypeOf(time.Time{})
	uuidType  = reflect.TypeOf(uuid.UUID{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// Describe registers descriptors for the struct type of v and every struct
// type reachable from its exported fields. A field tagged `orm:"-"` is
// skipped.
func Describe(catalog *TypeCatalog, values ...any) error {
	for _, v := range values {
		t := reflect.TypeOf(v)
		for t != nil && t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t == nil || t.Kind() != reflect.Struct {
			return errors.Errorf("metadata: cannot describe %T, a struct is required", v)
		}
		if err := describeStruct(catalog, t); err != nil {
			return err
		}
	}
	return nil
}

func describeStruct(catalog *TypeCatalog, t reflect.Type) error {
	if _, ok := catalog.Lookup(t.Name()); ok {
		return nil
	}
	desc := TypeDescriptor{Name: t.Name()}
	// Registered before members so that cycles terminate.
	if err := catalog.Register(desc); err != nil {
		return err
	}
	var nested []reflect.Type
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous || strings.TrimSpace(f.Tag.Get("orm")) == "-" {
			continue
		}
		m := MemberDescriptor{
			Name:     f.Name,
			Readable: true,
			Writable: true,
			Public:   f.IsExported(),
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			m.Nullable = true
			ft = ft.Elem()
		}
		if ft != bytesType && (ft.Kind() == reflect.Slice || ft.Kind() == reflect.Array) {
			m.Sequence = true
			ft = ft.Elem()
			for ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
		}
		name, isStruct := goTypeName(ft)
		if name == "" {
			return errors.Errorf("metadata: %s.%s has unsupported type %s", t.Name(), f.Name, f.Type)
		}
		m.Type = name
		if isStruct {
			nested = append(nested, ft)
		}
		desc.Members = append(desc.Members, m)
	}
	if err := catalog.Register(desc); err != nil {
		return err
	}
	for _, n := range nested {
		if err := describeStruct(catalog, n); err != nil {
			return err
		}
	}
	return nil
}

func goTypeName(t reflect.Type) (name string, isStruct bool) {
	switch t {
	case timeType:
		return TypeTime, false
	case uuidType:
		return TypeUUID, false
	case bytesType:
		return TypeBytes, false
	}
	switch t.Kind() {
	case reflect.String:
		return TypeString, false
	case reflect.Bool:
		return TypeBool, false
	case reflect.Int, reflect.Int16, reflect.Int8:
		return TypeInt, false
	case reflect.Int32:
		return TypeInt32, false
	case reflect.Int64:
		return TypeInt64, false
	case reflect.Float32:
		return TypeFloat32, false
	case reflect.Float64:
		return TypeFloat64, false
	case reflect.Uint8:
		return "byte", false
	case reflect.Struct:
		return t.Name(), true
	case reflect.Interface:
		return t.Name(), false
	}
	return "", false
}
