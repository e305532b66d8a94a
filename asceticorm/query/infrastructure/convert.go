package query

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

var ErrConversion = errors.New("value can't be converted")

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ConvertValue converts a value read from a driver to the type of a
// property. Unknown types are returned unchanged.
func ConvertValue(typeName string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok && typeName != metadata.TypeBytes && typeName != metadata.TypeUUID {
		v = string(b)
	}
	switch typeName {
	case metadata.TypeInt, metadata.TypeInt32, metadata.TypeInt64:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		switch typeName {
		case metadata.TypeInt:
			return int(n), nil
		case metadata.TypeInt32:
			return int32(n), nil
		}
		return n, nil
	case metadata.TypeFloat32, metadata.TypeFloat64, metadata.TypeDecimal:
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		if typeName == metadata.TypeFloat32 {
			return float32(f), nil
		}
		return f, nil
	case metadata.TypeBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, errors.Wrapf(ErrConversion, "%q to bool", x)
			}
			return b, nil
		}
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return n != 0, nil
	case metadata.TypeString:
		switch x := v.(type) {
		case string:
			return x, nil
		case time.Time:
			return x.Format(time.RFC3339Nano), nil
		}
		return fmt.Sprint(v), nil
	case metadata.TypeTime:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, x); err == nil {
					return t, nil
				}
			}
			return nil, errors.Wrapf(ErrConversion, "%q to time", x)
		}
		return nil, errors.Wrapf(ErrConversion, "%T to time", v)
	case metadata.TypeUUID:
		switch x := v.(type) {
		case uuid.UUID:
			return x, nil
		case [16]byte:
			return uuid.UUID(x), nil
		case string:
			id, err := uuid.Parse(x)
			if err != nil {
				return nil, errors.Wrap(ErrConversion, err.Error())
			}
			return id, nil
		case []byte:
			if len(x) == 16 {
				return uuid.FromBytes(x)
			}
			id, err := uuid.ParseBytes(x)
			if err != nil {
				return nil, errors.Wrap(ErrConversion, err.Error())
			}
			return id, nil
		}
		return nil, errors.Wrapf(ErrConversion, "%T to uuid", v)
	case metadata.TypeBytes:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			return []byte(x), nil
		}
		return nil, errors.Wrapf(ErrConversion, "%T to bytes", v)
	}
	return v, nil
}

// ConvertJSON converts a JSON value of an embedded document.
func ConvertJSON(typeName string, r gjson.Result) (any, error) {
	switch r.Type {
	case gjson.Null:
		return nil, nil
	case gjson.True, gjson.False:
		return ConvertValue(typeName, r.Bool())
	case gjson.Number:
		switch typeName {
		case metadata.TypeInt, metadata.TypeInt32, metadata.TypeInt64:
			return ConvertValue(typeName, r.Int())
		}
		return ConvertValue(typeName, r.Float())
	case gjson.String:
		return ConvertValue(typeName, r.String())
	}
	return ConvertValue(typeName, r.Raw)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrConversion, "%q to int", x)
		}
		return n, nil
	}
	return 0, errors.Wrapf(ErrConversion, "%T to int", v)
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrConversion, "%q to float", x)
		}
		return f, nil
	}
	return 0, errors.Wrapf(ErrConversion, "%T to float", v)
}
