package query

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

func TestConvertValue(t *testing.T) {
	id := uuid.MustParse("5f1b6c1e-3f0a-4b8e-9d7e-2a1c3b4d5e6f")
	cases := []struct {
		typeName string
		input    any
		expected any
	}{
		{metadata.TypeInt, int64(7), 7},
		{metadata.TypeInt32, "7", int32(7)},
		{metadata.TypeInt64, 7.0, int64(7)},
		{metadata.TypeFloat64, int64(2), 2.0},
		{metadata.TypeFloat32, "1.5", float32(1.5)},
		{metadata.TypeDecimal, []byte("3.25"), 3.25},
		{metadata.TypeBool, int64(1), true},
		{metadata.TypeBool, "false", false},
		{metadata.TypeString, []byte("x"), "x"},
		{metadata.TypeString, int64(3), "3"},
		{metadata.TypeTime, "2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{metadata.TypeUUID, id.String(), id},
		{metadata.TypeUUID, id[:], id},
		{metadata.TypeBytes, "ab", []byte("ab")},
		{"custom", struct{}{}, struct{}{}},
		{metadata.TypeInt, nil, nil},
	}
	for _, c := range cases {
		actual, err := ConvertValue(c.typeName, c.input)
		require.NoError(t, err, "%s from %T", c.typeName, c.input)
		assert.Equal(t, c.expected, actual, "%s from %T", c.typeName, c.input)
	}
}

func TestConvertValueErrors(t *testing.T) {
	cases := []struct {
		typeName string
		input    any
	}{
		{metadata.TypeInt, "seven"},
		{metadata.TypeFloat64, true},
		{metadata.TypeBool, "maybe"},
		{metadata.TypeTime, "yesterday"},
		{metadata.TypeTime, int64(1)},
		{metadata.TypeUUID, "not-a-uuid"},
		{metadata.TypeBytes, 1},
	}
	for _, c := range cases {
		_, err := ConvertValue(c.typeName, c.input)
		assert.ErrorIs(t, err, ErrConversion, "%s from %v", c.typeName, c.input)
	}
}

func TestConvertJSON(t *testing.T) {
	doc := gjson.Parse(`{"n":3,"f":1.5,"b":true,"s":"x","z":null,"o":{"a":1}}`)

	v, err := ConvertJSON(metadata.TypeInt, doc.Get("n"))
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	v, err = ConvertJSON(metadata.TypeFloat64, doc.Get("f"))
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
	v, err = ConvertJSON(metadata.TypeBool, doc.Get("b"))
	require.NoError(t, err)
	assert.Equal(t, true, v)
	v, err = ConvertJSON(metadata.TypeString, doc.Get("s"))
	require.NoError(t, err)
	assert.Equal(t, "x", v)
	v, err = ConvertJSON(metadata.TypeString, doc.Get("z"))
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = ConvertJSON(metadata.TypeString, doc.Get("o"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)
}
