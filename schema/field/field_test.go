package field_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrueNine/jimmer/schema/field"
)

func TestBuilders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		desc *field.Descriptor
		want field.Descriptor
	}{
		{"int64", field.Int64("id").StorageKey("NODE_ID").Descriptor(), field.Descriptor{Name: "id", Column: "NODE_ID", Type: field.TypeInt64}},
		{"string", field.String("name").Descriptor(), field.Descriptor{Name: "name", Type: field.TypeString}},
		{"nillable", field.Float64("price").Nillable().Comment("list price").Descriptor(), field.Descriptor{Name: "price", Type: field.TypeFloat64, Nullable: true, Comment: "list price"}},
		{"uuid", field.UUID("id").Descriptor(), field.Descriptor{Name: "id", Type: field.TypeUUID}},
		{"of", field.Of("flag", field.TypeBool).Descriptor(), field.Descriptor{Name: "flag", Type: field.TypeBool}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, *tt.desc)
		})
	}
}

func TestParseType(t *testing.T) {
	for _, name := range []string{"bool", "int", "int64", "float64", "string", "time", "uuid", "bytes"} {
		typ, err := field.ParseType(name)
		require.NoError(t, err)
		assert.Equal(t, name, typ.String())
		assert.True(t, typ.Valid())
	}
	_, err := field.ParseType("invalid")
	require.Error(t, err)
	_, err = field.ParseType("decimal")
	require.Error(t, err)
	assert.False(t, field.TypeInvalid.Valid())
}

func TestConvert(t *testing.T) {
	id := uuid.MustParse("7c1a4b0e-8f6e-4d55-9a2b-1f0c3e5d7a90")
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		typ  field.Type
		in   any
		want any
	}{
		{"nil", field.TypeInt64, nil, nil},
		{"int", field.TypeInt64, 1, int64(1)},
		{"uint8", field.TypeInt, uint8(7), int64(7)},
		{"text_int", field.TypeInt64, []byte("42"), int64(42)},
		{"string_int", field.TypeInt, "50", int64(50)},
		{"whole_float", field.TypeInt64, float64(3), int64(3)},
		{"float", field.TypeFloat64, float32(1.5), float64(1.5)},
		{"int_float", field.TypeFloat64, 2, float64(2)},
		{"bytes_string", field.TypeString, []byte("Market"), "Market"},
		{"bool_int", field.TypeBool, int64(1), true},
		{"bool_text", field.TypeBool, "false", false},
		{"uuid_text", field.TypeUUID, id.String(), id},
		{"uuid_raw", field.TypeUUID, id[:], id},
		{"time_text", field.TypeTime, now.Format(time.RFC3339Nano), now},
		{"bytes", field.TypeBytes, "x", []byte("x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.Convert(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := field.TypeInt64.Convert(1.5)
	require.Error(t, err)
	_, err = field.TypeInt64.Convert(uint64(1) << 63)
	require.Error(t, err)
	_, err = field.TypeString.Convert(1)
	require.Error(t, err)
}
