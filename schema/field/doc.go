// Package field provides fluent builders for the scalar properties of an
// entity type.
//
//	field.Int64("id").StorageKey("NODE_ID")
//	field.String("name")
//	field.Float64("price").Nillable()
//
// Column names default to the upper snake case of the property name
// (storeName -> STORE_NAME) and can be overridden with StorageKey.
//
// # Value Conversion
//
// Type.Convert turns values decoded from documents or read back from a
// database into the canonical Go value of the field, so that values from
// both sides compare equal:
//
//	v, err := field.TypeInt64.Convert([]byte("42")) // int64(42)
//	u, err := field.TypeUUID.Convert("7c1a...")       // uuid.UUID
package field
