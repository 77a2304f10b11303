package field

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Type is the value type of a field.
type Type uint8

// Field types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt
	TypeInt64
	TypeFloat64
	TypeString
	TypeTime
	TypeUUID
	TypeBytes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeInt:     "int",
	TypeInt64:   "int64",
	TypeFloat64: "float64",
	TypeString:  "string",
	TypeTime:    "time",
	TypeUUID:    "uuid",
	TypeBytes:   "bytes",
}

// String returns the name of the type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "invalid"
}

// Valid reports if the type is one of the known field types.
func (t Type) Valid() bool {
	return t > TypeInvalid && int(t) < len(typeNames)
}

// ParseType returns the type registered under name.
func ParseType(name string) (Type, error) {
	for i, n := range typeNames {
		if n == name && Type(i) != TypeInvalid {
			return Type(i), nil
		}
	}
	return TypeInvalid, fmt.Errorf("field: unknown type %q", name)
}

// Convert converts v to the canonical Go value of the type: int64 for
// integers, float64 for floats, uuid.UUID for uuids. Values read back from
// a database as text are parsed. A nil v stays nil.
func (t Type) Convert(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeInt, TypeInt64:
		return toInt64(v)
	case TypeFloat64:
		switch v := v.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case string:
			return strconv.ParseFloat(v, 64)
		}
		if i, err := toInt64(v); err == nil {
			return float64(i), nil
		}
	case TypeString:
		switch v := v.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case TypeBool:
		switch v := v.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		}
		if i, err := toInt64(v); err == nil {
			return i != 0, nil
		}
	case TypeUUID:
		switch v := v.(type) {
		case uuid.UUID:
			return v, nil
		case string:
			return uuid.Parse(v)
		case []byte:
			if len(v) == 16 {
				return uuid.FromBytes(v)
			}
			return uuid.ParseBytes(v)
		}
	case TypeTime:
		switch v := v.(type) {
		case time.Time:
			return v, nil
		case string:
			return time.Parse(time.RFC3339Nano, v)
		}
	case TypeBytes:
		switch v := v.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	}
	return nil, fmt.Errorf("field: cannot convert %T to %s", v, t)
}

func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return uintToInt64(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("field: %v is not an integer", v)
		}
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	}
	return 0, fmt.Errorf("field: cannot convert %T to int64", v)
}

func uintToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("field: %d overflows int64", v)
	}
	return int64(v), nil
}

// Descriptor describes a scalar property of an entity type.
type Descriptor struct {
	Name     string // property name
	Column   string // column name, empty for the default
	Type     Type   // value type
	Nullable bool   // column accepts NULL
	Comment  string // optional comment
}

// Builder is the builder for scalar properties.
type Builder struct {
	desc *Descriptor
}

func newBuilder(name string, t Type) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: t}}
}

// Bool returns a new boolean field.
func Bool(name string) *Builder { return newBuilder(name, TypeBool) }

// Int returns a new integer field.
func Int(name string) *Builder { return newBuilder(name, TypeInt) }

// Int64 returns a new 64-bit integer field.
func Int64(name string) *Builder { return newBuilder(name, TypeInt64) }

// Float64 returns a new floating point field.
func Float64(name string) *Builder { return newBuilder(name, TypeFloat64) }

// String returns a new string field.
func String(name string) *Builder { return newBuilder(name, TypeString) }

// Time returns a new timestamp field.
func Time(name string) *Builder { return newBuilder(name, TypeTime) }

// UUID returns a new uuid field.
func UUID(name string) *Builder { return newBuilder(name, TypeUUID) }

// Bytes returns a new binary field.
func Bytes(name string) *Builder { return newBuilder(name, TypeBytes) }

// Of returns a new field of type t.
func Of(name string, t Type) *Builder { return newBuilder(name, t) }

// StorageKey sets the column name of the field.
//
//	field.Int64("id").StorageKey("NODE_ID")
func (b *Builder) StorageKey(column string) *Builder {
	b.desc.Column = column
	return b
}

// Nillable marks the column as nullable.
func (b *Builder) Nillable() *Builder {
	b.desc.Nullable = true
	return b
}

// Comment sets the comment of the field.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the schema.Field interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}
