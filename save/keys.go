package save

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/TrueNine/jimmer/schema"
	"github.com/TrueNine/jimmer/schema/field"
)

// key is the canonical encoding of a tuple of converted values. Two
// tuples holding equal values encode to the same key whatever the Go
// types the driver or the caller used.
type key string

func keyOf(values ...any) (key, error) {
	norm := make([]any, len(values))
	for i, v := range values {
		if t, ok := v.(time.Time); ok {
			v = t.UTC()
		}
		norm[i] = v
	}
	b, err := msgpack.Marshal(norm)
	if err != nil {
		return "", fmt.Errorf("save: encode key: %w", err)
	}
	return key(b), nil
}

// idKey is the arena key of the entity typ with the given converted id.
func idKey(typ *schema.Type, id any) (key, error) {
	return keyOf(typ.Name, id)
}

// propType returns the value type of a column-backed property of typ:
// the field type, or the id type of the target of a foreign key.
func propType(typ *schema.Type, prop string) field.Type {
	if prop == typ.ID.Name {
		return typ.ID.Type
	}
	if f, ok := typ.Field(prop); ok {
		return f.Type
	}
	if a, ok := typ.Assoc(prop); ok {
		return a.Target.ID.Type
	}
	return field.TypeInvalid
}

// rowKey converts the values of a database row with the given types and
// returns their key.
func rowKey(types []field.Type, row []any) (key, error) {
	values := make([]any, len(types))
	for i, t := range types {
		v, err := t.Convert(row[i])
		if err != nil {
			return "", err
		}
		values[i] = v
	}
	return keyOf(values...)
}
