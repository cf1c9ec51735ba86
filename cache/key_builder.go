package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// KeySeparator delimits cache key segments.
const KeySeparator = "::"

// KeyBuilder builds a logical cache key from statement text, a salt key, and
// the bound parameter values. It must produce the same key for the same
// inputs across processes so that cache entries are shared cluster-wide.
type KeyBuilder interface {
	BuildKey(statement string, saltKey string, params ...any) string
}

// defaultKeyBuilder serializes parameter values with reflection so that the
// same bound values always yield the same key segment, regardless of the
// order maps happen to iterate in or which process produced the key.
type defaultKeyBuilder struct{}

// NewDefaultKeyBuilder creates the default key builder.
func NewDefaultKeyBuilder() KeyBuilder {
	return &defaultKeyBuilder{}
}

// BuildKey joins the statement, salt key, and serialized parameters with
// KeySeparator. The salt segment is included even when empty so that salted
// and unsalted keys for the same statement can never collide.
func (b *defaultKeyBuilder) BuildKey(statement string, saltKey string, params ...any) string {
	parts := make([]string, 0, len(params)+2)
	parts = append(parts, statement, saltKey)

	for _, p := range params {
		parts = append(parts, b.serializeValue(p))
	}

	return strings.Join(parts, KeySeparator)
}

// serializeValue renders a single bound parameter deterministically.
func (b *defaultKeyBuilder) serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)
	rt := reflect.TypeOf(v)

	switch rt.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return b.serializeValue(rv.Elem().Interface())

	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return b.serializeSequence("slice", rv)

	case reflect.Array:
		return b.serializeSequence("array", rv)

	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return b.serializeMap(rv)

	case reflect.Struct:
		return b.serializeStruct(rv, rt)

	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return fmt.Sprintf("%v", v)
	}

	return b.jsonFallback(v)
}

func (b *defaultKeyBuilder) serializeSequence(kind string, rv reflect.Value) string {
	length := rv.Len()
	parts := make([]string, length)

	for i := 0; i < length; i++ {
		parts[i] = b.serializeValue(rv.Index(i).Interface())
	}

	return fmt.Sprintf("%s[%d]:{%s}", kind, length, strings.Join(parts, ","))
}

// serializeMap emits key-value pairs sorted by serialized key so the segment
// does not depend on map iteration order.
func (b *defaultKeyBuilder) serializeMap(rv reflect.Value) string {
	keys := rv.MapKeys()

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s=%s", b.serializeValue(k.Interface()), b.serializeValue(rv.MapIndex(k).Interface()))
	}
	sort.Strings(pairs)

	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ","))
}

func (b *defaultKeyBuilder) serializeStruct(rv reflect.Value, rt reflect.Type) string {
	parts := make([]string, 0, rv.NumField())

	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldValue := rv.Field(i)
		if !fieldValue.CanInterface() {
			continue
		}

		parts = append(parts, fmt.Sprintf("%s:%s", field.Name, b.serializeValue(fieldValue.Interface())))
	}

	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}

// jsonFallback covers types reflection has no special handling for. When even
// JSON fails we fall back to the type name rather than failing the key build;
// a degraded key only costs a cache miss.
func (b *defaultKeyBuilder) jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%s", reflect.TypeOf(v).String())
	}
	return fmt.Sprintf("json:%s", string(data))
}
