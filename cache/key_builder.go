package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// KeySeparator joins the entity namespace and the key suffix.
const KeySeparator = "."

// KeyBuilder derives a cache key from an entity namespace and an optional
// suffix describing the operation's parameters. Implementations must be
// deterministic: structurally equal suffixes yield identical keys.
type KeyBuilder interface {
	Build(namespace string, suffix any) (string, error)
}

// defaultKeyBuilder implements KeyBuilder. Scalar suffixes are appended
// verbatim; structured suffixes are serialized with a stable field order
// and digested with SHA-256 so that arbitrary ad-hoc query shapes stay
// practically collision-free.
type defaultKeyBuilder struct{}

// NewDefaultKeyBuilder creates the default key builder.
func NewDefaultKeyBuilder() KeyBuilder {
	return &defaultKeyBuilder{}
}

// Build derives the cache key. A nil suffix yields the bare namespace.
// Unserializable suffixes (functions, channels) fail with a
// KeyDerivationError.
func (b *defaultKeyBuilder) Build(namespace string, suffix any) (string, error) {
	suffix = indirect(suffix)
	if suffix == nil {
		return namespace, nil
	}

	if scalar, ok := formatScalar(suffix); ok {
		return namespace + KeySeparator + scalar, nil
	}

	serialized, err := b.serializeValue(suffix)
	if err != nil {
		return "", &KeyDerivationError{Namespace: namespace, Message: err.Error()}
	}

	sum := sha256.Sum256([]byte(serialized))
	return namespace + KeySeparator + hex.EncodeToString(sum[:]), nil
}

// indirect peels pointers and interfaces off the suffix so that *int and
// int derive the same key. A nil pointer collapses to a nil suffix.
func indirect(v any) any {
	for {
		if v == nil {
			return nil
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Ptr && rv.Kind() != reflect.Interface {
			return v
		}
		if rv.IsNil() {
			return nil
		}
		v = rv.Elem().Interface()
	}
}

// formatScalar renders identifier-like suffixes directly, without
// digesting. Pre-formatted strings such as "paginate.15" pass through.
func formatScalar(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return fmt.Sprintf("%v", v), true
	}
	return "", false
}

// serializeValue renders a value deterministically for digesting. Maps are
// emitted with sorted keys, structs with exported fields in declaration
// order, slices and arrays in element order.
func (b *defaultKeyBuilder) serializeValue(v any) (string, error) {
	if v == nil {
		return "nil", nil
	}

	rv := reflect.ValueOf(v)
	rt := reflect.TypeOf(v)

	switch rt.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return "", fmt.Errorf("%s values are not serializable", rt.Kind())

	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "nil", nil
		}
		return b.serializeValue(rv.Elem().Interface())

	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil", nil
		}
		return b.serializeList("slice", rv)

	case reflect.Array:
		return b.serializeList("array", rv)

	case reflect.Map:
		if rv.IsNil() {
			return "map:nil", nil
		}
		return b.serializeMap(rv)

	case reflect.Struct:
		return b.serializeStruct(rv, rt)
	}

	if scalar, ok := formatScalar(v); ok {
		return scalar, nil
	}
	return "", fmt.Errorf("unsupported kind %s", rt.Kind())
}

func (b *defaultKeyBuilder) serializeList(label string, rv reflect.Value) (string, error) {
	length := rv.Len()
	parts := make([]string, length)

	for i := 0; i < length; i++ {
		part, err := b.serializeValue(rv.Index(i).Interface())
		if err != nil {
			return "", err
		}
		parts[i] = part
	}

	return fmt.Sprintf("%s[%d]:{%s}", label, length, strings.Join(parts, ",")), nil
}

func (b *defaultKeyBuilder) serializeMap(rv reflect.Value) (string, error) {
	keys := rv.MapKeys()
	pairs := make([]string, 0, len(keys))

	for _, k := range keys {
		keyStr, err := b.serializeValue(k.Interface())
		if err != nil {
			return "", err
		}
		valStr, err := b.serializeValue(rv.MapIndex(k).Interface())
		if err != nil {
			return "", err
		}
		pairs = append(pairs, keyStr+"="+valStr)
	}

	// Sorted pairs keep logically identical maps on the same key.
	sort.Strings(pairs)

	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ",")), nil
}

func (b *defaultKeyBuilder) serializeStruct(rv reflect.Value, rt reflect.Type) (string, error) {
	numFields := rv.NumField()
	parts := make([]string, 0, numFields)

	for i := 0; i < numFields; i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldValue := rv.Field(i)
		if !fieldValue.CanInterface() {
			continue
		}

		serialized, err := b.serializeValue(fieldValue.Interface())
		if err != nil {
			return "", err
		}
		parts = append(parts, field.Name+":"+serialized)
	}

	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ",")), nil
}
