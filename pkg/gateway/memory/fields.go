package memory

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/nimburion/crudkit/pkg/query"
)

// fieldIndex maps query field names to struct field indexes. A field is addressed by its db
// tag, then its json tag, then its lowercased Go name.
type fieldIndex map[string][]int

func indexFields(t reflect.Type) (fieldIndex, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("memory gateway requires a struct entity, got %s", t)
	}
	idx := fieldIndex{}
	collectFields(t, nil, idx)
	return idx, nil
}

func collectFields(t reflect.Type, prefix []int, idx fieldIndex) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		path := append(append([]int(nil), prefix...), i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collectFields(field.Type, path, idx)
			continue
		}
		if !field.IsExported() {
			continue
		}
		name := fieldName(field)
		if name == "-" {
			continue
		}
		if _, taken := idx[name]; !taken {
			idx[name] = path
		}
	}
}

func fieldName(field reflect.StructField) string {
	if tag := tagName(field.Tag.Get("db")); tag != "" {
		return tag
	}
	if tag := tagName(field.Tag.Get("json")); tag != "" {
		return tag
	}
	return strings.ToLower(field.Name)
}

func tagName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	return name
}

// valueOf returns the query representation of a field: Null for nil pointers and interfaces,
// Int for integer kinds, String for string kinds. ok is false for any other kind.
func valueOf(v reflect.Value) (query.Value, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return query.Null(), true
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return query.Int(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return query.Int(int64(v.Uint())), true
	case reflect.String:
		return query.String(v.String()), true
	}
	return query.Value{}, false
}

// compare orders two scalars of the same kind. ok is false when the kinds differ or either
// side is null or a list.
func compare(a, b query.Value) (int, bool) {
	switch {
	case a.Kind() == query.KindInt && b.Kind() == query.KindInt:
		ai, _ := a.Int()
		bi, _ := b.Int()
		switch {
		case ai < bi:
			return -1, true
		case ai > bi:
			return 1, true
		}
		return 0, true
	case a.Kind() == query.KindString && b.Kind() == query.KindString:
		as, _ := a.Str()
		bs, _ := b.Str()
		return strings.Compare(as, bs), true
	}
	return 0, false
}
