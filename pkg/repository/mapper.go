package repository

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
)

// EntityMapper defines how to map between entities and database rows.
type EntityMapper[T any, ID comparable] interface {
	// Columns lists every column of the table in select order. Only these columns may appear in
	// filters and sorts.
	Columns() []string

	// ToRow converts an entity to column names and values for INSERT/UPDATE.
	ToRow(entity *T) (columns []string, values []interface{}, err error)

	// FromRow scans the current row, selected with Columns(), into an entity.
	FromRow(rows *sql.Rows) (*T, error)

	GetID(entity *T) ID
	SetID(entity *T, id ID)
}

// ReflectionMapper maps exported struct fields to columns named by their db tag, or by the
// lowercased field name. Fields tagged db:"-" are skipped.
type ReflectionMapper[T any, ID comparable] struct {
	idField string
	columns []string
	index   map[string]int
}

// NewReflectionMapper creates a mapper whose identifier lives in the Go field idField.
func NewReflectionMapper[T any, ID comparable](idField string) (*ReflectionMapper[T, ID], error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("reflection mapper requires a struct, got %s", t)
	}
	m := &ReflectionMapper[T, ID]{idField: idField, index: map[string]int{}}
	found := false
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		column := columnName(field)
		if column == "-" {
			continue
		}
		m.columns = append(m.columns, column)
		m.index[column] = i
		if field.Name == idField {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%s has no mapped field %q", t, idField)
	}
	return m, nil
}

func columnName(field reflect.StructField) string {
	if tag, _, _ := strings.Cut(field.Tag.Get("db"), ","); tag != "" {
		return tag
	}
	return strings.ToLower(field.Name)
}

// Columns returns the mapped columns in field order.
func (m *ReflectionMapper[T, ID]) Columns() []string {
	return append([]string(nil), m.columns...)
}

// ToRow converts an entity to column names and values using reflection.
func (m *ReflectionMapper[T, ID]) ToRow(entity *T) ([]string, []interface{}, error) {
	v := reflect.ValueOf(entity).Elem()
	values := make([]interface{}, len(m.columns))
	for i, column := range m.columns {
		values[i] = v.Field(m.index[column]).Interface()
	}
	return m.Columns(), values, nil
}

// FromRow scans a database row into an entity using reflection. Columns the entity does not
// map are ignored.
func (m *ReflectionMapper[T, ID]) FromRow(rows *sql.Rows) (*T, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	scanDest := make([]interface{}, len(columns))
	for i := range columns {
		scanDest[i] = new(interface{})
	}
	if err := rows.Scan(scanDest...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	entity := new(T)
	v := reflect.ValueOf(entity).Elem()
	for i, column := range columns {
		fieldIndex, ok := m.index[column]
		if !ok {
			continue
		}
		value := *(scanDest[i].(*interface{}))
		if err := assign(v.Field(fieldIndex), value); err != nil {
			return nil, fmt.Errorf("column %s: %w", column, err)
		}
	}
	return entity, nil
}

// assign stores a driver value into a struct field, allocating pointers and converting
// []byte and numeric kinds as needed. A nil value leaves the field at its zero value.
func assign(field reflect.Value, value interface{}) error {
	if value == nil {
		return nil
	}
	if field.Kind() == reflect.Pointer {
		elem := reflect.New(field.Type().Elem())
		if err := assign(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}
	src := reflect.ValueOf(value)
	if src.Type().AssignableTo(field.Type()) {
		field.Set(src)
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return assignText(field, string(v))
	case string:
		return assignText(field, v)
	}
	if field.Kind() != reflect.String && src.Type().ConvertibleTo(field.Type()) {
		field.Set(src.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// assignText handles drivers that return text for numeric columns, such as MySQL with the
// text protocol.
func assignText(field reflect.Value, text string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(text)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		if _, err := fmt.Sscan(text, &n); err != nil {
			return err
		}
		field.SetInt(n)
		return nil
	case reflect.Float32, reflect.Float64:
		var f float64
		if _, err := fmt.Sscan(text, &f); err != nil {
			return err
		}
		field.SetFloat(f)
		return nil
	case reflect.Bool:
		field.SetBool(text == "1" || strings.EqualFold(text, "true"))
		return nil
	}
	return fmt.Errorf("cannot assign %q to %s", text, field.Type())
}

// GetID reads the identifier field.
func (m *ReflectionMapper[T, ID]) GetID(entity *T) ID {
	return reflect.ValueOf(entity).Elem().FieldByName(m.idField).Interface().(ID)
}

// SetID writes the identifier field.
func (m *ReflectionMapper[T, ID]) SetID(entity *T, id ID) {
	reflect.ValueOf(entity).Elem().FieldByName(m.idField).Set(reflect.ValueOf(id))
}
