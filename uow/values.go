package uow

import (
	"reflect"

	"github.com/mulertech/database/metadata"
)

// columnValues reads every declared column's current value off instance,
// keyed by column name, skipping the auto-increment primary key (not
// written on insert) and any column named in exclude (used to null out
// self-referential foreign keys on a flush's first insert pass).
func columnValues(instance any, em *metadata.EntityMetadata, exclude map[string]bool) map[string]any {
	v := indirect(reflect.ValueOf(instance))
	values := make(map[string]any, len(em.Columns))
	for _, cm := range em.Columns {
		if cm == em.PrimaryKey && cm.Column.AutoIncrement {
			continue
		}
		if exclude != nil && exclude[cm.Column.Name] {
			continue
		}
		fv := v.FieldByName(cm.FieldName)
		if fv.IsValid() {
			values[cm.Column.Name] = fv.Interface()
		}
	}
	return values
}

// fieldNamesForColumns maps a set of column names back to their struct
// field names, for changeset.Snapshot's writtenColumns parameter.
func fieldNamesForColumns(em *metadata.EntityMetadata, columns map[string]bool) map[string]bool {
	out := make(map[string]bool, len(columns))
	for _, cm := range em.Columns {
		if columns[cm.Column.Name] {
			out[cm.FieldName] = true
		}
	}
	return out
}

func pkValue(instance any, em *metadata.EntityMetadata) any {
	v := indirect(reflect.ValueOf(instance))
	fv := v.FieldByName(em.PrimaryKey.FieldName)
	if !fv.IsValid() {
		return nil
	}
	return fv.Interface()
}

func setPKValue(instance any, em *metadata.EntityMetadata, pk any) {
	v := indirect(reflect.ValueOf(instance))
	fv := v.FieldByName(em.PrimaryKey.FieldName)
	if fv.CanSet() && pk != nil {
		fv.Set(coerce(pk, fv.Type()))
	}
}

func setColumnValue(instance any, em *metadata.EntityMetadata, column string, value any) {
	if value == nil {
		return
	}
	for _, cm := range em.Columns {
		if cm.Column.Name != column {
			continue
		}
		v := indirect(reflect.ValueOf(instance))
		fv := v.FieldByName(cm.FieldName)
		if fv.CanSet() {
			fv.Set(coerce(value, fv.Type()))
		}
		return
	}
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v
}

// coerce converts a driver-returned or caller-supplied value to the
// target field's type, covering the common auto-increment/PK numeric
// width mismatches (e.g. int64 from the driver into a plain int field).
func coerce(value any, target reflect.Type) reflect.Value {
	rv := reflect.ValueOf(value)
	if rv.Type() == target {
		return rv
	}
	if rv.Type().ConvertibleTo(target) {
		return rv.Convert(target)
	}
	return rv
}
