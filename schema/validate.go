package schema

import (
	"fmt"
	"strings"

	"github.com/mulertech/database/codec"
)

// Validate checks the structural and semantic rules a declared or
// introspected Database must satisfy before it can be diffed or migrated.
// Every declarative source (metadata.EntityMetadata.Schema,
// metadata/tomlsource, metadata/sqlsource) and introspect.Introspector
// produce values this function accepts; MigrationEngine.Generate calls it
// on the declared schema before diffing.
//
// Adapted from the teacher's internal/core validate_column.go/
// validate_semantic.go/validate_constraint.go, trimmed to the rules that
// still apply once dialect selection is gone: auto-increment/primary-key
// nullability, enum/set value presence, and foreign-key column existence
// and type agreement. Checks specific to other dialects (SQLite's
// PRIMARY-KEY-only AUTOINCREMENT, generated-column/identity semantics,
// ...) have no home here since schema.Database is MySQL-family only.
func Validate(db *Database) error {
	tableByName := make(map[string]*Table, len(db.Tables))
	for _, t := range db.Tables {
		tableByName[strings.ToLower(t.Name)] = t
	}

	for _, t := range db.Tables {
		for _, col := range t.Columns {
			if err := validateColumn(t, col); err != nil {
				return err
			}
		}
		for _, idx := range t.Indexes {
			if err := validateIndex(t, idx); err != nil {
				return err
			}
		}
		for _, fk := range t.ForeignKeys {
			if err := validateForeignKey(t, fk, tableByName); err != nil {
				return err
			}
		}
	}
	return nil
}

var integerTypes = map[ColumnType]bool{
	codec.Tinyint: true, codec.Tinyint1: true, codec.Smallint: true,
	codec.Int: true, codec.Bigint: true,
}

func validateColumn(t *Table, col *Column) error {
	if col.AutoIncrement && !integerTypes[col.Type] {
		return fmt.Errorf("table %q, column %q: auto_increment is only allowed on integer columns", t.Name, col.Name)
	}
	if col.PrimaryKey && col.Nullable {
		return fmt.Errorf("table %q, column %q: primary key columns cannot be nullable", t.Name, col.Name)
	}
	if (col.Type == codec.Enum || col.Type == codec.Set) && len(col.EnumValues) == 0 {
		return fmt.Errorf("table %q, column %q: %s column must declare at least one value", t.Name, col.Name, col.Type)
	}
	return nil
}

func validateIndex(t *Table, idx *Index) error {
	for _, colName := range idx.Columns {
		if t.FindColumn(colName) == nil {
			return fmt.Errorf("table %q, index %q: references nonexistent column %q", t.Name, idx.Name, colName)
		}
	}
	return nil
}

func validateForeignKey(t *Table, fk *ForeignKey, tableByName map[string]*Table) error {
	col := t.FindColumn(fk.Column)
	if col == nil {
		return fmt.Errorf("table %q, foreign key %q: references nonexistent column %q", t.Name, fk.Name, fk.Column)
	}

	refTable, ok := tableByName[strings.ToLower(fk.ReferencedTable)]
	if !ok {
		return fmt.Errorf("table %q, foreign key %q: references unknown table %q", t.Name, fk.Name, fk.ReferencedTable)
	}
	refCol := refTable.FindColumn(fk.ReferencedColumn)
	if refCol == nil {
		return fmt.Errorf("table %q, foreign key %q: references nonexistent column %q.%q", t.Name, fk.Name, fk.ReferencedTable, fk.ReferencedColumn)
	}
	if col.Type != refCol.Type {
		return fmt.Errorf("table %q, foreign key %q: type mismatch between %q (%s) and %s.%s (%s)",
			t.Name, fk.Name, fk.Column, col.Type, fk.ReferencedTable, fk.ReferencedColumn, refCol.Type)
	}
	return nil
}
