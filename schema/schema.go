// Package schema is the single structural representation shared by the
// declared metadata (package metadata) and the introspected live database
// (package introspect). SchemaComparer (package schemadiff) compares two
// values of this shape.
//
// Unlike the teacher repository's multi-dialect core.Database, this
// package only models what the MySQL family needs (see spec Non-goals:
// "multi-dialect SQL generation (MySQL-family only)"); the
// dialect-specific option bags for Postgres/Oracle/MSSQL/DB2/Snowflake/
// SQLite have no reason to exist here.
package schema

import (
	"fmt"

	"github.com/mulertech/database/codec"
)

// ColumnType re-exports codec.ColumnType so callers describing a table's
// shape never need to import both packages just to spell a column's type.
type ColumnType = codec.ColumnType

// Database is a named collection of tables plus MySQL-family defaults.
type Database struct {
	Name    string
	Charset string
	Tables  []*Table
}

// Table mirrors the essentials of EntityMetadata: name, columns, foreign
// keys, indexes, and MySQL table options.
type Table struct {
	Name        string
	Columns     []*Column
	ForeignKeys []*ForeignKey
	Indexes     []*Index
	Comment     string
	Options     TableOptions
}

// TableOptions holds the MySQL-family CREATE TABLE clauses this module
// cares about. Anything beyond engine/charset/collation/auto-increment
// seed is out of scope per spec §3 ("engine/charset/collation").
type TableOptions struct {
	Engine        string
	Charset       string
	Collation     string
	AutoIncrement uint64
}

// Column is one column's full semantic description (spec §3
// ColumnMetadata essentials).
type Column struct {
	Name          string
	Type          ColumnType
	Length        int
	Precision     int
	Scale         int
	Nullable      bool
	Unsigned      bool
	PrimaryKey    bool
	AutoIncrement bool
	Default       *string
	OnUpdate      *string
	KeyTag        KeyTag
	Extra         string
	Comment       string
	Collation     string
	EnumValues    []string
}

// KeyTag classifies how a column participates in a key, per spec §3
// ("key tag (primary/unique/multiple)").
type KeyTag string

const (
	KeyNone     KeyTag = ""
	KeyPrimary  KeyTag = "PRI"
	KeyUnique   KeyTag = "UNI"
	KeyMultiple KeyTag = "MUL"
)

// ForeignKey is the spec's ForeignKeyMetadata.
type ForeignKey struct {
	Name              string
	Column            string
	ReferencedTable   string
	ReferencedColumn  string
	OnDelete          ReferentialAction
	OnUpdate          ReferentialAction
}

// ReferentialAction enumerates ON DELETE / ON UPDATE rules.
type ReferentialAction string

const (
	ActionNone       ReferentialAction = ""
	ActionCascade    ReferentialAction = "CASCADE"
	ActionRestrict   ReferentialAction = "RESTRICT"
	ActionSetNull    ReferentialAction = "SET NULL"
	ActionNoAction   ReferentialAction = "NO ACTION"
)

// Index is a table index (B-Tree or full-text; spatial/hash are accepted
// by IndexType for round-tripping introspected data but MySQL-family is
// the only family this module renders DDL for).
type Index struct {
	Name    string
	Columns []string
	Unique  bool
	Type    IndexType
}

// IndexType enumerates the index algorithms MySQL/MariaDB expose.
type IndexType string

const (
	IndexBTree    IndexType = "BTREE"
	IndexFullText IndexType = "FULLTEXT"
	IndexSpatial  IndexType = "SPATIAL"
)

// FindTable looks up a table by name.
func (d *Database) FindTable(name string) *Table {
	if d == nil {
		return nil
	}
	for _, t := range d.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// FindColumn looks up a column by name.
func (t *Table) FindColumn(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FindForeignKey looks up a foreign key by its constraint name.
func (t *Table) FindForeignKey(name string) *ForeignKey {
	for _, fk := range t.ForeignKeys {
		if fk.Name == name {
			return fk
		}
	}
	return nil
}

// FindIndex looks up an index by name.
func (t *Table) FindIndex(name string) *Index {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

// PrimaryKeyColumn returns the table's single primary-key column, or nil.
// Composite keys are not in scope (spec §3 invariant).
func (t *Table) PrimaryKeyColumn() *Column {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c
		}
	}
	return nil
}

func (t *Table) String() string {
	return fmt.Sprintf("Table(%s: %d cols, %d fks, %d indexes)", t.Name, len(t.Columns), len(t.ForeignKeys), len(t.Indexes))
}

// MigrationHistoryTable is the reserved bookkeeping table name
// SchemaIntrospector excludes from introspection results and
// MigrationEngine uses to record applied migrations (spec §4.6: "Table
// names matching the reserved migration bookkeeping name are excluded").
const MigrationHistoryTable = "migration_history"

// ConstraintName implements the spec's naming convention:
// fk_{owningTable}_{owningColumn}_{referencedTable}.
func ConstraintName(table, column, referencedTable string) string {
	return fmt.Sprintf("fk_%s_%s_%s", table, column, referencedTable)
}
