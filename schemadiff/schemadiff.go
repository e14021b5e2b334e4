// Package schemadiff implements the SchemaComparer (spec §4.7): comparing
// a declared schema.Database against an introspected one and producing a
// deterministic SchemaDifference.
//
// Grounded on internal/diff/diff.go and diff_table.go, trimmed from the
// teacher's many-dialect option-bag comparison (MySQL/TiDB/generic option
// maps) down to the MySQL-family field set spec §4.7 names explicitly:
// {type, length/precision/scale, nullability, default, unsigned, extra}.
package schemadiff

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/mulertech/database/schema"
)

// DefaultIgnoredTables is the default ignore list schema §4.7 specifies:
// "a configurable ignore list (default: {migration_history})".
var DefaultIgnoredTables = []string{schema.MigrationHistoryTable}

// Options configures the comparer.
type Options struct {
	// IgnoredTables lists table names excluded from comparison entirely.
	// A nil slice means DefaultIgnoredTables.
	IgnoredTables []string
}

// FieldChange is a single differing attribute, carrying the from/to pair.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// ColumnChange describes a column present in both schemas with at least
// one differing attribute.
type ColumnChange struct {
	Name    string
	Old     *schema.Column
	New     *schema.Column
	Changes []FieldChange
}

// ForeignKeyChange describes a foreign key whose target or rule differs;
// per spec this is always surfaced as a drop+add, never a silent rewrite.
type ForeignKeyChange struct {
	Name string
	Old  *schema.ForeignKey
	New  *schema.ForeignKey
}

// IndexChange describes an index present in both schemas with differing
// definition.
type IndexChange struct {
	Name string
	Old  *schema.Index
	New  *schema.Index
}

// TableDifference is one table's full set of deltas.
type TableDifference struct {
	Name string

	AddedColumns   []*schema.Column
	RemovedColumns []*schema.Column
	ModifiedColumns []*ColumnChange

	AddedForeignKeys    []*schema.ForeignKey
	RemovedForeignKeys  []*schema.ForeignKey
	ModifiedForeignKeys []*ForeignKeyChange

	AddedIndexes    []*schema.Index
	RemovedIndexes  []*schema.Index
	ModifiedIndexes []*IndexChange
}

func (td *TableDifference) isEmpty() bool {
	return len(td.AddedColumns) == 0 && len(td.RemovedColumns) == 0 && len(td.ModifiedColumns) == 0 &&
		len(td.AddedForeignKeys) == 0 && len(td.RemovedForeignKeys) == 0 && len(td.ModifiedForeignKeys) == 0 &&
		len(td.AddedIndexes) == 0 && len(td.RemovedIndexes) == 0 && len(td.ModifiedIndexes) == 0
}

// SchemaDifference is the comparer's full result: create/drop tables plus
// per-table modifications, all in deterministic, sorted order.
type SchemaDifference struct {
	CreatedTables  []*schema.Table
	DroppedTables  []*schema.Table
	ModifiedTables []*TableDifference
}

// IsEmpty reports whether the two schemas are structurally identical.
func (d *SchemaDifference) IsEmpty() bool {
	return len(d.CreatedTables) == 0 && len(d.DroppedTables) == 0 && len(d.ModifiedTables) == 0
}

// Compare produces the SchemaDifference moving live toward declared, i.e.
// tables/columns/keys present only in declared are "created", present
// only in live are "dropped" (spec §4.7: "table present only in
// declarations → create; only in live → drop").
func Compare(declared, live *schema.Database, opts Options) *SchemaDifference {
	ignored := opts.IgnoredTables
	if ignored == nil {
		ignored = DefaultIgnoredTables
	}
	ignore := make(map[string]bool, len(ignored))
	for _, name := range ignored {
		ignore[name] = true
	}

	declTables := filterIgnored(declared.Tables, ignore)
	liveTables := filterIgnored(live.Tables, ignore)

	declByName := tablesByName(declTables)
	liveByName := tablesByName(liveTables)

	d := &SchemaDifference{}

	for name, dt := range declByName {
		lt, ok := liveByName[name]
		if !ok {
			d.CreatedTables = append(d.CreatedTables, dt)
			continue
		}
		if td := compareTable(dt, lt); td != nil {
			d.ModifiedTables = append(d.ModifiedTables, td)
		}
	}
	for name, lt := range liveByName {
		if _, ok := declByName[name]; !ok {
			d.DroppedTables = append(d.DroppedTables, lt)
		}
	}

	sort.Slice(d.CreatedTables, func(i, j int) bool { return d.CreatedTables[i].Name < d.CreatedTables[j].Name })
	sort.Slice(d.DroppedTables, func(i, j int) bool { return d.DroppedTables[i].Name < d.DroppedTables[j].Name })
	sort.Slice(d.ModifiedTables, func(i, j int) bool { return d.ModifiedTables[i].Name < d.ModifiedTables[j].Name })

	return d
}

func filterIgnored(tables []*schema.Table, ignore map[string]bool) []*schema.Table {
	out := make([]*schema.Table, 0, len(tables))
	for _, t := range tables {
		if !ignore[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

func tablesByName(tables []*schema.Table) map[string]*schema.Table {
	m := make(map[string]*schema.Table, len(tables))
	for _, t := range tables {
		m[t.Name] = t
	}
	return m
}

func compareTable(declared, live *schema.Table) *TableDifference {
	td := &TableDifference{Name: declared.Name}

	compareColumns(declared.Columns, live.Columns, td)
	compareForeignKeys(declared.ForeignKeys, live.ForeignKeys, td)
	compareIndexes(declared.Indexes, live.Indexes, td)

	if td.isEmpty() {
		return nil
	}

	sort.Slice(td.AddedColumns, func(i, j int) bool { return td.AddedColumns[i].Name < td.AddedColumns[j].Name })
	sort.Slice(td.RemovedColumns, func(i, j int) bool { return td.RemovedColumns[i].Name < td.RemovedColumns[j].Name })
	sort.Slice(td.ModifiedColumns, func(i, j int) bool { return td.ModifiedColumns[i].Name < td.ModifiedColumns[j].Name })
	sort.Slice(td.AddedForeignKeys, func(i, j int) bool { return td.AddedForeignKeys[i].Name < td.AddedForeignKeys[j].Name })
	sort.Slice(td.RemovedForeignKeys, func(i, j int) bool { return td.RemovedForeignKeys[i].Name < td.RemovedForeignKeys[j].Name })
	sort.Slice(td.ModifiedForeignKeys, func(i, j int) bool { return td.ModifiedForeignKeys[i].Name < td.ModifiedForeignKeys[j].Name })
	sort.Slice(td.AddedIndexes, func(i, j int) bool { return td.AddedIndexes[i].Name < td.AddedIndexes[j].Name })
	sort.Slice(td.RemovedIndexes, func(i, j int) bool { return td.RemovedIndexes[i].Name < td.RemovedIndexes[j].Name })
	sort.Slice(td.ModifiedIndexes, func(i, j int) bool { return td.ModifiedIndexes[i].Name < td.ModifiedIndexes[j].Name })

	return td
}

// compareColumns implements spec §4.7's column comparison rule exactly:
// "for each of {type, length/precision/scale, nullability, default,
// unsigned, extra} emit a modify entry carrying {field: (from, to)}
// pairs only for fields that differ."
func compareColumns(declared, live []*schema.Column, td *TableDifference) {
	declByName := columnsByName(declared)
	liveByName := columnsByName(live)

	for name, dc := range declByName {
		lc, ok := liveByName[name]
		if !ok {
			td.AddedColumns = append(td.AddedColumns, dc)
			continue
		}
		changes := columnFieldChanges(lc, dc)
		if len(changes) > 0 {
			td.ModifiedColumns = append(td.ModifiedColumns, &ColumnChange{Name: name, Old: lc, New: dc, Changes: changes})
		}
	}
	for name, lc := range liveByName {
		if _, ok := declByName[name]; !ok {
			td.RemovedColumns = append(td.RemovedColumns, lc)
		}
	}
}

func columnsByName(columns []*schema.Column) map[string]*schema.Column {
	m := make(map[string]*schema.Column, len(columns))
	for _, c := range columns {
		m[c.Name] = c
	}
	return m
}

func columnFieldChanges(old, new_ *schema.Column) []FieldChange {
	var changes []FieldChange
	add := func(field, ov, nv string) {
		if ov != nv {
			changes = append(changes, FieldChange{Field: field, Old: ov, New: nv})
		}
	}

	add("type", string(old.Type), string(new_.Type))
	add("length", strconv.Itoa(old.Length), strconv.Itoa(new_.Length))
	add("precision", strconv.Itoa(old.Precision), strconv.Itoa(new_.Precision))
	add("scale", strconv.Itoa(old.Scale), strconv.Itoa(new_.Scale))
	add("nullable", strconv.FormatBool(old.Nullable), strconv.FormatBool(new_.Nullable))
	add("default", ptrStr(old.Default), ptrStr(new_.Default))
	add("unsigned", strconv.FormatBool(old.Unsigned), strconv.FormatBool(new_.Unsigned))
	add("extra", old.Extra, new_.Extra)

	return changes
}

func ptrStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// compareForeignKeys implements spec §4.7's convention: comparison is by
// the convention-derived constraint name; a differing target or rule is
// always drop+add, never a silent rewrite.
func compareForeignKeys(declared, live []*schema.ForeignKey, td *TableDifference) {
	declByName := foreignKeysByName(declared)
	liveByName := foreignKeysByName(live)

	for name, dfk := range declByName {
		lfk, ok := liveByName[name]
		if !ok {
			td.AddedForeignKeys = append(td.AddedForeignKeys, dfk)
			continue
		}
		if !equalForeignKey(dfk, lfk) {
			td.ModifiedForeignKeys = append(td.ModifiedForeignKeys, &ForeignKeyChange{Name: name, Old: lfk, New: dfk})
		}
	}
	for name, lfk := range liveByName {
		if _, ok := declByName[name]; !ok {
			td.RemovedForeignKeys = append(td.RemovedForeignKeys, lfk)
		}
	}
}

func foreignKeysByName(fks []*schema.ForeignKey) map[string]*schema.ForeignKey {
	m := make(map[string]*schema.ForeignKey, len(fks))
	for _, fk := range fks {
		m[fk.Name] = fk
	}
	return m
}

func equalForeignKey(a, b *schema.ForeignKey) bool {
	return a.Column == b.Column && a.ReferencedTable == b.ReferencedTable &&
		a.ReferencedColumn == b.ReferencedColumn && a.OnDelete == b.OnDelete && a.OnUpdate == b.OnUpdate
}

// compareIndexes is analogous to foreign key comparison, by index name
// (spec §4.7: "Index comparison analogous").
func compareIndexes(declared, live []*schema.Index, td *TableDifference) {
	declByName := indexesByName(declared)
	liveByName := indexesByName(live)

	for name, di := range declByName {
		li, ok := liveByName[name]
		if !ok {
			td.AddedIndexes = append(td.AddedIndexes, di)
			continue
		}
		if !equalIndex(di, li) {
			td.ModifiedIndexes = append(td.ModifiedIndexes, &IndexChange{Name: name, Old: li, New: di})
		}
	}
	for name, li := range liveByName {
		if _, ok := declByName[name]; !ok {
			td.RemovedIndexes = append(td.RemovedIndexes, li)
		}
	}
}

func indexesByName(indexes []*schema.Index) map[string]*schema.Index {
	m := make(map[string]*schema.Index, len(indexes))
	for _, idx := range indexes {
		m[idx.Name] = idx
	}
	return m
}

func equalIndex(a, b *schema.Index) bool {
	if a.Unique != b.Unique || a.Type != b.Type || len(a.Columns) != len(b.Columns) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return false
		}
	}
	return true
}

func (td *TableDifference) String() string {
	return fmt.Sprintf("TableDifference(%s: +%d/-%d/~%d cols)", td.Name, len(td.AddedColumns), len(td.RemovedColumns), len(td.ModifiedColumns))
}
