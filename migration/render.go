package migration

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mulertech/database/codec"
	"github.com/mulertech/database/schema"
	"github.com/mulertech/database/schemadiff"
)

// quoteIdentifier backtick-quotes a MySQL identifier, grounded on
// internal/dialect/mysql/mysql.go's Generator.QuoteIdentifier.
func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(strings.TrimSpace(name), "`", "``") + "`"
}

// quoteString single-quotes a literal for use in a DEFAULT clause.
func quoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// columnTypeSQL renders a column's declared type, including its
// length/precision/scale/enum-values argument list.
func columnTypeSQL(c *schema.Column) string {
	t := strings.ToUpper(string(c.Type))
	if c.Type == codec.Tinyint1 {
		t = "TINYINT(1)"
	}

	switch c.Type.Family() {
	case codec.FamilyDecimal:
		if c.Precision > 0 {
			return fmt.Sprintf("%s(%d,%d)", t, c.Precision, c.Scale)
		}
	case codec.FamilyText, codec.FamilyBinary:
		if c.Length > 0 {
			return fmt.Sprintf("%s(%d)", t, c.Length)
		}
	case codec.FamilyInteger:
		// Width specifiers on integers are display hints only; MySQL 8
		// deprecates them, so they are intentionally omitted.
	}

	if c.Type == codec.Enum || c.Type == codec.Set {
		quoted := make([]string, len(c.EnumValues))
		for i, v := range c.EnumValues {
			quoted[i] = quoteString(v)
		}
		return fmt.Sprintf("%s(%s)", t, strings.Join(quoted, ","))
	}

	return t
}

// columnDefinitionSQL renders a full column definition clause, grounded
// on internal/dialect/mysql/table.go's columnDefinition.
func columnDefinitionSQL(c *schema.Column) string {
	var parts []string
	parts = append(parts, quoteIdentifier(c.Name), columnTypeSQL(c))

	if c.Unsigned {
		parts = append(parts, "UNSIGNED")
	}
	if c.Nullable {
		parts = append(parts, "NULL")
	} else {
		parts = append(parts, "NOT NULL")
	}
	if c.AutoIncrement {
		parts = append(parts, "AUTO_INCREMENT")
	}
	if c.Default != nil {
		parts = append(parts, "DEFAULT "+defaultLiteral(c))
	}
	if c.Comment != "" {
		parts = append(parts, "COMMENT "+quoteString(c.Comment))
	}

	return strings.Join(parts, " ")
}

// defaultLiteral decides whether a column's default is a bare expression
// (e.g. CURRENT_TIMESTAMP) or a quoted literal.
func defaultLiteral(c *schema.Column) string {
	v := *c.Default
	upper := strings.ToUpper(strings.TrimSpace(v))
	if upper == "CURRENT_TIMESTAMP" || upper == "NULL" || strings.HasSuffix(upper, ")") {
		return v
	}
	return quoteString(v)
}

func foreignKeyClauseSQL(fk *schema.ForeignKey) string {
	return fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s ON UPDATE %s",
		quoteIdentifier(fk.Name), quoteIdentifier(fk.Column), quoteIdentifier(fk.ReferencedTable),
		quoteIdentifier(fk.ReferencedColumn), referentialActionSQL(fk.OnDelete), referentialActionSQL(fk.OnUpdate))
}

func referentialActionSQL(a schema.ReferentialAction) string {
	if a == schema.ActionNone {
		return string(schema.ActionRestrict)
	}
	return string(a)
}

func indexClauseSQL(idx *schema.Index) string {
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	if idx.Type == schema.IndexFullText {
		kind = "FULLTEXT INDEX"
	}
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = quoteIdentifier(c)
	}
	return fmt.Sprintf("%s %s (%s)", kind, quoteIdentifier(idx.Name), strings.Join(cols, ","))
}

// createTableSQL renders a CREATE TABLE statement plus its foreign keys
// as separate ALTER TABLE ... ADD CONSTRAINT statements, matching the
// teacher's "foreign keys added after table creation to avoid dependency
// issues" sequencing (internal/dialect/mysql/mysql.go).
func createTableSQL(t *schema.Table) (string, []string) {
	var lines []string
	for _, c := range t.Columns {
		lines = append(lines, "  "+columnDefinitionSQL(c))
	}
	if pk := t.PrimaryKeyColumn(); pk != nil {
		lines = append(lines, "  PRIMARY KEY ("+quoteIdentifier(pk.Name)+")")
	}
	for _, idx := range t.Indexes {
		lines = append(lines, "  "+indexClauseSQL(idx))
	}

	options := tableOptionsSQL(t.Options)
	create := fmt.Sprintf("CREATE TABLE %s (\n%s\n)%s;", quoteIdentifier(t.Name), strings.Join(lines, ",\n"), options)

	var fkStatements []string
	for _, fk := range t.ForeignKeys {
		fkStatements = append(fkStatements, addForeignKeySQL(t.Name, fk))
	}

	return create, fkStatements
}

func dropTableSQL(t *schema.Table) string {
	return fmt.Sprintf("DROP TABLE %s;", quoteIdentifier(t.Name))
}

func tableOptionsSQL(o schema.TableOptions) string {
	var parts []string
	if o.Engine != "" {
		parts = append(parts, "ENGINE="+o.Engine)
	}
	if o.Charset != "" {
		parts = append(parts, "DEFAULT CHARSET="+o.Charset)
	}
	if o.Collation != "" {
		parts = append(parts, "COLLATE="+o.Collation)
	}
	if o.AutoIncrement != 0 {
		parts = append(parts, "AUTO_INCREMENT="+strconv.FormatUint(o.AutoIncrement, 10))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

func addColumnSQL(table string, c *schema.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", quoteIdentifier(table), columnDefinitionSQL(c))
}

func dropColumnSQL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", quoteIdentifier(table), quoteIdentifier(column))
}

func modifyColumnSQL(table string, c *schema.Column) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s;", quoteIdentifier(table), columnDefinitionSQL(c))
}

func addForeignKeySQL(table string, fk *schema.ForeignKey) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s;", quoteIdentifier(table), foreignKeyClauseSQL(fk))
}

func dropForeignKeySQL(table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s;", quoteIdentifier(table), quoteIdentifier(name))
}

func addIndexSQL(table string, idx *schema.Index) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s;", quoteIdentifier(table), indexClauseSQL(idx))
}

func dropIndexSQL(table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s;", quoteIdentifier(table), quoteIdentifier(name))
}

// renderUpDown turns a SchemaDifference into the up/down statement lists
// per spec §4.8: "synthesize an up script from the diff, and a symmetric
// down script (inverted create/drop, symmetric column modifications using
// from values)". Destructive operations (table/column drops) get a
// leading comment flagging them, per spec's "comments marking destructive
// operations."
func renderUpDown(diff *schemadiff.SchemaDifference) (up, down []string) {
	for _, t := range diff.CreatedTables {
		create, fks := createTableSQL(t)
		up = append(up, create)
		up = append(up, fks...)
		down = append(down, "-- destructive: drops table "+t.Name)
		down = append(down, dropTableSQL(t))
	}

	for _, t := range diff.DroppedTables {
		up = append(up, "-- destructive: drops table "+t.Name)
		up = append(up, dropTableSQL(t))
		create, fks := createTableSQL(t)
		down = append(down, create)
		down = append(down, fks...)
	}

	for _, td := range diff.ModifiedTables {
		renderTableDifference(td, &up, &down)
	}

	return up, down
}

func renderTableDifference(td *schemadiff.TableDifference, up, down *[]string) {
	for _, c := range td.AddedColumns {
		*up = append(*up, addColumnSQL(td.Name, c))
		*down = append(*down, "-- destructive: drops column "+td.Name+"."+c.Name)
		*down = append(*down, dropColumnSQL(td.Name, c.Name))
	}
	for _, c := range td.RemovedColumns {
		*up = append(*up, "-- destructive: drops column "+td.Name+"."+c.Name)
		*up = append(*up, dropColumnSQL(td.Name, c.Name))
		*down = append(*down, addColumnSQL(td.Name, c))
	}
	for _, cc := range td.ModifiedColumns {
		*up = append(*up, modifyColumnSQL(td.Name, cc.New))
		*down = append(*down, modifyColumnSQL(td.Name, cc.Old))
	}

	for _, fk := range td.AddedForeignKeys {
		*up = append(*up, addForeignKeySQL(td.Name, fk))
		*down = append(*down, dropForeignKeySQL(td.Name, fk.Name))
	}
	for _, fk := range td.RemovedForeignKeys {
		*up = append(*up, dropForeignKeySQL(td.Name, fk.Name))
		*down = append(*down, addForeignKeySQL(td.Name, fk))
	}
	for _, fc := range td.ModifiedForeignKeys {
		*up = append(*up, dropForeignKeySQL(td.Name, fc.Name), addForeignKeySQL(td.Name, fc.New))
		*down = append(*down, dropForeignKeySQL(td.Name, fc.Name), addForeignKeySQL(td.Name, fc.Old))
	}

	for _, idx := range td.AddedIndexes {
		*up = append(*up, addIndexSQL(td.Name, idx))
		*down = append(*down, dropIndexSQL(td.Name, idx.Name))
	}
	for _, idx := range td.RemovedIndexes {
		*up = append(*up, dropIndexSQL(td.Name, idx.Name))
		*down = append(*down, addIndexSQL(td.Name, idx))
	}
	for _, ic := range td.ModifiedIndexes {
		*up = append(*up, dropIndexSQL(td.Name, ic.Name), addIndexSQL(td.Name, ic.New))
		*down = append(*down, dropIndexSQL(td.Name, ic.Name), addIndexSQL(td.Name, ic.Old))
	}
}
