package sqlsource

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"

	"github.com/mulertech/database/codec"
	"github.com/mulertech/database/schema"
)

func convertCreateTable(stmt *ast.CreateTableStmt) (*schema.Table, error) {
	table := &schema.Table{Name: stmt.Table.Name.O}

	applyTableOptions(stmt.Options, table)

	pkCols := make(map[string]bool)
	for _, colDef := range stmt.Cols {
		col, err := convertColumn(colDef)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", colDef.Name.Name.O, err)
		}
		if col.PrimaryKey {
			pkCols[strings.ToLower(col.Name)] = true
		}
		table.Columns = append(table.Columns, col)
	}
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("table has no columns")
	}

	if err := applyConstraints(stmt.Constraints, table, pkCols); err != nil {
		return nil, err
	}

	assignKeyTags(table)
	return table, nil
}

// applyTableOptions keeps only the MySQL-family clauses schema.TableOptions
// models; anything else a dump might carry (row format, TTL, TiDB-specific
// placement policy, ...) is dropped the way the shared schema type has no
// room for it.
func applyTableOptions(opts []*ast.TableOption, table *schema.Table) {
	for _, opt := range opts {
		switch opt.Tp {
		case ast.TableOptionComment:
			table.Comment = opt.StrValue
		case ast.TableOptionCharset:
			table.Options.Charset = opt.StrValue
		case ast.TableOptionCollate:
			table.Options.Collation = opt.StrValue
		case ast.TableOptionEngine:
			table.Options.Engine = opt.StrValue
		case ast.TableOptionAutoIncrement:
			table.Options.AutoIncrement = opt.UintValue
		}
	}
}

func convertColumn(colDef *ast.ColumnDef) (*schema.Column, error) {
	raw := colDef.Tp.String()
	ct, length, precision, scale, enumValues, err := resolveColumnType(raw)
	if err != nil {
		return nil, err
	}

	col := &schema.Column{
		Name:       colDef.Name.Name.O,
		Type:       ct,
		Length:     length,
		Precision:  precision,
		Scale:      scale,
		Nullable:   true,
		Unsigned:   strings.Contains(strings.ToLower(raw), "unsigned"),
		Collation:  colDef.Tp.GetCollate(),
		EnumValues: enumValues,
	}

	for _, opt := range colDef.Options {
		switch opt.Tp {
		case ast.ColumnOptionNotNull:
			col.Nullable = false
		case ast.ColumnOptionNull:
			col.Nullable = true
		case ast.ColumnOptionPrimaryKey:
			col.PrimaryKey = true
			col.Nullable = false
		case ast.ColumnOptionAutoIncrement:
			col.AutoIncrement = true
		case ast.ColumnOptionUniqKey:
			col.KeyTag = schema.KeyUnique
		case ast.ColumnOptionDefaultValue:
			if s := exprToString(opt.Expr); s != nil {
				col.Default = s
			}
		case ast.ColumnOptionOnUpdate:
			if s := exprToString(opt.Expr); s != nil {
				col.OnUpdate = s
			}
		case ast.ColumnOptionComment:
			if s := exprToString(opt.Expr); s != nil {
				col.Comment = *s
			}
		case ast.ColumnOptionCollate:
			if opt.StrValue != "" {
				col.Collation = opt.StrValue
			}
		}
	}

	return col, nil
}

// validColumnTypes mirrors tomlsource's: the closed set codec.ColumnType
// declares, keyed by the base type name a TiDB types.FieldType.String()
// starts with.
var validColumnTypes = map[string]codec.ColumnType{
	"tinyint": codec.Tinyint, "smallint": codec.Smallint,
	"mediumint": codec.Int, "int": codec.Int, "integer": codec.Int,
	"bigint": codec.Bigint,
	"decimal": codec.Decimal, "numeric": codec.Decimal,
	"float": codec.Float, "double": codec.Double,
	"char": codec.Char, "varchar": codec.Varchar,
	"text": codec.Text, "tinytext": codec.Text, "mediumtext": codec.Text,
	"longtext": codec.LongText,
	"binary":   codec.Binary, "varbinary": codec.Varbinary,
	"blob": codec.Blob, "tinyblob": codec.Blob, "mediumblob": codec.Blob,
	"longblob": codec.LongBlob,
	"date":     codec.Date, "time": codec.Time,
	"datetime": codec.DateTime, "timestamp": codec.Timestamp, "year": codec.Year,
	"enum": codec.Enum, "set": codec.Set, "json": codec.JSON,
	"geometry": codec.Geometry, "point": codec.Point,
	"linestring": codec.LineString, "polygon": codec.Polygon,
}

// resolveColumnType recovers a schema.ColumnType plus its
// length/precision/scale/enum arguments by parsing the raw MySQL type
// string TiDB's types.FieldType.String() renders (e.g. "varchar(255)",
// "decimal(10,2)", "int(11) unsigned", "enum('a','b')"), the same
// approach introspect.parseColumnTypeArgs uses on information_schema's
// type strings. tinyint(1) is left as plain tinyint: unlike
// introspect's live-database path, a dump's author wrote tinyint(1)
// themselves and isn't necessarily using MySQL's boolean convention.
func resolveColumnType(raw string) (ct schema.ColumnType, length, precision, scale int, enumValues []string, err error) {
	lower := strings.ToLower(raw)
	base, _, _ := strings.Cut(lower, "(")
	base = strings.TrimSpace(strings.Split(base, " ")[0])

	ct, ok := validColumnTypes[base]
	if !ok {
		return "", 0, 0, 0, nil, fmt.Errorf("unsupported type %q", raw)
	}

	open := strings.Index(raw, "(")
	if open < 0 {
		return ct, 0, 0, 0, nil, nil
	}
	closeIdx := strings.Index(raw, ")")
	if closeIdx < open {
		return ct, 0, 0, 0, nil, nil
	}
	arg := raw[open+1 : closeIdx]

	if ct == codec.Enum || ct == codec.Set {
		for _, v := range strings.Split(arg, ",") {
			enumValues = append(enumValues, strings.Trim(strings.TrimSpace(v), "'\""))
		}
		return ct, 0, 0, 0, enumValues, nil
	}

	if p, s, ok := strings.Cut(arg, ","); ok {
		fmt.Sscanf(strings.TrimSpace(p), "%d", &precision)
		fmt.Sscanf(strings.TrimSpace(s), "%d", &scale)
		return ct, 0, precision, scale, nil, nil
	}
	fmt.Sscanf(strings.TrimSpace(arg), "%d", &length)
	return ct, length, 0, 0, nil, nil
}

func applyConstraints(constraints []*ast.Constraint, table *schema.Table, pkCols map[string]bool) error {
	for _, c := range constraints {
		cols := make([]string, 0, len(c.Keys))
		for _, key := range c.Keys {
			cols = append(cols, key.Column.Name.O)
		}

		switch c.Tp {
		case ast.ConstraintPrimaryKey:
			if len(cols) > 1 {
				return fmt.Errorf("table %q declares a composite primary key; composite keys are not supported", table.Name)
			}
			for _, name := range cols {
				if col := table.FindColumn(name); col != nil {
					col.PrimaryKey = true
					col.Nullable = false
				}
			}

		case ast.ConstraintUniq, ast.ConstraintUniqKey, ast.ConstraintUniqIndex:
			table.Indexes = append(table.Indexes, &schema.Index{
				Name: c.Name, Columns: cols, Unique: true, Type: schema.IndexBTree,
			})

		case ast.ConstraintIndex, ast.ConstraintKey:
			table.Indexes = append(table.Indexes, &schema.Index{
				Name: c.Name, Columns: cols, Unique: false, Type: schema.IndexBTree,
			})

		case ast.ConstraintFulltext:
			table.Indexes = append(table.Indexes, &schema.Index{
				Name: c.Name, Columns: cols, Unique: false, Type: schema.IndexFullText,
			})

		case ast.ConstraintForeignKey:
			fk := &schema.ForeignKey{
				Name:            c.Name,
				ReferencedTable: c.Refer.Table.Name.O,
			}
			if len(cols) > 0 {
				fk.Column = cols[0]
			}
			for _, spec := range c.Refer.IndexPartSpecifications {
				if spec.Column != nil {
					fk.ReferencedColumn = spec.Column.Name.O
					break
				}
			}
			if c.Refer.OnDelete != nil {
				fk.OnDelete = schema.ReferentialAction(strings.ToUpper(c.Refer.OnDelete.ReferOpt.String()))
			}
			if c.Refer.OnUpdate != nil {
				fk.OnUpdate = schema.ReferentialAction(strings.ToUpper(c.Refer.OnUpdate.ReferOpt.String()))
			}
			if fk.Name == "" {
				fk.Name = schema.ConstraintName(table.Name, fk.Column, fk.ReferencedTable)
			}
			table.ForeignKeys = append(table.ForeignKeys, fk)
		}
	}

	if len(pkCols) > 1 {
		return fmt.Errorf("table %q declares more than one inline primary key column; composite keys are not supported", table.Name)
	}
	return nil
}

// assignKeyTags mirrors tomlsource.assignKeyTags: a dump rarely spells
// out COLUMN_KEY itself, so it is derived from the indexes and primary
// key just parsed, keeping a dump-sourced schema comparable to an
// introspected one.
func assignKeyTags(table *schema.Table) {
	multiCols := make(map[string]bool)
	for _, idx := range table.Indexes {
		if len(idx.Columns) == 0 {
			continue
		}
		if idx.Unique && len(idx.Columns) == 1 {
			continue
		}
		multiCols[idx.Columns[0]] = true
	}

	for _, col := range table.Columns {
		switch {
		case col.PrimaryKey:
			col.KeyTag = schema.KeyPrimary
		case col.KeyTag == schema.KeyUnique:
		case multiCols[col.Name]:
			col.KeyTag = schema.KeyMultiple
		}
	}

	for _, idx := range table.Indexes {
		if idx.Unique && len(idx.Columns) == 1 {
			if col := table.FindColumn(idx.Columns[0]); col != nil && col.KeyTag == schema.KeyNone {
				col.KeyTag = schema.KeyUnique
			}
		}
	}
}

// exprToString renders a TiDB expression AST node back to its source
// text, the same restore-then-unquote approach the teacher's own
// internal/parser/mysql.Parser.exprToString uses for DEFAULT/ON
// UPDATE/COMMENT values.
func exprToString(expr ast.ExprNode) *string {
	if expr == nil {
		return nil
	}

	var sb strings.Builder
	ctx := format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)
	if err := expr.Restore(ctx); err != nil {
		return nil
	}
	s := strings.TrimSpace(sb.String())

	if unquoted, ok := tryUnquoteSQLStringLiteral(s); ok {
		return &unquoted
	}
	return &s
}

func tryUnquoteSQLStringLiteral(s string) (string, bool) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", false
	}
	return strings.ReplaceAll(s[1:len(s)-1], "''", "'"), true
}
