// Package introspect implements the SchemaIntrospector (spec §4.6):
// reading live schema from information_schema and producing a
// schema.Database symmetric to what package metadata declares.
//
// Grounded on internal/introspect/mysql/{tables,columns,indexes}.go, with
// one deliberate completion over the teacher: foreign-key/constraint
// introspection, which the teacher leaves as a commented-out TODO in
// tables.go ("if err := introspectConstraints(...)"), is implemented here
// against information_schema.key_column_usage and
// information_schema.referential_constraints.
package introspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/mulertech/database/codec"
	"github.com/mulertech/database/driver"
	"github.com/mulertech/database/schema"
)

// Introspector reads the connected database's schema.
type Introspector struct {
	conn driver.Connection
}

// New constructs an Introspector over an already-open Connection.
func New(conn driver.Connection) *Introspector {
	return &Introspector{conn: conn}
}

// Introspect reads the current database's tables, columns, keys, foreign
// keys and table options, excluding schema.MigrationHistoryTable.
func (i *Introspector) Introspect(ctx context.Context) (*schema.Database, error) {
	db := &schema.Database{}

	names, comments, err := i.tableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect: tables: %w", err)
	}

	for _, name := range names {
		if name == schema.MigrationHistoryTable {
			continue
		}
		t := &schema.Table{Name: name, Comment: comments[name]}

		if err := i.tableOptions(ctx, t); err != nil {
			return nil, fmt.Errorf("introspect: table options %s: %w", name, err)
		}
		if err := i.columns(ctx, t); err != nil {
			return nil, fmt.Errorf("introspect: columns %s: %w", name, err)
		}
		if err := i.indexes(ctx, t); err != nil {
			return nil, fmt.Errorf("introspect: indexes %s: %w", name, err)
		}
		if err := i.foreignKeys(ctx, t); err != nil {
			return nil, fmt.Errorf("introspect: foreign keys %s: %w", name, err)
		}

		db.Tables = append(db.Tables, t)
	}

	return db, nil
}

func (i *Introspector) tableNames(ctx context.Context) ([]string, map[string]string, error) {
	rows, err := i.conn.Query(ctx, `
		SELECT table_name, table_comment
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
	`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var names []string
	comments := make(map[string]string)
	for rows.Next() {
		var name, comment string
		if err := rows.Scan(&name, &comment); err != nil {
			return nil, nil, err
		}
		names = append(names, name)
		comments[name] = comment
	}
	return names, comments, rows.Err()
}

func (i *Introspector) tableOptions(ctx context.Context, t *schema.Table) error {
	rows, err := i.conn.Query(ctx, `
		SELECT COALESCE(engine, ''), COALESCE(table_collation, ''), auto_increment
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = ?
	`, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		return rows.Err()
	}

	var engine, collation string
	var autoIncrement *int64
	if err := rows.Scan(&engine, &collation, &autoIncrement); err != nil {
		return err
	}

	charset := collation
	if idx := strings.Index(collation, "_"); idx > 0 {
		charset = collation[:idx]
	}
	var ai uint64
	if autoIncrement != nil {
		ai = uint64(*autoIncrement)
	}

	t.Options = schema.TableOptions{
		Engine:        engine,
		Charset:       charset,
		Collation:     collation,
		AutoIncrement: ai,
	}
	return rows.Err()
}

func (i *Introspector) columns(ctx context.Context, t *schema.Table) error {
	rows, err := i.conn.Query(ctx, `
		SELECT
			c.column_name,
			c.column_type,
			COALESCE(c.column_comment, ''),
			c.is_nullable,
			c.column_default,
			COALESCE(c.extra, ''),
			COALESCE(c.character_set_name, ''),
			COALESCE(c.collation_name, ''),
			COALESCE(c.column_key, '')
		FROM information_schema.columns c
		WHERE c.table_schema = DATABASE() AND c.table_name = ?
		ORDER BY c.ordinal_position
	`, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, colType, comment, nullable, extra, charset, collation, colKey string
		var defaultVal *string
		if err := rows.Scan(&name, &colType, &comment, &nullable, &defaultVal, &extra, &charset, &collation, &colKey); err != nil {
			return err
		}

		col := &schema.Column{
			Name:       name,
			Type:       normalizeColumnType(colType),
			Nullable:   nullable == "YES",
			PrimaryKey: colKey == "PRI",
			Default:    defaultVal,
			Extra:      extra,
			Comment:    comment,
			Collation:  collation,
			KeyTag:     keyTagFor(colKey),
		}
		col.AutoIncrement = strings.Contains(extra, "auto_increment")
		col.Unsigned = strings.Contains(colType, "unsigned")
		col.Length, col.Precision, col.Scale, col.EnumValues = parseColumnTypeArgs(colType)

		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

func keyTagFor(colKey string) schema.KeyTag {
	switch colKey {
	case "PRI":
		return schema.KeyPrimary
	case "UNI":
		return schema.KeyUnique
	case "MUL":
		return schema.KeyMultiple
	default:
		return schema.KeyNone
	}
}

// normalizeColumnType maps information_schema.columns.column_type's raw
// MySQL type string (e.g. "tinyint(1) unsigned", "decimal(10,2)") onto
// the closed codec.ColumnType set, special-casing the tinyint(1) boolean
// convention exactly like core.NormalizeDataType does.
func normalizeColumnType(raw string) codec.ColumnType {
	lower := strings.ToLower(raw)
	base, _, _ := strings.Cut(lower, "(")
	base = strings.TrimSpace(strings.Split(base, " ")[0])

	switch base {
	case "tinyint":
		if strings.Contains(lower, "tinyint(1)") {
			return codec.Tinyint1
		}
		return codec.Tinyint
	case "smallint":
		return codec.Smallint
	case "mediumint", "int", "integer":
		return codec.Int
	case "bigint":
		return codec.Bigint
	case "decimal", "numeric":
		return codec.Decimal
	case "float":
		return codec.Float
	case "double":
		return codec.Double
	case "char":
		return codec.Char
	case "varchar":
		return codec.Varchar
	case "text", "tinytext", "mediumtext":
		return codec.Text
	case "longtext":
		return codec.LongText
	case "binary":
		return codec.Binary
	case "varbinary":
		return codec.Varbinary
	case "blob", "tinyblob", "mediumblob":
		return codec.Blob
	case "longblob":
		return codec.LongBlob
	case "date":
		return codec.Date
	case "time":
		return codec.Time
	case "datetime":
		return codec.DateTime
	case "timestamp":
		return codec.Timestamp
	case "year":
		return codec.Year
	case "enum":
		return codec.Enum
	case "set":
		return codec.Set
	case "json":
		return codec.JSON
	case "geometry":
		return codec.Geometry
	case "point":
		return codec.Point
	case "linestring":
		return codec.LineString
	case "polygon":
		return codec.Polygon
	default:
		return codec.Varchar
	}
}

// parseColumnTypeArgs pulls length/precision/scale/enum-values out of the
// parenthesized argument list of a raw MySQL type string.
func parseColumnTypeArgs(raw string) (length, precision, scale int, enumValues []string) {
	open := strings.Index(raw, "(")
	if open < 0 {
		return 0, 0, 0, nil
	}
	closeIdx := strings.Index(raw, ")")
	if closeIdx < open {
		return 0, 0, 0, nil
	}
	arg := raw[open+1 : closeIdx]

	base := strings.ToLower(strings.TrimSpace(raw[:open]))
	if base == "enum" || base == "set" {
		for _, v := range strings.Split(arg, ",") {
			enumValues = append(enumValues, strings.Trim(strings.TrimSpace(v), "'\""))
		}
		return 0, 0, 0, enumValues
	}

	if p, s, ok := strings.Cut(arg, ","); ok {
		fmt.Sscanf(strings.TrimSpace(p), "%d", &precision)
		fmt.Sscanf(strings.TrimSpace(s), "%d", &scale)
		return 0, precision, scale, nil
	}
	fmt.Sscanf(strings.TrimSpace(arg), "%d", &length)
	return length, 0, 0, nil
}

func (i *Introspector) indexes(ctx context.Context, t *schema.Table) error {
	rows, err := i.conn.Query(ctx, `
		SELECT
			i.index_name,
			i.non_unique,
			i.index_type,
			GROUP_CONCAT(c.column_name ORDER BY c.seq_in_index SEPARATOR ',')
		FROM information_schema.statistics i
		JOIN information_schema.statistics c
			ON i.table_schema = c.table_schema
			AND i.table_name = c.table_name
			AND i.index_name = c.index_name
		WHERE i.table_schema = DATABASE() AND i.table_name = ?
		GROUP BY i.index_name, i.non_unique, i.index_type
	`, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, indexType, columns string
		var nonUnique int
		if err := rows.Scan(&name, &nonUnique, &indexType, &columns); err != nil {
			return err
		}
		if name == "PRIMARY" {
			continue // primary key surfaces on the column, not as a separate index
		}
		t.Indexes = append(t.Indexes, &schema.Index{
			Name:    name,
			Unique:  nonUnique == 0,
			Type:    normalizeIndexType(indexType),
			Columns: strings.Split(columns, ","),
		})
	}
	return rows.Err()
}

func normalizeIndexType(t string) schema.IndexType {
	switch strings.ToUpper(t) {
	case "FULLTEXT":
		return schema.IndexFullText
	case "SPATIAL":
		return schema.IndexSpatial
	default:
		return schema.IndexBTree
	}
}

// foreignKeys reads real constraint data from key_column_usage joined with
// referential_constraints. The teacher leaves this step as a commented-out
// call in internal/introspect/mysql/tables.go; this is where it is
// actually implemented.
func (i *Introspector) foreignKeys(ctx context.Context, t *schema.Table) error {
	rows, err := i.conn.Query(ctx, `
		SELECT
			kcu.constraint_name,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.update_rule,
			rc.delete_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON kcu.constraint_schema = rc.constraint_schema
			AND kcu.constraint_name = rc.constraint_name
		WHERE kcu.table_schema = DATABASE()
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
	`, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, column, refTable, refColumn, updateRule, deleteRule string
		if err := rows.Scan(&name, &column, &refTable, &refColumn, &updateRule, &deleteRule); err != nil {
			return err
		}
		t.ForeignKeys = append(t.ForeignKeys, &schema.ForeignKey{
			Name:             name,
			Column:           column,
			ReferencedTable:  refTable,
			ReferencedColumn: refColumn,
			OnUpdate:         normalizeReferentialAction(updateRule),
			OnDelete:         normalizeReferentialAction(deleteRule),
		})
	}
	return rows.Err()
}

func normalizeReferentialAction(rule string) schema.ReferentialAction {
	switch strings.ToUpper(strings.TrimSpace(rule)) {
	case "CASCADE":
		return schema.ActionCascade
	case "SET NULL":
		return schema.ActionSetNull
	case "NO ACTION":
		return schema.ActionNoAction
	default:
		return schema.ActionRestrict
	}
}
