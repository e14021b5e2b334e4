package tomlsource

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mulertech/database/codec"
	"github.com/mulertech/database/schema"
)

// validColumnTypes mirrors the closed set codec.ColumnType declares; a
// TOML document that misspells a type fails at parse time rather than at
// the first attempted migration.
var validColumnTypes = map[string]codec.ColumnType{
	"tinyint": codec.Tinyint, "tinyint1": codec.Tinyint1,
	"smallint": codec.Smallint, "int": codec.Int, "bigint": codec.Bigint,
	"decimal": codec.Decimal, "float": codec.Float, "double": codec.Double,
	"char": codec.Char, "varchar": codec.Varchar,
	"text": codec.Text, "longtext": codec.LongText,
	"binary": codec.Binary, "varbinary": codec.Varbinary,
	"blob": codec.Blob, "longblob": codec.LongBlob,
	"date": codec.Date, "time": codec.Time,
	"datetime": codec.DateTime, "timestamp": codec.Timestamp, "year": codec.Year,
	"enum": codec.Enum, "set": codec.Set, "json": codec.JSON,
	"geometry": codec.Geometry, "point": codec.Point,
	"linestring": codec.LineString, "polygon": codec.Polygon,
}

type converter struct {
	doc        *document
	seenTables map[string]bool
}

func newConverter(doc *document) *converter {
	return &converter{doc: doc, seenTables: make(map[string]bool, len(doc.Tables))}
}

func (c *converter) convert() (*schema.Database, error) {
	db := &schema.Database{
		Name:    c.doc.Database.Name,
		Charset: c.doc.Database.Charset,
		Tables:  make([]*schema.Table, 0, len(c.doc.Tables)),
	}

	for i := range c.doc.Tables {
		t, err := c.convertTable(&c.doc.Tables[i])
		if err != nil {
			return nil, fmt.Errorf("tomlsource: table %q: %w", c.doc.Tables[i].Name, err)
		}
		db.Tables = append(db.Tables, t)
	}

	return db, nil
}

func (c *converter) convertTable(tt *table) (*schema.Table, error) {
	if strings.TrimSpace(tt.Name) == "" {
		return nil, fmt.Errorf("table name is empty")
	}
	lower := strings.ToLower(tt.Name)
	if c.seenTables[lower] {
		return nil, fmt.Errorf("duplicate table name %q", tt.Name)
	}
	c.seenTables[lower] = true

	out := &schema.Table{
		Name:    tt.Name,
		Comment: tt.Comment,
		Options: schema.TableOptions{
			Engine:        tt.Engine,
			Charset:       tt.Charset,
			Collation:     tt.Collation,
			AutoIncrement: tt.AutoIncr,
		},
	}

	seenCols := make(map[string]bool, len(tt.Columns))
	pkSeen := false
	for i := range tt.Columns {
		col, err := convertColumn(&tt.Columns[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", tt.Columns[i].Name, err)
		}
		lower := strings.ToLower(col.Name)
		if seenCols[lower] {
			return nil, fmt.Errorf("duplicate column name %q", col.Name)
		}
		seenCols[lower] = true
		if col.PrimaryKey {
			if pkSeen {
				return nil, fmt.Errorf("table %q declares more than one primary key column; composite keys are not supported", tt.Name)
			}
			pkSeen = true
		}
		out.Columns = append(out.Columns, col)
	}
	if len(out.Columns) == 0 {
		return nil, fmt.Errorf("table has no columns")
	}

	for i := range tt.ForeignKeys {
		fk, err := convertForeignKey(&tt.ForeignKeys[i], out)
		if err != nil {
			return nil, fmt.Errorf("foreign key %q: %w", tt.ForeignKeys[i].Name, err)
		}
		out.ForeignKeys = append(out.ForeignKeys, fk)
	}

	seenIdx := make(map[string]bool, len(tt.Indexes))
	for i := range tt.Indexes {
		idx, err := convertIndex(&tt.Indexes[i], out)
		if err != nil {
			return nil, fmt.Errorf("index %q: %w", tt.Indexes[i].Name, err)
		}
		if idx.Name != "" {
			lower := strings.ToLower(idx.Name)
			if seenIdx[lower] {
				return nil, fmt.Errorf("duplicate index name %q", idx.Name)
			}
			seenIdx[lower] = true
		}
		out.Indexes = append(out.Indexes, idx)
	}

	assignKeyTags(out)

	return out, nil
}

func convertColumn(tc *column) (*schema.Column, error) {
	if strings.TrimSpace(tc.Name) == "" {
		return nil, fmt.Errorf("column name is empty")
	}

	ct, err := resolveColumnType(tc)
	if err != nil {
		return nil, err
	}

	col := &schema.Column{
		Name:          tc.Name,
		Type:          ct,
		Length:        tc.Length,
		Precision:     tc.Precision,
		Scale:         tc.Scale,
		Nullable:      tc.Nullable,
		Unsigned:      tc.Unsigned,
		PrimaryKey:    tc.PrimaryKey,
		AutoIncrement: tc.AutoIncrement,
		Comment:       tc.Comment,
		Collation:     tc.Collation,
		EnumValues:    tc.EnumValues,
	}

	if tc.Default != nil {
		s := normalizeDefault(tc.Default)
		col.Default = &s
	}
	if tc.OnUpdate != "" {
		v := tc.OnUpdate
		col.OnUpdate = &v
	}
	if tc.Unique {
		col.KeyTag = schema.KeyUnique
	}

	return col, nil
}

func resolveColumnType(tc *column) (schema.ColumnType, error) {
	raw := strings.ToLower(strings.TrimSpace(tc.Type))
	if raw == "" {
		return "", fmt.Errorf("type is empty")
	}
	ct, ok := validColumnTypes[raw]
	if !ok {
		return "", fmt.Errorf("unsupported type %q", tc.Type)
	}
	if ct == codec.Enum && len(tc.EnumValues) == 0 {
		return "", fmt.Errorf("enum column is missing values")
	}
	return ct, nil
}

// normalizeDefault renders a TOML-decoded default value (string, bool, or
// number) to the string schema.Column.Default expects, matching the
// teacher's own normalizeDefault (internal/parser/toml/parser_column.go).
func normalizeDefault(v any) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func convertForeignKey(tf *foreignKey, table *schema.Table) (*schema.ForeignKey, error) {
	if tf.Column == "" {
		return nil, fmt.Errorf("missing column")
	}
	if table.FindColumn(tf.Column) == nil {
		return nil, fmt.Errorf("references nonexistent column %q", tf.Column)
	}
	if tf.ReferencedTable == "" || tf.ReferencedColumn == "" {
		return nil, fmt.Errorf("missing referenced_table/referenced_column")
	}

	name := tf.Name
	if name == "" {
		name = schema.ConstraintName(table.Name, tf.Column, tf.ReferencedTable)
	}

	return &schema.ForeignKey{
		Name:             name,
		Column:           tf.Column,
		ReferencedTable:  tf.ReferencedTable,
		ReferencedColumn: tf.ReferencedColumn,
		OnDelete:         schema.ReferentialAction(strings.ToUpper(tf.OnDelete)),
		OnUpdate:         schema.ReferentialAction(strings.ToUpper(tf.OnUpdate)),
	}, nil
}

func convertIndex(ti *index, table *schema.Table) (*schema.Index, error) {
	if len(ti.Columns) == 0 {
		name := ti.Name
		if name == "" {
			name = "(unnamed)"
		}
		return nil, fmt.Errorf("index %s has no columns", name)
	}
	for _, colName := range ti.Columns {
		if table.FindColumn(colName) == nil {
			return nil, fmt.Errorf("references nonexistent column %q", colName)
		}
	}

	idxType := schema.IndexBTree
	if ti.Type != "" {
		idxType = schema.IndexType(strings.ToUpper(ti.Type))
	}

	return &schema.Index{
		Name:    ti.Name,
		Columns: ti.Columns,
		Unique:  ti.Unique,
		Type:    idxType,
	}, nil
}

// assignKeyTags fills in each column's KeyTag the way an introspected
// MySQL table's information_schema.COLUMNS.COLUMN_KEY would read, so a
// TOML-declared schema compares equal to the live one on this field
// (spec §3's "key tag" invariant) without the author spelling it out
// explicitly for every column.
func assignKeyTags(table *schema.Table) {
	multiCols := make(map[string]bool)
	for _, idx := range table.Indexes {
		if len(idx.Columns) == 0 {
			continue
		}
		first := idx.Columns[0]
		if idx.Unique && len(idx.Columns) == 1 {
			continue // handled per-column below via KeyUnique
		}
		multiCols[first] = true
	}

	for _, col := range table.Columns {
		switch {
		case col.PrimaryKey:
			col.KeyTag = schema.KeyPrimary
		case col.KeyTag == schema.KeyUnique:
			// already set from a column-level `unique = true`.
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
