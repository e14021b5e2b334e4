package metadata

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mulertech/database/codec"
	"github.com/mulertech/database/schema"
)

// tableNamer lets an entity override the default snake_case table name.
type tableNamer interface{ TableName() string }

// repositoryNamer lets an entity declare its optional repository binding
// (spec §4.1: "optional repository tag").
type repositoryNamer interface{ Repository() string }

// tableOptioner lets an entity override the default storage engine,
// charset and collation the declared table renders with.
type tableOptioner interface {
	TableOptions() (engine, charset, collation string)
}

// scanEntity builds an EntityMetadata for t by walking its exported fields
// and parsing their `db:"..."` and `rel:"..."` struct tags, per the tag
// vocabulary in SPEC_FULL.md §4.1.1. It mirrors the teacher's single-pass,
// per-field validation style (internal/core/validate_column.go) but reads
// from reflect.StructField tags instead of a parsed CREATE TABLE AST.
func scanEntity(t reflect.Type) (*EntityMetadata, error) {
	em := &EntityMetadata{
		Type:           t,
		Table:          defaultTableName(t),
		ColumnsByField: make(map[string]*ColumnMetadata),
		ColumnsByName:  make(map[string]*ColumnMetadata),
		Engine:         "InnoDB",
		Charset:        "utf8mb4",
		Collation:      "utf8mb4_unicode_ci",
	}

	zero := reflect.New(t).Interface()
	if tn, ok := zero.(tableNamer); ok {
		em.Table = tn.TableName()
	}
	if rn, ok := zero.(repositoryNamer); ok {
		em.Repository = rn.Repository()
	}
	if to, ok := zero.(tableOptioner); ok {
		engine, charset, collation := to.TableOptions()
		if engine != "" {
			em.Engine = engine
		}
		if charset != "" {
			em.Charset = charset
		}
		if collation != "" {
			em.Collation = collation
		}
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}

		if dbTag, ok := f.Tag.Lookup("db"); ok {
			if dbTag == "-" {
				continue
			}
			cm, fk, err := parseDBTag(f, dbTag)
			if err != nil {
				return nil, fmt.Errorf("metadata: %s.%s: %w", t.Name(), f.Name, err)
			}
			em.Columns = append(em.Columns, cm)
			em.ColumnsByField[f.Name] = cm
			em.ColumnsByName[cm.Column.Name] = cm
			if cm.Column.PrimaryKey {
				if em.PrimaryKey != nil {
					return nil, fmt.Errorf("metadata: %s: multiple primary key columns (%s, %s)", t.Name(), em.PrimaryKey.FieldName, f.Name)
				}
				em.PrimaryKey = cm
			}
			if fk != nil {
				fk.ConstraintName = schema.ConstraintName(em.Table, fk.Column, fk.ReferencedTable)
				em.ForeignKeys = append(em.ForeignKeys, fk)
			}
		}

		if relTag, ok := f.Tag.Lookup("rel"); ok {
			rm, err := parseRelTag(f, relTag)
			if err != nil {
				return nil, fmt.Errorf("metadata: %s.%s: %w", t.Name(), f.Name, err)
			}
			em.Relations = append(em.Relations, rm)
		}
	}

	if em.PrimaryKey == nil {
		return nil, fmt.Errorf("metadata: %s declares no primary key column (`db:\"...,pk\"`)", t.Name())
	}

	return em, nil
}

// parseDBTag parses a `db:"name[,opt]*"` tag into a ColumnMetadata and,
// when an `fk=` option is present, a ForeignKeyMetadata.
func parseDBTag(f reflect.StructField, tag string) (*ColumnMetadata, *ForeignKeyMetadata, error) {
	parts := strings.Split(tag, ",")
	name := strings.TrimSpace(parts[0])
	if name == "" {
		name = snakeCase(f.Name)
	}

	ft := f.Type
	nullable := ft.Kind() == reflect.Ptr
	for ft.Kind() == reflect.Ptr {
		ft = ft.Elem()
	}

	col := schema.Column{
		Name:     name,
		Type:     columnTypeFor(f.Type),
		Nullable: nullable,
	}

	var fk *ForeignKeyMetadata

	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key, value, hasValue := strings.Cut(opt, "=")
		switch key {
		case "pk":
			col.PrimaryKey = true
			col.Nullable = false
		case "auto_increment":
			col.AutoIncrement = true
		case "unique":
			col.KeyTag = schema.KeyUnique
		case "index":
			col.KeyTag = schema.KeyMultiple
		case "nullable":
			col.Nullable = true
		case "not_null":
			col.Nullable = false
		case "unsigned":
			col.Unsigned = true
		case "type":
			if !hasValue {
				return nil, nil, fmt.Errorf("type option requires a value")
			}
			applyTypeSpec(&col, value)
		case "default":
			v := value
			col.Default = &v
		case "comment":
			col.Comment = value
		case "fk":
			if !hasValue {
				return nil, nil, fmt.Errorf("fk option requires a value, e.g. fk=units.id")
			}
			table, refCol, ok := strings.Cut(value, ".")
			if !ok {
				return nil, nil, fmt.Errorf("fk value %q must be table.column", value)
			}
			fk = &ForeignKeyMetadata{
				Column:           name,
				ReferencedTable:  table,
				ReferencedColumn: refCol,
				OnDelete:         schema.ActionRestrict,
				OnUpdate:         schema.ActionRestrict,
			}
		case "on_delete":
			if fk == nil {
				return nil, nil, fmt.Errorf("on_delete without fk")
			}
			fk.OnDelete = referentialAction(value)
		case "on_update":
			if fk == nil {
				return nil, nil, fmt.Errorf("on_update without fk")
			}
			fk.OnUpdate = referentialAction(value)
		default:
			return nil, nil, fmt.Errorf("unknown db tag option %q", opt)
		}
	}

	return &ColumnMetadata{FieldName: f.Name, FieldType: f.Type, Column: col}, fk, nil
}

// applyTypeSpec parses an explicit `type=varchar(255)`-style override into
// the column's Type/Length/Precision/Scale/EnumValues fields.
func applyTypeSpec(col *schema.Column, spec string) {
	name, arg, hasArg := strings.Cut(spec, "(")
	col.Type = codec.ColumnType(strings.TrimSpace(name))
	if !hasArg {
		return
	}
	arg = strings.TrimSuffix(arg, ")")

	switch col.Type {
	case codec.Enum, codec.Set:
		for _, v := range strings.Split(arg, ",") {
			col.EnumValues = append(col.EnumValues, strings.Trim(strings.TrimSpace(v), "'\""))
		}
	case codec.Decimal:
		p, s, ok := strings.Cut(arg, ",")
		if precision, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			col.Precision = precision
		}
		if ok {
			if scale, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				col.Scale = scale
			}
		}
	default:
		if length, err := strconv.Atoi(strings.TrimSpace(arg)); err == nil {
			col.Length = length
		}
	}
}

func referentialAction(v string) schema.ReferentialAction {
	switch strings.ToLower(v) {
	case "cascade":
		return schema.ActionCascade
	case "set_null":
		return schema.ActionSetNull
	case "no_action":
		return schema.ActionNoAction
	default:
		return schema.ActionRestrict
	}
}

// parseRelTag parses a `rel:"kind,target=Type,inverse=Field,cascade=persist+remove,join=column"` tag.
func parseRelTag(f reflect.StructField, tag string) (*RelationMetadata, error) {
	parts := strings.Split(tag, ",")
	if len(parts) == 0 || parts[0] == "" {
		return nil, fmt.Errorf("rel tag requires a relation kind")
	}

	rm := &RelationMetadata{
		FieldName: f.Name,
		Kind:      RelationKind(strings.TrimSpace(parts[0])),
		Cascades:  make(map[Cascade]bool),
	}

	ft := f.Type
	for ft.Kind() == reflect.Ptr || ft.Kind() == reflect.Slice {
		ft = ft.Elem()
	}
	rm.Target = ft

	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key, value, _ := strings.Cut(opt, "=")
		switch key {
		case "target":
			// Target is resolved structurally from the field type above;
			// the tag value is documentation unless the field is a raw
			// interface or id reference, which this registry doesn't
			// support, so the value is accepted and ignored here.
		case "inverse":
			rm.InverseProperty = value
		case "join":
			rm.JoinColumn = value
		case "cascade":
			for _, c := range strings.Split(value, "+") {
				rm.Cascades[Cascade(strings.TrimSpace(c))] = true
			}
		default:
			return nil, fmt.Errorf("unknown rel tag option %q", opt)
		}
	}

	return rm, nil
}
