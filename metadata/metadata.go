// Package metadata implements the MetadataRegistry: a single-pass,
// reflect-based scanner that discovers entity declarations from Go struct
// tags and produces immutable EntityMetadata records (spec §4.1).
//
// Per the spec's design note ("a registration call at startup" maps to
// dynamic reflection of declared entities), entity types are registered
// once, at process startup, via Register/RegisterMany; the resulting
// registry is safe to read concurrently from any goroutine without
// locking thereafter, mirroring the teacher's single "process-wide,
// constructed once" MetadataRegistry contract (spec §5).
package metadata

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/mulertech/database/codec"
	"github.com/mulertech/database/dberrors"
	"github.com/mulertech/database/metadata/cache"
	"github.com/mulertech/database/schema"
)

// RelationKind enumerates the relation kinds from spec §3.
type RelationKind string

const (
	OneToOne   RelationKind = "one_to_one"
	OneToMany  RelationKind = "one_to_many"
	ManyToOne  RelationKind = "many_to_one"
	ManyToMany RelationKind = "many_to_many"
)

// Cascade enumerates the cascade operations a relation can propagate.
type Cascade string

const (
	CascadePersist Cascade = "persist"
	CascadeRemove  Cascade = "remove"
)

// ColumnMetadata is the spec's ColumnMetadata essentials, bound to the Go
// struct field it was parsed from.
type ColumnMetadata struct {
	FieldName string
	FieldType reflect.Type
	Column    schema.Column
}

// RelationMetadata is the spec's RelationMetadata.
type RelationMetadata struct {
	FieldName       string
	Kind            RelationKind
	Target          reflect.Type
	InverseProperty string
	JoinEntity      reflect.Type // many-to-many only
	JoinColumn      string       // one/many-to-one/many, FK column on the owning side
	Cascades        map[Cascade]bool
}

// ForeignKeyMetadata is the spec's ForeignKeyMetadata.
type ForeignKeyMetadata struct {
	Column           string
	ReferencedTable  string
	ReferencedColumn string
	OnDelete         schema.ReferentialAction
	OnUpdate         schema.ReferentialAction
	ConstraintName   string
}

// EntityMetadata is the immutable, per-type record the registry produces.
type EntityMetadata struct {
	Type           reflect.Type
	Table          string
	PrimaryKey     *ColumnMetadata
	Columns        []*ColumnMetadata
	ColumnsByField map[string]*ColumnMetadata
	ColumnsByName  map[string]*ColumnMetadata
	Relations      []*RelationMetadata
	ForeignKeys    []*ForeignKeyMetadata
	Indexes        []*schema.Index
	Repository     string
	AutoIncrement  uint64
	Engine         string
	Charset        string
	Collation      string
}

// Schema renders this entity's declared structure in the shared schema.Table
// shape, suitable for comparison against an introspected live table
// (spec §4.7).
func (em *EntityMetadata) Schema() *schema.Table {
	t := &schema.Table{
		Name: em.Table,
		Options: schema.TableOptions{
			Engine:        em.Engine,
			Charset:       em.Charset,
			Collation:     em.Collation,
			AutoIncrement: em.AutoIncrement,
		},
		Indexes: em.Indexes,
	}
	for _, c := range em.Columns {
		col := c.Column
		t.Columns = append(t.Columns, &col)
	}
	for _, fk := range em.ForeignKeys {
		t.ForeignKeys = append(t.ForeignKeys, &schema.ForeignKey{
			Name:             fk.ConstraintName,
			Column:           fk.Column,
			ReferencedTable:  fk.ReferencedTable,
			ReferencedColumn: fk.ReferencedColumn,
			OnDelete:         fk.OnDelete,
			OnUpdate:         fk.OnUpdate,
		})
	}
	return t
}

// Named interface support, mirroring the teacher's sortNamed helper
// pattern (internal/diff/helpers.go) applied to table lists.
type named interface{ GetName() string }

func (em *EntityMetadata) GetName() string { return em.Table }

// Registry is the process-wide MetadataRegistry.
type Registry struct {
	mu              sync.RWMutex
	byType          map[reflect.Type]*EntityMetadata
	byTable         map[string]*EntityMetadata
	reverseCache    *cache.Cache[string, reflect.Type]
}

// NewRegistry constructs an empty registry. Most callers use the
// package-level Default registry instead; NewRegistry exists for tests
// and for callers who want an isolated registry (e.g. per test suite).
func NewRegistry() *Registry {
	return &Registry{
		byType:       make(map[reflect.Type]*EntityMetadata),
		byTable:      make(map[string]*EntityMetadata),
		reverseCache: cache.New[string, reflect.Type](cache.LRU, 256),
	}
}

// Default is the process-wide registry used by package-level Register/Get.
var Default = NewRegistry()

// Register scans entity and installs its EntityMetadata into the default
// registry. It panics on a declaration error, matching the "fail fast at
// startup" idiom expected of a registration call (errors here indicate a
// programming mistake, not a runtime condition).
func Register(entity any) *EntityMetadata {
	em, err := Default.register(entity)
	if err != nil {
		panic(err)
	}
	return em
}

// RegisterMany registers several entities in declaration order, then
// validates every declared inverse relation now that all of them are
// known (spec §3: "every relation's inverse property, when declared,
// exists on the target entity and its declared target points back").
func RegisterMany(entities ...any) {
	for _, e := range entities {
		Register(e)
	}
	if err := Default.ValidateRelations(); err != nil {
		panic(err)
	}
}

// ValidateRelations checks every registered entity's declared `inverse=`
// relations against the default registry.
func ValidateRelations() error {
	return Default.ValidateRelations()
}

// ValidateRelations walks every registered entity's relations and, for
// each one that declares an inverse property, confirms the target entity
// has a relation field by that name whose own target points back to the
// declaring entity. It is a no-op for relations that leave inverse unset.
//
// Unlike register, this only makes sense once every entity the graph
// references has been registered, so it is not run automatically by a
// single Register call — callers that register entities one at a time
// (rather than through RegisterMany) must invoke it explicitly once
// registration is complete.
func (r *Registry) ValidateRelations() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, em := range r.byType {
		for _, rel := range em.Relations {
			if rel.InverseProperty == "" {
				continue
			}

			target, ok := r.byType[rel.Target]
			if !ok {
				return &dberrors.InvalidInverseRelation{
					Entity: em.Type.Name(), Field: rel.FieldName, Target: rel.Target.Name(),
					Inverse: rel.InverseProperty, Reason: "target entity is not registered",
				}
			}

			inverseRel, ok := target.relationByField(rel.InverseProperty)
			if !ok {
				return &dberrors.InvalidInverseRelation{
					Entity: em.Type.Name(), Field: rel.FieldName, Target: rel.Target.Name(),
					Inverse: rel.InverseProperty, Reason: "no such relation field on the target entity",
				}
			}

			if inverseRel.Target != em.Type {
				return &dberrors.InvalidInverseRelation{
					Entity: em.Type.Name(), Field: rel.FieldName, Target: rel.Target.Name(),
					Inverse: rel.InverseProperty,
					Reason: fmt.Sprintf("points back to %s instead of %s", inverseRel.Target.Name(), em.Type.Name()),
				}
			}
		}
	}
	return nil
}

// relationByField finds a relation on em by its Go field name.
func (em *EntityMetadata) relationByField(name string) (*RelationMetadata, bool) {
	for _, rel := range em.Relations {
		if rel.FieldName == name {
			return rel, true
		}
	}
	return nil, false
}

// Get resolves a Go type's EntityMetadata from the default registry,
// failing with UnknownEntity if the type has not been registered.
func Get(entity any) (*EntityMetadata, error) {
	return Default.Get(entity)
}

// Tables returns all table names in the default registry, in a
// deterministic, sorted order (spec §4.1: "deterministic order for
// reproducible diffs").
func Tables() []string {
	return Default.Tables()
}

// EntityForTable is the registry's inverse lookup.
func EntityForTable(table string) (reflect.Type, bool) {
	return Default.EntityForTable(table)
}

func (r *Registry) register(entity any) (*EntityMetadata, error) {
	t := reflect.TypeOf(entity)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("metadata: %s is not a struct", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byType[t]; ok {
		return existing, nil
	}

	em, err := scanEntity(t)
	if err != nil {
		return nil, err
	}

	if other, ok := r.byTable[em.Table]; ok && other.Type != t {
		return nil, &dberrors.DuplicateTable{Table: em.Table, Existing: other.Type.Name(), New: t.Name()}
	}

	r.byType[t] = em
	r.byTable[em.Table] = em
	return em, nil
}

// Get implements Registry.Get (non-panicking variant for library callers
// who want to handle UnknownEntity themselves).
func (r *Registry) Get(entity any) (*EntityMetadata, error) {
	t := reflect.TypeOf(entity)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.mu.RLock()
	em, ok := r.byType[t]
	r.mu.RUnlock()
	if !ok {
		return nil, &dberrors.UnknownEntity{Type: t.String()}
	}
	return em, nil
}

// GetByType resolves metadata directly from a reflect.Type, used by the
// unit-of-work and change-detector packages which already carry a
// reflect.Value rather than a fresh instance.
func (r *Registry) GetByType(t reflect.Type) (*EntityMetadata, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.mu.RLock()
	em, ok := r.byType[t]
	r.mu.RUnlock()
	if !ok {
		return nil, &dberrors.UnknownEntity{Type: t.String()}
	}
	return em, nil
}

func GetByType(t reflect.Type) (*EntityMetadata, error) { return Default.GetByType(t) }

func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byTable))
	for name := range r.byTable {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) EntityForTable(table string) (reflect.Type, bool) {
	if t, ok := r.reverseCache.Get(table); ok {
		return t, true
	}
	r.mu.RLock()
	em, ok := r.byTable[table]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	r.reverseCache.Set(table, em.Type, table)
	return em.Type, true
}

// AllMetadata returns every registered EntityMetadata, sorted by table
// name, for callers that need to walk the whole declared schema (e.g.
// SchemaComparer).
func (r *Registry) AllMetadata() []*EntityMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*EntityMetadata, 0, len(r.byTable))
	for _, em := range r.byTable {
		out = append(out, em)
	}
	sortNamed(out)
	return out
}

func AllMetadata() []*EntityMetadata { return Default.AllMetadata() }

func sortNamed[T named](items []T) {
	sort.Slice(items, func(i, j int) bool { return items[i].GetName() < items[j].GetName() })
}

// snakeCase converts a Go type/field name such as "UnitID" to
// "unit_id", matching the teacher's snake_case table-naming convention
// (internal/core/validate.go: snakeCaseRe).
func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				prev := rune(s[i-1])
				nextLower := i+1 < len(s) && s[i+1] >= 'a' && s[i+1] <= 'z'
				if (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9') || (nextLower && b.Len() > 0) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// defaultTableName is snake_case(type), used when an entity doesn't
// implement TableName() (spec §4.1).
func defaultTableName(t reflect.Type) string {
	return snakeCase(t.Name())
}

// columnTypeFor infers the default ColumnType for a Go field type, used
// when a tag omits an explicit `type=`.
func columnTypeFor(t reflect.Type) codec.ColumnType {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return codec.Tinyint1
	case reflect.Int8, reflect.Uint8:
		return codec.Tinyint
	case reflect.Int16, reflect.Uint16:
		return codec.Smallint
	case reflect.Int32, reflect.Uint32:
		return codec.Int
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return codec.Bigint
	case reflect.Float32:
		return codec.Float
	case reflect.Float64:
		return codec.Double
	case reflect.Map, reflect.Slice:
		if t == reflect.TypeOf([]byte(nil)) {
			return codec.Varbinary
		}
		return codec.JSON
	case reflect.Struct:
		if t.PkgPath() == "time" && t.Name() == "Time" {
			return codec.DateTime
		}
		return codec.JSON
	default:
		return codec.Varchar
	}
}
