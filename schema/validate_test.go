package schema

import (
	"testing"

	"github.com/mulertech/database/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleValidDatabase() *Database {
	authors := &Table{
		Name: "authors",
		Columns: []*Column{
			{Name: "id", Type: codec.Bigint, PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: codec.Varchar, Length: 255, Nullable: true},
		},
	}
	posts := &Table{
		Name: "posts",
		Columns: []*Column{
			{Name: "id", Type: codec.Bigint, PrimaryKey: true, AutoIncrement: true},
			{Name: "author_id", Type: codec.Bigint},
		},
		ForeignKeys: []*ForeignKey{
			{Name: "fk_posts_author_id_authors", Column: "author_id", ReferencedTable: "authors", ReferencedColumn: "id"},
		},
		Indexes: []*Index{
			{Name: "idx_posts_author_id", Columns: []string{"author_id"}},
		},
	}
	return &Database{Name: "blog", Tables: []*Table{authors, posts}}
}

func TestValidateAcceptsWellFormedDatabase(t *testing.T) {
	assert.NoError(t, Validate(sampleValidDatabase()))
}

func TestValidateRejectsAutoIncrementOnNonIntegerColumn(t *testing.T) {
	db := sampleValidDatabase()
	db.FindTable("authors").FindColumn("name").AutoIncrement = true

	err := Validate(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auto_increment is only allowed on integer columns")
}

func TestValidateRejectsNullablePrimaryKey(t *testing.T) {
	db := sampleValidDatabase()
	db.FindTable("authors").FindColumn("id").Nullable = true

	err := Validate(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be nullable")
}

func TestValidateRejectsEnumColumnWithoutValues(t *testing.T) {
	db := sampleValidDatabase()
	db.FindTable("authors").Columns = append(db.FindTable("authors").Columns, &Column{Name: "status", Type: codec.Enum})

	err := Validate(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must declare at least one value")
}

func TestValidateRejectsForeignKeyToUnknownTable(t *testing.T) {
	db := sampleValidDatabase()
	db.FindTable("posts").ForeignKeys[0].ReferencedTable = "ghosts"

	err := Validate(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "references unknown table")
}

func TestValidateRejectsForeignKeyTypeMismatch(t *testing.T) {
	db := sampleValidDatabase()
	db.FindTable("posts").FindColumn("author_id").Type = codec.Varchar

	err := Validate(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type mismatch")
}

func TestValidateRejectsIndexOnUnknownColumn(t *testing.T) {
	db := sampleValidDatabase()
	db.FindTable("posts").Indexes[0].Columns = []string{"missing"}

	err := Validate(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "references nonexistent column")
}
