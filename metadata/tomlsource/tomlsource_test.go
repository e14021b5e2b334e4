package tomlsource

import (
	"strings"
	"testing"

	"github.com/mulertech/database/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSchema = `
[database]
name = "blog"
charset = "utf8mb4"

[[tables]]
name = "authors"
engine = "InnoDB"
charset = "utf8mb4"

[[tables.columns]]
name = "id"
type = "bigint"
primary_key = true
auto_increment = true

[[tables.columns]]
name = "name"
type = "varchar"
length = 255

[[tables.columns]]
name = "email"
type = "varchar"
length = 255
unique = true

[[tables.indexes]]
name = "idx_authors_email"
columns = ["email"]
unique = true

[[tables]]
name = "posts"

[[tables.columns]]
name = "id"
type = "bigint"
primary_key = true
auto_increment = true

[[tables.columns]]
name = "title"
type = "varchar"
length = 255

[[tables.columns]]
name = "author_id"
type = "bigint"

[[tables.foreign_keys]]
column = "author_id"
referenced_table = "authors"
referenced_column = "id"
on_delete = "cascade"
`

func TestParseConvertsTablesColumnsAndForeignKeys(t *testing.T) {
	db, err := NewParser().Parse(strings.NewReader(sampleSchema))
	require.NoError(t, err)

	assert.Equal(t, "blog", db.Name)
	require.Len(t, db.Tables, 2)

	authors := db.FindTable("authors")
	require.NotNil(t, authors)
	idCol := authors.FindColumn("id")
	require.NotNil(t, idCol)
	assert.True(t, idCol.PrimaryKey)
	assert.Equal(t, schema.KeyPrimary, idCol.KeyTag)

	emailCol := authors.FindColumn("email")
	require.NotNil(t, emailCol)
	assert.Equal(t, schema.KeyUnique, emailCol.KeyTag)

	posts := db.FindTable("posts")
	require.NotNil(t, posts)
	require.Len(t, posts.ForeignKeys, 1)
	fk := posts.ForeignKeys[0]
	assert.Equal(t, "author_id", fk.Column)
	assert.Equal(t, "authors", fk.ReferencedTable)
	assert.Equal(t, schema.ActionCascade, fk.OnDelete)
	assert.NotEmpty(t, fk.Name)
}

func TestParseRejectsUnknownColumnType(t *testing.T) {
	doc := `
[[tables]]
name = "t"
[[tables.columns]]
name = "x"
type = "banana"
`
	_, err := NewParser().Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}

func TestParseRejectsDuplicateTableNames(t *testing.T) {
	doc := `
[[tables]]
name = "t"
[[tables.columns]]
name = "id"
type = "int"

[[tables]]
name = "t"
[[tables.columns]]
name = "id"
type = "int"
`
	_, err := NewParser().Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate table name")
}

func TestParseRejectsCompositePrimaryKey(t *testing.T) {
	doc := `
[[tables]]
name = "t"
[[tables.columns]]
name = "a"
type = "int"
primary_key = true
[[tables.columns]]
name = "b"
type = "int"
primary_key = true
`
	_, err := NewParser().Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "composite keys are not supported")
}

func TestParseRejectsForeignKeyToUnknownColumn(t *testing.T) {
	doc := `
[[tables]]
name = "t"
[[tables.columns]]
name = "id"
type = "int"
[[tables.foreign_keys]]
column = "missing"
referenced_table = "other"
referenced_column = "id"
`
	_, err := NewParser().Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent column")
}
