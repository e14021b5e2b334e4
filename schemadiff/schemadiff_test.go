package schemadiff

import (
	"testing"

	"github.com/mulertech/database/codec"
	"github.com/mulertech/database/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareDetectsCreatedTable(t *testing.T) {
	declared := &schema.Database{Tables: []*schema.Table{{Name: "users"}}}
	live := &schema.Database{}

	diff := Compare(declared, live, Options{})
	require.Len(t, diff.CreatedTables, 1)
	assert.Equal(t, "users", diff.CreatedTables[0].Name)
	assert.False(t, diff.IsEmpty())
}

func TestCompareIgnoresMigrationHistoryByDefault(t *testing.T) {
	declared := &schema.Database{}
	live := &schema.Database{Tables: []*schema.Table{{Name: schema.MigrationHistoryTable}}}

	diff := Compare(declared, live, Options{})
	assert.True(t, diff.IsEmpty())
}

func TestCompareDetectsColumnModification(t *testing.T) {
	declared := &schema.Database{Tables: []*schema.Table{{
		Name: "users",
		Columns: []*schema.Column{
			{Name: "username", Type: codec.Varchar, Length: 255, Nullable: false},
		},
	}}}
	live := &schema.Database{Tables: []*schema.Table{{
		Name: "users",
		Columns: []*schema.Column{
			{Name: "username", Type: codec.Varchar, Length: 100, Nullable: true},
		},
	}}}

	diff := Compare(declared, live, Options{})
	require.Len(t, diff.ModifiedTables, 1)
	require.Len(t, diff.ModifiedTables[0].ModifiedColumns, 1)

	changes := diff.ModifiedTables[0].ModifiedColumns[0].Changes
	fields := map[string]FieldChange{}
	for _, c := range changes {
		fields[c.Field] = c
	}
	require.Contains(t, fields, "length")
	assert.Equal(t, "100", fields["length"].Old)
	assert.Equal(t, "255", fields["length"].New)
	require.Contains(t, fields, "nullable")
}

func TestCompareForeignKeyDropAdd(t *testing.T) {
	declared := &schema.Database{Tables: []*schema.Table{{
		Name: "posts",
		ForeignKeys: []*schema.ForeignKey{
			{Name: "fk_posts_author_id_users", Column: "author_id", ReferencedTable: "users", ReferencedColumn: "id", OnDelete: schema.ActionCascade},
		},
	}}}
	live := &schema.Database{Tables: []*schema.Table{{
		Name: "posts",
		ForeignKeys: []*schema.ForeignKey{
			{Name: "fk_posts_author_id_users", Column: "author_id", ReferencedTable: "users", ReferencedColumn: "id", OnDelete: schema.ActionRestrict},
		},
	}}}

	diff := Compare(declared, live, Options{})
	require.Len(t, diff.ModifiedTables, 1)
	require.Len(t, diff.ModifiedTables[0].ModifiedForeignKeys, 1)
	assert.Equal(t, schema.ActionCascade, diff.ModifiedTables[0].ModifiedForeignKeys[0].New.OnDelete)
}

func TestCompareIsDeterministic(t *testing.T) {
	declared := &schema.Database{Tables: []*schema.Table{{Name: "z_table"}, {Name: "a_table"}}}
	live := &schema.Database{}

	diff := Compare(declared, live, Options{})
	require.Len(t, diff.CreatedTables, 2)
	assert.Equal(t, "a_table", diff.CreatedTables[0].Name)
	assert.Equal(t, "z_table", diff.CreatedTables[1].Name)
}
