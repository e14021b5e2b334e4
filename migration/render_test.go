package migration

import (
	"testing"

	"github.com/mulertech/database/codec"
	"github.com/mulertech/database/schema"
	"github.com/mulertech/database/schemadiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTableSQLIncludesPrimaryKeyAndColumns(t *testing.T) {
	tbl := &schema.Table{
		Name: "users",
		Columns: []*schema.Column{
			{Name: "id", Type: codec.Bigint, Unsigned: true, AutoIncrement: true, PrimaryKey: true},
			{Name: "email", Type: codec.Varchar, Length: 255, Nullable: false},
		},
		Options: schema.TableOptions{Engine: "InnoDB", Charset: "utf8mb4"},
	}

	create, fks := createTableSQL(tbl)
	assert.Contains(t, create, "CREATE TABLE `users`")
	assert.Contains(t, create, "`id` BIGINT UNSIGNED NOT NULL AUTO_INCREMENT")
	assert.Contains(t, create, "`email` VARCHAR(255) NOT NULL")
	assert.Contains(t, create, "PRIMARY KEY (`id`)")
	assert.Contains(t, create, "ENGINE=InnoDB")
	assert.Empty(t, fks)
}

func TestCreateTableSQLRendersForeignKeysSeparately(t *testing.T) {
	tbl := &schema.Table{
		Name: "posts",
		Columns: []*schema.Column{
			{Name: "author_id", Type: codec.Bigint, Unsigned: true},
		},
		ForeignKeys: []*schema.ForeignKey{
			{Name: "fk_posts_author_id_users", Column: "author_id", ReferencedTable: "users", ReferencedColumn: "id", OnDelete: schema.ActionCascade, OnUpdate: schema.ActionRestrict},
		},
	}

	_, fks := createTableSQL(tbl)
	require.Len(t, fks, 1)
	assert.Contains(t, fks[0], "ADD CONSTRAINT `fk_posts_author_id_users`")
	assert.Contains(t, fks[0], "ON DELETE CASCADE")
	assert.Contains(t, fks[0], "ON UPDATE RESTRICT")
}

func TestRenderUpDownCreatedTableHasSymmetricDrop(t *testing.T) {
	diff := &schemadiff.SchemaDifference{
		CreatedTables: []*schema.Table{{Name: "widgets", Columns: []*schema.Column{{Name: "id", Type: codec.Bigint, PrimaryKey: true}}}},
	}

	up, down := renderUpDown(diff)
	assert.Contains(t, up[0], "CREATE TABLE `widgets`")
	assert.Contains(t, down[len(down)-1], "DROP TABLE `widgets`")
}

func TestRenderUpDownModifiedColumnUsesOldOnDown(t *testing.T) {
	diff := &schemadiff.SchemaDifference{
		ModifiedTables: []*schemadiff.TableDifference{{
			Name: "users",
			ModifiedColumns: []*schemadiff.ColumnChange{{
				Name: "email",
				Old:  &schema.Column{Name: "email", Type: codec.Varchar, Length: 100},
				New:  &schema.Column{Name: "email", Type: codec.Varchar, Length: 255},
			}},
		}},
	}

	up, down := renderUpDown(diff)
	require.Len(t, up, 1)
	require.Len(t, down, 1)
	assert.Contains(t, up[0], "VARCHAR(255)")
	assert.Contains(t, down[0], "VARCHAR(100)")
}

func TestColumnTypeSQLRendersEnumValues(t *testing.T) {
	c := &schema.Column{Name: "status", Type: codec.Enum, EnumValues: []string{"draft", "published"}}
	assert.Equal(t, "ENUM('draft','published')", columnTypeSQL(c))
}

func TestDefaultLiteralQuotesNonExpressionDefaults(t *testing.T) {
	def := "active"
	c := &schema.Column{Default: &def}
	assert.Equal(t, "'active'", defaultLiteral(c))
}

func TestDefaultLiteralLeavesCurrentTimestampBare(t *testing.T) {
	def := "CURRENT_TIMESTAMP"
	c := &schema.Column{Default: &def}
	assert.Equal(t, "CURRENT_TIMESTAMP", defaultLiteral(c))
}
