package sqlsource

import (
	"testing"

	"github.com/mulertech/database/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDump = `
CREATE TABLE ` + "`authors`" + ` (
  ` + "`id`" + ` bigint NOT NULL AUTO_INCREMENT,
  ` + "`name`" + ` varchar(255) NOT NULL,
  ` + "`email`" + ` varchar(255) NOT NULL,
  ` + "`balance`" + ` decimal(10,2) NOT NULL DEFAULT '0.00',
  PRIMARY KEY (` + "`id`" + `),
  UNIQUE KEY ` + "`idx_authors_email`" + ` (` + "`email`" + `)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COMMENT='blog authors';

CREATE TABLE ` + "`posts`" + ` (
  ` + "`id`" + ` bigint NOT NULL AUTO_INCREMENT,
  ` + "`title`" + ` varchar(255) NOT NULL,
  ` + "`author_id`" + ` bigint unsigned NOT NULL,
  PRIMARY KEY (` + "`id`" + `),
  KEY ` + "`idx_posts_author_id`" + ` (` + "`author_id`" + `),
  CONSTRAINT ` + "`fk_posts_authors`" + ` FOREIGN KEY (` + "`author_id`" + `) REFERENCES ` + "`authors`" + ` (` + "`id`" + `) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

func TestParseConvertsTablesColumnsAndForeignKeys(t *testing.T) {
	db, err := NewParser().Parse(sampleDump)
	require.NoError(t, err)
	require.Len(t, db.Tables, 2)

	authors := db.FindTable("authors")
	require.NotNil(t, authors)
	assert.Equal(t, "InnoDB", authors.Options.Engine)
	assert.Equal(t, "utf8mb4", authors.Options.Charset)
	assert.Equal(t, "blog authors", authors.Comment)

	idCol := authors.FindColumn("id")
	require.NotNil(t, idCol)
	assert.True(t, idCol.PrimaryKey)
	assert.True(t, idCol.AutoIncrement)
	assert.Equal(t, schema.KeyPrimary, idCol.KeyTag)

	emailCol := authors.FindColumn("email")
	require.NotNil(t, emailCol)
	assert.Equal(t, schema.KeyUnique, emailCol.KeyTag)
	assert.Equal(t, 255, emailCol.Length)

	balanceCol := authors.FindColumn("balance")
	require.NotNil(t, balanceCol)
	assert.Equal(t, 10, balanceCol.Precision)
	assert.Equal(t, 2, balanceCol.Scale)
	require.NotNil(t, balanceCol.Default)
	assert.Equal(t, "0.00", *balanceCol.Default)

	posts := db.FindTable("posts")
	require.NotNil(t, posts)
	authorIDCol := posts.FindColumn("author_id")
	require.NotNil(t, authorIDCol)
	assert.True(t, authorIDCol.Unsigned)
	assert.Equal(t, schema.KeyMultiple, authorIDCol.KeyTag)

	require.Len(t, posts.ForeignKeys, 1)
	fk := posts.ForeignKeys[0]
	assert.Equal(t, "author_id", fk.Column)
	assert.Equal(t, "authors", fk.ReferencedTable)
	assert.Equal(t, "id", fk.ReferencedColumn)
	assert.Equal(t, schema.ActionCascade, fk.OnDelete)
}

func TestParseRejectsDuplicateTableNames(t *testing.T) {
	dump := "CREATE TABLE `t` (`id` bigint NOT NULL); CREATE TABLE `t` (`id` bigint NOT NULL);"
	_, err := NewParser().Parse(dump)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate table name")
}

func TestParseRejectsCompositePrimaryKey(t *testing.T) {
	dump := "CREATE TABLE `t` (`a` bigint NOT NULL, `b` bigint NOT NULL, PRIMARY KEY (`a`, `b`));"
	_, err := NewParser().Parse(dump)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "composite keys are not supported")
}

func TestParseIgnoresNonCreateTableStatements(t *testing.T) {
	dump := "CREATE TABLE `t` (`id` bigint NOT NULL); INSERT INTO `t` VALUES (1);"
	db, err := NewParser().Parse(dump)
	require.NoError(t, err)
	assert.Len(t, db.Tables, 1)
}
