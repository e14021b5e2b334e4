package introspect

import (
	"context"
	"testing"

	"github.com/mulertech/database/codec"
	"github.com/mulertech/database/internal/testutil"
	"github.com/mulertech/database/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeColumnType(t *testing.T) {
	assert.Equal(t, codec.Tinyint1, normalizeColumnType("tinyint(1)"))
	assert.Equal(t, codec.Tinyint, normalizeColumnType("tinyint(4)"))
	assert.Equal(t, codec.Bigint, normalizeColumnType("bigint unsigned"))
	assert.Equal(t, codec.Varchar, normalizeColumnType("varchar(255)"))
	assert.Equal(t, codec.Decimal, normalizeColumnType("decimal(10,2)"))
	assert.Equal(t, codec.JSON, normalizeColumnType("json"))
}

func TestParseColumnTypeArgs(t *testing.T) {
	length, precision, scale, enumValues := parseColumnTypeArgs("varchar(255)")
	assert.Equal(t, 255, length)
	assert.Zero(t, precision)
	assert.Nil(t, enumValues)

	_, precision, scale, _ = parseColumnTypeArgs("decimal(10,2)")
	assert.Equal(t, 10, precision)
	assert.Equal(t, 2, scale)

	_, _, _, enumValues = parseColumnTypeArgs("enum('a','b','c')")
	assert.Equal(t, []string{"a", "b", "c"}, enumValues)
}

func TestIntrospectIntegration(t *testing.T) {
	c := testutil.StartMySQL(t)
	c.Exec(t, `CREATE TABLE units (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		name VARCHAR(255) NOT NULL UNIQUE
	) ENGINE=InnoDB`)
	c.Exec(t, `CREATE TABLE users (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		username VARCHAR(255) NOT NULL,
		unit_id BIGINT NULL,
		CONSTRAINT fk_users_unit_id_units FOREIGN KEY (unit_id) REFERENCES units(id) ON DELETE CASCADE
	) ENGINE=InnoDB`)

	insp := New(c.Conn)
	db, err := insp.Introspect(context.Background())
	require.NoError(t, err)
	require.Len(t, db.Tables, 2)

	users := db.FindTable("users")
	require.NotNil(t, users)
	assert.Equal(t, "id", users.PrimaryKeyColumn().Name)

	fk := users.FindForeignKey("fk_users_unit_id_units")
	require.NotNil(t, fk)
	assert.Equal(t, "unit_id", fk.Column)
	assert.Equal(t, "units", fk.ReferencedTable)
	assert.Equal(t, schema.ActionCascade, fk.OnDelete)

	unitsName := users.FindColumn("username")
	require.NotNil(t, unitsName)
	assert.Equal(t, schema.KeyNone, unitsName.KeyTag)
}
