// Package testutil provides a shared testcontainers-backed MySQL fixture
// for integration tests (currently used by introspect's tests), grounded on internal/apply/apply_connector_test.go's setupMySQL helper.
package testutil

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/mulertech/database/driver"
)

// Container wraps a running MySQL testcontainer plus an already-open
// Connection to it.
type Container struct {
	DSN  string
	DB   *sql.DB
	Conn driver.Connection
}

// StartMySQL brings up a MySQL 8.0 container and returns a ready
// Connection, skipping the calling test in -short mode. The container and
// connection are torn down automatically via t.Cleanup.
func StartMySQL(t *testing.T) *Container {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	mysqlContainer, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("testdb"),
		tcmysql.WithUsername("root"),
		tcmysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(mysqlContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := mysqlContainer.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err, "failed to get connection string")

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err, "failed to open direct DB connection")
	require.NoError(t, db.PingContext(ctx), "failed to ping database")
	t.Cleanup(func() { _ = db.Close() })

	return &Container{DSN: dsn, DB: db, Conn: driver.Wrap(db)}
}

// Exec runs a DDL/DML statement and fails the test on error, for seeding
// fixture tables in setup code.
func (c *Container) Exec(t *testing.T, query string, args ...any) {
	t.Helper()
	_, err := c.DB.ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
}
