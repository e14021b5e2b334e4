package migration

import (
	"context"
	"strings"
	"testing"

	"github.com/mulertech/database/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is a minimal in-memory driver.Connection that understands
// only the handful of statements this package issues against the
// migration_history table, enough to exercise Engine.Pending/Run/
// Rollback without a real database.
type fakeConn struct {
	history []string // applied versions, in application order
	execLog []string
}

func newFakeConn() *fakeConn { return &fakeConn{} }

func (c *fakeConn) Exec(ctx context.Context, query string, args ...any) (driver.Result, error) {
	c.execLog = append(c.execLog, query)
	switch {
	case strings.HasPrefix(query, "CREATE TABLE IF NOT EXISTS"):
		return fakeResult{}, nil
	case strings.HasPrefix(query, "INSERT INTO"):
		c.history = append(c.history, args[0].(string))
		return fakeResult{}, nil
	case strings.HasPrefix(query, "DELETE FROM"):
		version := args[0].(string)
		for i, v := range c.history {
			if v == version {
				c.history = append(c.history[:i], c.history[i+1:]...)
				break
			}
		}
		return fakeResult{}, nil
	default:
		return fakeResult{}, nil
	}
}

func (c *fakeConn) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	versions := append([]string{}, c.history...)
	if strings.Contains(query, "DESC LIMIT 1") {
		if len(versions) == 0 {
			return &fakeRows{}, nil
		}
		return &fakeRows{rows: [][]any{{versions[len(versions)-1]}}}, nil
	}
	rows := make([][]any, len(versions))
	for i, v := range versions {
		rows[i] = []any{v}
	}
	return &fakeRows{rows: rows}, nil
}

func (c *fakeConn) Begin(ctx context.Context) (driver.Tx, error) { return &fakeTx{conn: c}, nil }
func (c *fakeConn) Ping(ctx context.Context) error               { return nil }
func (c *fakeConn) Close() error                                 { return nil }

type fakeTx struct {
	conn *fakeConn
}

func (t *fakeTx) Exec(ctx context.Context, query string, args ...any) (driver.Result, error) {
	return t.conn.Exec(ctx, query, args...)
}
func (t *fakeTx) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return t.conn.Query(ctx, query, args...)
}
func (t *fakeTx) Commit() error   { return nil }
func (t *fakeTx) Rollback() error { return nil }

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

type fakeRows struct {
	rows []([]any)
	pos  int
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	for i, d := range dest {
		switch v := d.(type) {
		case *string:
			*v = row[i].(string)
		}
	}
	return nil
}

func (r *fakeRows) Close() error { return nil }
func (r *fakeRows) Err() error   { return nil }

func TestEngineRunAppliesPendingMigrationsInOrder(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register("202601010000", &SQLMigration{UpStatements: []string{"CREATE TABLE a;"}, DownStatements: []string{"DROP TABLE a;"}}))
	require.NoError(t, registry.Register("202602010000", &SQLMigration{UpStatements: []string{"CREATE TABLE b;"}, DownStatements: []string{"DROP TABLE b;"}}))

	conn := newFakeConn()
	engine := NewEngine(conn, nil, registry)

	results, err := engine.Run(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Applied)
	assert.Equal(t, "202601010000", results[0].Version)
	assert.Equal(t, []string{"202601010000", "202602010000"}, conn.history)
}

func TestEnginePendingExcludesApplied(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register("202601010000", &SQLMigration{}))
	require.NoError(t, registry.Register("202602010000", &SQLMigration{}))

	conn := newFakeConn()
	conn.history = []string{"202601010000"}

	engine := NewEngine(conn, nil, registry)
	pending, err := engine.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"202602010000"}, pending)
}

func TestEngineRunDryRunDoesNotRecordHistory(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register("202601010000", &SQLMigration{UpStatements: []string{"CREATE TABLE a;"}}))

	conn := newFakeConn()
	engine := NewEngine(conn, nil, registry)

	results, err := engine.Run(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Applied)
	assert.Equal(t, []string{"CREATE TABLE a;"}, results[0].Statements)
	assert.Empty(t, conn.history)
}

func TestEngineRollbackReturnsNothingToRollbackWhenHistoryEmpty(t *testing.T) {
	conn := newFakeConn()
	engine := NewEngine(conn, nil, NewRegistry())

	_, err := engine.Rollback(context.Background(), false)
	require.Error(t, err)
	assert.ErrorContains(t, err, "nothing to rollback")
}

func TestEngineRollbackRevertsMostRecent(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register("202601010000", &SQLMigration{UpStatements: []string{"CREATE TABLE a;"}, DownStatements: []string{"DROP TABLE a;"}}))

	conn := newFakeConn()
	conn.history = []string{"202601010000"}

	engine := NewEngine(conn, nil, registry)
	result, err := engine.Rollback(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "202601010000", result.Version)
	assert.Empty(t, conn.history)
}
