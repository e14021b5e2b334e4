package uow

import (
	"context"
	"strings"

	"github.com/mulertech/database/driver"
)

// fakeConn and fakeTx are a minimal in-memory driver.Connection/Tx pair,
// grounded on migration/engine_test.go's fakeConn: enough statement
// recognition to exercise Flush's insert/update/delete/join rendering
// without a real database.
type fakeConn struct {
	lastTx *fakeTx
}

func (c *fakeConn) Exec(ctx context.Context, query string, args ...any) (driver.Result, error) {
	return fakeResult{}, nil
}

func (c *fakeConn) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return &fakeRows{}, nil
}

func (c *fakeConn) Begin(ctx context.Context) (driver.Tx, error) {
	tx := &fakeTx{}
	c.lastTx = tx
	return tx, nil
}

func (c *fakeConn) Ping(ctx context.Context) error { return nil }
func (c *fakeConn) Close() error                   { return nil }

type execCall struct {
	query string
	args  []any
}

type fakeTx struct {
	execs      []execCall
	nextID     int64
	committed  bool
	rolledBack bool
	failOn     func(query string) error
}

func (tx *fakeTx) Exec(ctx context.Context, query string, args ...any) (driver.Result, error) {
	if tx.failOn != nil {
		if err := tx.failOn(query); err != nil {
			return nil, err
		}
	}
	tx.execs = append(tx.execs, execCall{query: query, args: args})
	if strings.HasPrefix(query, "INSERT INTO") {
		tx.nextID++
		return fakeResult{lastInsertID: tx.nextID}, nil
	}
	return fakeResult{}, nil
}

func (tx *fakeTx) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return &fakeRows{}, nil
}

func (tx *fakeTx) Commit() error   { tx.committed = true; return nil }
func (tx *fakeTx) Rollback() error { tx.rolledBack = true; return nil }

type fakeResult struct {
	lastInsertID int64
}

func (r fakeResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r fakeResult) RowsAffected() (int64, error) { return 1, nil }

type fakeRows struct{}

func (r *fakeRows) Next() bool          { return false }
func (r *fakeRows) Scan(dest ...any) error { return nil }
func (r *fakeRows) Close() error        { return nil }
func (r *fakeRows) Err() error          { return nil }
