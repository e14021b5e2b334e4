package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/mulertech/database/dberrors"
	"github.com/mulertech/database/driver"
	"github.com/mulertech/database/introspect"
	"github.com/mulertech/database/schema"
	"github.com/mulertech/database/schemadiff"
)

// tableStatementPattern pulls the backtick-quoted table name out of a
// rendered CREATE/ALTER/DROP TABLE statement (render.go always quotes
// identifiers via quoteIdentifier).
var tableStatementPattern = regexp.MustCompile("(?i)\\bTABLE\\s+`([^`]+)`")

func tableFromStatement(stmt string) string {
	m := tableStatementPattern.FindStringSubmatch(stmt)
	if m == nil {
		return ""
	}
	return m[1]
}

// Engine is the MigrationEngine: it compares declared metadata against
// the live database to generate migrations, tracks which registered
// versions have run, and applies or reverts them transactionally.
//
// Grounded on the teacher's internal/apply.Applier for the
// connect-then-execute shape and internal/migration for the
// accumulate-then-render shape, generalized across many ordered
// versions instead of the teacher's single ad-hoc diff run.
type Engine struct {
	conn       driver.Connection
	registry   *Registry
	declared   *schema.Database
	outputDir  string
	now        func() time.Time
	diffOpts   schemadiff.Options
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithOutputDir sets the directory Generate writes migration source
// files into. Required for Generate; Run/Rollback/Pending don't need it.
func WithOutputDir(dir string) Option {
	return func(e *Engine) { e.outputDir = dir }
}

// WithDiffOptions overrides the table-ignore list passed to
// schemadiff.Compare (defaults to schemadiff.DefaultIgnoredTables).
func WithDiffOptions(opts schemadiff.Options) Option {
	return func(e *Engine) { e.diffOpts = opts }
}

// NewEngine constructs an Engine bound to conn and declared (the
// metadata-derived target schema). registry defaults to Default when
// nil.
func NewEngine(conn driver.Connection, declared *schema.Database, registry *Registry, opts ...Option) *Engine {
	if registry == nil {
		registry = Default
	}
	e := &Engine{
		conn:     conn,
		registry: registry,
		declared: declared,
		now:      time.Now,
		diffOpts: schemadiff.Options{IgnoredTables: schemadiff.DefaultIgnoredTables},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnsureHistoryTable creates the migration_history bookkeeping table if
// it does not already exist. Pending, Run and Rollback call this first;
// Generate does not.
func (e *Engine) EnsureHistoryTable(ctx context.Context) error {
	_, err := e.conn.Exec(ctx, ensureHistoryTableSQL())
	return err
}

// Pending returns the registered versions not yet recorded in history,
// in ascending (chronological) order.
func (e *Engine) Pending(ctx context.Context) ([]string, error) {
	if err := e.EnsureHistoryTable(ctx); err != nil {
		return nil, fmt.Errorf("migration: ensure history table: %w", err)
	}
	applied, err := appliedVersions(ctx, e.conn)
	if err != nil {
		return nil, fmt.Errorf("migration: read history: %w", err)
	}

	var pending []string
	for _, v := range e.registry.Versions() {
		if !applied[v] {
			pending = append(pending, v)
		}
	}
	return pending, nil
}

// RunResult reports what Run did with a single version.
type RunResult struct {
	Version    string
	Statements []string // populated only when dryRun is set
	Applied    bool
}

// Run applies every pending migration in ascending version order, each
// inside its own transaction, recording a history row on success. It
// stops and returns a *dberrors.MigrationFailed at the first failure,
// leaving already-applied versions committed (spec §4.8: migrations
// commit independently, a later failure does not roll back earlier
// successes).
//
// When dryRun is true, no SQL is executed and no history rows are
// written; Run instead collects each pending migration's statements (via
// Previewable) for display.
func (e *Engine) Run(ctx context.Context, dryRun bool) ([]RunResult, error) {
	pending, err := e.Pending(ctx)
	if err != nil {
		return nil, err
	}

	var results []RunResult
	for _, version := range pending {
		m, ok := e.registry.Get(version)
		if !ok {
			return results, fmt.Errorf("migration: version %s vanished from registry mid-run", version)
		}

		if dryRun {
			results = append(results, RunResult{Version: version, Statements: previewStatements(m, true)})
			continue
		}

		if err := e.runOne(ctx, version, m); err != nil {
			return results, &dberrors.MigrationFailed{Version: version, Cause: err}
		}
		results = append(results, RunResult{Version: version, Applied: true})
	}
	return results, nil
}

func (e *Engine) runOne(ctx context.Context, version string, m Migration) error {
	tx, err := e.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	started := e.now()
	if err := m.Up(ctx, tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("up: %w", err)
	}
	elapsed := e.now().Sub(started)

	if _, err := tx.Exec(ctx, insertHistorySQL(), version, started.UTC(), elapsed.Milliseconds()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	invalidateTouchedTables(e.conn, m, true)
	return nil
}

// Rollback reverts the single most recently applied migration. When
// history is empty it returns *dberrors.NothingToRollback. dryRun
// collects statements via Previewable instead of executing Down.
func (e *Engine) Rollback(ctx context.Context, dryRun bool) (*RunResult, error) {
	if err := e.EnsureHistoryTable(ctx); err != nil {
		return nil, fmt.Errorf("migration: ensure history table: %w", err)
	}

	version, err := lastAppliedVersion(ctx, e.conn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &dberrors.NothingToRollback{}
	}
	if err != nil {
		return nil, fmt.Errorf("migration: read history: %w", err)
	}

	m, ok := e.registry.Get(version)
	if !ok {
		return nil, fmt.Errorf("migration: version %s is applied but not registered in this process", version)
	}

	if dryRun {
		return &RunResult{Version: version, Statements: previewStatements(m, false)}, nil
	}

	tx, err := e.conn.Begin(ctx)
	if err != nil {
		return nil, &dberrors.MigrationFailed{Version: version, Cause: err}
	}
	if err := m.Down(ctx, tx); err != nil {
		_ = tx.Rollback()
		return nil, &dberrors.MigrationFailed{Version: version, Cause: err}
	}
	if _, err := tx.Exec(ctx, deleteHistorySQL(), version); err != nil {
		_ = tx.Rollback()
		return nil, &dberrors.MigrationFailed{Version: version, Cause: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, &dberrors.MigrationFailed{Version: version, Cause: err}
	}
	invalidateTouchedTables(e.conn, m, false)

	return &RunResult{Version: version, Applied: true}, nil
}

// invalidateTouchedTables tells the connection's prepared-statement cache
// (spec §9.1) about every table a migration's statements reference, when
// both the migration exposes them (Previewable) and the connection keeps
// such a cache (driver.TableInvalidator). Migrations that don't implement
// Previewable are opaque here and simply aren't invalidated against.
func invalidateTouchedTables(conn driver.Connection, m Migration, up bool) {
	inv, ok := conn.(driver.TableInvalidator)
	if !ok {
		return
	}
	p, ok := m.(Previewable)
	if !ok {
		return
	}

	statements := p.PreviewDown()
	if up {
		statements = p.PreviewUp()
	}
	seen := make(map[string]bool)
	for _, stmt := range statements {
		if table := tableFromStatement(stmt); table != "" && !seen[table] {
			seen[table] = true
			inv.InvalidateTable(table)
		}
	}
}

func previewStatements(m Migration, up bool) []string {
	p, ok := m.(Previewable)
	if !ok {
		return []string{"-- (opaque migration, no preview available)"}
	}
	if up {
		return p.PreviewUp()
	}
	return p.PreviewDown()
}

// GenerateResult is what Generate produces: a new version, its rendered
// plan, and (when an output directory is configured) the path of the
// Go source file written for it.
type GenerateResult struct {
	Version  string
	Label    string
	Plan     *Plan
	FilePath string
}

// Generate introspects the live database, compares it against the
// Engine's declared schema, and synthesizes a new migration. It returns
// (nil, nil) when the schemas already match (spec §4.8: "if declared and
// live already match, generate() is a no-op"). The new migration is
// always registered into the Engine's registry; when WithOutputDir was
// set, it is also written to disk as a Go source file via text/template.
//
// version, when non-empty, is used as the migration's version instead of
// the current UTC time (spec §4.8: "version is either a caller-supplied
// timestamp or the current UTC time formatted"); it must still satisfy
// the YYYYMMDDHHMM format Registry.Register enforces.
func (e *Engine) Generate(ctx context.Context, label, version string) (*GenerateResult, error) {
	if err := schema.Validate(e.declared); err != nil {
		return nil, fmt.Errorf("migration: declared schema is invalid: %w", err)
	}

	live, err := introspect.New(e.conn).Introspect(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration: introspect live schema: %w", err)
	}

	diff := schemadiff.Compare(e.declared, live, e.diffOpts)
	if diff.IsEmpty() {
		return nil, nil
	}

	up, down := renderUpDown(diff)
	plan := newPlan(up, down)
	if version == "" {
		version = e.now().UTC().Format("200601021504")
	}

	result := &GenerateResult{Version: version, Label: label, Plan: plan}

	if e.outputDir != "" {
		path, err := writeMigrationFile(e.outputDir, version, label, plan)
		if err != nil {
			return nil, fmt.Errorf("migration: write migration file: %w", err)
		}
		result.FilePath = path
	}

	if err := e.registry.Register(version, &SQLMigration{UpStatements: plan.UpStatements(), DownStatements: plan.DownStatements()}); err != nil {
		return nil, fmt.Errorf("migration: register generated version: %w", err)
	}

	return result, nil
}
