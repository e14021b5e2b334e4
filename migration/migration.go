// Package migration implements the MigrationEngine: versioned, ordered
// schema migrations generated from the gap between declared metadata and
// the live database, applied and rolled back transactionally, with their
// history recorded in a bookkeeping table.
//
// Grounded on the teacher's internal/migration.Migration operation
// accumulator (kept here as Plan, generalized from the teacher's
// core.Operation slice to this module's schemadiff.SchemaDifference) and
// internal/dialect/mysql's DDL generator (render.go).
package migration

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/mulertech/database/dberrors"
	"github.com/mulertech/database/driver"
)

// Migration is the opaque, user- or generator-authored callable unit a
// version resolves to; the engine does not interpret its contents, only
// sequences and records it. Up applies the migration's forward change;
// Down reverses it.
type Migration interface {
	Up(ctx context.Context, tx driver.Tx) error
	Down(ctx context.Context, tx driver.Tx) error
}

// Previewable is implemented by migrations (in particular the ones this
// package's own Generate produces) that can describe their statements
// without executing them, so Engine.Run/Rollback can honor dryRun
// without ever touching the database.
type Previewable interface {
	PreviewUp() []string
	PreviewDown() []string
}

// versionPattern enforces the YYYYMMDDHHMM version format.
var versionPattern = regexp.MustCompile(`^[0-9]{12}$`)

// Registry holds the set of migrations registered at process startup,
// keyed by version.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Migration
}

// NewRegistry returns an empty Registry. Tests construct their own
// instance instead of sharing the package-level Default.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Migration)}
}

// Default is the process-wide registry that generated migration files
// register themselves into via the package-level Register function.
var Default = NewRegistry()

// Register records m under version, validating the version format and
// rejecting duplicates.
func (r *Registry) Register(version string, m Migration) error {
	if !versionPattern.MatchString(version) {
		return &dberrors.InvalidVersion{Version: version}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[version]; exists {
		return &dberrors.DuplicateVersion{Version: version}
	}
	r.entries[version] = m
	return nil
}

// Get looks up a migration by version.
func (r *Registry) Get(version string) (Migration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.entries[version]
	return m, ok
}

// Versions returns every registered version, sorted ascending. Because
// the version format is a zero-padded timestamp, lexical and
// chronological order coincide.
func (r *Registry) Versions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions := make([]string, 0, len(r.entries))
	for v := range r.entries {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// Register registers m into the Default registry. It panics on an
// invalid or duplicate version, mirroring metadata.Register's
// fail-fast-at-init-time contract, since generated migration files call
// this from an init() func where there is no caller to hand an error to.
func Register(version string, m Migration) {
	if err := Default.Register(version, m); err != nil {
		panic(err)
	}
}

// Plan accumulates the statements and review notes synthesized from a
// single schema comparison, in the teacher's operation-accumulator
// style: a list of typed entries, each either an SQL statement with its
// optional rollback statement or a breaking note, rendered into
// reviewable SQL text plus separately-queryable statement lists. newPlan
// builds one of these from renderUpDown's output, routing "-- destructive:"
// marker lines into BreakingNotes instead of executing them.
type Plan struct {
	operations []planOperation
}

type planOperationKind string

const (
	planSQL       planOperationKind = "SQL"
	planBreaking  planOperationKind = "BREAKING"
)

type planOperation struct {
	kind        planOperationKind
	sql         string
	rollbackSQL string
	note        string
}

// newPlan turns parallel up/down statement lists (as produced by
// renderUpDown) into a Plan, pairing each executable up statement with
// its corresponding down statement and promoting destructive-operation
// marker comments to breaking notes.
func newPlan(up, down []string) *Plan {
	p := &Plan{}
	downExec := filterExecutable(down)
	i := 0
	for _, stmt := range up {
		if strings.HasPrefix(stmt, "--") {
			p.operations = append(p.operations, planOperation{kind: planBreaking, note: strings.TrimPrefix(stmt, "-- ")})
			continue
		}
		var rb string
		if i < len(downExec) {
			rb = downExec[i]
			i++
		}
		p.operations = append(p.operations, planOperation{kind: planSQL, sql: stmt, rollbackSQL: rb})
	}
	for _, stmt := range down {
		if strings.HasPrefix(stmt, "--") {
			p.operations = append(p.operations, planOperation{kind: planBreaking, note: strings.TrimPrefix(stmt, "-- ")})
		}
	}
	return p
}

func filterExecutable(stmts []string) []string {
	var out []string
	for _, s := range stmts {
		if strings.HasPrefix(s, "--") {
			continue
		}
		out = append(out, s)
	}
	return out
}

// UpStatements returns the plan's forward SQL, in order.
func (p *Plan) UpStatements() []string {
	var out []string
	for _, op := range p.operations {
		if op.kind == planSQL && op.sql != "" {
			out = append(out, op.sql)
		}
	}
	return out
}

// DownStatements returns the plan's rollback SQL, in the reverse order
// it must run to undo UpStatements.
func (p *Plan) DownStatements() []string {
	var out []string
	for i := len(p.operations) - 1; i >= 0; i-- {
		if op := p.operations[i]; op.kind == planSQL && op.rollbackSQL != "" {
			out = append(out, op.rollbackSQL)
		}
	}
	return out
}

// BreakingNotes returns the destructive-operation warnings callers
// should surface for manual review before running the migration.
func (p *Plan) BreakingNotes() []string {
	var out []string
	for _, op := range p.operations {
		if op.kind == planBreaking {
			out = append(out, op.note)
		}
	}
	return out
}

// IsEmpty reports whether the plan has no statements to run.
func (p *Plan) IsEmpty() bool { return len(p.UpStatements()) == 0 }

// String renders the plan as reviewable SQL text with a leading
// breaking-changes comment block, matching the teacher's
// internal/migration.Migration.String layout.
func (p *Plan) String() string {
	var sb strings.Builder
	sb.WriteString("-- generated migration\n")
	sb.WriteString("-- review before running in production\n")

	if notes := p.BreakingNotes(); len(notes) > 0 {
		sb.WriteString("\n-- BREAKING CHANGES (manual review required)\n")
		for _, n := range notes {
			sb.WriteString("-- - " + n + "\n")
		}
	}

	sb.WriteString("\n-- UP\n")
	for _, stmt := range p.UpStatements() {
		sb.WriteString(stmt + "\n")
	}

	if down := p.DownStatements(); len(down) > 0 {
		sb.WriteString("\n-- DOWN (for reference; run via migration:rollback)\n")
		for _, stmt := range down {
			sb.WriteString("-- " + stmt + "\n")
		}
	}

	return sb.String()
}
