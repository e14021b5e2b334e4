package uow

import (
	"sort"

	"github.com/mulertech/database/dberrors"
	"github.com/mulertech/database/metadata"
)

// tableOrder computes a topological order over the table names present
// in tables, using foreign-key dependencies derived from metadata: a
// table must be written after every table its foreign keys reference
// (spec §4.5 step 4). Self-references are excluded from the dependency
// graph entirely — they never block ordering; the flush pipeline instead
// nulls them on the first pass and resolves them with a second UPDATE
// pass once every row has a primary key (selfReferentialColumns).
//
// If a non-self-referential cycle remains after Kahn's algorithm
// exhausts every zero-indegree node, it is unresolvable and reported as
// *dberrors.CyclicDependency naming the tables still involved.
func tableOrder(tables map[string]*metadata.EntityMetadata) ([]string, error) {
	indegree := make(map[string]int, len(tables))
	dependents := make(map[string][]string)
	for name := range tables {
		indegree[name] = 0
	}
	for name, em := range tables {
		for _, fk := range em.ForeignKeys {
			if fk.ReferencedTable == name {
				continue
			}
			if _, ok := tables[fk.ReferencedTable]; !ok {
				continue
			}
			dependents[fk.ReferencedTable] = append(dependents[fk.ReferencedTable], name)
			indegree[name]++
		}
	}

	var ready []string
	for name, d := range indegree {
		if d == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(tables))
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(tables) {
		var cycle []string
		for name, d := range indegree {
			if d > 0 {
				cycle = append(cycle, name)
			}
		}
		sort.Strings(cycle)
		return nil, &dberrors.CyclicDependency{Cycle: cycle}
	}

	return order, nil
}

// selfReferentialColumns returns em's foreign-key columns that reference
// em's own table.
func selfReferentialColumns(em *metadata.EntityMetadata) map[string]bool {
	cols := make(map[string]bool)
	for _, fk := range em.ForeignKeys {
		if fk.ReferencedTable == em.Table {
			cols[fk.Column] = true
		}
	}
	return cols
}
