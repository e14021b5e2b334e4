package uow

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/mulertech/database/changeset"
	"github.com/mulertech/database/dberrors"
	"github.com/mulertech/database/driver"
	"github.com/mulertech/database/entity"
	"github.com/mulertech/database/event"
	"github.com/mulertech/database/metadata"
)

// runDeletes executes every scheduled removal, deepest dependents first
// (the reverse of insert/update's FK order), firing PreRemove/PostRemove
// around each statement (spec §4.5 step 5).
func (u *UnitOfWork) runDeletes(ctx context.Context, tx driver.Tx, deletes []*scheduledWork) error {
	if len(deletes) == 0 {
		return nil
	}

	deleteTables := make(map[string]*metadata.EntityMetadata, len(deletes))
	for _, w := range deletes {
		deleteTables[w.em.Table] = w.em
	}
	order, err := tableOrder(deleteTables)
	if err != nil {
		return err
	}
	rank := make(map[string]int, len(order))
	for i, name := range order {
		rank[name] = i
	}
	sort.SliceStable(deletes, func(i, j int) bool {
		return rank[deletes[i].em.Table] > rank[deletes[j].em.Table]
	})

	for _, w := range deletes {
		pk := pkValue(w.me.Instance, w.em)
		if err := u.bus.Publish(event.Event{Kind: event.PreRemove, Entity: w.me.Instance}); err != nil {
			return err
		}
		query, args := u.renderer.RenderDelete(w.em, pk)
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return &dberrors.ConstraintViolation{Entity: w.em.Type.String(), PK: pk, Cause: err}
		}
		if err := w.me.Transition(entity.StateNone, u.bus); err != nil {
			return err
		}
		if err := u.bus.Publish(event.Event{Kind: event.PostRemove, Entity: w.me.Instance}); err != nil {
			return err
		}
	}
	return nil
}

// runInsertsAndUpdates executes every scheduled insert/update in
// FK-dependency order (parents before children), handling self-referencing
// foreign keys with the two-pass null-then-update strategy spec.md's
// worked example describes: the first INSERT omits the self-referential
// column, and a follow-up UPDATE sets it once every row in the table has a
// primary key.
func (u *UnitOfWork) runInsertsAndUpdates(ctx context.Context, tx driver.Tx, inserts, updates []*scheduledWork, tableRank map[string]int) error {
	sort.SliceStable(inserts, func(i, j int) bool { return tableRank[inserts[i].em.Table] < tableRank[inserts[j].em.Table] })
	sort.SliceStable(updates, func(i, j int) bool { return tableRank[updates[i].em.Table] < tableRank[updates[j].em.Table] })

	deferredSelfFK := make(map[*scheduledWork]map[string]any)

	for _, w := range inserts {
		if err := u.bus.Publish(event.Event{Kind: event.PrePersist, Entity: w.me.Instance}); err != nil {
			return err
		}

		selfCols := selfReferentialColumns(w.em)
		values := columnValues(w.me.Instance, w.em, selfCols)
		if len(selfCols) > 0 {
			deferred := make(map[string]any, len(selfCols))
			for col := range selfCols {
				if v, ok := rawColumnValue(w.me.Instance, w.em, col); ok {
					deferred[col] = v
				}
			}
			if len(deferred) > 0 {
				deferredSelfFK[w] = deferred
			}
		}

		query, args := u.renderer.RenderInsert(w.em, values)
		result, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return &dberrors.ConstraintViolation{Entity: w.em.Type.String(), PK: pkValue(w.me.Instance, w.em), Cause: err}
		}

		if w.em.PrimaryKey.Column.AutoIncrement {
			id, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("uow: read last insert id for %s: %w", w.em.Table, err)
			}
			oldIdentity := w.me.Identity
			setPKValue(w.me.Instance, w.em, id)
			newIdentity := entity.Identity{Type: w.em.Type, PK: pkValue(w.me.Instance, w.em)}
			u.identityMap.Rekey(oldIdentity, newIdentity)
		}

		if err := w.me.Transition(entity.StateManaged, u.bus); err != nil {
			return err
		}
		written := fieldNamesForColumns(w.em, allColumnNames(w.em))
		w.me.Snapshot = changeset.Snapshot(w.me.Instance, w.em, written)

		if err := u.bus.Publish(event.Event{Kind: event.PostPersist, Entity: w.me.Instance}); err != nil {
			return err
		}
	}

	for w, deferred := range deferredSelfFK {
		pk := pkValue(w.me.Instance, w.em)
		query, args := u.renderer.RenderUpdate(w.em, pk, deferred)
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("uow: resolve self-referential foreign key on %s: %w", w.em.Table, err)
		}
		written := fieldNamesForColumns(w.em, columnSet(deferred))
		for field := range written {
			w.me.Snapshot[field] = valueForField(w.me.Instance, field)
		}
	}

	for _, w := range updates {
		if err := u.bus.Publish(event.Event{Kind: event.PreUpdate, Entity: w.me.Instance, ChangeSet: w.cs}); err != nil {
			return err
		}

		values := make(map[string]any, len(w.cs.Fields))
		for field, change := range w.cs.Fields {
			cm := w.em.ColumnsByField[field]
			if cm == nil {
				continue
			}
			values[cm.Column.Name] = change.New
		}
		if len(values) > 0 {
			pk := pkValue(w.me.Instance, w.em)
			query, args := u.renderer.RenderUpdate(w.em, pk, values)
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return &dberrors.ConstraintViolation{Entity: w.em.Type.String(), PK: pk, Cause: err}
			}
		}

		written := make(map[string]bool, len(w.cs.Fields))
		for field := range w.cs.Fields {
			written[field] = true
		}
		refreshed := changeset.Snapshot(w.me.Instance, w.em, written)
		for field, v := range refreshed {
			w.me.Snapshot[field] = v
		}

		if err := u.bus.Publish(event.Event{Kind: event.PostUpdate, Entity: w.me.Instance, ChangeSet: w.cs}); err != nil {
			return err
		}
	}

	return nil
}

// applyCollectionDeltas renders and executes the join-table inserts/deletes
// for every many-to-many relation carrying pending additions or removals
// (spec §4.5 step 6), run after every entity has a stable primary key.
func (u *UnitOfWork) applyCollectionDeltas(ctx context.Context, tx driver.Tx, updates []*scheduledWork) error {
	for _, w := range updates {
		for fieldName, change := range w.cs.Collections {
			rm := relationByField(w.em, fieldName)
			if rm == nil || rm.Kind != metadata.ManyToMany {
				continue
			}
			ownerPK := pkValue(w.me.Instance, w.em)
			joinTable, ownerColumn, targetColumn := joinTableColumns(w.em, rm)

			for _, target := range change.Added {
				query, args := u.renderer.RenderJoinInsert(joinTable, ownerColumn, targetColumn, ownerPK, target)
				if _, err := tx.Exec(ctx, query, args...); err != nil {
					return fmt.Errorf("uow: insert join row on %s: %w", joinTable, err)
				}
			}
			for _, target := range change.Removed {
				query, args := u.renderer.RenderJoinDelete(joinTable, ownerColumn, targetColumn, ownerPK, target)
				if _, err := tx.Exec(ctx, query, args...); err != nil {
					return fmt.Errorf("uow: delete join row on %s: %w", joinTable, err)
				}
			}
		}
	}
	return nil
}

func relationByField(em *metadata.EntityMetadata, fieldName string) *metadata.RelationMetadata {
	for _, rm := range em.Relations {
		if rm.FieldName == fieldName {
			return rm
		}
	}
	return nil
}

// joinTableColumns derives the join table's two foreign-key column names
// from the owning entity's table name and the relation's declared join
// column, following the teacher's singular-FK-plus-owner convention
// (metadata.RelationMetadata.JoinColumn names the owner's side; the
// target side is RelationMetadata.InverseProperty when set, else inferred
// the same way primary keys default, "<table>_id").
func joinTableColumns(owner *metadata.EntityMetadata, rm *metadata.RelationMetadata) (joinTable, ownerColumn, targetColumn string) {
	if rm.JoinEntity != nil {
		joinTable = toSnakeCase(rm.JoinEntity.Name())
	} else {
		joinTable = toSnakeCase(rm.Target.Name()) + "_pivot"
	}
	ownerColumn = singularize(owner.Table) + "_id"
	if rm.JoinColumn != "" {
		ownerColumn = rm.JoinColumn
	}
	targetColumn = rm.InverseProperty
	if targetColumn == "" {
		targetColumn = singularize(rm.Target.Name()) + "_id"
	}
	return joinTable, ownerColumn, targetColumn
}

func singularize(name string) string {
	snake := toSnakeCase(name)
	if len(snake) > 1 && snake[len(snake)-1] == 's' {
		return snake[:len(snake)-1]
	}
	return snake
}

func toSnakeCase(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				b = append(b, '_')
			}
			b = append(b, c-'A'+'a')
			continue
		}
		b = append(b, c)
	}
	return string(b)
}

func allColumnNames(em *metadata.EntityMetadata) map[string]bool {
	out := make(map[string]bool, len(em.Columns))
	for _, cm := range em.Columns {
		out[cm.Column.Name] = true
	}
	return out
}

func columnSet(values map[string]any) map[string]bool {
	out := make(map[string]bool, len(values))
	for k := range values {
		out[k] = true
	}
	return out
}

func rawColumnValue(instance any, em *metadata.EntityMetadata, column string) (any, bool) {
	for _, cm := range em.Columns {
		if cm.Column.Name == column {
			v := valueForField(instance, cm.FieldName)
			return v, true
		}
	}
	return nil, false
}

func valueForField(instance any, fieldName string) any {
	v := indirect(reflect.ValueOf(instance))
	fv := v.FieldByName(fieldName)
	if !fv.IsValid() {
		return nil
	}
	return fv.Interface()
}
