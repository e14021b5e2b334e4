// Package uow implements the UnitOfWork (spec §4.5): the central
// coordinator exposing persist/remove/detach/merge/clear/flush/find, and
// the flush pipeline that computes change sets, orders writes by
// foreign-key dependency, executes them inside a single transaction, and
// dispatches lifecycle events around each step.
//
// The UnitOfWork owns its IdentityMap exclusively (spec §5: "the
// IdentityMap is UoW-local and never shared"); nothing here is a
// package-level variable the way metadata.Default is.
package uow

import (
	"context"
	"fmt"
	"reflect"

	"github.com/mulertech/database/changeset"
	"github.com/mulertech/database/dberrors"
	"github.com/mulertech/database/driver"
	"github.com/mulertech/database/entity"
	"github.com/mulertech/database/event"
	"github.com/mulertech/database/metadata"
)

// UnitOfWork is the spec's central coordinator. A UnitOfWork is
// single-use per logical session the way the spec describes: it must
// not be reused after a flush returns an error (spec §5).
type UnitOfWork struct {
	conn        driver.Connection
	registry    *metadata.Registry
	bus         *event.Bus
	renderer    SqlRenderer
	identityMap *entity.IdentityMap

	placeholderSeq int64
}

// Option configures a UnitOfWork at construction time.
type Option func(*UnitOfWork)

// WithRenderer overrides the default SqlRenderer.
func WithRenderer(r SqlRenderer) Option {
	return func(u *UnitOfWork) { u.renderer = r }
}

// WithEventBus overrides the UnitOfWork's event bus (defaults to a fresh
// one); pass the same bus to multiple UnitOfWork instances to observe
// lifecycle events across all of them.
func WithEventBus(bus *event.Bus) Option {
	return func(u *UnitOfWork) { u.bus = bus }
}

// New constructs a UnitOfWork bound to conn and registry (metadata.Default
// when registry is nil).
func New(conn driver.Connection, registry *metadata.Registry, opts ...Option) *UnitOfWork {
	if registry == nil {
		registry = metadata.Default
	}
	u := &UnitOfWork{
		conn:        conn,
		registry:    registry,
		bus:         event.NewBus(),
		renderer:    DefaultRenderer{},
		identityMap: entity.NewIdentityMap(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// placeholderIdentity assigns a unique, negative placeholder identity to
// a NEW entity that has no primary key yet, so it can still be tracked
// in the IdentityMap until flush's insert assigns the real one.
func (u *UnitOfWork) placeholderIdentity(t reflect.Type) entity.Identity {
	u.placeholderSeq--
	return entity.Identity{Type: t, PK: u.placeholderSeq}
}

func entityType(e any) reflect.Type {
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// Persist schedules e for insertion on the next flush. Persisting an
// instance this UnitOfWork already tracks is a no-op whatever its state;
// in particular a REMOVED instance stays REMOVED, since the lifecycle's
// only path back from REMOVED is through none.
func (u *UnitOfWork) Persist(e any) error {
	_, err := u.persist(e)
	return err
}

func (u *UnitOfWork) persist(e any) (*entity.ManagedEntity, error) {
	t := entityType(e)
	em, err := u.registry.GetByType(t)
	if err != nil {
		return nil, err
	}

	if me := u.findManaged(e, em); me != nil {
		return me, nil
	}

	me := &entity.ManagedEntity{
		Identity: u.placeholderIdentity(t),
		Instance: e,
		State:    entity.StateNone,
	}
	if err := me.Transition(entity.StateNew, u.bus); err != nil {
		return nil, err
	}
	me.Snapshot = changeset.FullSnapshot(e, em)
	u.identityMap.Put(me)
	return me, nil
}

// findManaged looks up e's ManagedEntity by its current primary key (if
// it has one) or by instance identity for not-yet-keyed NEW entities.
func (u *UnitOfWork) findManaged(e any, em *metadata.EntityMetadata) *entity.ManagedEntity {
	if pk := pkValue(e, em); pk != nil && !reflect.ValueOf(pk).IsZero() {
		if me, ok := u.identityMap.Lookup(entity.Identity{Type: em.Type, PK: pk}); ok {
			return me
		}
	}
	for _, me := range u.identityMap.All() {
		if me.Instance == e {
			return me
		}
	}
	return nil
}

// Remove schedules a managed entity for deletion on the next flush.
func (u *UnitOfWork) Remove(e any) error {
	em, err := u.registry.GetByType(entityType(e))
	if err != nil {
		return err
	}
	me := u.findManaged(e, em)
	if me == nil {
		return &dberrors.UnknownEntity{Type: em.Type.String()}
	}
	if err := me.Transition(entity.StateRemoved, u.bus); err != nil {
		return err
	}
	return nil
}

// Detach stops tracking e; it becomes an independent instance no longer
// synchronized by this UnitOfWork.
func (u *UnitOfWork) Detach(e any) error {
	em, err := u.registry.GetByType(entityType(e))
	if err != nil {
		return err
	}
	me := u.findManaged(e, em)
	if me == nil {
		return &dberrors.UnknownEntity{Type: em.Type.String()}
	}
	if err := me.Transition(entity.StateDetached, u.bus); err != nil {
		return err
	}
	u.identityMap.Remove(me.Identity)
	return nil
}

// Merge reattaches a detached (or foreign) instance sharing e's primary
// key: if an entity with that identity is already managed, its tracked
// instance is returned unchanged (callers should copy fields from e into
// it themselves, mirroring the ORM convention that merge never replaces
// the tracked reference); otherwise e itself becomes managed with a full
// snapshot, per the DETACHED -> MANAGED transition.
func (u *UnitOfWork) Merge(e any) (any, error) {
	em, err := u.registry.GetByType(entityType(e))
	if err != nil {
		return nil, err
	}
	pk := pkValue(e, em)
	if pk == nil || reflect.ValueOf(pk).IsZero() {
		return nil, fmt.Errorf("uow: merge requires an entity with a primary key")
	}

	id := entity.Identity{Type: em.Type, PK: pk}
	if me, ok := u.identityMap.Lookup(id); ok {
		return me.Instance, nil
	}

	me := &entity.ManagedEntity{Identity: id, Instance: e, State: entity.StateDetached}
	if err := me.Transition(entity.StateManaged, u.bus); err != nil {
		return nil, err
	}
	me.Snapshot = changeset.FullSnapshot(e, em)
	u.identityMap.Put(me)
	return e, nil
}

// Clear detaches every tracked entity and discards all scheduled work,
// without touching the database. The UnitOfWork remains usable.
func (u *UnitOfWork) Clear() {
	u.identityMap = entity.NewIdentityMap()
}

// Find returns the managed instance for (entityType, pk), if tracked.
func (u *UnitOfWork) Find(entityType reflect.Type, pk any) (any, bool) {
	me, ok := u.identityMap.Lookup(entity.Identity{Type: entityType, PK: pk})
	if !ok {
		return nil, false
	}
	return me.Instance, true
}

// Manage installs an externally loaded instance (e.g. from a query run
// outside the UnitOfWork) as MANAGED with a full snapshot, without
// transitioning through NEW. Used by query/load code paths, which are
// out of this package's scope (spec Non-goals: "querying (the `find`
// operation's retrieval mechanism is read-only fetch, not a query
// builder)") but still need somewhere to install their results into the
// IdentityMap.
func (u *UnitOfWork) Manage(e any) (*entity.ManagedEntity, error) {
	em, err := u.registry.GetByType(entityType(e))
	if err != nil {
		return nil, err
	}
	pk := pkValue(e, em)
	id := entity.Identity{Type: em.Type, PK: pk}
	if me, ok := u.identityMap.Lookup(id); ok {
		return me, nil
	}
	me := &entity.ManagedEntity{Identity: id, Instance: e, State: entity.StateManaged, Snapshot: changeset.FullSnapshot(e, em)}
	u.identityMap.Put(me)
	return me, nil
}

// Flush is the spec §4.5 pipeline: preFlush, change-set computation and
// cascade discovery, classification, dependency ordering, a single
// transaction executing every write with per-entity lifecycle events,
// many-to-many join application, and commit with postFlush.
func (u *UnitOfWork) Flush(ctx context.Context) error {
	if err := u.bus.Publish(event.Event{Kind: event.PreFlush}); err != nil {
		return err
	}

	if err := u.discoverCascades(); err != nil {
		return err
	}

	inserts, updates, deletes, err := u.classify()
	if err != nil {
		return err
	}

	if len(inserts) == 0 && len(updates) == 0 && len(deletes) == 0 {
		return u.bus.Publish(event.Event{Kind: event.PostFlush})
	}

	writeTables := make(map[string]*metadata.EntityMetadata)
	for _, w := range inserts {
		writeTables[w.em.Table] = w.em
	}
	for _, w := range updates {
		writeTables[w.em.Table] = w.em
	}
	order, err := tableOrder(writeTables)
	if err != nil {
		return err
	}
	tableRank := make(map[string]int, len(order))
	for i, name := range order {
		tableRank[name] = i
	}

	tx, err := u.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("uow: begin flush transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := u.runDeletes(ctx, tx, deletes); err != nil {
		return err
	}
	if err := u.runInsertsAndUpdates(ctx, tx, inserts, updates, tableRank); err != nil {
		return err
	}
	if err := u.applyCollectionDeltas(ctx, tx, updates); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("uow: commit flush transaction: %w", err)
	}
	committed = true

	for _, me := range deletes {
		u.identityMap.Remove(me.me.Identity)
	}

	return u.bus.Publish(event.Event{Kind: event.PostFlush})
}

type scheduledWork struct {
	me *entity.ManagedEntity
	em *metadata.EntityMetadata
	cs *changeset.ChangeSet
}

func (u *UnitOfWork) classify() (inserts, updates, deletes []*scheduledWork, err error) {
	for _, me := range u.identityMap.All() {
		em, gerr := u.registry.GetByType(me.Identity.Type)
		if gerr != nil {
			return nil, nil, nil, gerr
		}
		switch me.State {
		case entity.StateNew:
			inserts = append(inserts, &scheduledWork{me: me, em: em})
		case entity.StateManaged:
			cs := changeset.Detect(me, em)
			if !cs.IsEmpty() {
				updates = append(updates, &scheduledWork{me: me, em: em, cs: cs})
			}
		case entity.StateRemoved:
			deletes = append(deletes, &scheduledWork{me: me, em: em})
		}
	}
	return inserts, updates, deletes, nil
}

// discoverCascades breadth-first walks every tracked entity's
// cascade-persist relations, persisting any not-yet-tracked target it
// finds, and repeats until a pass adds nothing new (spec §4.5 step 2:
// "discover cascaded persists... resolved breadth-first").
func (u *UnitOfWork) discoverCascades() error {
	for {
		added := false
		for _, me := range u.identityMap.All() {
			em, err := u.registry.GetByType(me.Identity.Type)
			if err != nil {
				return err
			}
			v := indirect(reflect.ValueOf(me.Instance))
			for _, rm := range em.Relations {
				if !rm.Cascades[metadata.CascadePersist] {
					continue
				}
				fv := v.FieldByName(rm.FieldName)
				if !fv.IsValid() || fv.IsZero() {
					continue
				}
				targets := cascadeTargets(fv)
				for _, target := range targets {
					if !u.isRegisteredEntity(target) {
						continue
					}
					if u.findManaged(target, mustEntityMetadata(u.registry, target)) != nil {
						continue
					}
					if _, err := u.persist(target); err != nil {
						return err
					}
					added = true
				}
			}
		}
		if !added {
			return nil
		}
	}
}

func (u *UnitOfWork) isRegisteredEntity(v any) bool {
	_, err := u.registry.GetByType(entityType(v))
	return err == nil
}

func mustEntityMetadata(registry *metadata.Registry, v any) *metadata.EntityMetadata {
	em, _ := registry.GetByType(entityType(v))
	return em
}

// cascadeTargets extracts candidate entity instances from a relation
// field: a direct pointer (to-one relations) or, for a to-many
// TrackedCollection, its pending additions (entity.Delta.AddedAny()).
// Collections tracking plain scalar foreign keys (e.g. join-table PKs)
// yield no struct targets and are simply skipped here.
func cascadeTargets(fv reflect.Value) []any {
	if delta, ok := asDelta(fv); ok {
		var out []any
		for _, added := range delta.AddedAny() {
			if reflect.ValueOf(added).Kind() == reflect.Ptr {
				out = append(out, added)
			}
		}
		return out
	}
	if fv.Kind() == reflect.Ptr && !fv.IsNil() {
		return []any{fv.Interface()}
	}
	return nil
}

func asDelta(fv reflect.Value) (entity.Delta, bool) {
	if d, ok := fv.Interface().(entity.Delta); ok {
		return d, true
	}
	if fv.CanAddr() {
		if d, ok := fv.Addr().Interface().(entity.Delta); ok {
			return d, true
		}
	}
	return nil, false
}
