// Package changeset implements the ChangeDetector (spec §4.4): comparing a
// ManagedEntity's current field values against its snapshot to produce a
// ChangeSet, and reading TrackedCollection deltas directly for to-many
// relations.
package changeset

import (
	"reflect"

	"github.com/mulertech/database/codec"
	"github.com/mulertech/database/entity"
	"github.com/mulertech/database/metadata"
)

// FieldChange is a single scalar property's before/after pair.
type FieldChange struct {
	Old any
	New any
}

// CollectionChange is a to-many relation's pending additions/removals,
// read straight off its TrackedCollection rather than computed by diffing
// two full slices (spec §4.4).
type CollectionChange struct {
	Added   []any
	Removed []any
}

// ChangeSet is the minimal description of modifications to a single
// managed entity since its snapshot (spec §3).
type ChangeSet struct {
	Fields      map[string]FieldChange
	Collections map[string]CollectionChange
}

// IsEmpty reports whether the change set carries no scalar or collection
// deltas at all — the postcondition spec §8 requires to hold immediately
// after a successful flush.
func (cs *ChangeSet) IsEmpty() bool {
	return cs == nil || (len(cs.Fields) == 0 && len(cs.Collections) == 0)
}

// Detect compares me.Instance's current field values against me.Snapshot,
// using em to know which struct fields are declared columns and which are
// tracked relations, and returns the resulting ChangeSet.
//
// Equality follows spec §4.4 exactly: values are normalized through
// ValueCodec.ToColumn before comparison, so decimal scale, datetime
// second-resolution, byte-wise binary and canonical-JSON equality all
// apply identically to how the codec itself converts values for storage.
func Detect(me *entity.ManagedEntity, em *metadata.EntityMetadata) *ChangeSet {
	cs := &ChangeSet{
		Fields:      make(map[string]FieldChange),
		Collections: make(map[string]CollectionChange),
	}

	v := reflect.ValueOf(me.Instance)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	for _, cm := range em.Columns {
		fv := v.FieldByName(cm.FieldName)
		if !fv.IsValid() {
			continue
		}
		current := fv.Interface()
		old, hadSnapshot := me.Snapshot[cm.FieldName]

		if !hadSnapshot {
			cs.Fields[cm.FieldName] = FieldChange{Old: nil, New: current}
			continue
		}
		if !codec.Equal(old, current, cm.Column.Type, cm.Column.Scale) {
			cs.Fields[cm.FieldName] = FieldChange{Old: old, New: current}
		}
	}

	for _, rm := range em.Relations {
		fv := v.FieldByName(rm.FieldName)
		if !fv.IsValid() || fv.IsZero() {
			continue
		}
		delta, ok := fv.Interface().(entity.Delta)
		if !ok && fv.CanAddr() {
			delta, ok = fv.Addr().Interface().(entity.Delta)
		}
		if !ok {
			continue
		}
		added, removed := delta.AddedAny(), delta.RemovedAny()
		if len(added) == 0 && len(removed) == 0 {
			continue
		}
		cs.Collections[rm.FieldName] = CollectionChange{Added: added, Removed: removed}
	}

	return cs
}

// Snapshot captures the current, post-write column values of instance
// into a fresh snapshot map, per spec §4.5 step 5: "refresh the snapshot
// from the post-write state (only columns written are updated)."
func Snapshot(instance any, em *metadata.EntityMetadata, writtenColumns map[string]bool) map[string]any {
	v := reflect.ValueOf(instance)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	snap := make(map[string]any, len(em.Columns))
	for _, cm := range em.Columns {
		if writtenColumns != nil && !writtenColumns[cm.FieldName] {
			continue
		}
		fv := v.FieldByName(cm.FieldName)
		if fv.IsValid() {
			snap[cm.FieldName] = fv.Interface()
		}
	}
	return snap
}

// FullSnapshot captures every declared column, used when an entity first
// becomes managed (persist or load) and there is no prior snapshot to
// merge into.
func FullSnapshot(instance any, em *metadata.EntityMetadata) map[string]any {
	v := reflect.ValueOf(instance)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	snap := make(map[string]any, len(em.Columns))
	for _, cm := range em.Columns {
		fv := v.FieldByName(cm.FieldName)
		if fv.IsValid() {
			snap[cm.FieldName] = fv.Interface()
		}
	}
	return snap
}
