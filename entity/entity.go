// Package entity implements the IdentityMap & EntityStateStore (spec
// §4.3): the single lookup from identity (type, pk) to managed entity,
// and custody of each managed entity's lifecycle state and
// original-value snapshot.
//
// Per spec §5's shared resource policy, an IdentityMap is UoW-local and
// never shared across unit-of-work instances; it is never a
// package-level variable the way metadata.Default is.
package entity

import (
	"reflect"

	"github.com/mulertech/database/dberrors"
	"github.com/mulertech/database/event"
)

// State is one of the four lifecycle states from spec §4.3.
type State string

const (
	// StateNone is not a real tracked state; it is the "no state"
	// endpoint transitions move to/from (before persist, after a
	// removal's flush-delete has run).
	StateNone     State = ""
	StateNew      State = "new"
	StateManaged  State = "managed"
	StateRemoved  State = "removed"
	StateDetached State = "detached"
)

// legalTransitions enumerates the diagram from spec §4.3.
var legalTransitions = map[State][]State{
	StateNone:     {StateNew},
	StateNew:      {StateManaged},
	StateManaged:  {StateRemoved, StateDetached},
	StateRemoved:  {StateNone},
	StateDetached: {StateManaged},
}

func isLegal(from, to State) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Identity is the (type, primary key) pair a ManagedEntity is keyed by.
type Identity struct {
	Type reflect.Type
	PK   any
}

// ManagedEntity is spec §3's ManagedEntity: identity, live reference,
// lifecycle state, original-value snapshot, owning UoW id.
type ManagedEntity struct {
	Identity Identity
	Instance any
	State    State
	Snapshot map[string]any
	UoWID    string
}

// Transition moves the entity from its current state to to, firing
// preStateTransition/postStateTransition on bus around the move (spec
// §4.3: "a transition fires two events... each carrying (entity, from,
// to, phase)"). An illegal transition fails with InvalidStateTransition
// and neither fires postStateTransition nor mutates State.
func (m *ManagedEntity) Transition(to State, bus *event.Bus) error {
	from := m.State
	if !isLegal(from, to) {
		return &dberrors.InvalidStateTransition{From: string(from), To: string(to)}
	}
	if bus != nil {
		if err := bus.Publish(event.Event{Kind: event.PreStateTransition, Entity: m.Instance, From: string(from), To: string(to)}); err != nil {
			return err
		}
	}
	m.State = to
	if bus != nil {
		if err := bus.Publish(event.Event{Kind: event.PostStateTransition, Entity: m.Instance, From: string(from), To: string(to)}); err != nil {
			return err
		}
	}
	return nil
}

// IdentityMap is the UoW-local lookup from Identity to ManagedEntity. The
// zero value is ready to use.
type IdentityMap struct {
	entities map[Identity]*ManagedEntity
}

// NewIdentityMap constructs an empty IdentityMap.
func NewIdentityMap() *IdentityMap {
	return &IdentityMap{entities: make(map[Identity]*ManagedEntity)}
}

// Lookup returns the managed instance for identity, if any is tracked.
func (im *IdentityMap) Lookup(id Identity) (*ManagedEntity, bool) {
	me, ok := im.entities[id]
	return me, ok
}

// Put installs or replaces the tracked entry for me.Identity.
func (im *IdentityMap) Put(me *ManagedEntity) {
	if im.entities == nil {
		im.entities = make(map[Identity]*ManagedEntity)
	}
	im.entities[me.Identity] = me
}

// Remove forgets identity entirely (used once a REMOVED entity's
// flush-delete has run, and by detach).
func (im *IdentityMap) Remove(id Identity) {
	delete(im.entities, id)
}

// Rekey moves a tracked entry from oldID to newID, used when an insert
// assigns the auto-increment primary key (NEW has no pk yet, so it is
// tracked under a placeholder identity until the flush insert completes).
func (im *IdentityMap) Rekey(oldID, newID Identity) {
	me, ok := im.entities[oldID]
	if !ok {
		return
	}
	delete(im.entities, oldID)
	me.Identity = newID
	im.entities[newID] = me
}

// All returns every tracked ManagedEntity, in no particular order.
func (im *IdentityMap) All() []*ManagedEntity {
	out := make([]*ManagedEntity, 0, len(im.entities))
	for _, me := range im.entities {
		out = append(out, me)
	}
	return out
}

// Len reports how many entities are currently tracked.
func (im *IdentityMap) Len() int { return len(im.entities) }
