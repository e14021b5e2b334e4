// Package event implements the synchronous event bus the UnitOfWork fires
// lifecycle notifications through (spec §4.5.1, ambient stack).
//
// Dispatch is synchronous and in-process: the scheduling model forbids any
// operation of the flush pipeline from suspending (spec §5), so there is
// deliberately no goroutine fan-out, no channel, no queue here. Handlers
// run on the calling goroutine, in subscription order, and a handler
// returning an error aborts the flush that triggered it.
//
// Documented the way the teacher documents its Operation/OperationKind
// enum (internal/core/operation.go): a small set of named constants with
// a one-line doc each, no deeper abstraction.
package event

import "fmt"

// Kind names a point in the UnitOfWork/ManagedEntity lifecycle at which
// listeners may observe or veto an in-flight operation.
type Kind string

const (
	PreFlush  Kind = "pre_flush"
	PostFlush Kind = "post_flush"

	PrePersist  Kind = "pre_persist"
	PostPersist Kind = "post_persist"
	PreUpdate   Kind = "pre_update"
	PostUpdate  Kind = "post_update"
	PreRemove   Kind = "pre_remove"
	PostRemove  Kind = "post_remove"

	PreStateTransition  Kind = "pre_state_transition"
	PostStateTransition Kind = "post_state_transition"
)

// Event is the payload passed to every listener. Fields not relevant to a
// given Kind are left at their zero value (e.g. ChangeSet is nil outside
// PreUpdate/PostUpdate).
type Event struct {
	Kind      Kind
	Entity    any
	ChangeSet any // *changeset.ChangeSet, typed loosely here to avoid an import cycle
	From      string
	To        string
}

// Handler observes or vetoes an Event. A non-nil error aborts the flush.
type Handler func(Event) error

// Bus is a minimal synchronous publish/subscribe dispatcher. The zero
// value is ready to use.
type Bus struct {
	handlers map[Kind][]Handler
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind][]Handler)}
}

// Subscribe registers fn to run whenever Publish is called with kind.
// Handlers run in subscription order.
func (b *Bus) Subscribe(kind Kind, fn Handler) {
	if b.handlers == nil {
		b.handlers = make(map[Kind][]Handler)
	}
	b.handlers[kind] = append(b.handlers[kind], fn)
}

// Publish dispatches evt synchronously to every handler subscribed to
// evt.Kind, in order, stopping at the first error.
func (b *Bus) Publish(evt Event) error {
	for _, h := range b.handlers[evt.Kind] {
		if err := h(evt); err != nil {
			return fmt.Errorf("event: %s handler: %w", evt.Kind, err)
		}
	}
	return nil
}
