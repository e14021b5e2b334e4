package entity

// TrackedCollection wraps a to-many relation's items and records additions
// and removals as they happen, so ChangeDetector (package changeset) can
// read them directly instead of diffing two full slices (spec §4.4: "the
// collection exposes added() and removed() sets populated on mutation").
type TrackedCollection[T comparable] struct {
	items   []T
	added   map[T]struct{}
	removed map[T]struct{}
}

// NewTrackedCollection wraps an already-loaded slice with empty delta
// sets, as when hydrating a managed entity's relation from the database.
func NewTrackedCollection[T comparable](initial []T) *TrackedCollection[T] {
	items := make([]T, len(initial))
	copy(items, initial)
	return &TrackedCollection[T]{
		items:   items,
		added:   make(map[T]struct{}),
		removed: make(map[T]struct{}),
	}
}

// Items returns the collection's current contents.
func (c *TrackedCollection[T]) Items() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Add appends item and records it as added, unless it was pending removal
// (in which case the removal is simply cancelled).
func (c *TrackedCollection[T]) Add(item T) {
	if _, wasRemoved := c.removed[item]; wasRemoved {
		delete(c.removed, item)
		c.items = append(c.items, item)
		return
	}
	c.items = append(c.items, item)
	c.added[item] = struct{}{}
}

// Remove drops the first occurrence of item and records it as removed,
// unless it was only a pending addition (in which case the addition is
// cancelled and the item never reaches the database).
func (c *TrackedCollection[T]) Remove(item T) {
	for i, v := range c.items {
		if v == item {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	if _, wasAdded := c.added[item]; wasAdded {
		delete(c.added, item)
		return
	}
	c.removed[item] = struct{}{}
}

// Added returns the items added since the last ResetDelta.
func (c *TrackedCollection[T]) Added() []T {
	out := make([]T, 0, len(c.added))
	for v := range c.added {
		out = append(out, v)
	}
	return out
}

// Removed returns the items removed since the last ResetDelta.
func (c *TrackedCollection[T]) Removed() []T {
	out := make([]T, 0, len(c.removed))
	for v := range c.removed {
		out = append(out, v)
	}
	return out
}

// ResetDelta clears the added/removed sets, called once a flush has
// applied the join-table changes for this collection.
func (c *TrackedCollection[T]) ResetDelta() {
	c.added = make(map[T]struct{})
	c.removed = make(map[T]struct{})
}

// AddedAny is Added() boxed as []any, so package changeset can read the
// delta off a struct field found by reflection without knowing T.
func (c *TrackedCollection[T]) AddedAny() []any {
	out := make([]any, 0, len(c.added))
	for v := range c.added {
		out = append(out, v)
	}
	return out
}

// RemovedAny is Removed() boxed as []any, for the same reason as AddedAny.
func (c *TrackedCollection[T]) RemovedAny() []any {
	out := make([]any, 0, len(c.removed))
	for v := range c.removed {
		out = append(out, v)
	}
	return out
}

// Delta is the reflection-discoverable face of a TrackedCollection,
// letting package changeset read a collection's pending mutations off an
// entity field without importing a concrete element type.
type Delta interface {
	AddedAny() []any
	RemovedAny() []any
	ResetDelta()
}
