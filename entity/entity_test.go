package entity

import (
	"reflect"
	"testing"

	"github.com/mulertech/database/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct{ ID int64 }

func TestLegalLifecycleTransitions(t *testing.T) {
	me := &ManagedEntity{Identity: Identity{Type: reflect.TypeOf(user{}), PK: nil}, State: StateNone}
	require.NoError(t, me.Transition(StateNew, nil))
	assert.Equal(t, StateNew, me.State)

	require.NoError(t, me.Transition(StateManaged, nil))
	assert.Equal(t, StateManaged, me.State)

	require.NoError(t, me.Transition(StateDetached, nil))
	assert.Equal(t, StateDetached, me.State)

	require.NoError(t, me.Transition(StateManaged, nil))
	assert.Equal(t, StateManaged, me.State)
}

func TestIllegalTransitionFails(t *testing.T) {
	me := &ManagedEntity{State: StateDetached}
	err := me.Transition(StateRemoved, nil)
	require.Error(t, err)
	assert.Equal(t, StateDetached, me.State, "state must not change on an illegal transition")
}

func TestTransitionFiresEvents(t *testing.T) {
	bus := event.NewBus()
	var seen []event.Kind
	bus.Subscribe(event.PreStateTransition, func(e event.Event) error {
		seen = append(seen, e.Kind)
		return nil
	})
	bus.Subscribe(event.PostStateTransition, func(e event.Event) error {
		seen = append(seen, e.Kind)
		return nil
	})

	me := &ManagedEntity{State: StateNone}
	require.NoError(t, me.Transition(StateNew, bus))
	assert.Equal(t, []event.Kind{event.PreStateTransition, event.PostStateTransition}, seen)
}

func TestIdentityMapRekey(t *testing.T) {
	im := NewIdentityMap()
	u := &user{}
	oldID := Identity{Type: reflect.TypeOf(user{}), PK: nil}
	me := &ManagedEntity{Identity: oldID, Instance: u, State: StateNew}
	im.Put(me)

	newID := Identity{Type: reflect.TypeOf(user{}), PK: int64(7)}
	im.Rekey(oldID, newID)

	_, ok := im.Lookup(oldID)
	assert.False(t, ok)

	found, ok := im.Lookup(newID)
	require.True(t, ok)
	assert.Same(t, me, found)
}

func TestTrackedCollectionAddRemove(t *testing.T) {
	c := NewTrackedCollection([]int{1, 2, 3})
	c.Add(4)
	c.Remove(2)

	assert.ElementsMatch(t, []int{1, 3, 4}, c.Items())
	assert.Equal(t, []int{4}, c.Added())
	assert.Equal(t, []int{2}, c.Removed())

	c.ResetDelta()
	assert.Empty(t, c.Added())
	assert.Empty(t, c.Removed())
}

func TestTrackedCollectionCancelsPendingAdd(t *testing.T) {
	c := NewTrackedCollection[int](nil)
	c.Add(5)
	c.Remove(5)

	assert.Empty(t, c.Items())
	assert.Empty(t, c.Added())
	assert.Empty(t, c.Removed())
}
