package sched

import (
	"errors"
	"fmt"
	"slices"

	"github.com/signadot/vtree/render"
	"github.com/signadot/vtree/vnode"
)

var ErrUpdater = errors.New("updater failed")

// Updater computes a component instance's next local state from its current
// one. Updaters must be pure: queued updaters for the same instance compose in
// submission order.
type Updater func(old any) any

// PendingUpdate is one queued state change.
type PendingUpdate struct {
	Component vnode.ComponentID
	Updater   Updater
	// Seq orders updates across a scheduler's lifetime.
	Seq uint64
}

// Batch holds the updates accumulated since the last flush, grouped per
// component instance in submission order. Updaters are never collapsed.
type Batch struct {
	order   []vnode.ComponentID
	updates map[vnode.ComponentID][]PendingUpdate
	n       int
}

func NewBatch() *Batch {
	return &Batch{updates: map[vnode.ComponentID][]PendingUpdate{}}
}

func (b *Batch) Add(u PendingUpdate) {
	if _, ok := b.updates[u.Component]; !ok {
		b.order = append(b.order, u.Component)
	}
	b.updates[u.Component] = append(b.updates[u.Component], u)
	b.n++
}

// Len is the number of queued updates.
func (b *Batch) Len() int {
	return b.n
}

// Components lists the instances with updates in order of their first update.
func (b *Batch) Components() []vnode.ComponentID {
	return slices.Clone(b.order)
}

func (b *Batch) Updates(id vnode.ComponentID) []PendingUpdate {
	return slices.Clone(b.updates[id])
}

// Fold applies every queued updater to states, per instance in submission
// order, and returns the set of instances updated. A panicking updater stops
// the fold; states may then hold partial results and should be discarded by
// the caller.
func (b *Batch) Fold(states *render.States) (dirty map[vnode.ComponentID]bool, err error) {
	dirty = make(map[vnode.ComponentID]bool, len(b.order))
	for _, id := range b.order {
		v, _ := states.Get(id)
		for _, u := range b.updates[id] {
			v, err = apply(u, v)
			if err != nil {
				return nil, err
			}
		}
		states.Set(id, v)
		dirty[id] = true
	}
	return dirty, nil
}

func apply(u PendingUpdate, v any) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: component %q update %d: panic: %v", ErrUpdater, u.Component, u.Seq, r)
		}
	}()
	return u.Updater(v), nil
}
