package ecs

import (
	"errors"
	"fmt"
	"slices"
)

// EntityID is a plain unsigned id. Ids are dense from 0 and are only
// recycled once the fresh range up to ReclaimThreshold is used up.
type EntityID uint64

// JSMaxSafeInteger keeps ids representable in the visualizer's JavaScript runtime.
const JSMaxSafeInteger = 1<<53 - 1

// ErrIDsExhausted is returned by a strict IDManager that has run past its threshold.
var ErrIDsExhausted = errors.New("entity ids exhausted")

// IDManager hands out entity ids. Allocation is fresh (next++) until
// ReclaimThreshold, after which the smallest reclaimed id is reused.
// When nothing can be reclaimed it keeps counting past the threshold,
// unless Strict is set.
type IDManager struct {
	live      map[EntityID]struct{}
	reclaimed []EntityID // kept sorted ascending
	next      EntityID

	ReclaimThreshold EntityID
	Strict           bool
}

func NewIDManager() *IDManager {
	return &IDManager{
		live:             make(map[EntityID]struct{}, 256),
		reclaimed:        make([]EntityID, 0, 64),
		ReclaimThreshold: JSMaxSafeInteger,
	}
}

func (m *IDManager) Create() (EntityID, error) {
	if m.next < m.ReclaimThreshold {
		return m.fresh(), nil
	}
	if len(m.reclaimed) > 0 {
		id := m.reclaimed[0]
		m.reclaimed = m.reclaimed[1:]
		m.live[id] = struct{}{}
		return id, nil
	}
	if m.Strict {
		return 0, fmt.Errorf("create past threshold %d: %w", m.ReclaimThreshold, ErrIDsExhausted)
	}
	return m.fresh(), nil
}

func (m *IDManager) fresh() EntityID {
	id := m.next
	m.next++
	m.live[id] = struct{}{}
	return id
}

// Free releases a live id. Freeing an id that is not live is a programmer
// error and panics.
func (m *IDManager) Free(id EntityID) {
	if _, ok := m.live[id]; !ok {
		panic(fmt.Sprintf("ecs: free of unknown entity %d", id))
	}
	delete(m.live, id)
	pos, _ := slices.BinarySearch(m.reclaimed, id)
	m.reclaimed = slices.Insert(m.reclaimed, pos, id)
}

func (m *IDManager) Alive(id EntityID) bool {
	_, ok := m.live[id]
	return ok
}

// Live returns all live ids in ascending order.
func (m *IDManager) Live() []EntityID {
	out := make([]EntityID, 0, len(m.live))
	for id := range m.live {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (m *IDManager) Len() int { return len(m.live) }

// Reclaimed reports how many ids wait in the reclaim pool.
func (m *IDManager) Reclaimed() int { return len(m.reclaimed) }

// Clear forgets every id and restarts allocation at zero.
func (m *IDManager) Clear() {
	clear(m.live)
	m.reclaimed = m.reclaimed[:0]
	m.next = 0
}
