package ecs

import "slices"

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID)
	Clear()
}

// PtrComponentStore is a generic typed map store for ECS components.
// Iteration is always in ascending entity id order; the sorted id slice
// is maintained on insert and remove.
type PtrComponentStore[T any] struct {
	data map[EntityID]*T
	ids  []EntityID
}

func NewPtrComponentStore[T any]() *PtrComponentStore[T] {
	return &PtrComponentStore[T]{
		data: make(map[EntityID]*T, 256),
		ids:  make([]EntityID, 0, 256),
	}
}

func (s *PtrComponentStore[T]) Set(id EntityID, c *T) {
	if _, ok := s.data[id]; !ok {
		pos, _ := slices.BinarySearch(s.ids, id)
		s.ids = slices.Insert(s.ids, pos, id)
	}
	s.data[id] = c
}

func (s *PtrComponentStore[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *PtrComponentStore[T]) Remove(id EntityID) {
	if _, ok := s.data[id]; !ok {
		return
	}
	delete(s.data, id)
	if pos, found := slices.BinarySearch(s.ids, id); found {
		s.ids = slices.Delete(s.ids, pos, pos+1)
	}
}

func (s *PtrComponentStore[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *PtrComponentStore[T]) Len() int {
	return len(s.data)
}

// IDs returns a copy of the stored ids, ascending.
func (s *PtrComponentStore[T]) IDs() []EntityID {
	return slices.Clone(s.ids)
}

func (s *PtrComponentStore[T]) Clear() {
	clear(s.data)
	s.ids = s.ids[:0]
}

// Each visits every component in ascending id order. fn must not add or
// remove entries of this store.
func (s *PtrComponentStore[T]) Each(fn func(EntityID, *T)) {
	for _, id := range s.ids {
		fn(id, s.data[id])
	}
}

// TagStore is a sparse set of marker components.
type TagStore struct {
	set map[EntityID]struct{}
	ids []EntityID
}

func NewTagStore() *TagStore {
	return &TagStore{set: make(map[EntityID]struct{}, 64)}
}

func (s *TagStore) Add(id EntityID) {
	if _, ok := s.set[id]; ok {
		return
	}
	s.set[id] = struct{}{}
	pos, _ := slices.BinarySearch(s.ids, id)
	s.ids = slices.Insert(s.ids, pos, id)
}

func (s *TagStore) Has(id EntityID) bool {
	_, ok := s.set[id]
	return ok
}

func (s *TagStore) Remove(id EntityID) {
	if _, ok := s.set[id]; !ok {
		return
	}
	delete(s.set, id)
	if pos, found := slices.BinarySearch(s.ids, id); found {
		s.ids = slices.Delete(s.ids, pos, pos+1)
	}
}

func (s *TagStore) Len() int { return len(s.set) }

func (s *TagStore) IDs() []EntityID { return slices.Clone(s.ids) }

func (s *TagStore) Clear() {
	clear(s.set)
	s.ids = s.ids[:0]
}
