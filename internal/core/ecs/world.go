package ecs

// World is the top-level ECS container. It owns the id manager and the
// component registry. Entities are destroyed immediately; the simulation
// only destroys them between ticks.
type World struct {
	ids      *IDManager
	registry *Registry
}

func NewWorld() *World {
	return &World{
		ids:      NewIDManager(),
		registry: NewRegistry(),
	}
}

func (w *World) IDs() *IDManager     { return w.ids }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) CreateEntity() (EntityID, error) {
	return w.ids.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.ids.Alive(id)
}

// Live returns every live entity, ascending.
func (w *World) Live() []EntityID {
	return w.ids.Live()
}

// Destroy removes an entity's components and frees its id.
func (w *World) Destroy(id EntityID) {
	w.registry.RemoveAll(id)
	w.ids.Free(id)
}

// DeleteAll destroys every entity and restarts id allocation.
func (w *World) DeleteAll() {
	for _, id := range w.ids.Live() {
		w.ids.Free(id)
	}
	w.registry.ClearAll()
	w.ids.Clear()
}
