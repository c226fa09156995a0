package ecs

// Each2 iterates over entities that have both component A and B, in
// ascending id order. It walks the smaller store and probes the larger one.
func Each2[A, B any](sa *PtrComponentStore[A], sb *PtrComponentStore[B], fn func(EntityID, *A, *B)) {
	if sa.Len() <= sb.Len() {
		for _, id := range sa.IDs() {
			if b, ok := sb.data[id]; ok {
				fn(id, sa.data[id], b)
			}
		}
		return
	}
	for _, id := range sb.IDs() {
		if a, ok := sa.data[id]; ok {
			fn(id, a, sb.data[id])
		}
	}
}

// Each3 iterates over entities that have components A, B, and C, in
// ascending id order.
func Each3[A, B, C any](sa *PtrComponentStore[A], sb *PtrComponentStore[B], sc *PtrComponentStore[C], fn func(EntityID, *A, *B, *C)) {
	// Iterate the smallest store
	ids := sa.ids
	if sb.Len() < len(ids) {
		ids = sb.ids
	}
	if sc.Len() < len(ids) {
		ids = sc.ids
	}
	for _, id := range append([]EntityID(nil), ids...) {
		a, ok := sa.data[id]
		if !ok {
			continue
		}
		b, ok := sb.data[id]
		if !ok {
			continue
		}
		if c, ok := sc.data[id]; ok {
			fn(id, a, b, c)
		}
	}
}
