package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDManagerFreshAllocation(t *testing.T) {
	m := NewIDManager()
	for want := EntityID(0); want < 5; want++ {
		id, err := m.Create()
		require.NoError(t, err)
		require.Equal(t, want, id)
	}
	m.Free(2)
	// Below the threshold freed ids are not reused yet.
	id, err := m.Create()
	require.NoError(t, err)
	assert.Equal(t, EntityID(5), id)
	assert.False(t, m.Alive(2))
	assert.Equal(t, 1, m.Reclaimed())
}

func TestIDManagerReclaimsSmallestPastThreshold(t *testing.T) {
	m := NewIDManager()
	m.ReclaimThreshold = 4
	for i := 0; i < 4; i++ {
		_, err := m.Create()
		require.NoError(t, err)
	}
	m.Free(3)
	m.Free(1)

	id, err := m.Create()
	require.NoError(t, err)
	assert.Equal(t, EntityID(1), id)

	id, err = m.Create()
	require.NoError(t, err)
	assert.Equal(t, EntityID(3), id)

	// Pool empty: continue past the threshold.
	id, err = m.Create()
	require.NoError(t, err)
	assert.Equal(t, EntityID(4), id)
}

func TestIDManagerStrictExhaustion(t *testing.T) {
	m := NewIDManager()
	m.ReclaimThreshold = 2
	m.Strict = true
	_, _ = m.Create()
	_, _ = m.Create()
	_, err := m.Create()
	require.ErrorIs(t, err, ErrIDsExhausted)
}

func TestIDManagerFreeUnknownPanics(t *testing.T) {
	m := NewIDManager()
	assert.Panics(t, func() { m.Free(7) })

	id, _ := m.Create()
	m.Free(id)
	assert.Panics(t, func() { m.Free(id) })
}

func TestIDManagerLiveAndReclaimedDisjoint(t *testing.T) {
	m := NewIDManager()
	m.ReclaimThreshold = 3
	for i := 0; i < 3; i++ {
		_, _ = m.Create()
	}
	m.Free(0)
	id, _ := m.Create()
	require.Equal(t, EntityID(0), id)
	assert.Equal(t, []EntityID{0, 1, 2}, m.Live())
	assert.Zero(t, m.Reclaimed())
}

func TestStoreIteratesAscending(t *testing.T) {
	s := NewPtrComponentStore[int]()
	for _, id := range []EntityID{9, 3, 7, 1} {
		v := int(id) * 10
		s.Set(EntityID(id), &v)
	}
	s.Remove(7)

	var seen []EntityID
	s.Each(func(id EntityID, v *int) {
		seen = append(seen, id)
		assert.Equal(t, int(id)*10, *v)
	})
	assert.Equal(t, []EntityID{1, 3, 9}, seen)
}

func TestTagStore(t *testing.T) {
	s := NewTagStore()
	s.Add(4)
	s.Add(2)
	s.Add(4)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []EntityID{2, 4}, s.IDs())
	s.Remove(2)
	assert.False(t, s.Has(2))
	s.Clear()
	assert.Zero(t, s.Len())
}

func TestEachJoinsInIDOrder(t *testing.T) {
	a := NewPtrComponentStore[string]()
	b := NewPtrComponentStore[int]()
	c := NewPtrComponentStore[bool]()
	for _, id := range []EntityID{5, 1, 3} {
		s := "x"
		a.Set(id, &s)
	}
	for _, id := range []EntityID{3, 5, 8, 1, 2} {
		n := int(id)
		b.Set(id, &n)
	}
	yes := true
	c.Set(5, &yes)
	c.Set(1, &yes)

	var two []EntityID
	Each2(a, b, func(id EntityID, _ *string, _ *int) { two = append(two, id) })
	assert.Equal(t, []EntityID{1, 3, 5}, two)

	var three []EntityID
	Each3(a, b, c, func(id EntityID, _ *string, _ *int, _ *bool) { three = append(three, id) })
	assert.Equal(t, []EntityID{1, 5}, three)
}

func TestWorldDeleteAllRestartsIDs(t *testing.T) {
	w := NewWorld()
	pos := NewPtrComponentStore[float64]()
	w.Registry().Register(pos)

	for i := 0; i < 3; i++ {
		id, err := w.CreateEntity()
		require.NoError(t, err)
		v := float64(i)
		pos.Set(id, &v)
	}
	w.Destroy(1)
	assert.False(t, pos.Has(1))
	assert.Equal(t, []EntityID{0, 2}, w.Live())

	w.DeleteAll()
	assert.Empty(t, w.Live())
	assert.Zero(t, pos.Len())

	id, err := w.CreateEntity()
	require.NoError(t, err)
	assert.Equal(t, EntityID(0), id)
}
