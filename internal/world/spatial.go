package world

import (
	"math"
	"slices"

	"github.com/skyrts/backend/internal/core/ecs"
)

// SpatialIndex is a uniform cell grid over colliders (shape bounding boxes)
// and sensors (circles). Every entry is bucketed into each cell its bounds
// touch; queries gather candidates from the touched cells and then filter
// exactly. Accessed only from the simulation goroutine, no locks.
type SpatialIndex struct {
	cellSize float64
	cells    map[cellKey]map[Handle]struct{}
	entries  map[Handle]*spatialEntry
	next     Handle
}

type cellKey struct {
	cx, cy int
}

type entryKind int

const (
	kindCollider entryKind = iota
	kindSensor
)

type spatialEntry struct {
	entity ecs.EntityID
	kind   entryKind
	shape  Shape
	radius float64
	pos    Position
	cells  []cellKey
}

func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = 20
	}
	return &SpatialIndex{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[Handle]struct{}),
		entries:  make(map[Handle]*spatialEntry),
		next:     1,
	}
}

func (g *SpatialIndex) toCell(v float64) int {
	return int(math.Floor(v / g.cellSize))
}

func (e *spatialEntry) bounds() (minX, minY, maxX, maxY float64) {
	hw, hh := e.radius, e.radius
	if e.kind == kindCollider {
		hw, hh = e.shape.HalfExtents()
	}
	return e.pos.X - hw, e.pos.Y - hh, e.pos.X + hw, e.pos.Y + hh
}

func (g *SpatialIndex) cellsFor(minX, minY, maxX, maxY float64) []cellKey {
	x0, x1 := g.toCell(minX), g.toCell(maxX)
	y0, y1 := g.toCell(minY), g.toCell(maxY)
	out := make([]cellKey, 0, (x1-x0+1)*(y1-y0+1))
	for cx := x0; cx <= x1; cx++ {
		for cy := y0; cy <= y1; cy++ {
			out = append(out, cellKey{cx: cx, cy: cy})
		}
	}
	return out
}

func (g *SpatialIndex) add(e *spatialEntry) Handle {
	h := g.next
	g.next++
	g.entries[h] = e
	g.place(h, e)
	return h
}

func (g *SpatialIndex) place(h Handle, e *spatialEntry) {
	e.cells = g.cellsFor(e.bounds())
	for _, k := range e.cells {
		cell := g.cells[k]
		if cell == nil {
			cell = make(map[Handle]struct{})
			g.cells[k] = cell
		}
		cell[h] = struct{}{}
	}
}

func (g *SpatialIndex) unplace(h Handle, e *spatialEntry) {
	for _, k := range e.cells {
		cell := g.cells[k]
		if cell == nil {
			continue
		}
		delete(cell, h)
		if len(cell) == 0 {
			delete(g.cells, k)
		}
	}
	e.cells = nil
}

// Insert adds a collider for entity e and returns its handle.
func (g *SpatialIndex) Insert(e ecs.EntityID, shape Shape, pos Position) Handle {
	return g.add(&spatialEntry{entity: e, kind: kindCollider, shape: shape, pos: pos})
}

// InsertSensor adds a proximity sensor of the given radius.
func (g *SpatialIndex) InsertSensor(e ecs.EntityID, radius float64, pos Position) Handle {
	return g.add(&spatialEntry{entity: e, kind: kindSensor, radius: radius, pos: pos})
}

// Update moves an entry. Unknown handles are ignored.
func (g *SpatialIndex) Update(h Handle, pos Position) {
	e, ok := g.entries[h]
	if !ok {
		return
	}
	g.unplace(h, e)
	e.pos = pos
	g.place(h, e)
}

func (g *SpatialIndex) Remove(h Handle) {
	e, ok := g.entries[h]
	if !ok {
		return
	}
	g.unplace(h, e)
	delete(g.entries, h)
}

// Clear drops every entry and restarts handle numbering.
func (g *SpatialIndex) Clear() {
	clear(g.cells)
	clear(g.entries)
	g.next = 1
}

func (g *SpatialIndex) Len() int { return len(g.entries) }

// Position reports where the index believes an entry is.
func (g *SpatialIndex) Position(h Handle) (Position, bool) {
	e, ok := g.entries[h]
	if !ok {
		return Position{}, false
	}
	return e.pos, true
}

func (g *SpatialIndex) candidates(minX, minY, maxX, maxY float64, kind entryKind) []Handle {
	seen := make(map[Handle]struct{})
	var out []Handle
	for _, k := range g.cellsFor(minX, minY, maxX, maxY) {
		for h := range g.cells[k] {
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			if g.entries[h].kind == kind {
				out = append(out, h)
			}
		}
	}
	return out
}

func sortedEntities(g *SpatialIndex, hs []Handle, keep func(*spatialEntry) bool) []ecs.EntityID {
	var out []ecs.EntityID
	for _, h := range hs {
		e := g.entries[h]
		if keep(e) {
			out = append(out, e.entity)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// PointQuery returns the lowest-id entity whose collider contains (x, y).
func (g *SpatialIndex) PointQuery(x, y float64) (ecs.EntityID, bool) {
	hits := sortedEntities(g, g.candidates(x, y, x, y, kindCollider), func(e *spatialEntry) bool {
		minX, minY, maxX, maxY := e.bounds()
		return x >= minX && x <= maxX && y >= minY && y <= maxY
	})
	if len(hits) == 0 {
		return 0, false
	}
	return hits[0], true
}

// RangeQuery returns the entities whose colliders overlap shape placed at
// pos, ascending.
func (g *SpatialIndex) RangeQuery(shape Shape, pos Position) []ecs.EntityID {
	hw, hh := shape.HalfExtents()
	qx0, qy0, qx1, qy1 := pos.X-hw, pos.Y-hh, pos.X+hw, pos.Y+hh
	return sortedEntities(g, g.candidates(qx0, qy0, qx1, qy1, kindCollider), func(e *spatialEntry) bool {
		minX, minY, maxX, maxY := e.bounds()
		return minX <= qx1 && maxX >= qx0 && minY <= qy1 && maxY >= qy0
	})
}

// CentersIn returns the entities whose collider centre lies in the half
// open box [minX, maxX) x [minY, maxY), ascending.
func (g *SpatialIndex) CentersIn(minX, minY, maxX, maxY float64) []ecs.EntityID {
	return sortedEntities(g, g.candidates(minX, minY, maxX, maxY, kindCollider), func(e *spatialEntry) bool {
		return e.pos.X >= minX && e.pos.X < maxX && e.pos.Y >= minY && e.pos.Y < maxY
	})
}

// SensorContacts returns the entities, other than the sensor's owner, whose
// collider centre lies within the sensor radius.
func (g *SpatialIndex) SensorContacts(h Handle) []ecs.EntityID {
	s, ok := g.entries[h]
	if !ok || s.kind != kindSensor {
		return nil
	}
	minX, minY, maxX, maxY := s.bounds()
	return sortedEntities(g, g.candidates(minX, minY, maxX, maxY, kindCollider), func(e *spatialEntry) bool {
		return e.entity != s.entity && e.pos.DistanceTo(s.pos) <= s.radius
	})
}
