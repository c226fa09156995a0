package system

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
	coresys "github.com/skyrts/backend/internal/core/system"
	"github.com/skyrts/backend/internal/world"
)

// Observation tensor layout.
const (
	DefaultObsCellSize = 20.0
	ObsChannels        = 4

	chID      = 0 // entity id + 1
	chHp      = 1
	chType    = 2 // unit type index
	chFaction = 3
)

// ObservationSystem encodes the world as a (W/cell, H/cell, 4) feature
// grid. Each cell holds the lowest-id entity whose position falls inside
// it. Phase 5 (Observe).
type ObservationSystem struct {
	world    *world.World
	cellSize float64
}

func NewObservationSystem(w *world.World, cellSize float64) *ObservationSystem {
	if cellSize <= 0 {
		cellSize = DefaultObsCellSize
	}
	return &ObservationSystem{world: w, cellSize: cellSize}
}

func (s *ObservationSystem) Phase() coresys.Phase { return coresys.PhaseObserve }

// Dims returns the tensor shape for the current bounds.
func (s *ObservationSystem) Dims() [3]int {
	b := s.world.Bounds
	return [3]int{
		max(int(math.Ceil(b.W/s.cellSize)), 1),
		max(int(math.Ceil(b.H/s.cellSize)), 1),
		ObsChannels,
	}
}

func (s *ObservationSystem) Update(_ float64) error {
	w := s.world
	dims := s.Dims()
	wc, hc := dims[0], dims[1]
	features := make([]float64, wc*hc*ObsChannels)
	filled := make([]bool, wc*hc)

	// One index sweep over the whole field, ascending id; the first entity
	// to land in a cell claims it.
	for _, id := range w.Spatial.CentersIn(0, 0, w.Bounds.W+s.cellSize, w.Bounds.H+s.cellSize) {
		p, ok := w.Positions.Get(id)
		if !ok {
			continue
		}
		i := min(int(p.X/s.cellSize), wc-1)
		j := min(int(p.Y/s.cellSize), hc-1)
		cell := i*hc + j
		if filled[cell] {
			continue
		}
		filled[cell] = true

		base := cell * ObsChannels
		features[base+chID] = float64(id) + 1
		if hp, ok := w.Hps.Get(id); ok {
			features[base+chHp] = hp.Curr
		}
		if tag, ok := w.Tags.Get(id); ok {
			features[base+chType] = float64(w.UnitTypes.Index(string(*tag)))
		}
		if f, ok := w.Factions.Get(id); ok {
			features[base+chFaction] = float64(*f)
		}
	}

	typed := make(map[string]float64, len(w.LastReward))
	for f, r := range w.LastReward {
		typed[strconv.Itoa(int(f))] = r
	}
	w.Observation = &world.Observation{
		Features:    features,
		Dims:        dims,
		Reward:      w.TotalReward(),
		TypedReward: typed,
		Terminal:    w.Terminal,
	}
	return nil
}

// Digest hashes features bit-for-bit, for cheap determinism checks.
func Digest(features []float64) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, f := range features {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		d.Write(buf[:])
	}
	return d.Sum64()
}
