// Package rng is the simulation's only source of randomness. A Source is
// fully determined by its seed and salt; Diverge swaps the salt for fresh
// entropy so a resumed snapshot stops replaying its old trajectory.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

type Source struct {
	pcg  *rand.PCG
	r    *rand.Rand
	salt uint64
}

func New(seed uint64) *Source {
	pcg := rand.NewPCG(seed, 0)
	return &Source{pcg: pcg, r: rand.New(pcg)}
}

// Seed restarts the stream from seed under the current salt.
func (s *Source) Seed(seed uint64) {
	s.pcg.Seed(seed, s.salt)
}

// Reseed fast-reseeds s from another source's stream.
func (s *Source) Reseed(from *Source) {
	s.salt = from.r.Uint64()
	s.pcg.Seed(from.r.Uint64(), s.salt)
}

// Diverge reseeds from OS entropy. If the OS source fails a clock and
// counter mix is used instead.
func (s *Source) Diverge() {
	s.salt = entropy()
	s.pcg.Seed(s.r.Uint64()^entropy(), s.salt)
}

func (s *Source) Uint64() uint64   { return s.r.Uint64() }
func (s *Source) Float64() float64 { return s.r.Float64() }

// GenRange samples uniformly from [lo, hi). hi <= lo returns lo.
func (s *Source) GenRange(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + s.r.Float64()*(hi-lo)
}

// GenInt samples uniformly from [lo, hi). hi <= lo returns lo.
func (s *Source) GenInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.r.IntN(hi-lo)
}

// Shuffle permutes n elements through swap.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.r.Shuffle(n, swap)
}

// MarshalBinary encodes the salt followed by the generator state.
func (s *Source) MarshalBinary() ([]byte, error) {
	state, err := s.pcg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal pcg: %w", err)
	}
	out := binary.BigEndian.AppendUint64(nil, s.salt)
	return append(out, state...), nil
}

func (s *Source) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return errors.New("rng state too short")
	}
	pcg := &rand.PCG{}
	if err := pcg.UnmarshalBinary(data[8:]); err != nil {
		return fmt.Errorf("unmarshal pcg: %w", err)
	}
	*s.pcg = *pcg
	s.salt = binary.BigEndian.Uint64(data[:8])
	return nil
}

var fallbackCounter atomic.Uint64

func entropy() uint64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err == nil {
		return binary.LittleEndian.Uint64(buf[:])
	}
	return uint64(time.Now().UnixNano()) ^ (fallbackCounter.Add(1) * 0x9e3779b97f4a7c15)
}
