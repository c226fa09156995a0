package data

import (
	"fmt"
	"os"

	"github.com/skyrts/backend/internal/scenario"
	"gopkg.in/yaml.v3"
)

// SpawnEntry places Count units of a type around (X, Y). RandomX and
// RandomY are jitter half-ranges drawn from the episode RNG.
type SpawnEntry struct {
	UnitType string  `yaml:"unit_type"`
	Faction  int     `yaml:"faction"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Count    int     `yaml:"count"`
	RandomX  float64 `yaml:"randomx"`
	RandomY  float64 `yaml:"randomy"`
}

type scenarioFile struct {
	Factions  int                     `yaml:"factions"`
	UnitTypes []scenario.UnitTypeSpec `yaml:"unit_types"`
	Spawns    []SpawnEntry            `yaml:"spawns"`
}

// Scenario is a data-driven scenario loaded from YAML.
type Scenario struct {
	desc   scenario.Description
	spawns []SpawnEntry
}

// LoadScenario loads and checks a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

func ParseScenario(data []byte) (*Scenario, error) {
	var f scenarioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	s := &Scenario{
		desc:   scenario.Description{Factions: f.Factions, UnitTypes: f.UnitTypes},
		spawns: f.Spawns,
	}
	table, err := s.desc.UnitTypesTable()
	if err != nil {
		return nil, err
	}
	for i, sp := range s.spawns {
		if _, ok := table.Get(sp.UnitType); !ok {
			return nil, fmt.Errorf("spawn %d: unknown unit type %q", i, sp.UnitType)
		}
		if sp.Count < 0 || sp.RandomX < 0 || sp.RandomY < 0 {
			return nil, fmt.Errorf("spawn %d: negative count or jitter", i)
		}
		if sp.Faction < 0 || sp.Faction >= s.desc.FactionCount() {
			return nil, fmt.Errorf("spawn %d: faction %d out of range", i, sp.Faction)
		}
	}
	return s, nil
}

func (s *Scenario) Init() (scenario.Description, error) {
	return s.desc, nil
}

// Reset expands the spawn list. A zero count means one unit.
func (s *Scenario) Reset(r scenario.Rand) ([]scenario.UnitSpec, error) {
	var units []scenario.UnitSpec
	for _, sp := range s.spawns {
		n := max(sp.Count, 1)
		for i := 0; i < n; i++ {
			x, y := sp.X, sp.Y
			if sp.RandomX > 0 {
				x += r.GenRange(-sp.RandomX, sp.RandomX)
			}
			if sp.RandomY > 0 {
				y += r.GenRange(-sp.RandomY, sp.RandomY)
			}
			units = append(units, scenario.UnitSpec{
				UnitType: sp.UnitType,
				Pos:      scenario.Pos{X: x, Y: y},
				Faction:  sp.Faction,
			})
		}
	}
	return units, nil
}
