package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/skyrts/backend/internal/data"
	"github.com/skyrts/backend/internal/scenario"
	"github.com/skyrts/backend/internal/scripting"
	"go.uber.org/zap"
)

// BuiltinTowers names the compiled Towers scenario.
const BuiltinTowers = "towers"

// OpenScenario picks a provider by path: the builtin name, a .lua script
// or a .yaml data file.
func OpenScenario(path string, log *zap.Logger) (scenario.Scenario, error) {
	if path == BuiltinTowers {
		return scenario.Towers{}, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lua":
		e, err := scripting.NewEngine(path, log)
		if err != nil {
			return nil, err
		}
		return e, nil
	case ".yaml", ".yml":
		s, err := data.LoadScenario(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unrecognised scenario %q", path)
}
