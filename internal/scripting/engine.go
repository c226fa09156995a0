package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/skyrts/backend/internal/scenario"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM running a scenario script. The script
// defines two globals: init() returning the scenario description and
// reset(rng) returning the unit list.
// Single-goroutine access only (game loop).
type Engine struct {
	vm   *lua.LState
	log  *zap.Logger
	name string
}

// NewEngine loads the helper scripts in a sibling lib/ directory, then the
// scenario script itself.
func NewEngine(scriptPath string, log *zap.Logger) (*Engine, error) {
	e := newEngine(scriptPath, log)

	if err := e.loadDir(filepath.Join(filepath.Dir(scriptPath), "lib")); err != nil {
		e.Close()
		return nil, fmt.Errorf("load scenario libs: %w", err)
	}
	if err := e.vm.DoFile(scriptPath); err != nil {
		e.Close()
		return nil, fmt.Errorf("load scenario %s: %w", scriptPath, err)
	}
	e.log.Info("lua scenario loaded", zap.String("file", scriptPath))
	return e, nil
}

// NewEngineFromSource runs src as the scenario script.
func NewEngineFromSource(name, src string, log *zap.Logger) (*Engine, error) {
	e := newEngine(name, log)
	if err := e.vm.DoString(src); err != nil {
		e.Close()
		return nil, fmt.Errorf("load scenario %s: %w", name, err)
	}
	return e, nil
}

func newEngine(name string, log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	return &Engine{vm: vm, log: log, name: name}
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Close releases the VM.
func (e *Engine) Close() {
	e.vm.Close()
}

func (e *Engine) call(name string, args ...lua.LValue) (*lua.LTable, error) {
	fn := e.vm.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%s: lua function %s not defined", e.name, name)
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		return nil, fmt.Errorf("%s: lua %s: %w", e.name, name, err)
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%s: lua %s returned %s, want table", e.name, name, result.Type())
	}
	return rt, nil
}

// Init calls the script's init().
func (e *Engine) Init() (scenario.Description, error) {
	rt, err := e.call("init")
	if err != nil {
		return scenario.Description{}, err
	}
	var desc scenario.Description
	factions, err := optNumber(rt, "factions")
	if err != nil {
		return desc, err
	}
	if factions != nil {
		desc.Factions = int(*factions)
	}

	types, ok := rt.RawGetString("unit_types").(*lua.LTable)
	if !ok {
		return desc, fmt.Errorf("%s: init() must return a unit_types table", e.name)
	}
	for i := 1; i <= types.Len(); i++ {
		t, ok := types.RawGetInt(i).(*lua.LTable)
		if !ok {
			return desc, fmt.Errorf("%s: unit_types[%d] is not a table", e.name, i)
		}
		spec, err := unitTypeSpec(t)
		if err != nil {
			return desc, fmt.Errorf("%s: unit_types[%d]: %w", e.name, i, err)
		}
		desc.UnitTypes = append(desc.UnitTypes, spec)
	}
	e.log.Debug("lua scenario init",
		zap.String("scenario", e.name),
		zap.Int("factions", desc.Factions),
		zap.Int("unit_types", len(desc.UnitTypes)))
	return desc, nil
}

// Reset calls the script's reset(rng).
func (e *Engine) Reset(r scenario.Rand) ([]scenario.UnitSpec, error) {
	rt, err := e.call("reset", e.rngTable(r))
	if err != nil {
		return nil, err
	}
	units := make([]scenario.UnitSpec, 0, rt.Len())
	for i := 1; i <= rt.Len(); i++ {
		t, ok := rt.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("%s: reset()[%d] is not a table", e.name, i)
		}
		u, err := unitSpec(t)
		if err != nil {
			return nil, fmt.Errorf("%s: reset()[%d]: %w", e.name, i, err)
		}
		units = append(units, u)
	}
	return units, nil
}

// rngTable exposes r to the script. Methods accept both rng:f(...) and
// rng.f(...) call styles.
func (e *Engine) rngTable(r scenario.Rand) *lua.LTable {
	t := e.vm.NewTable()
	argBase := func(L *lua.LState) int {
		if _, self := L.Get(1).(*lua.LTable); self {
			return 2
		}
		return 1
	}
	t.RawSetString("gen_range", e.vm.NewFunction(func(L *lua.LState) int {
		b := argBase(L)
		lo, hi := float64(L.CheckNumber(b)), float64(L.CheckNumber(b+1))
		if !(lo < hi) {
			L.ArgError(b, "empty range")
			return 0
		}
		L.Push(lua.LNumber(r.GenRange(lo, hi)))
		return 1
	}))
	t.RawSetString("gen_int", e.vm.NewFunction(func(L *lua.LState) int {
		b := argBase(L)
		lo, hi := int(L.CheckNumber(b)), int(L.CheckNumber(b+1))
		if lo >= hi {
			L.ArgError(b, "empty range")
			return 0
		}
		L.Push(lua.LNumber(r.GenInt(lo, hi)))
		return 1
	}))
	t.RawSetString("random", e.vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(r.Float64()))
		return 1
	}))
	return t
}

func unitTypeSpec(t *lua.LTable) (scenario.UnitTypeSpec, error) {
	var spec scenario.UnitTypeSpec
	tag, ok := t.RawGetString("tag").(lua.LString)
	if !ok {
		return spec, fmt.Errorf("tag must be a string")
	}
	spec.Tag = string(tag)

	var err error
	numbers := []struct {
		key string
		dst **float64
	}{
		{"max_hp", &spec.MaxHp},
		{"speed", &spec.Speed},
		{"kill_reward", &spec.KillReward},
		{"death_penalty", &spec.DeathPenalty},
		{"damage_deal_reward", &spec.DamageDealReward},
		{"damage_recv_penalty", &spec.DamageRecvPenalty},
		{"attack_range", &spec.AttackRange},
	}
	for _, n := range numbers {
		if *n.dst, err = optNumber(t, n.key); err != nil {
			return spec, err
		}
	}

	switch v := t.RawGetString("can_move").(type) {
	case *lua.LNilType:
	case lua.LBool:
		b := bool(v)
		spec.CanMove = &b
	default:
		return spec, fmt.Errorf("can_move must be a boolean")
	}

	switch v := t.RawGetString("shape").(type) {
	case *lua.LNilType:
	case *lua.LTable:
		shape := &scenario.ShapeSpec{}
		if body, ok := v.RawGetString("body").(lua.LString); ok {
			shape.Body = string(body)
		}
		for key, dst := range map[string]*float64{"width": &shape.Width, "height": &shape.Height, "base_len": &shape.BaseLen} {
			n, err := optNumber(v, key)
			if err != nil {
				return spec, fmt.Errorf("shape: %w", err)
			}
			if n != nil {
				*dst = *n
			}
		}
		spec.Shape = shape
	default:
		return spec, fmt.Errorf("shape must be a table")
	}
	return spec, nil
}

func unitSpec(t *lua.LTable) (scenario.UnitSpec, error) {
	var u scenario.UnitSpec
	typ, ok := t.RawGetString("unit_type").(lua.LString)
	if !ok {
		return u, fmt.Errorf("unit_type must be a string")
	}
	u.UnitType = string(typ)

	pos, ok := t.RawGetString("pos").(*lua.LTable)
	if !ok {
		return u, fmt.Errorf("pos must be a table")
	}
	x, ok := pos.RawGetString("x").(lua.LNumber)
	if !ok {
		return u, fmt.Errorf("pos.x must be a number")
	}
	y, ok := pos.RawGetString("y").(lua.LNumber)
	if !ok {
		return u, fmt.Errorf("pos.y must be a number")
	}
	u.Pos = scenario.Pos{X: float64(x), Y: float64(y)}

	faction, err := optNumber(t, "faction")
	if err != nil {
		return u, err
	}
	if faction != nil {
		u.Faction = int(*faction)
	}
	return u, nil
}

func optNumber(t *lua.LTable, key string) (*float64, error) {
	switch v := t.RawGetString(key).(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LNumber:
		f := float64(v)
		return &f, nil
	default:
		return nil, fmt.Errorf("%s must be a number, got %s", key, v.Type())
	}
}
