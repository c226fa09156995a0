// Package protocol is the message surface between the backend and the core
// router. Packets are addressed records; exactly one payload field is set.
package protocol

import "fmt"

type EndpointKind string

const (
	EndpointCore    EndpointKind = "core"
	EndpointBackend EndpointKind = "backend"
	EndpointAgent   EndpointKind = "agent"
	EndpointModule  EndpointKind = "module"
)

type Endpoint struct {
	Kind EndpointKind `json:"kind"`
	Name string       `json:"name,omitempty"` // module name, only for EndpointModule
}

var (
	Core    = Endpoint{Kind: EndpointCore}
	Backend = Endpoint{Kind: EndpointBackend}
	Agent   = Endpoint{Kind: EndpointAgent}
	Viz     = Module("viz")
)

func Module(name string) Endpoint {
	return Endpoint{Kind: EndpointModule, Name: name}
}

func (e Endpoint) String() string {
	if e.Kind == EndpointModule {
		return fmt.Sprintf("module(%s)", e.Name)
	}
	return string(e.Kind)
}

type Packet struct {
	Src  Endpoint `json:"src"`
	Dest Endpoint `json:"dest"`

	Config      *Config      `json:"config,omitempty"`
	ResetEnv    *bool        `json:"reset_env,omitempty"`
	Action      *Action      `json:"action,omitempty"`
	Viz         *VizFrame    `json:"viz,omitempty"`
	VizInit     *VizInit     `json:"viz_init,omitempty"`
	State       *State       `json:"state,omitempty"`
	Error       *Error       `json:"error,omitempty"`
	SerReq      *SerReq      `json:"ser_req,omitempty"`
	SerResp     *SerResp     `json:"ser_resp,omitempty"`
	Deserialize *Deserialize `json:"deserialize,omitempty"`
}

// Kind names the payload for logging.
func (p *Packet) Kind() string {
	switch {
	case p.Config != nil:
		return "config"
	case p.ResetEnv != nil:
		return "reset_env"
	case p.Action != nil:
		return "action"
	case p.Viz != nil:
		return "viz"
	case p.VizInit != nil:
		return "viz_init"
	case p.State != nil:
		return "state"
	case p.Error != nil:
		return "error"
	case p.SerReq != nil:
		return "ser_req"
	case p.SerResp != nil:
		return "ser_resp"
	case p.Deserialize != nil:
		return "deserialize"
	}
	return "empty"
}

type MultiMessage struct {
	Packets []Packet `json:"packets"`
}

func (m *MultiMessage) Push(p Packet) {
	m.Packets = append(m.Packets, p)
}

// Merge appends other's packets to m.
func (m *MultiMessage) Merge(other *MultiMessage) {
	if other == nil {
		return
	}
	m.Packets = append(m.Packets, other.Packets...)
}

func (m *MultiMessage) Empty() bool { return len(m.Packets) == 0 }

type BackendCfg struct {
	ScenarioPath string `json:"scenario_path,omitempty"`
	CfgMsg       []byte `json:"cfg_msg,omitempty"`
	IsReplayMode bool   `json:"is_replay_mode"`
}

type Config struct {
	BackendCfg *BackendCfg `json:"backend_cfg,omitempty"`
}

type Action struct {
	DiscreteActions   []int64   `json:"discrete_actions,omitempty"`
	ContinuousActions []float64 `json:"continuous_actions,omitempty"`
	AlternateActions  []byte    `json:"alternate_actions,omitempty"`
}

type Pos struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
}

func FullPos(x, y float64) *Pos {
	return &Pos{X: &x, Y: &y}
}

type Color struct {
	R uint32 `json:"r"`
	G uint32 `json:"g"`
	B uint32 `json:"b"`
	A uint32 `json:"a"`
}

type Rect struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Triangle struct {
	BaseLen float64 `json:"base_len"`
}

type Shape struct {
	ID          uint64    `json:"id"`
	RelativePos *Pos      `json:"relative_pos,omitempty"`
	Color       *Color    `json:"color,omitempty"`
	Rect        *Rect     `json:"rect,omitempty"`
	Triangle    *Triangle `json:"triangle,omitempty"`
	Delete      bool      `json:"delete"`
}

type VizEntity struct {
	ID     uint64  `json:"id"`
	Pos    *Pos    `json:"pos,omitempty"`
	Shapes []Shape `json:"shapes"`
	Delete bool    `json:"delete"`
}

// VizFrame is the Viz message: the entity records of one frame.
type VizFrame struct {
	Entities []VizEntity `json:"entities"`
}

type VizInit struct {
	TestMode *bool `json:"test_mode,omitempty"`
}

type State struct {
	Features         []float64          `json:"features"`
	FeatureArrayDims [3]int             `json:"feature_array_dims"`
	Reward           float64            `json:"reward"`
	TypedReward      map[string]float64 `json:"typed_reward"`
	Terminal         bool               `json:"terminal"`
}

type Error struct {
	Description string `json:"description"`
	Fatal       bool   `json:"fatal"`
}

type SerReq struct {
	Diverging bool `json:"diverging"`
}

type SerResp struct {
	Serialized []byte `json:"serialized"`
}

type Deserialize struct {
	Serialized []byte `json:"serialized"`
	Diverging  bool   `json:"diverging"`
}
