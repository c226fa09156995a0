package system

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseBegin      Phase = iota // 0: clear per-tick flags and buffers
	PhaseInput                   // 1: decode the pending action into commands
	PhaseUpdate                  // 2: movement
	PhasePostUpdate              // 3: triggers and rewards
	PhaseOutput                  // 4: build the visualization frame
	PhaseObserve                 // 5: build the agent observation
)

func (p Phase) String() string {
	switch p {
	case PhaseBegin:
		return "begin"
	case PhaseInput:
		return "input"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post_update"
	case PhaseOutput:
		return "output"
	case PhaseObserve:
		return "observe"
	}
	return "unknown"
}

// System is the interface every ECS system implements. dt is the fixed
// simulation step in seconds. A returned error aborts the tick.
type System interface {
	Phase() Phase
	Update(dt float64) error
}
