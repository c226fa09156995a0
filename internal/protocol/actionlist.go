package protocol

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ActionList wire layout (protobuf):
//
//	message ActionList { repeated UnitAction actions = 1; }
//	message UnitAction {
//	  uint64 unit_id = 1;
//	  oneof action { MoveTo move_to = 2; AttackUnit attack = 3; }
//	}
//	message MoveTo     { Pos pos = 1; }
//	message Pos        { double x = 1; double y = 2; }
//	message AttackUnit { uint64 target_id = 1; }
const (
	fieldActions = 1

	fieldUnitID = 1
	fieldMoveTo = 2
	fieldAttack = 3

	fieldMovePos = 1
	fieldPosX    = 1
	fieldPosY    = 2

	fieldTargetID = 1
)

type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandMoveTo
	CommandAttackUnit
	// CommandUnknown is a oneof variant this backend does not implement.
	CommandUnknown
)

func (k CommandKind) String() string {
	switch k {
	case CommandMoveTo:
		return "move_to"
	case CommandAttackUnit:
		return "attack"
	case CommandUnknown:
		return "unknown"
	}
	return "none"
}

type UnitCommand struct {
	UnitID   uint64
	Kind     CommandKind
	X, Y     float64
	TargetID uint64
	Field    protowire.Number // raw field number for CommandUnknown
}

var ErrActionList = errors.New("malformed action list")

// DecodeActionList parses the alternate_actions payload.
func DecodeActionList(b []byte) ([]UnitCommand, error) {
	var out []UnitCommand
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrActionList, protowire.ParseError(n))
		}
		b = b[n:]
		if num == fieldActions && typ == protowire.BytesType {
			msg, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", ErrActionList, protowire.ParseError(m))
			}
			cmd, err := decodeUnitAction(msg)
			if err != nil {
				return nil, err
			}
			out = append(out, cmd)
			b = b[m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return nil, fmt.Errorf("%w: %v", ErrActionList, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return out, nil
}

func decodeUnitAction(b []byte) (UnitCommand, error) {
	var cmd UnitCommand
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return cmd, fmt.Errorf("%w: unit action: %v", ErrActionList, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldUnitID && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return cmd, fmt.Errorf("%w: unit_id: %v", ErrActionList, protowire.ParseError(m))
			}
			cmd.UnitID = v
			b = b[m:]
		case num == fieldMoveTo && typ == protowire.BytesType:
			msg, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return cmd, fmt.Errorf("%w: move_to: %v", ErrActionList, protowire.ParseError(m))
			}
			x, y, err := decodeMoveTo(msg)
			if err != nil {
				return cmd, err
			}
			cmd.Kind, cmd.X, cmd.Y = CommandMoveTo, x, y
			b = b[m:]
		case num == fieldAttack && typ == protowire.BytesType:
			msg, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return cmd, fmt.Errorf("%w: attack: %v", ErrActionList, protowire.ParseError(m))
			}
			target, err := decodeAttack(msg)
			if err != nil {
				return cmd, err
			}
			cmd.Kind, cmd.TargetID = CommandAttackUnit, target
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return cmd, fmt.Errorf("%w: field %d: %v", ErrActionList, num, protowire.ParseError(m))
			}
			if num > fieldAttack && typ == protowire.BytesType {
				cmd.Kind, cmd.Field = CommandUnknown, num
			}
			b = b[m:]
		}
	}
	return cmd, nil
}

func decodeMoveTo(b []byte) (x, y float64, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, 0, fmt.Errorf("%w: move_to: %v", ErrActionList, protowire.ParseError(n))
		}
		b = b[n:]
		if num == fieldMovePos && typ == protowire.BytesType {
			msg, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return 0, 0, fmt.Errorf("%w: pos: %v", ErrActionList, protowire.ParseError(m))
			}
			if x, y, err = decodePos(msg); err != nil {
				return 0, 0, err
			}
			b = b[m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return 0, 0, fmt.Errorf("%w: move_to: %v", ErrActionList, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return x, y, nil
}

func decodePos(b []byte) (x, y float64, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, 0, fmt.Errorf("%w: pos: %v", ErrActionList, protowire.ParseError(n))
		}
		b = b[n:]
		if (num == fieldPosX || num == fieldPosY) && typ == protowire.Fixed64Type {
			v, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return 0, 0, fmt.Errorf("%w: pos: %v", ErrActionList, protowire.ParseError(m))
			}
			if num == fieldPosX {
				x = math.Float64frombits(v)
			} else {
				y = math.Float64frombits(v)
			}
			b = b[m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return 0, 0, fmt.Errorf("%w: pos: %v", ErrActionList, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return x, y, nil
}

func decodeAttack(b []byte) (uint64, error) {
	var target uint64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, fmt.Errorf("%w: attack: %v", ErrActionList, protowire.ParseError(n))
		}
		b = b[n:]
		if num == fieldTargetID && typ == protowire.VarintType {
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return 0, fmt.Errorf("%w: target_id: %v", ErrActionList, protowire.ParseError(m))
			}
			target = v
			b = b[m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return 0, fmt.Errorf("%w: attack: %v", ErrActionList, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return target, nil
}

// EncodeActionList is the inverse of DecodeActionList for the two known
// command kinds. Commands of other kinds are skipped.
func EncodeActionList(cmds []UnitCommand) []byte {
	var out []byte
	for _, c := range cmds {
		var ua []byte
		ua = protowire.AppendTag(ua, fieldUnitID, protowire.VarintType)
		ua = protowire.AppendVarint(ua, c.UnitID)
		switch c.Kind {
		case CommandMoveTo:
			var pos []byte
			pos = protowire.AppendTag(pos, fieldPosX, protowire.Fixed64Type)
			pos = protowire.AppendFixed64(pos, math.Float64bits(c.X))
			pos = protowire.AppendTag(pos, fieldPosY, protowire.Fixed64Type)
			pos = protowire.AppendFixed64(pos, math.Float64bits(c.Y))
			var mv []byte
			mv = protowire.AppendTag(mv, fieldMovePos, protowire.BytesType)
			mv = protowire.AppendBytes(mv, pos)
			ua = protowire.AppendTag(ua, fieldMoveTo, protowire.BytesType)
			ua = protowire.AppendBytes(ua, mv)
		case CommandAttackUnit:
			var atk []byte
			atk = protowire.AppendTag(atk, fieldTargetID, protowire.VarintType)
			atk = protowire.AppendVarint(atk, c.TargetID)
			ua = protowire.AppendTag(ua, fieldAttack, protowire.BytesType)
			ua = protowire.AppendBytes(ua, atk)
		default:
			continue
		}
		out = protowire.AppendTag(out, fieldActions, protowire.BytesType)
		out = protowire.AppendBytes(out, ua)
	}
	return out
}
