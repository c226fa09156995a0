package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestActionListEncodeDecode(t *testing.T) {
	cmds := []UnitCommand{
		{UnitID: 0, Kind: CommandMoveTo, X: 50, Y: 60.25},
		{UnitID: 3, Kind: CommandAttackUnit, TargetID: 7},
	}
	got, err := DecodeActionList(EncodeActionList(cmds))
	require.NoError(t, err)
	assert.Equal(t, cmds, got)
}

func TestActionListUnknownVariant(t *testing.T) {
	var ua []byte
	ua = protowire.AppendTag(ua, fieldUnitID, protowire.VarintType)
	ua = protowire.AppendVarint(ua, 2)
	ua = protowire.AppendTag(ua, 9, protowire.BytesType)
	ua = protowire.AppendBytes(ua, []byte{0x08, 0x01})
	var b []byte
	b = protowire.AppendTag(b, fieldActions, protowire.BytesType)
	b = protowire.AppendBytes(b, ua)

	got, err := DecodeActionList(b)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, CommandUnknown, got[0].Kind)
	assert.Equal(t, protowire.Number(9), got[0].Field)
	assert.Equal(t, uint64(2), got[0].UnitID)
}

func TestActionListMalformed(t *testing.T) {
	_, err := DecodeActionList([]byte{0x0a, 0x05, 0x08})
	require.ErrorIs(t, err, ErrActionList)

	_, err = DecodeActionList([]byte{0xff})
	require.ErrorIs(t, err, ErrActionList)
}

func TestActionListEmpty(t *testing.T) {
	got, err := DecodeActionList(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFrameRoundTrip(t *testing.T) {
	reset := true
	in := &MultiMessage{Packets: []Packet{
		{Src: Core, Dest: Backend, ResetEnv: &reset},
		{Src: Backend, Dest: Viz, Viz: &VizFrame{Entities: []VizEntity{
			{ID: 1, Pos: FullPos(5, 50), Shapes: []Shape{}},
		}}},
	}}
	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, out.Packets, 2)
	assert.Equal(t, "reset_env", out.Packets[0].Kind())
	assert.Equal(t, Viz, out.Packets[1].Dest)
	assert.Equal(t, 50.0, *out.Packets[1].Viz.Entities[0].Pos.Y)
}

func TestDecodeBarePacket(t *testing.T) {
	out, err := Decode([]byte(`{"src":{"kind":"core"},"dest":{"kind":"backend"},"action":{"discrete_actions":[2]}}`))
	require.NoError(t, err)
	require.Len(t, out.Packets, 1)
	assert.Equal(t, []int64{2}, out.Packets[0].Action.DiscreteActions)
	assert.Equal(t, "backend", out.Packets[0].Dest.String())
}

func TestEmptyMultiMessageEncodesArray(t *testing.T) {
	data, err := Encode(&MultiMessage{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"packets":[]}`, string(data))
}
