package pdu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFastPathInputHeaderShortFormRoundTrip(t *testing.T) {
	// Scenario 2 from the wire-compatibility examples (short form, one
	// event), here with a 2-byte scancode event: a 4-byte frame.
	ev := NewKeyboardEvent(0, 0x1E)
	body := NewCursor(make([]byte, 0, ev.Size()))
	require.NoError(t, ev.Encode(body))

	h := FastPathInputHeader{NumEvents: 1, Data: body.Bytes()}
	c := NewCursor(make([]byte, 0, h.Size()))
	require.NoError(t, h.Encode(c))
	require.Equal(t, h.Size(), c.Len())
	require.Equal(t, 4, c.Len())
	require.Equal(t, byte(0x04), c.Bytes()[1]) // length: whole frame, 1 (header byte) + 1 (length byte) + 2 (scancode event)

	got, err := DecodeFastPathInputHeader(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, h.NumEvents, got.NumEvents)
	require.Equal(t, h.Data, got.Data)

	decodedEvent, err := DecodeInputEvent(NewReadCursor(got.Data))
	require.NoError(t, err)
	require.Equal(t, ev, decodedEvent)
}

func TestFastPathInputHeaderRejectsX224Action(t *testing.T) {
	// The first byte's low two bits select FASTPATH(0) vs X224(3); feeding
	// an X.224 TPDU byte must be rejected rather than silently mis-decoded.
	c := NewReadCursor([]byte{0x03, 0x00})
	_, err := DecodeFastPathInputHeader(c)
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, UnexpectedMessageType, de.Kind)
}

func TestFastPathOutputHeaderRoundTrip(t *testing.T) {
	h := FastPathOutputHeader{Data: []byte{0xAA, 0xBB, 0xCC}}
	c := NewCursor(make([]byte, 0, h.Size()))
	require.NoError(t, h.Encode(c))
	require.Equal(t, h.Size(), c.Len())

	got, err := DecodeFastPathOutputHeader(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, h.Data, got.Data)
}

func TestFastPathOutputHeaderLongFormLength(t *testing.T) {
	h := FastPathOutputHeader{Data: make([]byte, 300)}
	c := NewCursor(make([]byte, 0, h.Size()))
	require.NoError(t, h.Encode(c))
	require.Equal(t, h.Size(), c.Len())
	require.True(t, c.Bytes()[1]&0x80 != 0) // long-form length marker

	got, err := DecodeFastPathOutputHeader(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, h.Data, got.Data)
}

func TestFastPathUpdateHeaderRoundTrip(t *testing.T) {
	h := FastPathUpdateHeader{UpdateCode: FastPathUpdateCodeSurfaceCommands, FragmentMarker: FastPathFragmentFirst, Compressed: true}
	c := NewCursor(make([]byte, 0, h.Size()))
	require.NoError(t, h.Encode(c))
	got, err := DecodeFastPathUpdateHeader(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestDecodeSurfaceCommandsFrameMarker(t *testing.T) {
	fm := FrameMarkerCommand{Action: FrameActionBegin, FrameID: 42}
	c := NewCursor(make([]byte, 0, fm.Size()))
	require.NoError(t, fm.Encode(c))

	cmds, err := DecodeSurfaceCommands(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	require.Equal(t, SurfaceCommandFrameMarker, cmds[0].CmdType)
	require.Equal(t, fm, *cmds[0].FrameMarker)
}

func TestDecodeSurfaceCommandsSetSurfaceBits(t *testing.T) {
	sb := SetSurfaceBitsCommand{
		DestRect:   ExclusiveRectangle{Left: 0, Top: 0, Right: 64, Bottom: 64},
		BPP:        32,
		CodecID:    3,
		Width:      64,
		Height:     64,
		BitmapData: []byte{0x01, 0x02, 0x03, 0x04},
	}
	c := NewCursor(make([]byte, 0, sb.Size()))
	require.NoError(t, sb.Encode(c))

	cmds, err := DecodeSurfaceCommands(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	require.Equal(t, SurfaceCommandSetBits, cmds[0].CmdType)
	require.False(t, cmds[0].Streaming)
	require.Equal(t, sb, *cmds[0].SetSurfaceBits)
}

func TestDecodeSurfaceCommandsMultipleSequential(t *testing.T) {
	fm := FrameMarkerCommand{Action: FrameActionBegin, FrameID: 1}
	sb := SetSurfaceBitsCommand{DestRect: ExclusiveRectangle{Right: 10, Bottom: 10}, BPP: 16, CodecID: 0, Width: 10, Height: 10}
	fmEnd := FrameMarkerCommand{Action: FrameActionEnd, FrameID: 1}

	c := NewCursor(nil)
	require.NoError(t, fm.Encode(c))
	require.NoError(t, sb.Encode(c))
	require.NoError(t, fmEnd.Encode(c))

	cmds, err := DecodeSurfaceCommands(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Len(t, cmds, 3)
	require.Equal(t, FrameActionBegin, cmds[0].FrameMarker.Action)
	require.NotNil(t, cmds[1].SetSurfaceBits)
	require.Equal(t, FrameActionEnd, cmds[2].FrameMarker.Action)
}

func TestDecodeSurfaceCommandsUnknownTypeRejected(t *testing.T) {
	c := NewCursor(nil)
	c.WriteU16LE(0xBEEF)
	_, err := DecodeSurfaceCommands(NewReadCursor(c.Bytes()))
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, InvalidField, de.Kind)
}
