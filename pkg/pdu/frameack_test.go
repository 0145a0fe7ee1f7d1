package pdu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameAcknowledgeRoundTrip(t *testing.T) {
	d := FrameAcknowledge{ShareID: 0x1000, UserID: 1003, FrameID: 77}
	c := NewCursor(nil)
	require.NoError(t, d.Encode(c))

	rc := NewReadCursor(c.Bytes())
	ctrl, err := DecodeShareControlHeader(rc)
	require.NoError(t, err)
	require.True(t, ctrl.PDUType.IsData())

	data, err := DecodeShareDataHeader(rc)
	require.NoError(t, err)
	require.Equal(t, ShareDataTypeFrameAcknowledge, data.PDUType2)

	got, err := DecodeFrameAcknowledgeBody(rc)
	require.NoError(t, err)
	require.Equal(t, d.FrameID, got.FrameID)
}
