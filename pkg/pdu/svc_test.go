package pdu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelPDUHeaderRoundTrip(t *testing.T) {
	h := ChannelPDUHeader{Length: 4096, Flags: ChannelFlagFirst | ChannelFlagLast}
	c := NewCursor(make([]byte, 0, h.Size()))
	require.NoError(t, h.Encode(c))
	require.Equal(t, h.Size(), c.Len())

	got, err := DecodeChannelPDUHeader(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, h, got)
	require.True(t, got.IsFirst())
	require.True(t, got.IsLast())
}

func TestChannelPDUHeaderFlagsIndependentFirstLast(t *testing.T) {
	onlyFirst := ChannelPDUHeader{Length: 10, Flags: ChannelFlagFirst}
	require.True(t, onlyFirst.IsFirst())
	require.False(t, onlyFirst.IsLast())

	onlyLast := ChannelPDUHeader{Length: 10, Flags: ChannelFlagLast}
	require.False(t, onlyLast.IsFirst())
	require.True(t, onlyLast.IsLast())
}

func TestChannelPDUHeaderDecodeTruncated(t *testing.T) {
	h := ChannelPDUHeader{Length: 1, Flags: ChannelFlagFirst}
	c := NewCursor(make([]byte, 0, h.Size()))
	require.NoError(t, h.Encode(c))

	_, err := DecodeChannelPDUHeader(NewReadCursor(c.Bytes()[:7]))
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, NotEnoughBytes, de.Kind)
}
