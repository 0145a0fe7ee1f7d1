package pdu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInclusiveRectangleRoundTrip(t *testing.T) {
	r := InclusiveRectangle{Left: 10, Top: 20, Right: 629, Bottom: 499}
	c := NewCursor(make([]byte, 0, r.Size()))
	require.NoError(t, r.Encode(c))
	require.Equal(t, r.Size(), c.Len())

	got, err := DecodeInclusiveRectangle(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, r, got)
	require.Equal(t, 620, r.Width())
	require.Equal(t, 480, r.Height())
}

func TestExclusiveRectangleRoundTrip(t *testing.T) {
	r := ExclusiveRectangle{Left: 0, Top: 0, Right: 1920, Bottom: 1080}
	c := NewCursor(make([]byte, 0, r.Size()))
	require.NoError(t, r.Encode(c))
	got, err := DecodeExclusiveRectangle(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, r, got)
	require.Equal(t, 1920, r.Width())
	require.Equal(t, 1080, r.Height())
}

func TestRectangleConversionRoundTrip(t *testing.T) {
	incl := InclusiveRectangle{Left: 5, Top: 5, Right: 105, Bottom: 205}
	excl, err := incl.ToExclusive()
	require.NoError(t, err)
	require.Equal(t, uint16(106), excl.Right)
	require.Equal(t, uint16(206), excl.Bottom)

	back, err := excl.ToInclusive()
	require.NoError(t, err)
	require.Equal(t, incl, back)
}

func TestRectangleConversionRejectsZeroEdge(t *testing.T) {
	_, err := (InclusiveRectangle{Right: 0, Bottom: 10}).ToExclusive()
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, InvalidField, de.Kind)

	_, err = (ExclusiveRectangle{Right: 10, Bottom: 0}).ToInclusive()
	require.Error(t, err)
}

func TestInclusiveRectangleDecodeTruncatedFailsWithNotEnoughBytes(t *testing.T) {
	r := InclusiveRectangle{Left: 1, Top: 2, Right: 3, Bottom: 4}
	c := NewCursor(make([]byte, 0, r.Size()))
	require.NoError(t, r.Encode(c))

	full := c.Bytes()
	for n := 0; n < len(full); n++ {
		_, err := DecodeInclusiveRectangle(NewReadCursor(full[:n]))
		require.Error(t, err)
		var de *DecodeError
		require.ErrorAs(t, err, &de)
		require.Equal(t, NotEnoughBytes, de.Kind)
	}
}
