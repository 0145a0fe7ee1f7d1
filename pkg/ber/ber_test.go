package ber

import (
	"testing"

	"github.com/kulaginds/rdp-core/pkg/pdu"
	"github.com/stretchr/testify/require"
)

func TestLengthShortFormRoundTrip(t *testing.T) {
	c := pdu.NewCursor(nil)
	WriteLength(c, 0x42)
	n, err := ReadLength(pdu.NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 0x42, n)
	require.Len(t, c.Bytes(), 1)
}

func TestLengthLongForm1ByteRoundTrip(t *testing.T) {
	c := pdu.NewCursor(nil)
	WriteLength(c, 0xA0)
	n, err := ReadLength(pdu.NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 0xA0, n)
	require.Len(t, c.Bytes(), 2)
}

func TestLengthLongForm2ByteRoundTrip(t *testing.T) {
	c := pdu.NewCursor(nil)
	WriteLength(c, 0x1234)
	n, err := ReadLength(pdu.NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 0x1234, n)
	require.Len(t, c.Bytes(), 3)
}

func TestApplicationTagRoundTrip(t *testing.T) {
	c := pdu.NewCursor(nil)
	WriteApplicationTag(c, 101, 64)
	tag, length, err := ReadApplicationTag(pdu.NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, uint8(101), tag)
	require.Equal(t, 64, length)
}

func TestIntegerRoundTripAllWidths(t *testing.T) {
	for _, v := range []uint32{0, 0xFF, 0x1234, 0xFFFFFF, 0x12345678} {
		c := pdu.NewCursor(nil)
		WriteInteger(c, v)
		got, err := ReadInteger(pdu.NewReadCursor(c.Bytes()))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestEnumeratedRoundTrip(t *testing.T) {
	c := pdu.NewCursor(nil)
	WriteEnumerated(c, 3)
	got, err := ReadEnumerated(pdu.NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, uint8(3), got)
}

func TestOctetStringRoundTrip(t *testing.T) {
	data := []byte("Duca")
	c := pdu.NewCursor(nil)
	WriteOctetString(c, data)
	got, err := ReadOctetString(pdu.NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestBooleanRoundTrip(t *testing.T) {
	for _, v := range []bool{true, false} {
		c := pdu.NewCursor(nil)
		WriteBoolean(c, v)
		got, err := ReadBoolean(pdu.NewReadCursor(c.Bytes()))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestSequenceRoundTrip(t *testing.T) {
	inner := pdu.NewCursor(nil)
	WriteInteger(inner, 7)

	c := pdu.NewCursor(nil)
	WriteSequence(c, inner.Bytes())

	rc := pdu.NewReadCursor(c.Bytes())
	length, err := ReadSequenceHeader(rc)
	require.NoError(t, err)
	require.Equal(t, inner.Len(), length)

	got, err := ReadInteger(rc)
	require.NoError(t, err)
	require.Equal(t, uint32(7), got)
}

func TestReadLengthRejectsIndefiniteLongForm(t *testing.T) {
	c := pdu.NewCursor(nil)
	c.WriteU8(0x80 | 3) // long form claiming 3 length octets: unsupported
	_, err := ReadLength(pdu.NewReadCursor(c.Bytes()))
	require.Error(t, err)
	var de *pdu.DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, pdu.InvalidField, de.Kind)
}
