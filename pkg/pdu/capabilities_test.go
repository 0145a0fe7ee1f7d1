package pdu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneralCapabilitySetRoundTrip(t *testing.T) {
	s := NewGeneralCapabilitySet()
	c := NewCursor(make([]byte, 0, s.Size()))
	require.NoError(t, s.Encode(c))
	require.Equal(t, s.Size(), c.Len())

	got, err := DecodeGeneralCapabilitySet(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestBitmapCapabilitySetRoundTrip(t *testing.T) {
	s := NewBitmapCapabilitySet(1920, 1080)
	c := NewCursor(make([]byte, 0, s.Size()))
	require.NoError(t, s.Encode(c))

	got, err := DecodeBitmapCapabilitySet(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestOrderCapabilitySetRoundTrip(t *testing.T) {
	s := NewOrderCapabilitySet()
	c := NewCursor(make([]byte, 0, s.Size()))
	require.NoError(t, s.Encode(c))
	require.Equal(t, 88, c.Len())

	got, err := DecodeOrderCapabilitySet(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestInputCapabilitySetRoundTrip(t *testing.T) {
	s := NewInputCapabilitySet()
	c := NewCursor(make([]byte, 0, s.Size()))
	require.NoError(t, s.Encode(c))

	got, err := DecodeInputCapabilitySet(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestVirtualChannelCapabilitySetRoundTrip(t *testing.T) {
	s := VirtualChannelCapabilitySet{Flags: 1, VCChunkSize: MaxVCChunkSize}
	c := NewCursor(make([]byte, 0, s.Size()))
	require.NoError(t, s.Encode(c))

	got, err := DecodeVirtualChannelCapabilitySet(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestMultifragmentUpdateCapabilitySetRoundTrip(t *testing.T) {
	s := MultifragmentUpdateCapabilitySet{MaxRequestSize: 65535}
	c := NewCursor(make([]byte, 0, s.Size()))
	require.NoError(t, s.Encode(c))

	got, err := DecodeMultifragmentUpdateCapabilitySet(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestBitmapCodecsCapabilitySetRoundTrip(t *testing.T) {
	s := BitmapCodecsCapabilitySet{
		Codecs: []BitmapCodec{
			{CodecGUID: [16]byte{1, 2, 3}, CodecID: 1, CodecProperties: []byte{0xAA, 0xBB}},
			{CodecGUID: [16]byte{4, 5, 6}, CodecID: 2},
		},
	}
	c := NewCursor(make([]byte, 0, s.Size()))
	require.NoError(t, s.Encode(c))
	require.Equal(t, s.Size(), c.Len())

	got, err := DecodeBitmapCodecsCapabilitySet(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestPointerCapabilitySetRoundTrip(t *testing.T) {
	s := PointerCapabilitySet{ColorPointerFlag: 1, ColorPointerCacheSize: 20, PointerCacheSize: 25}
	c := NewCursor(make([]byte, 0, s.Size()))
	require.NoError(t, s.Encode(c))

	got, err := DecodePointerCapabilitySet(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, s, got)
}

// The encoder must set length to size(body)+4, and the decoder must tolerate
// a sender padding the declared length with extra trailing bytes by
// truncating the body to that length rather than reading past it.
func TestCapabilitySetEncodesLengthAsBodyPlusFour(t *testing.T) {
	general := NewGeneralCapabilitySet()
	s := CapabilitySet{CapabilitySetType: CapabilitySetTypeGeneral, General: &general}
	c := NewCursor(make([]byte, 0, s.Size()))
	require.NoError(t, s.Encode(c))

	raw := c.Bytes()
	length := uint16(raw[2]) | uint16(raw[3])<<8
	require.Equal(t, uint16(general.Size()+4), length)
}

func TestCapabilitySetDecodeTruncatesToDeclaredLengthIgnoringTrailer(t *testing.T) {
	general := NewGeneralCapabilitySet()
	body := NewCursor(make([]byte, 0, general.Size()))
	require.NoError(t, general.Encode(body))

	c := NewCursor(nil)
	c.WriteU16LE(uint16(CapabilitySetTypeGeneral))
	c.WriteU16LE(uint16(4 + general.Size())) // declared length excludes the trailer
	c.WriteBytes(body.Bytes())
	c.WriteBytes([]byte{0xDE, 0xAD, 0xBE, 0xEF}) // forward-compat trailer a future version might add

	got, err := DecodeCapabilitySet(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.NotNil(t, got.General)
	require.Equal(t, general, *got.General)
}

func TestCapabilitySetUnknownTypePreservesRawBody(t *testing.T) {
	c := NewCursor(nil)
	c.WriteU16LE(uint16(CapabilitySetTypeSound))
	c.WriteU16LE(4 + 4)
	c.WriteBytes([]byte{0x01, 0x02, 0x03, 0x04})

	got, err := DecodeCapabilitySet(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, CapabilitySetTypeSound, got.CapabilitySetType)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, got.RawBody)

	// RawBody round-trips byte-exact through re-encode.
	reenc := NewCursor(make([]byte, 0, got.Size()))
	require.NoError(t, got.Encode(reenc))
	require.Equal(t, c.Bytes(), reenc.Bytes())
}

func TestCapabilitySetRejectsLengthBelowMinimum(t *testing.T) {
	c := NewCursor(nil)
	c.WriteU16LE(uint16(CapabilitySetTypeGeneral))
	c.WriteU16LE(2) // below the mandatory 4-byte type+length header

	_, err := DecodeCapabilitySet(NewReadCursor(c.Bytes()))
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, InvalidField, de.Kind)
}
