package x224

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapUnwrapDataRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	wrapped, err := WrapData(payload)
	require.NoError(t, err)
	require.Equal(t, []byte{0x02, 0xF0, 0x80, 0x01, 0x02, 0x03}, wrapped)

	got, err := UnwrapData(wrapped)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestUnwrapDataRejectsWrongCode(t *testing.T) {
	_, err := UnwrapData([]byte{0x02, byte(TPDUError), 0x80, 0x00})
	require.Error(t, err)
}

func TestUnwrapDataRejectsShortTPDU(t *testing.T) {
	_, err := UnwrapData([]byte{0x02, 0xF0})
	require.Error(t, err)
}

func TestConnectionRequestEncodeDecodeRoundTrip(t *testing.T) {
	cookie := []byte("Cookie: mstshash=alice\r\n")
	negData := []byte{0x01, 0x00, 0x08, 0x00, 0x03, 0x00, 0x00, 0x00}
	r := ConnectionRequest{Cookie: cookie, NegotiationData: negData}

	encoded, err := r.Encode()
	require.NoError(t, err)

	gotCookie, gotNeg, err := DecodeConnectionRequest(encoded)
	require.NoError(t, err)
	require.Equal(t, cookie, gotCookie)
	require.Equal(t, negData, gotNeg)
}

func TestConnectionRequestWithoutNegotiationData(t *testing.T) {
	cookie := []byte("Cookie: mstshash=bob\r\n")
	r := ConnectionRequest{Cookie: cookie}

	encoded, err := r.Encode()
	require.NoError(t, err)

	gotCookie, gotNeg, err := DecodeConnectionRequest(encoded)
	require.NoError(t, err)
	require.Equal(t, cookie, gotCookie)
	require.Nil(t, gotNeg)
}

func TestConnectionConfirmEncodeDecodeRoundTrip(t *testing.T) {
	negData := []byte{0x02, 0x00, 0x08, 0x00, 0x02, 0x00, 0x00, 0x00}
	r := ConnectionConfirm{NegotiationData: negData}

	encoded, err := r.Encode()
	require.NoError(t, err)

	got, err := DecodeConnectionConfirm(encoded)
	require.NoError(t, err)
	require.Equal(t, negData, got)
}

func TestDecodeConnectionRequestRejectsShortTPDU(t *testing.T) {
	_, _, err := DecodeConnectionRequest([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestDecodeConnectionConfirmRejectsWrongCode(t *testing.T) {
	_, err := DecodeConnectionConfirm([]byte{0x06, byte(TPDUConnectionRequest), 0x00, 0x00, 0x00, 0x00, 0x00})
	require.Error(t, err)
}
