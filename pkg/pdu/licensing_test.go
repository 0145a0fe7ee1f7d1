package pdu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLicensePreambleRoundTrip(t *testing.T) {
	p := LicensePreamble{MsgType: LicensingMessageTypeErrorAlert, Flags: 0x03, MsgSize: 20}
	c := NewCursor(make([]byte, 0, p.Size()))
	require.NoError(t, p.Encode(c))

	got, err := DecodeLicensePreamble(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestLicensingBinaryBlobRoundTrip(t *testing.T) {
	b := LicensingBinaryBlob{BlobType: 1, BlobData: []byte{0x01, 0x02, 0x03}}
	c := NewCursor(make([]byte, 0, b.Size()))
	require.NoError(t, b.Encode(c))
	require.Equal(t, b.Size(), c.Len())

	got, err := DecodeLicensingBinaryBlob(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, b, got)
}

func TestLicensingBinaryBlobEmptyRoundTrip(t *testing.T) {
	b := LicensingBinaryBlob{BlobType: 1}
	c := NewCursor(make([]byte, 0, b.Size()))
	require.NoError(t, b.Encode(c))

	got, err := DecodeLicensingBinaryBlob(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, b.BlobType, got.BlobType)
	require.Empty(t, got.BlobData)
}

func TestValidClientLicenseErrorEncodesWithPreamble(t *testing.T) {
	m := NewValidClientLicenseError()
	c := NewCursor(nil)
	require.NoError(t, m.Encode(c))

	rc := NewReadCursor(c.Bytes())
	preamble, err := DecodeLicensePreamble(rc)
	require.NoError(t, err)
	require.Equal(t, LicensingMessageTypeErrorAlert, preamble.MsgType)

	got, err := DecodeLicenseErrorMessage(rc)
	require.NoError(t, err)
	require.Equal(t, m, got)
	require.True(t, got.IsValidClient())
}
