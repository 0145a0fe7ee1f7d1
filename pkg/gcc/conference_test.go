package gcc

import (
	"testing"

	"github.com/kulaginds/rdp-core/pkg/pdu"
	"github.com/stretchr/testify/require"
)

func TestConferenceCreateRequestRoundTrip(t *testing.T) {
	r := ConferenceCreateRequest{UserData: []byte{0x01, 0x02, 0x03, 0x04, 0x05}}
	c := pdu.NewCursor(make([]byte, 0, r.Size()))
	require.NoError(t, r.Encode(c))
	require.Equal(t, r.Size(), c.Len())

	got, err := DecodeConferenceCreateRequest(pdu.NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, r.UserData, got.UserData)
}

func TestConferenceCreateRequestLongUserData(t *testing.T) {
	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i)
	}
	r := ConferenceCreateRequest{UserData: data}
	c := pdu.NewCursor(make([]byte, 0, r.Size()))
	require.NoError(t, r.Encode(c))
	require.Equal(t, r.Size(), c.Len())

	got, err := DecodeConferenceCreateRequest(pdu.NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, r.UserData, got.UserData)
}

func TestConferenceCreateResponseRoundTrip(t *testing.T) {
	r := ConferenceCreateResponse{UserData: []byte{0xAA, 0xBB, 0xCC}}
	c := pdu.NewCursor(make([]byte, 0, r.Size()))
	require.NoError(t, r.Encode(c))
	require.Equal(t, r.Size(), c.Len())

	got, err := DecodeConferenceCreateResponse(pdu.NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, r.UserData, got.UserData)
}

func TestConferenceCreateRequestRoundTripWithRealUserData(t *testing.T) {
	core := ClientCoreData{Version: 0x00080004, DesktopWidth: 1024, DesktopHeight: 768, ClientName: "host"}
	sec := ClientSecurityData{EncryptionMethods: EncryptionMethodNone}
	udCur := pdu.NewCursor(make([]byte, 0, core.Size()+sec.Size()))
	require.NoError(t, core.Encode(udCur))
	require.NoError(t, sec.Encode(udCur))

	r := ConferenceCreateRequest{UserData: udCur.Bytes()}
	c := pdu.NewCursor(make([]byte, 0, r.Size()))
	require.NoError(t, r.Encode(c))

	got, err := DecodeConferenceCreateRequest(pdu.NewReadCursor(c.Bytes()))
	require.NoError(t, err)

	gotRc := pdu.NewReadCursor(got.UserData)
	decodedCore, err := DecodeClientCoreData(gotRc)
	require.NoError(t, err)
	require.Equal(t, core.ClientName, decodedCore.ClientName)
	decodedSec, err := DecodeClientSecurityData(gotRc)
	require.NoError(t, err)
	require.Equal(t, sec.EncryptionMethods, decodedSec.EncryptionMethods)
}

func TestDecodeConferenceCreateRequestRejectsWrongClientKey(t *testing.T) {
	resp := ConferenceCreateResponse{UserData: []byte{0x01}}
	c := pdu.NewCursor(make([]byte, 0, resp.Size()))
	require.NoError(t, resp.Encode(c))

	_, err := DecodeConferenceCreateRequest(pdu.NewReadCursor(c.Bytes()))
	require.Error(t, err)
}

func TestDecodeConferenceCreateResponseRejectsWrongServerKey(t *testing.T) {
	req := ConferenceCreateRequest{UserData: []byte{0x01}}
	c := pdu.NewCursor(make([]byte, 0, req.Size()))
	require.NoError(t, req.Encode(c))

	_, err := DecodeConferenceCreateResponse(pdu.NewReadCursor(c.Bytes()))
	require.Error(t, err)
}
