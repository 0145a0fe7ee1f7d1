package cliprdr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kulaginds/rdp-core/pkg/pdu"
)

func TestClassifyFormat(t *testing.T) {
	require.Equal(t, FormatClassStandard, ClassifyFormat(0x0001))
	require.Equal(t, FormatClassStandard, ClassifyFormat(FormatStandardMax))
	require.Equal(t, FormatClassPrivate, ClassifyFormat(0x0200))
	require.Equal(t, FormatClassPrivate, ClassifyFormat(0x03FF))
	require.Equal(t, FormatClassRegistered, ClassifyFormat(0xC000))
	require.Equal(t, FormatClassRegistered, ClassifyFormat(0xC007))
}

func TestMonitorReadyRoundTrip(t *testing.T) {
	m := MonitorReady{}
	c := pdu.NewCursor(make([]byte, 0, m.Size()))
	require.NoError(t, m.Encode(c))
	require.Equal(t, m.Size(), c.Len())

	rc := pdu.NewReadCursor(c.Bytes())
	h, err := DecodeHeader(rc)
	require.NoError(t, err)
	require.Equal(t, MsgTypeMonitorReady, h.MsgType)
	require.Equal(t, uint32(0), h.DataLen)
}

func TestFormatListRoundTrip(t *testing.T) {
	l := FormatList{Formats: []Format{
		{ID: 13, Name: ""},
		{ID: 0xC001, Name: "FileGroupDescriptorW"},
	}}
	c := pdu.NewCursor(make([]byte, 0, l.Size()))
	require.NoError(t, l.Encode(c))
	require.Equal(t, l.Size(), c.Len())

	rc := pdu.NewReadCursor(c.Bytes())
	h, err := DecodeHeader(rc)
	require.NoError(t, err)
	require.Equal(t, MsgTypeFormatList, h.MsgType)

	got, err := DecodeFormatListBody(rc, int(h.DataLen))
	require.NoError(t, err)
	require.Equal(t, l.Formats, got.Formats)
}

func TestFormatDataResponseRoundTrip(t *testing.T) {
	r := FormatDataResponse{OK: true, Data: []byte("hello clipboard")}
	c := pdu.NewCursor(make([]byte, 0, r.Size()))
	require.NoError(t, r.Encode(c))
	require.Equal(t, r.Size(), c.Len())

	rc := pdu.NewReadCursor(c.Bytes())
	h, err := DecodeHeader(rc)
	require.NoError(t, err)
	require.Equal(t, MsgTypeFormatDataResponse, h.MsgType)
	require.Equal(t, MsgFlagResponseOK, h.MsgFlags)

	got, err := DecodeFormatDataResponseBody(rc, int(h.DataLen))
	require.NoError(t, err)
	require.Equal(t, r.Data, got.Data)
}

func TestFileContentsRequestRoundTripWithAndWithoutClipDataID(t *testing.T) {
	for _, withID := range []bool{false, true} {
		r := FileContentsRequest{
			StreamID: 7, ListIndex: 1, DwFlags: FileContentsFlagData,
			PositionLow: 0, PositionHigh: 0, RequestedSize: 4096,
			HaveClipDataID: withID, ClipDataID: 99,
		}
		c := pdu.NewCursor(make([]byte, 0, r.Size()))
		require.NoError(t, r.Encode(c))
		require.Equal(t, r.Size(), c.Len())

		rc := pdu.NewReadCursor(c.Bytes())
		h, err := DecodeHeader(rc)
		require.NoError(t, err)
		got, err := DecodeFileContentsRequestBody(rc, int(h.DataLen))
		require.NoError(t, err)
		require.Equal(t, r, got)
	}
}

func TestLockUnlockRoundTrip(t *testing.T) {
	l := Lock{ClipDataID: 42}
	c := pdu.NewCursor(make([]byte, 0, l.Size()))
	require.NoError(t, l.Encode(c))
	rc := pdu.NewReadCursor(c.Bytes())
	_, err := DecodeHeader(rc)
	require.NoError(t, err)
	got, err := DecodeLockBody(rc)
	require.NoError(t, err)
	require.Equal(t, l, got)
}

func TestDecodeRejectsShortHeader(t *testing.T) {
	rc := pdu.NewReadCursor([]byte{0x01, 0x00})
	_, err := DecodeHeader(rc)
	require.Error(t, err)
	var de *pdu.DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, pdu.NotEnoughBytes, de.Kind)
}
