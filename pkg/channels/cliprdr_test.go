package channels

import (
	"errors"
	"testing"

	"github.com/kulaginds/rdp-core/pkg/pdu"
	"github.com/kulaginds/rdp-core/pkg/pdu/cliprdr"
	"github.com/stretchr/testify/require"
)

type testClipboardHost struct {
	local           []cliprdr.Format
	registered      map[string]uint32
	localData       map[uint32][]byte
	readErr         error
	writtenFormatID uint32
	writtenData     []byte
}

func newTestClipboardHost() *testClipboardHost {
	return &testClipboardHost{
		registered: make(map[string]uint32),
		localData:  make(map[uint32][]byte),
	}
}

func (h *testClipboardHost) LocalFormats() []cliprdr.Format { return h.local }

func (h *testClipboardHost) RegisterRemoteFormat(name string, remoteID uint32) {
	h.registered[name] = remoteID
}

func (h *testClipboardHost) ReadLocalData(formatID uint32) ([]byte, error) {
	if h.readErr != nil {
		return nil, h.readErr
	}
	return h.localData[formatID], nil
}

func (h *testClipboardHost) WriteRemoteData(formatID uint32, data []byte) {
	h.writtenFormatID = formatID
	h.writtenData = data
}

func decodeCliprdrHeader(t *testing.T, frame []byte) (cliprdr.Header, *pdu.ReadCursor) {
	t.Helper()
	c := pdu.NewReadCursor(frame)
	hdr, err := cliprdr.DecodeHeader(c)
	require.NoError(t, err)
	return hdr, c
}

func TestClipboardProcessorStartSendsMonitorReady(t *testing.T) {
	p := NewClipboardProcessor(newTestClipboardHost())
	frames, err := p.Start(1)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	hdr, _ := decodeCliprdrHeader(t, frames[0])
	require.Equal(t, cliprdr.MsgTypeMonitorReady, hdr.MsgType)
}

func TestClipboardProcessorRepliesToMonitorReadyWithLocalFormatList(t *testing.T) {
	host := newTestClipboardHost()
	host.local = []cliprdr.Format{{ID: 1}, {ID: 0xC007, Name: "HTML Format"}}
	p := NewClipboardProcessor(host)

	req := cliprdr.MonitorReady{}
	reqCur := pdu.NewCursor(make([]byte, 0, req.Size()))
	require.NoError(t, req.Encode(reqCur))

	frames, err := p.Process(1, reqCur.Bytes())
	require.NoError(t, err)
	require.Len(t, frames, 1)

	hdr, c := decodeCliprdrHeader(t, frames[0])
	require.Equal(t, cliprdr.MsgTypeFormatList, hdr.MsgType)
	got, err := cliprdr.DecodeFormatListBody(c, int(hdr.DataLen))
	require.NoError(t, err)
	require.Equal(t, host.local, got.Formats)
}

func TestClipboardProcessorRemapsFormatsByClassification(t *testing.T) {
	host := newTestClipboardHost()
	p := NewClipboardProcessor(host)

	fl := cliprdr.FormatList{Formats: []cliprdr.Format{
		{ID: 1},                             // standard: CF_TEXT, mirrored
		{ID: 0x0201},                        // private range: dropped
		{ID: 0xC007, Name: "HTML Format"},   // registered by name
	}}
	flCur := pdu.NewCursor(make([]byte, 0, fl.Size()))
	require.NoError(t, fl.Encode(flCur))

	frames, err := p.Process(1, flCur.Bytes())
	require.NoError(t, err)
	require.Len(t, frames, 1)
	hdr, _ := decodeCliprdrHeader(t, frames[0])
	require.Equal(t, cliprdr.MsgTypeFormatListResponse, hdr.MsgType)
	require.Equal(t, cliprdr.MsgFlagResponseOK, hdr.MsgFlags)

	require.Equal(t, uint32(0xC007), host.registered["HTML Format"])
	require.Equal(t, uint32(1), p.toLocal(1))
	// Private-range format never gets a mapping, so toLocal falls back to
	// returning the remote ID unchanged (there is nothing to remap to).
	require.Equal(t, uint32(0x0201), p.toLocal(0x0201))
}

func TestClipboardProcessorFormatDataRequestReadsLocalAndReplies(t *testing.T) {
	host := newTestClipboardHost()
	host.localData[1] = []byte("hello clipboard")
	p := NewClipboardProcessor(host)

	// Establish the standard-format mapping first, as a real peer would via
	// FormatList before ever issuing a FormatDataRequest.
	fl := cliprdr.FormatList{Formats: []cliprdr.Format{{ID: 1}}}
	flCur := pdu.NewCursor(make([]byte, 0, fl.Size()))
	require.NoError(t, fl.Encode(flCur))
	_, err := p.Process(1, flCur.Bytes())
	require.NoError(t, err)

	req := cliprdr.FormatDataRequest{RequestedFormatID: 1}
	reqCur := pdu.NewCursor(make([]byte, 0, req.Size()))
	require.NoError(t, req.Encode(reqCur))

	frames, err := p.Process(1, reqCur.Bytes())
	require.NoError(t, err)
	require.Len(t, frames, 1)

	hdr, c := decodeCliprdrHeader(t, frames[0])
	require.Equal(t, cliprdr.MsgTypeFormatDataResponse, hdr.MsgType)
	require.Equal(t, cliprdr.MsgFlagResponseOK, hdr.MsgFlags)
	resp, err := cliprdr.DecodeFormatDataResponseBody(c, int(hdr.DataLen))
	require.NoError(t, err)
	require.Equal(t, host.localData[1], resp.Data)
}

func TestClipboardProcessorFormatDataRequestFailsWhenHostErrors(t *testing.T) {
	host := newTestClipboardHost()
	host.readErr = errors.New("clipboard locked")
	p := NewClipboardProcessor(host)

	req := cliprdr.FormatDataRequest{RequestedFormatID: 1}
	reqCur := pdu.NewCursor(make([]byte, 0, req.Size()))
	require.NoError(t, req.Encode(reqCur))

	frames, err := p.Process(1, reqCur.Bytes())
	require.NoError(t, err)
	require.Len(t, frames, 1)

	hdr, _ := decodeCliprdrHeader(t, frames[0])
	require.Equal(t, cliprdr.MsgFlagResponseFail, hdr.MsgFlags)
}

func TestClipboardProcessorFormatDataResponseDeliversToHost(t *testing.T) {
	host := newTestClipboardHost()
	p := NewClipboardProcessor(host)

	resp := cliprdr.FormatDataResponse{OK: true, Data: []byte("payload")}
	respCur := pdu.NewCursor(make([]byte, 0, resp.Size()))
	require.NoError(t, resp.Encode(respCur))

	frames, err := p.Process(1, respCur.Bytes())
	require.NoError(t, err)
	require.Nil(t, frames)
	require.Equal(t, []byte("payload"), host.writtenData)
}

func TestClipboardProcessorCloseClearsMappingTable(t *testing.T) {
	host := newTestClipboardHost()
	p := NewClipboardProcessor(host)

	fl := cliprdr.FormatList{Formats: []cliprdr.Format{{ID: 1}}}
	flCur := pdu.NewCursor(make([]byte, 0, fl.Size()))
	require.NoError(t, fl.Encode(flCur))
	_, err := p.Process(1, flCur.Bytes())
	require.NoError(t, err)
	require.Equal(t, uint32(1), p.toLocal(1))

	p.Close(1)
	// With the mapping cleared, toLocal has nothing to remap and returns
	// the remote ID unchanged rather than the (now-forgotten) local one.
	require.Equal(t, uint32(1), p.toLocal(1))
	require.Empty(t, p.remoteToLocal)
}

func TestClipboardProcessorChannelName(t *testing.T) {
	p := NewClipboardProcessor(newTestClipboardHost())
	require.Equal(t, "CLIPRDR", p.ChannelName())
}
