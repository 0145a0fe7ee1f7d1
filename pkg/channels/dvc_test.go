package channels

import (
	"testing"

	"github.com/kulaginds/rdp-core/pkg/pdu"
	"github.com/kulaginds/rdp-core/pkg/pdu/dvc"
	"github.com/stretchr/testify/require"
)

type testDvcProcessor struct {
	name      string
	started   []uint32
	received  [][]byte
	closed    []uint32
	startReply [][]byte
}

func (p *testDvcProcessor) ChannelName() string { return p.name }

func (p *testDvcProcessor) Start(channelID uint32) ([][]byte, error) {
	p.started = append(p.started, channelID)
	return p.startReply, nil
}

func (p *testDvcProcessor) Process(channelID uint32, payload []byte) ([][]byte, error) {
	p.received = append(p.received, append([]byte(nil), payload...))
	return nil, nil
}

func (p *testDvcProcessor) Close(channelID uint32) {
	p.closed = append(p.closed, channelID)
}

func wrapSvc(t *testing.T, payload []byte) []byte {
	t.Helper()
	return append(chunkHeader(t, uint32(len(payload)), true, true), payload...)
}

func newMuxWithDrdynvc(t *testing.T) (*Mux, uint16) {
	t.Helper()
	m := NewMux()
	require.NoError(t, m.RegisterStaticChannel(DrdynvcChannelName, 0, nil))
	require.NoError(t, m.BindChannelID(DrdynvcChannelName, 1004))
	return m, 1004
}

func TestDvcCreateAcceptsRegisteredProcessor(t *testing.T) {
	m, id := newMuxWithDrdynvc(t)
	proc := &testDvcProcessor{name: "ECHO"}
	require.NoError(t, m.RegisterDynamicChannelProcessor(proc))

	req := dvc.CreateRequest{ChannelID: 3, ChannelName: "ECHO"}
	raw := encodeTest(t, req)

	events, frames, err := m.DispatchInbound(id, wrapSvc(t, raw))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, []uint32{3}, proc.started)

	var sawCreated bool
	for _, e := range events {
		if e.Kind == EventDvcCreated {
			sawCreated = true
			require.Equal(t, "ECHO", e.ChannelName)
			require.Equal(t, uint32(3), e.ChannelID)
		}
	}
	require.True(t, sawCreated)

	resp, err := decodeCreateResponse(frames[0].Data)
	require.NoError(t, err)
	require.True(t, resp.IsSuccess())
}

func TestDvcCreateRejectsUnregisteredChannel(t *testing.T) {
	m, id := newMuxWithDrdynvc(t)

	req := dvc.CreateRequest{ChannelID: 5, ChannelName: "UNKNOWN"}
	raw := encodeTest(t, req)

	_, frames, err := m.DispatchInbound(id, wrapSvc(t, raw))
	require.NoError(t, err)
	require.Len(t, frames, 1)

	resp, err := decodeCreateResponse(frames[0].Data)
	require.NoError(t, err)
	require.False(t, resp.IsSuccess())
	require.Equal(t, dvc.CreateResultNoListener, resp.CreationCode)
}

func TestDvcDataFirstAndDataReassembly(t *testing.T) {
	m, id := newMuxWithDrdynvc(t)
	proc := &testDvcProcessor{name: "BIGCHAN"}
	require.NoError(t, m.RegisterDynamicChannelProcessor(proc))

	createRaw := encodeTest(t, dvc.CreateRequest{ChannelID: 9, ChannelName: "BIGCHAN"})
	_, _, err := m.DispatchInbound(id, wrapSvc(t, createRaw))
	require.NoError(t, err)

	full := []byte("this message needs two dvc fragments to arrive")
	first, rest := full[:20], full[20:]

	df := dvc.DataFirst{ChannelID: 9, Length: uint32(len(full)), Data: first}
	events, _, err := m.DispatchInbound(id, wrapSvc(t, encodeTest(t, df)))
	require.NoError(t, err)
	for _, e := range events {
		require.NotEqual(t, EventDvcData, e.Kind)
	}

	d := dvc.Data{ChannelID: 9, Data: rest}
	events, _, err = m.DispatchInbound(id, wrapSvc(t, encodeTest(t, d)))
	require.NoError(t, err)

	var gotData bool
	for _, e := range events {
		if e.Kind == EventDvcData {
			gotData = true
			require.Equal(t, full, e.Payload)
		}
	}
	require.True(t, gotData)
	require.Equal(t, [][]byte{full}, proc.received)
}

func TestDvcDataWithNoPendingAssemblyIsSingleFragment(t *testing.T) {
	m, id := newMuxWithDrdynvc(t)
	proc := &testDvcProcessor{name: "SOLO"}
	require.NoError(t, m.RegisterDynamicChannelProcessor(proc))

	createRaw := encodeTest(t, dvc.CreateRequest{ChannelID: 1, ChannelName: "SOLO"})
	_, _, err := m.DispatchInbound(id, wrapSvc(t, createRaw))
	require.NoError(t, err)

	payload := []byte("standalone")
	d := dvc.Data{ChannelID: 1, Data: payload}
	events, _, err := m.DispatchInbound(id, wrapSvc(t, encodeTest(t, d)))
	require.NoError(t, err)

	var gotData bool
	for _, e := range events {
		if e.Kind == EventDvcData {
			gotData = true
			require.Equal(t, payload, e.Payload)
		}
	}
	require.True(t, gotData)
}

func TestDvcCloseNotifiesProcessorAndFreesID(t *testing.T) {
	m, id := newMuxWithDrdynvc(t)
	proc := &testDvcProcessor{name: "TEMP"}
	require.NoError(t, m.RegisterDynamicChannelProcessor(proc))

	createRaw := encodeTest(t, dvc.CreateRequest{ChannelID: 2, ChannelName: "TEMP"})
	_, _, err := m.DispatchInbound(id, wrapSvc(t, createRaw))
	require.NoError(t, err)

	closeRaw := encodeTest(t, dvc.Close{ChannelID: 2})
	events, frames, err := m.DispatchInbound(id, wrapSvc(t, closeRaw))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, []uint32{2}, proc.closed)

	var sawClosed bool
	for _, e := range events {
		if e.Kind == EventDvcClosed {
			sawClosed = true
		}
	}
	require.True(t, sawClosed)
}

func TestDvcCapabilitiesNegotiatesDownToLocalMax(t *testing.T) {
	m, id := newMuxWithDrdynvc(t)

	capsRaw := encodeTest(t, dvc.Caps{Version: dvc.CapsVersion3, PriorityCharges: [4]uint16{1, 2, 3, 4}})
	_, frames, err := m.DispatchInbound(id, wrapSvc(t, capsRaw))
	require.NoError(t, err)
	require.Len(t, frames, 1)

	rc := pdu.NewReadCursor(frames[0].Data)
	_, err = pdu.DecodeChannelPDUHeader(rc)
	require.NoError(t, err)
	got, err := dvc.DecodeCaps(rc)
	require.NoError(t, err)
	require.Equal(t, dvc.CapsVersion2, got.Version)
}

func encodeTest(t *testing.T, v interface {
	Size() int
	Encode(*pdu.Cursor) error
}) []byte {
	t.Helper()
	c := pdu.NewCursor(make([]byte, 0, v.Size()))
	require.NoError(t, v.Encode(c))
	return c.Bytes()
}

func decodeCreateResponse(svcFrame []byte) (dvc.CreateResponse, error) {
	c := pdu.NewReadCursor(svcFrame)
	if _, err := pdu.DecodeChannelPDUHeader(c); err != nil {
		return dvc.CreateResponse{}, err
	}
	hdr, err := dvc.PeekHeader(c)
	if err != nil {
		return dvc.CreateResponse{}, err
	}
	if _, err := dvc.DecodeHeader(c); err != nil {
		return dvc.CreateResponse{}, err
	}
	return dvc.DecodeCreateResponse(c, hdr.ChannelIDWidth)
}
