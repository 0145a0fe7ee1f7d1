package channels

import (
	"testing"

	"github.com/kulaginds/rdp-core/pkg/pdu"
	"github.com/stretchr/testify/require"
)

func chunkHeader(t *testing.T, total uint32, first, last bool) []byte {
	t.Helper()
	var flags pdu.ChannelFlag
	if first {
		flags |= pdu.ChannelFlagFirst
	}
	if last {
		flags |= pdu.ChannelFlagLast
	}
	hdr := pdu.ChannelPDUHeader{Length: total, Flags: flags}
	c := pdu.NewCursor(nil)
	require.NoError(t, hdr.Encode(c))
	return c.Bytes()
}

// echoProcessor records every message it's handed and sends nothing back.
type echoProcessor struct {
	received [][]byte
}

func (p *echoProcessor) Process(payload []byte) ([][]byte, error) {
	p.received = append(p.received, append([]byte(nil), payload...))
	return nil, nil
}

func TestDispatchInboundSingleChunkMessage(t *testing.T) {
	m := NewMux()
	proc := &echoProcessor{}
	require.NoError(t, m.RegisterStaticChannel("rdpsnd", 0, proc))
	require.NoError(t, m.BindChannelID("rdpsnd", 1005))

	payload := []byte("hello channel")
	data := append(chunkHeader(t, uint32(len(payload)), true, true), payload...)

	events, frames, err := m.DispatchInbound(1005, data)
	require.NoError(t, err)
	require.Empty(t, frames)
	require.Len(t, events, 1)
	require.Equal(t, EventStaticData, events[0].Kind)
	require.Equal(t, payload, events[0].Payload)
	require.Equal(t, [][]byte{payload}, proc.received)
}

func TestDispatchInboundReassemblesMultiChunkMessage(t *testing.T) {
	m := NewMux()
	proc := &echoProcessor{}
	require.NoError(t, m.RegisterStaticChannel("rdpsnd", 0, proc))
	require.NoError(t, m.BindChannelID("rdpsnd", 1005))

	full := []byte("a message split across three chunks of wire data")
	part1, part2, part3 := full[:10], full[10:30], full[30:]

	chunk1 := append(chunkHeader(t, uint32(len(full)), true, false), part1...)
	events, _, err := m.DispatchInbound(1005, chunk1)
	require.NoError(t, err)
	require.Empty(t, events)

	chunk2 := append(chunkHeader(t, uint32(len(full)), false, false), part2...)
	events, _, err = m.DispatchInbound(1005, chunk2)
	require.NoError(t, err)
	require.Empty(t, events)

	chunk3 := append(chunkHeader(t, uint32(len(full)), false, true), part3...)
	events, _, err = m.DispatchInbound(1005, chunk3)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, full, events[0].Payload)
}

func TestDispatchInboundContinuationWithoutFirstIsSingleFragment(t *testing.T) {
	m := NewMux()
	proc := &echoProcessor{}
	require.NoError(t, m.RegisterStaticChannel("rdpsnd", 0, proc))
	require.NoError(t, m.BindChannelID("rdpsnd", 1005))

	payload := []byte("orphan continuation")
	chunk := append(chunkHeader(t, uint32(len(payload)), false, false), payload...)

	events, _, err := m.DispatchInbound(1005, chunk)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, payload, events[0].Payload)
}

func TestDispatchInboundNewFirstDropsPendingAssembly(t *testing.T) {
	m := NewMux()
	proc := &echoProcessor{}
	require.NoError(t, m.RegisterStaticChannel("rdpsnd", 0, proc))
	require.NoError(t, m.BindChannelID("rdpsnd", 1005))

	stale := append(chunkHeader(t, 100, true, false), []byte("stale-partial")...)
	events, _, err := m.DispatchInbound(1005, stale)
	require.NoError(t, err)
	require.Empty(t, events)

	fresh := []byte("fresh message")
	chunk := append(chunkHeader(t, uint32(len(fresh)), true, true), fresh...)
	events, _, err = m.DispatchInbound(1005, chunk)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, fresh, events[0].Payload)
}

func TestEncodeOutboundChunksToPeerCeiling(t *testing.T) {
	m := NewMux()
	require.NoError(t, m.RegisterStaticChannel("rdpdr", 0, nil))
	require.NoError(t, m.BindChannelID("rdpdr", 1006))
	m.SetPeerChunkSize(16) // clamped up to DefaultChunkSize

	payload := make([]byte, 2*DefaultChunkSize+40)
	for i := range payload {
		payload[i] = byte(i)
	}

	chunks, err := m.EncodeOutbound("rdpdr", payload, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	var reassembled []byte
	for i, chunk := range chunks {
		hdr, err := pdu.DecodeChannelPDUHeader(pdu.NewReadCursor(chunk.Data))
		require.NoError(t, err)
		require.Equal(t, uint32(len(payload)), hdr.Length)
		require.Equal(t, i == 0, hdr.IsFirst())
		require.Equal(t, i == len(chunks)-1, hdr.IsLast())
		reassembled = append(reassembled, chunk.Data[8:]...)
	}
	require.Equal(t, payload, reassembled)
}

func TestRegisterStaticChannelDrdynvcRejectsExplicitProcessor(t *testing.T) {
	m := NewMux()
	err := m.RegisterStaticChannel(DrdynvcChannelName, 0, &echoProcessor{})
	require.Error(t, err)
}

func TestRegisterStaticChannelDuplicateNameRejected(t *testing.T) {
	m := NewMux()
	require.NoError(t, m.RegisterStaticChannel("cliprdr", 0, nil))
	err := m.RegisterStaticChannel("cliprdr", 0, nil)
	require.Error(t, err)
}

func TestSetPeerChunkSizeClampsToValidRange(t *testing.T) {
	m := NewMux()
	m.SetPeerChunkSize(1)
	require.Equal(t, uint32(DefaultChunkSize), m.peerChunkSize)

	m.SetPeerChunkSize(uint32(pdu.MaxVCChunkSize) + 1000)
	require.Equal(t, uint32(pdu.MaxVCChunkSize), m.peerChunkSize)
}
