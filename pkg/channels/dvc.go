package channels

import (
	"fmt"
	"sync"

	"github.com/kulaginds/rdp-core/internal/rdpmetrics"
	"github.com/kulaginds/rdp-core/pkg/pdu"
	"github.com/kulaginds/rdp-core/pkg/pdu/dvc"
)

// DrdynvcChannelName is the reserved static-channel name that tunnels
// dynamic virtual channels (MS-RDPEDYC), per invariant that at
// most one channel by this name exists.
const DrdynvcChannelName = "drdynvc"

// localCapsVersion is the highest DVC protocol version this core offers
// during capability negotiation (MS-RDPEDYC 2.2.1.1); a peer offering 3 is
// answered with 2. The per-priority byte charges a version 2 reply carries
// are sent as zero and not consumed by anything in this core's scope.
const localCapsVersion = dvc.CapsVersion2

// DvcProcessor handles one named dynamic virtual channel. A
// processor is registered once by name and may back any number of live
// channel instances opened and closed over the connection's lifetime.
type DvcProcessor interface {
	// ChannelName is the name the server's Create request must match for
	// this processor to be selected.
	ChannelName() string
	// Start is called once a Create for this processor's channel is
	// accepted, before the CreateResponse is sent. Returned payloads are
	// queued as outbound Data messages on the new channel.
	Start(channelID uint32) ([][]byte, error)
	// Process handles one reassembled message on an already-open channel,
	// returning zero or more payloads to send back.
	Process(channelID uint32, payload []byte) ([][]byte, error)
	// Close is called once the channel tears down, either by a peer Close
	// or by connection teardown; it must not block.
	Close(channelID uint32)
}

// dvcReassembly mirrors svcReassembly but keyed by the DataFirst-declared
// total length (DVC fragment rule).
type dvcReassembly struct {
	total int
	buf   []byte
}

type dvcChannel struct {
	id         uint32
	name       string
	proc       DvcProcessor
	reassembly *dvcReassembly
}

// dvcManager is the drdynvc static channel's Processor: it decodes the DVC
// command header, dispatches Create/DataFirst/Data/Close/Capabilities, and
// tracks which processor owns each live channel ID (DVC
// dispatch algorithm).
type dvcManager struct {
	mu sync.Mutex

	byName map[string]DvcProcessor
	live   map[uint32]*dvcChannel

	negotiated bool
	events     []Event
}

func newDvcManager() *dvcManager {
	return &dvcManager{
		byName: make(map[string]DvcProcessor),
		live:   make(map[uint32]*dvcChannel),
	}
}

func (m *dvcManager) register(proc DvcProcessor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byName[proc.ChannelName()] = proc
}

// drainEvents hands back and clears the Created/Data/Closed events queued
// by the most recent Process call, consumed by Mux.DispatchInbound.
func (m *dvcManager) drainEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev := m.events
	m.events = nil
	return ev
}

// dvcStaticAdapter adapts *dvcManager to the Processor interface so it can
// be installed as the "drdynvc" static channel's handler ('s
// register_static_channel special-casing of drdynvc).
type dvcStaticAdapter struct{ m *dvcManager }

func (a dvcStaticAdapter) Process(payload []byte) ([][]byte, error) {
	return a.m.process(payload)
}

func (m *dvcManager) process(payload []byte) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := pdu.NewReadCursor(payload)
	hdr, err := dvc.PeekHeader(c)
	if err != nil {
		return nil, err
	}

	switch hdr.Cmd {
	case dvc.CmdCapsVer:
		caps, err := dvc.DecodeCaps(c)
		if err != nil {
			return nil, err
		}
		version := caps.Version
		if version > localCapsVersion {
			version = localCapsVersion
		}
		m.negotiated = true
		return m.encode(dvc.Caps{Version: version})

	case dvc.CmdCreate:
		if _, err := dvc.DecodeHeader(c); err != nil {
			return nil, err
		}
		req, err := dvc.DecodeCreateRequest(c, hdr.ChannelIDWidth)
		if err != nil {
			return nil, err
		}
		return m.handleCreate(req)

	case dvc.CmdDataFirst:
		if _, err := dvc.DecodeHeader(c); err != nil {
			return nil, err
		}
		lenWidth := dvc.FieldWidth(hdr.PduDependent)
		df, err := dvc.DecodeDataFirst(c, hdr.ChannelIDWidth, lenWidth)
		if err != nil {
			return nil, err
		}
		return m.handleDataFirst(df)

	case dvc.CmdData:
		if _, err := dvc.DecodeHeader(c); err != nil {
			return nil, err
		}
		d, err := dvc.DecodeData(c, hdr.ChannelIDWidth)
		if err != nil {
			return nil, err
		}
		return m.handleData(d)

	case dvc.CmdClose:
		if _, err := dvc.DecodeHeader(c); err != nil {
			return nil, err
		}
		cl, err := dvc.DecodeClose(c, hdr.ChannelIDWidth)
		if err != nil {
			return nil, err
		}
		return m.handleClose(cl)

	default:
		return nil, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "dvc.Header.Cmd", Got: uint32(hdr.Cmd)}
	}
}

func (m *dvcManager) handleCreate(req dvc.CreateRequest) ([][]byte, error) {
	proc, ok := m.byName[req.ChannelName]
	if !ok {
		log.WithField("channel", req.ChannelName).Warnf("no processor registered for DVC create request")
		return m.encode(dvc.CreateResponse{ChannelID: req.ChannelID, CreationCode: dvc.CreateResultNoListener})
	}

	ch := &dvcChannel{id: req.ChannelID, name: req.ChannelName, proc: proc, reassembly: &dvcReassembly{}}
	m.live[req.ChannelID] = ch
	rdpmetrics.DvcOpen.WithLabelValues(req.ChannelName).Inc()
	m.events = append(m.events, Event{Kind: EventDvcCreated, ChannelName: req.ChannelName, ChannelID: req.ChannelID})

	started, err := proc.Start(req.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("channels: dvc %q start: %w", req.ChannelName, err)
	}

	out, err := m.encode(dvc.CreateResponse{ChannelID: req.ChannelID, CreationCode: dvc.CreateResultOK})
	if err != nil {
		return nil, err
	}
	for _, payload := range started {
		frags, err := m.encodeData(req.ChannelID, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, frags...)
	}
	return out, nil
}

func (m *dvcManager) handleDataFirst(df dvc.DataFirst) ([][]byte, error) {
	ch, ok := m.live[df.ChannelID]
	if !ok {
		return nil, fmt.Errorf("channels: DataFirst for unknown dvc channel %d", df.ChannelID)
	}
	if len(df.Data) >= int(df.Length) {
		return m.deliver(ch, df.Data[:df.Length])
	}
	ch.reassembly.total = int(df.Length)
	ch.reassembly.buf = append([]byte(nil), df.Data...)
	return nil, nil
}

func (m *dvcManager) handleData(d dvc.Data) ([][]byte, error) {
	ch, ok := m.live[d.ChannelID]
	if !ok {
		return nil, fmt.Errorf("channels: Data for unknown dvc channel %d", d.ChannelID)
	}
	if ch.reassembly.buf == nil {
		// No pending DataFirst:  treats this as a single-fragment
		// message.
		return m.deliver(ch, d.Data)
	}
	ch.reassembly.buf = append(ch.reassembly.buf, d.Data...)
	if len(ch.reassembly.buf) >= ch.reassembly.total {
		msg := ch.reassembly.buf[:ch.reassembly.total]
		ch.reassembly.buf = nil
		return m.deliver(ch, msg)
	}
	return nil, nil
}

func (m *dvcManager) deliver(ch *dvcChannel, msg []byte) ([][]byte, error) {
	m.events = append(m.events, Event{Kind: EventDvcData, ChannelName: ch.name, ChannelID: ch.id, Payload: msg})
	replies, err := ch.proc.Process(ch.id, msg)
	if err != nil {
		return nil, fmt.Errorf("channels: dvc %q process: %w", ch.name, err)
	}
	var out [][]byte
	for _, payload := range replies {
		frags, err := m.encodeData(ch.id, payload)
		if err != nil {
			return out, err
		}
		out = append(out, frags...)
	}
	return out, nil
}

func (m *dvcManager) handleClose(cl dvc.Close) ([][]byte, error) {
	ch, ok := m.live[cl.ChannelID]
	if ok {
		ch.proc.Close(cl.ChannelID)
		delete(m.live, cl.ChannelID)
		rdpmetrics.DvcOpen.WithLabelValues(ch.name).Dec()
		m.events = append(m.events, Event{Kind: EventDvcClosed, ChannelName: ch.name, ChannelID: cl.ChannelID})
	}
	return m.encode(dvc.Close{ChannelID: cl.ChannelID})
}

// encode wraps a single already-sized DVC PDU into a one-element [][]byte,
// the shape every handle* function returns for consistency with encodeData.
func (m *dvcManager) encode(p interface {
	Size() int
	Encode(*pdu.Cursor) error
}) ([][]byte, error) {
	c := pdu.NewCursor(make([]byte, 0, p.Size()))
	if err := p.Encode(c); err != nil {
		return nil, err
	}
	return [][]byte{c.Bytes()}, nil
}

// encodeData fragments an outbound DVC payload into DataFirst+Data* PDUs
// (fragmentation-on-send rule): each fragment carries at most a fixed
// 1590 payload bytes (the multiplexer's peerChunkSize is not consulted), and
// dvc.minimalWidth (internal to the dvc package) picks the smallest
// field-type width for the channel ID and length on every fragment.
func (m *dvcManager) encodeData(channelID uint32, payload []byte) ([][]byte, error) {
	const maxFragment = 1590 // plus the largest DVC header (DataFirst, 9 bytes) fits one 1600-byte SVC chunk body
	if len(payload) <= maxFragment {
		d := dvc.Data{ChannelID: channelID, Data: payload}
		c := pdu.NewCursor(make([]byte, 0, d.Size()))
		if err := d.Encode(c); err != nil {
			return nil, err
		}
		return [][]byte{c.Bytes()}, nil
	}

	first := dvc.DataFirst{ChannelID: channelID, Length: uint32(len(payload)), Data: payload[:maxFragment]}
	c := pdu.NewCursor(make([]byte, 0, first.Size()))
	if err := first.Encode(c); err != nil {
		return nil, err
	}
	out := [][]byte{c.Bytes()}

	for off := maxFragment; off < len(payload); off += maxFragment {
		end := off + maxFragment
		if end > len(payload) {
			end = len(payload)
		}
		d := dvc.Data{ChannelID: channelID, Data: payload[off:end]}
		c := pdu.NewCursor(make([]byte, 0, d.Size()))
		if err := d.Encode(c); err != nil {
			return nil, err
		}
		out = append(out, c.Bytes())
	}
	return out, nil
}
