// Package channels implements the virtual-channel multiplexer that sits
// between the wire and higher-level consumers : it owns the
// mapping from MCS channel IDs to named static virtual channels, including
// the special drdynvc channel that tunnels dynamic virtual channels, and it
// reassembles fragmented chunks in both directions.
//
// Grounded on the teacher's internal/protocol/audio/channel.go
// (ChannelPDUHeader, the FIRST/LAST defragmenter idiom) generalized from a
// single hardcoded audio channel to a name-keyed registry of arbitrary
// static channels, and on internal/protocol/drdynvc/drdynvc.go for the DVC
// side (moved to dvc.go in this package).
package channels

import (
	"fmt"
	"sync"

	"github.com/kulaginds/rdp-core/internal/rdplog"
	"github.com/kulaginds/rdp-core/internal/rdpmetrics"
	"github.com/kulaginds/rdp-core/pkg/pdu"
)

var log = rdplog.For("channels")

// Processor handles reassembled traffic on one static virtual channel. It is
// the `Option<Processor>` of register_static_channel; a
// channel with no processor is still joined and reassembled, but its events
// just surface to the caller as EventStaticData with no side effect inside
// the multiplexer.
type Processor interface {
	// Process is called with one reassembled static-channel message and
	// returns zero or more payloads to send back out the same channel.
	Process(payload []byte) ([][]byte, error)
}

// StaticChannel is one statically-advertised virtual channel :
// an 8-byte-name/options pair advertised during basic-settings exchange,
// bound to a server-assigned MCS channel ID once channel-join completes.
type StaticChannel struct {
	Name    string
	ID      uint16
	Options uint32

	processor  Processor
	reassembly *svcReassembly
}

// svcReassembly accumulates CHANNEL_PDU_HEADER-framed chunks into one
// message, per SVC reassembly invariant: chunks carry a
// declared total length and FIRST/LAST flags; bytes received never exceed
// the declared total.
type svcReassembly struct {
	total int
	buf   []byte
}

func (r *svcReassembly) reset(total int) {
	r.total = total
	r.buf = make([]byte, 0, total)
}

func (r *svcReassembly) pending() bool { return r.buf != nil }

// EventKind discriminates the variants of Event ('s
// dispatch_inbound contract).
type EventKind int

const (
	EventStaticData EventKind = iota
	EventDvcCreated
	EventDvcData
	EventDvcClosed
	// EventGraphicsUpdate is reserved for parity with the shared Event
	// sum type; the channel multiplexer never emits it itself — graphics
	// decoding is the active-stage loop's responsibility (pkg/activestage).
	EventGraphicsUpdate
)

// Event is one unit of channel activity surfaced by DispatchInbound.
type Event struct {
	Kind        EventKind
	ChannelName string
	ChannelID   uint32 // MCS channel ID for static events, DVC channel ID for dynamic events
	Payload     []byte
}

// FramedChunk is one outbound wire-ready chunk produced by EncodeOutbound,
// already carrying its CHANNEL_PDU_HEADER and ready to hand to MCS
// SendDataRequest.
type FramedChunk struct {
	ChannelID uint16
	Data      []byte
}

// Mux is the channel multiplexer. It is not safe for
// concurrent use from multiple goroutines without external synchronization,
// matching the single-threaded cooperative model of the active-stage pump
// — except its
// DVC processor registry, which may be registered before the connection
// completes from the host's setup goroutine and is guarded internally.
type Mux struct {
	mu sync.Mutex

	byID   map[uint16]*StaticChannel
	byName map[string]*StaticChannel

	drdynvcName string
	dvc         *dvcManager

	peerChunkSize uint32
}

// DefaultChunkSize is the SVC chunk ceiling used until the peer advertises
// its own VirtualChannel capability set (MS-RDPBCGR 2.2.7.1.10).
const DefaultChunkSize = pdu.DefaultVCChunkSize

// NewMux constructs an empty multiplexer. Call RegisterStaticChannel for
// every channel the connector is about to advertise, including "drdynvc"
// if dynamic channels are wanted, before starting the connection sequence.
func NewMux() *Mux {
	return &Mux{
		byID:          make(map[uint16]*StaticChannel),
		byName:        make(map[string]*StaticChannel),
		peerChunkSize: DefaultChunkSize,
	}
}

// RegisterStaticChannel adds a channel to the advertised list.
// Registering a channel named "drdynvc" installs the DVC manager as
// its processor automatically, since at most one channel by that name
// exists and it always hosts dynamic-channel traffic;
// passing a non-nil proc for "drdynvc" is a configuration error since the
// DVC manager already owns that channel's processing.
func (m *Mux) RegisterStaticChannel(name string, options uint32, proc Processor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byName[name]; exists {
		return fmt.Errorf("channels: static channel %q already registered", name)
	}

	sc := &StaticChannel{Name: name, Options: options, reassembly: &svcReassembly{}}
	if name == DrdynvcChannelName {
		if proc != nil {
			return fmt.Errorf("channels: %q is reserved for the DVC manager", DrdynvcChannelName)
		}
		m.dvc = newDvcManager()
		m.drdynvcName = name
		sc.processor = dvcStaticAdapter{m.dvc}
	} else {
		sc.processor = proc
	}
	m.byName[name] = sc
	return nil
}

// BindChannelID attaches the MCS channel ID the server assigned during
// channel-join to a previously-registered static channel name.
func (m *Mux) BindChannelID(name string, id uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sc, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("channels: %q was not registered", name)
	}
	sc.ID = id
	m.byID[id] = sc
	return nil
}

// SetPeerChunkSize records the peer's advertised VirtualChannel.VCChunkSize
// (1600-16256, MS-RDPBCGR 2.2.7.1.10), clamping to that range so a
// malformed advertisement can't blow up outbound chunking.
func (m *Mux) SetPeerChunkSize(n uint32) {
	switch {
	case n < pdu.DefaultVCChunkSize:
		n = pdu.DefaultVCChunkSize
	case n > pdu.MaxVCChunkSize:
		n = pdu.MaxVCChunkSize
	}
	m.mu.Lock()
	m.peerChunkSize = n
	m.mu.Unlock()
}

// RegisterDynamicChannelProcessor adds a DVC handler; may be
// called before or after the connection completes. Requires "drdynvc" to
// have been registered as a static channel first.
func (m *Mux) RegisterDynamicChannelProcessor(proc DvcProcessor) error {
	m.mu.Lock()
	dvc := m.dvc
	m.mu.Unlock()
	if dvc == nil {
		return fmt.Errorf("channels: no drdynvc static channel registered")
	}
	dvc.register(proc)
	return nil
}

// ChannelByName looks up a registered static channel, for callers (the
// connector) that need to advertise channel options before IDs exist.
func (m *Mux) ChannelByName(name string) (*StaticChannel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.byName[name]
	return sc, ok
}

// StaticChannels returns every registered static channel in no particular
// order, for the connector's basic-settings advertisement.
func (m *Mux) StaticChannels() []*StaticChannel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*StaticChannel, 0, len(m.byName))
	for _, sc := range m.byName {
		out = append(out, sc)
	}
	return out
}

// EncodeDvcOutbound fragments payload for a live dynamic channel ID
// (DataFirst/Data per fragmentation rule) and wraps each
// fragment in the drdynvc SVC chunking, ready to hand to MCS
// SendDataRequest. Used by callers outside the Create/Process reply path,
// e.g. the active-stage loop pushing an unsolicited display-control
// message.
func (m *Mux) EncodeDvcOutbound(channelID uint32, payload []byte) ([]FramedChunk, error) {
	m.mu.Lock()
	dvcMgr := m.dvc
	drName := m.drdynvcName
	m.mu.Unlock()
	if dvcMgr == nil {
		return nil, fmt.Errorf("channels: no drdynvc channel registered")
	}
	fragments, err := dvcMgr.encodeData(channelID, payload)
	if err != nil {
		return nil, err
	}
	var chunks []FramedChunk
	for _, f := range fragments {
		cs, err := m.EncodeOutbound(drName, f, 0)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, cs...)
	}
	return chunks, nil
}

// DispatchInbound reassembles and dispatches one inbound MCS
// SendDataIndication payload for the given channel ID,
// returning both the events the caller should act on and the wire-ready
// frames any processor reply produced, so the caller can hand them
// straight to MCS SendDataRequest without a second encode pass.
func (m *Mux) DispatchInbound(channelID uint16, data []byte) ([]Event, []FramedChunk, error) {
	m.mu.Lock()
	sc, ok := m.byID[channelID]
	m.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("channels: inbound data for unknown channel id %d", channelID)
	}

	c := pdu.NewReadCursor(data)
	hdr, err := pdu.DecodeChannelPDUHeader(c)
	if err != nil {
		return nil, nil, fmt.Errorf("channels: %s: %w", sc.Name, err)
	}
	chunk, err := c.ReadBytes("ChannelChunk.Data", c.Remaining())
	if err != nil {
		return nil, nil, fmt.Errorf("channels: %s: %w", sc.Name, err)
	}

	rdpmetrics.ChannelBytesTotal.WithLabelValues(sc.Name, "inbound").Add(float64(len(data)))

	msg, ok := reassemble(sc.reassembly, hdr, chunk, sc.Name)
	if !ok {
		return nil, nil, nil
	}

	if sc.processor == nil {
		return []Event{{Kind: EventStaticData, ChannelName: sc.Name, ChannelID: uint32(sc.ID), Payload: msg}}, nil, nil
	}

	replies, err := sc.processor.Process(msg)
	if err != nil {
		return nil, nil, fmt.Errorf("channels: %s processor: %w", sc.Name, err)
	}
	events := make([]Event, 0, len(replies)+1)
	events = append(events, Event{Kind: EventStaticData, ChannelName: sc.Name, ChannelID: uint32(sc.ID), Payload: msg})
	if sc.Name == m.drdynvcName {
		events = append(events, m.dvc.drainEvents()...)
	}
	var frames []FramedChunk
	for _, r := range replies {
		cs, err := m.encodeOutboundChunks(sc, r)
		if err != nil {
			return events, frames, err
		}
		frames = append(frames, cs...)
	}
	return events, frames, nil
}

// reassemble applies the FIRST/LAST chunking rule of : a chunk
// with both flags set delivers immediately; otherwise accumulate until the
// declared total is reached. A pending assembly interrupted by a new FIRST
// chunk is dropped with a warning and the assembly starts over (the SVC
// framing, unlike DVC's DataFirst, carries the same total-length on every
// chunk of one message, so this case only arises from a malformed peer).
func reassemble(r *svcReassembly, hdr pdu.ChannelPDUHeader, chunk []byte, name string) ([]byte, bool) {
	if hdr.IsFirst() && r.pending() {
		log.WithField("channel", name).Warnf("new FIRST chunk while assembly pending; dropping partial message")
		rdpmetrics.ReassemblyDropped.WithLabelValues(name).Inc()
		r.buf = nil
	}
	if hdr.IsFirst() && hdr.IsLast() {
		return chunk, true
	}
	if hdr.IsFirst() {
		r.reset(int(hdr.Length))
	}
	if !r.pending() {
		// A continuation with no FIRST seen: treat as a single-fragment
		// message per DVC rule, generalized to SVC.
		return chunk, true
	}
	r.buf = append(r.buf, chunk...)
	if len(r.buf) > r.total {
		r.buf = nil
		return nil, false
	}
	if hdr.IsLast() || len(r.buf) >= r.total {
		msg := r.buf
		r.buf = nil
		return msg, true
	}
	return nil, false
}

// EncodeOutbound applies SVC chunking to a payload bound for the named
// static channel, honoring the peer's advertised chunk ceiling.
func (m *Mux) EncodeOutbound(channelName string, payload []byte, flags uint32) ([]FramedChunk, error) {
	m.mu.Lock()
	sc, ok := m.byName[channelName]
	chunkSize := m.peerChunkSize
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("channels: %q was not registered", channelName)
	}
	if sc.ID == 0 {
		return nil, fmt.Errorf("channels: %q has no bound MCS channel id", channelName)
	}
	return chunkSVC(sc.ID, payload, chunkSize, pdu.ChannelFlag(flags))
}

// encodeOutboundChunks is EncodeOutbound's internal counterpart used when a
// Processor reply must be chunked without a second name lookup.
func (m *Mux) encodeOutboundChunks(sc *StaticChannel, payload []byte) ([]FramedChunk, error) {
	m.mu.Lock()
	chunkSize := m.peerChunkSize
	m.mu.Unlock()
	rdpmetrics.ChannelBytesTotal.WithLabelValues(sc.Name, "outbound").Add(float64(len(payload)))
	return chunkSVC(sc.ID, payload, chunkSize, 0)
}

func chunkSVC(channelID uint16, payload []byte, chunkSize uint32, extraFlags pdu.ChannelFlag) ([]FramedChunk, error) {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	maxBody := int(chunkSize)
	if len(payload) == 0 {
		payload = []byte{}
	}
	var chunks []FramedChunk
	for off := 0; off == 0 || off < len(payload); {
		end := off + maxBody
		if end > len(payload) {
			end = len(payload)
		}
		flags := extraFlags
		if off == 0 {
			flags |= pdu.ChannelFlagFirst
		}
		if end == len(payload) {
			flags |= pdu.ChannelFlagLast
		}
		hdr := pdu.ChannelPDUHeader{Length: uint32(len(payload)), Flags: flags}
		buf := pdu.NewCursor(make([]byte, 0, hdr.Size()+(end-off)))
		if err := hdr.Encode(buf); err != nil {
			return nil, err
		}
		buf.WriteBytes(payload[off:end])
		chunks = append(chunks, FramedChunk{ChannelID: channelID, Data: buf.Bytes()})
		if end == len(payload) {
			break
		}
		off = end
	}
	return chunks, nil
}
