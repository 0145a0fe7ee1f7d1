// Package activestage drives the steady-state pump of a connected RDP
// session : classify each inbound frame as slow-path share
// data, fast-path graphics/pointer update, or channel traffic, and turn it
// into one or more Outputs the host acts on. It also encodes the
// host-driven direction: batched fast-path input and display-control
// resize requests.
//
// Grounded on the teacher's internal/rdp get_update.go (slow-path/fast-path
// update dispatch, folded back into one decode-only contract instead of the
// teacher's GetUpdate loop with its JS-oriented fastpath conversion),
// send_input_event.go and refresh_rect.go (outbound encode shape), and
// display_control.go (resize driving a DVC monitor-layout message once the
// channel is open). The TPKT/X.224/MCS framing helpers at the end of this
// file mirror pkg/connector's private helpers of the same shape, duplicated
// here since those are unexported to that package.
package activestage

import (
	"fmt"

	"github.com/kulaginds/rdp-core/internal/rdplog"
	"github.com/kulaginds/rdp-core/pkg/channels"
	"github.com/kulaginds/rdp-core/pkg/connector"
	"github.com/kulaginds/rdp-core/pkg/framer"
	"github.com/kulaginds/rdp-core/pkg/mcs"
	"github.com/kulaginds/rdp-core/pkg/pdu"
	"github.com/kulaginds/rdp-core/pkg/pdu/rdpedisp"
	"github.com/kulaginds/rdp-core/pkg/x224"
)

var log = rdplog.For("activestage")

// DisplayControlChannelName is the well-known DVC name the display-control
// extension registers under (MS-RDPEDISP 3.1.1).
const DisplayControlChannelName = "Microsoft::Windows::RDS::DisplayControl"

// OutputKind discriminates Output's variants ('s
// ActiveStageOutput sum type).
type OutputKind int

const (
	OutputResponseFrame OutputKind = iota
	OutputGraphicsUpdate
	OutputPointerUpdate
	OutputChannelEvent
	OutputTerminate
)

func (k OutputKind) String() string {
	switch k {
	case OutputResponseFrame:
		return "ResponseFrame"
	case OutputGraphicsUpdate:
		return "GraphicsUpdate"
	case OutputPointerUpdate:
		return "PointerUpdate"
	case OutputChannelEvent:
		return "ChannelEvent"
	case OutputTerminate:
		return "Terminate"
	default:
		return "Unknown"
	}
}

// PointerUpdateKind discriminates which field of Output.Pointer is
// populated.
type PointerUpdateKind int

const (
	PointerKindPosition PointerUpdateKind = iota
	PointerKindColor
	PointerKindNewColor
	PointerKindCached
	PointerKindLarge
	PointerKindSystem
)

// PointerUpdate bundles whichever pointer-update variant the peer sent;
// only the field matching Kind is populated.
type PointerUpdate struct {
	Kind     PointerUpdateKind
	Position pdu.PositionUpdate
	Color    pdu.ColorPointerUpdate
	Cached   pdu.CachedPointerUpdate
	Large    pdu.LargePointerUpdate
	System   pdu.SystemPointerUpdate
}

// Output is one unit of activity the host must act on.
type Output struct {
	Kind    OutputKind
	Frame   []byte                   // OutputResponseFrame: bytes to write to the transport
	Rect    pdu.InclusiveRectangle   // OutputGraphicsUpdate: region touched, zero value if unknown (opaque bitmap/orders update)
	Pointer PointerUpdate            // OutputPointerUpdate
	Channel channels.Event           // OutputChannelEvent
	Reason  string                   // OutputTerminate
}

// ActiveStage drives one connected session's steady-state traffic.
type ActiveStage struct {
	result connector.ConnectionResult
	mux    *channels.Mux

	dispChannelID uint32
	dispOpen      bool

	tracker inputTracker
}

// New constructs an ActiveStage for a just-connected session. mux is the
// same multiplexer the connector used during channel-join; its static
// channel bindings and DVC registry carry over unchanged.
func New(result connector.ConnectionResult, mux *channels.Mux) *ActiveStage {
	return &ActiveStage{
		result:  result,
		mux:     mux,
		tracker: newInputTracker(),
	}
}

// Process classifies one complete inbound frame (as delivered by
// framer.ReadPdu) and returns the Outputs it produced.
func (s *ActiveStage) Process(inbound []byte) ([]Output, error) {
	if len(inbound) < 1 {
		return nil, fmt.Errorf("activestage: empty inbound frame")
	}
	if pdu.FastPathAction(inbound[0]&0x03) == pdu.FastPathActionX224 {
		return s.processSlowPath(inbound)
	}
	return s.processFastPath(inbound)
}

// --- slow path ----------------------------------------------------------

func (s *ActiveStage) processSlowPath(frame []byte) ([]Output, error) {
	tpdu, err := stripTPKT(frame)
	if err != nil {
		return nil, err
	}
	payload, err := x224.UnwrapData(tpdu)
	if err != nil {
		return nil, err
	}

	typ, err := mcs.PeekDomainPduType(payload)
	if err != nil {
		return nil, err
	}
	if typ == mcs.PduTypeDisconnectProviderUltimatum {
		rc := pdu.NewReadCursor(payload)
		dpu, err := mcs.DecodeDisconnectProviderUltimatum(rc)
		if err != nil {
			return nil, err
		}
		return []Output{{Kind: OutputTerminate, Reason: fmt.Sprintf("server-initiated disconnect (reason=%d)", dpu.Reason)}}, nil
	}

	rc := pdu.NewReadCursor(payload)
	sdi, err := mcs.DecodeSendDataIndication(rc)
	if err != nil {
		return nil, err
	}
	return s.dispatchChannelData(sdi.ChannelID, sdi.Data)
}

// dispatchChannelData routes one MCS SendDataIndication payload either to
// the I/O channel's ShareControl/ShareData decode path or, for any other
// channel ID, to the channel multiplexer.
func (s *ActiveStage) dispatchChannelData(channelID uint16, data []byte) ([]Output, error) {
	if channelID == s.result.IOChannelID {
		return s.handleShareControl(data)
	}

	events, frames, err := s.mux.DispatchInbound(channelID, data)
	if err != nil {
		log.WithField("channel_id", channelID).WithError(err).Warnf("pdu on unexpected channel, skipping")
		return nil, nil
	}
	return s.translateChannelActivity(events, frames)
}

func (s *ActiveStage) translateChannelActivity(events []channels.Event, frames []channels.FramedChunk) ([]Output, error) {
	outs := make([]Output, 0, len(events)+len(frames))
	for _, ev := range events {
		if ev.Kind == channels.EventDvcCreated && ev.ChannelName == DisplayControlChannelName {
			s.dispChannelID = ev.ChannelID
			s.dispOpen = true
		}
		if ev.Kind == channels.EventDvcClosed && ev.ChannelName == DisplayControlChannelName {
			s.dispOpen = false
		}
		outs = append(outs, Output{Kind: OutputChannelEvent, Channel: ev})
	}
	for _, fr := range frames {
		raw, err := s.frameSendData(fr.ChannelID, fr.Data)
		if err != nil {
			return outs, err
		}
		outs = append(outs, Output{Kind: OutputResponseFrame, Frame: raw})
	}
	return outs, nil
}

func (s *ActiveStage) handleShareControl(data []byte) ([]Output, error) {
	rc := pdu.NewReadCursor(data)
	ctrl, err := pdu.DecodeShareControlHeader(rc)
	if err != nil {
		return nil, err
	}
	if ctrl.PDUType.IsDeactivateAll() {
		return []Output{{Kind: OutputTerminate, Reason: "server sent Deactivate All"}}, nil
	}
	if !ctrl.PDUType.IsData() {
		// DemandActive/ConfirmActive belong to the connection sequence and
		// should never reach the active stage; log and move on.
		log.WithField("pdu_type", ctrl.PDUType).Warnf("unexpected share-control PDU in active stage")
		return nil, nil
	}

	sdh, err := pdu.DecodeShareDataHeader(rc)
	if err != nil {
		return nil, err
	}

	switch sdh.PDUType2 {
	case pdu.ShareDataTypeUpdate:
		return s.handleSlowPathUpdate(rc)
	case pdu.ShareDataTypeErrorInfo:
		info, err := pdu.DecodeErrorInfoData(rc)
		if err != nil {
			return nil, err
		}
		return []Output{{Kind: OutputTerminate, Reason: fmt.Sprintf("server error info 0x%08x", info.ErrorInfo)}}, nil
	default:
		// Control/Synchronize/FontMap/PlaySound and the rest are either
		// acknowledgements this core never needs to act on, or out of scope.
		return nil, nil
	}
}

func (s *ActiveStage) handleSlowPathUpdate(rc *pdu.ReadCursor) ([]Output, error) {
	updateType, err := rc.ReadU16LE("SlowPathUpdate.UpdateType")
	if err != nil {
		return nil, err
	}
	switch updateType {
	case 0x0000, 0x0001, 0x0002: // orders, bitmap, palette: opaque per the bitmap-cache non-goal
		return []Output{{Kind: OutputGraphicsUpdate}}, nil
	case 0x0003: // synchronize
		return nil, nil
	case 0x0006: // pointer update, TS_UPDATE_POINTER wraps a TS_POINTER_PDU body directly
		pu, err := pdu.DecodeSlowPathPointerUpdate(rc)
		if err != nil {
			return nil, err
		}
		return []Output{pointerOutput(pu)}, nil
	default:
		return nil, nil
	}
}

func pointerOutput(pu pdu.SlowPathPointerUpdate) Output {
	switch {
	case pu.System != nil:
		return Output{Kind: OutputPointerUpdate, Pointer: PointerUpdate{Kind: PointerKindSystem, System: *pu.System}}
	case pu.Position != nil:
		return Output{Kind: OutputPointerUpdate, Pointer: PointerUpdate{Kind: PointerKindPosition, Position: *pu.Position}}
	case pu.Cached != nil:
		return Output{Kind: OutputPointerUpdate, Pointer: PointerUpdate{Kind: PointerKindCached, Cached: *pu.Cached}}
	case pu.NewPointer != nil:
		return Output{Kind: OutputPointerUpdate, Pointer: PointerUpdate{Kind: PointerKindNewColor, Color: *pu.NewPointer}}
	case pu.Color != nil:
		return Output{Kind: OutputPointerUpdate, Pointer: PointerUpdate{Kind: PointerKindColor, Color: *pu.Color}}
	default:
		return Output{Kind: OutputPointerUpdate}
	}
}

// --- fast path ------------------------------------------------------------

func (s *ActiveStage) processFastPath(frame []byte) ([]Output, error) {
	rc := pdu.NewReadCursor(frame)
	out, err := pdu.DecodeFastPathOutputHeader(rc)
	if err != nil {
		return nil, err
	}

	body := pdu.NewReadCursor(out.Data)
	uh, err := pdu.DecodeFastPathUpdateHeader(body)
	if err != nil {
		return nil, err
	}

	switch uh.UpdateCode {
	case pdu.FastPathUpdateCodeSurfaceCommands:
		cmds, err := pdu.DecodeSurfaceCommands(body)
		if err != nil {
			return nil, err
		}
		return surfaceCommandOutputs(cmds), nil

	case pdu.FastPathUpdateCodeOrders, pdu.FastPathUpdateCodeBitmap, pdu.FastPathUpdateCodePalette:
		return []Output{{Kind: OutputGraphicsUpdate}}, nil

	case pdu.FastPathUpdateCodeSynchronize:
		return nil, nil

	case pdu.FastPathUpdateCodePointerPosition:
		p, err := pdu.DecodePositionUpdate(body)
		if err != nil {
			return nil, err
		}
		return []Output{{Kind: OutputPointerUpdate, Pointer: PointerUpdate{Kind: PointerKindPosition, Position: p}}}, nil

	case pdu.FastPathUpdateCodeColorPointer:
		p, err := pdu.DecodeColorPointerUpdate(body)
		if err != nil {
			return nil, err
		}
		return []Output{{Kind: OutputPointerUpdate, Pointer: PointerUpdate{Kind: PointerKindColor, Color: p}}}, nil

	case pdu.FastPathUpdateCodePointer:
		p, err := pdu.DecodeNewPointerUpdate(body)
		if err != nil {
			return nil, err
		}
		return []Output{{Kind: OutputPointerUpdate, Pointer: PointerUpdate{Kind: PointerKindNewColor, Color: p}}}, nil

	case pdu.FastPathUpdateCodeCachedPointer:
		p, err := pdu.DecodeCachedPointerUpdate(body)
		if err != nil {
			return nil, err
		}
		return []Output{{Kind: OutputPointerUpdate, Pointer: PointerUpdate{Kind: PointerKindCached, Cached: p}}}, nil

	case pdu.FastPathUpdateCodeLargePointer:
		p, err := pdu.DecodeLargePointerUpdate(body)
		if err != nil {
			return nil, err
		}
		return []Output{{Kind: OutputPointerUpdate, Pointer: PointerUpdate{Kind: PointerKindLarge, Large: p}}}, nil

	default:
		log.WithField("update_code", uh.UpdateCode).Warnf("unhandled fast-path update code")
		return nil, nil
	}
}

func surfaceCommandOutputs(cmds []pdu.SurfaceCommand) []Output {
	outs := make([]Output, 0, len(cmds))
	for _, cmd := range cmds {
		if cmd.SetSurfaceBits == nil {
			continue // frame markers bound a batch but touch no region themselves
		}
		rect, err := cmd.SetSurfaceBits.DestRect.ToInclusive()
		if err != nil {
			continue
		}
		outs = append(outs, Output{Kind: OutputGraphicsUpdate, Rect: rect})
	}
	return outs
}

// --- outbound: input, resize ---------------------------------------------

// ApplyInputs batches a transaction of Operations into a single fast-path
// input PDU, coalescing duplicate press/release through the
// input-state tracker.
func (s *ActiveStage) ApplyInputs(ops []Operation) ([]byte, error) {
	events := s.tracker.apply(ops)
	return s.encodeFastPathInput(events)
}

// ReleaseAllInputs emits synthetic key-up/button-up events for every
// currently-held input (used on focus loss) and clears the
// tracker.
func (s *ActiveStage) ReleaseAllInputs() ([]byte, error) {
	events := s.tracker.releaseAll()
	return s.encodeFastPathInput(events)
}

// maxEventsPerPDU is the largest numEvents a single fast-path input header
// can carry (4-bit field, MS-RDPBCGR 2.2.8.1.2).
const maxEventsPerPDU = 15

func (s *ActiveStage) encodeFastPathInput(events []pdu.InputEvent) ([]byte, error) {
	var out []byte
	for off := 0; off < len(events); off += maxEventsPerPDU {
		end := off + maxEventsPerPDU
		if end > len(events) {
			end = len(events)
		}
		chunk := events[off:end]
		size := 0
		for _, e := range chunk {
			size += e.Size()
		}
		body := pdu.NewCursor(make([]byte, 0, size))
		for _, e := range chunk {
			if err := e.Encode(body); err != nil {
				return nil, err
			}
		}
		hdr := pdu.FastPathInputHeader{NumEvents: uint8(len(chunk)), Data: body.Bytes()}
		cur := pdu.NewCursor(make([]byte, 0, hdr.Size()))
		if err := hdr.Encode(cur); err != nil {
			return nil, err
		}
		out = append(out, cur.Bytes()...)
	}
	return out, nil
}

// Resize emits a DISPLAYCONTROL_MONITOR_LAYOUT_PDU over the display-control
// DVC, if that channel is currently open; returns nil bytes
// (not an error) when the channel isn't open yet, mirroring the teacher's
// pending-resize queue, minus the queue itself since the host owns retrying.
func (s *ActiveStage) Resize(monitors []rdpedisp.MonitorLayout) ([]byte, error) {
	if !s.dispOpen {
		return nil, nil
	}
	layout := rdpedisp.MonitorLayoutPdu{Monitors: monitors}
	cur := pdu.NewCursor(make([]byte, 0, layout.Size()))
	if err := layout.Encode(cur); err != nil {
		return nil, err
	}
	chunks, err := s.mux.EncodeDvcOutbound(s.dispChannelID, cur.Bytes())
	if err != nil {
		return nil, err
	}
	var out []byte
	for _, chunk := range chunks {
		raw, err := s.frameSendData(chunk.ChannelID, chunk.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, raw...)
	}
	return out, nil
}

// --- framing helpers, mirroring pkg/connector's private shape -------------

func stripTPKT(frame []byte) ([]byte, error) {
	if len(frame) < 4 {
		return nil, fmt.Errorf("activestage: frame too short for TPKT header")
	}
	return frame[4:], nil
}

func (s *ActiveStage) frameSendData(channelID uint16, payload []byte) ([]byte, error) {
	req := mcs.SendDataRequest{InitiatorID: s.result.UserID, ChannelID: channelID, Data: payload}
	cur := pdu.NewCursor(make([]byte, 0, req.Size()))
	if err := req.Encode(cur); err != nil {
		return nil, err
	}
	raw, err := x224.WrapData(cur.Bytes())
	if err != nil {
		return nil, err
	}
	return framer.WrapTPKT(raw), nil
}
