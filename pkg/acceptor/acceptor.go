// Package acceptor drives one server-side RDP connection attempt: the
// listening mirror of pkg/connector. It owns no I/O; every state
// transition is a pure function of the current state and whatever Input
// the host supplies, matching the same Step contract the client side
// exposes.
//
// Unlike the client connector, there is no CredSSP/NLA sub-sequence here:
// the acceptor only ever asks the host to perform a security upgrade
// (ActionPerformSecurityUpgrade) before falling straight through to
// basicSettingsExchange, the same shape ironrdp-acceptor's state machine
// takes from the listening side.
package acceptor

import (
	"fmt"

	"github.com/kulaginds/rdp-core/pkg/framer"
	"github.com/kulaginds/rdp-core/pkg/gcc"
	"github.com/kulaginds/rdp-core/pkg/mcs"
	"github.com/kulaginds/rdp-core/pkg/pdu"
	"github.com/kulaginds/rdp-core/pkg/x224"
)

// Action tells the host what must happen before the next call to Step.
type Action int

const (
	// ActionAwaitFrame means the host must read the next complete frame
	// from the transport and pass it as Input.Frame.
	ActionAwaitFrame Action = iota
	// ActionPerformSecurityUpgrade means the host must accept a TLS
	// handshake on the current connection now and call
	// MarkSecurityUpgradeAsDone before calling Step again.
	ActionPerformSecurityUpgrade
	// ActionConnected means the handshake is complete; call Result.
	ActionConnected
)

// Input is what the host feeds into Step: one complete inbound frame, or
// nothing at all when driving a transition that doesn't need one.
type Input struct {
	Frame []byte
}

// Output is the bytes, if any, the host must write to the transport
// before waiting for the next Action.
type Output struct {
	Bytes []byte
}

// Acceptor drives one server-side RDP connection attempt.
type Acceptor struct {
	cfg Config

	state      State
	chanPhase  ChannelConnectionPhase
	finalPhase FinalizationPhase

	ctx connectionContext
}

// New constructs an acceptor ready to begin at StateWaitConnectionRequest.
func New(cfg Config) *Acceptor {
	return &Acceptor{
		cfg:   cfg,
		state: StateWaitConnectionRequest,
		ctx: connectionContext{
			serverChannels:  map[string]uint16{},
			channelNameByID: map[uint16]string{},
			joinedChannels:  map[string]uint16{},
		},
	}
}

// State reports the acceptor's current phase.
func (a *Acceptor) State() State { return a.state }

// ReachedSecurityUpgrade reports whether the acceptor is waiting on the
// host to perform the TLS accept, the server-side analogue of
// ironrdp-acceptor's reached_security_upgrade accessor.
func (a *Acceptor) ReachedSecurityUpgrade() bool {
	return a.state == StateUpgradeSecurity
}

func stripTPKT(frame []byte) ([]byte, error) {
	if len(frame) < 4 {
		return nil, fmt.Errorf("acceptor: frame too short for TPKT header")
	}
	return frame[4:], nil
}

func (a *Acceptor) frameDomainPDU(encode func(*pdu.Cursor) error, size int) ([]byte, error) {
	cur := pdu.NewCursor(make([]byte, 0, size))
	if err := encode(cur); err != nil {
		return nil, err
	}
	raw, err := x224.WrapData(cur.Bytes())
	if err != nil {
		return nil, err
	}
	return framer.WrapTPKT(raw), nil
}

func (a *Acceptor) frameSendData(channelID uint16, payload []byte) ([]byte, error) {
	ind := mcs.SendDataIndication{InitiatorID: a.ctx.mcsUserID, ChannelID: channelID, Data: payload}
	return a.frameDomainPDU(ind.Encode, ind.Size())
}

// unwrapSendData strips TPKT/X.224/MCS framing from an inbound frame and
// returns the channel ID and payload an MCS SendDataRequest carries.
func (a *Acceptor) unwrapSendData(frame []byte) (channelID uint16, data []byte, err error) {
	tpdu, err := stripTPKT(frame)
	if err != nil {
		return 0, nil, err
	}
	payload, err := x224.UnwrapData(tpdu)
	if err != nil {
		return 0, nil, err
	}
	rc := pdu.NewReadCursor(payload)
	sdr, err := mcs.DecodeSendDataRequest(rc)
	if err != nil {
		return 0, nil, err
	}
	return sdr.ChannelID, sdr.Data, nil
}

// Step advances the acceptor by exactly one phase, given whatever the
// previous Action requested. Call it in a loop, driving transport I/O in
// between calls according to the returned Action, until it returns
// ActionConnected.
func (a *Acceptor) Step(in Input) (Output, Action, error) {
	switch a.state {
	case StateWaitConnectionRequest:
		return a.doWaitConnectionRequest(in.Frame)
	case StateWaitBasicSettings:
		return a.doWaitBasicSettings(in.Frame)
	case StateChannelConnection:
		return a.doChannelConnection(in.Frame)
	case StateWaitClientInfo:
		return a.doWaitClientInfo(in.Frame)
	case StateWaitConfirmActive:
		return a.doWaitConfirmActive(in.Frame)
	case StateFinalization:
		return a.doFinalization(in.Frame)
	case StateConnected:
		return Output{}, ActionConnected, nil
	default:
		return Output{}, ActionAwaitFrame, wrapErr(ErrorGeneral, a.state, fmt.Errorf("step called with no pending work"))
	}
}

// --- connectionInitiation ---------------------------------------------

func (a *Acceptor) doWaitConnectionRequest(frame []byte) (Output, Action, error) {
	tpdu, err := stripTPKT(frame)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorGeneral, a.state, err)
	}
	_, negData, err := x224.DecodeConnectionRequest(tpdu)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}

	requested := pdu.NegotiationProtocolRDP
	if len(negData) > 0 {
		rc := pdu.NewReadCursor(negData)
		negReq, err := pdu.DecodeNegotiationRequest(rc)
		if err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}
		requested = negReq.RequestedProtocols
	}

	var confirm pdu.ConnectionConfirm
	switch a.cfg.Security {
	case SecurityTLS:
		if !requested.IsSSL() && !requested.IsHybrid() {
			confirm = pdu.NewConnectionConfirmFailure(pdu.NegotiationFailureCodeSSLRequired)
			raw, err := a.encodeConfirm(confirm)
			if err != nil {
				return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
			}
			return Output{Bytes: raw}, ActionAwaitFrame, wrapErr(ErrorAccessDenied, a.state, fmt.Errorf("client did not offer TLS"))
		}
		a.ctx.selectedProtocol = pdu.NegotiationProtocolSSL
		confirm = pdu.NewConnectionConfirmSuccess(0, a.ctx.selectedProtocol)
	default:
		a.ctx.selectedProtocol = pdu.NegotiationProtocolRDP
		confirm = pdu.NewConnectionConfirmSuccess(0, a.ctx.selectedProtocol)
	}

	raw, err := a.encodeConfirm(confirm)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}

	if a.ctx.selectedProtocol.IsSSL() {
		a.state = StateUpgradeSecurity
		return Output{Bytes: raw}, ActionPerformSecurityUpgrade, nil
	}
	a.state = StateWaitBasicSettings
	return Output{Bytes: raw}, ActionAwaitFrame, nil
}

func (a *Acceptor) encodeConfirm(confirm pdu.ConnectionConfirm) ([]byte, error) {
	cur := pdu.NewCursor(make([]byte, 0, confirm.Size()))
	if err := confirm.Encode(cur); err != nil {
		return nil, err
	}
	cc := x224.ConnectionConfirm{NegotiationData: cur.Bytes()}
	raw, err := cc.Encode()
	if err != nil {
		return nil, err
	}
	return framer.WrapTPKT(raw), nil
}

// MarkSecurityUpgradeAsDone reports that the host finished the TLS accept
// requested by ActionPerformSecurityUpgrade.
func (a *Acceptor) MarkSecurityUpgradeAsDone() (Output, Action, error) {
	if a.state != StateUpgradeSecurity {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorGeneral, a.state, fmt.Errorf("security upgrade not expected in this state"))
	}
	a.state = StateWaitBasicSettings
	return Output{}, ActionAwaitFrame, nil
}

// --- basicSettingsExchange -----------------------------------------------

func (a *Acceptor) doWaitBasicSettings(frame []byte) (Output, Action, error) {
	tpdu, err := stripTPKT(frame)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorGeneral, a.state, err)
	}
	payload, err := x224.UnwrapData(tpdu)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}
	rc := pdu.NewReadCursor(payload)
	ci, err := mcs.DecodeConnectInitial(rc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}
	gccRc := pdu.NewReadCursor(ci.UserData)
	ccReq, err := gcc.DecodeConferenceCreateRequest(gccRc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}

	udRc := pdu.NewReadCursor(ccReq.UserData)
	for udRc.Remaining() > 0 {
		head, ok := udRc.Peek(4)
		if !ok {
			break
		}
		blockType := uint16(head[0]) | uint16(head[1])<<8
		blockLen := uint16(head[2]) | uint16(head[3])<<8

		switch blockType {
		case gcc.TypeClientNetwork:
			net, err := gcc.DecodeClientNetworkData(udRc)
			if err != nil {
				return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
			}
			for _, ch := range net.Channels {
				a.ctx.clientChannelNames = append(a.ctx.clientChannelNames, ch.Name)
			}
		case gcc.TypeClientCore, gcc.TypeClientSecurity:
			// Neither field affects this server's behavior: color depth
			// and desktop size come from Config, and encryption is always
			// negotiated down to none under external security.
			if blockType == gcc.TypeClientCore {
				if _, err := gcc.DecodeClientCoreData(udRc); err != nil {
					return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
				}
			} else {
				if _, err := gcc.DecodeClientSecurityData(udRc); err != nil {
					return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
				}
			}
		default:
			// Cluster/monitor/monitor-ex and any future block this server
			// doesn't interpret: skip it wholesale rather than rejecting
			// the connection over a block it doesn't need.
			if int(blockLen) < 4 {
				return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, fmt.Errorf("GCC block length too short"))
			}
			if _, err := udRc.ReadBytes("GCC.UnknownBlock", int(blockLen)); err != nil {
				return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
			}
		}
	}

	// Assign MCS channel IDs: the global I/O channel first, then one per
	// requested static channel, in request order (MS-RDPBCGR 2.2.1.4.4).
	const ioChannelID uint16 = 1003
	a.ctx.ioChannelID = ioChannelID
	nextID := ioChannelID + 1
	channelIDs := make([]uint16, len(a.ctx.clientChannelNames))
	for i, name := range a.ctx.clientChannelNames {
		id := nextID
		nextID++
		channelIDs[i] = id
		a.ctx.serverChannels[name] = id
		a.ctx.channelNameByID[id] = name
	}

	core := gcc.ServerCoreData{Version: 0x00080004, ClientRequestedProtocols: uint32(a.ctx.selectedProtocol)}
	sec := gcc.ServerSecurityData{EncryptionMethod: gcc.EncryptionMethodNone, EncryptionLevel: gcc.EncryptionLevelNone}
	net := gcc.ServerNetworkData{MCSChannelID: ioChannelID, ChannelIDs: channelIDs}

	userDataCur := pdu.NewCursor(make([]byte, 0, core.Size()+sec.Size()+net.Size()))
	if err := core.Encode(userDataCur); err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}
	if err := sec.Encode(userDataCur); err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}
	if err := net.Encode(userDataCur); err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}

	ccResp := gcc.ConferenceCreateResponse{UserData: userDataCur.Bytes()}
	gccCur := pdu.NewCursor(make([]byte, 0, ccResp.Size()))
	if err := ccResp.Encode(gccCur); err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}

	cr := mcs.ConnectResponse{
		Result:     0,
		Parameters: mcs.ClientMaximumParameters(),
		UserData:   gccCur.Bytes(),
	}
	raw, err := a.frameDomainPDU(cr.Encode, cr.Size())
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}

	a.state = StateChannelConnection
	a.chanPhase = PhaseWaitErectDomain
	return Output{Bytes: raw}, ActionAwaitFrame, nil
}

// --- channelConnection ----------------------------------------------------

func (a *Acceptor) doChannelConnection(frame []byte) (Output, Action, error) {
	tpdu, err := stripTPKT(frame)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorGeneral, a.state, err)
	}
	payload, err := x224.UnwrapData(tpdu)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}
	rc := pdu.NewReadCursor(payload)

	switch a.chanPhase {
	case PhaseWaitErectDomain:
		if _, err := mcs.DecodeErectDomainRequest(rc); err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}
		a.chanPhase = PhaseWaitAttachUser
		return Output{}, ActionAwaitFrame, nil

	case PhaseWaitAttachUser:
		if _, err := mcs.DecodeAttachUserRequest(rc); err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}
		const firstUserID uint16 = 1001
		a.ctx.mcsUserID = firstUserID
		confirm := mcs.AttachUserConfirm{Result: 0, InitiatorID: a.ctx.mcsUserID}
		raw, err := a.frameDomainPDU(confirm.Encode, confirm.Size())
		if err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}
		// The client joins its own user channel, the global I/O channel,
		// and every static channel it requested.
		a.ctx.expectedJoins = 2 + len(a.ctx.clientChannelNames)
		a.chanPhase = PhaseJoinChannels
		return Output{Bytes: raw}, ActionAwaitFrame, nil

	case PhaseJoinChannels:
		req, err := mcs.DecodeChannelJoinRequest(rc)
		if err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}
		confirm := mcs.ChannelJoinConfirm{
			Result:             0,
			InitiatorID:        req.InitiatorID,
			RequestedChannelID: req.ChannelID,
			ChannelID:          req.ChannelID,
		}
		raw, err := a.frameDomainPDU(confirm.Encode, confirm.Size())
		if err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}
		if name, ok := a.ctx.channelNameByID[req.ChannelID]; ok {
			a.ctx.joinedChannels[name] = req.ChannelID
		}
		a.ctx.joinsSeen++
		if a.ctx.joinsSeen >= a.ctx.expectedJoins {
			a.state = StateWaitClientInfo
		}
		return Output{Bytes: raw}, ActionAwaitFrame, nil

	default:
		return Output{}, ActionAwaitFrame, wrapErr(ErrorGeneral, a.state, fmt.Errorf("unexpected channel-connection phase"))
	}
}

// --- secureSettingsExchange + licensing -----------------------------------

func (a *Acceptor) doWaitClientInfo(frame []byte) (Output, Action, error) {
	_, data, err := a.unwrapSendData(frame)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}
	rc := pdu.NewReadCursor(data)
	info, err := pdu.DecodeClientInfoPDU(rc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}
	a.ctx.credentials = Credentials{Username: info.UserName, Password: info.Password, Domain: info.Domain}

	lic := pdu.NewValidClientLicenseError()
	licCur := pdu.NewCursor(make([]byte, 0, lic.Size()))
	if err := lic.Encode(licCur); err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}
	licRaw, err := a.frameSendData(a.ctx.ioChannelID, licCur.Bytes())
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}

	demandRaw, err := a.sendDemandActive()
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}

	a.state = StateWaitConfirmActive
	return Output{Bytes: append(licRaw, demandRaw...)}, ActionAwaitFrame, nil
}

// --- capabilitiesExchange -----------------------------------------------

func (a *Acceptor) serverCapabilitySets() []pdu.CapabilitySet {
	general := pdu.NewGeneralCapabilitySet()
	bitmap := pdu.NewBitmapCapabilitySet(a.cfg.DesktopSize.Width, a.cfg.DesktopSize.Height)
	order := pdu.NewOrderCapabilitySet()
	vc := pdu.VirtualChannelCapabilitySet{Flags: 0, VCChunkSize: pdu.DefaultVCChunkSize}
	mfu := pdu.MultifragmentUpdateCapabilitySet{MaxRequestSize: 0x0010_0000}
	ptr := pdu.PointerCapabilitySet{ColorPointerFlag: 1, ColorPointerCacheSize: 20, PointerCacheSize: 20}

	return []pdu.CapabilitySet{
		{CapabilitySetType: pdu.CapabilitySetTypeGeneral, General: &general},
		{CapabilitySetType: pdu.CapabilitySetTypeBitmap, Bitmap: &bitmap},
		{CapabilitySetType: pdu.CapabilitySetTypeOrder, Order: &order},
		{CapabilitySetType: pdu.CapabilitySetTypeVirtualChannel, VirtualChannel: &vc},
		{CapabilitySetType: pdu.CapabilitySetTypeMultifragmentUpdate, MultifragmentUpdate: &mfu},
		{CapabilitySetType: pdu.CapabilitySetTypePointer, Pointer: &ptr},
	}
}

func (a *Acceptor) sendDemandActive() ([]byte, error) {
	demand := pdu.DemandActivePDU{
		ShareID:          a.cfg.shareID(),
		SourceDescriptor: a.cfg.serverName(),
		CapabilitySets:   a.serverCapabilitySets(),
	}
	cur := pdu.NewCursor(make([]byte, 0, demand.Size()))
	if err := demand.Encode(cur); err != nil {
		return nil, err
	}
	return a.frameSendData(a.ctx.ioChannelID, cur.Bytes())
}

func (a *Acceptor) doWaitConfirmActive(frame []byte) (Output, Action, error) {
	_, data, err := a.unwrapSendData(frame)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}
	rc := pdu.NewReadCursor(data)
	ctrl, err := pdu.DecodeShareControlHeader(rc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}
	if !ctrl.PDUType.IsConfirmActive() {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, fmt.Errorf("expected Confirm Active, got share-control type %d", ctrl.PDUType))
	}
	confirm, err := pdu.DecodeConfirmActiveBody(rc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}
	a.ctx.clientCapabilities = confirm.CapabilitySets

	a.state = StateFinalization
	a.finalPhase = PhaseWaitSync
	return Output{}, ActionAwaitFrame, nil
}

// --- connectionFinalization -----------------------------------------------

func (a *Acceptor) doFinalization(frame []byte) (Output, Action, error) {
	_, data, err := a.unwrapSendData(frame)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}
	rc := pdu.NewReadCursor(data)
	ctrl, err := pdu.DecodeShareControlHeader(rc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}
	if !ctrl.PDUType.IsData() {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, fmt.Errorf("expected share-data PDU during finalization"))
	}
	shareHdr, err := pdu.DecodeShareDataHeader(rc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
	}

	switch a.finalPhase {
	case PhaseWaitSync:
		if shareHdr.PDUType2 != pdu.ShareDataTypeSynchronize {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, fmt.Errorf("expected Synchronize, got share-data type 0x%02x", shareHdr.PDUType2))
		}
		if _, err := rc.ReadBytes("Synchronize.Body", 4); err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}

		sync := pdu.SynchronizeData{ShareID: a.cfg.shareID(), UserID: a.ctx.mcsUserID}
		syncCur := pdu.NewCursor(make([]byte, 0, sync.Size()+10))
		if err := sync.Encode(syncCur); err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}
		syncRaw, err := a.frameSendData(a.ctx.ioChannelID, syncCur.Bytes())
		if err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}

		cooperate := pdu.ControlData{ShareID: a.cfg.shareID(), UserID: a.ctx.mcsUserID, Action: pdu.ControlActionCooperate}
		cooperateCur := pdu.NewCursor(make([]byte, 0, cooperate.Size()+14))
		if err := cooperate.Encode(cooperateCur); err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}
		cooperateRaw, err := a.frameSendData(a.ctx.ioChannelID, cooperateCur.Bytes())
		if err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}

		a.finalPhase = PhaseWaitControlRequest
		return Output{Bytes: append(syncRaw, cooperateRaw...)}, ActionAwaitFrame, nil

	case PhaseWaitControlRequest:
		ctl, err := pdu.DecodeControlData(rc)
		if err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}
		if ctl.Action != pdu.ControlActionRequestControl {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, fmt.Errorf("expected Request Control, got action %d", ctl.Action))
		}
		grant := pdu.ControlData{
			ShareID:   a.cfg.shareID(),
			UserID:    a.ctx.mcsUserID,
			Action:    pdu.ControlActionGrantedControl,
			ControlID: uint32(a.ctx.mcsUserID),
		}
		grantCur := pdu.NewCursor(make([]byte, 0, grant.Size()+14))
		if err := grant.Encode(grantCur); err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}
		raw, err := a.frameSendData(a.ctx.ioChannelID, grantCur.Bytes())
		if err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}
		a.finalPhase = PhaseWaitFontList
		return Output{Bytes: raw}, ActionAwaitFrame, nil

	case PhaseWaitFontList:
		if shareHdr.PDUType2 != pdu.ShareDataTypeFontList {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, fmt.Errorf("expected Font List, got share-data type 0x%02x", shareHdr.PDUType2))
		}
		if _, err := rc.ReadBytes("FontList.Body", 8); err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}

		fontMap := pdu.FontMapData{ShareID: a.cfg.shareID(), UserID: a.ctx.mcsUserID}
		fontCur := pdu.NewCursor(make([]byte, 0, fontMap.Size()+14))
		if err := fontMap.Encode(fontCur); err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}
		raw, err := a.frameSendData(a.ctx.ioChannelID, fontCur.Bytes())
		if err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, a.state, err)
		}

		a.state = StateConnected
		return Output{Bytes: raw}, ActionConnected, nil

	default:
		return Output{}, ActionAwaitFrame, wrapErr(ErrorGeneral, a.state, fmt.Errorf("unexpected finalization phase"))
	}
}

// Result returns the finished handshake's output once State() ==
// StateConnected; calling it earlier returns the zero value.
func (a *Acceptor) Result() ConnectionResult {
	return ConnectionResult{
		IOChannelID:        a.ctx.ioChannelID,
		UserChannelID:      a.ctx.mcsUserID,
		JoinedChannels:     a.ctx.joinedChannels,
		DesktopSize:        a.cfg.DesktopSize,
		ClientCapabilities: a.ctx.clientCapabilities,
		Credentials:        a.ctx.credentials,
		ShareID:            a.cfg.shareID(),
		UserID:             a.ctx.mcsUserID,
	}
}
