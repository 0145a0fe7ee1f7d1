package connector

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
	// from the transport (via its framer) and pass it as Input.Frame.
	ActionAwaitFrame Action = iota
	// ActionPerformSecurityUpgrade means the host must upgrade the
	// transport to TLS now and report the peer certificate's public key
	// via MarkSecurityUpgradeAsDone before calling Step again.
	ActionPerformSecurityUpgrade
	// ActionNeedAuthToken means the host's NTLM/Kerberos collaborator must
	// produce a token (the CredSSP driver's ServerToken field carries the
	// server's most recent token, nil on the first round) and supply it
	// via Input.AuthToken.
	ActionNeedAuthToken
	// ActionConnected means the handshake is complete; call Result.
	ActionConnected
)

// Input is what the host feeds into Step: exactly one of Frame or
// AuthToken is populated, matching whichever Action the previous Step (or
// MarkSecurityUpgradeAsDone) call returned.
type Input struct {
	// Frame is one complete inbound unit: a framer.ReadPdu result during
	// any TPKT-framed state, or the raw bytes read back from the
	// TLS-upgraded stream during StateCredssp (CredSSP runs unframed,
	// directly over TLS, per MS-CSSP).
	Frame []byte
	// AuthToken is the token the host's auth collaborator produced in
	// response to the driver's last CredsspYieldNeedClientToken yield.
	AuthToken []byte
}

// Output is the bytes, if any, the host must write to the transport
// before waiting for the next Action.
type Output struct {
	Bytes []byte
	// ServerAuthToken is the server's most recent CredSSP token, populated
	// only when Action == ActionNeedAuthToken; nil on the very first
	// round, where the host's auth collaborator must produce the
	// initial NTLM negotiate message unprompted.
	ServerAuthToken []byte
}

// Connector drives one client-side RDP connection attempt.
// It owns no I/O: every state transition is a pure function of the
// current state and the Input passed to Step.
type Connector struct {
	cfg Config

	state      State
	chanPhase  ChannelConnectionPhase
	finalPhase FinalizationPhase

	ctx connectionContext

	credssp *CredsspDriver
}

// New constructs a connector ready to begin at StateSendConnectionRequest.
func New(cfg Config) *Connector {
	return &Connector{
		cfg:   cfg,
		state: StateSendConnectionRequest,
		ctx: connectionContext{
			serverChannels: map[string]uint16{},
			joinedChannels: map[string]uint16{},
		},
	}
}

// State reports the connector's current phase.
func (c *Connector) State() State { return c.state }

// ShouldPerformSecurityUpgrade reports whether the connector is waiting
// on the host to perform the TLS upgrade, mirroring the shape of
// rcarmo-go-rdp's single blocking Connect call split into explicit steps.
func (c *Connector) ShouldPerformSecurityUpgrade() bool {
	return c.state == StateUpgradeSecurity
}

func stripTPKT(frame []byte) ([]byte, error) {
	if len(frame) < 4 {
		return nil, fmt.Errorf("connector: frame too short for TPKT header")
	}
	return frame[4:], nil
}

func (c *Connector) frameDomainPDU(encode func(*pdu.Cursor) error, size int) ([]byte, error) {
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

func (c *Connector) frameSendData(channelID uint16, payload []byte) ([]byte, error) {
	req := mcs.SendDataRequest{InitiatorID: c.ctx.mcsUserID, ChannelID: channelID, Data: payload}
	return c.frameDomainPDU(req.Encode, req.Size())
}

// unwrapSendData strips TPKT/X.224/MCS framing from an inbound frame and
// returns the channel ID and payload an MCS SendDataIndication carries.
func (c *Connector) unwrapSendData(frame []byte) (channelID uint16, data []byte, err error) {
	tpdu, err := stripTPKT(frame)
	if err != nil {
		return 0, nil, err
	}
	payload, err := x224.UnwrapData(tpdu)
	if err != nil {
		return 0, nil, err
	}
	rc := pdu.NewReadCursor(payload)
	sdi, err := mcs.DecodeSendDataIndication(rc)
	if err != nil {
		return 0, nil, err
	}
	return sdi.ChannelID, sdi.Data, nil
}

// Step advances the connector by exactly one phase, given whatever the
// previous Action requested. Call it in a loop, driving transport I/O in
// between calls according to the returned Action, until it returns
// ActionConnected.
func (c *Connector) Step(in Input) (Output, Action, error) {
	switch c.state {
	case StateSendConnectionRequest:
		return c.doSendConnectionRequest()
	case StateWaitConfirm:
		return c.doWaitConfirm(in.Frame)
	case StateCredssp:
		return c.doCredssp(in)
	case StateSendBasicSettings:
		return c.doSendBasicSettings()
	case StateWaitBasicResponse:
		return c.doWaitBasicResponse(in.Frame)
	case StateChannelConnection:
		return c.doChannelConnection(in.Frame)
	case StateLicensing:
		return c.doLicensing(in.Frame)
	case StateCapabilitiesExchange:
		return c.doCapabilitiesExchange(in.Frame)
	case StateFinalization:
		return c.doFinalization(in.Frame)
	case StateConnected:
		return Output{}, ActionConnected, nil
	default:
		return Output{}, ActionAwaitFrame, wrapErr(ErrorGeneral, c.state, fmt.Errorf("step called with no pending work"))
	}
}

// --- connectionInitiation ---------------------------------------------

func (c *Connector) doSendConnectionRequest() (Output, Action, error) {
	negReq := pdu.NegotiationRequest{RequestedProtocols: c.cfg.requestedProtocols()}
	negCur := pdu.NewCursor(make([]byte, 0, negReq.Size()))
	if err := negReq.Encode(negCur); err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	req := x224.ConnectionRequest{Cookie: []byte(c.cfg.Cookie), NegotiationData: negCur.Bytes()}
	raw, err := req.Encode()
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	c.state = StateWaitConfirm
	return Output{Bytes: framer.WrapTPKT(raw)}, ActionAwaitFrame, nil
}

func (c *Connector) doWaitConfirm(frame []byte) (Output, Action, error) {
	tpdu, err := stripTPKT(frame)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorGeneral, c.state, err)
	}
	negData, err := x224.DecodeConnectionConfirm(tpdu)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	rc := pdu.NewReadCursor(negData)
	cc, err := pdu.DecodeConnectionConfirm(rc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	if cc.Type.IsFailure() {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorAccessDenied, c.state, fmt.Errorf("server refused negotiation: %s", cc.FailureCode()))
	}
	c.ctx.selectedProtocol = cc.SelectedProtocol()

	if c.ctx.selectedProtocol.IsSSL() || c.ctx.selectedProtocol.IsHybrid() {
		c.state = StateUpgradeSecurity
		return Output{}, ActionPerformSecurityUpgrade, nil
	}
	return c.doSendBasicSettings()
}

// MarkSecurityUpgradeAsDone reports that the host finished the TLS
// upgrade requested by ActionPerformSecurityUpgrade. serverCertPublicKey
// is the DER-encoded SubjectPublicKeyInfo of the server's leaf
// certificate, needed for CredSSP's channel-binding hash.
func (c *Connector) MarkSecurityUpgradeAsDone(serverCertPublicKey []byte) (Output, Action, error) {
	if c.state != StateUpgradeSecurity {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorGeneral, c.state, fmt.Errorf("security upgrade not expected in this state"))
	}
	c.ctx.serverPublicKey = serverCertPublicKey
	if !c.ctx.selectedProtocol.IsHybrid() {
		c.state = StateSendBasicSettings
		return c.doSendBasicSettings()
	}
	c.state = StateCredssp
	c.credssp = NewCredsspDriver(6, serverCertPublicKey, nil, c.cfg.Credentials)
	return c.handleCredsspYield(c.credssp.Start())
}

// --- CredSSP -------------------------------------------------------------

func (c *Connector) doCredssp(in Input) (Output, Action, error) {
	yield, err := c.credssp.Resume(in.AuthToken, in.Frame)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorCredssp, c.state, err)
	}
	return c.handleCredsspYield(yield)
}

func (c *Connector) handleCredsspYield(y CredsspYield) (Output, Action, error) {
	switch y.Kind {
	case CredsspYieldNeedClientToken:
		return Output{ServerAuthToken: y.ServerToken}, ActionNeedAuthToken, nil
	case CredsspYieldTransmit:
		if y.Final {
			// No server reply follows the encrypted-credentials message;
			// advance the driver immediately so the next Step moves on.
			if _, err := c.credssp.Resume(nil, nil); err != nil {
				return Output{}, ActionAwaitFrame, wrapErr(ErrorCredssp, c.state, err)
			}
			c.state = StateSendBasicSettings
			out, action, err := c.doSendBasicSettings()
			return Output{Bytes: append(y.Bytes, out.Bytes...)}, action, err
		}
		return Output{Bytes: y.Bytes}, ActionAwaitFrame, nil
	default:
		c.state = StateSendBasicSettings
		return c.doSendBasicSettings()
	}
}

// --- basicSettingsExchange -----------------------------------------------

func (c *Connector) clientChannelDefs() []gcc.ChannelDef {
	defs := make([]gcc.ChannelDef, len(c.cfg.Channels))
	for i, ch := range c.cfg.Channels {
		defs[i] = gcc.ChannelDef{Name: ch.Name, Options: ch.Options}
	}
	return defs
}

func (c *Connector) doSendBasicSettings() (Output, Action, error) {
	core := gcc.ClientCoreData{
		Version:              0x00080004,
		DesktopWidth:         c.cfg.DesktopSize.Width,
		DesktopHeight:        c.cfg.DesktopSize.Height,
		ColorDepth:           c.cfg.ColorDepth,
		SASSequence:          0xAA03,
		KeyboardLayout:       c.cfg.KeyboardLayout,
		ClientBuild:          c.cfg.ClientBuild,
		ClientName:           c.cfg.ClientName,
		KeyboardType:         4,
		KeyboardFunctionKey:  12,
		EarlyCapabilityFlags: 0x0001, // SUPPORT_ERRINFO_PDU
		ServerSelectedProtocol: uint32(c.ctx.selectedProtocol),
	}
	sec := gcc.ClientSecurityData{EncryptionMethods: gcc.EncryptionMethodNone, ExtEncryptionMethods: 0}
	net := gcc.ClientNetworkData{Channels: c.clientChannelDefs()}

	userDataCur := pdu.NewCursor(make([]byte, 0, core.Size()+sec.Size()+net.Size()))
	if err := core.Encode(userDataCur); err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	if err := sec.Encode(userDataCur); err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	if len(net.Channels) > 0 {
		if err := net.Encode(userDataCur); err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
		}
	}

	ccReq := gcc.ConferenceCreateRequest{UserData: userDataCur.Bytes()}
	gccCur := pdu.NewCursor(make([]byte, 0, ccReq.Size()))
	if err := ccReq.Encode(gccCur); err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}

	ci := mcs.ConnectInitial{
		Target:   mcs.ClientTargetParameters(),
		Minimum:  mcs.ClientMinimumParameters(),
		Maximum:  mcs.ClientMaximumParameters(),
		UserData: gccCur.Bytes(),
	}
	raw, err := c.frameDomainPDU(ci.Encode, ci.Size())
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	c.state = StateWaitBasicResponse
	return Output{Bytes: raw}, ActionAwaitFrame, nil
}

func (c *Connector) doWaitBasicResponse(frame []byte) (Output, Action, error) {
	tpdu, err := stripTPKT(frame)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorGeneral, c.state, err)
	}
	payload, err := x224.UnwrapData(tpdu)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	rc := pdu.NewReadCursor(payload)
	cr, err := mcs.DecodeConnectResponse(rc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	gccRc := pdu.NewReadCursor(cr.UserData)
	ccResp, err := gcc.DecodeConferenceCreateResponse(gccRc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	udRc := pdu.NewReadCursor(ccResp.UserData)
	for udRc.Remaining() > 0 {
		typ, ok := udRc.Peek(2)
		if !ok {
			break
		}
		blockType := uint16(typ[0]) | uint16(typ[1])<<8
		switch blockType {
		case gcc.TypeServerCore:
			core, err := gcc.DecodeServerCoreData(udRc)
			if err != nil {
				return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
			}
			c.ctx.serverCore = core
		case gcc.TypeServerSecurity:
			if _, err := gcc.DecodeServerSecurityData(udRc); err != nil {
				return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
			}
		case gcc.TypeServerNetwork:
			net, err := gcc.DecodeServerNetworkData(udRc)
			if err != nil {
				return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
			}
			c.ctx.ioChannelID = net.MCSChannelID
			for i, ch := range c.cfg.Channels {
				if i < len(net.ChannelIDs) {
					c.ctx.serverChannels[ch.Name] = net.ChannelIDs[i]
				}
			}
		default:
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, fmt.Errorf("unrecognized server GCC block 0x%04x", blockType))
		}
	}

	erect := mcs.ErectDomainRequest{}
	erectRaw, err := c.frameDomainPDU(erect.Encode, erect.Size())
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	attach := mcs.AttachUserRequest{}
	attachRaw, err := c.frameDomainPDU(attach.Encode, attach.Size())
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}

	c.state = StateChannelConnection
	c.chanPhase = PhaseAttachUser
	return Output{Bytes: append(erectRaw, attachRaw...)}, ActionAwaitFrame, nil
}

// --- channelConnection ----------------------------------------------------

func (c *Connector) pendingJoinTargets() []struct {
	name string
	id   uint16
} {
	targets := []struct {
		name string
		id   uint16
	}{
		{"user", c.ctx.userChannelID},
		{"io", c.ctx.ioChannelID},
	}
	for _, ch := range c.cfg.Channels {
		if id, ok := c.ctx.serverChannels[ch.Name]; ok {
			targets = append(targets, struct {
				name string
				id   uint16
			}{ch.Name, id})
		}
	}
	return targets
}

func (c *Connector) doChannelConnection(frame []byte) (Output, Action, error) {
	tpdu, err := stripTPKT(frame)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorGeneral, c.state, err)
	}
	payload, err := x224.UnwrapData(tpdu)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	rc := pdu.NewReadCursor(payload)

	switch c.chanPhase {
	case PhaseAttachUser:
		confirm, err := mcs.DecodeAttachUserConfirm(rc)
		if err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
		}
		if confirm.Result != 0 {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorAccessDenied, c.state, fmt.Errorf("attach-user refused: result %d", confirm.Result))
		}
		c.ctx.mcsUserID = confirm.InitiatorID
		c.ctx.userChannelID = confirm.InitiatorID
		c.ctx.pendingChannels = channelNames(c.pendingJoinTargets())
		c.chanPhase = PhaseJoinChannels
		return c.sendNextChannelJoin()

	case PhaseJoinChannels:
		confirm, err := mcs.DecodeChannelJoinConfirm(rc)
		if err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
		}
		if confirm.Result != 0 {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorAccessDenied, c.state, fmt.Errorf("channel join refused: result %d", confirm.Result))
		}
		if len(c.ctx.pendingChannels) > 0 {
			name := c.ctx.pendingChannels[0]
			c.ctx.joinedChannels[name] = confirm.ChannelID
			c.ctx.pendingChannels = c.ctx.pendingChannels[1:]
		}
		if len(c.ctx.pendingChannels) > 0 {
			return c.sendNextChannelJoin()
		}
		return c.sendClientInfo()

	default:
		return Output{}, ActionAwaitFrame, wrapErr(ErrorGeneral, c.state, fmt.Errorf("unexpected channel-connection phase"))
	}
}

func channelNames(targets []struct {
	name string
	id   uint16
}) []string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.name
	}
	return names
}

func (c *Connector) sendNextChannelJoin() (Output, Action, error) {
	targets := c.pendingJoinTargets()
	var id uint16
	for _, t := range targets {
		if t.name == c.ctx.pendingChannels[0] {
			id = t.id
			break
		}
	}
	req := mcs.ChannelJoinRequest{InitiatorID: c.ctx.mcsUserID, ChannelID: id}
	raw, err := c.frameDomainPDU(req.Encode, req.Size())
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	return Output{Bytes: raw}, ActionAwaitFrame, nil
}

// --- secureSettingsExchange -----------------------------------------------

func (c *Connector) sendClientInfo() (Output, Action, error) {
	info := pdu.ClientInfoPDU{
		Flags:            pdu.InfoFlagMouse | pdu.InfoFlagUnicode | pdu.InfoFlagDisableCtrlAltDel | pdu.InfoFlagLogonNotify | pdu.InfoFlagMaximizeShell,
		Domain:           c.cfg.Credentials.Domain,
		UserName:         c.cfg.Credentials.Username,
		PerformanceFlags: 0,
	}
	// The password is never placed on the wire in cleartext once CredSSP
	// has already authenticated the session; the field only matters for
	// the legacy Standard RDP Security path this connector doesn't
	// implement.
	if !c.cfg.EnableCredSSP {
		info.Password = c.cfg.Credentials.Password
	}
	cur := pdu.NewCursor(make([]byte, 0, info.Size()))
	if err := info.Encode(cur); err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	raw, err := c.frameSendData(c.ctx.ioChannelID, cur.Bytes())
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	c.state = StateLicensing
	return Output{Bytes: raw}, ActionAwaitFrame, nil
}

// --- licensing --------------------------------------------------------

func (c *Connector) doLicensing(frame []byte) (Output, Action, error) {
	_, data, err := c.unwrapSendData(frame)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	rc := pdu.NewReadCursor(data)
	preamble, err := pdu.DecodeLicensePreamble(rc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	if preamble.MsgType != pdu.LicensingMessageTypeErrorAlert {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorAccessDenied, c.state, fmt.Errorf("server requires full license negotiation (msgType 0x%02x), unsupported", preamble.MsgType))
	}
	errMsg, err := pdu.DecodeLicenseErrorMessage(rc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	if !errMsg.IsValidClient() {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorAccessDenied, c.state, fmt.Errorf("license error code 0x%08x", errMsg.ErrorCode))
	}
	c.state = StateCapabilitiesExchange
	return Output{}, ActionAwaitFrame, nil
}

// --- capabilitiesExchange -----------------------------------------------

func (c *Connector) clientCapabilitySets() []pdu.CapabilitySet {
	general := pdu.NewGeneralCapabilitySet()
	bitmap := pdu.NewBitmapCapabilitySet(c.cfg.DesktopSize.Width, c.cfg.DesktopSize.Height)
	order := pdu.NewOrderCapabilitySet()
	input := pdu.NewInputCapabilitySet()
	input.KeyboardLayout = c.cfg.KeyboardLayout
	vc := pdu.VirtualChannelCapabilitySet{Flags: 0, VCChunkSize: pdu.DefaultVCChunkSize}
	mfu := pdu.MultifragmentUpdateCapabilitySet{MaxRequestSize: 0x0010_0000}
	ptr := pdu.PointerCapabilitySet{ColorPointerFlag: 1, ColorPointerCacheSize: 20, PointerCacheSize: 20}

	return []pdu.CapabilitySet{
		{CapabilitySetType: pdu.CapabilitySetTypeGeneral, General: &general},
		{CapabilitySetType: pdu.CapabilitySetTypeBitmap, Bitmap: &bitmap},
		{CapabilitySetType: pdu.CapabilitySetTypeOrder, Order: &order},
		{CapabilitySetType: pdu.CapabilitySetTypeInput, Input: &input},
		{CapabilitySetType: pdu.CapabilitySetTypeVirtualChannel, VirtualChannel: &vc},
		{CapabilitySetType: pdu.CapabilitySetTypeMultifragmentUpdate, MultifragmentUpdate: &mfu},
		{CapabilitySetType: pdu.CapabilitySetTypePointer, Pointer: &ptr},
	}
}

func (c *Connector) doCapabilitiesExchange(frame []byte) (Output, Action, error) {
	_, data, err := c.unwrapSendData(frame)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	rc := pdu.NewReadCursor(data)
	ctrl, err := pdu.DecodeShareControlHeader(rc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	if !ctrl.PDUType.IsDemandActive() {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, fmt.Errorf("expected Demand Active, got share-control type %d", ctrl.PDUType))
	}
	demand, err := pdu.DecodeDemandActiveBody(rc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	c.ctx.demandActive = demand
	c.ctx.shareID = demand.ShareID

	confirm := pdu.ConfirmActivePDU{
		ShareID:          demand.ShareID,
		OriginatorID:     c.ctx.ioChannelID,
		SourceDescriptor: "rdp-core",
		CapabilitySets:   c.clientCapabilitySets(),
	}
	cur := pdu.NewCursor(make([]byte, 0, confirm.Size()))
	if err := confirm.Encode(cur); err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	confirmRaw, err := c.frameSendData(c.ctx.ioChannelID, cur.Bytes())
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}

	sync := pdu.SynchronizeData{ShareID: demand.ShareID, UserID: c.ctx.mcsUserID}
	syncCur := pdu.NewCursor(make([]byte, 0, sync.Size()+10))
	if err := sync.Encode(syncCur); err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	syncRaw, err := c.frameSendData(c.ctx.ioChannelID, syncCur.Bytes())
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}

	cooperate := pdu.ControlData{ShareID: demand.ShareID, UserID: c.ctx.mcsUserID, Action: pdu.ControlActionCooperate}
	cooperateCur := pdu.NewCursor(make([]byte, 0, cooperate.Size()+14))
	if err := cooperate.Encode(cooperateCur); err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	cooperateRaw, err := c.frameSendData(c.ctx.ioChannelID, cooperateCur.Bytes())
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}

	request := pdu.ControlData{ShareID: demand.ShareID, UserID: c.ctx.mcsUserID, Action: pdu.ControlActionRequestControl}
	requestCur := pdu.NewCursor(make([]byte, 0, request.Size()+14))
	if err := request.Encode(requestCur); err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	requestRaw, err := c.frameSendData(c.ctx.ioChannelID, requestCur.Bytes())
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}

	fontList := pdu.FontListData{ShareID: demand.ShareID, UserID: c.ctx.mcsUserID}
	fontCur := pdu.NewCursor(make([]byte, 0, fontList.Size()+14))
	if err := fontList.Encode(fontCur); err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	fontRaw, err := c.frameSendData(c.ctx.ioChannelID, fontCur.Bytes())
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}

	out := append(confirmRaw, syncRaw...)
	out = append(out, cooperateRaw...)
	out = append(out, requestRaw...)
	out = append(out, fontRaw...)

	c.state = StateFinalization
	c.finalPhase = PhaseSync
	return Output{Bytes: out}, ActionAwaitFrame, nil
}

// --- connectionFinalization -----------------------------------------------

func (c *Connector) doFinalization(frame []byte) (Output, Action, error) {
	_, data, err := c.unwrapSendData(frame)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	rc := pdu.NewReadCursor(data)
	ctrl, err := pdu.DecodeShareControlHeader(rc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}
	if !ctrl.PDUType.IsData() {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, fmt.Errorf("expected share-data PDU during finalization"))
	}
	shareHdr, err := pdu.DecodeShareDataHeader(rc)
	if err != nil {
		return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
	}

	switch c.finalPhase {
	case PhaseSync:
		if shareHdr.PDUType2 != pdu.ShareDataTypeSynchronize {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, fmt.Errorf("expected Synchronize, got share-data type 0x%02x", shareHdr.PDUType2))
		}
		if _, err := rc.ReadBytes("Synchronize.Body", 4); err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
		}
		c.finalPhase = PhaseControlCooperate
	case PhaseControlCooperate:
		ctl, err := pdu.DecodeControlData(rc)
		if err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
		}
		if ctl.Action != pdu.ControlActionCooperate {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, fmt.Errorf("expected Control Cooperate, got action %d", ctl.Action))
		}
		c.finalPhase = PhaseControlRequest
	case PhaseControlRequest:
		ctl, err := pdu.DecodeControlData(rc)
		if err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
		}
		if ctl.Action != pdu.ControlActionGrantedControl {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, fmt.Errorf("expected Granted Control, got action %d", ctl.Action))
		}
		c.finalPhase = PhaseFont
	case PhaseFont:
		if _, err := pdu.DecodeFontMapData(rc); err != nil {
			return Output{}, ActionAwaitFrame, wrapErr(ErrorPdu, c.state, err)
		}
		c.finalPhase = PhaseFinalizeResponse
		c.state = StateConnected
		return Output{}, ActionConnected, nil
	}
	return Output{}, ActionAwaitFrame, nil
}

// Result returns the finished handshake's output once State() ==
// StateConnected; calling it earlier returns the zero value.
func (c *Connector) Result() ConnectionResult {
	return ConnectionResult{
		IOChannelID:         c.ctx.ioChannelID,
		UserChannelID:       c.ctx.userChannelID,
		GlobalChannelID:     c.ctx.ioChannelID,
		JoinedChannels:      c.ctx.joinedChannels,
		DesktopSize:         c.cfg.DesktopSize,
		GeneralCapabilities: pdu.NewGeneralCapabilitySet(),
		InputCapabilities:   pdu.NewInputCapabilitySet(),
		ShareID:             c.ctx.shareID,
		UserID:              c.ctx.mcsUserID,
		CorrelationID:       c.ctx.correlationID,
	}
}
