package acceptor

import (
	"testing"

	"github.com/kulaginds/rdp-core/pkg/framer"
	"github.com/kulaginds/rdp-core/pkg/gcc"
	"github.com/kulaginds/rdp-core/pkg/mcs"
	"github.com/kulaginds/rdp-core/pkg/pdu"
	"github.com/kulaginds/rdp-core/pkg/x224"
	"github.com/stretchr/testify/require"
)

// fakeClient drives the acceptor from the other side of the wire, building
// each request frame the way a real RDP client would at each phase of the
// connection sequence.
type fakeClient struct {
	t         *testing.T
	userID    uint16
	ioChannel uint16
}

func (c *fakeClient) connectionRequest() []byte {
	c.t.Helper()
	neg := pdu.NegotiationRequest{RequestedProtocols: pdu.NegotiationProtocolRDP}
	negCur := pdu.NewCursor(make([]byte, 0, neg.Size()))
	require.NoError(c.t, neg.Encode(negCur))
	req := x224.ConnectionRequest{NegotiationData: negCur.Bytes()}
	raw, err := req.Encode()
	require.NoError(c.t, err)
	return framer.WrapTPKT(raw)
}

func (c *fakeClient) connectInitial() []byte {
	c.t.Helper()
	core := gcc.ClientCoreData{
		Version: 0x00080004, DesktopWidth: 1920, DesktopHeight: 1080,
		ColorDepth: 0xCA01, KeyboardLayout: 0x409, ClientBuild: 1000,
		ClientName: "testclient", KeyboardType: 4, ServerSelectedProtocol: uint32(pdu.NegotiationProtocolRDP),
	}
	sec := gcc.ClientSecurityData{EncryptionMethods: 0}
	net := gcc.ClientNetworkData{Channels: []gcc.ChannelDef{
		{Name: "cliprdr", Options: gcc.ChannelOptionInitialized},
		{Name: "rdpdr", Options: gcc.ChannelOptionInitialized},
	}}

	udCur := pdu.NewCursor(make([]byte, 0, core.Size()+sec.Size()+net.Size()))
	require.NoError(c.t, core.Encode(udCur))
	require.NoError(c.t, sec.Encode(udCur))
	require.NoError(c.t, net.Encode(udCur))

	ccReq := gcc.ConferenceCreateRequest{UserData: udCur.Bytes()}
	gccCur := pdu.NewCursor(make([]byte, 0, ccReq.Size()))
	require.NoError(c.t, ccReq.Encode(gccCur))

	ci := mcs.ConnectInitial{
		Target: mcs.ClientTargetParameters(), Minimum: mcs.ClientMinimumParameters(),
		Maximum: mcs.ClientMaximumParameters(), UserData: gccCur.Bytes(),
	}
	ciCur := pdu.NewCursor(make([]byte, 0, ci.Size()))
	require.NoError(c.t, ci.Encode(ciCur))

	tpdu, err := x224.WrapData(ciCur.Bytes())
	require.NoError(c.t, err)
	return framer.WrapTPKT(tpdu)
}

func (c *fakeClient) domainPDU(v interface {
	Size() int
	Encode(*pdu.Cursor) error
}) []byte {
	c.t.Helper()
	cur := pdu.NewCursor(make([]byte, 0, v.Size()))
	require.NoError(c.t, v.Encode(cur))
	tpdu, err := x224.WrapData(cur.Bytes())
	require.NoError(c.t, err)
	return framer.WrapTPKT(tpdu)
}

func (c *fakeClient) sendData(channelID uint16, payload []byte) []byte {
	c.t.Helper()
	req := mcs.SendDataRequest{InitiatorID: c.userID, ChannelID: channelID, Data: payload}
	return c.domainPDU(req)
}

// runHandshake drives a full acceptor handshake with a minimally valid
// client and returns the acceptor once it reaches StateConnected.
func runHandshake(t *testing.T, cfg Config) *Acceptor {
	t.Helper()
	a := New(cfg)
	client := &fakeClient{t: t}

	out, action, err := a.Step(Input{Frame: client.connectionRequest()})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)
	require.NotEmpty(t, out.Bytes)
	require.Equal(t, StateWaitBasicSettings, a.State())

	out, action, err = a.Step(Input{Frame: client.connectInitial()})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)
	require.NotEmpty(t, out.Bytes)
	require.Equal(t, StateChannelConnection, a.State())

	_, action, err = a.Step(Input{Frame: client.domainPDU(mcs.ErectDomainRequest{})})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)

	out, action, err = a.Step(Input{Frame: client.domainPDU(mcs.AttachUserRequest{})})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)
	confirm, err := mcs.DecodeAttachUserConfirm(pdu.NewReadCursor(stripToMCS(t, out.Bytes)))
	require.NoError(t, err)
	client.userID = confirm.InitiatorID

	// Join order: user channel, I/O channel, then every static channel.
	joinIDs := []uint16{client.userID, 1003, 1004, 1005}
	for _, id := range joinIDs {
		req := mcs.ChannelJoinRequest{InitiatorID: client.userID, ChannelID: id}
		_, action, err = a.Step(Input{Frame: client.domainPDU(req)})
		require.NoError(t, err)
	}
	require.Equal(t, StateWaitClientInfo, a.State())
	client.ioChannel = 1003

	info := pdu.ClientInfoPDU{Flags: pdu.InfoFlagUnicode, UserName: "alice", Password: "s3cret", Domain: "CORP"}
	infoCur := pdu.NewCursor(make([]byte, 0, info.Size()))
	require.NoError(t, info.Encode(infoCur))
	out, action, err = a.Step(Input{Frame: client.sendData(client.ioChannel, infoCur.Bytes())})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)
	require.NotEmpty(t, out.Bytes)
	require.Equal(t, StateWaitConfirmActive, a.State())

	confirmActive := pdu.ConfirmActivePDU{
		ShareID: cfg.shareID(), OriginatorID: 1002, SourceDescriptor: "client",
		CapabilitySets: []pdu.CapabilitySet{
			{CapabilitySetType: pdu.CapabilitySetTypeGeneral, General: &pdu.GeneralCapabilitySet{}},
		},
	}
	_, action, err = a.Step(Input{Frame: client.sendData(client.ioChannel, confirmActiveBytes(t, confirmActive))})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)
	require.Equal(t, StateFinalization, a.State())

	sync := pdu.SynchronizeData{ShareID: cfg.shareID(), UserID: client.userID}
	syncCur := pdu.NewCursor(nil)
	require.NoError(t, sync.Encode(syncCur))
	_, action, err = a.Step(Input{Frame: client.sendData(client.ioChannel, syncCur.Bytes())})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)

	req := pdu.ControlData{ShareID: cfg.shareID(), UserID: client.userID, Action: pdu.ControlActionRequestControl}
	reqCur := pdu.NewCursor(nil)
	require.NoError(t, req.Encode(reqCur))
	_, action, err = a.Step(Input{Frame: client.sendData(client.ioChannel, reqCur.Bytes())})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)

	fontList := pdu.FontListData{ShareID: cfg.shareID(), UserID: client.userID}
	flCur := pdu.NewCursor(nil)
	require.NoError(t, fontList.Encode(flCur))
	out, action, err = a.Step(Input{Frame: client.sendData(client.ioChannel, flCur.Bytes())})
	require.NoError(t, err)
	require.Equal(t, ActionConnected, action)
	require.NotEmpty(t, out.Bytes)
	require.Equal(t, StateConnected, a.State())

	return a
}

func stripToMCS(t *testing.T, frame []byte) []byte {
	t.Helper()
	require.True(t, len(frame) > 4)
	tpdu := frame[4:]
	payload, err := x224.UnwrapData(tpdu)
	require.NoError(t, err)
	return payload
}

func confirmActiveBytes(t *testing.T, p pdu.ConfirmActivePDU) []byte {
	t.Helper()
	c := pdu.NewCursor(make([]byte, 0, p.Size()))
	require.NoError(t, p.Encode(c))
	return c.Bytes()
}

func TestAcceptorFullHandshakeReachesConnected(t *testing.T) {
	a := runHandshake(t, Config{DesktopSize: DesktopSize{Width: 1920, Height: 1080}})

	result := a.Result()
	require.Equal(t, "alice", result.Credentials.Username)
	require.Equal(t, "s3cret", result.Credentials.Password)
	require.Equal(t, "CORP", result.Credentials.Domain)
	require.Equal(t, DesktopSize{Width: 1920, Height: 1080}, result.DesktopSize)
	require.Len(t, result.ClientCapabilities, 1)
	require.Equal(t, uint16(1003), result.IOChannelID)
}

func TestAcceptorRejectsConnectionWhenTLSRequiredButNotOffered(t *testing.T) {
	a := New(Config{Security: SecurityTLS})
	client := &fakeClient{t: t}

	_, _, err := a.Step(Input{Frame: client.connectionRequest()})
	require.Error(t, err)
}

func TestAcceptorSecurityUpgradeGate(t *testing.T) {
	a := New(Config{Security: SecurityTLS})
	neg := pdu.NegotiationRequest{RequestedProtocols: pdu.NegotiationProtocolSSL}
	negCur := pdu.NewCursor(make([]byte, 0, neg.Size()))
	require.NoError(t, neg.Encode(negCur))
	req := x224.ConnectionRequest{NegotiationData: negCur.Bytes()}
	raw, err := req.Encode()
	require.NoError(t, err)

	_, action, err := a.Step(Input{Frame: framer.WrapTPKT(raw)})
	require.NoError(t, err)
	require.Equal(t, ActionPerformSecurityUpgrade, action)
	require.True(t, a.ReachedSecurityUpgrade())

	_, action, err = a.MarkSecurityUpgradeAsDone()
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)
	require.Equal(t, StateWaitBasicSettings, a.State())
}
