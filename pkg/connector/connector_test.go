package connector

import (
	"testing"

	"github.com/kulaginds/rdp-core/pkg/gcc"
	"github.com/kulaginds/rdp-core/pkg/mcs"
	"github.com/kulaginds/rdp-core/pkg/pdu"
	"github.com/kulaginds/rdp-core/pkg/x224"
	"github.com/stretchr/testify/require"
)

// fakeServer builds each reply frame a real RDP server would send at every
// phase of the connection sequence, mirroring fakeClient in the acceptor
// package's tests but from the other side of the wire.
type fakeServer struct {
	t         *testing.T
	userID    uint16
	ioChannel uint16
}

func (s *fakeServer) connectionConfirm() []byte {
	s.t.Helper()
	cc := pdu.NewConnectionConfirmSuccess(0, pdu.NegotiationProtocolRDP)
	ccCur := pdu.NewCursor(make([]byte, 0, 8))
	require.NoError(s.t, cc.Encode(ccCur))
	tpdu, err := x224.ConnectionConfirm{NegotiationData: ccCur.Bytes()}.Encode()
	require.NoError(s.t, err)
	return wrapTPKT(tpdu)
}

func (s *fakeServer) connectResponse(ioChannelID uint16, channelNames []string) []byte {
	s.t.Helper()
	core := gcc.ServerCoreData{Version: 0x00080004}
	sec := gcc.ServerSecurityData{EncryptionMethod: gcc.EncryptionMethodNone, EncryptionLevel: 0}
	ids := make([]uint16, len(channelNames))
	for i := range channelNames {
		ids[i] = ioChannelID + 1 + uint16(i)
	}
	net := gcc.ServerNetworkData{MCSChannelID: ioChannelID, ChannelIDs: ids}

	udCur := pdu.NewCursor(make([]byte, 0, core.Size()+sec.Size()+net.Size()))
	require.NoError(s.t, core.Encode(udCur))
	require.NoError(s.t, sec.Encode(udCur))
	require.NoError(s.t, net.Encode(udCur))

	ccResp := gcc.ConferenceCreateResponse{UserData: udCur.Bytes()}
	gccCur := pdu.NewCursor(make([]byte, 0, ccResp.Size()))
	require.NoError(s.t, ccResp.Encode(gccCur))

	cr := mcs.ConnectResponse{
		Result: 0, CalledConnectID: 1,
		Parameters: mcs.ClientTargetParameters(), UserData: gccCur.Bytes(),
	}
	crCur := pdu.NewCursor(make([]byte, 0, cr.Size()))
	require.NoError(s.t, cr.Encode(crCur))

	tpdu, err := x224.WrapData(crCur.Bytes())
	require.NoError(s.t, err)
	return wrapTPKT(tpdu)
}

func (s *fakeServer) domainPDU(v interface {
	Size() int
	Encode(*pdu.Cursor) error
}) []byte {
	s.t.Helper()
	cur := pdu.NewCursor(make([]byte, 0, v.Size()))
	require.NoError(s.t, v.Encode(cur))
	tpdu, err := x224.WrapData(cur.Bytes())
	require.NoError(s.t, err)
	return wrapTPKT(tpdu)
}

func (s *fakeServer) sendData(channelID uint16, payload []byte) []byte {
	s.t.Helper()
	ind := mcs.SendDataIndication{InitiatorID: s.userID, ChannelID: channelID, Data: payload}
	return s.domainPDU(ind)
}

// wrapTPKT mirrors framer.WrapTPKT without importing it twice in tests that
// already import x224/mcs/gcc/pdu, keeping the helper local and obvious.
func wrapTPKT(tpdu []byte) []byte {
	out := make([]byte, 4+len(tpdu))
	out[0] = 3
	out[1] = 0
	out[2] = byte(len(out) >> 8)
	out[3] = byte(len(out))
	copy(out[4:], tpdu)
	return out
}

func TestConnectorFullHandshakeReachesConnected(t *testing.T) {
	cfg := Config{
		Credentials: Credentials{Username: "alice", Password: "s3cret", Domain: "CORP"},
		DesktopSize: DesktopSize{Width: 1920, Height: 1080},
		Channels:    []ChannelSpec{{Name: "cliprdr"}, {Name: "rdpdr"}},
	}
	c := New(cfg)
	server := &fakeServer{}
	server.t = t

	out, action, err := c.Step(Input{})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)
	require.NotEmpty(t, out.Bytes)
	require.Equal(t, StateWaitConfirm, c.State())

	_, action, err = c.Step(Input{Frame: server.connectionConfirm()})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)
	require.Equal(t, StateWaitBasicResponse, c.State())

	const ioChannelID = 1003
	_, action, err = c.Step(Input{Frame: server.connectResponse(ioChannelID, []string{"cliprdr", "rdpdr"})})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)
	require.Equal(t, StateChannelConnection, c.State())
	require.Equal(t, uint16(ioChannelID), c.ctx.ioChannelID)

	_, action, err = c.Step(Input{Frame: server.domainPDU(mcs.AttachUserConfirm{Result: 0, InitiatorID: 1007})})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)
	server.userID = 1007

	// user, io, cliprdr, rdpdr
	joinIDs := []uint16{1007, ioChannelID, ioChannelID + 1, ioChannelID + 2}
	for _, id := range joinIDs {
		_, action, err = c.Step(Input{Frame: server.domainPDU(mcs.ChannelJoinConfirm{Result: 0, InitiatorID: 1007, RequestedChannelID: id, ChannelID: id})})
		require.NoError(t, err)
		require.Equal(t, ActionAwaitFrame, action)
	}
	require.Equal(t, StateLicensing, c.State())

	license := pdu.NewValidClientLicenseError()
	licCur := pdu.NewCursor(nil)
	require.NoError(t, license.Encode(licCur))
	_, action, err = c.Step(Input{Frame: server.sendData(ioChannelID, licCur.Bytes())})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)
	require.Equal(t, StateCapabilitiesExchange, c.State())

	demand := pdu.DemandActivePDU{
		ShareID: 0x000103EA, SourceDescriptor: "server",
		CapabilitySets: []pdu.CapabilitySet{
			{CapabilitySetType: pdu.CapabilitySetTypeGeneral, General: &pdu.GeneralCapabilitySet{}},
		},
	}
	demandCur := pdu.NewCursor(make([]byte, 0, demand.Size()))
	require.NoError(t, demand.Encode(demandCur))
	out, action, err = c.Step(Input{Frame: server.sendData(ioChannelID, demandCur.Bytes())})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)
	require.NotEmpty(t, out.Bytes)
	require.Equal(t, StateFinalization, c.State())

	sync := pdu.SynchronizeData{ShareID: demand.ShareID, UserID: 1}
	syncCur := pdu.NewCursor(nil)
	require.NoError(t, sync.Encode(syncCur))
	_, action, err = c.Step(Input{Frame: server.sendData(ioChannelID, syncCur.Bytes())})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)

	cooperate := pdu.ControlData{ShareID: demand.ShareID, UserID: 1, Action: pdu.ControlActionCooperate}
	coopCur := pdu.NewCursor(nil)
	require.NoError(t, cooperate.Encode(coopCur))
	_, action, err = c.Step(Input{Frame: server.sendData(ioChannelID, coopCur.Bytes())})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)

	granted := pdu.ControlData{ShareID: demand.ShareID, UserID: 1, Action: pdu.ControlActionGrantedControl}
	grantedCur := pdu.NewCursor(nil)
	require.NoError(t, granted.Encode(grantedCur))
	_, action, err = c.Step(Input{Frame: server.sendData(ioChannelID, grantedCur.Bytes())})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)

	fontMap := pdu.FontMapData{}
	fontMapCur := pdu.NewCursor(nil)
	require.NoError(t, fontMap.Encode(fontMapCur))
	_, action, err = c.Step(Input{Frame: server.sendData(ioChannelID, fontMapCur.Bytes())})
	require.NoError(t, err)
	require.Equal(t, ActionConnected, action)
	require.Equal(t, StateConnected, c.State())

	result := c.Result()
	require.Equal(t, uint16(ioChannelID), result.IOChannelID)
	require.Len(t, result.JoinedChannels, 4)
	require.Equal(t, demand.ShareID, result.ShareID)
}

func TestConnectorTLSUpgradeGate(t *testing.T) {
	cfg := Config{EnableTLS: true}
	c := New(cfg)

	_, action, err := c.Step(Input{})
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)

	cc := pdu.NewConnectionConfirmSuccess(0, pdu.NegotiationProtocolSSL)
	ccCur := pdu.NewCursor(make([]byte, 0, 8))
	require.NoError(t, cc.Encode(ccCur))
	tpdu, err := x224.ConnectionConfirm{NegotiationData: ccCur.Bytes()}.Encode()
	require.NoError(t, err)

	_, action, err = c.Step(Input{Frame: wrapTPKT(tpdu)})
	require.NoError(t, err)
	require.Equal(t, ActionPerformSecurityUpgrade, action)
	require.True(t, c.ShouldPerformSecurityUpgrade())
	require.Equal(t, StateUpgradeSecurity, c.State())

	out, action, err := c.MarkSecurityUpgradeAsDone(nil)
	require.NoError(t, err)
	require.Equal(t, ActionAwaitFrame, action)
	require.NotEmpty(t, out.Bytes)
	require.Equal(t, StateWaitBasicResponse, c.State())
}

func TestConnectorCredSSPGateRequestsClientToken(t *testing.T) {
	cfg := Config{EnableCredSSP: true, EnableTLS: true, Credentials: Credentials{Username: "alice", Password: "s3cret"}}
	c := New(cfg)

	_, _, err := c.Step(Input{})
	require.NoError(t, err)

	cc := pdu.NewConnectionConfirmSuccess(0, pdu.NegotiationProtocolHybrid)
	ccCur := pdu.NewCursor(make([]byte, 0, 8))
	require.NoError(t, cc.Encode(ccCur))
	tpdu, err := x224.ConnectionConfirm{NegotiationData: ccCur.Bytes()}.Encode()
	require.NoError(t, err)

	_, action, err := c.Step(Input{Frame: wrapTPKT(tpdu)})
	require.NoError(t, err)
	require.Equal(t, ActionPerformSecurityUpgrade, action)

	out, action, err := c.MarkSecurityUpgradeAsDone([]byte{0xDE, 0xAD})
	require.NoError(t, err)
	require.Equal(t, ActionNeedAuthToken, action)
	require.Empty(t, out.ServerAuthToken)
	require.Equal(t, StateCredssp, c.State())
}
