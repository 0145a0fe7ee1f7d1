package gcc

import (
	"testing"

	"github.com/kulaginds/rdp-core/pkg/pdu"
	"github.com/stretchr/testify/require"
)

func roundtrip[T pdu.Codec](t *testing.T, v T, decode pdu.Decoder[T]) T {
	t.Helper()
	buf := make([]byte, 0, v.Size())
	c := pdu.NewCursor(buf)
	require.NoError(t, v.Encode(c))
	require.Len(t, c.Bytes(), v.Size())

	rc := pdu.NewReadCursor(c.Bytes())
	got, err := decode(rc)
	require.NoError(t, err)
	require.Equal(t, 0, rc.Remaining())
	return got
}

func TestClientCoreDataRoundtrip(t *testing.T) {
	d := ClientCoreData{
		Version:                0x00080004,
		DesktopWidth:           1920,
		DesktopHeight:          1080,
		ColorDepth:             0xCA01,
		SASSequence:            0xAA03,
		KeyboardLayout:         0x409,
		ClientBuild:            19041,
		ClientName:             "workstation1",
		KeyboardType:           4,
		KeyboardFunctionKey:    12,
		EarlyCapabilityFlags:   0x1F,
		ClientDigProductId:     "ABC123",
		ConnectionType:         6,
		ServerSelectedProtocol: 2,
		DesktopOrientation:     0,
		DesktopScaleFactor:     100,
		DeviceScaleFactor:      100,
	}
	got := roundtrip[ClientCoreData](t, d, DecodeClientCoreData)
	require.Equal(t, d.DesktopWidth, got.DesktopWidth)
	require.Equal(t, d.ClientName, got.ClientName)
	require.Equal(t, d.ClientDigProductId, got.ClientDigProductId)
	require.Equal(t, d.ServerSelectedProtocol, got.ServerSelectedProtocol)
}

func TestClientSecurityDataRoundtrip(t *testing.T) {
	d := ClientSecurityData{EncryptionMethods: EncryptionMethodNone, ExtEncryptionMethods: 0}
	got := roundtrip[ClientSecurityData](t, d, DecodeClientSecurityData)
	require.Equal(t, d, got)
}

func TestServerSecurityDataRoundtrip(t *testing.T) {
	d := ServerSecurityData{EncryptionMethod: EncryptionMethodNone, EncryptionLevel: EncryptionLevelNone}
	got := roundtrip[ServerSecurityData](t, d, DecodeServerSecurityData)
	require.Equal(t, d, got)
}

func TestClientNetworkDataRoundtrip(t *testing.T) {
	d := ClientNetworkData{Channels: []ChannelDef{
		{Name: "cliprdr", Options: ChannelOptionInitialized | ChannelOptionCompressRDP},
		{Name: "rdpdr", Options: ChannelOptionInitialized},
	}}
	got := roundtrip[ClientNetworkData](t, d, DecodeClientNetworkData)
	require.Equal(t, d, got)
}

func TestServerNetworkDataRoundtripOddChannelCount(t *testing.T) {
	d := ServerNetworkData{MCSChannelID: 1003, ChannelIDs: []uint16{1004, 1005, 1006}}
	got := roundtrip[ServerNetworkData](t, d, DecodeServerNetworkData)
	require.Equal(t, d, got)
}

func TestClientClusterDataPacksVersionIntoFlags(t *testing.T) {
	d := ClientClusterData{RedirectionSupported: true, RedirectionVersion: 6, RedirectedSessionID: 42}
	got := roundtrip[ClientClusterData](t, d, DecodeClientClusterData)
	require.Equal(t, d, got)
}

func TestClientClusterDataSetsBothLowFlagBitsWhenSessionRedirected(t *testing.T) {
	d := ClientClusterData{RedirectionSupported: true, RedirectionVersion: 4, RedirectedSessionID: 7}
	require.Equal(t, ClusterFlagRedirectionSupported|ClusterFlagRedirectedSessionIDFieldValid, d.flags()&0x3)

	c := pdu.NewCursor(make([]byte, 0, d.Size()))
	require.NoError(t, d.Encode(c))

	got, err := DecodeClientClusterData(pdu.NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestClientClusterDataOmitsSessionIDFieldValidWhenUnset(t *testing.T) {
	d := ClientClusterData{RedirectionSupported: true, RedirectedSessionID: 0}
	require.Zero(t, d.flags()&ClusterFlagRedirectedSessionIDFieldValid)

	got := roundtrip[ClientClusterData](t, d, DecodeClientClusterData)
	require.Equal(t, d, got)
}

func TestClientMonitorDataRejectsTooMany(t *testing.T) {
	monitors := make([]Monitor, MaxMonitors+1)
	d := ClientMonitorData{Monitors: monitors}
	c := pdu.NewCursor(make([]byte, 0, d.Size()))
	require.Error(t, d.Encode(c))
}

func TestClientMonitorDataRoundtripNegativeCoordinates(t *testing.T) {
	d := ClientMonitorData{Monitors: []Monitor{
		{Rect: MonitorRect{Left: 0, Top: 0, Right: 1919, Bottom: 1079}, Primary: true},
		{Rect: MonitorRect{Left: -1024, Top: 0, Right: -1, Bottom: 767}, Primary: false},
	}}
	got := roundtrip[ClientMonitorData](t, d, DecodeClientMonitorData)
	require.Equal(t, d, got)
}

// This fixture is the 2-monitor example whose DisplayControlMonitorLayout
// encoding is cross-checked in pkg/pdu/rdpedisp against the same topology.
func TestClientMonitorExtendedDataRoundtrip(t *testing.T) {
	d := ClientMonitorExtendedData{Monitors: []ExtendedMonitorInfo{
		{PhysicalWidth: 520, PhysicalHeight: 320, Orientation: OrientationLandscape, DesktopScaleFactor: 150, DeviceScaleFactor: 100},
		{PhysicalWidth: 280, PhysicalHeight: 460, Orientation: OrientationPortrait, DesktopScaleFactor: 100, DeviceScaleFactor: 100},
	}}
	got := roundtrip[ClientMonitorExtendedData](t, d, DecodeClientMonitorExtendedData)
	require.Equal(t, d, got)
}

func TestClientMonitorExtendedDataRejectsBadOrientation(t *testing.T) {
	d := ClientMonitorExtendedData{Monitors: []ExtendedMonitorInfo{
		{PhysicalWidth: 1, PhysicalHeight: 1, Orientation: 45},
	}}
	c := pdu.NewCursor(make([]byte, 0, d.Size()))
	require.Error(t, d.Encode(c))
}
