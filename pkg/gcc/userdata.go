package gcc

import "github.com/kulaginds/rdp-core/pkg/pdu"

// GCC user-data block headers (MS-RDPBCGR 2.2.1.3). Each block is a 2-byte
// type, a 2-byte length (inclusive of this 4-byte header), and a payload.
const (
	TypeClientCore           uint16 = 0xC001
	TypeClientSecurity       uint16 = 0xC002
	TypeClientNetwork        uint16 = 0xC003
	TypeClientCluster        uint16 = 0xC004
	TypeClientMonitor        uint16 = 0xC005
	TypeClientMonitorExtended uint16 = 0xC008
	TypeServerCore           uint16 = 0x0C01
	TypeServerSecurity       uint16 = 0x0C02
	TypeServerNetwork        uint16 = 0x0C03
)

func writeHeader(c *pdu.Cursor, typ uint16, payloadLen int) {
	c.WriteU16LE(typ)
	c.WriteU16LE(uint16(4 + payloadLen))
}

func readHeader(c *pdu.ReadCursor, field string, want uint16) (length int, err error) {
	typ, err := c.ReadU16LE(field + ".Type")
	if err != nil {
		return 0, err
	}
	if typ != want {
		return 0, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: field + ".Type", Got: uint32(typ)}
	}
	total, err := c.ReadU16LE(field + ".Length")
	if err != nil {
		return 0, err
	}
	if int(total) < 4 {
		return 0, &pdu.DecodeError{Kind: pdu.InvalidField, Field: field + ".Length", Reason: "shorter than header"}
	}
	return int(total) - 4, nil
}

// ClientCoreData is the TS_UD_CS_CORE block (MS-RDPBCGR 2.2.1.3.2).
type ClientCoreData struct {
	Version                uint32
	DesktopWidth           uint16
	DesktopHeight          uint16
	ColorDepth             uint16 // legacy, 0xCA01 (RNS_UD_COLOR_8BPP)
	SASSequence            uint16 // 0xAA03 (RNS_UD_SAS_DEL)
	KeyboardLayout         uint32
	ClientBuild            uint32
	ClientName             string // up to 15 chars, NUL-padded to 32 bytes
	KeyboardType           uint32
	KeyboardSubType        uint32
	KeyboardFunctionKey    uint32
	ImeFileName            string // up to 31 chars, NUL-padded to 64 bytes
	PostBeta2ColorDepth    uint16
	ClientProductId        uint16
	SerialNumber           uint32
	HighColorDepth         uint16
	SupportedColorDepths   uint16
	EarlyCapabilityFlags   uint16
	ClientDigProductId     string // up to 31 chars, NUL-padded to 64 bytes
	ConnectionType         uint8
	ServerSelectedProtocol uint32
	DesktopPhysicalWidth   uint32
	DesktopPhysicalHeight  uint32
	DesktopOrientation     uint16
	DesktopScaleFactor     uint32
	DeviceScaleFactor      uint32
}

func (d ClientCoreData) payloadSize() int { return 128 + 14 + 64 + 2 + 4 + 18 }

func (d ClientCoreData) Size() int { return 4 + d.payloadSize() }

func writeFixedUTF16(c *pdu.Cursor, s string, byteLen int) {
	runes := []rune(s)
	maxChars := byteLen/2 - 1
	if len(runes) > maxChars {
		runes = runes[:maxChars]
	}
	c.WriteUTF16LE(string(runes))
	c.WriteBytes(make([]byte, byteLen-len(runes)*2))
}

func readFixedUTF16(c *pdu.ReadCursor, field string, byteLen int) (string, error) {
	return c.ReadUTF16LE(field, byteLen/2, true)
}

func (d ClientCoreData) Encode(c *pdu.Cursor) error {
	writeHeader(c, TypeClientCore, d.payloadSize())
	c.WriteU32LE(d.Version)
	c.WriteU16LE(d.DesktopWidth)
	c.WriteU16LE(d.DesktopHeight)
	c.WriteU16LE(d.ColorDepth)
	c.WriteU16LE(d.SASSequence)
	c.WriteU32LE(d.KeyboardLayout)
	c.WriteU32LE(d.ClientBuild)
	writeFixedUTF16(c, d.ClientName, 32)
	c.WriteU32LE(d.KeyboardType)
	c.WriteU32LE(d.KeyboardSubType)
	c.WriteU32LE(d.KeyboardFunctionKey)
	writeFixedUTF16(c, d.ImeFileName, 64)
	c.WriteU16LE(d.PostBeta2ColorDepth)
	c.WriteU16LE(d.ClientProductId)
	c.WriteU32LE(d.SerialNumber)
	c.WriteU16LE(d.HighColorDepth)
	c.WriteU16LE(d.SupportedColorDepths)
	c.WriteU16LE(d.EarlyCapabilityFlags)
	writeFixedUTF16(c, d.ClientDigProductId, 64)
	c.WriteU8(d.ConnectionType)
	c.WriteU8(0) // pad1octet
	c.WriteU32LE(d.ServerSelectedProtocol)
	c.WriteU32LE(d.DesktopPhysicalWidth)
	c.WriteU32LE(d.DesktopPhysicalHeight)
	c.WriteU16LE(d.DesktopOrientation)
	c.WriteU32LE(d.DesktopScaleFactor)
	c.WriteU32LE(d.DeviceScaleFactor)
	return nil
}

// DecodeClientCoreData decodes only up to the bytes present: later fields
// (added across RDP versions) are optional and left zero-valued when the
// block is shorter than the full structure, matching the teacher's
// forward-compatible parsing in basic_settings_exchange.go.
func DecodeClientCoreData(c *pdu.ReadCursor) (ClientCoreData, error) {
	var d ClientCoreData
	length, err := readHeader(c, "ClientCoreData", TypeClientCore)
	if err != nil {
		return d, err
	}
	end := c.Remaining() - length
	if d.Version, err = c.ReadU32LE("ClientCoreData.Version"); err != nil {
		return d, err
	}
	if d.DesktopWidth, err = c.ReadU16LE("ClientCoreData.DesktopWidth"); err != nil {
		return d, err
	}
	if d.DesktopHeight, err = c.ReadU16LE("ClientCoreData.DesktopHeight"); err != nil {
		return d, err
	}
	if d.ColorDepth, err = c.ReadU16LE("ClientCoreData.ColorDepth"); err != nil {
		return d, err
	}
	if d.SASSequence, err = c.ReadU16LE("ClientCoreData.SASSequence"); err != nil {
		return d, err
	}
	if d.KeyboardLayout, err = c.ReadU32LE("ClientCoreData.KeyboardLayout"); err != nil {
		return d, err
	}
	if d.ClientBuild, err = c.ReadU32LE("ClientCoreData.ClientBuild"); err != nil {
		return d, err
	}
	if d.ClientName, err = readFixedUTF16(c, "ClientCoreData.ClientName", 32); err != nil {
		return d, err
	}
	if d.KeyboardType, err = c.ReadU32LE("ClientCoreData.KeyboardType"); err != nil {
		return d, err
	}
	if d.KeyboardSubType, err = c.ReadU32LE("ClientCoreData.KeyboardSubType"); err != nil {
		return d, err
	}
	if d.KeyboardFunctionKey, err = c.ReadU32LE("ClientCoreData.KeyboardFunctionKey"); err != nil {
		return d, err
	}
	if d.ImeFileName, err = readFixedUTF16(c, "ClientCoreData.ImeFileName", 64); err != nil {
		return d, err
	}
	for _, step := range []struct {
		name string
		f    func() error
	}{
		{"PostBeta2ColorDepth", func() (err error) { d.PostBeta2ColorDepth, err = c.ReadU16LE("ClientCoreData.PostBeta2ColorDepth"); return }},
		{"ClientProductId", func() (err error) { d.ClientProductId, err = c.ReadU16LE("ClientCoreData.ClientProductId"); return }},
		{"SerialNumber", func() (err error) { d.SerialNumber, err = c.ReadU32LE("ClientCoreData.SerialNumber"); return }},
		{"HighColorDepth", func() (err error) { d.HighColorDepth, err = c.ReadU16LE("ClientCoreData.HighColorDepth"); return }},
		{"SupportedColorDepths", func() (err error) { d.SupportedColorDepths, err = c.ReadU16LE("ClientCoreData.SupportedColorDepths"); return }},
		{"EarlyCapabilityFlags", func() (err error) { d.EarlyCapabilityFlags, err = c.ReadU16LE("ClientCoreData.EarlyCapabilityFlags"); return }},
	} {
		if c.Remaining() <= end {
			return d, nil
		}
		if err := step.f(); err != nil {
			return d, err
		}
	}
	if c.Remaining() <= end {
		return d, nil
	}
	if d.ClientDigProductId, err = readFixedUTF16(c, "ClientCoreData.ClientDigProductId", 64); err != nil {
		return d, err
	}
	if c.Remaining() <= end {
		return d, nil
	}
	if d.ConnectionType, err = c.ReadU8("ClientCoreData.ConnectionType"); err != nil {
		return d, err
	}
	if _, err = c.ReadU8("ClientCoreData.Pad1Octet"); err != nil {
		return d, err
	}
	if c.Remaining() <= end {
		return d, nil
	}
	proto, err := c.ReadU32LE("ClientCoreData.ServerSelectedProtocol")
	if err != nil {
		return d, err
	}
	d.ServerSelectedProtocol = proto
	if c.Remaining() <= end {
		return d, nil
	}
	if d.DesktopPhysicalWidth, err = c.ReadU32LE("ClientCoreData.DesktopPhysicalWidth"); err != nil {
		return d, err
	}
	if d.DesktopPhysicalHeight, err = c.ReadU32LE("ClientCoreData.DesktopPhysicalHeight"); err != nil {
		return d, err
	}
	if d.DesktopOrientation, err = c.ReadU16LE("ClientCoreData.DesktopOrientation"); err != nil {
		return d, err
	}
	if d.DesktopScaleFactor, err = c.ReadU32LE("ClientCoreData.DesktopScaleFactor"); err != nil {
		return d, err
	}
	if d.DeviceScaleFactor, err = c.ReadU32LE("ClientCoreData.DeviceScaleFactor"); err != nil {
		return d, err
	}
	return d, nil
}

// ServerCoreData is the TS_UD_SC_CORE block (MS-RDPBCGR 2.2.1.4.2).
type ServerCoreData struct {
	Version                  uint32
	ClientRequestedProtocols uint32
	EarlyCapabilityFlags     uint32
}

func (d ServerCoreData) Size() int { return 4 + 4 + 4 + 4 }

func (d ServerCoreData) Encode(c *pdu.Cursor) error {
	writeHeader(c, TypeServerCore, d.Size()-4)
	c.WriteU32LE(d.Version)
	c.WriteU32LE(d.ClientRequestedProtocols)
	c.WriteU32LE(d.EarlyCapabilityFlags)
	return nil
}

func DecodeServerCoreData(c *pdu.ReadCursor) (ServerCoreData, error) {
	var d ServerCoreData
	length, err := readHeader(c, "ServerCoreData", TypeServerCore)
	if err != nil {
		return d, err
	}
	end := c.Remaining() - length
	if d.Version, err = c.ReadU32LE("ServerCoreData.Version"); err != nil {
		return d, err
	}
	if c.Remaining() <= end {
		return d, nil
	}
	if d.ClientRequestedProtocols, err = c.ReadU32LE("ServerCoreData.ClientRequestedProtocols"); err != nil {
		return d, err
	}
	if c.Remaining() <= end {
		return d, nil
	}
	if d.EarlyCapabilityFlags, err = c.ReadU32LE("ServerCoreData.EarlyCapabilityFlags"); err != nil {
		return d, err
	}
	return d, nil
}

// Encryption methods/level negotiated in the Security Data blocks. Since
// this implementation only supports TLS/CredSSP external security,
// these are always zero on the wire: ENCRYPTION_METHOD_NONE /
// ENCRYPTION_LEVEL_NONE.
const (
	EncryptionMethodNone uint32 = 0x00000000
	EncryptionLevelNone  uint32 = 0x00000000
)

// ClientSecurityData is the TS_UD_CS_SEC block (MS-RDPBCGR 2.2.1.3.3).
type ClientSecurityData struct {
	EncryptionMethods    uint32
	ExtEncryptionMethods uint32
}

func (d ClientSecurityData) Size() int { return 4 + 4 + 4 }

func (d ClientSecurityData) Encode(c *pdu.Cursor) error {
	writeHeader(c, TypeClientSecurity, d.Size()-4)
	c.WriteU32LE(d.EncryptionMethods)
	c.WriteU32LE(d.ExtEncryptionMethods)
	return nil
}

func DecodeClientSecurityData(c *pdu.ReadCursor) (ClientSecurityData, error) {
	var d ClientSecurityData
	if _, err := readHeader(c, "ClientSecurityData", TypeClientSecurity); err != nil {
		return d, err
	}
	var err error
	if d.EncryptionMethods, err = c.ReadU32LE("ClientSecurityData.EncryptionMethods"); err != nil {
		return d, err
	}
	if d.ExtEncryptionMethods, err = c.ReadU32LE("ClientSecurityData.ExtEncryptionMethods"); err != nil {
		return d, err
	}
	return d, nil
}

// ServerSecurityData is the TS_UD_SC_SEC1 block (MS-RDPBCGR 2.2.1.4.3),
// carrying no server random/certificate since external security negotiation
// leaves encryption level at NONE.
type ServerSecurityData struct {
	EncryptionMethod uint32
	EncryptionLevel  uint32
}

func (d ServerSecurityData) Size() int { return 4 + 4 + 4 }

func (d ServerSecurityData) Encode(c *pdu.Cursor) error {
	writeHeader(c, TypeServerSecurity, d.Size()-4)
	c.WriteU32LE(d.EncryptionMethod)
	c.WriteU32LE(d.EncryptionLevel)
	return nil
}

func DecodeServerSecurityData(c *pdu.ReadCursor) (ServerSecurityData, error) {
	var d ServerSecurityData
	length, err := readHeader(c, "ServerSecurityData", TypeServerSecurity)
	if err != nil {
		return d, err
	}
	end := c.Remaining() - length
	if d.EncryptionMethod, err = c.ReadU32LE("ServerSecurityData.EncryptionMethod"); err != nil {
		return d, err
	}
	if d.EncryptionLevel, err = c.ReadU32LE("ServerSecurityData.EncryptionLevel"); err != nil {
		return d, err
	}
	if c.Remaining() > end {
		// serverRandomLen/serverCertLen and trailing data present; skip,
		// we never consult them under external security negotiation.
		remaining := c.Remaining() - end
		if _, err := c.ReadBytes("ServerSecurityData.Trailer", remaining); err != nil {
			return d, err
		}
	}
	return d, nil
}

// ChannelDef names one static virtual channel a client offers (MS-RDPBCGR
// 2.2.1.3.4.1).
type ChannelDef struct {
	Name    string // up to 7 ASCII chars
	Options uint32
}

const (
	ChannelOptionInitialized uint32 = 0x80000000
	ChannelOptionEncryptRDP  uint32 = 0x40000000
	ChannelOptionCompressRDP uint32 = 0x00800000
	ChannelOptionShowProtocol uint32 = 0x00200000
)

// ClientNetworkData is the TS_UD_CS_NET block (MS-RDPBCGR 2.2.1.3.4).
type ClientNetworkData struct {
	Channels []ChannelDef
}

func (d ClientNetworkData) Size() int { return 4 + 4 + 8*len(d.Channels) }

func (d ClientNetworkData) Encode(c *pdu.Cursor) error {
	writeHeader(c, TypeClientNetwork, d.Size()-4)
	c.WriteU32LE(uint32(len(d.Channels)))
	for _, ch := range d.Channels {
		name := [8]byte{}
		copy(name[:], ch.Name)
		c.WriteBytes(name[:])
		c.WriteU32LE(ch.Options)
	}
	return nil
}

func DecodeClientNetworkData(c *pdu.ReadCursor) (ClientNetworkData, error) {
	var d ClientNetworkData
	if _, err := readHeader(c, "ClientNetworkData", TypeClientNetwork); err != nil {
		return d, err
	}
	count, err := c.ReadU32LE("ClientNetworkData.ChannelCount")
	if err != nil {
		return d, err
	}
	d.Channels = make([]ChannelDef, count)
	for i := range d.Channels {
		name, err := c.ReadBytes("ClientNetworkData.Channel.Name", 8)
		if err != nil {
			return d, err
		}
		end := 0
		for end < len(name) && name[end] != 0 {
			end++
		}
		d.Channels[i].Name = string(name[:end])
		if d.Channels[i].Options, err = c.ReadU32LE("ClientNetworkData.Channel.Options"); err != nil {
			return d, err
		}
	}
	return d, nil
}

// ServerNetworkData is the TS_UD_SC_NET block (MS-RDPBCGR 2.2.1.4.4),
// assigning each requested channel its MCS channel ID.
type ServerNetworkData struct {
	MCSChannelID uint16
	ChannelIDs   []uint16
}

func (d ServerNetworkData) Size() int {
	n := 2 + 2 + 2*len(d.ChannelIDs)
	if len(d.ChannelIDs)%2 == 1 {
		n += 2 // Pad2Octets
	}
	return 4 + n
}

func (d ServerNetworkData) Encode(c *pdu.Cursor) error {
	writeHeader(c, TypeServerNetwork, d.Size()-4)
	c.WriteU16LE(d.MCSChannelID)
	c.WriteU16LE(uint16(len(d.ChannelIDs)))
	for _, id := range d.ChannelIDs {
		c.WriteU16LE(id)
	}
	if len(d.ChannelIDs)%2 == 1 {
		c.WriteU16LE(0)
	}
	return nil
}

func DecodeServerNetworkData(c *pdu.ReadCursor) (ServerNetworkData, error) {
	var d ServerNetworkData
	length, err := readHeader(c, "ServerNetworkData", TypeServerNetwork)
	if err != nil {
		return d, err
	}
	end := c.Remaining() - length
	if d.MCSChannelID, err = c.ReadU16LE("ServerNetworkData.MCSChannelID"); err != nil {
		return d, err
	}
	count, err := c.ReadU16LE("ServerNetworkData.ChannelCount")
	if err != nil {
		return d, err
	}
	d.ChannelIDs = make([]uint16, count)
	for i := range d.ChannelIDs {
		if d.ChannelIDs[i], err = c.ReadU16LE("ServerNetworkData.ChannelID"); err != nil {
			return d, err
		}
	}
	if c.Remaining() > end {
		if _, err := c.ReadU16LE("ServerNetworkData.Pad2Octets"); err != nil {
			return d, err
		}
	}
	return d, nil
}

// Cluster redirection flags (MS-RDPBCGR 2.2.1.3.5). The redirection version
// is packed into bits 2-5 of Flags.
const (
	ClusterFlagRedirectionSupported                uint32 = 0x00000001
	ClusterFlagRedirectedSessionIDFieldValid       uint32 = 0x00000002
	ClusterFlagServerSessionRedirectionVersionMask uint32 = 0x0000003C
	ClusterFlagRedirectedSmartcard                  uint32 = 0x00000040
)

// ClientClusterData is the TS_UD_CS_CLUSTER block (MS-RDPBCGR 2.2.1.3.5).
type ClientClusterData struct {
	RedirectionSupported bool
	RedirectionVersion   uint8 // 0-15, packed into Flags bits 2-5
	RedirectedSessionID  uint32
}

func (d ClientClusterData) flags() uint32 {
	var f uint32
	if d.RedirectionSupported {
		f |= ClusterFlagRedirectionSupported
	}
	if d.RedirectedSessionID != 0 {
		f |= ClusterFlagRedirectedSessionIDFieldValid
	}
	f |= (uint32(d.RedirectionVersion) << 2) & ClusterFlagServerSessionRedirectionVersionMask
	return f
}

func (d ClientClusterData) Size() int { return 4 + 4 + 4 }

func (d ClientClusterData) Encode(c *pdu.Cursor) error {
	writeHeader(c, TypeClientCluster, d.Size()-4)
	c.WriteU32LE(d.flags())
	c.WriteU32LE(d.RedirectedSessionID)
	return nil
}

func DecodeClientClusterData(c *pdu.ReadCursor) (ClientClusterData, error) {
	var d ClientClusterData
	if _, err := readHeader(c, "ClientClusterData", TypeClientCluster); err != nil {
		return d, err
	}
	flags, err := c.ReadU32LE("ClientClusterData.Flags")
	if err != nil {
		return d, err
	}
	d.RedirectionSupported = flags&ClusterFlagRedirectionSupported != 0
	d.RedirectionVersion = uint8((flags & ClusterFlagServerSessionRedirectionVersionMask) >> 2)
	sessionID, err := c.ReadU32LE("ClientClusterData.RedirectedSessionID")
	if err != nil {
		return d, err
	}
	if flags&ClusterFlagRedirectedSessionIDFieldValid != 0 {
		d.RedirectedSessionID = sessionID
	}
	return d, nil
}

// MaxMonitors is the MS-RDPBCGR 2.2.1.3.6 cap on monitorCount.
const MaxMonitors = 16

// MonitorRect is a signed, inclusive screen-space rectangle as used by
// monitorDefArray: unlike pdu.InclusiveRectangle, monitors other than the
// primary can sit at negative coordinates, so each edge is a full int32.
type MonitorRect struct {
	Left, Top, Right, Bottom int32
}

// Monitor is one entry of TS_UD_CS_MONITOR's monitorDefArray, using
// inclusive screen-space coordinates.
type Monitor struct {
	Rect    MonitorRect
	Primary bool
}

const monitorFlagIsPrimary uint32 = 0x00000001

// ClientMonitorData is the TS_UD_CS_MONITOR block (MS-RDPBCGR 2.2.1.3.6).
type ClientMonitorData struct {
	Monitors []Monitor
}

func (d ClientMonitorData) Size() int { return 4 + 4 + 4 + 20*len(d.Monitors) }

func (d ClientMonitorData) Encode(c *pdu.Cursor) error {
	if len(d.Monitors) > MaxMonitors {
		return &pdu.EncodeError{Kind: pdu.InvalidFieldEncode, Field: "ClientMonitorData.Monitors", Reason: "more than 16 monitors"}
	}
	writeHeader(c, TypeClientMonitor, d.Size()-4)
	c.WriteU32LE(0) // flags, reserved
	c.WriteU32LE(uint32(len(d.Monitors)))
	for _, m := range d.Monitors {
		c.WriteU32LE(uint32(m.Rect.Left))
		c.WriteU32LE(uint32(m.Rect.Top))
		c.WriteU32LE(uint32(m.Rect.Right))
		c.WriteU32LE(uint32(m.Rect.Bottom))
		flags := uint32(0)
		if m.Primary {
			flags |= monitorFlagIsPrimary
		}
		c.WriteU32LE(flags)
	}
	return nil
}

func DecodeClientMonitorData(c *pdu.ReadCursor) (ClientMonitorData, error) {
	var d ClientMonitorData
	if _, err := readHeader(c, "ClientMonitorData", TypeClientMonitor); err != nil {
		return d, err
	}
	if _, err := c.ReadU32LE("ClientMonitorData.Flags"); err != nil {
		return d, err
	}
	count, err := c.ReadU32LE("ClientMonitorData.MonitorCount")
	if err != nil {
		return d, err
	}
	if count > MaxMonitors {
		return d, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "ClientMonitorData.MonitorCount", Reason: "more than 16 monitors"}
	}
	d.Monitors = make([]Monitor, count)
	for i := range d.Monitors {
		left, err := c.ReadU32LE("ClientMonitorData.Monitor.Left")
		if err != nil {
			return d, err
		}
		top, err := c.ReadU32LE("ClientMonitorData.Monitor.Top")
		if err != nil {
			return d, err
		}
		right, err := c.ReadU32LE("ClientMonitorData.Monitor.Right")
		if err != nil {
			return d, err
		}
		bottom, err := c.ReadU32LE("ClientMonitorData.Monitor.Bottom")
		if err != nil {
			return d, err
		}
		flags, err := c.ReadU32LE("ClientMonitorData.Monitor.Flags")
		if err != nil {
			return d, err
		}
		d.Monitors[i] = Monitor{
			Rect:    MonitorRect{Left: int32(left), Top: int32(top), Right: int32(right), Bottom: int32(bottom)},
			Primary: flags&monitorFlagIsPrimary != 0,
		}
	}
	return d, nil
}

// MonitorAttributeSize is the fixed size in bytes of one
// ExtendedMonitorInfo entry (MS-RDPBCGR 2.2.1.3.9).
const MonitorAttributeSize = 20

// MonitorOrientation is the desktopOrientation/orientation enum
// (MS-RDPBCGR 2.2.1.3.9, landscape/portrait/flipped).
type MonitorOrientation uint32

const (
	OrientationLandscape        MonitorOrientation = 0
	OrientationPortrait         MonitorOrientation = 90
	OrientationLandscapeFlipped MonitorOrientation = 180
	OrientationPortraitFlipped  MonitorOrientation = 270
)

func (o MonitorOrientation) Valid() bool {
	switch o {
	case OrientationLandscape, OrientationPortrait, OrientationLandscapeFlipped, OrientationPortraitFlipped:
		return true
	default:
		return false
	}
}

// ExtendedMonitorInfo is one entry of TS_UD_CS_MONITOR_EX's
// monitorAttributesArray.
type ExtendedMonitorInfo struct {
	PhysicalWidth      uint32
	PhysicalHeight     uint32
	Orientation        MonitorOrientation
	DesktopScaleFactor uint32
	DeviceScaleFactor  uint32
}

// ClientMonitorExtendedData is the TS_UD_CS_MONITOR_EX block (MS-RDPBCGR
// 2.2.1.3.9).
type ClientMonitorExtendedData struct {
	Monitors []ExtendedMonitorInfo
}

func (d ClientMonitorExtendedData) Size() int {
	return 4 + 4 + 4 + 4 + MonitorAttributeSize*len(d.Monitors)
}

func (d ClientMonitorExtendedData) Encode(c *pdu.Cursor) error {
	writeHeader(c, TypeClientMonitorExtended, d.Size()-4)
	c.WriteU32LE(0) // flags, reserved
	c.WriteU32LE(MonitorAttributeSize)
	c.WriteU32LE(uint32(len(d.Monitors)))
	for _, m := range d.Monitors {
		if !m.Orientation.Valid() {
			return &pdu.EncodeError{Kind: pdu.InvalidFieldEncode, Field: "ExtendedMonitorInfo.Orientation", Reason: "not one of 0/90/180/270"}
		}
		c.WriteU32LE(m.PhysicalWidth)
		c.WriteU32LE(m.PhysicalHeight)
		c.WriteU32LE(uint32(m.Orientation))
		c.WriteU32LE(m.DesktopScaleFactor)
		c.WriteU32LE(m.DeviceScaleFactor)
	}
	return nil
}

func DecodeClientMonitorExtendedData(c *pdu.ReadCursor) (ClientMonitorExtendedData, error) {
	var d ClientMonitorExtendedData
	if _, err := readHeader(c, "ClientMonitorExtendedData", TypeClientMonitorExtended); err != nil {
		return d, err
	}
	if _, err := c.ReadU32LE("ClientMonitorExtendedData.Flags"); err != nil {
		return d, err
	}
	size, err := c.ReadU32LE("ClientMonitorExtendedData.MonitorAttributeSize")
	if err != nil {
		return d, err
	}
	if size != MonitorAttributeSize {
		return d, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "ClientMonitorExtendedData.MonitorAttributeSize", Reason: "expected 20"}
	}
	count, err := c.ReadU32LE("ClientMonitorExtendedData.MonitorCount")
	if err != nil {
		return d, err
	}
	if count > MaxMonitors {
		return d, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "ClientMonitorExtendedData.MonitorCount", Reason: "more than 16 monitors"}
	}
	d.Monitors = make([]ExtendedMonitorInfo, count)
	for i := range d.Monitors {
		pw, err := c.ReadU32LE("ClientMonitorExtendedData.Monitor.PhysicalWidth")
		if err != nil {
			return d, err
		}
		ph, err := c.ReadU32LE("ClientMonitorExtendedData.Monitor.PhysicalHeight")
		if err != nil {
			return d, err
		}
		orient, err := c.ReadU32LE("ClientMonitorExtendedData.Monitor.Orientation")
		if err != nil {
			return d, err
		}
		dsf, err := c.ReadU32LE("ClientMonitorExtendedData.Monitor.DesktopScaleFactor")
		if err != nil {
			return d, err
		}
		devsf, err := c.ReadU32LE("ClientMonitorExtendedData.Monitor.DeviceScaleFactor")
		if err != nil {
			return d, err
		}
		o := MonitorOrientation(orient)
		if !o.Valid() {
			return d, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "ClientMonitorExtendedData.Monitor.Orientation", Reason: "not one of 0/90/180/270"}
		}
		d.Monitors[i] = ExtendedMonitorInfo{PhysicalWidth: pw, PhysicalHeight: ph, Orientation: o, DesktopScaleFactor: dsf, DeviceScaleFactor: devsf}
	}
	return d, nil
}
