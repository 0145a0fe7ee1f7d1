package acceptor

import "github.com/kulaginds/rdp-core/pkg/pdu"

// State is a phase of server-side connection acceptance, the mirror image
// of pkg/connector's State machine run from the listening side of the
// wire.
type State int

const (
	StateWaitConnectionRequest State = iota
	StateUpgradeSecurity
	StateWaitBasicSettings
	StateChannelConnection
	StateWaitClientInfo
	StateWaitConfirmActive
	StateFinalization
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateWaitConnectionRequest:
		return "WaitConnectionRequest"
	case StateUpgradeSecurity:
		return "UpgradeSecurity"
	case StateWaitBasicSettings:
		return "WaitBasicSettings"
	case StateChannelConnection:
		return "ChannelConnection"
	case StateWaitClientInfo:
		return "WaitClientInfo"
	case StateWaitConfirmActive:
		return "WaitConfirmActive"
	case StateFinalization:
		return "Finalization"
	case StateConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// ChannelConnectionPhase is the sub-state within StateChannelConnection.
type ChannelConnectionPhase int

const (
	PhaseWaitErectDomain ChannelConnectionPhase = iota
	PhaseWaitAttachUser
	PhaseJoinChannels
)

// FinalizationPhase is the sub-state within StateFinalization, stepping
// through the client-initiated Synchronize/Control/FontList exchange the
// server answers (MS-RDPBCGR 1.3.1.1's connection sequence, steps 13-18).
type FinalizationPhase int

const (
	PhaseWaitSync FinalizationPhase = iota
	PhaseWaitControlRequest
	PhaseWaitFontList
)

// SecurityMode selects what connectionInitiation offers the client. There
// is no CredSSP/NLA sub-sequence on the acceptor side: ironrdp-acceptor's
// own state machine only ever exposes a security-upgrade gate before
// basicSettingsExchange, never a credential round trip, so neither does
// this one.
type SecurityMode int

const (
	// SecurityNone runs the rest of the session over the bare TPKT
	// stream with no confidentiality, matching RdpServerSecurity::None.
	SecurityNone SecurityMode = iota
	// SecurityTLS requires the host to perform a TLS accept once
	// ActionPerformSecurityUpgrade is returned.
	SecurityTLS
)

// DesktopSize is the negotiated session resolution.
type DesktopSize struct {
	Width  uint16
	Height uint16
}

// Credentials is what the client presented during secureSettingsExchange.
// Password is cleartext only because CredSSP/NLA already authenticated the
// session by this point in the real protocol; this core does not verify it
// against anything (spec's Non-goal on identity stores).
type Credentials struct {
	Username string
	Password string
	Domain   string
}

// Config configures one acceptor instance. ServerName is the
// SourceDescriptor the server's Demand Active PDU advertises; ShareID, if
// zero, defaults to a fixed session identifier.
type Config struct {
	Security    SecurityMode
	DesktopSize DesktopSize
	ColorDepth  uint16
	ServerName  string
	ShareID     uint32
}

// defaultShareID is the TS_SHAREID the acceptor advertises when Config
// doesn't set one; real servers derive theirs from the MCS user channel,
// but nothing downstream of this core inspects the value beyond echoing
// it back.
const defaultShareID uint32 = 0x000103EA

func (c Config) shareID() uint32 {
	if c.ShareID != 0 {
		return c.ShareID
	}
	return defaultShareID
}

func (c Config) serverName() string {
	if c.ServerName != "" {
		return c.ServerName
	}
	return "rdp-core"
}

// ConnectionResult is what Result returns once State() == StateConnected.
type ConnectionResult struct {
	IOChannelID        uint16
	UserChannelID      uint16
	JoinedChannels     map[string]uint16
	DesktopSize        DesktopSize
	ClientCapabilities []pdu.CapabilitySet
	Credentials        Credentials
	ShareID            uint32
	UserID             uint16
}

// connectionContext accumulates the facts learned from the client across
// states, mutated in place as the acceptor advances.
type connectionContext struct {
	selectedProtocol pdu.NegotiationProtocol

	clientChannelNames []string
	serverChannels     map[string]uint16 // channel name -> assigned MCS channel ID
	channelNameByID    map[uint16]string

	ioChannelID    uint16
	mcsUserID      uint16
	expectedJoins  int
	joinsSeen      int
	joinedChannels map[string]uint16

	credentials Credentials

	clientCapabilities []pdu.CapabilitySet
}
