// Package connector drives the RDP client connection sequence as an
// explicit, pure state machine : given the current state and
// an optional inbound PDU, Step returns zero or more outbound PDUs in
// Output.Bytes along with the next Action, and transitions. Grounded on the teacher's
// rcarmo-go-rdp/internal/rdp connect.go phase ordering, reworked from its
// blocking (*Client).Connect into a suspend/resume shape so the host
// owns all I/O.
package connector

import (
	"github.com/kulaginds/rdp-core/pkg/gcc"
	"github.com/kulaginds/rdp-core/pkg/pdu"
)

// State names the connector's current phase (client-side
// state list). Credssp carries its own sub-state; ChannelConnection and
// Finalization carry their own sub-phase.
type State int

const (
	StateSendConnectionRequest State = iota
	StateWaitConfirm
	StateUpgradeSecurity
	StateCredssp
	StateSendBasicSettings
	StateWaitBasicResponse
	StateChannelConnection
	StateSecureSettingsExchange
	StateLicensing
	StateCapabilitiesExchange
	StateFinalization
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateSendConnectionRequest:
		return "SendConnectionRequest"
	case StateWaitConfirm:
		return "WaitConfirm"
	case StateUpgradeSecurity:
		return "UpgradeSecurity"
	case StateCredssp:
		return "Credssp"
	case StateSendBasicSettings:
		return "SendBasicSettings"
	case StateWaitBasicResponse:
		return "WaitBasicResponse"
	case StateChannelConnection:
		return "ChannelConnection"
	case StateSecureSettingsExchange:
		return "SecureSettingsExchange"
	case StateLicensing:
		return "Licensing"
	case StateCapabilitiesExchange:
		return "CapabilitiesExchange"
	case StateFinalization:
		return "Finalization"
	case StateConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// ChannelConnectionPhase sub-states the erect/attach-user/join sequence.
type ChannelConnectionPhase int

const (
	PhaseErectDomain ChannelConnectionPhase = iota
	PhaseAttachUser
	PhaseJoinChannels
)

// FinalizationPhase sub-states the post-capabilities handshake.
type FinalizationPhase int

const (
	PhaseSync FinalizationPhase = iota
	PhaseControlCooperate
	PhaseControlRequest
	PhaseFont
	PhaseFinalizeResponse
)

// ChannelSpec is one statically-advertised virtual channel, supplied by
// the host before connecting (register_static_channel,
// surfaced here as configuration since joining happens during the
// connection sequence itself).
type ChannelSpec struct {
	Name    string
	Options uint32
}

// Credentials are the NLA/CredSSP identity the connector presents.
type Credentials struct {
	Username string
	Password string
	Domain   string
}

// DesktopSize is the requested client resolution.
type DesktopSize struct {
	Width, Height uint16
}

// Config is the connector's construction-time snapshot :
// credentials, desktop size, enabled security, channel list. Gateway and
// redirection info are carried by the host's rdpfile.Config and are not
// re-parsed here; the core only needs the fields that affect wire PDUs.
type Config struct {
	Credentials      Credentials
	DesktopSize      DesktopSize
	ColorDepth       uint16
	EnableCredSSP    bool
	EnableTLS        bool
	Channels         []ChannelSpec
	ClientBuild      uint32
	KeyboardLayout   uint32
	ClientName       string
	Cookie           string // "Cookie: mstshash=<username>\r\n"-style routing token
}

func (c Config) requestedProtocols() pdu.NegotiationProtocol {
	var p pdu.NegotiationProtocol
	if c.EnableCredSSP {
		p |= pdu.NegotiationProtocolHybrid
	}
	if c.EnableTLS {
		p |= pdu.NegotiationProtocolSSL
	}
	return p
}

// ConnectionResult is the terminal payload of State Connected: everything
// the active-stage loop needs to start the steady-state pump.
type ConnectionResult struct {
	IOChannelID         uint16
	UserChannelID       uint16
	GlobalChannelID     uint16
	JoinedChannels      map[string]uint16
	DesktopSize         DesktopSize
	InputCapabilities   pdu.InputCapabilitySet
	GeneralCapabilities pdu.GeneralCapabilitySet
	NoServerPointer     bool
	ShareID             uint32
	UserID              uint16
	CorrelationID       string
}

// connectionContext accumulates values carried across states that later
// states need (IDs allocated by the server, capability sets exchanged,
// GCC server data), kept separate from Config since it's mutated as the
// handshake progresses.
type connectionContext struct {
	correlationID string

	selectedProtocol pdu.NegotiationProtocol
	serverPublicKey  []byte

	ioChannelID     uint16
	userChannelID   uint16
	serverChannels  map[string]uint16 // name -> MCS channel ID, from ServerNetworkData
	pendingChannels []string          // channels still to be joined
	joinedChannels  map[string]uint16
	mcsUserID       uint16

	shareID uint32

	demandActive  pdu.DemandActivePDU
	confirmActive pdu.ConfirmActivePDU

	serverCore gcc.ServerCoreData
}
