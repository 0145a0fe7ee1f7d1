package pdu

import "errors"

// ErrInvalidCorrelationID indicates the correlation ID in the response does
// not match the request, ported from the teacher's sentinel error idiom.
var ErrInvalidCorrelationID = errors.New("invalid correlationId")

// ErrDeactivateAll indicates the server sent a Deactivate All PDU
// (MS-RDPBCGR 2.2.3.1).
var ErrDeactivateAll = errors.New("deactivate all")

// NegotiationType is the type field of an X.224 negotiation TPDU
// (MS-RDPBCGR 2.2.1.1/2.2.1.2).
type NegotiationType uint8

const (
	NegotiationTypeRequest  NegotiationType = 0x01
	NegotiationTypeResponse NegotiationType = 0x02
	NegotiationTypeFailure  NegotiationType = 0x03
)

func (t NegotiationType) IsRequest() bool  { return t == NegotiationTypeRequest }
func (t NegotiationType) IsResponse() bool { return t == NegotiationTypeResponse }
func (t NegotiationType) IsFailure() bool  { return t == NegotiationTypeFailure }

// NegotiationRequestFlag carries the RDP_NEG_REQ protocol flags.
type NegotiationRequestFlag uint8

const (
	NegReqFlagRestrictedAdminModeRequired           NegotiationRequestFlag = 0x01
	NegReqFlagRedirectedAuthenticationModeRequired  NegotiationRequestFlag = 0x02
	NegReqFlagCorrelationInfoPresent                NegotiationRequestFlag = 0x08
)

func (f NegotiationRequestFlag) IsCorrelationInfoPresent() bool {
	return f&NegReqFlagCorrelationInfoPresent != 0
}

// NegotiationProtocol is the requested/selected security protocol bitmask
// (MS-RDPBCGR 2.2.1.1.1).
type NegotiationProtocol uint32

const (
	NegotiationProtocolRDP       NegotiationProtocol = 0x00000000
	NegotiationProtocolSSL       NegotiationProtocol = 0x00000001
	NegotiationProtocolHybrid    NegotiationProtocol = 0x00000002
	NegotiationProtocolRDSTLS    NegotiationProtocol = 0x00000004
	NegotiationProtocolHybridEx  NegotiationProtocol = 0x00000008
)

func (p NegotiationProtocol) IsRDP() bool    { return p&NegotiationProtocolRDP == 0 && p == 0 }
func (p NegotiationProtocol) IsSSL() bool    { return p&NegotiationProtocolSSL != 0 }
func (p NegotiationProtocol) IsHybrid() bool { return p&NegotiationProtocolHybrid != 0 }
func (p NegotiationProtocol) IsHybridEx() bool {
	return p&NegotiationProtocolHybridEx != 0
}

// NegotiationRequest is the RDP_NEG_REQ structure, carried inside an X.224
// Connection Request TPDU's user payload.
type NegotiationRequest struct {
	Flags              NegotiationRequestFlag
	RequestedProtocols NegotiationProtocol
}

func (r NegotiationRequest) Size() int { return 8 }

func (r NegotiationRequest) Encode(c *Cursor) error {
	c.WriteU8(uint8(NegotiationTypeRequest))
	c.WriteU8(uint8(r.Flags))
	c.WriteU16LE(8)
	c.WriteU32LE(uint32(r.RequestedProtocols))
	return nil
}

func DecodeNegotiationRequest(c *ReadCursor) (NegotiationRequest, error) {
	var r NegotiationRequest
	typ, err := c.ReadU8("NegotiationRequest.Type")
	if err != nil {
		return r, err
	}
	if NegotiationType(typ) != NegotiationTypeRequest {
		return r, &DecodeError{Kind: UnexpectedMessageType, Field: "NegotiationRequest.Type", Got: uint32(typ)}
	}
	flags, err := c.ReadU8("NegotiationRequest.Flags")
	if err != nil {
		return r, err
	}
	r.Flags = NegotiationRequestFlag(flags)
	if _, err = c.ReadU16LE("NegotiationRequest.Length"); err != nil {
		return r, err
	}
	proto, err := c.ReadU32LE("NegotiationRequest.RequestedProtocols")
	if err != nil {
		return r, err
	}
	r.RequestedProtocols = NegotiationProtocol(proto)
	return r, nil
}

// NegotiationResponseFlag carries the RDP_NEG_RSP flags.
type NegotiationResponseFlag uint8

const (
	NegotiationResponseFlagECDBSupported      NegotiationResponseFlag = 0x01
	NegotiationResponseFlagGFXSupported       NegotiationResponseFlag = 0x02
	NegotiationResponseFlagAdminModeSupported NegotiationResponseFlag = 0x08
	NegotiationResponseFlagAuthModeSupported  NegotiationResponseFlag = 0x10
)

// NegotiationFailureCode is the RDP_NEG_FAILURE failureCode.
type NegotiationFailureCode uint32

const (
	NegotiationFailureCodeSSLRequired             NegotiationFailureCode = 0x00000001
	NegotiationFailureCodeSSLNotAllowed           NegotiationFailureCode = 0x00000002
	NegotiationFailureCodeSSLCertNotOnServer      NegotiationFailureCode = 0x00000003
	NegotiationFailureCodeInconsistentFlags       NegotiationFailureCode = 0x00000004
	NegotiationFailureCodeHybridRequired          NegotiationFailureCode = 0x00000005
	NegotiationFailureCodeSSLWithUserAuthRequired NegotiationFailureCode = 0x00000006
)

var negotiationFailureCodeNames = map[NegotiationFailureCode]string{
	NegotiationFailureCodeSSLRequired:             "SSL_REQUIRED_BY_SERVER",
	NegotiationFailureCodeSSLNotAllowed:           "SSL_NOT_ALLOWED_BY_SERVER",
	NegotiationFailureCodeSSLCertNotOnServer:      "SSL_CERT_NOT_ON_SERVER",
	NegotiationFailureCodeInconsistentFlags:       "INCONSISTENT_FLAGS",
	NegotiationFailureCodeHybridRequired:          "HYBRID_REQUIRED_BY_SERVER",
	NegotiationFailureCodeSSLWithUserAuthRequired: "SSL_WITH_USER_AUTH_REQUIRED_BY_SERVER",
}

func (c NegotiationFailureCode) String() string { return negotiationFailureCodeNames[c] }

// ConnectionConfirm is the RDP_NEG_RSP / RDP_NEG_FAILURE structure carried
// in the X.224 Connection Confirm TPDU.
type ConnectionConfirm struct {
	Type  NegotiationType
	Flags NegotiationResponseFlag
	data  uint32 // selectedProtocol (response) or failureCode (failure)
}

func (r ConnectionConfirm) SelectedProtocol() NegotiationProtocol { return NegotiationProtocol(r.data) }
func (r ConnectionConfirm) FailureCode() NegotiationFailureCode   { return NegotiationFailureCode(r.data) }

func NewConnectionConfirmSuccess(flags NegotiationResponseFlag, selected NegotiationProtocol) ConnectionConfirm {
	return ConnectionConfirm{Type: NegotiationTypeResponse, Flags: flags, data: uint32(selected)}
}

func NewConnectionConfirmFailure(code NegotiationFailureCode) ConnectionConfirm {
	return ConnectionConfirm{Type: NegotiationTypeFailure, data: uint32(code)}
}

func (r ConnectionConfirm) Size() int { return 8 }

func (r ConnectionConfirm) Encode(c *Cursor) error {
	c.WriteU8(uint8(r.Type))
	c.WriteU8(uint8(r.Flags))
	c.WriteU16LE(8)
	c.WriteU32LE(r.data)
	return nil
}

func DecodeConnectionConfirm(c *ReadCursor) (ConnectionConfirm, error) {
	var r ConnectionConfirm
	typ, err := c.ReadU8("ConnectionConfirm.Type")
	if err != nil {
		return r, err
	}
	r.Type = NegotiationType(typ)
	if !r.Type.IsResponse() && !r.Type.IsFailure() {
		return r, &DecodeError{Kind: UnexpectedMessageType, Field: "ConnectionConfirm.Type", Got: uint32(typ)}
	}
	flags, err := c.ReadU8("ConnectionConfirm.Flags")
	if err != nil {
		return r, err
	}
	r.Flags = NegotiationResponseFlag(flags)
	if _, err = c.ReadU16LE("ConnectionConfirm.Length"); err != nil {
		return r, err
	}
	if r.data, err = c.ReadU32LE("ConnectionConfirm.Data"); err != nil {
		return r, err
	}
	return r, nil
}
