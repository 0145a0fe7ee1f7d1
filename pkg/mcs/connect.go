package mcs

import (
	"github.com/kulaginds/rdp-core/pkg/ber"
	"github.com/kulaginds/rdp-core/pkg/pdu"
)

// DomainParameters is the T.125 DomainParameters SEQUENCE carried three
// times (target/minimum/maximum) inside Connect-Initial and once inside
// Connect-Response (MS-RDPBCGR 2.2.1.3/2.2.1.4).
type DomainParameters struct {
	MaxChannelIDs   uint32
	MaxUserIDs      uint32
	MaxTokenIDs     uint32
	NumPriorities   uint32
	MinThroughput   uint32
	MaxHeight       uint32
	MaxMCSPDUSize   uint32
	ProtocolVersion uint32
}

// ClientTargetParameters, ClientMinimumParameters and
// ClientMaximumParameters return the fixed target/minimum/maximum triple
// every Windows and FreeRDP client sends (MS-RDPBCGR 3.2.5.3.1).
func ClientTargetParameters() DomainParameters {
	return DomainParameters{MaxChannelIDs: 34, MaxUserIDs: 3, MaxTokenIDs: 0, NumPriorities: 1, MinThroughput: 0, MaxHeight: 1, MaxMCSPDUSize: 0xFFFF, ProtocolVersion: 2}
}

func ClientMinimumParameters() DomainParameters {
	return DomainParameters{MaxChannelIDs: 1, MaxUserIDs: 1, MaxTokenIDs: 1, NumPriorities: 1, MinThroughput: 0, MaxHeight: 1, MaxMCSPDUSize: 0x420, ProtocolVersion: 2}
}

func ClientMaximumParameters() DomainParameters {
	return DomainParameters{MaxChannelIDs: 0xFFFF, MaxUserIDs: 0xFFFF, MaxTokenIDs: 0xFFFF, NumPriorities: 1, MinThroughput: 0, MaxHeight: 1, MaxMCSPDUSize: 0xFFFF, ProtocolVersion: 2}
}

func (p DomainParameters) bodySize() int {
	n := 0
	for _, v := range []uint32{p.MaxChannelIDs, p.MaxUserIDs, p.MaxTokenIDs, p.NumPriorities, p.MinThroughput, p.MaxHeight, p.MaxMCSPDUSize, p.ProtocolVersion} {
		n += integerSize(v)
	}
	return n
}

func (p DomainParameters) Size() int {
	body := p.bodySize()
	return 1 + lengthSize(body) + body
}

func integerSize(v uint32) int {
	switch {
	case v > 0xFFFF:
		return 2 + 4
	case v > 0xFF:
		return 2 + 2
	default:
		return 2 + 1
	}
}

// lengthSize mirrors ber.WriteLength's choice of short/long form so Size()
// methods can predict exact wire size without encoding twice.
func lengthSize(n int) int {
	switch {
	case n > 0xFF:
		return 3
	case n > 0x7F:
		return 2
	default:
		return 1
	}
}

func (p DomainParameters) encodeBody(c *pdu.Cursor) {
	for _, v := range []uint32{p.MaxChannelIDs, p.MaxUserIDs, p.MaxTokenIDs, p.NumPriorities, p.MinThroughput, p.MaxHeight, p.MaxMCSPDUSize, p.ProtocolVersion} {
		ber.WriteInteger(c, v)
	}
}

// encodeDomainParameters writes the SEQUENCE header followed by the eight
// INTEGER fields; Size() above must stay in lockstep with this layout.
func encodeDomainParameters(c *pdu.Cursor, p DomainParameters) {
	ber.WriteSequenceHeader(c, p.bodySize())
	p.encodeBody(c)
}

func decodeDomainParameters(c *pdu.ReadCursor) (DomainParameters, error) {
	var p DomainParameters
	if _, err := ber.ReadSequenceHeader(c); err != nil {
		return p, err
	}
	fields := []*uint32{&p.MaxChannelIDs, &p.MaxUserIDs, &p.MaxTokenIDs, &p.NumPriorities, &p.MinThroughput, &p.MaxHeight, &p.MaxMCSPDUSize, &p.ProtocolVersion}
	for _, f := range fields {
		v, err := ber.ReadInteger(c)
		if err != nil {
			return p, err
		}
		*f = v
	}
	return p, nil
}

// domainSelector is the fixed single-byte OCTET STRING ("\x01") every
// MS-RDPBCGR client/server uses for callingDomainSelector/
// calledDomainSelector.
var domainSelector = []byte{0x01}

func octetStringSize(n int) int { return 1 + lengthSize(n) + n }

// ConnectInitial is the client's MCS Connect-Initial PDU (MS-RDPBCGR
// 2.2.1.3), the outermost envelope of basicSettingsExchange. UserData is
// the already-encoded GCC ConferenceCreateRequest body.
type ConnectInitial struct {
	Target   DomainParameters
	Minimum  DomainParameters
	Maximum  DomainParameters
	UserData []byte
}

func (r ConnectInitial) bodySize() int {
	return octetStringSize(len(domainSelector)) + octetStringSize(len(domainSelector)) + 3 /* BOOLEAN */ +
		r.Target.Size() + r.Minimum.Size() + r.Maximum.Size() + octetStringSize(len(r.UserData))
}

// appTagSize is fixed at 2 bytes (0x7F + tag octet): both Connect-Initial
// (101) and Connect-Response (102) exceed the 30-tag single-octet form.
const appTagSize = 2

func (r ConnectInitial) Size() int {
	body := r.bodySize()
	return appTagSize + lengthSize(body) + body
}

func (r ConnectInitial) Encode(c *pdu.Cursor) error {
	body := r.bodySize()
	ber.WriteApplicationTag(c, 101, body)
	ber.WriteOctetString(c, domainSelector)
	ber.WriteOctetString(c, domainSelector)
	ber.WriteBoolean(c, true) // upwardFlag
	encodeDomainParameters(c, r.Target)
	encodeDomainParameters(c, r.Minimum)
	encodeDomainParameters(c, r.Maximum)
	ber.WriteOctetString(c, r.UserData)
	return nil
}

func DecodeConnectInitial(c *pdu.ReadCursor) (ConnectInitial, error) {
	var r ConnectInitial
	tag, _, err := ber.ReadApplicationTag(c)
	if err != nil {
		return r, err
	}
	if tag != 101 {
		return r, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "ConnectInitial.Tag", Got: uint32(tag)}
	}
	if _, err := ber.ReadOctetString(c); err != nil {
		return r, err
	}
	if _, err := ber.ReadOctetString(c); err != nil {
		return r, err
	}
	if _, err := ber.ReadBoolean(c); err != nil {
		return r, err
	}
	if r.Target, err = decodeDomainParameters(c); err != nil {
		return r, err
	}
	if r.Minimum, err = decodeDomainParameters(c); err != nil {
		return r, err
	}
	if r.Maximum, err = decodeDomainParameters(c); err != nil {
		return r, err
	}
	r.UserData, err = ber.ReadOctetString(c)
	return r, err
}

// ConnectResponse is the server's reply (MS-RDPBCGR 2.2.1.4). UserData is
// the already-encoded GCC ConferenceCreateResponse body.
type ConnectResponse struct {
	Result        uint8
	CalledConnectID uint32
	Parameters    DomainParameters
	UserData      []byte
}

func (r ConnectResponse) bodySize() int {
	return 3 /* ENUMERATED */ + integerSize(r.CalledConnectID) + r.Parameters.Size() + octetStringSize(len(r.UserData))
}

func (r ConnectResponse) Size() int {
	body := r.bodySize()
	return appTagSize + lengthSize(body) + body
}

func (r ConnectResponse) Encode(c *pdu.Cursor) error {
	ber.WriteApplicationTag(c, 102, r.bodySize())
	ber.WriteEnumerated(c, r.Result)
	ber.WriteInteger(c, r.CalledConnectID)
	encodeDomainParameters(c, r.Parameters)
	ber.WriteOctetString(c, r.UserData)
	return nil
}

func DecodeConnectResponse(c *pdu.ReadCursor) (ConnectResponse, error) {
	var r ConnectResponse
	tag, _, err := ber.ReadApplicationTag(c)
	if err != nil {
		return r, err
	}
	if tag != 102 {
		return r, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "ConnectResponse.Tag", Got: uint32(tag)}
	}
	if r.Result, err = ber.ReadEnumerated(c); err != nil {
		return r, err
	}
	if r.CalledConnectID, err = ber.ReadInteger(c); err != nil {
		return r, err
	}
	if r.Parameters, err = decodeDomainParameters(c); err != nil {
		return r, err
	}
	r.UserData, err = ber.ReadOctetString(c)
	return r, err
}
