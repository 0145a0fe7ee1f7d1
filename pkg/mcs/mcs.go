// Package mcs implements the Multipoint Communication Service (ITU-T T.125)
// domain PDUs RDP rides on top of (MS-RDPBCGR 2.2.1.5-2.2.1.10 and the
// steady-state MCS Send Data Request/Indication envelope), built on the
// pdu.Cursor contract and the PER helpers in pkg/ber.
package mcs

import (
	"github.com/kulaginds/rdp-core/pkg/ber"
	"github.com/kulaginds/rdp-core/pkg/pdu"
)

// DomainPduType is the PER CHOICE selector for a T.125 DomainMCSPDU,
// written as the top 6 bits of the PDU's leading octet (choice << 2).
type DomainPduType uint8

const (
	PduTypeErectDomainRequest           DomainPduType = 1
	PduTypeDisconnectProviderUltimatum  DomainPduType = 8
	PduTypeAttachUserRequest            DomainPduType = 10
	PduTypeAttachUserConfirm            DomainPduType = 11
	PduTypeChannelJoinRequest           DomainPduType = 14
	PduTypeChannelJoinConfirm           DomainPduType = 15
	PduTypeSendDataRequest              DomainPduType = 25
	PduTypeSendDataIndication           DomainPduType = 26
)

func writeChoice(c *pdu.Cursor, t DomainPduType) { c.WriteU8(uint8(t) << 2) }

func readChoice(c *pdu.ReadCursor, field string) (DomainPduType, error) {
	b, err := c.ReadU8(field + ".Choice")
	if err != nil {
		return 0, err
	}
	return DomainPduType(b >> 2), nil
}

// initiatorBase/channelBase are the PER constrained-integer minimums T.125
// subtracts before encoding user/channel IDs (MS-RDPBCGR 2.2.1.5-2.2.1.8).
const (
	initiatorBase uint16 = 1001
	channelBase   uint16 = 0
)

// ErectDomainRequest is the first PDU a client sends after the MCS
// Connect sequence completes (MS-RDPBCGR 2.2.1.5).
type ErectDomainRequest struct{}

func (ErectDomainRequest) Size() int { return 1 + 2 + 2 }

func (ErectDomainRequest) Encode(c *pdu.Cursor) error {
	writeChoice(c, PduTypeErectDomainRequest)
	ber.WritePerInteger(c, 0) // subHeight
	ber.WritePerInteger(c, 0) // subInterval
	return nil
}

func DecodeErectDomainRequest(c *pdu.ReadCursor) (ErectDomainRequest, error) {
	var r ErectDomainRequest
	t, err := readChoice(c, "ErectDomainRequest")
	if err != nil {
		return r, err
	}
	if t != PduTypeErectDomainRequest {
		return r, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "ErectDomainRequest.Choice", Got: uint32(t)}
	}
	if _, err := ber.ReadPerInteger(c); err != nil {
		return r, err
	}
	if _, err := ber.ReadPerInteger(c); err != nil {
		return r, err
	}
	return r, nil
}

// AttachUserRequest asks the server to allocate a new user ID
// (MS-RDPBCGR 2.2.1.6).
type AttachUserRequest struct{}

func (AttachUserRequest) Size() int { return 1 }

func (AttachUserRequest) Encode(c *pdu.Cursor) error {
	writeChoice(c, PduTypeAttachUserRequest)
	return nil
}

func DecodeAttachUserRequest(c *pdu.ReadCursor) (AttachUserRequest, error) {
	var r AttachUserRequest
	t, err := readChoice(c, "AttachUserRequest")
	if err != nil {
		return r, err
	}
	if t != PduTypeAttachUserRequest {
		return r, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "AttachUserRequest.Choice", Got: uint32(t)}
	}
	return r, nil
}

// AttachUserConfirm carries the allocated user ID, or a failure Result
// (MS-RDPBCGR 2.2.1.7).
type AttachUserConfirm struct {
	Result      uint8 // RTSuccessful (0) or one of the MCS result codes
	InitiatorID uint16
}

func (r AttachUserConfirm) Size() int {
	if r.Result == 0 {
		return 1 + 1 + 2
	}
	return 1 + 1
}

func (r AttachUserConfirm) Encode(c *pdu.Cursor) error {
	writeChoice(c, PduTypeAttachUserConfirm)
	c.WriteU8(r.Result)
	if r.Result == 0 {
		c.WriteU16BE(r.InitiatorID - initiatorBase)
	}
	return nil
}

func DecodeAttachUserConfirm(c *pdu.ReadCursor) (AttachUserConfirm, error) {
	var r AttachUserConfirm
	t, err := readChoice(c, "AttachUserConfirm")
	if err != nil {
		return r, err
	}
	if t != PduTypeAttachUserConfirm {
		return r, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "AttachUserConfirm.Choice", Got: uint32(t)}
	}
	if r.Result, err = c.ReadU8("AttachUserConfirm.Result"); err != nil {
		return r, err
	}
	if r.Result == 0 {
		id, err := c.ReadU16BE("AttachUserConfirm.InitiatorID")
		if err != nil {
			return r, err
		}
		r.InitiatorID = id + initiatorBase
	}
	return r, nil
}

// ChannelJoinRequest asks the server to join the given user to a channel
// (MS-RDPBCGR 2.2.1.8).
type ChannelJoinRequest struct {
	InitiatorID uint16
	ChannelID   uint16
}

func (ChannelJoinRequest) Size() int { return 1 + 2 + 2 }

func (r ChannelJoinRequest) Encode(c *pdu.Cursor) error {
	writeChoice(c, PduTypeChannelJoinRequest)
	c.WriteU16BE(r.InitiatorID - initiatorBase)
	c.WriteU16BE(r.ChannelID - channelBase)
	return nil
}

func DecodeChannelJoinRequest(c *pdu.ReadCursor) (ChannelJoinRequest, error) {
	var r ChannelJoinRequest
	t, err := readChoice(c, "ChannelJoinRequest")
	if err != nil {
		return r, err
	}
	if t != PduTypeChannelJoinRequest {
		return r, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "ChannelJoinRequest.Choice", Got: uint32(t)}
	}
	id, err := c.ReadU16BE("ChannelJoinRequest.InitiatorID")
	if err != nil {
		return r, err
	}
	r.InitiatorID = id + initiatorBase
	ch, err := c.ReadU16BE("ChannelJoinRequest.ChannelID")
	if err != nil {
		return r, err
	}
	r.ChannelID = ch + channelBase
	return r, nil
}

// ChannelJoinConfirm reports whether the join succeeded (MS-RDPBCGR
// 2.2.1.9). ChannelID is only present on success and may differ from
// RequestedChannelID for user-ID channels.
type ChannelJoinConfirm struct {
	Result            uint8
	InitiatorID       uint16
	RequestedChannelID uint16
	ChannelID         uint16
}

func (r ChannelJoinConfirm) Size() int {
	n := 1 + 1 + 2 + 2
	if r.Result == 0 {
		n += 2
	}
	return n
}

func (r ChannelJoinConfirm) Encode(c *pdu.Cursor) error {
	writeChoice(c, PduTypeChannelJoinConfirm)
	c.WriteU8(r.Result)
	c.WriteU16BE(r.InitiatorID - initiatorBase)
	c.WriteU16BE(r.RequestedChannelID - channelBase)
	if r.Result == 0 {
		c.WriteU16BE(r.ChannelID - channelBase)
	}
	return nil
}

func DecodeChannelJoinConfirm(c *pdu.ReadCursor) (ChannelJoinConfirm, error) {
	var r ChannelJoinConfirm
	t, err := readChoice(c, "ChannelJoinConfirm")
	if err != nil {
		return r, err
	}
	if t != PduTypeChannelJoinConfirm {
		return r, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "ChannelJoinConfirm.Choice", Got: uint32(t)}
	}
	if r.Result, err = c.ReadU8("ChannelJoinConfirm.Result"); err != nil {
		return r, err
	}
	id, err := c.ReadU16BE("ChannelJoinConfirm.InitiatorID")
	if err != nil {
		return r, err
	}
	r.InitiatorID = id + initiatorBase
	req, err := c.ReadU16BE("ChannelJoinConfirm.RequestedChannelID")
	if err != nil {
		return r, err
	}
	r.RequestedChannelID = req + channelBase
	if r.Result == 0 {
		ch, err := c.ReadU16BE("ChannelJoinConfirm.ChannelID")
		if err != nil {
			return r, err
		}
		r.ChannelID = ch + channelBase
	}
	return r, nil
}

// dataPrioritySegmentation is the fixed SDrq/SDin dataPriority+segmentation
// octet RDP always sends: medium priority, a single segment carrying the
// whole PDU (begin and end both set).
const dataPrioritySegmentation uint8 = 0x70

// SendDataRequest carries one upward (client-to-server) channel PDU inside
// the MCS domain (MS-RDPBCGR 2.2.1.5 steady state / T.125 SDrq).
type SendDataRequest struct {
	InitiatorID uint16
	ChannelID   uint16
	Data        []byte
}

func (r SendDataRequest) Size() int {
	return 1 + 2 + 2 + 1 + berLengthSize(len(r.Data)) + len(r.Data)
}

func berLengthSize(n int) int {
	switch {
	case n > 0xFF:
		return 3
	case n > 0x7F:
		return 2
	default:
		return 1
	}
}

func (r SendDataRequest) Encode(c *pdu.Cursor) error {
	writeChoice(c, PduTypeSendDataRequest)
	c.WriteU16BE(r.InitiatorID - initiatorBase)
	c.WriteU16BE(r.ChannelID - channelBase)
	c.WriteU8(dataPrioritySegmentation)
	ber.WriteLength(c, len(r.Data))
	c.WriteBytes(r.Data)
	return nil
}

func DecodeSendDataRequest(c *pdu.ReadCursor) (SendDataRequest, error) {
	var r SendDataRequest
	t, err := readChoice(c, "SendDataRequest")
	if err != nil {
		return r, err
	}
	if t != PduTypeSendDataRequest {
		return r, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "SendDataRequest.Choice", Got: uint32(t)}
	}
	err = decodeSendData(c, "SendDataRequest", &r.InitiatorID, &r.ChannelID, &r.Data)
	return r, err
}

// SendDataIndication is the downward (server-to-client) counterpart of
// SendDataRequest (T.125 SDin).
type SendDataIndication struct {
	InitiatorID uint16
	ChannelID   uint16
	Data        []byte
}

func (r SendDataIndication) Size() int {
	return 1 + 2 + 2 + 1 + berLengthSize(len(r.Data)) + len(r.Data)
}

func (r SendDataIndication) Encode(c *pdu.Cursor) error {
	writeChoice(c, PduTypeSendDataIndication)
	c.WriteU16BE(r.InitiatorID - initiatorBase)
	c.WriteU16BE(r.ChannelID - channelBase)
	c.WriteU8(dataPrioritySegmentation)
	ber.WriteLength(c, len(r.Data))
	c.WriteBytes(r.Data)
	return nil
}

func DecodeSendDataIndication(c *pdu.ReadCursor) (SendDataIndication, error) {
	var r SendDataIndication
	t, err := readChoice(c, "SendDataIndication")
	if err != nil {
		return r, err
	}
	if t != PduTypeSendDataIndication {
		return r, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "SendDataIndication.Choice", Got: uint32(t)}
	}
	err = decodeSendData(c, "SendDataIndication", &r.InitiatorID, &r.ChannelID, &r.Data)
	return r, err
}

func decodeSendData(c *pdu.ReadCursor, field string, initiator, channel *uint16, data *[]byte) error {
	id, err := c.ReadU16BE(field + ".InitiatorID")
	if err != nil {
		return err
	}
	*initiator = id + initiatorBase
	ch, err := c.ReadU16BE(field + ".ChannelID")
	if err != nil {
		return err
	}
	*channel = ch + channelBase
	if _, err := c.ReadU8(field + ".DataPrioritySegmentation"); err != nil {
		return err
	}
	length, err := ber.ReadLength(c)
	if err != nil {
		return err
	}
	*data, err = c.ReadBytes(field+".Data", length)
	return err
}

// DisconnectReason is the DisconnectProviderUltimatum reason code
// (MS-RDPBCGR 2.2.1.10 / T.125 Reason).
type DisconnectReason uint8

const (
	ReasonDomainDisconnected DisconnectReason = 0
	ReasonProviderInitiated  DisconnectReason = 1
	ReasonTokenPurged        DisconnectReason = 2
	ReasonUserRequested      DisconnectReason = 3
	ReasonChannelPurged      DisconnectReason = 4
)

// DisconnectProviderUltimatum tells the client the server is tearing the
// MCS domain down (MS-RDPBCGR 2.2.1.10, sent instead of a slow-path
// Deactivate All / close sequence on fatal errors).
//
// The Reason field's exact sub-byte packing alongside the choice selector
// is not pinned down by anything in the retrieved corpus (T.125's own text
// is the only source and it was not available); this encodes Reason as its
// own trailing octet rather than guessing a bit-packed layout, which is
// forward-compatible since real clients only switch on the outer choice.
type DisconnectProviderUltimatum struct {
	Reason DisconnectReason
}

func (DisconnectProviderUltimatum) Size() int { return 1 + 1 }

func (r DisconnectProviderUltimatum) Encode(c *pdu.Cursor) error {
	writeChoice(c, PduTypeDisconnectProviderUltimatum)
	c.WriteU8(uint8(r.Reason))
	return nil
}

func DecodeDisconnectProviderUltimatum(c *pdu.ReadCursor) (DisconnectProviderUltimatum, error) {
	var r DisconnectProviderUltimatum
	t, err := readChoice(c, "DisconnectProviderUltimatum")
	if err != nil {
		return r, err
	}
	if t != PduTypeDisconnectProviderUltimatum {
		return r, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "DisconnectProviderUltimatum.Choice", Got: uint32(t)}
	}
	reason, err := c.ReadU8("DisconnectProviderUltimatum.Reason")
	if err != nil {
		return r, err
	}
	r.Reason = DisconnectReason(reason)
	return r, nil
}

// PeekDomainPduType inspects (without consuming) the choice octet of a
// domain PDU buffer so callers can dispatch to the right Decode function.
func PeekDomainPduType(buf []byte) (DomainPduType, error) {
	if len(buf) < 1 {
		return 0, &pdu.DecodeError{Kind: pdu.NotEnoughBytes, Field: "DomainPDU.Choice", Received: 0, Expected: 1}
	}
	return DomainPduType(buf[0] >> 2), nil
}
