// Package x224 implements the ISO/IEC 8073 Class 0 TPDU framing RDP uses
// for connection setup (MS-RDPBCGR 2.2.1): Connection Request, Connection
// Confirm, and the Data TPDU wrapping every later PDU. Fixed-layout header
// fields are packed with struc, the same struct-tag-driven codec the
// connector's dependency pack uses for X.224 framing.
package x224

import (
	"bytes"
	"fmt"

	"github.com/lunixbochs/struc"
)

// TPDU code, the high nibble of the TPDU header's second byte
// (ITU-T X.224 clause 13.3).
type TPDUCode uint8

const (
	TPDUConnectionRequest TPDUCode = 0xE0
	TPDUConnectionConfirm TPDUCode = 0xD0
	TPDUDisconnectRequest TPDUCode = 0x80
	TPDUData              TPDUCode = 0xF0
	TPDUError             TPDUCode = 0x70
)

// DataHeader is the 3-byte X.224 Data TPDU header prefixing every PDU sent
// after the connection sequence completes.
type DataHeader struct {
	Length    uint8    `struc:"uint8"`
	Code      TPDUCode `struc:"uint8"`
	EOTSeparator uint8 `struc:"uint8"`
}

// NewDataHeader builds the standard class-0 data TPDU header: length 2
// (code + separator), EOT bit set (0x80) with sequence number 0.
func NewDataHeader() DataHeader {
	return DataHeader{Length: 2, Code: TPDUData, EOTSeparator: 0x80}
}

// WrapData prefixes payload with a Data TPDU header, ready for the
// TPKT framer to add its own 4-byte wrapper.
func WrapData(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	h := NewDataHeader()
	if err := struc.Pack(&buf, &h); err != nil {
		return nil, fmt.Errorf("x224: pack data header: %w", err)
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

// UnwrapData validates a Data TPDU header and returns the trailing
// payload.
func UnwrapData(tpdu []byte) ([]byte, error) {
	if len(tpdu) < 3 {
		return nil, fmt.Errorf("x224: TPDU too short: %d bytes", len(tpdu))
	}
	var h DataHeader
	if err := struc.Unpack(bytes.NewReader(tpdu[:3]), &h); err != nil {
		return nil, fmt.Errorf("x224: unpack data header: %w", err)
	}
	if h.Code != TPDUData {
		return nil, fmt.Errorf("x224: expected data TPDU, got code 0x%02x", h.Code)
	}
	return tpdu[3:], nil
}

// ConnectionRequest is the Connection Request TPDU (MS-RDPBCGR 2.2.1.1),
// carrying an optional routing cookie and the RDP_NEG_REQ negotiation
// structure as its variable part.
type ConnectionRequest struct {
	Cookie          []byte // e.g. "Cookie: mstshash=<username>\r\n", may be empty
	NegotiationData []byte // pre-encoded pdu.NegotiationRequest bytes, may be empty
}

// fixedHeader is the fixed portion common to CR/CC TPDUs: length indicator,
// code, two destination/source reference words, and the class/options
// byte.
type fixedHeader struct {
	Length   uint8    `struc:"uint8"`
	Code     TPDUCode `struc:"uint8"`
	DstRef   uint16   `struc:"big"`
	SrcRef   uint16   `struc:"big"`
	ClassOpt uint8    `struc:"uint8"`
}

func (r ConnectionRequest) Encode() ([]byte, error) {
	variable := append(append([]byte{}, r.Cookie...), r.NegotiationData...)
	h := fixedHeader{
		Code: TPDUConnectionRequest,
	}
	// length field counts everything after itself: 7 fixed bytes minus the
	// length field + variable part.
	h.Length = uint8(7 + len(variable) - 1)

	var buf bytes.Buffer
	if err := struc.Pack(&buf, &h); err != nil {
		return nil, fmt.Errorf("x224: pack connection request: %w", err)
	}
	buf.Write(variable)
	return buf.Bytes(), nil
}

// DecodeConnectionRequest splits a Connection Request TPDU into its cookie
// and negotiation-data portions without interpreting either (that's
// pdu.DecodeNegotiationRequest's job).
func DecodeConnectionRequest(tpdu []byte) (cookie, negotiationData []byte, err error) {
	if len(tpdu) < 7 {
		return nil, nil, fmt.Errorf("x224: connection request too short")
	}
	var h fixedHeader
	if err := struc.Unpack(bytes.NewReader(tpdu[:7]), &h); err != nil {
		return nil, nil, fmt.Errorf("x224: unpack connection request: %w", err)
	}
	if h.Code != TPDUConnectionRequest {
		return nil, nil, fmt.Errorf("x224: expected connection request, got code 0x%02x", h.Code)
	}
	variable := tpdu[7:]
	// RDP_NEG_REQ, if present, is always the last 8 bytes and is
	// identified by its type byte rather than a length prefix in the
	// cookie, so split on the trailing fixed-size negotiation block when
	// one is present.
	if len(variable) >= 8 && variable[len(variable)-8] == 0x01 {
		return variable[:len(variable)-8], variable[len(variable)-8:], nil
	}
	return variable, nil, nil
}

// ConnectionConfirm is the Connection Confirm TPDU (MS-RDPBCGR 2.2.1.2),
// carrying the RDP_NEG_RSP or RDP_NEG_FAILURE structure as its variable
// part.
type ConnectionConfirm struct {
	NegotiationData []byte
}

func (r ConnectionConfirm) Encode() ([]byte, error) {
	h := fixedHeader{
		Code: TPDUConnectionConfirm,
	}
	h.Length = uint8(7 + len(r.NegotiationData) - 1)

	var buf bytes.Buffer
	if err := struc.Pack(&buf, &h); err != nil {
		return nil, fmt.Errorf("x224: pack connection confirm: %w", err)
	}
	buf.Write(r.NegotiationData)
	return buf.Bytes(), nil
}

func DecodeConnectionConfirm(tpdu []byte) (negotiationData []byte, err error) {
	if len(tpdu) < 7 {
		return nil, fmt.Errorf("x224: connection confirm too short")
	}
	var h fixedHeader
	if err := struc.Unpack(bytes.NewReader(tpdu[:7]), &h); err != nil {
		return nil, fmt.Errorf("x224: unpack connection confirm: %w", err)
	}
	if h.Code != TPDUConnectionConfirm {
		return nil, fmt.Errorf("x224: expected connection confirm, got code 0x%02x", h.Code)
	}
	return tpdu[7:], nil
}
