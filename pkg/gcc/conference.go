// Package gcc implements the Generic Conference Control (T.124) Conference
// Create Request/Response PDUs and their GCC user-data sub-blocks
// (MS-RDPBCGR 2.2.1.3/2.2.1.4), the payload MCS Connect-Initial/Response
// carries inside its BER envelope.
package gcc

import (
	"github.com/kulaginds/rdp-core/pkg/ber"
	"github.com/kulaginds/rdp-core/pkg/pdu"
)

var (
	t124ObjectIdentifier = [6]byte{0, 0, 20, 124, 0, 1}
	h221ClientKey        = "Duca"
	h221ServerKey        = "McDn"
)

// perLengthSize reports how many bytes WritePerLength will spend encoding n:
// short form (1 byte) up to 0x7F, long form (2 bytes) above it.
func perLengthSize(n int) int {
	if n > 0x7F {
		return 2
	}
	return 1
}

// ConferenceCreateRequest is the T.124 ConferenceCreateRequest PDU, carrying
// the client's GCC user-data blocks as an opaque, already-encoded payload.
type ConferenceCreateRequest struct {
	UserData []byte
}

// Size mirrors Encode byte-for-byte: choice(1) + objectIdentifier(6) +
// outer length + choice(1) + selection(1) + numeric string "1" (length byte
// + 1 content byte) + padding(1) + numberOfSet(1) + choice(1) + H.221 client
// key (length byte + 4 content bytes) + user-data length + user data.
func (r ConferenceCreateRequest) Size() int {
	return 1 + 6 + perLengthSize(14+len(r.UserData)) + 1 + 1 + 2 + 1 + 1 + 1 +
		(1 + 4) + perLengthSize(len(r.UserData)) + len(r.UserData)
}

func (r ConferenceCreateRequest) Encode(c *pdu.Cursor) error {
	ber.WritePerChoice(c, 0)
	ber.WritePerObjectIdentifier(c, t124ObjectIdentifier)
	ber.WritePerLength(c, uint16(14+len(r.UserData)))

	ber.WritePerChoice(c, 0)
	ber.WritePerSelection(c, 0x08)

	ber.WritePerNumericString(c, "1", 1)
	ber.WritePerPadding(c, 1)
	ber.WritePerNumberOfSet(c, 1)
	ber.WritePerChoice(c, 0xc0)
	ber.WritePerOctetStream(c, []byte(h221ClientKey), 4)
	ber.WritePerOctetStream(c, r.UserData, 0)
	return nil
}

// DecodeConferenceCreateRequest decodes the fixed GCC envelope and returns
// the trailing user-data bytes for the caller to hand to DecodeClientGCCData.
func DecodeConferenceCreateRequest(c *pdu.ReadCursor) (ConferenceCreateRequest, error) {
	var r ConferenceCreateRequest

	if _, err := ber.ReadPerChoice(c); err != nil {
		return r, err
	}
	ok, err := ber.ReadPerObjectIdentifier(c, t124ObjectIdentifier)
	if err != nil {
		return r, err
	}
	if !ok {
		return r, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "ConferenceCreateRequest.ObjectIdentifier", Reason: "not t124-02-98"}
	}
	if _, err := ber.ReadPerLength(c); err != nil {
		return r, err
	}
	if _, err := ber.ReadPerChoice(c); err != nil {
		return r, err
	}
	if _, err := ber.ReadPerSelection(c); err != nil {
		return r, err
	}
	if _, err := ber.ReadPerLength(c); err != nil { // numeric string length
		return r, err
	}
	if _, err := c.ReadBytes("ConferenceCreateRequest.ConductibleIndicator", 1); err != nil {
		return r, err
	}
	if _, err := c.ReadBytes("ConferenceCreateRequest.Padding", 1); err != nil {
		return r, err
	}
	if _, err := ber.ReadPerNumberOfSet(c); err != nil {
		return r, err
	}
	if _, err := ber.ReadPerChoice(c); err != nil {
		return r, err
	}
	ok, err = ber.ReadPerOctetStream(c, []byte(h221ClientKey), 4)
	if err != nil {
		return r, err
	}
	if !ok {
		return r, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "ConferenceCreateRequest.H221ClientKey", Reason: "unexpected key"}
	}
	length, err := ber.ReadPerLength(c)
	if err != nil {
		return r, err
	}
	r.UserData, err = c.ReadBytes("ConferenceCreateRequest.UserData", length)
	return r, err
}

// ConferenceCreateResponse is the T.124 ConferenceCreateResponse PDU
// (MS-RDPBCGR 2.2.1.4).
type ConferenceCreateResponse struct {
	UserData []byte
}

// Size mirrors Encode byte-for-byte: choice(1) + objectIdentifier(6) +
// outer length + choice(1) + nodeID(2, fixed-width PER16) + tag (length
// byte + 1 content byte) + result enumerated(1) + numberOfSet(1) +
// choice(1) + H.221 server key (length byte + 4 content bytes) + user-data
// length + user data.
func (r ConferenceCreateResponse) Size() int {
	return 1 + 6 + perLengthSize(38+len(r.UserData)) + 1 + 2 + 2 + 1 + 1 + 1 +
		(1 + 4) + perLengthSize(len(r.UserData)) + len(r.UserData)
}

func (r ConferenceCreateResponse) Encode(c *pdu.Cursor) error {
	ber.WritePerChoice(c, 0)
	ber.WritePerObjectIdentifier(c, t124ObjectIdentifier)
	ber.WritePerLength(c, uint16(38+len(r.UserData)))

	ber.WritePerChoice(c, 0)
	ber.WritePerInteger16(c, 1001, 1001) // nodeID - minimum
	ber.WritePerInteger(c, 1)            // tag
	c.WriteU8(0)                         // result (enumerated): rt-successful
	ber.WritePerNumberOfSet(c, 1)
	ber.WritePerChoice(c, 0xc0)
	ber.WritePerOctetStream(c, []byte(h221ServerKey), 4)
	ber.WritePerOctetStream(c, r.UserData, 0)
	return nil
}

func DecodeConferenceCreateResponse(c *pdu.ReadCursor) (ConferenceCreateResponse, error) {
	var r ConferenceCreateResponse

	if _, err := ber.ReadPerChoice(c); err != nil {
		return r, err
	}
	ok, err := ber.ReadPerObjectIdentifier(c, t124ObjectIdentifier)
	if err != nil {
		return r, err
	}
	if !ok {
		return r, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "ConferenceCreateResponse.ObjectIdentifier", Reason: "not t124-02-98"}
	}
	if _, err := ber.ReadPerLength(c); err != nil {
		return r, err
	}
	if _, err := ber.ReadPerChoice(c); err != nil {
		return r, err
	}
	if _, err := ber.ReadPerInteger16(c, 1001); err != nil {
		return r, err
	}
	if _, err := ber.ReadPerInteger(c); err != nil {
		return r, err
	}
	if _, err := ber.ReadPerEnumerated(c); err != nil {
		return r, err
	}
	if _, err := ber.ReadPerNumberOfSet(c); err != nil {
		return r, err
	}
	if _, err := ber.ReadPerChoice(c); err != nil {
		return r, err
	}
	ok, err = ber.ReadPerOctetStream(c, []byte(h221ServerKey), 4)
	if err != nil {
		return r, err
	}
	if !ok {
		return r, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "ConferenceCreateResponse.H221ServerKey", Reason: "unexpected key"}
	}
	length, err := ber.ReadPerLength(c)
	if err != nil {
		return r, err
	}
	r.UserData, err = c.ReadBytes("ConferenceCreateResponse.UserData", length)
	return r, err
}
