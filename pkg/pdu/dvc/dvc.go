// Package dvc implements the Dynamic Virtual Channel wire format
// (MS-RDPEDYC): the packed command header, channel create/data/close PDUs,
// and the capabilities exchange. Reassembly of DataFirst/Data fragments
// into whole messages is the channel multiplexer's job, not this package's;
// this package only encodes and decodes individual PDUs.
package dvc

import "github.com/kulaginds/rdp-core/pkg/pdu"

// Cmd is the 4-bit command discriminator of a DYNVC header byte.
type Cmd uint8

const (
	CmdCreate    Cmd = 0x01
	CmdDataFirst Cmd = 0x02
	CmdData      Cmd = 0x03
	CmdClose     Cmd = 0x04
	CmdCapsVer   Cmd = 0x05
)

// FieldWidth selects the byte width of a minimality-encoded field (channel
// ID or length), per the field-type-encoding 2-bit subfield of the header
// byte.
type FieldWidth uint8

const (
	FieldWidth1 FieldWidth = 0
	FieldWidth2 FieldWidth = 1
	FieldWidth4 FieldWidth = 2
)

// minimalWidth picks the smallest FieldWidth that can hold v, the
// invariant the encoder must uphold so the header stays minimal.
func minimalWidth(v uint32) FieldWidth {
	switch {
	case v <= 0xFF:
		return FieldWidth1
	case v <= 0xFFFF:
		return FieldWidth2
	default:
		return FieldWidth4
	}
}

func writeField(c *pdu.Cursor, w FieldWidth, v uint32) {
	switch w {
	case FieldWidth1:
		c.WriteU8(uint8(v))
	case FieldWidth2:
		c.WriteU16LE(uint16(v))
	default:
		c.WriteU32LE(v)
	}
}

func fieldSize(w FieldWidth) int {
	switch w {
	case FieldWidth1:
		return 1
	case FieldWidth2:
		return 2
	default:
		return 4
	}
}

func readField(c *pdu.ReadCursor, w FieldWidth, field string) (uint32, error) {
	switch w {
	case FieldWidth1:
		v, err := c.ReadU8(field)
		return uint32(v), err
	case FieldWidth2:
		v, err := c.ReadU16LE(field)
		return uint32(v), err
	default:
		return c.ReadU32LE(field)
	}
}

// Header is the single packed byte {Cmd:4, FieldTypeEncoding:2,
// PduDependent:2} prefixing every DVC PDU (MS-RDPEDYC 2.2).
type Header struct {
	Cmd               Cmd
	ChannelIDWidth    FieldWidth
	PduDependent      uint8 // length-field width for DataFirst, reserved otherwise
}

func (h Header) encode(c *pdu.Cursor) {
	b := uint8(h.ChannelIDWidth&0x03) | (h.PduDependent&0x03)<<2 | uint8(h.Cmd&0x0F)<<4
	c.WriteU8(b)
}

func decodeHeader(c *pdu.ReadCursor) (Header, error) {
	b, err := c.ReadU8("dvc.Header")
	if err != nil {
		return Header{}, err
	}
	return Header{
		ChannelIDWidth: FieldWidth(b & 0x03),
		PduDependent:   (b >> 2) & 0x03,
		Cmd:            Cmd((b >> 4) & 0x0F),
	}, nil
}

// CreateRequest is DYNVC_CREATE_REQ (MS-RDPEDYC 2.2.2.1), sent by the
// server to request a new dynamic channel.
type CreateRequest struct {
	ChannelID   uint32
	ChannelName string
}

func (r CreateRequest) Size() int {
	return 1 + fieldSize(minimalWidth(r.ChannelID)) + len(r.ChannelName) + 1
}

func (r CreateRequest) Encode(c *pdu.Cursor) error {
	w := minimalWidth(r.ChannelID)
	Header{Cmd: CmdCreate, ChannelIDWidth: w}.encode(c)
	writeField(c, w, r.ChannelID)
	c.WriteBytes([]byte(r.ChannelName))
	c.WriteU8(0)
	return nil
}

// DecodeCreateRequest decodes a DYNVC_CREATE_REQ body, given the channel ID
// width carried in the already-consumed header.
func DecodeCreateRequest(c *pdu.ReadCursor, idWidth FieldWidth) (CreateRequest, error) {
	var r CreateRequest
	id, err := readField(c, idWidth, "CreateRequest.ChannelID")
	if err != nil {
		return r, err
	}
	r.ChannelID = id

	name, err := readCString(c, "CreateRequest.ChannelName")
	if err != nil {
		return r, err
	}
	r.ChannelName = name
	return r, nil
}

func readCString(c *pdu.ReadCursor, field string) (string, error) {
	var b []byte
	for {
		v, err := c.ReadU8(field)
		if err != nil {
			return "", err
		}
		if v == 0 {
			break
		}
		b = append(b, v)
	}
	return string(b), nil
}

// CreateResponse result codes (MS-RDPEDYC 2.2.2.2).
const (
	CreateResultOK         uint32 = 0x00000000
	CreateResultNoListener uint32 = 0x00000003
)

// CreateResponse is DYNVC_CREATE_RSP, sent by the client in reply to a
// CreateRequest.
type CreateResponse struct {
	ChannelID    uint32
	CreationCode uint32
}

func (r CreateResponse) IsSuccess() bool { return r.CreationCode == CreateResultOK }

func (r CreateResponse) Size() int {
	return 1 + fieldSize(minimalWidth(r.ChannelID)) + 4
}

func (r CreateResponse) Encode(c *pdu.Cursor) error {
	w := minimalWidth(r.ChannelID)
	Header{Cmd: CmdCreate, ChannelIDWidth: w}.encode(c)
	writeField(c, w, r.ChannelID)
	c.WriteU32LE(r.CreationCode)
	return nil
}

func DecodeCreateResponse(c *pdu.ReadCursor, idWidth FieldWidth) (CreateResponse, error) {
	var r CreateResponse
	id, err := readField(c, idWidth, "CreateResponse.ChannelID")
	if err != nil {
		return r, err
	}
	r.ChannelID = id
	code, err := c.ReadU32LE("CreateResponse.CreationCode")
	if err != nil {
		return r, err
	}
	r.CreationCode = code
	return r, nil
}

// DataFirst is DYNVC_DATA_FIRST (MS-RDPEDYC 2.2.3.1): the first fragment of
// a multi-fragment message, carrying the total uncompressed length. Per
// A new DataFirst for a channel drops any pending assembly for that
// channel; that rule lives in the channel multiplexer, not here.
type DataFirst struct {
	ChannelID uint32
	Length    uint32
	Data      []byte
}

func (d DataFirst) Size() int {
	return 1 + fieldSize(minimalWidth(d.ChannelID)) + fieldSize(minimalWidth(d.Length)) + len(d.Data)
}

func (d DataFirst) Encode(c *pdu.Cursor) error {
	idW := minimalWidth(d.ChannelID)
	lenW := minimalWidth(d.Length)
	Header{Cmd: CmdDataFirst, ChannelIDWidth: idW, PduDependent: uint8(lenW)}.encode(c)
	writeField(c, idW, d.ChannelID)
	writeField(c, lenW, d.Length)
	c.WriteBytes(d.Data)
	return nil
}

// DecodeDataFirst decodes a DYNVC_DATA_FIRST body. remaining is everything
// left in c after the length field: the multiplexer owns fragment
// reassembly, so this returns the raw tail rather than requiring the full
// message to be present.
func DecodeDataFirst(c *pdu.ReadCursor, idWidth, lenWidth FieldWidth) (DataFirst, error) {
	var d DataFirst
	id, err := readField(c, idWidth, "DataFirst.ChannelID")
	if err != nil {
		return d, err
	}
	d.ChannelID = id
	length, err := readField(c, lenWidth, "DataFirst.Length")
	if err != nil {
		return d, err
	}
	d.Length = length
	d.Data, err = c.ReadBytes("DataFirst.Data", c.Remaining())
	return d, err
}

// Data is DYNVC_DATA (MS-RDPEDYC 2.2.3.2): either a standalone message or a
// continuation fragment following a DataFirst.
type Data struct {
	ChannelID uint32
	Data      []byte
}

func (d Data) Size() int {
	return 1 + fieldSize(minimalWidth(d.ChannelID)) + len(d.Data)
}

func (d Data) Encode(c *pdu.Cursor) error {
	w := minimalWidth(d.ChannelID)
	Header{Cmd: CmdData, ChannelIDWidth: w}.encode(c)
	writeField(c, w, d.ChannelID)
	c.WriteBytes(d.Data)
	return nil
}

func DecodeData(c *pdu.ReadCursor, idWidth FieldWidth) (Data, error) {
	var d Data
	id, err := readField(c, idWidth, "Data.ChannelID")
	if err != nil {
		return d, err
	}
	d.ChannelID = id
	var err2 error
	d.Data, err2 = c.ReadBytes("Data.Data", c.Remaining())
	return d, err2
}

// Close is DYNVC_CLOSE (MS-RDPEDYC 2.2.4), sent by either side to tear down
// a dynamic channel.
type Close struct {
	ChannelID uint32
}

func (cl Close) Size() int { return 1 + fieldSize(minimalWidth(cl.ChannelID)) }

func (cl Close) Encode(c *pdu.Cursor) error {
	w := minimalWidth(cl.ChannelID)
	Header{Cmd: CmdClose, ChannelIDWidth: w}.encode(c)
	writeField(c, w, cl.ChannelID)
	return nil
}

func DecodeClose(c *pdu.ReadCursor, idWidth FieldWidth) (Close, error) {
	var cl Close
	id, err := readField(c, idWidth, "Close.ChannelID")
	if err != nil {
		return cl, err
	}
	cl.ChannelID = id
	return cl, nil
}

// Caps versions (MS-RDPEDYC 2.2.1.1); versions 2 and 3 carry per-priority
// charges.
const (
	CapsVersion1 uint16 = 0x0001
	CapsVersion2 uint16 = 0x0002
	CapsVersion3 uint16 = 0x0003
)

// Caps is DYNVC_CAPS, exchanged once at DVC channel startup to agree on
// protocol version and, from v2 onward, per-priority-level byte charges.
type Caps struct {
	Version          uint16
	PriorityCharges  [4]uint16 // only meaningful/present for Version >= CapsVersion2
}

func (c Caps) Size() int {
	n := 4 // header byte + pad + version
	if c.Version >= CapsVersion2 {
		n += 8
	}
	return n
}

func (caps Caps) Encode(c *pdu.Cursor) error {
	Header{Cmd: CmdCapsVer}.encode(c)
	c.WriteU8(0) // pad
	c.WriteU16LE(caps.Version)
	if caps.Version >= CapsVersion2 {
		for _, pc := range caps.PriorityCharges {
			c.WriteU16LE(pc)
		}
	}
	return nil
}

// DecodeCaps decodes a full DYNVC_CAPS PDU including its header byte.
func DecodeCaps(c *pdu.ReadCursor) (Caps, error) {
	var caps Caps
	h, err := decodeHeader(c)
	if err != nil {
		return caps, err
	}
	if h.Cmd != CmdCapsVer {
		return caps, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "Caps.Cmd", Got: uint32(h.Cmd)}
	}
	if _, err := c.ReadU8("Caps.Pad"); err != nil {
		return caps, err
	}
	version, err := c.ReadU16LE("Caps.Version")
	if err != nil {
		return caps, err
	}
	caps.Version = version
	if version >= CapsVersion2 {
		for i := range caps.PriorityCharges {
			v, err := c.ReadU16LE("Caps.PriorityCharge")
			if err != nil {
				return caps, err
			}
			caps.PriorityCharges[i] = v
		}
	}
	return caps, nil
}

// PeekHeader decodes just the header byte without consuming the cursor's
// position past it, letting the channel multiplexer dispatch on Cmd before
// choosing which Decode* function to call for the body.
func PeekHeader(c *pdu.ReadCursor) (Header, error) {
	raw, ok := c.Peek(1)
	if !ok {
		return Header{}, &pdu.DecodeError{Kind: pdu.NotEnoughBytes, Field: "dvc.Header", Received: 0, Expected: 1}
	}
	b := raw[0]
	return Header{
		ChannelIDWidth: FieldWidth(b & 0x03),
		PduDependent:   (b >> 2) & 0x03,
		Cmd:            Cmd((b >> 4) & 0x0F),
	}, nil
}

// DecodeHeader consumes the header byte, for callers that already peeked
// and decided how to proceed.
func DecodeHeader(c *pdu.ReadCursor) (Header, error) { return decodeHeader(c) }
