package ber

import "github.com/kulaginds/rdp-core/pkg/pdu"

// PER (ITU-T X.691) aligned-variant helpers for the T.124 GCC Conference
// Create Request/Response bodies (MS-RDPBCGR 2.2.1.3.1/2.2.1.4.1). RDP only
// ever uses a handful of PER constructs, so this mirrors the teacher's
// narrow per.go rather than a general PER codec.

// WritePerLength writes a PER length determinant (0-0x7F short form,
// 0x8000-prefixed 16-bit long form otherwise).
func WritePerLength(c *pdu.Cursor, n uint16) {
	if n > 0x7F {
		c.WriteU16BE(n | 0x8000)
		return
	}
	c.WriteU8(uint8(n))
}

func ReadPerLength(c *pdu.ReadCursor) (int, error) {
	b, err := c.ReadU8("per.Length")
	if err != nil {
		return 0, err
	}
	if b&0x80 != 0x80 {
		return int(b), nil
	}
	hi := b &^ 0x80
	lo, err := c.ReadU8("per.Length.Low")
	if err != nil {
		return 0, err
	}
	return int(hi)<<8 | int(lo), nil
}

// WritePerChoice writes a single PER choice/selector octet.
func WritePerChoice(c *pdu.Cursor, choice uint8) { c.WriteU8(choice) }

func ReadPerChoice(c *pdu.ReadCursor) (uint8, error) { return c.ReadU8("per.Choice") }

// WritePerObjectIdentifier writes the 5-octet packed form of the T.124
// {0 0 20 124 0 1} object identifier used by every GCC Conference Create
// PDU.
func WritePerObjectIdentifier(c *pdu.Cursor, oid [6]byte) {
	WritePerLength(c, 5)
	c.WriteU8((oid[0] << 4) | (oid[1] & 0x0F))
	c.WriteBytes(oid[2:])
}

func ReadPerObjectIdentifier(c *pdu.ReadCursor, want [6]byte) (bool, error) {
	length, err := ReadPerLength(c)
	if err != nil {
		return false, err
	}
	if length != 5 {
		return false, nil
	}
	raw, err := c.ReadBytes("per.ObjectIdentifier", 5)
	if err != nil {
		return false, err
	}
	got := [6]byte{raw[0] >> 4, raw[0] & 0x0F, raw[1], raw[2], raw[3], raw[4]}
	return got == want, nil
}

// WritePerInteger writes a length-prefixed unconstrained PER integer.
func WritePerInteger(c *pdu.Cursor, v uint32) {
	switch {
	case v <= 0xFF:
		WritePerLength(c, 1)
		c.WriteU8(uint8(v))
	case v <= 0xFFFF:
		WritePerLength(c, 2)
		c.WriteU16BE(uint16(v))
	default:
		WritePerLength(c, 4)
		c.WriteU32BE(v)
	}
}

func ReadPerInteger(c *pdu.ReadCursor) (uint32, error) {
	length, err := ReadPerLength(c)
	if err != nil {
		return 0, err
	}
	switch length {
	case 1:
		v, err := c.ReadU8("per.Integer1")
		return uint32(v), err
	case 2:
		v, err := c.ReadU16BE("per.Integer2")
		return uint32(v), err
	case 4:
		return c.ReadU32BE("per.Integer4")
	default:
		return 0, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "per.Integer", Reason: "unsupported PER integer length"}
	}
}

// WritePerInteger16 writes a constrained 16-bit integer as (value -
// minimum), used for GCC's channelCount and similar bounded fields.
func WritePerInteger16(c *pdu.Cursor, v, minimum uint16) { c.WriteU16BE(v - minimum) }

func ReadPerInteger16(c *pdu.ReadCursor, minimum uint16) (uint16, error) {
	v, err := c.ReadU16BE("per.Integer16")
	if err != nil {
		return 0, err
	}
	return v + minimum, nil
}

// WritePerOctetStream writes a length-prefixed byte string whose encoded
// length omits minValue bytes (the H.221 key fields are always 4 bytes and
// encode as length 0).
func WritePerOctetStream(c *pdu.Cursor, data []byte, minValue int) {
	WritePerLength(c, uint16(len(data)-minValue))
	c.WriteBytes(data)
}

func ReadPerOctetStream(c *pdu.ReadCursor, want []byte, minValue int) (bool, error) {
	length, err := ReadPerLength(c)
	if err != nil {
		return false, err
	}
	size := length + minValue
	got, err := c.ReadBytes("per.OctetStream", size)
	if err != nil {
		return false, err
	}
	if size != len(want) {
		return false, nil
	}
	for i, b := range want {
		if got[i] != b {
			return false, nil
		}
	}
	return true, nil
}

// WritePerNumericString writes a BCD-packed numeric string, as used for
// GCC's "1" conductibility-enforced field.
func WritePerNumericString(c *pdu.Cursor, s string, minValue int) {
	mLength := len(s) - minValue
	if mLength < 0 {
		mLength = minValue
	}
	WritePerLength(c, uint16(mLength))
	for i := 0; i < len(s); i += 2 {
		c1 := s[i]
		c2 := byte('0')
		if i+1 < len(s) {
			c2 = s[i+1]
		}
		c1 = (c1 - '0') % 10
		c2 = (c2 - '0') % 10
		c.WriteU8((c1 << 4) | c2)
	}
}

// WritePerPadding writes n zero padding bytes.
func WritePerPadding(c *pdu.Cursor, n int) { c.WriteBytes(make([]byte, n)) }

// WritePerNumberOfSet writes PER's SET OF element-count octet.
func WritePerNumberOfSet(c *pdu.Cursor, n uint8) { c.WriteU8(n) }

func ReadPerNumberOfSet(c *pdu.ReadCursor) (uint8, error) { return c.ReadU8("per.NumberOfSet") }

// WritePerSelection writes a PER optional-field selection bitmask octet
// (same wire shape as a choice octet, named separately since the two are
// semantically distinct in the Conference Create Request).
func WritePerSelection(c *pdu.Cursor, selection uint8) { c.WriteU8(selection) }

func ReadPerSelection(c *pdu.ReadCursor) (uint8, error) { return c.ReadU8("per.Selection") }

func ReadPerEnumerated(c *pdu.ReadCursor) (uint8, error) { return c.ReadU8("per.Enumerated") }
