// Package ber implements the subset of ASN.1 BER encoding RDP's MCS
// Connect-Initial/Connect-Response layer needs (MS-RDPBCGR 2.2.1.3/2.2.1.4),
// built on the pdu.Cursor contract rather than io.Reader/Writer: BER tags,
// definite-form lengths, integers, octet strings, and sequences.
package ber

import (
	"fmt"

	"github.com/kulaginds/rdp-core/pkg/pdu"
)

// ASN.1 class bits.
const (
	ClassUniversal       uint8 = 0x00
	ClassApplication     uint8 = 0x40
	ClassContextSpecific uint8 = 0x80
)

// Primitive/constructed bit.
const (
	PCPrimitive  uint8 = 0x00
	PCConstruct  uint8 = 0x20
)

// Universal tag numbers used by MCS/GCC.
const (
	TagMask        uint8 = 0x1F
	TagBoolean     uint8 = 0x01
	TagInteger     uint8 = 0x02
	TagOctetString uint8 = 0x04
	TagEnumerated  uint8 = 0x0A
	TagSequence    uint8 = 0x10
)

// WriteLength writes a BER definite-form length, short form for n <= 0x7F
// and long form (with a leading octet count) otherwise.
func WriteLength(c *pdu.Cursor, n int) {
	switch {
	case n > 0xFF:
		c.WriteU8(0x82)
		c.WriteU16BE(uint16(n))
	case n > 0x7F:
		c.WriteU8(0x81)
		c.WriteU8(uint8(n))
	default:
		c.WriteU8(uint8(n))
	}
}

// ReadLength reads a BER definite-form length.
func ReadLength(c *pdu.ReadCursor) (int, error) {
	b, err := c.ReadU8("ber.Length")
	if err != nil {
		return 0, err
	}
	if b&0x80 == 0 {
		return int(b), nil
	}
	n := int(b &^ 0x80)
	switch n {
	case 1:
		v, err := c.ReadU8("ber.Length.Long1")
		return int(v), err
	case 2:
		v, err := c.ReadU16BE("ber.Length.Long2")
		return int(v), err
	default:
		return 0, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "ber.Length", Reason: "long-form length must be 1 or 2 octets"}
	}
}

// WriteApplicationTag writes an application-class constructed tag followed
// by its length, used to open MCS Connect-Initial/Response's outer
// application-class wrapper.
func WriteApplicationTag(c *pdu.Cursor, tag uint8, contentLen int) {
	if tag > 30 {
		c.WriteU8(0x7F)
		c.WriteU8(tag)
	} else {
		c.WriteU8(ClassApplication | PCConstruct | (tag & TagMask))
	}
	WriteLength(c, contentLen)
}

// ReadApplicationTag reads an application-class constructed tag and
// returns its tag number and content length.
func ReadApplicationTag(c *pdu.ReadCursor) (tag uint8, length int, err error) {
	b, err := c.ReadU8("ber.ApplicationTag")
	if err != nil {
		return 0, 0, err
	}
	if b&0x1F == 0x1F {
		t, err := c.ReadU8("ber.ApplicationTag.Extended")
		if err != nil {
			return 0, 0, err
		}
		tag = t
	} else {
		tag = b & TagMask
	}
	if b&(ClassApplication|PCConstruct) != (ClassApplication | PCConstruct) {
		return 0, 0, fmt.Errorf("ber: expected application-class constructed tag, got 0x%02x", b)
	}
	length, err = ReadLength(c)
	return tag, length, err
}

// WriteContextTag writes a context-specific constructed tag followed by
// its length, the form CredSSP's TSRequest uses for every one of its
// optional fields ([0] version, [1] negoTokens, and so on).
func WriteContextTag(c *pdu.Cursor, tag uint8, contentLen int) {
	c.WriteU8(ClassContextSpecific | PCConstruct | (tag & TagMask))
	WriteLength(c, contentLen)
}

// ReadContextTag reads a context-specific constructed tag and returns its
// tag number and content length.
func ReadContextTag(c *pdu.ReadCursor) (tag uint8, length int, err error) {
	b, err := c.ReadU8("ber.ContextTag")
	if err != nil {
		return 0, 0, err
	}
	if b&(ClassContextSpecific|PCConstruct) != (ClassContextSpecific | PCConstruct) {
		return 0, 0, fmt.Errorf("ber: expected context-specific constructed tag, got 0x%02x", b)
	}
	tag = b & TagMask
	length, err = ReadLength(c)
	return tag, length, err
}

func writeUniversalTag(c *pdu.Cursor, tag uint8, constructed bool) {
	pc := PCPrimitive
	if constructed {
		pc = PCConstruct
	}
	c.WriteU8(ClassUniversal | pc | (tag & TagMask))
}

func readUniversalTag(c *pdu.ReadCursor, tag uint8, constructed bool) error {
	b, err := c.ReadU8("ber.UniversalTag")
	if err != nil {
		return err
	}
	pc := PCPrimitive
	if constructed {
		pc = PCConstruct
	}
	want := ClassUniversal | pc | (tag & TagMask)
	if b != want {
		return fmt.Errorf("ber: expected universal tag 0x%02x, got 0x%02x", want, b)
	}
	return nil
}

// WriteSequence writes a constructed SEQUENCE tag and length around
// already-encoded content.
func WriteSequence(c *pdu.Cursor, content []byte) {
	writeUniversalTag(c, TagSequence, true)
	WriteLength(c, len(content))
	c.WriteBytes(content)
}

// WriteSequenceHeader writes just the constructed SEQUENCE tag and length,
// for callers that encode the content directly onto the cursor rather than
// building it as a separate byte slice first.
func WriteSequenceHeader(c *pdu.Cursor, contentLen int) {
	writeUniversalTag(c, TagSequence, true)
	WriteLength(c, contentLen)
}

func ReadSequenceHeader(c *pdu.ReadCursor) (length int, err error) {
	if err := readUniversalTag(c, TagSequence, true); err != nil {
		return 0, err
	}
	return ReadLength(c)
}

// WriteInteger writes a minimal-width INTEGER.
func WriteInteger(c *pdu.Cursor, n uint32) {
	writeUniversalTag(c, TagInteger, false)
	switch {
	case n <= 0xFF:
		WriteLength(c, 1)
		c.WriteU8(uint8(n))
	case n <= 0xFFFF:
		WriteLength(c, 2)
		c.WriteU16BE(uint16(n))
	default:
		WriteLength(c, 4)
		c.WriteU32BE(n)
	}
}

func ReadInteger(c *pdu.ReadCursor) (uint32, error) {
	if err := readUniversalTag(c, TagInteger, false); err != nil {
		return 0, err
	}
	length, err := ReadLength(c)
	if err != nil {
		return 0, err
	}
	switch length {
	case 1:
		v, err := c.ReadU8("ber.Integer1")
		return uint32(v), err
	case 2:
		v, err := c.ReadU16BE("ber.Integer2")
		return uint32(v), err
	case 3:
		hi, err := c.ReadU8("ber.Integer3.Hi")
		if err != nil {
			return 0, err
		}
		lo, err := c.ReadU16BE("ber.Integer3.Lo")
		if err != nil {
			return 0, err
		}
		return uint32(hi)<<16 | uint32(lo), nil
	case 4:
		return c.ReadU32BE("ber.Integer4")
	default:
		return 0, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "ber.Integer", Reason: "unsupported integer length"}
	}
}

// WriteEnumerated writes a single-octet ENUMERATED value.
func WriteEnumerated(c *pdu.Cursor, v uint8) {
	writeUniversalTag(c, TagEnumerated, false)
	WriteLength(c, 1)
	c.WriteU8(v)
}

func ReadEnumerated(c *pdu.ReadCursor) (uint8, error) {
	if err := readUniversalTag(c, TagEnumerated, false); err != nil {
		return 0, err
	}
	length, err := ReadLength(c)
	if err != nil {
		return 0, err
	}
	if length != 1 {
		return 0, fmt.Errorf("ber: enumerated length must be 1, got %d", length)
	}
	return c.ReadU8("ber.Enumerated")
}

// WriteOctetString writes an OCTET STRING.
func WriteOctetString(c *pdu.Cursor, data []byte) {
	writeUniversalTag(c, TagOctetString, false)
	WriteLength(c, len(data))
	c.WriteBytes(data)
}

func ReadOctetString(c *pdu.ReadCursor) ([]byte, error) {
	if err := readUniversalTag(c, TagOctetString, false); err != nil {
		return nil, err
	}
	length, err := ReadLength(c)
	if err != nil {
		return nil, err
	}
	return c.ReadBytes("ber.OctetString", length)
}

// WriteBoolean writes a BOOLEAN.
func WriteBoolean(c *pdu.Cursor, v bool) {
	writeUniversalTag(c, TagBoolean, false)
	WriteLength(c, 1)
	if v {
		c.WriteU8(0xFF)
	} else {
		c.WriteU8(0x00)
	}
}

func ReadBoolean(c *pdu.ReadCursor) (bool, error) {
	if err := readUniversalTag(c, TagBoolean, false); err != nil {
		return false, err
	}
	length, err := ReadLength(c)
	if err != nil {
		return false, err
	}
	if length != 1 {
		return false, fmt.Errorf("ber: boolean length must be 1, got %d", length)
	}
	v, err := c.ReadU8("ber.Boolean")
	return v != 0, err
}
