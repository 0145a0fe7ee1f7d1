package pdu

// PointerMessageType is the messageType field shared by slow-path pointer
// updates (MS-RDPBCGR 2.2.9.1.1.4) and, implicitly, the fast-path
// UpdateCode that selects among them.
type PointerMessageType int

const (
	PointerMessageSystemNull    PointerMessageType = iota // TS_SYSTEMPOINTERATTRIBUTE, systemPointerType NULL
	PointerMessageSystemDefault                           // ...systemPointerType DEFAULT
	PointerMessagePosition
	PointerMessageColor
	PointerMessageCached
	PointerMessageNew
	PointerMessageLarge
)

// PositionUpdate is TS_POINTER_POSITION (MS-RDPBCGR 2.2.9.1.1.4.2 /
// fast-path UpdateCode PointerPosition).
type PositionUpdate struct {
	X, Y uint16
}

func (p PositionUpdate) Size() int { return 4 }

func (p PositionUpdate) Encode(c *Cursor) error {
	c.WriteU16LE(p.X)
	c.WriteU16LE(p.Y)
	return nil
}

func DecodePositionUpdate(c *ReadCursor) (PositionUpdate, error) {
	var p PositionUpdate
	var err error
	if p.X, err = c.ReadU16LE("PositionUpdate.X"); err != nil {
		return p, err
	}
	if p.Y, err = c.ReadU16LE("PositionUpdate.Y"); err != nil {
		return p, err
	}
	return p, nil
}

// CachedPointerUpdate is TS_CACHEDPOINTERATTRIBUTE (MS-RDPBCGR
// 2.2.9.1.1.4.6 / fast-path UpdateCode CachedPointer): switches the cursor
// to a previously-cached shape by index.
type CachedPointerUpdate struct {
	CacheIndex uint16
}

func (p CachedPointerUpdate) Size() int { return 2 }

func (p CachedPointerUpdate) Encode(c *Cursor) error {
	c.WriteU16LE(p.CacheIndex)
	return nil
}

func DecodeCachedPointerUpdate(c *ReadCursor) (CachedPointerUpdate, error) {
	idx, err := c.ReadU16LE("CachedPointerUpdate.CacheIndex")
	return CachedPointerUpdate{CacheIndex: idx}, err
}

// ColorPointerUpdate is TS_COLORPOINTERATTRIBUTE (MS-RDPBCGR 2.2.9.1.1.4.4):
// a 24bpp XOR/AND mask cursor shape. The mask bytes are preserved opaque;
// turning them into a displayable cursor image is a decoder concern
// outside this core.
type ColorPointerUpdate struct {
	CacheIndex  uint16
	HotSpotX    uint16
	HotSpotY    uint16
	Width       uint16
	Height      uint16
	XorBpp      uint16 // 0 for the legacy 24bpp ColorPointer variant
	AndMaskData []byte
	XorMaskData []byte
}

func (p ColorPointerUpdate) bodySize() int {
	n := 2 + 2 + 2 + 2 + 2
	if p.XorBpp != 0 {
		n += 2 // New Pointer update carries an explicit xorBpp field
	}
	n += 2 + 2 // lengthAndMask, lengthXorMask
	n += len(p.XorMaskData) + len(p.AndMaskData)
	n += 1 // pad1
	return n
}

func (p ColorPointerUpdate) Size() int { return p.bodySize() }

func (p ColorPointerUpdate) encode(c *Cursor, newPointer bool) error {
	c.WriteU16LE(p.CacheIndex)
	c.WriteU16LE(p.HotSpotX)
	c.WriteU16LE(p.HotSpotY)
	if newPointer {
		c.WriteU16LE(p.XorBpp)
	}
	c.WriteU16LE(p.Width)
	c.WriteU16LE(p.Height)
	c.WriteU16LE(uint16(len(p.AndMaskData)))
	c.WriteU16LE(uint16(len(p.XorMaskData)))
	c.WriteBytes(p.XorMaskData)
	c.WriteBytes(p.AndMaskData)
	c.WriteU8(0) // pad1
	return nil
}

// Encode writes the legacy 24bpp ColorPointer form (no xorBpp field). Use
// NewPointerUpdate for the New Pointer (variable-bpp) wire form.
func (p ColorPointerUpdate) Encode(c *Cursor) error { return p.encode(c, false) }

func decodeColorPointerBody(c *ReadCursor, newPointer bool) (ColorPointerUpdate, error) {
	var p ColorPointerUpdate
	var err error
	if p.CacheIndex, err = c.ReadU16LE("ColorPointerUpdate.CacheIndex"); err != nil {
		return p, err
	}
	if p.HotSpotX, err = c.ReadU16LE("ColorPointerUpdate.HotSpotX"); err != nil {
		return p, err
	}
	if p.HotSpotY, err = c.ReadU16LE("ColorPointerUpdate.HotSpotY"); err != nil {
		return p, err
	}
	if newPointer {
		if p.XorBpp, err = c.ReadU16LE("ColorPointerUpdate.XorBpp"); err != nil {
			return p, err
		}
	}
	if p.Width, err = c.ReadU16LE("ColorPointerUpdate.Width"); err != nil {
		return p, err
	}
	if p.Height, err = c.ReadU16LE("ColorPointerUpdate.Height"); err != nil {
		return p, err
	}
	andLen, err := c.ReadU16LE("ColorPointerUpdate.LengthAndMask")
	if err != nil {
		return p, err
	}
	xorLen, err := c.ReadU16LE("ColorPointerUpdate.LengthXorMask")
	if err != nil {
		return p, err
	}
	if p.XorMaskData, err = c.ReadBytes("ColorPointerUpdate.XorMaskData", int(xorLen)); err != nil {
		return p, err
	}
	if p.AndMaskData, err = c.ReadBytes("ColorPointerUpdate.AndMaskData", int(andLen)); err != nil {
		return p, err
	}
	if _, err = c.ReadU8("ColorPointerUpdate.Pad1"); err != nil {
		return p, err
	}
	return p, nil
}

// DecodeColorPointerUpdate decodes the legacy 24bpp ColorPointer form.
func DecodeColorPointerUpdate(c *ReadCursor) (ColorPointerUpdate, error) {
	return decodeColorPointerBody(c, false)
}

// NewPointerUpdate is TS_POINTERATTRIBUTE (MS-RDPBCGR 2.2.9.1.1.4.5 /
// fast-path UpdateCode Pointer): ColorPointerUpdate plus an explicit
// per-pixel bit depth.
func DecodeNewPointerUpdate(c *ReadCursor) (ColorPointerUpdate, error) {
	return decodeColorPointerBody(c, true)
}

func (p ColorPointerUpdate) EncodeNew(c *Cursor) error { return p.encode(c, true) }

// LargePointerUpdate is TS_LARGE_POINTER_ATTRIBUTE (MS-RDPBCGR
// 2.2.9.1.2.1.13, fast-path UpdateCode LargePointer): identical shape to
// ColorPointerUpdate but with 32-bit mask lengths and dimensions up to
// 384x384, for cursors too large for the classic form.
type LargePointerUpdate struct {
	CacheIndex uint16
	HotSpotX   uint16
	HotSpotY   uint16
	Width      uint16
	Height     uint16
	XorBpp     uint16
	AndMaskData []byte
	XorMaskData []byte
}

func (p LargePointerUpdate) Size() int {
	return 2 + 2 + 2 + 2 + 2 + 2 + 4 + 4 + len(p.XorMaskData) + len(p.AndMaskData) + 1
}

func (p LargePointerUpdate) Encode(c *Cursor) error {
	c.WriteU16LE(p.CacheIndex)
	c.WriteU16LE(p.XorBpp)
	c.WriteU16LE(p.HotSpotX)
	c.WriteU16LE(p.HotSpotY)
	c.WriteU16LE(p.Width)
	c.WriteU16LE(p.Height)
	c.WriteU32LE(uint32(len(p.AndMaskData)))
	c.WriteU32LE(uint32(len(p.XorMaskData)))
	c.WriteBytes(p.XorMaskData)
	c.WriteBytes(p.AndMaskData)
	c.WriteU8(0)
	return nil
}

func DecodeLargePointerUpdate(c *ReadCursor) (LargePointerUpdate, error) {
	var p LargePointerUpdate
	var err error
	if p.CacheIndex, err = c.ReadU16LE("LargePointerUpdate.CacheIndex"); err != nil {
		return p, err
	}
	if p.XorBpp, err = c.ReadU16LE("LargePointerUpdate.XorBpp"); err != nil {
		return p, err
	}
	if p.HotSpotX, err = c.ReadU16LE("LargePointerUpdate.HotSpotX"); err != nil {
		return p, err
	}
	if p.HotSpotY, err = c.ReadU16LE("LargePointerUpdate.HotSpotY"); err != nil {
		return p, err
	}
	if p.Width, err = c.ReadU16LE("LargePointerUpdate.Width"); err != nil {
		return p, err
	}
	if p.Height, err = c.ReadU16LE("LargePointerUpdate.Height"); err != nil {
		return p, err
	}
	andLen, err := c.ReadU32LE("LargePointerUpdate.LengthAndMask")
	if err != nil {
		return p, err
	}
	xorLen, err := c.ReadU32LE("LargePointerUpdate.LengthXorMask")
	if err != nil {
		return p, err
	}
	if p.XorMaskData, err = c.ReadBytes("LargePointerUpdate.XorMaskData", int(xorLen)); err != nil {
		return p, err
	}
	if p.AndMaskData, err = c.ReadBytes("LargePointerUpdate.AndMaskData", int(andLen)); err != nil {
		return p, err
	}
	if _, err = c.ReadU8("LargePointerUpdate.Pad1"); err != nil {
		return p, err
	}
	return p, nil
}

// SystemPointerUpdate is TS_SYSTEMPOINTERATTRIBUTE (MS-RDPBCGR
// 2.2.9.1.1.4.3): switches to the host OS's null or default cursor.
type SystemPointerUpdate struct {
	Null bool // true selects SYSPTR_NULL, false SYSPTR_DEFAULT
}

func (p SystemPointerUpdate) Size() int { return 4 }

func (p SystemPointerUpdate) Encode(c *Cursor) error {
	if p.Null {
		c.WriteU32LE(0x00000000)
	} else {
		c.WriteU32LE(0x7FFFFFFF)
	}
	return nil
}

func DecodeSystemPointerUpdate(c *ReadCursor) (SystemPointerUpdate, error) {
	v, err := c.ReadU32LE("SystemPointerUpdate.SystemPointerType")
	if err != nil {
		return SystemPointerUpdate{}, err
	}
	return SystemPointerUpdate{Null: v == 0}, nil
}

// SlowPathPointerUpdate is TS_POINTER_PDU's body once the leading
// messageType + 2 pad bytes are stripped (MS-RDPBCGR 2.2.9.1.1.4): exactly
// one of the fields is populated, selected by the same messageType
// vocabulary the fast-path UpdateCode uses.
type SlowPathPointerUpdate struct {
	MessageType PointerMessageType
	System      *SystemPointerUpdate
	Position    *PositionUpdate
	Color       *ColorPointerUpdate
	NewPointer  *ColorPointerUpdate
	Cached      *CachedPointerUpdate
}

// slowPathPointerMessageType values (MS-RDPBCGR 2.2.9.1.1.4's messageType).
const (
	wireMessageTypeSystem   uint16 = 0x0001
	wireMessageTypePosition uint16 = 0x0003
	wireMessageTypeColor    uint16 = 0x0006
	wireMessageTypeCached   uint16 = 0x0009
	wireMessageTypePointer  uint16 = 0x0008
)

// DecodeSlowPathPointerUpdate decodes TS_POINTER_PDU's messageType + 2 pad
// bytes + body.
func DecodeSlowPathPointerUpdate(c *ReadCursor) (SlowPathPointerUpdate, error) {
	var u SlowPathPointerUpdate
	raw, err := c.ReadU16LE("SlowPathPointerUpdate.MessageType")
	if err != nil {
		return u, err
	}
	if _, err := c.ReadU16LE("SlowPathPointerUpdate.Pad2"); err != nil {
		return u, err
	}
	switch raw {
	case wireMessageTypeSystem:
		s, err := DecodeSystemPointerUpdate(c)
		if err != nil {
			return u, err
		}
		u.MessageType = PointerMessageSystemDefault
		if s.Null {
			u.MessageType = PointerMessageSystemNull
		}
		u.System = &s
	case wireMessageTypePosition:
		p, err := DecodePositionUpdate(c)
		if err != nil {
			return u, err
		}
		u.MessageType = PointerMessagePosition
		u.Position = &p
	case wireMessageTypeColor:
		p, err := DecodeColorPointerUpdate(c)
		if err != nil {
			return u, err
		}
		u.MessageType = PointerMessageColor
		u.Color = &p
	case wireMessageTypePointer:
		p, err := DecodeNewPointerUpdate(c)
		if err != nil {
			return u, err
		}
		u.MessageType = PointerMessageNew
		u.NewPointer = &p
	case wireMessageTypeCached:
		p, err := DecodeCachedPointerUpdate(c)
		if err != nil {
			return u, err
		}
		u.MessageType = PointerMessageCached
		u.Cached = &p
	default:
		return u, &DecodeError{Kind: UnexpectedMessageType, Field: "SlowPathPointerUpdate.MessageType", Got: uint32(raw)}
	}
	return u, nil
}
