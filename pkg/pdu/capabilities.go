package pdu

// CapabilitySetType is the 16-bit discriminator of a capability-set record
// (MS-RDPBCGR 2.2.1.13.1.1.1).
type CapabilitySetType uint16

const (
	CapabilitySetTypeGeneral              CapabilitySetType = 1
	CapabilitySetTypeBitmap                CapabilitySetType = 2
	CapabilitySetTypeOrder                 CapabilitySetType = 3
	CapabilitySetTypeBitmapCache            CapabilitySetType = 4
	CapabilitySetTypeControl               CapabilitySetType = 5
	CapabilitySetTypeActivation             CapabilitySetType = 7
	CapabilitySetTypePointer                CapabilitySetType = 8
	CapabilitySetTypeShare                  CapabilitySetType = 9
	CapabilitySetTypeColorCache             CapabilitySetType = 10
	CapabilitySetTypeSound                  CapabilitySetType = 12
	CapabilitySetTypeInput                  CapabilitySetType = 13
	CapabilitySetTypeFont                   CapabilitySetType = 14
	CapabilitySetTypeBrush                  CapabilitySetType = 15
	CapabilitySetTypeGlyphCache             CapabilitySetType = 16
	CapabilitySetTypeOffscreenBitmapCache    CapabilitySetType = 17
	CapabilitySetTypeVirtualChannel          CapabilitySetType = 20
	CapabilitySetTypeDrawNineGridCache       CapabilitySetType = 21
	CapabilitySetTypeDrawGdiPlus             CapabilitySetType = 22
	CapabilitySetTypeRail                    CapabilitySetType = 23
	CapabilitySetTypeWindow                  CapabilitySetType = 24
	CapabilitySetTypeCompDesk                CapabilitySetType = 25
	CapabilitySetTypeMultifragmentUpdate     CapabilitySetType = 26
	CapabilitySetTypeLargePointer            CapabilitySetType = 27
	CapabilitySetTypeSurfaceCommands         CapabilitySetType = 28
	CapabilitySetTypeBitmapCodecs            CapabilitySetType = 29
	CapabilitySetTypeFrameAcknowledge        CapabilitySetType = 30
)

// CapabilitySet is the generic {type, length, body} envelope of
// MS-RDPBCGR 2.2.1.13.1.1.1. Exactly one of the typed pointer fields is
// non-nil, selected by CapabilitySetType; unrecognized types are preserved
// as RawBody so a decoder tolerant of unknown sets can still round-trip
// them.
type CapabilitySet struct {
	CapabilitySetType CapabilitySetType

	General              *GeneralCapabilitySet
	Bitmap               *BitmapCapabilitySet
	Order                *OrderCapabilitySet
	Input                *InputCapabilitySet
	VirtualChannel       *VirtualChannelCapabilitySet
	MultifragmentUpdate  *MultifragmentUpdateCapabilitySet
	BitmapCodecs         *BitmapCodecsCapabilitySet
	Pointer              *PointerCapabilitySet

	// RawBody holds the body verbatim for capability types this codec does
	// not interpret structurally (e.g. Sound, Glyph, Brush); still encoded
	// and decoded byte-exact.
	RawBody []byte
}

func capBodySize(body Codec) int {
	if body == nil {
		return 0
	}
	return body.Size()
}

func (s CapabilitySet) bodyCodec() Codec {
	switch {
	case s.General != nil:
		return s.General
	case s.Bitmap != nil:
		return s.Bitmap
	case s.Order != nil:
		return s.Order
	case s.Input != nil:
		return s.Input
	case s.VirtualChannel != nil:
		return s.VirtualChannel
	case s.MultifragmentUpdate != nil:
		return s.MultifragmentUpdate
	case s.BitmapCodecs != nil:
		return s.BitmapCodecs
	case s.Pointer != nil:
		return s.Pointer
	default:
		return rawBody(s.RawBody)
	}
}

type rawBody []byte

func (r rawBody) Size() int { return len(r) }
func (r rawBody) Encode(c *Cursor) error {
	c.WriteBytes(r)
	return nil
}

// Size returns type(2) + length(2) + body size, matching the encoder's
// length = size(body)+4 rule.
func (s CapabilitySet) Size() int { return 4 + capBodySize(s.bodyCodec()) }

func (s CapabilitySet) Encode(c *Cursor) error {
	body := s.bodyCodec()
	c.WriteU16LE(uint16(s.CapabilitySetType))
	c.WriteU16LE(uint16(4 + capBodySize(body)))
	return body.Encode(c)
}

// DecodeCapabilitySet decodes one {type,length,body} record, truncating to
// the declared length so a sender's forward-compatible trailing bytes (per
// ) are tolerated rather than rejected.
func DecodeCapabilitySet(c *ReadCursor) (CapabilitySet, error) {
	var s CapabilitySet
	typ, err := c.ReadU16LE("CapabilitySet.Type")
	if err != nil {
		return s, err
	}
	s.CapabilitySetType = CapabilitySetType(typ)

	length, err := c.ReadU16LE("CapabilitySet.Length")
	if err != nil {
		return s, err
	}
	if length < 4 {
		return s, &DecodeError{Kind: InvalidField, Field: "CapabilitySet.Length", Reason: "length must be >= 4"}
	}
	bodyLen := int(length) - 4
	bodyBytes, err := c.ReadBytes("CapabilitySet.Body", bodyLen)
	if err != nil {
		return s, err
	}
	body := NewReadCursor(bodyBytes)

	switch s.CapabilitySetType {
	case CapabilitySetTypeGeneral:
		v, err := DecodeGeneralCapabilitySet(body)
		if err != nil {
			return s, err
		}
		s.General = &v
	case CapabilitySetTypeBitmap:
		v, err := DecodeBitmapCapabilitySet(body)
		if err != nil {
			return s, err
		}
		s.Bitmap = &v
	case CapabilitySetTypeOrder:
		v, err := DecodeOrderCapabilitySet(body)
		if err != nil {
			return s, err
		}
		s.Order = &v
	case CapabilitySetTypeInput:
		v, err := DecodeInputCapabilitySet(body)
		if err != nil {
			return s, err
		}
		s.Input = &v
	case CapabilitySetTypeVirtualChannel:
		v, err := DecodeVirtualChannelCapabilitySet(body)
		if err != nil {
			return s, err
		}
		s.VirtualChannel = &v
	case CapabilitySetTypeMultifragmentUpdate:
		v, err := DecodeMultifragmentUpdateCapabilitySet(body)
		if err != nil {
			return s, err
		}
		s.MultifragmentUpdate = &v
	case CapabilitySetTypeBitmapCodecs:
		v, err := DecodeBitmapCodecsCapabilitySet(body)
		if err != nil {
			return s, err
		}
		s.BitmapCodecs = &v
	case CapabilitySetTypePointer:
		v, err := DecodePointerCapabilitySet(body)
		if err != nil {
			return s, err
		}
		s.Pointer = &v
	default:
		s.RawBody = bodyBytes
	}
	return s, nil
}

// GeneralCapabilitySet (MS-RDPBCGR 2.2.7.1.1).
type GeneralCapabilitySet struct {
	OSMajorType           uint16
	OSMinorType           uint16
	ExtraFlags            GeneralExtraFlags
	RefreshRectSupport    uint8
	SuppressOutputSupport uint8
}

// GeneralExtraFlags is intentionally treated as a forward-compat field per
// open question: unknown bits are never rejected.
type GeneralExtraFlags uint16

const (
	GeneralExtraFlagFastPathOutputSupported GeneralExtraFlags = 0x0001
	GeneralExtraFlagNoBitmapCompressionHdr  GeneralExtraFlags = 0x0400
	GeneralExtraFlagLongCredentialsSupported GeneralExtraFlags = 0x0004
	GeneralExtraFlagDynamicDSTSupported      GeneralExtraFlags = 0x0080
	GeneralExtraFlagTileSupport               GeneralExtraFlags = 0x0100
)

func NewGeneralCapabilitySet() GeneralCapabilitySet {
	return GeneralCapabilitySet{
		OSMajorType: 0x0004, // OSMAJORTYPE_UNIX (client runs on a non-Windows host)
		OSMinorType: 0x0000,
		ExtraFlags: GeneralExtraFlagFastPathOutputSupported | GeneralExtraFlagLongCredentialsSupported |
			GeneralExtraFlagNoBitmapCompressionHdr | GeneralExtraFlagDynamicDSTSupported | GeneralExtraFlagTileSupport,
		RefreshRectSupport:    1,
		SuppressOutputSupport: 1,
	}
}

func (s GeneralCapabilitySet) Size() int { return 20 }

func (s GeneralCapabilitySet) Encode(c *Cursor) error {
	c.WriteU16LE(s.OSMajorType)
	c.WriteU16LE(s.OSMinorType)
	c.WriteU16LE(0x0200) // protocolVersion
	c.WriteU16LE(0)      // pad2octetsA
	c.WriteU16LE(0)      // generalCompressionTypes
	c.WriteU16LE(uint16(s.ExtraFlags))
	c.WriteU16LE(0) // updateCapabilityFlag
	c.WriteU16LE(0) // remoteUnshareFlag
	c.WriteU16LE(0) // generalCompressionLevel
	c.WriteU8(s.RefreshRectSupport)
	c.WriteU8(s.SuppressOutputSupport)
	return nil
}

func DecodeGeneralCapabilitySet(c *ReadCursor) (GeneralCapabilitySet, error) {
	var s GeneralCapabilitySet
	var err error
	if s.OSMajorType, err = c.ReadU16LE("General.OSMajorType"); err != nil {
		return s, err
	}
	if s.OSMinorType, err = c.ReadU16LE("General.OSMinorType"); err != nil {
		return s, err
	}
	if _, err = c.ReadU16LE("General.ProtocolVersion"); err != nil {
		return s, err
	}
	if _, err = c.ReadU16LE("General.Pad2octetsA"); err != nil {
		return s, err
	}
	if _, err = c.ReadU16LE("General.CompressionTypes"); err != nil {
		return s, err
	}
	extra, err := c.ReadU16LE("General.ExtraFlags")
	if err != nil {
		return s, err
	}
	s.ExtraFlags = GeneralExtraFlags(extra)
	if _, err = c.ReadU16LE("General.UpdateCapabilityFlag"); err != nil {
		return s, err
	}
	if _, err = c.ReadU16LE("General.RemoteUnshareFlag"); err != nil {
		return s, err
	}
	if _, err = c.ReadU16LE("General.CompressionLevel"); err != nil {
		return s, err
	}
	if s.RefreshRectSupport, err = c.ReadU8("General.RefreshRectSupport"); err != nil {
		return s, err
	}
	if s.SuppressOutputSupport, err = c.ReadU8("General.SuppressOutputSupport"); err != nil {
		return s, err
	}
	return s, nil
}

// BitmapCapabilitySet (MS-RDPBCGR 2.2.7.1.2).
type BitmapCapabilitySet struct {
	PreferredBitsPerPixel uint16
	DesktopWidth          uint16
	DesktopHeight         uint16
	DesktopResizeFlag     bool
}

func NewBitmapCapabilitySet(width, height uint16) BitmapCapabilitySet {
	return BitmapCapabilitySet{
		PreferredBitsPerPixel: 32,
		DesktopWidth:          width,
		DesktopHeight:         height,
		DesktopResizeFlag:     true,
	}
}

func (s BitmapCapabilitySet) Size() int { return 24 }

func (s BitmapCapabilitySet) Encode(c *Cursor) error {
	c.WriteU16LE(s.PreferredBitsPerPixel)
	c.WriteU16LE(1) // receive1BitPerPixel
	c.WriteU16LE(1) // receive4BitsPerPixel
	c.WriteU16LE(1) // receive8BitsPerPixel
	c.WriteU16LE(s.DesktopWidth)
	c.WriteU16LE(s.DesktopHeight)
	c.WriteU16LE(0) // pad2octets
	if s.DesktopResizeFlag {
		c.WriteU16LE(1)
	} else {
		c.WriteU16LE(0)
	}
	c.WriteU16LE(1) // bitmapCompressionFlag, always TRUE per spec
	c.WriteU8(0)    // highColorFlags, unused
	c.WriteU8(0)    // drawingFlags
	c.WriteU16LE(1) // multipleRectangleSupport, always TRUE
	c.WriteU16LE(0) // pad2octetsB
	return nil
}

func DecodeBitmapCapabilitySet(c *ReadCursor) (BitmapCapabilitySet, error) {
	var s BitmapCapabilitySet
	var err error
	if s.PreferredBitsPerPixel, err = c.ReadU16LE("Bitmap.PreferredBitsPerPixel"); err != nil {
		return s, err
	}
	for _, f := range []string{"Bitmap.Receive1Bpp", "Bitmap.Receive4Bpp", "Bitmap.Receive8Bpp"} {
		if _, err = c.ReadU16LE(f); err != nil {
			return s, err
		}
	}
	if s.DesktopWidth, err = c.ReadU16LE("Bitmap.DesktopWidth"); err != nil {
		return s, err
	}
	if s.DesktopHeight, err = c.ReadU16LE("Bitmap.DesktopHeight"); err != nil {
		return s, err
	}
	if _, err = c.ReadU16LE("Bitmap.Pad2octetsA"); err != nil {
		return s, err
	}
	resize, err := c.ReadU16LE("Bitmap.DesktopResizeFlag")
	if err != nil {
		return s, err
	}
	s.DesktopResizeFlag = resize != 0
	if _, err = c.ReadU16LE("Bitmap.CompressionFlag"); err != nil {
		return s, err
	}
	if _, err = c.ReadU8("Bitmap.HighColorFlags"); err != nil {
		return s, err
	}
	if _, err = c.ReadU8("Bitmap.DrawingFlags"); err != nil {
		return s, err
	}
	if _, err = c.ReadU16LE("Bitmap.MultipleRectSupport"); err != nil {
		return s, err
	}
	if _, err = c.ReadU16LE("Bitmap.Pad2octetsB"); err != nil {
		return s, err
	}
	return s, nil
}

// OrderCapabilitySet (MS-RDPBCGR 2.2.7.1.3), trimmed to the fields the
// connector inspects; the remaining reserved fields round-trip as zero.
type OrderCapabilitySet struct {
	OrderFlags      uint16
	DesktopSaveSize uint32
}

func NewOrderCapabilitySet() OrderCapabilitySet {
	return OrderCapabilitySet{OrderFlags: 0x0002 | 0x0008, DesktopSaveSize: 480 * 480}
}

func (s OrderCapabilitySet) Size() int { return 88 }

func (s OrderCapabilitySet) Encode(c *Cursor) error {
	c.WriteBytes(make([]byte, 16)) // terminalDescriptor
	c.WriteU32LE(0)                // pad4octetsA
	c.WriteU16LE(1)                // desktopSaveXGranularity
	c.WriteU16LE(20)               // desktopSaveYGranularity
	c.WriteU16LE(0)                // pad2octetsA
	c.WriteU16LE(1)                // maximumOrderLevel
	c.WriteU16LE(0)                // numberFonts
	c.WriteU16LE(s.OrderFlags)
	c.WriteBytes(make([]byte, 32)) // orderSupport
	c.WriteU16LE(0)                // textFlags
	c.WriteU16LE(0)                // orderSupportExFlags
	c.WriteU32LE(0)                // pad4octetsB
	c.WriteU32LE(s.DesktopSaveSize)
	c.WriteU32LE(0) // pad4octetsC
	c.WriteU32LE(0) // pad4octetsD
	c.WriteU16LE(0) // textANSICodePage
	c.WriteU16LE(0) // pad2octetsE
	return nil
}

func DecodeOrderCapabilitySet(c *ReadCursor) (OrderCapabilitySet, error) {
	var s OrderCapabilitySet
	if _, err := c.ReadBytes("Order.TerminalDescriptor", 16); err != nil {
		return s, err
	}
	if _, err := c.ReadU32LE("Order.Pad4octetsA"); err != nil {
		return s, err
	}
	if _, err := c.ReadU16LE("Order.DesktopSaveXGranularity"); err != nil {
		return s, err
	}
	if _, err := c.ReadU16LE("Order.DesktopSaveYGranularity"); err != nil {
		return s, err
	}
	if _, err := c.ReadU16LE("Order.Pad2octetsA"); err != nil {
		return s, err
	}
	if _, err := c.ReadU16LE("Order.MaximumOrderLevel"); err != nil {
		return s, err
	}
	if _, err := c.ReadU16LE("Order.NumberFonts"); err != nil {
		return s, err
	}
	flags, err := c.ReadU16LE("Order.OrderFlags")
	if err != nil {
		return s, err
	}
	s.OrderFlags = flags
	if _, err := c.ReadBytes("Order.OrderSupport", 32); err != nil {
		return s, err
	}
	if _, err := c.ReadU16LE("Order.TextFlags"); err != nil {
		return s, err
	}
	if _, err := c.ReadU16LE("Order.OrderSupportExFlags"); err != nil {
		return s, err
	}
	if _, err := c.ReadU32LE("Order.Pad4octetsB"); err != nil {
		return s, err
	}
	size, err := c.ReadU32LE("Order.DesktopSaveSize")
	if err != nil {
		return s, err
	}
	s.DesktopSaveSize = size
	if _, err := c.ReadU32LE("Order.Pad4octetsC"); err != nil {
		return s, err
	}
	if _, err := c.ReadU32LE("Order.Pad4octetsD"); err != nil {
		return s, err
	}
	if _, err := c.ReadU16LE("Order.TextANSICodePage"); err != nil {
		return s, err
	}
	if _, err := c.ReadU16LE("Order.Pad2octetsE"); err != nil {
		return s, err
	}
	return s, nil
}

// InputFlags (MS-RDPBCGR 2.2.7.1.6). Unused/reserved bits are treated as
// reserved per open question and never rejected on decode.
type InputFlags uint16

const (
	InputFlagScancodes      InputFlags = 0x0001
	InputFlagMouseX          InputFlags = 0x0004
	InputFlagUnicode         InputFlags = 0x0010
	InputFlagFastpathInput   InputFlags = 0x0020
	InputFlagFastpathInput2  InputFlags = 0x0040
)

// InputCapabilitySet (MS-RDPBCGR 2.2.7.1.6).
type InputCapabilitySet struct {
	InputFlags          InputFlags
	KeyboardLayout      uint32
	KeyboardType        uint32
	KeyboardSubType     uint32
	KeyboardFunctionKey uint32
}

func NewInputCapabilitySet() InputCapabilitySet {
	return InputCapabilitySet{
		InputFlags:          InputFlagScancodes | InputFlagMouseX | InputFlagUnicode | InputFlagFastpathInput2,
		KeyboardLayout:      0x00000409, // US
		KeyboardType:        0x00000004, // IBM enhanced
		KeyboardFunctionKey: 12,
	}
}

func (s InputCapabilitySet) Size() int { return 84 }

func (s InputCapabilitySet) Encode(c *Cursor) error {
	c.WriteU16LE(uint16(s.InputFlags))
	c.WriteU16LE(0) // padding
	c.WriteU32LE(s.KeyboardLayout)
	c.WriteU32LE(s.KeyboardType)
	c.WriteU32LE(s.KeyboardSubType)
	c.WriteU32LE(s.KeyboardFunctionKey)
	c.WriteBytes(make([]byte, 64)) // imeFileName
	return nil
}

func DecodeInputCapabilitySet(c *ReadCursor) (InputCapabilitySet, error) {
	var s InputCapabilitySet
	flags, err := c.ReadU16LE("Input.InputFlags")
	if err != nil {
		return s, err
	}
	s.InputFlags = InputFlags(flags)
	if _, err = c.ReadU16LE("Input.Padding"); err != nil {
		return s, err
	}
	if s.KeyboardLayout, err = c.ReadU32LE("Input.KeyboardLayout"); err != nil {
		return s, err
	}
	if s.KeyboardType, err = c.ReadU32LE("Input.KeyboardType"); err != nil {
		return s, err
	}
	if s.KeyboardSubType, err = c.ReadU32LE("Input.KeyboardSubType"); err != nil {
		return s, err
	}
	if s.KeyboardFunctionKey, err = c.ReadU32LE("Input.KeyboardFunctionKey"); err != nil {
		return s, err
	}
	if _, err = c.ReadBytes("Input.ImeFileName", 64); err != nil {
		return s, err
	}
	return s, nil
}

// VirtualChannelCapabilitySet (MS-RDPBCGR 2.2.7.1.10). VCChunkSize is the
// chunk-size ceiling referenced throughout  (1600-16256,
// server-to-client only; ignored client-to-server).
type VirtualChannelCapabilitySet struct {
	Flags       uint32
	VCChunkSize uint32
}

const (
	DefaultVCChunkSize = 1600
	MaxVCChunkSize     = 16256
)

func (s VirtualChannelCapabilitySet) Size() int { return 8 }

func (s VirtualChannelCapabilitySet) Encode(c *Cursor) error {
	c.WriteU32LE(s.Flags)
	c.WriteU32LE(s.VCChunkSize)
	return nil
}

func DecodeVirtualChannelCapabilitySet(c *ReadCursor) (VirtualChannelCapabilitySet, error) {
	var s VirtualChannelCapabilitySet
	var err error
	if s.Flags, err = c.ReadU32LE("VirtualChannel.Flags"); err != nil {
		return s, err
	}
	if s.VCChunkSize, err = c.ReadU32LE("VirtualChannel.VCChunkSize"); err != nil {
		return s, err
	}
	return s, nil
}

// MultifragmentUpdateCapabilitySet (MS-RDPBCGR 2.2.7.2.6).
type MultifragmentUpdateCapabilitySet struct {
	MaxRequestSize uint32
}

func (s MultifragmentUpdateCapabilitySet) Size() int { return 4 }

func (s MultifragmentUpdateCapabilitySet) Encode(c *Cursor) error {
	c.WriteU32LE(s.MaxRequestSize)
	return nil
}

func DecodeMultifragmentUpdateCapabilitySet(c *ReadCursor) (MultifragmentUpdateCapabilitySet, error) {
	var s MultifragmentUpdateCapabilitySet
	var err error
	if s.MaxRequestSize, err = c.ReadU32LE("MultifragmentUpdate.MaxRequestSize"); err != nil {
		return s, err
	}
	return s, nil
}

// BitmapCodec is one entry of a BitmapCodecsCapabilitySet array
// (MS-RDPBCGR 2.2.7.2.10.1).
type BitmapCodec struct {
	CodecGUID       [16]byte
	CodecID         uint8
	CodecProperties []byte
}

func (c BitmapCodec) Size() int { return 16 + 1 + 2 + len(c.CodecProperties) }

func (bc BitmapCodec) Encode(c *Cursor) error {
	c.WriteBytes(bc.CodecGUID[:])
	c.WriteU8(bc.CodecID)
	c.WriteU16LE(uint16(len(bc.CodecProperties)))
	c.WriteBytes(bc.CodecProperties)
	return nil
}

func decodeBitmapCodec(c *ReadCursor) (BitmapCodec, error) {
	var bc BitmapCodec
	guid, err := c.ReadBytes("BitmapCodec.GUID", 16)
	if err != nil {
		return bc, err
	}
	copy(bc.CodecGUID[:], guid)
	if bc.CodecID, err = c.ReadU8("BitmapCodec.ID"); err != nil {
		return bc, err
	}
	propLen, err := c.ReadU16LE("BitmapCodec.PropertiesLength")
	if err != nil {
		return bc, err
	}
	if bc.CodecProperties, err = c.ReadBytes("BitmapCodec.Properties", int(propLen)); err != nil {
		return bc, err
	}
	return bc, nil
}

// BitmapCodecsCapabilitySet (MS-RDPBCGR 2.2.7.2.10): an array of advertised
// per-codec GUID/ID/properties triples. The GUID-to-name mapping used for
// logging lives alongside the connector that consumes this capability.
type BitmapCodecsCapabilitySet struct {
	Codecs []BitmapCodec
}

func (s BitmapCodecsCapabilitySet) Size() int {
	n := 1
	for _, c := range s.Codecs {
		n += c.Size()
	}
	return n
}

func (s BitmapCodecsCapabilitySet) Encode(c *Cursor) error {
	if len(s.Codecs) > 0xFF {
		return &EncodeError{Kind: InvalidFieldEncode, Field: "BitmapCodecs.Codecs", Reason: "more than 255 codecs"}
	}
	c.WriteU8(uint8(len(s.Codecs)))
	for _, codec := range s.Codecs {
		if err := codec.Encode(c); err != nil {
			return err
		}
	}
	return nil
}

func DecodeBitmapCodecsCapabilitySet(c *ReadCursor) (BitmapCodecsCapabilitySet, error) {
	var s BitmapCodecsCapabilitySet
	count, err := c.ReadU8("BitmapCodecs.Count")
	if err != nil {
		return s, err
	}
	s.Codecs = make([]BitmapCodec, 0, count)
	for i := 0; i < int(count); i++ {
		codec, err := decodeBitmapCodec(c)
		if err != nil {
			return s, err
		}
		s.Codecs = append(s.Codecs, codec)
	}
	return s, nil
}

// PointerCapabilitySet (MS-RDPBCGR 2.2.7.1.5).
type PointerCapabilitySet struct {
	ColorPointerFlag   uint16
	ColorPointerCacheSize uint16
	PointerCacheSize   uint16
}

func (s PointerCapabilitySet) Size() int { return 6 }

func (s PointerCapabilitySet) Encode(c *Cursor) error {
	c.WriteU16LE(s.ColorPointerFlag)
	c.WriteU16LE(s.ColorPointerCacheSize)
	c.WriteU16LE(s.PointerCacheSize)
	return nil
}

func DecodePointerCapabilitySet(c *ReadCursor) (PointerCapabilitySet, error) {
	var s PointerCapabilitySet
	var err error
	if s.ColorPointerFlag, err = c.ReadU16LE("Pointer.ColorPointerFlag"); err != nil {
		return s, err
	}
	if s.ColorPointerCacheSize, err = c.ReadU16LE("Pointer.ColorPointerCacheSize"); err != nil {
		return s, err
	}
	if s.PointerCacheSize, err = c.ReadU16LE("Pointer.PointerCacheSize"); err != nil {
		return s, err
	}
	return s, nil
}
