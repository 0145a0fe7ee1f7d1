package pdu

// FastPathOutputHeader is the envelope prefixing a complete server-to-client
// fast-path output PDU (MS-RDPBCGR 2.2.9.1.2.1): action/numEvents bits,
// optional security flags/signature (never emitted here; TLS covers
// confidentiality in the CredSSP path this core targets), and the 1-2 byte
// length the framer already consumed to size the frame. Encode/Decode only
// handle the header byte plus length; the length itself is derived from
// len(Data) so callers don't juggle it separately.
type FastPathOutputHeader struct {
	Data []byte
}

func lengthFieldSize(n int) int {
	if n > 0x7F {
		return 2
	}
	return 1
}

func writeFastPathLength(c *Cursor, n int) {
	if n > 0x7F {
		c.WriteU8(uint8(n>>8) | 0x80)
		c.WriteU8(uint8(n))
	} else {
		c.WriteU8(uint8(n))
	}
}

func readFastPathLength(c *ReadCursor, field string) (int, error) {
	b, err := c.ReadU8(field)
	if err != nil {
		return 0, err
	}
	if b&0x80 != 0 {
		b2, err := c.ReadU8(field)
		if err != nil {
			return 0, err
		}
		return int(b&0x7F)<<8 | int(b2), nil
	}
	return int(b), nil
}

func (h FastPathOutputHeader) Size() int {
	total := 2 + len(h.Data)
	return 1 + lengthFieldSize(total) + len(h.Data)
}

// Encode writes {header byte, length, Data} where the header byte encodes
// FastPathActionFastPath with no secure-checksum/encrypted flags set (no
// standard RDP security in scope per the non-goals).
func (h FastPathOutputHeader) Encode(c *Cursor) error {
	c.WriteU8(uint8(FastPathActionFastPath))
	writeFastPathLength(c, h.Size())
	c.WriteBytes(h.Data)
	return nil
}

// DecodeFastPathOutputHeader decodes a whole fast-path output frame
// (envelope included, as delivered by the framer) and returns the update
// payload.
func DecodeFastPathOutputHeader(c *ReadCursor) (FastPathOutputHeader, error) {
	var h FastPathOutputHeader
	first, err := c.ReadU8("FastPathOutputHeader.Header")
	if err != nil {
		return h, err
	}
	if FastPathAction(first&0x03) != FastPathActionFastPath {
		return h, &DecodeError{Kind: UnexpectedMessageType, Field: "FastPathOutputHeader.Action", Got: uint32(first & 0x03)}
	}
	_, err = readFastPathLength(c, "FastPathOutputHeader.Length")
	if err != nil {
		return h, err
	}
	h.Data, err = c.ReadBytes("FastPathOutputHeader.Data", c.Remaining())
	return h, err
}

// FastPathInputHeader is the envelope prefixing a client-to-server
// fast-path input PDU (MS-RDPBCGR 2.2.8.1.2): numEvents packed into the
// header byte's high bits (fast-path input never carries more than 15
// coalesced events per PDU on the wire) followed by the events themselves,
// already-encoded by the caller.
type FastPathInputHeader struct {
	NumEvents uint8
	Data      []byte
}

func (h FastPathInputHeader) Size() int {
	total := 2 + len(h.Data)
	return 1 + lengthFieldSize(total) + len(h.Data)
}

func (h FastPathInputHeader) Encode(c *Cursor) error {
	b := uint8(FastPathActionFastPath) | (h.NumEvents&0x0F)<<2
	c.WriteU8(b)
	writeFastPathLength(c, h.Size())
	c.WriteBytes(h.Data)
	return nil
}

func DecodeFastPathInputHeader(c *ReadCursor) (FastPathInputHeader, error) {
	var h FastPathInputHeader
	first, err := c.ReadU8("FastPathInputHeader.Header")
	if err != nil {
		return h, err
	}
	if FastPathAction(first&0x03) != FastPathActionFastPath {
		return h, &DecodeError{Kind: UnexpectedMessageType, Field: "FastPathInputHeader.Action", Got: uint32(first & 0x03)}
	}
	h.NumEvents = (first >> 2) & 0x0F
	_, err = readFastPathLength(c, "FastPathInputHeader.Length")
	if err != nil {
		return h, err
	}
	h.Data, err = c.ReadBytes("FastPathInputHeader.Data", c.Remaining())
	return h, err
}

// FastPathAction distinguishes a fast-path PDU from an X.224/TPKT slow-path
// PDU: both share the same leading byte, with the low 2 bits selecting
// action FASTPATH (0) vs. an X.224 TPDU (3) (MS-RDPBCGR 2.2.9.1.2.1).
type FastPathAction uint8

const (
	FastPathActionFastPath FastPathAction = 0
	FastPathActionX224     FastPathAction = 3
)

// FastPathUpdateHeader is the per-update header inside a fast-path output
// PDU's payload (MS-RDPBCGR 2.2.9.1.2.1).
type FastPathUpdateHeader struct {
	UpdateCode     FastPathUpdateCode
	FragmentMarker FastPathFragment
	Compressed     bool
}

// FastPathUpdateCode is the updateCode subfield (low nibble of the header
// byte).
type FastPathUpdateCode uint8

const (
	FastPathUpdateCodeOrders          FastPathUpdateCode = 0x0
	FastPathUpdateCodeBitmap          FastPathUpdateCode = 0x1
	FastPathUpdateCodePalette         FastPathUpdateCode = 0x2
	FastPathUpdateCodeSynchronize     FastPathUpdateCode = 0x3
	FastPathUpdateCodeSurfaceCommands FastPathUpdateCode = 0x4
	FastPathUpdateCodePointerPosition FastPathUpdateCode = 0x5
	FastPathUpdateCodeColorPointer    FastPathUpdateCode = 0x6
	FastPathUpdateCodeCachedPointer   FastPathUpdateCode = 0x7
	FastPathUpdateCodePointer         FastPathUpdateCode = 0x8
	FastPathUpdateCodeLargePointer    FastPathUpdateCode = 0x9
)

// FastPathFragment is the fragmentation subfield (bits 4-5 of the header
// byte): a single update may span multiple fast-path output PDUs.
type FastPathFragment uint8

const (
	FastPathFragmentSingle FastPathFragment = 0x0
	FastPathFragmentFirst  FastPathFragment = 0x2
	FastPathFragmentLast   FastPathFragment = 0x1
	FastPathFragmentNext   FastPathFragment = 0x3
)

func (h FastPathUpdateHeader) Size() int { return 1 }

func (h FastPathUpdateHeader) Encode(c *Cursor) error {
	b := uint8(h.UpdateCode) & 0x0F
	b |= (uint8(h.FragmentMarker) & 0x03) << 4
	if h.Compressed {
		b |= 1 << 6
	}
	c.WriteU8(b)
	return nil
}

func DecodeFastPathUpdateHeader(c *ReadCursor) (FastPathUpdateHeader, error) {
	var h FastPathUpdateHeader
	b, err := c.ReadU8("FastPathUpdateHeader")
	if err != nil {
		return h, err
	}
	h.UpdateCode = FastPathUpdateCode(b & 0x0F)
	h.FragmentMarker = FastPathFragment((b >> 4) & 0x03)
	h.Compressed = b&(1<<6) != 0
	return h, nil
}

// SurfaceCommandType discriminates the surface-command sub-PDUs carried
// inside a FastPathUpdateCodeSurfaceCommands update (MS-RDPBCGR 2.2.9.1.2.1.10).
type SurfaceCommandType uint16

const (
	SurfaceCommandSetBits       SurfaceCommandType = 0x0001
	SurfaceCommandFrameMarker   SurfaceCommandType = 0x0004
	SurfaceCommandStreamBits    SurfaceCommandType = 0x0006
)

// FrameMarkerAction is the frameAction field of a frame-marker surface
// command.
type FrameMarkerAction uint16

const (
	FrameActionBegin FrameMarkerAction = 0x0000
	FrameActionEnd   FrameMarkerAction = 0x0001
)

// FrameMarkerCommand is CMDTYPE_FRAME_MARKER (MS-RDPBCGR 2.2.9.1.2.1.11).
type FrameMarkerCommand struct {
	Action  FrameMarkerAction
	FrameID uint32
}

func (c FrameMarkerCommand) Size() int { return 2 + 2 + 4 }

func (cmd FrameMarkerCommand) Encode(c *Cursor) error {
	c.WriteU16LE(uint16(SurfaceCommandFrameMarker))
	c.WriteU16LE(uint16(cmd.Action))
	c.WriteU32LE(cmd.FrameID)
	return nil
}

func decodeFrameMarkerBody(c *ReadCursor) (FrameMarkerCommand, error) {
	var cmd FrameMarkerCommand
	action, err := c.ReadU16LE("FrameMarkerCommand.Action")
	if err != nil {
		return cmd, err
	}
	cmd.Action = FrameMarkerAction(action)
	if cmd.FrameID, err = c.ReadU32LE("FrameMarkerCommand.FrameID"); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// SetSurfaceBitsCommand is CMDTYPE_SET_SURFACE_BITS / STREAM_SURFACE_BITS
// (MS-RDPBCGR 2.2.9.1.2.1.9), carrying one compressed/codec-encoded bitmap
// update for a destination rectangle. Decoding a codec's BitmapData payload
// is out of scope; it is preserved as opaque bytes.
type SetSurfaceBitsCommand struct {
	DestRect   ExclusiveRectangle
	BPP        uint8
	CodecID    uint8
	Width      uint16
	Height     uint16
	BitmapData []byte
}

func (cmd SetSurfaceBitsCommand) Size() int {
	return 2 + 8 + 1 + 1 + 1 + 1 + 2 + 2 + 4 + len(cmd.BitmapData)
}

func (cmd SetSurfaceBitsCommand) encode(c *Cursor, streaming bool) error {
	if streaming {
		c.WriteU16LE(uint16(SurfaceCommandStreamBits))
	} else {
		c.WriteU16LE(uint16(SurfaceCommandSetBits))
	}
	if err := cmd.DestRect.Encode(c); err != nil {
		return err
	}
	c.WriteU8(cmd.BPP)
	c.WriteU8(0) // flags, reserved here
	c.WriteU8(0) // reserved
	c.WriteU8(cmd.CodecID)
	c.WriteU16LE(cmd.Width)
	c.WriteU16LE(cmd.Height)
	c.WriteU32LE(uint32(len(cmd.BitmapData)))
	c.WriteBytes(cmd.BitmapData)
	return nil
}

func (cmd SetSurfaceBitsCommand) Encode(c *Cursor) error { return cmd.encode(c, false) }

func decodeSetSurfaceBitsBody(c *ReadCursor) (SetSurfaceBitsCommand, error) {
	var cmd SetSurfaceBitsCommand
	rect, err := DecodeExclusiveRectangle(c)
	if err != nil {
		return cmd, err
	}
	cmd.DestRect = rect
	if cmd.BPP, err = c.ReadU8("SetSurfaceBits.BPP"); err != nil {
		return cmd, err
	}
	if _, err = c.ReadU8("SetSurfaceBits.Flags"); err != nil {
		return cmd, err
	}
	if _, err = c.ReadU8("SetSurfaceBits.Reserved"); err != nil {
		return cmd, err
	}
	if cmd.CodecID, err = c.ReadU8("SetSurfaceBits.CodecID"); err != nil {
		return cmd, err
	}
	if cmd.Width, err = c.ReadU16LE("SetSurfaceBits.Width"); err != nil {
		return cmd, err
	}
	if cmd.Height, err = c.ReadU16LE("SetSurfaceBits.Height"); err != nil {
		return cmd, err
	}
	length, err := c.ReadU32LE("SetSurfaceBits.BitmapDataLength")
	if err != nil {
		return cmd, err
	}
	if cmd.BitmapData, err = c.ReadBytes("SetSurfaceBits.BitmapData", int(length)); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// SurfaceCommand is the envelope over one surface-command sub-PDU, tagged
// by CmdType; exactly one of FrameMarker/SetSurfaceBits is populated.
type SurfaceCommand struct {
	CmdType      SurfaceCommandType
	FrameMarker  *FrameMarkerCommand
	SetSurfaceBits *SetSurfaceBitsCommand
	Streaming    bool
}

// DecodeSurfaceCommands decodes every surface command packed into a
// FastPathUpdateCodeSurfaceCommands update body until the cursor is
// exhausted.
func DecodeSurfaceCommands(c *ReadCursor) ([]SurfaceCommand, error) {
	var cmds []SurfaceCommand
	for c.Remaining() > 0 {
		typ, err := c.ReadU16LE("SurfaceCommand.CmdType")
		if err != nil {
			return cmds, err
		}
		sc := SurfaceCommand{CmdType: SurfaceCommandType(typ)}
		switch sc.CmdType {
		case SurfaceCommandFrameMarker:
			fm, err := decodeFrameMarkerBody(c)
			if err != nil {
				return cmds, err
			}
			sc.FrameMarker = &fm
		case SurfaceCommandSetBits, SurfaceCommandStreamBits:
			sb, err := decodeSetSurfaceBitsBody(c)
			if err != nil {
				return cmds, err
			}
			sc.SetSurfaceBits = &sb
			sc.Streaming = sc.CmdType == SurfaceCommandStreamBits
		default:
			return cmds, &DecodeError{Kind: InvalidField, Field: "SurfaceCommand.CmdType", Reason: "unknown surface command type"}
		}
		cmds = append(cmds, sc)
	}
	return cmds, nil
}
