// Package egfx implements the MS-RDPEGFX Remote Desktop Protocol: Graphics
// Pipeline Extension wrapper and the inner PDUs this module exchanges over
// the "Microsoft::Windows::RDS::Graphics" dynamic virtual channel:
// capability advertise/confirm, frame acknowledgement, and the cache/surface
// commands needed to mirror a remote desktop without negotiating a codec.
// Grounded on ironrdp-egfx's RDPGFX_POINT16/RDPGFX_COLOR32/RDPGFX_PIXELFORMAT
// types (common.rs) for field shapes, reimplemented on the pdu.Cursor
// contract rather than ironrdp's borrowed-cursor codec.
package egfx

import "github.com/kulaginds/rdp-core/pkg/pdu"

// CmdID is the RDPGFX_HEADER cmdId field (MS-RDPEGFX 2.2.1.2).
type CmdID uint16

const (
	CmdCapsAdvertise  CmdID = 0x0009
	CmdCapsConfirm    CmdID = 0x000A
	CmdFrameAck       CmdID = 0x0013
	CmdSurfaceToCache CmdID = 0x0019
	CmdCacheToSurface CmdID = 0x001A
	CmdWireToSurface1 CmdID = 0x0001
)

// Header is RDPGFX_HEADER: every EGFX PDU is this 8-byte header followed by
// a cmd-specific body. PduLength includes the header itself.
type Header struct {
	CmdID     CmdID
	Flags     uint16
	PduLength uint32
}

func (h Header) Size() int { return 8 }

func (h Header) Encode(c *pdu.Cursor) error {
	c.WriteU16LE(uint16(h.CmdID))
	c.WriteU16LE(h.Flags)
	c.WriteU32LE(h.PduLength)
	return nil
}

func DecodeHeader(c *pdu.ReadCursor) (Header, error) {
	var h Header
	cmd, err := c.ReadU16LE("Header.CmdID")
	if err != nil {
		return h, err
	}
	h.CmdID = CmdID(cmd)
	if h.Flags, err = c.ReadU16LE("Header.Flags"); err != nil {
		return h, err
	}
	if h.PduLength, err = c.ReadU32LE("Header.PduLength"); err != nil {
		return h, err
	}
	return h, nil
}

// Point is RDPGFX_POINT16 (MS-RDPEGFX 2.2.1.1).
type Point struct{ X, Y uint16 }

func (p Point) Size() int { return 4 }

func (p Point) Encode(c *pdu.Cursor) error {
	c.WriteU16LE(p.X)
	c.WriteU16LE(p.Y)
	return nil
}

func DecodePoint(c *pdu.ReadCursor) (Point, error) {
	var p Point
	var err error
	if p.X, err = c.ReadU16LE("Point.X"); err != nil {
		return p, err
	}
	if p.Y, err = c.ReadU16LE("Point.Y"); err != nil {
		return p, err
	}
	return p, nil
}

// PixelFormat is RDPGFX_PIXELFORMAT (MS-RDPEGFX 2.2.1.4).
type PixelFormat uint8

const (
	PixelFormatXRgb PixelFormat = 0x20
	PixelFormatARgb PixelFormat = 0x21
)

func (p PixelFormat) valid() bool { return p == PixelFormatXRgb || p == PixelFormatARgb }

// CapsVersion is one advertised RDPGFX_CAPSET version (MS-RDPEGFX 2.2.3.1).
// This module advertises and accepts only the uncompressed baseline.
type CapsVersion uint32

const CapsVersion81 CapsVersion = 0x00080004

// CapsAdvertise is RDPGFX_CAPS_ADVERTISE_PDU: the client's capability set
// offer (MS-RDPEGFX 2.2.3.2).
type CapsAdvertise struct {
	Versions []CapsVersion
}

func (p CapsAdvertise) bodySize() int { return 2 + 12*len(p.Versions) }

func (p CapsAdvertise) Size() int { return 8 + p.bodySize() }

func (p CapsAdvertise) Encode(c *pdu.Cursor) error {
	Header{CmdID: CmdCapsAdvertise, PduLength: uint32(p.Size())}.Encode(c)
	c.WriteU16LE(uint16(len(p.Versions)))
	for _, v := range p.Versions {
		c.WriteU32LE(uint32(v))
		c.WriteU32LE(4) // capsDataLength
		c.WriteU32LE(0) // flags: this module sets none
	}
	return nil
}

func DecodeCapsAdvertise(c *pdu.ReadCursor) (CapsAdvertise, error) {
	var p CapsAdvertise
	h, err := DecodeHeader(c)
	if err != nil {
		return p, err
	}
	if h.CmdID != CmdCapsAdvertise {
		return p, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "CapsAdvertise.CmdID", Got: uint32(h.CmdID)}
	}
	count, err := c.ReadU16LE("CapsAdvertise.CapsSetCount")
	if err != nil {
		return p, err
	}
	p.Versions = make([]CapsVersion, count)
	for i := range p.Versions {
		v, err := c.ReadU32LE("CapsAdvertise.Version")
		if err != nil {
			return p, err
		}
		p.Versions[i] = CapsVersion(v)
		length, err := c.ReadU32LE("CapsAdvertise.CapsDataLength")
		if err != nil {
			return p, err
		}
		if _, err := c.ReadBytes("CapsAdvertise.CapsData", int(length)); err != nil {
			return p, err
		}
	}
	return p, nil
}

// CapsConfirm is RDPGFX_CAPS_CONFIRM_PDU: the server's single selected
// version (MS-RDPEGFX 2.2.3.3).
type CapsConfirm struct {
	Version CapsVersion
}

func (p CapsConfirm) Size() int { return 8 + 4 + 4 + 4 }

func (p CapsConfirm) Encode(c *pdu.Cursor) error {
	Header{CmdID: CmdCapsConfirm, PduLength: uint32(p.Size())}.Encode(c)
	c.WriteU32LE(uint32(p.Version))
	c.WriteU32LE(4) // capsDataLength
	c.WriteU32LE(0) // flags: this module sets none
	return nil
}

func DecodeCapsConfirm(c *pdu.ReadCursor) (CapsConfirm, error) {
	var p CapsConfirm
	h, err := DecodeHeader(c)
	if err != nil {
		return p, err
	}
	if h.CmdID != CmdCapsConfirm {
		return p, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "CapsConfirm.CmdID", Got: uint32(h.CmdID)}
	}
	v, err := c.ReadU32LE("CapsConfirm.Version")
	if err != nil {
		return p, err
	}
	p.Version = CapsVersion(v)
	length, err := c.ReadU32LE("CapsConfirm.CapsDataLength")
	if err != nil {
		return p, err
	}
	if _, err := c.ReadBytes("CapsConfirm.CapsData", int(length)); err != nil {
		return p, err
	}
	return p, nil
}

// QueueDepth is the RDPGFX_FRAME_ACKNOWLEDGE_PDU queueDepth sentinel
// (MS-RDPEGFX 2.2.2.2): 0 means the client does not track queue depth,
// 0xFFFFFFFF asks the server to suspend sending frames.
type QueueDepth uint32

const (
	QueueDepthUnavailable QueueDepth = 0x00000000
	QueueDepthSuspend     QueueDepth = 0xFFFFFFFF
)

// FrameAcknowledge is RDPGFX_FRAME_ACKNOWLEDGE_PDU (MS-RDPEGFX 2.2.2.2).
type FrameAcknowledge struct {
	QueueDepth       QueueDepth
	FrameID          uint32
	TotalFramesDecoded uint32
}

func (p FrameAcknowledge) Size() int { return 8 + 4 + 4 + 4 }

func (p FrameAcknowledge) Encode(c *pdu.Cursor) error {
	Header{CmdID: CmdFrameAck, PduLength: uint32(p.Size())}.Encode(c)
	c.WriteU32LE(uint32(p.QueueDepth))
	c.WriteU32LE(p.FrameID)
	c.WriteU32LE(p.TotalFramesDecoded)
	return nil
}

func DecodeFrameAcknowledge(c *pdu.ReadCursor) (FrameAcknowledge, error) {
	var p FrameAcknowledge
	h, err := DecodeHeader(c)
	if err != nil {
		return p, err
	}
	if h.CmdID != CmdFrameAck {
		return p, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "FrameAcknowledge.CmdID", Got: uint32(h.CmdID)}
	}
	qd, err := c.ReadU32LE("FrameAcknowledge.QueueDepth")
	if err != nil {
		return p, err
	}
	p.QueueDepth = QueueDepth(qd)
	if p.FrameID, err = c.ReadU32LE("FrameAcknowledge.FrameID"); err != nil {
		return p, err
	}
	if p.TotalFramesDecoded, err = c.ReadU32LE("FrameAcknowledge.TotalFramesDecoded"); err != nil {
		return p, err
	}
	return p, nil
}

// SurfaceToCache is RDPGFX_SURFACE_TO_CACHE_PDU (MS-RDPEGFX 2.2.2.13):
// copies a rectangle from a surface into a numbered cache slot.
type SurfaceToCache struct {
	CacheSlot  uint16
	SurfaceID  uint16
	Rect       pdu.ExclusiveRectangle
}

func (p SurfaceToCache) Size() int { return 8 + 2 + 2 + 8 }

func (p SurfaceToCache) Encode(c *pdu.Cursor) error {
	Header{CmdID: CmdSurfaceToCache, PduLength: uint32(p.Size())}.Encode(c)
	c.WriteU16LE(p.SurfaceID)
	c.WriteU16LE(p.CacheSlot)
	p.Rect.Encode(c)
	return nil
}

func DecodeSurfaceToCache(c *pdu.ReadCursor) (SurfaceToCache, error) {
	var p SurfaceToCache
	h, err := DecodeHeader(c)
	if err != nil {
		return p, err
	}
	if h.CmdID != CmdSurfaceToCache {
		return p, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "SurfaceToCache.CmdID", Got: uint32(h.CmdID)}
	}
	if p.SurfaceID, err = c.ReadU16LE("SurfaceToCache.SurfaceID"); err != nil {
		return p, err
	}
	if p.CacheSlot, err = c.ReadU16LE("SurfaceToCache.CacheSlot"); err != nil {
		return p, err
	}
	if p.Rect, err = pdu.DecodeExclusiveRectangle(c); err != nil {
		return p, err
	}
	return p, nil
}

// CacheToSurface is RDPGFX_CACHE_TO_SURFACE_PDU (MS-RDPEGFX 2.2.2.14): the
// inverse of SurfaceToCache, blitting a cached rectangle to one or more
// destination points on a surface.
type CacheToSurface struct {
	CacheSlot   uint16
	SurfaceID   uint16
	Destinations []Point
}

func (p CacheToSurface) Size() int { return 8 + 2 + 2 + 2 + 4*len(p.Destinations) }

func (p CacheToSurface) Encode(c *pdu.Cursor) error {
	Header{CmdID: CmdCacheToSurface, PduLength: uint32(p.Size())}.Encode(c)
	c.WriteU16LE(p.CacheSlot)
	c.WriteU16LE(p.SurfaceID)
	c.WriteU16LE(uint16(len(p.Destinations)))
	for _, pt := range p.Destinations {
		pt.Encode(c)
	}
	return nil
}

func DecodeCacheToSurface(c *pdu.ReadCursor) (CacheToSurface, error) {
	var p CacheToSurface
	h, err := DecodeHeader(c)
	if err != nil {
		return p, err
	}
	if h.CmdID != CmdCacheToSurface {
		return p, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "CacheToSurface.CmdID", Got: uint32(h.CmdID)}
	}
	var err error
	if p.CacheSlot, err = c.ReadU16LE("CacheToSurface.CacheSlot"); err != nil {
		return p, err
	}
	if p.SurfaceID, err = c.ReadU16LE("CacheToSurface.SurfaceID"); err != nil {
		return p, err
	}
	count, err := c.ReadU16LE("CacheToSurface.DestPosCount")
	if err != nil {
		return p, err
	}
	p.Destinations = make([]Point, count)
	for i := range p.Destinations {
		if p.Destinations[i], err = DecodePoint(c); err != nil {
			return p, err
		}
	}
	return p, nil
}

// WireToSurface1 is RDPGFX_WIRE_TO_SURFACE_PDU_1 (MS-RDPEGFX 2.2.2.1)
// carrying an uncompressed bitmap (codecId PLANAR/UNCOMPRESSED); H.264
// payloads are out of scope and are passed through as opaque bytes by
// codecID, left to a higher layer that understands that codec.
type WireToSurface1 struct {
	SurfaceID   uint16
	CodecID     uint16
	PixelFormat PixelFormat
	Rect        pdu.ExclusiveRectangle
	BitmapData  []byte
}

func (p WireToSurface1) Size() int { return 8 + 2 + 2 + 1 + 8 + len(p.BitmapData) }

func (p WireToSurface1) Encode(c *pdu.Cursor) error {
	if !p.PixelFormat.valid() {
		return &pdu.EncodeError{Kind: pdu.InvalidFieldEncode, Field: "WireToSurface1.PixelFormat", Reason: "must be 0x20 or 0x21"}
	}
	Header{CmdID: CmdWireToSurface1, PduLength: uint32(p.Size())}.Encode(c)
	c.WriteU16LE(p.SurfaceID)
	c.WriteU16LE(p.CodecID)
	c.WriteU8(uint8(p.PixelFormat))
	p.Rect.Encode(c)
	c.WriteBytes(p.BitmapData)
	return nil
}

func DecodeWireToSurface1(c *pdu.ReadCursor) (WireToSurface1, error) {
	var p WireToSurface1
	h, err := DecodeHeader(c)
	if err != nil {
		return p, err
	}
	if h.CmdID != CmdWireToSurface1 {
		return p, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: "WireToSurface1.CmdID", Got: uint32(h.CmdID)}
	}
	if p.SurfaceID, err = c.ReadU16LE("WireToSurface1.SurfaceID"); err != nil {
		return p, err
	}
	if p.CodecID, err = c.ReadU16LE("WireToSurface1.CodecID"); err != nil {
		return p, err
	}
	fmtByte, err := c.ReadU8("WireToSurface1.PixelFormat")
	if err != nil {
		return p, err
	}
	p.PixelFormat = PixelFormat(fmtByte)
	if !p.PixelFormat.valid() {
		return p, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "WireToSurface1.PixelFormat", Reason: "must be 0x20 or 0x21"}
	}
	if p.Rect, err = pdu.DecodeExclusiveRectangle(c); err != nil {
		return p, err
	}
	remaining := int(h.PduLength) - (8 + 2 + 2 + 1 + 8)
	if remaining < 0 {
		return p, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "WireToSurface1.PduLength", Reason: "shorter than fixed part"}
	}
	if p.BitmapData, err = c.ReadBytes("WireToSurface1.BitmapData", remaining); err != nil {
		return p, err
	}
	return p, nil
}
