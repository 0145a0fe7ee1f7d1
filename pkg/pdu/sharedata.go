package pdu

// ShareControlType is the PDU type field of TS_SHARECONTROLHEADER
// (MS-RDPBCGR 2.2.8.1.1.1.1).
type ShareControlType uint16

const (
	ShareControlTypeDemandActive  ShareControlType = 0x01
	ShareControlTypeConfirmActive ShareControlType = 0x03
	ShareControlTypeDeactivateAll ShareControlType = 0x06
	ShareControlTypeData          ShareControlType = 0x07
)

func (t ShareControlType) IsDemandActive() bool  { return t == ShareControlTypeDemandActive }
func (t ShareControlType) IsConfirmActive() bool { return t == ShareControlTypeConfirmActive }
func (t ShareControlType) IsDeactivateAll() bool { return t == ShareControlTypeDeactivateAll }
func (t ShareControlType) IsData() bool          { return t == ShareControlTypeData }

// pduTypeWithVersion packs the PDU type into the low nibble with protocol
// version 0x1 in the high nibble, per MS-RDPBCGR 2.2.8.1.1.1.1's pduType
// field layout.
func pduTypeWithVersion(t ShareControlType) uint16 { return uint16(t) | 0x10 }

// ShareControlHeader is TS_SHARECONTROLHEADER.
type ShareControlHeader struct {
	TotalLength uint16
	PDUType     ShareControlType
	PDUSource   uint16
}

func (h ShareControlHeader) Size() int { return 6 }

func (h ShareControlHeader) Encode(c *Cursor) error {
	c.WriteU16LE(h.TotalLength)
	c.WriteU16LE(pduTypeWithVersion(h.PDUType))
	c.WriteU16LE(h.PDUSource)
	return nil
}

func DecodeShareControlHeader(c *ReadCursor) (ShareControlHeader, error) {
	var h ShareControlHeader
	var err error
	if h.TotalLength, err = c.ReadU16LE("ShareControlHeader.TotalLength"); err != nil {
		return h, err
	}
	raw, err := c.ReadU16LE("ShareControlHeader.PDUType")
	if err != nil {
		return h, err
	}
	h.PDUType = ShareControlType(raw & 0x0F)
	if h.PDUSource, err = c.ReadU16LE("ShareControlHeader.PDUSource"); err != nil {
		return h, err
	}
	return h, nil
}

// ShareDataType is the pduType2 field of TS_SHAREDATAHEADER
// (MS-RDPBCGR 2.2.8.1.1.1.2).
type ShareDataType uint8

const (
	ShareDataTypeUpdate          ShareDataType = 0x02
	ShareDataTypeControl         ShareDataType = 0x14
	ShareDataTypePointer         ShareDataType = 0x1B
	ShareDataTypeInput           ShareDataType = 0x1C
	ShareDataTypeSynchronize     ShareDataType = 0x1F
	ShareDataTypeRefreshRect     ShareDataType = 0x21
	ShareDataTypePlaySound       ShareDataType = 0x22
	ShareDataTypeSuppressOutput  ShareDataType = 0x23
	ShareDataTypeSaveSessionInfo ShareDataType = 0x26
	ShareDataTypeFontList        ShareDataType = 0x27
	ShareDataTypeFontMap         ShareDataType = 0x28
	ShareDataTypeErrorInfo       ShareDataType = 0x2F
	ShareDataTypeFrameAcknowledge ShareDataType = 0x38
)

// ShareDataHeader is TS_SHAREDATAHEADER, nested inside a data-class
// ShareControlHeader (PDUType == ShareControlTypeData).
type ShareDataHeader struct {
	ShareID            uint32
	StreamID           uint8
	UncompressedLength uint16
	PDUType2           ShareDataType
	CompressedType     uint8
	CompressedLength   uint16
}

const shareDataHeaderBodySize = 4 + 1 + 1 + 2 + 1 + 1 + 2 // shareID..compressedLength

func (h ShareDataHeader) Size() int { return shareDataHeaderBodySize }

func (h ShareDataHeader) Encode(c *Cursor) error {
	c.WriteU32LE(h.ShareID)
	c.WriteU8(0) // pad
	if h.StreamID == 0 {
		c.WriteU8(1) // STREAM_LOW
	} else {
		c.WriteU8(h.StreamID)
	}
	c.WriteU16LE(h.UncompressedLength)
	c.WriteU8(uint8(h.PDUType2))
	c.WriteU8(h.CompressedType)
	c.WriteU16LE(h.CompressedLength)
	return nil
}

func DecodeShareDataHeader(c *ReadCursor) (ShareDataHeader, error) {
	var h ShareDataHeader
	var err error
	if h.ShareID, err = c.ReadU32LE("ShareDataHeader.ShareID"); err != nil {
		return h, err
	}
	if _, err = c.ReadU8("ShareDataHeader.Pad"); err != nil {
		return h, err
	}
	if h.StreamID, err = c.ReadU8("ShareDataHeader.StreamID"); err != nil {
		return h, err
	}
	if h.UncompressedLength, err = c.ReadU16LE("ShareDataHeader.UncompressedLength"); err != nil {
		return h, err
	}
	raw, err := c.ReadU8("ShareDataHeader.PDUType2")
	if err != nil {
		return h, err
	}
	h.PDUType2 = ShareDataType(raw)
	if h.CompressedType, err = c.ReadU8("ShareDataHeader.CompressedType"); err != nil {
		return h, err
	}
	if h.CompressedLength, err = c.ReadU16LE("ShareDataHeader.CompressedLength"); err != nil {
		return h, err
	}
	return h, nil
}

// wrapShareData builds the full header pair around a share-data body,
// filling in the length fields the way the teacher's Data.Serialize does.
func wrapShareData(shareID uint32, pduSource uint16, pduType2 ShareDataType, bodyLen int) (ShareControlHeader, ShareDataHeader) {
	total := 6 + shareDataHeaderBodySize + bodyLen
	return ShareControlHeader{
			TotalLength: uint16(total),
			PDUType:     ShareControlTypeData,
			PDUSource:   pduSource,
		}, ShareDataHeader{
			ShareID:            shareID,
			StreamID:           1,
			UncompressedLength: uint16(4 + bodyLen),
			PDUType2:           pduType2,
		}
}

// SynchronizeData is TS_SYNCHRONIZE_PDU (MS-RDPBCGR 2.2.1.14).
type SynchronizeData struct {
	ShareID  uint32
	UserID   uint16
}

func (d SynchronizeData) Size() int { return 6 + shareDataHeaderBodySize + 4 }

// Encode writes the complete share-control + share-data + body framing for
// a Synchronize PDU.
func (d SynchronizeData) Encode(c *Cursor) error {
	ctrl, data := wrapShareData(d.ShareID, d.UserID, ShareDataTypeSynchronize, 4)
	if err := ctrl.Encode(c); err != nil {
		return err
	}
	if err := data.Encode(c); err != nil {
		return err
	}
	c.WriteU16LE(1) // messageType: SYNCMSGTYPE_SYNC
	c.WriteU16LE(d.UserID)
	return nil
}

// ControlAction is the action field of TS_CONTROL_PDU.
type ControlAction uint16

const (
	ControlActionRequestControl ControlAction = 0x0001
	ControlActionGrantedControl ControlAction = 0x0002
	ControlActionDetach         ControlAction = 0x0003
	ControlActionCooperate      ControlAction = 0x0004
)

// ControlData is TS_CONTROL_PDU (MS-RDPBCGR 2.2.1.15/2.2.1.16).
type ControlData struct {
	ShareID   uint32
	UserID    uint16
	Action    ControlAction
	GrantID   uint16
	ControlID uint32
}

func (d ControlData) Size() int { return 6 + shareDataHeaderBodySize + 8 }

func (d ControlData) Encode(c *Cursor) error {
	ctrl, data := wrapShareData(d.ShareID, d.UserID, ShareDataTypeControl, 8)
	if err := ctrl.Encode(c); err != nil {
		return err
	}
	if err := data.Encode(c); err != nil {
		return err
	}
	c.WriteU16LE(uint16(d.Action))
	c.WriteU16LE(d.GrantID)
	c.WriteU32LE(d.ControlID)
	return nil
}

func DecodeControlData(c *ReadCursor) (ControlData, error) {
	var d ControlData
	var err error
	raw, err := c.ReadU16LE("ControlData.Action")
	if err != nil {
		return d, err
	}
	d.Action = ControlAction(raw)
	if d.GrantID, err = c.ReadU16LE("ControlData.GrantID"); err != nil {
		return d, err
	}
	if d.ControlID, err = c.ReadU32LE("ControlData.ControlID"); err != nil {
		return d, err
	}
	return d, nil
}

// FontListData is TS_FONT_LIST_PDU (MS-RDPBCGR 2.2.1.18): the client's
// empty font-enumeration handshake PDU.
type FontListData struct {
	ShareID uint32
	UserID  uint16
}

func (d FontListData) Size() int { return 6 + shareDataHeaderBodySize + 8 }

func (d FontListData) Encode(c *Cursor) error {
	ctrl, data := wrapShareData(d.ShareID, d.UserID, ShareDataTypeFontList, 8)
	if err := ctrl.Encode(c); err != nil {
		return err
	}
	if err := data.Encode(c); err != nil {
		return err
	}
	c.WriteU16LE(0)      // numberFonts
	c.WriteU16LE(0)      // totalNumFonts
	c.WriteU16LE(0x0003) // listFlags: FONTLIST_FIRST | FONTLIST_LAST
	c.WriteU16LE(0x0032) // entrySize
	return nil
}

// FontMapData is TS_FONT_MAP_PDU (MS-RDPBCGR 2.2.1.22), sent by the server
// once font enumeration completes; only its arrival matters to the
// connector, so decode discards the map entries.
type FontMapData struct {
	ShareID uint32
	UserID  uint16
}

func (d FontMapData) Size() int { return 6 + shareDataHeaderBodySize + 8 }

// Encode writes the complete share-control + share-data + body framing for
// a Font Map PDU, the acceptor's reply once it has consumed the client's
// Font List PDU during connectionFinalization.
func (d FontMapData) Encode(c *Cursor) error {
	ctrl, data := wrapShareData(d.ShareID, d.UserID, ShareDataTypeFontMap, 8)
	if err := ctrl.Encode(c); err != nil {
		return err
	}
	if err := data.Encode(c); err != nil {
		return err
	}
	c.WriteU16LE(0)      // numberEntries
	c.WriteU16LE(0)      // totalNumEntries
	c.WriteU16LE(0x0003) // mapFlags: FONTMAP_FIRST | FONTMAP_LAST
	c.WriteU16LE(0x0004) // entrySize
	return nil
}

func DecodeFontMapData(c *ReadCursor) (FontMapData, error) {
	for _, f := range []string{"FontMap.NumberEntries", "FontMap.TotalNumEntries", "FontMap.MapFlags", "FontMap.EntrySize"} {
		if _, err := c.ReadU16LE(f); err != nil {
			return FontMapData{}, err
		}
	}
	return FontMapData{}, nil
}

// ErrorInfoCode is the errorInfo field of TS_SET_ERROR_INFO_PDU
// (MS-RDPBCGR 2.2.5.1.1), the server's reported disconnect reason.
type ErrorInfoCode uint32

// ErrorInfoData is TS_SET_ERROR_INFO_PDU.
type ErrorInfoData struct {
	ErrorInfo ErrorInfoCode
}

func DecodeErrorInfoData(c *ReadCursor) (ErrorInfoData, error) {
	var d ErrorInfoData
	v, err := c.ReadU32LE("ErrorInfoData.ErrorInfo")
	if err != nil {
		return d, err
	}
	d.ErrorInfo = ErrorInfoCode(v)
	return d, nil
}
