// Package cliprdr implements the clipboard virtual channel PDUs
// (MS-RDPECLIP): the PDU header every CLIPRDR message shares, monitor-ready,
// format-list/format-list-response, format-data request/response, the
// file-contents request/response pair, and lock/unlock. Format-ID
// classification (standard/private/registered-by-name) is exposed as a
// pure function so the channel multiplexer's mapping table 
// can build on it without duplicating the range constants here.
package cliprdr

import "github.com/kulaginds/rdp-core/pkg/pdu"

// MsgType is the msgType field of CLIPRDR_HEADER (MS-RDPECLIP 2.2.1).
type MsgType uint16

const (
	MsgTypeMonitorReady      MsgType = 0x0001
	MsgTypeFormatList        MsgType = 0x0002
	MsgTypeFormatListResponse MsgType = 0x0003
	MsgTypeFormatDataRequest MsgType = 0x0004
	MsgTypeFormatDataResponse MsgType = 0x0005
	MsgTypeFileContentsRequest MsgType = 0x0008
	MsgTypeFileContentsResponse MsgType = 0x0009
	MsgTypeLock              MsgType = 0x000A
	MsgTypeUnlock            MsgType = 0x000B
)

// MsgFlag is the msgFlags field; meaning depends on MsgType (e.g.
// RESPONSE_OK/RESPONSE_FAIL for *Response messages).
type MsgFlag uint16

const (
	MsgFlagResponseOK   MsgFlag = 0x0001
	MsgFlagResponseFail MsgFlag = 0x0002
	MsgFlagASCIINames   MsgFlag = 0x0004
)

// Header is CLIPRDR_HEADER, the 8-byte prefix on every CLIPRDR PDU.
type Header struct {
	MsgType     MsgType
	MsgFlags    MsgFlag
	DataLen     uint32
}

func (h Header) Size() int { return 8 }

func (h Header) Encode(c *pdu.Cursor) error {
	c.WriteU16LE(uint16(h.MsgType))
	c.WriteU16LE(uint16(h.MsgFlags))
	c.WriteU32LE(h.DataLen)
	return nil
}

func DecodeHeader(c *pdu.ReadCursor) (Header, error) {
	var h Header
	typ, err := c.ReadU16LE("cliprdr.Header.MsgType")
	if err != nil {
		return h, err
	}
	h.MsgType = MsgType(typ)
	flags, err := c.ReadU16LE("cliprdr.Header.MsgFlags")
	if err != nil {
		return h, err
	}
	h.MsgFlags = MsgFlag(flags)
	if h.DataLen, err = c.ReadU32LE("cliprdr.Header.DataLen"); err != nil {
		return h, err
	}
	return h, nil
}

// wrap writes header+body into c; used by every
// concrete message type below so the DataLen field never needs to be
// computed by hand at each call site.
func wrap(c *pdu.Cursor, typ MsgType, flags MsgFlag, bodyLen int, body func(*pdu.Cursor)) error {
	h := Header{MsgType: typ, MsgFlags: flags, DataLen: uint32(bodyLen)}
	if err := h.Encode(c); err != nil {
		return err
	}
	body(c)
	return nil
}

// MonitorReady is CLIPRDR_MONITOR_READY_PDU (MS-RDPECLIP 2.2.2.1), sent by
// the server once the channel is established; carries no body.
type MonitorReady struct{}

func (MonitorReady) Size() int { return 8 }

func (MonitorReady) Encode(c *pdu.Cursor) error {
	return wrap(c, MsgTypeMonitorReady, 0, 0, func(*pdu.Cursor) {})
}

// Format-ID classification ranges (MS-RDPECLIP 2.2.3.1 / ).
const (
	FormatStandardMax  = 0x01FF // < 0x200: OS-standard clipboard formats
	FormatPrivateMin   = 0x0200
	FormatPrivateMax   = 0x02FF
	FormatGDIMin       = 0x0300
	FormatGDIMax       = 0x03FF
	FormatRegisteredMin = 0xC000
)

// FormatClass is the classification of a remote format ID, per the
// mapping-table rules below.
type FormatClass int

const (
	FormatClassStandard FormatClass = iota
	FormatClassPrivate              // private (0x200-0x2FF) or GDI (0x300-0x3FF): dropped, never mirrored
	FormatClassRegistered           // >= 0xC000: registered by name, needs a name<->id mapping
)

// ClassifyFormat reports how a remote format ID should be treated, per
// the ranges above (MS-RDPECLIP 2.2.3.1).
func ClassifyFormat(id uint32) FormatClass {
	switch {
	case id <= FormatStandardMax:
		return FormatClassStandard
	case id >= FormatPrivateMin && id <= FormatGDIMax:
		return FormatClassPrivate
	case id >= FormatRegisteredMin:
		return FormatClassRegistered
	default:
		return FormatClassStandard
	}
}

// Format is one entry of CLIPRDR_FORMAT_LIST (short or long form); Name is
// empty for formats that carry no registered name.
type Format struct {
	ID   uint32
	Name string
}

// FormatList is CLIPRDR_FORMAT_LIST (MS-RDPECLIP 2.2.3.1), always encoded
// here in long form (UTF-16LE name, NUL-terminated, per format) since the
// short, fixed-32-byte-name form is legacy-only and out of scope.
type FormatList struct {
	Formats []Format
}

func (l FormatList) bodySize() int {
	n := 0
	for _, f := range l.Formats {
		n += 4 + 2*(len(f.Name)+1)
	}
	return n
}

func (l FormatList) Size() int { return 8 + l.bodySize() }

func (l FormatList) Encode(c *pdu.Cursor) error {
	return wrap(c, MsgTypeFormatList, 0, l.bodySize(), func(c *pdu.Cursor) {
		for _, f := range l.Formats {
			c.WriteU32LE(f.ID)
			c.WriteUTF16LE(f.Name)
			c.WriteU16LE(0) // NUL terminator
		}
	})
}

// DecodeFormatListBody decodes the body following an already-consumed
// Header whose MsgType is MsgTypeFormatList, long form.
func DecodeFormatListBody(c *pdu.ReadCursor, dataLen int) (FormatList, error) {
	var l FormatList
	end := c.Remaining() - dataLen
	for c.Remaining() > end {
		id, err := c.ReadU32LE("FormatList.FormatID")
		if err != nil {
			return l, err
		}
		var nameUnits []uint16
		for {
			u, err := c.ReadU16LE("FormatList.NameUnit")
			if err != nil {
				return l, err
			}
			if u == 0 {
				break
			}
			nameUnits = append(nameUnits, u)
		}
		name := ""
		if len(nameUnits) > 0 {
			raw := make([]byte, 0, len(nameUnits)*2+2)
			for _, u := range nameUnits {
				raw = append(raw, byte(u), byte(u>>8))
			}
			raw = append(raw, 0, 0)
			rc := pdu.NewReadCursor(raw)
			s, err := rc.ReadUTF16LE("FormatList.Name", len(nameUnits), false)
			if err != nil {
				return l, err
			}
			name = s
		}
		l.Formats = append(l.Formats, Format{ID: id, Name: name})
	}
	return l, nil
}

// FormatListResponse is CLIPRDR_FORMAT_LIST_RESPONSE (MS-RDPECLIP 2.2.3.2).
type FormatListResponse struct {
	OK bool
}

func (FormatListResponse) Size() int { return 8 }

func (r FormatListResponse) Encode(c *pdu.Cursor) error {
	flags := MsgFlagResponseFail
	if r.OK {
		flags = MsgFlagResponseOK
	}
	return wrap(c, MsgTypeFormatListResponse, flags, 0, func(*pdu.Cursor) {})
}

// FormatDataRequest is CLIPRDR_FORMAT_DATA_REQUEST (MS-RDPECLIP 2.2.5.1).
type FormatDataRequest struct {
	RequestedFormatID uint32
}

func (FormatDataRequest) Size() int { return 12 }

func (r FormatDataRequest) Encode(c *pdu.Cursor) error {
	return wrap(c, MsgTypeFormatDataRequest, 0, 4, func(c *pdu.Cursor) {
		c.WriteU32LE(r.RequestedFormatID)
	})
}

func DecodeFormatDataRequestBody(c *pdu.ReadCursor) (FormatDataRequest, error) {
	var r FormatDataRequest
	id, err := c.ReadU32LE("FormatDataRequest.RequestedFormatID")
	if err != nil {
		return r, err
	}
	r.RequestedFormatID = id
	return r, nil
}

// FormatDataResponse is CLIPRDR_FORMAT_DATA_RESPONSE (MS-RDPECLIP 2.2.5.2).
type FormatDataResponse struct {
	OK   bool
	Data []byte
}

func (r FormatDataResponse) Size() int { return 8 + len(r.Data) }

func (r FormatDataResponse) Encode(c *pdu.Cursor) error {
	flags := MsgFlagResponseFail
	if r.OK {
		flags = MsgFlagResponseOK
	}
	return wrap(c, MsgTypeFormatDataResponse, flags, len(r.Data), func(c *pdu.Cursor) {
		c.WriteBytes(r.Data)
	})
}

func DecodeFormatDataResponseBody(c *pdu.ReadCursor, dataLen int) (FormatDataResponse, error) {
	var r FormatDataResponse
	data, err := c.ReadBytes("FormatDataResponse.Data", dataLen)
	if err != nil {
		return r, err
	}
	r.Data = data
	return r, nil
}

// FileContentsRequest is CLIPRDR_FILECONTENTS_REQUEST (MS-RDPECLIP 2.2.5.3).
// FlagData/FlagSize select whether nPositionLow/High address a file-range
// read or the file's size is requested.
type FileContentsRequest struct {
	StreamID       uint32
	ListIndex      uint32
	DwFlags        uint32
	PositionLow    uint32
	PositionHigh   uint32
	RequestedSize  uint32
	HaveClipDataID bool
	ClipDataID     uint32
}

const (
	FileContentsFlagSize uint32 = 0x00000001
	FileContentsFlagData uint32 = 0x00000002
)

func (r FileContentsRequest) bodySize() int {
	n := 4 + 4 + 4 + 4 + 4 + 4
	if r.HaveClipDataID {
		n += 4
	}
	return n
}

func (r FileContentsRequest) Size() int { return 8 + r.bodySize() }

func (r FileContentsRequest) Encode(c *pdu.Cursor) error {
	return wrap(c, MsgTypeFileContentsRequest, 0, r.bodySize(), func(c *pdu.Cursor) {
		c.WriteU32LE(r.StreamID)
		c.WriteU32LE(r.ListIndex)
		c.WriteU32LE(r.DwFlags)
		c.WriteU32LE(r.PositionLow)
		c.WriteU32LE(r.PositionHigh)
		c.WriteU32LE(r.RequestedSize)
		if r.HaveClipDataID {
			c.WriteU32LE(r.ClipDataID)
		}
	})
}

func DecodeFileContentsRequestBody(c *pdu.ReadCursor, dataLen int) (FileContentsRequest, error) {
	var r FileContentsRequest
	var err error
	if r.StreamID, err = c.ReadU32LE("FileContentsRequest.StreamID"); err != nil {
		return r, err
	}
	if r.ListIndex, err = c.ReadU32LE("FileContentsRequest.ListIndex"); err != nil {
		return r, err
	}
	if r.DwFlags, err = c.ReadU32LE("FileContentsRequest.DwFlags"); err != nil {
		return r, err
	}
	if r.PositionLow, err = c.ReadU32LE("FileContentsRequest.PositionLow"); err != nil {
		return r, err
	}
	if r.PositionHigh, err = c.ReadU32LE("FileContentsRequest.PositionHigh"); err != nil {
		return r, err
	}
	if r.RequestedSize, err = c.ReadU32LE("FileContentsRequest.RequestedSize"); err != nil {
		return r, err
	}
	if dataLen >= 28 {
		if r.ClipDataID, err = c.ReadU32LE("FileContentsRequest.ClipDataID"); err != nil {
			return r, err
		}
		r.HaveClipDataID = true
	}
	return r, nil
}

// FileContentsResponse is CLIPRDR_FILECONTENTS_RESPONSE (MS-RDPECLIP
// 2.2.5.4): either the requested byte range or an 8-byte file size,
// depending on what the request asked for.
type FileContentsResponse struct {
	OK       bool
	StreamID uint32
	Data     []byte
}

func (r FileContentsResponse) Size() int { return 8 + 4 + len(r.Data) }

func (r FileContentsResponse) Encode(c *pdu.Cursor) error {
	flags := MsgFlagResponseFail
	if r.OK {
		flags = MsgFlagResponseOK
	}
	return wrap(c, MsgTypeFileContentsResponse, flags, 4+len(r.Data), func(c *pdu.Cursor) {
		c.WriteU32LE(r.StreamID)
		c.WriteBytes(r.Data)
	})
}

func DecodeFileContentsResponseBody(c *pdu.ReadCursor, dataLen int) (FileContentsResponse, error) {
	var r FileContentsResponse
	var err error
	if r.StreamID, err = c.ReadU32LE("FileContentsResponse.StreamID"); err != nil {
		return r, err
	}
	if r.Data, err = c.ReadBytes("FileContentsResponse.Data", dataLen-4); err != nil {
		return r, err
	}
	return r, nil
}

// Lock/Unlock are CLIPRDR_LOCK_CLIPDATA / CLIPRDR_UNLOCK_CLIPDATA
// (MS-RDPECLIP 2.2.4.1/2.2.4.2), both carrying just a clipDataId.
type Lock struct{ ClipDataID uint32 }
type Unlock struct{ ClipDataID uint32 }

func (Lock) Size() int   { return 12 }
func (Unlock) Size() int { return 12 }

func (l Lock) Encode(c *pdu.Cursor) error {
	return wrap(c, MsgTypeLock, 0, 4, func(c *pdu.Cursor) { c.WriteU32LE(l.ClipDataID) })
}

func (u Unlock) Encode(c *pdu.Cursor) error {
	return wrap(c, MsgTypeUnlock, 0, 4, func(c *pdu.Cursor) { c.WriteU32LE(u.ClipDataID) })
}

func DecodeLockBody(c *pdu.ReadCursor) (Lock, error) {
	id, err := c.ReadU32LE("Lock.ClipDataID")
	return Lock{ClipDataID: id}, err
}

func DecodeUnlockBody(c *pdu.ReadCursor) (Unlock, error) {
	id, err := c.ReadU32LE("Unlock.ClipDataID")
	return Unlock{ClipDataID: id}, err
}
