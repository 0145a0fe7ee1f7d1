package pdu

// LicensingMessageType is the msgType field of LICENSE_PREAMBLE
// (MS-RDPELE 2.2.2.1). The connector only ever needs to recognize
// ErrorAlert (to treat it as a no-op success, per MS-RDPBCGR's client
// licensing Non-goal) and surface any other type as unsupported.
type LicensingMessageType uint8

const (
	LicensingMessageTypeLicenseRequest          LicensingMessageType = 0x01
	LicensingMessageTypePlatformChallenge        LicensingMessageType = 0x02
	LicensingMessageTypeNewLicense               LicensingMessageType = 0x03
	LicensingMessageTypeUpgradeLicense           LicensingMessageType = 0x04
	LicensingMessageTypeErrorAlert               LicensingMessageType = 0xFF
)

// LicensePreamble is LICENSE_PREAMBLE.
type LicensePreamble struct {
	MsgType LicensingMessageType
	Flags   uint8
	MsgSize uint16
}

func (p LicensePreamble) Size() int { return 4 }

func (p LicensePreamble) Encode(c *Cursor) error {
	c.WriteU8(uint8(p.MsgType))
	c.WriteU8(p.Flags)
	c.WriteU16LE(p.MsgSize)
	return nil
}

func DecodeLicensePreamble(c *ReadCursor) (LicensePreamble, error) {
	var p LicensePreamble
	typ, err := c.ReadU8("LicensePreamble.MsgType")
	if err != nil {
		return p, err
	}
	p.MsgType = LicensingMessageType(typ)
	if p.Flags, err = c.ReadU8("LicensePreamble.Flags"); err != nil {
		return p, err
	}
	if p.MsgSize, err = c.ReadU16LE("LicensePreamble.MsgSize"); err != nil {
		return p, err
	}
	return p, nil
}

// LicensingBinaryBlob is LICENSE_BINARY_BLOB (MS-RDPELE 2.2.2.4).
type LicensingBinaryBlob struct {
	BlobType uint16
	BlobData []byte
}

func (b LicensingBinaryBlob) Size() int { return 4 + len(b.BlobData) }

func (b LicensingBinaryBlob) Encode(c *Cursor) error {
	c.WriteU16LE(b.BlobType)
	c.WriteU16LE(uint16(len(b.BlobData)))
	c.WriteBytes(b.BlobData)
	return nil
}

func DecodeLicensingBinaryBlob(c *ReadCursor) (LicensingBinaryBlob, error) {
	var b LicensingBinaryBlob
	var err error
	if b.BlobType, err = c.ReadU16LE("LicensingBinaryBlob.BlobType"); err != nil {
		return b, err
	}
	length, err := c.ReadU16LE("LicensingBinaryBlob.BlobLen")
	if err != nil {
		return b, err
	}
	if length > 0 {
		if b.BlobData, err = c.ReadBytes("LicensingBinaryBlob.BlobData", int(length)); err != nil {
			return b, err
		}
	}
	return b, nil
}

// LicenseErrorMessage is LICENSE_ERROR_MESSAGE (MS-RDPELE 2.2.1.12). An
// ErrorCode of STATUS_VALID_CLIENT is the normal "licensing not required"
// handshake outcome used by connectors that never present real license
// credentials; IsValidClient checks ErrorCode only and StateTransition is
// not inspected.
type LicenseErrorMessage struct {
	ErrorCode       uint32
	StateTransition uint32
	ErrorInfo       LicensingBinaryBlob
}

// ErrorCode values (MS-RDPELE 2.2.1.12.1.1), with the StateTransition value
// NewValidClientLicenseError sends alongside.
const (
	LicenseErrorCodeValidClient     uint32 = 0x00000007
	StateTransitionNoTransition     uint32 = 0x00000002
)

func (m LicenseErrorMessage) Size() int { return LicensePreamble{}.Size() + 4 + 4 + m.ErrorInfo.Size() }

// Encode writes the whole LICENSE_PREAMBLE + LICENSE_ERROR_MESSAGE the
// acceptor sends in place of real license negotiation: this core always
// grants access without requiring a license.
func (m LicenseErrorMessage) Encode(c *Cursor) error {
	preamble := LicensePreamble{MsgType: LicensingMessageTypeErrorAlert, Flags: 0x03, MsgSize: uint16(m.Size())}
	if err := preamble.Encode(c); err != nil {
		return err
	}
	c.WriteU32LE(m.ErrorCode)
	c.WriteU32LE(m.StateTransition)
	return m.ErrorInfo.Encode(c)
}

// NewValidClientLicenseError builds the LICENSE_ERROR_MESSAGE the acceptor
// sends to tell the client no further licensing exchange is required.
func NewValidClientLicenseError() LicenseErrorMessage {
	return LicenseErrorMessage{
		ErrorCode:       LicenseErrorCodeValidClient,
		StateTransition: StateTransitionNoTransition,
		ErrorInfo:       LicensingBinaryBlob{BlobType: 0x0001},
	}
}

func DecodeLicenseErrorMessage(c *ReadCursor) (LicenseErrorMessage, error) {
	var m LicenseErrorMessage
	var err error
	if m.ErrorCode, err = c.ReadU32LE("LicenseErrorMessage.ErrorCode"); err != nil {
		return m, err
	}
	if m.StateTransition, err = c.ReadU32LE("LicenseErrorMessage.StateTransition"); err != nil {
		return m, err
	}
	if m.ErrorInfo, err = DecodeLicensingBinaryBlob(c); err != nil {
		return m, err
	}
	return m, nil
}

// IsValidClient reports whether the server has granted access without
// requiring a real license (MS-RDPBCGR's most common client path).
func (m LicenseErrorMessage) IsValidClient() bool {
	return m.ErrorCode == LicenseErrorCodeValidClient
}
