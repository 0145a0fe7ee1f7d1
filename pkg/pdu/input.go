package pdu

// InputEventCode is the fast-path input event code (MS-RDPBCGR 2.2.8.1.2.2).
type InputEventCode uint8

const (
	InputEventCodeScanCode      InputEventCode = 0
	InputEventCodeMouse         InputEventCode = 1
	InputEventCodeMouseX        InputEventCode = 2
	InputEventCodeSync          InputEventCode = 3
	InputEventCodeUnicode       InputEventCode = 4
	InputEventCodeQoETimestamp  InputEventCode = 6
)

const (
	KBDFlagsRelease   uint8 = 0x01
	KBDFlagsExtended  uint8 = 0x02
	KBDFlagsExtended1 uint8 = 0x04
)

const (
	PTRFlagsHWheel        uint16 = 0x0400
	PTRFlagsWheel         uint16 = 0x0200
	PTRFlagsWheelNegative uint16 = 0x0100
	PTRFlagsMove          uint16 = 0x0800
	PTRFlagsDown          uint16 = 0x8000
	PTRFlagsButton1       uint16 = 0x1000
	PTRFlagsButton2       uint16 = 0x2000
	PTRFlagsButton3       uint16 = 0x4000
)

const (
	PTRXFlagsDown    uint16 = 0x8000
	PTRXFlagsButton1 uint16 = 0x0001
	PTRXFlagsButton2 uint16 = 0x0002
)

const (
	SyncScrollLock uint8 = 0x01
	SyncNumLock    uint8 = 0x02
	SyncCapsLock   uint8 = 0x04
	SyncKanaLock   uint8 = 0x08
)

// InputEvent is one fast-path input event: a 1-byte {flags:5, code:3}
// header followed by a code-dependent body (MS-RDPBCGR 2.2.8.1.2.2).
// Exactly one of the typed payload fields is populated, selected by Code.
type InputEvent struct {
	Flags uint8
	Code  InputEventCode

	ScanCode    uint8  // Code == InputEventCodeScanCode
	UnicodeCode uint16 // Code == InputEventCodeUnicode
	PointerFlags uint16 // Code == InputEventCodeMouse / InputEventCodeMouseX
	X, Y        uint16
	Timestamp   uint32 // Code == InputEventCodeQoETimestamp
}

func NewKeyboardEvent(flags uint8, scanCode uint8) InputEvent {
	return InputEvent{Flags: flags, Code: InputEventCodeScanCode, ScanCode: scanCode}
}

func NewUnicodeKeyboardEvent(flags uint8, unicodeCode uint16) InputEvent {
	return InputEvent{Flags: flags, Code: InputEventCodeUnicode, UnicodeCode: unicodeCode}
}

func NewMouseEvent(pointerFlags, x, y uint16) InputEvent {
	return InputEvent{Code: InputEventCodeMouse, PointerFlags: pointerFlags, X: x, Y: y}
}

func NewExtendedMouseEvent(pointerFlags, x, y uint16) InputEvent {
	return InputEvent{Code: InputEventCodeMouseX, PointerFlags: pointerFlags, X: x, Y: y}
}

func NewSynchronizeEvent(lockFlags uint8) InputEvent {
	return InputEvent{Flags: lockFlags, Code: InputEventCodeSync}
}

func NewQoETimestampEvent(timestamp uint32) InputEvent {
	return InputEvent{Code: InputEventCodeQoETimestamp, Timestamp: timestamp}
}

func (e InputEvent) bodySize() int {
	switch e.Code {
	case InputEventCodeScanCode:
		return 1
	case InputEventCodeUnicode:
		return 2
	case InputEventCodeMouse, InputEventCodeMouseX:
		return 6
	case InputEventCodeQoETimestamp:
		return 4
	default: // Sync carries no body
		return 0
	}
}

func (e InputEvent) Size() int { return 1 + e.bodySize() }

func (e InputEvent) Encode(c *Cursor) error {
	c.WriteU8((e.Flags&0x1F)<<3 | uint8(e.Code)&0x07)
	switch e.Code {
	case InputEventCodeScanCode:
		c.WriteU8(e.ScanCode)
	case InputEventCodeUnicode:
		c.WriteU16LE(e.UnicodeCode)
	case InputEventCodeMouse, InputEventCodeMouseX:
		c.WriteU16LE(e.PointerFlags)
		c.WriteU16LE(e.X)
		c.WriteU16LE(e.Y)
	case InputEventCodeQoETimestamp:
		c.WriteU32LE(e.Timestamp)
	}
	return nil
}

// DecodeInputEvent decodes one fast-path input event.
func DecodeInputEvent(c *ReadCursor) (InputEvent, error) {
	var e InputEvent
	header, err := c.ReadU8("InputEvent.Header")
	if err != nil {
		return e, err
	}
	e.Flags = (header >> 3) & 0x1F
	e.Code = InputEventCode(header & 0x07)

	switch e.Code {
	case InputEventCodeScanCode:
		if e.ScanCode, err = c.ReadU8("InputEvent.ScanCode"); err != nil {
			return e, err
		}
	case InputEventCodeUnicode:
		if e.UnicodeCode, err = c.ReadU16LE("InputEvent.UnicodeCode"); err != nil {
			return e, err
		}
	case InputEventCodeMouse, InputEventCodeMouseX:
		if e.PointerFlags, err = c.ReadU16LE("InputEvent.PointerFlags"); err != nil {
			return e, err
		}
		if e.X, err = c.ReadU16LE("InputEvent.X"); err != nil {
			return e, err
		}
		if e.Y, err = c.ReadU16LE("InputEvent.Y"); err != nil {
			return e, err
		}
	case InputEventCodeSync:
		// no body
	case InputEventCodeQoETimestamp:
		if e.Timestamp, err = c.ReadU32LE("InputEvent.Timestamp"); err != nil {
			return e, err
		}
	default:
		return e, &DecodeError{Kind: InvalidField, Field: "InputEvent.Code", Reason: "unknown fast-path input event code"}
	}
	return e, nil
}

// SlowPathInputEvent is the slow-path TS_INPUT_EVENT wrapper
// (MS-RDPBCGR 2.2.8.1.1.3.1.1), distinguished from the fast-path InputEvent
// by carrying a 4-byte eventTime and a 16-bit messageType rather than the
// packed 1-byte fast-path header.
type SlowPathInputEvent struct {
	EventTime   uint32
	MessageType uint16
	Inner       InputEvent
}

const (
	InputMessageTypeScanCode  uint16 = 0x0004
	InputMessageTypeUnicode   uint16 = 0x0005
	InputMessageTypeSync      uint16 = 0x0006
	InputMessageTypeMouse     uint16 = 0x8001
	InputMessageTypeMouseX    uint16 = 0x8002
)

func (e SlowPathInputEvent) Size() int {
	const header = 6 // eventTime(4) + messageType(2)
	switch e.Inner.Code {
	case InputEventCodeScanCode:
		return header + 4 // keyboardFlags(2) + keyCode(1) + pad(1)
	case InputEventCodeUnicode:
		return header + 4 // keyboardFlags(2) + unicodeCode(2)
	case InputEventCodeSync:
		return header + 6 // pad2octets(2) + toggleFlags(4)
	case InputEventCodeMouse, InputEventCodeMouseX:
		return header + 6 // pointerFlags(2) + x(2) + y(2)
	default:
		return header
	}
}

func (e SlowPathInputEvent) Encode(c *Cursor) error {
	c.WriteU32LE(e.EventTime)
	c.WriteU16LE(e.MessageType)
	switch e.Inner.Code {
	case InputEventCodeScanCode:
		c.WriteU16LE(uint16(e.Inner.Flags))
		c.WriteU8(e.Inner.ScanCode)
		c.WriteU8(0) // pad
	case InputEventCodeUnicode:
		c.WriteU16LE(uint16(e.Inner.Flags))
		c.WriteU16LE(e.Inner.UnicodeCode)
	case InputEventCodeSync:
		c.WriteU16LE(0) // pad2octets
		c.WriteU32LE(uint32(e.Inner.Flags))
	case InputEventCodeMouse, InputEventCodeMouseX:
		c.WriteU16LE(e.Inner.PointerFlags)
		c.WriteU16LE(e.Inner.X)
		c.WriteU16LE(e.Inner.Y)
	}
	return nil
}

// DecodeSlowPathInputEvent decodes one TS_INPUT_EVENT: the 6-byte
// eventTime+messageType header followed by a messageType-dependent body,
// the slow-path counterpart to DecodeInputEvent's fast-path framing.
func DecodeSlowPathInputEvent(c *ReadCursor) (SlowPathInputEvent, error) {
	var e SlowPathInputEvent
	var err error
	if e.EventTime, err = c.ReadU32LE("SlowPathInputEvent.EventTime"); err != nil {
		return e, err
	}
	if e.MessageType, err = c.ReadU16LE("SlowPathInputEvent.MessageType"); err != nil {
		return e, err
	}
	switch e.MessageType {
	case InputMessageTypeScanCode:
		flags, err := c.ReadU16LE("SlowPathInputEvent.KeyboardFlags")
		if err != nil {
			return e, err
		}
		scanCode, err := c.ReadU8("SlowPathInputEvent.KeyCode")
		if err != nil {
			return e, err
		}
		if _, err := c.ReadU8("SlowPathInputEvent.Pad"); err != nil {
			return e, err
		}
		e.Inner = InputEvent{Flags: uint8(flags), Code: InputEventCodeScanCode, ScanCode: scanCode}
	case InputMessageTypeUnicode:
		flags, err := c.ReadU16LE("SlowPathInputEvent.KeyboardFlags")
		if err != nil {
			return e, err
		}
		unicodeCode, err := c.ReadU16LE("SlowPathInputEvent.UnicodeCode")
		if err != nil {
			return e, err
		}
		e.Inner = InputEvent{Flags: uint8(flags), Code: InputEventCodeUnicode, UnicodeCode: unicodeCode}
	case InputMessageTypeSync:
		if _, err := c.ReadU16LE("SlowPathInputEvent.Pad2Octets"); err != nil {
			return e, err
		}
		toggleFlags, err := c.ReadU32LE("SlowPathInputEvent.ToggleFlags")
		if err != nil {
			return e, err
		}
		e.Inner = InputEvent{Flags: uint8(toggleFlags), Code: InputEventCodeSync}
	case InputMessageTypeMouse, InputMessageTypeMouseX:
		pointerFlags, err := c.ReadU16LE("SlowPathInputEvent.PointerFlags")
		if err != nil {
			return e, err
		}
		x, err := c.ReadU16LE("SlowPathInputEvent.XPos")
		if err != nil {
			return e, err
		}
		y, err := c.ReadU16LE("SlowPathInputEvent.YPos")
		if err != nil {
			return e, err
		}
		code := InputEventCodeMouse
		if e.MessageType == InputMessageTypeMouseX {
			code = InputEventCodeMouseX
		}
		e.Inner = InputEvent{Code: code, PointerFlags: pointerFlags, X: x, Y: y}
	default:
		return e, &DecodeError{Kind: UnexpectedMessageType, Field: "SlowPathInputEvent.MessageType", Got: uint32(e.MessageType)}
	}
	return e, nil
}
