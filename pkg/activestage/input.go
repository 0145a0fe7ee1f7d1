package activestage

import "github.com/kulaginds/rdp-core/pkg/pdu"

// OperationKind discriminates Operation's variants: the host-facing input
// vocabulary ApplyInputs translates into wire InputEvents.
type OperationKind int

const (
	OpKeyDown OperationKind = iota
	OpKeyUp
	OpUnicodeKeyDown
	OpUnicodeKeyUp
	OpMouseMove
	OpMouseButtonDown
	OpMouseButtonUp
	OpMouseWheel
	OpSync
)

// MouseButton names one of the three standard buttons tracked for
// press/release coalescing.
type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
)

// Operation is one input the host wants applied, batched by the caller into
// a transaction passed to ApplyInputs.
type Operation struct {
	Kind OperationKind

	ScanCode    uint8  // OpKeyDown/OpKeyUp
	Extended    bool   // OpKeyDown/OpKeyUp: scan code belongs to the extended set
	UnicodeCode uint16 // OpUnicodeKeyDown/OpUnicodeKeyUp

	X, Y   uint16      // OpMouseMove/OpMouseButtonDown/OpMouseButtonUp
	Button MouseButton // OpMouseButtonDown/OpMouseButtonUp

	Horizontal bool  // OpMouseWheel: rotates the horizontal wheel instead of vertical
	Rotation   int16 // OpMouseWheel: signed rotation units, MS-RDPBCGR 2.2.8.1.2.2.3's 9-bit magnitude+sign

	LockFlags uint8 // OpSync: SyncScrollLock|SyncNumLock|SyncCapsLock|SyncKanaLock
}

func mouseButtonFlag(b MouseButton) uint16 {
	switch b {
	case MouseButtonRight:
		return pdu.PTRFlagsButton2
	case MouseButtonMiddle:
		return pdu.PTRFlagsButton3
	default:
		return pdu.PTRFlagsButton1
	}
}

// inputTracker is the small stateful database of currently-held keys and
// buttons  requires: ApplyInputs consults it to coalesce
// duplicate press/release pairs, and ReleaseAllInputs enumerates it to
// synthesize the matching releases on focus loss.
type inputTracker struct {
	keys        map[uint8]bool
	unicodeKeys map[uint16]bool
	buttons     map[MouseButton]bool
	lastX       uint16
	lastY       uint16
}

func newInputTracker() inputTracker {
	return inputTracker{
		keys:        make(map[uint8]bool),
		unicodeKeys: make(map[uint16]bool),
		buttons:     make(map[MouseButton]bool),
	}
}

// apply translates one transaction of Operations into wire InputEvents,
// dropping a press already held or a release of something not held so the
// sequence press(X); release(X); release(X) emits exactly one press and one
// release (idempotence invariant).
func (t *inputTracker) apply(ops []Operation) []pdu.InputEvent {
	var events []pdu.InputEvent
	for _, op := range ops {
		if e, ok := t.applyOne(op); ok {
			events = append(events, e)
		}
	}
	return events
}

func (t *inputTracker) applyOne(op Operation) (pdu.InputEvent, bool) {
	switch op.Kind {
	case OpKeyDown:
		if t.keys[op.ScanCode] {
			return pdu.InputEvent{}, false
		}
		t.keys[op.ScanCode] = true
		return pdu.NewKeyboardEvent(keyFlags(op.Extended, false), op.ScanCode), true

	case OpKeyUp:
		if !t.keys[op.ScanCode] {
			return pdu.InputEvent{}, false
		}
		delete(t.keys, op.ScanCode)
		return pdu.NewKeyboardEvent(keyFlags(op.Extended, true), op.ScanCode), true

	case OpUnicodeKeyDown:
		if t.unicodeKeys[op.UnicodeCode] {
			return pdu.InputEvent{}, false
		}
		t.unicodeKeys[op.UnicodeCode] = true
		return pdu.NewUnicodeKeyboardEvent(0, op.UnicodeCode), true

	case OpUnicodeKeyUp:
		if !t.unicodeKeys[op.UnicodeCode] {
			return pdu.InputEvent{}, false
		}
		delete(t.unicodeKeys, op.UnicodeCode)
		return pdu.NewUnicodeKeyboardEvent(pdu.KBDFlagsRelease, op.UnicodeCode), true

	case OpMouseMove:
		t.lastX, t.lastY = op.X, op.Y
		return pdu.NewMouseEvent(pdu.PTRFlagsMove, op.X, op.Y), true

	case OpMouseButtonDown:
		if t.buttons[op.Button] {
			return pdu.InputEvent{}, false
		}
		t.buttons[op.Button] = true
		t.lastX, t.lastY = op.X, op.Y
		return pdu.NewMouseEvent(mouseButtonFlag(op.Button)|pdu.PTRFlagsDown, op.X, op.Y), true

	case OpMouseButtonUp:
		if !t.buttons[op.Button] {
			return pdu.InputEvent{}, false
		}
		delete(t.buttons, op.Button)
		t.lastX, t.lastY = op.X, op.Y
		return pdu.NewMouseEvent(mouseButtonFlag(op.Button), op.X, op.Y), true

	case OpMouseWheel:
		return pdu.NewMouseEvent(wheelFlags(op.Horizontal, op.Rotation), t.lastX, t.lastY), true

	case OpSync:
		return pdu.NewSynchronizeEvent(op.LockFlags), true

	default:
		return pdu.InputEvent{}, false
	}
}

func keyFlags(extended, release bool) uint8 {
	var f uint8
	if extended {
		f |= pdu.KBDFlagsExtended
	}
	if release {
		f |= pdu.KBDFlagsRelease
	}
	return f
}

// wheelFlags packs the rotation amount into the low byte alongside the
// wheel-selector and sign bits (MS-RDPBCGR 2.2.8.1.2.2.3).
func wheelFlags(horizontal bool, rotation int16) uint16 {
	var flags uint16
	if horizontal {
		flags |= pdu.PTRFlagsHWheel
	} else {
		flags |= pdu.PTRFlagsWheel
	}
	magnitude := rotation
	if magnitude < 0 {
		flags |= pdu.PTRFlagsWheelNegative
		magnitude = -magnitude
	}
	flags |= uint16(magnitude) & 0x00FF
	return flags
}

// releaseAll synthesizes key-up/button-up events for everything currently
// held and clears the tracker (ReleaseAllInputs).
func (t *inputTracker) releaseAll() []pdu.InputEvent {
	var events []pdu.InputEvent
	for scanCode := range t.keys {
		events = append(events, pdu.NewKeyboardEvent(pdu.KBDFlagsRelease, scanCode))
	}
	for code := range t.unicodeKeys {
		events = append(events, pdu.NewUnicodeKeyboardEvent(pdu.KBDFlagsRelease, code))
	}
	for button := range t.buttons {
		events = append(events, pdu.NewMouseEvent(mouseButtonFlag(button), t.lastX, t.lastY))
	}
	t.keys = make(map[uint8]bool)
	t.unicodeKeys = make(map[uint16]bool)
	t.buttons = make(map[MouseButton]bool)
	return events
}
