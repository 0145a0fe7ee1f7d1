// Package rdpedisp implements the MS-RDPEDISP Remote Desktop Protocol:
// Display Control Virtual Channel Extension PDUs, carried over the
// "Microsoft::Windows::RDS::DisplayControl" dynamic virtual channel.
package rdpedisp

import "github.com/kulaginds/rdp-core/pkg/pdu"

// PduType is the DISPLAYCONTROL_HEADER pduType field (MS-RDPEDISP 2.2.2.1).
type PduType uint32

const (
	PduTypeCaps          PduType = 0x00000005
	PduTypeMonitorLayout PduType = 0x00000002
)

// MonitorLayoutSize is the fixed size in bytes of one
// DISPLAYCONTROL_MONITOR_LAYOUT entry (MS-RDPEDISP 2.2.2.2.1), also written
// into the wire payload as a self-describing constant.
const MonitorLayoutSize = 40

// MaxMonitors is the cap on the number of monitors in a single
// DISPLAYCONTROL_MONITOR_LAYOUT_PDU (MS-RDPEDISP 2.2.2.2).
const MaxMonitors = 16

func writeHeader(c *pdu.Cursor, typ PduType, payloadLen int) {
	c.WriteU32LE(uint32(typ))
	c.WriteU32LE(uint32(8 + payloadLen))
}

func readHeader(c *pdu.ReadCursor, field string, want PduType) (payloadLen int, err error) {
	typ, err := c.ReadU32LE(field + ".PduType")
	if err != nil {
		return 0, err
	}
	if PduType(typ) != want {
		return 0, &pdu.DecodeError{Kind: pdu.UnexpectedMessageType, Field: field + ".PduType", Got: typ}
	}
	total, err := c.ReadU32LE(field + ".Length")
	if err != nil {
		return 0, err
	}
	if total < 8 {
		return 0, &pdu.DecodeError{Kind: pdu.InvalidField, Field: field + ".Length", Reason: "shorter than header"}
	}
	return int(total) - 8, nil
}

// Caps is the DISPLAYCONTROL_CAPS_PDU (MS-RDPEDISP 2.2.2.1), the server's
// advertisement of how many monitors and what scale factors it accepts.
type Caps struct {
	MaxNumMonitors        uint32
	MaxMonitorAreaFactorA uint32
	MaxMonitorAreaFactorB uint32
}

func (p Caps) Size() int { return 8 + 12 }

func (p Caps) Encode(c *pdu.Cursor) error {
	writeHeader(c, PduTypeCaps, 12)
	c.WriteU32LE(p.MaxNumMonitors)
	c.WriteU32LE(p.MaxMonitorAreaFactorA)
	c.WriteU32LE(p.MaxMonitorAreaFactorB)
	return nil
}

func DecodeCaps(c *pdu.ReadCursor) (Caps, error) {
	var p Caps
	if _, err := readHeader(c, "Caps", PduTypeCaps); err != nil {
		return p, err
	}
	var err error
	if p.MaxNumMonitors, err = c.ReadU32LE("Caps.MaxNumMonitors"); err != nil {
		return p, err
	}
	if p.MaxMonitorAreaFactorA, err = c.ReadU32LE("Caps.MaxMonitorAreaFactorA"); err != nil {
		return p, err
	}
	if p.MaxMonitorAreaFactorB, err = c.ReadU32LE("Caps.MaxMonitorAreaFactorB"); err != nil {
		return p, err
	}
	return p, nil
}

// MonitorFlag is the DISPLAYCONTROL_MONITOR_LAYOUT Flags field.
type MonitorFlag uint32

const MonitorFlagPrimary MonitorFlag = 0x00000001

// MonitorLayout is one DISPLAYCONTROL_MONITOR_LAYOUT entry describing a
// single monitor's position, size, and physical scale (MS-RDPEDISP
// 2.2.2.2.1). Left/Top may be negative for any monitor but the primary one;
// Width/Height must each be a multiple of 2 per MS-RDPEDISP 3.2.5.1.
type MonitorLayout struct {
	Flags              MonitorFlag
	Left               int32
	Top                int32
	Width              uint32
	Height             uint32
	PhysicalWidth      uint32
	PhysicalHeight     uint32
	Orientation        uint32 // 0, 90, 180, or 270
	DesktopScaleFactor uint32 // 100-500
	DeviceScaleFactor  uint32 // 100, 140, or 180
}

func (m MonitorLayout) Primary() bool { return m.Flags&MonitorFlagPrimary != 0 }

func (m MonitorLayout) validate() error {
	if m.Width%2 != 0 || m.Height%2 != 0 {
		return &pdu.EncodeError{Kind: pdu.InvalidFieldEncode, Field: "MonitorLayout.Width/Height", Reason: "must be a multiple of 2"}
	}
	switch m.Orientation {
	case 0, 90, 180, 270:
	default:
		return &pdu.EncodeError{Kind: pdu.InvalidFieldEncode, Field: "MonitorLayout.Orientation", Reason: "not one of 0/90/180/270"}
	}
	return nil
}

func (m MonitorLayout) encode(c *pdu.Cursor) error {
	if err := m.validate(); err != nil {
		return err
	}
	c.WriteU32LE(uint32(m.Flags))
	c.WriteU32LE(uint32(m.Left))
	c.WriteU32LE(uint32(m.Top))
	c.WriteU32LE(m.Width)
	c.WriteU32LE(m.Height)
	c.WriteU32LE(m.PhysicalWidth)
	c.WriteU32LE(m.PhysicalHeight)
	c.WriteU32LE(m.Orientation)
	c.WriteU32LE(m.DesktopScaleFactor)
	c.WriteU32LE(m.DeviceScaleFactor)
	return nil
}

func decodeMonitorLayout(c *pdu.ReadCursor) (MonitorLayout, error) {
	var m MonitorLayout
	flags, err := c.ReadU32LE("MonitorLayout.Flags")
	if err != nil {
		return m, err
	}
	m.Flags = MonitorFlag(flags)
	left, err := c.ReadU32LE("MonitorLayout.Left")
	if err != nil {
		return m, err
	}
	m.Left = int32(left)
	top, err := c.ReadU32LE("MonitorLayout.Top")
	if err != nil {
		return m, err
	}
	m.Top = int32(top)
	if m.Width, err = c.ReadU32LE("MonitorLayout.Width"); err != nil {
		return m, err
	}
	if m.Height, err = c.ReadU32LE("MonitorLayout.Height"); err != nil {
		return m, err
	}
	if m.PhysicalWidth, err = c.ReadU32LE("MonitorLayout.PhysicalWidth"); err != nil {
		return m, err
	}
	if m.PhysicalHeight, err = c.ReadU32LE("MonitorLayout.PhysicalHeight"); err != nil {
		return m, err
	}
	if m.Orientation, err = c.ReadU32LE("MonitorLayout.Orientation"); err != nil {
		return m, err
	}
	if m.DesktopScaleFactor, err = c.ReadU32LE("MonitorLayout.DesktopScaleFactor"); err != nil {
		return m, err
	}
	if m.DeviceScaleFactor, err = c.ReadU32LE("MonitorLayout.DeviceScaleFactor"); err != nil {
		return m, err
	}
	if err := m.validate(); err != nil {
		return m, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "MonitorLayout", Reason: err.(*pdu.EncodeError).Reason}
	}
	return m, nil
}

// MonitorLayoutPdu is the DISPLAYCONTROL_MONITOR_LAYOUT_PDU (MS-RDPEDISP
// 2.2.2.2), the client's report of its current monitor topology sent on
// connect and after every resize.
type MonitorLayoutPdu struct {
	Monitors []MonitorLayout
}

// Size: 8-byte DISPLAYCONTROL_HEADER + 4-byte MonitorLayoutSize + 4-byte
// NumMonitors + 40 bytes per monitor. A 2-monitor layout is therefore
// exactly 96 bytes end to end.
func (p MonitorLayoutPdu) Size() int { return 8 + 8 + MonitorLayoutSize*len(p.Monitors) }

func (p MonitorLayoutPdu) Encode(c *pdu.Cursor) error {
	if len(p.Monitors) > MaxMonitors {
		return &pdu.EncodeError{Kind: pdu.InvalidFieldEncode, Field: "MonitorLayoutPdu.Monitors", Reason: "more than 16 monitors"}
	}
	writeHeader(c, PduTypeMonitorLayout, 8+MonitorLayoutSize*len(p.Monitors))
	c.WriteU32LE(MonitorLayoutSize)
	c.WriteU32LE(uint32(len(p.Monitors)))
	for _, m := range p.Monitors {
		if err := m.encode(c); err != nil {
			return err
		}
	}
	return nil
}

func DecodeMonitorLayoutPdu(c *pdu.ReadCursor) (MonitorLayoutPdu, error) {
	var p MonitorLayoutPdu
	if _, err := readHeader(c, "MonitorLayoutPdu", PduTypeMonitorLayout); err != nil {
		return p, err
	}
	size, err := c.ReadU32LE("MonitorLayoutPdu.MonitorLayoutSize")
	if err != nil {
		return p, err
	}
	if size != MonitorLayoutSize {
		return p, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "MonitorLayoutPdu.MonitorLayoutSize", Reason: "expected 40"}
	}
	count, err := c.ReadU32LE("MonitorLayoutPdu.NumMonitors")
	if err != nil {
		return p, err
	}
	if count > MaxMonitors {
		return p, &pdu.DecodeError{Kind: pdu.InvalidField, Field: "MonitorLayoutPdu.NumMonitors", Reason: "more than 16 monitors"}
	}
	p.Monitors = make([]MonitorLayout, count)
	for i := range p.Monitors {
		if p.Monitors[i], err = decodeMonitorLayout(c); err != nil {
			return p, err
		}
	}
	return p, nil
}
