package pdu

// DemandActivePDU is TS_DEMAND_ACTIVE_PDU (MS-RDPBCGR 2.2.1.13.1), sent by
// the server to kick off capability negotiation once the channel-join
// phase completes. SourceDescriptor is an ASCII tag (e.g. "MSTSC"); the
// capability sets carry General/Bitmap/Order/etc. as decoded by
// DecodeCapabilitySet.
type DemandActivePDU struct {
	ShareID          uint32
	SourceDescriptor string
	CapabilitySets   []CapabilitySet
	SessionID        uint32
}

func (d DemandActivePDU) capSetsSize() int {
	n := 0
	for _, s := range d.CapabilitySets {
		n += s.Size()
	}
	return n
}

// bodySize is everything after the share-control header: shareID(4) +
// lengthSourceDescriptor(2) + lengthCombinedCapabilities(2) +
// sourceDescriptor + numberCapabilities(2) + pad(2) + capability sets +
// sessionID(4).
func (d DemandActivePDU) bodySize() int {
	return 4 + 2 + 2 + len(d.SourceDescriptor) + 2 + 2 + d.capSetsSize() + 4
}

func (d DemandActivePDU) Size() int { return 6 + d.bodySize() }

func (d DemandActivePDU) Encode(c *Cursor) error {
	ctrl := ShareControlHeader{
		TotalLength: uint16(d.Size()),
		PDUType:     ShareControlTypeDemandActive,
		PDUSource:   0,
	}
	if err := ctrl.Encode(c); err != nil {
		return err
	}
	c.WriteU32LE(d.ShareID)
	c.WriteU16LE(uint16(len(d.SourceDescriptor)))
	c.WriteU16LE(uint16(4 + d.capSetsSize()))
	c.WriteBytes([]byte(d.SourceDescriptor))
	c.WriteU16LE(uint16(len(d.CapabilitySets)))
	c.WriteU16LE(0) // pad2Octets
	for _, s := range d.CapabilitySets {
		if err := s.Encode(c); err != nil {
			return err
		}
	}
	c.WriteU32LE(d.SessionID)
	return nil
}

// DecodeDemandActiveBody decodes the body following an already-consumed
// ShareControlHeader.
func DecodeDemandActiveBody(c *ReadCursor) (DemandActivePDU, error) {
	var d DemandActivePDU
	var err error
	if d.ShareID, err = c.ReadU32LE("DemandActive.ShareID"); err != nil {
		return d, err
	}
	srcLen, err := c.ReadU16LE("DemandActive.LengthSourceDescriptor")
	if err != nil {
		return d, err
	}
	if _, err = c.ReadU16LE("DemandActive.LengthCombinedCapabilities"); err != nil {
		return d, err
	}
	srcBytes, err := c.ReadBytes("DemandActive.SourceDescriptor", int(srcLen))
	if err != nil {
		return d, err
	}
	d.SourceDescriptor = string(srcBytes)
	numCaps, err := c.ReadU16LE("DemandActive.NumberCapabilities")
	if err != nil {
		return d, err
	}
	if _, err = c.ReadU16LE("DemandActive.Pad2Octets"); err != nil {
		return d, err
	}
	d.CapabilitySets = make([]CapabilitySet, 0, numCaps)
	for i := 0; i < int(numCaps); i++ {
		s, err := DecodeCapabilitySet(c)
		if err != nil {
			return d, err
		}
		d.CapabilitySets = append(d.CapabilitySets, s)
	}
	if d.SessionID, err = c.ReadU32LE("DemandActive.SessionID"); err != nil {
		return d, err
	}
	return d, nil
}

// Get looks up the first capability set of the given type, if present.
func (d DemandActivePDU) Get(t CapabilitySetType) (CapabilitySet, bool) {
	for _, s := range d.CapabilitySets {
		if s.CapabilitySetType == t {
			return s, true
		}
	}
	return CapabilitySet{}, false
}

// ConfirmActivePDU is TS_CONFIRM_ACTIVE_PDU (MS-RDPBCGR 2.2.1.13.2), the
// client's reply to DemandActivePDU echoing back the capability sets it
// actually supports.
type ConfirmActivePDU struct {
	ShareID          uint32
	OriginatorID     uint16
	SourceDescriptor string
	CapabilitySets   []CapabilitySet
}

func (d ConfirmActivePDU) capSetsSize() int {
	n := 0
	for _, s := range d.CapabilitySets {
		n += s.Size()
	}
	return n
}

func (d ConfirmActivePDU) bodySize() int {
	return 4 + 2 + 2 + 2 + len(d.SourceDescriptor) + 2 + 2 + d.capSetsSize()
}

func (d ConfirmActivePDU) Size() int { return 6 + d.bodySize() }

func (d ConfirmActivePDU) Encode(c *Cursor) error {
	ctrl := ShareControlHeader{
		TotalLength: uint16(d.Size()),
		PDUType:     ShareControlTypeConfirmActive,
		PDUSource:   d.OriginatorID,
	}
	if err := ctrl.Encode(c); err != nil {
		return err
	}
	c.WriteU32LE(d.ShareID)
	c.WriteU16LE(d.OriginatorID)
	c.WriteU16LE(uint16(len(d.SourceDescriptor)))
	c.WriteU16LE(uint16(4 + d.capSetsSize()))
	c.WriteBytes([]byte(d.SourceDescriptor))
	c.WriteU16LE(uint16(len(d.CapabilitySets)))
	c.WriteU16LE(0) // pad2Octets
	for _, s := range d.CapabilitySets {
		if err := s.Encode(c); err != nil {
			return err
		}
	}
	return nil
}

// DecodeConfirmActiveBody decodes the body following an already-consumed
// ShareControlHeader.
func DecodeConfirmActiveBody(c *ReadCursor) (ConfirmActivePDU, error) {
	var d ConfirmActivePDU
	var err error
	if d.ShareID, err = c.ReadU32LE("ConfirmActive.ShareID"); err != nil {
		return d, err
	}
	if d.OriginatorID, err = c.ReadU16LE("ConfirmActive.OriginatorID"); err != nil {
		return d, err
	}
	srcLen, err := c.ReadU16LE("ConfirmActive.LengthSourceDescriptor")
	if err != nil {
		return d, err
	}
	if _, err = c.ReadU16LE("ConfirmActive.LengthCombinedCapabilities"); err != nil {
		return d, err
	}
	srcBytes, err := c.ReadBytes("ConfirmActive.SourceDescriptor", int(srcLen))
	if err != nil {
		return d, err
	}
	d.SourceDescriptor = string(srcBytes)
	numCaps, err := c.ReadU16LE("ConfirmActive.NumberCapabilities")
	if err != nil {
		return d, err
	}
	if _, err = c.ReadU16LE("ConfirmActive.Pad2Octets"); err != nil {
		return d, err
	}
	d.CapabilitySets = make([]CapabilitySet, 0, numCaps)
	for i := 0; i < int(numCaps); i++ {
		s, err := DecodeCapabilitySet(c)
		if err != nil {
			return d, err
		}
		d.CapabilitySets = append(d.CapabilitySets, s)
	}
	return d, nil
}

func (d ConfirmActivePDU) Get(t CapabilitySetType) (CapabilitySet, bool) {
	for _, s := range d.CapabilitySets {
		if s.CapabilitySetType == t {
			return s, true
		}
	}
	return CapabilitySet{}, false
}
