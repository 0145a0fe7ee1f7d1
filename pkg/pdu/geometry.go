package pdu

// InclusiveRectangle is a wire rectangle whose right/bottom edges are
// included in the area (width = right - left + 1), used by slow-path
// update PDUs (MS-RDPBCGR 2.2.9.1.1.4.1).
type InclusiveRectangle struct {
	Left, Top, Right, Bottom uint16
}

// ExclusiveRectangle is a wire rectangle whose right/bottom edges are
// excluded from the area (width = right - left), used by surface command
// PDUs (MS-RDPEGFX 2.2.1).
type ExclusiveRectangle struct {
	Left, Top, Right, Bottom uint16
}

// ToExclusive converts an inclusive rectangle to its exclusive form.
// Rejects a zero Right or Bottom: a zero edge cannot represent a valid
// inclusive rectangle of width/height >= 1 once converted.
func (r InclusiveRectangle) ToExclusive() (ExclusiveRectangle, error) {
	if r.Right == 0 || r.Bottom == 0 {
		return ExclusiveRectangle{}, &DecodeError{Kind: InvalidField, Field: "InclusiveRectangle", Reason: "right/bottom must be nonzero to convert to exclusive"}
	}
	return ExclusiveRectangle{Left: r.Left, Top: r.Top, Right: r.Right + 1, Bottom: r.Bottom + 1}, nil
}

// ToInclusive converts an exclusive rectangle to its inclusive form.
func (r ExclusiveRectangle) ToInclusive() (InclusiveRectangle, error) {
	if r.Right == 0 || r.Bottom == 0 {
		return InclusiveRectangle{}, &DecodeError{Kind: InvalidField, Field: "ExclusiveRectangle", Reason: "right/bottom must be nonzero to convert to inclusive"}
	}
	return InclusiveRectangle{Left: r.Left, Top: r.Top, Right: r.Right - 1, Bottom: r.Bottom - 1}, nil
}

// Width/Height for each representation, per numeric semantics.
func (r InclusiveRectangle) Width() int  { return int(r.Right) - int(r.Left) + 1 }
func (r InclusiveRectangle) Height() int { return int(r.Bottom) - int(r.Top) + 1 }
func (r ExclusiveRectangle) Width() int  { return int(r.Right) - int(r.Left) }
func (r ExclusiveRectangle) Height() int { return int(r.Bottom) - int(r.Top) }

func (r InclusiveRectangle) Size() int { return 8 }

func (r InclusiveRectangle) Encode(c *Cursor) error {
	c.WriteU16LE(r.Left)
	c.WriteU16LE(r.Top)
	c.WriteU16LE(r.Right)
	c.WriteU16LE(r.Bottom)
	return nil
}

func DecodeInclusiveRectangle(c *ReadCursor) (InclusiveRectangle, error) {
	var r InclusiveRectangle
	var err error
	if r.Left, err = c.ReadU16LE("InclusiveRectangle.Left"); err != nil {
		return r, err
	}
	if r.Top, err = c.ReadU16LE("InclusiveRectangle.Top"); err != nil {
		return r, err
	}
	if r.Right, err = c.ReadU16LE("InclusiveRectangle.Right"); err != nil {
		return r, err
	}
	if r.Bottom, err = c.ReadU16LE("InclusiveRectangle.Bottom"); err != nil {
		return r, err
	}
	return r, nil
}

func (r ExclusiveRectangle) Size() int { return 8 }

func (r ExclusiveRectangle) Encode(c *Cursor) error {
	c.WriteU16LE(r.Left)
	c.WriteU16LE(r.Top)
	c.WriteU16LE(r.Right)
	c.WriteU16LE(r.Bottom)
	return nil
}

func DecodeExclusiveRectangle(c *ReadCursor) (ExclusiveRectangle, error) {
	var r ExclusiveRectangle
	var err error
	if r.Left, err = c.ReadU16LE("ExclusiveRectangle.Left"); err != nil {
		return r, err
	}
	if r.Top, err = c.ReadU16LE("ExclusiveRectangle.Top"); err != nil {
		return r, err
	}
	if r.Right, err = c.ReadU16LE("ExclusiveRectangle.Right"); err != nil {
		return r, err
	}
	if r.Bottom, err = c.ReadU16LE("ExclusiveRectangle.Bottom"); err != nil {
		return r, err
	}
	return r, nil
}
