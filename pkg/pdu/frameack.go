package pdu

// FrameAcknowledge is TS_FRAME_ACKNOWLEDGE_PDU (MS-RDPBCGR 2.2.14.2), sent
// client-to-server to acknowledge a completed frame and let the server
// throttle output to the client's processing rate. FrameID of zero means
// frame markers are not in use. The active-stage loop does not send this
// PDU.
type FrameAcknowledge struct {
	ShareID uint32
	UserID  uint16
	FrameID uint32
}

func (d FrameAcknowledge) Size() int { return 6 + shareDataHeaderBodySize + 4 }

func (d FrameAcknowledge) Encode(c *Cursor) error {
	ctrl, data := wrapShareData(d.ShareID, d.UserID, ShareDataTypeFrameAcknowledge, 4)
	if err := ctrl.Encode(c); err != nil {
		return err
	}
	if err := data.Encode(c); err != nil {
		return err
	}
	c.WriteU32LE(d.FrameID)
	return nil
}

func DecodeFrameAcknowledgeBody(c *ReadCursor) (FrameAcknowledge, error) {
	var d FrameAcknowledge
	v, err := c.ReadU32LE("FrameAcknowledge.FrameID")
	if err != nil {
		return d, err
	}
	d.FrameID = v
	return d, nil
}
