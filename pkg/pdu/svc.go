package pdu

// ChannelFlag is the flags field of CHANNEL_PDU_HEADER (MS-RDPBCGR 2.2.6.1),
// prefixing every chunk of static virtual channel data.
type ChannelFlag uint32

const (
	ChannelFlagFirst        ChannelFlag = 0x00000001
	ChannelFlagLast         ChannelFlag = 0x00000002
	ChannelFlagShowProtocol ChannelFlag = 0x00000010
	ChannelFlagSuspend      ChannelFlag = 0x00000020
	ChannelFlagResume       ChannelFlag = 0x00000040
	ChannelFlagShadowPersistent ChannelFlag = 0x00000080
	ChannelFlagPacketCompressed ChannelFlag = 0x00200000
)

// ChannelPDUHeader is CHANNEL_PDU_HEADER: an 8-byte prefix on every chunk a
// static virtual channel exchanges, carrying the total uncompressed length
// of the message the chunk belongs to and FIRST/LAST fragmentation flags.
type ChannelPDUHeader struct {
	Length uint32
	Flags  ChannelFlag
}

func (h ChannelPDUHeader) Size() int { return 8 }

func (h ChannelPDUHeader) Encode(c *Cursor) error {
	c.WriteU32LE(h.Length)
	c.WriteU32LE(uint32(h.Flags))
	return nil
}

func DecodeChannelPDUHeader(c *ReadCursor) (ChannelPDUHeader, error) {
	var h ChannelPDUHeader
	length, err := c.ReadU32LE("ChannelPDUHeader.Length")
	if err != nil {
		return h, err
	}
	h.Length = length
	flags, err := c.ReadU32LE("ChannelPDUHeader.Flags")
	if err != nil {
		return h, err
	}
	h.Flags = ChannelFlag(flags)
	return h, nil
}

func (h ChannelPDUHeader) IsFirst() bool { return h.Flags&ChannelFlagFirst != 0 }
func (h ChannelPDUHeader) IsLast() bool  { return h.Flags&ChannelFlagLast != 0 }
