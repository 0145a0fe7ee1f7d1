package pdu

// InfoFlag is the TS_INFO_PACKET flags field (MS-RDPBCGR 2.2.1.11.1.1).
type InfoFlag uint32

const (
	InfoFlagMouse                 InfoFlag = 0x00000001
	InfoFlagDisableCtrlAltDel     InfoFlag = 0x00000002
	InfoFlagUnicode               InfoFlag = 0x00000010
	InfoFlagMaximizeShell         InfoFlag = 0x00000020
	InfoFlagLogonNotify           InfoFlag = 0x00000040
	InfoFlagCompression           InfoFlag = 0x00000080
	InfoFlagEnableWindowsKey      InfoFlag = 0x00000100
	InfoFlagLogonErrors           InfoFlag = 0x00000400
	InfoFlagMouseHasWheel         InfoFlag = 0x00020000
	InfoFlagPasswordIsScPin       InfoFlag = 0x00040000
	InfoFlagNoAudioPlayback       InfoFlag = 0x00080000
	InfoFlagUsingSavedCreds       InfoFlag = 0x00200000
	InfoFlagAudioCapture          InfoFlag = 0x00400000
	InfoFlagVideoDisable          InfoFlag = 0x00800000
)

// ClientInfoPDU is the TS_INFO_PACKET the client sends during
// secureSettingsExchange (MS-RDPBCGR 2.2.1.11), carrying the logon
// identity and a simplified TS_EXTENDED_INFO_PACKET tail. Sent as the
// whole payload of an MCS SendDataRequest under external (TLS/CredSSP)
// security, with no RDP security header.
type ClientInfoPDU struct {
	CodePage        uint32
	Flags           InfoFlag
	Domain          string
	UserName        string
	Password        string
	AlternateShell  string
	WorkingDir      string

	ClientAddress   string
	ClientDir       string
	PerformanceFlags uint32
}

func utf16StrLen(s string) int { return len([]rune(s)) * 2 }

func (p ClientInfoPDU) Size() int {
	n := 4 + 4 + 2 + 2 + 2 + 2 + 2
	n += utf16StrLen(p.Domain) + 2
	n += utf16StrLen(p.UserName) + 2
	n += utf16StrLen(p.Password) + 2
	n += utf16StrLen(p.AlternateShell) + 2
	n += utf16StrLen(p.WorkingDir) + 2
	// TS_EXTENDED_INFO_PACKET: clientAddressFamily(2) + cbClientAddress(2) +
	// clientAddress + cbClientDir(2) + clientDir + TS_TIME_ZONE_INFORMATION
	// (172, zeroed: this implementation doesn't model DST rules) +
	// clientSessionId(4) + performanceFlags(4) + cbAutoReconnectCookie(2).
	n += 2 + 2 + utf16StrLen(p.ClientAddress) + 2
	n += 2 + utf16StrLen(p.ClientDir) + 2
	n += 172 + 4 + 4 + 2
	return n
}

func writeInfoString(c *Cursor, s string) {
	c.WriteU16LE(uint16(utf16StrLen(s)))
}

func (p ClientInfoPDU) Encode(c *Cursor) error {
	c.WriteU32LE(p.CodePage)
	c.WriteU32LE(uint32(p.Flags))
	writeInfoString(c, p.Domain)
	writeInfoString(c, p.UserName)
	writeInfoString(c, p.Password)
	writeInfoString(c, p.AlternateShell)
	writeInfoString(c, p.WorkingDir)
	c.WriteUTF16LE(p.Domain)
	c.WriteU16LE(0)
	c.WriteUTF16LE(p.UserName)
	c.WriteU16LE(0)
	c.WriteUTF16LE(p.Password)
	c.WriteU16LE(0)
	c.WriteUTF16LE(p.AlternateShell)
	c.WriteU16LE(0)
	c.WriteUTF16LE(p.WorkingDir)
	c.WriteU16LE(0)

	c.WriteU16LE(2) // clientAddressFamily: AF_INET
	c.WriteU16LE(uint16(utf16StrLen(p.ClientAddress) + 2))
	c.WriteUTF16LE(p.ClientAddress)
	c.WriteU16LE(0)
	c.WriteU16LE(uint16(utf16StrLen(p.ClientDir) + 2))
	c.WriteUTF16LE(p.ClientDir)
	c.WriteU16LE(0)
	c.WriteBytes(make([]byte, 172)) // TS_TIME_ZONE_INFORMATION, UTC
	c.WriteU32LE(0)                 // clientSessionId, reserved
	c.WriteU32LE(p.PerformanceFlags)
	c.WriteU16LE(0) // cbAutoReconnectCookie: none offered
	return nil
}

// DecodeClientInfoPDU decodes the base INFO_PACKET and, when present, the
// address/dir fields of the extended info tail; the time zone block and
// trailing reserved fields are consumed but not interpreted.
func DecodeClientInfoPDU(c *ReadCursor) (ClientInfoPDU, error) {
	var p ClientInfoPDU
	var err error
	if p.CodePage, err = c.ReadU32LE("ClientInfoPDU.CodePage"); err != nil {
		return p, err
	}
	flags, err := c.ReadU32LE("ClientInfoPDU.Flags")
	if err != nil {
		return p, err
	}
	p.Flags = InfoFlag(flags)

	cbDomain, err := c.ReadU16LE("ClientInfoPDU.cbDomain")
	if err != nil {
		return p, err
	}
	cbUserName, err := c.ReadU16LE("ClientInfoPDU.cbUserName")
	if err != nil {
		return p, err
	}
	cbPassword, err := c.ReadU16LE("ClientInfoPDU.cbPassword")
	if err != nil {
		return p, err
	}
	cbAlternateShell, err := c.ReadU16LE("ClientInfoPDU.cbAlternateShell")
	if err != nil {
		return p, err
	}
	cbWorkingDir, err := c.ReadU16LE("ClientInfoPDU.cbWorkingDir")
	if err != nil {
		return p, err
	}
	if p.Domain, err = c.ReadUTF16LE("ClientInfoPDU.Domain", int(cbDomain)/2+1, true); err != nil {
		return p, err
	}
	if p.UserName, err = c.ReadUTF16LE("ClientInfoPDU.UserName", int(cbUserName)/2+1, true); err != nil {
		return p, err
	}
	if p.Password, err = c.ReadUTF16LE("ClientInfoPDU.Password", int(cbPassword)/2+1, true); err != nil {
		return p, err
	}
	if p.AlternateShell, err = c.ReadUTF16LE("ClientInfoPDU.AlternateShell", int(cbAlternateShell)/2+1, true); err != nil {
		return p, err
	}
	if p.WorkingDir, err = c.ReadUTF16LE("ClientInfoPDU.WorkingDir", int(cbWorkingDir)/2+1, true); err != nil {
		return p, err
	}
	if c.Remaining() == 0 {
		return p, nil
	}
	if _, err := c.ReadU16LE("ClientInfoPDU.ClientAddressFamily"); err != nil {
		return p, err
	}
	cbAddr, err := c.ReadU16LE("ClientInfoPDU.cbClientAddress")
	if err != nil {
		return p, err
	}
	if p.ClientAddress, err = c.ReadUTF16LE("ClientInfoPDU.ClientAddress", int(cbAddr)/2, true); err != nil {
		return p, err
	}
	cbDir, err := c.ReadU16LE("ClientInfoPDU.cbClientDir")
	if err != nil {
		return p, err
	}
	if p.ClientDir, err = c.ReadUTF16LE("ClientInfoPDU.ClientDir", int(cbDir)/2, true); err != nil {
		return p, err
	}
	if c.Remaining() >= 172 {
		if _, err := c.ReadBytes("ClientInfoPDU.TimeZone", 172); err != nil {
			return p, err
		}
	}
	if c.Remaining() >= 4 {
		if _, err := c.ReadU32LE("ClientInfoPDU.SessionID"); err != nil {
			return p, err
		}
	}
	if c.Remaining() >= 4 {
		if p.PerformanceFlags, err = c.ReadU32LE("ClientInfoPDU.PerformanceFlags"); err != nil {
			return p, err
		}
	}
	return p, nil
}
