package auth

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"time"
	"unicode/utf16"

	"golang.org/x/crypto/md4"

	"github.com/kulaginds/rdp-core/pkg/pdu"
)

// NTLM negotiate flags (MS-NLMP 2.2.2.5).
const (
	NTLMSSP_NEGOTIATE_56                       = 0x80000000
	NTLMSSP_NEGOTIATE_KEY_EXCH                 = 0x40000000
	NTLMSSP_NEGOTIATE_128                      = 0x20000000
	NTLMSSP_NEGOTIATE_VERSION                  = 0x02000000
	NTLMSSP_NEGOTIATE_TARGET_INFO              = 0x00800000
	NTLMSSP_REQUEST_NON_NT_SESSION_KEY         = 0x00400000
	NTLMSSP_NEGOTIATE_IDENTIFY                 = 0x00100000
	NTLMSSP_NEGOTIATE_EXTENDED_SESSIONSECURITY = 0x00080000
	NTLMSSP_TARGET_TYPE_SERVER                 = 0x00020000
	NTLMSSP_TARGET_TYPE_DOMAIN                 = 0x00010000
	NTLMSSP_NEGOTIATE_ALWAYS_SIGN              = 0x00008000
	NTLMSSP_NEGOTIATE_OEM_WORKSTATION_SUPPLIED = 0x00002000
	NTLMSSP_NEGOTIATE_OEM_DOMAIN_SUPPLIED      = 0x00001000
	NTLMSSP_NEGOTIATE_NTLM                     = 0x00000200
	NTLMSSP_NEGOTIATE_LM_KEY                   = 0x00000080
	NTLMSSP_NEGOTIATE_DATAGRAM                 = 0x00000040
	NTLMSSP_NEGOTIATE_SEAL                     = 0x00000020
	NTLMSSP_NEGOTIATE_SIGN                     = 0x00000010
	NTLMSSP_REQUEST_TARGET                     = 0x00000004
	NTLM_NEGOTIATE_OEM                         = 0x00000002
	NTLMSSP_NEGOTIATE_UNICODE                  = 0x00000001
)

// AV pair IDs carried in a challenge message's TargetInfo (MS-NLMP 2.2.2.1).
const (
	MsvAvEOL             = 0x0000
	MsvAvNbComputerName  = 0x0001
	MsvAvNbDomainName    = 0x0002
	MsvAvDnsComputerName = 0x0003
	MsvAvDnsDomainName   = 0x0004
	MsvAvDnsTreeName     = 0x0005
	MsvAvFlags           = 0x0006
	MsvAvTimestamp       = 0x0007
)

var ntlmSignature = []byte{'N', 'T', 'L', 'M', 'S', 'S', 'P', 0x00}

// NTLMv2 drives one client-side NTLMv2 handshake: negotiate, then
// authenticate once the server's challenge arrives.
type NTLMv2 struct {
	domain        string
	user          string
	password      string
	respKeyNT     []byte
	respKeyLM     []byte
	enableUnicode bool
	negotiateMsg  []byte
	challengeMsg  *ChallengeMessage
	authMsg       []byte
}

// NewNTLMv2 creates a new NTLMv2 authentication context for the given
// identity, pre-deriving the NTOWFv2/LMOWFv2 response keys from the
// password since both are needed regardless of how the challenge arrives.
func NewNTLMv2(domain, user, password string) *NTLMv2 {
	n := &NTLMv2{
		domain:   domain,
		user:     user,
		password: password,
	}
	n.respKeyNT = ntowfv2(password, user, domain)
	n.respKeyLM = lmowfv2(password, user, domain)
	return n
}

// GetNegotiateMessage returns the NTLM Type 1 (Negotiate) message.
func (n *NTLMv2) GetNegotiateMessage() []byte {
	flags := uint32(
		NTLMSSP_NEGOTIATE_KEY_EXCH |
			NTLMSSP_NEGOTIATE_128 |
			NTLMSSP_NEGOTIATE_EXTENDED_SESSIONSECURITY |
			NTLMSSP_NEGOTIATE_ALWAYS_SIGN |
			NTLMSSP_NEGOTIATE_NTLM |
			NTLMSSP_NEGOTIATE_SEAL |
			NTLMSSP_NEGOTIATE_SIGN |
			NTLMSSP_REQUEST_TARGET |
			NTLMSSP_NEGOTIATE_UNICODE |
			NTLMSSP_NEGOTIATE_VERSION)

	c := pdu.NewCursor(make([]byte, 0, 32))
	c.WriteBytes(ntlmSignature)
	c.WriteU32LE(1) // MessageType
	c.WriteU32LE(flags)
	c.WriteU16LE(0) // DomainNameLen
	c.WriteU16LE(0) // DomainNameMaxLen
	c.WriteU32LE(0) // DomainNameBufferOffset
	c.WriteU16LE(0) // WorkstationLen
	c.WriteU16LE(0) // WorkstationMaxLen
	c.WriteU32LE(0) // WorkstationBufferOffset
	c.WriteBytes([]byte{0x06, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0F}) // Version: 6.1 (Windows 7), NTLMSSP_REVISION_W2K3

	n.negotiateMsg = c.Bytes()
	return n.negotiateMsg
}

// ChallengeMessage is the decoded form of an NTLM Type 2 message.
type ChallengeMessage struct {
	NegotiateFlags  uint32
	ServerChallenge [8]byte
	TargetInfo      []byte
	Timestamp       []byte
	RawData         []byte // original bytes, needed later to compute the MIC
}

// ParseChallengeMessage parses an NTLM Type 2 (Challenge) message.
func ParseChallengeMessage(data []byte) (*ChallengeMessage, error) {
	c := pdu.NewReadCursor(data)

	if _, err := c.ReadBytes("ntlm.challenge.signature", 12); err != nil { // signature(8) + messageType(4)
		return nil, err
	}
	if _, err := c.ReadBytes("ntlm.challenge.targetNameFields", 8); err != nil {
		return nil, err
	}
	flags, err := c.ReadU32LE("ntlm.challenge.negotiateFlags")
	if err != nil {
		return nil, err
	}
	serverChallenge, err := c.ReadBytes("ntlm.challenge.serverChallenge", 8)
	if err != nil {
		return nil, err
	}
	if _, err := c.ReadBytes("ntlm.challenge.reserved", 8); err != nil {
		return nil, err
	}
	targetInfoLen, err := c.ReadU16LE("ntlm.challenge.targetInfoLen")
	if err != nil {
		return nil, err
	}
	if _, err := c.ReadU16LE("ntlm.challenge.targetInfoMaxLen"); err != nil {
		return nil, err
	}
	targetInfoOffset, err := c.ReadU32LE("ntlm.challenge.targetInfoOffset")
	if err != nil {
		return nil, err
	}

	msg := &ChallengeMessage{
		NegotiateFlags: flags,
		RawData:        append([]byte(nil), data...),
	}
	copy(msg.ServerChallenge[:], serverChallenge)

	if targetInfoLen > 0 && int(targetInfoOffset)+int(targetInfoLen) <= len(data) {
		msg.TargetInfo = data[targetInfoOffset : targetInfoOffset+uint32(targetInfoLen)]
		msg.Timestamp = extractTimestamp(msg.TargetInfo)
	}

	return msg, nil
}

// extractTimestamp walks a TargetInfo AV-pair list looking for MsvAvTimestamp.
func extractTimestamp(targetInfo []byte) []byte {
	c := pdu.NewReadCursor(targetInfo)
	for c.Remaining() >= 4 {
		avID, err := c.ReadU16LE("ntlm.avPair.id")
		if err != nil {
			return nil
		}
		avLen, err := c.ReadU16LE("ntlm.avPair.len")
		if err != nil {
			return nil
		}
		if avID == MsvAvEOL {
			return nil
		}
		value, err := c.ReadBytes("ntlm.avPair.value", int(avLen))
		if err != nil {
			return nil
		}
		if avID == MsvAvTimestamp && avLen == 8 {
			return value
		}
	}
	return nil
}

// modifyTargetInfoForMIC adds MsvAvFlags with MIC_PROVIDED (0x02) to a
// TargetInfo AV-pair list, inserting it before the terminating MsvAvEOL
// when absent, per MS-NLMP 3.1.5.1.2.
func modifyTargetInfoForMIC(targetInfo []byte) []byte {
	if len(targetInfo) == 0 {
		return targetInfo
	}

	flagsOffset := -1
	eolOffset := -1
	offset := 0
	for offset+4 <= len(targetInfo) {
		rc := pdu.NewReadCursor(targetInfo[offset:])
		avID, err := rc.ReadU16LE("ntlm.avPair.id")
		if err != nil {
			break
		}
		avLen, err := rc.ReadU16LE("ntlm.avPair.len")
		if err != nil {
			break
		}
		if avID == MsvAvFlags {
			flagsOffset = offset
		}
		if avID == MsvAvEOL {
			eolOffset = offset
			break
		}
		offset += 4 + int(avLen)
	}

	result := append([]byte(nil), targetInfo...)

	switch {
	case flagsOffset >= 0:
		rc := pdu.NewReadCursor(result[flagsOffset+4:])
		existing, _ := rc.ReadU32LE("ntlm.avFlags")
		w := pdu.NewCursor(make([]byte, 0, 4))
		w.WriteU32LE(existing | 0x02)
		copy(result[flagsOffset+4:flagsOffset+8], w.Bytes())
	case eolOffset >= 0:
		pair := pdu.NewCursor(make([]byte, 0, 8))
		pair.WriteU16LE(MsvAvFlags)
		pair.WriteU16LE(4)
		pair.WriteU32LE(0x02) // MIC_PROVIDED
		result = append(result[:eolOffset], append(pair.Bytes(), result[eolOffset:]...)...)
	}

	return result
}

// Security holds the per-session RC4 keys derived from an NTLMv2 handshake
// and implements NTLM's sign/seal message protection (MS-NLMP 3.4.3).
type Security struct {
	encryptRC4 *rc4.Cipher
	decryptRC4 *rc4.Cipher
	signingKey []byte
	verifyKey  []byte
	seqNum     uint32
}

// GetAuthenticateMessage processes the server's challenge and returns the
// Type 3 message plus a Security context for subsequent channel protection.
func (n *NTLMv2) GetAuthenticateMessage(challengeData []byte) ([]byte, *Security) {
	challenge, err := ParseChallengeMessage(challengeData)
	if err != nil {
		return nil, nil
	}
	n.challengeMsg = challenge

	if challenge.NegotiateFlags&NTLMSSP_NEGOTIATE_UNICODE != 0 {
		n.enableUnicode = true
	}

	var timestamp []byte
	computeMIC := false
	if challenge.Timestamp != nil {
		timestamp = challenge.Timestamp
		computeMIC = true
	} else {
		timestamp = makeTimestamp()
	}

	clientChallenge := make([]byte, 8)
	if _, err := rand.Read(clientChallenge); err != nil {
		return nil, nil
	}

	targetInfo := challenge.TargetInfo
	if computeMIC {
		targetInfo = modifyTargetInfoForMIC(challenge.TargetInfo)
	}

	ntChallengeResponse, lmChallengeResponse, sessionBaseKey := n.computeResponseV2(
		challenge.ServerChallenge[:], clientChallenge, timestamp, targetInfo)

	exportedSessionKey := make([]byte, 16)
	if _, err := rand.Read(exportedSessionKey); err != nil {
		return nil, nil
	}

	encryptedRandomSessionKey := make([]byte, 16)
	rc, _ := rc4.NewCipher(sessionBaseKey)
	rc.XORKeyStream(encryptedRandomSessionKey, exportedSessionKey)

	domain, user, _ := n.GetEncodedCredentials()

	authMsg := n.buildAuthenticateMessage(
		challenge.NegotiateFlags,
		domain, user, nil,
		lmChallengeResponse, ntChallengeResponse,
		encryptedRandomSessionKey)

	if computeMIC {
		mic := n.computeMIC(exportedSessionKey, authMsg)
		copy(authMsg[72:88], mic) // MIC occupies bytes 72..88 of the fixed header
	}

	n.authMsg = authMsg

	// Per MS-NLMP, with Extended Session Security, sign/seal keys are each
	// MD5(ExportedSessionKey || direction-specific magic constant).
	clientSigningKey := md5Hash(append(exportedSessionKey, append([]byte("session key to client-to-server signing key magic constant"), 0x00)...))
	serverSigningKey := md5Hash(append(exportedSessionKey, append([]byte("session key to server-to-client signing key magic constant"), 0x00)...))
	clientSealingKey := md5Hash(append(exportedSessionKey, append([]byte("session key to client-to-server sealing key magic constant"), 0x00)...))
	serverSealingKey := md5Hash(append(exportedSessionKey, append([]byte("session key to server-to-client sealing key magic constant"), 0x00)...))

	encryptRC4, _ := rc4.NewCipher(clientSealingKey)
	decryptRC4, _ := rc4.NewCipher(serverSealingKey)

	return authMsg, &Security{
		encryptRC4: encryptRC4,
		decryptRC4: decryptRC4,
		signingKey: clientSigningKey,
		verifyKey:  serverSigningKey,
	}
}

func (n *NTLMv2) computeResponseV2(serverChallenge, clientChallenge, timestamp, targetInfo []byte) ([]byte, []byte, []byte) {
	temp := pdu.NewCursor(make([]byte, 0, 28+len(targetInfo)))
	temp.WriteU8(0x01) // RespType
	temp.WriteU8(0x01) // HiRespType
	temp.WriteBytes(make([]byte, 6)) // Reserved
	temp.WriteBytes(timestamp)
	temp.WriteBytes(clientChallenge)
	temp.WriteU32LE(0) // Reserved
	temp.WriteBytes(targetInfo)
	temp.WriteU32LE(0) // Reserved

	// NTProofStr = HMAC_MD5(ResponseKeyNT, ServerChallenge || temp)
	ntProofStr := hmacMD5(n.respKeyNT, append(append([]byte(nil), serverChallenge...), temp.Bytes()...))
	ntChallengeResponse := append(append([]byte(nil), ntProofStr...), temp.Bytes()...)

	// LmChallengeResponse = HMAC_MD5(ResponseKeyLM, ServerChallenge || ClientChallenge) || ClientChallenge
	lmMAC := hmacMD5(n.respKeyLM, append(append([]byte(nil), serverChallenge...), clientChallenge...))
	lmChallengeResponse := append(lmMAC, clientChallenge...)

	// SessionBaseKey = HMAC_MD5(ResponseKeyNT, NTProofStr)
	sessionBaseKey := hmacMD5(n.respKeyNT, ntProofStr)

	return ntChallengeResponse, lmChallengeResponse, sessionBaseKey
}

func (n *NTLMv2) buildAuthenticateMessage(flags uint32, domain, user, workstation, lmResponse, ntResponse, encryptedKey []byte) []byte {
	const fixedHeaderSize = 88 // includes the 16-byte MIC field

	c := pdu.NewCursor(make([]byte, 0, fixedHeaderSize+len(lmResponse)+len(ntResponse)+len(domain)+len(user)+len(workstation)+len(encryptedKey)))
	c.WriteBytes(ntlmSignature)
	c.WriteU32LE(3) // MessageType

	offset := uint32(fixedHeaderSize)
	writeField := func(data []byte) {
		c.WriteU16LE(uint16(len(data)))
		c.WriteU16LE(uint16(len(data)))
		c.WriteU32LE(offset)
		offset += uint32(len(data))
	}
	writeField(lmResponse)
	writeField(ntResponse)
	writeField(domain)
	writeField(user)
	writeField(workstation)
	writeField(encryptedKey)

	c.WriteU32LE(flags)
	c.WriteBytes([]byte{0x06, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0F}) // Version
	c.WriteBytes(make([]byte, 16))                                      // MIC, filled in later if needed

	c.WriteBytes(lmResponse)
	c.WriteBytes(ntResponse)
	c.WriteBytes(domain)
	c.WriteBytes(user)
	c.WriteBytes(workstation)
	c.WriteBytes(encryptedKey)

	return c.Bytes()
}

func (n *NTLMv2) computeMIC(exportedSessionKey, authMsg []byte) []byte {
	micZeroed := append([]byte(nil), authMsg...)
	for i := 72; i < 88 && i < len(micZeroed); i++ {
		micZeroed[i] = 0
	}
	c := pdu.NewCursor(make([]byte, 0, len(n.negotiateMsg)+len(n.challengeMsg.RawData)+len(micZeroed)))
	c.WriteBytes(n.negotiateMsg)
	c.WriteBytes(n.challengeMsg.RawData)
	c.WriteBytes(micZeroed)
	return hmacMD5(exportedSessionKey, c.Bytes())[:16]
}

// GetEncodedCredentials returns domain, user, password encoded the way the
// negotiated flags require: UTF-16LE once Unicode is in effect, OEM bytes
// otherwise.
func (n *NTLMv2) GetEncodedCredentials() ([]byte, []byte, []byte) {
	if n.enableUnicode {
		return unicodeEncode(n.domain), unicodeEncode(n.user), unicodeEncode(n.password)
	}
	return []byte(n.domain), []byte(n.user), []byte(n.password)
}

// GetCredSSPCredentials returns domain, user, password as UTF-16LE, the
// encoding MS-CSSP's TSPasswordCreds always requires regardless of the
// NTLM negotiation's own Unicode flag.
func (n *NTLMv2) GetCredSSPCredentials() ([]byte, []byte, []byte) {
	return unicodeEncode(n.domain), unicodeEncode(n.user), unicodeEncode(n.password)
}

// GssEncrypt encrypts data using NTLM seal: encrypt first, then sign the
// plaintext and encrypt that signature with the same keystream (MS-NLMP
// 3.4.3).
func (s *Security) GssEncrypt(data []byte) []byte {
	encrypted := make([]byte, len(data))
	s.encryptRC4.XORKeyStream(encrypted, data)

	seq := pdu.NewCursor(make([]byte, 0, 4))
	seq.WriteU32LE(s.seqNum)
	sig := hmacMD5(s.signingKey, append(seq.Bytes(), data...))[:8]

	checksum := make([]byte, 8)
	s.encryptRC4.XORKeyStream(checksum, sig)

	out := pdu.NewCursor(make([]byte, 0, 16+len(encrypted)))
	out.WriteU32LE(0x00000001) // Version
	out.WriteBytes(checksum)
	out.WriteU32LE(s.seqNum)
	out.WriteBytes(encrypted)

	s.seqNum++
	return out.Bytes()
}

// GssDecrypt decrypts an NTLM-sealed message: Version(4) + Checksum(8) +
// SeqNum(4) + EncryptedData, verifying the checksum in constant time.
func (s *Security) GssDecrypt(data []byte) []byte {
	c := pdu.NewReadCursor(data)
	version, err := c.ReadU32LE("ntlm.gss.version")
	if err != nil || version != 1 {
		return nil
	}
	receivedChecksum, err := c.ReadBytes("ntlm.gss.checksum", 8)
	if err != nil {
		return nil
	}
	receivedSeqNum, err := c.ReadU32LE("ntlm.gss.seqNum")
	if err != nil {
		return nil
	}
	encrypted, err := c.ReadBytes("ntlm.gss.data", c.Remaining())
	if err != nil {
		return nil
	}

	decrypted := make([]byte, len(encrypted))
	s.decryptRC4.XORKeyStream(decrypted, encrypted)

	seq := pdu.NewCursor(make([]byte, 0, 4))
	seq.WriteU32LE(receivedSeqNum)
	expectedSig := hmacMD5(s.verifyKey, append(seq.Bytes(), decrypted...))[:8]

	expectedChecksum := make([]byte, 8)
	s.decryptRC4.XORKeyStream(expectedChecksum, expectedSig)

	if !hmac.Equal(receivedChecksum, expectedChecksum) {
		return nil
	}
	return decrypted
}

// Helper functions

func unicodeEncode(s string) []byte {
	runes := utf16.Encode([]rune(s))
	c := pdu.NewCursor(make([]byte, 0, len(runes)*2))
	for _, r := range runes {
		c.WriteU16LE(r)
	}
	return c.Bytes()
}

func ntowfv2(password, user, domain string) []byte {
	// NTOWFv2 = HMAC_MD5(MD4(UNICODE(Password)), UNICODE(Uppercase(User) || Domain))
	passHash := md4Sum(unicodeEncode(password))
	concat := unicodeEncode(toUpper(user) + domain)
	return hmacMD5(passHash, concat)
}

func lmowfv2(password, user, domain string) []byte {
	// LMOWFv2 = NTOWFv2 (same computation)
	return ntowfv2(password, user, domain)
}

func md4Sum(data []byte) []byte {
	h := md4.New()
	h.Write(data)
	return h.Sum(nil)
}

func hmacMD5(key, data []byte) []byte {
	h := hmac.New(md5.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func md5Hash(data []byte) []byte {
	h := md5.Sum(data)
	return h[:]
}

func makeTimestamp() []byte {
	// Windows FILETIME: 100-nanosecond intervals since January 1, 1601
	ft := uint64(time.Now().UnixNano())/100 + 116444736000000000
	c := pdu.NewCursor(make([]byte, 0, 8))
	c.WriteU32LE(uint32(ft))
	c.WriteU32LE(uint32(ft >> 32))
	return c.Bytes()
}

func toUpper(s string) string {
	result := make([]rune, len(s))
	for i, r := range s {
		if r >= 'a' && r <= 'z' {
			result[i] = r - 32
		} else {
			result[i] = r
		}
	}
	return string(result)
}
