package auth

import (
	"crypto/rc4"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNTLMv2DerivesResponseKeys(t *testing.T) {
	n := NewNTLMv2("CORP", "alice", "s3cret")
	require.Len(t, n.respKeyNT, 16)
	require.Equal(t, n.respKeyNT, n.respKeyLM) // LMOWFv2 is defined as NTOWFv2
}

func TestGetNegotiateMessageShape(t *testing.T) {
	n := NewNTLMv2("CORP", "alice", "s3cret")
	msg := n.GetNegotiateMessage()

	require.Equal(t, ntlmSignature, msg[:8])
	require.Equal(t, uint32(1), leU32(msg[8:12]))
	flags := leU32(msg[12:16])
	require.NotZero(t, flags&NTLMSSP_NEGOTIATE_UNICODE)
	require.NotZero(t, flags&NTLMSSP_NEGOTIATE_VERSION)
	require.Equal(t, msg, n.negotiateMsg)
}

// buildChallenge assembles a minimal, well-formed NTLM Type 2 message with
// a TargetInfo AV-pair list, the shape nextAuthToken's caller hands to
// GetAuthenticateMessage.
func buildChallenge(t *testing.T, withTimestamp bool) []byte {
	t.Helper()

	var targetInfo []byte
	if withTimestamp {
		targetInfo = append(targetInfo, leU16Bytes(MsvAvTimestamp)...)
		targetInfo = append(targetInfo, leU16Bytes(8)...)
		targetInfo = append(targetInfo, make([]byte, 8)...)
	}
	targetInfo = append(targetInfo, leU16Bytes(MsvAvEOL)...)
	targetInfo = append(targetInfo, leU16Bytes(0)...)

	header := make([]byte, 0, 48)
	header = append(header, ntlmSignature...)
	header = append(header, leU32Bytes(2)...) // MessageType
	header = append(header, leU16Bytes(0)...) // TargetNameLen
	header = append(header, leU16Bytes(0)...) // TargetNameMaxLen
	header = append(header, leU32Bytes(0)...) // TargetNameOffset
	header = append(header, leU32Bytes(NTLMSSP_NEGOTIATE_UNICODE|NTLMSSP_NEGOTIATE_TARGET_INFO)...)
	header = append(header, make([]byte, 8)...) // ServerChallenge
	header = append(header, make([]byte, 8)...) // Reserved
	header = append(header, leU16Bytes(uint16(len(targetInfo)))...) // TargetInfoLen
	header = append(header, leU16Bytes(uint16(len(targetInfo)))...) // TargetInfoMaxLen
	header = append(header, leU32Bytes(uint32(len(header)+4))...)   // TargetInfoOffset

	msg := append(header, targetInfo...)
	require.Greater(t, len(msg), 56)
	return msg
}

func TestParseChallengeMessageExtractsTargetInfo(t *testing.T) {
	challenge := buildChallenge(t, true)

	got, err := ParseChallengeMessage(challenge)
	require.NoError(t, err)
	require.Equal(t, uint32(NTLMSSP_NEGOTIATE_UNICODE|NTLMSSP_NEGOTIATE_TARGET_INFO), got.NegotiateFlags)
	require.NotEmpty(t, got.TargetInfo)
	require.Len(t, got.Timestamp, 8)
}

func TestParseChallengeMessageRejectsTruncatedInput(t *testing.T) {
	_, err := ParseChallengeMessage(make([]byte, 10))
	require.Error(t, err)
}

func TestGetAuthenticateMessageProducesTokenAndSecurity(t *testing.T) {
	n := NewNTLMv2("CORP", "alice", "s3cret")
	n.GetNegotiateMessage()
	challenge := buildChallenge(t, true)

	authMsg, sec := n.GetAuthenticateMessage(challenge)
	require.NotNil(t, authMsg)
	require.NotNil(t, sec)
	require.Equal(t, ntlmSignature, authMsg[:8])
	require.Equal(t, uint32(3), leU32(authMsg[8:12]))
}

func TestGetAuthenticateMessageFailsOnMalformedChallenge(t *testing.T) {
	n := NewNTLMv2("CORP", "alice", "s3cret")
	authMsg, sec := n.GetAuthenticateMessage([]byte{0x01, 0x02})
	require.Nil(t, authMsg)
	require.Nil(t, sec)
}

// TestSecurityGssRoundTrip exercises GssEncrypt/GssDecrypt symmetrically:
// a Security built with the same key for both directions must decrypt what
// it encrypts, which is enough to pin the wire layout (version, checksum,
// sequence number, ciphertext) without needing a real peer handshake.
func TestSecurityGssRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef")

	enc, err := rc4.NewCipher(key)
	require.NoError(t, err)
	dec, err := rc4.NewCipher(key)
	require.NoError(t, err)

	sec := &Security{
		encryptRC4: enc,
		decryptRC4: dec,
		signingKey: key,
		verifyKey:  key,
	}

	sealed := sec.GssEncrypt([]byte("hello server"))
	plain := sec.GssDecrypt(sealed)
	require.Equal(t, []byte("hello server"), plain)
}

func TestGssDecryptRejectsShortInput(t *testing.T) {
	s := &Security{}
	require.Nil(t, s.GssDecrypt([]byte{0x01}))
}

func leU16Bytes(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }
func leU32Bytes(v uint32) []byte { return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)} }
func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
