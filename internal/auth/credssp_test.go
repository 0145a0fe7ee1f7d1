package auth

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTSRequestRoundTrip(t *testing.T) {
	nego := [][]byte{[]byte("negotiate-token")}
	pubKeyAuth := []byte{0x01, 0x02, 0x03}
	nonce := []byte("0123456789012345678901234567890")

	wire := EncodeTSRequestWithVersion(6, nego, nil, pubKeyAuth, nonce)

	got, err := DecodeTSRequest(wire)
	require.NoError(t, err)
	require.Equal(t, 6, got.Version)
	require.Len(t, got.NegoTokens, 1)
	require.Equal(t, nego[0], got.NegoTokens[0].Data)
	require.Equal(t, pubKeyAuth, got.PubKeyAuth)
	require.Empty(t, got.AuthInfo)
}

func TestEncodeDecodeTSRequestWithAuthInfo(t *testing.T) {
	authInfo := []byte("encrypted-ts-credentials")
	wire := EncodeTSRequestWithVersion(6, nil, authInfo, nil, nil)

	got, err := DecodeTSRequest(wire)
	require.NoError(t, err)
	require.Equal(t, authInfo, got.AuthInfo)
	require.Empty(t, got.NegoTokens)
	require.Empty(t, got.PubKeyAuth)
}

func TestEncodeTSRequestWithNonceUsesVersion6(t *testing.T) {
	direct := EncodeTSRequestWithVersion(6, [][]byte{{0xAA}}, nil, nil, nil)
	viaHelper := EncodeTSRequestWithNonce([][]byte{{0xAA}}, nil, nil, nil)
	require.Equal(t, direct, viaHelper)
}

func TestComputeClientPubKeyAuthBelowVersion5ReturnsRawKey(t *testing.T) {
	pubKey := []byte{0x01, 0x02, 0x03, 0x04}
	require.Equal(t, pubKey, ComputeClientPubKeyAuth(4, pubKey, []byte("nonce")))
}

func TestComputeClientPubKeyAuthVersion5HashesWithNonce(t *testing.T) {
	pubKey := []byte{0x01, 0x02, 0x03, 0x04}
	nonce := []byte("a-client-nonce")

	got := ComputeClientPubKeyAuth(5, pubKey, nonce)
	require.Len(t, got, 32) // SHA-256 digest
	require.NotEqual(t, pubKey, got)
}

func TestVerifyServerPubKeyAuthBelowVersion5ChecksIncrementedFirstByte(t *testing.T) {
	clientPubKey := []byte{0x01, 0x02, 0x03}
	serverPubKeyAuth := []byte{0x02, 0x02, 0x03}
	require.True(t, VerifyServerPubKeyAuth(4, serverPubKeyAuth, clientPubKey, nil))
	require.False(t, VerifyServerPubKeyAuth(4, clientPubKey, clientPubKey, nil))
}

func TestVerifyServerPubKeyAuthVersion5UsesServerToClientBinding(t *testing.T) {
	clientPubKey := []byte{0x01, 0x02, 0x03, 0x04}
	nonce := []byte("a-client-nonce")

	// The server binds the key with the server-to-client magic, not the
	// client-to-server one ComputeClientPubKeyAuth uses.
	h := sha256.New()
	h.Write(ServerClientHashMagic)
	h.Write(nonce)
	h.Write(clientPubKey)
	serverHash := h.Sum(nil)
	require.True(t, VerifyServerPubKeyAuth(5, serverHash, clientPubKey, nonce))
	require.False(t, VerifyServerPubKeyAuth(5, ComputeClientPubKeyAuth(5, clientPubKey, nonce), clientPubKey, nonce))
}

func TestEncodeCredentialsProducesParsableTSCredentials(t *testing.T) {
	wire := EncodeCredentials([]byte("CORP"), []byte("alice"), []byte("s3cret"))
	require.NotEmpty(t, wire)
	require.Equal(t, byte(0x30), wire[0]) // outer SEQUENCE tag
}
