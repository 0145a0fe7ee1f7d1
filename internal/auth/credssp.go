package auth

import (
	"bytes"
	"crypto/sha256"

	"github.com/kulaginds/rdp-core/pkg/ber"
	"github.com/kulaginds/rdp-core/pkg/pdu"
)

// TSRequest is the decoded form of MS-CSSP's TSRequest, the single message
// type CredSSP exchanges in both directions during NTLM negotiation and
// the final encrypted-credentials hop.
type TSRequest struct {
	Version     int
	NegoTokens  []NegoToken
	AuthInfo    []byte
	PubKeyAuth  []byte
	ErrorCode   uint32 // version 3+
	ServerNonce []byte // version 5+
}

// Magic strings for CredSSP version 5+ public key hashing (includes null terminator).
var (
	ClientServerHashMagic = []byte("CredSSP Client-To-Server Binding Hash\x00")
	ServerClientHashMagic = []byte("CredSSP Server-To-Client Binding Hash\x00")
)

// ComputeClientPubKeyAuth computes the pubKeyAuth field the client sends
// inside its second TSRequest. Versions 2-4 send the raw public key (the
// caller then encrypts it under the NTLM session); version 5+ instead
// binds the key to the negotiated nonce per MS-CSSP 3.1.5.1.
func ComputeClientPubKeyAuth(version int, pubKey, nonce []byte) []byte {
	if version >= 5 && len(nonce) > 0 {
		h := sha256.New()
		h.Write(ClientServerHashMagic)
		h.Write(nonce)
		h.Write(pubKey)
		return h.Sum(nil)
	}
	return pubKey
}

// VerifyServerPubKeyAuth verifies the server's pubKeyAuth response. For
// version 2-4 the server echoes the client's public key with its first
// byte incremented; for version 5+ it returns the nonce-bound hash.
func VerifyServerPubKeyAuth(version int, serverPubKeyAuth, clientPubKey, nonce []byte) bool {
	if version >= 5 && len(nonce) > 0 {
		h := sha256.New()
		h.Write(ServerClientHashMagic)
		h.Write(nonce)
		h.Write(clientPubKey)
		return bytes.Equal(serverPubKeyAuth, h.Sum(nil))
	}
	if len(serverPubKeyAuth) != len(clientPubKey) {
		return false
	}
	expected := make([]byte, len(clientPubKey))
	copy(expected, clientPubKey)
	expected[0]++
	return bytes.Equal(serverPubKeyAuth, expected)
}

// NegoToken wraps a single NTLM message carried inside TSRequest.negoTokens.
type NegoToken struct {
	Data []byte
}

// EncodeTSRequestWithNonce encodes a TSRequest at the module's default
// protocol version (6), optionally carrying a client nonce for version 5+
// binding.
func EncodeTSRequestWithNonce(ntlmMessages [][]byte, authInfo []byte, pubKeyAuth []byte, clientNonce []byte) []byte {
	return EncodeTSRequestWithVersion(6, ntlmMessages, authInfo, pubKeyAuth, clientNonce)
}

// EncodeTSRequestWithVersion encodes a TSRequest per MS-CSSP 2.2.1:
//
//	TSRequest ::= SEQUENCE {
//	   version     [0] INTEGER,
//	   negoTokens  [1] NegoData OPTIONAL,
//	   authInfo    [2] OCTET STRING OPTIONAL,
//	   pubKeyAuth  [3] OCTET STRING OPTIONAL,
//	   errorCode   [4] INTEGER OPTIONAL,       -- version 3+
//	   clientNonce [5] OCTET STRING OPTIONAL,  -- version 5+
//	}
//	NegoData ::= SEQUENCE OF SEQUENCE { negoToken [0] OCTET STRING }
func EncodeTSRequestWithVersion(version int, ntlmMessages [][]byte, authInfo []byte, pubKeyAuth []byte, clientNonce []byte) []byte {
	inner := pdu.NewCursor(nil)

	versionContent := pdu.NewCursor(nil)
	ber.WriteInteger(versionContent, uint32(version))
	ber.WriteContextTag(inner, 0, versionContent.Len())
	inner.WriteBytes(versionContent.Bytes())

	if len(ntlmMessages) > 0 {
		items := pdu.NewCursor(nil)
		for _, msg := range ntlmMessages {
			item := pdu.NewCursor(nil)
			itemContent := pdu.NewCursor(nil)
			ber.WriteOctetString(itemContent, msg)
			ber.WriteContextTag(item, 0, itemContent.Len())
			item.WriteBytes(itemContent.Bytes())
			ber.WriteSequence(items, item.Bytes())
		}
		negoData := pdu.NewCursor(nil)
		ber.WriteSequence(negoData, items.Bytes())
		ber.WriteContextTag(inner, 1, negoData.Len())
		inner.WriteBytes(negoData.Bytes())
	}

	if len(authInfo) > 0 {
		field := pdu.NewCursor(nil)
		ber.WriteOctetString(field, authInfo)
		ber.WriteContextTag(inner, 2, field.Len())
		inner.WriteBytes(field.Bytes())
	}

	if len(pubKeyAuth) > 0 {
		field := pdu.NewCursor(nil)
		ber.WriteOctetString(field, pubKeyAuth)
		ber.WriteContextTag(inner, 3, field.Len())
		inner.WriteBytes(field.Bytes())
	}

	if len(clientNonce) > 0 {
		field := pdu.NewCursor(nil)
		ber.WriteOctetString(field, clientNonce)
		ber.WriteContextTag(inner, 5, field.Len())
		inner.WriteBytes(field.Bytes())
	}

	out := pdu.NewCursor(nil)
	ber.WriteSequence(out, inner.Bytes())
	return out.Bytes()
}

// DecodeTSRequest decodes a TSRequest from DER bytes.
func DecodeTSRequest(data []byte) (*TSRequest, error) {
	c := pdu.NewReadCursor(data)
	contentLen, err := ber.ReadSequenceHeader(c)
	if err != nil {
		return nil, err
	}
	content, err := c.ReadBytes("TSRequest", contentLen)
	if err != nil {
		return nil, err
	}

	req := &TSRequest{}
	fc := pdu.NewReadCursor(content)
	for fc.Remaining() > 0 {
		tag, length, err := ber.ReadContextTag(fc)
		if err != nil {
			break
		}
		value, err := fc.ReadBytes("TSRequest.field", length)
		if err != nil {
			break
		}
		switch tag {
		case 0:
			req.Version = int(readInteger(value))
		case 1:
			req.NegoTokens = decodeNegoTokens(value)
		case 2:
			req.AuthInfo = readOctetString(value)
		case 3:
			req.PubKeyAuth = readOctetString(value)
		case 4:
			req.ErrorCode = readInteger(value)
		case 5:
			req.ServerNonce = readOctetString(value)
		}
	}

	return req, nil
}

// EncodeCredentials encodes TSCredentials carrying password credentials,
// the authInfo payload of a CredSSP client's final TSRequest:
//
//	TSCredentials ::= SEQUENCE {
//	   credType    [0] INTEGER,
//	   credentials [1] OCTET STRING
//	}
//	TSPasswordCreds ::= SEQUENCE {
//	   domainName [0] OCTET STRING,
//	   userName   [1] OCTET STRING,
//	   password   [2] OCTET STRING
//	}
func EncodeCredentials(domain, username, password []byte) []byte {
	passCreds := pdu.NewCursor(nil)
	writeContextOctetString(passCreds, 0, domain)
	writeContextOctetString(passCreds, 1, username)
	writeContextOctetString(passCreds, 2, password)

	passCredsSeq := pdu.NewCursor(nil)
	ber.WriteSequence(passCredsSeq, passCreds.Bytes())

	creds := pdu.NewCursor(nil)
	credType := pdu.NewCursor(nil)
	ber.WriteInteger(credType, 1) // credType = 1 (password)
	ber.WriteContextTag(creds, 0, credType.Len())
	creds.WriteBytes(credType.Bytes())
	writeContextOctetString(creds, 1, passCredsSeq.Bytes())

	out := pdu.NewCursor(nil)
	ber.WriteSequence(out, creds.Bytes())
	return out.Bytes()
}

func writeContextOctetString(c *pdu.Cursor, tag uint8, data []byte) {
	field := pdu.NewCursor(nil)
	ber.WriteOctetString(field, data)
	ber.WriteContextTag(c, tag, field.Len())
	c.WriteBytes(field.Bytes())
}

func readOctetString(data []byte) []byte {
	v, err := ber.ReadOctetString(pdu.NewReadCursor(data))
	if err != nil {
		return nil
	}
	return v
}

func readInteger(data []byte) uint32 {
	v, err := ber.ReadInteger(pdu.NewReadCursor(data))
	if err != nil {
		return 0
	}
	return v
}

func decodeNegoTokens(data []byte) []NegoToken {
	var tokens []NegoToken

	c := pdu.NewReadCursor(data)
	seqLen, err := ber.ReadSequenceHeader(c)
	if err != nil {
		return tokens
	}
	content, err := c.ReadBytes("NegoData", seqLen)
	if err != nil {
		return tokens
	}

	items := pdu.NewReadCursor(content)
	for items.Remaining() > 0 {
		itemLen, err := ber.ReadSequenceHeader(items)
		if err != nil {
			break
		}
		item, err := items.ReadBytes("NegoDataItem", itemLen)
		if err != nil {
			break
		}

		ic := pdu.NewReadCursor(item)
		tag, tokenLen, err := ber.ReadContextTag(ic)
		if err != nil || tag != 0 {
			continue
		}
		tokenField, err := ic.ReadBytes("negoToken", tokenLen)
		if err != nil {
			continue
		}
		if data := readOctetString(tokenField); data != nil {
			tokens = append(tokens, NegoToken{Data: data})
		}
	}

	return tokens
}
