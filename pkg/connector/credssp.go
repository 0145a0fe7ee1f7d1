package connector

import "github.com/kulaginds/rdp-core/internal/auth"

// CredsspYieldKind distinguishes what the CredSSP driver needs next: an
// opaque authentication token from the host's NTLM/Kerberos collaborator,
// or permission to transmit already-encoded bytes and (except on the
// final round) wait for the server's reply.
type CredsspYieldKind int

const (
	CredsspYieldNeedClientToken CredsspYieldKind = iota
	CredsspYieldTransmit
	CredsspYieldDone
)

// CredsspYield is what (*CredsspDriver).Start/Resume returns: exactly one
// of the fields below is meaningful, selected by Kind.
type CredsspYield struct {
	Kind CredsspYieldKind

	// ServerToken is the server's most recent token, passed back to the
	// host's auth collaborator so it can produce the client's next token.
	// Present (possibly empty) when Kind == CredsspYieldNeedClientToken;
	// nil on the very first round.
	ServerToken []byte

	// Bytes is the encoded TSRequest the host must write to the (already
	// TLS-upgraded) transport. Present when Kind == CredsspYieldTransmit.
	Bytes []byte

	// Final reports that Bytes is the last message of the sequence (the
	// encrypted-credentials TSRequest): the host must send it but must not
	// wait for a reply before calling Resume again.
	Final bool
}

// credsspSubState walks MS-CSSP's three round-trips: NTLM negotiate/
// challenge, NTLM authenticate + client public-key binding, then the
// encrypted-credentials message, grounded on rcarmo-go-rdp's
// internal/auth/credssp.go TSRequest encode/decode pair.
type credsspSubState int

const (
	credsspAwaitNegotiateToken credsspSubState = iota
	credsspAwaitChallengeReply
	credsspAwaitAuthToken
	credsspAwaitPubKeyReply
	credsspAwaitCredentialsSent
	credsspDone
)

// CredsspDriver is the resumable CredSSP sub-sequence: a
// generator that suspends whenever it needs input it cannot produce
// itself (a token from the auth collaborator, or bytes read back from the
// server) and resumes exactly where it left off.
type CredsspDriver struct {
	version      int
	clientPubKey []byte
	clientNonce  []byte
	creds        Credentials

	sub             credsspSubState
	serverToken     []byte
	serverPubKeyAuth []byte
}

// NewCredsspDriver constructs a driver for one connection attempt.
// clientPubKey is the DER-encoded subjectPublicKeyInfo of the certificate
// the client observed during the TLS upgrade; version selects the
// MS-CSSP TSRequest revision (6 matches current Windows servers, per
// EncodeTSRequestWithNonce's default).
func NewCredsspDriver(version int, clientPubKey, clientNonce []byte, creds Credentials) *CredsspDriver {
	return &CredsspDriver{version: version, clientPubKey: clientPubKey, clientNonce: clientNonce, creds: creds}
}

// Start begins the sequence: the driver always needs a client NTLM
// negotiate token first, since token production lives outside this
// package.
func (d *CredsspDriver) Start() CredsspYield {
	d.sub = credsspAwaitNegotiateToken
	return CredsspYield{Kind: CredsspYieldNeedClientToken, ServerToken: nil}
}

// Resume advances the driver. clientToken is consumed when the previous
// yield was CredsspYieldNeedClientToken; serverReply is consumed when the
// previous yield was a non-final CredsspYieldTransmit (the raw bytes read
// back from the server). Pass nil for whichever doesn't apply.
func (d *CredsspDriver) Resume(clientToken, serverReply []byte) (CredsspYield, error) {
	switch d.sub {
	case credsspAwaitNegotiateToken:
		msg := auth.EncodeTSRequestWithVersion(d.version, [][]byte{clientToken}, nil, nil, d.clientNonce)
		d.sub = credsspAwaitChallengeReply
		return CredsspYield{Kind: CredsspYieldTransmit, Bytes: msg}, nil

	case credsspAwaitChallengeReply:
		req, err := auth.DecodeTSRequest(serverReply)
		if err != nil {
			return CredsspYield{}, err
		}
		var challenge []byte
		if len(req.NegoTokens) > 0 {
			challenge = req.NegoTokens[0].Data
		}
		if len(req.ServerNonce) > 0 {
			d.clientNonce = req.ServerNonce
		}
		d.serverToken = challenge
		d.sub = credsspAwaitAuthToken
		return CredsspYield{Kind: CredsspYieldNeedClientToken, ServerToken: challenge}, nil

	case credsspAwaitAuthToken:
		pubKeyAuth := auth.ComputeClientPubKeyAuth(d.version, d.clientPubKey, d.clientNonce)
		msg := auth.EncodeTSRequestWithVersion(d.version, [][]byte{clientToken}, nil, pubKeyAuth, d.clientNonce)
		d.sub = credsspAwaitPubKeyReply
		return CredsspYield{Kind: CredsspYieldTransmit, Bytes: msg}, nil

	case credsspAwaitPubKeyReply:
		req, err := auth.DecodeTSRequest(serverReply)
		if err != nil {
			return CredsspYield{}, err
		}
		if !auth.VerifyServerPubKeyAuth(d.version, req.PubKeyAuth, d.clientPubKey, d.clientNonce) {
			return CredsspYield{}, ErrServerPubKeyMismatch
		}
		authInfo := auth.EncodeCredentials([]byte(d.creds.Domain), []byte(d.creds.Username), []byte(d.creds.Password))
		msg := auth.EncodeTSRequestWithVersion(d.version, nil, authInfo, nil, nil)
		d.sub = credsspAwaitCredentialsSent
		return CredsspYield{Kind: CredsspYieldTransmit, Bytes: msg, Final: true}, nil

	case credsspAwaitCredentialsSent:
		d.sub = credsspDone
		return CredsspYield{Kind: CredsspYieldDone}, nil

	default:
		return CredsspYield{Kind: CredsspYieldDone}, nil
	}
}

// Done reports whether the sequence has fully completed.
func (d *CredsspDriver) Done() bool { return d.sub == credsspDone }
