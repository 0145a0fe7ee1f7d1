package connector

import (
	"errors"
	"fmt"
)

// ErrServerPubKeyMismatch is returned by the CredSSP driver when the
// server's pubKeyAuth response doesn't match what MS-CSSP predicts for
// the client's TLS public key, indicating a possible man-in-the-middle.
var ErrServerPubKeyMismatch = errors.New("connector: credssp server public key verification failed")

// ErrorKind classifies why a connection attempt failed ('s
// error taxonomy), letting a host decide whether to retry, prompt for new
// credentials, or surface a fatal message.
type ErrorKind int

const (
	// ErrorGeneral covers transport and framing failures that aren't
	// specific to any one phase.
	ErrorGeneral ErrorKind = iota
	// ErrorPdu is a malformed or out-of-sequence protocol PDU.
	ErrorPdu
	// ErrorCredssp is a failure inside the CredSSP sub-sequence.
	ErrorCredssp
	// ErrorAccessDenied is a server-reported licensing or negotiation
	// rejection (RDP_NEG_FAILURE, LICENSE_ERROR other than valid-client).
	ErrorAccessDenied
	// ErrorCustom is a state-specific failure with no closer category.
	ErrorCustom
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorGeneral:
		return "General"
	case ErrorPdu:
		return "Pdu"
	case ErrorCredssp:
		return "Credssp"
	case ErrorAccessDenied:
		return "AccessDenied"
	case ErrorCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// Error is the connector's single error type; every failure reported by
// Step carries a Kind so the host can branch without string matching.
type Error struct {
	Kind  ErrorKind
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("connector: %s (state %s): %v", e.Kind, e.State, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(kind ErrorKind, state State, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, State: state, Err: err}
}
