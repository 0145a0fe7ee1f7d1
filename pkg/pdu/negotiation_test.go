package pdu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNegotiationRequestRoundTrip(t *testing.T) {
	r := NegotiationRequest{
		Flags:              NegReqFlagCorrelationInfoPresent,
		RequestedProtocols: NegotiationProtocolSSL | NegotiationProtocolHybrid,
	}
	c := NewCursor(make([]byte, 0, r.Size()))
	require.NoError(t, r.Encode(c))
	require.Equal(t, r.Size(), c.Len())

	got, err := DecodeNegotiationRequest(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.Equal(t, r, got)
	require.True(t, got.Flags.IsCorrelationInfoPresent())
	require.True(t, got.RequestedProtocols.IsSSL())
	require.True(t, got.RequestedProtocols.IsHybrid())
}

func TestNegotiationRequestRejectsWrongType(t *testing.T) {
	c := NewCursor(nil)
	c.WriteU8(uint8(NegotiationTypeResponse))
	c.WriteU8(0)
	c.WriteU16LE(8)
	c.WriteU32LE(0)
	_, err := DecodeNegotiationRequest(NewReadCursor(c.Bytes()))
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, UnexpectedMessageType, de.Kind)
}

func TestConnectionConfirmSuccessRoundTrip(t *testing.T) {
	r := NewConnectionConfirmSuccess(NegotiationResponseFlagGFXSupported, NegotiationProtocolHybrid)
	c := NewCursor(make([]byte, 0, r.Size()))
	require.NoError(t, r.Encode(c))
	require.Equal(t, r.Size(), c.Len())

	got, err := DecodeConnectionConfirm(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.True(t, got.Type.IsResponse())
	require.Equal(t, NegotiationProtocolHybrid, got.SelectedProtocol())
}

func TestConnectionConfirmFailureRoundTrip(t *testing.T) {
	r := NewConnectionConfirmFailure(NegotiationFailureCodeHybridRequired)
	c := NewCursor(make([]byte, 0, r.Size()))
	require.NoError(t, r.Encode(c))

	got, err := DecodeConnectionConfirm(NewReadCursor(c.Bytes()))
	require.NoError(t, err)
	require.True(t, got.Type.IsFailure())
	require.Equal(t, NegotiationFailureCodeHybridRequired, got.FailureCode())
	require.Equal(t, "HYBRID_REQUIRED_BY_SERVER", got.FailureCode().String())
}

func TestConnectionConfirmDecodeTruncatedByOneByte(t *testing.T) {
	r := NewConnectionConfirmSuccess(0, NegotiationProtocolSSL)
	c := NewCursor(make([]byte, 0, r.Size()))
	require.NoError(t, r.Encode(c))

	full := c.Bytes()
	_, err := DecodeConnectionConfirm(NewReadCursor(full[:len(full)-1]))
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, NotEnoughBytes, de.Kind)
}
