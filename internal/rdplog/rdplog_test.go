package rdplog

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForAndWithFieldsProduceOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	l := For("connector").WithField("state", "CredSSP")
	l.Infof("starting %s", "handshake")

	require.Contains(t, buf.String(), "component=connector")
	require.Contains(t, buf.String(), "state=CredSSP")
	require.Contains(t, buf.String(), "starting handshake")
}

func TestSetLevelRejectsUnknownName(t *testing.T) {
	require.Error(t, SetLevel("not-a-level"))
}

func TestWithCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	l := WithCorrelationID(For("acceptor"), "abc123")
	l.Warnf("client disconnected")

	require.Contains(t, buf.String(), "correlation_id=abc123")
}
