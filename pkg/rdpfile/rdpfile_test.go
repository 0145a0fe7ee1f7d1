package rdpfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sample = `full address:s:rdp.example.com:3389
username:s:alice
desktopwidth:i:1920
desktopheight:i:1080
desktopscalefactor:i:150
connect to console:i:0
`

func TestParseReadsKnownKeys(t *testing.T) {
	s, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Equal(t, "rdp.example.com:3389", s.GetString(KeyFullAddress, ""))
	require.Equal(t, "alice", s.GetString(KeyUsername, ""))
	require.Equal(t, int64(1920), s.GetInt(KeyDesktopWidth, 0))
	require.False(t, s.GetBool(KeyConnectToConsole, true))
}

func TestParseIsCaseInsensitive(t *testing.T) {
	s, err := Parse(strings.NewReader("UserName:s:bob\n"))
	require.NoError(t, err)
	require.Equal(t, "bob", s.GetString("username", ""))
}

func TestParseUnknownKeyIgnored(t *testing.T) {
	s, err := Parse(strings.NewReader("some future key:s:whatever\n"))
	require.NoError(t, err)
	require.Equal(t, "fallback", s.GetString("missing", "fallback"))
	require.True(t, s.Has("some future key"))
}

func TestParseRejectsMalformedLine(t *testing.T) {
	_, err := Parse(strings.NewReader("not-a-valid-line\n"))
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, ReasonMalformedLine, pe.Reason)
}

func TestParseRejectsUnknownType(t *testing.T) {
	_, err := Parse(strings.NewReader("key:x:value\n"))
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, ReasonUnknownType, pe.Reason)
}

func TestParseRejectsInvalidIntValue(t *testing.T) {
	_, err := Parse(strings.NewReader("desktopwidth:i:not-a-number\n"))
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, ReasonInvalidValue, pe.Reason)
}
