package rdpfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLoadConfigGateway is scenario 6, literally: a gateway
// block with gatewayusagemethod:1 resolves to a populated Gateway, and
// changing the method to 4 disables it.
func TestLoadConfigGateway(t *testing.T) {
	const sample = "full address:s:rdp.example.com\n" +
		"gatewayhostname:s:gw:443\n" +
		"gatewayusagemethod:i:1\n" +
		"gatewayusername:s:u\n" +
		"GatewayPassword:s:p\n"

	s, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	cfg := LoadConfig(s)
	require.Equal(t, "rdp.example.com", cfg.FullAddress)
	require.NotNil(t, cfg.Gateway)
	require.Equal(t, "gw:443", cfg.Gateway.Endpoint)
	require.Equal(t, "u", cfg.Gateway.Username)
	require.Equal(t, "p", cfg.Gateway.Password)
}

func TestLoadConfigGatewayDisabledByMethod4(t *testing.T) {
	const sample = "gatewayhostname:s:gw:443\n" +
		"gatewayusagemethod:i:4\n" +
		"gatewayusername:s:u\n" +
		"GatewayPassword:s:p\n"

	s, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	cfg := LoadConfig(s)
	require.Nil(t, cfg.Gateway)
}

func TestLoadConfigGatewayDisabledByDefault(t *testing.T) {
	s, err := Parse(strings.NewReader("full address:s:host\n"))
	require.NoError(t, err)

	cfg := LoadConfig(s)
	require.Nil(t, cfg.Gateway)
}

func TestLoadConfigKdcProxyNormalization(t *testing.T) {
	s, err := Parse(strings.NewReader("kdcproxyname:s:kdc.example.com\n"))
	require.NoError(t, err)
	cfg := LoadConfig(s)
	require.Equal(t, "https://kdc.example.com/KdcProxy", cfg.KdcProxyURL)
}

func TestLoadConfigKdcProxyKeepsExistingScheme(t *testing.T) {
	s, err := Parse(strings.NewReader("kdcproxyname:s:https://kdc.example.com/custom\n"))
	require.NoError(t, err)
	cfg := LoadConfig(s)
	require.Equal(t, "https://kdc.example.com/custom", cfg.KdcProxyURL)
}

func TestLoadConfigAudioModeDisablesOnly2(t *testing.T) {
	s, err := Parse(strings.NewReader("audiomode:i:2\n"))
	require.NoError(t, err)
	require.False(t, LoadConfig(s).AudioPlayback)

	s, err = Parse(strings.NewReader("audiomode:i:99\n"))
	require.NoError(t, err)
	require.True(t, LoadConfig(s).AudioPlayback)
}

func TestLoadConfigRedirectClipboardDisabled(t *testing.T) {
	s, err := Parse(strings.NewReader("redirectclipboard:i:0\n"))
	require.NoError(t, err)
	require.False(t, LoadConfig(s).RedirectClipboard)
}
