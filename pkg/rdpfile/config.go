package rdpfile

import "strings"

// Gateway is the parsed RD Gateway connection info an enabled
// gatewayusagemethod yields (the worked example).
type Gateway struct {
	Endpoint string
	Username string
	Password string
}

// Config is everything the core's connector and CLI need out of a parsed
// .rdp file, resolved from the raw Store's documented key list. Fields
// the core ignores entirely (icons, window placement, ...) stay in the
// Store and are never promoted here.
type Config struct {
	FullAddress string
	Username    string
	Password    string
	Domain      string

	DesktopWidth  int64
	DesktopHeight int64

	Gateway *Gateway // nil when gatewayusagemethod disables the gateway

	EnableCredSSP     bool
	KdcProxyURL       string // normalized "https://<host>/KdcProxy", empty if unset
	AudioPlayback     bool
	RedirectClipboard bool
}

// gatewayUsageMethod values (MS-RDPBCGR .rdp file reference): 1 enables
// the gateway; 0 and 4 disable it explicitly; any other value is treated
// as disabled per  ("others treat as disabled").
const (
	gatewayUsageNone    = 0
	gatewayUsageEnabled = 1
	gatewayUsageDetect  = 4
)

// LoadConfig resolves s into a Config, applying per-key
// defaults and normalization rules. It never fails: malformed values were
// already rejected by Parse at the line level, and absent keys simply take
// their documented defaults.
func LoadConfig(s *Store) Config {
	cfg := Config{
		FullAddress:       s.GetString(KeyFullAddress, ""),
		Username:          s.GetString(KeyUsername, ""),
		Password:          s.GetString("cleartextpassword", ""),
		Domain:            s.GetString(KeyDomain, ""),
		DesktopWidth:      s.GetInt(KeyDesktopWidth, 1024),
		DesktopHeight:     s.GetInt(KeyDesktopHeight, 768),
		EnableCredSSP:     s.GetBool("enablecredsspsupport", true),
		RedirectClipboard: s.GetInt(KeyRedirectClipboard, 1) != 0,
	}

	cfg.AudioPlayback = s.GetInt("audiomode", 0) != 2

	if kdc := s.GetString("kdcproxyname", ""); kdc != "" {
		cfg.KdcProxyURL = normalizeKdcProxyURL(kdc)
	}

	cfg.Gateway = loadGateway(s)

	return cfg
}

// normalizeKdcProxyURL prefixes an https scheme and the fixed /KdcProxy
// path onto a bare hostname; a value that already carries a scheme is
// left untouched.
func normalizeKdcProxyURL(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	return "https://" + host + "/KdcProxy"
}

// loadGateway implements the worked example: gatewayusagemethod 1
// enables the gateway and surfaces endpoint/user/pass; 0, 4, or any other
// value disables it (Gateway is nil).
func loadGateway(s *Store) *Gateway {
	if s.GetInt("gatewayusagemethod", gatewayUsageNone) != gatewayUsageEnabled {
		return nil
	}
	return &Gateway{
		Endpoint: s.GetString("gatewayhostname", ""),
		Username: s.GetString("gatewayusername", ""),
		Password: s.GetString("gatewaypassword", ""),
	}
}
