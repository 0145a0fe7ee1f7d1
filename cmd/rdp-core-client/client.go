package main

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/kulaginds/rdp-core/internal/auth"
	"github.com/kulaginds/rdp-core/internal/rdplog"
	"github.com/kulaginds/rdp-core/pkg/activestage"
	"github.com/kulaginds/rdp-core/pkg/channels"
	"github.com/kulaginds/rdp-core/pkg/connector"
	"github.com/kulaginds/rdp-core/pkg/framer"
	"github.com/kulaginds/rdp-core/pkg/gcc"
	"github.com/kulaginds/rdp-core/pkg/rdpfile"
	"github.com/rs/xid"
	"github.com/spf13/cobra"
)

// runClient is cmd/rdp-core-client's single entrypoint: merge the .rdp
// file (if any) with CLI flags, dial the server, drive the connector's
// pure step loop (performing TLS upgrade and CredSSP token production as
// the external collaborator  carves out), then pump the
// active-stage loop until the server disconnects or the process is
// interrupted. Grounded on rcarmo-go-rdp/cmd/server/main.go's
// flag-parse-then-dial shape, restructured around the connector's Step
// contract instead of a single blocking Connect call.
func runClient(cmd *cobra.Command, opts cliOptions) error {
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return configError("opening log file: %v", err)
		}
		rdplog.SetOutput(f)
	}
	if err := rdplog.SetLevel(opts.logLevel); err != nil {
		return configError("invalid --log-level %q: %v", opts.logLevel, err)
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		return configError("%v", err)
	}

	correlationID := xid.New().String()
	clog := rdplog.WithCorrelationID(log, correlationID)
	clog.WithField("host", cfg.host).Infof("dialing server")

	conn, err := net.Dial("tcp", cfg.host)
	if err != nil {
		return connectionError(fmt.Errorf("dial %s: %w", cfg.host, err))
	}
	defer conn.Close()

	mux := channels.NewMux()
	if err := mux.RegisterStaticChannel("drdynvc", gcc.ChannelOptionInitialized|gcc.ChannelOptionCompressRDP, nil); err != nil {
		return connectionError(err)
	}
	if cfg.redirectClipboard {
		clip := channels.NewClipboardProcessor(newMemClipboard())
		if err := mux.RegisterDynamicChannelProcessor(clip); err != nil {
			return connectionError(err)
		}
	}

	connCfg := connector.Config{
		Credentials:    connector.Credentials{Username: cfg.username, Password: cfg.password, Domain: cfg.domain},
		DesktopSize:    connector.DesktopSize{Width: cfg.width, Height: cfg.height},
		ColorDepth:     32,
		EnableCredSSP:  cfg.enableCredSSP,
		EnableTLS:      true,
		ClientBuild:    2600,
		KeyboardLayout: 0x409, // en-US
		ClientName:     "rdp-core-client",
		Cookie:         "Cookie: mstshash=" + cfg.username + "\r\n",
		Channels: []connector.ChannelSpec{
			{Name: "drdynvc", Options: gcc.ChannelOptionInitialized | gcc.ChannelOptionCompressRDP},
		},
	}

	c := connector.New(connCfg)

	result, err := driveHandshake(c, conn, cfg)
	if err != nil {
		var cerr *connector.Error
		if errors.As(err, &cerr) && cerr.Kind == connector.ErrorAccessDenied {
			return connectionError(fmt.Errorf("access denied: %w", err))
		}
		return connectionError(err)
	}
	clog.WithField("share_id", result.ShareID).Infof("connected")

	for name, id := range result.JoinedChannels {
		if _, ok := mux.ChannelByName(name); ok {
			_ = mux.BindChannelID(name, id)
		}
	}

	fr := framer.New(conn)
	stage := activestage.New(result, mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	interrupted := make(chan struct{})
	go func() {
		<-sigCh
		close(interrupted)
		if bytes, rerr := stage.ReleaseAllInputs(); rerr == nil && len(bytes) > 0 {
			_ = fr.WriteAll(bytes)
		}
		conn.Close()
	}()

	for {
		_, frame, err := fr.ReadPdu()
		if err != nil {
			select {
			case <-interrupted:
				return nil
			default:
			}
			return disconnectError(fmt.Errorf("reading frame: %w", err))
		}
		outs, err := stage.Process(frame)
		if err != nil {
			clog.WithError(err).Warnf("active-stage decode error, continuing")
			continue
		}
		for _, out := range outs {
			switch out.Kind {
			case activestage.OutputResponseFrame:
				if err := fr.WriteAll(out.Frame); err != nil {
					return disconnectError(err)
				}
			case activestage.OutputGraphicsUpdate:
				clog.WithField("rect", out.Rect).Debugf("graphics update")
			case activestage.OutputPointerUpdate:
				clog.Debugf("pointer update")
			case activestage.OutputChannelEvent:
				clog.WithField("channel", out.Channel.ChannelName).Debugf("channel event")
			case activestage.OutputTerminate:
				clog.WithField("reason", out.Reason).Infof("session terminated")
				return disconnectError(fmt.Errorf("%s", out.Reason))
			}
		}
	}
}

// driveHandshake runs the connector's Step loop to completion. It performs
// the two things  names as external collaborators: the TLS
// upgrade (crypto/tls) and NTLM token production for CredSSP
// (internal/auth) — the connector itself only signals when each is
// needed and consumes the result, never touching a socket or computing a
// hash directly.
//
// CredSSP's TSRequest messages travel unframed directly over the
// TLS-upgraded stream (MS-CSSP), unlike every other phase's TPKT framing,
// so this loop reads them with readTSRequest instead of the shared
// framer once the connector reaches StateCredssp.
func driveHandshake(c *connector.Connector, rawConn net.Conn, cfg resolvedConfig) (connector.ConnectionResult, error) {
	var ntlmCtx *auth.NTLMv2
	fr := framer.New(rawConn)
	var credsspConn io.Reader
	in := connector.Input{}

	for {
		out, action, err := c.Step(in)
		if err != nil {
			return connector.ConnectionResult{}, err
		}

		if action == connector.ActionConnected {
			return c.Result(), nil
		}
		if len(out.Bytes) > 0 {
			if err := fr.WriteAll(out.Bytes); err != nil {
				return connector.ConnectionResult{}, err
			}
		}

		if action == connector.ActionPerformSecurityUpgrade {
			tlsConn := tls.Client(rawConn, &tls.Config{InsecureSkipVerify: cfg.insecureTLS})
			if err := tlsConn.Handshake(); err != nil {
				return connector.ConnectionResult{}, fmt.Errorf("TLS upgrade: %w", err)
			}
			certs := tlsConn.ConnectionState().PeerCertificates
			var pubKey []byte
			if len(certs) > 0 {
				if spki, err := x509.MarshalPKIXPublicKey(certs[0].PublicKey); err == nil {
					pubKey = spki
				}
			}
			fr = framer.New(tlsConn)
			credsspConn = bufio.NewReader(tlsConn)

			out, action, err = c.MarkSecurityUpgradeAsDone(pubKey)
			if err != nil {
				return connector.ConnectionResult{}, err
			}
			if action == connector.ActionConnected {
				return c.Result(), nil
			}
			if len(out.Bytes) > 0 {
				if err := fr.WriteAll(out.Bytes); err != nil {
					return connector.ConnectionResult{}, err
				}
			}
		}

		// Whatever produced this (out, action) — a plain Step or the
		// security-upgrade completion above — dispatches the same way:
		// the connector doesn't care which path fed it its next input.
		switch action {
		case connector.ActionNeedAuthToken:
			tok, aerr := nextAuthToken(&ntlmCtx, cfg, out.ServerAuthToken)
			if aerr != nil {
				return connector.ConnectionResult{}, aerr
			}
			in = tok

		case connector.ActionAwaitFrame:
			if c.State() == connector.StateCredssp {
				msg, err := readTSRequest(credsspConn)
				if err != nil {
					return connector.ConnectionResult{}, fmt.Errorf("reading CredSSP reply: %w", err)
				}
				in = connector.Input{Frame: msg}
				break
			}
			_, frame, err := fr.ReadPdu()
			if err != nil {
				return connector.ConnectionResult{}, fmt.Errorf("reading frame: %w", err)
			}
			in = connector.Input{Frame: frame}

		default:
			in = connector.Input{}
		}
	}
}

// nextAuthToken produces the client's next NTLM token: the initial
// negotiate message when no server token has been seen yet, otherwise the
// authenticate message computed from the server's challenge.
func nextAuthToken(ctxp **auth.NTLMv2, cfg resolvedConfig, serverToken []byte) (connector.Input, error) {
	if *ctxp == nil {
		*ctxp = auth.NewNTLMv2(cfg.domain, cfg.username, cfg.password)
		return connector.Input{AuthToken: (*ctxp).GetNegotiateMessage()}, nil
	}
	authMsg, _ := (*ctxp).GetAuthenticateMessage(serverToken)
	if authMsg == nil {
		return connector.Input{}, fmt.Errorf("credssp: failed to compute NTLM authenticate message")
	}
	return connector.Input{AuthToken: authMsg}, nil
}

// readTSRequest reads exactly one BER SEQUENCE (a CredSSP TSRequest) from
// r: a one-byte universal/constructed tag, a definite-form length (short
// or 1/2/4-byte long form), then that many content bytes. CredSSP
// messages are never framed any other way (MS-CSSP 2.2.1).
func readTSRequest(r io.Reader) ([]byte, error) {
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, err
	}
	var length int
	var lenBytes []byte
	if hdr[1]&0x80 == 0 {
		length = int(hdr[1])
	} else {
		n := int(hdr[1] &^ 0x80)
		if n == 0 || n > 4 {
			return nil, fmt.Errorf("credssp: unsupported BER length form (%d octets)", n)
		}
		lenBytes = make([]byte, n)
		if _, err := io.ReadFull(r, lenBytes); err != nil {
			return nil, err
		}
		for _, b := range lenBytes {
			length = length<<8 | int(b)
		}
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	full := make([]byte, 0, 2+len(lenBytes)+length)
	full = append(full, hdr...)
	full = append(full, lenBytes...)
	full = append(full, body...)
	return full, nil
}

// resolvedConfig is the merge of a parsed .rdp file and CLI flags, CLI
// flags winning per  (--no-credssp "always wins").
type resolvedConfig struct {
	host              string
	username          string
	password          string
	domain            string
	width, height     uint16
	enableCredSSP     bool
	redirectClipboard bool
	insecureTLS       bool
}

func resolveConfig(opts cliOptions) (resolvedConfig, error) {
	var store *rdpfile.Store
	if opts.rdpFile != "" {
		f, err := os.Open(opts.rdpFile)
		if err != nil {
			return resolvedConfig{}, fmt.Errorf("opening .rdp file: %w", err)
		}
		defer f.Close()
		store, err = rdpfile.Parse(f)
		if err != nil {
			return resolvedConfig{}, fmt.Errorf("parsing .rdp file: %w", err)
		}
	}

	var fileCfg rdpfile.Config
	if store != nil {
		fileCfg = rdpfile.LoadConfig(store)
	} else {
		fileCfg.EnableCredSSP = true
		fileCfg.RedirectClipboard = true
	}

	rc := resolvedConfig{
		host:              opts.host,
		username:          opts.username,
		password:          opts.password,
		domain:            opts.domain,
		width:             opts.width,
		height:            opts.height,
		enableCredSSP:     fileCfg.EnableCredSSP,
		redirectClipboard: fileCfg.RedirectClipboard,
		insecureTLS:       opts.insecureTLS,
	}
	if rc.host == "" {
		rc.host = fileCfg.FullAddress
	}
	if rc.username == "" {
		rc.username = fileCfg.Username
	}
	if rc.password == "" {
		rc.password = fileCfg.Password
	}
	if rc.domain == "" {
		rc.domain = fileCfg.Domain
	}
	if opts.noCredSSP {
		rc.enableCredSSP = false
	}
	if rc.host == "" {
		return resolvedConfig{}, fmt.Errorf("no host given: pass a positional argument or full address:s: in --rdp-file")
	}
	if !strings.Contains(rc.host, ":") {
		rc.host = net.JoinHostPort(rc.host, strconv.Itoa(3389))
	}
	return rc, nil
}
