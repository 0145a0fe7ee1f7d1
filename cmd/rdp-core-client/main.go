// Command rdp-core-client is a representative client exposing the core
// as a dialing command-line RDP session. It parses an
// optional .rdp file, dials the server, drives the connector's state
// machine to completion, then pumps the active-stage loop until the
// server disconnects or the process receives an interrupt.
package main

import (
	"fmt"
	"os"

	"github.com/kulaginds/rdp-core/internal/rdplog"
	"github.com/spf13/cobra"
)

var log = rdplog.For("cmd.rdp-core-client")

// exitError carries the process exit code a failure should produce,
// per : 1 configuration, 2 connection, 3 server-initiated
// disconnect with error-info. A plain error defaults to 1.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(format string, args ...interface{}) *exitError {
	return &exitError{code: 1, err: fmt.Errorf(format, args...)}
}

func connectionError(err error) *exitError {
	return &exitError{code: 2, err: err}
}

func disconnectError(err error) *exitError {
	return &exitError{code: 3, err: err}
}

var opts cliOptions

type cliOptions struct {
	rdpFile      string
	host         string
	username     string
	password     string
	domain       string
	noCredSSP    bool
	width        uint16
	height       uint16
	logFile      string
	logLevel     string
	insecureTLS  bool
}

var rootCmd = &cobra.Command{
	Use:   "rdp-core-client [host[:port]]",
	Short: "Connect to an RDP server and drive the session to completion",
	Long: `rdp-core-client dials an RDP server, negotiates security and
capabilities, and pumps the active-stage loop, logging graphics and
pointer activity until the server disconnects or the process is
interrupted.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			opts.host = args[0]
		}
		return runClient(cmd, opts)
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&opts.rdpFile, "rdp-file", "", "path to a .rdp connection file")
	flags.StringVar(&opts.username, "username", "", "login username")
	flags.StringVar(&opts.password, "password", "", "login password")
	flags.StringVar(&opts.domain, "domain", "", "login domain")
	flags.BoolVar(&opts.noCredSSP, "no-credssp", false, "disable CredSSP/NLA regardless of the .rdp file")
	flags.Uint16Var(&opts.width, "width", 1024, "desktop width in pixels")
	flags.Uint16Var(&opts.height, "height", 768, "desktop height in pixels")
	flags.StringVar(&opts.logFile, "log-file", "", "write logs to this path instead of stderr")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.BoolVar(&opts.insecureTLS, "insecure-tls", true, "skip server certificate validation (RDP servers are commonly self-signed)")
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		os.Exit(0)
	}

	code := 1
	if ee, ok := err.(*exitError); ok {
		code = ee.code
	}
	fmt.Fprintf(os.Stderr, "rdp-core-client: %v\n", err)
	os.Exit(code)
}
