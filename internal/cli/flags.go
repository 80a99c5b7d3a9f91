package cli

import (
	"github.com/rileyhilliard/idrac-power/internal/config"
	"github.com/rileyhilliard/idrac-power/internal/target"
	"github.com/spf13/cobra"
)

// GlobalFlags are the persistent flags shared by every command.
type GlobalFlags struct {
	Config  string
	Verbose bool
	Quiet   bool
}

// AddGlobalFlags registers --config, --verbose and --quiet.
func AddGlobalFlags(cmd *cobra.Command, flags *GlobalFlags) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.Config, "config", "", "config file (default ~/.config/idrac-power/config.yaml)")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress progress messages (errors and the final report are still shown)")
}

// AddMeasureFlags registers the target, tunnel, monitoring and output
// flags. Values are read back through config.Load, so none are bound to
// variables here.
func AddMeasureFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	d := config.DefaultConfig()

	f.String("host", "", "iDRAC hostname or IP address (not needed with --servers-file)")
	f.StringP("username", "u", "", "iDRAC username (not needed with --servers-file)")
	f.StringP("password", "p", "", "iDRAC password (not needed with --servers-file)")
	f.Int("port", target.DefaultPort, "iDRAC HTTPS port")
	f.Bool("verify-ssl", d.VerifySSL, "verify TLS certificates")
	f.Bool("no-verify-ssl", false, "skip TLS certificate verification")
	f.Duration("timeout", d.Timeout, "per-request timeout for the iDRAC and the jumphost")

	f.String("jumphost", "", "SSH jumphost to tunnel through")
	f.String("jumphost-user", "", "SSH username for the jumphost (defaults to the current user)")
	f.Int("jumphost-port", 0, "SSH port on the jumphost (default 22)")
	f.String("ssh-key", "", "SSH private key for the jumphost (defaults to the agent and standard keys)")
	f.String("ssh-password", "", "SSH password for the jumphost (only needed without keys)")
	f.Bool("no-tunnel", false, "connect directly, ignoring any jumphost")

	f.String("monitor", "", "monitor and average power over a duration (e.g., 24h, 30m, 1d)")
	f.String("sample-interval", d.SampleInterval, "sample interval for monitoring (e.g., 5m, 10m, 1h)")

	f.String("servers-file", "", "CSV file with the server list (columns: ip,username,password,name)")
	f.Int("max-workers", d.MaxWorkers, "max parallel connections in multi-server mode")

	f.String("format", d.Format, "output format: text, json or yaml")
	f.String("output", "", "save the report to a file (.txt, .json or .yaml added when missing)")
}
