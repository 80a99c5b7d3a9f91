package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rileyhilliard/idrac-power/internal/errors"
	"github.com/rileyhilliard/idrac-power/internal/logger"
	"github.com/rileyhilliard/idrac-power/internal/parallel"
	"github.com/rileyhilliard/idrac-power/internal/redfish"
	"github.com/rileyhilliard/idrac-power/internal/tunnel"
	"github.com/rileyhilliard/idrac-power/internal/ui"
	"github.com/spf13/cobra"
)

// environment is everything a command touches outside the process.
// Tests replace the fields with fakes.
type environment struct {
	stdout io.Writer
	stderr io.Writer

	// interactive reports whether stderr is a terminal.
	interactive func() bool
	confirm     ui.Confirmer

	connector parallel.Connector
	tunnels   func(timeout time.Duration) parallel.TunnelOpener
	log       logger.Logger
}

func defaultEnvironment() *environment {
	return &environment{
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		interactive: func() bool { return ui.IsTerminal(os.Stderr) },
		confirm:     ui.Confirm,
		connector:   redfishConnector{connector: redfish.NewConnector(logger.NewEnvLogger("redfish"))},
		tunnels: func(timeout time.Duration) parallel.TunnelOpener {
			return tunnelOpener{provider: tunnel.NewProvider(logger.NewEnvLogger("tunnel"), timeout)}
		},
		log: logger.NewEnvLogger("parallel"),
	}
}

// newRootCmd builds the idrac-power command tree.
func newRootCmd(env *environment) *cobra.Command {
	var global GlobalFlags

	cmd := &cobra.Command{
		Use:   "idrac-power",
		Short: "Read and monitor power usage from Dell iDRAC controllers",
		Long: `Connect to one or more Dell iDRAC controllers over Redfish and report power
usage, optionally through an SSH jumphost.

Without --monitor a single reading is taken. With --monitor the controller is
sampled every --sample-interval and the samples are averaged; press CTRL+C to
stop early and keep the samples collected so far.

Settings come from flags, then IDRAC_* environment variables, then the config
file, then defaults.

Examples:
  idrac-power --host 10.0.0.5 -u root -p calvin
  idrac-power --host idrac-01 --jumphost bastion --monitor 24h --sample-interval 10m
  idrac-power --servers-file servers.csv --format json --output report`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetVerbose(global.Verbose)
			if !env.interactive() {
				ui.DisableColors()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.measure(cmd.Context(), cmd.Flags(), global.Config)
		},
	}

	AddGlobalFlags(cmd, &global)
	AddMeasureFlags(cmd)
	cmd.SetOut(env.stdout)
	cmd.SetErr(env.stderr)

	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the CLI and exits with the command's status. SIGINT and
// SIGTERM cancel the context every workflow runs under.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(defaultEnvironment()).ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err, os.Stderr))
}

// exitCode prints err to w, unless it only carries a status, and returns
// the process exit code.
func exitCode(err error, w io.Writer) int {
	if err == nil {
		return 0
	}
	if code, ok := errors.GetExitCode(err); ok {
		return code
	}

	if errors.Code(err) != "" {
		fmt.Fprint(w, err.Error())
	} else {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
	return 1
}
