// Package cli implements the idrac-power command-line interface.
//
// The root command does the work; "version" is its only subcommand. A run
// goes through three steps:
//
//  1. config.Load resolves flags, IDRAC_* variables, the config file and
//     defaults, and config.Validate checks the result
//  2. The single-target or multi-target workflow drives a
//     parallel.Orchestrator with live connectors and tunnels
//  3. The report is rendered in the selected format, printed to stdout and
//     optionally saved with --output
//
// # Signals
//
// Execute installs the only SIGINT/SIGTERM handler. Its context reaches every
// monitoring loop, so CTRL+C ends sampling early and the samples collected so
// far are still reported. In single-target mode on a terminal the user is
// asked first.
//
// # Exit codes
//
// 0 on success. 1 when any target failed, no samples were collected, or the
// configuration was invalid.
package cli
