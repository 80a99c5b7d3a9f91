package cli

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/rileyhilliard/idrac-power/internal/config"
	"github.com/rileyhilliard/idrac-power/internal/errors"
	"github.com/rileyhilliard/idrac-power/internal/monitor"
	"github.com/rileyhilliard/idrac-power/internal/parallel"
	"github.com/rileyhilliard/idrac-power/internal/report"
	"github.com/rileyhilliard/idrac-power/internal/target"
	"github.com/rileyhilliard/idrac-power/internal/ui"
)

// measure resolves the configuration and runs the single-target or the
// multi-target workflow.
func (e *environment) measure(ctx context.Context, flags *pflag.FlagSet, configPath string) error {
	cfg, err := config.Load(configPath, flags)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if cfg.NoTunnel && cfg.Jumphost != "" && !cfg.Quiet {
		ui.PrintWarning(e.stderr, "--no-tunnel specified, ignoring --jumphost")
	}

	pc := e.parallelConfig(cfg)
	if cfg.MultiTarget() {
		return e.measureMany(ctx, cfg, pc)
	}
	return e.measureOne(ctx, cfg, pc)
}

func (e *environment) parallelConfig(cfg *config.Config) parallel.Config {
	pc := parallel.DefaultConfig()
	pc.MaxWorkers = cfg.MaxWorkers
	pc.TunnelDefaults = cfg.TunnelDefaults()
	pc.NoTunnel = cfg.NoTunnel
	pc.VerifySSL = cfg.VerifySSL
	pc.Timeout = cfg.Timeout
	pc.Logger = e.log

	// Validate has already rejected a malformed window.
	if d, interval, ok, _ := cfg.MonitorWindow(); ok {
		pc.Monitor = &parallel.Monitoring{Duration: d, Interval: interval}
	}
	return pc
}

// measureOne takes a reading or monitors a single controller. After an
// interrupted monitoring run on a terminal the user decides whether the
// partial samples are reported.
func (e *environment) measureOne(ctx context.Context, cfg *config.Config, pc parallel.Config) error {
	t := cfg.Target()
	if err := t.Validate(); err != nil {
		return err
	}

	interactive := !cfg.Quiet && e.interactive()
	tunnels := e.tunnels(cfg.Timeout)

	var spinner *ui.Spinner
	if !cfg.Quiet {
		if pc.Monitor != nil {
			progress := ui.NewMonitorProgress(e.stderr, interactive)
			pc.Reporter = func(target.Target) monitor.Reporter { return progress.Reporter("") }
		} else {
			spinner = ui.NewSpinner(e.stderr, "Reading power from "+t.Address, interactive)
		}
		// An animated spinner owns the line; the tunnel notice would break it.
		if spinner == nil || !interactive {
			tunnels = announcingTunnels{TunnelOpener: tunnels, w: e.stderr}
		}
	}

	orch := parallel.NewOrchestrator(pc, e.connector, tunnels)

	if spinner != nil {
		spinner.Start()
	}
	out := orch.RunTarget(ctx, t)
	if spinner != nil {
		if out.Success {
			spinner.Success()
		} else {
			spinner.Fail("")
		}
	}
	if !out.Success {
		return out.Err
	}

	if out.Report != nil {
		if out.Report.Interrupted && interactive {
			keep, err := e.confirm(ui.PartialResultsPrompt(out.Report.SampleCount), true)
			if err != nil || !keep {
				fmt.Fprintln(e.stderr, "Partial results discarded.")
				return nil
			}
		}
		return e.emit(cfg, func(f report.Formatter) (string, error) { return f.Monitoring(out.Report) })
	}
	return e.emit(cfg, func(f report.Formatter) (string, error) { return f.Reading(out.Reading) })
}

// measureMany runs every target in the servers file. Any failed target makes
// the command exit 1 after the report is printed.
func (e *environment) measureMany(ctx context.Context, cfg *config.Config, pc parallel.Config) error {
	targets, err := target.LoadCSV(cfg.ServersFile)
	if err != nil {
		return err
	}

	var progress *ui.TargetProgress
	if !cfg.Quiet {
		// Monitoring reporters write lines to stderr too, so only single
		// readings get the in-place display.
		live := e.interactive() && pc.Monitor == nil
		progress = ui.NewTargetProgress(e.stderr, targets, live)
		pc.Events = progress
		if pc.Monitor != nil {
			mp := ui.NewMonitorProgress(e.stderr, false)
			pc.Reporter = func(t target.Target) monitor.Reporter { return mp.Reporter(t.Name) }
		}
		progress.Start()
	}

	result := parallel.NewOrchestrator(pc, e.connector, e.tunnels(cfg.Timeout)).Run(ctx, targets)
	if progress != nil {
		progress.Stop()
	}
	e.log.Debug("run %s finished in %s: %d ok, %d failed", result.RunID, result.Duration, result.Passed, result.Failed)

	if err := e.emit(cfg, func(f report.Formatter) (string, error) { return f.Multi(result) }); err != nil {
		return err
	}
	if !result.Success() {
		return errors.NewExitError(1)
	}
	return nil
}

// emit renders the report for stdout and, with --output, for the file.
// File copies never carry colour.
func (e *environment) emit(cfg *config.Config, render func(report.Formatter) (string, error)) error {
	screen, err := report.NewRegistry(report.NewTextFormatter(e.stdout)).Get(cfg.Format)
	if err != nil {
		return err
	}
	body, err := render(screen)
	if err != nil {
		return err
	}

	if cfg.Output != "" {
		file, err := report.NewRegistry(report.NewPlainTextFormatter()).Get(cfg.Format)
		if err != nil {
			return err
		}
		content, err := render(file)
		if err != nil {
			return err
		}
		path := report.OutputPath(cfg.Output, file)
		if err := report.WriteFile(path, content); err != nil {
			return err
		}
		if !cfg.Quiet {
			fmt.Fprintf(e.stderr, "Report saved to: %s\n", path)
		}
	}

	fmt.Fprintln(e.stdout, body)
	return nil
}
