// Package cmd wires up the CLI flags and dispatches to a remote session.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"sshmux/config"
	smerr "sshmux/internal/errors"
	"sshmux/internal/metrics"
	"sshmux/internal/plan"
	"sshmux/internal/remote"
	"sshmux/internal/retry"
	"sshmux/internal/session"
	"sshmux/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X sshmux/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the requested operation.
func Execute(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout, os.Stderr)
}

// invocation is the parsed positional part of the command line.
type invocation struct {
	host string
	op   string
	args []string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.Defaults()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("sshmux", flag.ContinueOnError)
	fs.SetOutput(stderr)
	// Everything after <host> <op> belongs to the operation.
	fs.SetInterspersed(false)

	// ── tools ────────────────────────────────────────────────────
	fs.StringVar(&cfg.SSHPath, "ssh", cfg.SSHPath, "Remote-access tool")
	fs.StringVar(&cfg.SCPPath, "scp", cfg.SCPPath, "Secure-copy tool")
	fs.StringVar(&cfg.ControlDir, "control-dir", cfg.ControlDir, "Directory for control sockets (default: system temp dir)")

	// ── connection ───────────────────────────────────────────────
	fs.StringArrayVarP(&cfg.Options, "option", "o", cfg.Options, "Extra ssh option Key=Value (repeatable)")
	fs.BoolVar(&cfg.ReplaceOptions, "replace-options", cfg.ReplaceOptions, "Use only -o options, dropping the multiplexing defaults")
	fs.StringVarP(&cfg.IdentityFile, "identity", "i", cfg.IdentityFile, "Private key file")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Remote SSH port")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Refuse unknown host keys")
	fs.BoolVar(&cfg.BatchMode, "batch", cfg.BatchMode, "Never prompt (default when stdin is not a terminal)")

	timeoutSec := int(cfg.ConnectTimeout / time.Second)
	fs.IntVarP(&timeoutSec, "connect-timeout", "w", timeoutSec, "Connection timeout in seconds (0 = ssh default)")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print session metrics as JSON on exit")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Print the resolved ssh options and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs, stderr) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs, stderr)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "sshmux %s\n", version)
		return nil
	}

	cfg.ConnectTimeout = time.Duration(timeoutSec) * time.Second
	if !fs.Changed("batch") && !cfg.BatchMode && !config.Interactive() {
		cfg.BatchMode = true
	}

	// ── positional arguments ─────────────────────────────────────
	inv, err := parsePositional(fs.Args())
	if err != nil {
		return err
	}

	var pl *plan.Plan
	if inv.op == "plan" {
		if pl, err = plan.Load(inv.args[0]); err != nil {
			return fmt.Errorf("plan: %w", err)
		}
		if inv.host == "" {
			inv.host = pl.Host
		}
		if inv.host == "" {
			return fmt.Errorf("host required: pass one on the command line or set host: in the plan")
		}
	}
	cfg.Host = inv.host

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)
	for _, w := range cfg.Warnings() {
		logger.Warn("%s", w)
	}

	collector := metrics.New()
	if cfg.Stats {
		defer func() { fmt.Fprintln(stderr, collector.JSON()) }()
	}

	settings := session.Settings{
		SSHPath:    cfg.SSHPath,
		SCPPath:    cfg.SCPPath,
		ControlDir: cfg.ControlDir,
		Discovery:  retry.DiscoveryBackoff(),
	}
	var sessOpts []session.Option
	if cfg.ReplaceOptions {
		sessOpts = append(sessOpts, session.WithOptions(cfg.SSHOptions()))
	} else {
		settings.ExtraOptions = cfg.SSHOptions()
	}
	if f, ok := stderr.(*os.File); ok && cfg.Verbose >= int(util.LogVerbose) {
		settings.ControlOutput = f
	}

	mgr := session.NewManager(settings, session.Deps{Logger: logger, Metrics: collector})

	if cfg.DryRun {
		s := mgr.Create(inv.host, sessOpts...)
		fmt.Fprintf(stdout, "%s %s %s -fNT\n", cfg.SSHPath, strings.Join(s.Options(), " "), s.Host)
		return nil
	}

	work := operation(inv, pl, stdout, stderr, logger)
	return remote.On(ctx, mgr, inv.host, work, sessOpts...)
}

// operation returns the unit of work for inv.  Remote failures become
// ExitErrors so main can use them as the exit status.
func operation(inv invocation, pl *plan.Plan, stdout, stderr io.Writer, logger *util.Logger) remote.WorkFunc {
	return func(ctx context.Context, r *remote.Remote) error {
		switch inv.op {
		case "exec":
			res, err := r.Execute(ctx, strings.Join(inv.args, " "))
			if err != nil {
				return err
			}
			io.WriteString(stdout, res.Stdout) //nolint:errcheck
			io.WriteString(stderr, res.Stderr) //nolint:errcheck
			if !res.Success {
				return &smerr.ExitError{Code: res.Code}
			}
			return nil

		case "test":
			ok, err := r.Test(ctx, strings.Join(inv.args, " "))
			return boolResult(ok, err)

		case "upload":
			ok, err := r.Upload(ctx, inv.args[0], inv.args[1])
			return boolResult(ok, err)

		case "download":
			ok, err := r.Download(ctx, inv.args[0], inv.args[1])
			return boolResult(ok, err)

		case "plan":
			runner := &plan.Runner{Stdout: stdout, Stderr: stderr, Logger: logger}
			rep, err := runner.Run(ctx, r, pl)
			logger.Info("plan %q: %d step(s) run, %d failed", pl.Name, len(rep.Steps), rep.Failed())
			return err
		}
		return fmt.Errorf("unknown operation %q", inv.op)
	}
}

func boolResult(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return &smerr.ExitError{Code: 1}
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

// arity is the number of operation arguments; -1 means one or more.
var arity = map[string]int{ //nolint:gochecknoglobals
	"exec":     -1,
	"test":     -1,
	"upload":   2,
	"download": 2,
	"plan":     1,
}

func parsePositional(remaining []string) (invocation, error) {
	var inv invocation
	if len(remaining) == 0 {
		return inv, fmt.Errorf("host required (use --help for usage)")
	}

	// `sshmux plan file.yaml` may take its host from the plan.
	if remaining[0] == "plan" {
		inv.op, inv.args = "plan", remaining[1:]
	} else {
		inv.host = remaining[0]
		if len(remaining) < 2 {
			return inv, fmt.Errorf("operation required: exec, test, upload, download or plan")
		}
		inv.op, inv.args = remaining[1], remaining[2:]
	}

	n, ok := arity[inv.op]
	if !ok {
		return inv, fmt.Errorf("unknown operation %q", inv.op)
	}
	switch {
	case n < 0 && len(inv.args) == 0:
		return inv, fmt.Errorf("%s: argument required", inv.op)
	case n >= 0 && len(inv.args) != n:
		return inv, fmt.Errorf("%s: expected %d argument(s), got %d", inv.op, n, len(inv.args))
	}
	return inv, nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `sshmux – multiplexed SSH sessions v%s

Runs remote operations over one shared ssh control connection that is
torn down when the operation finishes.

Usage:
  sshmux [options] <host> exec <command...>        Run a command
  sshmux [options] <host> test <condition>         Evaluate a shell condition
  sshmux [options] <host> upload <local> <remote>  Copy a file to the host
  sshmux [options] <host> download <remote> <local> Copy a file from the host
  sshmux [options] [host] plan <file.yaml>         Run a plan of steps

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  sshmux admin@web1 exec uptime
  sshmux web1 test '[ -f /etc/app.conf ]'
  sshmux -i ~/.ssh/deploy web1 upload ./app.tar /tmp/app.tar
  sshmux -o ServerAliveInterval=15 web1 plan deploy.yaml
`)
}
