// Command callback interacts with local applications that expose
// x-callback-url APIs:
//
//	callback bear create title=My%20Note text=First%20line
//
// builds bear://x-callback-url/create?... , asks the OS to open it, and
// blocks until Bear reports success, an error, or cancellation through
// the callback URLs embedded in the request. When the OS delivers a
// callback by invoking this executable again with the callback URL as
// its only argument, that second invocation hands the outcome to the
// waiting one through the on-disk pending registry.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	xcallback "github.com/machinefabric/xcallback-go"
	"github.com/machinefabric/xcallback-go/config"
	"github.com/machinefabric/xcallback-go/launch"
	"github.com/machinefabric/xcallback-go/manifest"
	"github.com/machinefabric/xcallback-go/registry"
)

var version = "0.2.0"

type options struct {
	configPath string
	timeout    time.Duration
	noWait     bool
	dryRun     bool
	verbose    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts := &options{}
	root := newRootCmd(opts, stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		var status *exitStatus
		if errors.As(err, &status) {
			return status.code
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return classifyExit(err)
	}
	return ExitSuccess
}

func newRootCmd(opts *options, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:     "callback <scheme> <action> [key=value]...",
		Short:   "Interact with x-callback-url APIs",
		Long: `Interact with local applications through x-callback-url.

The first two arguments name the target app's URL scheme and the action
to run; the rest are key=value parameters. The tool opens the resulting
URL, waits for the app to call back, and prints the result.`,
		Example: `  callback bear create title=My%20Note text=First%20line
  callback things add title=Buy%20milk`,
		Version: version,
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd.Context(), opts, args, stdout, stderr)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (default: user config dir)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.Flags().DurationVar(&opts.timeout, "timeout", 0, "how long to wait for a callback (default from config)")
	root.Flags().BoolVar(&opts.noWait, "no-wait", false, "fire the request without waiting for a callback")
	root.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the built URL instead of opening it")

	root.AddCommand(newAppsCmd(opts, stdout))
	return root
}

func runRoot(ctx context.Context, opts *options, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger := setupLogging(stderr, cfg.LogLevel, opts.verbose)

	// A single URL-shaped argument is an inbound callback delivered by
	// the OS invoking this executable a second time.
	if len(args) == 1 && strings.Contains(args[0], "://") {
		return receive(cfg, logger, args[0])
	}
	if len(args) == 0 {
		return &xcallback.ParamError{Kind: xcallback.ParamErrMissingScheme}
	}
	if len(args) < 2 {
		return &xcallback.ParamError{Kind: xcallback.ParamErrMissingAction}
	}

	params, err := xcallback.ParseParams(args[2:])
	if err != nil {
		return err
	}
	req, err := xcallback.NewRequest(args[0], args[1], params)
	if err != nil {
		return err
	}

	if err := validateAgainstManifest(cfg, req); err != nil {
		return err
	}

	if opts.dryRun {
		token := registry.NewToken()
		fmt.Fprintln(stdout, req.BuildURL(token, cfg.Scheme))
		return nil
	}

	reg, err := openRegistry(cfg, logger)
	if err != nil {
		return err
	}
	reg.Sweep(registry.DefaultSweepAge)

	session := launch.NewSession(reg, launch.WithLogger(logger))

	if opts.noWait {
		_, err := session.Dispatch(ctx, req, cfg.Scheme)
		return err
	}

	timeout := cfg.Timeout()
	if opts.timeout > 0 {
		timeout = opts.timeout
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	outcome, err := session.Run(ctx, req, cfg.Scheme, timeout)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(stderr, "interrupted while waiting for a callback")
			return &exitStatus{code: ExitCancelled}
		}
		return err
	}
	return &exitStatus{code: report(stdout, stderr, outcome)}
}

// receive handles the second-invocation role: decode the inbound
// callback URL and resolve the pending token. Malformed or stray
// callbacks are logged and dropped; the receiver itself always
// succeeds unless the registry is unusable.
func receive(cfg config.Config, logger *slog.Logger, rawURL string) error {
	token, outcome, err := xcallback.ParseInbound(rawURL, cfg.Scheme)
	if err != nil {
		logger.Warn("ignoring invalid callback", "error", err)
		return nil
	}
	reg, err := openRegistry(cfg, logger)
	if err != nil {
		return err
	}
	delivered, err := reg.Deliver(token, outcome)
	if err != nil {
		return err
	}
	if !delivered {
		logger.Debug("callback had no pending request", "token", token)
	}
	return nil
}

func openRegistry(cfg config.Config, logger *slog.Logger) (*registry.FileRegistry, error) {
	dir := cfg.RegistryDir
	if dir == "" {
		var err error
		dir, err = registry.DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	return registry.NewFileRegistry(dir, registry.WithLogger(logger))
}

func validateAgainstManifest(cfg config.Config, req *xcallback.Request) error {
	path := cfg.ManifestPath
	if path == "" {
		var err error
		path, err = manifest.DefaultPath()
		if err != nil {
			return nil
		}
	}
	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	return m.Validate(req.Scheme(), req.Action(), req.Params())
}

func newAppsCmd(opts *options, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "List the apps and actions described in the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			path := cfg.ManifestPath
			if path == "" {
				if path, err = manifest.DefaultPath(); err != nil {
					return err
				}
			}
			m, err := manifest.Load(path)
			if err != nil {
				return err
			}
			if m == nil || len(m.Apps) == 0 {
				fmt.Fprintf(stdout, "no manifest at %s\n", path)
				return nil
			}
			printManifest(stdout, m)
			return nil
		},
	}
}

// exitStatus carries a process exit code through cobra's error return
// after all output has already been written.
type exitStatus struct {
	code int
}

func (e *exitStatus) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
