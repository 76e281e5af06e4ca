package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	xcallback "github.com/machinefabric/xcallback-go"
	"github.com/machinefabric/xcallback-go/launch"
	"github.com/machinefabric/xcallback-go/manifest"
)

// Process exit codes. Stable: scripts key off them.
const (
	ExitSuccess       = 0 // target reported success
	ExitTargetError   = 1 // target reported an error
	ExitUsage         = 2 // malformed input or configuration
	ExitCancelled     = 3 // target reported cancel, or the wait was interrupted
	ExitTimeout       = 4 // no callback before the deadline
	ExitLaunchFailure = 5 // the OS could not dispatch the request
)

// report writes the outcome to the user and returns the exit code.
// Success prints the target's result parameters as key=value lines,
// skipping empty values the way the x-callback-url ecosystem does.
func report(stdout, stderr io.Writer, out xcallback.Outcome) int {
	switch out.Status {
	case xcallback.StatusSuccess:
		for _, p := range out.Params {
			if p.Value != "" {
				fmt.Fprintf(stdout, "%s=%s\n", p.Key, p.Value)
			}
		}
		return ExitSuccess
	case xcallback.StatusCancel:
		fmt.Fprintln(stderr, "cancelled by the target app")
		return ExitCancelled
	default:
		fmt.Fprintf(stderr, "error %s: %s\n", out.Code, out.Message)
		if out.IsTimeout() {
			return ExitTimeout
		}
		return ExitTargetError
	}
}

// classifyExit maps an error that aborted the invocation before any
// outcome existed to its exit code.
func classifyExit(err error) int {
	var paramErr *xcallback.ParamError
	if errors.As(err, &paramErr) {
		return ExitUsage
	}
	var validationErr *manifest.ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsage
	}
	var launchErr *launch.Error
	if errors.As(err, &launchErr) {
		return ExitLaunchFailure
	}
	return ExitTargetError
}

func printManifest(w io.Writer, m *manifest.Manifest) {
	schemes := make([]string, 0, len(m.Apps))
	for scheme := range m.Apps {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCHEME\tACTION\tDESCRIPTION")
	for _, scheme := range schemes {
		app := m.Apps[scheme]
		for _, action := range m.Actions(scheme) {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", scheme, action, app.Actions[action].Description)
		}
	}
	tw.Flush()
}
