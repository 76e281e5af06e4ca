// Package launch hands built x-callback-url requests to the operating
// system's scheme dispatcher and couples dispatch with callback
// registration so an inbound callback can never race the waiter.
package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	xcallback "github.com/machinefabric/xcallback-go"
	"github.com/machinefabric/xcallback-go/registry"
)

// ErrorKind classifies dispatch failures.
type ErrorKind int

const (
	// ErrorKindNoHandler means the OS dispatcher ran but refused the
	// URL, typically because no application is registered for its scheme.
	ErrorKindNoHandler ErrorKind = iota
	// ErrorKindSpawnFailed means the dispatcher process could not be
	// started at all.
	ErrorKindSpawnFailed
)

// Error reports a failed dispatch. Dispatch success only means the OS
// accepted the URL, never that the target application acted on it.
type Error struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrorKindNoHandler:
		return fmt.Sprintf("no handler registered for %q: %v", e.URL, e.Err)
	case ErrorKindSpawnFailed:
		return fmt.Sprintf("could not start the URL dispatcher for %q: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("dispatch failed for %q: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// OpenFunc dispatches a URL to the operating system. Open is the
// platform implementation; tests substitute their own.
type OpenFunc func(ctx context.Context, url string) error

// Open dispatches url through the platform's scheme-dispatch command
// (open, xdg-open, or rundll32 depending on GOOS). Fire and forget:
// the dispatcher exiting zero is all the confirmation the OS gives.
func Open(ctx context.Context, url string) error {
	return runDispatcher(ctx, dispatchCommand(ctx, url), url)
}

func runDispatcher(ctx context.Context, cmd *exec.Cmd, url string) error {
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &Error{Kind: ErrorKindNoHandler, URL: url, Err: err}
		}
		return &Error{Kind: ErrorKindSpawnFailed, URL: url, Err: err}
	}
	return nil
}

// Session runs one request end to end: mint a token, register it,
// dispatch the URL, and block for the outcome. The registration is
// removed on every exit path, so a dispatch failure or interrupt never
// leaks a pending entry that a later invocation could misattribute.
type Session struct {
	reg  registry.Registry
	open OpenFunc
	log  *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithOpener substitutes the OS dispatch function.
func WithOpener(open OpenFunc) SessionOption {
	return func(s *Session) {
		if open != nil {
			s.open = open
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(log *slog.Logger) SessionOption {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// NewSession creates a session over the given pending-request registry.
func NewSession(reg registry.Registry, opts ...SessionOption) *Session {
	s := &Session{reg: reg, open: Open, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run dispatches req and blocks until its outcome resolves, the timeout
// elapses, or ctx is cancelled.
func (s *Session) Run(ctx context.Context, req *xcallback.Request, listenerScheme string, timeout time.Duration) (xcallback.Outcome, error) {
	token := registry.NewToken()
	if err := s.reg.Put(token); err != nil {
		return xcallback.Outcome{}, fmt.Errorf("register pending request: %w", err)
	}
	defer s.reg.Take(token)

	url := req.BuildURL(token, listenerScheme)
	s.log.Debug("dispatching request", "url", url, "token", token)
	if err := s.open(ctx, url); err != nil {
		return xcallback.Outcome{}, err
	}
	return s.reg.Await(ctx, token, timeout)
}

// Dispatch fires req without waiting for a callback. No token is
// registered; the callback parameters still point at listenerScheme so
// a target that insists on calling back has somewhere to go.
func (s *Session) Dispatch(ctx context.Context, req *xcallback.Request, listenerScheme string) (string, error) {
	token := registry.NewToken()
	url := req.BuildURL(token, listenerScheme)
	s.log.Debug("dispatching request without waiting", "url", url)
	if err := s.open(ctx, url); err != nil {
		return "", err
	}
	return url, nil
}
