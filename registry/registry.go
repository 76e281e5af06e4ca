// Package registry tracks in-flight x-callback-url requests by
// correlation token and hands each one exactly one outcome.
//
// The operating system may deliver a callback either as an event inside
// the waiting process or through a second, independent invocation of
// this executable. The Registry interface covers both transports: the
// waiter calls Put then Await, the receiver calls Deliver. MemoryRegistry
// backs the same-process case with a single-slot channel per token;
// FileRegistry externalizes the pending table to disk so waiter and
// receiver can be different processes.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	xcallback "github.com/machinefabric/xcallback-go"
)

// DefaultTimeout bounds how long Await blocks when the caller passes a
// non-positive timeout.
const DefaultTimeout = 60 * time.Second

// ErrNotRegistered is returned by Await and Take when the token has no
// pending registration.
var ErrNotRegistered = errors.New("token is not registered")

// ErrAlreadyRegistered is returned by Put when the token is already pending.
var ErrAlreadyRegistered = errors.New("token is already registered")

// NewToken mints a fresh process-unique correlation token. Tokens are
// UUIDv4 strings; they are never persisted beyond one request cycle.
func NewToken() string {
	return uuid.NewString()
}

// ValidToken reports whether t is safe to use as a correlation token.
// Inbound tokens come from arbitrary external callers, so anything that
// is not plain ASCII letters, digits, or '-' is refused before it can
// reach a file name or log line.
func ValidToken(t string) bool {
	if t == "" || len(t) > 64 {
		return false
	}
	for _, c := range t {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		default:
			return false
		}
	}
	return true
}

// Registry is the pending-request table. Per token the lifecycle is
// Put → Deliver (or expiry) → consumed by Await, with exactly one
// resolution accepted; late or repeated deliveries are no-ops.
type Registry interface {
	// Put registers token as pending. Must happen before the request
	// URL is dispatched so a callback can never race the waiter.
	Put(token string) error

	// Await blocks until the token resolves, the timeout elapses, or
	// ctx is cancelled. Expiry yields a timeout Outcome and a nil
	// error; cancellation yields ctx.Err(). The registration is
	// consumed either way.
	Await(ctx context.Context, token string, timeout time.Duration) (xcallback.Outcome, error)

	// Deliver resolves a pending token. It reports false, with no
	// error, when the token is unknown or already resolved — stale and
	// duplicate callbacks are dropped, never fatal.
	Deliver(token string, out xcallback.Outcome) (bool, error)

	// Take removes any registration for token. Called on cleanup paths
	// (dispatch failure, interrupt); removing an absent token is a no-op.
	Take(token string) error
}

func awaitTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}
