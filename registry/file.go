package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"

	xcallback "github.com/machinefabric/xcallback-go"
)

const (
	pendingSuffix = ".pending"
	outcomeSuffix = ".outcome"

	// DefaultPollInterval is how often a waiting process re-checks the
	// registry directory for a delivered outcome.
	DefaultPollInterval = 50 * time.Millisecond

	// DefaultSweepAge is how old an entry must be before Sweep removes
	// it as stale. Entries only outlive their process after a crash, so
	// anything this old is garbage.
	DefaultSweepAge = 24 * time.Hour
)

// pendingEntry is the durable record written at registration time.
type pendingEntry struct {
	Token     string `cbor:"1,keyasint"`
	CreatedAt int64  `cbor:"2,keyasint"`
	PID       int    `cbor:"3,keyasint"`
}

// FileRegistry is the cross-process pending-request table. The waiting
// process writes <token>.pending at registration; the receiving process
// (a second invocation of this executable) writes <token>.outcome via
// an atomic rename; the waiter polls until the outcome file appears or
// its deadline passes, then consumes both files.
//
// One resolution per token holds because Deliver refuses to overwrite
// an existing outcome file and requires a pending file to exist.
type FileRegistry struct {
	dir  string
	poll time.Duration
	log  *slog.Logger
}

// FileRegistryOption configures a FileRegistry.
type FileRegistryOption func(*FileRegistry)

// WithPollInterval overrides the Await polling interval.
func WithPollInterval(d time.Duration) FileRegistryOption {
	return func(r *FileRegistry) {
		if d > 0 {
			r.poll = d
		}
	}
}

// WithLogger attaches a logger for discarded deliveries and sweep activity.
func WithLogger(log *slog.Logger) FileRegistryOption {
	return func(r *FileRegistry) {
		if log != nil {
			r.log = log
		}
	}
}

// DefaultDir returns the per-user registry directory,
// <user cache dir>/callback/pending.
func DefaultDir() (string, error) {
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve user cache dir: %w", err)
	}
	return filepath.Join(cache, "callback", "pending"), nil
}

// NewFileRegistry opens (creating if needed) a registry rooted at dir.
func NewFileRegistry(dir string, opts ...FileRegistryOption) (*FileRegistry, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	r := &FileRegistry{
		dir:  dir,
		poll: DefaultPollInterval,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Dir returns the registry's backing directory.
func (r *FileRegistry) Dir() string { return r.dir }

func (r *FileRegistry) Put(token string) error {
	if !ValidToken(token) {
		return ErrNotRegistered
	}
	path := r.path(token, pendingSuffix)
	if _, err := os.Stat(path); err == nil {
		return ErrAlreadyRegistered
	}
	entry := pendingEntry{
		Token:     token,
		CreatedAt: time.Now().Unix(),
		PID:       os.Getpid(),
	}
	data, err := cbor.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode pending entry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write pending entry: %w", err)
	}
	return nil
}

func (r *FileRegistry) Deliver(token string, out xcallback.Outcome) (bool, error) {
	if !ValidToken(token) {
		r.log.Debug("discarding delivery for invalid token")
		return false, nil
	}
	if _, err := os.Stat(r.path(token, pendingSuffix)); err != nil {
		r.log.Debug("discarding delivery for unknown token", "token", token)
		return false, nil
	}
	final := r.path(token, outcomeSuffix)
	if _, err := os.Stat(final); err == nil {
		r.log.Debug("discarding duplicate delivery", "token", token)
		return false, nil
	}

	data, err := cbor.Marshal(out)
	if err != nil {
		return false, fmt.Errorf("encode outcome: %w", err)
	}
	tmp, err := os.CreateTemp(r.dir, token+".tmp-*")
	if err != nil {
		return false, fmt.Errorf("write outcome: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return false, fmt.Errorf("write outcome: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return false, fmt.Errorf("write outcome: %w", err)
	}
	// Rename is atomic on the same filesystem: the waiter either sees
	// no outcome file or a complete one, never a partial write.
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return false, fmt.Errorf("publish outcome: %w", err)
	}
	return true, nil
}

func (r *FileRegistry) Await(ctx context.Context, token string, timeout time.Duration) (xcallback.Outcome, error) {
	if _, err := os.Stat(r.path(token, pendingSuffix)); err != nil {
		return xcallback.Outcome{}, ErrNotRegistered
	}

	wait := awaitTimeout(timeout)
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		out, ok, err := r.tryConsume(token)
		if err != nil {
			r.Take(token)
			return xcallback.Outcome{}, err
		}
		if ok {
			return out, nil
		}
		if time.Now().After(deadline) {
			r.Take(token)
			return xcallback.TimeoutOutcome(wait.String()), nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			r.Take(token)
			return xcallback.Outcome{}, ctx.Err()
		}
	}
}

// tryConsume reads and removes the outcome files for token, reporting
// whether an outcome had been delivered.
func (r *FileRegistry) tryConsume(token string) (xcallback.Outcome, bool, error) {
	data, err := os.ReadFile(r.path(token, outcomeSuffix))
	if errors.Is(err, fs.ErrNotExist) {
		return xcallback.Outcome{}, false, nil
	}
	if err != nil {
		return xcallback.Outcome{}, false, fmt.Errorf("read outcome: %w", err)
	}
	var out xcallback.Outcome
	if err := cbor.Unmarshal(data, &out); err != nil {
		return xcallback.Outcome{}, false, fmt.Errorf("decode outcome: %w", err)
	}
	r.Take(token)
	return out, true, nil
}

func (r *FileRegistry) Take(token string) error {
	if !ValidToken(token) {
		return nil
	}
	os.Remove(r.path(token, pendingSuffix))
	os.Remove(r.path(token, outcomeSuffix))
	return nil
}

// Sweep removes registry entries older than maxAge. Stale entries are
// left behind only when a waiting process died without cleanup; sweeping
// keeps them from being misattributed to a future request.
func (r *FileRegistry) Sweep(maxAge time.Duration) error {
	if maxAge <= 0 {
		maxAge = DefaultSweepAge
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("scan registry dir: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			r.log.Debug("sweeping stale registry entry", "name", e.Name())
			os.Remove(filepath.Join(r.dir, e.Name()))
		}
	}
	return nil
}

func (r *FileRegistry) path(token, suffix string) string {
	return filepath.Join(r.dir, token+suffix)
}
