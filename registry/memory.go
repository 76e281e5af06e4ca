package registry

import (
	"context"
	"sync"
	"time"

	xcallback "github.com/machinefabric/xcallback-go"
)

// MemoryRegistry resolves callbacks delivered inside the waiting
// process. Each pending token owns a one-slot channel; Deliver fills
// the slot at most once and unregisters the token, so any later
// delivery sees an unknown token and is dropped.
type MemoryRegistry struct {
	mu      sync.Mutex
	pending map[string]chan xcallback.Outcome
}

// NewMemoryRegistry creates an empty in-process registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{pending: make(map[string]chan xcallback.Outcome)}
}

func (m *MemoryRegistry) Put(token string) error {
	if !ValidToken(token) {
		return ErrNotRegistered
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[token]; ok {
		return ErrAlreadyRegistered
	}
	m.pending[token] = make(chan xcallback.Outcome, 1)
	return nil
}

func (m *MemoryRegistry) Deliver(token string, out xcallback.Outcome) (bool, error) {
	m.mu.Lock()
	ch, ok := m.pending[token]
	if ok {
		delete(m.pending, token)
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	ch <- out
	return true, nil
}

func (m *MemoryRegistry) Await(ctx context.Context, token string, timeout time.Duration) (xcallback.Outcome, error) {
	m.mu.Lock()
	ch, ok := m.pending[token]
	m.mu.Unlock()
	if !ok {
		return xcallback.Outcome{}, ErrNotRegistered
	}

	wait := awaitTimeout(timeout)
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case out := <-ch:
		return out, nil
	case <-timer.C:
		m.take(token)
		return xcallback.TimeoutOutcome(wait.String()), nil
	case <-ctx.Done():
		m.take(token)
		return xcallback.Outcome{}, ctx.Err()
	}
}

func (m *MemoryRegistry) Take(token string) error {
	m.take(token)
	return nil
}

func (m *MemoryRegistry) take(token string) {
	m.mu.Lock()
	delete(m.pending, token)
	m.mu.Unlock()
}
