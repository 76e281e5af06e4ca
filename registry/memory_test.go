package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xcallback "github.com/machinefabric/xcallback-go"
)

func TestMemoryDeliverResolvesAwaitOnce(t *testing.T) {
	reg := NewMemoryRegistry()
	token := NewToken()
	require.NoError(t, reg.Put(token))

	want := xcallback.SuccessOutcome([]xcallback.Param{{Key: "id", Value: "42"}})
	go func() {
		time.Sleep(10 * time.Millisecond)
		delivered, err := reg.Deliver(token, want)
		assert.NoError(t, err)
		assert.True(t, delivered)
	}()

	out, err := reg.Await(context.Background(), token, time.Second)
	require.NoError(t, err)
	assert.Equal(t, want, out)

	// A second delivery for the same token is a no-op.
	delivered, err := reg.Deliver(token, xcallback.CancelOutcome())
	require.NoError(t, err)
	assert.False(t, delivered)
}

func TestMemoryDeliverUnknownToken(t *testing.T) {
	reg := NewMemoryRegistry()
	delivered, err := reg.Deliver(NewToken(), xcallback.CancelOutcome())
	require.NoError(t, err)
	assert.False(t, delivered)
}

func TestMemoryAwaitTimeout(t *testing.T) {
	reg := NewMemoryRegistry()
	token := NewToken()
	require.NoError(t, reg.Put(token))

	out, err := reg.Await(context.Background(), token, 20*time.Millisecond)
	require.NoError(t, err, "expiry is a designed outcome, not an error")
	assert.True(t, out.IsTimeout())

	// The registration was consumed by the expiry.
	delivered, err := reg.Deliver(token, xcallback.CancelOutcome())
	require.NoError(t, err)
	assert.False(t, delivered)
}

func TestMemoryAwaitContextCancelled(t *testing.T) {
	reg := NewMemoryRegistry()
	token := NewToken()
	require.NoError(t, reg.Put(token))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := reg.Await(ctx, token, time.Second)
	assert.ErrorIs(t, err, context.Canceled)

	delivered, _ := reg.Deliver(token, xcallback.CancelOutcome())
	assert.False(t, delivered)
}

func TestMemoryAwaitUnregistered(t *testing.T) {
	reg := NewMemoryRegistry()
	_, err := reg.Await(context.Background(), NewToken(), time.Second)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestMemoryPutDuplicate(t *testing.T) {
	reg := NewMemoryRegistry()
	token := NewToken()
	require.NoError(t, reg.Put(token))
	assert.ErrorIs(t, reg.Put(token), ErrAlreadyRegistered)
}

func TestMemoryTakeRemovesRegistration(t *testing.T) {
	reg := NewMemoryRegistry()
	token := NewToken()
	require.NoError(t, reg.Put(token))
	require.NoError(t, reg.Take(token))

	delivered, err := reg.Deliver(token, xcallback.CancelOutcome())
	require.NoError(t, err)
	assert.False(t, delivered)

	// Taking an absent token is a no-op.
	assert.NoError(t, reg.Take(token))
}
