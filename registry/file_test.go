package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xcallback "github.com/machinefabric/xcallback-go"
)

func newTestFileRegistry(t *testing.T, dir string) *FileRegistry {
	t.Helper()
	reg, err := NewFileRegistry(dir, WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	return reg
}

// The waiter and the receiver are separate OS processes in production;
// two registry instances over the same directory model that here.
func TestFileRegistryCrossProcessDelivery(t *testing.T) {
	dir := t.TempDir()
	waiter := newTestFileRegistry(t, dir)
	receiver := newTestFileRegistry(t, dir)

	token := NewToken()
	require.NoError(t, waiter.Put(token))

	want := xcallback.SuccessOutcome([]xcallback.Param{
		{Key: "id", Value: "42"},
		{Key: "title", Value: "My Note"},
	})
	go func() {
		time.Sleep(15 * time.Millisecond)
		delivered, err := receiver.Deliver(token, want)
		assert.NoError(t, err)
		assert.True(t, delivered)
	}()

	out, err := waiter.Await(context.Background(), token, time.Second)
	require.NoError(t, err)
	assert.Equal(t, want, out)

	// Both files are consumed; nothing is left to misattribute.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileRegistryDuplicateDelivery(t *testing.T) {
	dir := t.TempDir()
	reg := newTestFileRegistry(t, dir)

	token := NewToken()
	require.NoError(t, reg.Put(token))

	delivered, err := reg.Deliver(token, xcallback.SuccessOutcome(nil))
	require.NoError(t, err)
	assert.True(t, delivered)

	delivered, err = reg.Deliver(token, xcallback.CancelOutcome())
	require.NoError(t, err)
	assert.False(t, delivered, "second delivery must be dropped")

	out, err := reg.Await(context.Background(), token, time.Second)
	require.NoError(t, err)
	assert.Equal(t, xcallback.StatusSuccess, out.Status)
}

func TestFileRegistryDeliverUnknownToken(t *testing.T) {
	reg := newTestFileRegistry(t, t.TempDir())
	delivered, err := reg.Deliver(NewToken(), xcallback.CancelOutcome())
	require.NoError(t, err)
	assert.False(t, delivered)
}

func TestFileRegistryDeliverRefusesUnsafeToken(t *testing.T) {
	reg := newTestFileRegistry(t, t.TempDir())
	for _, token := range []string{"", "../escape", "a/b", "tok en"} {
		delivered, err := reg.Deliver(token, xcallback.CancelOutcome())
		require.NoError(t, err, token)
		assert.False(t, delivered, token)
	}
}

func TestFileRegistryAwaitTimeout(t *testing.T) {
	dir := t.TempDir()
	reg := newTestFileRegistry(t, dir)

	token := NewToken()
	require.NoError(t, reg.Put(token))

	out, err := reg.Await(context.Background(), token, 25*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, out.IsTimeout())

	// Expiry removes the pending entry; a late callback is now stray.
	delivered, err := reg.Deliver(token, xcallback.SuccessOutcome(nil))
	require.NoError(t, err)
	assert.False(t, delivered)
}

func TestFileRegistryAwaitCancelled(t *testing.T) {
	dir := t.TempDir()
	reg := newTestFileRegistry(t, dir)

	token := NewToken()
	require.NoError(t, reg.Put(token))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := reg.Await(ctx, token, time.Second)
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "interrupt must clean up the pending entry")
}

func TestFileRegistryAwaitUnregistered(t *testing.T) {
	reg := newTestFileRegistry(t, t.TempDir())
	_, err := reg.Await(context.Background(), NewToken(), time.Second)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestFileRegistryPutDuplicate(t *testing.T) {
	reg := newTestFileRegistry(t, t.TempDir())
	token := NewToken()
	require.NoError(t, reg.Put(token))
	assert.ErrorIs(t, reg.Put(token), ErrAlreadyRegistered)
}

func TestFileRegistrySweep(t *testing.T) {
	dir := t.TempDir()
	reg := newTestFileRegistry(t, dir)

	stale := NewToken()
	fresh := NewToken()
	require.NoError(t, reg.Put(stale))
	require.NoError(t, reg.Put(fresh))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, stale+".pending"), old, old))

	require.NoError(t, reg.Sweep(24*time.Hour))

	_, err := os.Stat(filepath.Join(dir, stale+".pending"))
	assert.True(t, os.IsNotExist(err), "stale entry should be swept")
	_, err = os.Stat(filepath.Join(dir, fresh+".pending"))
	assert.NoError(t, err, "fresh entry should survive")
}
