package reqctx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInterruptClosesExistingAndFutureDoneChannels(t *testing.T) {
	t.Parallel()

	ctx := New(1, "read", 5, 0, 0, 0)
	before := ctx.Done()

	select {
	case <-before:
		t.Fatal("Done channel closed before Interrupt was called")
	default:
	}

	ctx.Interrupt()

	select {
	case <-before:
	case <-time.After(time.Second):
		t.Fatal("Done channel did not close after Interrupt")
	}

	after := ctx.Done()
	select {
	case <-after:
	default:
		t.Fatal("Done() called after Interrupt should return an already-closed channel")
	}

	assert.True(t, ctx.IsInterrupted())
}

func TestInterruptIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := New(1, "write", 5, 0, 0, 0)
	ctx.Interrupt()
	assert.NotPanics(t, ctx.Interrupt)
}

func TestMarkImportedFromBackingStore(t *testing.T) {
	t.Parallel()

	ctx := New(1, "lookup", 5, 0, 0, 0)
	assert.False(t, ctx.DidImportFromBackingStore())

	ctx.MarkImportedFromBackingStore()
	assert.True(t, ctx.DidImportFromBackingStore())
}

func TestTrackerRegisterLookupFinish(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	ctx := New(42, "read", 1, 0, 0, 0)

	tracker.Register(ctx)
	assert.Equal(t, 1, tracker.OutstandingCount())

	found, ok := tracker.Lookup(42)
	require := assert.New(t)
	require.True(ok)
	require.Equal(ctx, found)

	tracker.Finish(ctx)
	assert.Equal(t, 0, tracker.OutstandingCount())

	latencies := tracker.Latencies("read")
	assert.Len(t, latencies, 1)
}

func TestTrackerLookupMissingRequest(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	_, ok := tracker.Lookup(999)
	assert.False(t, ok)
}
