package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/auriora/edenfs/internal/reqctx"
)

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	assert.Equal(t, "edenfs", opts.FsName)
	assert.Equal(t, 1024, opts.MaxBackground)
	assert.False(t, opts.Debug)
}

func TestDrainRequestsReturnsImmediatelyWhenEmpty(t *testing.T) {
	t.Parallel()

	tracker := reqctx.NewTracker()
	ch := &Channel{tracker: tracker, mountPath: "/tmp/unused"}

	assert.True(t, ch.DrainRequests(100*time.Millisecond))
}

func TestDrainRequestsTimesOutWithOutstandingRequest(t *testing.T) {
	t.Parallel()

	tracker := reqctx.NewTracker()
	ctx := reqctx.New(1, "read", 5, 0, 0, 0)
	tracker.Register(ctx)
	ch := &Channel{tracker: tracker, mountPath: "/tmp/unused"}

	assert.False(t, ch.DrainRequests(50*time.Millisecond))

	tracker.Finish(ctx)
	assert.True(t, ch.DrainRequests(100*time.Millisecond))
}
