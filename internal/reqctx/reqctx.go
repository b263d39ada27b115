// Package reqctx carries per-request state through the dispatch chain:
// the kernel opcode header, a start timestamp for latency accounting, an
// interrupt hook (Interrupt/Done), and a flag
// recording whether the handler had to go out to the backing store.
//
// We pass this explicitly rather than through a thread-local slot,
// following the convention of building a fresh zerolog.Logger
// per request via With() rather than a global.
package reqctx

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/auriora/edenfs/internal/logging"
)

// Opcode identifies which kernel operation a Context was created for, used
// only for latency-histogram bucketing and log fields.
type Opcode string

// Context is one in-flight request's scratch state. The zero value is not
// useful; construct with New.
type Context struct {
	RequestID uint64
	Opcode    Opcode
	NodeID    uint64
	Uid       uint32
	Gid       uint32
	Pid       uint32

	start time.Time

	didImportFromBackingStore int32 // atomic bool

	interruptMu sync.Mutex
	interrupted bool
	waiters     []chan struct{}
}

// New constructs a Context for a freshly parsed request header.
func New(requestID uint64, opcode Opcode, nodeID uint64, uid, gid, pid uint32) *Context {
	return &Context{
		RequestID: requestID,
		Opcode:    opcode,
		NodeID:    nodeID,
		Uid:       uid,
		Gid:       gid,
		Pid:       pid,
		start:     time.Now(),
	}
}

// Logger returns a logger pre-populated with this request's identifying
// fields, built via a per-call log.With() chain instead of reaching for
// a package global mid-handler.
func (c *Context) Logger() zerolog.Logger {
	return logging.DefaultLogger.With().
		Uint64("requestId", c.RequestID).
		Str("opcode", string(c.Opcode)).
		Uint64("nodeId", c.NodeID).
		Logger()
}

// Elapsed reports wall-clock time since the request header was parsed.
func (c *Context) Elapsed() time.Duration {
	return time.Since(c.start)
}

// MarkImportedFromBackingStore records that this request's handler had to
// fetch data from the object store, so the access log can attribute the
// cost to the requesting process rather than to a cache hit.
func (c *Context) MarkImportedFromBackingStore() {
	atomic.StoreInt32(&c.didImportFromBackingStore, 1)
}

// DidImportFromBackingStore reports whether MarkImportedFromBackingStore
// was ever called on this Context.
func (c *Context) DidImportFromBackingStore() bool {
	return atomic.LoadInt32(&c.didImportFromBackingStore) != 0
}

// Done returns a channel that closes when Interrupt is called on this
// context, or is already closed if Interrupt already ran. The handlers in
// internal/dispatch do not select on it.
func (c *Context) Done() <-chan struct{} {
	c.interruptMu.Lock()
	defer c.interruptMu.Unlock()
	ch := make(chan struct{})
	if c.interrupted {
		close(ch)
		return ch
	}
	c.waiters = append(c.waiters, ch)
	return ch
}

// Interrupt signals every current and future Done() waiter. Delivery is
// best-effort: a handler that already wrote its reply has nothing left to
// cancel, and Interrupt does not know or care whether that happened.
func (c *Context) Interrupt() {
	c.interruptMu.Lock()
	defer c.interruptMu.Unlock()
	if c.interrupted {
		return
	}
	c.interrupted = true
	for _, ch := range c.waiters {
		close(ch)
	}
	c.waiters = nil
}

// IsInterrupted reports whether Interrupt has already run.
func (c *Context) IsInterrupted() bool {
	c.interruptMu.Lock()
	defer c.interruptMu.Unlock()
	return c.interrupted
}

// Tracker is the registry of currently outstanding requests, keyed by
// request id. It also backs the per-opcode latency histogram. Kernel
// INTERRUPT messages are not routed through it: the channel never calls
// Lookup, and the dispatcher ignores the cancel channel go-fuse passes
// to each handler.
type Tracker struct {
	mu       sync.Mutex
	inFlight map[uint64]*Context

	histMu    sync.Mutex
	histogram map[Opcode][]time.Duration
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		inFlight:  make(map[uint64]*Context),
		histogram: make(map[Opcode][]time.Duration),
	}
}

// Register records ctx as outstanding. Callers must call Finish exactly
// once the matching reply has been written.
func (t *Tracker) Register(ctx *Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight[ctx.RequestID] = ctx
}

// Lookup finds the Context for an in-flight request id.
func (t *Tracker) Lookup(requestID uint64) (*Context, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ctx, ok := t.inFlight[requestID]
	return ctx, ok
}

// Finish removes ctx from the outstanding set and records its latency in
// the per-opcode histogram.
func (t *Tracker) Finish(ctx *Context) {
	t.mu.Lock()
	delete(t.inFlight, ctx.RequestID)
	t.mu.Unlock()

	elapsed := ctx.Elapsed()
	t.histMu.Lock()
	t.histogram[ctx.Opcode] = append(t.histogram[ctx.Opcode], elapsed)
	t.histMu.Unlock()
}

// OutstandingCount reports how many requests are currently in flight, used
// by the channel's destructor to wait for drain before releasing resources.
func (t *Tracker) OutstandingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inFlight)
}

// Latencies returns a copy of the recorded durations for opcode, for
// stats reporting.
func (t *Tracker) Latencies(opcode Opcode) []time.Duration {
	t.histMu.Lock()
	defer t.histMu.Unlock()
	out := make([]time.Duration, len(t.histogram[opcode]))
	copy(out, t.histogram[opcode])
	return out
}
