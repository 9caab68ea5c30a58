// Package coordinator drives one interactive identity search box.
//
// Input is debounced, repeated queries are served from a shared cache and
// only the most recently issued resolution may change what the user sees.
// All state transitions are serialized by a mutex; timers come from an
// injected clock and resolutions run on their own goroutines.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"idsearch/internal/identity/models"
	"idsearch/internal/identity/resolver"
	"idsearch/internal/platform/metrics"
	"idsearch/internal/search/cache"
	"idsearch/pkg/requestcontext"
)

// DefaultDebounce is the quiet period before a query is resolved.
const DefaultDebounce = 300 * time.Millisecond

// Resolver resolves a trimmed, non-empty query into identities.
type Resolver interface {
	Resolve(ctx context.Context, query string) ([]models.Identity, error)
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	resolver   Resolver
	cache      *cache.Cache
	clock      clock.Clock
	debounce   time.Duration
	dedupe     bool
	logger     *slog.Logger
	metrics    *metrics.Metrics
	onSelected func(models.Identity)

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State
	timer *clock.Timer
	// pendingSeq identifies the armed debounce timer. A timer callback whose
	// token no longer matches was superseded and does nothing.
	pendingSeq uint64
	// latest is the newest RequestID. Bumping it without issuing a request
	// invalidates whatever is in flight.
	latest   uint64
	suppress bool
	closed   bool

	subs    map[int]chan State
	nextSub int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) {
		c.clock = clk
	}
}

func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithCache shares a result cache between coordinators.
func WithCache(rc *cache.Cache) Option {
	return func(c *Coordinator) {
		c.cache = rc
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithOnSelected registers the callback run when the user picks an identity.
func WithOnSelected(fn func(models.Identity)) Option {
	return func(c *Coordinator) {
		c.onSelected = fn
	}
}

// WithDeduplicate controls whether results are made unique by identity key
// before they are cached and shown. Enabled by default.
func WithDeduplicate(enabled bool) Option {
	return func(c *Coordinator) {
		c.dedupe = enabled
	}
}

// New creates a coordinator. ctx scopes every resolution it issues and is
// cancelled by Close.
func New(ctx context.Context, r Resolver, opts ...Option) (*Coordinator, error) {
	if r == nil {
		return nil, errors.New("resolver is required")
	}
	c := &Coordinator{
		resolver: r,
		clock:    clock.New(),
		debounce: DefaultDebounce,
		dedupe:   true,
		logger:   slog.Default(),
		subs:     make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = cache.New(cache.WithClock(c.clock), cache.WithMetrics(c.metrics))
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	return c, nil
}

// SetQuery records the current input text.
//
// Directly after a selection a ReasonReset call only records the text, since
// it echoes the chosen label. Otherwise an empty query stops loading at once
// (and clears results on an explicit clear). A cached query publishes its
// results synchronously. Anything else starts loading and restarts the
// debounce window.
func (c *Coordinator) SetQuery(text string, reason InputReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if c.suppress {
		c.suppress = false
		if reason == ReasonReset {
			c.apply(action{kind: actSuppressed, query: text})
			return
		}
	}

	query := strings.TrimSpace(text)
	if query == "" {
		c.stopTimer()
		c.latest++
		c.apply(action{kind: actEmptied, query: text, reason: reason})
		return
	}

	if results, ok := c.cache.Get(query); ok {
		c.stopTimer()
		c.latest++
		c.apply(action{kind: actCacheHit, query: text, reason: reason, results: results})
		return
	}

	c.apply(action{kind: actTyped, query: text, reason: reason})
	c.armDebounce(query)
}

// SelectResult records the user's choice, or the removal of it when identity
// is nil. Pending and in-flight searches are dropped, the result list is
// cleared and, for a real choice, a ReasonReset SetQuery that follows is
// swallowed so echoing the chosen label back does not search again. The selection callback runs
// before SelectResult returns.
func (c *Coordinator) SelectResult(identity *models.Identity) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopTimer()
	c.latest++
	c.suppress = identity != nil
	c.apply(action{kind: actSelected, identity: identity})
	onSelected := c.onSelected
	c.mu.Unlock()

	if identity != nil && onSelected != nil {
		onSelected(*identity)
	}
}

// DismissWalletPrompt clears the missing-wallet flag.
func (c *Coordinator) DismissWalletPrompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.apply(action{kind: actDismissWallet})
}

// Snapshot returns the current state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe returns a channel that receives the current state and then every
// change. A slow reader only misses intermediate states, never the latest.
// The channel is closed by cancel or Close.
func (c *Coordinator) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.state.clone()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Close stops the debounce timer, cancels in-flight resolutions and closes
// all subscriptions. Calls after Close are no-ops.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopTimer()
	c.cancel()
	for id, sub := range c.subs {
		delete(c.subs, id)
		close(sub)
	}
}

// Must be called while holding c.mu.
func (c *Coordinator) armDebounce(query string) {
	c.stopTimer()
	seq := c.pendingSeq
	c.timer = c.clock.AfterFunc(c.debounce, func() {
		c.fire(seq, query)
	})
}

// Must be called while holding c.mu.
func (c *Coordinator) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pendingSeq++
}

func (c *Coordinator) fire(seq uint64, query string) {
	c.mu.Lock()
	if c.closed || seq != c.pendingSeq {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.latest++
	id := c.latest
	c.apply(action{kind: actIssued, requestID: id})
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.IncrementSearchesIssued()
	}
	c.logger.DebugContext(c.ctx, "search issued",
		"session_id", requestcontext.SessionID(c.ctx),
		"request_id", id,
	)
	go c.resolve(id, query)
}

func (c *Coordinator) resolve(id uint64, query string) {
	results, err := c.resolver.Resolve(c.ctx, query)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if id != c.latest {
		if c.metrics != nil {
			c.metrics.IncrementStaleResponses()
		}
		c.logger.DebugContext(c.ctx, "stale search response dropped",
			"session_id", requestcontext.SessionID(c.ctx),
			"request_id", id,
			"latest_request_id", c.latest,
		)
		return
	}

	if err != nil {
		walletMissing := errors.Is(err, resolver.ErrNoIdentityWallet)
		c.logger.WarnContext(c.ctx, "identity search failed",
			"session_id", requestcontext.SessionID(c.ctx),
			"request_id", id,
			"wallet_missing", walletMissing,
			"error", err,
		)
		c.apply(action{kind: actFailed, walletMissing: walletMissing, pending: c.timer != nil})
		return
	}

	if c.dedupe {
		results = models.Dedupe(results)
	}
	c.cache.Put(query, results)
	c.apply(action{kind: actResolved, results: results, pending: c.timer != nil})
}

// apply runs the transition and fans the new state out to subscribers.
// Must be called while holding c.mu.
func (c *Coordinator) apply(a action) {
	c.state = reduce(c.state, a)
	for _, sub := range c.subs {
		select {
		case <-sub:
		default:
		}
		sub <- c.state.clone()
	}
}
