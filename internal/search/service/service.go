package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"idsearch/internal/identity/models"
	"idsearch/internal/identity/resolver"
	"idsearch/internal/platform/config"
	"idsearch/internal/platform/metrics"
	"idsearch/internal/search/cache"
	"idsearch/internal/search/coordinator"
	"idsearch/internal/search/events"
	dErrors "idsearch/pkg/domain-errors"
	pstrings "idsearch/pkg/platform/strings"
	"idsearch/pkg/requestcontext"
)

const (
	maxQueryLength     = 256
	resolveConcurrency = 8

	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// HealthReporter reports whether the resolver is failing consistently.
type HealthReporter interface {
	Degraded() bool
}

// DependencyCheck checks an optional dependency such as Redis or Kafka.
type DependencyCheck func(ctx context.Context) error

// Health is the aggregated service state.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Service answers one-shot searches and identity card lookups, and opens live
// search sessions. All of them share one result cache.
type Service struct {
	resolver  coordinator.Resolver
	cache     *cache.Cache
	cfg       config.Search
	publisher events.Publisher
	health    HealthReporter
	checks    map[string]DependencyCheck
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		s.clock = clk
	}
}

// WithPublisher sets where selection events go. Defaults to the log.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithHealthReporter(h HealthReporter) Option {
	return func(s *Service) {
		s.health = h
	}
}

// WithDependency adds a named check to Health.
func WithDependency(name string, check DependencyCheck) Option {
	return func(s *Service) {
		s.checks[name] = check
	}
}

// New creates the service.
func New(r coordinator.Resolver, cfg config.Search, opts ...Option) (*Service, error) {
	if r == nil {
		return nil, errors.New("resolver is required")
	}
	s := &Service{
		resolver: r,
		cfg:      cfg,
		checks:   make(map[string]DependencyCheck),
		clock:    clock.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = events.NewLogPublisher(s.logger)
	}
	if s.cfg.MaxBatch <= 0 {
		s.cfg.MaxBatch = 50
	}
	s.cache = cache.New(
		cache.WithCapacity(cfg.CacheCapacity),
		cache.WithTTL(cfg.CacheTTL),
		cache.WithClock(s.clock),
		cache.WithMetrics(s.metrics),
	)
	return s, nil
}

// Search resolves query once, consulting the shared cache first.
func (s *Service) Search(ctx context.Context, query string) ([]models.Identity, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "query is required")
	}
	if len(q) > maxQueryLength {
		return nil, dErrors.New(dErrors.CodeBadRequest, "query is too long")
	}

	if results, ok := s.cache.Get(q); ok {
		return results, nil
	}

	if s.metrics != nil {
		s.metrics.IncrementSearchesIssued()
	}
	results, err := s.resolver.Resolve(ctx, q)
	if err != nil {
		s.logger.WarnContext(ctx, "identity search failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, translateError(err)
	}
	if s.cfg.Deduplicate {
		results = models.Dedupe(results)
	}
	s.cache.Put(q, results)
	if results == nil {
		results = []models.Identity{}
	}
	return results, nil
}

// Resolve returns the identity card for an identity key. A key nobody has
// certified yields the unknown-identity placeholder carrying that key.
func (s *Service) Resolve(ctx context.Context, identityKey string) (models.Identity, error) {
	key := strings.TrimSpace(identityKey)
	if !models.IsIdentityKey(key) {
		return models.Identity{}, dErrors.New(dErrors.CodeBadRequest, "invalid identity key")
	}
	results, err := s.Search(ctx, key)
	if err != nil {
		return models.Identity{}, err
	}
	if len(results) == 0 {
		return models.UnknownIdentity(key), nil
	}
	return results[0], nil
}

// ResolveMany resolves a batch of identity keys in parallel. Duplicate keys
// are resolved once; the output follows the order of first appearance.
func (s *Service) ResolveMany(ctx context.Context, identityKeys []string) ([]models.Identity, error) {
	keys := pstrings.DedupeAndTrim(identityKeys)
	if len(keys) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "identity_keys must not be empty")
	}
	if len(keys) > s.cfg.MaxBatch {
		return nil, dErrors.New(dErrors.CodeBadRequest, "too many identity keys")
	}
	for _, k := range keys {
		if !models.IsIdentityKey(k) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid identity key: "+k)
		}
	}

	out := make([]models.Identity, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, key := range keys {
		g.Go(func() error {
			id, err := s.Resolve(gctx, key)
			if err != nil {
				return err
			}
			out[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Session is one live search box.
type Session struct {
	ID string
	*coordinator.Coordinator

	closeOnce sync.Once
	closed    func()
}

// Close ends the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Coordinator.Close()
		s.closed()
	})
}

// NewSession opens a live search session. Every selection is published as an
// event and then handed to onSelected, which may be nil.
func (s *Service) NewSession(ctx context.Context, onSelected func(models.Identity)) (*Session, error) {
	id := uuid.NewString()
	ctx = requestcontext.WithSessionID(ctx, id)

	selected := func(identity models.Identity) {
		event := events.IdentitySelected(id, identity, s.clock.Now())
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish selection",
				"session_id", id,
				"error", err,
			)
		}
		if onSelected != nil {
			onSelected(identity)
		}
	}

	coord, err := coordinator.New(ctx, s.resolver,
		coordinator.WithCache(s.cache),
		coordinator.WithClock(s.clock),
		coordinator.WithDebounce(s.cfg.Debounce),
		coordinator.WithDeduplicate(s.cfg.Deduplicate),
		coordinator.WithLogger(s.logger),
		coordinator.WithMetrics(s.metrics),
		coordinator.WithOnSelected(selected),
	)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SessionOpened()
	}
	s.logger.InfoContext(ctx, "search session opened",
		"session_id", id,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &Session{
		ID:          id,
		Coordinator: coord,
		closed: func() {
			if s.metrics != nil {
				s.metrics.SessionClosed()
			}
			s.logger.InfoContext(ctx, "search session closed", "session_id", id)
		},
	}, nil
}

// Health reports "degraded" when the resolver breaker is open or any
// dependency check fails.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{Status: StatusOK, Checks: map[string]string{}}
	if s.health != nil {
		if s.health.Degraded() {
			h.Status = StatusDegraded
			h.Checks["identity_wallet"] = StatusDegraded
		} else {
			h.Checks["identity_wallet"] = StatusOK
		}
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			h.Status = StatusDegraded
			h.Checks[name] = "unavailable"
			s.logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			continue
		}
		h.Checks[name] = StatusOK
	}
	return h
}

// translateError maps resolver failures onto client-facing codes.
func translateError(err error) error {
	if errors.Is(err, resolver.ErrNoIdentityWallet) {
		return dErrors.Wrap(err, dErrors.CodeWalletUnavailable, "no identity wallet available")
	}
	switch resolver.GetCategory(err) {
	case resolver.ErrorTimeout:
		return dErrors.Wrap(err, dErrors.CodeTimeout, "identity resolution timed out")
	case resolver.ErrorCanceled:
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request canceled")
	case resolver.ErrorProviderOutage, resolver.ErrorRateLimited, resolver.ErrorAuthentication:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "identity resolution unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "identity resolution failed")
	}
}
