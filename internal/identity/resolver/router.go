package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"idsearch/internal/identity/models"
	"idsearch/internal/platform/metrics"
	"idsearch/pkg/platform/circuit"
)

// Route names the resolution path a query takes.
type Route string

const (
	RouteIdentityKey Route = "identity_key"
	RouteAttributes  Route = "attributes"
)

// Lookup is the pair of operations the identity wallet exposes.
type Lookup interface {
	ResolveByIdentityKey(ctx context.Context, identityKey string) ([]models.Identity, error)
	ResolveByAttributes(ctx context.Context, attributes map[string]string) ([]models.Identity, error)
}

// RouteFor picks the resolution path for a query: exact identity keys go to
// the key lookup, everything else is an attribute search.
func RouteFor(query string) Route {
	if models.IsIdentityKey(strings.TrimSpace(query)) {
		return RouteIdentityKey
	}
	return RouteAttributes
}

// Router turns a free-form query into the right wallet call. It satisfies the
// single-operation Resolver port the search layer depends on.
type Router struct {
	lookup  Lookup
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// RouterOption configures a Router.
type RouterOption func(*Router)

func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) RouterOption {
	return func(r *Router) {
		r.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) RouterOption {
	return func(r *Router) {
		r.breaker = b
	}
}

// NewRouter wraps lookup.
func NewRouter(lookup Lookup, opts ...RouterOption) (*Router, error) {
	if lookup == nil {
		return nil, errors.New("lookup is required")
	}
	r := &Router{
		lookup:  lookup,
		breaker: circuit.New("identity-wallet"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve resolves query by key or by attributes. Free-text queries that match
// nothing on any attribute are retried once as a user handle. A not-found
// answer is an empty result, not an error.
func (r *Router) Resolve(ctx context.Context, query string) ([]models.Identity, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}

	route := RouteFor(q)
	start := time.Now()
	var (
		results []models.Identity
		err     error
	)
	switch route {
	case RouteIdentityKey:
		results, err = emptyOnNotFound(r.lookup.ResolveByIdentityKey(ctx, q))
	default:
		results, err = emptyOnNotFound(r.lookup.ResolveByAttributes(ctx, map[string]string{"any": q}))
		if err == nil && len(results) == 0 {
			results, err = emptyOnNotFound(r.lookup.ResolveByAttributes(ctx, map[string]string{"userName": q}))
		}
	}
	if r.metrics != nil {
		r.metrics.ObserveResolution(string(route), start)
	}

	r.record(ctx, route, err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// The wallet answers "no match" either with an empty list or a not-found
// error. Both mean the same thing here.
func emptyOnNotFound(results []models.Identity, err error) ([]models.Identity, error) {
	if GetCategory(err) == ErrorNotFound {
		return nil, nil
	}
	return results, err
}

// Degraded reports whether the wallet has been failing consistently.
func (r *Router) Degraded() bool {
	return r.breaker.IsOpen()
}

func (r *Router) record(ctx context.Context, route Route, err error) {
	if err == nil {
		if _, change := r.breaker.RecordSuccess(); change.Closed {
			r.logger.InfoContext(ctx, "identity wallet recovered", "breaker", r.breaker.Name())
			if r.metrics != nil {
				r.metrics.SetResolverBreakerOpen(false)
			}
		}
		return
	}

	category := GetCategory(err)
	if r.metrics != nil && category != ErrorCanceled {
		r.metrics.IncrementResolutionFailures(string(category))
	}
	if !IsDependencyFailure(err) {
		return
	}
	if _, change := r.breaker.RecordFailure(); change.Opened {
		r.logger.WarnContext(ctx, "identity wallet degraded",
			"breaker", r.breaker.Name(),
			"route", route,
			"error", err,
		)
		if r.metrics != nil {
			r.metrics.SetResolverBreakerOpen(true)
		}
	}
}
