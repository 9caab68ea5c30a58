package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"idsearch/internal/identity/models"
	"idsearch/internal/search/service"
	dErrors "idsearch/pkg/domain-errors"
	"idsearch/pkg/platform/httputil"
	"idsearch/pkg/requestcontext"
)

// Service defines the search operations exposed over HTTP.
type Service interface {
	Search(ctx context.Context, query string) ([]models.Identity, error)
	Resolve(ctx context.Context, identityKey string) (models.Identity, error)
	ResolveMany(ctx context.Context, identityKeys []string) ([]models.Identity, error)
	NewSession(ctx context.Context, onSelected func(models.Identity)) (*service.Session, error)
	Health(ctx context.Context) service.Health
}

// Handler serves identity search endpoints.
type Handler struct {
	service        Service
	logger         *slog.Logger
	allowedOrigins []string
}

// Option configures the Handler.
type Option func(*Handler)

// WithAllowedOrigins limits which browser origins may open live sessions.
// Without it only same-host origins are accepted.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		h.allowedOrigins = origins
	}
}

// New creates a new search Handler.
func New(svc Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service: svc,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the search routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Route("/v1/identities", func(r chi.Router) {
		r.Get("/search", h.handleSearch)
		r.Get("/search/session", h.handleSession)
		r.Post("/resolve", h.handleResolveMany)
		r.Get("/{identityKey}", h.handleResolve)
	})
}

type searchResponse struct {
	Results []models.Identity `json:"results"`
}

type resolveManyRequest struct {
	IdentityKeys []string `json:"identity_keys"`
}

type resolveManyResponse struct {
	Identities []models.Identity `json:"identities"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	results, err := h.service.Search(ctx, r.URL.Query().Get("q"))
	if err != nil {
		h.logFailure(ctx, "search failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, searchResponse{Results: results})
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, err := h.service.Resolve(ctx, chi.URLParam(r, "identityKey"))
	if err != nil {
		h.logFailure(ctx, "resolve failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identity)
}

func (h *Handler) handleResolveMany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[resolveManyRequest](w, r, h.logger, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	identities, err := h.service.ResolveMany(ctx, req.IdentityKeys)
	if err != nil {
		h.logFailure(ctx, "batch resolve failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resolveManyResponse{Identities: identities})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Health(r.Context()))
}

// logFailure keeps client mistakes at warn level and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.HasCode(err, dErrors.CodeBadRequest) {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
