package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"idsearch/internal/identity/models"
)

const (
	opResolveByKey        = "resolve_by_key"
	opResolveByAttributes = "resolve_by_attributes"

	resolveByKeyPath        = "/v1/identity/resolveByIdentityKey"
	resolveByAttributesPath = "/v1/identity/resolveByAttributes"

	// walletMissingCode is what the wallet answers when no identity is set up.
	walletMissingCode = "ERR_NO_METANET_IDENTITY"

	maxResponseBytes = 1 << 20
)

// Client talks to the local identity wallet, which performs certificate
// discovery and verification and returns the matching certificates with the
// revealed fields decrypted.
type Client struct {
	baseURL    string
	originator string
	httpClient *http.Client
	tracer     trace.Tracer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithOriginator sets the application name the wallet shows in its prompts.
func WithOriginator(originator string) ClientOption {
	return func(c *Client) {
		c.originator = originator
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) ClientOption {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// NewClient creates a wallet client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		originator: "idsearch",
		httpClient: &http.Client{Timeout: timeout},
		tracer:     otel.Tracer("idsearch/identity/resolver"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type resolveByKeyRequest struct {
	IdentityKey string `json:"identityKey"`
	Originator  string `json:"originator"`
}

type resolveByAttributesRequest struct {
	Attributes map[string]string `json:"attributes"`
	Originator string            `json:"originator"`
}

type walletError struct {
	Status      string `json:"status"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ResolveByIdentityKey returns every identity certified for the exact key.
func (c *Client) ResolveByIdentityKey(ctx context.Context, identityKey string) ([]models.Identity, error) {
	ctx, span := c.tracer.Start(ctx, "identity."+opResolveByKey,
		trace.WithAttributes(attribute.String("identity.key_prefix", models.AbbreviateKey(identityKey))))
	defer span.End()

	certs, err := c.post(ctx, opResolveByKey, resolveByKeyPath, resolveByKeyRequest{
		IdentityKey: identityKey,
		Originator:  c.originator,
	})
	return c.finish(span, certs, err)
}

// ResolveByAttributes returns identities whose certified fields match attrs.
// The special attribute "any" matches every searchable field.
func (c *Client) ResolveByAttributes(ctx context.Context, attributes map[string]string) ([]models.Identity, error) {
	names := make([]string, 0, len(attributes))
	for k := range attributes {
		names = append(names, k)
	}
	ctx, span := c.tracer.Start(ctx, "identity."+opResolveByAttributes,
		trace.WithAttributes(attribute.StringSlice("identity.attributes", names)))
	defer span.End()

	certs, err := c.post(ctx, opResolveByAttributes, resolveByAttributesPath, resolveByAttributesRequest{
		Attributes: attributes,
		Originator: c.originator,
	})
	return c.finish(span, certs, err)
}

func (c *Client) finish(span trace.Span, certs []models.Certificate, err error) ([]models.Identity, error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(GetCategory(err)))
		return nil, err
	}
	span.SetAttributes(attribute.Int("identity.results", len(certs)))
	return models.FromCertificates(certs), nil
}

func (c *Client) post(ctx context.Context, op, path string, body any) ([]models.Certificate, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, NewResolutionError(ErrorInternal, op, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, NewResolutionError(ErrorInternal, op, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, NewResolutionError(ErrorProviderOutage, op, "read response", err)
	}

	return parseResponse(op, resp.StatusCode, raw)
}

func parseResponse(op string, status int, body []byte) ([]models.Certificate, error) {
	if status == http.StatusOK {
		var certs []models.Certificate
		if err := json.Unmarshal(body, &certs); err != nil {
			return nil, NewResolutionError(ErrorBadData, op, "decode certificates", err)
		}
		return certs, nil
	}

	var we walletError
	_ = json.Unmarshal(body, &we)
	if we.Code == walletMissingCode {
		return nil, NewResolutionError(ErrorWalletUnavailable, op, "no identity configured in wallet", nil)
	}

	msg := we.Description
	if msg == "" {
		msg = fmt.Sprintf("unexpected status %d", status)
	}
	switch {
	case status == http.StatusNotFound:
		return nil, NewResolutionError(ErrorNotFound, op, msg, nil)
	case status == http.StatusTooManyRequests:
		return nil, NewResolutionError(ErrorRateLimited, op, msg, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, NewResolutionError(ErrorAuthentication, op, msg, nil)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return nil, NewResolutionError(ErrorContractMismatch, op, msg, nil)
	case status >= 500:
		return nil, NewResolutionError(ErrorProviderOutage, op, msg, nil)
	default:
		return nil, NewResolutionError(ErrorBadData, op, msg, nil)
	}
}

func classifyTransportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.Canceled) {
			return NewResolutionError(ErrorCanceled, op, "request canceled", ctxErr)
		}
		return NewResolutionError(ErrorTimeout, op, "request timed out", ctxErr)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return NewResolutionError(ErrorWalletUnavailable, op, "identity wallet not reachable", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewResolutionError(ErrorTimeout, op, "request timed out", err)
	}
	return NewResolutionError(ErrorProviderOutage, op, "request failed", err)
}
