package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"idsearch/internal/identity/models"
	"idsearch/internal/platform/config"
	"idsearch/internal/platform/middleware"
	"idsearch/internal/search/handler/mocks"
	"idsearch/internal/search/service"
	"idsearch/pkg/testutil"
)

const frameTimeout = 2 * time.Second

// wsFrame is the union of every server frame.
type wsFrame struct {
	Type          string            `json:"type"`
	SessionID     string            `json:"session_id"`
	Query         string            `json:"query"`
	Results       []models.Identity `json:"results"`
	Options       []models.Identity `json:"options"`
	Loading       bool              `json:"loading"`
	Selected      *models.Identity  `json:"selected"`
	WalletMissing bool              `json:"wallet_missing"`
	Identity      *models.Identity  `json:"identity"`
	Message       string            `json:"message"`
}

type directoryResolver struct {
	mu         sync.Mutex
	identities map[string][]models.Identity
}

func (d *directoryResolver) Resolve(_ context.Context, query string) ([]models.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.identities[strings.ToLower(query)], nil
}

// newSessionServer serves the real search service behind the mocked port and
// the production middleware stack.
func newSessionServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.New(&directoryResolver{identities: map[string][]models.Identity{
		"alice": {alice},
	}}, config.Search{Debounce: time.Millisecond, CacheCapacity: 10, CacheTTL: time.Minute, Deduplicate: true},
		service.WithLogger(logger))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockService(ctrl)
	mockService.EXPECT().NewSession(gomock.Any(), gomock.Any()).DoAndReturn(svc.NewSession).AnyTimes()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	New(mockService, logger, opts...).Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestSession_SearchAndSelect(t *testing.T) {
	srv := newSessionServer(t)
	conn := testutil.DialWebSocket(t, srv, "/v1/identities/search/session", nil)

	first := testutil.ReadFrameUntil(t, conn, frameTimeout, func(f wsFrame) bool { return f.Type == "state" })
	require.NotEmpty(t, first.SessionID)
	assert.Empty(t, first.Results)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "query", "text": "Alice"}))
	found := testutil.ReadFrameUntil(t, conn, frameTimeout, func(f wsFrame) bool {
		return f.Type == "state" && !f.Loading && len(f.Results) == 1
	})
	assert.Equal(t, "Alice", found.Results[0].Name)
	assert.Len(t, found.Options, 1)
	assert.Equal(t, first.SessionID, found.SessionID)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "select", "identity": alice}))

	var sawSelected, sawState bool
	for !sawSelected || !sawState {
		f := testutil.ReadFrameUntil(t, conn, frameTimeout, func(wsFrame) bool { return true })
		switch {
		case f.Type == "selected":
			require.NotNil(t, f.Identity)
			assert.Equal(t, aliceKey, f.Identity.IdentityKey)
			sawSelected = true
		case f.Type == "state" && f.Selected != nil:
			assert.Empty(t, f.Results)
			sawState = true
		}
	}
}

func TestSession_UnknownIdentityKeyOffersCustomOption(t *testing.T) {
	srv := newSessionServer(t)
	conn := testutil.DialWebSocket(t, srv, "/v1/identities/search/session", nil)
	otherKey := "03" + strings.Repeat("ab", 32)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "query", "text": otherKey}))

	f := testutil.ReadFrameUntil(t, conn, frameTimeout, func(f wsFrame) bool {
		return f.Type == "state" && f.Query == otherKey && !f.Loading && f.Results != nil && len(f.Options) == 1
	})
	assert.Empty(t, f.Results)
	assert.Equal(t, models.CustomIdentityName, f.Options[0].Name)
	assert.Equal(t, otherKey, f.Options[0].IdentityKey)
}

func TestSession_UnknownFrameIsReported(t *testing.T) {
	srv := newSessionServer(t)
	conn := testutil.DialWebSocket(t, srv, "/v1/identities/search/session", nil)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "launch"}))

	f := testutil.ReadFrameUntil(t, conn, frameTimeout, func(f wsFrame) bool { return f.Type == "error" })
	assert.Contains(t, f.Message, "launch")
}

func TestSession_RejectsForeignOrigin(t *testing.T) {
	srv := newSessionServer(t, WithAllowedOrigins([]string{"https://app.example"}))
	header := http.Header{"Origin": []string{"https://evil.example"}}

	_, resp, err := websocket.DefaultDialer.Dial(testutil.WebSocketURL(srv, "/v1/identities/search/session"), header)

	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSession_ServiceFailureClosesConnection(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockService(ctrl)
	mockService.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))
	r := chi.NewRouter()
	New(mockService, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := testutil.DialWebSocket(t, srv, "/v1/identities/search/session", nil)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(frameTimeout)))
	_, _, err := conn.ReadMessage()

	assert.True(t, websocket.IsCloseError(err, websocket.CloseInternalServerErr), "got %v", err)
}

func TestIsOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		origin  string
		allowed []string
		want    bool
	}{
		{name: "no origin header", host: "search.local:8080", want: true},
		{name: "same host", host: "search.local:8080", origin: "http://search.local:3000", want: true},
		{name: "other host", host: "search.local:8080", origin: "http://evil.example", want: false},
		{name: "listed origin", host: "api", origin: "https://app.example", allowed: []string{"https://app.example"}, want: true},
		{name: "listed host", host: "api", origin: "https://app.example", allowed: []string{"app.example"}, want: true},
		{name: "wildcard", host: "api", origin: "https://anything.example", allowed: []string{"*"}, want: true},
		{name: "unlisted", host: "api", origin: "https://app.example", allowed: []string{"other.example"}, want: false},
		{name: "garbage", host: "api", origin: "::::", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, isOriginAllowed(r, tt.allowed))
		})
	}
}
