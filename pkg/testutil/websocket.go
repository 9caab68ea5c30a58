package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// DialWebSocket opens a websocket to path on srv. The connection is closed
// when the test ends.
func DialWebSocket(t *testing.T, srv *httptest.Server, path string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(WebSocketURL(srv, path), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err, "dial websocket")
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// WebSocketURL rewrites the server URL to the ws scheme.
func WebSocketURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

// ReadFrameUntil reads JSON frames into T until match returns true or the
// timeout elapses, and returns the matching frame.
func ReadFrameUntil[T any](t *testing.T, conn *websocket.Conn, timeout time.Duration, match func(T) bool) T {
	t.Helper()
	deadline := time.Now().Add(timeout)
	require.NoError(t, conn.SetReadDeadline(deadline))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	for {
		var frame T
		require.NoError(t, conn.ReadJSON(&frame), "no matching frame before deadline")
		if match(frame) {
			return frame
		}
	}
}
