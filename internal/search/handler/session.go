package handler

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"idsearch/internal/identity/models"
	"idsearch/internal/search/coordinator"
	"idsearch/pkg/requestcontext"
)

const (
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 1024
	wsWriteTimeout    = 10 * time.Second
	wsMaxFrameBytes   = 64 << 10
	wsOutboundBuffer  = 16
)

// Client frame types.
const (
	frameQuery   = "query"
	frameSelect  = "select"
	frameDismiss = "dismiss_wallet_prompt"
)

type clientFrame struct {
	Type     string           `json:"type"`
	Text     string           `json:"text"`
	Reason   string           `json:"reason"`
	Identity *models.Identity `json:"identity"`
}

type stateFrame struct {
	Type          string            `json:"type"`
	SessionID     string            `json:"session_id"`
	Query         string            `json:"query"`
	Results       []models.Identity `json:"results"`
	Options       []models.Identity `json:"options"`
	Loading       bool              `json:"loading"`
	Selected      *models.Identity  `json:"selected"`
	WalletMissing bool              `json:"wallet_missing"`
	RequestID     uint64            `json:"request_id"`
}

type selectedFrame struct {
	Type     string          `json:"type"`
	Identity models.Identity `json:"identity"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var errUnknownFrame = errors.New("unknown frame type")

func newStateFrame(sessionID string, st coordinator.State) stateFrame {
	results := st.Results
	if results == nil {
		results = []models.Identity{}
	}
	return stateFrame{
		Type:          "state",
		SessionID:     sessionID,
		Query:         st.Query,
		Results:       results,
		Options:       models.FilterOptions(results, strings.TrimSpace(st.Query), st.Loading),
		Loading:       st.Loading,
		Selected:      st.Selected,
		WalletMissing: st.WalletMissing,
		RequestID:     st.RequestID,
	}
}

// handleSession runs one live search box over a websocket. Every state change
// is pushed to the client; client frames drive the session.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsReadBufferSize,
		WriteBufferSize: wsWriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return isOriginAllowed(r, h.allowedOrigins)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"origin", r.Header.Get("Origin"),
			"error", err,
		)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	outbound := make(chan any, wsOutboundBuffer)
	push := func(frame any) {
		select {
		case outbound <- frame:
		default:
			h.logger.WarnContext(ctx, "websocket outbound buffer full, frame dropped")
		}
	}

	session, err := h.service.NewSession(ctx, func(id models.Identity) {
		push(selectedFrame{Type: "selected", Identity: id})
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open search session",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		deadline := time.Now().Add(wsWriteTimeout)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"), deadline)
		return
	}
	defer session.Close()

	states, unsubscribe := session.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			var payload any
			select {
			case st, ok := <-states:
				if !ok {
					return
				}
				payload = newStateFrame(session.ID, st)
			case frame := <-outbound:
				payload = frame
			case <-done:
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteJSON(payload); err != nil {
				return
			}
		}
	}()

	conn.SetReadLimit(wsMaxFrameBytes)
	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.WarnContext(ctx, "search session read failed",
					"session_id", session.ID,
					"error", err,
				)
			}
			return
		}
		if err := dispatch(session, frame); err != nil {
			push(errorFrame{Type: "error", Message: err.Error() + ": " + frame.Type})
		}
	}
}

// Session is what a live connection drives.
type Session interface {
	SetQuery(text string, reason coordinator.InputReason)
	SelectResult(identity *models.Identity)
	DismissWalletPrompt()
}

func dispatch(s Session, frame clientFrame) error {
	switch frame.Type {
	case frameQuery:
		s.SetQuery(frame.Text, coordinator.ParseInputReason(frame.Reason))
	case frameSelect:
		s.SelectResult(frame.Identity)
	case frameDismiss:
		s.DismissWalletPrompt()
	default:
		return errUnknownFrame
	}
	return nil
}

// isOriginAllowed accepts requests without an Origin header, origins on the
// allow list (full origin or bare host) and, without a list, same-host origins.
func isOriginAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	originHost := parsed.Hostname()
	if originHost == "" {
		return false
	}

	if len(allowed) > 0 {
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(origin, a) || strings.EqualFold(originHost, a) {
				return true
			}
		}
		return false
	}

	requestHost := r.Host
	if host, _, err := net.SplitHostPort(r.Host); err == nil {
		requestHost = host
	}
	return strings.EqualFold(originHost, requestHost)
}
