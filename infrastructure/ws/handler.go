package ws

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"campus-connect/services"
)

// Origin checking is delegated to the deployment (reverse proxy); the
// original service ran with permissive CORS for the same reason.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Handler upgrades HTTP requests to WebSocket chat sessions.
type Handler struct {
	log            *slog.Logger
	chat           services.IChatService
	sendTimeout    time.Duration
	maxMessageSize int64
}

func NewHandler(log *slog.Logger, chat services.IChatService,
	sendTimeout time.Duration, maxMessageSize int64) *Handler {
	return &Handler{log: log, chat: chat, sendTimeout: sendTimeout, maxMessageSize: maxMessageSize}
}

// ServeHTTP upgrades the connection and hands it to the chat service, which
// blocks for the whole session. The credential comes from the token query
// parameter (browser WebSocket clients cannot set headers) with an
// Authorization header fallback.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	if h.maxMessageSize > 0 {
		conn.SetReadLimit(h.maxMessageSize)
	}

	channel := NewChannel(conn, h.sendTimeout)
	if err := h.chat.Connect(r.Context(), channel, token); err != nil {
		h.log.Warn("session ended with error", "remote", r.RemoteAddr, "error", err)
	}
}
