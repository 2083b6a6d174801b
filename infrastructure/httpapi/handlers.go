package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"campus-connect/domain"
	"campus-connect/errors"
	"campus-connect/observability"
	"campus-connect/services"
)

type Handler struct {
	log     *slog.Logger
	auth    services.IAuthService
	chat    services.IChatService
	ids     services.IdentityResolver
	monitor *observability.Monitor
}

func NewHandler(log *slog.Logger, auth services.IAuthService,
	chat services.IChatService, ids services.IdentityResolver,
	monitor *observability.Monitor) *Handler {
	return &Handler{log: log, auth: auth, chat: chat, ids: ids, monitor: monitor}
}

type credentialsRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Password    string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type searchResponse struct {
	Results []domain.WireMessage `json:"results"`
}

// Login exchanges email+password for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.ErrProtocolViolation, "invalid request body")
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		h.writeError(w, err, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, tokenResponse{AccessToken: string(token), TokenType: "bearer"})
}

// Register creates an account within the allowed email domain and returns an
// initial token.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.ErrProtocolViolation, "invalid request body")
		return
	}

	token, err := h.auth.Register(req.Email, req.DisplayName, req.Password)
	if err != nil {
		h.writeError(w, err, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: string(token), TokenType: "bearer"})
}

// Search returns persisted messages whose content contains the keyword,
// oldest first. Any authenticated identity may search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ids.Resolve(bearerToken(r)); err != nil {
		h.writeError(w, errors.ErrUnauthenticated, "invalid authentication credentials")
		return
	}

	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		h.writeError(w, errors.ErrProtocolViolation, "missing keyword parameter")
		return
	}

	messages, err := h.chat.Search(r.Context(), keyword)
	if err != nil {
		h.log.Error("search failed", "keyword", keyword, "error", err)
		h.writeError(w, err, "search failed")
		return
	}

	results := lo.Map(messages, func(m domain.StoredMessage, _ int) domain.WireMessage {
		return m.Wire()
	})
	h.writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.monitor.Snapshot())
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("response encoding failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error, detail string) {
	h.writeJSON(w, errors.MapToHTTPStatus(err), domain.WireError{Error: detail})
}
