package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"campus-connect/domain"
	"campus-connect/errors"
	"campus-connect/observability"
	"campus-connect/relay"
	"campus-connect/services"
)

// fakeAuth accepts one fixed credential pair.
type fakeAuth struct{}

func (fakeAuth) Login(email, password string) (services.Token, error) {
	if email == "alice@srm.edu.in" && password == "ComplexPass123!" {
		return "issued-token", nil
	}
	return "", errors.ErrInvalidCredentials
}

func (fakeAuth) Register(email, _, _ string) (services.Token, error) {
	if !strings.HasSuffix(email, "@srm.edu.in") {
		return "", errors.ErrForbiddenDomain
	}
	return "issued-token", nil
}

// fakeChat serves a canned search result set.
type fakeChat struct {
	results []domain.StoredMessage
}

func (fakeChat) Connect(context.Context, relay.Conn, string) error { return nil }

func (c fakeChat) Search(_ context.Context, keyword string) ([]domain.StoredMessage, error) {
	var out []domain.StoredMessage
	for _, m := range c.results {
		if strings.Contains(strings.ToLower(m.Content), strings.ToLower(keyword)) {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(token string) (domain.Identity, error) {
	if token != "issued-token" {
		return domain.Identity{}, errors.ErrUnauthenticated
	}
	return domain.Identity{Email: "alice@srm.edu.in", DisplayName: "Alice"}, nil
}

func newTestRouter(chat fakeChat) http.Handler {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	handler := NewHandler(log, fakeAuth{}, chat, fakeResolver{}, observability.NewMonitor())
	return NewRouter(handler, http.NotFoundHandler())
}

func TestLoginEndpoint(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(fakeChat{})

	body := `{"email": "alice@srm.edu.in", "password": "ComplexPass123!"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(body)))

	req.Equal(http.StatusOK, rec.Code)
	var resp tokenResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Equal("issued-token", resp.AccessToken)
	req.Equal("bearer", resp.TokenType)
}

func TestLoginEndpoint_BadCredentials(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(fakeChat{})

	body := `{"email": "alice@srm.edu.in", "password": "wrong"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(body)))

	req.Equal(http.StatusUnauthorized, rec.Code)
}

func TestRegisterEndpoint_ForeignDomain(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(fakeChat{})

	body := `{"email": "alice@gmail.com", "display_name": "Alice", "password": "ComplexPass123!"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body)))

	req.Equal(http.StatusForbidden, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	chat := fakeChat{results: []domain.StoredMessage{
		{ID: 1, ChatMessage: domain.ChatMessage{Sender: "Alice", Content: "Hello world", Timestamp: at}},
		{ID: 2, ChatMessage: domain.ChatMessage{Sender: "Bob", Content: "Goodbye", Timestamp: at.Add(time.Minute)}},
	}}
	router := newTestRouter(chat)

	r := httptest.NewRequest(http.MethodGet, "/search?keyword=hello", nil)
	r.Header.Set("Authorization", "Bearer issued-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	req.Equal(http.StatusOK, rec.Code)
	var resp searchResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Len(resp.Results, 1)
	req.Equal("Alice", resp.Results[0].Sender)
	req.Equal("Hello world", resp.Results[0].Content)
	req.Equal("2026-02-14T09:30:00Z", resp.Results[0].Timestamp)
}

func TestSearchEndpoint_RequiresAuthentication(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(fakeChat{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?keyword=hello", nil))
	req.Equal(http.StatusUnauthorized, rec.Code)

	r := httptest.NewRequest(http.MethodGet, "/search?keyword=hello", nil)
	r.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	req.Equal(http.StatusUnauthorized, rec.Code)
}

func TestSearchEndpoint_MissingKeyword(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(fakeChat{})

	r := httptest.NewRequest(http.MethodGet, "/search", nil)
	r.Header.Set("Authorization", "Bearer issued-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	req.Equal(http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(fakeChat{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Body.String(), `"status":"ok"`)
}
