package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bark-labs/offerbot/internal/catalog"
	"github.com/bark-labs/offerbot/internal/chat"
	"github.com/bark-labs/offerbot/internal/config"
	"github.com/bark-labs/offerbot/internal/model"
	"github.com/bark-labs/offerbot/internal/service"
	"github.com/bark-labs/offerbot/internal/storage/memory"
)

type nopSender struct{}

func (nopSender) Send(context.Context, chat.Message) (int, error) { return 1, nil }

type updateRecorder struct {
	mu      sync.Mutex
	updates []tgbotapi.Update
}

func (r *updateRecorder) HandleUpdate(_ context.Context, u tgbotapi.Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func newTestServer(t *testing.T) (*Server, *updateRecorder) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Telegram.Mode = config.ModeWebhook
	cfg.Telegram.WebhookSecret = "hook"
	cfg.Telegram.OwnerID = 1
	cfg.Auth.Enabled = true
	cfg.Auth.Username = "admin"
	cfg.Auth.Password = "pw"
	cfg.Auth.JWTSecret = "secret"

	store := memory.New()
	users := service.NewUserService(store)
	for _, id := range []int64{10, 11} {
		_, err := users.Ensure(context.Background(), id, "u", "")
		require.NoError(t, err)
	}
	cat, err := catalog.New([]*model.Offer{{ID: 1, Title: "Burger"}})
	require.NoError(t, err)

	rec := &updateRecorder{}
	s := New(cfg, Deps{
		Catalog:     cat,
		Users:       users,
		Broadcasts:  service.NewBroadcastService(store, users, nopSender{}),
		Logs:        service.NewBroadcastLogService(store),
		Maintenance: service.NewMaintenanceService(store),
		Auth:        service.NewAuthService(cfg),
		Updates:     rec,
	})
	return s, rec
}

func do(t *testing.T, s *Server, method, target, body, token string) (*http.Response, model.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env model.Envelope
	_ = json.Unmarshal(raw, &env)
	return resp, env
}

func login(t *testing.T, s *Server) string {
	t.Helper()
	resp, env := do(t, s, http.MethodPost, "/auth/login", `{"username":"admin","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	return data["token"].(string)
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	resp, _ := do(t, s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminRequiresToken(t *testing.T) {
	s, _ := newTestServer(t)
	resp, env := do(t, s, http.MethodGet, "/admin/summary", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, model.CodeUnauthorized, env.Code)

	resp, _ = do(t, s, http.MethodPost, "/auth/login", `{"username":"admin","password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSummaryAfterBroadcast(t *testing.T) {
	s, _ := newTestServer(t)
	token := login(t, s)

	resp, env := do(t, s, http.MethodPost, "/admin/broadcast", `{"message":"hi"}`, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := env.Data.(map[string]any)
	assert.EqualValues(t, 2, report["delivered"])

	resp, env = do(t, s, http.MethodGet, "/admin/summary", "", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := env.Data.(map[string]any)
	assert.EqualValues(t, 2, summary["users"])
	assert.EqualValues(t, 1, summary["offers"])
	assert.Len(t, summary["recentBroadcasts"], 1)

	resp, env = do(t, s, http.MethodGet, "/admin/broadcasts?page=1&pageSize=5", "", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, env.Data.(map[string]any)["total"])
}

func TestBroadcastRequiresMessage(t *testing.T) {
	s, _ := newTestServer(t)
	resp, _ := do(t, s, http.MethodPost, "/admin/broadcast", `{"message":"  "}`, login(t, s))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMaintenanceToggle(t *testing.T) {
	s, _ := newTestServer(t)
	token := login(t, s)

	resp, env := do(t, s, http.MethodPost, "/admin/maintenance", `{"enabled":true}`, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, env.Data.(map[string]any)["enabled"])

	resp, _ = do(t, s, http.MethodPost, "/admin/maintenance", `{}`, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookChecksSecret(t *testing.T) {
	s, rec := newTestServer(t)

	resp, _ := do(t, s, http.MethodPost, "/telegram/webhook/wrong", `{"update_id":1}`, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, s, http.MethodPost, "/telegram/webhook/hook", `{"update_id":7,"message":{"message_id":1,"text":"hi"}}`, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, rec.updates, 1)
	assert.Equal(t, 7, rec.updates[0].UpdateID)
}
