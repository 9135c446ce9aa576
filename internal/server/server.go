package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"

	"github.com/bark-labs/offerbot/internal/catalog"
	"github.com/bark-labs/offerbot/internal/config"
	"github.com/bark-labs/offerbot/internal/model"
	"github.com/bark-labs/offerbot/internal/service"
)

// UpdateHandler consumes Telegram updates delivered by webhook.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// Deps groups the services exposed over HTTP.
type Deps struct {
	Catalog     *catalog.Catalog
	Users       *service.UserService
	Broadcasts  *service.BroadcastService
	Logs        *service.BroadcastLogService
	Maintenance *service.MaintenanceService
	Auth        *service.AuthService
	Updates     UpdateHandler
}

// Server wires HTTP handlers.
type Server struct {
	app  *fiber.App
	cfg  *config.Config
	deps Deps
}

// New builds a server instance.
func New(cfg *config.Config, deps Deps) *Server {
	app := fiber.New(fiber.Config{
		IdleTimeout:           cfg.HTTP.ReadTimeout,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		AppName:               "offerbot",
		DisableStartupMessage: true,
	})
	s := &Server{app: app, cfg: cfg, deps: deps}
	s.registerRoutes()
	return s
}

// Start listens and serves HTTP traffic.
func (s *Server) Start() error {
	return s.app.Listen(s.cfg.HTTP.Addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.handleHealth)
	s.app.Post("/auth/login", s.handleLogin)

	if s.cfg.Telegram.Mode == config.ModeWebhook && s.deps.Updates != nil {
		s.app.Post("/telegram/webhook/:secret", s.handleWebhook)
	}

	admin := s.app.Group("/admin", s.requireAuth)
	admin.Get("/summary", s.handleSummary)
	admin.Get("/users", s.handleUsers)
	admin.Get("/offers", s.handleOffers)
	admin.Post("/broadcast", s.handleBroadcast)
	admin.Get("/broadcasts", s.handleBroadcastLogs)
	admin.Get("/broadcasts/count/date", s.handleBroadcastCountDate)
	admin.Post("/maintenance", s.handleMaintenance)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{"status": "ok", "offers": s.deps.Catalog.Len()}
	if m, err := s.deps.Maintenance.Status(c.UserContext()); err == nil {
		resp["maintenance"] = m.Enabled
	}
	return c.JSON(resp)
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(model.Fail("malformed request"))
	}
	if !s.deps.Auth.Enabled() {
		return c.JSON(model.OK("auth disabled", fiber.Map{"token": "", "enabled": false}))
	}
	token, err := s.deps.Auth.Authenticate(req.Username, req.Password)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(model.FailWithCode(model.CodeUnauthorized, err.Error()))
	}
	return c.JSON(model.OK("logged in", fiber.Map{
		"token":    token,
		"enabled":  true,
		"username": s.deps.Auth.Username(),
	}))
}

func (s *Server) handleWebhook(c *fiber.Ctx) error {
	secret := s.cfg.Telegram.WebhookSecret
	if subtle.ConstantTimeCompare([]byte(c.Params("secret")), []byte(secret)) != 1 {
		return c.SendStatus(http.StatusNotFound)
	}
	var update tgbotapi.Update
	if err := json.Unmarshal(c.Body(), &update); err != nil {
		return c.SendStatus(http.StatusBadRequest)
	}
	s.deps.Updates.HandleUpdate(context.Background(), update)
	return c.SendStatus(http.StatusOK)
}

func (s *Server) handleSummary(c *fiber.Ctx) error {
	ctx := c.UserContext()
	users, err := s.deps.Users.Count(ctx)
	if err != nil {
		return s.fail(c, http.StatusInternalServerError, err)
	}
	m, err := s.deps.Maintenance.Status(ctx)
	if err != nil {
		return s.fail(c, http.StatusInternalServerError, err)
	}
	recent, err := s.deps.Logs.Recent(ctx, 5)
	if err != nil {
		return s.fail(c, http.StatusInternalServerError, err)
	}
	return c.JSON(model.OK("ok", model.Summary{
		Users:            users,
		Offers:           s.deps.Catalog.Len(),
		Maintenance:      m,
		RecentBroadcasts: recent,
	}))
}

func (s *Server) handleUsers(c *fiber.Ctx) error {
	users, err := s.deps.Users.List(c.UserContext())
	if err != nil {
		return s.fail(c, http.StatusInternalServerError, err)
	}
	return c.JSON(model.OK("ok", users))
}

func (s *Server) handleOffers(c *fiber.Ctx) error {
	now := time.Now()
	offers := s.deps.Catalog.List()
	out := make([]fiber.Map, 0, len(offers))
	for _, o := range offers {
		out = append(out, fiber.Map{
			"offer":     o,
			"title":     o.DisplayTitle(),
			"available": o.AvailableAt(now),
		})
	}
	return c.JSON(model.OK("ok", out))
}

func (s *Server) handleBroadcast(c *fiber.Ctx) error {
	var req model.BroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(model.Fail("malformed request"))
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(http.StatusBadRequest).JSON(model.Fail("message is required"))
	}
	report, err := s.deps.Broadcasts.Broadcast(context.Background(), s.cfg.Telegram.OwnerID, req.Message)
	if err != nil {
		return s.fail(c, http.StatusInternalServerError, err)
	}
	return c.JSON(model.OK("sent", report))
}

func (s *Server) handleBroadcastLogs(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize", "10"))
	sender, _ := strconv.ParseInt(c.Query("senderId"), 10, 64)
	begin, end := parseTimeRange(c)
	result, err := s.deps.Logs.Query(c.UserContext(), model.BroadcastLogFilter{
		SenderID:  sender,
		BeginTime: begin,
		EndTime:   end,
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		return s.fail(c, http.StatusInternalServerError, err)
	}
	return c.JSON(model.OK("ok", result))
}

func (s *Server) handleBroadcastCountDate(c *fiber.Ctx) error {
	begin, end := parseTimeRange(c)
	data, err := s.deps.Logs.CountByDate(c.UserContext(), c.Query("dateType", "day"), begin, end)
	if err != nil {
		return s.fail(c, http.StatusInternalServerError, err)
	}
	return c.JSON(model.OK("ok", data))
}

func (s *Server) handleMaintenance(c *fiber.Ctx) error {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return c.Status(http.StatusBadRequest).JSON(model.Fail("enabled is required"))
	}
	m, err := s.deps.Maintenance.Set(c.UserContext(), *req.Enabled)
	if err != nil {
		return s.fail(c, http.StatusInternalServerError, err)
	}
	return c.JSON(model.OK("ok", m))
}

func (s *Server) fail(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(model.Fail(err.Error()))
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	if !s.deps.Auth.Enabled() {
		return c.Next()
	}
	token := extractBearerToken(c.Get("Authorization"))
	if token == "" {
		return c.Status(http.StatusUnauthorized).JSON(model.FailWithCode(model.CodeUnauthorized, "login required"))
	}
	claims, err := s.deps.Auth.Validate(token)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(model.FailWithCode(model.CodeUnauthorized, "session expired"))
	}
	c.Locals("username", claims.Username)
	return c.Next()
}

func extractBearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func parseTimeRange(c *fiber.Ctx) (*time.Time, *time.Time) {
	return parseTime(c.Query("beginTime")), parseTime(c.Query("endTime"))
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
