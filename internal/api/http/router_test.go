package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-bot/internal/api/http/handlers"
	"github.com/spec-kit/support-bot/internal/auth"
	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/conversation"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/lock"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/service"
)

type nopPlatform struct{}

func (nopPlatform) SendText(context.Context, string, string) error { return nil }
func (nopPlatform) SendFile(context.Context, string, string, string, []byte) error {
	return nil
}
func (nopPlatform) CreateTicketChannel(_ context.Context, spec service.ChannelSpec) (string, error) {
	return "chan-" + spec.CreatorID, nil
}
func (nopPlatform) RenameChannel(context.Context, string, string, string) error { return nil }
func (nopPlatform) DeleteChannel(context.Context, string, string) error         { return nil }
func (nopPlatform) FetchHistory(context.Context, string, int) ([]domain.ChannelMessage, error) {
	return nil, nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate() { c.calls++ }

type stubDependency struct {
	enabled bool
	err     error
}

func (s stubDependency) Enabled() bool              { return s.enabled }
func (s stubDependency) Ping(context.Context) error { return s.err }

type testAPI struct {
	app       *fiber.App
	tickets   *service.TicketService
	knowledge *countingInvalidator
	owner     string
	viewer    string
}

func newTestAPI(t *testing.T, deps map[string]handlers.Dependency) *testAPI {
	t.Helper()

	hash, err := auth.HashPassword("pw", bcrypt.MinCost)
	require.NoError(t, err)
	authSvc := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "test",
		AccessTokenTTLMinutes: 10,
		Operators: []domain.Operator{
			{Username: "owner", Role: domain.OperatorRoleOwner, PasswordHash: hash},
			{Username: "viewer", Role: domain.OperatorRoleViewer, PasswordHash: hash},
		},
	}, nil)

	ticketRepo := repository.NewInMemoryTicketRepository()
	locker := lock.NewKeyedMutex()
	dispatcher := events.NewInMemoryDispatcher(nil)
	platform := nopPlatform{}
	metrics := observability.NewMetrics()
	ops := service.NewOpsService(repository.NewInMemorySettingsRepository(), ticketRepo, true, nil)
	memory := service.NewMemoryService(repository.NewInMemoryMemoryRepository(), 100, 0, nil)
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Gate:       conversation.NewGate(nil, nil),
		Ops:        ops,
		Memory:     memory,
		Assignments: service.NewAssignmentService(service.AssignmentDependencies{
			TicketRepo: ticketRepo, Platform: platform, Locker: locker, Dispatcher: dispatcher,
		}),
		Platform:   platform,
		Locker:     locker,
		Dispatcher: dispatcher,
		Metrics:    metrics,
	})
	knowledge := &countingInvalidator{}
	history := service.NewHistoryService(repository.NewInMemoryTicketHistoryRepository(), nil)
	history.RegisterHandlers(dispatcher)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:  handlers.NewHealthHandler("support-bot", "test", deps),
		Auth:    handlers.NewAuthHandler(authSvc),
		Tickets: handlers.NewTicketsHandler(tickets, history),
		Admin: handlers.NewAdminHandler(handlers.AdminDependencies{
			Ops:       ops,
			Teach:     service.NewTeachService(repository.NewInMemoryTeachRepository(), nil),
			Memory:    memory,
			Knowledge: knowledge,
			Metrics:   metrics,
		}),
		AuthMiddleware: auth.NewAuthMiddleware(authSvc.TokenManager(), authSvc),
	})

	api := &testAPI{app: app, tickets: tickets, knowledge: knowledge}
	api.owner, _, err = authSvc.TokenManager().GenerateToken("owner", domain.OperatorRoleOwner)
	require.NoError(t, err)
	api.viewer, _, err = authSvc.TokenManager().GenerateToken("viewer", domain.OperatorRoleViewer)
	require.NoError(t, err)
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := a.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t, map[string]handlers.Dependency{
		"postgres": stubDependency{},
		"redis":    stubDependency{enabled: true},
	})
	status, body := api.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = api.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["postgres"])
	assert.Equal(t, "ok", deps["redis"])

	failing := newTestAPI(t, map[string]handlers.Dependency{"redis": stubDependency{enabled: true, err: errors.New("down")}})
	status, body = failing.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(body))
}

func TestLogin(t *testing.T) {
	api := newTestAPI(t, nil)

	status, body := api.do(t, http.MethodPost, "/auth/login", "", `{"username":"owner","password":"pw"}`)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	token := data["auth"].(map[string]any)["token"].(string)

	status, _ = api.do(t, http.MethodGet, "/admin/ai/status", token, "")
	assert.Equal(t, http.StatusOK, status)

	status, body = api.do(t, http.MethodPost, "/auth/login", "", `{"username":"owner","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = api.do(t, http.MethodPost, "/auth/login", "", `{"username":""}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "username is required", details["username"])
	assert.Equal(t, "password is required", details["password"])
}

func TestAIOpsSwitch(t *testing.T) {
	api := newTestAPI(t, nil)

	status, _ := api.do(t, http.MethodGet, "/admin/ai/status", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := api.do(t, http.MethodPost, "/admin/ai/stop", api.viewer, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = api.do(t, http.MethodPost, "/admin/ai/stop", api.owner, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["data"].(map[string]any)["enabled"])

	status, body = api.do(t, http.MethodPost, "/admin/ai/start", api.owner, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["data"].(map[string]any)["enabled"])
}

func TestTeachEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)

	status, body := api.do(t, http.MethodPost, "/admin/teaches", api.owner, `{"trigger":"Store link?","response":"https://store.example"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "store link", body["data"].(map[string]any)["trigger"])
	assert.Equal(t, "operator:owner", body["data"].(map[string]any)["author_id"])

	status, _ = api.do(t, http.MethodPost, "/admin/teaches", api.owner, `{"trigger":"store link","response":"updated"}`)
	assert.Equal(t, http.StatusOK, status)

	status, body = api.do(t, http.MethodGet, "/admin/teaches", api.viewer, "")
	require.Equal(t, http.StatusOK, status)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "updated", items[0].(map[string]any)["response"])

	status, _ = api.do(t, http.MethodDelete, "/admin/teaches/"+url.PathEscape("store link"), api.owner, "")
	assert.Equal(t, http.StatusOK, status)

	status, body = api.do(t, http.MethodDelete, "/admin/teaches/store", api.owner, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = api.do(t, http.MethodPost, "/admin/teaches", api.owner, `{"trigger":"","response":"x"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = api.do(t, http.MethodPost, "/admin/teaches", api.owner, `{"trigger":"`+strings.Repeat("x", 201)+`","response":"x"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"].(map[string]any)["message"], "trigger must be at most 200 characters long")
}

func TestTicketEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)
	ticket, err := api.tickets.CreateTicket(context.Background(), service.CreateTicketInput{
		GuildID: "g", CreatorID: "u1", CreatorName: "Alice", Type: domain.TicketTypeReport, Reason: "griefing",
	})
	require.NoError(t, err)

	status, body := api.do(t, http.MethodGet, "/admin/tickets?status=unclaimed&type=report", api.viewer, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 1)

	status, body = api.do(t, http.MethodGet, "/admin/tickets?status=bogus", api.viewer, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = api.do(t, http.MethodGet, "/admin/tickets/"+ticket.ChannelID, api.viewer, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "griefing", body["data"].(map[string]any)["reason"])

	status, body = api.do(t, http.MethodGet, "/admin/tickets/missing", api.viewer, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = api.do(t, http.MethodGet, "/admin/tickets/"+ticket.ChannelID+"/summary", api.viewer, "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["data"].(map[string]any)["summary"], "User Report")

	status, body = api.do(t, http.MethodPost, "/admin/tickets/"+ticket.ChannelID+"/close", api.owner, `{"reason":"spam","resolved":false}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "closed", body["data"].(map[string]any)["status"])

	status, body = api.do(t, http.MethodPost, "/admin/tickets/"+ticket.ChannelID+"/close", api.owner, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "TICKET_CLOSED", errorCode(body))

	status, body = api.do(t, http.MethodGet, "/admin/tickets/"+ticket.ChannelID+"/history", api.viewer, "")
	require.Equal(t, http.StatusOK, status)
	trail := body["data"].([]any)
	require.Len(t, trail, 2)
	assert.Equal(t, "ticket_created", trail[0].(map[string]any)["event_type"])
	closedEntry := trail[1].(map[string]any)
	assert.Equal(t, "ticket_closed", closedEntry["event_type"])
	assert.Equal(t, "operator:owner", closedEntry["actor_id"])
	assert.Equal(t, "api", closedEntry["payload"].(map[string]any)["trigger"])

	status, _ = api.do(t, http.MethodGet, "/admin/tickets/missing/history", api.viewer, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = api.do(t, http.MethodGet, "/admin/metrics", api.viewer, "")
	require.Equal(t, http.StatusOK, status)
	closures := body["data"].(map[string]any)["closures"].(map[string]any)
	assert.Equal(t, float64(1), closures[service.CloseTriggerAPI])
}

func TestKnowledgeRefreshAndMemory(t *testing.T) {
	api := newTestAPI(t, nil)

	status, _ := api.do(t, http.MethodPost, "/admin/knowledge/refresh", api.owner, "")
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, 1, api.knowledge.calls)

	status, body := api.do(t, http.MethodGet, "/admin/memory/stats", api.viewer, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["data"].(map[string]any)["total"])
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t, nil)
	status, body := api.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}
