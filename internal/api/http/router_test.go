package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
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

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
)

type apiFixture struct {
	t       *testing.T
	app     *fiber.App
	company string
	other   string
	tech    string
	admin   string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	store := memory.NewStore()
	repos := store.Repos()

	acme := &domain.Company{Name: "Acme", Email: "it@acme.test", Active: true}
	require.NoError(t, repos.Companies.Create(ctx, acme))
	globex := &domain.Company{Name: "Globex", Email: "it@globex.test", Active: true}
	require.NoError(t, repos.Companies.Create(ctx, globex))
	tech := &domain.User{Name: "Caio", Email: "caio@desk.test", Role: domain.StaffRoleTechnician, Active: true}
	require.NoError(t, repos.Users.Create(ctx, tech))
	admin := &domain.User{Name: "Ana", Email: "ana@desk.test", Role: domain.StaffRoleAdmin, Active: true}
	require.NoError(t, repos.Users.Create(ctx, admin))

	tokens := auth.NewTokenManager("test-secret", 30)
	issue := func(id int64, subject domain.SubjectType, role domain.StaffRole) string {
		token, _, err := tokens.GenerateToken(id, subject, role)
		require.NoError(t, err)
		return token
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	tickets := service.NewTicketService(service.TicketDependencies{
		Store: store, Dispatcher: dispatcher, Logger: logger, Metrics: metrics,
	})
	notifications := service.NewNotificationService(service.NotificationDependencies{
		Store: store, Dispatcher: dispatcher, Logger: logger,
	})
	notifications.RegisterHandlers()
	authService := service.NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, service.AuthDependencies{
		Store: store, Tokens: tokens, Logger: logger,
	})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk", "test", nil),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repos.Users, repos.Companies),
		Metrics:        metrics,
	})

	return &apiFixture{
		t:       t,
		app:     app,
		company: issue(acme.ID, domain.SubjectTypeCompany, ""),
		other:   issue(globex.ID, domain.SubjectTypeCompany, ""),
		tech:    issue(tech.ID, domain.SubjectTypeStaff, domain.StaffRoleTechnician),
		admin:   issue(admin.ID, domain.SubjectTypeStaff, domain.StaffRoleAdmin),
	}
}

func (f *apiFixture) do(method, path, token string, body any) (int, map[string]any) {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return f.send(req)
}

func (f *apiFixture) send(req *http.Request) (int, map[string]any) {
	f.t.Helper()
	resp, err := f.app.Test(req, -1)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(f.t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (f *apiFixture) createTicket(title string) int64 {
	f.t.Helper()
	status, body := f.do(http.MethodPost, "/tickets", f.company, map[string]any{
		"title":       title,
		"description": "Nothing works since the power outage this morning.",
		"category":    "computer",
		"priority":    "high",
	})
	require.Equal(f.t, http.StatusCreated, status, body)
	return int64(body["data"].(map[string]any)["id"].(float64))
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestCreateAndTransitionTicket(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(http.MethodPost, "/tickets", f.company, map[string]any{
		"title":       "Office printer offline",
		"description": "Nobody on the second floor can print since yesterday.",
		"category":    "printer",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Ticket created successfully", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "created", data["status"])
	assert.Equal(t, "medium", data["priority"])
	id := int64(data["id"].(float64))

	status, body = f.do(http.MethodPost, fmt.Sprintf("/tickets/%d/assume", id), f.tech, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "assumed", body["data"].(map[string]any)["status"])

	status, body = f.do(http.MethodPost, fmt.Sprintf("/tickets/%d/assume", id), f.tech, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "INVALID_STATE_TRANSITION", errorCode(body))

	for _, action := range []string{"in-progress", "resolve", "close"} {
		status, body = f.do(http.MethodPost, fmt.Sprintf("/tickets/%d/%s", id, action), f.tech, nil)
		require.Equal(t, http.StatusOK, status, body)
	}
	assert.Equal(t, "closed", body["data"].(map[string]any)["status"])

	status, body = f.do(http.MethodPost, fmt.Sprintf("/tickets/%d/reopen", id), f.company, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Ticket reopened successfully", body["message"])
	assert.Nil(t, body["data"].(map[string]any)["assigned_user_id"])
}

func TestRoleGatesAndErrors(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createTicket("Cannot reach intranet")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   string
	}{
		{"missing token", http.MethodGet, "/tickets", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage token", http.MethodGet, "/tickets", "nope", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"company cannot assume", http.MethodPost, fmt.Sprintf("/tickets/%d/assume", id), f.company, http.StatusForbidden, "FORBIDDEN"},
		{"staff cannot reopen", http.MethodPost, fmt.Sprintf("/tickets/%d/reopen", id), f.tech, http.StatusForbidden, "FORBIDDEN"},
		{"staff cannot create", http.MethodPost, "/tickets", f.tech, http.StatusForbidden, "FORBIDDEN"},
		{"other company cannot read", http.MethodGet, fmt.Sprintf("/tickets/%d", id), f.other, http.StatusForbidden, "FORBIDDEN"},
		{"non numeric id", http.MethodGet, "/tickets/abc", f.tech, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"unknown ticket", http.MethodPost, "/tickets/999/assume", f.tech, http.StatusNotFound, "NOT_FOUND"},
		{"wrong status", http.MethodPost, fmt.Sprintf("/tickets/%d/dispatch", id), f.tech, http.StatusBadRequest, "INVALID_STATE_TRANSITION"},
		{"technician is not admin", http.MethodPost, "/admin/users", f.tech, http.StatusForbidden, "FORBIDDEN"},
		{"unknown route", http.MethodGet, "/nowhere", "", http.StatusNotFound, "NOT_FOUND"},
		{"bad status filter", http.MethodGet, "/tickets?status=lost", f.tech, http.StatusBadRequest, "VALIDATION_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := f.do(tc.method, tc.path, tc.token, nil)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.code, errorCode(body))
		})
	}
}

func TestCreateTicketValidation(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(http.MethodPost, "/tickets", f.company, map[string]any{"title": "Short"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "is required", details["description"])
	assert.Equal(t, "is required", details["category"])

	status, body = f.do(http.MethodPost, "/tickets", f.company, map[string]any{
		"title":       "Short",
		"description": "The description is long enough to pass.",
		"category":    "computer",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestCreateTicketFromForm(t *testing.T) {
	f := newAPIFixture(t)
	form := url.Values{
		"title":       {"Server rack is beeping"},
		"description": {"A loud beep comes from rack 3 every few minutes."},
		"category":    {"server"},
	}
	req := httptest.NewRequest(http.MethodPost, "/tickets", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+f.company)

	status, body := f.send(req)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "server", body["data"].(map[string]any)["category"])
}

func TestDetailsListAndComments(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createTicket("Mail client crashing")
	for i := 0; i < 11; i++ {
		f.createTicket(fmt.Sprintf("Another request #%d", i))
	}

	status, body := f.do(http.MethodPost, fmt.Sprintf("/tickets/%d/comments", id), f.company, map[string]any{"comment": "It crashes on start"})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, true, body["success"])

	status, body = f.do(http.MethodGet, fmt.Sprintf("/tickets/%d", id), f.tech, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Mail client crashing", body["ticket"].(map[string]any)["title"])
	assert.Len(t, body["logs"], 2)
	assert.Contains(t, body["available_actions"], "assume")

	status, body = f.do(http.MethodGet, "/tickets?page=2", f.company, nil)
	require.Equal(t, http.StatusOK, status, body)
	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, float64(2), pagination["current_page"])
	assert.Equal(t, float64(2), pagination["total_pages"])
	assert.Equal(t, float64(12), pagination["total_items"])
	assert.Len(t, body["tickets"], 2)

	status, body = f.do(http.MethodGet, "/tickets", f.other, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Empty(t, body["tickets"])
}

func TestNotificationEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createTicket("Laptop battery swollen")
	status, _ := f.do(http.MethodPost, fmt.Sprintf("/tickets/%d/assume", id), f.tech, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(http.MethodPost, fmt.Sprintf("/tickets/%d/dispatch", id), f.tech, nil)
	require.Equal(t, http.StatusOK, status)

	status, body := f.do(http.MethodGet, "/notifications/unread-count", f.company, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["unread_count"])

	status, body = f.do(http.MethodGet, "/notifications", f.company, nil)
	require.Equal(t, http.StatusOK, status)
	items := body["notifications"].([]any)
	require.Len(t, items, 2)
	first := int64(items[0].(map[string]any)["id"].(float64))

	status, body = f.do(http.MethodPost, fmt.Sprintf("/notifications/%d/read", first), f.other, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, _ = f.do(http.MethodPost, fmt.Sprintf("/notifications/%d/read", first), f.company, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = f.do(http.MethodPost, "/notifications/read-all", f.company, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["updated"])

	status, body = f.do(http.MethodPost, "/notifications/read-all", f.company, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["updated"])

	status, _ = f.do(http.MethodDelete, fmt.Sprintf("/notifications/%d", first), f.company, nil)
	require.Equal(t, http.StatusOK, status)
	status, body = f.do(http.MethodGet, "/notifications?unread=true", f.company, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["notifications"])
	assert.Equal(t, float64(0), body["unread_count"])
}

func TestAdminProvisioningAndLogin(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(http.MethodPost, "/admin/companies", f.admin, map[string]any{
		"name":     "Initech",
		"email":    "it@initech.test",
		"password": "tps-reports",
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = f.do(http.MethodPost, "/auth/companies/login", "", map[string]any{
		"email":    "it@initech.test",
		"password": "tps-reports",
	})
	require.Equal(t, http.StatusOK, status, body)
	token := body["data"].(map[string]any)["auth"].(map[string]any)["token"].(string)

	status, body = f.do(http.MethodPost, "/tickets", token, map[string]any{
		"title":       "First ticket from Initech",
		"description": "The stapler was moved to the basement again.",
		"category":    "other",
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = f.do(http.MethodPost, "/admin/users", f.admin, map[string]any{
		"name":     "Bia",
		"email":    "bia@desk.test",
		"password": "attendant-pass",
		"role":     "attendant",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "attendant", body["data"].(map[string]any)["role"])

	status, body = f.do(http.MethodPost, "/auth/staff/login", "", map[string]any{
		"email":    "bia@desk.test",
		"password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = f.do(http.MethodPost, "/auth/staff/login", "", map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = f.do(http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	f.do(http.MethodGet, "/tickets", "", nil)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `helpdesk_http_errors_total{code="UNAUTHORIZED",method="GET"`)
	assert.Contains(t, string(raw), "helpdesk_http_requests_total")
}
