package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/moments/internal/api/http/handlers"
	"github.com/spec-kit/moments/internal/auth"
	"github.com/spec-kit/moments/internal/config"
	"github.com/spec-kit/moments/internal/domain"
	"github.com/spec-kit/moments/internal/events"
	"github.com/spec-kit/moments/internal/observability"
	"github.com/spec-kit/moments/internal/repository"
	"github.com/spec-kit/moments/internal/service"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func (r *memoryUsers) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return &repository.DuplicateError{Field: "email"}
		}
	}
	u.ID = uuid.NewString()
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	r.users[u.ID] = *u
	return nil
}

func (r *memoryUsers) Update(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	cp.FailedLogins = r.users[u.ID].FailedLogins
	r.users[u.ID] = cp
	return nil
}

func (r *memoryUsers) get(match func(domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.get(func(u domain.User) bool { return u.ID == id })
}

func (r *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.get(func(u domain.User) bool { return u.Email == strings.ToLower(email) })
}

func (r *memoryUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.get(func(u domain.User) bool { return u.Username == username })
}

func (r *memoryUsers) IncrementFailedLogins(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[id]
	u.FailedLogins++
	r.users[id] = u
	return u.FailedLogins, nil
}

func (r *memoryUsers) ResetFailedLogins(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[id]
	u.FailedLogins = 0
	r.users[id] = u
	return nil
}

type inbox struct {
	mu     sync.Mutex
	bodies []string
}

func (i *inbox) Send(_ context.Context, _, _, body string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.bodies = append(i.bodies, body)
	return nil
}

var linkToken = regexp.MustCompile(`/(?:confirm|reset-password|change-email)/([A-Za-z0-9_\-.]+)`)

func (i *inbox) lastToken(t *testing.T) string {
	t.Helper()
	i.mu.Lock()
	defer i.mu.Unlock()
	require.NotEmpty(t, i.bodies)
	m := linkToken.FindStringSubmatch(i.bodies[len(i.bodies)-1])
	require.Len(t, m, 2)
	return m[1]
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	app   *fiber.App
	users *memoryUsers
	inbox *inbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.AuthConfig{
		SecretKey:          "test-secret",
		TokenMaxAgeMinutes: 60,
		SessionTTLMinutes:  60,
		LockoutThreshold:   3,
		BcryptCost:         bcrypt.MinCost,
		CookieName:         "moments_session",
	}
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	users := &memoryUsers{users: map[string]domain.User{}}
	sessions := repository.NewSessionRepository(rdb)
	box := &inbox{}

	dispatcher := events.NewInMemoryDispatcher(logger)
	service.NewNotificationService(dispatcher, box, "http://moments.test", logger, metrics).RegisterHandlers()
	authService := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo:    users,
		SessionRepo: sessions,
		Ledger:      repository.NewTokenLedger(rdb),
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
	})
	cookie := auth.SessionCookie{Name: cfg.CookieName}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger, metrics)})
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:   handlers.NewHealthHandler("moments", "test", map[string]handlers.Pinger{"redis": stubPinger{}}),
		Auth:     handlers.NewAuthHandler(authService, cookie),
		Settings: handlers.NewSettingsHandler(authService),
		Admin:    handlers.NewAdminHandler(service.NewAccountService(users, sessions, logger)),
		Sessions: auth.NewSessionMiddleware(authService, cookie),
		Guard:    auth.NewGuard(cfg.LockoutThreshold),
		Metrics:  metrics,
	})
	return &testServer{app: app, users: users, inbox: box}
}

type response struct {
	status int
	body   map[string]any
	cookie string
	header map[string][]string
}

func (s *testServer) do(t *testing.T, method, path, body, cookie string) response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if cookie != "" {
		req.Header.Set(fiber.HeaderCookie, "moments_session="+cookie)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, header: resp.Header}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	for _, c := range resp.Cookies() {
		if c.Name == "moments_session" {
			out.cookie = c.Value
		}
	}
	return out
}

func errorCode(r response) string {
	errBody, _ := r.body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

const registerBody = `{"name":"Grey Li","email":"test@x.com","username":"test","password":"12345678"}`

func TestRouter_RegisterConfirmLoginFlow(t *testing.T) {
	s := newTestServer(t)

	r := s.do(t, fiber.MethodPost, "/auth/register", registerBody, "")
	require.Equal(t, fiber.StatusCreated, r.status)
	token := s.inbox.lastToken(t)

	r = s.do(t, fiber.MethodGet, "/auth/confirm/bad", "", "")
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "TOKEN_INVALID", errorCode(r))

	r = s.do(t, fiber.MethodPost, "/auth/login", `{"email":"test@x.com","password":"12345678"}`, "")
	require.Equal(t, fiber.StatusOK, r.status)
	session := r.cookie
	require.NotEmpty(t, session)

	r = s.do(t, fiber.MethodPost, "/settings/change-password", `{"old_password":"12345678","password":"abcdefgh","password_confirm":"abcdefgh"}`, session)
	assert.Equal(t, fiber.StatusForbidden, r.status)
	assert.Equal(t, "UNCONFIRMED", errorCode(r))

	r = s.do(t, fiber.MethodGet, "/auth/confirm/"+token, "", "")
	require.Equal(t, fiber.StatusOK, r.status)

	r = s.do(t, fiber.MethodGet, "/auth/me", "", session)
	require.Equal(t, fiber.StatusOK, r.status)
	user := r.body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, true, user["confirmed"])

	r = s.do(t, fiber.MethodPost, "/settings/change-password", `{"old_password":"12345678","password":"abcdefgh","password_confirm":"abcdefgh"}`, session)
	assert.Equal(t, fiber.StatusOK, r.status)

	r = s.do(t, fiber.MethodGet, "/auth/logout", "", session)
	assert.Equal(t, fiber.StatusOK, r.status)

	r = s.do(t, fiber.MethodGet, "/auth/me", "", session)
	assert.Equal(t, fiber.StatusUnauthorized, r.status)
}

func TestRouter_ProtectedWithoutSession(t *testing.T) {
	s := newTestServer(t)

	r := s.do(t, fiber.MethodPost, "/settings/change-email", `{"email":"new@x.com"}`, "")
	assert.Equal(t, fiber.StatusUnauthorized, r.status)
	assert.Equal(t, "LOGIN_REQUIRED", errorCode(r))
	assert.Equal(t, "/auth/login?next=/settings/change-email", r.header[fiber.HeaderLocation][0])
}

func TestRouter_LoginFailures(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, fiber.StatusCreated, s.do(t, fiber.MethodPost, "/auth/register", registerBody, "").status)

	for i := 0; i < 3; i++ {
		r := s.do(t, fiber.MethodPost, "/auth/login", `{"email":"test@x.com","password":"wrong"}`, "")
		assert.Equal(t, fiber.StatusUnauthorized, r.status)
		assert.Equal(t, "INVALID_CREDENTIALS", errorCode(r))
	}
	r := s.do(t, fiber.MethodPost, "/auth/login", `{"email":"test@x.com","password":"12345678"}`, "")
	assert.Equal(t, fiber.StatusForbidden, r.status)
	assert.Equal(t, "LOCKED", errorCode(r))

	r = s.do(t, fiber.MethodPost, "/auth/login", `{"email":"not-an-email","password":"x"}`, "")
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(r))
}

func TestRouter_PasswordReset(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, fiber.StatusCreated, s.do(t, fiber.MethodPost, "/auth/register", registerBody, "").status)

	r := s.do(t, fiber.MethodPost, "/auth/forget-password", `{"email":"nobody@x.com"}`, "")
	assert.Equal(t, fiber.StatusAccepted, r.status)

	r = s.do(t, fiber.MethodPost, "/auth/forget-password", `{"email":"test@x.com"}`, "")
	require.Equal(t, fiber.StatusAccepted, r.status)
	token := s.inbox.lastToken(t)

	r = s.do(t, fiber.MethodPost, "/auth/reset-password/"+token, `{"password":"newpass12","password_confirm":"mismatch"}`, "")
	assert.Equal(t, fiber.StatusBadRequest, r.status)

	r = s.do(t, fiber.MethodPost, "/auth/reset-password/"+token, `{"password":"newpass12","password_confirm":"newpass12"}`, "")
	require.Equal(t, fiber.StatusOK, r.status)

	r = s.do(t, fiber.MethodPost, "/auth/reset-password/"+token, `{"password":"newpass34","password_confirm":"newpass34"}`, "")
	assert.Equal(t, "TOKEN_INVALID", errorCode(r))

	r = s.do(t, fiber.MethodPost, "/auth/login", `{"email":"test@x.com","password":"newpass12"}`, "")
	assert.Equal(t, fiber.StatusOK, r.status)
}

func TestRouter_AdminRequiresModerator(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, fiber.StatusCreated, s.do(t, fiber.MethodPost, "/auth/register", registerBody, "").status)
	require.Equal(t, fiber.StatusOK, s.do(t, fiber.MethodGet, "/auth/confirm/"+s.inbox.lastToken(t), "", "").status)

	session := s.do(t, fiber.MethodPost, "/auth/login", `{"email":"test@x.com","password":"12345678"}`, "").cookie
	r := s.do(t, fiber.MethodPost, "/admin/users/"+uuid.NewString()+"/lock", "", session)
	assert.Equal(t, fiber.StatusForbidden, r.status)
	assert.Equal(t, "FORBIDDEN", errorCode(r))

	mod, err := s.users.GetByEmail(context.Background(), "test@x.com")
	require.NoError(t, err)
	mod.Role = domain.RoleModerator
	require.NoError(t, s.users.Update(context.Background(), mod))

	r = s.do(t, fiber.MethodPost, "/admin/users/"+uuid.NewString()+"/lock", "", session)
	assert.Equal(t, fiber.StatusNotFound, r.status)

	r = s.do(t, fiber.MethodPost, "/admin/users/not-a-uuid/block", "", session)
	assert.Equal(t, fiber.StatusNotFound, r.status)
	assert.Equal(t, "NOT_FOUND", errorCode(r))

	r = s.do(t, fiber.MethodPut, "/admin/users/"+uuid.NewString()+"/role", `{"role":"ADMINISTRATOR"}`, session)
	assert.Equal(t, fiber.StatusForbidden, r.status)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, fiber.StatusOK, s.do(t, fiber.MethodGet, "/health/live", "", "").status)
	assert.Equal(t, fiber.StatusOK, s.do(t, fiber.MethodGet, "/health/ready", "", "").status)
	assert.Equal(t, fiber.StatusOK, s.do(t, fiber.MethodGet, "/metrics", "", "").status)

	r := s.do(t, fiber.MethodGet, "/nowhere", "", "")
	assert.Equal(t, fiber.StatusNotFound, r.status)
}

func TestHealthHandler_NotReady(t *testing.T) {
	app := fiber.New()
	h := handlers.NewHealthHandler("moments", "test", map[string]handlers.Pinger{
		"postgres": stubPinger{err: errors.New("down")},
		"redis":    stubPinger{},
	})
	app.Get("/ready", h.Ready)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
