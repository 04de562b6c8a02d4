package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/moments/internal/auth"
	"github.com/spec-kit/moments/internal/config"
	"github.com/spec-kit/moments/internal/domain"
	"github.com/spec-kit/moments/internal/events"
	"github.com/spec-kit/moments/internal/repository"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User

	// updateErr, when set, fails every Update.
	updateErr error
	// beforeUpdate runs ahead of each Update, outside the lock.
	beforeUpdate func()
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(user.Email) {
			return &repository.DuplicateError{Field: "email"}
		}
		if u.Username == user.Username {
			return &repository.DuplicateError{Field: "username"}
		}
	}
	user.ID = uuid.NewString()
	user.Email = strings.ToLower(user.Email)
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	user.CreatedAt = time.Now()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	for id, u := range r.users {
		if id != user.ID && u.Email == strings.ToLower(user.Email) {
			return &repository.DuplicateError{Field: "email"}
		}
	}
	cp := *user
	cp.Email = strings.ToLower(cp.Email)
	cp.FailedLogins = stored.FailedLogins
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(email)
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) IncrementFailedLogins(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	u.FailedLogins++
	return u.FailedLogins, nil
}

func (r *fakeUserRepo) ResetFailedLogins(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.FailedLogins = 0
	}
	return nil
}

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *recordingMailer) last() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

const testLockoutThreshold = 3

type testEnv struct {
	svc      *AuthService
	accounts *AccountService
	users    *fakeUserRepo
	sessions repository.SessionRepository
	mailer   *recordingMailer
	redis    *miniredis.Miniredis
	codec    *auth.TokenCodec
	hasher   *auth.BcryptHasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.AuthConfig{
		SecretKey:          "test-secret",
		TokenMaxAgeMinutes: 60,
		SessionTTLMinutes:  60,
		LockoutThreshold:   testLockoutThreshold,
		BcryptCost:         bcrypt.MinCost,
	}
	users := newFakeUserRepo()
	sessions := repository.NewSessionRepository(rdb)
	mailer := &recordingMailer{}
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	NewNotificationService(dispatcher, mailer, "http://moments.test", zap.NewNop(), nil).RegisterHandlers()

	codec := auth.NewTokenCodec(cfg.SecretKey, cfg.TokenMaxAge())
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	svc := NewAuthService(cfg, AuthDependencies{
		UserRepo:    users,
		SessionRepo: sessions,
		Ledger:      repository.NewTokenLedger(rdb),
		Codec:       codec,
		Hasher:      hasher,
		Dispatcher:  dispatcher,
		Logger:      zap.NewNop(),
	})
	return &testEnv{
		svc:      svc,
		accounts: NewAccountService(users, sessions, zap.NewNop()),
		users:    users,
		sessions: sessions,
		mailer:   mailer,
		redis:    mr,
		codec:    codec,
		hasher:   hasher,
	}
}

// seedUser stores a user directly with the given password.
func (e *testEnv) seedUser(t *testing.T, email, password string, mutate func(*domain.User)) *domain.User {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &domain.User{
		Name:         "User " + email,
		Username:     strings.SplitN(email, "@", 2)[0],
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Confirmed:    true,
	}
	if mutate != nil {
		mutate(user)
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (e *testEnv) reload(t *testing.T, id string) *domain.User {
	t.Helper()
	u, err := e.users.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return u
}
