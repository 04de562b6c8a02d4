package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/moments/internal/auth"
	"github.com/spec-kit/moments/internal/domain"
	"github.com/spec-kit/moments/internal/repository"
	apperrors "github.com/spec-kit/moments/pkg/util/errorutil"
)

func TestAccountService_BlockRevokesSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mod := env.seedUser(t, "mod@x.com", "pw", func(u *domain.User) { u.Role = domain.RoleModerator })
	user := env.seedUser(t, "user@x.com", "pw", nil)

	session, err := env.sessions.Create(ctx, user.ID, time.Hour)
	require.NoError(t, err)

	blocked, err := env.accounts.Block(ctx, mod, user.ID)
	require.NoError(t, err)
	assert.True(t, blocked.Blocked)

	_, err = env.sessions.Get(ctx, session.ID)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)

	_, err = env.svc.Login(ctx, "user@x.com", "pw")
	assert.ErrorIs(t, err, ErrAccountBlocked)

	_, err = env.accounts.Unblock(ctx, mod, user.ID)
	require.NoError(t, err)
	_, err = env.svc.Login(ctx, "user@x.com", "pw")
	assert.NoError(t, err)
}

func TestAccountService_LockAndUnlock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mod := env.seedUser(t, "mod@x.com", "pw", func(u *domain.User) { u.Role = domain.RoleModerator })
	user := env.seedUser(t, "user@x.com", "pw", func(u *domain.User) { u.FailedLogins = 10 })

	locked, err := env.accounts.Lock(ctx, mod, user.ID)
	require.NoError(t, err)
	guard := auth.NewGuard(testLockoutThreshold)
	decision := guard.Authorize(&auth.Principal{Session: &domain.Session{ID: "s"}, User: locked}, auth.CapabilityAccessProtected)
	assert.Equal(t, auth.ReasonForbidden, decision.Reason)

	unlocked, err := env.accounts.Unlock(ctx, mod, user.ID)
	require.NoError(t, err)
	assert.False(t, unlocked.Locked)
	assert.Zero(t, unlocked.FailedLogins)
	assert.True(t, guard.Authorize(&auth.Principal{Session: &domain.Session{ID: "s"}, User: unlocked}, auth.CapabilityAccessProtected).Allowed)
}

func TestAccountService_Permissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.seedUser(t, "admin@x.com", "pw", func(u *domain.User) { u.Role = domain.RoleAdministrator })
	mod := env.seedUser(t, "mod@x.com", "pw", func(u *domain.User) { u.Role = domain.RoleModerator })
	user := env.seedUser(t, "user@x.com", "pw", nil)

	_, err := env.accounts.Lock(ctx, user, mod.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), "plain users cannot moderate")

	_, err = env.accounts.Block(ctx, mod, admin.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), "moderators cannot act on administrators")

	_, err = env.accounts.Lock(ctx, mod, mod.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = env.accounts.SetRole(ctx, mod, user.ID, domain.RoleModerator)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	promoted, err := env.accounts.SetRole(ctx, admin, user.ID, domain.RoleModerator)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleModerator, promoted.Role)

	_, err = env.accounts.SetRole(ctx, admin, user.ID, domain.Role("ROOT"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = env.accounts.Lock(ctx, admin, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestAccountService_MalformedIDIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mod := env.seedUser(t, "mod@x.com", "pw", func(u *domain.User) { u.Role = domain.RoleModerator })

	for _, id := range []string{"not-a-uuid", "", "1; DROP TABLE users"} {
		_, err := env.accounts.Block(ctx, mod, id)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "id %q", id)
	}
}

func TestAccountService_LockKeepsConcurrentFailedLogins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mod := env.seedUser(t, "mod@x.com", "pw", func(u *domain.User) { u.Role = domain.RoleModerator })
	user := env.seedUser(t, "user@x.com", "pw", nil)

	env.users.beforeUpdate = func() {
		_, err := env.users.IncrementFailedLogins(ctx, user.ID)
		require.NoError(t, err)
	}
	_, err := env.accounts.Lock(ctx, mod, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, env.reload(t, user.ID).FailedLogins)

	env.users.beforeUpdate = nil
	_, err = env.accounts.Unlock(ctx, mod, user.ID)
	require.NoError(t, err)
	assert.Zero(t, env.reload(t, user.ID).FailedLogins)
}
