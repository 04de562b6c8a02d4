package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/moments/internal/auth"
	"github.com/spec-kit/moments/internal/domain"
	"github.com/spec-kit/moments/internal/repository"
	apperrors "github.com/spec-kit/moments/pkg/util/errorutil"
)

// AccountService carries out moderator and administrator actions on accounts.
type AccountService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	logger   *zap.Logger
}

// NewAccountService constructs the service.
func NewAccountService(users repository.UserRepository, sessions repository.SessionRepository, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{users: users, sessions: sessions, logger: logger}
}

// Lock restricts the account from protected actions. Login still works.
func (s *AccountService) Lock(ctx context.Context, actor *domain.User, userID string) (*domain.User, error) {
	return s.apply(ctx, actor, userID, auth.CapabilityModerate, func(u *domain.User) {
		u.Locked = true
	})
}

// Unlock lifts an administrative lock and any failed-login lockout.
func (s *AccountService) Unlock(ctx context.Context, actor *domain.User, userID string) (*domain.User, error) {
	user, err := s.apply(ctx, actor, userID, auth.CapabilityModerate, func(u *domain.User) {
		u.Locked = false
	})
	if err != nil {
		return nil, err
	}
	if err := s.users.ResetFailedLogins(ctx, user.ID); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user.FailedLogins = 0
	return user, nil
}

// Block bars the account from logging in and ends its open sessions.
func (s *AccountService) Block(ctx context.Context, actor *domain.User, userID string) (*domain.User, error) {
	user, err := s.apply(ctx, actor, userID, auth.CapabilityModerate, func(u *domain.User) {
		u.Blocked = true
	})
	if err != nil {
		return nil, err
	}
	if err := s.sessions.DeleteForUser(ctx, user.ID); err != nil {
		s.logger.Warn("revoke sessions", zap.String("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

// Unblock restores login ability.
func (s *AccountService) Unblock(ctx context.Context, actor *domain.User, userID string) (*domain.User, error) {
	return s.apply(ctx, actor, userID, auth.CapabilityModerate, func(u *domain.User) {
		u.Blocked = false
	})
}

// SetRole changes the account's role. Administrators only.
func (s *AccountService) SetRole(ctx context.Context, actor *domain.User, userID string, role domain.Role) (*domain.User, error) {
	switch role {
	case domain.RoleUser, domain.RoleModerator, domain.RoleAdministrator:
	default:
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	return s.apply(ctx, actor, userID, auth.CapabilityAdminister, func(u *domain.User) {
		u.Role = role
	})
}

func (s *AccountService) apply(ctx context.Context, actor *domain.User, userID string, capability auth.Capability, mutate func(*domain.User)) (*domain.User, error) {
	if actor == nil || !auth.RoleAllows(actor.Role, capability) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	if actor.ID == userID {
		return nil, apperrors.NewForbidden("cannot change your own account")
	}

	if _, err := uuid.Parse(userID); err != nil {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	// Moderators may not act on administrators.
	if user.Role == domain.RoleAdministrator && !auth.RoleAllows(actor.Role, auth.CapabilityAdminister) {
		return nil, apperrors.NewForbidden("insufficient role")
	}

	mutate(user)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("account updated",
		zap.String("actor_id", actor.ID),
		zap.String("user_id", user.ID),
		zap.Bool("locked", user.Locked),
		zap.Bool("blocked", user.Blocked),
		zap.String("role", string(user.Role)))
	return user, nil
}
