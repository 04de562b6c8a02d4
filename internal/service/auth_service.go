package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/moments/internal/auth"
	"github.com/spec-kit/moments/internal/config"
	"github.com/spec-kit/moments/internal/domain"
	"github.com/spec-kit/moments/internal/events"
	"github.com/spec-kit/moments/internal/observability"
	"github.com/spec-kit/moments/internal/repository"
	apperrors "github.com/spec-kit/moments/pkg/util/errorutil"
)

// PasswordHasher hashes and checks account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashed, plain string) (bool, error)
	Burn(plain string)
}

// AuthService coordinates registration, login, confirmation and password
// reset flows.
type AuthService struct {
	users            repository.UserRepository
	sessions         repository.SessionRepository
	ledger           repository.TokenLedger
	codec            *auth.TokenCodec
	hasher           PasswordHasher
	dispatcher       events.Dispatcher
	logger           *zap.Logger
	metrics          *observability.Metrics
	lockoutThreshold int
	sessionTTL       time.Duration
	now              func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	SessionRepo repository.SessionRepository
	Ledger      repository.TokenLedger
	Codec       *auth.TokenCodec
	Hasher      PasswordHasher
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// NewAuthService builds the service. A nil Codec or Hasher is derived from cfg.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	codec := deps.Codec
	if codec == nil {
		codec = auth.NewTokenCodec(cfg.SecretKey, cfg.TokenMaxAge())
	}
	var hasher PasswordHasher = deps.Hasher
	if hasher == nil {
		hasher = auth.NewBcryptHasher(cfg.BcryptCost)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:            deps.UserRepo,
		sessions:         deps.SessionRepo,
		ledger:           deps.Ledger,
		codec:            codec,
		hasher:           hasher,
		dispatcher:       deps.Dispatcher,
		logger:           logger,
		metrics:          deps.Metrics,
		lockoutThreshold: cfg.LockoutThreshold,
		sessionTTL:       cfg.SessionTTL(),
		now:              time.Now,
	}
}

// LoginResult is a successful login.
type LoginResult struct {
	User    *domain.User
	Session *domain.Session
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Name     string
	Email    string
	Username string
	Password string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login checks, in order: account exists, not locked out, password
// matches, not blocked. Failed password checks bump the counter; success
// clears it and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (result *LoginResult, err error) {
	defer func() { s.metrics.RecordAuthOutcome("login", outcome(err)) }()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			s.hasher.Burn(password)
			return nil, ErrInvalidCredentials
		}
		return nil, apperrors.NewInternalError(err)
	}

	if user.LockedOut(s.lockoutThreshold) {
		return nil, ErrAccountLocked
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !ok {
		count, err := s.users.IncrementFailedLogins(ctx, user.ID)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		if s.lockoutThreshold > 0 && count >= s.lockoutThreshold {
			s.logger.Warn("account locked out", zap.String("user_id", user.ID), zap.Int("failed_logins", count))
		}
		return nil, ErrInvalidCredentials
	}

	if user.Blocked {
		return nil, ErrAccountBlocked
	}

	if user.FailedLogins > 0 {
		if err := s.users.ResetFailedLogins(ctx, user.ID); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.FailedLogins = 0
	}

	session, err := s.sessions.Create(ctx, user.ID, s.sessionTTL)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{User: user, Session: session}, nil
}

// Register creates an unconfirmed account and sends its confirmation token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (user *domain.User, token string, err error) {
	defer func() { s.metrics.RecordAuthOutcome("register", outcome(err)) }()

	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" || in.Password == "" {
		return nil, "", apperrors.NewValidationError("name, email, username and password are required", nil)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", apperrors.NewConflict("The email is already in use.", map[string]any{"field": "email"})
	} else if !isNotFound(err) {
		return nil, "", apperrors.NewInternalError(err)
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, "", apperrors.NewConflict("The username is already in use.", map[string]any{"field": "username"})
	} else if !isNotFound(err) {
		return nil, "", apperrors.NewInternalError(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}

	user = &domain.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			return nil, "", apperrors.NewConflict("The "+dup.Field+" is already in use.", map[string]any{"field": dup.Field})
		}
		return nil, "", apperrors.NewInternalError(err)
	}

	token, err = s.codec.Issue(auth.ConfirmAccountPayload{UserID: user.ID})
	if err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.EventAccountRegistered, user.ID, events.TokenMailPayload{
		Name:  user.Name,
		Email: user.Email,
		Token: token,
	})
	return user, token, nil
}

// Confirm marks the token's account confirmed. Confirming an already
// confirmed account is a no-op.
func (s *AuthService) Confirm(ctx context.Context, token string) (err error) {
	defer func() { s.metrics.RecordAuthOutcome("confirm", outcome(err)) }()

	verified, err := s.codec.Verify(token, auth.OperationConfirmAccount)
	if err != nil {
		return err
	}
	payload := verified.Payload.(auth.ConfirmAccountPayload)

	user, err := s.loadUser(ctx, payload.UserID)
	if err != nil {
		return err
	}
	if user.Confirmed {
		return nil
	}

	if err := s.consume(ctx, verified); err != nil {
		return err
	}
	user.Confirmed = true
	if err := s.users.Update(ctx, user); err != nil {
		s.release(ctx, verified)
		return apperrors.NewInternalError(err)
	}
	return nil
}

// ResendConfirmation issues a new confirmation token. It returns an empty
// token when the account is already confirmed.
func (s *AuthService) ResendConfirmation(ctx context.Context, userID string) (string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.Confirmed {
		return "", nil
	}
	token, err := s.codec.Issue(auth.ConfirmAccountPayload{UserID: user.ID})
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.EventConfirmationRequested, user.ID, events.TokenMailPayload{
		Name:  user.Name,
		Email: user.Email,
		Token: token,
	})
	return token, nil
}

// RequestPasswordReset issues a reset token for the account behind email.
// Unknown addresses yield an empty token and no error.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (token string, err error) {
	defer func() { s.metrics.RecordAuthOutcome("forget_password", outcome(err)) }()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			s.logger.Info("password reset for unknown email")
			return "", nil
		}
		return "", apperrors.NewInternalError(err)
	}

	token, err = s.codec.Issue(auth.ResetPasswordPayload{UserID: user.ID})
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.EventPasswordResetRequested, user.ID, events.TokenMailPayload{
		Name:  user.Name,
		Email: user.Email,
		Token: token,
	})
	return token, nil
}

// ResetPassword spends a reset token and stores the new password. The
// failed-login counter is cleared so a locked out user can log in again.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { s.metrics.RecordAuthOutcome("reset_password", outcome(err)) }()

	if newPassword == "" {
		return apperrors.NewValidationError("password is required", nil)
	}
	verified, err := s.codec.Verify(token, auth.OperationResetPassword)
	if err != nil {
		return err
	}
	payload := verified.Payload.(auth.ResetPasswordPayload)

	user, err := s.loadUser(ctx, payload.UserID)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.consume(ctx, verified); err != nil {
		return err
	}

	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		s.release(ctx, verified)
		return apperrors.NewInternalError(err)
	}
	if err := s.users.ResetFailedLogins(ctx, user.ID); err != nil {
		s.logger.Warn("reset failed logins", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.publish(ctx, events.EventPasswordChanged, user.ID, events.PasswordChangedPayload{
		Name:  user.Name,
		Email: user.Email,
		Reset: true,
	})
	return nil
}

// VerifyToken checks a token for op without spending it. Spent tokens are
// rejected as invalid.
func (s *AuthService) VerifyToken(ctx context.Context, token string, op auth.Operation) (*auth.VerifiedToken, error) {
	verified, err := s.codec.Verify(token, op)
	if err != nil {
		return nil, err
	}
	used, err := s.ledger.IsConsumed(ctx, verified.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if used {
		return nil, auth.ErrTokenInvalid
	}
	return verified, nil
}

// RequestEmailChange sends a change-email token to newEmail.
func (s *AuthService) RequestEmailChange(ctx context.Context, userID, newEmail string) (string, error) {
	email := normalizeEmail(newEmail)
	if email == "" {
		return "", apperrors.NewValidationError("email is required", nil)
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return "", err
	}

	token, err := s.codec.Issue(auth.ChangeEmailPayload{UserID: user.ID, NewEmail: email})
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.EventEmailChangeRequested, user.ID, events.TokenMailPayload{
		Name:  user.Name,
		Email: email,
		Token: token,
	})
	return token, nil
}

// ChangeEmail spends a change-email token. When caller is non-nil the token
// must belong to that user.
func (s *AuthService) ChangeEmail(ctx context.Context, caller *domain.User, token string) (err error) {
	defer func() { s.metrics.RecordAuthOutcome("change_email", outcome(err)) }()

	verified, err := s.codec.Verify(token, auth.OperationChangeEmail)
	if err != nil {
		return err
	}
	payload := verified.Payload.(auth.ChangeEmailPayload)
	if caller != nil && caller.ID != payload.UserID {
		return auth.ErrTokenInvalid
	}

	user, err := s.loadUser(ctx, payload.UserID)
	if err != nil {
		return err
	}
	if err := s.ensureEmailFree(ctx, payload.NewEmail); err != nil {
		return err
	}
	if err := s.consume(ctx, verified); err != nil {
		return err
	}

	user.Email = payload.NewEmail
	if err := s.users.Update(ctx, user); err != nil {
		s.release(ctx, verified)
		if errors.Is(err, repository.ErrDuplicate) {
			return apperrors.NewConflict("The email is already in use.", map[string]any{"field": "email"})
		}
		return apperrors.NewInternalError(err)
	}
	return nil
}

// ChangePassword verifies the current password before storing the new one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if newPassword == "" {
		return apperrors.NewValidationError("password is required", nil)
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.hasher.Verify(user.PasswordHash, currentPassword)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.EventPasswordChanged, user.ID, events.PasswordChangedPayload{
		Name:  user.Name,
		Email: user.Email,
	})
	return nil
}

// Logout destroys the session. Store failures are logged, not returned.
func (s *AuthService) Logout(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("delete session", zap.Error(err))
	}
}

// Authenticate resolves a session id to the calling principal.
func (s *AuthService) Authenticate(ctx context.Context, sessionID string) (*auth.Principal, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, auth.ErrNoSession
		}
		return nil, apperrors.NewInternalError(err)
	}
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if isNotFound(err) {
			s.Logout(ctx, session.ID)
			return nil, auth.ErrNoSession
		}
		return nil, apperrors.NewInternalError(err)
	}
	return &auth.Principal{Session: session, User: user}, nil
}

// SessionTTL is the lifetime given to new sessions.
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

func (s *AuthService) loadUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, auth.ErrTokenInvalid
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return apperrors.NewConflict("The email is already in use.", map[string]any{"field": "email"})
	}
	if !isNotFound(err) {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (s *AuthService) consume(ctx context.Context, verified *auth.VerifiedToken) error {
	if err := s.ledger.Consume(ctx, verified.ID, verified.ExpiresAt); err != nil {
		if errors.Is(err, repository.ErrTokenConsumed) {
			return auth.ErrTokenInvalid
		}
		return apperrors.NewInternalError(err)
	}
	return nil
}

// release undoes consume after the write the token authorized failed, so
// the same link can be retried.
func (s *AuthService) release(ctx context.Context, verified *auth.VerifiedToken) {
	if err := s.ledger.Release(ctx, verified.ID); err != nil {
		s.logger.Error("release token", zap.String("token_id", verified.ID), zap.Error(err))
	}
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, userID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: s.now().UTC(),
		Payload:   payload,
	})
}
