package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/moments/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// ErrNoSession is returned by a SessionResolver when the session id is
// unknown, expired or points at a missing user.
var ErrNoSession = errors.New("no session")

// SessionResolver turns a session id into the calling principal.
type SessionResolver interface {
	Authenticate(ctx context.Context, sessionID string) (*Principal, error)
}

// SessionCookie describes the cookie carrying the session id.
type SessionCookie struct {
	Name   string
	Secure bool
}

// Set writes the session cookie.
func (s SessionCookie) Set(c *fiber.Ctx, sessionID string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     s.Name,
		Value:    sessionID,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Clear expires the session cookie.
func (s SessionCookie) Clear(c *fiber.Ctx) {
	c.ClearCookie(s.Name)
}

// SessionMiddleware loads the principal for requests that carry a session
// cookie. Requests without one pass through anonymously; the guard decides.
type SessionMiddleware struct {
	resolver SessionResolver
	cookie   SessionCookie
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(resolver SessionResolver, cookie SessionCookie) *SessionMiddleware {
	return &SessionMiddleware{resolver: resolver, cookie: cookie}
}

// Handle resolves the session cookie into a principal.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	sessionID := c.Cookies(m.cookie.Name)
	if sessionID == "" {
		return c.Next()
	}

	principal, err := m.resolver.Authenticate(c.UserContext(), sessionID)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			m.cookie.Clear(c)
			return c.Next()
		}
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
