package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/moments/internal/domain"
)

var roleCapabilities = map[domain.Role]map[Capability]struct{}{
	domain.RoleUser: {
		CapabilityAccessProtected: {},
	},
	domain.RoleModerator: {
		CapabilityAccessProtected: {},
		CapabilityModerate:        {},
	},
	domain.RoleAdministrator: {
		CapabilityAccessProtected: {},
		CapabilityModerate:        {},
		CapabilityAdminister:      {},
	},
}

// RoleAllows reports whether role grants capability. Unknown roles get
// the baseline user capabilities.
func RoleAllows(role domain.Role, capability Capability) bool {
	caps, ok := roleCapabilities[role]
	if !ok {
		caps = roleCapabilities[domain.RoleUser]
	}
	_, allowed := caps[capability]
	return allowed
}

// Require rejects requests whose principal the guard does not authorize
// for capability.
func Require(guard *Guard, capability Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		decision := guard.Authorize(principal, capability)
		if decision.Allowed {
			return c.Next()
		}
		if decision.Reason == ReasonLoginRequired {
			c.Set(fiber.HeaderLocation, "/auth/login?next="+c.OriginalURL())
		}
		return decision.Err()
	}
}

// RequireSession only checks that a session is present.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if p, ok := PrincipalFromContext(c); !ok || p.Session == nil {
			return ErrLoginRequired
		}
		return c.Next()
	}
}
