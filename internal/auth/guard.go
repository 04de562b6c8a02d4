package auth

import (
	"github.com/spec-kit/moments/internal/domain"
)

// Capability names an action the guard can authorize.
type Capability string

const (
	CapabilityAccessProtected Capability = "ACCESS_PROTECTED_ACTION"
	CapabilityModerate        Capability = "MODERATE"
	CapabilityAdminister      Capability = "ADMINISTER"
)

// Principal is the caller resolved from a session.
type Principal struct {
	Session *domain.Session
	User    *domain.User
}

// DenyReason explains a denied decision.
type DenyReason string

const (
	ReasonLoginRequired DenyReason = "LOGIN_REQUIRED"
	ReasonUnconfirmed   DenyReason = "UNCONFIRMED"
	ReasonForbidden     DenyReason = "FORBIDDEN"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Err converts a denial to its user facing error; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonLoginRequired:
		return ErrLoginRequired
	case ReasonUnconfirmed:
		return ErrUnconfirmed
	default:
		return ErrForbidden
	}
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason DenyReason) Decision { return Decision{Reason: reason} }

// Guard gates protected actions on account state.
type Guard struct {
	lockoutThreshold int
}

// NewGuard builds a guard that treats accounts with lockoutThreshold
// consecutive failed logins as locked.
func NewGuard(lockoutThreshold int) *Guard {
	return &Guard{lockoutThreshold: lockoutThreshold}
}

// Authorize evaluates, first match wins: no session, unconfirmed, locked,
// blocked, missing role capability.
func (g *Guard) Authorize(p *Principal, capability Capability) Decision {
	if p == nil || p.Session == nil || p.User == nil {
		return deny(ReasonLoginRequired)
	}

	state := p.User.State(g.lockoutThreshold)
	if !state.Confirmed {
		return deny(ReasonUnconfirmed)
	}
	if state.Locked {
		return deny(ReasonForbidden)
	}
	if !state.Active {
		return deny(ReasonForbidden)
	}
	if !RoleAllows(p.User.Role, capability) {
		return deny(ReasonForbidden)
	}
	return allow()
}
