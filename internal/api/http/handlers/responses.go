package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/moments/internal/api/dto"
	"github.com/spec-kit/moments/internal/auth"
	"github.com/spec-kit/moments/internal/domain"
)

func userResponse(u *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		Username:    u.Username,
		Email:       u.Email,
		Role:        string(u.Role),
		Confirmed:   u.Confirmed,
		Locked:      u.Locked,
		Blocked:     u.Blocked,
		MemberSince: u.MemberSince,
	}
}

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"data": fiber.Map{"message": msg}})
}

// currentUser returns the authenticated caller. Routes using it sit behind
// a guard, so a missing principal means the route was wired wrong.
func currentUser(c *fiber.Ctx) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok || p.User == nil {
		return nil, auth.ErrLoginRequired
	}
	return p, nil
}
