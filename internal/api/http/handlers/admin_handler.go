package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/moments/internal/api/dto"
	"github.com/spec-kit/moments/internal/domain"
	"github.com/spec-kit/moments/internal/service"
)

// AdminHandler exposes moderation actions on accounts.
type AdminHandler struct {
	accounts *service.AccountService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(accounts *service.AccountService) *AdminHandler {
	return &AdminHandler{accounts: accounts}
}

type accountAction func(ctx context.Context, actor *domain.User, userID string) (*domain.User, error)

func (h *AdminHandler) run(action accountAction) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := currentUser(c)
		if err != nil {
			return err
		}
		user, err := action(c.UserContext(), p.User, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": fiber.Map{"user": userResponse(user)}})
	}
}

// Lock handles POST /admin/users/:id/lock.
func (h *AdminHandler) Lock(c *fiber.Ctx) error { return h.run(h.accounts.Lock)(c) }

// Unlock handles POST /admin/users/:id/unlock.
func (h *AdminHandler) Unlock(c *fiber.Ctx) error { return h.run(h.accounts.Unlock)(c) }

// Block handles POST /admin/users/:id/block.
func (h *AdminHandler) Block(c *fiber.Ctx) error { return h.run(h.accounts.Block)(c) }

// Unblock handles POST /admin/users/:id/unblock.
func (h *AdminHandler) Unblock(c *fiber.Ctx) error { return h.run(h.accounts.Unblock)(c) }

// SetRole handles PUT /admin/users/:id/role.
func (h *AdminHandler) SetRole(c *fiber.Ctx) error {
	var req dto.SetRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.run(func(ctx context.Context, actor *domain.User, userID string) (*domain.User, error) {
		return h.accounts.SetRole(ctx, actor, userID, domain.Role(req.Role))
	})(c)
}
