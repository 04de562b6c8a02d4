package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/moments/internal/api/dto"
	"github.com/spec-kit/moments/internal/service"
)

// SettingsHandler serves account settings for the logged in user.
type SettingsHandler struct {
	auth *service.AuthService
}

// NewSettingsHandler constructs handler.
func NewSettingsHandler(authService *service.AuthService) *SettingsHandler {
	return &SettingsHandler{auth: authService}
}

// RequestEmailChange handles POST /settings/change-email.
func (h *SettingsHandler) RequestEmailChange(c *fiber.Ctx) error {
	p, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ChangeEmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if _, err := h.auth.RequestEmailChange(c.UserContext(), p.User.ID, req.Email); err != nil {
		return err
	}
	return message(c, http.StatusAccepted, "Confirm email sent, check your inbox.")
}

// ChangeEmail handles GET /settings/change-email/:token.
func (h *SettingsHandler) ChangeEmail(c *fiber.Ctx) error {
	p, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.auth.ChangeEmail(c.UserContext(), p.User, c.Params("token")); err != nil {
		return err
	}
	return message(c, http.StatusOK, "Email updated.")
}

// ChangePassword handles POST /settings/change-password.
func (h *SettingsHandler) ChangePassword(c *fiber.Ctx) error {
	p, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ChangePassword(c.UserContext(), p.User.ID, req.OldPassword, req.Password); err != nil {
		return err
	}
	return message(c, http.StatusOK, "Password updated.")
}
