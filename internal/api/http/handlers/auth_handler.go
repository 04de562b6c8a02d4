package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/moments/internal/api/dto"
	"github.com/spec-kit/moments/internal/auth"
	"github.com/spec-kit/moments/internal/service"
)

// AuthHandler exposes the account flows under /auth.
type AuthHandler struct {
	auth   *service.AuthService
	cookie auth.SessionCookie
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookie auth.SessionCookie) *AuthHandler {
	return &AuthHandler{auth: authService, cookie: cookie}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	// A login replaces whatever session the browser held.
	if p, ok := auth.PrincipalFromContext(c); ok && p.Session != nil {
		h.auth.Logout(c.UserContext(), p.Session.ID)
	}
	h.cookie.Set(c, result.Session.ID, result.Session.ExpiresAt)

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user":    userResponse(result.User),
			"session": dto.SessionResponse{ExpiresAt: result.Session.ExpiresAt},
		},
	})
}

// Logout handles GET /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if p, ok := auth.PrincipalFromContext(c); ok && p.Session != nil {
		h.auth.Logout(c.UserContext(), p.Session.ID)
	}
	h.cookie.Clear(c)
	return message(c, http.StatusOK, "Logout success.")
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, _, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"user":    userResponse(user),
			"message": "Confirm email sent, check your inbox.",
		},
	})
}

// Confirm handles GET /auth/confirm/:token.
func (h *AuthHandler) Confirm(c *fiber.Ctx) error {
	if err := h.auth.Confirm(c.UserContext(), c.Params("token")); err != nil {
		return err
	}
	return message(c, http.StatusOK, "Account confirmed.")
}

// ResendConfirmation handles POST /auth/resend-confirm-email.
func (h *AuthHandler) ResendConfirmation(c *fiber.Ctx) error {
	p, err := currentUser(c)
	if err != nil {
		return err
	}
	token, err := h.auth.ResendConfirmation(c.UserContext(), p.User.ID)
	if err != nil {
		return err
	}
	if token == "" {
		return message(c, http.StatusOK, "Account already confirmed.")
	}
	return message(c, http.StatusAccepted, "New email sent, check your inbox.")
}

// ForgetPassword handles POST /auth/forget-password. The response does not
// reveal whether the address belongs to an account.
func (h *AuthHandler) ForgetPassword(c *fiber.Ctx) error {
	var req dto.ForgetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if _, err := h.auth.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}
	return message(c, http.StatusAccepted, "If the address is registered, a password reset email is on its way.")
}

// ResetPassword handles POST /auth/reset-password/:token.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResetPassword(c.UserContext(), c.Params("token"), req.Password); err != nil {
		return err
	}
	return message(c, http.StatusOK, "Password updated.")
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	p, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"user": userResponse(p.User)}})
}
