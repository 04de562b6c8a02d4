package dto

import "time"

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest payload for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=30"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,max=20,username_format"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// ForgetPasswordRequest payload for POST /auth/forget-password.
type ForgetPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// ResetPasswordRequest payload for POST /auth/reset-password/:token.
type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8,max=128"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// ChangeEmailRequest payload for POST /settings/change-email.
type ChangeEmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// ChangePasswordRequest payload for POST /settings/change-password.
type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// SetRoleRequest payload for PUT /admin/users/:id/role.
type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=USER MODERATOR ADMINISTRATOR"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Confirmed   bool      `json:"confirmed"`
	Locked      bool      `json:"locked"`
	Blocked     bool      `json:"blocked"`
	MemberSince time.Time `json:"member_since"`
}

// SessionResponse describes the session opened by a login.
type SessionResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}
