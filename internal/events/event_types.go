package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered      EventType = "account_registered"
	EventConfirmationRequested  EventType = "confirmation_requested"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventEmailChangeRequested   EventType = "email_change_requested"
	EventPasswordChanged        EventType = "password_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TokenMailPayload carries a freshly issued account token to the mail
// renderer. Email is the address the message must go to, which for an
// email change is the new address.
type TokenMailPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// PasswordChangedPayload payload.
type PasswordChangedPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Reset bool   `json:"reset"`
}
