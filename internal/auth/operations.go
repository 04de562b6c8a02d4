package auth

import (
	"fmt"
	"sort"
	"strings"
)

// Operation is the kind of account action a token authorizes.
type Operation string

const (
	OperationConfirmAccount Operation = "confirm"
	OperationResetPassword  Operation = "reset-password"
	OperationChangeEmail    Operation = "change-email"
)

const (
	fieldUserID   = "user_id"
	fieldNewEmail = "new_email"
)

// Payload is the operation specific content carried inside a token.
type Payload interface {
	Operation() Operation
	Fields() map[string]any
}

// ConfirmAccountPayload authorizes confirming the user's account.
type ConfirmAccountPayload struct {
	UserID string
}

func (ConfirmAccountPayload) Operation() Operation { return OperationConfirmAccount }

func (p ConfirmAccountPayload) Fields() map[string]any {
	return map[string]any{fieldUserID: p.UserID}
}

// ResetPasswordPayload authorizes replacing the user's password.
type ResetPasswordPayload struct {
	UserID string
}

func (ResetPasswordPayload) Operation() Operation { return OperationResetPassword }

func (p ResetPasswordPayload) Fields() map[string]any {
	return map[string]any{fieldUserID: p.UserID}
}

// ChangeEmailPayload authorizes moving the user to a new email address.
type ChangeEmailPayload struct {
	UserID   string
	NewEmail string
}

func (ChangeEmailPayload) Operation() Operation { return OperationChangeEmail }

func (p ChangeEmailPayload) Fields() map[string]any {
	return map[string]any{fieldUserID: p.UserID, fieldNewEmail: p.NewEmail}
}

// OperationSpec declares the payload shape an operation requires.
type OperationSpec struct {
	Operation Operation
	Required  []string
	build     func(fields map[string]string) Payload
}

var registry = map[Operation]OperationSpec{
	OperationConfirmAccount: {
		Operation: OperationConfirmAccount,
		Required:  []string{fieldUserID},
		build: func(f map[string]string) Payload {
			return ConfirmAccountPayload{UserID: f[fieldUserID]}
		},
	},
	OperationResetPassword: {
		Operation: OperationResetPassword,
		Required:  []string{fieldUserID},
		build: func(f map[string]string) Payload {
			return ResetPasswordPayload{UserID: f[fieldUserID]}
		},
	},
	OperationChangeEmail: {
		Operation: OperationChangeEmail,
		Required:  []string{fieldUserID, fieldNewEmail},
		build: func(f map[string]string) Payload {
			return ChangeEmailPayload{UserID: f[fieldUserID], NewEmail: f[fieldNewEmail]}
		},
	},
}

// Lookup returns the spec registered for op.
func Lookup(op Operation) (OperationSpec, bool) {
	spec, ok := registry[op]
	return spec, ok
}

// Operations lists every supported operation.
func Operations() []Operation {
	ops := make([]Operation, 0, len(registry))
	for op := range registry {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Decode builds the typed payload from raw token data. Every required
// field must be a non-empty string.
func (s OperationSpec) Decode(data map[string]any) (Payload, error) {
	fields := make(map[string]string, len(s.Required))
	for _, key := range s.Required {
		raw, ok := data[key]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrTokenInvalid, key)
		}
		val, ok := raw.(string)
		if !ok || strings.TrimSpace(val) == "" {
			return nil, fmt.Errorf("%w: malformed %s", ErrTokenInvalid, key)
		}
		fields[key] = val
	}
	return s.build(fields), nil
}

func (s OperationSpec) validate(p Payload) error {
	fields := p.Fields()
	for _, key := range s.Required {
		val, _ := fields[key].(string)
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("payload for %s requires %s", s.Operation, key)
		}
	}
	return nil
}
