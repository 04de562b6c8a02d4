package service

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/spec-kit/moments/pkg/util/errorutil"
)

// Login and account state failures.
var (
	ErrInvalidCredentials = apperrors.NewDomainError(apperrors.CodeInvalidCredentials, "Invalid email or password.", http.StatusUnauthorized, nil)
	ErrAccountLocked      = apperrors.NewDomainError(apperrors.CodeLocked, "Too many failed logins, your account is locked.", http.StatusForbidden, nil)
	ErrAccountBlocked     = apperrors.NewDomainError(apperrors.CodeBlocked, "Your account is blocked.", http.StatusForbidden, nil)
)

func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// outcome labels a flow result for metrics.
func outcome(err error) string {
	if err == nil {
		return "SUCCESS"
	}
	return apperrors.ToDomainError(err).Code
}
