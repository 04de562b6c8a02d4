package auth

import (
	"net/http"

	apperrors "github.com/spec-kit/moments/pkg/util/errorutil"
)

// Token verification failures.
var (
	ErrTokenInvalid      = apperrors.NewDomainError(apperrors.CodeTokenInvalid, "Invalid or expired token.", http.StatusBadRequest, nil)
	ErrTokenExpired      = apperrors.NewDomainError(apperrors.CodeTokenExpired, "Invalid or expired token.", http.StatusBadRequest, nil)
	ErrOperationMismatch = apperrors.NewDomainError(apperrors.CodeOperationMismatch, "Token is not valid for this operation.", http.StatusBadRequest, nil)
)

// Permission guard denials.
var (
	ErrLoginRequired = apperrors.NewDomainError(apperrors.CodeLoginRequired, "Please log in to access this page.", http.StatusUnauthorized, nil)
	ErrUnconfirmed   = apperrors.NewDomainError(apperrors.CodeUnconfirmed, "Please confirm your account first.", http.StatusForbidden, nil)
	ErrForbidden     = apperrors.NewDomainError(apperrors.CodeForbidden, "You do not have permission to perform this action.", http.StatusForbidden, nil)
)
