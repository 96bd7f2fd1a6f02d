package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	AuthorityErrorBadInput          = "AUTHORITY_BAD_INPUT"
	AuthorityErrorConfig            = "AUTHORITY_CONFIG"
	AuthorityErrorCredentialInvalid = "AUTHORITY_CREDENTIAL_INVALID"
	AuthorityErrorCredentialBackend = "AUTHORITY_CREDENTIAL_BACKEND"
	AuthorityErrorScopeMissing      = "AUTHORITY_SCOPE_MISSING"
	AuthorityErrorNotFound          = "AUTHORITY_NOT_FOUND"
	AuthorityErrorLoginStateInvalid = "AUTHORITY_LOGIN_STATE_INVALID"
	AuthorityErrorUpstream          = "AUTHORITY_UPSTREAM"
	AuthorityErrorInternal          = "AUTHORITY_INTERNAL_ERROR"
)

func authorityErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureAuthorityErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "invalid or expired credential"):
		return newAuthorityError("invalid or expired credential", goerrors.CategoryAuth, AuthorityErrorCredentialInvalid)
	case strings.Contains(msg, "login state"):
		return newAuthorityError("login state is invalid or expired", goerrors.CategoryAuth, AuthorityErrorLoginStateInvalid)
	case strings.Contains(msg, "client id") && strings.Contains(msg, "not configured"),
		strings.Contains(msg, "client secret") && strings.Contains(msg, "not configured"),
		strings.Contains(msg, "provider not configured"):
		return newAuthorityError(err.Error(), goerrors.CategoryInternal, AuthorityErrorConfig)
	case strings.Contains(msg, "not found"):
		return newAuthorityError(err.Error(), goerrors.CategoryNotFound, AuthorityErrorNotFound)
	case strings.Contains(msg, "upstream"), strings.Contains(msg, "token endpoint"), strings.Contains(msg, "userinfo"):
		return newAuthorityError(err.Error(), goerrors.CategoryExternal, AuthorityErrorUpstream)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid "), strings.Contains(msg, "mismatch"):
		return newAuthorityError(err.Error(), goerrors.CategoryBadInput, AuthorityErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureAuthorityErrorEnvelope(mapped)
}

func newAuthorityError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureAuthorityErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

// NewCredentialInvalidError is the single failure value for any bad, expired,
// revoked, or unknown bearer credential. Callers must not leak which check
// rejected the token.
func NewCredentialInvalidError() *goerrors.Error {
	return newAuthorityError("invalid or expired credential", goerrors.CategoryAuth, AuthorityErrorCredentialInvalid)
}

// NewMissingScopesError reports an authenticated caller that lacks grants.
// The missing scope names ride in metadata so the HTTP layer can surface them.
func NewMissingScopesError(missing []string) *goerrors.Error {
	err := newAuthorityError("insufficient scope", goerrors.CategoryAuthz, AuthorityErrorScopeMissing)
	return err.WithMetadata(map[string]any{
		"missing_scopes": append([]string(nil), missing...),
	})
}

func NewConfigurationError(message string) *goerrors.Error {
	return newAuthorityError(message, goerrors.CategoryInternal, AuthorityErrorConfig)
}

func ensureAuthorityErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = authorityHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultAuthorityTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultAuthorityTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return AuthorityErrorBadInput
	case goerrors.CategoryNotFound:
		return AuthorityErrorNotFound
	case goerrors.CategoryAuth:
		return AuthorityErrorCredentialInvalid
	case goerrors.CategoryAuthz:
		return AuthorityErrorScopeMissing
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return AuthorityErrorUpstream
	default:
		return AuthorityErrorInternal
	}
}

func authorityHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatusFor resolves the response status for a mapped error. Unmapped
// errors collapse to 500.
func HTTPStatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code != 0 {
			return richErr.Code
		}
		return authorityHTTPStatus(richErr.Category)
	}
	return http.StatusInternalServerError
}
