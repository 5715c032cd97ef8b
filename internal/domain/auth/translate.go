package auth

import (
	"errors"

	"github.com/astro-web3/ts43-entitlement/internal/infra/entitlement"
)

// translateBackendError maps the entitlement backend taxonomy onto the closed
// ErrorKind set. The mapping is total: unknown codes and foreign error types
// become ErrorUnspecified, and the function never panics. HTTP status and
// Retry-After are copied through verbatim when the backend failure carried
// them, with the unspecified sentinels otherwise.
func translateBackendError(err error) *AuthError {
	if err == nil {
		return newAuthError(ErrorUnspecified, "unknown backend failure")
	}

	var backendErr *entitlement.Error
	if !errors.As(err, &backendErr) {
		return newAuthError(ErrorUnspecified, err.Error())
	}

	authErr := newAuthError(translateCode(backendErr.Code), backendErr.Error())
	if backendErr.HTTPStatus != 0 {
		authErr.HTTPStatus = backendErr.HTTPStatus
	}
	if backendErr.RetryAfter != "" {
		authErr.RetryAfter = backendErr.RetryAfter
	}
	return authErr
}

func translateCode(code entitlement.Code) ErrorKind {
	switch code {
	case entitlement.CodePhoneNotAvailable, entitlement.CodeServerNotConnectable:
		return ErrorServiceUnavailable
	case entitlement.CodeIccAuthNotAvailable:
		return ErrorIccAuthNotAvailable
	case entitlement.CodeEapAkaSynchronizationFailure:
		return ErrorEapAkaSynchronizationFailure
	case entitlement.CodeEapAkaFailure:
		return ErrorMaxEapAkaAttempts
	case entitlement.CodeHTTPStatusNotSuccess:
		return ErrorHTTPResponseFailed
	case entitlement.CodeMalformedHTTPResponse, entitlement.CodeTokenNotAvailable:
		return ErrorInvalidHTTPResponse
	default:
		return ErrorUnspecified
	}
}
