package auth

// ErrorKind is the closed set of caller-facing authentication failures.
type ErrorKind int

const (
	// ErrorUnspecified is an unspecified error preventing the request.
	ErrorUnspecified ErrorKind = iota

	// ErrorInvalidAppName means the identity of the calling application could
	// not be verified against the declared package name.
	ErrorInvalidAppName

	// ErrorMustUseOidc means EAP-AKA cannot be used and the caller should run
	// the OIDC flow instead.
	ErrorMustUseOidc

	// ErrorServiceUnavailable means a service required to complete the request
	// (telephony, SIM, entitlement server) is currently unavailable.
	ErrorServiceUnavailable

	// ErrorIccAuthNotAvailable means the SIM did not answer the EAP-AKA
	// challenge, e.g. because the challenge was invalid.
	ErrorIccAuthNotAvailable

	// ErrorEapAkaSynchronizationFailure means authentication failed even after
	// the sequence number resynchronization procedure of RFC 4187.
	ErrorEapAkaSynchronizationFailure

	// ErrorMaxEapAkaAttempts means the maximum number of EAP-AKA attempts failed.
	ErrorMaxEapAkaAttempts

	// ErrorHTTPResponseFailed means the entitlement server answered with a
	// failure status code.
	ErrorHTTPResponseFailed

	// ErrorInvalidHTTPResponse means the entitlement server response could not
	// be parsed.
	ErrorInvalidHTTPResponse
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorInvalidAppName:
		return "invalid_app_name"
	case ErrorMustUseOidc:
		return "must_use_oidc"
	case ErrorServiceUnavailable:
		return "service_unavailable"
	case ErrorIccAuthNotAvailable:
		return "icc_auth_not_available"
	case ErrorEapAkaSynchronizationFailure:
		return "eap_aka_synchronization_failure"
	case ErrorMaxEapAkaAttempts:
		return "max_eap_aka_attempts"
	case ErrorHTTPResponseFailed:
		return "http_response_failed"
	case ErrorInvalidHTTPResponse:
		return "invalid_http_response"
	default:
		return "unspecified"
	}
}

const (
	// HTTPStatusUnspecified marks a failure that did not originate from an
	// HTTP exchange.
	HTTPStatusUnspecified = -1

	// RetryAfterUnspecified marks an absent Retry-After header.
	RetryAfterUnspecified = ""
)

// AuthError is the failure half of every authentication outcome. HTTPStatus
// and RetryAfter carry the unspecified sentinels unless the failure came from
// an HTTP response, never a null-vs-present mix.
//
//nolint:revive // AuthError keeps the domain name in the type for clarity
type AuthError struct {
	Kind       ErrorKind
	HTTPStatus int
	RetryAfter string
	Message    string
}

func (e *AuthError) Error() string {
	return e.Kind.String() + ": " + e.Message
}

func newAuthError(kind ErrorKind, message string) *AuthError {
	return &AuthError{
		Kind:       kind,
		HTTPStatus: HTTPStatusUnspecified,
		RetryAfter: RetryAfterUnspecified,
		Message:    message,
	}
}
