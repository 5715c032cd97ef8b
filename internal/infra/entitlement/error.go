package entitlement

import "fmt"

// Code identifies why an exchange with the entitlement server failed.
type Code int

const (
	CodeUnknown Code = iota
	CodePhoneNotAvailable
	CodeServerNotConnectable
	CodeIccAuthNotAvailable
	CodeEapAkaSynchronizationFailure
	CodeEapAkaFailure
	CodeHTTPStatusNotSuccess
	CodeMalformedHTTPResponse
	CodeTokenNotAvailable
)

// Error carries the failure taxonomy of the entitlement exchange. HTTPStatus is
// zero and RetryAfter empty unless the failure came from an HTTP response.
type Error struct {
	Code       Code
	HTTPStatus int
	RetryAfter string
	Message    string
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func wrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func httpError(status int, retryAfter, message string) *Error {
	return &Error{
		Code:       CodeHTTPStatusNotSuccess,
		HTTPStatus: status,
		RetryAfter: retryAfter,
		Message:    message,
	}
}
