package auth

import (
	"net/url"
	"time"
)

// DefaultEntitlementVersion is used when a request leaves the TS.43
// entitlement version unset.
const DefaultEntitlementVersion = "2.0"

// Config holds the per-request authorization options. It is constructed by
// the caller and never mutated here.
type Config struct {
	// AllowedCertificates lists the SHA-256 signing certificate fingerprints
	// permitted to make authentication requests. Each entry is either a bare
	// fingerprint or "fingerprint:pkg1,pkg2,..." to scope it to packages.
	// An empty list allows all callers.
	AllowedCertificates []string

	// AppendShaToAppName makes the app name "<sha>|<packageName>" when a
	// certificate from the allow-list matched.
	AppendShaToAppName bool

	// OverrideAppName, when set, is sent as the app name verbatim and takes
	// precedence over every other derivation rule.
	OverrideAppName string
}

// Caller identifies the requesting application: an opaque identity for the
// calling process plus the package name it declares.
type Caller struct {
	ID      string
	Package string
}

// AuthParams is the parameter set shared by EAP-AKA authentication and OIDC
// authentication server discovery.
//
//nolint:revive // AuthParams keeps the domain name in the type for clarity
type AuthParams struct {
	AppVersion         string
	SlotIndex          int
	ServerAddress      *url.URL
	EntitlementVersion string
	AppID              string
}

// OidcTokenParams requests a token from the authentication endpoint server
// after the user completed the OIDC flow.
type OidcTokenParams struct {
	ServerAddress      *url.URL
	EntitlementVersion string
	AESURL             *url.URL
}

// Token is a successful authentication result: an opaque bearer value with
// its validity window.
type Token struct {
	Value    string
	Validity time.Duration
	Expiry   time.Time
}

// Executor runs result callbacks. Callbacks are never invoked on the internal
// worker goroutine, so a stalling callback cannot block queued requests.
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(fn func())

func (f ExecutorFunc) Execute(fn func()) {
	f(fn)
}

// GoExecutor runs each callback on its own goroutine.
func GoExecutor() Executor {
	return ExecutorFunc(func(fn func()) { go fn() })
}

// TokenCallback receives the outcome of a token request. Exactly one of the
// two arguments is non-nil.
type TokenCallback func(token *Token, authErr *AuthError)

// URLCallback receives the outcome of an OIDC authentication server
// discovery. Exactly one of the two arguments is non-nil.
type URLCallback func(authServer *url.URL, authErr *AuthError)
