package auth

import (
	"context"
	"net/url"
	"slices"
	"time"

	"github.com/astro-web3/ts43-entitlement/internal/infra/certsource"
	"github.com/astro-web3/ts43-entitlement/internal/infra/entitlement"
)

// Backend performs the actual exchanges against the entitlement server. It is
// only ever called from the dispatcher worker, one request at a time, and
// must not return before the exchange fully completed.
type Backend interface {
	GetAuthToken(ctx context.Context, req *entitlement.TokenRequest) (*entitlement.AuthResponse, error)
	GetOidcAuthServer(ctx context.Context, req *entitlement.TokenRequest) (string, error)
	GetAuthTokenFromOidc(ctx context.Context, req *entitlement.OidcRequest) (*entitlement.AuthResponse, error)
}

// Library directs EAP-AKA and OIDC authentication requests to the TS.43
// entitlement server. A request is first checked against the allow-list; valid
// requests are serialized through a single worker, and every outcome is
// delivered through the caller-supplied executor.
type Library struct {
	certs      certsource.Source
	dispatcher *dispatcher
	listeners  *listenerRegistry
}

func NewLibrary(backend Backend, certs certsource.Source) *Library {
	return &Library{
		certs:      certs,
		dispatcher: newDispatcher(backend),
		listeners:  newListenerRegistry(),
	}
}

// Close stops the dispatcher worker. Queued requests fail with
// ErrorServiceUnavailable; an in-flight request runs to completion first.
func (l *Library) Close() {
	l.dispatcher.close()
}

// AddListener registers a completion listener and returns a handle for
// RemoveListener.
func (l *Library) AddListener(listener Listener) ListenerHandle {
	return l.listeners.add(listener)
}

// RemoveListener unregisters a previously added listener.
func (l *Library) RemoveListener(h ListenerHandle) {
	l.listeners.remove(h)
}

// RequestEapAkaAuth requests a token with EAP-AKA per TS.43 Service
// Entitlement Configuration section 2.8.1. The callback receives a Token on
// success or an AuthError, always on the given executor.
func (l *Library) RequestEapAkaAuth(
	ctx context.Context,
	cfg *Config,
	caller Caller,
	params AuthParams,
	executor Executor,
	callback TokenCallback,
) {
	appName, ok := l.verifyCaller(ctx, cfg, caller)
	if !ok {
		l.rejectToken(OpEapAkaAuth, executor, callback)
		return
	}

	req := &eapAkaRequest{
		ctx:      context.WithoutCancel(ctx),
		lib:      l,
		appName:  appName,
		params:   params,
		executor: executor,
		callback: callback,
	}
	if !l.dispatcher.submit(req) {
		req.reject(newAuthError(ErrorServiceUnavailable, "authentication library closed"))
	}
}

// RequestOidcAuthServer discovers the OIDC authentication server URL per
// TS.43 section 2.8.2. The caller presents the URL to the user and afterwards
// calls RequestOidcAuth to obtain the token.
func (l *Library) RequestOidcAuthServer(
	ctx context.Context,
	cfg *Config,
	caller Caller,
	params AuthParams,
	executor Executor,
	callback URLCallback,
) {
	appName, ok := l.verifyCaller(ctx, cfg, caller)
	if !ok {
		l.rejectURL(OpOidcAuthServer, executor, callback)
		return
	}

	req := &oidcServerRequest{
		ctx:      context.WithoutCancel(ctx),
		lib:      l,
		appName:  appName,
		params:   params,
		executor: executor,
		callback: callback,
	}
	if !l.dispatcher.submit(req) {
		req.reject(newAuthError(ErrorServiceUnavailable, "authentication library closed"))
	}
}

// RequestOidcAuth requests a token after a completed OIDC flow, per TS.43
// section 2.8.2. The AES URL carries the authorization code and state.
func (l *Library) RequestOidcAuth(
	ctx context.Context,
	cfg *Config,
	caller Caller,
	params OidcTokenParams,
	executor Executor,
	callback TokenCallback,
) {
	_, ok := l.verifyCaller(ctx, cfg, caller)
	if !ok {
		l.rejectToken(OpOidcAuth, executor, callback)
		return
	}

	req := &oidcTokenRequest{
		ctx:      context.WithoutCancel(ctx),
		lib:      l,
		params:   params,
		executor: executor,
		callback: callback,
	}
	if !l.dispatcher.submit(req) {
		req.reject(newAuthError(ErrorServiceUnavailable, "authentication library closed"))
	}
}

// verifyCaller runs the full authorization check and returns the app name to
// send upstream. All failure modes collapse into a single rejection so the
// response does not reveal which check failed.
func (l *Library) verifyCaller(ctx context.Context, cfg *Config, caller Caller) (string, bool) {
	if len(cfg.AllowedCertificates) == 0 {
		return deriveAppName(cfg, caller.Package, ""), true
	}

	owned, err := l.certs.PackagesForCaller(ctx, caller.ID)
	if err != nil || !slices.Contains(owned, caller.Package) {
		return "", false
	}

	callerCerts, err := l.certs.SigningCertificates(ctx, caller.Package)
	if err != nil {
		return "", false
	}

	matched, ok := authorize(cfg, caller.Package, callerCerts)
	if !ok {
		return "", false
	}
	return deriveAppName(cfg, caller.Package, matched), true
}

func (l *Library) rejectToken(op Operation, executor Executor, callback TokenCallback) {
	authErr := newAuthError(ErrorInvalidAppName,
		"failed to verify the identity of the calling application")
	l.listeners.notify(Event{Op: op, Err: authErr})
	executor.Execute(func() { callback(nil, authErr) })
}

func (l *Library) rejectURL(op Operation, executor Executor, callback URLCallback) {
	authErr := newAuthError(ErrorInvalidAppName,
		"failed to verify the identity of the calling application")
	l.listeners.notify(Event{Op: op, Err: authErr})
	executor.Execute(func() { callback(nil, authErr) })
}

func entitlementVersionOrDefault(version string) string {
	if version == "" {
		return DefaultEntitlementVersion
	}
	return version
}

func tokenFromResponse(resp *entitlement.AuthResponse) *Token {
	token := &Token{
		Value:    resp.Token,
		Validity: resp.Validity,
	}
	if resp.Validity > 0 {
		token.Expiry = time.Now().Add(resp.Validity)
	}
	return token
}

type eapAkaRequest struct {
	ctx      context.Context
	lib      *Library
	appName  string
	params   AuthParams
	executor Executor
	callback TokenCallback
}

func (r *eapAkaRequest) invoke(backend Backend) {
	resp, err := backend.GetAuthToken(r.ctx, &entitlement.TokenRequest{
		ServerAddress:      r.params.ServerAddress.String(),
		EntitlementVersion: entitlementVersionOrDefault(r.params.EntitlementVersion),
		AppID:              r.params.AppID,
		AppName:            r.appName,
		AppVersion:         r.params.AppVersion,
		SlotIndex:          r.params.SlotIndex,
	})
	if err != nil {
		r.reject(translateBackendError(err))
		return
	}

	token := tokenFromResponse(resp)
	r.lib.listeners.notify(Event{Op: OpEapAkaAuth, AppName: r.appName})
	r.executor.Execute(func() { r.callback(token, nil) })
}

func (r *eapAkaRequest) reject(authErr *AuthError) {
	r.lib.listeners.notify(Event{Op: OpEapAkaAuth, AppName: r.appName, Err: authErr})
	r.executor.Execute(func() { r.callback(nil, authErr) })
}

type oidcServerRequest struct {
	ctx      context.Context
	lib      *Library
	appName  string
	params   AuthParams
	executor Executor
	callback URLCallback
}

func (r *oidcServerRequest) invoke(backend Backend) {
	rawURL, err := backend.GetOidcAuthServer(r.ctx, &entitlement.TokenRequest{
		ServerAddress:      r.params.ServerAddress.String(),
		EntitlementVersion: entitlementVersionOrDefault(r.params.EntitlementVersion),
		AppID:              r.params.AppID,
		AppName:            r.appName,
		AppVersion:         r.params.AppVersion,
		SlotIndex:          r.params.SlotIndex,
	})
	if err != nil {
		r.reject(translateBackendError(err))
		return
	}

	authServer, parseErr := url.Parse(rawURL)
	if parseErr != nil {
		r.reject(newAuthError(ErrorInvalidHTTPResponse, "entitlement server returned a malformed OIDC URL"))
		return
	}

	r.lib.listeners.notify(Event{Op: OpOidcAuthServer, AppName: r.appName})
	r.executor.Execute(func() { r.callback(authServer, nil) })
}

func (r *oidcServerRequest) reject(authErr *AuthError) {
	r.lib.listeners.notify(Event{Op: OpOidcAuthServer, AppName: r.appName, Err: authErr})
	r.executor.Execute(func() { r.callback(nil, authErr) })
}

type oidcTokenRequest struct {
	ctx      context.Context
	lib      *Library
	params   OidcTokenParams
	executor Executor
	callback TokenCallback
}

func (r *oidcTokenRequest) invoke(backend Backend) {
	resp, err := backend.GetAuthTokenFromOidc(r.ctx, &entitlement.OidcRequest{
		ServerAddress:      r.params.ServerAddress.String(),
		EntitlementVersion: entitlementVersionOrDefault(r.params.EntitlementVersion),
		AESURL:             r.params.AESURL.String(),
	})
	if err != nil {
		r.reject(translateBackendError(err))
		return
	}

	token := tokenFromResponse(resp)
	r.lib.listeners.notify(Event{Op: OpOidcAuth})
	r.executor.Execute(func() { r.callback(token, nil) })
}

func (r *oidcTokenRequest) reject(authErr *AuthError) {
	r.lib.listeners.notify(Event{Op: OpOidcAuth, Err: authErr})
	r.executor.Execute(func() { r.callback(nil, authErr) })
}
