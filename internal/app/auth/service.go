package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"log/slog"

	"github.com/astro-web3/ts43-entitlement/internal/domain/auth"
	"github.com/astro-web3/ts43-entitlement/internal/infra/cache"
	"github.com/astro-web3/ts43-entitlement/pkg/logger"
	"github.com/astro-web3/ts43-entitlement/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

type Service interface {
	EapAkaAuth(ctx context.Context, caller auth.Caller, params auth.AuthParams) (*auth.Token, *auth.AuthError)
	OidcAuthServer(ctx context.Context, caller auth.Caller, params auth.AuthParams) (*url.URL, *auth.AuthError)
	OidcAuth(ctx context.Context, caller auth.Caller, params auth.OidcTokenParams) (*auth.Token, *auth.AuthError)
}

type service struct {
	library    *auth.Library
	authCfg    *auth.Config
	tokenCache cache.TokenCache
	cacheTTL   time.Duration
}

func NewService(library *auth.Library, authCfg *auth.Config) Service {
	return &service{
		library: library,
		authCfg: authCfg,
	}
}

// NewServiceWithCache also caches issued EAP-AKA tokens. A cache hit is
// answered without touching the dispatcher, like an early rejection is.
func NewServiceWithCache(
	library *auth.Library,
	authCfg *auth.Config,
	tokenCache cache.TokenCache,
	cacheTTL time.Duration,
) Service {
	return &service{
		library:    library,
		authCfg:    authCfg,
		tokenCache: tokenCache,
		cacheTTL:   cacheTTL,
	}
}

type tokenOutcome struct {
	token   *auth.Token
	authErr *auth.AuthError
}

func (s *service) EapAkaAuth(
	ctx context.Context,
	caller auth.Caller,
	params auth.AuthParams,
) (*auth.Token, *auth.AuthError) {
	ctx, span := tracer.Start(ctx, "app.auth.EapAkaAuth")
	defer span.End()

	span.SetAttributes(
		attribute.String("auth.package", caller.Package),
		attribute.Int("auth.slot_index", params.SlotIndex),
	)

	requestHash := hashRequest(caller, params)
	if cached := s.cachedToken(ctx, requestHash); cached != nil {
		span.SetAttributes(attribute.Bool("auth.cache_hit", true))
		return cached, nil
	}

	outcome := make(chan tokenOutcome, 1)
	s.library.RequestEapAkaAuth(ctx, s.authCfg, caller, params, auth.GoExecutor(),
		func(token *auth.Token, authErr *auth.AuthError) {
			outcome <- tokenOutcome{token, authErr}
		})
	out := <-outcome

	if out.authErr != nil {
		span.SetAttributes(attribute.String("auth.error", out.authErr.Kind.String()))
		return nil, out.authErr
	}

	s.storeToken(ctx, requestHash, out.token)
	return out.token, nil
}

func (s *service) OidcAuthServer(
	ctx context.Context,
	caller auth.Caller,
	params auth.AuthParams,
) (*url.URL, *auth.AuthError) {
	ctx, span := tracer.Start(ctx, "app.auth.OidcAuthServer")
	defer span.End()

	span.SetAttributes(attribute.String("auth.package", caller.Package))

	type urlOutcome struct {
		authServer *url.URL
		authErr    *auth.AuthError
	}
	outcome := make(chan urlOutcome, 1)
	s.library.RequestOidcAuthServer(ctx, s.authCfg, caller, params, auth.GoExecutor(),
		func(authServer *url.URL, authErr *auth.AuthError) {
			outcome <- urlOutcome{authServer, authErr}
		})
	out := <-outcome

	if out.authErr != nil {
		span.SetAttributes(attribute.String("auth.error", out.authErr.Kind.String()))
		return nil, out.authErr
	}
	return out.authServer, nil
}

func (s *service) OidcAuth(
	ctx context.Context,
	caller auth.Caller,
	params auth.OidcTokenParams,
) (*auth.Token, *auth.AuthError) {
	ctx, span := tracer.Start(ctx, "app.auth.OidcAuth")
	defer span.End()

	span.SetAttributes(attribute.String("auth.package", caller.Package))

	outcome := make(chan tokenOutcome, 1)
	s.library.RequestOidcAuth(ctx, s.authCfg, caller, params, auth.GoExecutor(),
		func(token *auth.Token, authErr *auth.AuthError) {
			outcome <- tokenOutcome{token, authErr}
		})
	out := <-outcome

	if out.authErr != nil {
		span.SetAttributes(attribute.String("auth.error", out.authErr.Kind.String()))
		return nil, out.authErr
	}
	return out.token, nil
}

func (s *service) cachedToken(ctx context.Context, requestHash string) *auth.Token {
	if s.tokenCache == nil {
		return nil
	}

	cached, err := s.tokenCache.Get(ctx, requestHash)
	if err != nil {
		logger.WarnContext(ctx, "failed to get from cache, will authenticate",
			slog.String("error", err.Error()))
		return nil
	}
	if cached == nil || (!cached.Expiry.IsZero() && time.Now().After(cached.Expiry)) {
		return nil
	}

	return &auth.Token{
		Value:    cached.Token,
		Validity: time.Duration(cached.ValiditySeconds) * time.Second,
		Expiry:   cached.Expiry,
	}
}

func (s *service) storeToken(ctx context.Context, requestHash string, token *auth.Token) {
	if s.tokenCache == nil {
		return
	}

	ttl := s.cacheTTL
	if token.Validity > 0 && token.Validity < ttl {
		ttl = token.Validity
	}
	if ttl <= 0 {
		return
	}

	entry := &cache.CachedToken{
		Token:           token.Value,
		ValiditySeconds: int64(token.Validity / time.Second),
		Expiry:          token.Expiry,
	}
	if err := s.tokenCache.Set(ctx, requestHash, entry, ttl); err != nil {
		logger.WarnContext(ctx, "failed to set cache", slog.String("error", err.Error()))
	}
}

func hashRequest(caller auth.Caller, params auth.AuthParams) string {
	version := params.EntitlementVersion
	if version == "" {
		version = auth.DefaultEntitlementVersion
	}
	key := fmt.Sprintf("%s|%s|%s|%s|%s|%d",
		params.ServerAddress, version, params.AppID, caller.Package, params.AppVersion, params.SlotIndex)
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
