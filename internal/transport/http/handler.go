package http

import (
	"net/http"
	"net/url"
	"time"

	"log/slog"

	appauth "github.com/astro-web3/ts43-entitlement/internal/app/auth"
	"github.com/astro-web3/ts43-entitlement/internal/domain/auth"
	"github.com/astro-web3/ts43-entitlement/pkg/logger"
	"github.com/astro-web3/ts43-entitlement/pkg/tracer"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const callerIDHeader = "X-Caller-Id"

type Handler struct {
	appService appauth.Service
}

func NewHandler(appService appauth.Service) *Handler {
	return &Handler{appService: appService}
}

type eapAkaRequest struct {
	Package            string `json:"package" binding:"required"`
	AppVersion         string `json:"app_version"`
	SlotIndex          int    `json:"slot_index"`
	ServerAddress      string `json:"server_address" binding:"required"`
	EntitlementVersion string `json:"entitlement_version"`
	AppID              string `json:"app_id" binding:"required"`
}

type oidcTokenRequest struct {
	Package            string `json:"package" binding:"required"`
	ServerAddress      string `json:"server_address" binding:"required"`
	EntitlementVersion string `json:"entitlement_version"`
	AESURL             string `json:"aes_url" binding:"required"`
}

type tokenResponse struct {
	Token           string    `json:"token"`
	ValiditySeconds int64     `json:"validity_seconds"`
	Expiry          time.Time `json:"expiry,omitzero"`
}

type authServerResponse struct {
	AuthServerURL string `json:"auth_server_url"`
}

type errorResponse struct {
	Error      string `json:"error"`
	HTTPStatus int    `json:"http_status,omitempty"`
	RetryAfter string `json:"retry_after,omitempty"`
}

func (h *Handler) EapAkaAuth(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "transport.http.EapAkaAuth")
	defer span.End()

	var body eapAkaRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	serverAddress, err := url.Parse(body.ServerAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server_address"})
		return
	}

	caller := auth.Caller{ID: c.GetHeader(callerIDHeader), Package: body.Package}
	params := auth.AuthParams{
		AppVersion:         body.AppVersion,
		SlotIndex:          body.SlotIndex,
		ServerAddress:      serverAddress,
		EntitlementVersion: body.EntitlementVersion,
		AppID:              body.AppID,
	}

	token, authErr := h.appService.EapAkaAuth(ctx, caller, params)
	if authErr != nil {
		span.SetAttributes(attribute.String("auth.error", authErr.Kind.String()))
		writeAuthError(c, authErr)
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		Token:           token.Value,
		ValiditySeconds: int64(token.Validity / time.Second),
		Expiry:          token.Expiry,
	})
}

func (h *Handler) OidcAuthServer(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "transport.http.OidcAuthServer")
	defer span.End()

	var body eapAkaRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	serverAddress, err := url.Parse(body.ServerAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server_address"})
		return
	}

	caller := auth.Caller{ID: c.GetHeader(callerIDHeader), Package: body.Package}
	params := auth.AuthParams{
		AppVersion:         body.AppVersion,
		SlotIndex:          body.SlotIndex,
		ServerAddress:      serverAddress,
		EntitlementVersion: body.EntitlementVersion,
		AppID:              body.AppID,
	}

	authServer, authErr := h.appService.OidcAuthServer(ctx, caller, params)
	if authErr != nil {
		span.SetAttributes(attribute.String("auth.error", authErr.Kind.String()))
		writeAuthError(c, authErr)
		return
	}

	c.JSON(http.StatusOK, authServerResponse{AuthServerURL: authServer.String()})
}

func (h *Handler) OidcAuth(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "transport.http.OidcAuth")
	defer span.End()

	var body oidcTokenRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	serverAddress, err := url.Parse(body.ServerAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server_address"})
		return
	}
	aesURL, err := url.Parse(body.AESURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid aes_url"})
		return
	}

	caller := auth.Caller{ID: c.GetHeader(callerIDHeader), Package: body.Package}
	params := auth.OidcTokenParams{
		ServerAddress:      serverAddress,
		EntitlementVersion: body.EntitlementVersion,
		AESURL:             aesURL,
	}

	token, authErr := h.appService.OidcAuth(ctx, caller, params)
	if authErr != nil {
		span.SetAttributes(attribute.String("auth.error", authErr.Kind.String()))
		writeAuthError(c, authErr)
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		Token:           token.Value,
		ValiditySeconds: int64(token.Validity / time.Second),
		Expiry:          token.Expiry,
	})
}

func writeAuthError(c *gin.Context, authErr *auth.AuthError) {
	logger.InfoContext(c.Request.Context(), "authentication request failed",
		slog.String("error", authErr.Kind.String()),
	)

	resp := errorResponse{Error: authErr.Kind.String()}
	if authErr.HTTPStatus != auth.HTTPStatusUnspecified {
		resp.HTTPStatus = authErr.HTTPStatus
	}
	if authErr.RetryAfter != auth.RetryAfterUnspecified {
		resp.RetryAfter = authErr.RetryAfter
		c.Header("Retry-After", authErr.RetryAfter)
	}

	c.JSON(statusForKind(authErr.Kind), resp)
}

func statusForKind(kind auth.ErrorKind) int {
	switch kind {
	case auth.ErrorInvalidAppName:
		return http.StatusForbidden
	case auth.ErrorMustUseOidc:
		return http.StatusConflict
	case auth.ErrorServiceUnavailable:
		return http.StatusServiceUnavailable
	case auth.ErrorHTTPResponseFailed, auth.ErrorInvalidHTTPResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
