package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	httpclient "github.com/astro-web3/ts43-entitlement/pkg/http"
	"github.com/astro-web3/ts43-entitlement/pkg/logger"
	"github.com/go-resty/resty/v2"
)

// ErrEapAkaSynchronizationFailure is returned by a SIMAuthenticator together
// with the resynchronization packet when the sequence numbers are out of sync.
var ErrEapAkaSynchronizationFailure = errors.New("eap-aka sequence number out of sync")

// SIMAuthenticator runs the AKA algorithm against the SIM card in the given
// logical slot. It is the only part of the exchange that touches the modem.
type SIMAuthenticator interface {
	EapIdentity(ctx context.Context, slotIndex int) (string, error)
	EapAkaChallengeResponse(ctx context.Context, slotIndex int, challengePacket string) (string, error)
}

const maxEapAkaChallengeRounds = 3

// Client performs the TS.43 exchanges against a carrier entitlement server.
// It implements the backend contract of the auth domain package.
type Client struct {
	sim SIMAuthenticator
}

func NewClient(sim SIMAuthenticator) *Client {
	return &Client{sim: sim}
}

// GetAuthToken runs the embedded EAP-AKA flow of TS.43 section 2.8.1: the
// initial GET carries the SIM identity, and any challenge packets returned by
// the server are relayed to the SIM until the server hands out a token.
func (c *Client) GetAuthToken(ctx context.Context, req *TokenRequest) (*AuthResponse, error) {
	identity, err := c.sim.EapIdentity(ctx, req.SlotIndex)
	if err != nil {
		return nil, wrapError(CodePhoneNotAvailable,
			fmt.Sprintf("no EAP identity for slot %d", req.SlotIndex), err)
	}

	params := baseParams(req)
	params["EAP_ID"] = identity

	sr, err := c.get(ctx, req.ServerAddress, params)
	if err != nil {
		return nil, err
	}

	syncFailed := false
	for round := 0; sr.EapRelayPacket != ""; round++ {
		if round == maxEapAkaChallengeRounds {
			return nil, newError(CodeEapAkaFailure, "maximum EAP-AKA attempts reached")
		}

		response, simErr := c.sim.EapAkaChallengeResponse(ctx, req.SlotIndex, sr.EapRelayPacket)
		if simErr != nil {
			if errors.Is(simErr, ErrEapAkaSynchronizationFailure) {
				if syncFailed {
					return nil, wrapError(CodeEapAkaSynchronizationFailure,
						"eap-aka resynchronization did not converge", simErr)
				}
				syncFailed = true
			} else {
				return nil, wrapError(CodeIccAuthNotAvailable,
					"SIM did not answer the EAP-AKA challenge", simErr)
			}
		}
		if response == "" {
			return nil, newError(CodeIccAuthNotAvailable, "empty EAP-AKA response from SIM")
		}

		sr, err = c.post(ctx, req.ServerAddress, params, response)
		if err != nil {
			return nil, err
		}
	}

	return tokenFrom(sr)
}

// GetOidcAuthServer discovers the OIDC authentication server URL per TS.43
// section 2.8.2. The returned URL already carries client_id, redirect_uri,
// state and nonce.
func (c *Client) GetOidcAuthServer(ctx context.Context, req *TokenRequest) (string, error) {
	sr, err := c.get(ctx, req.ServerAddress, baseParams(req))
	if err != nil {
		return "", err
	}

	if sr.OidcAuthURL == "" {
		return "", newError(CodeMalformedHTTPResponse, "response is missing the OIDC auth server URL")
	}
	return sr.OidcAuthURL, nil
}

// GetAuthTokenFromOidc fetches the token from the authentication endpoint
// server once the OIDC flow completed.
func (c *Client) GetAuthTokenFromOidc(ctx context.Context, req *OidcRequest) (*AuthResponse, error) {
	sr, err := c.get(ctx, req.AESURL, map[string]string{
		"entitlement_version": req.EntitlementVersion,
	})
	if err != nil {
		return nil, err
	}

	return tokenFrom(sr)
}

func baseParams(req *TokenRequest) map[string]string {
	params := map[string]string{
		"app":                 req.AppID,
		"app_name":            req.AppName,
		"entitlement_version": req.EntitlementVersion,
	}
	if req.AppVersion != "" {
		params["app_version"] = req.AppVersion
	}
	return params
}

func (c *Client) get(ctx context.Context, url string, params map[string]string) (*serverResponse, error) {
	resp, err := httpclient.Get(ctx, url, httpclient.WithQueryParams(params))
	return decode(ctx, resp, err)
}

func (c *Client) post(ctx context.Context, url string, params map[string]string, eapResponse string) (*serverResponse, error) {
	resp, err := httpclient.Post(ctx, url,
		httpclient.WithQueryParams(params),
		httpclient.WithContentType("application/json"),
		httpclient.WithBody(map[string]string{"eap-relay-packet": eapResponse}),
	)
	return decode(ctx, resp, err)
}

func decode(ctx context.Context, resp *resty.Response, err error) (*serverResponse, error) {
	if err != nil {
		return nil, wrapError(CodeServerNotConnectable, "entitlement server not reachable", err)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		logger.WarnContext(ctx, "entitlement server returned failure status",
			slog.Int("status", resp.StatusCode()),
		)
		return nil, httpError(resp.StatusCode(), resp.Header().Get("Retry-After"),
			fmt.Sprintf("entitlement server returned status %d", resp.StatusCode()))
	}

	var sr serverResponse
	if unmarshalErr := json.Unmarshal(resp.Body(), &sr); unmarshalErr != nil {
		return nil, wrapError(CodeMalformedHTTPResponse,
			"failed to parse entitlement server response", unmarshalErr)
	}

	return &sr, nil
}

func tokenFrom(sr *serverResponse) (*AuthResponse, error) {
	if sr.Token == "" {
		return nil, newError(CodeTokenNotAvailable, "response did not include a token")
	}

	return &AuthResponse{
		Token:    sr.Token,
		Validity: time.Duration(sr.ValiditySecs) * time.Second,
	}, nil
}
