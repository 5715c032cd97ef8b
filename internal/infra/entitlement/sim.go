package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	httpclient "github.com/astro-web3/ts43-entitlement/pkg/http"
)

// SIMGateway is a SIMAuthenticator that forwards AKA operations to a modem
// gateway service. Deployments without direct modem access run next to such a
// gateway; the AKA computation itself stays on the SIM.
type SIMGateway struct {
	baseURL string
}

func NewSIMGateway(baseURL string) *SIMGateway {
	return &SIMGateway{baseURL: strings.TrimSuffix(baseURL, "/")}
}

type simIdentityResponse struct {
	EapID string `json:"eap_id"`
}

type simChallengeResponse struct {
	Response    string `json:"response"`
	SyncFailure bool   `json:"sync_failure"`
}

func (g *SIMGateway) EapIdentity(ctx context.Context, slotIndex int) (string, error) {
	resp, err := httpclient.Get(ctx, fmt.Sprintf("%s/v1/sim/%d/identity", g.baseURL, slotIndex))
	if err != nil {
		return "", fmt.Errorf("sim gateway unreachable: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("sim gateway returned status %d", resp.StatusCode())
	}

	var identity simIdentityResponse
	if err := json.Unmarshal(resp.Body(), &identity); err != nil {
		return "", fmt.Errorf("failed to parse sim gateway response: %w", err)
	}
	if identity.EapID == "" {
		return "", fmt.Errorf("no SIM in slot %d", slotIndex)
	}
	return identity.EapID, nil
}

func (g *SIMGateway) EapAkaChallengeResponse(ctx context.Context, slotIndex int, challengePacket string) (string, error) {
	resp, err := httpclient.Post(ctx, fmt.Sprintf("%s/v1/sim/%d/eap-aka", g.baseURL, slotIndex),
		httpclient.WithContentType("application/json"),
		httpclient.WithBody(map[string]string{"challenge": challengePacket}),
	)
	if err != nil {
		return "", fmt.Errorf("sim gateway unreachable: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("sim gateway returned status %d", resp.StatusCode())
	}

	var challenge simChallengeResponse
	if err := json.Unmarshal(resp.Body(), &challenge); err != nil {
		return "", fmt.Errorf("failed to parse sim gateway response: %w", err)
	}
	if challenge.SyncFailure {
		return challenge.Response, ErrEapAkaSynchronizationFailure
	}
	return challenge.Response, nil
}
