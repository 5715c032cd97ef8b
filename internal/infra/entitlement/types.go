package entitlement

import "time"

// TokenRequest is the shared parameter set for EAP-AKA token requests and OIDC
// authentication server discovery, per TS.43 Service Entitlement Configuration
// sections 2.8.1 and 2.8.2.
type TokenRequest struct {
	ServerAddress      string
	EntitlementVersion string
	AppID              string
	AppName            string
	AppVersion         string
	SlotIndex          int
}

// OidcRequest retrieves a token from the authentication endpoint server after
// the user completed the OIDC flow. The AES URL carries the authorization
// code and state parameters.
type OidcRequest struct {
	ServerAddress      string
	EntitlementVersion string
	AESURL             string
}

// AuthResponse is a successful token exchange result.
type AuthResponse struct {
	Token    string
	Validity time.Duration
}

type serverResponse struct {
	EapRelayPacket string `json:"eap-relay-packet,omitempty"`
	Token          string `json:"token,omitempty"`
	ValiditySecs   int64  `json:"validity,omitempty"`
	OidcAuthURL    string `json:"oidc-auth-url,omitempty"`
}
