package auth_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/astro-web3/ts43-entitlement/internal/domain/auth"
	"github.com/astro-web3/ts43-entitlement/internal/infra/entitlement"
)

type mockCertSource struct {
	certs map[string][]string
	owned map[string][]string
}

func (m *mockCertSource) SigningCertificates(_ context.Context, packageName string) ([]string, error) {
	certs, ok := m.certs[packageName]
	if !ok {
		return nil, context.Canceled
	}
	return certs, nil
}

func (m *mockCertSource) PackagesForCaller(_ context.Context, callerID string) ([]string, error) {
	packages, ok := m.owned[callerID]
	if !ok {
		return nil, context.Canceled
	}
	return packages, nil
}

type mockBackend struct {
	mu        sync.Mutex
	tokenFunc func(req *entitlement.TokenRequest) (*entitlement.AuthResponse, error)
	requests  []*entitlement.TokenRequest
	starts    []time.Time
	ends      []time.Time
	delay     time.Duration
}

func (m *mockBackend) GetAuthToken(_ context.Context, req *entitlement.TokenRequest) (*entitlement.AuthResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.starts = append(m.starts, time.Now())
	m.mu.Unlock()

	time.Sleep(m.delay)

	defer func() {
		m.mu.Lock()
		m.ends = append(m.ends, time.Now())
		m.mu.Unlock()
	}()

	if m.tokenFunc != nil {
		return m.tokenFunc(req)
	}
	return &entitlement.AuthResponse{Token: "test-token", Validity: time.Hour}, nil
}

func (m *mockBackend) GetOidcAuthServer(_ context.Context, req *entitlement.TokenRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return "https://oidc.example.com/authorize?client_id=abc&state=xyz", nil
}

func (m *mockBackend) GetAuthTokenFromOidc(_ context.Context, _ *entitlement.OidcRequest) (*entitlement.AuthResponse, error) {
	return &entitlement.AuthResponse{Token: "oidc-token", Validity: time.Hour}, nil
}

func defaultCertSource() *mockCertSource {
	return &mockCertSource{
		certs: map[string][]string{"com.example.app": {"AA11"}},
		owned: map[string][]string{"caller-1": {"com.example.app"}},
	}
}

func testCaller() auth.Caller {
	return auth.Caller{ID: "caller-1", Package: "com.example.app"}
}

func testParams(t *testing.T) auth.AuthParams {
	t.Helper()
	server, err := url.Parse("https://entitlement.example.com")
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}
	return auth.AuthParams{
		SlotIndex:     0,
		ServerAddress: server,
		AppID:         "ap2004",
	}
}

func syncExecutor() auth.Executor {
	return auth.ExecutorFunc(func(fn func()) { fn() })
}

type tokenOutcome struct {
	token   *auth.Token
	authErr *auth.AuthError
}

func requestToken(lib *auth.Library, cfg *auth.Config, caller auth.Caller, params auth.AuthParams) tokenOutcome {
	outcome := make(chan tokenOutcome, 1)
	lib.RequestEapAkaAuth(context.Background(), cfg, caller, params, syncExecutor(),
		func(token *auth.Token, authErr *auth.AuthError) {
			outcome <- tokenOutcome{token, authErr}
		})
	return <-outcome
}

func TestRequestEapAkaAuth_BackendFailureTranslated(t *testing.T) {
	backend := &mockBackend{
		tokenFunc: func(*entitlement.TokenRequest) (*entitlement.AuthResponse, error) {
			return nil, &entitlement.Error{Code: entitlement.CodeEapAkaFailure, Message: "attempts exhausted"}
		},
	}
	lib := auth.NewLibrary(backend, defaultCertSource())
	defer lib.Close()

	cfg := &auth.Config{AllowedCertificates: []string{"AA11:com.example.app"}}
	out := requestToken(lib, cfg, testCaller(), testParams(t))

	if out.token != nil {
		t.Fatal("expected no token on backend failure")
	}
	if out.authErr == nil || out.authErr.Kind != auth.ErrorMaxEapAkaAttempts {
		t.Fatalf("expected ErrorMaxEapAkaAttempts, got %v", out.authErr)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.requests) != 1 {
		t.Fatalf("expected exactly one backend call, got %d", len(backend.requests))
	}
	if got := backend.requests[0].AppName; got != "com.example.app" {
		t.Errorf("expected bare package as app name, got %q", got)
	}
	if got := backend.requests[0].EntitlementVersion; got != "2.0" {
		t.Errorf("expected default entitlement version 2.0, got %q", got)
	}
}

func TestRequestEapAkaAuth_UnauthorizedCallerRejectedEarly(t *testing.T) {
	backend := &mockBackend{}
	source := defaultCertSource()
	source.certs["com.example.app"] = []string{"BB22"}
	lib := auth.NewLibrary(backend, source)
	defer lib.Close()

	cfg := &auth.Config{AllowedCertificates: []string{"AA11:com.example.app"}}
	out := requestToken(lib, cfg, testCaller(), testParams(t))

	if out.authErr == nil || out.authErr.Kind != auth.ErrorInvalidAppName {
		t.Fatalf("expected ErrorInvalidAppName, got %v", out.authErr)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.requests) != 0 {
		t.Error("rejected request must never reach the backend")
	}
}

func TestRequestEapAkaAuth_SpoofedPackageRejected(t *testing.T) {
	backend := &mockBackend{}
	lib := auth.NewLibrary(backend, defaultCertSource())
	defer lib.Close()

	cfg := &auth.Config{AllowedCertificates: []string{"AA11"}}
	caller := auth.Caller{ID: "caller-1", Package: "com.victim.app"}
	out := requestToken(lib, cfg, caller, testParams(t))

	if out.authErr == nil || out.authErr.Kind != auth.ErrorInvalidAppName {
		t.Fatalf("expected ErrorInvalidAppName for spoofed package, got %v", out.authErr)
	}
}

func TestRequestEapAkaAuth_EmptyAllowListSkipsMatch(t *testing.T) {
	backend := &mockBackend{}
	lib := auth.NewLibrary(backend, defaultCertSource())
	defer lib.Close()

	// Append flag set, but with an empty allow-list no match is computed, so
	// the app name falls back to the bare package.
	cfg := &auth.Config{AppendShaToAppName: true}
	out := requestToken(lib, cfg, testCaller(), testParams(t))

	if out.authErr != nil {
		t.Fatalf("unexpected failure: %v", out.authErr)
	}
	if out.token == nil || out.token.Value != "test-token" {
		t.Fatalf("expected test token, got %+v", out.token)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if got := backend.requests[0].AppName; got != "com.example.app" {
		t.Errorf("expected bare package as app name, got %q", got)
	}
}

func TestRequestEapAkaAuth_AppendShaWithMatch(t *testing.T) {
	backend := &mockBackend{}
	lib := auth.NewLibrary(backend, defaultCertSource())
	defer lib.Close()

	cfg := &auth.Config{
		AllowedCertificates: []string{"AA11:com.example.app"},
		AppendShaToAppName:  true,
	}
	out := requestToken(lib, cfg, testCaller(), testParams(t))

	if out.authErr != nil {
		t.Fatalf("unexpected failure: %v", out.authErr)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if got := backend.requests[0].AppName; got != "AA11|com.example.app" {
		t.Errorf("expected sha-appended app name, got %q", got)
	}
}

func TestConcurrentRequestsAreSerialized(t *testing.T) {
	backend := &mockBackend{delay: 30 * time.Millisecond}
	lib := auth.NewLibrary(backend, defaultCertSource())
	defer lib.Close()

	cfg := &auth.Config{}
	var wg sync.WaitGroup
	for slot := 0; slot < 2; slot++ {
		wg.Add(1)
		params := testParams(t)
		params.SlotIndex = slot
		go func(p auth.AuthParams) {
			defer wg.Done()
			out := requestToken(lib, cfg, testCaller(), p)
			if out.authErr != nil {
				t.Errorf("unexpected failure for slot %d: %v", p.SlotIndex, out.authErr)
			}
		}(params)
	}
	wg.Wait()

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.starts) != 2 || len(backend.ends) != 2 {
		t.Fatalf("expected two backend calls, got %d starts / %d ends", len(backend.starts), len(backend.ends))
	}
	if backend.starts[1].Before(backend.ends[0]) {
		t.Error("second backend call started before the first completed")
	}
}

func TestRequestOidcAuthServer(t *testing.T) {
	backend := &mockBackend{}
	lib := auth.NewLibrary(backend, defaultCertSource())
	defer lib.Close()

	outcome := make(chan *url.URL, 1)
	lib.RequestOidcAuthServer(context.Background(), &auth.Config{}, testCaller(), testParams(t),
		syncExecutor(), func(authServer *url.URL, authErr *auth.AuthError) {
			if authErr != nil {
				t.Errorf("unexpected failure: %v", authErr)
			}
			outcome <- authServer
		})

	authServer := <-outcome
	if authServer == nil || authServer.Host != "oidc.example.com" {
		t.Fatalf("unexpected auth server URL: %v", authServer)
	}
}

func TestRequestOidcAuth(t *testing.T) {
	backend := &mockBackend{}
	lib := auth.NewLibrary(backend, defaultCertSource())
	defer lib.Close()

	server, _ := url.Parse("https://entitlement.example.com")
	aes, _ := url.Parse("https://aes.example.com/token?code=abc&state=xyz")

	outcome := make(chan tokenOutcome, 1)
	lib.RequestOidcAuth(context.Background(), &auth.Config{}, testCaller(),
		auth.OidcTokenParams{ServerAddress: server, AESURL: aes},
		syncExecutor(), func(token *auth.Token, authErr *auth.AuthError) {
			outcome <- tokenOutcome{token, authErr}
		})

	out := <-outcome
	if out.authErr != nil {
		t.Fatalf("unexpected failure: %v", out.authErr)
	}
	if out.token.Value != "oidc-token" {
		t.Errorf("unexpected token %q", out.token.Value)
	}
}

func TestListenerRegistry(t *testing.T) {
	backend := &mockBackend{}
	lib := auth.NewLibrary(backend, defaultCertSource())
	defer lib.Close()

	var mu sync.Mutex
	var events []auth.Event
	handle := lib.AddListener(func(e auth.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	out := requestToken(lib, &auth.Config{}, testCaller(), testParams(t))
	if out.authErr != nil {
		t.Fatalf("unexpected failure: %v", out.authErr)
	}

	mu.Lock()
	if len(events) != 1 || events[0].Op != auth.OpEapAkaAuth || events[0].Err != nil {
		t.Fatalf("expected one successful eap-aka event, got %+v", events)
	}
	mu.Unlock()

	lib.RemoveListener(handle)

	out = requestToken(lib, &auth.Config{}, testCaller(), testParams(t))
	if out.authErr != nil {
		t.Fatalf("unexpected failure: %v", out.authErr)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Errorf("removed listener still receives events: %+v", events)
	}
}
