// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package auth_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusrallye/auth-bridge-go/auth"
	"github.com/campusrallye/auth-bridge-go/env"
	"github.com/campusrallye/auth-bridge-go/mocks"
)

const loginURL = "https://gateway.example.org/oauth2/start"

func newGate(t *testing.T, idp *mocks.MockIdentityServer) *auth.Middleware {
	t.Helper()
	cfg := idp.Config()
	cfg.AllowedEmails = "listed@example.org"
	return auth.NewMiddleware(cfg, idp.Server.Client(), auth.Options{LoginURL: loginURL})
}

// gateRequest runs a request through the gate in front of a handler that
// records whether it was reached and with which claims.
func gateRequest(t *testing.T, gate *auth.Middleware, target, rawToken string) (*http.Response, bool, auth.Claims) {
	t.Helper()

	var reached bool
	var claims auth.Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		claims = auth.ClaimsFromCtx(r)
		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest(http.MethodGet, target, nil)
	if rawToken != "" {
		r.Header.Set("x-forwarded-access-token", rawToken)
	}
	w := httptest.NewRecorder()
	gate.GateHandler(next).ServeHTTP(w, r)

	return w.Result(), reached, claims
}

func TestGateRedirectsAnonymousToLogin(t *testing.T) {
	idp, err := mocks.NewMockIdentityServer()
	require.NoError(t, err)
	defer idp.Server.Close()

	resp, reached, _ := gateRequest(t, newGate(t, idp), "/questions?tab=1", "")

	assert.False(t, reached)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "gateway.example.org", location.Host)
	assert.Equal(t, "/questions?tab=1", location.Query().Get("return_to"))
}

func TestGateSanitizesReturnTo(t *testing.T) {
	idp, err := mocks.NewMockIdentityServer()
	require.NoError(t, err)
	defer idp.Server.Close()
	gate := newGate(t, idp)

	tests := []struct {
		name     string
		path     string
		rawQuery string
		want     string
	}{
		{name: "plain path", path: "/rallyes", want: "/rallyes"},
		{name: "query preserved", path: "/questions", rawQuery: "tab=1&dept=3", want: "/questions?tab=1&dept=3"},
		{name: "protocol-relative collapsed", path: "//evil.example/phish", want: "/evil.example/phish"},
		{name: "many slashes collapsed", path: "///evil.example", want: "/evil.example"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("request must not reach the handler")
			})
			r := httptest.NewRequest(http.MethodGet, "/placeholder", nil)
			r.URL = &url.URL{Path: tt.path, RawQuery: tt.rawQuery}
			w := httptest.NewRecorder()
			gate.GateHandler(next).ServeHTTP(w, r)

			resp := w.Result()
			require.Equal(t, http.StatusFound, resp.StatusCode)
			location, err := url.Parse(resp.Header.Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, location.Query().Get("return_to"))
		})
	}
}

func TestGateAllowsAuthorizedRequest(t *testing.T) {
	idp, err := mocks.NewMockIdentityServer()
	require.NoError(t, err)
	defer idp.Server.Close()

	rawToken, err := idp.SignToken(idp.DefaultClaims())
	require.NoError(t, err)

	resp, reached, claims := gateRequest(t, newGate(t, idp), "/questions", rawToken)

	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "22222222-3333-4444-5555-666666666666", claims.Subject)
	assert.Contains(t, claims.Roles, "staff")
}

func TestGateAcceptsAuthorizationHeader(t *testing.T) {
	idp, err := mocks.NewMockIdentityServer()
	require.NoError(t, err)
	defer idp.Server.Close()

	rawToken, err := idp.SignToken(idp.DefaultClaims())
	require.NoError(t, err)

	var reached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})
	r := httptest.NewRequest(http.MethodGet, "/questions", nil)
	r.Header.Set("Authorization", "Bearer "+rawToken)
	w := httptest.NewRecorder()
	newGate(t, idp).GateHandler(next).ServeHTTP(w, r)

	assert.True(t, reached)
}

func TestGateRedirectsUnauthorizedToDeniedPage(t *testing.T) {
	idp, err := mocks.NewMockIdentityServer()
	require.NoError(t, err)
	defer idp.Server.Close()

	// valid identity, but neither staff role nor listed email
	claims := mocks.NewClaimsBuilder(idp.DefaultClaims()).
		RealmRoles().
		Email("unlisted@example.org").
		Build()
	rawToken, err := idp.SignToken(claims)
	require.NoError(t, err)

	resp, reached, _ := gateRequest(t, newGate(t, idp), "/questions", rawToken)

	assert.False(t, reached)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/access-denied", resp.Header.Get("Location"))
}

func TestGateTreatsForeignIssuerAsAnonymous(t *testing.T) {
	idp, err := mocks.NewMockIdentityServer()
	require.NoError(t, err)
	defer idp.Server.Close()

	claims := mocks.NewClaimsBuilder(idp.DefaultClaims()).
		Issuer("https://another.oidc-server.com/").
		Build()
	rawToken, err := idp.SignToken(claims)
	require.NoError(t, err)

	resp, reached, _ := gateRequest(t, newGate(t, idp), "/questions", rawToken)

	assert.False(t, reached)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "gateway.example.org", location.Host)
}

func TestGateFailsClosedWithoutVerifierConfig(t *testing.T) {
	gate := auth.NewMiddleware(&env.Config{LoginURL: loginURL}, nil, auth.Options{})

	resp, reached, _ := gateRequest(t, gate, "/questions", "")

	assert.False(t, reached)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	// denied page, not login: a login round-trip can never succeed here
	assert.Equal(t, "/access-denied", resp.Header.Get("Location"))
}

func TestGateSkipPatterns(t *testing.T) {
	idp, err := mocks.NewMockIdentityServer()
	require.NoError(t, err)
	defer idp.Server.Close()

	cfg := idp.Config()
	gate := auth.NewMiddleware(cfg, idp.Server.Client(), auth.Options{
		LoginURL:     loginURL,
		SkipPatterns: []string{"/", "/static/*"},
	})

	tests := []struct {
		target      string
		wantReached bool
	}{
		{target: "/", wantReached: true},
		{target: "/static/logo.png", wantReached: true},
		{target: "/access-denied", wantReached: true},
		{target: "/questions", wantReached: false},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			var reached bool
			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { reached = true })
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			w := httptest.NewRecorder()
			gate.GateHandler(next).ServeHTTP(w, r)
			assert.Equal(t, tt.wantReached, reached)
		})
	}
}
