// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package mocks provides test doubles for the external collaborators of the
// identity bridge: the identity provider and the data layer. Exported so
// host applications can use them in their own tests.
package mocks

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwk"
	"github.com/lestrrat-go/jwx/jwt"

	"github.com/campusrallye/auth-bridge-go/env"
)

const keyID = "testKey"

// MockIdentityServer serves as an identity provider mock for tests.
// Requests to it must be done with its own client: MockIdentityServer.Server.Client()
type MockIdentityServer struct {
	Server         *httptest.Server // Server holds the httptest.Server and its Client.
	ClientID       string           // ClientID is the audience tokens are expected to carry.
	RSAKey         *rsa.PrivateKey  // RSAKey holds the server's private key to sign tokens.
	JWKsHitCounter int              // JWKsHitCounter holds the number of requests to the JWKs endpoint.
}

// NewMockIdentityServer instantiates a new MockIdentityServer with a fresh
// signing key.
func NewMockIdentityServer() (*MockIdentityServer, error) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("unable to create mock server: error generating rsa key: %v", err)
	}

	m := &MockIdentityServer{
		ClientID: "rallye-admin",
		RSAKey:   rsaKey,
	}

	r := mux.NewRouter()
	r.HandleFunc("/protocol/openid-connect/certs", m.JWKsHandler).Methods(http.MethodGet)
	m.Server = httptest.NewTLSServer(r)

	return m, nil
}

// Config returns a bridge configuration bound to this mock server.
func (m *MockIdentityServer) Config() *env.Config {
	return &env.Config{
		Issuer:   m.Server.URL,
		Audience: m.ClientID,
	}
}

// JWKsHandler answers requests to the JWKS endpoint.
func (m *MockIdentityServer) JWKsHandler(w http.ResponseWriter, _ *http.Request) {
	m.JWKsHitCounter++

	key, err := jwk.New(&m.RSAKey.PublicKey)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_ = key.Set(jwk.KeyIDKey, keyID)
	_ = key.Set(jwk.AlgorithmKey, jwa.RS256)
	_ = key.Set(jwk.KeyUsageKey, "sig")

	payload, _ := json.Marshal(map[string]interface{}{"keys": []jwk.Key{key}})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

// SignToken signs the provided Claims into an RS256 JWT issued by the mock
// server's key.
func (m *MockIdentityServer) SignToken(claims Claims) (string, error) {
	token, err := claims.toJwtToken()
	if err != nil {
		return "", err
	}

	jwkKey, err := jwk.New(m.RSAKey)
	if err != nil {
		return "", fmt.Errorf("failed to create JWK: %s", err)
	}
	_ = jwkKey.Set(jwk.KeyIDKey, keyID)

	signedJwt, err := jwt.Sign(token, jwa.RS256, jwkKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign the token: %v", err)
	}
	return string(signedJwt), nil
}

// SignTokenHS256 signs the provided Claims with a symmetric secret. Useful
// to exercise the RS256-only requirement of the verifier.
func (m *MockIdentityServer) SignTokenHS256(claims Claims, secret string) (string, error) {
	token, err := claims.toJwtToken()
	if err != nil {
		return "", err
	}
	signedJwt, err := jwt.Sign(token, jwa.HS256, []byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign the token: %v", err)
	}
	return string(signedJwt), nil
}

// SignTokenWithForeignKey signs the provided Claims with a key the mock
// server never published, e.g. to mimic a different issuer's signature.
func (m *MockIdentityServer) SignTokenWithForeignKey(claims Claims) (string, error) {
	foreignKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", fmt.Errorf("error generating foreign rsa key: %v", err)
	}
	token, err := claims.toJwtToken()
	if err != nil {
		return "", err
	}
	jwkKey, err := jwk.New(foreignKey)
	if err != nil {
		return "", fmt.Errorf("failed to create JWK: %s", err)
	}
	_ = jwkKey.Set(jwk.KeyIDKey, keyID)
	signedJwt, err := jwt.Sign(token, jwa.RS256, jwkKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign the token: %v", err)
	}
	return string(signedJwt), nil
}

// DefaultClaims returns Claims with mock server specific default values: a
// staff member whose token carries the client id in the audience list.
func (m *MockIdentityServer) DefaultClaims() Claims {
	now := time.Now().Unix()
	return Claims{
		Audience:    []string{m.ClientID},
		ExpiresAt:   now + 5*60,
		ID:          uuid.New().String(),
		IssuedAt:    now,
		Issuer:      m.Server.URL,
		NotBefore:   now,
		Subject:     "user-123",
		UserUUID:    "22222222-3333-4444-5555-666666666666",
		Email:       "foo@example.org",
		RealmAccess: &RoleList{Roles: []string{"staff"}},
	}
}
