// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"io"
	"net/http"
	"testing"

	"github.com/lestrrat-go/jwx/jwk"
	"github.com/lestrrat-go/jwx/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWKsEndpointServesSigningKey(t *testing.T) {
	idp, err := NewMockIdentityServer()
	require.NoError(t, err)
	defer idp.Server.Close()

	resp, err := idp.Server.Client().Get(idp.Server.URL + "/protocol/openid-connect/certs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	keySet, err := jwk.Parse(body)
	require.NoError(t, err)
	assert.Equal(t, 1, keySet.Len())
	assert.Equal(t, 1, idp.JWKsHitCounter)
}

func TestSignTokenVerifiesAgainstPublishedKeys(t *testing.T) {
	idp, err := NewMockIdentityServer()
	require.NoError(t, err)
	defer idp.Server.Close()

	rawToken, err := idp.SignToken(idp.DefaultClaims())
	require.NoError(t, err)

	resp, err := idp.Server.Client().Get(idp.Server.URL + "/protocol/openid-connect/certs")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	keySet, err := jwk.Parse(body)
	require.NoError(t, err)

	parsed, err := jwt.ParseString(rawToken, jwt.WithKeySet(keySet), jwt.UseDefaultKey(true))
	require.NoError(t, err)
	assert.Equal(t, "user-123", parsed.Subject())
	assert.Equal(t, idp.Server.URL, parsed.Issuer())
}

func TestSignTokenWithForeignKeyDoesNotVerify(t *testing.T) {
	idp, err := NewMockIdentityServer()
	require.NoError(t, err)
	defer idp.Server.Close()

	rawToken, err := idp.SignTokenWithForeignKey(idp.DefaultClaims())
	require.NoError(t, err)

	resp, err := idp.Server.Client().Get(idp.Server.URL + "/protocol/openid-connect/certs")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	keySet, err := jwk.Parse(body)
	require.NoError(t, err)

	_, err = jwt.ParseString(rawToken, jwt.WithKeySet(keySet), jwt.UseDefaultKey(true))
	require.Error(t, err)
}
