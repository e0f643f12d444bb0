// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package oidcclient_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusrallye/auth-bridge-go/mocks"
	"github.com/campusrallye/auth-bridge-go/oidcclient"
)

func TestNewRemoteKeySetRequiresIssuer(t *testing.T) {
	_, err := oidcclient.NewRemoteKeySet(nil, "")
	require.Error(t, err)
}

func TestRemoteKeySetURL(t *testing.T) {
	keySet, err := oidcclient.NewRemoteKeySet(nil, "https://idp.example.org/realms/rallye/")
	require.NoError(t, err)
	assert.Equal(t, "https://idp.example.org/realms/rallye/protocol/openid-connect/certs", keySet.URL())
}

func TestGetJWKsCachesAcrossCalls(t *testing.T) {
	idp, err := mocks.NewMockIdentityServer()
	require.NoError(t, err)
	defer idp.Server.Close()

	keySet, err := oidcclient.NewRemoteKeySet(idp.Server.Client(), idp.Server.URL)
	require.NoError(t, err)

	first, err := keySet.GetJWKs(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, first.Len())

	_, err = keySet.GetJWKs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, idp.JWKsHitCounter, "second call must be served from cache")
}

func TestForceRefreshIsRateLimited(t *testing.T) {
	idp, err := mocks.NewMockIdentityServer()
	require.NoError(t, err)
	defer idp.Server.Close()

	keySet, err := oidcclient.NewRemoteKeySet(idp.Server.Client(), idp.Server.URL)
	require.NoError(t, err)

	_, err = keySet.GetJWKs(context.Background())
	require.NoError(t, err)
	baseline := idp.JWKsHitCounter

	for i := 0; i < 5; i++ {
		keys, err := keySet.ForceRefresh(context.Background())
		require.NoError(t, err)
		require.NotNil(t, keys)
	}

	forced := idp.JWKsHitCounter - baseline
	assert.LessOrEqual(t, forced, 2, "forced refetches must be capped")
	assert.GreaterOrEqual(t, forced, 1)
}

func TestGetJWKsSurfacesRemoteFailure(t *testing.T) {
	keySet, err := oidcclient.NewRemoteKeySet(nil, "https://127.0.0.1:1/unreachable")
	require.NoError(t, err)

	_, err = keySet.GetJWKs(context.Background())
	require.Error(t, err)
}
