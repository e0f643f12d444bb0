// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusrallye/auth-bridge-go/auth"
)

func TestNewTokenRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "garbage", "a.b", "a.b.c"} {
		_, err := auth.NewToken(raw)
		require.Error(t, err, "raw token %q", raw)
		assert.True(t, auth.HasCode(err, auth.ErrCodeVerification))
	}
}

func TestGetClaimAsString(t *testing.T) {
	token := newToken(t, map[string]interface{}{
		"sub":    "user-123",
		"custom": "value",
		"number": 42,
	})

	value, err := token.GetClaimAsString("custom")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	_, err = token.GetClaimAsString("missing")
	assert.Error(t, err)

	_, err = token.GetClaimAsString("number")
	assert.Error(t, err)
}

func TestTokenRoleAccessors(t *testing.T) {
	token := newToken(t, map[string]interface{}{
		"sub":          "user-123",
		"realm_access": map[string]interface{}{"roles": []string{"staff"}},
		"resource_access": map[string]interface{}{
			"rallye-admin": map[string]interface{}{"roles": []string{"admin"}},
		},
		"roles": []string{"flat"},
	})

	assert.Equal(t, []string{"staff"}, token.RealmRoles())
	assert.Equal(t, []string{"admin"}, token.ResourceRoles("rallye-admin"))
	assert.Nil(t, token.ResourceRoles("unknown-client"))
	assert.Equal(t, []string{"flat"}, token.FlatRoles())
}
