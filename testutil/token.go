// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package testutil creates tokens for claim-level tests that don't need a
// mock identity provider.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"sync"

	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwt"

	"github.com/campusrallye/auth-bridge-go/auth"
)

var (
	dummyKeyOnce sync.Once
	dummyKey     *rsa.PrivateKey
	dummyKeyErr  error
)

// NewTokenFromClaims creates a Token from claims. !!! WARNING !!! No
// validation done when creating a Token this way. Use only in tests!
func NewTokenFromClaims(claims map[string]interface{}) (auth.Token, error) {
	jwtToken := jwt.New()
	for key, value := range claims {
		if err := jwtToken.Set(key, value); err != nil {
			return auth.Token{}, err
		}
	}

	dummyKeyOnce.Do(func() {
		dummyKey, dummyKeyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if dummyKeyErr != nil {
		return auth.Token{}, fmt.Errorf("unable to generate signing key: %w", dummyKeyErr)
	}

	signedJwt, err := jwt.Sign(jwtToken, jwa.RS256, dummyKey)
	if err != nil {
		return auth.Token{}, fmt.Errorf("error signing token: %w", err)
	}

	return auth.NewToken(string(signedJwt))
}
