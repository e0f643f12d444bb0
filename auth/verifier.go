// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jws"
	"github.com/lestrrat-go/jwx/jwt"

	"github.com/campusrallye/auth-bridge-go/env"
	"github.com/campusrallye/auth-bridge-go/oidcclient"
)

// Verifier validates externally-issued identity tokens against the
// configured issuer, audience and its published key set. Instantiate once
// per process with NewVerifier.
type Verifier struct {
	issuer   string
	audience string
	keySet   *oidcclient.RemoteKeySet
}

// NewVerifier instantiates a Verifier from the given configuration.
// Returns a configuration error if issuer or audience is unset.
func NewVerifier(cfg *env.Config, client *http.Client) (*Verifier, error) {
	if !cfg.HasVerifier() {
		return nil, NewErrorf(ErrCodeConfiguration, "verifier unavailable: issuer or audience not configured")
	}
	keySet, err := oidcclient.NewRemoteKeySet(client, cfg.Issuer)
	if err != nil {
		return nil, NewError(ErrCodeConfiguration, err)
	}
	return &Verifier{
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		keySet:   keySet,
	}, nil
}

// Verify parses and validates a raw token: RS256 signature against the
// remote key set, exact issuer match, expiry, and the audience check.
// It returns the decoded token and the audience value it verified against.
//
// The audience check accepts tokens whose audience list contains the
// configured audience, and falls back to the authorized-party claim because
// some token issuance flows omit the client id from the audience list.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (Token, string, error) {
	if rawToken == "" {
		return Token{}, "", NewErrorf(ErrCodeVerification, "no token provided")
	}

	token, err := NewToken(rawToken)
	if err != nil {
		return Token{}, "", err
	}

	if err := v.verifyAlgorithm(rawToken); err != nil {
		return Token{}, "", err
	}

	if err := v.verifySignature(ctx, rawToken); err != nil {
		return Token{}, "", err
	}

	if err := v.validateClaims(token); err != nil {
		return Token{}, "", err
	}

	audience, err := v.verifyAudience(token)
	if err != nil {
		return Token{}, "", err
	}

	return token, audience, nil
}

// VerifyClaims verifies the raw token and normalizes its payload into the
// canonical Claims shape. A token without any usable subject is rejected.
func (v *Verifier) VerifyClaims(ctx context.Context, rawToken string) (Claims, error) {
	token, audience, err := v.Verify(ctx, rawToken)
	if err != nil {
		return Claims{}, err
	}
	claims := ExtractClaims(token, audience)
	if claims.Subject == "" {
		return Claims{}, NewErrorf(ErrCodeVerification, "token carries no subject")
	}
	return claims, nil
}

func (v *Verifier) verifyAlgorithm(rawToken string) error {
	headers, err := getHeaders(rawToken)
	if err != nil {
		return NewError(ErrCodeVerification, err)
	}
	if alg := headers.Algorithm(); alg != jwa.RS256 {
		return NewErrorf(ErrCodeVerification, "unexpected signing algorithm %q, expected RS256", alg)
	}
	return nil
}

func (v *Verifier) verifySignature(ctx context.Context, rawToken string) error {
	jwks, err := v.keySet.GetJWKs(ctx)
	if err != nil {
		return NewError(ErrCodeVerification, err)
	}
	_, err = jwt.ParseString(rawToken, jwt.WithKeySet(jwks), jwt.UseDefaultKey(true))
	if err == nil {
		return nil
	}

	// The provider may have rotated its keys since the last fetch. One
	// rate-limited refetch before giving up.
	jwks, refreshErr := v.keySet.ForceRefresh(ctx)
	if refreshErr != nil {
		return NewError(ErrCodeVerification, err)
	}
	if _, retryErr := jwt.ParseString(rawToken, jwt.WithKeySet(jwks), jwt.UseDefaultKey(true)); retryErr != nil {
		return NewError(ErrCodeVerification, retryErr)
	}
	return nil
}

func (v *Verifier) validateClaims(t Token) error {
	// explicit IsExpired check, because jwt.Validate() doesn't fail on a
	// missing 'exp' claim
	if t.IsExpired() {
		return NewErrorf(ErrCodeVerification, "token is expired, exp: %v", t.Expiration())
	}
	if t.Issuer() != v.issuer {
		return NewErrorf(ErrCodeVerification, "invalid issuer %q, expected %q", t.Issuer(), v.issuer)
	}
	err := jwt.Validate(t.getJwtToken(),
		jwt.WithIssuer(v.issuer),
		jwt.WithAcceptableSkew(1*time.Minute)) // to keep leeway in sync with Token.IsExpired
	if err != nil {
		return NewError(ErrCodeVerification, fmt.Errorf("claim validation failed: %v", err))
	}
	return nil
}

func (v *Verifier) verifyAudience(t Token) (string, error) {
	for _, aud := range t.Audience() {
		if aud == v.audience {
			return aud, nil
		}
	}
	if t.AuthorizedParty() == v.audience {
		return v.audience, nil
	}
	return "", NewErrorf(ErrCodeVerification, "invalid audience %v", t.Audience())
}

func getHeaders(encodedToken string) (jws.Headers, error) {
	msg, err := jws.Parse([]byte(encodedToken))
	if err != nil {
		return nil, err
	}
	signatures := msg.Signatures()
	if len(signatures) == 0 {
		return nil, errors.New("token carries no signature")
	}
	return signatures[0].ProtectedHeaders(), nil
}
