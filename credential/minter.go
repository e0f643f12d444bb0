// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package credential mints the short-lived, internally-signed tokens the
// data layer trusts. The external identity token never leaves the bridge;
// every data-layer call authenticates with a minted credential instead.
package credential

import (
	"time"

	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwt"
	gocache "github.com/patrickmn/go-cache"

	"github.com/campusrallye/auth-bridge-go/auth"
	"github.com/campusrallye/auth-bridge-go/env"
)

const (
	// issuerName identifies this bridge in minted tokens.
	issuerName = "rallye-auth-bridge"
	// audienceAuthenticated is the fixed audience respectively role the data
	// layer expects on authenticated calls.
	audienceAuthenticated = "authenticated"

	// credentialTTL is 55 minutes, below the data layer's own token expiry
	// tolerance.
	credentialTTL = 3300 * time.Second
	// reuseMargin avoids handing out a credential that expires mid-flight
	// for a slow downstream call.
	reuseMargin = 30 * time.Second

	cacheCleanupInterval = 10 * time.Minute
)

type cachedCredential struct {
	jwt     string
	subject string
	expiry  time.Time
}

// Minter produces internal credentials asserting a verified subject, cached
// per subject with TTL eviction. Safe for concurrent use.
type Minter struct {
	secret      []byte
	credentials *gocache.Cache
	now         func() time.Time
}

// NewMinter instantiates a Minter. A missing signing secret is a fatal
// configuration error.
func NewMinter(cfg *env.Config) (*Minter, error) {
	if cfg == nil || cfg.JWTSecret == "" {
		return nil, auth.NewErrorf(auth.ErrCodeConfiguration, "data layer signing secret not configured")
	}
	return &Minter{
		secret:      []byte(cfg.JWTSecret),
		credentials: gocache.New(credentialTTL, cacheCleanupInterval),
		now:         time.Now,
	}, nil
}

// MintOrReuse returns a credential for the given subject. A cached
// credential is reused only while its expiry is more than 30 seconds in the
// future and it was minted for the same subject; otherwise a fresh one is
// signed and cached.
func (m *Minter) MintOrReuse(subject string) (string, error) {
	now := m.now()

	if entry, found := m.credentials.Get(subject); found {
		cached := entry.(cachedCredential)
		if cached.subject == subject && cached.expiry.Sub(now) > reuseMargin {
			return cached.jwt, nil
		}
	}

	expiry := now.Add(credentialTTL)
	signed, err := m.mint(subject, now, expiry)
	if err != nil {
		return "", err
	}

	m.credentials.Set(subject, cachedCredential{
		jwt:     signed,
		subject: subject,
		expiry:  expiry,
	}, credentialTTL)

	return signed, nil
}

func (m *Minter) mint(subject string, issuedAt, expiry time.Time) (string, error) {
	token := jwt.New()
	claims := map[string]interface{}{
		jwt.SubjectKey:    subject,
		jwt.IssuerKey:     issuerName,
		jwt.AudienceKey:   audienceAuthenticated,
		jwt.IssuedAtKey:   issuedAt.Unix(),
		jwt.ExpirationKey: expiry.Unix(),
		"role":            audienceAuthenticated,
	}
	for key, value := range claims {
		if err := token.Set(key, value); err != nil {
			return "", auth.NewErrorf(auth.ErrCodeConfiguration, "unable to set claim %s: %v", key, err)
		}
	}

	signed, err := jwt.Sign(token, jwa.HS256, m.secret)
	if err != nil {
		return "", auth.NewError(auth.ErrCodeConfiguration, err)
	}
	return string(signed), nil
}
