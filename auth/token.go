// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/jwt"
	"github.com/lestrrat-go/jwx/jwt/openid"
)

// https://www.iana.org/assignments/jwt/jwt.xhtml#claims
const (
	claimEmail             = "email"
	claimPreferredUsername = "preferred_username"
	claimAuthorizedParty   = "azp"
	claimUserUUID          = "UUID" // custom claim set by the identity provider mapper
	claimUserUUIDLower     = "uuid"
	claimRealmAccess       = "realm_access"
	claimResourceAccess    = "resource_access"
	claimRoles             = "roles"
)

// Token wraps a decoded external identity token. No validation is done when
// creating a Token, see Verifier.
type Token struct {
	encodedToken string
	jwtToken     jwt.Token
}

// NewToken parses an encoded token into its claims without verifying anything.
func NewToken(encodedToken string) (Token, error) {
	decodedToken, err := jwt.ParseString(encodedToken, jwt.WithToken(openid.New()))
	if err != nil {
		return Token{}, NewError(ErrCodeVerification, err)
	}

	return Token{
		encodedToken: encodedToken,
		jwtToken:     decodedToken,
	}, nil
}

// TokenValue returns the encoded token string.
func (t Token) TokenValue() string {
	return t.encodedToken
}

func (t Token) getJwtToken() jwt.Token {
	return t.jwtToken
}

// Audience returns the "aud" claim, normalized to a slice.
func (t Token) Audience() []string {
	return t.jwtToken.Audience()
}

// Expiration returns the "exp" claim.
func (t Token) Expiration() time.Time {
	return t.jwtToken.Expiration()
}

// IsExpired returns true if the 'exp' claim plus a leeway of 1 minute is
// before current time.
func (t Token) IsExpired() bool {
	return t.Expiration().Add(1 * time.Minute).Before(time.Now())
}

// IssuedAt returns the "iat" claim.
func (t Token) IssuedAt() time.Time {
	return t.jwtToken.IssuedAt()
}

// Issuer returns the "iss" claim, or the empty string.
func (t Token) Issuer() string {
	return t.jwtToken.Issuer()
}

// Subject returns the "sub" claim, or the empty string.
func (t Token) Subject() string {
	return t.jwtToken.Subject()
}

// AuthorizedParty returns the "azp" claim, or the empty string.
func (t Token) AuthorizedParty() string {
	azp, err := t.GetClaimAsString(claimAuthorizedParty)
	if err != nil {
		return ""
	}
	return azp
}

// UserUUID returns the stable external user identifier. The custom "UUID"
// claim takes priority over its lowercase variant and the standard subject
// claim. Returns the empty string if none is present.
func (t Token) UserUUID() string {
	if id, err := t.GetClaimAsString(claimUserUUID); err == nil && id != "" {
		return id
	}
	if id, err := t.GetClaimAsString(claimUserUUIDLower); err == nil && id != "" {
		return id
	}
	return t.Subject()
}

// Email returns the caller's email address, falling back to the
// preferred-username claim. Returns the empty string if neither is present.
func (t Token) Email() string {
	if mail, err := t.GetClaimAsString(claimEmail); err == nil && mail != "" {
		return mail
	}
	if mail, err := t.GetClaimAsString(claimPreferredUsername); err == nil {
		return mail
	}
	return ""
}

// RealmRoles returns the realm-wide roles list, or nil if the realm_access
// claim is absent or malformed.
func (t Token) RealmRoles() []string {
	access, ok := t.jwtToken.Get(claimRealmAccess)
	if !ok {
		return nil
	}
	return rolesFromAccess(access)
}

// ResourceRoles returns the nested per-client roles list for the given client
// id, or nil if absent.
func (t Token) ResourceRoles(clientID string) []string {
	value, ok := t.jwtToken.Get(claimResourceAccess)
	if !ok {
		return nil
	}
	byClient, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	access, ok := byClient[clientID]
	if !ok {
		return nil
	}
	return rolesFromAccess(access)
}

// FlatRoles returns a direct top-level "roles" claim, or nil if absent.
func (t Token) FlatRoles() []string {
	value, ok := t.jwtToken.Get(claimRoles)
	if !ok {
		return nil
	}
	return toStringSlice(value)
}

// GetClaimAsString returns a custom claim asserted as string. The claim name
// is case sensitive.
func (t Token) GetClaimAsString(claim string) (string, error) {
	value, exists := t.jwtToken.Get(claim)
	if !exists {
		return "", fmt.Errorf("claim %s not available in the token", claim)
	}
	stringValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("unable to assert claim %s type as string. Actual type: %T", claim, value)
	}
	return stringValue, nil
}

// rolesFromAccess digs the "roles" list out of a realm_access/resource_access
// style object.
func rolesFromAccess(access interface{}) []string {
	obj, ok := access.(map[string]interface{})
	if !ok {
		return nil
	}
	roles, ok := obj[claimRoles]
	if !ok {
		return nil
	}
	return toStringSlice(roles)
}

func toStringSlice(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
