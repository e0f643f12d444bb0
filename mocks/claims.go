// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/jwt"
)

// RoleList mirrors the identity provider's realm_access/resource_access
// role container.
type RoleList struct {
	Roles []string `json:"roles"`
}

// Claims represents all claims a mock token may hold.
type Claims struct {
	Audience          []string            `json:"aud,omitempty"`
	ExpiresAt         int64               `json:"exp,omitempty"`
	ID                string              `json:"jti,omitempty"`
	IssuedAt          int64               `json:"iat,omitempty"`
	Issuer            string              `json:"iss,omitempty"`
	NotBefore         int64               `json:"nbf,omitempty"`
	Subject           string              `json:"sub,omitempty"`
	AuthorizedParty   string              `json:"azp,omitempty"`
	Email             string              `json:"email,omitempty"`
	PreferredUsername string              `json:"preferred_username,omitempty"`
	UserUUID          string              `json:"UUID,omitempty"`
	RealmAccess       *RoleList           `json:"realm_access,omitempty"`
	ResourceAccess    map[string]RoleList `json:"resource_access,omitempty"`
	Roles             []string            `json:"roles,omitempty"`
}

func (c Claims) toJwtToken() (jwt.Token, error) {
	var mapClaims map[string]interface{}

	dataBytes, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("unable to convert Claims to map (marshal): %v", err)
	}
	if err := json.Unmarshal(dataBytes, &mapClaims); err != nil {
		return nil, fmt.Errorf("unable to convert Claims to map (unmarshal): %v", err)
	}

	token := jwt.New()
	for k, v := range mapClaims {
		if err := token.Set(k, v); err != nil {
			return nil, fmt.Errorf("unable to set claim %s: %v", k, err)
		}
	}
	return token, nil
}

// ClaimsBuilder can construct token claims for test cases. Use
// NewClaimsBuilder with a base (e.g. MockIdentityServer.DefaultClaims).
type ClaimsBuilder struct {
	claims Claims
}

// NewClaimsBuilder instantiates a new ClaimsBuilder.
func NewClaimsBuilder(base Claims) *ClaimsBuilder {
	return &ClaimsBuilder{base}
}

// Build returns the finished Claims.
func (b *ClaimsBuilder) Build() Claims {
	return b.claims
}

// Audience sets the aud field.
func (b *ClaimsBuilder) Audience(aud ...string) *ClaimsBuilder {
	b.claims.Audience = aud
	return b
}

// AuthorizedParty sets the azp field.
func (b *ClaimsBuilder) AuthorizedParty(azp string) *ClaimsBuilder {
	b.claims.AuthorizedParty = azp
	return b
}

// ExpiresAt sets the exp field.
func (b *ClaimsBuilder) ExpiresAt(expiresAt time.Time) *ClaimsBuilder {
	b.claims.ExpiresAt = expiresAt.Unix()
	return b
}

// WithoutExpiresAt removes the exp field.
func (b *ClaimsBuilder) WithoutExpiresAt() *ClaimsBuilder {
	b.claims.ExpiresAt = 0
	return b
}

// NotBefore sets the nbf field.
func (b *ClaimsBuilder) NotBefore(notBefore time.Time) *ClaimsBuilder {
	b.claims.NotBefore = notBefore.Unix()
	return b
}

// Issuer sets the iss field.
func (b *ClaimsBuilder) Issuer(issuer string) *ClaimsBuilder {
	b.claims.Issuer = issuer
	return b
}

// Subject sets the sub field.
func (b *ClaimsBuilder) Subject(subject string) *ClaimsBuilder {
	b.claims.Subject = subject
	return b
}

// UserUUID sets the custom UUID claim.
func (b *ClaimsBuilder) UserUUID(id string) *ClaimsBuilder {
	b.claims.UserUUID = id
	return b
}

// Email sets the email claim.
func (b *ClaimsBuilder) Email(email string) *ClaimsBuilder {
	b.claims.Email = email
	return b
}

// PreferredUsername sets the preferred_username claim.
func (b *ClaimsBuilder) PreferredUsername(name string) *ClaimsBuilder {
	b.claims.PreferredUsername = name
	return b
}

// RealmRoles sets the realm-wide roles list. Passing no roles removes the
// realm_access claim entirely.
func (b *ClaimsBuilder) RealmRoles(roles ...string) *ClaimsBuilder {
	if len(roles) == 0 {
		b.claims.RealmAccess = nil
		return b
	}
	b.claims.RealmAccess = &RoleList{Roles: roles}
	return b
}

// ResourceRoles sets the nested per-client roles list for clientID.
func (b *ClaimsBuilder) ResourceRoles(clientID string, roles ...string) *ClaimsBuilder {
	if b.claims.ResourceAccess == nil {
		b.claims.ResourceAccess = make(map[string]RoleList)
	}
	b.claims.ResourceAccess[clientID] = RoleList{Roles: roles}
	return b
}

// FlatRoles sets a direct top-level roles claim.
func (b *ClaimsBuilder) FlatRoles(roles ...string) *ClaimsBuilder {
	b.claims.Roles = roles
	return b
}
