// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package auth

// Claims is the canonical identity shape every component downstream of the
// verifier works with. It is recomputed from the token on every request and
// never persisted.
type Claims struct {
	// Subject is the stable external user identifier.
	Subject string
	// Email may be empty when the token carries neither an email nor a
	// preferred-username claim.
	Email string
	// Roles is the merged, de-duplicated role set.
	Roles []string
	// Audience is the audience value the token verified against. Retained
	// only so the caller can correlate log lines, not for decisions.
	Audience string
}

// ExtractClaims normalizes the accepted token shapes into one canonical
// Claims value. audience must be the value the token verified against; it
// selects the nested per-client role list.
//
// Role merge rule: the realm-wide list is taken when present, otherwise a
// direct top-level "roles" claim stands in for it; either way the per-client
// list for the verified audience is unioned in.
func ExtractClaims(t Token, audience string) Claims {
	base := t.RealmRoles()
	if base == nil {
		base = t.FlatRoles()
	}

	return Claims{
		Subject:  t.UserUUID(),
		Email:    t.Email(),
		Roles:    mergeRoles(base, t.ResourceRoles(audience)),
		Audience: audience,
	}
}

// HasRole reports whether the merged role set contains role.
func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func mergeRoles(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var merged []string
	for _, list := range lists {
		for _, role := range list {
			if _, dup := seen[role]; dup || role == "" {
				continue
			}
			seen[role] = struct{}{}
			merged = append(merged, role)
		}
	}
	return merged
}
