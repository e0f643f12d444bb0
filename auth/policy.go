// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package auth

import "strings"

// RoleStaff grants access regardless of the email allow-list.
const RoleStaff = "staff"

// IsAuthorized decides whether the caller may use the system at all.
// Pure function of its inputs, no I/O.
//
// Callers holding the staff role are always authorized. Everyone else must
// present an email contained in the comma-separated allow-list; matching is
// case-insensitive after trimming. An empty allow-list denies everyone
// without the staff role.
func IsAuthorized(roles []string, email, allowedEmails string) bool {
	for _, role := range roles {
		if role == RoleStaff {
			return true
		}
	}

	if email == "" {
		return false
	}

	normalized := strings.ToLower(strings.TrimSpace(email))
	for _, allowed := range strings.Split(allowedEmails, ",") {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed != "" && allowed == normalized {
			return true
		}
	}
	return false
}
