// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAuthorized(t *testing.T) {
	tests := []struct {
		name          string
		roles         []string
		email         string
		allowedEmails string
		want          bool
	}{
		{
			name:  "staff role authorizes without email",
			roles: []string{"staff"},
			want:  true,
		},
		{
			name:          "staff role ignores allow-list",
			roles:         []string{"staff"},
			email:         "nobody@example.com",
			allowedEmails: "",
			want:          true,
		},
		{
			name:  "no roles and no email denies",
			roles: []string{},
			want:  false,
		},
		{
			name:          "allow-list match is case and whitespace insensitive",
			roles:         []string{},
			email:         "user@example.com",
			allowedEmails: " User@Example.COM ",
			want:          true,
		},
		{
			name:          "allow-list with multiple entries",
			roles:         nil,
			email:         "second@example.com",
			allowedEmails: "first@example.com, second@example.com",
			want:          true,
		},
		{
			name:          "empty allow-list denies everyone without staff",
			roles:         []string{},
			email:         "anyone@example.com",
			allowedEmails: "",
			want:          false,
		},
		{
			name:          "unrelated role does not authorize",
			roles:         []string{"admin"},
			email:         "anyone@example.com",
			allowedEmails: "other@example.com",
			want:          false,
		},
		{
			name:          "email trimmed before matching",
			roles:         nil,
			email:         "  user@example.com  ",
			allowedEmails: "user@example.com",
			want:          true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAuthorized(tt.roles, tt.email, tt.allowedEmails))
		})
	}
}
