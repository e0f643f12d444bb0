// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package profile ensures a local profile row exists for every verified
// subject before server operations touch user-owned data.
package profile

import (
	"context"
	"log"

	"github.com/campusrallye/auth-bridge-go/auth"
	"github.com/campusrallye/auth-bridge-go/datalayer"
	"github.com/campusrallye/auth-bridge-go/env"
)

// Store is the subset of data layer operations the bootstrapper needs.
// Implemented by *datalayer.Client.
type Store interface {
	SelectProfile(ctx context.Context, subject string) (*datalayer.Profile, error)
	InsertProfile(ctx context.Context, subject string) (*datalayer.Profile, error)
	InsertRegistration(ctx context.Context, subject, email string) error
}

// Bootstrapper loads, and on first authorized access creates, the profile
// row for a verified subject.
type Bootstrapper struct {
	store         Store
	allowedEmails string
}

// NewBootstrapper instantiates a Bootstrapper.
func NewBootstrapper(store Store, cfg *env.Config) *Bootstrapper {
	if store == nil {
		log.Fatal("store must not be nil, see package datalayer")
	}
	allowedEmails := ""
	if cfg != nil {
		allowedEmails = cfg.AllowedEmails
	}
	return &Bootstrapper{store: store, allowedEmails: allowedEmails}
}

// EnsureProfile returns the profile row for the verified subject, creating
// it when autoCreate is set and no row exists yet.
//
// The authorization policy is applied again here even though the request
// gate already checked it: server-side operations can be invoked outside the
// page-routing layer, and nothing past this point re-checks.
func (b *Bootstrapper) EnsureProfile(ctx context.Context, subject, email string, roles []string, autoCreate bool) (*datalayer.Profile, error) {
	if !auth.IsAuthorized(roles, email, b.allowedEmails) {
		return nil, auth.NewError(auth.ErrCodeAuthorization, nil)
	}

	existing, err := b.store.SelectProfile(ctx, subject)
	if err != nil {
		return nil, &auth.Error{Code: auth.ErrCodeDataLayer, Message: "profile could not be loaded", Err: err}
	}
	if existing != nil {
		return existing, nil
	}

	if !autoCreate {
		return nil, auth.NewErrorf(auth.ErrCodeAuthorization, "profile does not exist - access denied")
	}

	created, err := b.store.InsertProfile(ctx, subject)
	if err != nil {
		return nil, &auth.Error{Code: auth.ErrCodeDataLayer, Message: "profile could not be created automatically", Err: err}
	}
	if created == nil {
		return nil, auth.NewErrorf(auth.ErrCodeDataLayer, "profile could not be created automatically")
	}

	// bookkeeping only, the profile row is already in place
	if err := b.store.InsertRegistration(ctx, subject, email); err != nil {
		log.Printf("registration record for subject %s could not be written: %v", subject, err)
	}

	return created, nil
}

// RequireAdmin loads the profile for the verified subject without
// auto-provisioning and additionally requires its admin flag to be set.
func (b *Bootstrapper) RequireAdmin(ctx context.Context, subject, email string, roles []string) (*datalayer.Profile, error) {
	prof, err := b.EnsureProfile(ctx, subject, email, roles, false)
	if err != nil {
		return nil, err
	}
	if !prof.IsAdmin() {
		return nil, auth.NewErrorf(auth.ErrCodeAuthorization, "admin privilege required")
	}
	return prof, nil
}
