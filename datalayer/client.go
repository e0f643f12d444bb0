// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package datalayer talks to the hosted relational platform's REST interface.
// Every call authenticates with a freshly minted (or cached) internal
// credential plus the platform's public API key.
package datalayer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/campusrallye/auth-bridge-go/auth"
	"github.com/campusrallye/auth-bridge-go/credential"
	"github.com/campusrallye/auth-bridge-go/env"
	"github.com/campusrallye/auth-bridge-go/httpclient"
)

const (
	restPath           = "/rest/v1/"
	profilesTable      = "profiles"
	registrationsTable = "registrations"
)

// Profile is the local record representing an authorized user. Owned by the
// data layer; this subsystem only ever reads it or creates it, never updates
// or deletes it.
type Profile struct {
	UserID    string     `json:"user_id"`
	Admin     *bool      `json:"admin,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// IsAdmin reports whether the admin flag is set and true.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Admin != nil && *p.Admin
}

// Registration is the best-effort bookkeeping row written when a profile is
// auto-provisioned.
type Registration struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Client performs table-scoped reads and writes against the data layer.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	minter     *credential.Minter
}

// NewClient instantiates a data layer client. The minter provides the
// per-subject credential for the Authorization header.
func NewClient(cfg *env.Config, minter *credential.Minter, client *http.Client) (*Client, error) {
	if cfg == nil || cfg.DataLayerURL == "" {
		return nil, auth.NewErrorf(auth.ErrCodeConfiguration, "data layer URL not configured")
	}
	if minter == nil {
		return nil, auth.NewErrorf(auth.ErrCodeConfiguration, "credential minter not configured")
	}
	if client == nil {
		client = httpclient.DefaultHTTPClient()
	}
	return &Client{
		baseURL:    cfg.DataLayerURL,
		anonKey:    cfg.DataLayerKey,
		httpClient: client,
		minter:     minter,
	}, nil
}

// SelectProfile looks up the profile row for the given subject. Returns
// (nil, nil) when no row exists; transport and server failures surface as
// data layer errors, never as "not found".
func (c *Client) SelectProfile(ctx context.Context, subject string) (*Profile, error) {
	query := url.Values{}
	query.Set("user_id", "eq."+subject)
	query.Set("select", "*")

	body, err := c.perform(ctx, subject, http.MethodGet, profilesTable, query, nil)
	if err != nil {
		return nil, err
	}

	var rows []Profile
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, auth.NewError(auth.ErrCodeDataLayer, fmt.Errorf("unexpected profiles payload: %w", err))
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// InsertProfile creates the profile row for the given subject with all other
// fields defaulted. When a concurrent caller won the race and the data layer
// reports a primary key conflict, the existing row is read back and returned
// instead of surfacing the conflict.
func (c *Client) InsertProfile(ctx context.Context, subject string) (*Profile, error) {
	payload, err := json.Marshal(Profile{UserID: subject})
	if err != nil {
		return nil, auth.NewError(auth.ErrCodeDataLayer, err)
	}

	body, err := c.perform(ctx, subject, http.MethodPost, profilesTable, nil, payload)
	if err != nil {
		if auth.HasCode(err, errCodeConflict) {
			return c.SelectProfile(ctx, subject)
		}
		return nil, err
	}

	var rows []Profile
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		// the row was created even if the representation is unusable
		return c.SelectProfile(ctx, subject)
	}
	return &rows[0], nil
}

// InsertRegistration records the auto-provisioning event for audit and local
// bookkeeping.
func (c *Client) InsertRegistration(ctx context.Context, subject, email string) error {
	payload, err := json.Marshal(Registration{
		ID:           uuid.New().String(),
		UserID:       subject,
		Email:        email,
		RegisteredAt: time.Now().UTC(),
	})
	if err != nil {
		return auth.NewError(auth.ErrCodeDataLayer, err)
	}
	_, err = c.perform(ctx, subject, http.MethodPost, registrationsTable, nil, payload)
	return err
}

// errCodeConflict is internal to the client: InsertProfile resolves it by
// re-reading, callers never observe it.
const errCodeConflict auth.ErrorCode = "data_layer_conflict"

func (c *Client) perform(ctx context.Context, subject, method, table string, query url.Values, payload []byte) ([]byte, error) {
	minted, err := c.minter.MintOrReuse(subject)
	if err != nil {
		return nil, err
	}

	target := c.baseURL + restPath + table
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := httpclient.NewRequestWithUserAgent(ctx, method, target, body)
	if err != nil {
		return nil, auth.NewError(auth.ErrCodeDataLayer, err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+minted)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, auth.NewError(auth.ErrCodeDataLayer, fmt.Errorf("request to '%v' failed: %w", target, err))
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, auth.NewError(auth.ErrCodeDataLayer, fmt.Errorf("reading response from '%v' failed: %w", target, err))
	}

	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil, auth.NewErrorf(errCodeConflict, "row already exists in %s", table)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, auth.NewError(auth.ErrCodeDataLayer,
			fmt.Errorf("request to '%v' failed with status code '%v' and payload: '%v'", target, resp.StatusCode, string(responseBody)))
	}
	return responseBody, nil
}
