// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package oidcclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/jwk"
	"github.com/pquerna/cachecontrol"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/campusrallye/auth-bridge-go/httpclient"
)

const (
	// certsPath is the fixed JWKS endpoint below the issuer URL.
	certsPath = "/protocol/openid-connect/certs"
	// defaultJWKsExpiry applies when the server doesn't provide cache
	// control headers.
	defaultJWKsExpiry = 15 * time.Minute
	fetchTimeout      = 10 * time.Second
)

// RemoteKeySet holds the identity provider's published verification keys and
// keeps them fresh. Safe for concurrent use.
type RemoteKeySet struct {
	jwksURL    string
	httpClient *http.Client

	singleFlight singleflight.Group
	// forcedRefresh caps refetches triggered by tokens with an unknown key
	// id, so a flood of garbage tokens can't hammer the identity provider.
	forcedRefresh *rate.Limiter

	mutex      sync.RWMutex
	jwks       jwk.Set
	jwksExpiry time.Time
}

type updateKeysResult struct {
	keys   jwk.Set
	expiry time.Time
}

// NewRemoteKeySet instantiates a RemoteKeySet for the given issuer. No
// request is performed until keys are first needed.
func NewRemoteKeySet(client *http.Client, issuer string) (*RemoteKeySet, error) {
	if issuer == "" {
		return nil, fmt.Errorf("issuer must not be empty")
	}
	if client == nil {
		client = httpclient.DefaultHTTPClient()
	}
	return &RemoteKeySet{
		jwksURL:       strings.TrimSuffix(issuer, "/") + certsPath,
		httpClient:    client,
		forcedRefresh: rate.NewLimiter(rate.Every(10*time.Second), 2),
	}, nil
}

// URL returns the JWKS endpoint the key set fetches from.
func (ks *RemoteKeySet) URL() string {
	return ks.jwksURL
}

// GetJWKs returns the verification keys, either cached or updated ones.
func (ks *RemoteKeySet) GetJWKs(ctx context.Context) (jwk.Set, error) {
	ks.mutex.RLock()
	keys, expiry := ks.jwks, ks.jwksExpiry
	ks.mutex.RUnlock()
	if keys != nil && time.Now().Before(expiry) {
		return keys, nil
	}
	return ks.refresh(ctx)
}

// ForceRefresh discards the cached keys and refetches, e.g. after a token
// referenced an unknown key id following a key rotation. Rate limited; when
// the limit is exhausted the cached keys are returned unchanged.
func (ks *RemoteKeySet) ForceRefresh(ctx context.Context) (jwk.Set, error) {
	if !ks.forcedRefresh.Allow() {
		ks.mutex.RLock()
		defer ks.mutex.RUnlock()
		if ks.jwks == nil {
			return nil, fmt.Errorf("jwks refresh rate exceeded and no cached keys available")
		}
		return ks.jwks, nil
	}

	ks.mutex.Lock()
	ks.jwksExpiry = time.Time{}
	ks.mutex.Unlock()

	return ks.refresh(ctx)
}

func (ks *RemoteKeySet) refresh(ctx context.Context) (jwk.Set, error) {
	updatedKeys, err, _ := ks.singleFlight.Do("updateKeys", func() (interface{}, error) {
		return ks.updateKeys(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("error updating JWKs: %v", err)
	}
	keysResult := updatedKeys.(updateKeysResult)

	ks.mutex.Lock()
	ks.jwks = keysResult.keys
	ks.jwksExpiry = keysResult.expiry
	ks.mutex.Unlock()

	return keysResult.keys, nil
}

func (ks *RemoteKeySet) updateKeys(ctx context.Context) (r interface{}, err error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	result := updateKeysResult{}
	req, err := httpclient.NewRequestWithUserAgent(fetchCtx, http.MethodGet, ks.jwksURL, nil)
	if err != nil {
		return result, fmt.Errorf("can't create request to fetch jwk: %v", err)
	}

	resp, err := ks.httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("failed to fetch jwks from remote: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf("failed to read fetched jwks: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("failed to fetch jwks: %s %s", resp.Status, body)
	}

	keySet, err := jwk.Parse(body)
	if err != nil {
		return result, fmt.Errorf("failed to decode jwks: %v %s", err, body)
	}

	result.keys = keySet

	// If the server doesn't provide cache control headers, assume the keys
	// expire in 15min.
	result.expiry = time.Now().Add(defaultJWKsExpiry)

	_, e, err := cachecontrol.CachableResponse(req, resp, cachecontrol.Options{})
	if err == nil && e.After(result.expiry) {
		result.expiry = e
	}

	return result, nil
}
