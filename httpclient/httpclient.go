// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0
package httpclient

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"
)

const UserAgent = "rallye-auth-bridge"

// DefaultTLSConfig creates the default tls.Config for outbound calls.
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
}

// DefaultHTTPClient returns the client used for JWKS fetches and data-layer
// calls. The timeout bounds every outbound call so that a hanging remote
// cannot hang the request being served.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: DefaultTLSConfig(),
			MaxIdleConns:    50,
		},
	}
}

// NewRequestWithUserAgent creates a request and sets the bridge's user agent.
// It would be nicer to set this in the default http.Client, but manipulating
// the request in RoundTrip is discouraged per official documentation.
func NewRequestWithUserAgent(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	r.Header.Set("User-Agent", UserAgent)
	return r, nil
}
