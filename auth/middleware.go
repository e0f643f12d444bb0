// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/campusrallye/auth-bridge-go/env"
)

// The ContextKey type is used as a key for library related values in the go
// context. See also ClaimsCtxKey.
type ContextKey int

// ClaimsCtxKey is the key that holds the verified Claims in the request
// context after the gate allowed the request.
const ClaimsCtxKey ContextKey = 0

// forwardedTokenHeader carries the bearer token injected by the upstream
// identity gateway. The gateway is trusted implicitly: nothing here proves
// the header was set by the proxy, so the deployment must guarantee (via
// network topology) that clients cannot reach this service directly.
const forwardedTokenHeader = "x-forwarded-access-token"

const defaultDeniedPath = "/access-denied"

// returnToParam carries the original path and query through the login
// redirect.
const returnToParam = "return_to"

// Options configures the request gate.
type Options struct {
	// LoginURL overrides the login endpoint from env.Config.
	LoginURL string
	// DeniedPath is the internal access-denied page. Default: /access-denied.
	// Always bypasses the gate to avoid self-redirect loops.
	DeniedPath string
	// SkipPatterns lists path.Match patterns that bypass the gate entirely.
	// Default: root, favicon and /static/*.
	SkipPatterns []string
	// Collector receives gate decision counts. Optional.
	Collector *Collector
}

// Middleware is the request gate: it runs once per inbound request at the
// edge and either lets the request through with verified Claims in its
// context, or redirects to login respectively the access-denied page.
// Instantiate once per process with NewMiddleware.
type Middleware struct {
	cfg      *env.Config
	verifier *Verifier // nil when verifier configuration is unavailable
	options  Options
}

// ClaimsFromCtx retrieves the claims of a request which have been injected
// before via the gate middleware.
func ClaimsFromCtx(r *http.Request) Claims {
	return r.Context().Value(ClaimsCtxKey).(Claims)
}

// NewMiddleware instantiates a new Middleware with defaults for not provided
// Options. A missing verifier configuration is not an error here: the gate
// then fails closed by redirecting everything to the access-denied page.
func NewMiddleware(cfg *env.Config, client *http.Client, options Options) *Middleware {
	if cfg == nil {
		log.Fatal("cfg must not be nil, see package env")
	}
	if options.DeniedPath == "" {
		options.DeniedPath = defaultDeniedPath
	}
	if options.LoginURL == "" {
		options.LoginURL = cfg.LoginURL
	}
	if options.SkipPatterns == nil {
		options.SkipPatterns = []string{"/", "/favicon.ico", "/static/*"}
	}

	m := &Middleware{cfg: cfg, options: options}
	verifier, err := NewVerifier(cfg, client)
	if err != nil {
		log.Printf("request gate starts without a verifier, all requests will be denied: %v", err)
	} else {
		m.verifier = verifier
	}
	return m
}

// Authenticate verifies the request's token and applies the authorization
// policy. It does not write a response; GateHandler builds on it.
func (m *Middleware) Authenticate(r *http.Request) (Claims, error) {
	if m.verifier == nil {
		return Claims{}, NewErrorf(ErrCodeConfiguration, "verifier unavailable")
	}
	rawToken, err := extractRawToken(r)
	if err != nil {
		return Claims{}, err
	}
	claims, err := m.verifier.VerifyClaims(r.Context(), rawToken)
	if err != nil {
		return Claims{}, err
	}
	if !IsAuthorized(claims.Roles, claims.Email, m.cfg.AllowedEmails) {
		return Claims{}, NewError(ErrCodeAuthorization, nil)
	}
	return claims, nil
}

// GateHandler wraps next with the gate decision. Three outcomes:
// unauthenticated requests are redirected to the login endpoint with the
// original path and query preserved, authenticated-but-unauthorized requests
// are redirected to the access-denied page, authorized requests proceed
// unmodified apart from the Claims injected into their context.
func (m *Middleware) GateHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skip(r.URL.Path) {
			m.options.Collector.record(OutcomeSkipped)
			next.ServeHTTP(w, r)
			return
		}

		// Without a verifier no login flow can ever succeed; the denied page
		// avoids a redirect loop against the login endpoint.
		if m.verifier == nil {
			m.options.Collector.record(OutcomeDenied)
			http.Redirect(w, r, m.options.DeniedPath, http.StatusFound)
			return
		}

		claims, err := m.Authenticate(r)
		switch {
		case err == nil:
			m.options.Collector.record(OutcomeAllowed)
			ctx := context.WithValue(r.Context(), ClaimsCtxKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		case HasCode(err, ErrCodeAuthorization):
			m.options.Collector.record(OutcomeDenied)
			http.Redirect(w, r, m.options.DeniedPath, http.StatusFound)
		default:
			// missing or unverifiable token: anonymous
			m.options.Collector.record(OutcomeLoginRedirect)
			http.Redirect(w, r, m.loginRedirect(r.URL), http.StatusFound)
		}
	})
}

func (m *Middleware) skip(requestPath string) bool {
	if requestPath == m.options.DeniedPath {
		return true
	}
	for _, pattern := range m.options.SkipPatterns {
		if matched, err := path.Match(pattern, requestPath); err == nil && matched {
			return true
		}
	}
	return false
}

func (m *Middleware) loginRedirect(original *url.URL) string {
	target := sanitizeReturnTo(original)
	separator := "?"
	if strings.Contains(m.options.LoginURL, "?") {
		separator = "&"
	}
	return m.options.LoginURL + separator + returnToParam + "=" + url.QueryEscape(target)
}

// sanitizeReturnTo rebuilds the original path and query such that the result
// begins with exactly one leading slash. Protocol-relative targets like
// //evil.example would otherwise turn the login redirect into an open
// redirect.
func sanitizeReturnTo(original *url.URL) string {
	target := "/" + strings.TrimLeft(original.Path, "/")
	if original.RawQuery != "" {
		target += "?" + original.RawQuery
	}
	return target
}

func extractRawToken(r *http.Request) (string, error) {
	if forwarded := r.Header.Get(forwardedTokenHeader); forwarded != "" {
		return strings.TrimSpace(forwarded), nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		splitAuthHeader := strings.Fields(strings.TrimSpace(authHeader))
		if len(splitAuthHeader) == 2 && strings.ToLower(splitAuthHeader[0]) == "bearer" {
			return splitAuthHeader[1], nil
		}
	}

	return "", NewErrorf(ErrCodeVerification, "extracting token from request header failed")
}
