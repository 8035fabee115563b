// Package transport builds the HTTP stack used for every REST call: request
// logging, metrics and bearer-token injection around a plain http.Transport.
package transport

import (
	"net/http"
	"strings"

	"github.com/NicolasHaas/cliniclink/pkg/session"
)

// PublicPaths never carry credentials, even when a token is stored.
// A request is public when its path contains one of these fragments.
var PublicPaths = []string{
	"auth/login",
	"auth/register",
	"auth/forgot-password",
	"auth/reset-password",
}

// IsPublic reports whether path is on the unauthenticated allow-list.
func IsPublic(path string) bool {
	for _, p := range PublicPaths {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

// AuthTransport attaches "Authorization: Bearer <token>" to non-public
// requests. The token is read from Sessions on every request, so a login
// takes effect on the next call without rebuilding the client.
//
// Redirects are followed with the token only while they stay on the host
// of the first request in the chain.
//
// It does not retry and never looks at responses.
type AuthTransport struct {
	Base     http.RoundTripper
	Sessions session.Reader
}

// NewAuthTransport wraps base (http.DefaultTransport when nil).
func NewAuthTransport(base http.RoundTripper, sessions session.Reader) *AuthTransport {
	return &AuthTransport{Base: base, Sessions: sessions}
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var token string
	if !IsPublic(req.URL.EscapedPath()) && req.URL.Host == originHost(req) {
		token = t.Sessions.Get().Token
	}

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(req.Context())
	out.Header.Del("Authorization")
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	return t.base().RoundTrip(out)
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// originHost is the host of the request that started req's redirect chain.
func originHost(req *http.Request) string {
	for req.Response != nil && req.Response.Request != nil {
		req = req.Response.Request
	}
	return req.URL.Host
}
