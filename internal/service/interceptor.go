package service

import (
	"net/http"

	"golang.org/x/oauth2"
)

// TokenFunc returns the bearer credential to attach, or "" when signed out.
type TokenFunc func() string

// UnauthorizedFunc is told which token drew a 401 so the owner can decide
// whether that token is still the current one.
type UnauthorizedFunc func(req *http.Request, token string)

// BearerTransport attaches the session's bearer credential to outgoing
// requests and reports 401 responses to the session owner.
type BearerTransport struct {
	Base           http.RoundTripper
	Token          TokenFunc
	OnUnauthorized UnauthorizedFunc
}

var _ http.RoundTripper = (*BearerTransport)(nil)

// RoundTrip implements http.RoundTripper. Requests that already carry an
// Authorization header are sent untouched and never reported.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	var token string
	if t.Token != nil {
		token = t.Token()
	}
	if token == "" || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}

	authed := req.Clone(req.Context())
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(authed)

	resp, err := base.RoundTrip(authed)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && t.OnUnauthorized != nil {
		t.OnUnauthorized(authed, token)
	}
	return resp, nil
}
