package service

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerTransport_AttachesTokenAndReports401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Path == "/expired" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var reported []string
	client := &http.Client{Transport: &BearerTransport{
		Token:          func() string { return "T1" },
		OnUnauthorized: func(_ *http.Request, token string) { reported = append(reported, token) },
	}}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/ok", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, req.Header.Get("Authorization"), "caller's request must not be mutated")

	resp, err = client.Get(srv.URL + "/expired")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, []string{"T1"}, reported)
}

func TestBearerTransport_SignedOutSendsNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	called := false
	client := &http.Client{Transport: &BearerTransport{
		Token:          func() string { return "" },
		OnUnauthorized: func(*http.Request, string) { called = true },
	}}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.False(t, called, "401 on an anonymous request is not a forced logout")
}

func TestBearerTransport_ExplicitHeaderWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer other", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	called := false
	client := &http.Client{Transport: &BearerTransport{
		Token:          func() string { return "T1" },
		OnUnauthorized: func(*http.Request, string) { called = true },
	}}

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer other")
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.False(t, called)
}
