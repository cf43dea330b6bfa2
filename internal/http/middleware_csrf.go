package httpx

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-Csrf-Token"
	csrfFormField  = "csrf_token"
	csrfTokenBytes = 32
	csrfCookieTTL  = 12 * time.Hour
)

type csrfKey struct{}

// CSRFConfig configures the double-submit cookie check.
type CSRFConfig struct {
	// CookieDomain scopes the cookie; empty leaves it host-only.
	CookieDomain string
}

// CSRFProtection issues a per-browser token cookie on every request and
// requires unsafe methods to echo it back, either in the X-Csrf-Token header
// (JSON and htmx callers) or in the csrf_token form field (HTML forms).
// Requests whose Origin names another host are refused before the token is
// compared.
func CSRFProtection(cfg CSRFConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := ensureCSRFCookie(w, r, cfg)
			if err != nil {
				http.Error(w, "failed to issue CSRF token", http.StatusInternalServerError)
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), csrfKey{}, token))

			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if crossOrigin(r) || !csrfTokenMatches(r, token) {
				rejectCSRF(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetCSRFToken returns the token issued for this request, or "" outside CSRFProtection.
func GetCSRFToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	token, _ := r.Context().Value(csrfKey{}).(string)
	return token
}

// ensureCSRFCookie reuses the browser's token when it has one and mints a new
// cookie otherwise.
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, cfg CSRFConfig) (string, error) {
	if c, err := r.Cookie(csrfCookieName); err == nil && validTokenShape(c.Value) {
		return c.Value, nil
	}

	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   int(csrfCookieTTL.Seconds()),
		Secure:   isHTTPS(r),
		HttpOnly: false, // scripts copy it into X-Csrf-Token
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

func validTokenShape(v string) bool {
	raw, err := base64.URLEncoding.DecodeString(v)
	return err == nil && len(raw) == csrfTokenBytes
}

func csrfTokenMatches(r *http.Request, want string) bool {
	got := r.Header.Get(csrfHeaderName)
	if got == "" && isFormBody(r) {
		got = r.FormValue(csrfFormField)
	}
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func isFormBody(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data"
}

// crossOrigin reports whether the browser announced a different origin.
// Requests without Origin (curl, older browsers) fall through to the token check.
func crossOrigin(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Site") == "cross-site" {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return true
	}
	return !strings.EqualFold(u.Host, r.Host)
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func rejectCSRF(w http.ResponseWriter, r *http.Request) {
	if WantsJSON(r) {
		WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "csrf_failed", Message: "CSRF token validation failed"})
		return
	}
	http.Error(w, "CSRF token validation failed", http.StatusForbidden)
}
