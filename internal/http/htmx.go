package httpx

import (
	"net/http"
	"strings"
)

// IsHTMX reports whether the request was initiated by htmx (Hx-Request: true).
func IsHTMX(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Hx-Request"), "true")
}

// IsBoosted reports whether the request was initiated by hx-boost (Hx-Boosted: true).
func IsBoosted(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Hx-Boosted"), "true")
}

// WantsPartial returns true when the handler should return only the main fragment.
// Boosted navigations swap the whole body, so they get the full layout.
func WantsPartial(r *http.Request) bool {
	return IsHTMX(r) && !IsBoosted(r)
}

// SetHXRedirect instructs htmx to redirect the browser to the given URL.
func SetHXRedirect(w http.ResponseWriter, url string) { w.Header().Set("Hx-Redirect", url) }

// Navigate sends the client to target: an Hx-Redirect for htmx, a 303 otherwise.
// A 303 turns the follow-up into a GET, so form posts never resubmit.
func Navigate(w http.ResponseWriter, r *http.Request, target string) {
	if IsHTMX(r) {
		SetHXRedirect(w, target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
