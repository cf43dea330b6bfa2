package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	apperrors "github.com/target/estate-portal/internal/errors"
	"github.com/target/estate-portal/internal/guard"
	"github.com/target/estate-portal/internal/service"
	"github.com/target/estate-portal/internal/shell"
)

// SessionAPI is the part of the session service the HTTP surface drives.
type SessionAPI interface {
	SessionSource
	Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error)
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Logout(ctx context.Context) error
	UpdateUser(ctx context.Context, partial domainauth.Identity) (domainauth.Identity, error)
	RefreshUser(ctx context.Context) error
}

// NoticeSource hands out the one-shot message left by the last shell reset.
type NoticeSource interface {
	TakeNotice() (shell.Notice, bool)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc      SessionAPI
	Notices  NoticeSource
	Ready    Readiness
	Routes   guard.Routes
	Renderer *TemplateRenderer
	Logger   *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// authResponse is the JSON shape of Login and Register results.
type authResponse struct {
	Success  bool                `json:"success"`
	UserType string              `json:"userType,omitempty"`
	Role     string              `json:"role,omitempty"`
	User     domainauth.Identity `json:"user,omitempty"`
	Redirect string              `json:"redirect,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// LoginPage renders the sign-in form.
// GET /login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	returnTo := r.URL.Query().Get(guard.ReturnParam)
	snap := h.Svc.Snapshot()
	if snap.IsAuthenticated() {
		Navigate(w, r, h.afterSignIn(snap.Role, returnTo))
		return
	}

	data := h.page(r, snap)
	data.ReturnTo = returnTo
	if h.Notices != nil {
		if n, ok := h.Notices.TakeNotice(); ok {
			data.Notice = n.Message()
		}
	}
	h.render(w, r, http.StatusOK, "login", data)
}

// Login handles the sign-in form or a JSON body.
// POST /login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	returnTo := ""
	if IsJSONRequest(r) {
		var body struct {
			service.LoginInput
			RedirectURI string `json:"redirect_uri"`
		}
		if !DecodeJSON(w, r, &body) {
			return
		}
		in = body.LoginInput
		returnTo = body.RedirectURI
	} else {
		if err := r.ParseForm(); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Message: err.Error()})
			return
		}
		in = service.LoginInput{
			Email:    strings.TrimSpace(r.PostForm.Get("email")),
			Password: r.PostForm.Get("password"),
			Category: formCategory(r),
		}
		returnTo = r.PostForm.Get(guard.ReturnParam)
	}

	res, err := h.Svc.Login(r.Context(), in)
	form := FormValues{Email: in.Email, UserType: in.Category.String()}
	h.finishAuth(w, r, authOutcome{page: "login", result: res, err: err, form: form, returnTo: returnTo})
}

// RegisterPage renders the registration form.
// GET /register.
func (h *AuthHandlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	snap := h.Svc.Snapshot()
	if snap.IsAuthenticated() {
		Navigate(w, r, h.afterSignIn(snap.Role, ""))
		return
	}
	h.render(w, r, http.StatusOK, "register", h.page(r, snap))
}

// Register handles the registration form or a JSON body.
// POST /register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	var company string
	if IsJSONRequest(r) {
		var body struct {
			service.RegisterInput
			Company string `json:"company"`
		}
		if !DecodeJSON(w, r, &body) {
			return
		}
		in = body.RegisterInput
		company = body.Company
	} else {
		if err := r.ParseForm(); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Message: err.Error()})
			return
		}
		in = service.RegisterInput{
			Name:     strings.TrimSpace(r.PostForm.Get("name")),
			Email:    strings.TrimSpace(r.PostForm.Get("email")),
			Password: r.PostForm.Get("password"),
			Phone:    strings.TrimSpace(r.PostForm.Get("phone")),
			Category: formCategory(r),
		}
		company = strings.TrimSpace(r.PostForm.Get("company"))
	}
	if company != "" {
		in.Extra = map[string]any{"company": company}
	}

	res, err := h.Svc.Register(r.Context(), in)
	form := FormValues{Name: in.Name, Email: in.Email, Phone: in.Phone, UserType: in.Category.String(), Company: company}
	h.finishAuth(w, r, authOutcome{page: "register", result: res, err: err, form: form})
}

type authOutcome struct {
	page     string
	result   *service.AuthResult
	err      error
	form     FormValues
	returnTo string
}

func (h *AuthHandlers) finishAuth(w http.ResponseWriter, r *http.Request, out authOutcome) {
	if out.err != nil || out.result == nil || !out.result.Success {
		msg := ""
		if out.result != nil {
			msg = out.result.Error
		}
		if WantsJSON(r) || IsJSONRequest(r) {
			WriteJSON(w, StatusFor(out.err), authResponse{Success: false, Error: msg})
			return
		}
		data := h.page(r, h.Svc.Snapshot())
		data.Error = msg
		data.Form = out.form
		data.ReturnTo = out.returnTo
		h.render(w, r, http.StatusUnprocessableEntity, out.page, data)
		return
	}

	snap := out.result.Session
	target := h.afterSignIn(snap.Role, out.returnTo)
	h.logger().DebugContext(r.Context(), "signed in", "category", out.result.Category.String(), "target", target)
	if WantsJSON(r) || IsJSONRequest(r) {
		WriteJSON(w, http.StatusOK, authResponse{
			Success:  true,
			UserType: out.result.Category.String(),
			Role:     string(snap.Role),
			User:     snap.Identity,
			Redirect: target,
		})
		return
	}
	Navigate(w, r, target)
}

// afterSignIn is where a freshly signed-in principal goes: the page they
// were sent away from, else their landing page.
func (h *AuthHandlers) afterSignIn(role domainauth.Role, returnTo string) string {
	if returnTo != "" {
		if p := safeRedirectPath(returnTo); p != "/" {
			return p
		}
	}
	if landing := h.Routes.LandingFor(role); landing != "" {
		return landing
	}
	return "/"
}

// Logout ends the session and sends the client to the application root.
// POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Logout(r.Context()); err != nil {
		h.logger().WarnContext(r.Context(), "logout left a saved session behind", "error", err)
	}
	target := h.Routes.Root
	if target == "" {
		target = "/"
	}
	if WantsJSON(r) {
		WriteJSON(w, http.StatusOK, authResponse{Success: true, Redirect: target})
		return
	}
	Navigate(w, r, target)
}

// statusResponse is the JSON view of the current session.
type statusResponse struct {
	Authenticated bool                `json:"authenticated"`
	Ready         bool                `json:"ready"`
	Loading       bool                `json:"loading"`
	UserType      string              `json:"userType,omitempty"`
	Role          string              `json:"role,omitempty"`
	User          domainauth.Identity `json:"user,omitempty"`
	Error         string              `json:"error,omitempty"`
}

// Status reports the current session. The bearer token is never exposed.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, _ *http.Request) {
	snap := h.Svc.Snapshot()
	resp := statusResponse{
		Authenticated: snap.IsAuthenticated(),
		Ready:         h.Ready == nil || h.Ready.Ready(),
		Loading:       snap.IsLoading,
		Error:         snap.LastError,
	}
	if snap.IsAuthenticated() {
		resp.UserType = snap.Category.String()
		resp.Role = string(snap.Role)
		resp.User = snap.Identity
	}
	WriteJSON(w, http.StatusOK, resp)
}

// AccountPage renders the profile form.
// GET /account.
func (h *AuthHandlers) AccountPage(w http.ResponseWriter, r *http.Request) {
	snap := h.Svc.Snapshot()
	data := h.page(r, snap)
	data.Form = FormValues{Phone: snap.Identity.Attr("phone")}
	h.render(w, r, http.StatusOK, "account", data)
}

// UpdateAccount merges the submitted profile fields into the identity.
// POST /account.
func (h *AuthHandlers) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	partial := domainauth.Identity{}
	if IsJSONRequest(r) {
		if !DecodeJSON(w, r, &partial) {
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Message: err.Error()})
			return
		}
		for _, key := range []string{"name", "phone"} {
			if v := strings.TrimSpace(r.PostForm.Get(key)); v != "" {
				partial[key] = v
			}
		}
	}

	merged, err := h.Svc.UpdateUser(r.Context(), partial)
	if WantsJSON(r) || IsJSONRequest(r) {
		if err != nil {
			WriteAppError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"success": true, "user": merged})
		return
	}
	if err != nil {
		data := h.page(r, h.Svc.Snapshot())
		data.Error = apperrors.UserMessage(err)
		data.Form = FormValues{Phone: partial.Attr("phone")}
		h.render(w, r, http.StatusUnprocessableEntity, "account", data)
		return
	}
	Navigate(w, r, "/account")
}

// RefreshAccount reloads the identity from the authority. A failure keeps
// the session and the page as they were.
// POST /account/refresh.
func (h *AuthHandlers) RefreshAccount(w http.ResponseWriter, r *http.Request) {
	err := h.Svc.RefreshUser(r.Context())
	if err != nil {
		h.logger().InfoContext(r.Context(), "profile refresh failed", "error", err)
	}
	if WantsJSON(r) {
		if err != nil {
			WriteAppError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"success": true, "user": h.Svc.Snapshot().Identity})
		return
	}
	Navigate(w, r, "/account")
}

func (h *AuthHandlers) page(r *http.Request, snap domainauth.Session) PageData {
	return PageData{Session: snap, Routes: h.Routes, Path: r.URL.Path, CSRFToken: GetCSRFToken(r)}
}

func (h *AuthHandlers) render(w http.ResponseWriter, r *http.Request, status int, page string, data PageData) {
	if h.Renderer == nil {
		http.Error(w, "templates unavailable", http.StatusInternalServerError)
		return
	}
	if err := h.Renderer.RenderStatus(w, r, status, page, data); err != nil {
		h.logger().ErrorContext(r.Context(), "render failed", "page", page, "error", err)
	}
}

func formCategory(r *http.Request) domainauth.Category {
	c, err := domainauth.ParseCategory(r.PostForm.Get("userType"))
	if err != nil {
		return domainauth.CategoryNone
	}
	return c
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	// Scheme-relative and backslash forms are read as another host by browsers.
	if strings.HasPrefix(candidate, "//") || strings.HasPrefix(candidate, "/\\") {
		return "/"
	}
	return candidate
}
