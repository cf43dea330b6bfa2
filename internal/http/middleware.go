package httpx

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	"github.com/target/estate-portal/internal/guard"
	"github.com/target/estate-portal/internal/observability/metrics"
	"github.com/target/estate-portal/internal/observability/statsd"
)

const requestIDHeader = "X-Request-ID"

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", reqID),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SessionSource exposes the current session snapshot.
type SessionSource interface {
	Snapshot() domainauth.Session
}

// Readiness reports whether the startup session check has finished.
type Readiness interface {
	Ready() bool
}

// GuardDeps groups what the route guard middleware consults.
type GuardDeps struct {
	Guard    *guard.Guard
	Session  SessionSource
	Ready    Readiness
	Renderer *TemplateRenderer
	Metrics  statsd.Sink
	Logger   *slog.Logger
	// RetryAfter is advertised while the startup check is still running.
	RetryAfter time.Duration
}

// RequireRule returns a middleware that admits a request only when rule is
// satisfied by the current session.
//
// Browser requests are redirected: to sign-in with the requested path as
// redirect_uri, or to the principal's landing page when the role is not
// allowed. API requests get 401 or 403 instead. Until the startup check
// finishes nothing is admitted or redirected; the client is asked to retry.
func RequireRule(deps GuardDeps, rule guard.Rule) func(http.Handler) http.Handler {
	if deps.Guard == nil || deps.Session == nil {
		panic("RequireRule: Guard and Session are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.RetryAfter <= 0 {
		deps.RetryAfter = time.Second
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := deps.Session.Snapshot()
			ready := deps.Ready == nil || deps.Ready.Ready()
			decision := deps.Guard.Decide(guard.Input{Session: snap, Ready: ready}, rule, r.URL.RequestURI())
			metrics.EmitGuardDecision(deps.Metrics, decision.Name())

			switch d := decision.(type) {
			case guard.Authorized:
				next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), snap)))
			case guard.Loading:
				writeLoading(w, r, deps)
			case guard.UnauthenticatedRedirect:
				if WantsJSON(r) {
					WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Message: "Please sign in to continue"})
					return
				}
				Navigate(w, r, d.Location())
			case guard.ForbiddenRedirect:
				deps.Logger.DebugContext(r.Context(), "role not allowed on route",
					"path", r.URL.Path, "role", string(d.Role), "target", d.Target)
				if WantsJSON(r) {
					WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "insufficient_permissions", Message: "You do not have access to this page"})
					return
				}
				Navigate(w, r, d.Target)
			default:
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			}
		})
	}
}

func writeLoading(w http.ResponseWriter, r *http.Request, deps GuardDeps) {
	secs := int(deps.RetryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	w.Header().Set("Cache-Control", "no-store")

	if WantsJSON(r) || IsHTMX(r) || deps.Renderer == nil {
		WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "loading", Message: "Checking your session"})
		return
	}
	err := deps.Renderer.RenderStatus(w, r, http.StatusServiceUnavailable, "loading", PageData{
		Routes:       deps.Guard.Routes(),
		Path:         r.URL.Path,
		CSRFToken:    GetCSRFToken(r),
		RefreshAfter: secs,
	})
	if err != nil {
		deps.Logger.ErrorContext(r.Context(), "render loading page failed", "error", err)
	}
}
