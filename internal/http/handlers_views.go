package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	"github.com/target/estate-portal/internal/domain/dashboard"
	"github.com/target/estate-portal/internal/guard"
)

// DashboardFeed is the background statistics refresher behind dashboard views.
type DashboardFeed interface {
	Mount()
	Latest() (dashboard.Stats, bool)
}

// ViewHandlers serves the pages behind the route guard.
type ViewHandlers struct {
	Session  SessionSource
	Notices  NoticeSource
	Feed     DashboardFeed
	Routes   guard.Routes
	Renderer *TemplateRenderer
	Logger   *slog.Logger
}

func (h *ViewHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Home serves the public landing page.
func (h *ViewHandlers) Home(w http.ResponseWriter, r *http.Request) {
	data := h.page(r, h.Session.Snapshot())
	if h.Notices != nil {
		if n, ok := h.Notices.TakeNotice(); ok {
			data.Notice = n.Message()
		}
	}
	h.render(w, r, "home", data)
}

var dashboardHeadings = map[domainauth.Role]string{
	domainauth.RoleAdmin:  "Administration",
	domainauth.RoleUser:   "Your listings",
	domainauth.RoleClient: "Your agency",
}

// Dashboard serves the role landing page and keeps its statistics fresh
// while it is being viewed.
func (h *ViewHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	snap := h.session(r)
	data := h.page(r, snap)
	data.Heading = dashboardHeadings[snap.Role]

	if h.Feed != nil {
		h.Feed.Mount()
		// Statistics fetched for another role belong to a previous session.
		if stats, ok := h.Feed.Latest(); ok && stats.Role == snap.Role {
			data.Stats = stats
			data.HasStats = true
		}
	}
	h.render(w, r, "dashboard", data)
}

// Lead serves a single lead.
// GET /user/leads/{id}.
func (h *ViewHandlers) Lead(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.NotFound(w, r)
		return
	}
	data := h.page(r, h.session(r))
	data.LeadID = id
	h.render(w, r, "lead", data)
}

// session prefers the snapshot the guard admitted the request with.
func (h *ViewHandlers) session(r *http.Request) domainauth.Session {
	if snap, ok := SessionFromContext(r.Context()); ok {
		return snap
	}
	return h.Session.Snapshot()
}

func (h *ViewHandlers) page(r *http.Request, snap domainauth.Session) PageData {
	return PageData{Session: snap, Routes: h.Routes, Path: r.URL.Path, CSRFToken: GetCSRFToken(r)}
}

func (h *ViewHandlers) render(w http.ResponseWriter, r *http.Request, page string, data PageData) {
	if h.Renderer == nil {
		http.Error(w, "templates unavailable", http.StatusInternalServerError)
		return
	}
	if err := h.Renderer.Render(w, r, page, data); err != nil {
		h.logger().ErrorContext(r.Context(), "render failed", "page", page, "error", err)
	}
}
