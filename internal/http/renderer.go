package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
	"github.com/target/estate-portal/internal/domain/dashboard"
	"github.com/target/estate-portal/internal/guard"
)

// FormValues echoes submitted form fields back into a re-rendered form.
// Passwords are never echoed.
type FormValues struct {
	Name     string
	Email    string
	Phone    string
	UserType string
	Company  string
}

// PageData is the view model shared by every page.
type PageData struct {
	Session  domainauth.Session
	Routes   guard.Routes
	Path     string
	Notice   string
	Error    string
	ReturnTo string
	Form     FormValues
	// CSRFToken is echoed by every form and htmx request.
	CSRFToken string

	Heading  string
	Stats    dashboard.Stats
	HasStats bool
	LeadID   string

	// RefreshAfter, when positive, asks the browser to reload after that many seconds.
	RefreshAfter int
}

// TemplateRenderer renders page templates inside the shared layout.
type TemplateRenderer struct {
	fsys    fs.FS
	devMode bool
	logger  *slog.Logger

	mu    sync.Mutex
	pages map[string]*template.Template
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS        // Required: contains layout.tmpl and pages/*.tmpl
	DevMode    bool         // Re-parse templates on every render
	Logger     *slog.Logger // Optional
}

// NewTemplateRenderer parses every page up front so broken templates fail at startup.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("TemplateFS is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &TemplateRenderer{fsys: cfg.TemplateFS, devMode: cfg.DevMode, logger: logger}
	pages, err := r.parse()
	if err != nil {
		logger.Error("template parsing failed", slog.Any("error", err), slog.String("phase", "initialization"))
		return nil, err
	}
	r.pages = pages
	return r, nil
}

func (r *TemplateRenderer) parse() (map[string]*template.Template, error) {
	base, err := template.New("root").Funcs(templateFuncs()).ParseFS(r.fsys, "layout.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(r.fsys, "pages/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", file, err)
		}
		if _, err := t.ParseFS(r.fsys, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages[strings.TrimSuffix(path.Base(file), ".tmpl")] = t
	}
	return pages, nil
}

func (r *TemplateRenderer) page(name string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.devMode {
		pages, err := r.parse()
		if err != nil {
			return nil, err
		}
		r.pages = pages
	}
	t, ok := r.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", name)
	}
	return t, nil
}

// Render writes page inside the layout, or only its content for htmx requests.
func (r *TemplateRenderer) Render(w http.ResponseWriter, req *http.Request, page string, data PageData) error {
	return r.RenderStatus(w, req, http.StatusOK, page, data)
}

// RenderStatus is Render with an explicit status code.
func (r *TemplateRenderer) RenderStatus(w http.ResponseWriter, req *http.Request, status int, page string, data PageData) error {
	t, err := r.page(page)
	if err != nil {
		r.logger.Error("template lookup failed", slog.String("page", page), slog.Any("error", err))
		return err
	}

	name := "layout"
	if WantsPartial(req) {
		name = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.Error("template execution failed",
			slog.String("page", page),
			slog.String("template", name),
			slog.Any("error", err),
		)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		r.logger.Error("failed to write rendered template", slog.String("page", page), slog.Any("error", err))
		return err
	}
	return nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"landing": func(d PageData) string {
			if target := d.Routes.LandingFor(d.Session.Role); target != "" {
				return target
			}
			return "/"
		},
	}
}
