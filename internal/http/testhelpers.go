package httpx

import (
	"io/fs"
	"testing"

	estateportal "github.com/target/estate-portal"
)

// RequireTemplateRenderer creates a TemplateRenderer over the embedded templates for tests.
func RequireTemplateRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	sub, err := fs.Sub(estateportal.TemplateFS, estateportal.TemplateRoot)
	if err != nil {
		t.Fatalf("templates not embedded: %v", err)
	}
	tr, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: sub})
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	return tr
}
