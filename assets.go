// Package estateportal provides the embedded portal templates.
package estateportal

import "embed"

// TemplateFS holds the portal page templates. In dev mode they are read from
// disk instead so edits show up without a rebuild.
//
//go:embed all:web/templates
var TemplateFS embed.FS

// TemplateRoot is the directory of TemplateFS (and of the on-disk copy) holding the templates.
const TemplateRoot = "web/templates"
