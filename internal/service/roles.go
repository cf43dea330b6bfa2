package service

import (
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
)

// RoleResolver derives the authorization role from an opaque identity record
// using a JMESPath expression (for example "role" or "profile.role").
type RoleResolver struct {
	expr string
}

// NewRoleResolver validates expr; an empty expression means "role".
func NewRoleResolver(expr string) (*RoleResolver, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = "role"
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, fmt.Errorf("compile role path %q: %w", expr, err)
	}
	return &RoleResolver{expr: expr}, nil
}

// Resolve returns the role named by the identity when it is valid for the
// category, otherwise the category's least-privileged role. A client can never
// resolve to a platform role and nothing falls back to admin.
func (r *RoleResolver) Resolve(identity domainauth.Identity, category domainauth.Category) domainauth.Role {
	fallback := domainauth.DefaultRole(category)
	if r == nil || identity == nil {
		return fallback
	}

	raw, err := jmespath.Search(r.expr, map[string]any(identity))
	if err != nil {
		return fallback
	}
	s, ok := raw.(string)
	if !ok {
		return fallback
	}
	role, err := domainauth.ParseRole(s)
	if err != nil {
		return fallback
	}

	switch category {
	case domainauth.CategoryPlatformUser:
		if role == domainauth.RoleClient {
			return fallback
		}
		return role
	case domainauth.CategoryClient:
		return domainauth.RoleClient
	case domainauth.CategoryNone:
		return ""
	default:
		return fallback
	}
}
