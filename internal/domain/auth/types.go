package auth

// Package auth contains domain-level types for the client-held session.
// It is pure and free of framework/adapter concerns.

import (
	"fmt"
	"maps"
	"strings"
)

// Category selects which tenant family (and endpoint family) a session belongs to.
// The zero value means "no category" and only appears on an empty session.
type Category int

const (
	CategoryNone Category = iota
	CategoryPlatformUser
	CategoryClient
)

// ParseCategory maps the persisted/wire form ("user" or "client") onto a Category.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return CategoryPlatformUser, nil
	case "client":
		return CategoryClient, nil
	default:
		return CategoryNone, fmt.Errorf("unknown principal category %q", s)
	}
}

// String returns the wire form used by the credential service and persisted storage.
func (c Category) String() string {
	switch c {
	case CategoryPlatformUser:
		return "user"
	case CategoryClient:
		return "client"
	case CategoryNone:
		return ""
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Valid reports whether c names a real tenant family.
func (c Category) Valid() bool {
	return c == CategoryPlatformUser || c == CategoryClient
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", c)
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	v, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Role represents an authorization role derived from the identity record.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleClient Role = "client"
)

// ParseRole validates a role string. Unknown roles are an error, never a default.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleUser, RoleClient:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// DefaultRole is the least-privileged role a principal of category c can hold.
func DefaultRole(c Category) Role {
	switch c {
	case CategoryPlatformUser:
		return RoleUser
	case CategoryClient:
		return RoleClient
	case CategoryNone:
		return ""
	default:
		return ""
	}
}

// Identity is the opaque record describing the signed-in principal.
// Only the role attribute is interpreted by the session runtime.
type Identity map[string]any

// Clone returns a shallow copy; nil stays nil.
func (i Identity) Clone() Identity {
	if i == nil {
		return nil
	}
	return maps.Clone(i)
}

// Merge returns a new identity with partial's keys layered over i.
// Merging into an empty identity yields a copy of partial.
func (i Identity) Merge(partial Identity) Identity {
	out := make(Identity, len(i)+len(partial))
	maps.Copy(out, i)
	maps.Copy(out, partial)
	return out
}

// Attr returns the string attribute key, or "" when absent or not a string.
func (i Identity) Attr(key string) string {
	s, _ := i[key].(string)
	return s
}

func (i Identity) Name() string  { return i.Attr("name") }
func (i Identity) Email() string { return i.Attr("email") }

// ID returns the principal identifier, accepting either "id" or "_id".
func (i Identity) ID() string {
	if v := i.Attr("id"); v != "" {
		return v
	}
	return i.Attr("_id")
}

// Session is an immutable snapshot of the client-held session.
// Token, Identity and Category are either all set or all empty.
type Session struct {
	Identity  Identity
	Token     string
	Category  Category
	Role      Role
	IsLoading bool
	LastError string
}

// IsAuthenticated is derived from the token and never stored separately.
func (s Session) IsAuthenticated() bool { return s.Token != "" }

// IsAdmin reports whether the principal holds the admin role.
func (s Session) IsAdmin() bool { return s.IsAuthenticated() && s.Role == RoleAdmin }

// IsClient reports whether the session belongs to the client tenant family.
func (s Session) IsClient() bool { return s.IsAuthenticated() && s.Category == CategoryClient }

// IsRegularUser reports whether the principal is a non-admin platform user.
func (s Session) IsRegularUser() bool {
	return s.IsAuthenticated() && s.Category == CategoryPlatformUser && s.Role == RoleUser
}
