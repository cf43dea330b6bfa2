package testutil

import (
	"encoding/json"

	domainauth "github.com/target/estate-portal/internal/domain/auth"
)

// Persisted session keys, mirrored here so tests can seed stores directly.
const (
	KeyToken    = "token"
	KeyUser     = "user"
	KeyUserType = "userType"
)

// RecordBuilder provides a fluent interface for building persisted session
// records (the raw key/value form written to a KeyStore).
type RecordBuilder struct {
	token    string
	identity domainauth.Identity
	userType string
	rawUser  *string
}

// NewRecord creates a RecordBuilder for a signed-in platform user named Alice.
func NewRecord() *RecordBuilder {
	return &RecordBuilder{
		token:    "T1",
		identity: domainauth.Identity{"name": "Alice", "email": "alice@example.com", "role": "user"},
		userType: "user",
	}
}

// WithToken sets the bearer token.
func (b *RecordBuilder) WithToken(token string) *RecordBuilder {
	b.token = token
	return b
}

// WithIdentity sets the identity record.
func (b *RecordBuilder) WithIdentity(identity domainauth.Identity) *RecordBuilder {
	b.identity = identity
	return b
}

// WithRole sets the identity's role attribute.
func (b *RecordBuilder) WithRole(role string) *RecordBuilder {
	b.identity = b.identity.Merge(domainauth.Identity{"role": role})
	return b
}

// WithUserType sets the raw userType value (use any string to simulate corruption).
func (b *RecordBuilder) WithUserType(userType string) *RecordBuilder {
	b.userType = userType
	return b
}

// WithRawUser replaces the serialized identity with raw (e.g. corrupt JSON).
func (b *RecordBuilder) WithRawUser(raw string) *RecordBuilder {
	b.rawUser = &raw
	return b
}

// Build returns the persisted entries.
func (b *RecordBuilder) Build() map[string]string {
	user := ""
	if b.rawUser != nil {
		user = *b.rawUser
	} else {
		data, _ := json.Marshal(b.identity)
		user = string(data)
	}
	return map[string]string{
		KeyToken:    b.token,
		KeyUser:     user,
		KeyUserType: b.userType,
	}
}

// Without returns the record with keys removed, simulating a partial write.
func (b *RecordBuilder) Without(keys ...string) map[string]string {
	rec := b.Build()
	for _, k := range keys {
		delete(rec, k)
	}
	return rec
}
