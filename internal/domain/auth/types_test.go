package auth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("user")
	require.NoError(t, err)
	assert.Equal(t, CategoryPlatformUser, c)

	c, err = ParseCategory(" Client ")
	require.NoError(t, err)
	assert.Equal(t, CategoryClient, c)

	_, err = ParseCategory("admin")
	assert.Error(t, err)
	_, err = ParseCategory("")
	assert.Error(t, err)
}

func TestCategory_TextRoundTrip(t *testing.T) {
	raw, err := json.Marshal(struct {
		C Category `json:"c"`
	}{CategoryClient})
	require.NoError(t, err)
	assert.JSONEq(t, `{"c":"client"}`, string(raw))

	var out struct {
		C Category `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"c":"user"}`), &out))
	assert.Equal(t, CategoryPlatformUser, out.C)

	_, err = CategoryNone.MarshalText()
	assert.Error(t, err)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}

func TestDefaultRole(t *testing.T) {
	assert.Equal(t, RoleUser, DefaultRole(CategoryPlatformUser))
	assert.Equal(t, RoleClient, DefaultRole(CategoryClient))
	assert.Equal(t, Role(""), DefaultRole(CategoryNone))
}

func TestIdentity_Merge(t *testing.T) {
	base := Identity{"name": "Alice", "role": "user"}
	merged := base.Merge(Identity{"phone": "555"})

	assert.Equal(t, Identity{"name": "Alice", "role": "user", "phone": "555"}, merged)
	assert.NotContains(t, base, "phone", "merge must not mutate the receiver")

	var empty Identity
	assert.Equal(t, Identity{"name": "Bob"}, empty.Merge(Identity{"name": "Bob"}))
}

func TestIdentity_Accessors(t *testing.T) {
	id := Identity{"name": "Alice", "email": "alice@example.com", "_id": "42", "age": 3}
	assert.Equal(t, "Alice", id.Name())
	assert.Equal(t, "alice@example.com", id.Email())
	assert.Equal(t, "42", id.ID())
	assert.Empty(t, id.Attr("age"))
	assert.Nil(t, Identity(nil).Clone())
}

func TestSession_DerivedQueries(t *testing.T) {
	admin := Session{Token: "T", Identity: Identity{}, Category: CategoryPlatformUser, Role: RoleAdmin}
	user := Session{Token: "T", Identity: Identity{}, Category: CategoryPlatformUser, Role: RoleUser}
	client := Session{Token: "T", Identity: Identity{}, Category: CategoryClient, Role: RoleClient}
	empty := Session{}

	assert.True(t, admin.IsAdmin())
	assert.False(t, admin.IsRegularUser())
	assert.True(t, user.IsRegularUser())
	assert.True(t, client.IsClient())
	assert.False(t, client.IsRegularUser())

	assert.False(t, empty.IsAuthenticated())
	assert.False(t, empty.IsAdmin())
	assert.False(t, empty.IsClient())
}
