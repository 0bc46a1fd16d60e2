package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterForContextList(t *testing.T) {
	l := newTestLoader(t)
	s, err := l.GetSchema("users")
	require.NoError(t, err)

	view := s.FilterForContext(ContextList)
	assert.Contains(t, view.Fields, "user_name")
	assert.Contains(t, view.Fields, "email")
	assert.NotContains(t, view.Fields, "password", "password never appears in list views")
	assert.NotContains(t, view.Fields, "bio", "non-listable field excluded")

	// The original schema is untouched.
	assert.Contains(t, s.Fields, "password")
}

func TestFilterForContextForm(t *testing.T) {
	l := newTestLoader(t)
	s, err := l.GetSchema("users")
	require.NoError(t, err)

	view := s.FilterForContext(ContextForm)
	assert.Contains(t, view.Fields, "password", "password is editable in forms")
	assert.NotContains(t, view.Fields, "id", "auto_increment excluded from forms")
}

func TestFilterForContextDetail(t *testing.T) {
	l := newTestLoader(t)
	s, err := l.GetSchema("users")
	require.NoError(t, err)

	view := s.FilterForContext(ContextDetail)
	assert.Contains(t, view.Fields, "bio")
	assert.Contains(t, view.Fields, "user_name", "empty show_in means shown everywhere")
	assert.NotContains(t, view.Fields, "password")
}

func TestFilterForContextMeta(t *testing.T) {
	l := newTestLoader(t)
	s, err := l.GetSchema("users")
	require.NoError(t, err)

	view := s.FilterForContext(ContextMeta)
	assert.Empty(t, view.Fields)
	assert.Equal(t, "Users", view.Title)
}

func TestContextPayload(t *testing.T) {
	l := newTestLoader(t)
	s, err := l.GetSchema("users")
	require.NoError(t, err)

	assert.Same(t, s, s.ContextPayload(nil).(*Schema))

	single := s.ContextPayload([]string{ContextList}).(*Schema)
	assert.NotContains(t, single.Fields, "password")

	multi := s.ContextPayload([]string{ContextList, ContextForm}).(*MultiContextSchema)
	assert.Equal(t, "users", multi.Model)
	require.Contains(t, multi.Contexts, ContextList)
	require.Contains(t, multi.Contexts, ContextForm)
	assert.Contains(t, multi.Contexts[ContextForm].Fields, "password")
}

func TestFieldProjections(t *testing.T) {
	l := newTestLoader(t)
	s, err := l.GetSchema("users")
	require.NoError(t, err)

	assert.Equal(t, []string{"email", "flag_enabled", "id", "user_name"}, s.ListableFields())
	assert.Equal(t, []string{"id", "user_name"}, s.SortableFields())
	assert.Equal(t, []string{"user_name"}, s.FilterableFields())
	assert.Equal(t, []string{"user_name"}, s.SearchableFields())
}
