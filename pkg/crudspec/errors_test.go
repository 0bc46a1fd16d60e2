package crudspec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/bitechdev/CrudSpec/pkg/schema"
	"github.com/bitechdev/CrudSpec/pkg/sprunje"
)

func conflictTestSchema() *schema.Schema {
	return &schema.Schema{
		Model:      "groups",
		Table:      "groups",
		PrimaryKey: "id",
		Fields: map[string]*schema.FieldSpec{
			"id":   {Type: "integer"},
			"slug": {Type: "string"},
		},
	}
}

func TestClassifyError(t *testing.T) {
	s := conflictTestSchema()

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"record not found", fmt.Errorf("wrap: %w", ErrRecordNotFound), http.StatusNotFound},
		{"sql no rows", sql.ErrNoRows, http.StatusNotFound},
		{"schema not found", schema.ErrSchemaNotFound, http.StatusNotFound},
		{"schema malformed", schema.ErrSchemaMalformed, http.StatusInternalServerError},
		{"bad parameter", fmt.Errorf("%w: size", sprunje.ErrBadParameter), http.StatusBadRequest},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, classifyError(tc.err, s).status)
		})
	}
}

func TestClassifyErrorPassesThroughAPIErrors(t *testing.T) {
	orig := newAPIError(http.StatusTeapot, "Teapot", "short and stout")
	got := classifyError(fmt.Errorf("wrap: %w", orig), nil)
	assert.Equal(t, http.StatusTeapot, got.status)
	assert.Equal(t, "Teapot", got.title)
}

func TestUniqueViolationSqlite(t *testing.T) {
	s := conflictTestSchema()
	err := errors.New("constraint failed: UNIQUE constraint failed: groups.slug (2067)")

	got := classifyError(err, s)
	assert.Equal(t, http.StatusConflict, got.status)
	assert.Equal(t, []string{"unique"}, got.errors["slug"])
}

func TestUniqueViolationPostgres(t *testing.T) {
	s := conflictTestSchema()
	err := &pgconn.PgError{Code: "23505", ConstraintName: "groups_slug_key"}

	got := classifyError(err, s)
	assert.Equal(t, http.StatusConflict, got.status)
	assert.Equal(t, []string{"unique"}, got.errors["slug"])
}

func TestUniqueViolationUnmappableFallsBackToPK(t *testing.T) {
	s := conflictTestSchema()
	err := errors.New("UNIQUE constraint failed: groups.legacy_column")

	got := classifyError(err, s)
	assert.Equal(t, http.StatusConflict, got.status)
	assert.Equal(t, []string{"unique"}, got.errors["id"])
}

func TestBreadcrumb(t *testing.T) {
	s := &schema.Schema{
		Model:      "groups",
		PrimaryKey: "id",
		TitleField: "name",
		Fields: map[string]*schema.FieldSpec{
			"id":   {Type: "integer"},
			"name": {Type: "string"},
		},
	}

	r := NewRecord(s)
	_ = r.Set("id", 42)
	_ = r.Set("name", "Engineers")
	assert.Equal(t, "Engineers (42)", breadcrumb(s, r))

	r = NewRecord(s)
	_ = r.Set("id", 42)
	assert.Equal(t, "42", breadcrumb(s, r))

	noTitle := &schema.Schema{Model: "logs", PrimaryKey: "id", Fields: s.Fields}
	r = NewRecord(noTitle)
	_ = r.Set("id", 7)
	assert.Equal(t, "7", breadcrumb(noTitle, r))
}

func TestExtractFieldValue(t *testing.T) {
	raw, ok := extractFieldValue([]byte(`{"icon": "fa-star"}`), "icon")
	assert.True(t, ok)
	assert.Equal(t, "fa-star", raw)

	raw, ok = extractFieldValue([]byte(`{"value": 7}`), "icon")
	assert.True(t, ok)
	assert.Equal(t, float64(7), raw)

	// The field's own key wins over "value".
	raw, ok = extractFieldValue([]byte(`{"icon": "a", "value": "b"}`), "icon")
	assert.True(t, ok)
	assert.Equal(t, "a", raw)

	raw, ok = extractFieldValue([]byte(`{"icon": null}`), "icon")
	assert.True(t, ok)
	assert.Nil(t, raw)

	_, ok = extractFieldValue([]byte(`{"other": 1}`), "icon")
	assert.False(t, ok)
}

func TestSplitModel(t *testing.T) {
	model, conn := splitModel("users")
	assert.Equal(t, "users", model)
	assert.Empty(t, conn)

	model, conn = splitModel("users@reporting")
	assert.Equal(t, "users", model)
	assert.Equal(t, "reporting", conn)
}
