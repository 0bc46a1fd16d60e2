package crudspec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"

	"github.com/bitechdev/CrudSpec/pkg/cache"
	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/common/adapters/database"
	"github.com/bitechdev/CrudSpec/pkg/config"
	"github.com/bitechdev/CrudSpec/pkg/metrics"
	"github.com/bitechdev/CrudSpec/pkg/schema"
	"github.com/bitechdev/CrudSpec/pkg/security"
	"github.com/bitechdev/CrudSpec/pkg/sprunje"
)

// stubClock is a settable clock so tests can observe timestamp writes.
type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time { return c.now }

// staticResolver serves the same database for every connection name.
type staticResolver struct {
	db common.Database
}

func (s staticResolver) GetDatabase(name string) (common.Database, error) { return s.db, nil }
func (s staticResolver) GetDefaultDatabase() (common.Database, error)     { return s.db, nil }

const groupsSchemaJSON = `{
	"table": "groups",
	"title": "Groups",
	"singular_title": "Group",
	"title_field": "name",
	"timestamps": true,
	"soft_delete": true,
	"default_sort": {"name": "asc"},
	"fields": {
		"id": {"type": "integer", "auto_increment": true, "readonly": true, "sortable": true, "listable": true},
		"name": {"type": "string", "required": true, "sortable": true, "filterable": true, "searchable": true, "listable": true,
			"validation": {"length": {"min": 2, "max": 50}}},
		"slug": {"type": "string", "required": true, "filterable": true, "listable": true,
			"validation": {"unique": true}},
		"icon": {"type": "string", "listable": true, "default": "fa-users"},
		"member_limit": {"type": "integer", "listable": true, "validation": {"min": 0, "max": 1000}}
	},
	"details": [
		{"model": "members", "foreign_key": "group_id", "list_fields": ["id", "nickname"]}
	],
	"actions": [
		{"key": "set_icon", "type": "field_update", "field": "icon"},
		{"key": "announce", "type": "custom", "permission": "special.announce", "success_message": "Announcement sent"}
	]
}`

const usersSchemaJSON = `{
	"table": "users",
	"singular_title": "User",
	"title_field": "user_name",
	"fields": {
		"id": {"type": "integer", "auto_increment": true, "readonly": true, "sortable": true, "listable": true},
		"user_name": {"type": "string", "required": true, "sortable": true, "filterable": true, "listable": true},
		"email": {"type": "email", "listable": true, "validation": {"email": true}},
		"password": {"type": "password", "validation": {"length": {"min": 8}}}
	},
	"relationships": [
		{"name": "roles", "type": "many_to_many", "pivot_table": "role_users",
			"foreign_key": "user_id", "related_key": "role_id"},
		{"name": "permissions", "type": "belongs_to_many_through", "through": [
			{"table": "role_users", "foreign_key": "user_id", "local_key": "role_id"},
			{"table": "permission_roles", "foreign_key": "role_id", "local_key": "permission_id"}
		]}
	],
	"actions": [
		{"key": "set_password", "type": "password_update", "field": "password"}
	]
}`

const rolesSchemaJSON = `{
	"table": "roles",
	"default_sort": {"name": "asc"},
	"fields": {
		"id": {"type": "integer", "readonly": true, "sortable": true, "listable": true},
		"name": {"type": "string", "sortable": true, "filterable": true, "listable": true}
	}
}`

const membersSchemaJSON = `{
	"table": "members",
	"default_sort": {"nickname": "asc"},
	"fields": {
		"id": {"type": "integer", "readonly": true, "sortable": true, "listable": true},
		"group_id": {"type": "integer", "listable": true},
		"nickname": {"type": "string", "sortable": true, "listable": true}
	}
}`

type env struct {
	db     common.Database
	router *mux.Router
	clock  *stubClock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWith(t, config.CrudConfig{DebugMode: true, DefaultPageSize: 10, MaxPageSize: 100}, nil)
}

func newEnvWith(t *testing.T, crudCfg config.CrudConfig, metricsProvider metrics.Provider) *env {
	t.Helper()
	require.NoError(t, cache.GetDefaultCache().Clear(context.Background()))

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	db := database.NewBunAdapter(bun.NewDB(sqldb, sqlitedialect.New()))
	for _, stmt := range []string{
		`CREATE TABLE groups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT, slug TEXT UNIQUE, icon TEXT, member_limit INTEGER,
			created_at TIMESTAMP, updated_at TIMESTAMP, deleted_at TIMESTAMP
		)`,
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_name TEXT, email TEXT, password TEXT
		)`,
		`CREATE TABLE roles (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)`,
		`CREATE TABLE role_users (user_id INTEGER, role_id INTEGER)`,
		`CREATE TABLE permissions (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)`,
		`CREATE TABLE permission_roles (role_id INTEGER, permission_id INTEGER)`,
		`CREATE TABLE members (id INTEGER PRIMARY KEY AUTOINCREMENT, group_id INTEGER, nickname TEXT)`,
	} {
		_, err := db.Exec(context.Background(), stmt)
		require.NoError(t, err)
	}

	dir := t.TempDir()
	for name, body := range map[string]string{
		"groups.json":  groupsSchemaJSON,
		"users.json":   usersSchemaJSON,
		"roles.json":   rolesSchemaJSON,
		"members.json": membersSchemaJSON,
		"permissions.json": `{
			"table": "permissions",
			"default_sort": {"name": "asc"},
			"fields": {
				"id": {"type": "integer", "readonly": true, "sortable": true, "listable": true},
				"name": {"type": "string", "sortable": true, "listable": true}
			}
		}`,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	clk := &stubClock{now: time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)}
	handler := NewHandler(Deps{
		Schemas: schema.NewLoader(dir),
		DB:      staticResolver{db: db},
		Authorizer: security.NewStaticAuthorizer(map[string][]string{
			"admin":  {"crud6.*", "special.announce"},
			"viewer": {"crud6.groups.read", "crud6.users.read"},
		}),
		Hasher:  &security.BcryptHasher{Cost: bcrypt.MinCost},
		Clock:   clk,
		Config:  crudCfg,
		Metrics: metricsProvider,
	})

	auth := security.AuthenticatorFunc(func(r *http.Request) (*security.UserContext, error) {
		switch r.Header.Get("X-Test-User") {
		case "admin":
			return &security.UserContext{UserID: 1, UserName: "admin", Roles: []string{"admin"}}, nil
		case "viewer":
			return &security.UserContext{UserID: 2, UserName: "viewer", Roles: []string{"viewer"}}, nil
		}
		return nil, fmt.Errorf("no identity")
	})

	router := mux.NewRouter()
	SetupMuxRoutes(router, handler, security.NewAuthMiddleware(auth))
	return &env{db: db, router: router, clock: clk}
}

func (e *env) do(t *testing.T, user, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), "body: %s", rec.Body.String())
}

func (e *env) seedGroup(t *testing.T, name, slug string) int64 {
	t.Helper()
	res, err := e.db.Exec(context.Background(),
		`INSERT INTO groups (name, slug, icon) VALUES (?, ?, ?)`, name, slug, "fa-users")
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func (e *env) seedUser(t *testing.T, userName, email string) int64 {
	t.Helper()
	res, err := e.db.Exec(context.Background(),
		`INSERT INTO users (user_name, email, password) VALUES (?, ?, ?)`, userName, email, "x")
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func (e *env) countWhere(t *testing.T, table, where string, args ...interface{}) int {
	t.Helper()
	n, err := e.db.NewSelect().Table(table).Where(where, args...).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestListGroups(t *testing.T) {
	e := newEnv(t)
	e.seedGroup(t, "Zebras", "zebras")
	e.seedGroup(t, "Alphas", "alphas")
	e.seedGroup(t, "Betas", "betas")

	rec := e.do(t, "admin", "GET", "/api/crud6/groups", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res sprunje.Result
	decodeJSON(t, rec, &res)
	assert.EqualValues(t, 3, res.Count)
	assert.EqualValues(t, 3, res.CountFiltered)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "Alphas", res.Rows[0]["name"])
	assert.Equal(t, "Zebras", res.Rows[2]["name"])
}

func TestListGroupsFilteredAndPaged(t *testing.T) {
	e := newEnv(t)
	for i := 1; i <= 5; i++ {
		e.seedGroup(t, fmt.Sprintf("Group %02d", i), fmt.Sprintf("group-%02d", i))
	}

	rec := e.do(t, "admin", "GET", "/api/crud6/groups?filters[name]=Group&size=2&page=1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res sprunje.Result
	decodeJSON(t, rec, &res)
	assert.EqualValues(t, 5, res.Count)
	assert.EqualValues(t, 5, res.CountFiltered)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Group 03", res.Rows[0]["name"])
	assert.Equal(t, "Group 04", res.Rows[1]["name"])
}

func TestListBadSortDirection(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, "admin", "GET", "/api/crud6/groups?sorts[name]=sideways", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAndReadGroup(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "admin", "POST", "/api/crud6/groups",
		`{"name": "Engineers", "slug": "engineers", "member_limit": 10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created common.MessageResponse
	decodeJSON(t, rec, &created)
	assert.Equal(t, "Group created", created.Title)
	assert.Equal(t, "groups", created.Model)
	require.NotNil(t, created.ID)
	assert.Equal(t, "fa-users", created.Data["icon"], "default should be filled")

	id := created.ID
	rec = e.do(t, "admin", "GET", fmt.Sprintf("/api/crud6/groups/%v", id), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var read common.ReadResponse
	decodeJSON(t, rec, &read)
	assert.Equal(t, "OK", read.Message)
	assert.Equal(t, "Group", read.ModelDisplayName)
	assert.Equal(t, fmt.Sprintf("Engineers (%v)", id), read.Breadcrumb)
	assert.Equal(t, "Engineers", read.Data["name"])

	// Timestamps were stamped from the clock inside the transaction.
	assert.Equal(t, 1, e.countWhere(t, "groups", "created_at IS NOT NULL"))
	assert.Equal(t, 1, e.countWhere(t, "groups", "updated_at IS NOT NULL"))
}

func TestCreateValidationFailure(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "admin", "POST", "/api/crud6/groups", `{"name": "X"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	var res common.ErrorResponse
	decodeJSON(t, rec, &res)
	assert.Equal(t, "Validation failed", res.Title)
	assert.Equal(t, []string{"length.min"}, res.Errors["name"])
	assert.Equal(t, []string{"required"}, res.Errors["slug"])

	assert.Equal(t, 0, e.countWhere(t, "groups", "1 = 1"), "nothing may be inserted")
}

func TestCreateDuplicateSlug(t *testing.T) {
	e := newEnv(t)
	e.seedGroup(t, "Engineers", "engineers")

	rec := e.do(t, "admin", "POST", "/api/crud6/groups",
		`{"name": "Engineers Two", "slug": "engineers"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	var res common.ErrorResponse
	decodeJSON(t, rec, &res)
	assert.Equal(t, []string{"unique"}, res.Errors["slug"])
}

func TestCreateBadJSON(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, "admin", "POST", "/api/crud6/groups", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateGroup(t *testing.T) {
	e := newEnv(t)
	id := e.seedGroup(t, "Engineers", "engineers")

	e.clock.now = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	rec := e.do(t, "admin", "PUT", fmt.Sprintf("/api/crud6/groups/%d", id),
		`{"name": "Platform Engineers"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res common.MessageResponse
	decodeJSON(t, rec, &res)
	assert.Equal(t, "Group updated", res.Title)

	assert.Equal(t, 1, e.countWhere(t, "groups", "name = ?", "Platform Engineers"))
	assert.Equal(t, 1, e.countWhere(t, "groups", "slug = ?", "engineers"), "untouched fields survive")
	assert.Equal(t, 1, e.countWhere(t, "groups", "updated_at IS NOT NULL"))
}

func TestUpdateBumpsTimestampWithoutChanges(t *testing.T) {
	e := newEnv(t)
	id := e.seedGroup(t, "Engineers", "engineers")

	rec := e.do(t, "admin", "PUT", fmt.Sprintf("/api/crud6/groups/%d", id), `{}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, e.countWhere(t, "groups", "updated_at IS NOT NULL"))
}

func TestUpdateMissingRecord(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, "admin", "PUT", "/api/crud6/groups/999", `{"name": "Ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchField(t *testing.T) {
	e := newEnv(t)
	id := e.seedGroup(t, "Engineers", "engineers")

	rec := e.do(t, "admin", "PUT", fmt.Sprintf("/api/crud6/groups/%d/icon", id),
		`{"icon": "fa-rocket"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res common.MessageResponse
	decodeJSON(t, rec, &res)
	assert.Equal(t, "fa-rocket", res.Data["icon"])
	assert.Equal(t, 1, e.countWhere(t, "groups", "icon = ?", "fa-rocket"))
}

func TestPatchFieldValueKey(t *testing.T) {
	e := newEnv(t)
	id := e.seedGroup(t, "Engineers", "engineers")

	rec := e.do(t, "admin", "PUT", fmt.Sprintf("/api/crud6/groups/%d/icon", id),
		`{"value": "fa-star"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, e.countWhere(t, "groups", "icon = ?", "fa-star"))
}

func TestPatchReadonlyField(t *testing.T) {
	e := newEnv(t)
	id := e.seedGroup(t, "Engineers", "engineers")

	rec := e.do(t, "admin", "PUT", fmt.Sprintf("/api/crud6/groups/%d/id", id), `{"id": 99}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, e.countWhere(t, "groups", "id = ?", id))
}

func TestPatchUnknownField(t *testing.T) {
	e := newEnv(t)
	id := e.seedGroup(t, "Engineers", "engineers")

	rec := e.do(t, "admin", "PUT", fmt.Sprintf("/api/crud6/groups/%d/bogus", id), `{"bogus": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchMissingValue(t *testing.T) {
	e := newEnv(t)
	id := e.seedGroup(t, "Engineers", "engineers")

	rec := e.do(t, "admin", "PUT", fmt.Sprintf("/api/crud6/groups/%d/icon", id), `{"other": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSoftDeleteGroup(t *testing.T) {
	e := newEnv(t)
	id := e.seedGroup(t, "Engineers", "engineers")
	e.seedGroup(t, "Designers", "designers")

	rec := e.do(t, "admin", "DELETE", fmt.Sprintf("/api/crud6/groups/%d", id), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The row keeps existing under a tombstone.
	assert.Equal(t, 1, e.countWhere(t, "groups", "deleted_at IS NOT NULL"))

	rec = e.do(t, "admin", "GET", fmt.Sprintf("/api/crud6/groups/%d", id), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, "admin", "GET", "/api/crud6/groups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res sprunje.Result
	decodeJSON(t, rec, &res)
	assert.EqualValues(t, 1, res.Count)

	rec = e.do(t, "admin", "DELETE", fmt.Sprintf("/api/crud6/groups/%d", id), "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "deleting twice misses")
}

func TestHardDeleteUser(t *testing.T) {
	e := newEnv(t)
	id := e.seedUser(t, "alice", "alice@example.com")

	rec := e.do(t, "admin", "DELETE", fmt.Sprintf("/api/crud6/users/%d", id), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0, e.countWhere(t, "users", "id = ?", id))
}

func TestReadMasksPassword(t *testing.T) {
	e := newEnv(t)
	id := e.seedUser(t, "alice", "alice@example.com")

	rec := e.do(t, "admin", "GET", fmt.Sprintf("/api/crud6/users/%d", id), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res common.ReadResponse
	decodeJSON(t, rec, &res)
	assert.Equal(t, "alice", res.Data["user_name"])
	assert.NotContains(t, res.Data, "password")
}

func TestFieldUpdateAction(t *testing.T) {
	e := newEnv(t)
	id := e.seedGroup(t, "Engineers", "engineers")

	rec := e.do(t, "admin", "POST", fmt.Sprintf("/api/crud6/groups/%d/a/set_icon", id),
		`{"icon": "fa-bolt"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res common.MessageResponse
	decodeJSON(t, rec, &res)
	assert.Equal(t, "Action completed", res.Title)
	assert.Equal(t, 1, e.countWhere(t, "groups", "icon = ?", "fa-bolt"))
}

func TestCustomActionMessageAndPermission(t *testing.T) {
	e := newEnv(t)
	id := e.seedGroup(t, "Engineers", "engineers")

	rec := e.do(t, "admin", "POST", fmt.Sprintf("/api/crud6/groups/%d/a/announce", id), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res common.MessageResponse
	decodeJSON(t, rec, &res)
	assert.Equal(t, "Announcement sent", res.Title)

	// The action carries its own permission slug; viewer lacks it.
	rec = e.do(t, "viewer", "POST", fmt.Sprintf("/api/crud6/groups/%d/a/announce", id), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownAction(t *testing.T) {
	e := newEnv(t)
	id := e.seedGroup(t, "Engineers", "engineers")

	rec := e.do(t, "admin", "POST", fmt.Sprintf("/api/crud6/groups/%d/a/explode", id), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPasswordUpdateAction(t *testing.T) {
	e := newEnv(t)
	id := e.seedUser(t, "alice", "alice@example.com")
	path := fmt.Sprintf("/api/crud6/users/%d/a/set_password", id)

	rec := e.do(t, "admin", "POST", path, `{"password": "short", "password_confirm": "short"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errRes common.ErrorResponse
	decodeJSON(t, rec, &errRes)
	assert.Equal(t, []string{"length.min"}, errRes.Errors["password"])

	rec = e.do(t, "admin", "POST", path, `{"password": "correct horse", "password_confirm": "wrong horse"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	decodeJSON(t, rec, &errRes)
	assert.Equal(t, []string{"match"}, errRes.Errors["password"])

	rec = e.do(t, "admin", "POST", path, `{"password": "correct horse", "password_confirm": "correct horse"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rows []map[string]interface{}
	require.NoError(t, e.db.NewSelect().Table("users").Where("id = ?", id).Scan(context.Background(), &rows))
	require.Len(t, rows, 1)
	stored, _ := rows[0]["password"].(string)
	require.NotEmpty(t, stored)
	assert.NotEqual(t, "correct horse", stored)
	hasher := security.BcryptHasher{Cost: bcrypt.MinCost}
	assert.True(t, hasher.Verify(stored, "correct horse"))
}

func TestManyToManyRelation(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "alice", "alice@example.com")
	bob := e.seedUser(t, "bob", "bob@example.com")
	ctx := context.Background()
	for _, stmt := range []string{
		`INSERT INTO roles (name) VALUES ('admin'), ('editor'), ('viewer')`,
		fmt.Sprintf(`INSERT INTO role_users (user_id, role_id) VALUES (%d, 1), (%d, 2), (%d, 3)`, alice, alice, bob),
	} {
		_, err := e.db.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	rec := e.do(t, "admin", "GET", fmt.Sprintf("/api/crud6/users/%d/roles", alice), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res sprunje.Result
	decodeJSON(t, rec, &res)
	assert.EqualValues(t, 2, res.Count)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "admin", res.Rows[0]["name"])
	assert.Equal(t, "editor", res.Rows[1]["name"])
}

func TestThroughRelation(t *testing.T) {
	e := newEnv(t)
	alice := e.seedUser(t, "alice", "alice@example.com")
	bob := e.seedUser(t, "bob", "bob@example.com")
	ctx := context.Background()
	for _, stmt := range []string{
		`INSERT INTO roles (name) VALUES ('admin'), ('editor')`,
		`INSERT INTO permissions (name) VALUES ('delete_group'), ('edit_page'), ('view_page')`,
		fmt.Sprintf(`INSERT INTO role_users (user_id, role_id) VALUES (%d, 1), (%d, 2)`, alice, bob),
		`INSERT INTO permission_roles (role_id, permission_id) VALUES (1, 1), (1, 2), (2, 3)`,
	} {
		_, err := e.db.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	rec := e.do(t, "admin", "GET", fmt.Sprintf("/api/crud6/users/%d/permissions", alice), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res sprunje.Result
	decodeJSON(t, rec, &res)
	assert.EqualValues(t, 2, res.Count)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "delete_group", res.Rows[0]["name"])
	assert.Equal(t, "edit_page", res.Rows[1]["name"])
}

func TestDetailRelation(t *testing.T) {
	e := newEnv(t)
	engineers := e.seedGroup(t, "Engineers", "engineers")
	designers := e.seedGroup(t, "Designers", "designers")
	ctx := context.Background()
	_, err := e.db.Exec(ctx, fmt.Sprintf(
		`INSERT INTO members (group_id, nickname) VALUES (%d, 'zmover'), (%d, 'arover'), (%d, 'other')`,
		engineers, engineers, designers))
	require.NoError(t, err)

	rec := e.do(t, "admin", "GET", fmt.Sprintf("/api/crud6/groups/%d/members", engineers), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res sprunje.Result
	decodeJSON(t, rec, &res)
	assert.EqualValues(t, 2, res.Count)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "arover", res.Rows[0]["nickname"])
	assert.NotContains(t, res.Rows[0], "group_id", "list_fields narrows the projection")
	assert.Contains(t, res.Rows[0], "id")
}

func TestUnknownRelation(t *testing.T) {
	e := newEnv(t)
	id := e.seedGroup(t, "Engineers", "engineers")
	rec := e.do(t, "admin", "GET", fmt.Sprintf("/api/crud6/groups/%d/widgets", id), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGuestGets401(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, "", "GET", "/api/crud6/groups", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestViewerGets403OnWrite(t *testing.T) {
	e := newEnv(t)
	e.seedGroup(t, "Engineers", "engineers")

	rec := e.do(t, "viewer", "GET", "/api/crud6/groups", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, "viewer", "POST", "/api/crud6/groups", `{"name": "Nope", "slug": "nope"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 1, e.countWhere(t, "groups", "1 = 1"))
}

func TestUnknownModel(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, "admin", "GET", "/api/crud6/widgets", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidModelName(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, "admin", "GET", "/api/crud6/bad%2Emodel%2F", "")
	assert.True(t, rec.Code == http.StatusBadRequest || rec.Code == http.StatusNotFound,
		"got %d", rec.Code)
}

func TestSchemaEndpoint(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "admin", "GET", "/api/crud6/users/schema", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Message string `json:"message"`
		Model   string `json:"model"`
		Schema  struct {
			Fields map[string]json.RawMessage `json:"fields"`
		} `json:"schema"`
	}
	decodeJSON(t, rec, &res)
	assert.Equal(t, "OK", res.Message)
	assert.Equal(t, "users", res.Model)
	assert.Contains(t, res.Schema.Fields, "password", "full schema keeps every field")

	rec = e.do(t, "admin", "GET", "/api/crud6/users/schema?context=list", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res.Schema.Fields = nil
	decodeJSON(t, rec, &res)
	assert.NotContains(t, res.Schema.Fields, "password")
	assert.Contains(t, res.Schema.Fields, "user_name")

	rec = e.do(t, "admin", "GET", "/api/crud6/users/schema?context=form", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res.Schema.Fields = nil
	decodeJSON(t, rec, &res)
	assert.NotContains(t, res.Schema.Fields, "id", "readonly fields are not form fields")

	rec = e.do(t, "admin", "GET", "/api/crud6/users/schema?context=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSchemaMultiContext(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "admin", "GET", "/api/crud6/users/schema?context=list,form", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Schema struct {
			Contexts map[string]struct {
				Fields map[string]json.RawMessage `json:"fields"`
			} `json:"contexts"`
		} `json:"schema"`
	}
	decodeJSON(t, rec, &res)
	require.Contains(t, res.Schema.Contexts, "list")
	require.Contains(t, res.Schema.Contexts, "form")
	assert.NotContains(t, res.Schema.Contexts["list"].Fields, "password")
	assert.Contains(t, res.Schema.Contexts["form"].Fields, "password")
}

func TestConfigEndpoint(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, "admin", "GET", "/api/crud6/config", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res common.ConfigResponse
	decodeJSON(t, rec, &res)
	assert.True(t, res.DebugMode)
}

func TestListCacheInvalidatedByCreate(t *testing.T) {
	e := newEnv(t)
	e.seedGroup(t, "Engineers", "engineers")

	rec := e.do(t, "admin", "GET", "/api/crud6/groups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res sprunje.Result
	decodeJSON(t, rec, &res)
	assert.EqualValues(t, 1, res.Count)

	rec = e.do(t, "admin", "POST", "/api/crud6/groups", `{"name": "Designers", "slug": "designers"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, "admin", "GET", "/api/crud6/groups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &res)
	assert.EqualValues(t, 2, res.Count, "the cached total must be dropped by the write")
}

// recordingMetrics captures CRUD operation samples for assertions.
type recordingMetrics struct {
	*metrics.NoOpProvider
	ops  []string
	errs []error
}

func (m *recordingMetrics) RecordCrudOperation(operation, model string, duration time.Duration, err error) {
	m.ops = append(m.ops, operation)
	m.errs = append(m.errs, err)
}

func TestListPageSizeFromConfig(t *testing.T) {
	e := newEnvWith(t, config.CrudConfig{DefaultPageSize: 2, MaxPageSize: 3}, nil)
	for i := 1; i <= 5; i++ {
		e.seedGroup(t, fmt.Sprintf("Group %02d", i), fmt.Sprintf("group-%02d", i))
	}

	rec := e.do(t, "admin", "GET", "/api/crud6/groups", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res sprunje.Result
	decodeJSON(t, rec, &res)
	assert.Equal(t, 2, res.Size, "configured default page size")
	assert.Len(t, res.Rows, 2)

	rec = e.do(t, "admin", "GET", "/api/crud6/groups?size=50", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &res)
	assert.Equal(t, 3, res.Size, "requested size capped at the configured maximum")
	assert.Len(t, res.Rows, 3)
}

func TestActionMetricsRecordOutcome(t *testing.T) {
	m := &recordingMetrics{NoOpProvider: &metrics.NoOpProvider{}}
	e := newEnvWith(t, config.CrudConfig{DefaultPageSize: 10, MaxPageSize: 100}, m)
	id := e.seedGroup(t, "Engineers", "engineers")

	rec := e.do(t, "admin", "POST", fmt.Sprintf("/api/crud6/groups/%d/a/set_icon", id), `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = e.do(t, "admin", "POST", fmt.Sprintf("/api/crud6/groups/%d/a/set_icon", id), `{"icon":"fa-rocket"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, m.ops, 2)
	assert.Equal(t, "action", m.ops[0])
	assert.Error(t, m.errs[0], "failed actions sample their error")
	assert.NoError(t, m.errs[1], "successful actions sample no error")
}
