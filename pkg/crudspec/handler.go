// Package crudspec implements the schema-driven CRUD HTTP surface.
// Every model gets list, read, create, update, patch-field, delete,
// relationship listing and custom actions from nothing but its schema
// file.
package crudspec

import (
	"net/http"
	"time"

	"github.com/bitechdev/CrudSpec/pkg/auditlog"
	"github.com/bitechdev/CrudSpec/pkg/clock"
	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/config"
	"github.com/bitechdev/CrudSpec/pkg/logger"
	"github.com/bitechdev/CrudSpec/pkg/metrics"
	"github.com/bitechdev/CrudSpec/pkg/schema"
	"github.com/bitechdev/CrudSpec/pkg/security"
	"github.com/bitechdev/CrudSpec/pkg/translator"
)

// DatabaseResolver supplies databases by connection name. The dbmanager
// Manager satisfies it.
type DatabaseResolver interface {
	GetDatabase(name string) (common.Database, error)
	GetDefaultDatabase() (common.Database, error)
}

// Deps carries the handler's collaborators. Zero-value optional fields
// get safe defaults from NewHandler.
type Deps struct {
	Schemas    *schema.Loader
	DB         DatabaseResolver
	Authorizer security.Authorizer
	Hasher     security.PasswordHasher
	Translator translator.Translator
	Audit      auditlog.Sink
	Clock      clock.Clock
	Config     config.CrudConfig
	Metrics    metrics.Provider
}

// Handler serves the CRUD API for every model with a schema file.
type Handler struct {
	deps Deps
}

// NewHandler creates a handler. Schemas and DB are mandatory; the rest
// default to: deny-nothing authorizer, bcrypt hasher, pass-through
// translator, discarding audit sink, system clock, no-op metrics.
func NewHandler(deps Deps) *Handler {
	if deps.Schemas == nil {
		panic("crudspec: Deps.Schemas is required")
	}
	if deps.DB == nil {
		panic("crudspec: Deps.DB is required")
	}
	if deps.Authorizer == nil {
		deps.Authorizer = security.AllowAllAuthorizer{}
	}
	if deps.Hasher == nil {
		deps.Hasher = security.NewBcryptHasher()
	}
	if deps.Translator == nil {
		deps.Translator = translator.NewMapTranslator(nil)
	}
	if deps.Audit == nil {
		deps.Audit = auditlog.NopSink{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Metrics == nil {
		deps.Metrics = &metrics.NoOpProvider{}
	}
	return &Handler{deps: deps}
}

// authorize checks the permission slug for an action against the
// request's user. Guests get 401, authenticated users 403.
func (h *Handler) authorize(r common.Request, s *schema.Schema, action string) *apiError {
	return h.authorizeSlug(r, s.PermissionFor(action))
}

func (h *Handler) authorizeSlug(r common.Request, slug string) *apiError {
	ctx := r.Context()
	user := security.GetUserContext(ctx)
	if h.deps.Authorizer.CheckAccess(ctx, user, slug) {
		return nil
	}
	if user.IsGuest() {
		return newAPIError(http.StatusUnauthorized, "Login required", "You must be signed in to do that.")
	}
	logger.Debug("Permission %s denied for user %d", slug, user.UserID)
	return newAPIError(http.StatusForbidden, "Access denied", "You do not have permission to do that.")
}

// observe records the operation's metrics sample.
func (h *Handler) observe(operation, model string, start time.Time, err error) {
	h.deps.Metrics.RecordCrudOperation(operation, model, time.Since(start), err)
}

// audit emits an audit entry after a state change has committed.
func (h *Handler) audit(r common.Request, action string, s *schema.Schema, id interface{}) {
	user := security.GetUserContext(r.Context())
	fields := map[string]interface{}{
		"action": action,
		"model":  s.Model,
	}
	if id != nil {
		fields["id"] = id
	}
	if user != nil {
		fields["user_id"] = user.UserID
		fields["user_name"] = user.UserName
	}
	h.deps.Audit.Info("crud."+action, fields)
}

// translate resolves a message key, falling back to the key itself.
func (h *Handler) translate(key string, params map[string]interface{}) string {
	return h.deps.Translator.Translate(key, params)
}
