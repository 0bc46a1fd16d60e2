package crudspec

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/schema"
	"github.com/bitechdev/CrudSpec/pkg/validator"
)

// HandleAction serves POST /{model}/{id}/a/{action}.
func (h *Handler) HandleAction(w common.ResponseWriter, r common.Request) {
	start := time.Now()
	state, apiErr := h.resolve(r, true)
	if apiErr != nil {
		h.sendError(w, apiErr)
		return
	}

	key := r.PathParam("action")
	action := state.schema.ActionByKey(key)
	if action == nil {
		h.sendError(w, newAPIError(http.StatusNotFound, "Not found", fmt.Sprintf("Model %s has no action %s.", state.schema.Model, key)))
		return
	}

	// The action's own permission wins; otherwise the schema's update
	// permission gates it.
	if action.Permission != "" {
		apiErr = h.authorizeSlug(r, action.Permission)
	} else {
		apiErr = h.authorize(r, state.schema, "update")
	}
	if apiErr != nil {
		h.sendError(w, apiErr)
		return
	}

	switch action.Type {
	case schema.ActionFieldUpdate:
		apiErr = h.runFieldUpdate(r, state, action)
	case schema.ActionPasswordUpdate:
		apiErr = h.runPasswordUpdate(r, state, action)
	default:
		// Custom actions succeed without side effects; extensions hook
		// in externally.
		apiErr = nil
	}
	// A typed nil must not be recorded as a failure.
	var outcome error
	if apiErr != nil {
		outcome = apiErr
	}
	h.observe("action", state.model, start, outcome)
	if apiErr != nil {
		h.sendError(w, apiErr)
		return
	}

	h.audit(r, "action."+key, state.schema, state.record.PrimaryKey())

	title := action.SuccessMessage
	if title == "" {
		title = "Action completed"
	}
	h.sendMessage(w, http.StatusOK, common.MessageResponse{
		Title:       h.translate(title, nil),
		Description: fmt.Sprintf("Action %s completed for %s %v.", key, state.schema.Model, state.record.PrimaryKey()),
		Model:       state.schema.Model,
		ID:          state.record.PrimaryKey(),
	})
}

// runFieldUpdate applies a field_update action through the patch-field
// path.
func (h *Handler) runFieldUpdate(r common.Request, state *requestState, action *schema.ActionSpec) *apiError {
	body, err := r.Body()
	if err != nil {
		return newAPIError(http.StatusBadRequest, "Bad request", "Could not read the request body.")
	}
	raw, ok := extractFieldValue(body, action.Field)
	if !ok {
		return newAPIError(http.StatusBadRequest, "Bad request", fmt.Sprintf("The request body must carry a value for %s.", action.Field))
	}
	return h.patchField(r, state, action.Field, raw)
}

// runPasswordUpdate validates the password pair and writes the hash.
func (h *Handler) runPasswordUpdate(r common.Request, state *requestState, action *schema.ActionSpec) *apiError {
	field := action.Field
	if field == "" {
		field = "password"
	}
	f := state.schema.Field(field)
	if f == nil || f.BaseType != schema.TypePassword {
		return newAPIError(http.StatusInternalServerError, "Server error", fmt.Sprintf("Model %s has no password field %s.", state.schema.Model, field))
	}

	body, err := r.Body()
	if err != nil {
		return newAPIError(http.StatusBadRequest, "Bad request", "Could not read the request body.")
	}
	plain := gjson.GetBytes(body, field).String()
	confirm := gjson.GetBytes(body, field+"_confirm").String()

	errs := make(validator.Errors)
	minLen := 8
	if f.Validation != nil && f.Validation.Length != nil && f.Validation.Length.Min != nil {
		minLen = *f.Validation.Length.Min
	}
	if len([]rune(plain)) < minLen {
		errs.Add(field, validator.RuleLengthMin)
	}
	if plain != confirm {
		errs.Add(field, validator.RuleMatch)
	}
	if errs.Any() {
		return validationError(errs)
	}

	hashed, err := h.deps.Hasher.Hash(plain)
	if err != nil {
		return classifyError(err, state.schema)
	}

	ctx := r.Context()
	record := state.record
	err = state.db.RunInTransaction(ctx, func(tx common.Database) error {
		if err := record.Set(field, hashed); err != nil {
			return err
		}
		record.StampUpdated(h.deps.Clock.Now())
		return record.Update(ctx, tx)
	})
	if err != nil {
		return classifyError(err, state.schema)
	}
	return nil
}
