package crudspec

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/validator"
)

// extractFieldValue pulls the new value for field out of the body. The
// body may carry it under the field's own name or under "value".
func extractFieldValue(body []byte, field string) (interface{}, bool) {
	for _, key := range []string{field, "value"} {
		if res := gjson.GetBytes(body, key); res.Exists() {
			var value interface{}
			if err := json.Unmarshal([]byte(res.Raw), &value); err != nil {
				return nil, false
			}
			return value, true
		}
	}
	return nil, false
}

// patchField validates and persists a single-field change on a resolved
// record. Shared by the patch route and field_update actions.
func (h *Handler) patchField(r common.Request, state *requestState, field string, raw interface{}) *apiError {
	f := state.schema.Field(field)
	if f == nil {
		return newAPIError(http.StatusBadRequest, "Bad request", fmt.Sprintf("Model %s has no field %s.", state.schema.Model, field))
	}
	if !f.IsEditable() {
		return newAPIError(http.StatusBadRequest, "Bad request", fmt.Sprintf("Field %s is read-only.", field))
	}

	ctx := r.Context()
	record := state.record
	v := validator.New(state.schema, validator.WithUniqueChecker(h.uniqueChecker(state)))
	clean, errs, err := v.Validate(ctx, map[string]interface{}{field: raw}, validator.ModeUpdate, record.PrimaryKey())
	if err != nil {
		return classifyError(err, state.schema)
	}
	if errs.Any() {
		return validationError(errs)
	}

	if err := h.hashPasswords(state.schema, clean); err != nil {
		return classifyError(err, state.schema)
	}

	err = state.db.RunInTransaction(ctx, func(tx common.Database) error {
		if err := record.SetAll(clean); err != nil {
			return err
		}
		record.StampUpdated(h.deps.Clock.Now())
		return record.Update(ctx, tx)
	})
	if err != nil {
		return classifyError(err, state.schema)
	}

	h.invalidateListCache(ctx, state)
	return nil
}

// HandlePatchField serves PUT /{model}/{id}/{field}.
func (h *Handler) HandlePatchField(w common.ResponseWriter, r common.Request) {
	start := time.Now()
	state, apiErr := h.resolve(r, true)
	if apiErr != nil {
		h.sendError(w, apiErr)
		return
	}
	if apiErr := h.authorize(r, state.schema, "update"); apiErr != nil {
		h.sendError(w, apiErr)
		return
	}

	field := r.PathParam("field")
	body, err := r.Body()
	if err != nil {
		h.sendError(w, newAPIError(http.StatusBadRequest, "Bad request", "Could not read the request body."))
		return
	}
	raw, ok := extractFieldValue(body, field)
	if !ok {
		missing := newAPIError(http.StatusBadRequest, "Bad request", fmt.Sprintf("The request body must carry a value for %s.", field))
		h.observe("patch", state.model, start, missing)
		h.sendError(w, missing)
		return
	}

	if apiErr := h.patchField(r, state, field, raw); apiErr != nil {
		h.observe("patch", state.model, start, apiErr)
		h.sendError(w, apiErr)
		return
	}

	h.observe("patch", state.model, start, nil)
	h.audit(r, "patch", state.schema, state.record.PrimaryKey())

	name := h.translate(state.schema.SingularDisplayName(), nil)
	h.sendMessage(w, http.StatusOK, common.MessageResponse{
		Title:       fmt.Sprintf("%s updated", name),
		Description: fmt.Sprintf("Field %s of %s %v has been updated.", field, name, state.record.PrimaryKey()),
		Model:       state.schema.Model,
		ID:          state.record.PrimaryKey(),
		Data:        state.record.Fields(),
	})
}
