package crudspec

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/validator"
)

// HandleUpdate serves PUT /{model}/{id}. Only editable fields present
// in the body are assigned; updated_at is bumped even when nothing
// changed.
func (h *Handler) HandleUpdate(w common.ResponseWriter, r common.Request) {
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

	input, apiErr := parseBody(r)
	if apiErr != nil {
		h.sendError(w, apiErr)
		return
	}

	ctx := r.Context()
	record := state.record
	v := validator.New(state.schema, validator.WithUniqueChecker(h.uniqueChecker(state)))
	clean, errs, err := v.Validate(ctx, input, validator.ModeUpdate, record.PrimaryKey())
	if err != nil {
		h.observe("update", state.model, start, err)
		h.sendError(w, classifyError(err, state.schema))
		return
	}
	if errs.Any() {
		h.observe("update", state.model, start, nil)
		h.sendError(w, validationError(errs))
		return
	}

	if err := h.hashPasswords(state.schema, clean); err != nil {
		h.observe("update", state.model, start, err)
		h.sendError(w, classifyError(err, state.schema))
		return
	}

	err = state.db.RunInTransaction(ctx, func(tx common.Database) error {
		if err := record.SetAll(clean); err != nil {
			return err
		}
		record.StampUpdated(h.deps.Clock.Now())
		return record.Update(ctx, tx)
	})
	h.observe("update", state.model, start, err)
	if err != nil {
		h.sendError(w, classifyError(err, state.schema))
		return
	}

	h.invalidateListCache(ctx, state)
	h.audit(r, "update", state.schema, record.PrimaryKey())

	name := h.translate(state.schema.SingularDisplayName(), nil)
	h.sendMessage(w, http.StatusOK, common.MessageResponse{
		Title:       fmt.Sprintf("%s updated", name),
		Description: fmt.Sprintf("%s %v has been updated.", name, record.PrimaryKey()),
		Model:       state.schema.Model,
		ID:          record.PrimaryKey(),
	})
}
