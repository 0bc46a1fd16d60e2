package crudspec

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bitechdev/CrudSpec/pkg/common"
)

// HandleDelete serves DELETE /{model}/{id}. Soft-delete schemas get a
// tombstone; the rest lose the row.
func (h *Handler) HandleDelete(w common.ResponseWriter, r common.Request) {
	start := time.Now()
	state, apiErr := h.resolve(r, true)
	if apiErr != nil {
		h.sendError(w, apiErr)
		return
	}
	if apiErr := h.authorize(r, state.schema, "delete"); apiErr != nil {
		h.sendError(w, apiErr)
		return
	}

	ctx := r.Context()
	record := state.record
	id := record.PrimaryKey()

	err := state.db.RunInTransaction(ctx, func(tx common.Database) error {
		if state.schema.SoftDelete {
			return record.SoftDelete(ctx, tx, h.deps.Clock.Now())
		}
		return record.Delete(ctx, tx)
	})
	h.observe("delete", state.model, start, err)
	if err != nil {
		h.sendError(w, classifyError(err, state.schema))
		return
	}

	h.invalidateListCache(ctx, state)
	h.audit(r, "delete", state.schema, id)

	name := h.translate(state.schema.SingularDisplayName(), nil)
	h.sendMessage(w, http.StatusOK, common.MessageResponse{
		Title:       fmt.Sprintf("%s deleted", name),
		Description: fmt.Sprintf("%s %v has been deleted.", name, id),
	})
}
