package crudspec

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/schema"
)

// breadcrumb renders "{title_field value} ({id})", or just "{id}" when
// the schema has no title field or the record's value is empty.
func breadcrumb(s *schema.Schema, record *Record) string {
	id := fmt.Sprintf("%v", record.PrimaryKey())
	if s.TitleField == "" {
		return id
	}
	title := record.Get(s.TitleField)
	if title == nil || fmt.Sprintf("%v", title) == "" {
		return id
	}
	return fmt.Sprintf("%v (%s)", title, id)
}

// HandleRead serves GET /{model}/{id}.
func (h *Handler) HandleRead(w common.ResponseWriter, r common.Request) {
	start := time.Now()
	state, apiErr := h.resolve(r, true)
	if apiErr != nil {
		h.sendError(w, apiErr)
		return
	}
	if apiErr := h.authorize(r, state.schema, "read"); apiErr != nil {
		h.sendError(w, apiErr)
		return
	}

	h.observe("read", state.model, start, nil)
	h.sendJSON(w, http.StatusOK, common.ReadResponse{
		Message:          "OK",
		Model:            state.schema.Model,
		ModelDisplayName: h.translate(state.schema.SingularDisplayName(), nil),
		ID:               state.record.PrimaryKey(),
		Data:             state.record.Fields(),
		Breadcrumb:       breadcrumb(state.schema, state.record),
	})
}
