package crudspec

import (
	"net/http"
	"strings"
	"time"

	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/schema"
)

// requestedContexts collects the view contexts from the query string.
// The parameter may repeat and may carry comma lists.
func requestedContexts(r common.Request) ([]string, *apiError) {
	var contexts []string
	for _, raw := range r.AllQueryParams()["context"] {
		for _, ctx := range strings.Split(raw, ",") {
			ctx = strings.TrimSpace(ctx)
			if ctx == "" {
				continue
			}
			if !schema.KnownContext(ctx) {
				return nil, newAPIError(http.StatusBadRequest, "Bad request", "Unknown schema context "+ctx+".")
			}
			contexts = append(contexts, ctx)
		}
	}
	return contexts, nil
}

// HandleSchema serves GET /{model}/schema.
func (h *Handler) HandleSchema(w common.ResponseWriter, r common.Request) {
	start := time.Now()
	state, apiErr := h.resolve(r, false)
	if apiErr != nil {
		h.sendError(w, apiErr)
		return
	}
	if apiErr := h.authorize(r, state.schema, "read"); apiErr != nil {
		h.sendError(w, apiErr)
		return
	}

	contexts, apiErr := requestedContexts(r)
	if apiErr != nil {
		h.sendError(w, apiErr)
		return
	}

	h.observe("schema", state.model, start, nil)
	h.sendJSON(w, http.StatusOK, common.SchemaResponse{
		Message:          "OK",
		Model:            state.schema.Model,
		ModelDisplayName: h.translate(state.schema.DisplayName(), nil),
		Schema:           state.schema.ContextPayload(contexts),
		Breadcrumb: common.SchemaBreadcrumb{
			ModelTitle:    h.translate(state.schema.DisplayName(), nil),
			SingularTitle: h.translate(state.schema.SingularDisplayName(), nil),
		},
	})
}

// HandleConfig serves GET /config.
func (h *Handler) HandleConfig(w common.ResponseWriter, r common.Request) {
	h.sendJSON(w, http.StatusOK, common.ConfigResponse{
		DebugMode: h.deps.Config.DebugMode,
	})
}
