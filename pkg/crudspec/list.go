package crudspec

import (
	"net/http"
	"strings"
	"time"

	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/sprunje"
)

// rawQuery extracts the raw query string from the request URL.
func rawQuery(r common.Request) string {
	_, raw, _ := strings.Cut(r.URL(), "?")
	return raw
}

// parseParams parses the list parameters with the configured default
// and maximum page sizes.
func (h *Handler) parseParams(r common.Request) (*sprunje.Params, error) {
	return sprunje.ParseParamsWith(rawQuery(r), h.deps.Config.DefaultPageSize, h.deps.Config.MaxPageSize)
}

// HandleList serves GET /{model}.
func (h *Handler) HandleList(w common.ResponseWriter, r common.Request) {
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

	params, err := h.parseParams(r)
	if err != nil {
		h.observe("list", state.model, start, err)
		h.sendError(w, classifyError(err, state.schema))
		return
	}

	res, err := sprunje.New(state.db, state.schema, params).GetResults(r.Context())
	h.observe("list", state.model, start, err)
	if err != nil {
		h.sendError(w, classifyError(err, state.schema))
		return
	}
	h.sendJSON(w, http.StatusOK, res)
}
